package dto

import (
	"therapist-bot-be/pkg/analyzer"
	"therapist-bot-be/pkg/emotion"
)

type ChatRequest struct {
	SessionID    string `json:"session_id" validate:"omitempty,max=64"`
	Message      string `json:"message" validate:"required,max=8000"`
	AudioEmotion string `json:"audio_emotion" validate:"omitempty,emotion"`
	VideoEmotion string `json:"video_emotion" validate:"omitempty,emotion"`
	TaggedText   string `json:"tagged_text" validate:"omitempty,max=16000"`
}

type ChatResponse struct {
	SessionID string             `json:"session_id"`
	Response  string             `json:"response"`
	Emotion   emotion.FusedState `json:"emotion"`
}

type AnalyzeAudioResponse struct {
	SessionID string `json:"session_id"`
	analyzer.Result
	TaggedText string             `json:"tagged_text,omitempty"`
	State      emotion.FusedState `json:"state"`
}

// VoiceChatResponse answers one spoken turn. AudioBase64 is always null,
// replies are text only.
type VoiceChatResponse struct {
	SessionID     string             `json:"session_id"`
	Transcription string             `json:"transcription"`
	ResponseText  string             `json:"response_text"`
	EmotionTags   string             `json:"emotion_tags"`
	TargetEmotion emotion.Label      `json:"target_emotion"`
	AudioBase64   *string            `json:"audio_base64"`
	Timings       map[string]int64   `json:"timings"`
	Emotion       emotion.FusedState `json:"emotion"`
}
