package dto

import "therapist-bot-be/pkg/emotion"

// Websocket frame types sent by the client.
const (
	WsTypeInit        = "init"
	WsTypeEmotion     = "emotion"
	WsTypeVideoScores = "video_scores"
	WsTypeMessage     = "message"
	WsTypeVoice       = "voice_message"
)

// Websocket frame types sent by the server.
const (
	WsTypeSession        = "session"
	WsTypeEmotionState   = "emotion_state"
	WsTypeEmotionSummary = "emotion_summary"
	WsTypeResponse       = "response"
	WsTypeVoiceResponse  = "voice_response"
	WsTypeError          = "error"
)

// WsInbound is the union of every client frame. Type defaults to "message";
// emotion frames default to the video modality and confidence 0.5.
type WsInbound struct {
	Type         string             `json:"type"`
	SessionID    string             `json:"session_id,omitempty"`
	Modality     string             `json:"modality,omitempty"`
	Emotion      string             `json:"emotion,omitempty"`
	Confidence   *float64           `json:"confidence,omitempty"`
	Scores       map[string]float64 `json:"scores,omitempty"`
	Content      string             `json:"content,omitempty"`
	AudioEmotion string             `json:"audio_emotion,omitempty"`
	VideoEmotion string             `json:"video_emotion,omitempty"`
	TaggedText   string             `json:"tagged_text,omitempty"`
	Audio        string             `json:"audio,omitempty"` // base64 clip of a voice_message
	Filename     string             `json:"filename,omitempty"`
}

type WsSessionFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type WsEmotionFrame struct {
	Type     string             `json:"type"`
	Emotions emotion.FusedState `json:"emotions"`
}

type WsResponseFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

type WsErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type WsVoiceResponseFrame struct {
	Type string `json:"type"`
	VoiceChatResponse
	Done bool `json:"done"`
}
