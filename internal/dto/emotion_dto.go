package dto

import "therapist-bot-be/pkg/emotion"

// EmotionUpdateRequest carries one reading from the browser. Modality
// defaults to video, the face classifier being the usual sender. Labels are
// checked by the engine so rejections are logged and counted.
type EmotionUpdateRequest struct {
	SessionID    string             `json:"session_id" validate:"omitempty,max=64"`
	Modality     string             `json:"modality" validate:"omitempty,oneof=audio video"`
	Emotion      string             `json:"emotion"`
	VideoEmotion string             `json:"video_emotion"`
	Confidence   float64            `json:"confidence"`
	Scores       map[string]float64 `json:"scores"`
}

// Label accepts both "emotion" and the older "video_emotion" field.
func (r EmotionUpdateRequest) Label() string {
	if r.Emotion != "" {
		return r.Emotion
	}
	return r.VideoEmotion
}

type EmotionUpdateResponse struct {
	SessionID string             `json:"session_id"`
	State     emotion.FusedState `json:"state"`
}

// EmotionUpdatedMessage is published on the in-process bus after every
// accepted reading.
type EmotionUpdatedMessage struct {
	SessionID string             `json:"session_id"`
	State     emotion.FusedState `json:"state"`
}
