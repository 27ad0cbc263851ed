package dto

import (
	"time"

	"therapist-bot-be/pkg/emotion"
)

type SessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionStateResponse struct {
	SessionID     string             `json:"session_id"`
	State         emotion.FusedState `json:"state"`
	Messages      int                `json:"messages"`
	AudioReadings int                `json:"audio_readings"`
	VideoReadings int                `json:"video_readings"`
}
