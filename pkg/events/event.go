package events

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidPayload marks an event that can never be processed, so brokers
// should drop it rather than redeliver.
var ErrInvalidPayload = errors.New("invalid event payload")

const (
	TypeEmotionIncongruence = "EMOTION_INCONGRUENCE"
	TypeSessionEnded        = "SESSION_ENDED"
	TypeReadingAudio        = "READING_AUDIO"
	TypeReadingVideo        = "READING_VIDEO"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "SESSION_ENDED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Publisher is satisfied by the NATS publisher and by NopPublisher.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func NewIncongruenceEvent(sessionID, audioEmotion string, audioConfidence float64, videoEmotion string, videoConfidence float64) BaseEvent {
	return BaseEvent{
		Type: TypeEmotionIncongruence,
		Data: map[string]interface{}{
			"session_id":       sessionID,
			"audio_emotion":    audioEmotion,
			"audio_confidence": audioConfidence,
			"video_emotion":    videoEmotion,
			"video_confidence": videoConfidence,
		},
		OccurredAt: time.Now(),
	}
}

func NewSessionEndedEvent(sessionID string, messages int) BaseEvent {
	return BaseEvent{
		Type: TypeSessionEnded,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"messages":   messages,
		},
		OccurredAt: time.Now(),
	}
}
