package service

import (
	"context"
	"encoding/json"
	"sync"

	"therapist-bot-be/internal/constant"
	"therapist-bot-be/internal/dto"
	"therapist-bot-be/internal/metrics"
	"therapist-bot-be/internal/pkg/logger"
	"therapist-bot-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

// SessionDelivery pushes frames to every client attached to a session.
// Typically implemented by the WebSocket Hub.
type SessionDelivery interface {
	SendToSession(sessionID string, data []byte)
}

type INotifierService interface {
	Consume(ctx context.Context) error
	// Forget drops per-session tracking once a session ends.
	Forget(sessionID string)
}

// notifierService turns emotion updates from the in-process bus into
// emotion_state frames and reports incongruence onsets to the broker.
type notifierService struct {
	bus       message.Subscriber
	delivery  SessionDelivery
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    logger.ILogger

	mu          sync.Mutex
	incongruent map[string]bool
}

func NewNotifierService(
	bus message.Subscriber,
	delivery SessionDelivery,
	publisher events.Publisher,
	m *metrics.Metrics,
	log logger.ILogger,
) INotifierService {
	return &notifierService{
		bus:         bus,
		delivery:    delivery,
		publisher:   publisher,
		metrics:     m,
		logger:      log,
		incongruent: make(map[string]bool),
	}
}

func (s *notifierService) Consume(ctx context.Context) error {
	messages, err := s.bus.Subscribe(ctx, constant.TopicEmotionUpdated)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (s *notifierService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.EmotionUpdatedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.logger.Error("NotifierService", "Failed to unmarshal emotion update", map[string]interface{}{"error": err.Error()})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	frame, err := json.Marshal(dto.WsEmotionFrame{Type: dto.WsTypeEmotionState, Emotions: payload.State})
	if err == nil {
		s.delivery.SendToSession(payload.SessionID, frame)
	}

	if s.incongruenceStarted(payload.SessionID, payload.State.Incongruence) {
		s.metrics.IncongruenceTotal.Inc()

		st := payload.State
		event := events.NewIncongruenceEvent(payload.SessionID,
			st.Audio.Emotion.String(), st.Audio.Confidence,
			st.Video.Emotion.String(), st.Video.Confidence)
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("NotifierService", "Failed to publish incongruence", map[string]interface{}{"session_id": payload.SessionID, "error": err.Error()})
		}
	}

	msg.Ack()
}

// incongruenceStarted records the flag and reports a false -> true edge.
func (s *notifierService) incongruenceStarted(sessionID string, now bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	was := s.incongruent[sessionID]
	if now {
		s.incongruent[sessionID] = true
	} else {
		delete(s.incongruent, sessionID)
	}
	return now && !was
}

func (s *notifierService) Forget(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.incongruent, sessionID)
}
