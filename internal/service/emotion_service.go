package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"therapist-bot-be/internal/constant"
	"therapist-bot-be/internal/dto"
	"therapist-bot-be/internal/metrics"
	"therapist-bot-be/internal/pkg/logger"
	"therapist-bot-be/pkg/emotion"
	"therapist-bot-be/pkg/events"
	"therapist-bot-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

type IEmotionService interface {
	RecordAudio(ctx context.Context, session *store.Session, label string, confidence float64, scores map[string]float64) (emotion.FusedState, error)
	RecordVideo(ctx context.Context, session *store.Session, label string, confidence float64) (emotion.FusedState, error)
	RecordVideoScores(ctx context.Context, session *store.Session, scores map[string]float64) (emotion.FusedState, error)
	// HandleReadingEvent ingests READING_AUDIO / READING_VIDEO events from the broker.
	HandleReadingEvent(ctx context.Context, event events.Event) error
}

type emotionService struct {
	sessions ISessionService
	bus      message.Publisher
	metrics  *metrics.Metrics
	logger   logger.ILogger
}

func NewEmotionService(sessions ISessionService, bus message.Publisher, m *metrics.Metrics, log logger.ILogger) IEmotionService {
	return &emotionService{
		sessions: sessions,
		bus:      bus,
		metrics:  m,
		logger:   log,
	}
}

func (s *emotionService) RecordAudio(ctx context.Context, session *store.Session, label string, confidence float64, scores map[string]float64) (emotion.FusedState, error) {
	err := session.Engine.RecordAudioReading(label, confidence, scores)
	return s.afterRecord(session, emotion.Audio, err)
}

func (s *emotionService) RecordVideo(ctx context.Context, session *store.Session, label string, confidence float64) (emotion.FusedState, error) {
	err := session.Engine.RecordVideoReading(label, confidence)
	return s.afterRecord(session, emotion.Video, err)
}

func (s *emotionService) RecordVideoScores(ctx context.Context, session *store.Session, scores map[string]float64) (emotion.FusedState, error) {
	err := session.Engine.RecordVideoScores(scores)
	return s.afterRecord(session, emotion.Video, err)
}

// afterRecord counts the outcome and, for accepted readings, publishes the
// new state on the in-process bus. A rejected reading leaves state untouched.
func (s *emotionService) afterRecord(session *store.Session, m emotion.Modality, recordErr error) (emotion.FusedState, error) {
	if recordErr != nil {
		s.metrics.RejectionsTotal.WithLabelValues(m.String()).Inc()
		return emotion.FusedState{}, recordErr
	}
	s.metrics.ReadingsTotal.WithLabelValues(m.String()).Inc()

	state := session.Engine.CurrentState()
	s.publishUpdate(session.ID, state)
	return state, nil
}

func (s *emotionService) publishUpdate(sessionID string, state emotion.FusedState) {
	payload, err := json.Marshal(dto.EmotionUpdatedMessage{SessionID: sessionID, State: state})
	if err != nil {
		s.logger.Error("EmotionService", "Failed to marshal emotion update", map[string]interface{}{"error": err.Error()})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := s.bus.Publish(constant.TopicEmotionUpdated, msg); err != nil {
		s.logger.Warn("EmotionService", "Failed to publish emotion update", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
	}
}

func (s *emotionService) HandleReadingEvent(ctx context.Context, event events.Event) error {
	var m emotion.Modality
	switch event.EventType() {
	case events.TypeReadingAudio:
		m = emotion.Audio
	case events.TypeReadingVideo:
		m = emotion.Video
	default:
		return fmt.Errorf("%w: unexpected event type %q", events.ErrInvalidPayload, event.EventType())
	}

	payload := event.Payload()
	sessionID, _ := payload["session_id"].(string)
	reading, err := parseReadingPayload(m, payload)
	if err != nil {
		s.metrics.RejectionsTotal.WithLabelValues(m.String()).Inc()
		s.logger.Warn("EmotionService", "Malformed reading event", map[string]interface{}{"session_id": sessionID, "type": event.EventType(), "error": err.Error()})
		return fmt.Errorf("%w: %w", events.ErrInvalidPayload, err)
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		// Sessions are memory-only; a reading for a gone session is dropped, not retried.
		s.logger.Warn("EmotionService", "Reading for unknown session dropped", map[string]interface{}{"session_id": sessionID, "type": event.EventType()})
		return nil
	}

	switch {
	case m == emotion.Audio:
		_, err = s.RecordAudio(ctx, session, reading.label, reading.confidence, reading.scores)
	case reading.scoresOnly:
		_, err = s.RecordVideoScores(ctx, session, reading.scores)
	default:
		_, err = s.RecordVideo(ctx, session, reading.label, reading.confidence)
	}

	if errors.Is(err, emotion.ErrInvalidLabel) || errors.Is(err, emotion.ErrInvalidConfidence) {
		return fmt.Errorf("%w: %w", events.ErrInvalidPayload, err)
	}
	return err
}

type readingPayload struct {
	label      string
	confidence float64
	scores     map[string]float64
	scoresOnly bool
}

// parseReadingPayload checks field types only; label set and ranges are left
// to the engine. Confidence may be omitted on a video event that carries
// nothing but scores.
func parseReadingPayload(m emotion.Modality, payload map[string]interface{}) (readingPayload, error) {
	var out readingPayload

	if raw, ok := payload["emotion"]; ok && raw != nil {
		label, ok := raw.(string)
		if !ok {
			return out, fmt.Errorf("%w: emotion must be a string, got %T", emotion.ErrInvalidLabel, raw)
		}
		out.label = label
	}

	if raw, ok := payload["scores"]; ok && raw != nil {
		vector, ok := raw.(map[string]interface{})
		if !ok {
			return out, fmt.Errorf("%w: scores must be an object, got %T", emotion.ErrInvalidConfidence, raw)
		}
		out.scores = make(map[string]float64, len(vector))
		for k, v := range vector {
			f, ok := v.(float64)
			if !ok {
				return out, fmt.Errorf("%w: score for %q is not a number", emotion.ErrInvalidConfidence, k)
			}
			out.scores[k] = f
		}
	}

	out.scoresOnly = m == emotion.Video && out.label == "" && len(out.scores) > 0
	if out.scoresOnly {
		return out, nil
	}

	raw, ok := payload["confidence"]
	if !ok || raw == nil {
		return out, fmt.Errorf("%w: confidence is required", emotion.ErrInvalidConfidence)
	}
	confidence, ok := raw.(float64)
	if !ok {
		return out, fmt.Errorf("%w: confidence must be a number, got %T", emotion.ErrInvalidConfidence, raw)
	}
	out.confidence = confidence
	return out, nil
}
