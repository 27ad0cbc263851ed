package service

import (
	"context"
	"sync"

	"therapist-bot-be/internal/config"
	"therapist-bot-be/internal/metrics"
	"therapist-bot-be/internal/pkg/logger"
	"therapist-bot-be/internal/repository/memory"
	"therapist-bot-be/pkg/emotion"
	"therapist-bot-be/pkg/events"
	"therapist-bot-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var ErrSessionNotFound = fiber.NewError(fiber.StatusNotFound, "session not found")

type ISessionService interface {
	Create(ctx context.Context) *store.Session
	// GetOrCreate returns the session for id, or a fresh one when id is empty
	// or unknown. created reports which.
	GetOrCreate(ctx context.Context, id string) (session *store.Session, created bool)
	Get(ctx context.Context, id string) (*store.Session, error)
	Reset(ctx context.Context, id string) error
	End(ctx context.Context, id string) error
	Count() int
	// OnEnded registers a hook run after a session is deleted or expires.
	OnEnded(fn func(sessionID string))
}

type sessionService struct {
	repo      memory.ISessionRepository
	fusion    config.FusionConfig
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    logger.ILogger

	mu    sync.RWMutex
	hooks []func(string)
}

func NewSessionService(
	repo memory.ISessionRepository,
	fusion config.FusionConfig,
	publisher events.Publisher,
	m *metrics.Metrics,
	log logger.ILogger,
) ISessionService {
	s := &sessionService{
		repo:      repo,
		fusion:    fusion,
		publisher: publisher,
		metrics:   m,
		logger:    log,
	}
	repo.OnEvicted(s.handleEvicted)
	return s
}

func (s *sessionService) newEngine() *emotion.Engine {
	return emotion.NewEngine(
		emotion.WithWindowSize(s.fusion.WindowSize),
		emotion.WithHalfLife(s.fusion.HalfLife),
		emotion.WithWeights(emotion.Weights{Audio: s.fusion.AudioWeight, Video: s.fusion.VideoWeight}),
		emotion.WithIncongruenceThreshold(s.fusion.IncongruenceThreshold),
		emotion.WithLogger(s.logger.Zap().Named("emotion")),
	)
}

func (s *sessionService) Create(ctx context.Context) *store.Session {
	session := store.NewSession(uuid.NewString(), s.newEngine())
	s.repo.Save(session)
	s.metrics.ActiveSessions.Inc()

	s.logger.Info("SessionService", "Session created", map[string]interface{}{"session_id": session.ID})
	return session
}

func (s *sessionService) GetOrCreate(ctx context.Context, id string) (*store.Session, bool) {
	if id != "" {
		if session, ok := s.repo.Get(id); ok {
			s.repo.Touch(session)
			return session, false
		}
	}
	return s.Create(ctx), true
}

func (s *sessionService) Get(ctx context.Context, id string) (*store.Session, error) {
	session, ok := s.repo.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.repo.Touch(session)
	return session, nil
}

func (s *sessionService) Reset(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	session.Reset()
	s.logger.Info("SessionService", "Session reset", map[string]interface{}{"session_id": id})
	return nil
}

func (s *sessionService) End(ctx context.Context, id string) error {
	if _, ok := s.repo.Get(id); !ok {
		return ErrSessionNotFound
	}
	s.repo.Delete(id)
	return nil
}

func (s *sessionService) Count() int {
	return s.repo.Count()
}

func (s *sessionService) OnEnded(fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// handleEvicted runs for deletes and expirations alike. Touch re-sets the
// cache entry, which go-cache does not report as an eviction.
func (s *sessionService) handleEvicted(session *store.Session) {
	id, messages := session.ID, session.MessageCount()
	s.metrics.ActiveSessions.Dec()

	if err := s.publisher.Publish(context.Background(), events.NewSessionEndedEvent(id, messages)); err != nil {
		s.logger.Warn("SessionService", "Failed to publish session ended", map[string]interface{}{"session_id": id, "error": err.Error()})
	}

	s.mu.RLock()
	hooks := append([]func(string){}, s.hooks...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(id)
	}

	s.logger.Info("SessionService", "Session ended", map[string]interface{}{"session_id": id, "messages": messages})
}
