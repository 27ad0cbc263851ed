package service

import (
	"context"
	"strings"
	"time"

	"therapist-bot-be/internal/constant"
	"therapist-bot-be/internal/metrics"
	"therapist-bot-be/internal/pkg/logger"
	"therapist-bot-be/internal/tracer"
	"therapist-bot-be/pkg/emotion"
	"therapist-bot-be/pkg/llm"
	"therapist-bot-be/pkg/prompt"
	"therapist-bot-be/pkg/store"

	"go.opentelemetry.io/otel/attribute"
)

type ChatInput struct {
	Content      string
	AudioEmotion string // optional hint label
	VideoEmotion string // optional hint label
	TaggedText   string // optional "<sad>...</sad>" rendering of the spoken turn
}

type ChatResult struct {
	Reply string
	State emotion.FusedState
}

type IChatService interface {
	Chat(ctx context.Context, session *store.Session, in ChatInput) (*ChatResult, error)
	// ChatStream reports the fused state used for the turn through onState
	// before any token is delivered.
	ChatStream(ctx context.Context, session *store.Session, in ChatInput, onState func(emotion.FusedState) error, onToken llm.TokenHandler) (*ChatResult, error)
}

type chatService struct {
	llmProvider  llm.LLMProvider
	emotions     IEmotionService
	metrics      *metrics.Metrics
	logger       logger.ILogger
	systemPrompt string
}

func NewChatService(llmProvider llm.LLMProvider, emotions IEmotionService, m *metrics.Metrics, log logger.ILogger) IChatService {
	return &chatService{
		llmProvider:  llmProvider,
		emotions:     emotions,
		metrics:      m,
		logger:       log,
		systemPrompt: constant.TherapistSystemPrompt,
	}
}

func (s *chatService) Chat(ctx context.Context, session *store.Session, in ChatInput) (*ChatResult, error) {
	return s.turn(ctx, session, in, nil, nil)
}

func (s *chatService) ChatStream(ctx context.Context, session *store.Session, in ChatInput, onState func(emotion.FusedState) error, onToken llm.TokenHandler) (*ChatResult, error) {
	return s.turn(ctx, session, in, onState, onToken)
}

func (s *chatService) turn(ctx context.Context, session *store.Session, in ChatInput, onState func(emotion.FusedState) error, onToken llm.TokenHandler) (*ChatResult, error) {
	ctx, span := tracer.Start(ctx, "chat.turn")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", session.ID))

	unlock := session.LockTurn()
	defer unlock()

	if err := s.recordHints(ctx, session, in); err != nil {
		return nil, err
	}

	state := session.Engine.CurrentState()
	span.SetAttributes(
		attribute.String("emotion.dominant", state.Dominant.String()),
		attribute.Bool("emotion.incongruence", state.Incongruence),
	)
	if onState != nil {
		if err := onState(state); err != nil {
			return nil, err
		}
	}

	session.AppendMessage(llm.Message{Role: llm.RoleUser, Content: in.Content})
	messages := prompt.NewConversationBuilder(s.systemPrompt, state, session.History()).
		WithTaggedText(in.TaggedText).
		Build()

	start := time.Now()
	var (
		reply     string
		err       error
		clientErr error
	)
	if onToken == nil {
		reply, err = s.llmProvider.Chat(ctx, messages)
	} else {
		reply, err = s.llmProvider.ChatStream(ctx, messages, func(token string) error {
			if err := onToken(token); err != nil {
				clientErr = err
				return err
			}
			return nil
		})
	}
	s.metrics.LLMLatency.Observe(time.Since(start).Seconds())

	switch {
	case clientErr != nil || (err != nil && ctx.Err() != nil):
		// The client went away mid-reply. Keep what was produced.
		if strings.TrimSpace(reply) != "" {
			session.AppendMessage(llm.Message{Role: llm.RoleAssistant, Content: reply})
		}
		return nil, err
	case err != nil:
		reply, err = s.fallback(session, reply, err, onToken)
		if err != nil {
			return nil, err
		}
	default:
		s.metrics.ChatTurnsTotal.WithLabelValues("ok").Inc()
	}

	if strings.TrimSpace(reply) != "" {
		session.AppendMessage(llm.Message{Role: llm.RoleAssistant, Content: reply})
	}

	return &ChatResult{Reply: reply, State: state}, nil
}

// recordHints applies the optional per-message labels before the state is
// read, so the reply reflects them. Both labels are checked first so a bad
// one leaves the engine untouched.
func (s *chatService) recordHints(ctx context.Context, session *store.Session, in ChatInput) error {
	for _, hint := range []string{in.AudioEmotion, in.VideoEmotion} {
		if hint == "" {
			continue
		}
		if _, err := emotion.ParseLabel(hint); err != nil {
			return err
		}
	}

	if in.AudioEmotion != "" {
		if _, err := s.emotions.RecordAudio(ctx, session, in.AudioEmotion, constant.HintConfidence, nil); err != nil {
			return err
		}
	}
	if in.VideoEmotion != "" {
		if _, err := s.emotions.RecordVideo(ctx, session, in.VideoEmotion, constant.HintConfidence); err != nil {
			return err
		}
	}
	return nil
}

// fallback decides what the user sees after an LLM failure. A reply that
// already started streaming is kept as is; otherwise the fallback message
// takes its place.
func (s *chatService) fallback(session *store.Session, partial string, llmErr error, onToken llm.TokenHandler) (string, error) {
	s.logger.Error("ChatService", "LLM request failed", map[string]interface{}{
		"session_id": session.ID,
		"provider":   s.llmProvider.Name(),
		"error":      llmErr.Error(),
	})
	s.metrics.ChatTurnsTotal.WithLabelValues("fallback").Inc()

	if partial != "" {
		return partial, nil
	}
	if onToken != nil {
		if err := onToken(constant.ChatFallbackMessage); err != nil {
			return "", err
		}
	}
	return constant.ChatFallbackMessage, nil
}
