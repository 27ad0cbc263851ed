package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"therapist-bot-be/internal/config"
	"therapist-bot-be/internal/metrics"
	"therapist-bot-be/internal/pkg/logger"
	"therapist-bot-be/internal/repository/memory"
	"therapist-bot-be/pkg/events"
	"therapist-bot-be/pkg/llm"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type fakeLLM struct {
	mu       sync.Mutex
	tokens   []string
	err      error
	received [][]llm.Message
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	f.mu.Lock()
	f.received = append(f.received, history)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return strings.Join(f.tokens, ""), nil
}

func (f *fakeLLM) ChatStream(ctx context.Context, history []llm.Message, onToken llm.TokenHandler, _ ...llm.Option) (string, error) {
	f.mu.Lock()
	f.received = append(f.received, history)
	f.mu.Unlock()

	var full strings.Builder
	for _, tok := range f.tokens {
		full.WriteString(tok)
		if err := onToken(tok); err != nil {
			return full.String(), err
		}
	}
	return full.String(), f.err
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) last() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.received[len(f.received)-1]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type recordingDelivery struct {
	mu     sync.Mutex
	frames map[string][]string
}

func (d *recordingDelivery) SendToSession(sessionID string, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.frames == nil {
		d.frames = make(map[string][]string)
	}
	d.frames[sessionID] = append(d.frames[sessionID], string(data))
}

func (d *recordingDelivery) count(sessionID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.frames[sessionID])
}

type testDeps struct {
	metrics   *metrics.Metrics
	logger    logger.ILogger
	bus       *gochannel.GoChannel
	publisher *recordingPublisher
	sessions  ISessionService
	emotions  IEmotionService
}

func newTestDeps(t *testing.T) *testDeps {
	t.Helper()

	m := metrics.New()
	log := logger.NewNop()
	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	pub := &recordingPublisher{}
	fusion := config.FusionConfig{
		WindowSize:            10,
		HalfLife:              10 * time.Second,
		AudioWeight:           0.6,
		VideoWeight:           0.4,
		IncongruenceThreshold: 0.4,
	}
	sessions := NewSessionService(memory.NewSessionRepository(time.Hour), fusion, pub, m, log)

	return &testDeps{
		metrics:   m,
		logger:    log,
		bus:       bus,
		publisher: pub,
		sessions:  sessions,
		emotions:  NewEmotionService(sessions, bus, m, log),
	}
}
