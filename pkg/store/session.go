package store

import (
	"sync"
	"time"

	"therapist-bot-be/pkg/emotion"
	"therapist-bot-be/pkg/llm"
)

// MaxStoredMessages bounds the per-session transcript kept in memory. The
// prompt builder only ever sends the most recent turns.
const MaxStoredMessages = 100

// Session is one therapy conversation: its own fusion engine plus the chat
// transcript. Sessions never share an engine.
type Session struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Engine    *emotion.Engine `json:"-"`

	mu       sync.Mutex
	messages []llm.Message

	// turn serializes chat turns so replies land in history in order.
	turn sync.Mutex
}

func NewSession(id string, engine *emotion.Engine) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		Engine:    engine,
	}
}

func (s *Session) AppendMessage(msg llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msg)
	if over := len(s.messages) - MaxStoredMessages; over > 0 {
		s.messages = append(s.messages[:0:0], s.messages[over:]...)
	}
}

// History returns a copy of the transcript.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]llm.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Reset clears the transcript and the emotion windows.
func (s *Session) Reset() {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()

	s.Engine.Reset()
}

// LockTurn holds the session for one chat turn. Call the returned func to release.
func (s *Session) LockTurn() func() {
	s.turn.Lock()
	return s.turn.Unlock
}
