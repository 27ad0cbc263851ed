package emotion

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Engine fuses audio and video readings for a single session. All methods are
// safe for concurrent use; each session owns its own Engine.
type Engine struct {
	mu        sync.Mutex
	audio     *Window
	video     *Window
	weights   Weights
	threshold float64
	clock     func() time.Time
	logger    *zap.Logger
}

type engineConfig struct {
	windowSize int
	halfLife   time.Duration
	weights    Weights
	threshold  float64
	clock      func() time.Time
	logger     *zap.Logger
}

// Option configures an Engine.
type Option func(*engineConfig)

func WithWindowSize(n int) Option {
	return func(c *engineConfig) { c.windowSize = n }
}

func WithHalfLife(d time.Duration) Option {
	return func(c *engineConfig) { c.halfLife = d }
}

func WithWeights(w Weights) Option {
	return func(c *engineConfig) { c.weights = w }
}

func WithIncongruenceThreshold(t float64) Option {
	return func(c *engineConfig) { c.threshold = t }
}

// WithClock replaces time.Now. Tests use it to pin "now".
func WithClock(clock func() time.Time) Option {
	return func(c *engineConfig) { c.clock = clock }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *engineConfig) { c.logger = l }
}

func NewEngine(opts ...Option) *Engine {
	cfg := engineConfig{
		windowSize: DefaultWindowSize,
		halfLife:   DefaultHalfLife,
		weights:    DefaultWeights,
		threshold:  DefaultIncongruenceThreshold,
		clock:      time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Engine{
		audio:     NewWindow(Audio, cfg.windowSize, cfg.halfLife),
		video:     NewWindow(Video, cfg.windowSize, cfg.halfLife),
		weights:   cfg.weights,
		threshold: cfg.threshold,
		clock:     cfg.clock,
		logger:    cfg.logger,
	}
}

// RecordAudioReading stores a voice emotion result. scores may be nil or
// partial; without it the reading is one-hot at confidence.
func (e *Engine) RecordAudioReading(emotion string, confidence float64, scores map[string]float64) error {
	return e.record(Audio, emotion, confidence, scores)
}

// RecordVideoReading stores a facial expression label.
func (e *Engine) RecordVideoReading(emotion string, confidence float64) error {
	return e.record(Video, emotion, confidence, nil)
}

// RecordVideoScores stores a face classifier probability vector. The reading's
// label and confidence are the vector's argmax and its probability.
func (e *Engine) RecordVideoScores(scores map[string]float64) error {
	label, confidence, err := TopScore(scores)
	if err != nil {
		e.reject(Video, "", 0, err)
		return err
	}
	return e.record(Video, label.String(), confidence, scores)
}

func (e *Engine) record(m Modality, emotion string, confidence float64, scores map[string]float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Stamped under the lock so insertion order matches timestamp order.
	r, err := NewReading(m, emotion, confidence, scores, e.clock())
	if err != nil {
		e.reject(m, emotion, confidence, err)
		return err
	}

	return e.window(m).Push(r)
}

func (e *Engine) reject(m Modality, emotion string, confidence float64, err error) {
	e.logger.Warn("reading rejected",
		zap.Stringer("modality", m),
		zap.String("emotion", emotion),
		zap.Float64("confidence", confidence),
		zap.Error(err),
	)
}

func (e *Engine) window(m Modality) *Window {
	if m == Video {
		return e.video
	}
	return e.audio
}

// CurrentState computes the fused state at the engine clock's current time.
func (e *Engine) CurrentState() FusedState {
	return e.StateAt(e.clock())
}

// StateAt computes the fused state as of now. It does not mutate the engine,
// so repeated calls with the same now return identical results.
func (e *Engine) StateAt(now time.Time) FusedState {
	e.mu.Lock()
	defer e.mu.Unlock()

	audioLabel, audioConf, audioDist := e.audio.aggregate(now)
	videoLabel, videoConf, videoDist := e.video.aggregate(now)
	fused := Fuse(audioDist, videoDist, e.weights)

	dominant, confidence := Neutral, 0.0
	if latest, ok := e.latest(); ok {
		dominant, confidence = fused.Argmax(latest.emotion)
	}

	return FusedState{
		Dominant:     dominant,
		Confidence:   confidence,
		Audio:        ModalityEmotion{Emotion: audioLabel, Confidence: audioConf, Scores: audioDist.ToMap()},
		Video:        ModalityEmotion{Emotion: videoLabel, Confidence: videoConf, Scores: videoDist.ToMap()},
		FusedScores:  fused.ToMap(),
		Incongruence: incongruentAt(e.threshold, audioLabel, audioConf, videoLabel, videoConf),
	}
}

// latest picks the newer of the two windows' most recent readings. Audio wins
// an exact timestamp tie.
func (e *Engine) latest() (Reading, bool) {
	a, okA := e.audio.Latest()
	v, okV := e.video.Latest()
	switch {
	case okA && okV:
		if v.timestamp.After(a.timestamp) {
			return v, true
		}
		return a, true
	case okA:
		return a, true
	case okV:
		return v, true
	}
	return Reading{}, false
}

// Len reports how many readings each window currently holds.
func (e *Engine) Len() (audio, video int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.audio.Len(), e.video.Len()
}

// Reset drops every stored reading.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audio.Clear()
	e.video.Clear()
}
