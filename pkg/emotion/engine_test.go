package emotion

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(opts ...Option) (*Engine, *fakeClock) {
	clock := &fakeClock{now: t0}
	return NewEngine(append([]Option{WithClock(clock.Now)}, opts...)...), clock
}

func TestEngineEmptyState(t *testing.T) {
	e, _ := newTestEngine()

	state := e.CurrentState()
	assert.Equal(t, Neutral, state.Dominant)
	assert.Zero(t, state.Confidence)
	assert.False(t, state.Incongruence)
	assert.Equal(t, NeutralState(), state)
}

func TestEngineFusionWeights(t *testing.T) {
	e, _ := newTestEngine()
	require.NoError(t, e.RecordAudioReading("happy", 1.0, nil))
	require.NoError(t, e.RecordVideoReading("sad", 1.0))

	state := e.CurrentState()
	assert.InDelta(t, 0.6, state.FusedScores["happy"], 1e-6)
	assert.InDelta(t, 0.4, state.FusedScores["sad"], 1e-6)
	assert.Equal(t, Happy, state.Dominant)
	assert.InDelta(t, 0.6, state.Confidence, 1e-6)
	assert.Equal(t, Happy, state.Audio.Emotion)
	assert.Equal(t, Sad, state.Video.Emotion)
	assert.True(t, state.Incongruence)
}

func TestEngineSingleModality(t *testing.T) {
	e, _ := newTestEngine()
	require.NoError(t, e.RecordVideoReading("angry", 0.9))

	state := e.CurrentState()
	assert.Equal(t, Angry, state.Dominant)
	assert.InDelta(t, 0.36, state.Confidence, 1e-6)
	assert.Equal(t, Neutral, state.Audio.Emotion)
	assert.Zero(t, state.Audio.Confidence)
	assert.False(t, state.Incongruence)
}

func TestEngineIncongruenceThreshold(t *testing.T) {
	tests := []struct {
		name        string
		audioConf   float64
		videoConf   float64
		incongruent bool
	}{
		{"both confident", 0.5, 0.5, true},
		{"audio below threshold", 0.3, 0.9, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine()
			require.NoError(t, e.RecordAudioReading("happy", tt.audioConf, nil))
			require.NoError(t, e.RecordVideoReading("sad", tt.videoConf))
			assert.Equal(t, tt.incongruent, e.CurrentState().Incongruence)
		})
	}
}

func TestEngineRejectsInvalidLabel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	e, _ := newTestEngine(WithLogger(zap.New(core)))
	before := e.CurrentState()

	err := e.RecordAudioReading("ecstatic", 0.9, nil)
	assert.ErrorIs(t, err, ErrInvalidLabel)

	err = e.RecordVideoReading("happy", 1.5)
	assert.ErrorIs(t, err, ErrInvalidConfidence)

	audio, video := e.Len()
	assert.Zero(t, audio)
	assert.Zero(t, video)
	assert.Equal(t, before, e.CurrentState())
	assert.Equal(t, 2, logs.FilterMessage("reading rejected").Len())
}

func TestEngineIdempotentRead(t *testing.T) {
	e, clock := newTestEngine()
	require.NoError(t, e.RecordAudioReading("sad", 0.8, map[string]float64{"sad": 0.8, "neutral": 0.2}))
	clock.Advance(3 * time.Second)
	require.NoError(t, e.RecordVideoReading("neutral", 0.7))
	clock.Advance(4 * time.Second)

	now := clock.Now()
	assert.Equal(t, e.StateAt(now), e.StateAt(now))
}

func TestEngineDecayShiftsDominant(t *testing.T) {
	e, clock := newTestEngine()
	require.NoError(t, e.RecordAudioReading("sad", 1.0, nil))
	clock.Advance(30 * time.Second)
	require.NoError(t, e.RecordAudioReading("happy", 0.5, nil))

	// sad weight 1/8, happy weight 1
	state := e.CurrentState()
	assert.InDelta(t, 0.125/1.125, state.Audio.Scores["sad"], 1e-9)
	assert.InDelta(t, 0.5/1.125, state.Audio.Scores["happy"], 1e-9)
	assert.Equal(t, Happy, state.Audio.Emotion)
}

func TestEngineFusedTieBreakUsesNewestModality(t *testing.T) {
	e, clock := newTestEngine(WithWeights(Weights{Audio: 0.5, Video: 0.5}))
	require.NoError(t, e.RecordAudioReading("happy", 1.0, nil))
	require.NoError(t, e.RecordVideoReading("sad", 1.0))
	assert.Equal(t, Happy, e.CurrentState().Dominant, "same instant favours audio")

	clock.Advance(time.Millisecond)
	require.NoError(t, e.RecordVideoReading("sad", 1.0))
	assert.Equal(t, Sad, e.CurrentState().Dominant)
}

func TestEngineRecordVideoScores(t *testing.T) {
	e, _ := newTestEngine()
	require.NoError(t, e.RecordVideoScores(map[string]float64{
		"happy": 0.1, "sad": 0.05, "angry": 0.02, "neutral": 0.7,
		"fearful": 0.03, "disgusted": 0.01, "surprised": 0.09,
	}))

	state := e.CurrentState()
	assert.Equal(t, Neutral, state.Video.Emotion)
	assert.InDelta(t, 0.7, state.Video.Confidence, 1e-9)
	assert.InDelta(t, 0.04, state.FusedScores["happy"], 1e-9)

	assert.ErrorIs(t, e.RecordVideoScores(nil), ErrInvalidLabel)
	assert.ErrorIs(t, e.RecordVideoScores(map[string]float64{"calm": 1}), ErrInvalidLabel)
	_, video := e.Len()
	assert.Equal(t, 1, video)
}

func TestEngineWindowSizeOption(t *testing.T) {
	e, clock := newTestEngine(WithWindowSize(3))
	for i := 0; i < 5; i++ {
		require.NoError(t, e.RecordAudioReading("happy", 0.5, nil))
		clock.Advance(time.Second)
	}
	audio, _ := e.Len()
	assert.Equal(t, 3, audio)
}

func TestEngineReset(t *testing.T) {
	e, _ := newTestEngine()
	require.NoError(t, e.RecordAudioReading("angry", 0.9, nil))
	require.NoError(t, e.RecordVideoReading("angry", 0.9))

	e.Reset()
	assert.Equal(t, NeutralState(), e.CurrentState())
}

func TestEngineConcurrentWriters(t *testing.T) {
	e := NewEngine()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = e.RecordAudioReading("sad", 0.6, nil)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = e.RecordVideoReading("neutral", 0.6)
				_ = e.CurrentState()
			}
		}()
	}
	wg.Wait()

	audio, video := e.Len()
	assert.Equal(t, DefaultWindowSize, audio)
	assert.Equal(t, DefaultWindowSize, video)
}
