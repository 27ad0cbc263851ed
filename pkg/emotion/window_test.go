package emotion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func mustReading(t *testing.T, m Modality, emotion string, confidence float64, scores map[string]float64, ts time.Time) Reading {
	t.Helper()
	r, err := NewReading(m, emotion, confidence, scores, ts)
	require.NoError(t, err)
	return r
}

func TestWeight(t *testing.T) {
	assert.Equal(t, 1.0, Weight(t0, t0, DefaultHalfLife))
	assert.InDelta(t, 0.5, Weight(t0, t0.Add(10*time.Second), DefaultHalfLife), 1e-9)
	assert.InDelta(t, 0.25, Weight(t0, t0.Add(20*time.Second), DefaultHalfLife), 1e-9)
	assert.InDelta(t, 0.03125, Weight(t0, t0.Add(50*time.Second), DefaultHalfLife), 1e-9)

	// readings stamped after now are treated as fresh
	assert.Equal(t, 1.0, Weight(t0.Add(time.Second), t0, DefaultHalfLife))
}

func TestWeightStrictlyDecreasing(t *testing.T) {
	prev := Weight(t0, t0, DefaultHalfLife)
	for ms := 250; ms <= 60_000; ms += 250 {
		w := Weight(t0, t0.Add(time.Duration(ms)*time.Millisecond), DefaultHalfLife)
		require.Less(t, w, prev, "weight at %dms", ms)
		prev = w
	}
}

func TestWindowBounded(t *testing.T) {
	w := NewWindow(Audio, DefaultWindowSize, DefaultHalfLife)
	for i := 0; i < 15; i++ {
		w.Push(mustReading(t, Audio, "happy", float64(i)/20, nil, t0.Add(time.Duration(i)*time.Second)))
	}

	readings := w.Readings()
	require.Len(t, readings, 10)
	assert.Equal(t, t0.Add(5*time.Second), readings[0].Timestamp())
	assert.Equal(t, t0.Add(14*time.Second), readings[9].Timestamp())
}

func TestWindowEmpty(t *testing.T) {
	w := NewWindow(Video, DefaultWindowSize, DefaultHalfLife)

	label, conf := w.DominantAndConfidence(t0)
	assert.Equal(t, Neutral, label)
	assert.Zero(t, conf)
	for _, l := range Labels {
		assert.Zero(t, w.WeightedDistribution(t0)[l])
	}
}

func TestWindowWeightedDistribution(t *testing.T) {
	w := NewWindow(Audio, DefaultWindowSize, DefaultHalfLife)
	w.Push(mustReading(t, Audio, "sad", 1.0, nil, t0))
	w.Push(mustReading(t, Audio, "happy", 1.0, nil, t0.Add(10*time.Second)))

	now := t0.Add(10 * time.Second)
	dist := w.WeightedDistribution(now)

	// sad carries weight 0.5, happy weight 1
	assert.InDelta(t, 0.5/1.5, dist[Sad], 1e-9)
	assert.InDelta(t, 1.0/1.5, dist[Happy], 1e-9)

	label, conf := w.DominantAndConfidence(now)
	assert.Equal(t, Happy, label)
	assert.InDelta(t, 1.0/1.5, conf, 1e-9)
}

func TestWindowPartialScores(t *testing.T) {
	w := NewWindow(Audio, DefaultWindowSize, DefaultHalfLife)
	w.Push(mustReading(t, Audio, "angry", 0.7, map[string]float64{"angry": 0.7, "sad": 0.2}, t0))

	dist := w.WeightedDistribution(t0)
	assert.InDelta(t, 0.7, dist[Angry], 1e-9)
	assert.InDelta(t, 0.2, dist[Sad], 1e-9)
	assert.Zero(t, dist[Happy])
}

func TestWindowTieBreak(t *testing.T) {
	tests := []struct {
		name     string
		readings []Reading
		want     Label
	}{
		{
			name: "tie goes to most recent reading",
			readings: []Reading{
				mustReading(t, Audio, "happy", 0.5, nil, t0),
				mustReading(t, Audio, "sad", 0.5, nil, t0),
			},
			want: Sad,
		},
		{
			name: "insertion order wins over timestamp order",
			readings: []Reading{
				mustReading(t, Audio, "sad", 0.5, nil, t0),
				mustReading(t, Audio, "happy", 0.5, nil, t0),
			},
			want: Happy,
		},
		{
			name: "canonical order when recent label is not tied",
			readings: []Reading{
				mustReading(t, Audio, "surprised", 0.5, map[string]float64{"angry": 0.5, "happy": 0.5}, t0),
			},
			want: Happy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWindow(Audio, DefaultWindowSize, DefaultHalfLife)
			for _, r := range tt.readings {
				w.Push(r)
			}
			got, _ := w.DominantAndConfidence(t0)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWindowClear(t *testing.T) {
	w := NewWindow(Audio, 3, DefaultHalfLife)
	w.Push(mustReading(t, Audio, "happy", 1, nil, t0))
	w.Clear()

	assert.Zero(t, w.Len())
	_, ok := w.Latest()
	assert.False(t, ok)
}

func TestWindowRejectsOtherModality(t *testing.T) {
	w := NewWindow(Audio, 3, DefaultHalfLife)
	require.NoError(t, w.Push(mustReading(t, Audio, "sad", 0.5, nil, t0)))

	err := w.Push(mustReading(t, Video, "happy", 0.9, nil, t0))
	assert.ErrorIs(t, err, ErrModalityMismatch)
	assert.Equal(t, 1, w.Len())

	latest, _ := w.Latest()
	assert.Equal(t, Sad, latest.Emotion())
}
