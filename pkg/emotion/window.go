package emotion

import (
	"fmt"
	"math"
	"time"
)

const (
	DefaultWindowSize = 10
	DefaultHalfLife   = 10 * time.Second
)

// Window is a bounded, insertion-ordered history of readings for one modality.
// Eviction is by count only; old readings fade through decay, not expiry.
type Window struct {
	modality Modality
	capacity int
	halfLife time.Duration
	readings []Reading
}

func NewWindow(m Modality, capacity int, halfLife time.Duration) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	if halfLife <= 0 {
		halfLife = DefaultHalfLife
	}
	return &Window{
		modality: m,
		capacity: capacity,
		halfLife: halfLife,
		readings: make([]Reading, 0, capacity),
	}
}

func (w *Window) Modality() Modality { return w.modality }

func (w *Window) Len() int { return len(w.readings) }

// Push appends r and drops the oldest entry once capacity is exceeded.
// Readings of the other modality are refused.
func (w *Window) Push(r Reading) error {
	if r.modality != w.modality {
		return fmt.Errorf("%w: %s reading pushed to %s window", ErrModalityMismatch, r.modality, w.modality)
	}
	if len(w.readings) == w.capacity {
		copy(w.readings, w.readings[1:])
		w.readings = w.readings[:len(w.readings)-1]
	}
	w.readings = append(w.readings, r)
	return nil
}

// Readings returns a copy of the stored readings, oldest first.
func (w *Window) Readings() []Reading {
	out := make([]Reading, len(w.readings))
	copy(out, w.readings)
	return out
}

// Latest returns the most recently inserted reading.
func (w *Window) Latest() (Reading, bool) {
	if len(w.readings) == 0 {
		return Reading{}, false
	}
	return w.readings[len(w.readings)-1], true
}

func (w *Window) Clear() {
	w.readings = w.readings[:0]
}

// Weight is the recency weight of a reading observed at ts: 1 at age zero,
// halving every halfLife. Timestamps after now count as age zero.
func Weight(ts, now time.Time, halfLife time.Duration) float64 {
	age := now.Sub(ts)
	if age <= 0 {
		return 1
	}
	return math.Exp2(-age.Seconds() / halfLife.Seconds())
}

// WeightedDistribution averages the readings' score vectors by recency weight.
// An empty window yields all zeros.
func (w *Window) WeightedDistribution(now time.Time) Distribution {
	dist := NewDistribution()
	var total float64
	for _, r := range w.readings {
		weight := Weight(r.timestamp, now, w.halfLife)
		total += weight
		for _, l := range Labels {
			dist[l] += weight * r.scores[l]
		}
	}
	if total == 0 {
		return NewDistribution()
	}
	for _, l := range Labels {
		dist[l] /= total
	}
	return dist
}

// DominantAndConfidence returns the top label of the weighted distribution.
// Ties go to the most recently inserted reading's label.
func (w *Window) DominantAndConfidence(now time.Time) (Label, float64) {
	l, c, _ := w.aggregate(now)
	return l, c
}

func (w *Window) aggregate(now time.Time) (Label, float64, Distribution) {
	dist := w.WeightedDistribution(now)
	latest, ok := w.Latest()
	if !ok {
		return Neutral, 0, dist
	}
	l, c := dist.Argmax(latest.emotion)
	return l, c, dist
}
