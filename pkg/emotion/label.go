package emotion

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidLabel      = errors.New("invalid emotion label")
	ErrInvalidConfidence = errors.New("invalid confidence")
	ErrModalityMismatch  = errors.New("modality mismatch")
)

// Label is one of the seven canonical emotions.
type Label string

const (
	Happy     Label = "happy"
	Sad       Label = "sad"
	Angry     Label = "angry"
	Neutral   Label = "neutral"
	Fearful   Label = "fearful"
	Disgusted Label = "disgusted"
	Surprised Label = "surprised"
)

// Labels is the canonical ordering. Tie-breaks fall back to this order.
var Labels = [...]Label{Happy, Sad, Angry, Neutral, Fearful, Disgusted, Surprised}

// ParseLabel accepts any casing and surrounding whitespace but never coerces
// an unknown label to a known one.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLabel, s)
	}
	return l, nil
}

func (l Label) Valid() bool {
	for _, known := range Labels {
		if l == known {
			return true
		}
	}
	return false
}

func (l Label) String() string {
	return string(l)
}

// Distribution maps every canonical label to a score.
type Distribution map[Label]float64

// NewDistribution returns a distribution with all seven labels at zero.
func NewDistribution() Distribution {
	d := make(Distribution, len(Labels))
	for _, l := range Labels {
		d[l] = 0
	}
	return d
}

// ParseScores validates a producer-supplied score map. Keys must be canonical
// labels and values must lie in [0,1]. Missing labels score zero. Two keys
// naming the same label ("Happy" and "happy") are rejected.
func ParseScores(raw map[string]float64) (Distribution, error) {
	d := NewDistribution()
	seen := make(map[Label]bool, len(raw))
	for k, v := range raw {
		l, err := ParseLabel(k)
		if err != nil {
			return nil, err
		}
		if seen[l] {
			return nil, fmt.Errorf("%w: duplicate score for %s", ErrInvalidLabel, l)
		}
		seen[l] = true
		if err := checkConfidence(v); err != nil {
			return nil, fmt.Errorf("score for %s: %w", l, err)
		}
		d[l] = v
	}
	return d, nil
}

// TopScore validates a score vector and returns its highest label and score.
// An empty vector carries no label and is rejected.
func TopScore(scores map[string]float64) (Label, float64, error) {
	if len(scores) == 0 {
		return "", 0, fmt.Errorf("%w: empty score vector", ErrInvalidLabel)
	}
	dist, err := ParseScores(scores)
	if err != nil {
		return "", 0, err
	}
	label, score := dist.Argmax("")
	return label, score, nil
}

// Argmax returns the highest scoring label. When several labels share the top
// score, preferred wins if it is among them, otherwise the first tied label in
// canonical order.
func (d Distribution) Argmax(preferred Label) (Label, float64) {
	best := Labels[0]
	bestScore := d[best]
	for _, l := range Labels[1:] {
		if d[l] > bestScore {
			best, bestScore = l, d[l]
		}
	}
	if preferred != "" && preferred != best && d[preferred] == bestScore {
		return preferred, bestScore
	}
	return best, bestScore
}

// ToMap flattens the distribution for JSON encoding.
func (d Distribution) ToMap() map[string]float64 {
	out := make(map[string]float64, len(Labels))
	for _, l := range Labels {
		out[string(l)] = d[l]
	}
	return out
}

func checkConfidence(c float64) error {
	// NaN fails both comparisons, so test the accepted range directly.
	if !(c >= 0 && c <= 1) {
		return fmt.Errorf("%w: %v not in [0,1]", ErrInvalidConfidence, c)
	}
	return nil
}
