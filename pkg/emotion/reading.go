package emotion

import (
	"fmt"
	"time"
)

// Modality identifies which observation channel produced a reading.
type Modality int

const (
	Audio Modality = iota
	Video
)

func (m Modality) String() string {
	switch m {
	case Audio:
		return "audio"
	case Video:
		return "video"
	default:
		return fmt.Sprintf("modality(%d)", int(m))
	}
}

// Reading is a single immutable observation from one modality.
type Reading struct {
	modality   Modality
	emotion    Label
	confidence float64
	scores     Distribution
	timestamp  time.Time
}

// NewReading validates its inputs and builds a Reading. When scores is empty
// the reading carries a one-hot distribution at confidence.
func NewReading(m Modality, emotion string, confidence float64, scores map[string]float64, ts time.Time) (Reading, error) {
	label, err := ParseLabel(emotion)
	if err != nil {
		return Reading{}, err
	}
	if err := checkConfidence(confidence); err != nil {
		return Reading{}, err
	}

	var dist Distribution
	if len(scores) > 0 {
		dist, err = ParseScores(scores)
		if err != nil {
			return Reading{}, err
		}
	} else {
		dist = NewDistribution()
		dist[label] = confidence
	}

	return Reading{
		modality:   m,
		emotion:    label,
		confidence: confidence,
		scores:     dist,
		timestamp:  ts,
	}, nil
}

func (r Reading) Modality() Modality   { return r.modality }
func (r Reading) Emotion() Label       { return r.emotion }
func (r Reading) Confidence() float64  { return r.confidence }
func (r Reading) Timestamp() time.Time { return r.timestamp }

// Score returns the reading's score for l.
func (r Reading) Score(l Label) float64 {
	return r.scores[l]
}
