// Package align attaches speech-emotion frames to ASR word timings and renders
// the result as inline emotion tags for the language model.
package align

import (
	"strings"

	"therapist-bot-be/pkg/emotion"
)

// WordSegment is one recognized word with its time span in seconds.
type WordSegment struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Frame is one speech-emotion-recognition output at a point in the clip.
// Confidence defaults to 1 when absent.
type Frame struct {
	Timestamp  float64            `json:"timestamp"`
	Emotion    string             `json:"emotion,omitempty"`
	Confidence *float64           `json:"confidence,omitempty"`
	Scores     map[string]float64 `json:"scores,omitempty"`
}

func (f Frame) weight() float64 {
	if f.Confidence == nil {
		return 1
	}
	return *f.Confidence
}

// WordEmotion is a word annotated with the frames that fell inside it.
type WordEmotion struct {
	Word       string             `json:"word"`
	Start      float64            `json:"start"`
	End        float64            `json:"end"`
	Emotion    emotion.Label      `json:"emotion"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores,omitempty"`
}

// AlignEmotions assigns every word the aggregate of frames with
// start <= timestamp < end. Words without frames come out neutral at zero
// confidence.
func AlignEmotions(words []WordSegment, frames []Frame) []WordEmotion {
	if len(words) == 0 {
		return nil
	}

	out := make([]WordEmotion, 0, len(words))
	for _, w := range words {
		end := w.End
		if end < w.Start {
			end = w.Start
		}

		var matched []Frame
		for _, f := range frames {
			if w.Start <= f.Timestamp && f.Timestamp < end {
				matched = append(matched, f)
			}
		}

		label, conf, scores := aggregate(matched)
		out = append(out, WordEmotion{
			Word:       w.Word,
			Start:      w.Start,
			End:        end,
			Emotion:    label,
			Confidence: conf,
			Scores:     scores,
		})
	}
	return out
}

// aggregate averages frames by their confidence. Frames that carry a score
// vector contribute the whole vector; label-only frames contribute their label.
// Frames with labels outside the canonical set are skipped.
func aggregate(frames []Frame) (emotion.Label, float64, map[string]float64) {
	if len(frames) == 0 {
		return emotion.Neutral, 0, nil
	}

	dist := emotion.NewDistribution()
	var total float64
	for _, f := range frames {
		w := f.weight()
		if len(f.Scores) > 0 {
			for _, l := range emotion.Labels {
				dist[l] += f.Scores[l.String()] * w
			}
			total += w
			continue
		}

		l, err := emotion.ParseLabel(f.Emotion)
		if err != nil {
			continue
		}
		dist[l] += w
		total += w
	}

	if total <= 0 {
		return emotion.Neutral, 0, nil
	}
	for _, l := range emotion.Labels {
		dist[l] /= total
	}

	label, conf := dist.Argmax("")
	if conf <= 0 {
		return emotion.Neutral, 0, dist.ToMap()
	}
	return label, conf, dist.ToMap()
}

// FormatTaggedText groups consecutive words sharing an emotion:
// "<sad>I am fine</sad> <happy>really</happy>".
func FormatTaggedText(words []WordEmotion) string {
	if len(words) == 0 {
		return ""
	}

	var segments []string
	current := words[0].Emotion
	run := []string{words[0].Word}

	flush := func() {
		segments = append(segments, "<"+string(current)+">"+strings.Join(run, " ")+"</"+string(current)+">")
	}

	for _, w := range words[1:] {
		if w.Emotion == current {
			run = append(run, w.Word)
			continue
		}
		flush()
		current = w.Emotion
		run = []string{w.Word}
	}
	flush()

	return strings.Join(segments, " ")
}
