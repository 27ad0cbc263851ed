// Command replay feeds a JSON-lines recording of emotion readings through a
// fusion engine on a simulated clock and prints the fused state after each one.
//
//	{"t": 0.0, "modality": "audio", "emotion": "sad", "confidence": 0.8}
//	{"t": 2.5, "modality": "video", "scores": {"happy": 0.7, "neutral": 0.3}}
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"therapist-bot-be/pkg/emotion"
	"therapist-bot-be/pkg/prompt"

	"github.com/fatih/color"
)

type readingLine struct {
	T          float64            `json:"t"` // seconds since the start of the recording
	Modality   string             `json:"modality"`
	Emotion    string             `json:"emotion"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores"`
}

type replayOptions struct {
	windowSize  int
	halfLife    time.Duration
	weights     emotion.Weights
	threshold   float64
	showContext bool
}

func main() {
	var (
		file        = flag.String("file", "", "JSON-lines recording (default stdin)")
		windowSize  = flag.Int("window", emotion.DefaultWindowSize, "readings kept per modality")
		halfLife    = flag.Duration("half-life", emotion.DefaultHalfLife, "decay half-life")
		audioWeight = flag.Float64("audio-weight", emotion.DefaultWeights.Audio, "fusion weight for voice")
		videoWeight = flag.Float64("video-weight", emotion.DefaultWeights.Video, "fusion weight for face")
		threshold   = flag.Float64("threshold", emotion.DefaultIncongruenceThreshold, "incongruence confidence threshold")
		showContext = flag.Bool("context", false, "print the emotion context block sent to the LLM")
	)
	flag.Parse()

	in := io.Reader(os.Stdin)
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			log.Fatalf("open recording: %v", err)
		}
		defer f.Close()
		in = f
	}

	opts := replayOptions{
		windowSize:  *windowSize,
		halfLife:    *halfLife,
		weights:     emotion.Weights{Audio: *audioWeight, Video: *videoWeight},
		threshold:   *threshold,
		showContext: *showContext,
	}
	if err := replay(in, os.Stdout, opts); err != nil {
		log.Fatal(err)
	}
}

func replay(in io.Reader, out io.Writer, opts replayOptions) error {
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start

	engine := emotion.NewEngine(
		emotion.WithWindowSize(opts.windowSize),
		emotion.WithHalfLife(opts.halfLife),
		emotion.WithWeights(opts.weights),
		emotion.WithIncongruenceThreshold(opts.threshold),
		emotion.WithClock(func() time.Time { return now }),
	)

	header := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)
	warn := color.New(color.FgRed, color.Bold)
	rejected := color.New(color.FgYellow)

	scanner := bufio.NewScanner(in)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		var rl readingLine
		if err := json.Unmarshal([]byte(raw), &rl); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}

		at := start.Add(time.Duration(rl.T * float64(time.Second)))
		if at.Before(now) {
			return fmt.Errorf("line %d: t=%.2f goes back in time", lineNo, rl.T)
		}
		now = at

		header.Fprintf(out, "t=%6.2fs %-5s ", rl.T, rl.Modality)
		if err := record(engine, rl); err != nil {
			rejected.Fprintf(out, "rejected: %v\n", err)
			continue
		}

		state := engine.CurrentState()
		labelColor(state.Dominant).Fprintf(out, "%-9s %5.1f%%", state.Dominant, state.Confidence*100)
		dim.Fprintf(out, "  voice=%s(%.2f) face=%s(%.2f)",
			state.Audio.Emotion, state.Audio.Confidence, state.Video.Emotion, state.Video.Confidence)
		if state.Incongruence {
			warn.Fprint(out, "  INCONGRUENT")
		}
		fmt.Fprintln(out)

		if opts.showContext {
			if ctx := prompt.FormatEmotionContext(state); ctx != "" {
				dim.Fprintln(out, strings.TrimSpace(ctx))
			}
		}
	}
	return scanner.Err()
}

func record(engine *emotion.Engine, rl readingLine) error {
	switch strings.ToLower(rl.Modality) {
	case "audio", "voice":
		return engine.RecordAudioReading(rl.Emotion, rl.Confidence, rl.Scores)
	case "video", "face":
		if rl.Emotion == "" && len(rl.Scores) > 0 {
			return engine.RecordVideoScores(rl.Scores)
		}
		return engine.RecordVideoReading(rl.Emotion, rl.Confidence)
	default:
		return fmt.Errorf("unknown modality %q", rl.Modality)
	}
}

func labelColor(l emotion.Label) *color.Color {
	switch l {
	case emotion.Happy:
		return color.New(color.FgGreen, color.Bold)
	case emotion.Sad:
		return color.New(color.FgBlue, color.Bold)
	case emotion.Angry, emotion.Disgusted:
		return color.New(color.FgRed, color.Bold)
	case emotion.Fearful, emotion.Surprised:
		return color.New(color.FgMagenta, color.Bold)
	default:
		return color.New(color.FgWhite)
	}
}
