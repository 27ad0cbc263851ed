// Package analyzer talks to the audio analysis sidecar that runs speech
// emotion recognition and transcription on uploaded clips.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"therapist-bot-be/pkg/align"

	"github.com/go-resty/resty/v2"
)

var ErrNotConfigured = errors.New("audio analyzer is not configured")

// Result is the sidecar's verdict for one clip. Words and Frames are present
// when the sidecar ran word-level alignment.
type Result struct {
	Transcription string              `json:"transcription"`
	Emotion       string              `json:"emotion"`
	Confidence    float64             `json:"confidence"`
	Scores        map[string]float64  `json:"scores,omitempty"`
	Events        []string            `json:"events,omitempty"`
	Language      string              `json:"language,omitempty"`
	RawText       string              `json:"raw_text,omitempty"`
	Words         []align.WordSegment `json:"words,omitempty"`
	Frames        []align.Frame       `json:"frames,omitempty"`
}

// TaggedText renders the aligned words as inline emotion tags, or "" when the
// sidecar returned no word timings.
func (r Result) TaggedText() string {
	return align.FormatTaggedText(align.AlignEmotions(r.Words, r.Frames))
}

type IAnalyzer interface {
	Analyze(ctx context.Context, filename string, audio io.Reader) (*Result, error)
	Ping(ctx context.Context) error
}

type Client struct {
	http *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

func (c *Client) Analyze(ctx context.Context, filename string, audio io.Reader) (*Result, error) {
	if filename == "" {
		filename = "audio.wav"
	}

	var out Result
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", filename, audio).
		SetResult(&out).
		Post("/analyze")
	if err != nil {
		return nil, fmt.Errorf("analyzer request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("analyzer error (status %d): %s", resp.StatusCode(), resp.String())
	}
	return &out, nil
}

func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("analyzer unhealthy (status %d)", resp.StatusCode())
	}
	return nil
}
