package analyzer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		body, _ := io.ReadAll(f)
		assert.Equal(t, "clip.webm", hdr.Filename)
		assert.Equal(t, "RIFF", string(body))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"transcription": "I am fine",
			"emotion": "sad",
			"confidence": 0.82,
			"words": [{"word":"I","start":0,"end":0.2},{"word":"am","start":0.2,"end":0.4},{"word":"fine","start":0.4,"end":0.9}],
			"frames": [{"timestamp":0.1,"emotion":"sad"},{"timestamp":0.3,"emotion":"sad"},{"timestamp":0.5,"emotion":"neutral"}]
		}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	res, err := c.Analyze(context.Background(), "clip.webm", strings.NewReader("RIFF"))
	require.NoError(t, err)

	assert.Equal(t, "I am fine", res.Transcription)
	assert.Equal(t, "sad", res.Emotion)
	assert.InDelta(t, 0.82, res.Confidence, 1e-9)
	assert.Equal(t, "<sad>I am</sad> <neutral>fine</neutral>", res.TaggedText())
}

func TestAnalyzeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Analyze(context.Background(), "", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	assert.NoError(t, NewClient(srv.URL, time.Second).Ping(context.Background()))
}

func TestTaggedTextWithoutWords(t *testing.T) {
	assert.Empty(t, Result{Emotion: "happy"}.TaggedText())
}
