package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"therapist-bot-be/internal/config"
	"therapist-bot-be/internal/dto"
	"therapist-bot-be/internal/metrics"
	"therapist-bot-be/internal/pkg/logger"
	"therapist-bot-be/internal/pkg/serverutils"
	"therapist-bot-be/internal/repository/memory"
	"therapist-bot-be/internal/service"
	"therapist-bot-be/pkg/align"
	"therapist-bot-be/pkg/analyzer"
	"therapist-bot-be/pkg/emotion"
	"therapist-bot-be/pkg/events"
	"therapist-bot-be/pkg/llm"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLM struct {
	reply string
	err   error
}

func (s *stubLLM) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	return s.reply, s.err
}

func (s *stubLLM) ChatStream(_ context.Context, _ []llm.Message, onToken llm.TokenHandler, _ ...llm.Option) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, onToken(s.reply)
}

func (s *stubLLM) Name() string { return "stub" }

type stubAnalyzer struct {
	result  *analyzer.Result
	err     error
	gotName string
	gotBody []byte
}

func (a *stubAnalyzer) Analyze(_ context.Context, filename string, audio io.Reader) (*analyzer.Result, error) {
	a.gotName = filename
	a.gotBody, _ = io.ReadAll(audio)
	return a.result, a.err
}

func (a *stubAnalyzer) Ping(context.Context) error { return a.err }

type testApp struct {
	app      *fiber.App
	sessions service.ISessionService
}

func newTestApp(t *testing.T, provider llm.LLMProvider, audio analyzer.IAnalyzer) *testApp {
	t.Helper()

	m := metrics.New()
	log := logger.NewNop()
	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	fusion := config.FusionConfig{
		WindowSize:            10,
		HalfLife:              10 * time.Second,
		AudioWeight:           0.6,
		VideoWeight:           0.4,
		IncongruenceThreshold: 0.4,
	}
	sessions := service.NewSessionService(memory.NewSessionRepository(time.Hour), fusion, events.NopPublisher{}, m, log)
	emotions := service.NewEmotionService(sessions, bus, m, log)
	chat := service.NewChatService(provider, emotions, m, log)
	voice := service.NewVoiceService(audio, sessions, emotions, chat, log)

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	api := app.Group("/api")

	NewHealthController(HealthDeps{LLMName: provider.Name(), Analyzer: audio, Sessions: sessions}).RegisterRoutes(api)
	NewSessionController(sessions).RegisterRoutes(api)
	NewEmotionController(sessions, emotions, audio).RegisterRoutes(api)
	NewChatController(sessions, chat, voice).RegisterRoutes(api)

	return &testApp{app: app, sessions: sessions}
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}) (*http.Response, serverutils.BaseResponse[json.RawMessage]) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return a.send(t, req)
}

func (a *testApp) send(t *testing.T, req *http.Request) (*http.Response, serverutils.BaseResponse[json.RawMessage]) {
	t.Helper()
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)

	var out serverutils.BaseResponse[json.RawMessage]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestSessionLifecycle(t *testing.T) {
	ta := newTestApp(t, &stubLLM{reply: "hi"}, nil)

	resp, body := ta.do(t, "POST", "/api/sessions", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	created := decode[dto.SessionResponse](t, body.Data)
	require.NotEmpty(t, created.SessionID)

	resp, _ = ta.do(t, "POST", "/api/emotion-update", map[string]interface{}{
		"session_id": created.SessionID,
		"emotion":    "sad",
		"confidence": 0.9,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body = ta.do(t, "GET", "/api/sessions/"+created.SessionID+"/emotion", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	state := decode[dto.SessionStateResponse](t, body.Data)
	assert.Equal(t, emotion.Sad, state.State.Video.Emotion)
	assert.Equal(t, 1, state.VideoReadings)

	resp, _ = ta.do(t, "POST", "/api/sessions/"+created.SessionID+"/reset", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	_, body = ta.do(t, "GET", "/api/sessions/"+created.SessionID+"/emotion", nil)
	assert.Equal(t, 0, decode[dto.SessionStateResponse](t, body.Data).VideoReadings)

	resp, _ = ta.do(t, "DELETE", "/api/sessions/"+created.SessionID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body = ta.do(t, "GET", "/api/sessions/"+created.SessionID+"/emotion", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.False(t, body.Success)
}

func TestEmotionUpdate(t *testing.T) {
	ta := newTestApp(t, &stubLLM{reply: "hi"}, nil)

	t.Run("creates a session when none is given", func(t *testing.T) {
		resp, body := ta.do(t, "POST", "/api/emotion-update", map[string]interface{}{
			"modality":   "audio",
			"emotion":    "angry",
			"confidence": 0.7,
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		out := decode[dto.EmotionUpdateResponse](t, body.Data)
		assert.NotEmpty(t, out.SessionID)
		assert.Equal(t, emotion.Angry, out.State.Audio.Emotion)
		assert.Equal(t, emotion.Angry, out.State.Dominant)
	})

	t.Run("legacy video_emotion field", func(t *testing.T) {
		resp, body := ta.do(t, "POST", "/api/emotion-update", map[string]interface{}{
			"video_emotion": "happy",
			"confidence":    0.6,
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, emotion.Happy, decode[dto.EmotionUpdateResponse](t, body.Data).State.Video.Emotion)
	})

	t.Run("score vector", func(t *testing.T) {
		resp, body := ta.do(t, "POST", "/api/emotion-update", map[string]interface{}{
			"scores": map[string]float64{"fearful": 0.6, "neutral": 0.4},
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, emotion.Fearful, decode[dto.EmotionUpdateResponse](t, body.Data).State.Video.Emotion)
	})

	t.Run("unknown label", func(t *testing.T) {
		resp, body := ta.do(t, "POST", "/api/emotion-update", map[string]interface{}{"emotion": "bored", "confidence": 0.5})
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, body.Message, "invalid emotion label")
	})

	t.Run("confidence out of range", func(t *testing.T) {
		resp, _ := ta.do(t, "POST", "/api/emotion-update", map[string]interface{}{"emotion": "sad", "confidence": 1.2})
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("bad modality", func(t *testing.T) {
		resp, _ := ta.do(t, "POST", "/api/emotion-update", map[string]interface{}{"modality": "text", "emotion": "sad", "confidence": 0.5})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestEmotionUpdateRejectedCreatesNoSession(t *testing.T) {
	ta := newTestApp(t, &stubLLM{}, nil)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{name: "unknown label", body: map[string]interface{}{"emotion": "bored", "confidence": 0.5}},
		{name: "confidence out of range", body: map[string]interface{}{"modality": "audio", "emotion": "sad", "confidence": 1.5}},
		{name: "unknown score key", body: map[string]interface{}{"scores": map[string]float64{"bored": 1}}},
		{name: "unknown session id", body: map[string]interface{}{"session_id": "gone", "emotion": "bored", "confidence": 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := ta.do(t, "POST", "/api/emotion-update", tt.body)
			assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
			assert.Zero(t, ta.sessions.Count())
		})
	}
}

func TestChat(t *testing.T) {
	ta := newTestApp(t, &stubLLM{reply: "I'm here with you."}, nil)

	resp, body := ta.do(t, "POST", "/api/chat", map[string]interface{}{
		"message":       "I'm fine",
		"audio_emotion": "sad",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	out := decode[dto.ChatResponse](t, body.Data)
	assert.Equal(t, "I'm here with you.", out.Response)
	assert.Equal(t, emotion.Sad, out.Emotion.Dominant)

	session, err := ta.sessions.Get(context.Background(), out.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, session.MessageCount())

	resp, _ = ta.do(t, "POST", "/api/chat", map[string]interface{}{"message": ""})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = ta.do(t, "POST", "/api/chat", map[string]interface{}{"message": "hi", "video_emotion": "bored"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestChatFallback(t *testing.T) {
	ta := newTestApp(t, &stubLLM{err: errors.New("ollama unreachable")}, nil)

	resp, body := ta.do(t, "POST", "/api/chat", map[string]interface{}{"message": "hello"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decode[dto.ChatResponse](t, body.Data).Response)
}

func multipartAudio(t *testing.T, path string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "clip.wav")
	require.NoError(t, err)
	_, err = part.Write([]byte("RIFF....WAVE"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestAnalyzeAudio(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		ta := newTestApp(t, &stubLLM{}, nil)
		resp, _ := ta.send(t, multipartAudio(t, "/api/analyze-audio"))
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("records voice emotion", func(t *testing.T) {
		stub := &stubAnalyzer{result: &analyzer.Result{
			Transcription: "I am fine",
			Emotion:       "sad",
			Confidence:    0.8,
			Words: []align.WordSegment{
				{Word: "I", Start: 0, End: 0.2},
				{Word: "am", Start: 0.2, End: 0.4},
				{Word: "fine", Start: 0.4, End: 0.9},
			},
			Frames: []align.Frame{
				{Timestamp: 0.1, Emotion: "sad"},
				{Timestamp: 0.3, Emotion: "sad"},
				{Timestamp: 0.5, Emotion: "neutral"},
			},
		}}
		ta := newTestApp(t, &stubLLM{}, stub)

		resp, body := ta.send(t, multipartAudio(t, "/api/analyze-audio"))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "clip.wav", stub.gotName)
		assert.Equal(t, "RIFF....WAVE", string(stub.gotBody))

		out := decode[dto.AnalyzeAudioResponse](t, body.Data)
		assert.Equal(t, "I am fine", out.Transcription)
		assert.Equal(t, "<sad>I am</sad> <neutral>fine</neutral>", out.TaggedText)
		assert.Equal(t, emotion.Sad, out.State.Audio.Emotion)
	})

	t.Run("label outside the set", func(t *testing.T) {
		stub := &stubAnalyzer{result: &analyzer.Result{Transcription: "hm", Emotion: "other", Confidence: 0.9}}
		ta := newTestApp(t, &stubLLM{}, stub)

		resp, body := ta.send(t, multipartAudio(t, "/api/analyze-audio"))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, emotion.Neutral, decode[dto.AnalyzeAudioResponse](t, body.Data).State.Dominant)
	})

	t.Run("sidecar failure", func(t *testing.T) {
		ta := newTestApp(t, &stubLLM{}, &stubAnalyzer{err: errors.New("connection refused")})
		resp, _ := ta.send(t, multipartAudio(t, "/api/analyze-audio"))
		assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
		assert.Zero(t, ta.sessions.Count())
	})

	t.Run("missing file", func(t *testing.T) {
		ta := newTestApp(t, &stubLLM{}, &stubAnalyzer{})
		resp, _ := ta.do(t, "POST", "/api/analyze-audio", map[string]string{})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func sadClip() *analyzer.Result {
	return &analyzer.Result{
		Transcription: " I am fine ",
		Emotion:       "sad",
		Confidence:    0.8,
		Words: []align.WordSegment{
			{Word: "I", Start: 0, End: 0.2},
			{Word: "am", Start: 0.2, End: 0.4},
			{Word: "fine", Start: 0.4, End: 0.9},
		},
		Frames: []align.Frame{
			{Timestamp: 0.1, Emotion: "sad"},
			{Timestamp: 0.3, Emotion: "sad"},
			{Timestamp: 0.5, Emotion: "neutral"},
		},
	}
}

func TestVoiceChat(t *testing.T) {
	t.Run("spoken turn", func(t *testing.T) {
		stub := &stubAnalyzer{result: sadClip()}
		ta := newTestApp(t, &stubLLM{reply: "That sounds heavy."}, stub)

		resp, body := ta.send(t, multipartAudio(t, "/api/chat/voice"))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "RIFF....WAVE", string(stub.gotBody))

		var raw map[string]interface{}
		require.NoError(t, json.Unmarshal(body.Data, &raw))
		assert.Contains(t, raw, "audio_base64")
		assert.Nil(t, raw["audio_base64"])

		out := decode[dto.VoiceChatResponse](t, body.Data)
		assert.Equal(t, "I am fine", out.Transcription)
		assert.Equal(t, "That sounds heavy.", out.ResponseText)
		assert.Equal(t, "<sad>I am</sad> <neutral>fine</neutral>", out.EmotionTags)
		assert.Equal(t, emotion.Sad, out.TargetEmotion)
		assert.Equal(t, emotion.Sad, out.Emotion.Audio.Emotion)
		for _, key := range []string{service.TimingAnalysis, service.TimingAlign, service.TimingLLM, service.TimingTTS, service.TimingTotal} {
			assert.Contains(t, out.Timings, key)
		}

		session, err := ta.sessions.Get(context.Background(), out.SessionID)
		require.NoError(t, err)
		assert.Equal(t, []llm.Message{
			{Role: llm.RoleUser, Content: "I am fine"},
			{Role: llm.RoleAssistant, Content: "That sounds heavy."},
		}, session.History())
	})

	t.Run("continues a session", func(t *testing.T) {
		ta := newTestApp(t, &stubLLM{reply: "ok"}, &stubAnalyzer{result: sadClip()})
		existing := ta.sessions.Create(context.Background())

		resp, body := ta.send(t, multipartAudio(t, "/api/chat/voice?session_id="+existing.ID))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, existing.ID, decode[dto.VoiceChatResponse](t, body.Data).SessionID)
		assert.Equal(t, 1, ta.sessions.Count())
	})

	t.Run("silence", func(t *testing.T) {
		ta := newTestApp(t, &stubLLM{reply: "unused"}, &stubAnalyzer{result: &analyzer.Result{Transcription: "  ", Emotion: "sad", Confidence: 0.9}})

		resp, body := ta.send(t, multipartAudio(t, "/api/chat/voice"))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		out := decode[dto.VoiceChatResponse](t, body.Data)
		assert.Empty(t, out.ResponseText)
		assert.Empty(t, out.EmotionTags)
		assert.Equal(t, emotion.Neutral, out.TargetEmotion)
		assert.Nil(t, out.AudioBase64)

		session, err := ta.sessions.Get(context.Background(), out.SessionID)
		require.NoError(t, err)
		assert.Zero(t, session.MessageCount())
	})

	t.Run("not configured", func(t *testing.T) {
		ta := newTestApp(t, &stubLLM{}, nil)
		resp, _ := ta.send(t, multipartAudio(t, "/api/chat/voice"))
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("sidecar failure", func(t *testing.T) {
		ta := newTestApp(t, &stubLLM{}, &stubAnalyzer{err: errors.New("connection refused")})
		resp, _ := ta.send(t, multipartAudio(t, "/api/chat/voice"))
		assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
		assert.Zero(t, ta.sessions.Count())
	})

	t.Run("missing file", func(t *testing.T) {
		ta := newTestApp(t, &stubLLM{}, &stubAnalyzer{result: sadClip()})
		resp, _ := ta.do(t, "POST", "/api/chat/voice", map[string]string{})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestHealth(t *testing.T) {
	ta := newTestApp(t, &stubLLM{}, &stubAnalyzer{err: errors.New("down")})
	ta.sessions.Create(context.Background())

	resp, body := ta.do(t, "GET", "/api/health", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	out := decode[dto.HealthResponse](t, body.Data)
	assert.Equal(t, dto.ComponentOK, out.Status)
	assert.Equal(t, "stub", out.LLM)
	assert.Equal(t, dto.ComponentDown, out.Analyzer)
	assert.Equal(t, dto.ComponentDisabled, out.Nats)
	assert.Equal(t, dto.ComponentDisabled, out.Redis)
	assert.Equal(t, 1, out.Sessions)
}
