package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"therapist-bot-be/internal/dto"
	"therapist-bot-be/internal/pkg/logger"
	"therapist-bot-be/internal/tracer"
	"therapist-bot-be/pkg/analyzer"
	"therapist-bot-be/pkg/emotion"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
)

// Stage names reported in VoiceResult.Timings, in milliseconds.
const (
	TimingAnalysis = "analysis_ms"
	TimingAlign    = "align_ms"
	TimingLLM      = "llm_ms"
	TimingTTS      = "tts_ms"
	TimingTotal    = "total_ms"
)

// VoiceResult is one spoken turn. AudioBase64 stays nil: there is no speech
// synthesis stage, the field keeps the response shape stable for clients.
type VoiceResult struct {
	SessionID     string
	Transcription string
	ResponseText  string
	EmotionTags   string
	TargetEmotion emotion.Label
	AudioBase64   *string
	Timings       map[string]int64
	State         emotion.FusedState
}

func (r *VoiceResult) Response() dto.VoiceChatResponse {
	return dto.VoiceChatResponse{
		SessionID:     r.SessionID,
		Transcription: r.Transcription,
		ResponseText:  r.ResponseText,
		EmotionTags:   r.EmotionTags,
		TargetEmotion: r.TargetEmotion,
		AudioBase64:   r.AudioBase64,
		Timings:       r.Timings,
		Emotion:       r.State,
	}
}

type IVoiceService interface {
	// Run analyzes the clip, records its voice emotion and answers the
	// transcription with the aligned emotion tags in the prompt.
	Run(ctx context.Context, sessionID, filename string, audio io.Reader) (*VoiceResult, error)
}

type voiceService struct {
	analyzer analyzer.IAnalyzer // nil when no sidecar is configured
	sessions ISessionService
	emotions IEmotionService
	chat     IChatService
	logger   logger.ILogger
}

func NewVoiceService(audioAnalyzer analyzer.IAnalyzer, sessions ISessionService, emotions IEmotionService, chat IChatService, log logger.ILogger) IVoiceService {
	return &voiceService{
		analyzer: audioAnalyzer,
		sessions: sessions,
		emotions: emotions,
		chat:     chat,
		logger:   log,
	}
}

func (s *voiceService) Run(ctx context.Context, sessionID, filename string, audio io.Reader) (*VoiceResult, error) {
	if s.analyzer == nil {
		return nil, fiber.NewError(fiber.StatusServiceUnavailable, analyzer.ErrNotConfigured.Error())
	}

	ctx, span := tracer.Start(ctx, "voice.turn")
	defer span.End()

	start := time.Now()
	timings := map[string]int64{TimingTTS: 0}

	result, err := s.analyzer.Analyze(ctx, filename, audio)
	timings[TimingAnalysis] = time.Since(start).Milliseconds()
	if err != nil {
		s.logger.Warn("VoiceService", "Audio analysis failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		return nil, fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	// The session is only materialized once there is something to put in it.
	session, _ := s.sessions.GetOrCreate(ctx, sessionID)
	span.SetAttributes(attribute.String("session.id", session.ID))

	out := &VoiceResult{
		SessionID:     session.ID,
		Transcription: strings.TrimSpace(result.Transcription),
		TargetEmotion: emotion.Neutral,
		Timings:       timings,
	}

	if out.Transcription == "" {
		out.State = session.Engine.CurrentState()
		timings[TimingAlign], timings[TimingLLM] = 0, 0
		timings[TimingTotal] = time.Since(start).Milliseconds()
		return out, nil
	}

	if _, err := s.emotions.RecordAudio(ctx, session, result.Emotion, result.Confidence, result.Scores); err != nil {
		if !errors.Is(err, emotion.ErrInvalidLabel) && !errors.Is(err, emotion.ErrInvalidConfidence) {
			return nil, err
		}
		s.logger.Info("VoiceService", "Analyzer emotion ignored", map[string]interface{}{"session_id": session.ID, "emotion": result.Emotion})
	}

	alignStart := time.Now()
	out.EmotionTags = result.TaggedText()
	timings[TimingAlign] = time.Since(alignStart).Milliseconds()

	llmStart := time.Now()
	res, err := s.chat.Chat(ctx, session, ChatInput{
		Content:    out.Transcription,
		TaggedText: out.EmotionTags,
	})
	timings[TimingLLM] = time.Since(llmStart).Milliseconds()
	if err != nil {
		return nil, err
	}

	out.ResponseText = res.Reply
	out.State = res.State
	out.TargetEmotion = res.State.Dominant
	timings[TimingTotal] = time.Since(start).Milliseconds()
	return out, nil
}
