package controller

import (
	"errors"
	"strings"
	"time"

	"therapist-bot-be/internal/dto"
	"therapist-bot-be/internal/pkg/serverutils"
	"therapist-bot-be/internal/service"
	"therapist-bot-be/pkg/analyzer"
	"therapist-bot-be/pkg/emotion"

	"github.com/gofiber/fiber/v2"
)

type IEmotionController interface {
	RegisterRoutes(r fiber.Router)
	Update(ctx *fiber.Ctx) error
	AnalyzeAudio(ctx *fiber.Ctx) error
}

type emotionController struct {
	sessions service.ISessionService
	emotions service.IEmotionService
	analyzer analyzer.IAnalyzer // nil when no sidecar is configured
}

func NewEmotionController(sessions service.ISessionService, emotions service.IEmotionService, audioAnalyzer analyzer.IAnalyzer) IEmotionController {
	return &emotionController{
		sessions: sessions,
		emotions: emotions,
		analyzer: audioAnalyzer,
	}
}

func (c *emotionController) RegisterRoutes(r fiber.Router) {
	r.Post("/emotion-update", c.Update)
	r.Post("/analyze-audio", c.AnalyzeAudio)
}

func (c *emotionController) Update(ctx *fiber.Ctx) error {
	var req dto.EmotionUpdateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	uctx := ctx.UserContext()
	session, err := c.sessions.Get(uctx, req.SessionID)
	if err != nil {
		// A rejected reading must not leave a fresh session behind.
		if err := checkReading(req); err != nil {
			return err
		}
		session = c.sessions.Create(uctx)
	}

	var state emotion.FusedState
	switch {
	case isAudio(req):
		state, err = c.emotions.RecordAudio(uctx, session, req.Label(), req.Confidence, req.Scores)
	case isScoresOnly(req):
		state, err = c.emotions.RecordVideoScores(uctx, session, req.Scores)
	default:
		state, err = c.emotions.RecordVideo(uctx, session, req.Label(), req.Confidence)
	}
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success update emotion", dto.EmotionUpdateResponse{
		SessionID: session.ID,
		State:     state,
	}))
}

// AnalyzeAudio forwards an uploaded clip to the analysis sidecar and records
// the voice emotion it reports.
func (c *emotionController) AnalyzeAudio(ctx *fiber.Ctx) error {
	if c.analyzer == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, analyzer.ErrNotConfigured.Error())
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "audio file is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	uctx := ctx.UserContext()
	result, err := c.analyzer.Analyze(uctx, fileHeader.Filename, file)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	session, _ := c.sessions.GetOrCreate(uctx, ctx.Query("session_id", ctx.FormValue("session_id")))

	state, err := c.emotions.RecordAudio(uctx, session, result.Emotion, result.Confidence, result.Scores)
	if err != nil {
		if !errors.Is(err, emotion.ErrInvalidLabel) && !errors.Is(err, emotion.ErrInvalidConfidence) {
			return err
		}
		// The sidecar reported something outside the label set. Return the
		// analysis anyway with the untouched state.
		state = session.Engine.CurrentState()
	}

	return ctx.JSON(serverutils.SuccessResponse("Success analyze audio", dto.AnalyzeAudioResponse{
		SessionID:  session.ID,
		Result:     *result,
		TaggedText: result.TaggedText(),
		State:      state,
	}))
}

func isAudio(req dto.EmotionUpdateRequest) bool {
	return strings.EqualFold(req.Modality, emotion.Audio.String())
}

func isScoresOnly(req dto.EmotionUpdateRequest) bool {
	return !isAudio(req) && req.Label() == "" && len(req.Scores) > 0
}

// checkReading applies the engine's validation without recording anything.
func checkReading(req dto.EmotionUpdateRequest) error {
	if isScoresOnly(req) {
		_, _, err := emotion.TopScore(req.Scores)
		return err
	}
	if isAudio(req) {
		_, err := emotion.NewReading(emotion.Audio, req.Label(), req.Confidence, req.Scores, time.Time{})
		return err
	}
	_, err := emotion.NewReading(emotion.Video, req.Label(), req.Confidence, nil, time.Time{})
	return err
}
