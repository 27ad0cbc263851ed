package controller

import (
	"therapist-bot-be/internal/dto"
	"therapist-bot-be/internal/pkg/serverutils"
	"therapist-bot-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Chat(ctx *fiber.Ctx) error
	Voice(ctx *fiber.Ctx) error
}

type chatController struct {
	sessions service.ISessionService
	chat     service.IChatService
	voice    service.IVoiceService
}

func NewChatController(sessions service.ISessionService, chat service.IChatService, voice service.IVoiceService) IChatController {
	return &chatController{sessions: sessions, chat: chat, voice: voice}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	r.Post("/chat", c.Chat)
	r.Post("/chat/voice", c.Voice)
}

// Chat is the non-streaming turn; the websocket streams the same thing.
func (c *chatController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	uctx := ctx.UserContext()
	session, _ := c.sessions.GetOrCreate(uctx, req.SessionID)

	res, err := c.chat.Chat(uctx, session, service.ChatInput{
		Content:      req.Message,
		AudioEmotion: req.AudioEmotion,
		VideoEmotion: req.VideoEmotion,
		TaggedText:   req.TaggedText,
	})
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success chat", dto.ChatResponse{
		SessionID: session.ID,
		Response:  res.Reply,
		Emotion:   res.State,
	}))
}

// Voice runs a spoken turn from an uploaded clip: analysis, tag alignment,
// then a chat turn on the transcription.
func (c *chatController) Voice(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "audio file is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	sessionID := ctx.Query("session_id", ctx.FormValue("session_id"))
	res, err := c.voice.Run(ctx.UserContext(), sessionID, fileHeader.Filename, file)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success voice chat", res.Response()))
}
