package controller

import (
	"therapist-bot-be/internal/dto"
	"therapist-bot-be/internal/pkg/serverutils"
	"therapist-bot-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Emotion(ctx *fiber.Ctx) error
	Reset(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type sessionController struct {
	service service.ISessionService
}

func NewSessionController(service service.ISessionService) ISessionController {
	return &sessionController{service: service}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/sessions")
	h.Post("", c.Create)
	h.Get(":id/emotion", c.Emotion)
	h.Post(":id/reset", c.Reset)
	h.Delete(":id", c.Delete)
}

func (c *sessionController) Create(ctx *fiber.Ctx) error {
	session := c.service.Create(ctx.UserContext())

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create session", dto.SessionResponse{
		SessionID: session.ID,
		CreatedAt: session.CreatedAt,
	}))
}

func (c *sessionController) Emotion(ctx *fiber.Ctx) error {
	session, err := c.service.Get(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}

	audio, video := session.Engine.Len()
	return ctx.JSON(serverutils.SuccessResponse("Success get emotion state", dto.SessionStateResponse{
		SessionID:     session.ID,
		State:         session.Engine.CurrentState(),
		Messages:      session.MessageCount(),
		AudioReadings: audio,
		VideoReadings: video,
	}))
}

func (c *sessionController) Reset(ctx *fiber.Ctx) error {
	if err := c.service.Reset(ctx.UserContext(), ctx.Params("id")); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Success reset session", nil))
}

func (c *sessionController) Delete(ctx *fiber.Ctx) error {
	if err := c.service.End(ctx.UserContext(), ctx.Params("id")); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete session", nil))
}
