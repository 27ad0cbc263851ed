package controller

import (
	"context"
	"time"

	"therapist-bot-be/internal/dto"
	"therapist-bot-be/internal/pkg/serverutils"
	"therapist-bot-be/internal/service"
	"therapist-bot-be/pkg/analyzer"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const probeTimeout = 2 * time.Second

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

// HealthDeps lists what the health check reports on. Nil members are
// reported as disabled.
type HealthDeps struct {
	LLMName       string
	Analyzer      analyzer.IAnalyzer
	NatsConnected func() bool
	Redis         *redis.Client
	Sessions      service.ISessionService
}

type healthController struct {
	deps HealthDeps
}

func NewHealthController(deps HealthDeps) IHealthController {
	return &healthController{deps: deps}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
}

// Health always answers 200; degraded collaborators only change the fields.
func (c *healthController) Health(ctx *fiber.Ctx) error {
	pctx, cancel := context.WithTimeout(ctx.UserContext(), probeTimeout)
	defer cancel()

	res := dto.HealthResponse{
		Status:   dto.ComponentOK,
		LLM:      c.deps.LLMName,
		Analyzer: dto.ComponentDisabled,
		Nats:     dto.ComponentDisabled,
		Redis:    dto.ComponentDisabled,
		Sessions: c.deps.Sessions.Count(),
	}

	if c.deps.Analyzer != nil {
		res.Analyzer = status(c.deps.Analyzer.Ping(pctx) == nil)
	}
	if c.deps.NatsConnected != nil {
		res.Nats = status(c.deps.NatsConnected())
	}
	if c.deps.Redis != nil {
		res.Redis = status(c.deps.Redis.Ping(pctx).Err() == nil)
	}

	return ctx.JSON(serverutils.SuccessResponse("Service healthy", res))
}

func status(ok bool) string {
	if ok {
		return dto.ComponentOK
	}
	return dto.ComponentDown
}
