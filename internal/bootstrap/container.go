package bootstrap

import (
	"context"
	"log"

	"therapist-bot-be/internal/config"
	"therapist-bot-be/internal/constant"
	"therapist-bot-be/internal/controller"
	"therapist-bot-be/internal/handler"
	"therapist-bot-be/internal/metrics"
	"therapist-bot-be/internal/pkg/logger"
	"therapist-bot-be/internal/repository/memory"
	"therapist-bot-be/internal/service"
	"therapist-bot-be/internal/websocket"
	"therapist-bot-be/pkg/analyzer"
	"therapist-bot-be/pkg/events"
	"therapist-bot-be/pkg/llm/factory"
	pktNats "therapist-bot-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	HealthController  controller.IHealthController
	SessionController controller.ISessionController
	EmotionController controller.IEmotionController
	ChatController    controller.IChatController

	// WebSockets
	ChatWsHandler *handler.ChatWsHandler
	WebSocketHub  *websocket.Hub

	// Background Services (Exposed for main.go to run)
	NotifierService service.INotifierService
	EmotionService  service.IEmotionService
	NatsSubscriber  *pktNats.Subscriber // nil without NATS_URL

	Metrics *metrics.Metrics
	Logger  logger.ILogger

	closers []func()
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	appMetrics := metrics.New()

	c := &Container{Metrics: appMetrics, Logger: sysLogger}

	// 2. Event Bus
	// Blocking publish keeps emotion_state frames in reading order.
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64, BlockPublishUntilSubscriberAck: true},
		logger.NewWatermillAdapter(sysLogger),
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 3. Infrastructure
	var publisher events.Publisher = events.NopPublisher{}
	var natsConnected func() bool
	if cfg.App.NatsURL != "" {
		nc, js, err := pktNats.Connect(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS: %v", err)
		} else {
			natsPub := pktNats.NewPublisher(nc, js)
			publisher = natsPub
			natsConnected = natsPub.Connected
			c.NatsSubscriber = pktNats.NewSubscriber(js)
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.BaseURL(),
		cfg.Ai.APIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	var audioAnalyzer analyzer.IAnalyzer
	if cfg.Analyzer.BaseURL != "" {
		audioAnalyzer = analyzer.NewClient(cfg.Analyzer.BaseURL, cfg.Analyzer.Timeout)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	c.WebSocketHub = websocket.NewHub(rdb, appMetrics, wsLogger)

	// 4. Services
	sessionRepo := memory.NewSessionRepository(cfg.App.SessionTTL)
	sessionService := service.NewSessionService(sessionRepo, cfg.Fusion, publisher, appMetrics, sysLogger)
	c.EmotionService = service.NewEmotionService(sessionService, pubSub, appMetrics, sysLogger)
	c.NotifierService = service.NewNotifierService(pubSub, c.WebSocketHub, publisher, appMetrics, sysLogger)
	chatService := service.NewChatService(llmProvider, c.EmotionService, appMetrics, sysLogger)
	voiceService := service.NewVoiceService(audioAnalyzer, sessionService, c.EmotionService, chatService, sysLogger)

	sessionService.OnEnded(c.NotifierService.Forget)
	sessionService.OnEnded(c.WebSocketHub.EndSession)

	// 5. Controllers
	c.HealthController = controller.NewHealthController(controller.HealthDeps{
		LLMName:       llmProvider.Name(),
		Analyzer:      audioAnalyzer,
		NatsConnected: natsConnected,
		Redis:         rdb,
		Sessions:      sessionService,
	})
	c.SessionController = controller.NewSessionController(sessionService)
	c.EmotionController = controller.NewEmotionController(sessionService, c.EmotionService, audioAnalyzer)
	c.ChatController = controller.NewChatController(sessionService, chatService, voiceService)
	c.ChatWsHandler = handler.NewChatWsHandler(sessionService, c.EmotionService, chatService, voiceService, c.WebSocketHub, wsLogger)

	return c
}

// StartBackground runs the hub, the bus consumer and, when NATS is up, the
// reading ingestion consumers.
func (c *Container) StartBackground(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)

	if err := c.NotifierService.Consume(ctx); err != nil {
		return err
	}

	if c.NatsSubscriber == nil {
		return nil
	}
	for _, subject := range []string{constant.SubjectReadingAudio, constant.SubjectReadingVideo} {
		durable := constant.DurableReadingIngest + "-" + pktNats.EventTypeFromSubject(subject)
		cc, err := c.NatsSubscriber.Subscribe(ctx, subject, durable, c.EmotionService.HandleReadingEvent)
		if err != nil {
			c.Logger.Error("Container", "Failed to start reading ingestion", map[string]interface{}{"subject": subject, "error": err.Error()})
			continue
		}
		c.closers = append(c.closers, cc.Stop)
	}
	return nil
}

func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}
