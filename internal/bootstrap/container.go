package bootstrap

import (
	"context"
	"log"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"everlight-os/internal/config"
	"everlight-os/internal/controller"
	"everlight-os/internal/handler"
	"everlight-os/internal/pkg/logger"
	"everlight-os/internal/service"
	"everlight-os/internal/websocket"
	"everlight-os/pkg/council"
	pktNats "everlight-os/pkg/nats"
	"everlight-os/pkg/pipeline"
	"everlight-os/pkg/psyche"
	"everlight-os/pkg/safety"
	"everlight-os/pkg/shadow"
	"everlight-os/pkg/telemetry"
	"everlight-os/pkg/vault"
)

type Container struct {
	// Controllers
	PipelineController controller.IPipelineController
	SafetyController   controller.ISafetyController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	SessionFeedHandler *handler.SessionFeedHandler
	WebSocketHub       *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// Telemetry: NATS when the broker is up, structured log otherwise.
	var sink telemetry.Sink
	if natsPub != nil {
		sink = telemetry.NewNATSSink(natsPub, sysLogger)
	} else {
		sink = telemetry.NewLogSink(sysLogger)
	}

	// 3. MemoryVault backend
	var backend vault.ObjectStore
	switch cfg.Vault.Backend {
	case "redis":
		backend = vault.NewRedisStore(rdb, cfg.Vault.Namespace)
		log.Printf("[INFO] Using Vault Backend: REDIS (%s)", cfg.Vault.Namespace)
	case "postgres":
		store, err := vault.NewGormStore(db)
		if err != nil {
			log.Fatalf("[FATAL] Failed to initialize postgres vault: %v", err)
		}
		backend = store
		log.Printf("[INFO] Using Vault Backend: POSTGRES")
	default:
		backend = vault.NewMemoryStore()
		log.Printf("[INFO] Using Vault Backend: MEMORY")
	}
	store := vault.NewRetryingStore(backend, vault.RetryPolicy{
		BaseDelay:  cfg.Vault.RetryBaseDelay,
		MaxDelay:   cfg.Vault.RetryMaxDelay,
		MaxRetries: cfg.Vault.RetryMaxRetries,
	})

	// 4. Safety Gate
	var gate safety.Evaluator
	if cfg.Safety.Mode == "remote" {
		gate = safety.NewRemoteEvaluator(cfg.Safety.EndpointURL)
		log.Printf("[INFO] Using Safety Mode: REMOTE (%s)", cfg.Safety.EndpointURL)
	} else {
		localGate, err := safety.NewGate(safety.DefaultConfig())
		if err != nil {
			log.Fatalf("[FATAL] Failed to compile safety patterns: %v", err)
		}
		gate = localGate
		log.Printf("[INFO] Using Safety Mode: LOCAL")
	}

	// 5. Council
	members, err := council.ParseMemberSpec(cfg.Council.Members, cfg.Council.APIKey)
	if err != nil {
		log.Fatalf("[FATAL] Failed to assemble council: %v", err)
	}
	log.Printf("[INFO] Council assembled with %d members", len(members))
	orchestrator := council.NewOrchestrator(members, store, sink, sysLogger,
		cfg.Council.CallTimeout, cfg.Council.MaxTokens, cfg.Council.Temperature)

	// 6. Psyche + Shadow
	engine := psyche.NewEngine(psyche.NewVersionStore(store, sysLogger), sink, sysLogger, cfg.Pipeline.HistoryLimit)
	shadows := shadow.NewProcessor(shadow.NewVaultProfileSource(store, sysLogger), store, sink, sysLogger)

	// 7. Sessions + WebSocket Hub
	sessions := pipeline.NewSessionStore(24 * time.Hour)

	wsLogger := logger.NewIsolatedLogger("logs/sessions.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 8. Pipeline wiring
	publisherService := service.NewPublisherService(pubSub, service.SessionTopic)
	p := pipeline.New(gate, engine, shadows, orchestrator, sessions, publisherService,
		sink, sysLogger, cfg.Pipeline.StageTimeout)

	consumerService := service.NewConsumerService(
		pubSub,
		service.SessionTopic,
		cfg.Pipeline.SessionLogDir,
		sessions,
		store,
		wsHub,
		sink,
		sysLogger,
	)

	// 9. Controllers
	return &Container{
		PipelineController: controller.NewPipelineController(p, sessions, len(members), cfg.Vault.Backend),
		SafetyController:   controller.NewSafetyController(gate),
		ConsumerService:    consumerService,
		SessionFeedHandler: handler.NewSessionFeedHandler(wsHub, wsLogger),
		WebSocketHub:       wsHub,
	}
}
