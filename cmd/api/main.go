package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/vertice360/leadqual/internal/api/http"
	"github.com/vertice360/leadqual/internal/api/http/handlers"
	"github.com/vertice360/leadqual/internal/config"
	"github.com/vertice360/leadqual/internal/events"
	"github.com/vertice360/leadqual/internal/observability"
	"github.com/vertice360/leadqual/internal/orchestrator"
	"github.com/vertice360/leadqual/internal/persistence"
	"github.com/vertice360/leadqual/internal/service"
	"github.com/vertice360/leadqual/internal/session"
	"github.com/vertice360/leadqual/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	broadcaster := events.NewBroadcaster(dispatcher)
	emitter := events.NewEmitter(dispatcher, logger, metrics)

	var redis *persistence.Redis
	var dedupe persistence.DedupeCache
	dedupeTTL := time.Duration(cfg.Engine.InboundDedupeTTLSec) * time.Second
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		dedupe = persistence.NewRedisDedupeCache(redis.Client, dedupeTTL)
	} else {
		dedupe = persistence.NewMemoryDedupeCache(dedupeTTL, cfg.Engine.InboundDedupeMaxKeys)
	}

	store := session.NewStore(emitter, logger, cfg.Engine.TimelineDedupeWindow())
	resolver := session.NewResolver(store, logger)

	var sender service.Sender
	if strings.TrimSpace(cfg.Notification.OutboundWebhookURL) != "" {
		sender = service.NewWebhookSender(cfg.Notification, logger)
	} else {
		sender = service.NewLogSender(logger)
	}

	engine := service.NewEngineService(service.EngineDependencies{
		Store:    store,
		Resolver: resolver,
		Emitter:  emitter,
		Dedupe:   dedupe,
		Sender:   sender,
		Logger:   logger,
		Metrics:  metrics,
		Config:   cfg.Engine,
	})
	pipeline := orchestrator.NewPipeline(logger, cfg.Engine.ReplyMaxChars)

	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notifications)

	watcher := worker.NewSLAWatcher(store, logger, cfg.Engine.SLAWatcherInterval())
	go watcher.Start(ctx)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, redis, metrics)
	webhooksHandler := handlers.NewWebhooksHandler(engine)
	sessionsHandler := handlers.NewSessionsHandler(store)
	orchestratorHandler := handlers.NewOrchestratorHandler(pipeline)
	eventsHandler := handlers.NewEventsHandler(broadcaster, logger)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:       healthHandler,
		Webhooks:     webhooksHandler,
		Sessions:     sessionsHandler,
		Orchestrator: orchestratorHandler,
		Events:       eventsHandler,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
