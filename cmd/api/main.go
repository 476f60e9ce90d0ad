package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/helpdesk-kit/ticketd/internal/api/http"
	"github.com/helpdesk-kit/ticketd/internal/api/http/handlers"
	"github.com/helpdesk-kit/ticketd/internal/auth"
	"github.com/helpdesk-kit/ticketd/internal/config"
	"github.com/helpdesk-kit/ticketd/internal/events"
	"github.com/helpdesk-kit/ticketd/internal/observability"
	"github.com/helpdesk-kit/ticketd/internal/persistence"
	"github.com/helpdesk-kit/ticketd/internal/repository"
	"github.com/helpdesk-kit/ticketd/internal/service"
	"github.com/helpdesk-kit/ticketd/internal/worker"
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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.PoolHandle() != nil {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		ticketStore repository.TicketStore
		userRepo    repository.UserRepository
	)
	if pool := pg.PoolHandle(); pool != nil {
		ticketStore = repository.NewPgTicketStore(pool)
		userRepo = repository.NewUserRepository(pool)
	} else {
		logger.Warn("running with in-memory store; state is not durable")
		ticketStore = repository.NewMemoryTicketStore()
		userRepo = repository.NewMemoryUserRepository()
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	events.NewRedisPublisher(redis.Client, cfg.Redis.Channel, logger).Register(dispatcher)

	ticketService := service.NewTicketService(cfg.SLA, service.TicketDependencies{
		Store:      ticketStore,
		UserRepo:   userRepo,
		Authorizer: auth.NewEngine(),
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	})
	authService := service.NewAuthService(cfg.Auth, userRepo)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	monitor := service.NewSLAMonitor(cfg.SLA, ticketStore, ticketService, logger, metrics)

	worker.StartNotificationWorker(notificationService)
	worker.StartSLAMonitor(ctx, monitor)

	authMiddleware := auth.NewMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Users:          handlers.NewUsersHandler(authService, ticketService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: authMiddleware,
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
