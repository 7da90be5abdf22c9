package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/sla-guard/internal/api/http"
	"github.com/spec-kit/sla-guard/internal/api/http/handlers"
	"github.com/spec-kit/sla-guard/internal/auth"
	"github.com/spec-kit/sla-guard/internal/config"
	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/events"
	"github.com/spec-kit/sla-guard/internal/messaging"
	"github.com/spec-kit/sla-guard/internal/observability"
	"github.com/spec-kit/sla-guard/internal/persistence"
	"github.com/spec-kit/sla-guard/internal/repository"
	"github.com/spec-kit/sla-guard/internal/repository/memstore"
	"github.com/spec-kit/sla-guard/internal/service"
	"github.com/spec-kit/sla-guard/internal/sla"
	"github.com/spec-kit/sla-guard/internal/worker"
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

	limits := sla.Limits{
		domain.TicketPriorityCritical: cfg.SLA.CriticalHours,
		domain.TicketPriorityHigh:     cfg.SLA.HighHours,
		domain.TicketPriorityMedium:   cfg.SLA.MediumHours,
		domain.TicketPriorityLow:      cfg.SLA.LowHours,
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	dependencies := map[string]handlers.Pinger{}
	var store repository.Store
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewPostgresStore(pg.Pool)
		dependencies["postgres"] = pg
	} else {
		store = memstore.New(memstore.WithSLAConfigs(limits))
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	notificationDeps := service.NotificationDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
	if redis.Enabled() {
		notificationDeps.Realtime = messaging.NewRedisNotificationPublisher(redis.Client, cfg.Notification.RedisChannelPrefix, messaging.DefaultBreakerSettings(), logger)
		dependencies["redis"] = redis
	}
	if kafka := messaging.NewKafkaEventPublisher(cfg.Notification.KafkaBrokers, cfg.Notification.KafkaTopic, messaging.DefaultBreakerSettings(), logger); kafka != nil {
		notificationDeps.Events = kafka
		defer func() {
			if err := kafka.Close(); err != nil {
				logger.Warn("closing kafka writer", zap.Error(err))
			}
		}()
	}
	notifications := service.NewNotificationService(notificationDeps)
	notifications.RegisterHandlers()

	escalations := service.NewEscalationService(service.EscalationDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Limits:     limits,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	monitorService := service.NewMonitorService(service.MonitorDependencies{
		Store:       store,
		Escalations: escalations,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Metrics:     metrics,
	})
	authService := service.NewAuthService(service.AuthDependencies{
		Users:      store.Users(),
		Tokens:     tokens,
		BcryptCost: cfg.Auth.BcryptCost,
		Logger:     logger,
	})

	monitor := worker.NewSLAMonitor(monitorService, worker.SLAMonitorConfig{
		Interval:   cfg.Monitor.Interval(),
		RunOnStart: cfg.Monitor.RunOnStart,
		Logger:     logger,
	})
	monitor.Start(ctx)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:        handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		Users:         handlers.NewUsersHandler(authService),
		Tickets:       handlers.NewTicketsHandler(tickets),
		Escalations:   handlers.NewEscalationHandler(escalations, tickets),
		Comments: handlers.NewCommentsHandler(service.NewCommentService(service.CommentDependencies{
			Store:      store,
			Dispatcher: dispatcher,
			Logger:     logger,
		})),
		Notifications: handlers.NewNotificationsHandler(notifications),
		Admin: handlers.NewAdminHandler(
			service.NewSLAService(service.SLADependencies{Store: store, Limits: limits, Logger: logger}),
			service.NewAnalyticsService(store),
			monitor,
		),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Users()),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Monitor.ShutdownTimeout())
	defer stopCancel()
	if err := monitor.Stop(stopCtx); err != nil {
		logger.Warn("monitor did not stop cleanly", zap.Error(err))
	}
	if err := app.Shutdown(); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
