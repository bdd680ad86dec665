package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-autoclose/internal/api/http"
	"github.com/spec-kit/ticket-autoclose/internal/api/http/handlers"
	"github.com/spec-kit/ticket-autoclose/internal/config"
	"github.com/spec-kit/ticket-autoclose/internal/events"
	"github.com/spec-kit/ticket-autoclose/internal/lease"
	"github.com/spec-kit/ticket-autoclose/internal/mail"
	"github.com/spec-kit/ticket-autoclose/internal/observability"
	"github.com/spec-kit/ticket-autoclose/internal/persistence"
	"github.com/spec-kit/ticket-autoclose/internal/repository"
	"github.com/spec-kit/ticket-autoclose/internal/scheduler"
	"github.com/spec-kit/ticket-autoclose/internal/service"
	"github.com/spec-kit/ticket-autoclose/internal/worker"
)

// shutdownTimeout leaves room for the in-flight ticket to finish its
// close and notify under the closure service's per-ticket timeout.
const shutdownTimeout = 90 * time.Second

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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var leaser lease.Leaser
	if redis.Reachable(ctx) {
		leaser = lease.NewRedisLeaser(redis.Client, cfg.Closure.LeaseTTL())
	} else {
		logger.Warn("redis unavailable; ticket leases are process-local")
		leaser = lease.NewMemoryLeaser(cfg.Closure.LeaseTTL())
	}

	var transport mail.Transport
	if cfg.SMTP.Enabled() {
		transport = mail.NewSMTPTransport(cfg.SMTP, cfg.Notification.EmailFrom)
	} else {
		logger.Warn("SMTP_HOST not provided; closure emails are logged only")
		transport = mail.NewLogTransport(logger, cfg.Notification.EmailFrom)
	}

	metrics := observability.NewMetrics(cfg.App.Name, cfg.App.Env)
	dispatcher := events.NewInMemoryDispatcher()
	metrics.RegisterHandlers(dispatcher)
	worker.StartEventJournal(dispatcher, logger)

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	contactRepo := repository.NewContactRepository(pool)

	closureService := service.NewClosureService(service.ClosureDependencies{
		TicketRepo: ticketRepo,
		Leaser:     leaser,
		Closer:     service.NewTicketCloser(ticketRepo),
		Notifier:   service.NewNotifier(contactRepo, transport, logger),
		Dispatcher: dispatcher,
		Logger:     logger,
		Content: service.NotificationContent{
			Subject: cfg.Notification.EmailSubject,
			Body:    cfg.Notification.EmailBody,
		},
	})
	job := service.NewClosureJob(closureService, cfg.Closure.InactivityThreshold(), cfg.Closure.RunTimeout())

	closureScheduler := scheduler.NewClosureScheduler(job, cfg.Closure.Schedule, logger)
	if err := closureScheduler.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	dependencies := map[string]handlers.Pinger{"postgres": pg}
	if cfg.Redis.Addr != "" {
		dependencies["redis"] = redis
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		Runs:    handlers.NewRunsHandler(ctx, job),
		Tickets: handlers.NewTicketsHandler(ticketRepo, historyRepo),
		Metrics: metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	closureScheduler.Stop(shutdownCtx)
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
