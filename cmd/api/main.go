package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/accessgate/access-gate/internal/api/http"
	"github.com/accessgate/access-gate/internal/api/http/handlers"
	"github.com/accessgate/access-gate/internal/auth"
	"github.com/accessgate/access-gate/internal/config"
	"github.com/accessgate/access-gate/internal/events"
	"github.com/accessgate/access-gate/internal/observability"
	"github.com/accessgate/access-gate/internal/persistence"
	"github.com/accessgate/access-gate/internal/repository"
	"github.com/accessgate/access-gate/internal/repository/memory"
	"github.com/accessgate/access-gate/internal/repository/sqlite"
	"github.com/accessgate/access-gate/internal/service"
	"github.com/accessgate/access-gate/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := map[string]handlers.PingFunc{}

	requests, closeStore, err := openStore(ctx, cfg, logger, checks)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeStore()

	var dispatcher events.Dispatcher = events.NewInMemoryDispatcher()
	if cfg.Redis.Enabled {
		redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to configure redis", zap.Error(err))
		}
		defer redis.Close()
		checks["redis"] = redis.Ping

		redisDispatcher := events.NewRedisDispatcher(redis.Client, cfg.Redis.Channel, logger)
		checks["redis_relay"] = func(context.Context) error {
			if !redisDispatcher.Relaying() {
				return errors.New("event relay not subscribed")
			}
			return nil
		}
		relay := worker.NewEventRelayWorker(redisDispatcher, logger, time.Second)
		relay.Start(ctx)
		defer relay.Stop()
		dispatcher = redisDispatcher
	}

	metrics := observability.NewMetrics()

	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notifications)
	defer notifications.Close()

	operators := repository.NewStaticOperatorRepository(cfg.Auth.Operators)
	if configured, _ := operators.List(ctx); len(configured) == 0 {
		logger.Warn("no operators configured; decisions are unavailable")
	} else {
		names := make([]string, 0, len(configured))
		for _, op := range configured {
			if _, err := auth.HashCost(op.PasswordHash); err != nil {
				logger.Warn("operator cannot log in", zap.String("operator", op.Username), zap.Error(err))
			}
			names = append(names, op.Username)
		}
		logger.Info("operators loaded", zap.Strings("operators", names))
	}
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{Operators: operators, Logger: logger})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), operators)

	admission := service.NewAdmissionService(cfg.Admission, service.AdmissionDependencies{
		Requests:   requests,
		Dispatcher: dispatcher,
		Logger:     logger.Named("admission"),
		Metrics:    metrics,
	})
	approval := service.NewApprovalService(service.ApprovalDependencies{
		Requests:   requests,
		Dispatcher: dispatcher,
		Logger:     logger.Named("approval"),
		Metrics:    metrics,
	})
	notifier := service.NewStatusNotifier(service.NotifierDependencies{
		Requests:     requests,
		Dispatcher:   dispatcher,
		Logger:       logger.Named("notifier"),
		PollInterval: cfg.Notifier.PollInterval(),
	})

	// Cancelled before shutdown so long waits end instead of outliving the store.
	serving, stopServing := context.WithCancel(ctx)
	defer stopServing()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:    handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks),
		Operators: handlers.NewOperatorsHandler(authService),
		AccessRequests: handlers.NewAccessRequestsHandler(handlers.AccessRequestsDependencies{
			Admission: admission,
			Approval:  approval,
			Notifier:  notifier,
			Queue:     service.NewPendingQueue(requests),
			MaxWait:   cfg.Notifier.MaxWait(),
			Serving:   serving,
		}),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("store", cfg.Store.Driver))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	stopServing()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	logger.Info("metrics at shutdown", zap.Any("metrics", metrics.Snapshot()))
}

// openStore builds the configured Store Adapter and registers its readiness check.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, checks map[string]handlers.PingFunc) (repository.AccessRequestRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				pg.Close()
				return nil, nil, err
			}
		}
		checks["postgres"] = pg.Ping
		return repository.NewAccessRequestRepository(pg.PoolHandle()), pg.Close, nil
	case config.StoreDriverSQLite:
		db, err := persistence.OpenSQLite(ctx, cfg.SQLite, logger)
		if err != nil {
			return nil, nil, err
		}
		checks["sqlite"] = db.PingContext
		return sqlite.NewAccessRequestStore(db), func() { _ = db.Close() }, nil
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.NewAccessRequestStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
