package main

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Nhien18112/system-with-dbs/internal/handler"
	"github.com/Nhien18112/system-with-dbs/internal/repository"
	"github.com/Nhien18112/system-with-dbs/internal/server"
	"github.com/Nhien18112/system-with-dbs/internal/service"
	"github.com/Nhien18112/system-with-dbs/pkg/cache"
	"github.com/Nhien18112/system-with-dbs/pkg/config"
	"github.com/Nhien18112/system-with-dbs/pkg/database"
	"github.com/Nhien18112/system-with-dbs/pkg/logger"
)

// app holds the wired dependency graph shared by the serve and sweep commands.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *sqlx.DB
	redis   *redis.Client
	metrics *service.MetricsService

	registrations *service.RegistrationService
	scheduling    *service.SchedulingService
	sweeper       *service.AutoApprovalSweeper
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	rdb, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	registrationRepo := repository.NewRegistrationRepository(db)
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(rdb, logger.ServiceName, logr),
		metrics,
		cfg.Matching.CacheTTL,
		logr,
		cfg.Matching.CacheEnabled && rdb != nil,
	)
	matching := service.NewMatchingService(repository.NewTutorRepository(db), cacheSvc, logr, service.MatchingOptions{
		Limit:         cfg.Matching.Limit,
		DefaultRating: cfg.Matching.DefaultRating,
		CacheTTL:      cfg.Matching.CacheTTL,
	})
	directory := service.NewUserDirectory(repository.NewUserRepository(db))
	registrations := service.NewRegistrationService(
		registrationRepo,
		directory,
		matching,
		metrics,
		validate,
		logr,
		cfg.Registration.ExpiryHorizon,
	)
	sweeper := service.NewAutoApprovalSweeper(
		registrationRepo,
		registrations,
		repository.NewLockRepository(rdb),
		metrics,
		logr,
		service.SweepOptions{
			StalenessHorizon: cfg.Sweep.StalenessHorizon,
			LockKey:          cfg.Sweep.LockKey,
			LockTTL:          cfg.Sweep.LockTTL,
		},
	)
	scheduling := service.NewSchedulingService(
		repository.NewMeetingRepository(db),
		metrics,
		validate,
		logr,
		cfg.Scheduling.RejectConflicts,
	)

	return &app{
		cfg:           cfg,
		logger:        logr,
		db:            db,
		redis:         rdb,
		metrics:       metrics,
		registrations: registrations,
		scheduling:    scheduling,
		sweeper:       sweeper,
	}, nil
}

func (a *app) handlers() server.Handlers {
	checks := map[string]handler.ReadinessCheck{
		"postgres": a.db.PingContext,
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}
	}
	return server.Handlers{
		Registration: handler.NewRegistrationHandler(a.registrations),
		Scheduling:   handler.NewSchedulingHandler(a.scheduling),
		Metrics:      handler.NewMetricsHandler(a.metrics, checks),
	}
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close postgres", zap.Error(err))
	}
	_ = a.logger.Sync()
}
