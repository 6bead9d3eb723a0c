package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-scheduling/cmd/mainconfig"
	"github.com/wolfman30/clinic-scheduling/internal/api/router"
	"github.com/wolfman30/clinic-scheduling/internal/app/bootstrap"
	"github.com/wolfman30/clinic-scheduling/internal/appointments"
	"github.com/wolfman30/clinic-scheduling/internal/audit"
	"github.com/wolfman30/clinic-scheduling/internal/blocks"
	"github.com/wolfman30/clinic-scheduling/internal/calendar"
	"github.com/wolfman30/clinic-scheduling/internal/clinic"
	appconfig "github.com/wolfman30/clinic-scheduling/internal/config"
	"github.com/wolfman30/clinic-scheduling/internal/events"
	"github.com/wolfman30/clinic-scheduling/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduling/internal/publicbooking"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
)

func main() {
	// .env is optional outside local development
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting clinic-scheduling API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Error("redis is required for clinic configuration", "addr", cfg.RedisAddr)
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	pool, err := bootstrap.BuildPgxPool(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	if pool == nil {
		logger.Warn("DATABASE_URL not set; appointments and blocks are kept in memory")
	} else {
		defer pool.Close()
	}

	var sqsClient events.SQSAPI
	if pool != nil && cfg.EventsSink == bootstrap.SinkSQS {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		sqsClient = mainconfig.NewSQSClient(awsCfg, cfg)
	}

	app, err := newApp(cfg, logger, pool, redisClient, sqsClient, prometheus.NewRegistry())
	if err != nil {
		logger.Error("failed to wire application", "error", err)
		os.Exit(1)
	}
	defer app.close()

	delivererDone := make(chan struct{})
	go func() {
		defer close(delivererDone)
		if app.deliverer != nil {
			logger.Info("outbox deliverer started", "sink", cfg.EventsSink, "interval", cfg.OutboxPollInterval)
			app.deliverer.Start(ctx)
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	<-delivererDone

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type application struct {
	handler   http.Handler
	deliverer *events.Deliverer
	sqlDB     *sql.DB
}

func (a *application) close() {
	if a.sqlDB != nil {
		_ = a.sqlDB.Close()
	}
}

// newApp wires repositories, services and handlers. Without a pool the
// appointment and block stores are in memory and no events or audit
// entries are written.
func newApp(cfg *appconfig.Config, logger *logging.Logger, pool *pgxpool.Pool, redisClient *redis.Client, sqsClient events.SQSAPI, reg *prometheus.Registry) (*application, error) {
	if redisClient == nil {
		return nil, errors.New("redis client is required")
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	schedulingMetrics := metrics.NewSchedulingMetrics(reg)

	clinicStore := clinic.NewStore(redisClient).WithDefaults(cfg.DefaultTimezone, cfg.CalendarGranularityMinutes)

	app := &application{}
	healthChecks := map[string]router.HealthCheck{
		"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}

	var (
		apptRepo     appointments.Repository = appointments.NewInMemoryRepository()
		blockRepo    blocks.Repository       = blocks.NewInMemoryRepository()
		outbox       *events.OutboxStore
		auditService *audit.Service
	)
	if pool != nil {
		apptRepo = appointments.NewPostgresRepository(pool)
		blockRepo = blocks.NewPostgresRepository(pool)
		outbox = events.NewOutboxStore(pool)
		app.sqlDB = bootstrap.BuildSQLDB(pool)
		auditService = audit.NewService(app.sqlDB)
		healthChecks["postgres"] = pool.Ping

		handler, err := bootstrap.BuildEventHandler(cfg, redisClient, sqsClient, logger)
		if err != nil {
			return nil, err
		}
		app.deliverer = events.NewDeliverer(outbox, handler, logger).
			WithBatchSize(int32(cfg.OutboxBatchSize)).
			WithMaxAttempts(cfg.OutboxMaxAttempts).
			WithInterval(cfg.OutboxPollInterval)
	}

	blockService := blocks.NewService(blockRepo, logger)
	apptService := appointments.NewService(apptRepo, blockService, logger).
		WithHours(clinicStore).
		WithMetrics(schedulingMetrics)
	if outbox != nil {
		blockService.WithEvents(outbox).WithAudit(auditService)
		apptService.WithEvents(outbox).WithAudit(auditService)
	}

	calendarService := calendar.NewService(apptService, blockService, clinicStore, schedulingMetrics)
	publicService := publicbooking.NewService(clinicStore, apptService, logger).
		WithIdempotency(publicbooking.NewIdempotencyStore(redisClient, 24*time.Hour)).
		WithMetrics(schedulingMetrics)

	routerCfg := &router.Config{
		Logger:               logger,
		AppointmentsHandler:  appointments.NewHandler(apptService, logger),
		CalendarHandler:      calendar.NewHandler(calendarService, logger),
		BlocksHandler:        blocks.NewHandler(blockService, logger),
		ClinicHandler:        clinic.NewHandler(clinicStore, logger),
		PublicBookingHandler: publicbooking.NewHandler(publicService, logger),
		StaffJWTSecret:       cfg.StaffJWTSecret,
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		PublicRateLimitRPS:   cfg.PublicRateLimitRPS,
		PublicRateLimitBurst: cfg.PublicRateLimitBurst,
		MetricsHandler:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		HealthChecks:         healthChecks,
	}
	if auditService != nil {
		routerCfg.AuditHandler = audit.NewHandler(auditService, logger)
	}
	if cfg.StaffJWTSecret == "" {
		logger.Warn("STAFF_JWT_SECRET not set; staff API will reject every request")
	}

	app.handler = router.New(routerCfg)
	return app, nil
}
