package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/clinic-scheduling/internal/config"
	"github.com/wolfman30/clinic-scheduling/internal/events"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildPgxPool connects to Postgres. It returns nil without error when no
// DATABASE_URL is configured so callers fall back to in-memory storage.
func BuildPgxPool(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("connected to postgres")
	return pool, nil
}

// BuildSQLDB exposes the pool through database/sql for the audit trail.
func BuildSQLDB(pool *pgxpool.Pool) *sql.DB {
	if pool == nil {
		return nil
	}
	return stdlib.OpenDBFromPool(pool)
}

// Event sinks accepted by EVENTS_SINK.
const (
	SinkLog   = "log"
	SinkRedis = "redis"
	SinkSQS   = "sqs"
)

// BuildEventHandler picks the outbox delivery transport. sqsClient is only
// consulted for the sqs sink.
func BuildEventHandler(cfg *appconfig.Config, redisClient *redis.Client, sqsClient events.SQSAPI, logger *logging.Logger) (events.DeliveryHandler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.EventsSink {
	case "", SinkLog:
		return events.NewLogHandler(logger), nil
	case SinkRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("bootstrap: events sink %q requires redis", SinkRedis)
		}
		logger.Info("events published to redis", "channel", cfg.EventsRedisChannel)
		return events.NewRedisPublisher(redisClient, cfg.EventsRedisChannel), nil
	case SinkSQS:
		if sqsClient == nil || strings.TrimSpace(cfg.EventsQueueURL) == "" {
			return nil, fmt.Errorf("bootstrap: events sink %q requires EVENTS_QUEUE_URL", SinkSQS)
		}
		logger.Info("events published to sqs", "queue_url", cfg.EventsQueueURL)
		return events.NewSQSPublisher(sqsClient, cfg.EventsQueueURL), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown events sink %q", cfg.EventsSink)
	}
}
