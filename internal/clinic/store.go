package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("clinic-scheduling.clinic")

// Store persists clinic configs in Redis.
type Store struct {
	redis       *redis.Client
	timezone    string
	granularity int
}

// NewStore creates a new clinic config store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

// WithDefaults sets the timezone and calendar granularity given to clinics
// that have not been configured yet.
func (s *Store) WithDefaults(timezone string, granularity int) *Store {
	s.timezone = timezone
	s.granularity = granularity
	return s
}

func (s *Store) key(clinicID string) string {
	return fmt.Sprintf("clinic:config:%s", clinicID)
}

func (s *Store) defaults(clinicID string) *Config {
	cfg := DefaultConfig(clinicID)
	if s.timezone != "" {
		cfg.Timezone = s.timezone
	}
	if s.granularity > 0 {
		cfg.CalendarGranularity = s.granularity
	}
	return cfg
}

// Get retrieves clinic config, returning default if not found.
func (s *Store) Get(ctx context.Context, clinicID string) (*Config, error) {
	ctx, span := tracer.Start(ctx, "clinic.config.get", trace.WithAttributes(attribute.String("clinic.id", clinicID)))
	defer span.End()

	data, err := s.redis.Get(ctx, s.key(clinicID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return s.defaults(clinicID), nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("clinic: get config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("clinic: unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Set validates and saves clinic config.
func (s *Store) Set(ctx context.Context, cfg *Config) error {
	ctx, span := tracer.Start(ctx, "clinic.config.set", trace.WithAttributes(attribute.String("clinic.id", cfg.ClinicID)))
	defer span.End()

	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("clinic: marshal config: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(cfg.ClinicID), data, 0).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("clinic: set config: %w", err)
	}
	return nil
}

// HoursOn reports the clinic's working hours on date.
func (s *Store) HoursOn(ctx context.Context, clinicID string, date time.Time) (scheduling.WorkingHours, bool, error) {
	cfg, err := s.Get(ctx, clinicID)
	if err != nil {
		return scheduling.WorkingHours{}, false, err
	}
	hours, ok := cfg.HoursFor(date)
	return hours, ok, nil
}
