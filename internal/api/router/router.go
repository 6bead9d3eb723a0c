package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/clinic-scheduling/internal/appointments"
	"github.com/wolfman30/clinic-scheduling/internal/audit"
	"github.com/wolfman30/clinic-scheduling/internal/blocks"
	"github.com/wolfman30/clinic-scheduling/internal/calendar"
	"github.com/wolfman30/clinic-scheduling/internal/clinic"
	httpmiddleware "github.com/wolfman30/clinic-scheduling/internal/http/middleware"
	"github.com/wolfman30/clinic-scheduling/internal/publicbooking"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger *logging.Logger

	AppointmentsHandler  *appointments.Handler
	CalendarHandler      *calendar.Handler
	BlocksHandler        *blocks.Handler
	ClinicHandler        *clinic.Handler
	AuditHandler         *audit.Handler
	PublicBookingHandler *publicbooking.Handler

	StaffJWTSecret       string
	CORSAllowedOrigins   []string
	PublicRateLimitRPS   float64
	PublicRateLimitBurst int
	MetricsHandler       http.Handler

	// HealthChecks are run by /health, keyed by dependency name.
	HealthChecks map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(logger))

	r.Get("/health", healthHandler(cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Patient-facing self-booking
	if cfg.PublicBookingHandler != nil {
		r.Route("/public/clinics/{clinicID}", func(public chi.Router) {
			if cfg.PublicRateLimitRPS > 0 {
				public.Use(httpmiddleware.RateLimit(cfg.PublicRateLimitRPS, cfg.PublicRateLimitBurst))
			}
			cfg.PublicBookingHandler.RegisterRoutes(public)
		})
	}

	// Staff API
	r.Route("/api/v1/clinics/{clinicID}", func(staff chi.Router) {
		staff.Use(httpmiddleware.StaffJWT(cfg.StaffJWTSecret))
		staff.Use(requireClinicAccess(logger))

		if cfg.CalendarHandler != nil {
			cfg.CalendarHandler.RegisterRoutes(staff)
		}
		if cfg.AppointmentsHandler != nil {
			cfg.AppointmentsHandler.RegisterRoutes(staff)
		}
		if cfg.BlocksHandler != nil {
			cfg.BlocksHandler.RegisterRoutes(staff)
		}
		if cfg.ClinicHandler != nil {
			cfg.ClinicHandler.RegisterRoutes(staff)
		}
		if cfg.AuditHandler != nil {
			staff.Get("/audit", cfg.AuditHandler.ListEvents)
		}
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		resp := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				resp["status"] = "degraded"
				resp[name] = err.Error()
				continue
			}
			resp[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
