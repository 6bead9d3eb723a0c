package calendar

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
)

// Handler serves the staff calendar views.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts calendar routes under a clinic-scoped router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/calendar/day", h.GetDay)
	r.Get("/calendar/week", h.GetWeek)
	r.Get("/calendar/month", h.GetMonth)
}

// GetDay handles GET /calendar/day?clinician_id=&date=&duration=
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	date, duration, ok := h.dateAndDuration(w, r)
	if !ok {
		return
	}
	view, err := h.service.Day(r.Context(), chi.URLParam(r, "clinicID"), r.URL.Query().Get("clinician_id"), date, duration)
	h.respond(w, view, err)
}

// GetWeek handles GET /calendar/week?clinician_id=&date=&duration=
func (h *Handler) GetWeek(w http.ResponseWriter, r *http.Request) {
	date, duration, ok := h.dateAndDuration(w, r)
	if !ok {
		return
	}
	view, err := h.service.Week(r.Context(), chi.URLParam(r, "clinicID"), r.URL.Query().Get("clinician_id"), date, duration)
	h.respond(w, view, err)
}

// GetMonth handles GET /calendar/month?clinician_id=&month=YYYY-MM&duration=
func (h *Handler) GetMonth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	month, err := time.Parse("2006-01", q.Get("month"))
	if err != nil {
		http.Error(w, `{"error": "month must be YYYY-MM"}`, http.StatusBadRequest)
		return
	}
	duration, ok := parseDuration(w, q.Get("duration"))
	if !ok {
		return
	}
	view, err := h.service.Month(r.Context(), chi.URLParam(r, "clinicID"), q.Get("clinician_id"), month, duration)
	h.respond(w, view, err)
}

func (h *Handler) dateAndDuration(w http.ResponseWriter, r *http.Request) (time.Time, int, bool) {
	q := r.URL.Query()
	date, err := scheduling.ParseDate(q.Get("date"))
	if err != nil {
		http.Error(w, `{"error": "date must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return time.Time{}, 0, false
	}
	duration, ok := parseDuration(w, q.Get("duration"))
	return date, duration, ok
}

func parseDuration(w http.ResponseWriter, raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	duration, err := strconv.Atoi(raw)
	if err != nil || duration <= 0 {
		http.Error(w, `{"error": "duration must be a positive integer"}`, http.StatusBadRequest)
		return 0, false
	}
	return duration, true
}

func (h *Handler) respond(w http.ResponseWriter, view any, err error) {
	if errors.Is(err, ErrInvalidQuery) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("failed to render calendar", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(view); err != nil {
		h.logger.Error("failed to encode calendar", "error", err)
	}
}
