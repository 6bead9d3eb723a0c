package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/clinic-scheduling/internal/tenancy"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
)

// Handler serves the audit trail to staff.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new audit HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// ListEvents returns recent audit events for a clinic.
// GET /api/v1/clinics/{clinicID}/audit?type=booking.slot_taken,booking.cancelled&since=RFC3339&limit=50
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := tenancy.ClinicIDFromContext(r.Context())
	if !ok {
		clinicID = chi.URLParam(r, "clinicID")
	}
	if clinicID == "" {
		http.Error(w, `{"error": "clinic_id required"}`, http.StatusBadRequest)
		return
	}

	q := Query{ClinicID: clinicID}
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				q.Types = append(q.Types, EventType(t))
			}
		}
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, `{"error": "since must be RFC3339"}`, http.StatusBadRequest)
			return
		}
		q.Since = since
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			http.Error(w, `{"error": "limit must be a positive integer"}`, http.StatusBadRequest)
			return
		}
		q.Limit = limit
	}

	events, err := h.service.List(r.Context(), q)
	if err != nil {
		h.logger.Error("failed to list audit events", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []Event{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"events": events}); err != nil {
		h.logger.Error("failed to encode audit events", "clinic_id", clinicID, "error", err)
	}
}
