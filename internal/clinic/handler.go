package clinic

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
)

// Handler provides HTTP endpoints for clinic configuration management.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a new clinic config HTTP handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// RegisterRoutes mounts config routes under a clinic-scoped router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/config", h.GetConfig)
	r.Put("/config", h.UpdateConfig)
}

// GetConfig returns the clinic configuration.
// GET /api/v1/clinics/{clinicID}/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	if clinicID == "" {
		http.Error(w, `{"error": "clinic_id required"}`, http.StatusBadRequest)
		return
	}

	cfg, err := h.store.Get(r.Context(), clinicID)
	if err != nil {
		h.logger.Error("failed to get clinic config", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(cfg); err != nil {
		h.logger.Error("failed to encode clinic config", "clinic_id", clinicID, "error", err)
	}
}

// UpdateConfigRequest is the request body for updating clinic config.
type UpdateConfigRequest struct {
	Name                 string         `json:"name,omitempty"`
	Timezone             string         `json:"timezone,omitempty"`
	BusinessHours        *BusinessHours `json:"business_hours,omitempty"`
	CalendarGranularity  *int           `json:"calendar_granularity_minutes,omitempty"`
	PublicGranularity    map[int]int    `json:"public_granularity_minutes,omitempty"`
	Clinicians           []Clinician    `json:"clinicians,omitempty"`
	PublicBookingEnabled *bool          `json:"public_booking_enabled,omitempty"`
}

// UpdateConfig creates or updates the clinic configuration.
// PUT /api/v1/clinics/{clinicID}/config
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	if clinicID == "" {
		http.Error(w, `{"error": "clinic_id required"}`, http.StatusBadRequest)
		return
	}

	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	cfg, err := h.store.Get(r.Context(), clinicID)
	if err != nil {
		h.logger.Error("failed to get clinic config", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	// Partial update
	if req.Name != "" {
		cfg.Name = req.Name
	}
	if req.Timezone != "" {
		cfg.Timezone = req.Timezone
	}
	if req.BusinessHours != nil {
		cfg.BusinessHours = *req.BusinessHours
	}
	if req.CalendarGranularity != nil {
		cfg.CalendarGranularity = *req.CalendarGranularity
	}
	if req.PublicGranularity != nil {
		cfg.PublicGranularity = req.PublicGranularity
	}
	if req.Clinicians != nil {
		cfg.Clinicians = req.Clinicians
	}
	if req.PublicBookingEnabled != nil {
		cfg.PublicBookingEnabled = *req.PublicBookingEnabled
	}

	if err := h.store.Set(r.Context(), cfg); err != nil {
		if errors.Is(err, ErrInvalidConfig) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		h.logger.Error("failed to save clinic config", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error": "failed to save config"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("clinic config updated", "clinic_id", clinicID, "name", cfg.Name, "clinicians", len(cfg.Clinicians))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(cfg); err != nil {
		h.logger.Error("failed to encode clinic config", "clinic_id", clinicID, "error", err)
	}
}
