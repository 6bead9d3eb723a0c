package blocks

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
)

// Handler handles HTTP requests for schedule blocks
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new blocks handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts block routes under a clinic-scoped router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/blocks", h.ListBlocks)
	r.Post("/blocks", h.CreateBlock)
	r.Delete("/blocks/{blockID}", h.DeleteBlock)
}

// ListBlocks handles GET /blocks?clinician_id=&from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	q := r.URL.Query()

	from, err := scheduling.ParseDate(q.Get("from"))
	if err != nil {
		http.Error(w, `{"error": "from must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}
	to := from
	if raw := q.Get("to"); raw != "" {
		if to, err = scheduling.ParseDate(raw); err != nil {
			http.Error(w, `{"error": "to must be YYYY-MM-DD"}`, http.StatusBadRequest)
			return
		}
	}
	if to.Sub(from) > 92*24*time.Hour {
		http.Error(w, `{"error": "range too large"}`, http.StatusBadRequest)
		return
	}

	blocks, err := h.service.List(r.Context(), clinicID, q.Get("clinician_id"), from, to)
	if errors.Is(err, ErrInvalidBlock) {
		http.Error(w, `{"error": "invalid range"}`, http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Error("failed to list blocks", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if blocks == nil {
		blocks = []ScheduleBlock{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": blocks}, h.logger)
}

// CreateBlock handles POST /blocks
func (h *Handler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req CreateBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	req.ClinicID = chi.URLParam(r, "clinicID")

	block, err := h.service.Create(r.Context(), &req)
	if errors.Is(err, ErrInvalidBlock) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()}, h.logger)
		return
	}
	if err != nil {
		h.logger.Error("failed to create block", "clinic_id", req.ClinicID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("schedule block created", "clinic_id", block.ClinicID, "clinician_id", block.ClinicianID, "block_id", block.ID)
	writeJSON(w, http.StatusCreated, block, h.logger)
}

// DeleteBlock handles DELETE /blocks/{blockID}
func (h *Handler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	blockID := chi.URLParam(r, "blockID")

	_, err := h.service.Delete(r.Context(), clinicID, blockID)
	if errors.Is(err, ErrBlockNotFound) {
		http.Error(w, `{"error": "block not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to delete block", "clinic_id", clinicID, "block_id", blockID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *logging.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
