package publicbooking

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/clinic-scheduling/internal/appointments"
	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
)

// IdempotencyHeader carries the client's retry key on booking submissions.
const IdempotencyHeader = "Idempotency-Key"

// Handler serves the public booking endpoints.
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

// RegisterRoutes mounts the public routes under /public/clinics/{clinicID}.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/clinicians", h.ListClinicians)
	r.Get("/clinicians/{clinicianID}/availability", h.GetAvailability)
	r.Post("/clinicians/{clinicianID}/bookings", h.CreateBooking)
}

// ListClinicians handles GET /clinicians
func (h *Handler) ListClinicians(w http.ResponseWriter, r *http.Request) {
	clinicians, err := h.service.Clinicians(r.Context(), chi.URLParam(r, "clinicID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	appointments.WriteJSON(w, http.StatusOK, map[string]any{"clinicians": clinicians}, h.logger)
}

// GetAvailability handles GET /clinicians/{clinicianID}/availability?date=&duration=
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := scheduling.ParseDate(q.Get("date"))
	if err != nil {
		http.Error(w, `{"error": "date must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}
	duration, err := strconv.Atoi(q.Get("duration"))
	if err != nil {
		http.Error(w, `{"error": "duration must be an integer"}`, http.StatusBadRequest)
		return
	}

	offers, err := h.service.Availability(r.Context(), chi.URLParam(r, "clinicID"), chi.URLParam(r, "clinicianID"), date, duration)
	if err != nil {
		h.writeError(w, err)
		return
	}
	appointments.WriteJSON(w, http.StatusOK, map[string]any{
		"date":             date.Format(scheduling.DateLayout),
		"duration_minutes": duration,
		"slots":            offers,
	}, h.logger)
}

// bookingResponse is what the patient sees after booking.
type bookingResponse struct {
	AppointmentID string               `json:"appointment_id"`
	ClinicianID   string               `json:"clinician_id"`
	Date          string               `json:"date"`
	Start         scheduling.TimeOfDay `json:"start"`
	End           scheduling.TimeOfDay `json:"end"`
	Status        appointments.Status  `json:"status"`
}

// CreateBooking handles POST /clinicians/{clinicianID}/bookings
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	clinicID := chi.URLParam(r, "clinicID")

	appt, replayed, err := h.service.Book(r.Context(), clinicID, chi.URLParam(r, "clinicianID"), req, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.writeError(w, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	} else {
		h.logger.Info("public booking created", "clinic_id", clinicID, "clinician_id", appt.ClinicianID, "appointment_id", appt.ID)
	}
	appointments.WriteJSON(w, status, bookingResponse{
		AppointmentID: appt.ID,
		ClinicianID:   appt.ClinicianID,
		Date:          appt.Date.Format(scheduling.DateLayout),
		Start:         appt.Start,
		End:           appt.End(),
		Status:        appt.Status,
	}, h.logger)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBookingDisabled), errors.Is(err, ErrClinicianNotFound):
		appointments.WriteJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()}, h.logger)
	case errors.Is(err, ErrDurationNotOffered), errors.Is(err, ErrInvalidPatient):
		appointments.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()}, h.logger)
	case errors.Is(err, ErrRequestInFlight):
		appointments.WriteJSON(w, http.StatusConflict, map[string]any{"error": err.Error(), "retryable": true}, h.logger)
	default:
		appointments.WriteError(w, err, h.logger)
	}
}
