package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
)

// Handler handles staff HTTP requests for appointments
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new appointments handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts appointment routes under a clinic-scoped router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/availability/resolve", h.ResolveSlot)
	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", h.ListAppointments)
		r.Post("/", h.CreateAppointment)
		r.Get("/{appointmentID}", h.GetAppointment)
		r.Post("/{appointmentID}/confirm", h.ConfirmAppointment)
		r.Post("/{appointmentID}/cancel", h.CancelAppointment)
		r.Post("/{appointmentID}/reschedule", h.RescheduleAppointment)
	})
}

type createAppointmentRequest struct {
	ClinicianID  string               `json:"clinician_id"`
	PatientID    string               `json:"patient_id"`
	PatientName  string               `json:"patient_name"`
	PatientPhone string               `json:"patient_phone"`
	PatientEmail string               `json:"patient_email"`
	Service      string               `json:"service"`
	Date         string               `json:"date"`
	Start        scheduling.TimeOfDay `json:"start"`
	Duration     int                  `json:"duration_minutes"`
	Status       Status               `json:"status"`
}

type rescheduleRequest struct {
	ClinicianID string               `json:"clinician_id"`
	Date        string               `json:"date"`
	Start       scheduling.TimeOfDay `json:"start"`
	Duration    int                  `json:"duration_minutes"`
}

// CreateAppointment handles POST /appointments. Staff bookings skip the
// past-time policy.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var body createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	date, err := scheduling.ParseDate(body.Date)
	if err != nil {
		http.Error(w, `{"error": "date must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}

	appt, err := h.service.Book(r.Context(), &BookRequest{
		ClinicID:     chi.URLParam(r, "clinicID"),
		ClinicianID:  body.ClinicianID,
		PatientID:    body.PatientID,
		PatientName:  body.PatientName,
		PatientPhone: body.PatientPhone,
		PatientEmail: body.PatientEmail,
		Service:      body.Service,
		Date:         date,
		Start:        body.Start,
		Duration:     body.Duration,
		Source:       SourceStaff,
		Status:       body.Status,
	}, scheduling.Policy{})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, appt, h.logger)
}

// ListAppointments handles GET /appointments?clinician_id=&from=&to=
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
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

	appts, err := h.service.List(r.Context(), chi.URLParam(r, "clinicID"), q.Get("clinician_id"), from, to)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	if appts == nil {
		appts = []Appointment{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"appointments": appts}, h.logger)
}

// GetAppointment handles GET /appointments/{appointmentID}
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.service.Get(r.Context(), chi.URLParam(r, "clinicID"), chi.URLParam(r, "appointmentID"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, appt, h.logger)
}

// ConfirmAppointment handles POST /appointments/{appointmentID}/confirm
func (h *Handler) ConfirmAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.service.Confirm(r.Context(), chi.URLParam(r, "clinicID"), chi.URLParam(r, "appointmentID"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, appt, h.logger)
}

// CancelAppointment handles POST /appointments/{appointmentID}/cancel
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.service.Cancel(r.Context(), chi.URLParam(r, "clinicID"), chi.URLParam(r, "appointmentID"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, appt, h.logger)
}

// RescheduleAppointment handles POST /appointments/{appointmentID}/reschedule
func (h *Handler) RescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	var body rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	date, err := scheduling.ParseDate(body.Date)
	if err != nil {
		http.Error(w, `{"error": "date must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}

	appt, err := h.service.Reschedule(r.Context(), chi.URLParam(r, "clinicID"), chi.URLParam(r, "appointmentID"), RescheduleRequest{
		ClinicianID: body.ClinicianID,
		Date:        date,
		Start:       body.Start,
		Duration:    body.Duration,
	}, scheduling.Policy{})
	if err != nil && appt == nil {
		WriteError(w, err, h.logger)
		return
	}
	if err != nil {
		h.logger.Error("rescheduled appointment but failed to cancel the original", "appointment_id", chi.URLParam(r, "appointmentID"), "error", err)
	}
	WriteJSON(w, http.StatusOK, appt, h.logger)
}

// ResolveSlot handles GET /availability/resolve?clinician_id=&date=&start=&duration=
func (h *Handler) ResolveSlot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clinicianID := q.Get("clinician_id")
	if clinicianID == "" {
		http.Error(w, `{"error": "clinician_id is required"}`, http.StatusBadRequest)
		return
	}
	date, err := scheduling.ParseDate(q.Get("date"))
	if err != nil {
		http.Error(w, `{"error": "date must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}
	start, err := scheduling.ParseTimeOfDay(q.Get("start"))
	if err != nil {
		http.Error(w, `{"error": "start must be HH:MM"}`, http.StatusBadRequest)
		return
	}
	duration, err := strconv.Atoi(q.Get("duration"))
	if err != nil {
		http.Error(w, `{"error": "duration must be an integer"}`, http.StatusBadRequest)
		return
	}

	req := scheduling.Request{Date: date, Start: start, Duration: duration}
	decision, err := h.service.Resolve(r.Context(), chi.URLParam(r, "clinicID"), clinicianID, req, scheduling.Policy{})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"date":             date.Format(scheduling.DateLayout),
		"start":            start,
		"duration_minutes": duration,
		"bookable":         decision.Bookable,
		"mode":             decision.Mode,
	}, h.logger)
}

// WriteError maps service errors onto HTTP responses.
func WriteError(w http.ResponseWriter, err error, logger *logging.Logger) {
	if logger == nil {
		logger = logging.Default()
	}
	var unavailable *UnavailableError
	switch {
	case errors.As(err, &unavailable):
		WriteJSON(w, http.StatusConflict, map[string]any{
			"error":    ErrSlotUnavailable.Error(),
			"bookable": unavailable.Decision.Bookable,
			"mode":     unavailable.Decision.Mode,
		}, logger)
	case errors.Is(err, ErrSlotTaken):
		WriteJSON(w, http.StatusConflict, map[string]any{
			"error":     ErrSlotTaken.Error(),
			"retryable": true,
		}, logger)
	case errors.Is(err, ErrInvalidRequest):
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()}, logger)
	case errors.Is(err, ErrAppointmentNotFound):
		http.Error(w, `{"error": "appointment not found"}`, http.StatusNotFound)
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, `{"error": "invalid status transition"}`, http.StatusConflict)
	case errors.Is(err, ErrOutsideWorkingHours):
		http.Error(w, `{"error": "slot outside working hours"}`, http.StatusConflict)
	default:
		logger.Error("appointment request failed", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
	}
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any, logger *logging.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
