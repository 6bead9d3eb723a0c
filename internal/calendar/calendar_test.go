package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/clinic-scheduling/internal/appointments"
	"github.com/wolfman30/clinic-scheduling/internal/blocks"
	"github.com/wolfman30/clinic-scheduling/internal/clinic"
	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
)

// Monday
var monday = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

type fixture struct {
	calendar *Service
	appts    *appointments.Service
	blocks   *blocks.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	blockSvc := blocks.NewService(blocks.NewInMemoryRepository(), nil)
	apptSvc := appointments.NewService(appointments.NewInMemoryRepository(), blockSvc, nil)
	return &fixture{
		calendar: NewService(apptSvc, blockSvc, clinic.NewStore(client), nil),
		appts:    apptSvc,
		blocks:   blockSvc,
	}
}

func (f *fixture) book(t *testing.T, start scheduling.TimeOfDay, duration int) *appointments.Appointment {
	t.Helper()
	appt, err := f.appts.Book(context.Background(), &appointments.BookRequest{
		ClinicID:    "clinic-1",
		ClinicianID: "dr-a",
		PatientID:   "patient",
		Date:        monday,
		Start:       start,
		Duration:    duration,
	}, scheduling.Policy{})
	require.NoError(t, err)
	return appt
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	f.book(t, scheduling.Clock(10, 0), 60)
	f.book(t, scheduling.Clock(11, 0), 60)
	f.book(t, scheduling.Clock(11, 0), 60)
	f.book(t, scheduling.Clock(15, 0), 90)
	f.book(t, scheduling.Clock(17, 30), 30)
	f.book(t, scheduling.Clock(8, 0), 30)
	_, err := f.blocks.Create(context.Background(), &blocks.CreateBlockRequest{
		ClinicID: "clinic-1", ClinicianID: "dr-a", Date: "2025-03-10",
		Start: scheduling.Clock(13, 0), End: scheduling.Clock(14, 0), Reason: "lunch",
	})
	require.NoError(t, err)
}

func TestDayView(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	view, err := f.calendar.Day(context.Background(), "clinic-1", "dr-a", monday, 0)
	require.NoError(t, err)

	assert.False(t, view.Closed)
	assert.Equal(t, 60, view.Duration)
	require.Len(t, view.Slots, 9)

	states := make([]State, 0, len(view.Slots))
	for _, s := range view.Slots {
		states = append(states, s.State)
	}
	assert.Equal(t, []State{
		StateOpen,     // 09:00
		StateOverbook, // 10:00
		StateFull,     // 11:00 two at the same start
		StateOpen,     // 12:00
		StateBlocked,  // 13:00
		StateOpen,     // 14:00
		StateOverbook, // 15:00 coincides with the 90 minute appointment
		StateFull,     // 16:00 overlaps it
		StateFull,     // 17:00 overlaps 17:30
	}, states)

	assert.Len(t, view.Slots[2].Appointments, 2)
	assert.Len(t, view.Slots[8].Appointments, 1, "17:30 shows under the 17:00 slot")
	require.Len(t, view.OffGrid, 1)
	assert.Equal(t, scheduling.Clock(8, 0), view.OffGrid[0].Start)
	assert.Len(t, view.Blocks, 1)
}

func TestDayView_CancelledFreesSlot(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, scheduling.Clock(10, 0), 60)
	_, err := f.appts.Cancel(context.Background(), "clinic-1", appt.ID)
	require.NoError(t, err)

	view, err := f.calendar.Day(context.Background(), "clinic-1", "dr-a", monday, 60)
	require.NoError(t, err)
	assert.Equal(t, StateOpen, view.Slots[1].State)
	assert.Empty(t, view.Slots[1].Appointments)
}

func TestDayView_LongerDuration(t *testing.T) {
	f := newFixture(t)

	view, err := f.calendar.Day(context.Background(), "clinic-1", "dr-a", monday, 90)
	require.NoError(t, err)
	require.Len(t, view.Slots, 8)
	assert.Equal(t, scheduling.Clock(16, 0), view.Slots[7].Start)
	assert.Equal(t, scheduling.Clock(17, 30), view.Slots[7].End)
}

func TestDayView_ClosedDay(t *testing.T) {
	f := newFixture(t)

	view, err := f.calendar.Day(context.Background(), "clinic-1", "dr-a", monday.AddDate(0, 0, 5), 0)
	require.NoError(t, err)
	assert.True(t, view.Closed)
	assert.Empty(t, view.Slots)
}

func TestWeekView(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	view, err := f.calendar.Week(context.Background(), "clinic-1", "dr-a", monday.AddDate(0, 0, 2), 0)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", view.From)
	assert.Equal(t, "2025-03-16", view.To)
	require.Len(t, view.Days, 7)
	assert.Equal(t, StateOverbook, view.Days[0].Slots[1].State)
	assert.Equal(t, StateOpen, view.Days[1].Slots[1].State)
	assert.True(t, view.Days[5].Closed)
	assert.True(t, view.Days[6].Closed)
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{monday, "2025-03-10"},
		{monday.AddDate(0, 0, 6), "2025-03-10"},
		{monday.AddDate(0, 0, 7), "2025-03-17"},
		{time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "2024-12-30"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WeekStart(tt.in).Format(scheduling.DateLayout))
	}
}

func TestMonthView(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	view, err := f.calendar.Month(context.Background(), "clinic-1", "dr-a", monday, 0)
	require.NoError(t, err)
	assert.Equal(t, "2025-03", view.Month)
	require.Len(t, view.Days, 31)

	day := view.Days[9]
	assert.Equal(t, "2025-03-10", day.Date)
	assert.Equal(t, 6, day.Appointments)
	assert.Equal(t, 3, day.OpenSlots)
	assert.Equal(t, 2, day.OverbookOpen)

	assert.True(t, view.Days[0].Closed, "March 1st 2025 is a Saturday")
	assert.Equal(t, 9, view.Days[10].OpenSlots)
}

func TestInvalidQuery(t *testing.T) {
	f := newFixture(t)
	_, err := f.calendar.Day(context.Background(), "clinic-1", "", monday, 0)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = f.calendar.Day(context.Background(), "clinic-1", "dr-a", monday, 2000)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestHandler(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	r := chi.NewRouter()
	r.Route("/clinics/{clinicID}", NewHandler(f.calendar, nil).RegisterRoutes)

	tests := []struct {
		target string
		want   int
	}{
		{"/clinics/clinic-1/calendar/day?clinician_id=dr-a&date=2025-03-10", http.StatusOK},
		{"/clinics/clinic-1/calendar/week?clinician_id=dr-a&date=2025-03-10&duration=30", http.StatusOK},
		{"/clinics/clinic-1/calendar/month?clinician_id=dr-a&month=2025-03", http.StatusOK},
		{"/clinics/clinic-1/calendar/day?clinician_id=dr-a", http.StatusBadRequest},
		{"/clinics/clinic-1/calendar/day?date=2025-03-10", http.StatusBadRequest},
		{"/clinics/clinic-1/calendar/day?clinician_id=dr-a&date=2025-03-10&duration=-5", http.StatusBadRequest},
		{"/clinics/clinic-1/calendar/month?clinician_id=dr-a&month=March", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clinics/clinic-1/calendar/day?clinician_id=dr-a&date=2025-03-10", nil))
	var body struct {
		Slots []struct {
			Start string `json:"start"`
			State string `json:"state"`
		} `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Slots)
	assert.Equal(t, "09:00", body.Slots[0].Start)
	assert.Equal(t, "open", body.Slots[0].State)
}
