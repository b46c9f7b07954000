package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/scheduling-engine/internal/booking"
	"github.com/clinicore/scheduling-engine/internal/reminder"
	"github.com/clinicore/scheduling-engine/internal/schedule"
)

func newTestRouter(t *testing.T) (http.Handler, *schedule.InMemoryRepository, *reminder.InMemoryRepository) {
	t.Helper()

	slotRepo := schedule.NewInMemoryRepository()
	remRepo := reminder.NewInMemoryRepository()
	sched := reminder.NewScheduler(remRepo, nil, nil, nil)
	bookings := booking.NewService(slotRepo, sched, nil, nil)

	router := NewRouter(RouterConfig{
		Templates: slotRepo,
		Slots:     slotRepo,
		Generator: schedule.NewGenerator(slotRepo, slotRepo, nil, nil),
		Bookings:  bookings,
		Reminders: remRepo,
		Env:       "test",
		Version:   "test",
	})
	return router, slotRepo, remRepo
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestTemplateUpsertThenGenerate(t *testing.T) {
	router, _, _ := newTestRouter(t)
	providerID := uuid.New()

	rec := doJSON(t, router, http.MethodPost, "/providers/"+providerID.String()+"/templates", TemplateRequest{
		Weekday:         1,
		StartTime:       "09:00",
		EndTime:         "12:00",
		DurationMinutes: 30,
		BufferMinutes:   10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// 2024-01-22 is a Monday; a single Monday in range yields one expansion.
	rec = doJSON(t, router, http.MethodPost, "/providers/"+providerID.String()+"/slots/generate", GenerateSlotsRequest{
		From: "2024-01-22",
		To:   "2024-01-22",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var genResp GenerateSlotsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&genResp))
	assert.Equal(t, 4, genResp.SlotsCreated)

	rec = doJSON(t, router, http.MethodGet, "/providers/"+providerID.String()+"/slots?from=2024-01-22&to=2024-01-22&available=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var slots []SlotResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&slots))
	require.Len(t, slots, 4)
	assert.Equal(t, "09:00", slots[0].StartTime.Format("15:04"))
	assert.Equal(t, "11:00", slots[3].StartTime.Format("15:04"))
}

func TestTemplateValidationRejected(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/providers/"+uuid.NewString()+"/templates", TemplateRequest{
		Weekday:         1,
		StartTime:       "12:00",
		EndTime:         "09:00",
		DurationMinutes: 30,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, "invalid_template", errResp.Error)
}

func TestBookingConflictReturns409(t *testing.T) {
	router, slotRepo, _ := newTestRouter(t)
	providerID := uuid.New()

	seedTemplateAndGenerate(t, router, providerID)
	slots, err := slotRepo.List(context.Background(), providerID, mustDate(t, "2024-01-22"), mustDate(t, "2024-01-22"), true)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	book := func() *httptest.ResponseRecorder {
		return doJSON(t, router, http.MethodPost, "/bookings", BookingRequest{
			SlotID:        slots[0].ID.String(),
			AppointmentID: uuid.NewString(),
			PatientID:     uuid.NewString(),
			PatientName:   "Ana Silva",
			PatientPhone:  "+15550100",
		})
	}

	rec := book()
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = book()
	assert.Equal(t, http.StatusConflict, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, "slot_already_booked", errResp.Error)
}

func TestBookThenCancelAndListReminders(t *testing.T) {
	router, slotRepo, _ := newTestRouter(t)
	providerID := uuid.New()

	seedTemplateAndGenerate(t, router, providerID)
	slots, err := slotRepo.List(context.Background(), providerID, mustDate(t, "2024-01-22"), mustDate(t, "2024-01-22"), true)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	apptID := uuid.New()
	rec := doJSON(t, router, http.MethodPost, "/bookings", BookingRequest{
		SlotID:        slots[0].ID.String(),
		AppointmentID: apptID.String(),
		PatientID:     uuid.NewString(),
		PatientName:   "Ana Silva",
		PatientEmail:  "ana@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/bookings/"+apptID.String()+"/reminders", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var reminders []ReminderResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reminders))
	require.NotEmpty(t, reminders)
	assert.Equal(t, "email", reminders[0].Channel)

	rec = doJSON(t, router, http.MethodPost, "/bookings/"+apptID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestBookingUnknownSlotReturns404(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/bookings", BookingRequest{
		SlotID:        uuid.NewString(),
		AppointmentID: uuid.NewString(),
		PatientID:     uuid.NewString(),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(time.DateOnly, s)
	require.NoError(t, err)
	return d
}

func seedTemplateAndGenerate(t *testing.T, router http.Handler, providerID uuid.UUID) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/providers/"+providerID.String()+"/templates", TemplateRequest{
		Weekday:         1,
		StartTime:       "09:00",
		EndTime:         "12:00",
		DurationMinutes: 30,
		BufferMinutes:   10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/providers/"+providerID.String()+"/slots/generate", GenerateSlotsRequest{
		From: "2024-01-22",
		To:   "2024-01-22",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
