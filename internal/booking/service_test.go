package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/scheduling-engine/internal/appointment"
	"github.com/clinicore/scheduling-engine/internal/reminder"
	"github.com/clinicore/scheduling-engine/internal/schedule"
)

// stubScheduler records reminder calls without touching storage.
type stubScheduler struct {
	mu          sync.Mutex
	scheduled   []appointment.Appointment
	rescheduled []appointment.Appointment
	cancelled   []uuid.UUID
}

func (s *stubScheduler) ScheduleFor(ctx context.Context, appt appointment.Appointment) ([]reminder.ScheduledReminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, appt)
	return nil, nil
}

func (s *stubScheduler) RescheduleFor(ctx context.Context, appt appointment.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rescheduled = append(s.rescheduled, appt)
	return nil
}

func (s *stubScheduler) CancelFor(ctx context.Context, appointmentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, appointmentID)
	return nil
}

func seedSlot(t *testing.T, repo *schedule.InMemoryRepository, providerID uuid.UUID, start time.Time) schedule.AvailabilitySlot {
	t.Helper()
	slots := []schedule.AvailabilitySlot{{
		ProviderID: providerID,
		Date:       schedule.DateOnly(start),
		StartTime:  start,
		EndTime:    start.Add(30 * time.Minute),
	}}
	_, err := repo.PersistBatch(context.Background(), slots)
	require.NoError(t, err)

	stored, err := repo.List(context.Background(), providerID, schedule.DateOnly(start), schedule.DateOnly(start), true)
	require.NoError(t, err)
	for _, s := range stored {
		if s.StartTime.Equal(start) {
			return s
		}
	}
	t.Fatalf("seeded slot not found")
	return schedule.AvailabilitySlot{}
}

func testAppt() appointment.Appointment {
	return appointment.Appointment{
		ID:           uuid.New(),
		PatientID:    uuid.New(),
		PatientName:  "Ana Silva",
		PatientPhone: "+15550100",
		ProviderName: "Dr. Moreau",
		Type:         "checkup",
	}
}

func TestBookSchedulesRemindersWithSlotTime(t *testing.T) {
	repo := schedule.NewInMemoryRepository()
	sched := &stubScheduler{}
	svc := NewService(repo, sched, nil, nil)

	start := time.Date(2024, 1, 25, 14, 0, 0, 0, time.UTC)
	slot := seedSlot(t, repo, uuid.New(), start)
	appt := testAppt()

	booked, err := svc.Book(context.Background(), slot.ID, appt)
	require.NoError(t, err)
	assert.False(t, booked.Available)

	require.Len(t, sched.scheduled, 1)
	assert.Equal(t, start, sched.scheduled[0].Datetime, "appointment datetime defaults to slot start")
}

func TestConcurrentBookExactlyOneWinner(t *testing.T) {
	repo := schedule.NewInMemoryRepository()
	svc := NewService(repo, &stubScheduler{}, nil, nil)

	slot := seedSlot(t, repo, uuid.New(), time.Date(2024, 1, 25, 14, 0, 0, 0, time.UTC))

	const callers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := make([]uuid.UUID, 0, 1)
	conflicts := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			appt := testAppt()
			_, err := svc.Book(context.Background(), slot.ID, appt)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, appt.ID)
			case assert.ErrorIs(t, err, schedule.ErrBookingConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1, "exactly one booking must win")
	assert.Equal(t, callers-1, conflicts)

	final, err := repo.GetSlotByID(context.Background(), slot.ID)
	require.NoError(t, err)
	require.NotNil(t, final.AppointmentID)
	assert.Equal(t, winners[0], *final.AppointmentID)
}

func TestBookReleaseRoundTrip(t *testing.T) {
	repo := schedule.NewInMemoryRepository()
	svc := NewService(repo, &stubScheduler{}, nil, nil)

	slot := seedSlot(t, repo, uuid.New(), time.Date(2024, 1, 25, 14, 0, 0, 0, time.UTC))
	appt := testAppt()

	_, err := svc.Book(context.Background(), slot.ID, appt)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), appt.ID))

	restored, err := repo.GetSlotByID(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.True(t, restored.Available)
	assert.Nil(t, restored.AppointmentID)
}

func TestCancelIsIdempotent(t *testing.T) {
	repo := schedule.NewInMemoryRepository()
	sched := &stubScheduler{}
	svc := NewService(repo, sched, nil, nil)

	slot := seedSlot(t, repo, uuid.New(), time.Date(2024, 1, 25, 14, 0, 0, 0, time.UTC))
	appt := testAppt()

	_, err := svc.Book(context.Background(), slot.ID, appt)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), appt.ID))
	// Retried cancellation after a partial failure must converge, not error.
	require.NoError(t, svc.Cancel(context.Background(), appt.ID))

	assert.Len(t, sched.cancelled, 2, "reminder cancellation runs on every attempt and is itself idempotent")
}

func TestCancelUnknownAppointmentStillCancelsReminders(t *testing.T) {
	repo := schedule.NewInMemoryRepository()
	sched := &stubScheduler{}
	svc := NewService(repo, sched, nil, nil)

	apptID := uuid.New()
	require.NoError(t, svc.Cancel(context.Background(), apptID))
	assert.Equal(t, []uuid.UUID{apptID}, sched.cancelled)
}

func TestRescheduleBooksNewBeforeReleasingOld(t *testing.T) {
	repo := schedule.NewInMemoryRepository()
	sched := &stubScheduler{}
	svc := NewService(repo, sched, nil, nil)

	providerID := uuid.New()
	oldSlot := seedSlot(t, repo, providerID, time.Date(2024, 1, 25, 14, 0, 0, 0, time.UTC))
	newSlot := seedSlot(t, repo, providerID, time.Date(2024, 1, 26, 10, 0, 0, 0, time.UTC))
	appt := testAppt()

	_, err := svc.Book(context.Background(), oldSlot.ID, appt)
	require.NoError(t, err)

	moved, err := svc.Reschedule(context.Background(), newSlot.ID, appt)
	require.NoError(t, err)
	assert.Equal(t, newSlot.ID, moved.ID)

	released, err := repo.GetSlotByID(context.Background(), oldSlot.ID)
	require.NoError(t, err)
	assert.True(t, released.Available)

	require.Len(t, sched.rescheduled, 1)
	assert.Equal(t, newSlot.StartTime, sched.rescheduled[0].Datetime)
}

func TestRescheduleConflictLeavesOldSlotUntouched(t *testing.T) {
	repo := schedule.NewInMemoryRepository()
	svc := NewService(repo, &stubScheduler{}, nil, nil)

	providerID := uuid.New()
	oldSlot := seedSlot(t, repo, providerID, time.Date(2024, 1, 25, 14, 0, 0, 0, time.UTC))
	takenSlot := seedSlot(t, repo, providerID, time.Date(2024, 1, 26, 10, 0, 0, 0, time.UTC))

	appt := testAppt()
	other := testAppt()

	_, err := svc.Book(context.Background(), oldSlot.ID, appt)
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), takenSlot.ID, other)
	require.NoError(t, err)

	_, err = svc.Reschedule(context.Background(), takenSlot.ID, appt)
	assert.ErrorIs(t, err, schedule.ErrBookingConflict)

	// Fail-safe ordering: the original booking survives.
	kept, err := repo.GetSlotByID(context.Background(), oldSlot.ID)
	require.NoError(t, err)
	assert.False(t, kept.Available)
	require.NotNil(t, kept.AppointmentID)
	assert.Equal(t, appt.ID, *kept.AppointmentID)
}

func TestRescheduleOntoSameSlotIsNoOp(t *testing.T) {
	repo := schedule.NewInMemoryRepository()
	sched := &stubScheduler{}
	svc := NewService(repo, sched, nil, nil)

	slot := seedSlot(t, repo, uuid.New(), time.Date(2024, 1, 25, 14, 0, 0, 0, time.UTC))
	appt := testAppt()

	_, err := svc.Book(context.Background(), slot.ID, appt)
	require.NoError(t, err)

	same, err := svc.Reschedule(context.Background(), slot.ID, appt)
	require.NoError(t, err)
	assert.Equal(t, slot.ID, same.ID)
	assert.Empty(t, sched.rescheduled)
}
