package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/scheduling-engine/internal/appointment"
)

func testAppointment(datetime time.Time) appointment.Appointment {
	return appointment.Appointment{
		ID:           uuid.New(),
		PatientID:    uuid.New(),
		PatientName:  "Ana Silva",
		PatientPhone: "+15550100",
		ProviderName: "Dr. Moreau",
		Type:         "checkup",
		Datetime:     datetime,
	}
}

func newTestScheduler(repo Repository, rules []Rule, now time.Time) *Scheduler {
	s := NewScheduler(repo, rules, nil, nil)
	s.now = func() time.Time { return now }
	return s
}

func TestScheduleForComputesOffsetRelativeTimes(t *testing.T) {
	repo := NewInMemoryRepository()
	now := time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC)
	appt := testAppointment(time.Date(2024, 1, 25, 14, 0, 0, 0, time.UTC))

	rules := []Rule{{
		Type:            "day_before",
		Offset:          24 * time.Hour,
		MessageTemplate: "See you on {{appointment_date}} at {{appointment_time}}.",
	}}

	created, err := newTestScheduler(repo, rules, now).ScheduleFor(context.Background(), appt)
	require.NoError(t, err)
	require.Len(t, created, 1)

	rem := created[0]
	assert.Equal(t, time.Date(2024, 1, 24, 14, 0, 0, 0, time.UTC), rem.ScheduledFor)
	assert.Equal(t, StatusPending, rem.Status)
	assert.Equal(t, ChannelSMS, rem.Channel)
	assert.Equal(t, "+15550100", rem.Recipient)
	assert.Equal(t, "See you on 2024-01-25 at 14:00.", rem.Content)
}

func TestScheduleForPastDueWithoutFloorSendsASAP(t *testing.T) {
	repo := NewInMemoryRepository()
	now := time.Date(2024, 1, 25, 10, 0, 0, 0, time.UTC)
	// Appointment in 4h; 24h rule already past due.
	appt := testAppointment(now.Add(4 * time.Hour))

	rules := []Rule{{Type: "day_before", Offset: 24 * time.Hour, MessageTemplate: "hi"}}

	created, err := newTestScheduler(repo, rules, now).ScheduleFor(context.Background(), appt)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, now, created[0].ScheduledFor)
}

func TestScheduleForSkipsBelowMinimumLeadTime(t *testing.T) {
	repo := NewInMemoryRepository()
	now := time.Date(2024, 1, 25, 13, 45, 0, 0, time.UTC)
	// Appointment in 15 minutes; the 2h rule has a 30 minute floor.
	appt := testAppointment(now.Add(15 * time.Minute))

	rules := []Rule{{
		Type:            "short_notice",
		Offset:          2 * time.Hour,
		MinLeadTime:     30 * time.Minute,
		MessageTemplate: "hi",
	}}

	created, err := newTestScheduler(repo, rules, now).ScheduleFor(context.Background(), appt)
	require.NoError(t, err)
	assert.Empty(t, created)

	stored, err := repo.ListByAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestScheduleForChannelSelection(t *testing.T) {
	now := time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC)
	rules := []Rule{{Type: "day_before", Offset: 24 * time.Hour, MessageTemplate: "hi"}}

	t.Run("email when no phone", func(t *testing.T) {
		repo := NewInMemoryRepository()
		appt := testAppointment(now.Add(48 * time.Hour))
		appt.PatientPhone = ""
		appt.PatientEmail = "ana@example.com"

		created, err := newTestScheduler(repo, rules, now).ScheduleFor(context.Background(), appt)
		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Equal(t, ChannelEmail, created[0].Channel)
		assert.Equal(t, "ana@example.com", created[0].Recipient)
	})

	t.Run("no contact fields creates nothing", func(t *testing.T) {
		repo := NewInMemoryRepository()
		appt := testAppointment(now.Add(48 * time.Hour))
		appt.PatientPhone = ""
		appt.PatientEmail = ""

		created, err := newTestScheduler(repo, rules, now).ScheduleFor(context.Background(), appt)
		require.NoError(t, err)
		assert.Empty(t, created)
	})
}

func TestRescheduleForOnlyTouchesPending(t *testing.T) {
	repo := NewInMemoryRepository()
	now := time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC)
	appt := testAppointment(time.Date(2024, 1, 25, 14, 0, 0, 0, time.UTC))

	rules := []Rule{
		{Type: "day_before", Offset: 24 * time.Hour, MessageTemplate: "at {{appointment_time}}"},
		{Type: "short_notice", Offset: 2 * time.Hour, MessageTemplate: "soon"},
	}
	sched := newTestScheduler(repo, rules, now)

	created, err := sched.ScheduleFor(context.Background(), appt)
	require.NoError(t, err)
	require.Len(t, created, 2)

	// First reminder already went out.
	require.NoError(t, repo.Claim(context.Background(), created[0].ID))
	require.NoError(t, repo.MarkSent(context.Background(), created[0].ID, now))

	appt.Datetime = time.Date(2024, 1, 26, 16, 0, 0, 0, time.UTC)
	require.NoError(t, sched.RescheduleFor(context.Background(), appt))

	sent, err := repo.GetByID(context.Background(), created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, sent.Status)
	assert.Equal(t, created[0].ScheduledFor, sent.ScheduledFor, "sent reminder is immutable history")

	pending, err := repo.GetByID(context.Background(), created[1].ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, pending.Status)
	assert.Equal(t, time.Date(2024, 1, 26, 14, 0, 0, 0, time.UTC), pending.ScheduledFor)
}

func TestCancelForIsIdempotent(t *testing.T) {
	repo := NewInMemoryRepository()
	now := time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC)
	appt := testAppointment(now.Add(72 * time.Hour))

	sched := newTestScheduler(repo, nil, now)

	created, err := sched.ScheduleFor(context.Background(), appt)
	require.NoError(t, err)
	require.NotEmpty(t, created)

	require.NoError(t, sched.CancelFor(context.Background(), appt.ID))

	stored, err := repo.ListByAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	for _, rem := range stored {
		assert.Equal(t, StatusCancelled, rem.Status)
	}

	// Second invocation converges to the same end state.
	require.NoError(t, sched.CancelFor(context.Background(), appt.ID))
}
