package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/scheduling-engine/internal/notify"
)

// recordingNotifier counts sends per recipient and can fail selectively.
type recordingNotifier struct {
	mu      sync.Mutex
	sends   map[string]int
	failFor map[string]error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		sends:   make(map[string]int),
		failFor: make(map[string]error),
	}
}

func (n *recordingNotifier) Send(ctx context.Context, channel notify.Channel, recipient, content string) (*notify.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err, ok := n.failFor[recipient]; ok {
		return nil, err
	}
	n.sends[recipient]++
	return &notify.Receipt{DeliveredAt: time.Now()}, nil
}

func (n *recordingNotifier) count(recipient string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sends[recipient]
}

func dueReminder(repo *InMemoryRepository, t *testing.T, recipient string, scheduledFor time.Time) ScheduledReminder {
	t.Helper()
	rem := ScheduledReminder{
		AppointmentID: uuid.New(),
		PatientID:     uuid.New(),
		RuleType:      "day_before",
		Channel:       ChannelSMS,
		Recipient:     recipient,
		Content:       "reminder",
		ScheduledFor:  scheduledFor,
		Status:        StatusPending,
	}
	require.NoError(t, repo.Create(context.Background(), &rem))
	return rem
}

func newTestDispatcher(repo Repository, notifier notify.Notifier, now time.Time) *Dispatcher {
	d := NewDispatcher(repo, notifier, 0, nil, nil)
	d.now = func() time.Time { return now }
	d.sleep = func(ctx context.Context, dur time.Duration) {}
	return d
}

func TestProcessPendingSendsDueReminders(t *testing.T) {
	repo := NewInMemoryRepository()
	notifier := newRecordingNotifier()
	now := time.Date(2024, 1, 24, 14, 0, 0, 0, time.UTC)

	due := dueReminder(repo, t, "+1555-due", now.Add(-time.Minute))
	future := dueReminder(repo, t, "+1555-future", now.Add(time.Hour))

	report, err := newTestDispatcher(repo, notifier, now).ProcessPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Due)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, notifier.count("+1555-due"))
	assert.Equal(t, 0, notifier.count("+1555-future"))

	sent, err := repo.GetByID(context.Background(), due.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	assert.Equal(t, now, *sent.SentAt)

	untouched, err := repo.GetByID(context.Background(), future.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, untouched.Status)
}

func TestProcessPendingRecordsFailuresDurably(t *testing.T) {
	repo := NewInMemoryRepository()
	notifier := newRecordingNotifier()
	now := time.Date(2024, 1, 24, 14, 0, 0, 0, time.UTC)

	failing := dueReminder(repo, t, "+1555-bad", now.Add(-2*time.Minute))
	ok := dueReminder(repo, t, "+1555-ok", now.Add(-time.Minute))
	notifier.failFor["+1555-bad"] = &notify.DeliveryError{Reason: "timeout", Err: notify.ErrDeliveryTimeout}

	report, err := newTestDispatcher(repo, notifier, now).ProcessPending(context.Background())
	require.NoError(t, err)

	// One failure does not abort the rest of the batch.
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Sent)

	failed, err := repo.GetByID(context.Background(), failing.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	require.NotNil(t, failed.FailureReason)
	assert.Contains(t, *failed.FailureReason, "timeout")

	sent, err := repo.GetByID(context.Background(), ok.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, sent.Status)
}

func TestFailedRemindersAreNeverRetried(t *testing.T) {
	repo := NewInMemoryRepository()
	notifier := newRecordingNotifier()
	now := time.Date(2024, 1, 24, 14, 0, 0, 0, time.UTC)

	rem := dueReminder(repo, t, "+1555-bad", now.Add(-time.Minute))
	notifier.failFor["+1555-bad"] = errors.New("provider down")

	d := newTestDispatcher(repo, notifier, now)
	_, err := d.ProcessPending(context.Background())
	require.NoError(t, err)

	// Next pass sees nothing: failed is terminal.
	report, err := d.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Due)

	failed, err := repo.GetByID(context.Background(), rem.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
}

func TestOverlappingDispatchRunsNeverDoubleSend(t *testing.T) {
	repo := NewInMemoryRepository()
	notifier := newRecordingNotifier()
	now := time.Date(2024, 1, 24, 14, 0, 0, 0, time.UTC)

	const n = 50
	recipients := make([]string, 0, n)
	for i := 0; i < n; i++ {
		rem := dueReminder(repo, t, uuid.NewString(), now.Add(-time.Minute))
		recipients = append(recipients, rem.Recipient)
	}

	// Both runs observe the same pending rows before either claims one;
	// the atomic claim decides ownership.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := newTestDispatcher(repo, notifier, now).ProcessPending(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, recipient := range recipients {
		assert.Equal(t, 1, notifier.count(recipient), "reminder for %s delivered more than once", recipient)
	}
}

func TestCancelledReminderIsSkippedMidPass(t *testing.T) {
	repo := NewInMemoryRepository()
	notifier := newRecordingNotifier()
	now := time.Date(2024, 1, 24, 14, 0, 0, 0, time.UTC)

	rem := dueReminder(repo, t, "+1555-cancel", now.Add(-time.Minute))
	_, err := repo.CancelForAppointment(context.Background(), rem.AppointmentID)
	require.NoError(t, err)

	report, err := newTestDispatcher(repo, notifier, now).ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Due)
	assert.Equal(t, 0, notifier.count("+1555-cancel"))
}
