package reminder

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is a test/demo implementation. The mutex is held for
// every conditional transition, matching the atomicity the Postgres
// implementation gets from conditional UPDATEs.
type InMemoryRepository struct {
	mu        sync.Mutex
	reminders map[uuid.UUID]ScheduledReminder
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{reminders: make(map[uuid.UUID]ScheduledReminder)}
}

func (r *InMemoryRepository) Create(ctx context.Context, rem *ScheduledReminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rem.ID == uuid.Nil {
		rem.ID = uuid.New()
	}
	if rem.Status == "" {
		rem.Status = StatusPending
	}
	now := time.Now()
	rem.CreatedAt = now
	rem.UpdatedAt = now
	r.reminders[rem.ID] = *rem
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*ScheduledReminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rem, ok := r.reminders[id]
	if !ok {
		return nil, ErrReminderNotFound
	}
	return &rem, nil
}

func (r *InMemoryRepository) ListDue(ctx context.Context, asOf time.Time) ([]ScheduledReminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []ScheduledReminder
	for _, rem := range r.reminders {
		if rem.Status == StatusPending && !rem.ScheduledFor.After(asOf) {
			result = append(result, rem)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledFor.Before(result[j].ScheduledFor)
	})
	return result, nil
}

func (r *InMemoryRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]ScheduledReminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []ScheduledReminder
	for _, rem := range r.reminders {
		if rem.AppointmentID == appointmentID {
			result = append(result, rem)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledFor.Before(result[j].ScheduledFor)
	})
	return result, nil
}

func (r *InMemoryRepository) Claim(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rem, ok := r.reminders[id]
	if !ok || rem.Status != StatusPending {
		return ErrNotClaimable
	}
	rem.Status = StatusSending
	rem.UpdatedAt = time.Now()
	r.reminders[id] = rem
	return nil
}

func (r *InMemoryRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rem, ok := r.reminders[id]
	if !ok || rem.Status != StatusSending {
		return ErrReminderNotFound
	}
	sentAt := at
	rem.Status = StatusSent
	rem.SentAt = &sentAt
	rem.UpdatedAt = time.Now()
	r.reminders[id] = rem
	return nil
}

func (r *InMemoryRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rem, ok := r.reminders[id]
	if !ok || rem.Status != StatusSending {
		return ErrReminderNotFound
	}
	rem.Status = StatusFailed
	rem.FailureReason = &reason
	rem.UpdatedAt = time.Now()
	r.reminders[id] = rem
	return nil
}

func (r *InMemoryRepository) CancelForAppointment(ctx context.Context, appointmentID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var affected int64
	for id, rem := range r.reminders {
		if rem.AppointmentID == appointmentID && rem.Status == StatusPending {
			rem.Status = StatusCancelled
			rem.UpdatedAt = time.Now()
			r.reminders[id] = rem
			affected++
		}
	}
	return affected, nil
}

func (r *InMemoryRepository) UpdatePendingSchedule(ctx context.Context, id uuid.UUID, scheduledFor time.Time, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rem, ok := r.reminders[id]
	if !ok || rem.Status != StatusPending {
		return ErrReminderNotFound
	}
	rem.ScheduledFor = scheduledFor
	rem.Content = content
	rem.UpdatedAt = time.Now()
	r.reminders[id] = rem
	return nil
}
