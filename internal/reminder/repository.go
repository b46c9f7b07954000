package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrReminderNotFound = errors.New("reminder not found")
	// ErrNotClaimable means the row was not pending when the claim ran:
	// another dispatcher got there first, or the reminder was cancelled.
	ErrNotClaimable = errors.New("reminder is not claimable")
)

// Repository persists scheduled reminders. Claim, MarkSent and MarkFailed
// are conditional transitions guarded by the stored status, so overlapping
// dispatcher runs are safe without an application-level lock.
type Repository interface {
	Create(ctx context.Context, r *ScheduledReminder) error
	GetByID(ctx context.Context, id uuid.UUID) (*ScheduledReminder, error)
	ListDue(ctx context.Context, asOf time.Time) ([]ScheduledReminder, error)
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]ScheduledReminder, error)

	// Claim transitions pending → sending; zero rows matched → ErrNotClaimable.
	Claim(ctx context.Context, id uuid.UUID) error
	// MarkSent transitions sending → sent and records sent_at.
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	// MarkFailed transitions sending → failed with a durable reason.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// CancelForAppointment transitions all pending reminders of the
	// appointment to cancelled. Idempotent; returns rows affected.
	CancelForAppointment(ctx context.Context, appointmentID uuid.UUID) (int64, error)
	// UpdatePendingSchedule rewrites scheduled_for and content for a
	// still-pending reminder; terminal and in-flight rows are untouched.
	UpdatePendingSchedule(ctx context.Context, id uuid.UUID, scheduledFor time.Time, content string) error
}
