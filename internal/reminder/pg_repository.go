package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

const reminderColumns = `id, appointment_id, patient_id, rule_type, channel, recipient, content, scheduled_for, status, sent_at, failure_reason, created_at, updated_at`

func scanReminder(row pgx.Row) (*ScheduledReminder, error) {
	var r ScheduledReminder
	var status, channel string
	var sentAt *time.Time
	var failureReason *string

	err := row.Scan(
		&r.ID,
		&r.AppointmentID,
		&r.PatientID,
		&r.RuleType,
		&channel,
		&r.Recipient,
		&r.Content,
		&r.ScheduledFor,
		&status,
		&sentAt,
		&failureReason,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReminderNotFound
		}
		return nil, err
	}

	r.Status = Status(status)
	r.Channel = Channel(channel)
	r.SentAt = sentAt
	r.FailureReason = failureReason
	return &r, nil
}

func scanReminders(rows pgx.Rows) ([]ScheduledReminder, error) {
	var result []ScheduledReminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

func (r *PgRepository) Create(ctx context.Context, rem *ScheduledReminder) error {
	if rem.ID == uuid.Nil {
		rem.ID = uuid.New()
	}
	if rem.Status == "" {
		rem.Status = StatusPending
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO scheduled_reminders (id, appointment_id, patient_id, rule_type, channel, recipient, content, scheduled_for, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
	`, rem.ID, rem.AppointmentID, rem.PatientID, rem.RuleType, string(rem.Channel), rem.Recipient, rem.Content, rem.ScheduledFor, string(rem.Status))
	if err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*ScheduledReminder, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+reminderColumns+`
		FROM scheduled_reminders
		WHERE id = $1
	`, id)
	return scanReminder(row)
}

func (r *PgRepository) ListDue(ctx context.Context, asOf time.Time) ([]ScheduledReminder, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM scheduled_reminders
		WHERE status = 'pending' AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
	`, asOf)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

func (r *PgRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]ScheduledReminder, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM scheduled_reminders
		WHERE appointment_id = $1
		ORDER BY scheduled_for ASC
	`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list reminders by appointment: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// Claim is the dispatcher's duplicate-send guard. Filtering by
// status='pending' in ListDue is not sufficient under concurrency; only the
// row that this conditional write actually moves belongs to this run.
func (r *PgRepository) Claim(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE scheduled_reminders
		SET status = 'sending',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
	`, id)
	if err != nil {
		return fmt.Errorf("claim reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotClaimable
	}
	return nil
}

func (r *PgRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE scheduled_reminders
		SET status = 'sent',
		    sent_at = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'sending'
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReminderNotFound
	}
	return nil
}

func (r *PgRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE scheduled_reminders
		SET status = 'failed',
		    failure_reason = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'sending'
	`, id, reason)
	if err != nil {
		return fmt.Errorf("mark reminder failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReminderNotFound
	}
	return nil
}

func (r *PgRepository) CancelForAppointment(ctx context.Context, appointmentID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE scheduled_reminders
		SET status = 'cancelled',
		    updated_at = now()
		WHERE appointment_id = $1
		  AND status = 'pending'
	`, appointmentID)
	if err != nil {
		return 0, fmt.Errorf("cancel reminders: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) UpdatePendingSchedule(ctx context.Context, id uuid.UUID, scheduledFor time.Time, content string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE scheduled_reminders
		SET scheduled_for = $2,
		    content = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
	`, id, scheduledFor, content)
	if err != nil {
		return fmt.Errorf("update pending reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReminderNotFound
	}
	return nil
}
