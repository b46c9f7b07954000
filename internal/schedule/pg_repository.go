package schedule

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

// Helpers

func scanTemplate(row pgx.Row) (*ScheduleTemplate, error) {
	var t ScheduleTemplate

	err := row.Scan(
		&t.ID,
		&t.ProviderID,
		&t.Weekday,
		&t.StartTime,
		&t.EndTime,
		&t.DurationMinutes,
		&t.BufferMinutes,
		&t.Active,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}

	return &t, nil
}

func scanSlot(row pgx.Row) (*AvailabilitySlot, error) {
	var s AvailabilitySlot
	var appointmentID *uuid.UUID

	err := row.Scan(
		&s.ID,
		&s.ProviderID,
		&s.Date,
		&s.StartTime,
		&s.EndTime,
		&s.Available,
		&appointmentID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.AppointmentID = appointmentID
	return &s, nil
}

const slotColumns = `id, provider_id, date, start_time, end_time, available, appointment_id, created_at, updated_at`

// Interface methods

func (r *PgRepository) UpsertTemplate(ctx context.Context, tpl *ScheduleTemplate) error {
	if err := tpl.Validate(); err != nil {
		return err
	}
	if tpl.ID == uuid.Nil {
		tpl.ID = uuid.New()
	}

	// One active template per (provider, weekday): replace in place.
	row := r.db.QueryRow(ctx, `
		INSERT INTO schedule_templates (id, provider_id, weekday, start_time, end_time, duration_minutes, buffer_minutes, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true, now(), now())
		ON CONFLICT (provider_id, weekday) WHERE active
		DO UPDATE SET start_time = EXCLUDED.start_time,
		              end_time = EXCLUDED.end_time,
		              duration_minutes = EXCLUDED.duration_minutes,
		              buffer_minutes = EXCLUDED.buffer_minutes,
		              updated_at = now()
		RETURNING id, provider_id, weekday, start_time, end_time, duration_minutes, buffer_minutes, active, created_at, updated_at
	`, tpl.ID, tpl.ProviderID, tpl.Weekday, tpl.StartTime, tpl.EndTime, tpl.DurationMinutes, tpl.BufferMinutes)

	saved, err := scanTemplate(row)
	if err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}
	*tpl = *saved
	return nil
}

func (r *PgRepository) DeactivateTemplate(ctx context.Context, providerID uuid.UUID, weekday int) error {
	_, err := r.db.Exec(ctx, `
		UPDATE schedule_templates
		SET active = false,
		    updated_at = now()
		WHERE provider_id = $1
		  AND weekday = $2
		  AND active
	`, providerID, weekday)
	if err != nil {
		return fmt.Errorf("deactivate template: %w", err)
	}
	return nil
}

func (r *PgRepository) ActiveTemplates(ctx context.Context, providerID uuid.UUID) ([]ScheduleTemplate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, provider_id, weekday, start_time, end_time, duration_minutes, buffer_minutes, active, created_at, updated_at
		FROM schedule_templates
		WHERE provider_id = $1 AND active
		ORDER BY weekday
	`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list active templates: %w", err)
	}
	defer rows.Close()

	var result []ScheduleTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// PersistBatch inserts generated slots, skipping any that already exist for
// the same (provider, date, start_time). Returns the number inserted.
func (r *PgRepository) PersistBatch(ctx context.Context, slots []AvailabilitySlot) (int, error) {
	inserted := 0
	for i := range slots {
		s := &slots[i]
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}

		tag, err := r.db.Exec(ctx, `
			INSERT INTO availability_slots (id, provider_id, date, start_time, end_time, available, appointment_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, true, NULL, now(), now())
			ON CONFLICT (provider_id, date, start_time) DO NOTHING
		`, s.ID, s.ProviderID, s.Date, s.StartTime, s.EndTime)
		if err != nil {
			return inserted, fmt.Errorf("persist slot batch: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (r *PgRepository) List(ctx context.Context, providerID uuid.UUID, from, to time.Time, availableOnly bool) ([]AvailabilitySlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM availability_slots
		WHERE provider_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date, start_time`
	if availableOnly {
		query = `
		SELECT ` + slotColumns + `
		FROM availability_slots
		WHERE provider_id = $1 AND date >= $2 AND date <= $3 AND available
		ORDER BY date, start_time`
	}

	rows, err := r.db.Query(ctx, query, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var result []AvailabilitySlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*AvailabilitySlot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

// Book transitions a slot from available to bound in one conditional write.
// Concurrent callers race on the WHERE clause; exactly one wins, the rest
// get ErrBookingConflict.
func (r *PgRepository) Book(ctx context.Context, slotID, appointmentID uuid.UUID) (*AvailabilitySlot, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE availability_slots
		SET available = false,
		    appointment_id = $2,
		    updated_at = now()
		WHERE id = $1
		  AND available
		  AND appointment_id IS NULL
		RETURNING `+slotColumns+`
	`, slotID, appointmentID)

	s, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			// No row matched: either the slot is taken or it does not exist.
			if _, getErr := r.GetSlotByID(ctx, slotID); getErr == nil {
				return nil, ErrBookingConflict
			} else if !errors.Is(getErr, ErrSlotNotFound) {
				return nil, getErr
			}
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return s, nil
}

// Release makes a slot bookable again. Releasing an already-available slot
// is a no-op.
func (r *PgRepository) Release(ctx context.Context, slotID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE availability_slots
		SET available = true,
		    appointment_id = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND NOT available
	`, slotID)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already available or missing; only the latter is an error.
		if _, getErr := r.GetSlotByID(ctx, slotID); getErr != nil {
			return getErr
		}
	}
	return nil
}

func (r *PgRepository) FindByAppointment(ctx context.Context, appointmentID uuid.UUID) (*AvailabilitySlot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE appointment_id = $1
	`, appointmentID)
	return scanSlot(row)
}
