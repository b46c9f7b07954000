package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTemplateNotFound = errors.New("schedule template not found")
	ErrSlotNotFound     = errors.New("availability slot not found")
	ErrBookingConflict  = errors.New("slot is already booked")
	ErrInvalidTemplate  = errors.New("invalid schedule template")
)

// TemplateRepository owns recurring weekly availability rules. At most one
// active template exists per (provider, weekday).
type TemplateRepository interface {
	UpsertTemplate(ctx context.Context, tpl *ScheduleTemplate) error
	DeactivateTemplate(ctx context.Context, providerID uuid.UUID, weekday int) error
	ActiveTemplates(ctx context.Context, providerID uuid.UUID) ([]ScheduleTemplate, error)
}

// SlotRepository persists slots and provides the atomic book/release
// operations. Book is the single correctness-critical operation of this
// subsystem: it must be one conditional write, never a read-then-write pair.
type SlotRepository interface {
	PersistBatch(ctx context.Context, slots []AvailabilitySlot) (int, error)
	List(ctx context.Context, providerID uuid.UUID, from, to time.Time, availableOnly bool) ([]AvailabilitySlot, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*AvailabilitySlot, error)
	Book(ctx context.Context, slotID, appointmentID uuid.UUID) (*AvailabilitySlot, error)
	Release(ctx context.Context, slotID uuid.UUID) error
	FindByAppointment(ctx context.Context, appointmentID uuid.UUID) (*AvailabilitySlot, error)
}
