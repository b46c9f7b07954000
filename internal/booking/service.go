package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicore/scheduling-engine/internal/appointment"
	"github.com/clinicore/scheduling-engine/internal/observability/metrics"
	"github.com/clinicore/scheduling-engine/internal/reminder"
	"github.com/clinicore/scheduling-engine/internal/schedule"
	"github.com/clinicore/scheduling-engine/pkg/logging"
)

// ReminderScheduler is the reminder side of a booking, kept as an interface
// so service tests can stub it out.
type ReminderScheduler interface {
	ScheduleFor(ctx context.Context, appt appointment.Appointment) ([]reminder.ScheduledReminder, error)
	RescheduleFor(ctx context.Context, appt appointment.Appointment) error
	CancelFor(ctx context.Context, appointmentID uuid.UUID) error
}

// Service orchestrates appointment-to-slot binding and release. The
// appointment itself is owned by an external collaborator; this service
// only binds slots and drives reminder scheduling.
type Service struct {
	slots     schedule.SlotRepository
	reminders ReminderScheduler
	logger    *logging.Logger
	metrics   *metrics.SchedulingMetrics
}

func NewService(slots schedule.SlotRepository, reminders ReminderScheduler, m *metrics.SchedulingMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		slots:     slots,
		reminders: reminders,
		logger:    logger,
		metrics:   m,
	}
}

// Book binds the slot to the appointment. On conflict the caller gets
// schedule.ErrBookingConflict and no other slot is substituted. On success
// the appointment's reminders are scheduled; the appointment datetime
// defaults to the slot's start time when the collaborator left it zero.
func (s *Service) Book(ctx context.Context, slotID uuid.UUID, appt appointment.Appointment) (*schedule.AvailabilitySlot, error) {
	slot, err := s.slots.Book(ctx, slotID, appt.ID)
	if err != nil {
		if errors.Is(err, schedule.ErrBookingConflict) {
			s.metrics.ObserveBooking("conflict")
			return nil, err
		}
		s.metrics.ObserveBooking("error")
		return nil, fmt.Errorf("book slot %s: %w", slotID, err)
	}

	s.metrics.ObserveBooking("success")

	if appt.Datetime.IsZero() {
		appt.Datetime = slot.StartTime
	}

	if _, err := s.reminders.ScheduleFor(ctx, appt); err != nil {
		// The booking holds; reminder persistence failure is surfaced so
		// the caller can retry scheduling.
		return slot, fmt.Errorf("slot booked but reminder scheduling failed: %w", err)
	}

	s.logger.Info("slot booked",
		"slot_id", slot.ID,
		"appointment_id", appt.ID,
		"provider_id", slot.ProviderID,
		"start", slot.StartTime,
	)

	return slot, nil
}

// Cancel releases the appointment's slot and cancels its pending reminders,
// in that order. Every step is idempotent, so a retried cancellation after
// a partial failure converges to the same end state without error.
func (s *Service) Cancel(ctx context.Context, appointmentID uuid.UUID) error {
	slot, err := s.slots.FindByAppointment(ctx, appointmentID)
	switch {
	case err == nil:
		if err := s.slots.Release(ctx, slot.ID); err != nil {
			return fmt.Errorf("release slot %s: %w", slot.ID, err)
		}
	case errors.Is(err, schedule.ErrSlotNotFound):
		// Already released, or never bound. Keep going: reminders may
		// still be pending from an earlier partial cancellation.
	default:
		return fmt.Errorf("find slot for appointment %s: %w", appointmentID, err)
	}

	if err := s.reminders.CancelFor(ctx, appointmentID); err != nil {
		return fmt.Errorf("cancel reminders for appointment %s: %w", appointmentID, err)
	}

	s.logger.Info("appointment cancelled", "appointment_id", appointmentID)
	return nil
}

// Reschedule moves the appointment to a new slot. The new slot is booked
// first; the old slot is released only after the new booking succeeds, so a
// conflict never strands the appointment without a slot.
func (s *Service) Reschedule(ctx context.Context, newSlotID uuid.UUID, appt appointment.Appointment) (*schedule.AvailabilitySlot, error) {
	oldSlot, err := s.slots.FindByAppointment(ctx, appt.ID)
	if err != nil && !errors.Is(err, schedule.ErrSlotNotFound) {
		return nil, fmt.Errorf("find current slot for appointment %s: %w", appt.ID, err)
	}

	if oldSlot != nil && oldSlot.ID == newSlotID {
		// Rescheduling onto the slot it already holds is a no-op.
		return oldSlot, nil
	}

	newSlot, err := s.slots.Book(ctx, newSlotID, appt.ID)
	if err != nil {
		if errors.Is(err, schedule.ErrBookingConflict) {
			s.metrics.ObserveBooking("conflict")
			// Old slot untouched; the caller keeps the original booking.
			return nil, err
		}
		s.metrics.ObserveBooking("error")
		return nil, fmt.Errorf("book new slot %s: %w", newSlotID, err)
	}

	s.metrics.ObserveBooking("success")

	if oldSlot != nil {
		if err := s.slots.Release(ctx, oldSlot.ID); err != nil {
			return newSlot, fmt.Errorf("new slot booked but old slot %s not released: %w", oldSlot.ID, err)
		}
	}

	if appt.Datetime.IsZero() {
		appt.Datetime = newSlot.StartTime
	}

	if err := s.reminders.RescheduleFor(ctx, appt); err != nil {
		return newSlot, fmt.Errorf("slot moved but reminder reschedule failed: %w", err)
	}

	s.logger.Info("appointment rescheduled",
		"appointment_id", appt.ID,
		"new_slot_id", newSlot.ID,
		"new_start", newSlot.StartTime,
	)

	return newSlot, nil
}
