package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduling-engine/internal/appointment"
	"github.com/clinicore/scheduling-engine/internal/observability/metrics"
	"github.com/clinicore/scheduling-engine/pkg/logging"
)

// Scheduler computes reminder fire times relative to an appointment and
// persists them. Scheduling partitions naturally by appointment; there is no
// shared mutable state.
type Scheduler struct {
	repo    Repository
	rules   []Rule
	logger  *logging.Logger
	metrics *metrics.SchedulingMetrics
	now     func() time.Time
}

func NewScheduler(repo Repository, rules []Rule, m *metrics.SchedulingMetrics, logger *logging.Logger) *Scheduler {
	if rules == nil {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		repo:    repo,
		rules:   rules,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// ScheduleFor creates one pending reminder per rule for the appointment.
// A rule whose fire time has already passed is created with
// scheduled_for = now (send ASAP), unless the rule declares a MinLeadTime
// floor and the remaining lead is below it, in which case the reminder is
// not created and the reason is logged.
func (s *Scheduler) ScheduleFor(ctx context.Context, appt appointment.Appointment) ([]ScheduledReminder, error) {
	channel, recipient, ok := pickChannel(appt)
	if !ok {
		s.logger.Warn("no reminder created: appointment has no contact fields",
			"appointment_id", appt.ID,
		)
		return nil, nil
	}

	renderCtx := RenderContext(appt)
	now := s.now()

	var created []ScheduledReminder
	for _, rule := range s.rules {
		scheduledFor := appt.Datetime.Add(-rule.Offset)

		if !scheduledFor.After(now) {
			lead := appt.Datetime.Sub(now)
			if rule.MinLeadTime > 0 && lead < rule.MinLeadTime {
				s.metrics.ObserveReminderSkipped()
				s.logger.Info("reminder skipped: below minimum lead time",
					"appointment_id", appt.ID,
					"rule", rule.Type,
					"lead", lead.String(),
					"floor", rule.MinLeadTime.String(),
				)
				continue
			}
			scheduledFor = now
		}

		rem := ScheduledReminder{
			ID:            uuid.New(),
			AppointmentID: appt.ID,
			PatientID:     appt.PatientID,
			RuleType:      rule.Type,
			Channel:       channel,
			Recipient:     recipient,
			Content:       Render(rule.MessageTemplate, renderCtx),
			ScheduledFor:  scheduledFor,
			Status:        StatusPending,
		}
		if err := s.repo.Create(ctx, &rem); err != nil {
			return created, fmt.Errorf("schedule reminder %s for appointment %s: %w", rule.Type, appt.ID, err)
		}
		created = append(created, rem)
	}

	return created, nil
}

// RescheduleFor recomputes fire times and content for the appointment's
// still-pending reminders. Reminders already sent, failed or cancelled are
// immutable history. A recomputed time in the past clamps to now; the
// MinLeadTime floor applies only at creation.
func (s *Scheduler) RescheduleFor(ctx context.Context, appt appointment.Appointment) error {
	reminders, err := s.repo.ListByAppointment(ctx, appt.ID)
	if err != nil {
		return fmt.Errorf("load reminders for appointment %s: %w", appt.ID, err)
	}

	rulesByType := make(map[string]Rule, len(s.rules))
	for _, rule := range s.rules {
		rulesByType[rule.Type] = rule
	}

	renderCtx := RenderContext(appt)
	now := s.now()

	for _, rem := range reminders {
		if rem.Status != StatusPending {
			continue
		}
		rule, ok := rulesByType[rem.RuleType]
		if !ok {
			s.logger.Warn("pending reminder references unknown rule, leaving as is",
				"reminder_id", rem.ID,
				"rule", rem.RuleType,
			)
			continue
		}

		scheduledFor := appt.Datetime.Add(-rule.Offset)
		if !scheduledFor.After(now) {
			scheduledFor = now
		}

		content := Render(rule.MessageTemplate, renderCtx)
		if err := s.repo.UpdatePendingSchedule(ctx, rem.ID, scheduledFor, content); err != nil {
			// The dispatcher may have claimed the row between our read and
			// this write; that reminder belongs to the old schedule now.
			if errors.Is(err, ErrReminderNotFound) {
				continue
			}
			return fmt.Errorf("reschedule reminder %s: %w", rem.ID, err)
		}
	}

	return nil
}

// CancelFor transitions all pending reminders of the appointment to
// cancelled. Idempotent: a second invocation finds nothing pending and
// succeeds.
func (s *Scheduler) CancelFor(ctx context.Context, appointmentID uuid.UUID) error {
	affected, err := s.repo.CancelForAppointment(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("cancel reminders for appointment %s: %w", appointmentID, err)
	}
	if affected > 0 {
		s.logger.Info("reminders cancelled",
			"appointment_id", appointmentID,
			"count", affected,
		)
	}
	return nil
}

// pickChannel derives the delivery channel from which contact field is
// populated. Phone wins when both are present.
func pickChannel(appt appointment.Appointment) (Channel, string, bool) {
	if appt.PatientPhone != "" {
		return ChannelSMS, appt.PatientPhone, true
	}
	if appt.PatientEmail != "" {
		return ChannelEmail, appt.PatientEmail, true
	}
	return "", "", false
}
