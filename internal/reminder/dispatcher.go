package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinicore/scheduling-engine/internal/notify"
	"github.com/clinicore/scheduling-engine/internal/observability/metrics"
	"github.com/clinicore/scheduling-engine/pkg/logging"
)

// DispatchReport summarizes one dispatcher pass.
type DispatchReport struct {
	Due     int
	Sent    int
	Failed  int
	Skipped int // claimed by an overlapping run or cancelled mid-pass
}

// Dispatcher claims and sends due reminders. Correctness under overlapping
// runs rests entirely on the atomic pending → sending claim; the pending
// filter in ListDue is only an optimization.
type Dispatcher struct {
	repo     Repository
	notifier notify.Notifier
	logger   *logging.Logger
	metrics  *metrics.SchedulingMetrics

	// sendDelay is the minimum pause between consecutive dispatches,
	// respecting downstream channel limits.
	sendDelay time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func NewDispatcher(repo Repository, notifier notify.Notifier, sendDelay time.Duration, m *metrics.SchedulingMetrics, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		repo:      repo,
		notifier:  notifier,
		logger:    logger,
		metrics:   m,
		sendDelay: sendDelay,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// ProcessPending selects due pending reminders and dispatches them one by
// one. Delivery failures are recorded durably per reminder and do not abort
// the batch. There is no automatic retry of failed reminders.
func (d *Dispatcher) ProcessPending(ctx context.Context) (*DispatchReport, error) {
	due, err := d.repo.ListDue(ctx, d.now())
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}

	report := &DispatchReport{Due: len(due)}

	for i, rem := range due {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if i > 0 && d.sendDelay > 0 {
			d.sleep(ctx, d.sendDelay)
		}

		switch err := d.repo.Claim(ctx, rem.ID); {
		case err == nil:
		case errors.Is(err, ErrNotClaimable):
			// Another dispatcher got it, or it was cancelled after ListDue.
			report.Skipped++
			continue
		default:
			return report, fmt.Errorf("claim reminder %s: %w", rem.ID, err)
		}

		d.dispatchOne(ctx, rem, report)
	}

	if report.Due > 0 {
		d.logger.Info("dispatch pass complete",
			"due", report.Due,
			"sent", report.Sent,
			"failed", report.Failed,
			"skipped", report.Skipped,
		)
	}

	return report, nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, rem ScheduledReminder, report *DispatchReport) {
	_, err := d.notifier.Send(ctx, notify.Channel(rem.Channel), rem.Recipient, rem.Content)
	if err != nil {
		report.Failed++
		d.metrics.ObserveDispatch("failed")
		d.logger.Error("reminder delivery failed",
			"reminder_id", rem.ID,
			"appointment_id", rem.AppointmentID,
			"channel", string(rem.Channel),
			"error", err,
		)
		if markErr := d.repo.MarkFailed(ctx, rem.ID, err.Error()); markErr != nil {
			d.logger.Error("failed to record reminder failure",
				"reminder_id", rem.ID,
				"error", markErr,
			)
		}
		return
	}

	report.Sent++
	d.metrics.ObserveDispatch("sent")
	if markErr := d.repo.MarkSent(ctx, rem.ID, d.now()); markErr != nil {
		d.logger.Error("failed to record reminder sent",
			"reminder_id", rem.ID,
			"error", markErr,
		)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
