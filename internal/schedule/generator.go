package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/clinicore/scheduling-engine/internal/redis"
	"github.com/clinicore/scheduling-engine/pkg/logging"
)

// DayError records a template that could not be expanded for one date.
// The failure is isolated: other dates in the same run still generate.
type DayError struct {
	Date time.Time
	Err  error
}

// GenerationReport summarizes one generator run.
type GenerationReport struct {
	SlotsEmitted      int
	SlotsCreated      int
	DuplicatesSkipped int
	DaysSkipped       int
	DayErrors         []DayError
}

// Generator expands recurring weekly templates into concrete bookable slots.
type Generator struct {
	templates TemplateRepository
	slots     SlotRepository
	locker    redisclient.Locker
	logger    *logging.Logger
}

// NewGenerator creates a slot generator. locker may be nil; generation is
// idempotent without it, the lock only serializes concurrent runs for the
// same provider.
func NewGenerator(templates TemplateRepository, slots SlotRepository, locker redisclient.Locker, logger *logging.Logger) *Generator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Generator{
		templates: templates,
		slots:     slots,
		locker:    locker,
		logger:    logger,
	}
}

// Generate expands the provider's active templates over [from, to] inclusive
// and persists the resulting slots. Re-running over an overlapping range
// never duplicates slots: existing (provider, date, start_time) rows are
// skipped by the store.
func (g *Generator) Generate(ctx context.Context, providerID uuid.UUID, from, to time.Time) (*GenerationReport, error) {
	from = DateOnly(from)
	to = DateOnly(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end %s before start %s", ErrInvalidTemplate, to.Format(time.DateOnly), from.Format(time.DateOnly))
	}

	if g.locker == nil {
		return g.generate(ctx, providerID, from, to)
	}

	var report *GenerationReport
	err := g.locker.WithProviderLock(ctx, providerID, func(lockCtx context.Context) error {
		var genErr error
		report, genErr = g.generate(lockCtx, providerID, from, to)
		return genErr
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, fmt.Errorf("generation already running for provider %s: %w", providerID, err)
		}
		return nil, err
	}
	return report, nil
}

func (g *Generator) generate(ctx context.Context, providerID uuid.UUID, from, to time.Time) (*GenerationReport, error) {
	templates, err := g.templates.ActiveTemplates(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("load active templates: %w", err)
	}

	byWeekday := make(map[int]ScheduleTemplate, len(templates))
	for _, tpl := range templates {
		byWeekday[tpl.Weekday] = tpl
	}

	report := &GenerationReport{}
	var batch []AvailabilitySlot

	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		tpl, ok := byWeekday[int(date.Weekday())]
		if !ok {
			report.DaysSkipped++
			continue
		}

		slots, err := ExpandTemplate(tpl, date)
		if err != nil {
			report.DayErrors = append(report.DayErrors, DayError{Date: date, Err: err})
			g.logger.Warn("skipping day with invalid template",
				"provider_id", providerID,
				"date", date.Format(time.DateOnly),
				"error", err,
			)
			continue
		}

		batch = append(batch, slots...)
	}

	report.SlotsEmitted = len(batch)

	if len(batch) > 0 {
		created, err := g.slots.PersistBatch(ctx, batch)
		if err != nil {
			return report, fmt.Errorf("persist generated slots: %w", err)
		}
		report.SlotsCreated = created
		report.DuplicatesSkipped = report.SlotsEmitted - created
	}

	g.logger.Info("slot generation complete",
		"provider_id", providerID,
		"from", from.Format(time.DateOnly),
		"to", to.Format(time.DateOnly),
		"emitted", report.SlotsEmitted,
		"created", report.SlotsCreated,
		"duplicates", report.DuplicatesSkipped,
		"day_errors", len(report.DayErrors),
	)

	return report, nil
}

// ExpandTemplate walks a cursor from the template's start time, emitting
// [cursor, cursor+duration) candidates and advancing by duration+buffer.
// A slot that would overrun the template's end time is never emitted, even
// partially.
func ExpandTemplate(tpl ScheduleTemplate, date time.Time) ([]AvailabilitySlot, error) {
	if err := tpl.Validate(); err != nil {
		return nil, err
	}

	startMin, _ := parseClock(tpl.StartTime)
	endMin, _ := parseClock(tpl.EndTime)
	day := DateOnly(date)

	var slots []AvailabilitySlot
	for cursor := startMin; cursor+tpl.DurationMinutes <= endMin; cursor += tpl.DurationMinutes + tpl.BufferMinutes {
		slots = append(slots, AvailabilitySlot{
			ID:         uuid.New(),
			ProviderID: tpl.ProviderID,
			Date:       day,
			StartTime:  day.Add(time.Duration(cursor) * time.Minute),
			EndTime:    day.Add(time.Duration(cursor+tpl.DurationMinutes) * time.Minute),
			Available:  true,
		})
	}

	return slots, nil
}
