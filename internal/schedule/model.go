package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ScheduleTemplate is a recurring weekly availability rule for one provider
// and one weekday. Weekday follows the 0=Sunday..6=Saturday convention,
// matching time.Weekday.
type ScheduleTemplate struct {
	ID              uuid.UUID
	ProviderID      uuid.UUID
	Weekday         int
	StartTime       string // "HH:MM"
	EndTime         string // "HH:MM"
	DurationMinutes int
	BufferMinutes   int
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AvailabilitySlot is a concrete, dated, bookable interval derived from a
// template. Time bounds are immutable once created; only Available and
// AppointmentID mutate, and Available == false iff AppointmentID is set.
type AvailabilitySlot struct {
	ID            uuid.UUID
	ProviderID    uuid.UUID
	Date          time.Time
	StartTime     time.Time
	EndTime       time.Time
	Available     bool
	AppointmentID *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks the template's time bounds. A failing template is skipped
// for its day only; other days and providers are unaffected.
func (t ScheduleTemplate) Validate() error {
	if t.Weekday < 0 || t.Weekday > 6 {
		return fmt.Errorf("%w: weekday %d out of range 0..6", ErrInvalidTemplate, t.Weekday)
	}
	if t.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration %d must be > 0", ErrInvalidTemplate, t.DurationMinutes)
	}
	if t.BufferMinutes < 0 {
		return fmt.Errorf("%w: buffer %d must be >= 0", ErrInvalidTemplate, t.BufferMinutes)
	}
	start, err := parseClock(t.StartTime)
	if err != nil {
		return fmt.Errorf("%w: start time %q: %v", ErrInvalidTemplate, t.StartTime, err)
	}
	end, err := parseClock(t.EndTime)
	if err != nil {
		return fmt.Errorf("%w: end time %q: %v", ErrInvalidTemplate, t.EndTime, err)
	}
	if end <= start {
		return fmt.Errorf("%w: end %q must be after start %q", ErrInvalidTemplate, t.EndTime, t.StartTime)
	}
	return nil
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM")
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour %q", parts[0])
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute %q", parts[1])
	}
	return h*60 + m, nil
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
