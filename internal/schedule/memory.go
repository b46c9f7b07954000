package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is a test/demo implementation of TemplateRepository and
// SlotRepository. Book and Release hold the mutex for the whole conditional
// transition, giving the same exactly-one-winner guarantee as the conditional
// UPDATE in the Postgres implementation.
type InMemoryRepository struct {
	mu        sync.Mutex
	templates map[uuid.UUID]ScheduleTemplate
	slots     map[uuid.UUID]AvailabilitySlot
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		templates: make(map[uuid.UUID]ScheduleTemplate),
		slots:     make(map[uuid.UUID]AvailabilitySlot),
	}
}

func (r *InMemoryRepository) UpsertTemplate(ctx context.Context, tpl *ScheduleTemplate) error {
	if err := tpl.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, existing := range r.templates {
		if existing.ProviderID == tpl.ProviderID && existing.Weekday == tpl.Weekday && existing.Active {
			tpl.ID = id
			r.templates[id] = *tpl
			return nil
		}
	}

	if tpl.ID == uuid.Nil {
		tpl.ID = uuid.New()
	}
	tpl.Active = true
	r.templates[tpl.ID] = *tpl
	return nil
}

func (r *InMemoryRepository) DeactivateTemplate(ctx context.Context, providerID uuid.UUID, weekday int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, tpl := range r.templates {
		if tpl.ProviderID == providerID && tpl.Weekday == weekday && tpl.Active {
			tpl.Active = false
			r.templates[id] = tpl
		}
	}
	return nil
}

func (r *InMemoryRepository) ActiveTemplates(ctx context.Context, providerID uuid.UUID) ([]ScheduleTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []ScheduleTemplate
	for _, tpl := range r.templates {
		if tpl.ProviderID == providerID && tpl.Active {
			result = append(result, tpl)
		}
	}
	return result, nil
}

func (r *InMemoryRepository) PersistBatch(ctx context.Context, slots []AvailabilitySlot) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inserted := 0
	for _, s := range slots {
		if r.slotExistsLocked(s.ProviderID, s.Date, s.StartTime) {
			continue
		}
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		s.Available = true
		s.AppointmentID = nil
		r.slots[s.ID] = s
		inserted++
	}
	return inserted, nil
}

func (r *InMemoryRepository) slotExistsLocked(providerID uuid.UUID, date, start time.Time) bool {
	for _, s := range r.slots {
		if s.ProviderID == providerID && s.Date.Equal(date) && s.StartTime.Equal(start) {
			return true
		}
	}
	return false
}

func (r *InMemoryRepository) List(ctx context.Context, providerID uuid.UUID, from, to time.Time, availableOnly bool) ([]AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []AvailabilitySlot
	for _, s := range r.slots {
		if s.ProviderID != providerID || s.Date.Before(from) || s.Date.After(to) {
			continue
		}
		if availableOnly && !s.Available {
			continue
		}
		result = append(result, s)
	}

	sortSlots(result)
	return result, nil
}

func sortSlots(slots []AvailabilitySlot) {
	for i := 1; i < len(slots); i++ {
		for j := i; j > 0 && slots[j].StartTime.Before(slots[j-1].StartTime); j-- {
			slots[j], slots[j-1] = slots[j-1], slots[j]
		}
	}
}

func (r *InMemoryRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (r *InMemoryRepository) Book(ctx context.Context, slotID, appointmentID uuid.UUID) (*AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slotID]
	if !ok {
		return nil, ErrSlotNotFound
	}
	if !s.Available || s.AppointmentID != nil {
		return nil, ErrBookingConflict
	}

	apptID := appointmentID
	s.Available = false
	s.AppointmentID = &apptID
	s.UpdatedAt = time.Now()
	r.slots[slotID] = s
	return &s, nil
}

func (r *InMemoryRepository) Release(ctx context.Context, slotID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slotID]
	if !ok {
		return ErrSlotNotFound
	}
	if s.Available {
		return nil
	}

	s.Available = true
	s.AppointmentID = nil
	s.UpdatedAt = time.Now()
	r.slots[slotID] = s
	return nil
}

func (r *InMemoryRepository) FindByAppointment(ctx context.Context, appointmentID uuid.UUID) (*AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.slots {
		if s.AppointmentID != nil && *s.AppointmentID == appointmentID {
			slot := s
			return &slot, nil
		}
	}
	return nil, ErrSlotNotFound
}
