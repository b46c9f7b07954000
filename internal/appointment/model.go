package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Appointment is the collaborator record supplied by the owning system.
// This engine reads it to bind slots and compute reminder times; it never
// persists appointments itself.
type Appointment struct {
	ID           uuid.UUID
	PatientID    uuid.UUID
	PatientName  string
	PatientPhone string
	PatientEmail string
	ProviderName string
	Type         string
	Datetime     time.Time
}
