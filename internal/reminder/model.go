package reminder

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether a status can never transition again.
// pending → sending → sent | sending → failed | pending → cancelled.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// ScheduledReminder is one reminder row, created once per (appointment, rule)
// at booking time. ScheduledFor is appointment datetime minus the rule's
// offset at creation time. Once the status leaves pending it is terminal or
// in-flight (sending); there is no automatic retry or re-activation.
type ScheduledReminder struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	RuleType      string
	Channel       Channel
	Recipient     string
	Content       string
	ScheduledFor  time.Time
	Status        Status
	SentAt        *time.Time
	FailureReason *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
