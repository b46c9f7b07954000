package api

import (
	"time"

	"github.com/google/uuid"
)

type TemplateRequest struct {
	Weekday         int    `json:"weekday"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
	BufferMinutes   int    `json:"buffer_minutes"`
}

type TemplateResponse struct {
	ID              uuid.UUID `json:"id"`
	ProviderID      uuid.UUID `json:"provider_id"`
	Weekday         int       `json:"weekday"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	BufferMinutes   int       `json:"buffer_minutes"`
	Active          bool      `json:"active"`
}

type GenerateSlotsRequest struct {
	From string `json:"from"` // YYYY-MM-DD
	To   string `json:"to"`   // YYYY-MM-DD
}

type GenerateSlotsResponse struct {
	SlotsEmitted      int      `json:"slots_emitted"`
	SlotsCreated      int      `json:"slots_created"`
	DuplicatesSkipped int      `json:"duplicates_skipped"`
	DaysSkipped       int      `json:"days_skipped"`
	DayErrors         []string `json:"day_errors,omitempty"`
}

type SlotResponse struct {
	ID            uuid.UUID  `json:"id"`
	ProviderID    uuid.UUID  `json:"provider_id"`
	Date          string     `json:"date"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	Available     bool       `json:"available"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
}

type BookingRequest struct {
	SlotID        string    `json:"slot_id"`
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	PatientName   string    `json:"patient_name"`
	PatientPhone  string    `json:"patient_phone,omitempty"`
	PatientEmail  string    `json:"patient_email,omitempty"`
	ProviderName  string    `json:"provider_name,omitempty"`
	Type          string    `json:"type,omitempty"`
	Datetime      time.Time `json:"datetime,omitempty"`
}

type RescheduleRequest struct {
	SlotID       string    `json:"slot_id"`
	PatientID    string    `json:"patient_id"`
	PatientName  string    `json:"patient_name"`
	PatientPhone string    `json:"patient_phone,omitempty"`
	PatientEmail string    `json:"patient_email,omitempty"`
	ProviderName string    `json:"provider_name,omitempty"`
	Type         string    `json:"type,omitempty"`
	Datetime     time.Time `json:"datetime,omitempty"`
}

type ReminderResponse struct {
	ID            uuid.UUID  `json:"id"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	RuleType      string     `json:"rule_type"`
	Channel       string     `json:"channel"`
	Recipient     string     `json:"recipient"`
	Content       string     `json:"content"`
	ScheduledFor  time.Time  `json:"scheduled_for"`
	Status        string     `json:"status"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
