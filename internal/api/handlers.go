package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicore/scheduling-engine/internal/appointment"
	"github.com/clinicore/scheduling-engine/internal/booking"
	"github.com/clinicore/scheduling-engine/internal/observability/metrics"
	redisclient "github.com/clinicore/scheduling-engine/internal/redis"
	"github.com/clinicore/scheduling-engine/internal/reminder"
	"github.com/clinicore/scheduling-engine/internal/schedule"
)

func upsertTemplateHandler(repo schedule.TemplateRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID", "invalid_provider_id")
		if !ok {
			return
		}

		var req TemplateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		tpl := schedule.ScheduleTemplate{
			ID:              uuid.New(),
			ProviderID:      providerID,
			Weekday:         req.Weekday,
			StartTime:       req.StartTime,
			EndTime:         req.EndTime,
			DurationMinutes: req.DurationMinutes,
			BufferMinutes:   req.BufferMinutes,
			Active:          true,
		}
		if err := tpl.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_template", err.Error())
			return
		}

		if err := repo.UpsertTemplate(r.Context(), &tpl); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, templateResponse(tpl))
	}
}

func listTemplatesHandler(repo schedule.TemplateRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID", "invalid_provider_id")
		if !ok {
			return
		}

		templates, err := repo.ActiveTemplates(r.Context(), providerID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]TemplateResponse, 0, len(templates))
		for _, tpl := range templates {
			resp = append(resp, templateResponse(tpl))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func deactivateTemplateHandler(repo schedule.TemplateRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID", "invalid_provider_id")
		if !ok {
			return
		}

		weekday, err := strconv.Atoi(chi.URLParam(r, "weekday"))
		if err != nil || weekday < 0 || weekday > 6 {
			writeError(w, http.StatusBadRequest, "invalid_weekday", "weekday must be 0 (Sunday) through 6 (Saturday)")
			return
		}

		if err := repo.DeactivateTemplate(r.Context(), providerID, weekday); err != nil {
			if errors.Is(err, schedule.ErrTemplateNotFound) {
				writeError(w, http.StatusNotFound, "template_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func generateSlotsHandler(gen *schedule.Generator, m *metrics.SchedulingMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID", "invalid_provider_id")
		if !ok {
			return
		}

		var req GenerateSlotsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		from, err := time.Parse(time.DateOnly, req.From)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from_date", "from must be YYYY-MM-DD")
			return
		}
		to, err := time.Parse(time.DateOnly, req.To)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to_date", "to must be YYYY-MM-DD")
			return
		}

		report, err := gen.Generate(r.Context(), providerID, from, to)
		if err != nil {
			switch {
			case errors.Is(err, redisclient.ErrLockNotAcquired):
				writeError(w, http.StatusConflict, "generation_in_progress", "a generation run is already active for this provider, please retry shortly")
			case errors.Is(err, schedule.ErrInvalidTemplate):
				writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		m.ObserveSlotsGenerated(report.SlotsCreated)

		resp := GenerateSlotsResponse{
			SlotsEmitted:      report.SlotsEmitted,
			SlotsCreated:      report.SlotsCreated,
			DuplicatesSkipped: report.DuplicatesSkipped,
			DaysSkipped:       report.DaysSkipped,
		}
		for _, de := range report.DayErrors {
			resp.DayErrors = append(resp.DayErrors, de.Date.Format(time.DateOnly)+": "+de.Err.Error())
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listSlotsHandler(repo schedule.SlotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID", "invalid_provider_id")
		if !ok {
			return
		}

		q := r.URL.Query()
		from, err := time.Parse(time.DateOnly, q.Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from_date", "from must be YYYY-MM-DD")
			return
		}
		to, err := time.Parse(time.DateOnly, q.Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to_date", "to must be YYYY-MM-DD")
			return
		}
		availableOnly := q.Get("available") == "true"

		slots, err := repo.List(r.Context(), providerID, from, to, availableOnly)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, slotResponse(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}
		appt, err := appointmentFromBooking(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment", err.Error())
			return
		}

		slot, err := svc.Book(r.Context(), slotID, appt)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, slotResponse(*slot))
	}
}

func cancelBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appointmentID, ok := parseUUIDParam(w, r, "appointmentID", "invalid_appointment_id")
		if !ok {
			return
		}

		if err := svc.Cancel(r.Context(), appointmentID); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func rescheduleBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appointmentID, ok := parseUUIDParam(w, r, "appointmentID", "invalid_appointment_id")
		if !ok {
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		appt := appointment.Appointment{
			ID:           appointmentID,
			PatientID:    patientID,
			PatientName:  req.PatientName,
			PatientPhone: req.PatientPhone,
			PatientEmail: req.PatientEmail,
			ProviderName: req.ProviderName,
			Type:         req.Type,
			Datetime:     req.Datetime,
		}

		slot, err := svc.Reschedule(r.Context(), slotID, appt)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, slotResponse(*slot))
	}
}

func listRemindersHandler(repo reminder.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appointmentID, ok := parseUUIDParam(w, r, "appointmentID", "invalid_appointment_id")
		if !ok {
			return
		}

		reminders, err := repo.ListByAppointment(r.Context(), appointmentID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]ReminderResponse, 0, len(reminders))
		for _, rem := range reminders {
			resp = append(resp, ReminderResponse{
				ID:            rem.ID,
				AppointmentID: rem.AppointmentID,
				RuleType:      rem.RuleType,
				Channel:       string(rem.Channel),
				Recipient:     rem.Recipient,
				Content:       rem.Content,
				ScheduledFor:  rem.ScheduledFor,
				Status:        string(rem.Status),
				SentAt:        rem.SentAt,
				FailureReason: rem.FailureReason,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, schedule.ErrBookingConflict):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func appointmentFromBooking(req BookingRequest) (appointment.Appointment, error) {
	appointmentID, err := uuid.Parse(req.AppointmentID)
	if err != nil {
		return appointment.Appointment{}, errors.New("appointment_id must be a valid UUID")
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return appointment.Appointment{}, errors.New("patient_id must be a valid UUID")
	}
	return appointment.Appointment{
		ID:           appointmentID,
		PatientID:    patientID,
		PatientName:  req.PatientName,
		PatientPhone: req.PatientPhone,
		PatientEmail: req.PatientEmail,
		ProviderName: req.ProviderName,
		Type:         req.Type,
		Datetime:     req.Datetime,
	}, nil
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func templateResponse(tpl schedule.ScheduleTemplate) TemplateResponse {
	return TemplateResponse{
		ID:              tpl.ID,
		ProviderID:      tpl.ProviderID,
		Weekday:         tpl.Weekday,
		StartTime:       tpl.StartTime,
		EndTime:         tpl.EndTime,
		DurationMinutes: tpl.DurationMinutes,
		BufferMinutes:   tpl.BufferMinutes,
		Active:          tpl.Active,
	}
}

func slotResponse(s schedule.AvailabilitySlot) SlotResponse {
	return SlotResponse{
		ID:            s.ID,
		ProviderID:    s.ProviderID,
		Date:          s.Date.Format(time.DateOnly),
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		Available:     s.Available,
		AppointmentID: s.AppointmentID,
	}
}
