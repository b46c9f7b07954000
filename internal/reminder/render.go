package reminder

import (
	"regexp"

	"github.com/clinicore/scheduling-engine/internal/appointment"
)

var placeholderPattern = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)

// Render substitutes named {{placeholder}} values into a message template.
// A placeholder with no matching context value is left verbatim in the
// output rather than removed.
func Render(template string, ctx map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := ctx[name]; ok {
			return value
		}
		return match
	})
}

// RenderContext builds the substitution map for an appointment.
func RenderContext(appt appointment.Appointment) map[string]string {
	return map[string]string{
		"patient_name":     appt.PatientName,
		"appointment_date": appt.Datetime.Format("2006-01-02"),
		"appointment_time": appt.Datetime.Format("15:04"),
		"appointment_type": appt.Type,
		"provider_name":    appt.ProviderName,
	}
}
