package reminder

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Rule is external configuration, not user data: it says how long before an
// appointment a reminder fires and what the message looks like.
type Rule struct {
	Type            string
	Offset          time.Duration // how long before the appointment to fire
	MinLeadTime     time.Duration // zero means no floor: past-due reminders send ASAP
	MessageTemplate string
}

type ruleJSON struct {
	Type            string `json:"type"`
	OffsetBefore    string `json:"offset_before"`
	MinLeadTime     string `json:"min_lead_time,omitempty"`
	MessageTemplate string `json:"message_template"`
}

// DefaultRules are the compiled-in reminder rules: a day-before reminder
// that always sends, and a short-notice reminder with a 30 minute floor so
// we never text someone two minutes before they walk in.
func DefaultRules() []Rule {
	return []Rule{
		{
			Type:            "day_before",
			Offset:          24 * time.Hour,
			MessageTemplate: "Hi {{patient_name}}, this is a reminder of your {{appointment_type}} appointment with {{provider_name}} on {{appointment_date}} at {{appointment_time}}.",
		},
		{
			Type:            "short_notice",
			Offset:          2 * time.Hour,
			MinLeadTime:     30 * time.Minute,
			MessageTemplate: "Hi {{patient_name}}, your {{appointment_type}} appointment with {{provider_name}} starts at {{appointment_time}} today. See you soon!",
		},
	}
}

// LoadRules reads reminder rules from a JSON file. An empty path returns the
// built-in defaults.
func LoadRules(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reminder rules: %w", err)
	}

	var raw []ruleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse reminder rules: %w", err)
	}

	rules := make([]Rule, 0, len(raw))
	for i, r := range raw {
		if r.Type == "" {
			return nil, fmt.Errorf("reminder rule %d: type is required", i)
		}
		offset, err := time.ParseDuration(r.OffsetBefore)
		if err != nil || offset <= 0 {
			return nil, fmt.Errorf("reminder rule %q: bad offset_before %q", r.Type, r.OffsetBefore)
		}
		rule := Rule{
			Type:            r.Type,
			Offset:          offset,
			MessageTemplate: r.MessageTemplate,
		}
		if r.MinLeadTime != "" {
			floor, err := time.ParseDuration(r.MinLeadTime)
			if err != nil || floor < 0 {
				return nil, fmt.Errorf("reminder rule %q: bad min_lead_time %q", r.Type, r.MinLeadTime)
			}
			rule.MinLeadTime = floor
		}
		rules = append(rules, rule)
	}

	return rules, nil
}
