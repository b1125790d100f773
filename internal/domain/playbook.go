package domain

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Playbook maps a threat type to its ordered response actions. A "{zone}"
// placeholder in an action is replaced with the alert's zone.
type Playbook map[ThreatType][]string

// baseActions open every recommendation list.
var baseActions = []string{
	"Deploy rapid response team to {zone}",
	"Initiate epidemiological investigation",
	"Alert health authorities",
}

// DefaultPlaybook returns the built-in response actions.
func DefaultPlaybook() Playbook {
	return Playbook{
		ThreatWaterborne: {
			"Deploy mobile testing unit",
			"Test water supply for contamination",
			"Issue boil-water advisory",
			"Close contaminated sources",
			"Distribute bottled water",
			"Monitor gastroenteritis cases",
		},
		ThreatAirborne: {
			"Monitor AQI in real-time",
			"Issue public advisory",
			"Recommend indoor shelter",
			"Identify pollution sources",
		},
		ThreatFoodborne: {
			"Inspect food establishments",
			"Issue food safety alerts",
			"Test food samples",
			"Close contaminated sources",
		},
		ThreatVectorBorne: {
			"Deploy vector control",
			"Increase disease surveillance",
			"Issue awareness campaign",
			"Eliminate breeding sites",
		},
		ThreatUnknown: {
			"Conduct environmental sampling",
			"Increase surveillance",
			"Mobilize investigation team",
		},
	}
}

// LoadPlaybook reads a YAML file of threat_type → actions and overlays it on
// the default playbook. Threat types absent from the file keep their defaults.
func LoadPlaybook(path string) (Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read playbook: %w", err)
	}
	var overrides map[string][]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse playbook %s: %w", path, err)
	}

	pb := DefaultPlaybook()
	for threat, actions := range overrides {
		if len(actions) == 0 {
			return nil, ConfigErrorf("PLAYBOOK_FILE", "threat %q has no actions", threat)
		}
		pb[ThreatType(threat)] = slices.Clone(actions)
	}
	return pb, nil
}

// Recommendations builds the ordered action list for an alert. High and
// critical alerts lead with an escalation directive.
func (p Playbook) Recommendations(threat ThreatType, zone string, severity Severity) []string {
	specific, ok := p[threat]
	if !ok {
		specific = p[ThreatUnknown]
	}

	out := make([]string, 0, len(baseActions)+len(specific)+1)
	switch severity {
	case SeverityCritical:
		out = append(out, "CRITICAL: Declare emergency")
	case SeverityHigh:
		out = append(out, "HIGH: Escalate immediately")
	}
	for _, action := range baseActions {
		out = append(out, strings.ReplaceAll(action, "{zone}", zone))
	}
	for _, action := range specific {
		out = append(out, strings.ReplaceAll(action, "{zone}", zone))
	}
	return out
}

// Describe renders the human-readable alert description.
func Describe(threat ThreatType, zone string, evidence int, sources []SourceType) string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = string(s)
	}
	return fmt.Sprintf(
		"Potential %s detected in %s. Ensemble confirmed %d anomalies across %d indicators (%s). Immediate investigation required.",
		threat.DisplayName(), zone, evidence, len(sources), strings.Join(names, ", "),
	)
}
