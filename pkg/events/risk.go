package events

import "strings"

// Risk is the escalation risk level reported by the monitor.
type Risk string

const (
	RiskLow    Risk = "LOW"
	RiskMedium Risk = "MEDIUM"
	RiskHigh   Risk = "HIGH"
)

// ParseRisk maps a raw string onto a Risk level. The second return is false
// when the value is outside the known set.
func ParseRisk(raw string) (Risk, bool) {
	switch Risk(strings.ToUpper(strings.TrimSpace(raw))) {
	case RiskLow:
		return RiskLow, true
	case RiskMedium:
		return RiskMedium, true
	case RiskHigh:
		return RiskHigh, true
	}
	return RiskLow, false
}

// EscalationVerdict is the monitor's periodic risk assessment of the call.
type EscalationVerdict struct {
	base
	Risk    Risk
	Reasons []string
}

func NewEscalationVerdict(risk Risk, reasons []string) EscalationVerdict {
	return EscalationVerdict{base: now(), Risk: risk, Reasons: reasons}
}

func (EscalationVerdict) Kind() Kind { return KindEscalationVerdict }
