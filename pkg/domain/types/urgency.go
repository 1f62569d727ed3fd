package types

import "fmt"

// Urgency classifies how soon a finding has to be acted on
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencyUrgent    Urgency = "urgent"
	UrgencySoon      Urgency = "soon"
	UrgencyPlanned   Urgency = "planned"
	UrgencyMonitor   Urgency = "monitor"
)

// AllUrgencies returns all valid urgencies, most to least urgent
func AllUrgencies() []Urgency {
	return []Urgency{
		UrgencyImmediate,
		UrgencyUrgent,
		UrgencySoon,
		UrgencyPlanned,
		UrgencyMonitor,
	}
}

// IsValid checks if the urgency is valid
func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyImmediate,
		UrgencyUrgent,
		UrgencySoon,
		UrgencyPlanned,
		UrgencyMonitor:
		return true
	default:
		return false
	}
}

// Rank returns 0 for immediate through 4 for monitor, and -1 for an unknown urgency
func (u Urgency) Rank() int {
	switch u {
	case UrgencyImmediate:
		return 0
	case UrgencyUrgent:
		return 1
	case UrgencySoon:
		return 2
	case UrgencyPlanned:
		return 3
	case UrgencyMonitor:
		return 4
	default:
		return -1
	}
}

// Score returns the urgency component of the priority score
func (u Urgency) Score() int {
	switch u {
	case UrgencyImmediate:
		return 100
	case UrgencyUrgent:
		return 80
	case UrgencySoon:
		return 60
	case UrgencyPlanned:
		return 40
	case UrgencyMonitor:
		return 20
	default:
		return 50
	}
}

// RequiresHumanReview reports whether the urgency is too high for unattended validation
func (u Urgency) RequiresHumanReview() bool {
	return u == UrgencyImmediate || u == UrgencyUrgent
}

// String returns the string representation of the urgency
func (u Urgency) String() string {
	return string(u)
}

// ParseUrgency parses a string into an Urgency
func ParseUrgency(s string) (Urgency, error) {
	urgency := Urgency(s)
	if !urgency.IsValid() {
		return "", fmt.Errorf("invalid urgency: %s", s)
	}
	return urgency, nil
}
