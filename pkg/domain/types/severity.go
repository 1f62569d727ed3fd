package types

import "fmt"

// Severity is the progression stage of a damage finding
type Severity string

const (
	SeverityEarly  Severity = "early"
	SeverityMidway Severity = "midway"
	SeverityFull   Severity = "full"
)

// AllSeverities returns all valid severities, least to most severe
func AllSeverities() []Severity {
	return []Severity{
		SeverityEarly,
		SeverityMidway,
		SeverityFull,
	}
}

// IsValid checks if the severity is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityEarly,
		SeverityMidway,
		SeverityFull:
		return true
	default:
		return false
	}
}

// Rank returns 0 for early through 2 for full, and -1 for an unknown severity
func (s Severity) Rank() int {
	switch s {
	case SeverityEarly:
		return 0
	case SeverityMidway:
		return 1
	case SeverityFull:
		return 2
	default:
		return -1
	}
}

// Score returns the severity component of the priority score
func (s Severity) Score() int {
	switch s {
	case SeverityFull:
		return 100
	case SeverityMidway:
		return 60
	case SeverityEarly:
		return 30
	default:
		return 50
	}
}

// String returns the string representation of the severity
func (s Severity) String() string {
	return string(s)
}

// ParseSeverity parses a string into a Severity
func ParseSeverity(s string) (Severity, error) {
	severity := Severity(s)
	if !severity.IsValid() {
		return "", fmt.Errorf("invalid severity: %s", s)
	}
	return severity, nil
}
