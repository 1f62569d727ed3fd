package visionmodel

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxErrorBodyLength bounds the raw response body carried by APIError
const MaxErrorBodyLength = 500

// APIError is a non-2xx reply from a model provider
type APIError struct {
	Provider   string
	StatusCode int
	Code       string
	Type       string
	Message    string
	Body       string // raw body, truncated, set only when the error envelope could not be parsed
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s API error (status %d", e.Provider, e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, ", code %s", e.Code)
	}
	if e.Type != "" {
		fmt.Fprintf(&b, ", type %s", e.Type)
	}
	b.WriteString(")")
	switch {
	case e.Message != "":
		b.WriteString(": " + e.Message)
	case e.Body != "":
		b.WriteString(": " + e.Body)
	}
	return b.String()
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
