package model

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// MaxPropertyAge bounds AssessmentContext.PropertyAge
const MaxPropertyAge = 1000

// InvalidURL pairs a rejected entry with the reason it was rejected
type InvalidURL struct {
	Index  int
	URL    string
	Reason string
}

func (u InvalidURL) String() string {
	return fmt.Sprintf("[%d] %q: %s", u.Index, u.URL, u.Reason)
}

// ValidateImageURLs checks that urls is non-empty and every entry is an absolute
// http or https URL with a host. All invalid entries are reported, not just the first.
func ValidateImageURLs(urls []string) error {
	if len(urls) == 0 {
		return goerr.Wrap(ErrNoImageURLs, "at least one image URL is required")
	}

	var invalid []InvalidURL
	for i, raw := range urls {
		if reason := checkImageURL(raw); reason != "" {
			invalid = append(invalid, InvalidURL{Index: i, URL: raw, Reason: reason})
		}
	}
	if len(invalid) == 0 {
		return nil
	}

	entries := make([]string, len(invalid))
	for i, u := range invalid {
		entries[i] = u.String()
	}
	return goerr.Wrap(ErrInvalidImageURL,
		fmt.Sprintf("%d of %d image URLs are invalid: %s", len(invalid), len(urls), strings.Join(entries, "; ")),
		goerr.V(InvalidURLsKey, invalid),
		goerr.V(URLCountKey, len(urls)))
}

func checkImageURL(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "empty"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "malformed"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "scheme must be http or https"
	}
	if u.Host == "" {
		return "missing host"
	}
	return ""
}

// Validate checks the optional context fields
func (c *AssessmentContext) Validate() error {
	if c == nil {
		return nil
	}
	if c.PropertyAge < 0 || c.PropertyAge > MaxPropertyAge {
		return goerr.Wrap(ErrInvalidContext, "property age out of range",
			goerr.V(PropertyAgeKey, c.PropertyAge))
	}
	return nil
}
