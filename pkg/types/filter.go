package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TextMode selects how Filter.Text is matched.
type TextMode int

const (
	// TextExact matches Text as a case-insensitive substring.
	TextExact TextMode = iota
	// TextPattern matches Text as a regular expression.
	TextPattern
)

// Filter is a conjunction of optional conditions for Store.List.
// Languages and Tags match any-of. From is inclusive and To exclusive;
// both apply to DateModified.
type Filter struct {
	Languages []string
	Tags      []string
	From      time.Time
	To        time.Time
	Text      string
	TextMode  TextMode
	Limit     int
}

// HasDateRange reports whether a date bound is set. Listing orders by
// DateModified when it is.
func (f Filter) HasDateRange() bool {
	return !f.From.IsZero() || !f.To.IsZero()
}

// Matcher compiles the free-text part of the filter. A nil function is
// returned when Text is empty.
func (f Filter) Matcher() (func(*Snippet) bool, error) {
	if f.Text == "" {
		return nil, nil
	}
	var match func(string) bool
	switch f.TextMode {
	case TextExact:
		needle := strings.ToLower(f.Text)
		match = func(s string) bool {
			return strings.Contains(strings.ToLower(s), needle)
		}
	case TextPattern:
		re, err := regexp.Compile(f.Text)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %v", ErrInvalidFilter, f.Text, err)
		}
		match = re.MatchString
	default:
		return nil, fmt.Errorf("%w: unknown text mode %d", ErrInvalidFilter, f.TextMode)
	}
	return func(s *Snippet) bool {
		if match(s.Description) || match(s.Code) {
			return true
		}
		for _, t := range s.Tags {
			if match(t) {
				return true
			}
		}
		return false
	}, nil
}
