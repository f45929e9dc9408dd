package types

import (
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spaolacci/murmur3"
)

// Snippet is a stored piece of code or text with its metadata.
type Snippet struct {
	ID           uint64    `json:"id"`
	Description  string    `json:"description"`
	Language     string    `json:"language"`
	Code         string    `json:"code"`
	Tags         []string  `json:"tags"`
	DateCreated  time.Time `json:"date_created"`
	DateModified time.Time `json:"date_modified"`
}

// NormalizeTags trims, deduplicates and sorts tags. Empty tags are dropped.
// The result is never nil so that it encodes as an empty JSON array.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// SplitTags parses a space, comma or colon separated tag list.
func SplitTags(s string) []string {
	return NormalizeTags(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == ':' || r == '\t'
	}))
}

// Normalize collapses whitespace in the description, lowercases the
// language and normalizes tags in place.
func (s *Snippet) Normalize() {
	s.Description = strings.Join(strings.Fields(s.Description), " ")
	s.Language = strings.ToLower(strings.TrimSpace(s.Language))
	s.Tags = NormalizeTags(s.Tags)
}

// Validate reports ErrInvalidSnippet when a required field is missing.
func (s *Snippet) Validate() error {
	if strings.TrimSpace(s.Description) == "" {
		return invalidSnippet("description must not be empty")
	}
	if strings.TrimSpace(s.Language) == "" {
		return invalidSnippet("language must not be empty")
	}
	if strings.TrimSpace(s.Code) == "" {
		// Gists reject blank files, so such a snippet could never sync.
		return invalidSnippet("code must not be empty")
	}
	if strings.ContainsAny(s.Language, ": \t") {
		return invalidSnippet(fmt.Sprintf("language %q contains a separator", s.Language))
	}
	for _, t := range s.Tags {
		if strings.ContainsAny(t, ": \t,") {
			return invalidSnippet(fmt.Sprintf("tag %q contains a separator", t))
		}
	}
	return nil
}

// HasTag reports whether the snippet carries tag.
func (s *Snippet) HasTag(tag string) bool {
	return slices.Contains(s.Tags, tag)
}

// Same reports whether two snippets have the same content. Ids and dates
// are not compared; tags compare as sets.
func (s *Snippet) Same(o *Snippet) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Description == o.Description &&
		s.Language == o.Language &&
		s.Code == o.Code &&
		slices.Equal(NormalizeTags(s.Tags), NormalizeTags(o.Tags))
}

// Fingerprint hashes the fields compared by Same.
func (s *Snippet) Fingerprint() string {
	h := murmur3.New128()
	for _, part := range []string{s.Description, s.Language, s.Code} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	for _, t := range NormalizeTags(s.Tags) {
		h.Write([]byte(t))
		h.Write([]byte{0x1f})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Clone returns a deep copy.
func (s *Snippet) Clone() *Snippet {
	c := *s
	c.Tags = slices.Clone(s.Tags)
	return &c
}

// InDateRange reports whether DateModified falls in [from, to). Zero bounds
// are open.
func (s *Snippet) InDateRange(from, to time.Time) bool {
	if !from.IsZero() && s.DateModified.Before(from) {
		return false
	}
	if !to.IsZero() && !s.DateModified.Before(to) {
		return false
	}
	return true
}
