package spec

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cgast/gramtest/pkg/markup"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult holds all validation errors for a suite.
type ValidationResult struct {
	Errors []ValidationError
}

// Valid returns true if no validation errors were found.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Error returns a combined error message from all validation errors.
func (r ValidationResult) Error() string {
	if r.Valid() {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// ValidateSuite checks a suite for structural correctness: unique case IDs,
// spans inside their text and no duplicate (code, span) expectations.
func ValidateSuite(s Suite) ValidationResult {
	var result ValidationResult
	add := func(field, msg string) {
		result.Errors = append(result.Errors, ValidationError{Field: field, Message: msg})
	}

	if s.Config.Timeout != "" {
		if d, err := time.ParseDuration(s.Config.Timeout); err != nil || d <= 0 {
			add("Config.Timeout", fmt.Sprintf("invalid duration %q", s.Config.Timeout))
		}
	}
	for i, n := range s.Config.Normalize {
		if !isValidNormalization(n) {
			add(fmt.Sprintf("Config.Normalize[%d]", i), fmt.Sprintf("unknown normalization %q", n))
		}
	}

	ids := make(map[string]string)
	for _, tc := range s.Tests {
		field := fmt.Sprintf("%s:%d: %s", tc.Source, tc.Line, tc.ID)
		if strings.TrimSpace(tc.ID) == "" {
			add(field, "empty id")
		} else if prev, ok := ids[tc.ID]; ok {
			add(field, fmt.Sprintf("duplicate id %q (first defined at %s)", tc.ID, prev))
		} else {
			ids[tc.ID] = fmt.Sprintf("%s:%d", tc.Source, tc.Line)
		}

		n := utf8.RuneCountInString(tc.Text)
		seen := make(map[string]bool)
		for _, a := range tc.Expected {
			if !a.Span.Valid(n) {
				add(field, fmt.Sprintf("span %s of %q outside text of %d runes", a.Span, a.Code, n))
			}
			key := dupKey(a)
			if seen[key] {
				add(field, fmt.Sprintf("duplicate expectation %s%s", a.Code, a.Span))
			}
			seen[key] = true
		}
	}

	return result
}

var validNormalizations = map[string]bool{
	"whitespace": true,
	"nfc":        true,
	"none":       true,
	"":           true,
}

func isValidNormalization(n string) bool {
	return validNormalizations[strings.ToLower(strings.TrimSpace(n))]
}

func dupKey(a markup.Annotation) string {
	return fmt.Sprintf("%s\x00%d\x00%d", a.Code, a.Span.Start, a.Span.End)
}
