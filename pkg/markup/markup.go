// Package markup parses the inline error markup emitted by grammar checkers.
//
// A flagged span is wrapped in braces and followed by one or more analyses:
//
//	Mun {leat}<msyn-agr|lean/lea|Verb agreement> dás.
//
// Each analysis carries an error code, an optional '/'-separated suggestion
// list and an optional message. Several analyses after the same closing brace
// describe competing readings of one span; brace groups may nest. A backslash
// escapes the next rune anywhere in the markup.
//
// Offsets in the resulting annotations count runes of the reconstructed plain
// text, never bytes of the markup.
package markup

import (
	"fmt"
	"strings"
)

// Span is a half-open rune interval [Start, End) into a plain text.
type Span struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

func (s Span) Len() int {
	return s.End - s.Start
}

func (s Span) Empty() bool {
	return s.Start == s.End
}

// Overlaps reports whether both spans share at least one rune. Identical empty
// spans also count as overlapping.
func (s Span) Overlaps(o Span) bool {
	if s == o {
		return true
	}
	return max(s.Start, o.Start) < min(s.End, o.End)
}

// Contains reports whether o lies within s.
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

// Valid checks the span against a text of n runes.
func (s Span) Valid(n int) bool {
	return 0 <= s.Start && s.Start <= s.End && s.End <= n
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// Annotation is one analysis reported for a span of the plain text.
type Annotation struct {
	Code        string   `json:"code" yaml:"code"`
	Span        Span     `json:"span" yaml:"span"`
	Surface     string   `json:"surface,omitempty" yaml:"surface,omitempty"`
	Suggestions []string `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
	Message     string   `json:"message,omitempty" yaml:"message,omitempty"`
}

func (a Annotation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s %q", a.Code, a.Span, a.Surface)
	if len(a.Suggestions) > 0 {
		fmt.Fprintf(&b, " -> %s", strings.Join(a.Suggestions, "/"))
	}
	return b.String()
}

// Document is the result of parsing markup: the plain text and every
// annotation found in it, ordered by span start, then span end, then markup
// order.
type Document struct {
	Text        string       `json:"text"`
	Annotations []Annotation `json:"annotations"`
}

// Slice returns the plain text covered by span. Out-of-range spans are clamped.
func Slice(text string, span Span) string {
	runes := []rune(text)
	start, end := span.Start, span.End
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start >= end {
		return ""
	}
	return string(runes[start:end])
}

// ParseError reports malformed markup. Offset is a byte offset into the
// markup string.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("markup: offset %d: %s", e.Offset, e.Msg)
}
