package report

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/cgast/gramtest/pkg/markup"
	"github.com/cgast/gramtest/pkg/match"
	"github.com/cgast/gramtest/pkg/runner"
)

// DefaultWindow is the number of runes shown on each side of a span.
const DefaultWindow = 20

const ellipsis = "…"

// Window cuts text around span and returns the excerpt and a marker line
// whose carets sit under the span. Columns are counted in display width,
// so wide characters stay aligned.
func Window(text string, span markup.Span, radius int) (excerpt, marker string) {
	runes := []rune(flatten(text))
	n := len(runes)
	start, end := clamp(span.Start, 0, n), clamp(span.End, 0, n)
	if end < start {
		end = start
	}
	from, to := clamp(start-radius, 0, n), clamp(end+radius, 0, n)

	var lead, tailS string
	if from > 0 {
		lead = ellipsis
	}
	if to < n {
		tailS = ellipsis
	}

	before := lead + string(runes[from:start])
	flagged := string(runes[start:end])
	excerpt = before + flagged + string(runes[end:to]) + tailS

	carets := max(1, runewidth.StringWidth(flagged))
	marker = strings.Repeat(" ", runewidth.StringWidth(before)) + strings.Repeat("^", carets)
	return excerpt, marker
}

// flatten replaces control whitespace so the excerpt stays on one line.
func flatten(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\r', '\v', '\f':
			return ' '
		}
		return r
	}, s)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// Entry is one line of a case diff.
type Entry struct {
	Label      string // "missing", "unexpected", "changed", "warning"
	Annotation markup.Annotation
	Other      *markup.Annotation // actual side of a changed pair
	Reason     match.Reason
}

// Entries lists the differences of a result in report order: changed pairs,
// then missing, then unexpected, then suggestion warnings.
func Entries(m match.Result) []Entry {
	var out []Entry
	for _, p := range m.Mismatched {
		actual := p.Actual
		out = append(out, Entry{Label: "changed", Annotation: p.Expected, Other: &actual, Reason: p.Reason})
	}
	for _, a := range m.Missing {
		out = append(out, Entry{Label: "missing", Annotation: a})
	}
	for _, a := range m.Unexpected {
		out = append(out, Entry{Label: "unexpected", Annotation: a})
	}
	for _, p := range m.Warnings {
		actual := p.Actual
		out = append(out, Entry{Label: "warning", Annotation: p.Expected, Other: &actual, Reason: p.Reason})
	}
	return out
}

// Describe renders an annotation as code, span, surface and suggestions.
func Describe(a markup.Annotation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %q", a.Code, a.Span, a.Surface)
	if len(a.Suggestions) > 0 {
		fmt.Fprintf(&b, " → %s", strings.Join(a.Suggestions, "/"))
	}
	return b.String()
}

// DescribeEntry renders the entry without its window.
func DescribeEntry(e Entry) string {
	if e.Other == nil {
		return Describe(e.Annotation)
	}
	switch e.Reason {
	case match.ReasonCode:
		return fmt.Sprintf("%s, got %s", Describe(e.Annotation), Describe(*e.Other))
	default:
		return fmt.Sprintf("%s, got suggestions %s", Describe(e.Annotation), suggestions(e.Other.Suggestions))
	}
}

func suggestions(s []string) string {
	if len(s) == 0 {
		return "(none)"
	}
	return strings.Join(s, "/")
}

// textFor returns the text an entry's span refers to: the checker text for
// unexpected annotations, the case text in checker coordinates otherwise.
func textFor(r runner.CaseResult, e Entry) string {
	if e.Label == "unexpected" {
		return r.Actual.Text
	}
	if r.Text != "" {
		return r.Text
	}
	return r.Case.Text
}
