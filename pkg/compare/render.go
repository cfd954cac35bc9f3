package compare

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/cgast/gramtest/pkg/markup"
	"github.com/cgast/gramtest/pkg/report"
)

// Entry is one drift finding on a line.
type Entry struct {
	Label      string
	Annotation markup.Annotation
	Other      *markup.Annotation
	// Text the annotation's span refers to.
	Text string
}

// Entries lists the drift of a line: changed, then only in baseline, then
// only in candidate.
func Entries(l Line) []Entry {
	var out []Entry
	for _, p := range l.Match.Mismatched {
		actual := p.Actual
		out = append(out, Entry{Label: LabelChanged, Annotation: p.Expected, Other: &actual, Text: l.Baseline.Text})
	}
	for _, a := range l.Match.Missing {
		out = append(out, Entry{Label: LabelOnlyBaseline, Annotation: a, Text: l.Baseline.Text})
	}
	for _, a := range l.Match.Unexpected {
		out = append(out, Entry{Label: LabelOnlyCandidate, Annotation: a, Text: l.Candidate.Text})
	}
	return out
}

// RenderOptions controls Render.
type RenderOptions struct {
	Style  string // "normal", "final" or "json"
	Color  bool
	Window int
}

// Render writes the comparison in the requested style.
func Render(w io.Writer, res Result, opts RenderOptions) error {
	switch opts.Style {
	case "", "normal":
		return renderNormal(w, res, opts)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Result
			Drifted   int `json:"drifted"`
			Divergent int `json:"divergent"`
		}{res, res.Drifted(), res.Divergent()})
	case "final":
		return renderFinal(w, res)
	}
	return fmt.Errorf("unknown compare style %q (available: final, json, normal)", opts.Style)
}

// renderFinal writes the candidate sentences in canonical markup, one per
// line, so the output can replace the baseline.
func renderFinal(w io.Writer, res Result) error {
	for _, l := range res.Lines {
		out, err := markup.Format(l.Candidate)
		if err != nil {
			return &LineError{Path: res.Candidate, Line: l.CandidateLine, Err: err}
		}
		if _, err := fmt.Fprintln(w, out); err != nil {
			return err
		}
	}
	return nil
}

func renderNormal(w io.Writer, res Result, opts RenderOptions) error {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	red, green, yellow, dim := mk(color.FgRed), mk(color.FgGreen), mk(color.FgYellow), mk(color.Faint)

	radius := opts.Window
	if radius <= 0 {
		radius = report.DefaultWindow
	}

	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	for _, l := range res.Lines {
		if !l.Drifted() && !l.Divergent {
			continue
		}
		printf("%s:%d  %s\n", res.Baseline, l.BaselineLine, l.Baseline.Text)
		if l.Divergent {
			printf("  %s %s:%d  %s\n", yellow.Sprint("text differs"), res.Candidate, l.CandidateLine, l.Candidate.Text)
		}
		for _, e := range Entries(l) {
			var label string
			switch e.Label {
			case LabelOnlyBaseline:
				label = red.Sprintf("%-17s", e.Label)
			case LabelOnlyCandidate:
				label = green.Sprintf("%-17s", e.Label)
			default:
				label = yellow.Sprintf("%-17s", e.Label)
			}
			desc := report.Describe(e.Annotation)
			if e.Other != nil {
				desc += " => " + report.Describe(*e.Other)
			}
			printf("  %s %s\n", label, desc)
			excerpt, marker := report.Window(e.Text, e.Annotation.Span, radius)
			printf("  %17s %s\n  %17s %s\n", "", excerpt, "", dim.Sprint(marker))
		}
	}
	printf("%d sentences compared, %d drifted, %d with text differences\n",
		len(res.Lines), res.Drifted(), res.Divergent())
	return err
}
