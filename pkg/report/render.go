package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/cgast/gramtest/pkg/runner"
)

// Options controls rendering.
type Options struct {
	Color      bool
	HidePasses bool
	Window     int // runes of context around a span, DefaultWindow if zero
	Verbose    bool
}

// Renderer writes a report in one output style.
type Renderer interface {
	Name() string
	Description() string
	Render(w io.Writer, rep Report, opts Options) error
}

// Registry holds renderers keyed by style name.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
}

// NewRegistry creates an empty renderer registry.
func NewRegistry() *Registry {
	return &Registry{renderers: make(map[string]Renderer)}
}

// DefaultRegistry returns a registry with every built-in style.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, rr := range []Renderer{
		normalRenderer{}, compactRenderer{}, terseRenderer{}, finalRenderer{},
		silentRenderer{}, jsonRenderer{}, markdownRenderer{},
	} {
		_ = r.Register(rr)
	}
	return r
}

// Register adds a renderer. Returns an error if the style is already taken.
func (r *Registry) Register(rr Renderer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := rr.Name()
	if _, exists := r.renderers[name]; exists {
		return fmt.Errorf("renderer already registered: %s", name)
	}
	r.renderers[name] = rr
	return nil
}

// Resolve looks up a renderer by style name.
func (r *Registry) Resolve(name string) (Renderer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rr, ok := r.renderers[name]
	if !ok {
		return nil, fmt.Errorf("unknown output style %q (available: %s)", name, strings.Join(r.namesLocked(), ", "))
	}
	return rr, nil
}

// Names returns the registered style names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.renderers))
	for name := range r.renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type palette struct {
	pass, fail, errc, warn, dim, bold *color.Color
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return palette{
		pass: mk(color.FgGreen),
		fail: mk(color.FgRed, color.Bold),
		errc: mk(color.FgMagenta, color.Bold),
		warn: mk(color.FgYellow),
		dim:  mk(color.Faint),
		bold: mk(color.Bold),
	}
}

func (p palette) verdict(v runner.Verdict) string {
	switch v {
	case runner.VerdictPass:
		return p.pass.Sprint("PASS")
	case runner.VerdictFail:
		return p.fail.Sprint("FAIL")
	}
	return p.errc.Sprint("ERR ")
}

// normal: every case with its diff, then the summary.
type normalRenderer struct{}

func (normalRenderer) Name() string { return "normal" }
func (normalRenderer) Description() string {
	return "every case with a diff for failures, then a summary"
}

func (normalRenderer) Render(w io.Writer, rep Report, opts Options) error {
	p := newPalette(opts.Color)
	ew := &errWriter{w: w}
	for _, res := range rep.Results {
		if opts.HidePasses && res.Passed() && len(res.Warnings) == 0 {
			continue
		}
		writeCase(ew, p, res, opts)
	}
	if len(rep.Results) > 0 {
		ew.printf("\n")
	}
	writeSummary(ew, p, rep, opts.Verbose)
	return ew.err
}

func writeCase(ew *errWriter, p palette, res runner.CaseResult, opts Options) {
	ew.printf("[%s] %s %s\n", p.verdict(res.Verdict), p.bold.Sprint(res.Case.ID), res.Case.Text)
	if res.Verdict == runner.VerdictError {
		ew.printf("       %s\n", p.errc.Sprint(res.ErrText))
		return
	}

	radius := opts.Window
	if radius <= 0 {
		radius = DefaultWindow
	}
	for _, e := range Entries(res.Match) {
		label := fmt.Sprintf("%-10s", e.Label)
		switch e.Label {
		case "missing", "changed":
			label = p.fail.Sprint(label)
		case "unexpected":
			label = p.errc.Sprint(label)
		default:
			label = p.warn.Sprint(label)
		}
		ew.printf("       %s %s\n", label, DescribeEntry(e))
		excerpt, marker := Window(textFor(res, e), e.Annotation.Span, radius)
		ew.printf("                  %s\n                  %s\n", excerpt, p.dim.Sprint(marker))
	}
	for _, wn := range res.Warnings {
		if wn.Kind == runner.WarnTextDivergence {
			ew.printf("       %s %s\n", p.warn.Sprint(fmt.Sprintf("%-10s", "text")), wn.Message)
		}
	}
	if opts.Verbose && res.Output != "" {
		ew.printf("       %s %s\n", p.dim.Sprint(fmt.Sprintf("%-10s", "output")), res.Output)
	}
}

func writeSummary(ew *errWriter, p palette, rep Report, verbose bool) {
	s := rep.Summary
	ew.printf("%s: %d cases, %s, %s, %s",
		p.bold.Sprint(rep.Suite), s.Total,
		p.pass.Sprintf("%d passed", s.Passed),
		p.fail.Sprintf("%d failed", s.Failed),
		p.errc.Sprintf("%d errored", s.Errored))
	if s.Warned > 0 {
		ew.printf(", %s", p.warn.Sprintf("%d with warnings", s.Warned))
	}
	if rep.Duration > 0 {
		ew.printf(" in %s", rep.Duration.Round(1e6))
	}
	ew.printf("\n")
	if rep.Interrupted {
		ew.printf("%s\n", p.errc.Sprint("run interrupted, results are incomplete"))
	}

	c := s.Classes
	ew.printf("tp %d  fp1 %d  fp2 %d  fn1 %d  fn2 %d   precision %.1f%%  recall %.1f%%  F1 %.1f%%\n",
		c.TP, c.FP1, c.FP2, c.FN1, c.FN2, 100*c.Precision(), 100*c.Recall(), 100*c.F1())

	if d := rep.Delta; d != nil {
		if len(d.NewlyFailing) > 0 {
			ew.printf("%s %s\n", p.fail.Sprint("newly failing since last run:"), strings.Join(d.NewlyFailing, ", "))
		}
		if len(d.NewlyPassing) > 0 {
			ew.printf("%s %s\n", p.pass.Sprint("newly passing since last run:"), strings.Join(d.NewlyPassing, ", "))
		}
	}

	if !verbose {
		return
	}
	ew.printf("\n%-24s %8s %8s %10s %10s\n", "code", "matched", "missing", "unexpected", "mismatched")
	for _, code := range s.Codes() {
		cc := s.ByCode[code]
		ew.printf("%-24s %8d %8d %10d %10d\n", code, cc.Matched, cc.Missing, cc.Unexpected, cc.Mismatched)
	}
	ew.printf("\n")
	for _, e := range Explanations {
		ew.printf("%-4s %s\n", e.Class, p.dim.Sprint(e.Text))
	}
}

// compact: one line per case.
type compactRenderer struct{}

func (compactRenderer) Name() string        { return "compact" }
func (compactRenderer) Description() string { return "one line per case with difference counts" }

func (compactRenderer) Render(w io.Writer, rep Report, opts Options) error {
	p := newPalette(opts.Color)
	ew := &errWriter{w: w}
	for _, res := range rep.Results {
		if opts.HidePasses && res.Passed() {
			continue
		}
		ew.printf("%s %s", p.verdict(res.Verdict), res.Case.ID)
		switch res.Verdict {
		case runner.VerdictError:
			ew.printf(" %s", res.ErrText)
		case runner.VerdictFail:
			m := res.Match
			ew.printf(" missing=%d unexpected=%d changed=%d", len(m.Missing), len(m.Unexpected), len(m.Mismatched))
		}
		if len(res.Warnings) > 0 {
			ew.printf(" warnings=%d", len(res.Warnings))
		}
		ew.printf("\n")
	}
	writeSummaryLine(ew, p, rep)
	return ew.err
}

// terse: one character per case.
type terseRenderer struct{}

func (terseRenderer) Name() string        { return "terse" }
func (terseRenderer) Description() string { return "one character per case: . pass, F fail, E error" }

func (terseRenderer) Render(w io.Writer, rep Report, opts Options) error {
	p := newPalette(opts.Color)
	ew := &errWriter{w: w}
	for _, res := range rep.Results {
		switch res.Verdict {
		case runner.VerdictPass:
			ew.printf("%s", p.pass.Sprint("."))
		case runner.VerdictFail:
			ew.printf("%s", p.fail.Sprint("F"))
		default:
			ew.printf("%s", p.errc.Sprint("E"))
		}
	}
	if len(rep.Results) > 0 {
		ew.printf("\n")
	}
	writeSummaryLine(ew, p, rep)
	return ew.err
}

// final: just the summary line.
type finalRenderer struct{}

func (finalRenderer) Name() string        { return "final" }
func (finalRenderer) Description() string { return "only the summary line" }

func (finalRenderer) Render(w io.Writer, rep Report, opts Options) error {
	ew := &errWriter{w: w}
	writeSummaryLine(ew, newPalette(opts.Color), rep)
	return ew.err
}

func writeSummaryLine(ew *errWriter, p palette, rep Report) {
	s := rep.Summary
	ew.printf("%s %d/%d passed, %d failed, %d errored\n",
		rep.Suite, s.Passed, s.Total, s.Failed, s.Errored)
	if d := rep.Delta; d != nil && len(d.NewlyFailing) > 0 {
		ew.printf("%s %s\n", p.fail.Sprint("newly failing:"), strings.Join(d.NewlyFailing, ", "))
	}
}

// silent prints nothing; only the exit code reports the outcome.
type silentRenderer struct{}

func (silentRenderer) Name() string                            { return "silent" }
func (silentRenderer) Description() string                     { return "no output, exit code only" }
func (silentRenderer) Render(io.Writer, Report, Options) error { return nil }

type jsonRenderer struct{}

func (jsonRenderer) Name() string        { return "json" }
func (jsonRenderer) Description() string { return "machine-readable JSON report" }

func (jsonRenderer) Render(w io.Writer, rep Report, opts Options) error {
	if opts.HidePasses {
		rep.Results = rep.Failures()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// errWriter keeps the first write error so render code can print freely.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
