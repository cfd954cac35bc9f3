// Package compare detects drift between two checker outputs for the same
// corpus, one analysed sentence per line.
package compare

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cgast/gramtest/pkg/events"
	"github.com/cgast/gramtest/pkg/markup"
	"github.com/cgast/gramtest/pkg/match"
	"github.com/cgast/gramtest/pkg/report"
)

// Drift labels.
const (
	LabelOnlyBaseline  = "only in baseline"
	LabelOnlyCandidate = "only in candidate"
	LabelChanged       = "changed"
)

const maxLine = 1 << 20

// Line is one compared sentence.
type Line struct {
	BaselineLine  int             `json:"baseline_line"`
	CandidateLine int             `json:"candidate_line"`
	Baseline      markup.Document `json:"baseline"`
	Candidate     markup.Document `json:"candidate"`
	Match         match.Result    `json:"match"`
	// Divergent is set when the reconstructed texts differ.
	Divergent bool `json:"divergent,omitempty"`
}

// Drifted reports whether the analyses differ.
func (l Line) Drifted() bool {
	return !l.Match.Clean()
}

// Result is the outcome of a comparison.
type Result struct {
	Baseline  string `json:"baseline"`
	Candidate string `json:"candidate"`
	Lines     []Line `json:"lines"`
}

// Drifted counts lines whose analyses differ.
func (r Result) Drifted() int {
	n := 0
	for _, l := range r.Lines {
		if l.Drifted() {
			n++
		}
	}
	return n
}

// Divergent counts lines whose texts differ.
func (r Result) Divergent() int {
	n := 0
	for _, l := range r.Lines {
		if l.Divergent {
			n++
		}
	}
	return n
}

// ExitCode is ExitFailure when any line drifted.
func (r Result) ExitCode() int {
	if r.Drifted() > 0 {
		return report.ExitFailure
	}
	return report.ExitOK
}

// CountError reports inputs with a different number of sentences.
type CountError struct {
	Baseline, Candidate int
}

func (e *CountError) Error() string {
	return fmt.Sprintf("line count mismatch: baseline has %d sentences, candidate has %d", e.Baseline, e.Candidate)
}

// LineError locates a markup error in one of the inputs.
type LineError struct {
	Path string
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithMatcher sets the matcher; the baseline plays the expected side.
func WithMatcher(m *match.Matcher) Option {
	return func(c *Comparator) {
		if m != nil {
			c.matcher = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Comparator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithEvents publishes one event per compared line.
func WithEvents(bus events.EventBus) Option {
	return func(c *Comparator) {
		if bus != nil {
			c.bus = bus
		}
	}
}

// Comparator aligns two markup corpora line by line.
type Comparator struct {
	matcher *match.Matcher
	log     *slog.Logger
	bus     events.EventBus
}

// New creates a Comparator.
func New(opts ...Option) *Comparator {
	c := &Comparator{
		matcher: match.New(match.Options{}),
		log:     slog.New(slog.DiscardHandler),
		bus:     events.Discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompareFiles compares the files at the two paths.
func (c *Comparator) CompareFiles(ctx context.Context, baseline, candidate string) (Result, error) {
	bf, err := os.Open(baseline)
	if err != nil {
		return Result{}, fmt.Errorf("open baseline: %w", err)
	}
	defer bf.Close()
	cf, err := os.Open(candidate)
	if err != nil {
		return Result{}, fmt.Errorf("open candidate: %w", err)
	}
	defer cf.Close()

	return c.Compare(ctx, bf, cf, baseline, candidate)
}

// Compare reads both inputs fully, skipping blank lines, and pairs the
// remaining sentences in order. Parse failures and unequal sentence counts
// are returned as errors; drift is reported in the Result.
func (c *Comparator) Compare(ctx context.Context, baseline, candidate io.Reader, baseName, candName string) (Result, error) {
	res := Result{Baseline: baseName, Candidate: candName}

	base, err := readLines(baseline, baseName)
	if err != nil {
		return res, err
	}
	cand, err := readLines(candidate, candName)
	if err != nil {
		return res, err
	}
	if len(base) != len(cand) {
		return res, &CountError{Baseline: len(base), Candidate: len(cand)}
	}

	c.log.Info("comparing", "baseline", baseName, "candidate", candName, "sentences", len(base))
	for i := range base {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		l := Line{
			BaselineLine:  base[i].line,
			CandidateLine: cand[i].line,
			Baseline:      base[i].doc,
			Candidate:     cand[i].doc,
		}
		l.Match = c.matcher.Match(l.Baseline.Annotations, l.Candidate.Annotations)
		l.Divergent = l.Baseline.Text != l.Candidate.Text
		if l.Divergent {
			c.log.Debug("text divergence", "baseline_line", l.BaselineLine, "candidate_line", l.CandidateLine)
		}
		res.Lines = append(res.Lines, l)

		ev := events.NewCaseEvent(events.EventCompareLine, fmt.Sprintf("%s:%d", baseName, l.BaselineLine), i, l.Drifted())
		c.bus.Publish(ev)
	}
	c.log.Info("compared", "sentences", len(res.Lines), "drifted", res.Drifted(), "divergent", res.Divergent())
	return res, nil
}

type parsedLine struct {
	line int
	doc  markup.Document
}

func readLines(r io.Reader, name string) ([]parsedLine, error) {
	var out []parsedLine
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		doc, err := markup.Parse(text)
		if err != nil {
			return nil, &LineError{Path: name, Line: n, Err: err}
		}
		out = append(out, parsedLine{line: n, doc: doc})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return out, nil
}
