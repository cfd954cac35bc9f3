// Package runner executes test cases against a checker and turns each one
// into a verdict.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cgast/gramtest/pkg/checker"
	"github.com/cgast/gramtest/pkg/events"
	"github.com/cgast/gramtest/pkg/markup"
	"github.com/cgast/gramtest/pkg/match"
	"github.com/cgast/gramtest/pkg/spec"
)

// DefaultTimeout bounds a single checker call.
const DefaultTimeout = 30 * time.Second

// Sink receives case results as they complete. Implementations must be
// safe for concurrent use.
type Sink interface {
	Add(CaseResult)
}

// Option configures a Runner.
type Option func(*Runner)

// WithJobs sets the number of cases run in parallel. Values below one
// select GOMAXPROCS.
func WithJobs(n int) Option {
	return func(r *Runner) {
		r.jobs = n
	}
}

// WithTimeout sets the per-case timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithMatcher sets the matcher used to compare expected and actual errors.
func WithMatcher(m *match.Matcher) Option {
	return func(r *Runner) {
		if m != nil {
			r.matcher = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithEvents publishes run and case events on bus.
func WithEvents(bus events.EventBus) Option {
	return func(r *Runner) {
		if bus != nil {
			r.bus = bus
		}
	}
}

// WithFailFast stops scheduling new cases after the first case that does
// not pass. Cases already running still complete.
func WithFailFast(ff bool) Option {
	return func(r *Runner) {
		r.failFast = ff
	}
}

// Runner runs test cases against one checker.
type Runner struct {
	checker  checker.Checker
	jobs     int
	timeout  time.Duration
	matcher  *match.Matcher
	log      *slog.Logger
	bus      events.EventBus
	failFast bool
}

// New creates a Runner for c.
func New(c checker.Checker, opts ...Option) *Runner {
	r := &Runner{
		checker: c,
		timeout: DefaultTimeout,
		matcher: match.New(match.Options{}),
		log:     slog.New(slog.DiscardHandler),
		bus:     events.Discard,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.jobs < 1 {
		r.jobs = runtime.GOMAXPROCS(0)
	}
	return r
}

// RunCase runs a single case. Checker and parse failures become
// VerdictError; they are never returned as errors.
func (r *Runner) RunCase(ctx context.Context, tc spec.TestCase) CaseResult {
	return r.runCase(ctx, tc, 0)
}

// Run executes cases on a bounded worker pool and hands every result to
// sink, which may be nil. A failing or timed-out case never stops the
// others. When ctx is cancelled no new cases are started, cases cut short
// by the cancellation are dropped, and the results recorded so far are
// returned together with ctx.Err(). Results are in case order.
func (r *Runner) Run(ctx context.Context, cases []spec.TestCase, sink Sink) ([]CaseResult, error) {
	start := time.Now()
	r.log.Info("run started", "cases", len(cases), "jobs", r.jobs, "timeout", r.timeout)
	r.bus.Publish(events.NewEvent(events.EventRunStart, len(cases)))

	// Indices are unique per goroutine, so the slots need no lock.
	results := make([]CaseResult, len(cases))
	recorded := make([]bool, len(cases))
	var stop atomic.Bool

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(r.jobs, len(cases))))
	for i, tc := range cases {
		if gctx.Err() != nil || stop.Load() {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil || stop.Load() {
				return nil
			}
			r.bus.Publish(events.NewCaseEvent(events.EventCaseStart, tc.ID, i, tc.Text))

			res := r.runCase(gctx, tc, i)
			if ctx.Err() != nil {
				return nil
			}
			results[i] = res
			recorded[i] = true
			if sink != nil {
				sink.Add(res)
			}

			ev := events.NewCaseEvent(events.EventCaseVerdict, tc.ID, i, res.Verdict)
			ev.Duration = res.Duration
			r.bus.Publish(ev)
			if r.failFast && !res.Passed() {
				stop.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]CaseResult, 0, len(cases))
	for i, ok := range recorded {
		if ok {
			out = append(out, results[i])
		}
	}

	end := events.NewEvent(events.EventRunEnd, len(out))
	end.Duration = time.Since(start)
	r.bus.Publish(end)
	r.log.Info("run finished", "recorded", len(out), "cases", len(cases), "elapsed", end.Duration)

	return out, ctx.Err()
}

func (r *Runner) runCase(ctx context.Context, tc spec.TestCase, index int) CaseResult {
	start := time.Now()
	res := CaseResult{Case: tc, Index: index}
	log := r.log.With("case", tc.ID)

	text, expected := tc.Text, tc.Expected
	if norm := r.checker.Normalization(); !norm.IsZero() {
		var table []int
		text, table = norm.Map(tc.Text)
		expected = remap(tc.Expected, table, text)
	}
	res.Text, res.Expected = text, expected

	cctx, cancel := ctx, context.CancelFunc(func() {})
	if r.timeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	out, err := r.checker.Check(cctx, tc.Text)
	cancel()
	res.Duration = time.Since(start)
	if err != nil {
		r.bus.Publish(events.NewCaseEvent(events.EventCheckerError, tc.ID, index, err.Error()))
		log.Warn("checker failed", "err", err)
		return errored(res, err)
	}
	res.Output = out

	doc, err := markup.Parse(out)
	if err != nil {
		log.Warn("unparsable checker output", "err", err, "output", out)
		return errored(res, fmt.Errorf("parse checker output: %w", err))
	}
	res.Actual = doc

	if doc.Text != text {
		res.Warnings = append(res.Warnings, Warning{
			Kind:    WarnTextDivergence,
			Message: fmt.Sprintf("checker text %q differs from input %q", doc.Text, text),
		})
		log.Debug("text divergence", "checker", doc.Text, "input", text)
	}

	res.Match = r.matcher.Match(expected, doc.Annotations)
	for _, p := range res.Match.Warnings {
		res.Warnings = append(res.Warnings, Warning{
			Kind: WarnSuggestions,
			Message: fmt.Sprintf("%s%s: expected %s, got %s", p.Expected.Code, p.Expected.Span,
				suggestionList(p.Expected.Suggestions), suggestionList(p.Actual.Suggestions)),
		})
	}

	if res.Match.Clean() {
		res.Verdict = VerdictPass
	} else {
		res.Verdict = VerdictFail
	}
	log.Debug("case done", "verdict", res.Verdict, "elapsed", res.Duration)
	return res
}

func errored(res CaseResult, err error) CaseResult {
	res.Verdict = VerdictError
	res.Err = err
	res.ErrText = err.Error()
	return res
}

// remap moves expected spans into the coordinates of the normalized text.
func remap(in []markup.Annotation, table []int, text string) []markup.Annotation {
	if len(in) == 0 {
		return nil
	}
	out := make([]markup.Annotation, len(in))
	last := len(table) - 1
	at := func(i int) int {
		if i < 0 {
			return table[0]
		}
		if i > last {
			return table[last]
		}
		return table[i]
	}
	for i, a := range in {
		a.Span = markup.Span{Start: at(a.Span.Start), End: at(a.Span.End)}
		a.Surface = markup.Slice(text, a.Span)
		out[i] = a
	}
	return out
}

func suggestionList(s []string) string {
	if len(s) == 0 {
		return "nothing"
	}
	return strings.Join(s, "/")
}
