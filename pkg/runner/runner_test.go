package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgast/gramtest/pkg/checker"
	"github.com/cgast/gramtest/pkg/events"
	"github.com/cgast/gramtest/pkg/markup"
	"github.com/cgast/gramtest/pkg/match"
	"github.com/cgast/gramtest/pkg/spec"
)

// fakeChecker answers from a table keyed by input text. Texts mapped to
// "<block>" wait for the context to end.
func fakeChecker(answers map[string]string) checker.Func {
	return checker.Func{Fn: func(ctx context.Context, text string) (string, error) {
		out, ok := answers[text]
		if !ok {
			return text, nil
		}
		if out == "<block>" {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return out, nil
	}}
}

func testCase(t *testing.T, id, src string) spec.TestCase {
	t.Helper()
	doc, err := markup.Parse(src)
	require.NoError(t, err)
	return spec.TestCase{ID: id, Text: doc.Text, Expected: doc.Annotations, Inline: src}
}

type sliceSink struct {
	mu  sync.Mutex
	ids []string
	on  func(CaseResult)
}

func (s *sliceSink) Add(r CaseResult) {
	s.mu.Lock()
	s.ids = append(s.ids, r.ID())
	s.mu.Unlock()
	if s.on != nil {
		s.on(r)
	}
}

func TestRunCaseVerdicts(t *testing.T) {
	fc := fakeChecker(map[string]string{
		"Mun leat dás.": "Mun {leat}<msyn-agr|lean> dás.",
		"Dat lea.":      "Dat lea.",
		"Son leat.":     "{Son}<typo> leat.",
	})
	r := New(fc)

	t.Run("pass", func(t *testing.T) {
		res := r.RunCase(context.Background(), testCase(t, "p", "Mun {leat}<msyn-agr|lean> dás."))
		assert.Equal(t, VerdictPass, res.Verdict)
		assert.True(t, res.Match.Clean())
		assert.Empty(t, res.Warnings)
	})

	t.Run("missing", func(t *testing.T) {
		res := r.RunCase(context.Background(), testCase(t, "m", "{Dat}<typo> lea."))
		assert.Equal(t, VerdictFail, res.Verdict)
		assert.Len(t, res.Match.Missing, 1)
	})

	t.Run("mismatched code", func(t *testing.T) {
		res := r.RunCase(context.Background(), testCase(t, "c", "{Son}<spell> leat."))
		assert.Equal(t, VerdictFail, res.Verdict)
		require.Len(t, res.Match.Mismatched, 1)
		assert.Equal(t, match.ReasonCode, res.Match.Mismatched[0].Reason)
	})

	t.Run("unexpected", func(t *testing.T) {
		res := r.RunCase(context.Background(), testCase(t, "u", "Son leat."))
		assert.Equal(t, VerdictFail, res.Verdict)
		assert.Len(t, res.Match.Unexpected, 1)
	})
}

func TestRunCaseTimeoutIsInvocationError(t *testing.T) {
	r := New(fakeChecker(map[string]string{"slow": "<block>"}), WithTimeout(50*time.Millisecond))

	res := r.RunCase(context.Background(), spec.TestCase{ID: "slow", Text: "slow"})
	assert.Equal(t, VerdictError, res.Verdict)

	var ie *checker.InvocationError
	require.True(t, errors.As(res.Err, &ie), "got %v", res.Err)
	assert.True(t, ie.Timeout())
	assert.NotEmpty(t, res.ErrText)
}

func TestRunCaseUnparsableOutput(t *testing.T) {
	r := New(fakeChecker(map[string]string{"x": "{x"}))
	res := r.RunCase(context.Background(), spec.TestCase{ID: "x", Text: "x"})

	assert.Equal(t, VerdictError, res.Verdict)
	var pe *markup.ParseError
	assert.True(t, errors.As(res.Err, &pe), "got %v", res.Err)
	assert.Equal(t, "{x", res.Output)
}

func TestRunCaseTextDivergence(t *testing.T) {
	r := New(fakeChecker(map[string]string{"Mun leat dás.": "Mun leat dass."}))
	res := r.RunCase(context.Background(), spec.TestCase{ID: "d", Text: "Mun leat dás."})

	assert.Equal(t, VerdictPass, res.Verdict)
	assert.True(t, res.HasWarning(WarnTextDivergence))
}

func TestRunCaseNormalization(t *testing.T) {
	fc := fakeChecker(map[string]string{"Mun  leat\tdás. ": "Mun {leat}<msyn-agr> dás."})
	fc.Norm = checker.Normalization{Whitespace: true}
	r := New(fc)

	tc := testCase(t, "n", "Mun  {leat}<msyn-agr>\tdás. ")
	require.Equal(t, markup.Span{Start: 5, End: 9}, tc.Expected[0].Span)

	res := r.RunCase(context.Background(), tc)
	assert.Equal(t, VerdictPass, res.Verdict)
	assert.False(t, res.HasWarning(WarnTextDivergence))
	require.Len(t, res.Expected, 1)
	assert.Equal(t, markup.Span{Start: 4, End: 8}, res.Expected[0].Span)
	assert.Equal(t, "leat", res.Expected[0].Surface)
}

func TestRunCaseSoftSuggestions(t *testing.T) {
	fc := fakeChecker(map[string]string{"Mun leat dás.": "Mun {leat}<msyn-agr|lea> dás."})
	r := New(fc, WithMatcher(match.New(match.Options{SoftSuggestions: true})))

	res := r.RunCase(context.Background(), testCase(t, "s", "Mun {leat}<msyn-agr|lean> dás."))
	assert.Equal(t, VerdictPass, res.Verdict)
	assert.True(t, res.HasWarning(WarnSuggestions))
}

func TestRunIsolatesFailures(t *testing.T) {
	fc := fakeChecker(map[string]string{
		"slow":          "<block>",
		"Mun leat dás.": "Mun {leat}<msyn-agr|lean> dás.",
	})
	bus := events.NewMemoryBus()
	verdicts := bus.Subscribe(events.EventCaseVerdict)
	defer bus.Unsubscribe(verdicts)

	r := New(fc, WithJobs(4), WithTimeout(50*time.Millisecond), WithEvents(bus))
	cases := []spec.TestCase{
		testCase(t, "a", "Mun {leat}<msyn-agr|lean> dás."),
		{ID: "b", Text: "slow"},
		testCase(t, "c", "{Dat}<typo> lea."),
		testCase(t, "d", "Plain text."),
	}
	sink := &sliceSink{}

	results, err := r.Run(context.Background(), cases, sink)
	require.NoError(t, err)
	require.Len(t, results, 4)

	want := []Verdict{VerdictPass, VerdictError, VerdictFail, VerdictPass}
	for i, res := range results {
		assert.Equal(t, cases[i].ID, res.ID())
		assert.Equal(t, i, res.Index)
		assert.Equal(t, want[i], res.Verdict, res.ID())
	}
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, sink.ids)
	assert.Len(t, verdicts, 4)

	var sawStart, sawEnd bool
	for _, e := range bus.History(time.Time{}) {
		sawStart = sawStart || e.Type == events.EventRunStart
		sawEnd = sawEnd || e.Type == events.EventRunEnd
	}
	assert.True(t, sawStart && sawEnd)
}

func TestRunCancellationKeepsRecordedVerdicts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fc := fakeChecker(map[string]string{"two": "<block>", "three": "<block>"})
	r := New(fc, WithJobs(1))
	sink := &sliceSink{on: func(CaseResult) { cancel() }}

	cases := []spec.TestCase{{ID: "1", Text: "one"}, {ID: "2", Text: "two"}, {ID: "3", Text: "three"}}
	results, err := r.Run(ctx, cases, sink)

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].ID())
	assert.Equal(t, VerdictPass, results[0].Verdict)
}

func TestRunFailFast(t *testing.T) {
	r := New(fakeChecker(nil), WithJobs(1), WithFailFast(true))
	cases := []spec.TestCase{
		{ID: "1", Text: "ok"},
		{ID: "2", Text: "missing", Expected: []markup.Annotation{{Code: "x", Span: markup.Span{Start: 0, End: 1}}}},
		{ID: "3", Text: "never"},
	}
	results, err := r.Run(context.Background(), cases, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, VerdictFail, results[1].Verdict)
}

func TestRunEmpty(t *testing.T) {
	results, err := New(fakeChecker(nil)).Run(context.Background(), nil, nil)
	assert.NoError(t, err)
	assert.Empty(t, results)
}
