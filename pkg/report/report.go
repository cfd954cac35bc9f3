// Package report aggregates case results into a run report, renders it in
// several styles and derives the process exit code.
package report

import (
	"time"

	"github.com/cgast/gramtest/pkg/history"
	"github.com/cgast/gramtest/pkg/runner"
)

// Exit codes of a test or compare run.
const (
	ExitOK      = 0
	ExitFailure = 1 // at least one case failed or drifted
	ExitInfra   = 2 // checker, parse or setup errors; wins over ExitFailure
)

// Report is the outcome of one run of a suite.
type Report struct {
	Suite       string              `json:"suite"`
	Checker     string              `json:"checker,omitempty"`
	Started     time.Time           `json:"started"`
	Duration    time.Duration       `json:"duration"`
	Results     []runner.CaseResult `json:"results"`
	Summary     Summary             `json:"summary"`
	Delta       *history.Delta      `json:"delta,omitempty"`
	Interrupted bool                `json:"interrupted,omitempty"`
}

// Build creates a report from case results, sorted by case ID.
func Build(suite string, results []runner.CaseResult) Report {
	rs := make([]runner.CaseResult, len(results))
	copy(rs, results)
	sortResults(rs)
	return Report{
		Suite:   suite,
		Results: rs,
		Summary: Summarize(rs),
	}
}

// ExitCode maps the report to a process exit code.
func (r Report) ExitCode() int {
	switch {
	case r.Summary.Errored > 0 || r.Interrupted:
		return ExitInfra
	case r.Summary.Failed > 0:
		return ExitFailure
	}
	return ExitOK
}

// Failures returns the results that did not pass.
func (r Report) Failures() []runner.CaseResult {
	var out []runner.CaseResult
	for _, res := range r.Results {
		if !res.Passed() {
			out = append(out, res)
		}
	}
	return out
}

// Passing returns the results that passed.
func (r Report) Passing() []runner.CaseResult {
	var out []runner.CaseResult
	for _, res := range r.Results {
		if res.Passed() {
			out = append(out, res)
		}
	}
	return out
}

// Record converts the report to a history record.
func (r Report) Record() history.Record {
	rec := history.Record{
		Suite:     r.Suite,
		StartedAt: r.Started,
		Duration:  r.Duration,
		Checker:   r.Checker,
		Total:     r.Summary.Total,
		Passed:    r.Summary.Passed,
		Failed:    r.Summary.Failed,
		Errored:   r.Summary.Errored,
		Verdicts:  make(map[string]string, len(r.Results)),
	}
	for _, res := range r.Results {
		rec.Verdicts[res.Case.ID] = string(res.Verdict)
	}
	return rec
}

// CompareWith sets Delta against a previous run.
func (r *Report) CompareWith(prev history.Record) {
	d := history.Diff(prev, r.Record())
	r.Delta = &d
}
