package runner

import (
	"time"

	"github.com/cgast/gramtest/pkg/markup"
	"github.com/cgast/gramtest/pkg/match"
	"github.com/cgast/gramtest/pkg/spec"
)

// Verdict is the outcome of one test case.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
	// VerdictError means the checker could not be run or its output could
	// not be parsed. It never counts as a grammar failure.
	VerdictError Verdict = "error"
)

// WarningKind classifies non-fatal findings.
type WarningKind string

const (
	// WarnTextDivergence: the checker's reconstructed text differs from the
	// case text after the checker's declared normalization.
	WarnTextDivergence WarningKind = "text-divergence"
	// WarnSuggestions: suggestions disagree while soft suggestion checking
	// is enabled.
	WarnSuggestions WarningKind = "suggestions"
)

// Warning is a non-fatal finding attached to a case result.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// CaseResult is everything known about one executed test case.
type CaseResult struct {
	Case    spec.TestCase `json:"case"`
	Index   int           `json:"index"`
	Verdict Verdict       `json:"verdict"`

	// Text and Expected are the case text and expectations in checker
	// coordinates, remapped through the checker's normalization.
	Text     string              `json:"text"`
	Expected []markup.Annotation `json:"expected"`
	Actual   markup.Document     `json:"actual"`
	Output   string              `json:"output,omitempty"`
	Match    match.Result        `json:"match"`

	Err      error         `json:"-"`
	ErrText  string        `json:"error,omitempty"`
	Warnings []Warning     `json:"warnings,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ID returns the test case identifier.
func (r CaseResult) ID() string {
	return r.Case.ID
}

// Passed reports whether the verdict is VerdictPass.
func (r CaseResult) Passed() bool {
	return r.Verdict == VerdictPass
}

// HasWarning reports whether a warning of kind k was recorded.
func (r CaseResult) HasWarning(k WarningKind) bool {
	for _, w := range r.Warnings {
		if w.Kind == k {
			return true
		}
	}
	return false
}
