package report

import (
	"sort"

	"github.com/cgast/gramtest/pkg/markup"
	"github.com/cgast/gramtest/pkg/match"
	"github.com/cgast/gramtest/pkg/runner"
)

// CodeCounts breaks down match outcomes for one error code.
type CodeCounts struct {
	Matched    int `json:"matched"`
	Missing    int `json:"missing"`
	Unexpected int `json:"unexpected"`
	Mismatched int `json:"mismatched"`
}

// Classes counts annotations in the classification used by linguists:
//
//	tp   flagged where expected, with an acceptable suggestion
//	fp1  flagged where expected, but with the wrong code or suggestion
//	fp2  flagged where nothing was expected
//	fn1  flagged where expected, but without any suggestion
//	fn2  expected but not flagged
type Classes struct {
	TP  int `json:"tp"`
	FP1 int `json:"fp1"`
	FP2 int `json:"fp2"`
	FN1 int `json:"fn1"`
	FN2 int `json:"fn2"`
}

// Explanations describes each class for report legends.
var Explanations = []struct{ Class, Text string }{
	{"tp", "checker found the marked up error and has the suggested correction"},
	{"fp1", "checker found the marked up error, but corrected it wrongly"},
	{"fp2", "checker found an error which is not marked up"},
	{"fn1", "checker found the marked up error, but has no correction"},
	{"fn2", "checker did not find the marked up error"},
}

// Precision is tp / (tp + fp1 + fp2), or 0 when nothing was flagged.
func (c Classes) Precision() float64 {
	return ratio(c.TP, c.TP+c.FP1+c.FP2)
}

// Recall is tp / (tp + fn1 + fn2), or 0 when nothing was expected.
func (c Classes) Recall() float64 {
	return ratio(c.TP, c.TP+c.FN1+c.FN2)
}

// F1 is the harmonic mean of precision and recall.
func (c Classes) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// Summary aggregates a run. Errored cases count toward Total and Errored
// only; they contribute nothing to the per-code and class counts.
type Summary struct {
	Total   int                   `json:"total"`
	Passed  int                   `json:"passed"`
	Failed  int                   `json:"failed"`
	Errored int                   `json:"errored"`
	Warned  int                   `json:"warned"`
	ByCode  map[string]CodeCounts `json:"by_code,omitempty"`
	Classes Classes               `json:"classes"`
}

// Codes returns the codes of ByCode in sorted order.
func (s Summary) Codes() []string {
	codes := make([]string, 0, len(s.ByCode))
	for c := range s.ByCode {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Summarize counts verdicts, per-code outcomes and classes.
func Summarize(results []runner.CaseResult) Summary {
	s := Summary{ByCode: make(map[string]CodeCounts)}
	bump := func(code string, f func(*CodeCounts)) {
		c := s.ByCode[code]
		f(&c)
		s.ByCode[code] = c
	}

	for _, r := range results {
		s.Total++
		if len(r.Warnings) > 0 {
			s.Warned++
		}
		switch r.Verdict {
		case runner.VerdictPass:
			s.Passed++
		case runner.VerdictFail:
			s.Failed++
		default:
			s.Errored++
			continue
		}

		m := r.Match
		for _, p := range m.Matched {
			bump(p.Expected.Code, func(c *CodeCounts) { c.Matched++ })
			classifyPair(&s.Classes, p)
		}
		for _, p := range m.Mismatched {
			bump(p.Expected.Code, func(c *CodeCounts) { c.Mismatched++ })
			classifyPair(&s.Classes, p)
		}
		for _, a := range m.Missing {
			bump(a.Code, func(c *CodeCounts) { c.Missing++ })
			s.Classes.FN2++
		}
		for _, a := range m.Unexpected {
			bump(a.Code, func(c *CodeCounts) { c.Unexpected++ })
			s.Classes.FP2++
		}
	}
	return s
}

func classifyPair(c *Classes, p match.Pair) {
	switch {
	case p.Reason == match.ReasonNone:
		c.TP++
	case p.Reason == match.ReasonSuggestions && !hasSuggestions(p.Actual):
		c.FN1++
	default:
		c.FP1++
	}
}

func hasSuggestions(a markup.Annotation) bool {
	return len(a.Suggestions) > 0
}
