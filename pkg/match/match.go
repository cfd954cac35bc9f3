// Package match aligns an expected set of error annotations with an actual
// set and classifies the differences.
//
// Alignment is greedy and deterministic: candidate pairs are ranked by how
// well their spans and codes agree, ties are broken by the (start, end, code)
// order of the records, and each record is used at most once. The result does
// not depend on the order of the input slices.
package match

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cgast/gramtest/pkg/markup"
)

// SuggestionPolicy selects how suggestion lists are compared for pairs whose
// codes agree.
type SuggestionPolicy string

const (
	// SuggestionsSuperset requires the actual suggestions to contain every
	// expected suggestion.
	SuggestionsSuperset SuggestionPolicy = "superset"
	// SuggestionsExact requires both suggestion sets to be equal.
	SuggestionsExact SuggestionPolicy = "exact"
	// SuggestionsIgnore skips suggestion comparison.
	SuggestionsIgnore SuggestionPolicy = "ignore"
)

// ParseSuggestionPolicy maps a configuration value to a policy. The empty
// string selects SuggestionsSuperset.
func ParseSuggestionPolicy(s string) (SuggestionPolicy, error) {
	switch p := SuggestionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return SuggestionsSuperset, nil
	case SuggestionsSuperset, SuggestionsExact, SuggestionsIgnore:
		return p, nil
	}
	return "", fmt.Errorf("unknown suggestion policy %q (expected superset, exact or ignore)", s)
}

// Reason tells why a pair was not a clean match.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonCode        Reason = "code"
	ReasonSuggestions Reason = "suggestions"
)

// Pair is an expected record aligned with an actual record.
type Pair struct {
	Expected markup.Annotation `json:"expected"`
	Actual   markup.Annotation `json:"actual"`
	Reason   Reason            `json:"reason,omitempty"`
}

// Result classifies every record of both input sets exactly once. Warnings
// holds pairs that also appear in Matched but whose suggestions disagree
// while soft suggestion checking is enabled.
type Result struct {
	Matched    []Pair              `json:"matched,omitempty"`
	Missing    []markup.Annotation `json:"missing,omitempty"`
	Unexpected []markup.Annotation `json:"unexpected,omitempty"`
	Mismatched []Pair              `json:"mismatched,omitempty"`
	Warnings   []Pair              `json:"warnings,omitempty"`
}

// Clean reports whether there is nothing missing, unexpected or mismatched.
func (r Result) Clean() bool {
	return len(r.Missing) == 0 && len(r.Unexpected) == 0 && len(r.Mismatched) == 0
}

// Options configures a Matcher.
type Options struct {
	Suggestions SuggestionPolicy
	// SoftSuggestions demotes suggestion mismatches to warnings.
	SoftSuggestions bool
}

// Matcher aligns annotation sets. The zero value compares suggestions with
// SuggestionsSuperset and treats mismatches as hard failures.
type Matcher struct {
	opts Options
}

// New creates a Matcher.
func New(opts Options) *Matcher {
	if opts.Suggestions == "" {
		opts.Suggestions = SuggestionsSuperset
	}
	return &Matcher{opts: opts}
}

// Options returns the matcher configuration.
func (m *Matcher) Options() Options {
	return m.opts
}

// Match aligns expected against actual.
func Match(expected, actual []markup.Annotation) Result {
	return New(Options{}).Match(expected, actual)
}

// candidate tiers, best first
const (
	tierOverlapOtherCode = iota + 1
	tierExactOtherCode
	tierOverlapSameCode
	tierExactSameCode
)

type candidate struct {
	e, a    int
	tier    int
	suggsOK bool
}

// Match aligns expected against actual.
func (m *Matcher) Match(expected, actual []markup.Annotation) Result {
	exp := sortedCopy(expected)
	act := sortedCopy(actual)

	var cands []candidate
	for i, e := range exp {
		for j, a := range act {
			if !e.Span.Overlaps(a.Span) {
				continue
			}
			c := candidate{e: i, a: j, tier: tier(e, a)}
			c.suggsOK = m.suggestionsOK(e, a)
			cands = append(cands, c)
		}
	}

	// exp and act are already in canonical order, so their indices break ties.
	sort.SliceStable(cands, func(i, j int) bool {
		ci, cj := cands[i], cands[j]
		if ci.tier != cj.tier {
			return ci.tier > cj.tier
		}
		if ci.suggsOK != cj.suggsOK {
			return ci.suggsOK
		}
		if ci.e != cj.e {
			return ci.e < cj.e
		}
		return ci.a < cj.a
	})

	usedE := make([]bool, len(exp))
	usedA := make([]bool, len(act))
	var res Result
	for _, c := range cands {
		if usedE[c.e] || usedA[c.a] {
			continue
		}
		usedE[c.e], usedA[c.a] = true, true

		p := Pair{Expected: exp[c.e], Actual: act[c.a]}
		switch {
		case p.Expected.Code != p.Actual.Code:
			p.Reason = ReasonCode
			res.Mismatched = append(res.Mismatched, p)
		case !c.suggsOK && m.opts.SoftSuggestions:
			p.Reason = ReasonSuggestions
			res.Matched = append(res.Matched, p)
			res.Warnings = append(res.Warnings, p)
		case !c.suggsOK:
			p.Reason = ReasonSuggestions
			res.Mismatched = append(res.Mismatched, p)
		default:
			res.Matched = append(res.Matched, p)
		}
	}

	for i, e := range exp {
		if !usedE[i] {
			res.Missing = append(res.Missing, e)
		}
	}
	for j, a := range act {
		if !usedA[j] {
			res.Unexpected = append(res.Unexpected, a)
		}
	}

	sortPairs(res.Matched)
	sortPairs(res.Mismatched)
	sortPairs(res.Warnings)
	return res
}

func tier(e, a markup.Annotation) int {
	exact := e.Span == a.Span
	same := e.Code == a.Code
	switch {
	case exact && same:
		return tierExactSameCode
	case same:
		return tierOverlapSameCode
	case exact:
		return tierExactOtherCode
	default:
		return tierOverlapOtherCode
	}
}

// suggestionsOK applies the suggestion policy. Pairs with different codes
// are never judged on suggestions.
func (m *Matcher) suggestionsOK(e, a markup.Annotation) bool {
	if e.Code != a.Code || len(e.Suggestions) == 0 {
		return true
	}
	switch m.opts.Suggestions {
	case SuggestionsIgnore:
		return true
	case SuggestionsExact:
		return sameSet(e.Suggestions, a.Suggestions)
	default:
		return superset(a.Suggestions, e.Suggestions)
	}
}

func toSet(xs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		set[x] = struct{}{}
	}
	return set
}

func superset(have, want []string) bool {
	set := toSet(have)
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

func sameSet(a, b []string) bool {
	return superset(a, b) && superset(b, a)
}
