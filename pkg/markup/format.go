package markup

import (
	"fmt"
	"sort"
	"strings"
)

type group struct {
	span Span
	anns []Annotation
	kids []*group
}

// Format renders a Document back to markup. Annotations sharing a span are
// written as one brace group with several analyses; distinct spans must nest
// properly, partially overlapping spans cannot be expressed and yield an
// error.
func Format(doc Document) (string, error) {
	runes := []rune(doc.Text)

	bySpan := make(map[Span]*group)
	var groups []*group
	for _, a := range doc.Annotations {
		if !a.Span.Valid(len(runes)) {
			return "", fmt.Errorf("markup: span %s out of range for text of %d runes", a.Span, len(runes))
		}
		g, ok := bySpan[a.Span]
		if !ok {
			g = &group{span: a.Span}
			bySpan[a.Span] = g
			groups = append(groups, g)
		}
		g.anns = append(g.anns, a)
	}

	// Outer groups first: start ascending, end descending.
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].span, groups[j].span
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End > b.End
	})

	root := &group{span: Span{Start: 0, End: len(runes)}}
	stack := []*group{root}
	for _, g := range groups {
		for len(stack) > 1 && !stack[len(stack)-1].span.Contains(g.span) {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1]
		for _, sib := range parent.kids {
			if sib.span.Overlaps(g.span) && !sib.span.Contains(g.span) {
				return "", fmt.Errorf("markup: spans %s and %s overlap without nesting", sib.span, g.span)
			}
		}
		parent.kids = append(parent.kids, g)
		stack = append(stack, g)
	}

	var b strings.Builder
	writeGroup(&b, runes, root, true)
	return b.String(), nil
}

func writeGroup(b *strings.Builder, runes []rune, g *group, top bool) {
	if !top {
		b.WriteRune(GroupOpen)
	}
	cur := g.span.Start
	for _, kid := range g.kids {
		writeText(b, runes[cur:kid.span.Start])
		writeGroup(b, runes, kid, false)
		cur = kid.span.End
	}
	writeText(b, runes[cur:g.span.End])
	if top {
		return
	}
	b.WriteRune(GroupClose)
	for _, a := range g.anns {
		writeAnalysis(b, a)
	}
}

func writeText(b *strings.Builder, runes []rune) {
	for _, r := range runes {
		switch r {
		case GroupOpen, GroupClose, AnalysisOpen, Escape:
			b.WriteRune(Escape)
		}
		b.WriteRune(r)
	}
}

func writeAnalysis(b *strings.Builder, a Annotation) {
	b.WriteRune(AnalysisOpen)
	writeField(b, a.Code)
	if len(a.Suggestions) > 0 || a.Message != "" {
		b.WriteRune(FieldSep)
		for i, s := range a.Suggestions {
			if i > 0 {
				b.WriteRune(SuggestionSep)
			}
			writeField(b, s)
		}
	}
	if a.Message != "" {
		b.WriteRune(FieldSep)
		writeField(b, a.Message)
	}
	b.WriteRune(AnalysisClose)
}

func writeField(b *strings.Builder, s string) {
	for _, r := range s {
		switch r {
		case GroupOpen, GroupClose, AnalysisClose, FieldSep, SuggestionSep, Escape:
			b.WriteRune(Escape)
		}
		b.WriteRune(r)
	}
}
