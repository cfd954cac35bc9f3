package match

import (
	"sort"
	"strings"

	"github.com/cgast/gramtest/pkg/markup"
)

// Less orders annotations by start, end, code, suggestions and message. It is
// the canonical order used for tie-breaking and for every slice in a Result.
func Less(a, b markup.Annotation) bool {
	if a.Span.Start != b.Span.Start {
		return a.Span.Start < b.Span.Start
	}
	if a.Span.End != b.Span.End {
		return a.Span.End < b.Span.End
	}
	if a.Code != b.Code {
		return a.Code < b.Code
	}
	if sa, sb := strings.Join(a.Suggestions, "\x00"), strings.Join(b.Suggestions, "\x00"); sa != sb {
		return sa < sb
	}
	return a.Message < b.Message
}

func sortedCopy(in []markup.Annotation) []markup.Annotation {
	out := make([]markup.Annotation, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return Less(out[i], out[j])
	})
	return out
}

func sortPairs(ps []Pair) {
	sort.SliceStable(ps, func(i, j int) bool {
		if Less(ps[i].Expected, ps[j].Expected) {
			return true
		}
		if Less(ps[j].Expected, ps[i].Expected) {
			return false
		}
		return Less(ps[i].Actual, ps[j].Actual)
	})
}
