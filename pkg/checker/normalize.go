package checker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Normalization describes input rewriting a checker performs before it
// reports spans. The zero value means the checker echoes its input verbatim.
type Normalization struct {
	// Whitespace collapses runs of white space to one space and trims both ends.
	Whitespace bool `json:"whitespace,omitempty"`
	// NFC applies Unicode canonical composition.
	NFC bool `json:"nfc,omitempty"`
}

// ParseNormalization builds a Normalization from names such as "whitespace"
// and "nfc".
func ParseNormalization(names []string) (Normalization, error) {
	var n Normalization
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "whitespace":
			n.Whitespace = true
		case "nfc":
			n.NFC = true
		case "", "none":
		default:
			return Normalization{}, fmt.Errorf("unknown normalization %q", name)
		}
	}
	return n, nil
}

// IsZero reports whether no normalization is applied.
func (n Normalization) IsZero() bool {
	return !n.Whitespace && !n.NFC
}

func (n Normalization) String() string {
	var parts []string
	if n.NFC {
		parts = append(parts, "nfc")
	}
	if n.Whitespace {
		parts = append(parts, "whitespace")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// Apply returns the normalized text.
func (n Normalization) Apply(s string) string {
	out, _ := n.Map(s)
	return out
}

// Map normalizes s and returns an offset table: table[i] is the rune offset
// in the result that corresponds to rune offset i of s, for
// 0 <= i <= RuneCount(s). The table is monotonic, so mapping both ends of a
// span keeps it well formed.
func (n Normalization) Map(s string) (string, []int) {
	out := s
	table := identity(utf8.RuneCountInString(s))
	if n.NFC {
		var nfc []int
		out, nfc = mapNFC(out)
		table = compose(table, nfc)
	}
	if n.Whitespace {
		var ws []int
		out, ws = mapWhitespace(out)
		table = compose(table, ws)
	}
	return out, table
}

func identity(n int) []int {
	t := make([]int, n+1)
	for i := range t {
		t[i] = i
	}
	return t
}

func compose(first, second []int) []int {
	out := make([]int, len(first))
	for i, v := range first {
		out[i] = second[v]
	}
	return out
}

// mapNFC composes s segment by segment. Runes of a segment whose length
// changed map to the start of the composed segment.
func mapNFC(s string) (string, []int) {
	if norm.NFC.IsNormalString(s) {
		return s, identity(utf8.RuneCountInString(s))
	}

	var (
		b     strings.Builder
		table []int
		it    norm.Iter
		prev  int
		outN  int
	)
	it.InitString(norm.NFC, s)
	for !it.Done() {
		seg := it.Next()
		pos := it.Pos()
		in, out := utf8.RuneCountInString(s[prev:pos]), utf8.RuneCount(seg)
		for k := range in {
			if in == out {
				table = append(table, outN+k)
			} else {
				table = append(table, outN)
			}
		}
		b.Write(seg)
		outN += out
		prev = pos
	}
	table = append(table, outN)
	return b.String(), table
}

func mapWhitespace(s string) (string, []int) {
	var (
		b       strings.Builder
		table   = make([]int, 0, utf8.RuneCountInString(s)+1)
		outN    int
		started bool
		pending bool
	)
	for _, r := range s {
		if unicode.IsSpace(r) {
			pending = started
			table = append(table, outN)
			continue
		}
		if pending {
			b.WriteByte(' ')
			outN++
			pending = false
		}
		table = append(table, outN)
		b.WriteRune(r)
		outN++
		started = true
	}
	table = append(table, outN)
	return b.String(), table
}
