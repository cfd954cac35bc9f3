package markup

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Markup control runes.
const (
	GroupOpen     = '{'
	GroupClose    = '}'
	AnalysisOpen  = '<'
	AnalysisClose = '>'
	FieldSep      = '|'
	SuggestionSep = '/'
	Escape        = '\\'
)

type parser struct {
	src   string
	pos   int    // byte offset into src
	plain []rune // reconstructed plain text
	anns  []Annotation
}

// Parse turns checker markup into a Document. It never recovers from
// malformed input; the first problem is returned as a *ParseError.
func Parse(src string) (Document, error) {
	if !utf8.ValidString(src) {
		off := 0
		for off < len(src) {
			r, size := utf8.DecodeRuneInString(src[off:])
			if r == utf8.RuneError && size <= 1 {
				break
			}
			off += size
		}
		return Document{}, &ParseError{Offset: off, Msg: "invalid UTF-8"}
	}

	p := &parser{src: src}
	if err := p.parseSeq(-1); err != nil {
		return Document{}, err
	}

	sort.SliceStable(p.anns, func(i, j int) bool {
		a, b := p.anns[i].Span, p.anns[j].Span
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End < b.End
	})

	return Document{Text: string(p.plain), Annotations: p.anns}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// constant fixtures.
func MustParse(src string) Document {
	doc, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return doc
}

func (p *parser) peek() (rune, int) {
	if p.pos >= len(p.src) {
		return utf8.RuneError, 0
	}
	return utf8.DecodeRuneInString(p.src[p.pos:])
}

// parseSeq consumes text and brace groups. open is the byte offset of the
// enclosing '{', or -1 at top level; a nested sequence returns after consuming
// its '}'.
func (p *parser) parseSeq(open int) error {
	for {
		r, size := p.peek()
		if size == 0 {
			if open >= 0 {
				return &ParseError{Offset: open, Msg: "unclosed '{'"}
			}
			return nil
		}

		switch r {
		case Escape:
			esc := p.pos
			p.pos += size
			r, size = p.peek()
			if size == 0 {
				return &ParseError{Offset: esc, Msg: "dangling escape at end of markup"}
			}
			p.plain = append(p.plain, r)
			p.pos += size
		case GroupOpen:
			if err := p.parseGroup(); err != nil {
				return err
			}
		case GroupClose:
			if open < 0 {
				return &ParseError{Offset: p.pos, Msg: "unbalanced '}'"}
			}
			p.pos += size
			return nil
		default:
			p.plain = append(p.plain, r)
			p.pos += size
		}
	}
}

func (p *parser) parseGroup() error {
	open := p.pos
	p.pos++ // '{'
	start := len(p.plain)
	if err := p.parseSeq(open); err != nil {
		return err
	}
	span := Span{Start: start, End: len(p.plain)}
	surface := string(p.plain[span.Start:span.End])

	r, _ := p.peek()
	if r != AnalysisOpen {
		return &ParseError{Offset: p.pos, Msg: "expected '<' after '}'"}
	}
	for r == AnalysisOpen {
		ann, err := p.parseAnalysis()
		if err != nil {
			return err
		}
		ann.Span = span
		ann.Surface = surface
		p.anns = append(p.anns, ann)
		r, _ = p.peek()
	}
	return nil
}

// parseAnalysis reads <code|sugg/sugg|message>.
func (p *parser) parseAnalysis() (Annotation, error) {
	open := p.pos
	p.pos++ // '<'

	var ann Annotation
	code, stop, err := p.readField(open, FieldSep, AnalysisClose)
	if err != nil {
		return ann, err
	}
	ann.Code = strings.TrimSpace(code)
	if ann.Code == "" {
		return ann, &ParseError{Offset: open, Msg: "missing error code"}
	}
	if stop == AnalysisClose {
		return ann, nil
	}

	for {
		sugg, stop, err := p.readField(open, SuggestionSep, FieldSep, AnalysisClose)
		if err != nil {
			return ann, err
		}
		inList := stop == SuggestionSep || len(ann.Suggestions) > 0
		if inList && strings.TrimSpace(sugg) == "" {
			return ann, &ParseError{Offset: open, Msg: "empty suggestion"}
		}
		if sugg != "" {
			ann.Suggestions = append(ann.Suggestions, sugg)
		}
		switch stop {
		case SuggestionSep:
			continue
		case AnalysisClose:
			return ann, nil
		}
		break
	}

	msg, _, err := p.readField(open, AnalysisClose)
	if err != nil {
		return ann, err
	}
	ann.Message = strings.TrimSpace(msg)
	return ann, nil
}

// readField consumes runes up to and including one of stops, resolving
// escapes. Unescaped braces are rejected inside an analysis; a '|' inside the
// message is literal.
func (p *parser) readField(open int, stops ...rune) (string, rune, error) {
	var b strings.Builder
	for {
		r, size := p.peek()
		if size == 0 {
			return "", 0, &ParseError{Offset: open, Msg: "unterminated analysis"}
		}
		for _, s := range stops {
			if r == s {
				p.pos += size
				return b.String(), r, nil
			}
		}
		switch r {
		case Escape:
			esc := p.pos
			p.pos += size
			r, size = p.peek()
			if size == 0 {
				return "", 0, &ParseError{Offset: esc, Msg: "dangling escape at end of markup"}
			}
		case GroupOpen, GroupClose:
			return "", 0, &ParseError{Offset: p.pos, Msg: "unexpected '" + string(r) + "' in analysis"}
		}
		b.WriteRune(r)
		p.pos += size
	}
}
