package compare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgast/gramtest/pkg/events"
	"github.com/cgast/gramtest/pkg/markup"
	"github.com/cgast/gramtest/pkg/report"
)

func compareStrings(t *testing.T, base, cand string, opts ...Option) (Result, error) {
	t.Helper()
	return New(opts...).Compare(context.Background(), strings.NewReader(base), strings.NewReader(cand), "base.txt", "cand.txt")
}

func TestCompareNoDrift(t *testing.T) {
	in := "Mun {leat}<msyn-agr|lean> dás.\n\nDon leat dás.\n"
	res, err := compareStrings(t, in, in)
	require.NoError(t, err)
	require.Len(t, res.Lines, 2)
	assert.Equal(t, 0, res.Drifted())
	assert.Equal(t, report.ExitOK, res.ExitCode())
	assert.Equal(t, 3, res.Lines[1].BaselineLine)
}

func TestCompareDrift(t *testing.T) {
	base := "Mun {leat}<msyn-agr|lean> dás.\nDon leat dás.\n{Son}<a> lea.\n"
	cand := "Mun leat dás.\nDon leat {dás}<typo|dál>.\n{Son}<b> lea.\n"

	res, err := compareStrings(t, base, cand)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Drifted())
	assert.Equal(t, report.ExitFailure, res.ExitCode())

	var labels []string
	for _, l := range res.Lines {
		for _, e := range Entries(l) {
			labels = append(labels, e.Label)
		}
	}
	assert.Equal(t, []string{LabelOnlyBaseline, LabelOnlyCandidate, LabelChanged}, labels)
}

func TestCompareSkipsBlankLines(t *testing.T) {
	base := "a\n\n\nb\n"
	cand := "\na\nb\n\n"
	res, err := compareStrings(t, base, cand)
	require.NoError(t, err)
	require.Len(t, res.Lines, 2)
	assert.Equal(t, 1, res.Lines[0].BaselineLine)
	assert.Equal(t, 2, res.Lines[0].CandidateLine)
	assert.Equal(t, 4, res.Lines[1].BaselineLine)
	assert.Equal(t, 3, res.Lines[1].CandidateLine)
}

func TestCompareLineCountMismatch(t *testing.T) {
	_, err := compareStrings(t, "a\nb\n", "a\n")
	var ce *CountError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, ce.Baseline)
	assert.Equal(t, 1, ce.Candidate)
}

func TestCompareParseError(t *testing.T) {
	_, err := compareStrings(t, "a\nb\n", "a\n{b<x>\n")
	var le *LineError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "cand.txt", le.Path)
	assert.Equal(t, 2, le.Line)

	var pe *markup.ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestCompareTextDivergence(t *testing.T) {
	res, err := compareStrings(t, "Mun leat dás.\n", "Mun  leat dás.\n")
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.True(t, res.Lines[0].Divergent)
	assert.False(t, res.Lines[0].Drifted())
	assert.Equal(t, 1, res.Divergent())
	assert.Equal(t, report.ExitOK, res.ExitCode())
}

func TestCompareCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Compare(ctx, strings.NewReader("a\n"), strings.NewReader("a\n"), "b", "c")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompareEvents(t *testing.T) {
	bus := events.NewMemoryBus()

	_, err := compareStrings(t, "a\n{b}<x>\n", "a\nb\n", WithEvents(bus))
	require.NoError(t, err)

	var drift []bool
	for _, ev := range bus.History(time.Time{}) {
		if ev.Type == events.EventCompareLine {
			drift = append(drift, ev.Data.(bool))
		}
	}
	assert.Equal(t, []bool{false, true}, drift)
}

func TestCompareFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.txt")
	cand := filepath.Join(dir, "cand.txt")
	require.NoError(t, os.WriteFile(base, []byte("{Mun}<x> leat.\n"), 0o644))
	require.NoError(t, os.WriteFile(cand, []byte("{Mun}<x> leat.\n"), 0o644))

	res, err := New().CompareFiles(context.Background(), base, cand)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Drifted())

	_, err = New().CompareFiles(context.Background(), filepath.Join(dir, "nope"), cand)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRender(t *testing.T) {
	res, err := compareStrings(t, "Mun {leat}<msyn-agr|lean> dás.\nok\n", "Mun leat dás.\nok\n")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, res, RenderOptions{}))
	out := buf.String()
	assert.Contains(t, out, "base.txt:1  Mun leat dás.")
	assert.Contains(t, out, `only in baseline  msyn-agr [4,8) "leat" → lean`)
	assert.Contains(t, out, "2 sentences compared, 1 drifted, 0 with text differences")
	assert.NotContains(t, out, "base.txt:2")

	buf.Reset()
	require.NoError(t, Render(&buf, res, RenderOptions{Style: "json"}))
	var got struct {
		Drifted int `json:"drifted"`
		Lines   []struct {
			BaselineLine int `json:"baseline_line"`
		} `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 1, got.Drifted)
	assert.Len(t, got.Lines, 2)

	assert.Error(t, Render(&buf, res, RenderOptions{Style: "xml"}))
}

func TestRenderFinal(t *testing.T) {
	base := "Mun {leat}<msyn-agr|lean> dás.\n\n{Son}<a> lea.\n"
	cand := "Mun {leat}<msyn-agr|lean/leah> dás.\n{Son}<b|Sii|plural> lea.\n"
	res, err := compareStrings(t, base, cand)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, res, RenderOptions{Style: "final"}))
	assert.Equal(t, "Mun {leat}<msyn-agr|lean/leah> dás.\n{Son}<b|Sii|plural> lea.\n", buf.String())

	again, err := compareStrings(t, cand, buf.String())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Drifted())
}
