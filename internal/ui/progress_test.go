package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgast/gramtest/pkg/events"
	"github.com/cgast/gramtest/pkg/runner"
)

func verdictEvent(id string, idx int, v runner.Verdict) eventMsg {
	return eventMsg(events.NewCaseEvent(events.EventCaseVerdict, id, idx, v))
}

func TestProgressModelCounts(t *testing.T) {
	ch := make(chan events.Event)
	m := newProgressModel("sme", 4, ch)

	m.Update(eventMsg(events.NewCaseEvent(events.EventCaseStart, "sme#0001", 0, "Mun leat dás.")))
	m.Update(eventMsg(events.NewCaseEvent(events.EventCaseStart, "sme#0002", 1, "Don leat dás.")))
	assert.Len(t, m.running, 2)
	assert.Contains(t, m.View(), "sme#0002")

	m.Update(verdictEvent("sme#0001", 0, runner.VerdictPass))
	m.Update(verdictEvent("sme#0002", 1, runner.VerdictFail))
	m.Update(verdictEvent("sme#0003", 2, runner.VerdictError))

	assert.Empty(t, m.running)
	assert.Equal(t, 3, m.finished)
	assert.Equal(t, 1, m.passed)
	assert.Equal(t, 1, m.failed)
	assert.Equal(t, 1, m.errored)
	assert.Equal(t, []string{"sme#0002", "sme#0003"}, m.failures)

	view := m.View()
	assert.Contains(t, view, "sme 3/4")
	assert.Contains(t, view, "1 passed")
	assert.Contains(t, view, "1 failed")
	assert.Contains(t, view, "1 errored")
}

func TestProgressModelKeepsRecentFailures(t *testing.T) {
	m := newProgressModel("s", 10, nil)
	for i := range 8 {
		m.Update(verdictEvent(strings.Repeat("x", i+1), i, runner.VerdictFail))
	}
	require.Len(t, m.failures, recentFailures)
	assert.Equal(t, "xxxx", m.failures[0])
}

func TestProgressModelIgnoresOtherEvents(t *testing.T) {
	m := newProgressModel("s", 1, nil)
	m.Update(eventMsg(events.NewEvent(events.EventRunStart, 1)))
	assert.Zero(t, m.finished)
}

func TestProgressModelDone(t *testing.T) {
	ch := make(chan events.Event)
	close(ch)
	m := newProgressModel("s", 0, ch)

	msg := m.listenForEvent()()
	_, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.done)
	assert.Contains(t, m.View(), "done: s 0/0")
}

func TestProgressModelWindowSize(t *testing.T) {
	m := newProgressModel("s", 1, nil)
	m.Update(tea.WindowSizeMsg{Width: 40, Height: 10})
	assert.Equal(t, 40, m.width)
	assert.Equal(t, 36, m.prog.Width)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "日本...", truncate("日本語テキスト", 7))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
