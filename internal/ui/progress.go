// Package ui renders live progress of a test run on a terminal.
package ui

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/cgast/gramtest/pkg/events"
	"github.com/cgast/gramtest/pkg/runner"
)

const recentFailures = 5

type progressModel struct {
	title   string
	total   int
	events  <-chan events.Event
	spinner spinner.Model
	prog    progress.Model
	width   int

	running  map[int]string
	finished int
	passed   int
	failed   int
	errored  int
	failures []string
	done     bool
}

type eventMsg events.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders run progress from
// case.start and case.verdict events. The model quits when the channel is
// closed.
func NewProgressModel(title string, total int, ch <-chan events.Event) tea.Model {
	return newProgressModel(title, total, ch)
}

func newProgressModel(title string, total int, ch <-chan events.Event) *progressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	return &progressModel{
		title:   title,
		total:   total,
		events:  ch,
		spinner: sp,
		prog:    prog,
		width:   80,
		running: make(map[int]string),
	}
}

// Run shows the progress UI on out until ch is closed or ctx ends.
func Run(ctx context.Context, out io.Writer, title string, total int, ch <-chan events.Event) error {
	p := tea.NewProgram(NewProgressModel(title, total, ch),
		tea.WithContext(ctx),
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(events.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = max(10, msg.Width-4)
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := fmt.Sprintf("%s %d/%d", m.title, m.finished, m.total)
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("  ")
	b.WriteString(styleVerdict(runner.VerdictPass).Render(fmt.Sprintf("%d passed", m.passed)))
	b.WriteString("  ")
	b.WriteString(styleVerdict(runner.VerdictFail).Render(fmt.Sprintf("%d failed", m.failed)))
	b.WriteString("  ")
	b.WriteString(styleVerdict(runner.VerdictError).Render(fmt.Sprintf("%d errored", m.errored)))
	b.WriteString("\n\n")

	nameWidth := max(20, m.width-14)
	if !m.done {
		idx := make([]int, 0, len(m.running))
		for i := range m.running {
			idx = append(idx, i)
		}
		sort.Ints(idx)
		for _, i := range idx {
			fmt.Fprintf(&b, "  %s %s\n", styleStatus("running").Render(fmt.Sprintf("%10s", "running")), truncate(m.running[i], nameWidth))
		}
	}
	for _, id := range m.failures {
		fmt.Fprintf(&b, "  %s %s\n", styleVerdict(runner.VerdictFail).Render(fmt.Sprintf("%10s", "failed")), truncate(id, nameWidth))
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev events.Event) tea.Cmd {
	switch ev.Type {
	case events.EventCaseStart:
		m.running[ev.Index] = ev.CaseID
		return nil
	case events.EventCaseVerdict:
		delete(m.running, ev.Index)
		m.finished++
		v, _ := ev.Data.(runner.Verdict)
		switch v {
		case runner.VerdictPass:
			m.passed++
		case runner.VerdictFail:
			m.failed++
			m.recordFailure(ev.CaseID)
		default:
			m.errored++
			m.recordFailure(ev.CaseID)
		}
	default:
		return nil
	}
	if m.total == 0 {
		return nil
	}
	return m.prog.SetPercent(float64(m.finished) / float64(m.total))
}

func (m *progressModel) recordFailure(id string) {
	m.failures = append(m.failures, id)
	if len(m.failures) > recentFailures {
		m.failures = m.failures[len(m.failures)-recentFailures:]
	}
}

func styleVerdict(v runner.Verdict) lipgloss.Style {
	switch v {
	case runner.VerdictPass:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case runner.VerdictFail:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	}
}

func styleStatus(status string) lipgloss.Style {
	if status == "running" {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
