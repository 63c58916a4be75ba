// Package tui is the terminal monitor shown while a tool chain runs. It
// follows The Elm Architecture of bubbletea: runner events arrive as
// messages, Update folds them into the Monitor, View renders it.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/histostack/internal/logbook"
	"github.com/kingrea/histostack/internal/tool"
)

const maxMessages = 8

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// EventMsg carries one runner event into the program.
type EventMsg tool.Event

// DoneMsg ends the run.
type DoneMsg struct {
	Err error
}

type row struct {
	name    string
	running bool
	status  tool.Status
	detail  string
}

// Monitor is the bubbletea model of a chain run.
type Monitor struct {
	title    string
	rows     []row
	total    int
	finished int
	messages []string

	spinner spinner.Model
	bar     progress.Model

	done   bool
	err    error
	onQuit func()
}

// NewMonitor builds a monitor. onQuit runs when the user aborts with q or
// ctrl+c before the chain is done.
func NewMonitor(title string, onQuit func()) *Monitor {
	return &Monitor{
		title:   title,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(runningStyle)),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		onQuit:  onQuit,
	}
}

func (m *Monitor) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !m.done && m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = max(20, min(60, msg.Width-10))
	case EventMsg:
		m.apply(tool.Event(msg))
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Monitor) apply(e tool.Event) {
	if e.Total > m.total {
		m.total = e.Total
	}
	switch e.Kind {
	case tool.EventStarted:
		r := m.rowAt(e.Index)
		r.name = e.Tool
		r.running = true
	case tool.EventFinished:
		r := m.rowAt(e.Index)
		r.name = e.Tool
		r.running = false
		r.status = e.Status
		r.detail = e.Message
		if e.Err != nil {
			r.detail = e.Err.Error()
		}
		m.finished++
	case tool.EventMessage:
		m.messages = append(m.messages, e.Message)
		if len(m.messages) > maxMessages {
			m.messages = m.messages[len(m.messages)-maxMessages:]
		}
	}
}

func (m *Monitor) rowAt(i int) *row {
	for len(m.rows) <= i {
		m.rows = append(m.rows, row{})
	}
	return &m.rows[i]
}

// Percent is the share of tools that have finished.
func (m *Monitor) Percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.finished) / float64(m.total)
}

// Done reports whether the chain has ended.
func (m *Monitor) Done() bool {
	return m.done
}

// Messages returns the most recent tool messages.
func (m *Monitor) Messages() []string {
	return append([]string{}, m.messages...)
}

func (m *Monitor) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(m.Percent()))
	fmt.Fprintf(&b, "  %d/%d\n\n", m.finished, m.total)

	for _, r := range m.rows {
		b.WriteString(m.renderRow(r))
		b.WriteString("\n")
	}
	if len(m.messages) > 0 {
		lines := make([]string, len(m.messages))
		for i, line := range m.messages {
			lines[i] = styleMessage(line)
		}
		b.WriteString("\n")
		b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
		b.WriteString("\n")
	}
	if m.done && m.err != nil {
		b.WriteString("\n")
		b.WriteString(failedStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("q: quit"))
	return b.String()
}

func (m *Monitor) renderRow(r row) string {
	var label string
	switch {
	case r.running:
		label = m.spinner.View() + " " + runningStyle.Render("running")
	case r.status == tool.StatusCompleted:
		label = doneStyle.Render("✓ completed")
	case r.status == tool.StatusSkipped:
		label = skippedStyle.Render("- skipped")
	case r.status == tool.StatusStopped:
		label = stoppedStyle.Render("! stopped")
	case r.status == tool.StatusFailed:
		label = failedStyle.Render("✗ failed")
	default:
		label = skippedStyle.Render("  pending")
	}
	line := fmt.Sprintf("%-14s %s", r.name, label)
	if r.detail != "" {
		line += "  " + detailStyle.Render(r.detail)
	}
	return line
}

// styleMessage colours a logbook line by its level.
func styleMessage(line string) string {
	switch {
	case strings.HasPrefix(line, string(logbook.LevelError)):
		return failedStyle.Render(line)
	case strings.HasPrefix(line, string(logbook.LevelWarning)):
		return stoppedStyle.Render(line)
	default:
		return detailStyle.Render(line)
	}
}
