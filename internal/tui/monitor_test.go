package tui

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/histostack/internal/tool"
)

func send(t *testing.T, m *Monitor, msg tea.Msg) tea.Cmd {
	t.Helper()
	model, cmd := m.Update(msg)
	if model.(*Monitor) != m {
		t.Fatalf("update must return the same monitor")
	}
	return cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestMonitorTracksChainProgress(t *testing.T) {
	m := NewMonitor("histostack run", nil)
	send(t, m, EventMsg{Kind: tool.EventStarted, Tool: "remover", Index: 0, Total: 2})
	if m.Percent() != 0 {
		t.Fatalf("nothing finished yet, got %v", m.Percent())
	}
	if !strings.Contains(m.View(), "running") {
		t.Fatalf("running tool not shown:\n%s", m.View())
	}

	send(t, m, EventMsg{Kind: tool.EventFinished, Tool: "remover", Index: 0, Total: 2, Status: tool.StatusCompleted})
	send(t, m, EventMsg{Kind: tool.EventStarted, Tool: "stacks", Index: 1, Total: 2})
	send(t, m, EventMsg{Kind: tool.EventMessage, Tool: "stacks", Message: "INFO stacks produced 3 canvases."})
	send(t, m, EventMsg{Kind: tool.EventFinished, Tool: "stacks", Index: 1, Total: 2, Status: tool.StatusSkipped, Message: "reused stacks"})

	if m.Percent() != 1 {
		t.Fatalf("expected full progress, got %v", m.Percent())
	}
	view := m.View()
	for _, want := range []string{"remover", "completed", "stacks", "skipped", "reused stacks", "INFO stacks produced 3 canvases.", "2/2"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestMonitorShowsFailure(t *testing.T) {
	m := NewMonitor("run", nil)
	boom := errors.New("tool: stacks: boom")
	send(t, m, EventMsg{Kind: tool.EventFinished, Tool: "stacks", Index: 0, Total: 1, Status: tool.StatusFailed, Err: boom})
	cmd := send(t, m, DoneMsg{Err: boom})
	if !isQuit(cmd) {
		t.Fatalf("done must quit the program")
	}
	if !m.Done() {
		t.Fatalf("monitor should be done")
	}
	view := m.View()
	if !strings.Contains(view, "failed") || !strings.Contains(view, "error: tool: stacks: boom") {
		t.Fatalf("failure not shown:\n%s", view)
	}
}

func TestMonitorKeepsRecentMessages(t *testing.T) {
	m := NewMonitor("run", nil)
	for i := 0; i < maxMessages+3; i++ {
		send(t, m, EventMsg{Kind: tool.EventMessage, Message: fmt.Sprintf("INFO line %d", i)})
	}
	msgs := m.Messages()
	if len(msgs) != maxMessages {
		t.Fatalf("expected %d messages, got %d", maxMessages, len(msgs))
	}
	if msgs[0] != "INFO line 3" {
		t.Fatalf("oldest kept message is %q", msgs[0])
	}
}

func TestQuitKeyCancelsRunningChain(t *testing.T) {
	cancelled := 0
	m := NewMonitor("run", func() { cancelled++ })
	cmd := send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !isQuit(cmd) {
		t.Fatalf("q must quit")
	}
	if cancelled != 1 {
		t.Fatalf("expected cancel once, got %d", cancelled)
	}

	send(t, m, DoneMsg{})
	send(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cancelled != 1 {
		t.Fatalf("quitting a finished chain must not cancel")
	}
}

func TestMonitorIgnoresOtherKeys(t *testing.T) {
	m := NewMonitor("run", nil)
	if cmd := send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}); cmd != nil {
		t.Fatalf("unexpected command for x")
	}
}
