package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/histostack/internal/tool"
)

// ChainFunc runs a tool chain, reporting progress to the observer it is
// given.
type ChainFunc func(observer tool.Observer) ([]tool.Result, error)

type outcome struct {
	results []tool.Result
	err     error
}

// Watch runs chain under a full-screen monitor. Quitting early calls cancel
// and waits for the chain to wind down before returning its outcome.
func Watch(title string, cancel func(), chain ChainFunc, opts ...tea.ProgramOption) ([]tool.Result, error) {
	m := NewMonitor(title, cancel)
	p := tea.NewProgram(m, opts...)

	finished := make(chan outcome, 1)
	go func() {
		results, err := chain(func(e tool.Event) {
			p.Send(EventMsg(e))
		})
		p.Send(DoneMsg{Err: err})
		finished <- outcome{results: results, err: err}
	}()

	if _, err := p.Run(); err != nil {
		if cancel != nil {
			cancel()
		}
		<-finished
		return nil, err
	}
	out := <-finished
	return out.results, out.err
}
