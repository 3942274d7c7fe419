package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/todopro/internal/session"
	"github.com/nhle/todopro/internal/taskstore"
)

// storeChangedMsg reports a change of the task collection, including
// hydrations that finish on a background goroutine.
type storeChangedMsg struct {
	reason taskstore.Reason
}

// stateChangedMsg reports a session state transition.
type stateChangedMsg struct {
	state session.State
}

// bridge forwards store and session callbacks into the Bubble Tea loop.
// Callbacks never block: when the buffer is full the message is dropped,
// which is harmless because every message triggers a re-read of current
// state.
type bridge struct {
	ch     chan tea.Msg
	cancel []func()
}

func newBridge(tasks *taskstore.Store, sess *session.Manager) *bridge {
	b := &bridge{ch: make(chan tea.Msg, 32)}
	b.cancel = append(b.cancel,
		tasks.OnChange(func(ev taskstore.ChangeEvent) {
			b.send(storeChangedMsg{reason: ev.Reason})
		}),
		sess.OnStateChange(func(s session.State) {
			b.send(stateChangedMsg{state: s})
		}),
	)
	return b
}

func (b *bridge) send(msg tea.Msg) {
	select {
	case b.ch <- msg:
	default:
	}
}

// next waits for the next forwarded message. Issue it again after every
// delivery to keep listening.
func (b *bridge) next() tea.Cmd {
	return func() tea.Msg {
		return <-b.ch
	}
}

func (b *bridge) close() {
	for _, c := range b.cancel {
		c()
	}
}
