package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const noticeTTL = 3 * time.Second

// notice is a transient message shown in the status bar.
type notice struct {
	id    int
	text  string
	isErr bool
}

type noticeExpiredMsg struct {
	id int
}

// notify shows text until noticeTTL passes or a newer notice replaces it.
func (m *Model) notify(text string, isErr bool) tea.Cmd {
	m.noticeSeq++
	id := m.noticeSeq
	m.notice = &notice{id: id, text: text, isErr: isErr}
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{id: id}
	})
}

func (m *Model) expire(id int) {
	if m.notice != nil && m.notice.id == id {
		m.notice = nil
	}
}
