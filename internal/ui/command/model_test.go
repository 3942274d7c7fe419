package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	assert.Equal(t, CommandMsg{Name: "filter", Arg: "pending"}, Parse("filter pending"))
	assert.Equal(t, CommandMsg{Name: "search", Arg: "купить молоко"}, Parse(" :Search  купить молоко "))
	assert.Equal(t, CommandMsg{Name: "logout"}, Parse("logout"))
	assert.Equal(t, CommandMsg{}, Parse("  "))
}

func TestEnterEmitsCommand(t *testing.T) {
	m := New(80, 10)
	m.Focus()
	for _, r := range "sort priority" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, CommandMsg{Name: "sort", Arg: "priority"}, cmd())
	assert.Empty(t, m.input.Value())
}

func TestEscCancels(t *testing.T) {
	m := New(80, 10)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, CancelMsg{}, cmd())
}
