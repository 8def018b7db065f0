package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnterEmitsNormalizedCommand(t *testing.T) {
	m := New([]string{"refresh"}, 80, 10)
	m.Focus()
	m.input.SetValue("  trigger   overspending ")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, CommandMsg("trigger overspending"), cmd())
	assert.Empty(t, m.input.Value())
}

func TestBlankEnterIsIgnored(t *testing.T) {
	m := New(nil, 80, 10)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestEscCloses(t *testing.T) {
	m := New(nil, 80, 10)
	m.input.SetValue("half typed")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, CloseMsg{}, cmd())
	assert.Empty(t, m.input.Value())
}

func TestViewShowsHint(t *testing.T) {
	m := New(nil, 80, 10)
	m.SetHint("unknown command: foo")
	assert.Contains(t, m.View(), "unknown command: foo")
}
