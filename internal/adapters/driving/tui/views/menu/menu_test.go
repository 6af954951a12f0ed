package menu

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/messages"
)

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestView_Render(t *testing.T) {
	v := NewView(nil, nil)
	assert.Equal(t, "Initialising...", v.View())

	v.SetDimensions(80, 24)
	view := v.View()

	assert.Contains(t, view, "simmatch")
	assert.Contains(t, view, "> 1 Search")
	assert.Contains(t, view, "key bindings")
	assert.Contains(t, view, "Statistics")
}

func TestView_SelectItems(t *testing.T) {
	tests := []struct {
		name  string
		moves []string
		want  messages.ViewType
	}{
		{"search", nil, messages.ViewSearch},
		{"stats", []string{"j"}, messages.ViewStats},
		{"help", []string{"down", "down"}, messages.ViewHelp},
		{"up clamps", []string{"up", "k"}, messages.ViewSearch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewView(nil, nil)
			for _, m := range tt.moves {
				v.Update(keyMsg(m))
			}

			_, cmd := v.Update(keyMsg("enter"))
			require.NotNil(t, cmd)

			assert.Equal(t, messages.ViewChanged{View: tt.want}, cmd())
		})
	}
}

func TestView_DownClampsAtQuit(t *testing.T) {
	v := NewView(nil, nil)
	for range 10 {
		v.Update(keyMsg("down"))
	}

	assert.Equal(t, 3, v.Selected())

	_, cmd := v.Update(keyMsg("enter"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestView_QKeyQuits(t *testing.T) {
	v := NewView(nil, nil)

	_, cmd := v.Update(keyMsg("q"))
	require.NotNil(t, cmd)

	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestView_DigitSelects(t *testing.T) {
	v := NewView(nil, nil)

	_, cmd := v.Update(keyMsg("2"))
	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewStats}, cmd())
	assert.Equal(t, 1, v.Selected())

	_, cmd = v.Update(keyMsg("4"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = v.Update(keyMsg("9"))
	assert.Nil(t, cmd)
}

func TestView_WindowSizeMakesReady(t *testing.T) {
	v := NewView(nil, nil)

	v.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	assert.NotEqual(t, "Initialising...", v.View())
}
