// Package status draws the one-line bar under each TUI view.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/styles"
)

// State is what the owning view is doing.
type State string

const (
	StateReady      State = "ready"
	StateSearching  State = "searching"
	StateResults    State = "results"
	StateLoading    State = "loading"
	StateRebuilding State = "rebuilding"
	StateError      State = "error"
)

// busyText is shown while a state's work is in flight.
var busyText = map[State]string{
	StateSearching:  "Searching...",
	StateLoading:    "Loading...",
	StateRebuilding: "Rebuilding indexes...",
}

// Bar shows the state on the left and key hints on the right.
type Bar struct {
	styles *styles.Styles
	keys   *keymap.KeyMap
	help   help.Model

	state   State
	message string
	count   int
	hints   []key.Binding
	width   int
}

// NewBar creates a bar in StateReady. Nil arguments use defaults.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	h := help.New()
	h.ShortSeparator = " | "
	return &Bar{styles: s, keys: km, help: h, state: StateReady, width: 80}
}

func (s *Bar) Init() tea.Cmd { return nil }

// Update is a no-op; owners drive the bar through its setters.
func (s *Bar) Update(tea.Msg) (*Bar, tea.Cmd) { return s, nil }

// View renders the bar at its width.
func (s *Bar) View() string {
	left, right := s.status(), s.help.ShortHelpView(s.bindings())
	gap := max(s.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return s.styles.StatusBar.Width(s.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (s *Bar) status() string {
	if text, ok := busyText[s.state]; ok {
		if s.state == StateRebuilding {
			return s.styles.Warning.Render(text)
		}
		return s.styles.Muted.Render(text)
	}

	switch s.state {
	case StateError:
		text := "Error"
		if s.message != "" {
			text += ": " + s.message
		}
		return s.styles.Error.Render(text)
	case StateResults:
		text := fmt.Sprintf("%d results", s.count)
		if s.message != "" {
			text += " (" + s.message + ")"
		}
		return s.styles.Normal.Render(text)
	}
	if s.message == "" {
		return s.styles.Muted.Render("Ready")
	}
	return s.styles.Normal.Render(s.message)
}

func (s *Bar) bindings() []key.Binding {
	switch {
	case s.hints != nil:
		return s.hints
	case s.state == StateResults && s.count > 0:
		return s.keys.ResultsHelp()
	default:
		return s.keys.ShortHelp()
	}
}

func (s *Bar) SetState(state State) { s.state = state }
func (s *Bar) State() State         { return s.state }

// SetMessage sets the text shown with the state.
func (s *Bar) SetMessage(message string) { s.message = message }
func (s *Bar) Message() string           { return s.message }

func (s *Bar) SetResultCount(count int) { s.count = count }
func (s *Bar) ResultCount() int         { return s.count }

// SetHints pins the key hints. Nil goes back to hints chosen by state.
func (s *Bar) SetHints(bindings []key.Binding) { s.hints = bindings }

func (s *Bar) SetWidth(width int) { s.width = width }

// Clear returns the bar to Ready with no message or count.
func (s *Bar) Clear() {
	s.state = StateReady
	s.message = ""
	s.count = 0
}
