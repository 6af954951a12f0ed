// Package menu is the TUI's start screen.
package menu

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/styles"
)

// Item is one entry. An item with Quit set exits instead of switching view.
type Item struct {
	Label string
	About string
	View  messages.ViewType
	Quit  bool
}

// DefaultItems is the menu shown at start.
func DefaultItems() []Item {
	return []Item{
		{Label: "Search", About: "query by vector, stored record or text", View: messages.ViewSearch},
		{Label: "Statistics", About: "records and index state per content type", View: messages.ViewStats},
		{Label: "Help", About: "key bindings", View: messages.ViewHelp},
		{Label: "Quit", Quit: true},
	}
}

// View is the menu. Items are chosen with the arrows and enter, or
// directly by their number.
type View struct {
	styles *styles.Styles
	keys   *keymap.KeyMap
	items  []Item
	cursor int
	ready  bool
}

// NewView creates a menu over DefaultItems. Nil arguments use defaults.
func NewView(s *styles.Styles, km *keymap.KeyMap) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{styles: s, keys: km, items: DefaultItems()}
}

func (v *View) Init() tea.Cmd { return nil }

// Update moves the cursor or selects an item.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.ready = true
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, v.keys.Up):
			v.cursor = max(v.cursor-1, 0)
		case key.Matches(msg, v.keys.Down):
			v.cursor = min(v.cursor+1, len(v.items)-1)
		case key.Matches(msg, v.keys.Open):
			return v, v.choose(v.cursor)
		case key.Matches(msg, v.keys.Quit):
			return v, tea.Quit
		default:
			if n, ok := digit(msg); ok && n <= len(v.items) {
				v.cursor = n - 1
				return v, v.choose(v.cursor)
			}
		}
	}
	return v, nil
}

func digit(msg tea.KeyMsg) (int, bool) {
	if msg.Type != tea.KeyRunes || len(msg.Runes) != 1 {
		return 0, false
	}
	r := msg.Runes[0]
	if r < '1' || r > '9' {
		return 0, false
	}
	return int(r - '0'), true
}

func (v *View) choose(i int) tea.Cmd {
	item := v.items[i]
	if item.Quit {
		return tea.Quit
	}
	return func() tea.Msg { return messages.ViewChanged{View: item.View} }
}

// View renders the menu.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("simmatch"))
	b.WriteString("\n")
	b.WriteString(v.styles.Muted.Render("Embedding similarity search"))
	b.WriteString("\n\n")

	for i, item := range v.items {
		label := fmt.Sprintf("%d %s", i+1, item.Label)
		if i == v.cursor {
			b.WriteString("> " + v.styles.Subtitle.Render(label))
		} else {
			b.WriteString("  " + v.styles.Normal.Render(label))
		}
		if item.About != "" {
			b.WriteString("  " + v.styles.Muted.Render(item.About))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[j/k] move  [enter or 1-4] select  [q] quit"))
	return b.String()
}

// SetDimensions marks the view ready; the layout does not depend on size.
func (v *View) SetDimensions(_, _ int) {
	v.ready = true
}

// Selected returns the cursor position.
func (v *View) Selected() int {
	return v.cursor
}
