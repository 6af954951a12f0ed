package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/views/menu"
	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/views/record"
	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/views/search"
	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/views/stats"
	"github.com/custodia-labs/simmatch/internal/core/domain"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	menuView   *menu.View
	searchView *search.View
	recordView *record.View
	statsView  *stats.View

	currentView messages.ViewType

	// err holds the last error that occurred.
	err error

	width  int
	height int
	ready  bool
}

var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      s,
		keymap:      km,
		menuView:    menu.NewView(s, km),
		searchView:  search.NewView(s, km, ports.Search),
		recordView:  record.NewView(s),
		statsView:   stats.NewView(s, km, ports.Maintenance),
		currentView: messages.ViewMenu,
	}, nil
}

// WithContext sets the context passed to service calls.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.searchView.WithContext(ctx)
	a.statsView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tea.SetWindowTitle("simmatch"),
	)
}

// Update implements tea.Model.
//
//nolint:gocyclo // central message handler
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		return a, a.routeKey(msg)

	case messages.ViewChanged:
		return a, a.switchView(msg.View)

	case messages.SearchCompleted:
		a.searchView, cmd = a.searchView.Update(msg)
		a.err = a.searchView.Err()
		return a, cmd

	case messages.RecordRequested:
		a.currentView = messages.ViewRecord
		a.recordView.SetRecord(nil)
		return a, a.loadRecord(msg.Key)

	case messages.RecordLoaded:
		a.recordView, cmd = a.recordView.Update(msg)
		if msg.Err != nil {
			a.err = msg.Err
		}
		return a, cmd

	case messages.StatsLoaded, messages.RebuildCompleted:
		a.statsView, cmd = a.statsView.Update(msg)
		a.err = a.statsView.Err()
		return a, cmd

	case messages.ErrorOccurred:
		a.err = msg.Err
		switch a.currentView {
		case messages.ViewSearch:
			a.searchView, cmd = a.searchView.Update(msg)
		case messages.ViewRecord:
			a.recordView, cmd = a.recordView.Update(msg)
		case messages.ViewMenu, messages.ViewStats, messages.ViewHelp:
		}
		return a, cmd

	case messages.Quit:
		return a, tea.Quit
	}

	// Cursor blinks and other component messages go to the active input.
	if a.currentView == messages.ViewSearch {
		a.searchView, cmd = a.searchView.Update(msg)
	}
	return a, cmd
}

func (a *App) routeKey(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch a.currentView {
	case messages.ViewMenu:
		a.menuView, cmd = a.menuView.Update(msg)
	case messages.ViewSearch:
		a.searchView, cmd = a.searchView.Update(msg)
	case messages.ViewRecord:
		a.recordView, cmd = a.recordView.Update(msg)
	case messages.ViewStats:
		a.statsView, cmd = a.statsView.Update(msg)
	case messages.ViewHelp:
		if msg.Type == tea.KeyEsc {
			a.currentView = messages.ViewMenu
		}
	}
	return cmd
}

func (a *App) switchView(view messages.ViewType) tea.Cmd {
	from := a.currentView
	a.currentView = view

	switch view {
	case messages.ViewSearch:
		// Returning from a record keeps the results on screen.
		if from != messages.ViewRecord {
			a.searchView.Reset()
		}
		return a.searchView.Init()
	case messages.ViewStats:
		return a.statsView.Init()
	case messages.ViewMenu, messages.ViewRecord, messages.ViewHelp:
	}
	return nil
}

func (a *App) loadRecord(key domain.RecordKey) tea.Cmd {
	vectors, ctx := a.ports.Vectors, a.ctx
	return func() tea.Msg {
		if vectors == nil {
			return messages.RecordLoaded{Err: fmt.Errorf("%w: record lookup not configured", domain.ErrNotFound)}
		}
		rec, err := vectors.Get(ctx, key)
		return messages.RecordLoaded{Record: rec, Err: err}
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewSearch:
		return a.searchView.View()
	case messages.ViewRecord:
		return a.recordView.View()
	case messages.ViewStats:
		return a.statsView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	default:
		return a.menuView.View()
	}
}

func (a *App) viewHelp() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Help"))
	b.WriteString("\n\n")
	b.WriteString(a.styles.Subtitle.Render("Queries"))
	b.WriteString(`
  [0.1, 0.2, ...]   search with a literal vector
  job/j-17          match using the stored vector of a record
  any other text    semantic search (needs an embedding provider)
`)
	b.WriteString("\n")
	b.WriteString(a.styles.Subtitle.Render("Keys"))
	b.WriteString("\n")
	for _, group := range a.keymap.FullHelp() {
		for _, k := range group {
			h := k.Help()
			fmt.Fprintf(&b, "  %-10s %s\n", h.Key, h.Desc)
		}
	}
	b.WriteString("\n")
	b.WriteString(a.styles.Help.Render("[esc] back to menu"))
	return b.String()
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has received its dimensions.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sizes every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.menuView.SetDimensions(width, height)
	a.searchView.SetDimensions(width, height)
	a.recordView.SetDimensions(width, height)
	a.statsView.SetDimensions(width, height)
}
