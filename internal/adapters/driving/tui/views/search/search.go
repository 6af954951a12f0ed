// Package search provides the query and results view for the TUI.
package search

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driving"
)

// ErrNoSearchService is reported when a query is submitted without a backend.
var ErrNoSearchService = errors.New("search service is required")

// View represents the search view with input, results list, and status bar.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.QueryInput
	list      *list.ResultList
	statusbar *status.Bar

	searchService driving.SearchService
	ctx           context.Context

	targets []domain.ContentType
	target  int

	width      int
	height     int
	ready      bool
	err        error
	focusInput bool // true = typing a query, false = navigating results
}

// NewView creates a new search view.
func NewView(s *styles.Styles, km *keymap.KeyMap, searchService driving.SearchService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	v := &View{
		styles:        s,
		keymap:        km,
		input:         input.NewQueryInput(s),
		list:          list.NewResultList(s),
		statusbar:     status.NewBar(s, km),
		searchService: searchService,
		ctx:           context.Background(),
		targets:       domain.AllContentTypes(),
		width:         80,
		height:        24,
		focusInput:    true,
	}
	v.input.SetLabel(v.Target().String())
	return v
}

// WithContext sets the context for searches.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the search view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.SearchCompleted:
		v.handleSearchCompleted(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keymap.Back):
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
	case key.Matches(msg, v.keymap.CycleType):
		v.cycleTarget()
		if v.focusInput || v.input.Value() == "" {
			return v, nil
		}
		return v, v.submit(v.input.Value())
	}

	if v.focusInput {
		if key.Matches(msg, v.keymap.Search) {
			if v.input.Value() == "" {
				return v, nil
			}
			return v, v.submit(v.input.Value())
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	hit := v.list.SelectedResult()
	switch {
	case key.Matches(msg, v.keymap.Open):
		if hit == nil {
			return v, nil
		}
		k := domain.RecordKey{ContentID: hit.ContentID, ContentType: hit.ContentType}
		return v, func() tea.Msg { return messages.RecordRequested{Key: k} }
	case key.Matches(msg, v.keymap.NewSearch):
		v.focusInput = true
		v.input.SetValue("")
		return v, v.input.Focus()
	case key.Matches(msg, v.keymap.MatchFrom):
		if hit == nil {
			return v, nil
		}
		v.input.SetValue(hit.ContentType.String() + "/" + hit.ContentID)
		return v, v.submit(v.input.Value())
	}

	v.list, _ = v.list.Update(msg)
	return v, nil
}

// submit parses raw and starts the matching search.
func (v *View) submit(raw string) tea.Cmd {
	q, err := ParseQuery(raw)
	if err != nil {
		v.setError(err)
		return nil
	}
	v.err = nil
	v.statusbar.SetState(status.StateSearching)
	v.statusbar.SetMessage(string(q.Mode))
	v.focusInput = false
	v.input.Blur()

	svc, ctx, target := v.searchService, v.ctx, v.Target()
	return func() tea.Msg {
		if svc == nil {
			return messages.ErrorOccurred{Err: ErrNoSearchService}
		}
		results, err := q.Run(ctx, svc, target)
		return messages.SearchCompleted{Results: results, Err: err}
	}
}

func (v *View) handleSearchCompleted(msg messages.SearchCompleted) {
	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}

	v.err = nil
	v.list.SetResults(msg.Results)
	v.statusbar.SetState(status.StateResults)
	v.statusbar.SetResultCount(len(msg.Results))
	v.focusInput = false
	v.input.Blur()
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

func (v *View) cycleTarget() {
	v.target = (v.target + 1) % len(v.targets)
	v.input.SetLabel(v.Target().String())
	v.input.SetWidth(v.width)
}

// View renders the search view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 10)
	sections = append(sections,
		v.styles.Title.Render("simmatch"),
		v.styles.Muted.Render("Target: "+v.Target().Description()+"  [tab] change"),
		"",
		v.input.View(),
		"",
	)

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}

	sections = append(sections, v.list.View(), "", v.statusbar.View())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	v.list.SetDimensions(width, height-11) // header, input and status
	v.statusbar.SetWidth(width)
}

// Target returns the content type being searched.
func (v *View) Target() domain.ContentType {
	return v.targets[v.target]
}

// SetTarget selects the content type to search. Unknown types are ignored.
func (v *View) SetTarget(ct domain.ContentType) {
	for i, t := range v.targets {
		if t == ct {
			v.target = i
			v.input.SetLabel(ct.String())
			return
		}
	}
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Query returns the current input.
func (v *View) Query() string {
	return v.input.Value()
}

// SetQuery sets the input.
func (v *View) SetQuery(query string) {
	v.input.SetValue(query)
}

// Results returns the current search results.
func (v *View) Results() []domain.SearchResult {
	return v.list.Results()
}

// SelectedResult returns the currently selected result.
func (v *View) SelectedResult() *domain.SearchResult {
	return v.list.SelectedResult()
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// Reset returns the view to input mode with no results.
func (v *View) Reset() {
	v.focusInput = true
	v.input.Focus()
	v.input.SetValue("")
	v.list.SetResults(nil)
	v.err = nil
	v.statusbar.Clear()
}

// InputFocused returns whether the input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}
