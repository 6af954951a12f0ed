// Package stats provides the store and index statistics view for the TUI.
package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driving"
)

// ErrNoMaintenanceService is returned when stats are requested without a service.
var ErrNoMaintenanceService = errors.New("maintenance service is required")

// View shows per content type record counts and index state.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	statusbar *status.Bar

	service driving.MaintenanceService
	ctx     context.Context

	stats      *domain.EngineStats
	err        error
	rebuilding bool

	width  int
	height int
}

// NewView creates a new stats view.
func NewView(s *styles.Styles, km *keymap.KeyMap, service driving.MaintenanceService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	bar := status.NewBar(s, km)
	bar.SetHints(km.StatsHelp())

	return &View{
		styles:    s,
		keymap:    km,
		statusbar: bar,
		service:   service,
		ctx:       context.Background(),
		width:     80,
		height:    24,
	}
}

// WithContext sets the context for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads statistics.
func (v *View) Init() tea.Cmd {
	v.statusbar.SetState(status.StateLoading)
	return v.load()
}

func (v *View) load() tea.Cmd {
	svc, ctx := v.service, v.ctx
	return func() tea.Msg {
		if svc == nil {
			return messages.StatsLoaded{Err: ErrNoMaintenanceService}
		}
		s, err := svc.Stats(ctx)
		return messages.StatsLoaded{Stats: s, Err: err}
	}
}

func (v *View) rebuild() tea.Cmd {
	svc, ctx := v.service, v.ctx
	return func() tea.Msg {
		if svc == nil {
			return messages.RebuildCompleted{Err: ErrNoMaintenanceService}
		}
		return messages.RebuildCompleted{Err: svc.RebuildAll(ctx)}
	}
}

// Update handles messages for the stats view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.StatsLoaded:
		if msg.Err != nil {
			v.setError(msg.Err)
			return v, nil
		}
		v.err = nil
		v.stats = msg.Stats
		v.statusbar.SetState(status.StateReady)
		return v, nil

	case messages.RebuildCompleted:
		v.rebuilding = false
		if msg.Err != nil {
			v.setError(msg.Err)
			return v, nil
		}
		v.statusbar.SetMessage("Indexes rebuilt")
		return v, v.load()
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	case "f":
		v.statusbar.SetState(status.StateLoading)
		v.statusbar.SetMessage("")
		return v, v.load()
	case "r":
		if v.rebuilding {
			return v, nil
		}
		v.rebuilding = true
		v.statusbar.SetState(status.StateRebuilding)
		v.statusbar.SetMessage("")
		return v, v.rebuild()
	}
	return v, nil
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// View renders the stats view.
func (v *View) View() string {
	sections := []string{v.styles.Title.Render("Statistics"), ""}

	switch {
	case v.err != nil:
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()))
	case v.stats == nil:
		sections = append(sections, v.styles.Muted.Render("Loading..."))
	default:
		sections = append(sections, v.renderStats())
	}

	sections = append(sections, "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (v *View) renderStats() string {
	s := v.stats
	var b strings.Builder

	fmt.Fprintf(&b, "%s %d records, %s on disk\n",
		v.styles.Subtitle.Render("Store:"), s.Store.Total, formatBytes(s.Store.SizeBytes))
	if !s.Store.LatestUpdate.IsZero() {
		fmt.Fprintf(&b, "%s %s\n",
			v.styles.Subtitle.Render("Last write:"), s.Store.LatestUpdate.Local().Format("2006-01-02 15:04:05"))
	}
	b.WriteString("\n")

	header := fmt.Sprintf("%-9s %8s %8s  %-5s %-10s %9s", "Type", "Records", "Indexed", "Kind", "State", "Fallbacks")
	b.WriteString(v.styles.TableHeader.Render(header))
	b.WriteString("\n")

	for _, ct := range domain.AllContentTypes() {
		idx, ok := s.Index[ct]
		count := s.Store.Counts[ct]
		if !ok && count == 0 {
			continue
		}
		row := fmt.Sprintf("%-9s %8d %8d  %-5s %-10s %9d",
			ct, count, idx.Entries, idx.Kind, indexState(idx), idx.Fallbacks)
		b.WriteString(v.stateStyle(idx).Render(row))
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// indexState summarises an index snapshot.
func indexState(idx domain.IndexStats) string {
	switch {
	case idx.Rebuilding:
		return "rebuilding"
	case idx.SnapshotID == "":
		return "not built"
	case !idx.Fresh:
		return "stale"
	default:
		return "fresh"
	}
}

func (v *View) stateStyle(idx domain.IndexStats) lipgloss.Style {
	switch indexState(idx) {
	case "fresh":
		return v.styles.Normal
	case "stale", "rebuilding":
		return v.styles.Warning
	default:
		return v.styles.Muted
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.statusbar.SetWidth(width)
}

// Stats returns the last loaded statistics.
func (v *View) Stats() *domain.EngineStats {
	return v.stats
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}

// Rebuilding reports whether a rebuild is in flight.
func (v *View) Rebuilding() bool {
	return v.rebuilding
}
