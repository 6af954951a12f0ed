// Package record provides the stored record detail view for the TUI.
package record

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/simmatch/internal/core/domain"
)

// previewComponents is how many vector components are listed.
const previewComponents = 8

const timeLayout = "2006-01-02 15:04:05"

// View is the record details view.
type View struct {
	styles *styles.Styles

	record       *domain.EmbeddingRecord
	scrollOffset int
	width        int
	height       int
	ready        bool
	err          error
}

// NewView creates a new record details view.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{styles: s, width: 80, height: 24}
}

// SetRecord sets the record to display.
func (v *View) SetRecord(rec *domain.EmbeddingRecord) {
	v.record = rec
	v.scrollOffset = 0
	v.err = nil
}

// SetError sets an error to display.
func (v *View) SetError(err error) {
	v.record = nil
	v.err = err
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update handles messages for the record view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.RecordLoaded:
		if msg.Err != nil {
			v.SetError(msg.Err)
		} else {
			v.SetRecord(msg.Record)
		}
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.scrollOffset > 0 {
			v.scrollOffset--
		}
	case "down", "j":
		if v.scrollOffset < v.maxScrollOffset() {
			v.scrollOffset++
		}
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewSearch}
		}
	}

	return v, nil
}

func (v *View) visibleLines() int {
	// title, separator, help, and padding
	available := v.height - 6
	if available < 1 {
		available = 1
	}
	return available
}

func (v *View) maxScrollOffset() int {
	maxOffset := len(v.buildContent()) - v.visibleLines()
	if maxOffset < 0 {
		maxOffset = 0
	}
	return maxOffset
}

func (v *View) buildContent() []string {
	rec := v.record
	if rec == nil {
		return nil
	}

	lines := []string{
		formatField("Key", fmt.Sprintf("%s/%s", rec.ContentType, rec.ContentID)),
		formatField("Type", rec.ContentType.Description()),
		formatField("Dimension", fmt.Sprintf("%d", len(rec.Vector))),
	}
	if rec.ModelVersion != "" {
		lines = append(lines, formatField("Model", rec.ModelVersion))
	}
	if !rec.CreatedAt.IsZero() {
		lines = append(lines, formatField("Created", rec.CreatedAt.Format(timeLayout)))
	}
	if !rec.UpdatedAt.IsZero() {
		lines = append(lines, formatField("Updated", rec.UpdatedAt.Format(timeLayout)))
	}

	lines = append(lines, "", "Vector:", "  "+vectorPreview(rec.Vector))

	if len(rec.Metadata) > 0 {
		lines = append(lines, "", "Metadata:")

		keys := make([]string, 0, len(rec.Metadata))
		for k := range rec.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			value := fmt.Sprintf("%v", rec.Metadata[k])
			if len(value) > 60 {
				value = value[:57] + "..."
			}
			lines = append(lines, fmt.Sprintf("  %s: %s", k, value))
		}
	}

	return lines
}

// vectorPreview lists the leading components of vec.
func vectorPreview(vec []float32) string {
	n := len(vec)
	if n > previewComponents {
		n = previewComponents
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("%.4f", vec[i])
	}
	s := "[" + strings.Join(parts, ", ")
	if len(vec) > n {
		s += fmt.Sprintf(", ... %d more", len(vec)-n)
	}
	return s + "]"
}

func formatField(label, value string) string {
	return fmt.Sprintf("%-12s %s", label+":", value)
}

// View renders the record details view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Record"))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", max(min(v.width-4, 60), 0)))
	b.WriteString("\n\n")

	if v.err != nil {
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		b.WriteString("\n\n")
		b.WriteString(v.renderHelp())
		return b.String()
	}

	if v.record == nil {
		b.WriteString(v.styles.Muted.Render("No record loaded"))
		b.WriteString("\n\n")
		b.WriteString(v.renderHelp())
		return b.String()
	}

	lines := v.buildContent()
	visible := v.visibleLines()
	for i := v.scrollOffset; i < len(lines) && i < v.scrollOffset+visible; i++ {
		b.WriteString(v.renderLine(lines[i]))
		b.WriteString("\n")
	}

	if len(lines) > visible {
		b.WriteString("\n")
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [Line %d-%d of %d]",
			v.scrollOffset+1, min(v.scrollOffset+visible, len(lines)), len(lines))))
	}

	b.WriteString("\n\n")
	b.WriteString(v.renderHelp())

	return b.String()
}

func (v *View) renderLine(line string) string {
	switch {
	case line == "Vector:" || line == "Metadata:":
		return v.styles.Subtitle.Render(line)
	case strings.HasPrefix(line, "  "):
		if k, val, ok := strings.Cut(line, ":"); ok && !strings.HasPrefix(line, "  [") {
			return v.styles.Muted.Render(k+":") + v.styles.Normal.Render(val)
		}
		return v.styles.Muted.Render(line)
	default:
		if k, val, ok := strings.Cut(line, ":"); ok {
			return v.styles.Subtitle.Render(k+":") + v.styles.Normal.Render(val)
		}
		return v.styles.Normal.Render(line)
	}
}

func (v *View) renderHelp() string {
	return v.styles.Help.Render("[↑/↓] scroll  [esc] back")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Record returns the displayed record.
func (v *View) Record() *domain.EmbeddingRecord {
	return v.record
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
