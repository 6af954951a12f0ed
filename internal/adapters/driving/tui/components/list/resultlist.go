// Package list renders ranked search hits for the TUI.
package list

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/simmatch/internal/core/domain"
)

const (
	linesPerHit = 2
	chromeLines = 4
	barWidth    = 10
)

// ResultList is a scrolling list of hits with a cursor. Each hit shows
// its rank, key, score and a bar, with a metadata line underneath.
type ResultList struct {
	styles *styles.Styles
	hits   []domain.SearchResult
	cursor int
	width  int
	height int
}

// NewResultList creates an empty list sized for an 80x10 area.
func NewResultList(s *styles.Styles) *ResultList {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &ResultList{styles: s, width: 80, height: 10}
}

func (r *ResultList) Init() tea.Cmd { return nil }

// Update moves the cursor on up/down and k/j.
func (r *ResultList) Update(msg tea.Msg) (*ResultList, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "up", "k":
			r.MoveUp()
		case "down", "j":
			r.MoveDown()
		}
	}
	return r, nil
}

// window returns the half-open range of hits that fit, keeping the
// cursor on screen.
func (r *ResultList) window() (int, int) {
	fit := max((r.height-chromeLines)/linesPerHit, 1)
	first := max(r.cursor-fit+1, 0)
	return first, min(first+fit, len(r.hits))
}

// View renders the visible hits.
func (r *ResultList) View() string {
	if len(r.hits) == 0 {
		return r.styles.Muted.Render("No results")
	}

	var b strings.Builder
	b.WriteString(r.styles.Subtitle.Render(fmt.Sprintf("Results (%d)", len(r.hits))))
	b.WriteString("\n")
	first, last := r.window()
	for i := first; i < last; i++ {
		b.WriteString("\n")
		b.WriteString(r.renderHit(i))
	}
	return b.String()
}

func (r *ResultList) renderHit(i int) string {
	hit := &r.hits[i]
	keyWidth := max(r.width-barWidth-18, 10)
	key := clip(hit.ContentType.String()+"/"+hit.ContentID, keyWidth)
	score := fmt.Sprintf("%.4f", hit.SimilarityScore)
	head := fmt.Sprintf("%3d %-*s", i+1, keyWidth, key)

	var line string
	if i == r.cursor {
		line = r.styles.Selected.Render(">" + head + " " + score + " " + bar(hit.SimilarityScore))
	} else {
		line = " " + r.styles.Normal.Render(head) + " " +
			r.styles.Score(hit.SimilarityScore).Render(score+" "+bar(hit.SimilarityScore))
	}

	meta := MetadataSummary(hit.Metadata)
	if meta == "" {
		meta = "(no metadata)"
	}
	return line + "\n" + r.styles.Muted.Render("     "+clip(meta, max(r.width-6, 20)))
}

// bar draws score in [0,1] as a fixed-width gauge.
func bar(score float64) string {
	filled := int(score*barWidth + 0.5)
	filled = min(max(filled, 0), barWidth)
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

// MetadataSummary renders metadata as key=value pairs in key order.
func MetadataSummary(meta map[string]any) string {
	parts := make([]string, 0, len(meta))
	for _, k := range slices.Sorted(maps.Keys(meta)) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, meta[k]))
	}
	return strings.Join(parts, ", ")
}

// clip shortens s to n runes, ending in an ellipsis when cut.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

// SetResults replaces the hits and moves the cursor to the top.
func (r *ResultList) SetResults(results []domain.SearchResult) {
	r.hits = results
	r.cursor = 0
}

func (r *ResultList) Results() []domain.SearchResult { return r.hits }

func (r *ResultList) Count() int { return len(r.hits) }

func (r *ResultList) Selected() int { return r.cursor }

// SetSelected moves the cursor; out-of-range indexes are ignored.
func (r *ResultList) SetSelected(index int) {
	if index >= 0 && index < len(r.hits) {
		r.cursor = index
	}
}

// SelectedResult returns the hit under the cursor, or nil when empty.
func (r *ResultList) SelectedResult() *domain.SearchResult {
	if r.cursor < 0 || r.cursor >= len(r.hits) {
		return nil
	}
	return &r.hits[r.cursor]
}

func (r *ResultList) MoveUp() { r.cursor = max(r.cursor-1, 0) }

func (r *ResultList) MoveDown() {
	if r.cursor < len(r.hits)-1 {
		r.cursor++
	}
}

// SetDimensions sets the area the list may draw in.
func (r *ResultList) SetDimensions(width, height int) {
	r.width = width
	r.height = height
}
