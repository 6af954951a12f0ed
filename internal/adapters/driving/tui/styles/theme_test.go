package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTheme(t *testing.T) {
	theme := DefaultTheme()

	require.NotNil(t, theme)
	assert.NotEmpty(t, string(theme.Primary))
	assert.NotEmpty(t, string(theme.Error))
	assert.NotEqual(t, theme.Success, theme.Warning)
}

func TestNewStyles_NilThemeUsesDefault(t *testing.T) {
	s := NewStyles(nil)

	require.NotNil(t, s)
	assert.Equal(t, DefaultTheme(), s.Theme())
}

func TestStyles_Score(t *testing.T) {
	s := DefaultStyles()

	tests := []struct {
		name  string
		score float64
		want  string
	}{
		{"strong", 0.95, "success"},
		{"boundary strong", StrongMatch, "success"},
		{"fair", 0.75, "warning"},
		{"weak", 0.2, "muted"},
		{"negative", -0.5, "muted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var want any
			switch tt.want {
			case "success":
				want = s.Success.GetForeground()
			case "warning":
				want = s.Warning.GetForeground()
			default:
				want = s.Muted.GetForeground()
			}
			assert.Equal(t, want, s.Score(tt.score).GetForeground())
		})
	}
}
