package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "")
	t.Setenv("ASTRA_DARK_MODE", "0")
	if DetectTheme().IsDark {
		t.Fatalf("expected light theme when ASTRA_DARK_MODE=0")
	}

	t.Setenv("ASTRA_DARK_MODE", "")
	t.Setenv("COLORFGBG", "0;15")
	if DetectTheme().IsDark {
		t.Fatalf("expected light theme for a white background")
	}

	t.Setenv("COLORFGBG", "15;0")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme for a black background")
	}
}

func TestThemeFor(t *testing.T) {
	assert.True(t, ThemeFor("dark").IsDark)
	assert.False(t, ThemeFor("LIGHT").IsDark)
}

func TestParseCustomStyle(t *testing.T) {
	o, err := ParseCustomStyle(" accent: #ff79c6 ; primary:212; markdown: dracula; ")
	require.NoError(t, err)
	assert.Equal(t, lipgloss.Color("#ff79c6"), o.Colors["accent"])
	assert.Equal(t, lipgloss.Color("212"), o.Colors["primary"])
	assert.Equal(t, "dracula", o.MarkdownStyle(DarkTheme()))

	th := o.Apply(LightTheme())
	assert.Equal(t, lipgloss.Color("#ff79c6"), th.Accent)
	assert.Equal(t, LightBorder, th.Border)
}

func TestParseCustomStyle_Empty(t *testing.T) {
	o, err := ParseCustomStyle("")
	require.NoError(t, err)
	assert.Empty(t, o.Colors)
	assert.Equal(t, "light", o.MarkdownStyle(LightTheme()))
	assert.Equal(t, "dark", o.MarkdownStyle(DarkTheme()))
}

func TestParseCustomStyle_Errors(t *testing.T) {
	for _, in := range []string{"accent", "colour: #fff", "accent: red", "border: #12345"} {
		_, err := ParseCustomStyle(in)
		assert.Error(t, err, in)
	}
}

func TestRenderDivider(t *testing.T) {
	s := NewStyles(DarkTheme())
	assert.Contains(t, s.RenderDivider(4), "────")
	assert.NotPanics(t, func() { s.RenderDivider(-3) })
}

func TestBodyFollowsForeground(t *testing.T) {
	th := DarkTheme()
	s := NewStyles(th)
	assert.Equal(t, th.Foreground, s.Body.GetForeground())
}
