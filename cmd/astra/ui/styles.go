// Package ui provides the visual styling for the astra interactive chat.
// Colors come from a light or dark theme; a user style string persisted with
// the session can override individual colors and the markdown style.
package ui

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	// Light Mode Colors
	LightBackground = lipgloss.Color("#f7f7fb")
	LightForeground = lipgloss.Color("#1b1c2e")
	LightPrimary    = lipgloss.Color("#3b3f99") // Indigo
	LightAccent     = lipgloss.Color("#0f9d9a") // Teal
	LightSecondary  = lipgloss.Color("#e4e5f1")
	LightMuted      = lipgloss.Color("#8a8ca8")
	LightBorder     = lipgloss.Color("#d5d7e6")
	LightCard       = lipgloss.Color("#ffffff")

	// Dark Mode Colors
	DarkBackground = lipgloss.Color("#12131f")
	DarkForeground = lipgloss.Color("#ececf4")
	DarkPrimary    = lipgloss.Color("#8b90f0") // Soft indigo
	DarkAccent     = lipgloss.Color("#2ec4b6") // Teal
	DarkSecondary  = lipgloss.Color("#1d1f33")
	DarkMuted      = lipgloss.Color("#6d7090")
	DarkBorder     = lipgloss.Color("#2c2f4a")
	DarkCard       = lipgloss.Color("#191a2b")

	// Semantic Colors (same in both modes)
	Destructive = lipgloss.Color("#e53935")
	Success     = lipgloss.Color("#43a047")
	Warning     = lipgloss.Color("#FFC107")
	Info        = lipgloss.Color("#2196F3")
	Thought     = lipgloss.Color("#9c7ae0") // Critical Analysis box
)

// Theme holds the current color scheme
type Theme struct {
	Background lipgloss.Color
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Secondary  lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	Card       lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{
		Background: LightBackground,
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Accent:     LightAccent,
		Secondary:  LightSecondary,
		Muted:      LightMuted,
		Border:     LightBorder,
		Card:       LightCard,
		IsDark:     false,
	}
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{
		Background: DarkBackground,
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Accent:     DarkAccent,
		Secondary:  DarkSecondary,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		Card:       DarkCard,
		IsDark:     true,
	}
}

// DetectTheme picks a theme from the terminal's COLORFGBG hint or
// ASTRA_DARK_MODE. Dark is the default.
func DetectTheme() Theme {
	if v := os.Getenv("ASTRA_DARK_MODE"); v != "" {
		if v == "0" {
			return LightTheme()
		}
		return DarkTheme()
	}

	// Format is usually "foreground;background"
	if parts := strings.Split(os.Getenv("COLORFGBG"), ";"); len(parts) == 2 {
		if bgIdx, err := strconv.Atoi(parts[1]); err == nil {
			// 7 and 9-15 are light backgrounds
			if bgIdx == 7 || (bgIdx >= 9 && bgIdx <= 15) {
				return LightTheme()
			}
		}
	}
	return DarkTheme()
}

// ThemeFor resolves a config theme name: "dark", "light" or "auto".
func ThemeFor(name string) Theme {
	switch strings.ToLower(name) {
	case "dark":
		return DarkTheme()
	case "light":
		return LightTheme()
	default:
		return DetectTheme()
	}
}

// =============================================================================
// CUSTOM STYLE
// =============================================================================

// Overrides is a parsed user style string.
type Overrides struct {
	Colors   map[string]lipgloss.Color
	Markdown string // glamour standard style name
}

var (
	colorRe     = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$|^[0-9]{1,3}$`)
	themeFields = []string{"background", "foreground", "primary", "accent", "secondary", "muted", "border", "card"}
)

// ParseCustomStyle parses declarations of the form
//
//	accent: #ff79c6; primary: 212; markdown: dracula
//
// Color values are hex or ANSI 256 indexes. Unknown keys are errors so a
// typo is reported instead of silently ignored.
func ParseCustomStyle(s string) (Overrides, error) {
	o := Overrides{Colors: map[string]lipgloss.Color{}}
	for _, decl := range strings.Split(s, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		key, value, ok := strings.Cut(decl, ":")
		if !ok {
			return Overrides{}, fmt.Errorf("style declaration %q has no value", decl)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if key == "markdown" {
			o.Markdown = value
			continue
		}
		if !isThemeField(key) {
			return Overrides{}, fmt.Errorf("unknown style key %q", key)
		}
		if !colorRe.MatchString(value) {
			return Overrides{}, fmt.Errorf("invalid color %q for %s", value, key)
		}
		o.Colors[key] = lipgloss.Color(value)
	}
	return o, nil
}

func isThemeField(key string) bool {
	for _, f := range themeFields {
		if f == key {
			return true
		}
	}
	return false
}

// Apply returns the theme with the override colors set.
func (o Overrides) Apply(t Theme) Theme {
	for k, c := range o.Colors {
		switch k {
		case "background":
			t.Background = c
		case "foreground":
			t.Foreground = c
		case "primary":
			t.Primary = c
		case "accent":
			t.Accent = c
		case "secondary":
			t.Secondary = c
		case "muted":
			t.Muted = c
		case "border":
			t.Border = c
		case "card":
			t.Card = c
		}
	}
	return t
}

// MarkdownStyle returns the glamour style name for the theme.
func (o Overrides) MarkdownStyle(t Theme) string {
	if o.Markdown != "" {
		return o.Markdown
	}
	if t.IsDark {
		return "dark"
	}
	return "light"
}

// =============================================================================
// STYLES
// =============================================================================

// Styles holds all the styled components
type Styles struct {
	Theme Theme

	// Layout
	Header  lipgloss.Style
	Footer  lipgloss.Style
	Content lipgloss.Style
	Panel   lipgloss.Style

	// Text
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Body     lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style

	// Messages
	UserLabel  lipgloss.Style
	ModelLabel lipgloss.Style
	UserInput  lipgloss.Style
	Bookmark   lipgloss.Style
	Link       lipgloss.Style

	// Status
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	// Content segments
	CodeBlock  lipgloss.Style
	CodeLang   lipgloss.Style
	ThoughtBox lipgloss.Style
	ThoughtHdr lipgloss.Style

	// Components
	Input   lipgloss.Style
	Spinner lipgloss.Style
	Divider lipgloss.Style
	Badge   lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			MarginTop(1),

		Content: lipgloss.NewStyle().
			Padding(0, 1),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),

		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		Subtitle: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true),

		Body: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		UserLabel: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			MarginTop(1),

		ModelLabel: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true).
			MarginTop(1),

		UserInput: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Bookmark: lipgloss.NewStyle().
			Foreground(Warning),

		Link: lipgloss.NewStyle().
			Foreground(Info).
			Underline(true),

		Success: lipgloss.NewStyle().
			Foreground(Success).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true),

		Info: lipgloss.NewStyle().
			Foreground(Info),

		CodeBlock: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border),

		CodeLang: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Italic(true),

		ThoughtBox: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1).
			Border(lipgloss.NormalBorder()).
			BorderForeground(Thought),

		ThoughtHdr: lipgloss.NewStyle().
			Foreground(Thought).
			Bold(true),

		Input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Accent).
			Padding(0, 1),

		Spinner: lipgloss.NewStyle().
			Foreground(theme.Accent),

		Divider: lipgloss.NewStyle().
			Foreground(theme.Border),

		Badge: lipgloss.NewStyle().
			Background(theme.Accent).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 1).
			Bold(true),
	}
}

// RenderDivider returns a horizontal divider
func (s Styles) RenderDivider(width int) string {
	if width < 1 {
		width = 1
	}
	return s.Divider.Render(strings.Repeat("─", width))
}
