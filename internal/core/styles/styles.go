// Package styles provides shared lipgloss styles for command output.
package styles

import (
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// Palette defines a minimal semantic theme palette.
type Palette struct {
	Primary    lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Info       lipgloss.Color
}

// DefaultTheme is the name of the default theme.
const DefaultTheme = "tokyo-night"

// themes holds the built-in named palettes.
var themes = map[string]Palette{
	"tokyo-night": {
		Primary:    lipgloss.Color("#7aa2f7"),
		Foreground: lipgloss.Color("#c0caf5"),
		Muted:      lipgloss.Color("#565f89"),
		Success:    lipgloss.Color("#9ece6a"),
		Warning:    lipgloss.Color("#e0af68"),
		Error:      lipgloss.Color("#f7768e"),
		Info:       lipgloss.Color("#7dcfff"),
	},
	"gruvbox": {
		Primary:    lipgloss.Color("#83a598"),
		Foreground: lipgloss.Color("#ebdbb2"),
		Muted:      lipgloss.Color("#665c54"),
		Success:    lipgloss.Color("#b8bb26"),
		Warning:    lipgloss.Color("#fabd2f"),
		Error:      lipgloss.Color("#fb4934"),
		Info:       lipgloss.Color("#8ec07c"),
	},
	"ansi": {
		Primary:    lipgloss.Color("12"),
		Foreground: lipgloss.Color("15"),
		Muted:      lipgloss.Color("8"),
		Success:    lipgloss.Color("10"),
		Warning:    lipgloss.Color("11"),
		Error:      lipgloss.Color("9"),
		Info:       lipgloss.Color("14"),
	},
}

// ThemeNames returns sorted names of all built-in themes.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPalette returns the palette for the given theme name.
func GetPalette(name string) (Palette, bool) {
	p, ok := themes[name]
	return p, ok
}

// CurrentPalette holds the active theme palette.
var CurrentPalette Palette

// Text styles.
var (
	TextPrimaryBoldStyle    lipgloss.Style
	TextForegroundBoldStyle lipgloss.Style
	TextMutedStyle          lipgloss.Style
	TextSuccessStyle        lipgloss.Style
	TextWarningStyle        lipgloss.Style
	TextErrorStyle          lipgloss.Style
	TextInfoStyle           lipgloss.Style
	SectionStyle            lipgloss.Style
)

// Block state styles used by the watch output.
var (
	StateRenderingStyle lipgloss.Style
	StateShownStyle     lipgloss.Style
	StateEditingStyle   lipgloss.Style
)

// SetTheme rebuilds every style from p.
func SetTheme(p Palette) {
	CurrentPalette = p

	TextPrimaryBoldStyle = lipgloss.NewStyle().Foreground(p.Primary).Bold(true)
	TextForegroundBoldStyle = lipgloss.NewStyle().Foreground(p.Foreground).Bold(true)
	TextMutedStyle = lipgloss.NewStyle().Foreground(p.Muted)
	TextSuccessStyle = lipgloss.NewStyle().Foreground(p.Success).Bold(true)
	TextWarningStyle = lipgloss.NewStyle().Foreground(p.Warning).Bold(true)
	TextErrorStyle = lipgloss.NewStyle().Foreground(p.Error).Bold(true)
	TextInfoStyle = lipgloss.NewStyle().Foreground(p.Info).Bold(true)
	SectionStyle = lipgloss.NewStyle().Foreground(p.Foreground).Bold(true).Underline(true)

	StateRenderingStyle = lipgloss.NewStyle().Foreground(p.Warning)
	StateShownStyle = lipgloss.NewStyle().Foreground(p.Success)
	StateEditingStyle = lipgloss.NewStyle().Foreground(p.Info)
}

func init() {
	SetTheme(themes[DefaultTheme])
}
