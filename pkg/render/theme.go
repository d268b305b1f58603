package render

import "github.com/charmbracelet/lipgloss"

// Theme defines colors and icons for terminal rendering.
type Theme struct {
	Name    string
	Primary lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Accent  lipgloss.Style // commit hashes
	Frame   lipgloss.Color // box borders
	Report  lipgloss.Color // summary box border
	Icons   ThemeIcons
}

// ThemeIcons defines the icon set for a theme.
type ThemeIcons struct {
	Pass    string
	Fail    string
	Warn    string
	Info    string
	Send    string
	Connect string
	Close   string
	Stop    string
	Done    string
	Arrow   string
	Bullet  string
}

// DefaultTheme returns a vibrant color theme.
func DefaultTheme() Theme {
	return Theme{
		Name:    "default",
		Primary: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),  // blue
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("34")),  // green
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")), // orange
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")), // red
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("242")), // gray
		Bold:    lipgloss.NewStyle().Bold(true),
		Accent:  lipgloss.NewStyle().Foreground(lipgloss.Color("220")), // yellow
		Frame:   lipgloss.Color("51"),                                  // cyan
		Report:  lipgloss.Color("201"),                                 // magenta
		Icons: ThemeIcons{
			Pass:    "✓",
			Fail:    "✗",
			Warn:    "⚠",
			Info:    "●",
			Send:    "↑",
			Connect: "⇄",
			Close:   "⏏",
			Stop:    "■",
			Done:    "★",
			Arrow:   "➔",
			Bullet:  "·",
		},
	}
}

// OrcaTheme returns a muted, professional theme.
func OrcaTheme() Theme {
	return Theme{
		Name:    "orca",
		Primary: lipgloss.NewStyle().Foreground(lipgloss.Color("75")),  // pale blue
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("108")), // sage green
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("179")), // muted gold
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("167")), // muted red
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")), // lighter gray
		Bold:    lipgloss.NewStyle().Bold(true),
		Accent:  lipgloss.NewStyle().Foreground(lipgloss.Color("180")), // tan
		Frame:   lipgloss.Color("67"),
		Report:  lipgloss.Color("103"),
		Icons: ThemeIcons{
			Pass:    "✓",
			Fail:    "✗",
			Warn:    "!",
			Info:    "·",
			Send:    "→",
			Connect: "·",
			Close:   "·",
			Stop:    "·",
			Done:    "✓",
			Arrow:   "→",
			Bullet:  "·",
		},
	}
}

// MonoTheme returns a monochrome theme (no colors, ASCII icons).
func MonoTheme() Theme {
	return Theme{
		Name:    "mono",
		Primary: lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
		Muted:   lipgloss.NewStyle(),
		Bold:    lipgloss.NewStyle(),
		Accent:  lipgloss.NewStyle(),
		Icons: ThemeIcons{
			Pass:    "+",
			Fail:    "x",
			Warn:    "!",
			Info:    "*",
			Send:    ">",
			Connect: "*",
			Close:   "*",
			Stop:    "*",
			Done:    "*",
			Arrow:   "->",
			Bullet:  "-",
		},
	}
}

// ThemeByName returns a theme by name, defaulting to DefaultTheme.
func ThemeByName(name string) Theme {
	switch name {
	case "orca":
		return OrcaTheme()
	case "mono":
		return MonoTheme()
	default:
		return DefaultTheme()
	}
}

// ValidTheme reports whether name selects a known theme.
func ValidTheme(name string) bool {
	switch name {
	case "default", "orca", "mono":
		return true
	}
	return false
}

// StatusStyle returns the icon and style for a pass/fail outcome.
func (t Theme) StatusStyle(passed bool) (string, lipgloss.Style) {
	if passed {
		return t.Icons.Pass, t.Success
	}
	return t.Icons.Fail, t.Error
}
