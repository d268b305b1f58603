package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Box renders content inside a bordered frame using lipgloss.
// Content is assembled first and styled in one pass.
type Box struct {
	border   lipgloss.Border
	color    lipgloss.Color
	width    int
	title    string
	titleSty lipgloss.Style
	content  []string
	disabled bool // plain mode: content only, no borders
}

// NewBox creates a box of the given total width (borders included).
func NewBox(width int) *Box {
	if width <= 0 {
		width = defaultWidth
	}
	return &Box{
		border: lipgloss.RoundedBorder(),
		width:  width,
	}
}

// Border selects the border glyph set.
func (b *Box) Border(border lipgloss.Border) *Box {
	b.border = border
	return b
}

// Color sets the border color.
func (b *Box) Color(c lipgloss.Color) *Box {
	b.color = c
	return b
}

// Title sets the first line of the box.
func (b *Box) Title(title string, style lipgloss.Style) *Box {
	b.title = title
	b.titleSty = style
	return b
}

// AddLines appends content lines.
func (b *Box) AddLines(lines ...string) *Box {
	b.content = append(b.content, lines...)
	return b
}

// Divider appends a horizontal rule spanning the inner width.
func (b *Box) Divider() *Box {
	inner := b.width - 4
	if inner < 1 {
		inner = 1
	}
	b.content = append(b.content, strings.Repeat(b.border.Top, inner))
	return b
}

// Disable turns off borders.
func (b *Box) Disable() *Box {
	b.disabled = true
	return b
}

// String renders the box.
func (b *Box) String() string {
	var parts []string
	if b.title != "" {
		if b.disabled {
			parts = append(parts, b.title)
		} else {
			parts = append(parts, b.titleSty.Render(b.title))
		}
	}
	parts = append(parts, b.content...)
	inner := strings.Join(parts, "\n")
	if b.disabled {
		return inner
	}

	// Width covers content plus horizontal padding; the border adds 2 more.
	style := lipgloss.NewStyle().
		Border(b.border).
		BorderForeground(b.color).
		Padding(0, 1).
		Width(b.width - 2)
	return style.Render(inner)
}

const defaultWidth = 80

func padRight(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

func padLeft(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return strings.Repeat(" ", width-w) + s
}
