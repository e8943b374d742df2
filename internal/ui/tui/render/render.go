package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

func Frame(content string, width int, panelStyle lipgloss.Style) string {
	innerWidth := width - panelStyle.GetHorizontalFrameSize()
	innerWidth = max(innerWidth, 1)
	return panelStyle.Width(innerWidth).Render(content)
}

func TruncateDisplayWidth(value string, width int) string {
	if width <= 0 {
		return ""
	}
	if ansi.StringWidth(value) <= width {
		return value
	}
	if width == 1 {
		return "…"
	}
	limit := width - ansi.StringWidth("…")
	limit = max(limit, 0)
	var b strings.Builder
	current := 0
	for _, r := range value {
		w := ansi.StringWidth(string(r))
		if current+w > limit {
			break
		}
		b.WriteRune(r)
		current += w
	}
	return b.String() + "…"
}

// Wrap soft-wraps styled text to width, breaking long words when needed.
func Wrap(value string, width int) string {
	if width <= 0 {
		return value
	}
	return ansi.Wrap(value, width, "")
}

func WithScrollBar(content string, width int, height int, percent float64) string {
	if height <= 0 {
		return content
	}
	width = max(width, 1)
	lines := strings.Split(content, "\n")
	for len(lines) < height {
		lines = append(lines, "")
	}
	lines = lines[:height]

	thumb := int(percent * float64(height-1))
	thumb = min(max(thumb, 0), height-1)
	barInactive := lipgloss.NewStyle().Foreground(lipgloss.Color("238")).Render("┊")
	barActive := lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Render("▯")

	out := make([]string, 0, height)
	for i := range height {
		bar := barInactive
		if i == thumb {
			bar = barActive
		}
		text := ansi.Cut(lines[i], 0, width)
		if pad := width - ansi.StringWidth(text); pad > 0 {
			text += strings.Repeat(" ", pad)
		}
		out = append(out, text+" "+bar)
	}
	return strings.Join(out, "\n")
}
