package logging

import (
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var forceColorOnce sync.Once

func shouldPrettyPrint() bool {
	term := strings.TrimSpace(os.Getenv("TERM"))
	if term == "" || term == "dumb" {
		return false
	}
	return os.Getenv("NO_COLOR") == ""
}

var (
	timeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	messageStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("117"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	sepStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	blockStyle   = lipgloss.NewStyle().MarginLeft(2)
)

// FormatEventANSI renders one event with terminal colors. The TUI log pane
// reuses it, so color output is forced even when stderr is not a terminal.
func FormatEventANSI(event Event) string {
	forceColorOnce.Do(func() {
		lipgloss.SetColorProfile(termenv.TrueColor)
	})
	label, style := levelBadge(event.Level.String())
	line := lipgloss.JoinHorizontal(lipgloss.Center,
		timeStyle.Render(event.Time.Format("15:04:05.000")), " ",
		style.Render(label), " ",
		messageStyle.Render(event.Message),
	)
	if len(event.Fields) == 0 {
		return line + "\n"
	}

	inline := make([]string, 0, len(event.Fields))
	var blocks []string
	for _, key := range orderedFieldKeys(event.Fields) {
		if pretty, ok := prettyJSONString(event.Fields[key]); ok {
			blocks = append(blocks, keyStyle.Render(key)+sepStyle.Render(":")+"\n"+blockStyle.Render(valueStyle.Render(pretty)))
			continue
		}
		inline = append(inline, keyStyle.Render(key)+sepStyle.Render("=")+valueStyle.Render(formatFieldValue(event.Fields[key])))
	}
	lines := []string{line}
	if len(inline) > 0 {
		lines = append(lines, blockStyle.Render(strings.Join(inline, " ")))
	}
	for _, block := range blocks {
		lines = append(lines, blockStyle.Render(block))
	}
	return strings.Join(lines, "\n") + "\n"
}

func levelBadge(level string) (string, lipgloss.Style) {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch strings.ToUpper(level) {
	case "DEBUG":
		return "DEBUG", base.Foreground(lipgloss.Color("255")).Background(lipgloss.Color("240"))
	case "INFO":
		return "INFO", base.Foreground(lipgloss.Color("230")).Background(lipgloss.Color("31"))
	case "WARN":
		return "WARN", base.Foreground(lipgloss.Color("234")).Background(lipgloss.Color("214"))
	default:
		return "ERROR", base.Foreground(lipgloss.Color("231")).Background(lipgloss.Color("160"))
	}
}
