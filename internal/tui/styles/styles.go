// Package styles holds the lipgloss colors and styles shared by merges'
// terminal output.
package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray
	BlueColor      = lipgloss.Color("#60A5FA") // Blue

	// Convenience styles for colors
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)
	Text      = lipgloss.NewStyle().Foreground(TextColor)

	// Branch names and chunk names in messages
	Branch = lipgloss.NewStyle().Foreground(BlueColor)
	Chunk  = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	// Help bar
	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	HelpKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(SecondaryColor)

	// Table
	TableHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			Padding(0, 1)

	TableCell = lipgloss.NewStyle().
			Padding(0, 1)

	TableBorder = lipgloss.NewStyle().
			Foreground(BorderColor)

	// Picker
	Cursor = lipgloss.NewStyle().
		Bold(true).
		Foreground(SecondaryColor)

	Selected = lipgloss.NewStyle().
			Foreground(SecondaryColor)

	Assigned = lipgloss.NewStyle().
			Foreground(MutedColor).
			Strikethrough(true)
)

// Status message prefixes.
var (
	OK   = Secondary.Bold(true).Render("✓")
	Warn = Warning.Bold(true).Render("!")
	Fail = Error.Bold(true).Render("✗")
	Step = Branch.Bold(true).Render("→")
)

// StatusColor returns the color for a sync, CI or review label as shown in
// `merges status`.
func StatusColor(label string) lipgloss.Color {
	switch {
	case strings.HasPrefix(label, "✓"), label == "passing", label == "approved", label == "MERGED":
		return SecondaryColor
	case strings.HasPrefix(label, "↓"), label == "pending", label == "review required", label == "OPEN":
		return WarningColor
	case label == "failing", label == "changes requested", label == "error", label == "CLOSED":
		return ErrorColor
	default:
		return MutedColor
	}
}

// Status renders label in its status color.
func Status(label string) string {
	return lipgloss.NewStyle().Foreground(StatusColor(label)).Render(label)
}
