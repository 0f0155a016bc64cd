package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/glabrego/reeder/internal/item"
)

type Theme struct {
	Title     lipgloss.Style
	Section   lipgloss.Style
	Count     lipgloss.Style
	MetaLabel lipgloss.Style
	MetaValue lipgloss.Style
	StateIdle lipgloss.Style
	StateWarn lipgloss.Style
	StateLoad lipgloss.Style

	Category lipgloss.Style
	Feed     lipgloss.Style
	Bin      lipgloss.Style
	Match    lipgloss.Style
}

func Default() Theme {
	cpMauve := lipgloss.Color("#cba6f7")
	cpRed := lipgloss.Color("#f38ba8")
	cpPeach := lipgloss.Color("#fab387")
	cpYellow := lipgloss.Color("#f9e2af")
	cpGreen := lipgloss.Color("#a6e3a1")
	cpTeal := lipgloss.Color("#94e2d5")
	cpLavender := lipgloss.Color("#b4befe")
	cpText := lipgloss.Color("#cdd6f4")
	cpSubtext1 := lipgloss.Color("#bac2de")
	cpOverlay1 := lipgloss.Color("#7f849c")
	cpSurface0 := lipgloss.Color("#313244")

	return Theme{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(cpMauve),
		Section:   lipgloss.NewStyle().Bold(true).Foreground(cpTeal),
		Count:     lipgloss.NewStyle().Foreground(cpYellow).Bold(true),
		MetaLabel: lipgloss.NewStyle().Foreground(cpOverlay1),
		MetaValue: lipgloss.NewStyle().Foreground(cpSubtext1),
		StateIdle: lipgloss.NewStyle().Foreground(cpGreen),
		StateWarn: lipgloss.NewStyle().Foreground(cpRed),
		StateLoad: lipgloss.NewStyle().Foreground(cpPeach),
		Category:  lipgloss.NewStyle().Bold(true).Foreground(cpLavender),
		Feed:      lipgloss.NewStyle().Foreground(cpText),
		Bin:       lipgloss.NewStyle().Italic(true).Foreground(cpOverlay1),
		Match:     lipgloss.NewStyle().Background(cpSurface0).Foreground(cpText),
	}
}

// TreeLabel renders one tree row indented two spaces per level.
func (t Theme) TreeLabel(row item.Row) string {
	indent := strings.Repeat("  ", row.Depth)
	if row.Label == "" {
		return indent
	}
	switch row.Kind {
	case item.KindCategory, item.KindServiceRoot:
		return indent + t.Category.Render(row.Label)
	case item.KindRecycleBin:
		return indent + t.Bin.Render(row.Label)
	default:
		return indent + t.Feed.Render(row.Label)
	}
}

func (t Theme) ImportSummary(ok bool, message string) string {
	if ok {
		return t.StateIdle.Render(message)
	}
	return t.StateWarn.Render(message)
}

// LockState describes whether a critical operation currently holds the lock.
func (t Theme) LockState(locked bool, holder string) string {
	if !locked {
		return t.StateIdle.Render("idle")
	}
	return t.StateLoad.Render("busy: " + holder)
}

func (t Theme) Meta(label, value string) string {
	return t.MetaLabel.Render(label+":") + " " + t.MetaValue.Render(value)
}
