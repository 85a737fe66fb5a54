// Package style holds the palette and icons shared by the logger and the progress renderer.
package style

import (
	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/matrix/internal/core/domain"
)

// Palette.
var (
	Iris   = lipgloss.Color("#8B5CF6")
	Slate  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Dot     = "●"
	Circle  = "○"
	Arrow   = "→"
)

// StateIcon returns the icon and colour of an entry state.
func StateIcon(s domain.EntryState) (string, lipgloss.Color) {
	switch s {
	case domain.StateSucceeded:
		return Check, Green
	case domain.StateFailed:
		return Cross, Red
	case domain.StatePending:
		return Circle, Slate
	default:
		return Dot, Iris
	}
}

// Badge renders the state icon followed by label using r.
func Badge(r *lipgloss.Renderer, s domain.EntryState, label string) string {
	icon, color := StateIcon(s)
	return r.NewStyle().Foreground(color).Render(icon) + " " + label
}
