package terminal

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/flanker/device"
)

var (
	stimulusStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	correctStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	wrongStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	textStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E7EB")).Width(72)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// Feedback captions.
const (
	CorrectCaption = "Correct"
	WrongCaption   = "Wrong"
	FixationGlyph  = "•"
)

// Render returns the terminal rendering of el centered in a width×height area.
// A zero area renders the content without placement.
func Render(el device.Element, width, height int) string {
	body := renderBody(el)
	if width <= 0 || height <= 0 {
		return body
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, body)
}

func renderBody(el device.Element) string {
	switch el.Kind {
	case device.KindStimulus:
		if el.Stimulus == nil {
			return ""
		}
		glyph := el.Stimulus.Glyph
		if glyph == "" {
			glyph = el.Stimulus.ID
		}
		return stimulusStyle.Render(spaced(glyph))
	case device.KindFeedback:
		if el.Correct {
			return correctStyle.Render(CorrectCaption)
		}
		return wrongStyle.Render(WrongCaption)
	case device.KindFixation:
		return stimulusStyle.Render(FixationGlyph)
	case device.KindText:
		return textStyle.Render(strings.TrimRight(el.Text, "\n"))
	case device.KindImage:
		// terminals cannot show the image; name it so the operator can
		return mutedStyle.Render("[" + el.Image + "]\n\npress space to continue")
	default:
		return ""
	}
}

// spaced separates glyph characters so arrows stay legible at small sizes.
func spaced(glyph string) string {
	return strings.Join(strings.Split(glyph, ""), " ")
}
