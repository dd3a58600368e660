package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/flanker/cli/reader"
	"github.com/justapithecus/flanker/metrics"
)

// keyMap defines key bindings.
type keyMap struct {
	Quit  key.Binding
	Phase key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Phase: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "switch phase"),
	),
}

// SummaryModel is a Bubble Tea model for summary views.
type SummaryModel struct {
	viewType string
	data     any
	training bool
	width    int
	height   int
	quitting bool
}

// NewSummaryModel creates a new summary model showing the main phase first.
func NewSummaryModel(viewType string, data any) SummaryModel {
	return SummaryModel{viewType: viewType, data: data}
}

// Init implements tea.Model.
func (m SummaryModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m SummaryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Phase):
			m.training = !m.training
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m SummaryModel) View() string {
	if m.quitting {
		return ""
	}

	var content, help string
	switch m.viewType {
	case ViewSummary:
		content = m.renderSummary()
		help = "tab: switch phase • q: quit"
	case ViewCatalog:
		content = m.renderCatalog()
		help = "q: quit"
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	return content + "\n" + HelpStyle.Render(help)
}

func (m SummaryModel) renderSummary() string {
	data, ok := m.data.(*reader.SessionSummary)
	if !ok {
		return "Invalid data type for summary_session"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session Summary"))
	b.WriteString("\n")
	b.WriteString(m.renderField("Source", data.Source))
	if data.Session != nil {
		b.WriteString(m.renderField("Participant", data.Session.Participant))
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Outcome"),
			OutcomeStyle(data.Session.Outcome).Render(data.Session.Outcome)))
	}
	b.WriteString("\n")

	phase, sum := "Main", data.Main
	if m.training {
		phase, sum = "Training", data.Training
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(highlightColor).Render(phase))
	b.WriteString("\n")
	if sum == nil {
		b.WriteString(HelpStyle.Render("no trials in this phase"))
		return b.String()
	}

	boxes := []string{
		m.renderStatBox("Trials", fmt.Sprintf("%d", sum.Overall.Trials), highlightColor),
		m.renderStatBox("Accuracy", percent(sum.Overall.Accuracy), successColor),
		m.renderStatBox("Omissions", fmt.Sprintf("%d", sum.Overall.Omissions), warningColor),
		m.renderStatBox("Commissions", fmt.Sprintf("%d", sum.Overall.Commissions), errorColor),
	}
	if !m.training {
		boxes = append(boxes,
			m.renderStatBox("Mean RT", fmt.Sprintf("%.0f ms", sum.Overall.RT.Mean), primaryColor),
			m.renderStatBox("Flanker", fmt.Sprintf("%+.0f ms", sum.FlankerEffectMs), primaryColor),
		)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	b.WriteString(renderCells("Category", sum.ByCategory, !m.training))
	b.WriteString("\n")
	b.WriteString(renderCells("Duration", sum.ByDuration, !m.training))
	return b.String()
}

func (m SummaryModel) renderCatalog() string {
	data, ok := m.data.([]reader.CatalogItem)
	if !ok {
		return "Invalid data type for summary_catalog"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Stimulus Catalog"))
	b.WriteString("\n")
	for _, item := range data {
		b.WriteString(fmt.Sprintf("%s %s  %s  %s\n",
			LabelStyle.Render(item.ID),
			StatValueStyle.Render(item.Glyph),
			ValueStyle.Render(string(item.Correct)),
			HelpStyle.UnsetMarginTop().Render(string(item.Category))))
	}
	return b.String()
}

func (m SummaryModel) renderField(label, value string) string {
	return fmt.Sprintf("%s %s\n", LabelStyle.Render(label), ValueStyle.Render(value))
}

func (m SummaryModel) renderStatBox(label, value string, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

func renderCells(title string, cells []metrics.Cell, withRT bool) string {
	var b strings.Builder
	header := fmt.Sprintf("%-12s %6s %9s %8s", title, "trials", "accuracy", "omitted")
	if withRT {
		header += fmt.Sprintf(" %9s %7s", "mean rt", "sd")
	}
	b.WriteString(LabelStyle.UnsetWidth().Render(header))
	b.WriteString("\n")
	for _, c := range cells {
		row := fmt.Sprintf("%-12s %6d %9s %8d", c.Label, c.Trials, percent(c.Accuracy), c.Omissions)
		if withRT {
			row += fmt.Sprintf(" %9.1f %7.1f", c.RT.Mean, c.RT.SD)
		}
		b.WriteString(ValueStyle.Render(row))
		b.WriteString("\n")
	}
	return b.String()
}

func percent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

// RunSummaryTUI runs the summary TUI.
func RunSummaryTUI(viewType string, data any) error {
	model := NewSummaryModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderSummaryStatic renders summary data without full TUI (for fallback).
func RenderSummaryStatic(viewType string, data any) string {
	model := NewSummaryModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
