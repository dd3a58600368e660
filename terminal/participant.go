package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/flanker/types"
)

var (
	formTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")).MarginBottom(1)
	formErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	formHelpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).MarginTop(1)
)

const (
	fieldID = iota
	fieldSex
	fieldAge
	fieldCount
)

// participantForm collects the participant metadata before a session.
type participantForm struct {
	inputs    []textinput.Model
	focus     int
	err       string
	result    *types.Participant
	cancelled bool
	next      key.Binding
	prev      key.Binding
	cancel    key.Binding
}

func newParticipantForm(initial types.Participant) participantForm {
	labels := [fieldCount]string{"ID: ", "Sex (M/F): ", "Age: "}
	values := [fieldCount]string{initial.ID, initial.Sex, ""}
	if initial.Age > 0 {
		values[fieldAge] = strconv.Itoa(initial.Age)
	}
	limits := [fieldCount]int{32, 1, 3}

	f := participantForm{
		inputs: make([]textinput.Model, fieldCount),
		next:   key.NewBinding(key.WithKeys("enter", "tab", "down")),
		prev:   key.NewBinding(key.WithKeys("shift+tab", "up")),
		cancel: key.NewBinding(key.WithKeys("esc", "ctrl+c")),
	}
	for i := range f.inputs {
		ti := textinput.New()
		ti.Prompt = labels[i]
		ti.CharLimit = limits[i]
		ti.SetValue(values[i])
		f.inputs[i] = ti
	}
	f.inputs[fieldID].Focus()
	return f
}

func (f participantForm) Init() tea.Cmd {
	return textinput.Blink
}

func (f participantForm) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, f.cancel):
			f.cancelled = true
			return f, tea.Quit
		case key.Matches(msg, f.next):
			if f.focus == fieldCount-1 && msg.Type == tea.KeyEnter {
				p, err := f.participant()
				if err != nil {
					f.err = err.Error()
					return f, nil
				}
				f.result = &p
				return f, tea.Quit
			}
			return f, f.setFocus(min(f.focus+1, fieldCount-1))
		case key.Matches(msg, f.prev):
			return f, f.setFocus(max(f.focus-1, 0))
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

func (f *participantForm) setFocus(i int) tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = i
	return f.inputs[f.focus].Focus()
}

// participant parses and validates the form values.
func (f participantForm) participant() (types.Participant, error) {
	ageText := strings.TrimSpace(f.inputs[fieldAge].Value())
	age, err := strconv.Atoi(ageText)
	if err != nil {
		return types.Participant{}, fmt.Errorf("age must be a number, got %q", ageText)
	}
	p := types.Participant{
		ID:  strings.TrimSpace(f.inputs[fieldID].Value()),
		Sex: strings.ToUpper(strings.TrimSpace(f.inputs[fieldSex].Value())),
		Age: age,
	}
	if err := p.Validate(); err != nil {
		return types.Participant{}, err
	}
	return p, nil
}

func (f participantForm) View() string {
	var b strings.Builder
	b.WriteString(formTitleStyle.Render("Participant"))
	b.WriteString("\n")
	for _, in := range f.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	if f.err != "" {
		b.WriteString(formErrorStyle.Render(f.err))
		b.WriteString("\n")
	}
	b.WriteString(formHelpStyle.Render("enter: next / confirm • esc: cancel"))
	return b.String()
}

// AskParticipant shows the participant form and returns the entered metadata.
// Fields present in initial are prefilled. Cancelling returns types.ErrUserAbort.
func AskParticipant(ctx context.Context, initial types.Participant, in io.Reader, out io.Writer) (types.Participant, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}

	final, err := tea.NewProgram(newParticipantForm(initial), opts...).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return types.Participant{}, ctx.Err()
		}
		return types.Participant{}, fmt.Errorf("participant form: %w", err)
	}

	f, ok := final.(participantForm)
	if !ok || f.cancelled || f.result == nil {
		return types.Participant{}, types.ErrUserAbort
	}
	return *f.result, nil
}
