package ui

import (
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type doneMsg struct{ err error }

type spinnerModel struct {
	spinner spinner.Model
	message string
	err     error
	done    bool
}

func newSpinnerModel(message string) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(InfoColor))
	return spinnerModel{spinner: s, message: message}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case doneMsg:
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m spinnerModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + " " + m.message + "\n"
}

// WithSpinner runs op while animating message on out. When animate is
// false op simply runs.
func WithSpinner(out io.Writer, animate bool, message string, op func() error) error {
	if !animate {
		return op()
	}

	program := tea.NewProgram(newSpinnerModel(message),
		tea.WithOutput(out),
		tea.WithInput(nil))

	go func() {
		program.Send(doneMsg{err: op()})
	}()

	final, err := program.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(spinnerModel); ok {
		return m.err
	}
	return nil
}
