package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/bnema/mlab-cli/internal/domain"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type deployDoneMsg struct {
	err error
}

// deployProgressMsg carries one polled deployment status.
type deployProgressMsg struct {
	status domain.DeploymentStatus
}

type deploySpinnerModel struct {
	spinner spinner.Model
	label   string
	deploy  tea.Cmd
	polls   int
	state   domain.DeploymentState
	err     error
	done    bool
}

func newDeploySpinnerModel(label string, deploy tea.Cmd) deploySpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return deploySpinnerModel{
		spinner: s,
		label:   label,
		deploy:  deploy,
	}
}

func (m deploySpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.deploy)
}

func (m deploySpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case deployProgressMsg:
		m.polls++
		m.state = msg.status.State
		return m, nil
	case deployDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m deploySpinnerModel) View() string {
	if m.done {
		return ""
	}

	if m.polls == 0 {
		return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
	}
	return fmt.Sprintf("%s %s %s", m.spinner.View(), m.label, stateStyle.Render(fmt.Sprintf("(%s, poll %d)", m.state, m.polls)))
}

var stateStyle = lipgloss.NewStyle().Faint(true)

// runDeploySpinner shows a spinner on output while deploy runs. deploy gets
// a report func that feeds each polled status into the spinner line.
func runDeploySpinner(ctx context.Context, output io.Writer, label string, deploy func(context.Context, func(domain.DeploymentStatus)) error) error {
	var p *tea.Program
	report := func(status domain.DeploymentStatus) {
		p.Send(deployProgressMsg{status: status})
	}
	deployCmd := func() tea.Msg {
		return deployDoneMsg{err: deploy(ctx, report)}
	}

	p = tea.NewProgram(
		newDeploySpinnerModel(label, deployCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(deploySpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}
