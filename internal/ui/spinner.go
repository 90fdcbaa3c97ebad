package ui

// spinner.go provides a blocking spinner for long-running pipeline phases.
// Uses Bubble Tea spinner (white); the title is re-read on every tick so it
// can report live progress.

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// actionDoneMsg signals the action completed
type actionDoneMsg struct {
	err error
}

// blockingSpinnerModel runs a spinner while an action executes
type blockingSpinnerModel struct {
	spinner     spinner.Model
	title       func() string
	action      func() error
	cancel      context.CancelFunc
	done        bool
	interrupted bool
	err         error
}

// RunWithSpinner executes action while displaying a spinner on stderr.
// title is called on every frame. Pressing ctrl+c calls cancel and keeps the
// spinner up until action returns, so the action can clean up.
//
// Example:
//
//	ctx, cancel := context.WithCancel(ctx)
//	defer cancel()
//	err := RunWithSpinner(func() string { return "Looking up..." }, cancel, func() error {
//	    _, err := pipeline.Run(ctx)
//	    return err
//	})
func RunWithSpinner(title func() string, cancel context.CancelFunc, action func() error) error {
	m := blockingSpinnerModel{
		spinner: NewAppSpinner(),
		title:   title,
		action:  action,
		cancel:  cancel,
	}

	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("spinner program error: %w", err)
	}

	final := finalModel.(blockingSpinnerModel)
	return final.err
}

func (m blockingSpinnerModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.runAction(),
	)
}

func (m blockingSpinnerModel) runAction() tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: m.action()}
	}
}

func (m blockingSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case actionDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.interrupted {
			m.interrupted = true
			if m.cancel != nil {
				m.cancel()
			}
		}
	}

	return m, nil
}

func (m blockingSpinnerModel) View() string {
	if m.done {
		return ""
	}
	title := ""
	if m.title != nil {
		title = m.title()
	}
	if m.interrupted {
		title += " (interrupted, cleaning up)"
	}
	return fmt.Sprintf("%s %s", m.spinner.View(), RenderNormal(title))
}
