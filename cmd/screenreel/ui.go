package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ivlev/screenreel/internal/apperr"
	"github.com/ivlev/screenreel/internal/engine"
)

type progressMsg engine.Progress

type exportDoneMsg struct {
	output string
	err    error
}

// exportModel shows one running export. It only quits once the job has
// ended, so a cancel request still waits for partial output cleanup.
type exportModel struct {
	updates    <-chan tea.Msg
	cancel     func()
	spinner    spinner.Model
	progress   progress.Model
	current    engine.Progress
	statuses   []string
	cancelling bool
	done       bool
	output     string
	err        error
}

func newExportModel(updates <-chan tea.Msg, cancel func(), statuses []string) exportModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	return exportModel{
		updates:  updates,
		cancel:   cancel,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(48)),
		statuses: statuses,
	}
}

// listen waits for the next message from the export job.
func listen(updates <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return <-updates }
}

func (m exportModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, listen(m.updates))
}

func (m exportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.cancelling {
				m.cancelling = true
				m.statuses = append(m.statuses, "Cancelling export...")
				m.cancel()
			}
		}
		return m, nil

	case progressMsg:
		m.current = engine.Progress(msg)
		return m, listen(m.updates)

	case exportDoneMsg:
		m.done = true
		m.output, m.err = msg.output, msg.err
		switch {
		case msg.err == nil:
			m.statuses = append(m.statuses, SuccessStyle.Render("Saved output to "+msg.output))
		case apperr.Is(msg.err, apperr.KindCancelled):
			m.statuses = append(m.statuses, WarnStyle.Render("Export cancelled, partial output removed"))
		default:
			m.statuses = append(m.statuses, ErrorStyle.Render(msg.err.Error()))
		}
		return m, tea.Quit

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m exportModel) View() string {
	if m.done {
		return styleOutput(m.statuses)
	}
	var b strings.Builder
	b.WriteString(styleOutput(m.statuses))
	stage := m.current.Stage
	if stage == "" {
		stage = "initializing"
	}
	fmt.Fprintf(&b, "%s%s %s %s\n",
		m.spinner.View(),
		TextStyle.Render(string(stage)),
		m.progress.ViewAs(m.current.Percent()/100),
		MutedStyle.Render(fmt.Sprintf("%d/%d", m.current.Frame, m.current.Total)))
	b.WriteString(MutedStyle.Render("  q to cancel") + "\n")
	return b.String()
}
