package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/usecase"
)

// SnapshotMsg carries an upload flow transition into the program.
type SnapshotMsg usecase.UploadSnapshot

// UploadDoneMsg is sent once Submit has returned.
type UploadDoneMsg struct {
	Err error
}

// UploadModel is the upload progress dialog.
type UploadModel struct {
	name     string
	snap     usecase.UploadSnapshot
	bar      progress.Model
	spinner  spinner.Model
	done     bool
	canceled bool
	err      error
}

func NewUploadModel(name string) UploadModel {
	return UploadModel{
		name:    name,
		snap:    usecase.UploadSnapshot{State: usecase.UploadSelecting},
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (m UploadModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m UploadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "q", "ctrl+c":
			if !m.done {
				m.canceled = true
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = clamp(msg.Width-10, 20, 80)
	case SnapshotMsg:
		m.snap = usecase.UploadSnapshot(msg)
	case UploadDoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m UploadModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Upload "+m.name) + "\n\n")

	switch {
	case m.done && m.err == nil:
		b.WriteString(okStyle.Render("Document processed.") + "\n")
		return b.String()
	case m.done && !errors.Is(m.err, usecase.ErrUploadCanceled):
		b.WriteString(errorStyle.Render(domain.UserMessage(m.err, "Failed to upload document")) + "\n")
		return b.String()
	case m.canceled:
		b.WriteString("Closed. The document keeps processing on the server.\n")
		return b.String()
	}

	switch m.snap.State {
	case usecase.UploadSubmitting:
		b.WriteString(m.spinner.View() + " Uploading...\n")
	case usecase.UploadAwaitingProgress:
		line := fmt.Sprintf("%s Processing %d%%", m.spinner.View(), m.snap.Progress)
		if m.snap.Message != "" {
			line += "  " + m.snap.Message
		}
		b.WriteString(line + "\n")
	case usecase.UploadFailed:
		b.WriteString(errorStyle.Render("Lost the progress stream.") + "\n")
	default:
		b.WriteString(m.spinner.View() + " Preparing...\n")
	}
	b.WriteString(m.bar.ViewAs(float64(m.snap.Progress)/100) + "\n\n")
	b.WriteString(helpStyle.Render("esc to close"))
	return b.String()
}

func (m UploadModel) Done() bool     { return m.done }
func (m UploadModel) Canceled() bool { return m.canceled }
func (m UploadModel) Err() error     { return m.err }

// RunUpload shows the dialog while the flow uploads form. Closing the dialog
// cancels the flow; the upload itself is not undone.
func RunUpload(ctx context.Context, build func(observer func(usecase.UploadSnapshot)) *usecase.UploadFlow, form domain.UploadRequest, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(NewUploadModel(form.File.Filename()), opts...)
	flow := build(func(snap usecase.UploadSnapshot) {
		p.Send(SnapshotMsg(snap))
	})

	go func() {
		err := flow.Select(form)
		if err == nil {
			err = flow.Submit(ctx)
		}
		p.Send(UploadDoneMsg{Err: err})
	}()

	final, err := p.Run()
	if err != nil {
		flow.Cancel()
		return fmt.Errorf("run upload dialog: %w", err)
	}
	m := final.(UploadModel)
	if !m.Done() {
		flow.Cancel()
		return nil
	}
	if errors.Is(m.Err(), usecase.ErrUploadCanceled) {
		return nil
	}
	return m.Err()
}
