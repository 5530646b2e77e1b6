package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
)

// Conversation is the chat view the model drives.
type Conversation interface {
	Messages() []domain.ChatMessage
	Send(ctx context.Context, text string) error
	InFlight() bool
	ShareToken() string
	ChatID() string
}

// AnswerMsg is sent when a Send settles.
type AnswerMsg struct {
	Err error
}

type ChatModel struct {
	ctx    context.Context
	conv   Conversation
	render func(markdown string, width int) string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	waiting  bool
	width    int
}

func NewChatModel(ctx context.Context, conv Conversation) ChatModel {
	input := textinput.New()
	input.Placeholder = "Ask about this document"
	input.CharLimit = 2000
	input.Focus()

	m := ChatModel{
		ctx:      ctx,
		conv:     conv,
		render:   renderMarkdown,
		input:    input,
		viewport: viewport.New(80, 20),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		width:    80,
	}
	m.sync()
	return m
}

// WithRenderer replaces the markdown renderer of assistant messages.
func (m ChatModel) WithRenderer(render func(markdown string, width int) string) ChatModel {
	m.render = render
	m.sync()
	return m
}

func (m ChatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc, tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.waiting {
				return m, nil
			}
			m.input.Reset()
			m.waiting = true
			m.sync()
			return m, tea.Batch(m.send(text), m.spinner.Tick)
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-4, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.sync()
	case AnswerMsg:
		m.waiting = false
		m.sync()
		return m, nil
	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.sync()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m ChatModel) send(text string) tea.Cmd {
	conv, ctx := m.conv, m.ctx
	return func() tea.Msg {
		return AnswerMsg{Err: conv.Send(ctx, text)}
	}
}

func (m ChatModel) View() string {
	header := titleStyle.Render("Chat " + m.conv.ShareToken())
	if id := m.conv.ChatID(); id != "" {
		header += helpStyle.Render("  #" + id)
	}
	return fmt.Sprintf("%s\n%s\n%s\n%s", header, m.viewport.View(), m.input.View(), helpStyle.Render("enter to send, esc to quit"))
}

func (m ChatModel) Waiting() bool { return m.waiting }

// Transcript is the rendered message list shown in the viewport.
func (m ChatModel) Transcript() string {
	var b strings.Builder
	for _, msg := range m.conv.Messages() {
		if msg.Role == domain.RoleUser {
			b.WriteString(userLabel + "\n" + msg.Content + "\n\n")
			continue
		}
		b.WriteString(assistantLabel + "\n" + strings.TrimRight(m.render(msg.Content, m.width), "\n") + "\n\n")
	}
	if m.waiting {
		b.WriteString(m.spinner.View() + " Thinking...\n")
	}
	return b.String()
}

func (m *ChatModel) sync() {
	m.viewport.SetContent(m.Transcript())
	m.viewport.GotoBottom()
}

var (
	rendererMu    sync.Mutex
	rendererWrap  int
	rendererCache *glamour.TermRenderer
)

func renderMarkdown(markdown string, width int) string {
	wrap := clamp(width-4, 20, 120)

	rendererMu.Lock()
	defer rendererMu.Unlock()
	if rendererCache == nil || rendererWrap != wrap {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(wrap))
		if err != nil {
			return markdown
		}
		rendererCache, rendererWrap = r, wrap
	}
	out, err := rendererCache.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}

// RunChat opens the interactive chat on an already loaded conversation.
func RunChat(ctx context.Context, conv Conversation, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	if _, err := tea.NewProgram(NewChatModel(ctx, conv), opts...).Run(); err != nil {
		return fmt.Errorf("run chat: %w", err)
	}
	return nil
}
