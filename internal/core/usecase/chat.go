package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/navigation"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

// CredentialFactory picks the credentials for one shared document.
type CredentialFactory func(shareToken string) ports.CredentialSource

type ChatOptions struct {
	Greeting string
	Now      func() time.Time
	NewID    func() string
	// OnRoute is called with the new route once the backend assigns a
	// conversation id to a fresh chat.
	OnRoute func(route string)
}

func (o ChatOptions) withDefaults() ChatOptions {
	if strings.TrimSpace(o.Greeting) == "" {
		o.Greeting = domain.DefaultGreeting
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// ChatService opens chat views and answers one-off questions.
type ChatService struct {
	gateway ports.ChatGateway
	creds   CredentialFactory
	opts    ChatOptions
}

func NewChatService(gateway ports.ChatGateway, creds CredentialFactory, opts ChatOptions) *ChatService {
	return &ChatService{gateway: gateway, creds: creds, opts: opts.withDefaults()}
}

func (s *ChatService) Open(shareToken, chatID string) *ChatView {
	return newChatView(s.gateway, s.creds(shareToken), shareToken, chatID, s.opts)
}

// OpenWithRoute is Open with a route hook for this view only.
func (s *ChatService) OpenWithRoute(shareToken, chatID string, onRoute func(string)) *ChatView {
	opts := s.opts
	opts.OnRoute = onRoute
	return newChatView(s.gateway, s.creds(shareToken), shareToken, chatID, opts)
}

// AskOnce sends a single question in a fresh conversation and returns the
// assistant's reply. A failed ask still returns the synthetic reply that the
// chat view would show, next to the error.
func (s *ChatService) AskOnce(ctx context.Context, shareToken, question string) (string, error) {
	view := s.Open(shareToken, "")
	err := view.Send(ctx, question)
	if domain.IsKind(err, domain.ErrInvalidInput) || domain.IsKind(err, domain.ErrRequestInFlight) {
		return "", err
	}
	msgs := view.Messages()
	return msgs[len(msgs)-1].Content, err
}

// ChatView holds one conversation transcript. Entries are only ever appended,
// except that a resumed history replaces the greeting.
type ChatView struct {
	gateway    ports.ChatGateway
	creds      ports.CredentialSource
	shareToken string
	opts       ChatOptions

	mu       sync.Mutex
	chatID   string
	messages []domain.ChatMessage
	inFlight bool
	closed   bool
}

func newChatView(gateway ports.ChatGateway, creds ports.CredentialSource, shareToken, chatID string, opts ChatOptions) *ChatView {
	v := &ChatView{
		gateway:    gateway,
		creds:      creds,
		shareToken: shareToken,
		opts:       opts.withDefaults(),
		chatID:     chatID,
	}
	v.messages = []domain.ChatMessage{v.newMessage(domain.RoleAssistant, v.opts.Greeting)}
	return v
}

func (v *ChatView) ShareToken() string { return v.shareToken }

func (v *ChatView) ChatID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.chatID
}

func (v *ChatView) Messages() []domain.ChatMessage {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]domain.ChatMessage, len(v.messages))
	copy(out, v.messages)
	return out
}

func (v *ChatView) InFlight() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inFlight
}

func (v *ChatView) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
}

// Load fetches the history of a resumed conversation. A fresh chat has
// nothing to load. On failure the greeting stays.
func (v *ChatView) Load(ctx context.Context) error {
	chatID := v.ChatID()
	if chatID == "" {
		return nil
	}
	history, err := v.gateway.ChatHistory(ctx, chatID, v.shareToken)
	if err != nil {
		slog.Warn("chat_history_failed", "chat_id", chatID, "error", err)
		return fmt.Errorf("load chat %s: %w", chatID, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || len(history) == 0 {
		return nil
	}
	v.messages = append([]domain.ChatMessage(nil), history...)
	return nil
}

// Send appends the user's message, asks the backend and appends exactly one
// assistant entry: the answer, or a synthetic error reply.
func (v *ChatView) Send(ctx context.Context, text string) error {
	v.mu.Lock()
	if strings.TrimSpace(text) == "" {
		v.mu.Unlock()
		return domain.WrapError(domain.ErrInvalidInput, "send message", errors.New("message is empty"))
	}
	if v.inFlight {
		v.mu.Unlock()
		return domain.WrapError(domain.ErrRequestInFlight, "send message", errors.New("waiting for the previous answer"))
	}
	v.inFlight = true
	v.messages = append(v.messages, v.newMessage(domain.RoleUser, text))
	req := domain.AskRequest{
		Question:   text,
		ShareToken: v.shareToken,
		ChatID:     v.chatID,
	}
	v.mu.Unlock()

	resp, err := v.gateway.Ask(ctx, v.creds.Credentials(ctx), req)

	v.mu.Lock()
	v.inFlight = false
	if v.closed {
		v.mu.Unlock()
		return err
	}
	if err != nil {
		v.messages = append(v.messages, v.newMessage(domain.RoleAssistant, replyForError(err)))
		v.mu.Unlock()
		slog.Warn("chat_ask_failed", "share_token", v.shareToken, "chat_id", req.ChatID, "error", err)
		return fmt.Errorf("send message: %w", err)
	}

	answer := strings.TrimSpace(resp.Answer)
	if answer == "" {
		answer = domain.EmptyAnswerReply
	}
	v.messages = append(v.messages, v.newMessage(domain.RoleAssistant, answer))

	var route string
	if resp.ChatID != "" && resp.ChatID != v.chatID {
		v.chatID = resp.ChatID
		route = navigation.ShareRoute(v.shareToken, resp.ChatID)
	}
	v.mu.Unlock()

	if route != "" && v.opts.OnRoute != nil {
		v.opts.OnRoute(route)
	}
	return nil
}

func (v *ChatView) newMessage(role domain.Role, content string) domain.ChatMessage {
	return domain.ChatMessage{
		ID:        v.opts.NewID(),
		Role:      role,
		Content:   content,
		Timestamp: v.opts.Now(),
	}
}

func replyForError(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrDocumentUnavailable):
		return domain.UnavailableReply
	case domain.IsKind(err, domain.ErrRejected):
		return domain.EmptyAnswerReply
	default:
		return domain.ConnectionErrorReply
	}
}
