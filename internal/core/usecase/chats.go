package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/navigation"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

const MissingShareLinkMessage = "Cannot open chat: Document share link not found."

type ChatSummary struct {
	ID          string
	Title       string
	LastMessage string
	UpdatedAt   time.Time
	ShareToken  string
}

// ChatHistory lists the owner's past conversations.
type ChatHistory struct {
	gateway  ports.ChatGateway
	creds    ports.CredentialSource
	notifier ports.Notifier

	mu    sync.Mutex
	chats []domain.Chat
}

func NewChatHistory(gateway ports.ChatGateway, creds ports.CredentialSource, notifier ports.Notifier) *ChatHistory {
	return &ChatHistory{gateway: gateway, creds: creds, notifier: notifierOrNoop(notifier)}
}

func (h *ChatHistory) List(ctx context.Context) ([]ChatSummary, error) {
	chats, err := h.gateway.ListChats(ctx, h.creds.Credentials(ctx))
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	h.mu.Lock()
	h.chats = chats
	h.mu.Unlock()

	out := make([]ChatSummary, 0, len(chats))
	for _, c := range chats {
		out = append(out, ChatSummary{
			ID:          c.ID,
			Title:       c.DisplayTitle(),
			LastMessage: c.LastMessage(),
			UpdatedAt:   c.UpdatedAt,
			ShareToken:  c.Document.ShareToken,
		})
	}
	return out, nil
}

// Find returns a chat from the last List by id.
func (h *ChatHistory) Find(id string) (domain.Chat, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.chats {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Chat{}, false
}

// OpenTarget is the route of the shared document behind a chat.
func (h *ChatHistory) OpenTarget(chat domain.Chat) (string, error) {
	token := strings.TrimSpace(chat.Document.ShareToken)
	if token == "" {
		notifyError(h.notifier, MissingShareLinkMessage)
		return "", domain.WrapError(domain.ErrNotFound, "open chat", errors.New(MissingShareLinkMessage))
	}
	return navigation.ShareRoute(token, ""), nil
}
