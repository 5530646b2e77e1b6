package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
)

func (c *Client) ListChats(ctx context.Context, cred domain.Credentials) ([]domain.Chat, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{
		operation: "list_chats",
		method:    http.MethodGet,
		path:      "/api/chats",
		cred:      cred,
		out:       &raw,
	}); err != nil {
		return nil, err
	}
	chats, err := decodeChats(raw)
	if err != nil {
		return nil, toDomainError("list_chats", &decodeError{operation: "list_chats", err: err}, nil)
	}
	return chats, nil
}

// ChatHistory is a public call scoped by the share token.
func (c *Client) ChatHistory(ctx context.Context, chatID, shareToken string) ([]domain.ChatMessage, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat_history", errors.New("chat id is empty"))
	}
	var query url.Values
	if shareToken != "" {
		query = url.Values{"shareToken": []string{shareToken}}
	}

	var raw json.RawMessage
	if err := c.do(ctx, request{
		operation:   "chat_history",
		method:      http.MethodGet,
		path:        "/api/chat/" + url.PathEscape(chatID),
		query:       query,
		out:         &raw,
		unavailable: domain.ErrNotFound,
	}); err != nil {
		return nil, err
	}
	msgs, err := decodeMessages(raw)
	if err != nil {
		return nil, toDomainError("chat_history", &decodeError{operation: "chat_history", err: err}, nil)
	}
	return msgs, nil
}

type askPayload struct {
	Question   string `json:"question"`
	ShareToken string `json:"shareToken,omitempty"`
	ChatID     string `json:"chatId,omitempty"`
}

type askReply struct {
	Answer string `json:"answer"`
	ChatID string `json:"chatId"`
}

// Ask posts a question. Forbidden and not-found mean the document behind the
// share link is inactive or private. Any other error status is a rejection.
func (c *Client) Ask(ctx context.Context, cred domain.Credentials, req domain.AskRequest) (*domain.AskResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("question is empty"))
	}

	var reply askReply
	if err := c.do(ctx, request{
		operation: "ask",
		method:    http.MethodPost,
		path:      "/api/chat",
		cred:      cred,
		payload: askPayload{
			Question:   req.Question,
			ShareToken: req.ShareToken,
			ChatID:     req.ChatID,
		},
		out:          &reply,
		unavailable:  domain.ErrDocumentUnavailable,
		rejectStatus: true,
	}); err != nil {
		return nil, err
	}
	return &domain.AskResponse{Answer: reply.Answer, ChatID: reply.ChatID}, nil
}
