package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	DefaultGreeting      = "Hello! Ask me anything about this document."
	ConnectionErrorReply = "Error: Could not connect to the server."
	EmptyAnswerReply     = "Sorry, I encountered an error."
	UnavailableReply     = "This document is currently inactive or has been made private by the owner."
)

type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type DocumentRef struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ShareToken string `json:"share_token,omitempty"`
}

type Chat struct {
	ID        string        `json:"id"`
	Document  DocumentRef   `json:"document"`
	UpdatedAt time.Time     `json:"updated_at"`
	Messages  []ChatMessage `json:"messages"`
}

func (c Chat) DisplayTitle() string {
	if title := strings.TrimSpace(c.Document.Title); title != "" {
		return title
	}
	return "Untitled Document"
}

func (c Chat) LastMessage() string {
	if len(c.Messages) == 0 {
		return "No messages"
	}
	return c.Messages[len(c.Messages)-1].Content
}

// AskRequest is the body of a question. ShareToken and ChatID are optional.
type AskRequest struct {
	Question   string
	ShareToken string
	ChatID     string
}

type AskResponse struct {
	Answer string
	ChatID string
}
