package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
)

// The backend is not consistent about ids (_id or id), about wrapping lists
// in an object and about date formats. The wire types absorb that.

type wireDocument struct {
	MongoID    string `json:"_id"`
	ID         string `json:"id"`
	Title      string `json:"title"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	CreatedAt  string `json:"createdAt"`
	ShareToken string `json:"shareToken"`
	Visibility string `json:"visibility"`
	IsActive   *bool  `json:"isActive"`
	Active     *bool  `json:"active"`
}

func (w wireDocument) toDomain() domain.Document {
	doc := domain.Document{
		ID:         firstNonEmpty(w.MongoID, w.ID),
		Title:      firstNonEmpty(w.Title, w.Filename),
		Status:     domain.ParseDocumentStatus(w.Status),
		CreatedAt:  parseTime(w.CreatedAt),
		ShareToken: w.ShareToken,
		Visibility: domain.Visibility(strings.ToLower(strings.TrimSpace(w.Visibility))),
		Active:     true,
	}
	if !doc.Visibility.Valid() {
		doc.Visibility = ""
	}
	switch {
	case w.IsActive != nil:
		doc.Active = *w.IsActive
	case w.Active != nil:
		doc.Active = *w.Active
	}
	return doc
}

// decodeList accepts a bare array or an object wrapping it under one of keys.
func decodeList[T any](raw json.RawMessage, keys ...string) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var out []T
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, err
		}
		return out, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, err
	}
	for _, key := range keys {
		inner, ok := wrapper[key]
		if !ok {
			continue
		}
		return decodeList[T](inner, keys...)
	}
	return nil, fmt.Errorf("expected a list under one of %v", keys)
}

func decodeDocuments(raw json.RawMessage) ([]domain.Document, error) {
	items, err := decodeList[wireDocument](raw, "documents", "data")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Document, 0, len(items))
	for _, item := range items {
		out = append(out, item.toDomain())
	}
	return out, nil
}

// decodeUploaded reads the created document, either bare or under
// "document". Fields the response leaves out are taken from the request.
func decodeUploaded(raw json.RawMessage, sent domain.UploadRequest) (*domain.Document, error) {
	var wrapper struct {
		Document *wireDocument `json:"document"`
		Data     *wireDocument `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, err
	}
	item := wrapper.Document
	if item == nil {
		item = wrapper.Data
	}
	if item == nil {
		var bare wireDocument
		if err := json.Unmarshal(raw, &bare); err != nil {
			return nil, err
		}
		item = &bare
	}
	doc := item.toDomain()
	if doc.ID == "" {
		return nil, fmt.Errorf("upload response has no document id")
	}
	if doc.Title == "" {
		doc.Title = sent.Title
	}
	if doc.Visibility == "" && sent.Visibility.Valid() {
		doc.Visibility = sent.Visibility
	}
	return &doc, nil
}

type wireMessage struct {
	MongoID   string `json:"_id"`
	ID        string `json:"id"`
	Role      string `json:"role"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	CreatedAt string `json:"createdAt"`
}

func (w wireMessage) toDomain() domain.ChatMessage {
	role := domain.RoleAssistant
	switch strings.ToLower(firstNonEmpty(w.Role, w.Type)) {
	case "user", "human":
		role = domain.RoleUser
	}
	return domain.ChatMessage{
		ID:        firstNonEmpty(w.MongoID, w.ID),
		Role:      role,
		Content:   w.Content,
		Timestamp: parseTime(firstNonEmpty(w.Timestamp, w.CreatedAt)),
	}
}

func decodeMessages(raw json.RawMessage) ([]domain.ChatMessage, error) {
	items, err := decodeList[wireMessage](raw, "messages", "chat", "data")
	if err != nil {
		return nil, err
	}
	out := make([]domain.ChatMessage, 0, len(items))
	for _, item := range items {
		out = append(out, item.toDomain())
	}
	return out, nil
}

type wireChat struct {
	MongoID  string `json:"_id"`
	ID       string `json:"id"`
	Document *struct {
		MongoID    string `json:"_id"`
		ID         string `json:"id"`
		Title      string `json:"title"`
		ShareToken string `json:"shareToken"`
	} `json:"document"`
	UpdatedAt string        `json:"updatedAt"`
	Messages  []wireMessage `json:"messages"`
}

func (w wireChat) toDomain() domain.Chat {
	chat := domain.Chat{
		ID:        firstNonEmpty(w.MongoID, w.ID),
		UpdatedAt: parseTime(w.UpdatedAt),
	}
	if w.Document != nil {
		chat.Document = domain.DocumentRef{
			ID:         firstNonEmpty(w.Document.MongoID, w.Document.ID),
			Title:      w.Document.Title,
			ShareToken: w.Document.ShareToken,
		}
	}
	for _, msg := range w.Messages {
		chat.Messages = append(chat.Messages, msg.toDomain())
	}
	return chat
}

func decodeChats(raw json.RawMessage) ([]domain.Chat, error) {
	items, err := decodeList[wireChat](raw, "chats", "data")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Chat, 0, len(items))
	for _, item := range items {
		out = append(out, item.toDomain())
	}
	return out, nil
}

type wireUsage struct {
	Plan       string            `json:"plan"`
	TokensUsed json.Number       `json:"tokensUsed"`
	MaxTokens  json.Number       `json:"maxTokens"`
	History    []wireUsageRecord `json:"history"`
}

type wireUsageRecord struct {
	MongoID  string      `json:"_id"`
	ID       string      `json:"id"`
	Document string      `json:"document"`
	Tokens   json.Number `json:"tokens"`
	Date     string      `json:"date"`
}

func (w wireUsage) toDomain() domain.UsageSnapshot {
	plan, ok := domain.ParsePlan(w.Plan)
	if !ok {
		plan = domain.PlanBasic
	}
	out := domain.UsageSnapshot{
		Plan:       plan,
		TokensUsed: numberOrZero(w.TokensUsed),
		MaxTokens:  numberOrZero(w.MaxTokens),
	}
	for i, rec := range w.History {
		id := firstNonEmpty(rec.MongoID, rec.ID)
		if id == "" {
			id = fmt.Sprintf("row-%d", i)
		}
		out.History = append(out.History, domain.UsageRecord{
			ID:       id,
			Document: rec.Document,
			Tokens:   numberOrZero(rec.Tokens),
			Date:     parseTime(rec.Date),
		})
	}
	return out
}

func numberOrZero(n json.Number) int64 {
	if n == "" {
		return 0
	}
	if v, err := n.Int64(); err == nil {
		return v
	}
	if f, err := n.Float64(); err == nil {
		return int64(f)
	}
	return 0
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
