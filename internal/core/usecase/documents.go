package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

const (
	toggleFailedMessage = "Failed to update document status"
	deleteFailedMessage = "Failed to delete document"
)

// ApplyToggle returns a copy of list with the active flag of id inverted and
// the value it had before. ok is false when id is not in the list.
func ApplyToggle(list []domain.Document, id string) (next []domain.Document, prior bool, ok bool) {
	next = make([]domain.Document, len(list))
	copy(next, list)
	for i := range next {
		if next[i].ID == id {
			prior = next[i].Active
			next[i].Active = !prior
			return next, prior, true
		}
	}
	return next, false, false
}

// RevertToggle returns a copy of list with the active flag of id set back to
// prior. A list that no longer holds id is returned unchanged.
func RevertToggle(list []domain.Document, id string, prior bool) []domain.Document {
	next := make([]domain.Document, len(list))
	copy(next, list)
	for i := range next {
		if next[i].ID == id {
			next[i].Active = prior
			break
		}
	}
	return next
}

func removeDocument(list []domain.Document, id string) []domain.Document {
	next := make([]domain.Document, 0, len(list))
	for _, doc := range list {
		if doc.ID != id {
			next = append(next, doc)
		}
	}
	return next
}

// DocumentList is the cached list of the owner's documents. The backend is
// the source of truth; the cache only moves ahead of it for toggles.
type DocumentList struct {
	gateway  ports.DocumentGateway
	creds    ports.CredentialSource
	notifier ports.Notifier
	metrics  ports.ViewMetrics

	perID *keyedMutex

	mu      sync.Mutex
	docs    []domain.Document
	loading bool
	closed  bool
}

func NewDocumentList(
	gateway ports.DocumentGateway,
	creds ports.CredentialSource,
	notifier ports.Notifier,
	metrics ports.ViewMetrics,
) *DocumentList {
	return &DocumentList{
		gateway:  gateway,
		creds:    creds,
		notifier: notifierOrNoop(notifier),
		metrics:  metricsOrNoop(metrics),
		perID:    newKeyedMutex(),
	}
}

func (l *DocumentList) Documents() []domain.Document {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Document, len(l.docs))
	copy(out, l.docs)
	return out
}

func (l *DocumentList) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Close detaches the view. Results that settle afterwards are dropped.
func (l *DocumentList) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

func (l *DocumentList) Refresh(ctx context.Context) error {
	l.mu.Lock()
	l.loading = true
	l.mu.Unlock()

	docs, err := l.gateway.ListDocuments(ctx, l.creds.Credentials(ctx))

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false
	if err != nil {
		slog.Warn("documents_refresh_failed", "error", err)
		return fmt.Errorf("refresh documents: %w", err)
	}
	if l.closed {
		return nil
	}
	l.docs = docs
	return nil
}

// Search filters the cached list by title, ignoring case. An empty query
// returns everything.
func (l *DocumentList) Search(query string) []domain.Document {
	needle := strings.ToLower(strings.TrimSpace(query))
	docs := l.Documents()
	if needle == "" {
		return docs
	}
	out := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		if strings.Contains(strings.ToLower(doc.Title), needle) {
			out = append(out, doc)
		}
	}
	return out
}

// ToggleActive flips the flag locally, then asks the backend. On any failure
// the flag goes back to the exact prior value.
func (l *DocumentList) ToggleActive(ctx context.Context, id string) error {
	unlock := l.perID.Lock(id)
	defer unlock()

	l.mu.Lock()
	next, prior, ok := ApplyToggle(l.docs, id)
	if !ok {
		l.mu.Unlock()
		return domain.WrapError(domain.ErrNotFound, "toggle document", fmt.Errorf("document %s is not in the list", id))
	}
	l.docs = next
	l.mu.Unlock()

	err := l.gateway.SetDocumentActive(ctx, l.creds.Credentials(ctx), id, !prior)
	if err == nil {
		return nil
	}

	l.mu.Lock()
	l.docs = RevertToggle(l.docs, id, prior)
	l.mu.Unlock()

	l.metrics.RecordRevert("toggle_active")
	slog.Warn("document_toggle_reverted", "document_id", id, "active", prior, "error", err)
	notifyError(l.notifier, domain.UserMessage(err, toggleFailedMessage))
	return fmt.Errorf("toggle document %s: %w", id, err)
}

// Delete removes the entry only after the backend confirms.
func (l *DocumentList) Delete(ctx context.Context, id string) error {
	unlock := l.perID.Lock(id)
	defer unlock()

	if err := l.gateway.DeleteDocument(ctx, l.creds.Credentials(ctx), id); err != nil {
		slog.Warn("document_delete_failed", "document_id", id, "error", err)
		notifyError(l.notifier, domain.UserMessage(err, deleteFailedMessage))
		return fmt.Errorf("delete document %s: %w", id, err)
	}

	l.mu.Lock()
	if !l.closed {
		l.docs = removeDocument(l.docs, id)
	}
	l.mu.Unlock()
	return nil
}
