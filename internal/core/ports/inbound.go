package ports

import (
	"context"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
)

// DocumentLister is the read side of the document list used by tool adapters.
type DocumentLister interface {
	Refresh(ctx context.Context) error
	Documents() []domain.Document
}

// QuestionAsker answers a single question about a shared document.
type QuestionAsker interface {
	AskOnce(ctx context.Context, shareToken, question string) (string, error)
}

// UsageReader loads the usage snapshot.
type UsageReader interface {
	Load(ctx context.Context) (*domain.UsageSnapshot, error)
}
