package ports

import (
	"context"

	"github.com/oapi-codegen/runtime/types"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
)

// KeyValueStore is a durable string slot keyed by name. It backs the session
// token and the share-access tokens.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Clearer is a store that can drop everything it wrote, e.g. on logout.
type Clearer interface {
	Clear(ctx context.Context) error
}

// DocumentGateway talks to the document endpoints of the backend.
type DocumentGateway interface {
	ListDocuments(ctx context.Context, cred domain.Credentials) ([]domain.Document, error)
	UploadDocument(ctx context.Context, cred domain.Credentials, req domain.UploadRequest) (*domain.Document, error)
	DeleteDocument(ctx context.Context, cred domain.Credentials, id string) error
	SetDocumentActive(ctx context.Context, cred domain.Credentials, id string, active bool) error
}

// ChatGateway covers chat history and the ask endpoint.
type ChatGateway interface {
	ListChats(ctx context.Context, cred domain.Credentials) ([]domain.Chat, error)
	ChatHistory(ctx context.Context, chatID, shareToken string) ([]domain.ChatMessage, error)
	Ask(ctx context.Context, cred domain.Credentials, req domain.AskRequest) (*domain.AskResponse, error)
}

// ShareGateway verifies the password of a protected share link and returns a
// short-lived access token.
type ShareGateway interface {
	VerifySharePassword(ctx context.Context, shareToken, password string) (string, error)
}

type UsageGateway interface {
	Usage(ctx context.Context, cred domain.Credentials) (*domain.UsageSnapshot, error)
}

// BillingGateway returns the redirect URL of a hosted checkout.
type BillingGateway interface {
	CreateCheckoutSession(ctx context.Context, cred domain.Credentials, plan domain.Plan) (string, error)
}

type AuthGateway interface {
	Login(ctx context.Context, email, password string) (string, error)
	Signup(ctx context.Context, req domain.SignupRequest) (string, error)
}

// ProgressSubscriber opens the real-time progress channel of one document.
type ProgressSubscriber interface {
	SubscribeProgress(ctx context.Context, cred domain.Credentials, documentID string) (ProgressSubscription, error)
}

// ProgressSubscription is released with Close. Events is closed or stops
// delivering once the subscription ends.
type ProgressSubscription interface {
	Events() <-chan domain.ProgressEvent
	Close() error
}

// Notifier shows user-facing notices.
type Notifier interface {
	Notify(notice domain.Notice)
}

// ViewMetrics records view-model outcomes.
type ViewMetrics interface {
	RecordRevert(operation string)
	RecordUploadProgress(progress int)
	RecordUploadOutcome(outcome string)
}

// CredentialSource yields the credentials for the next data-access call.
type CredentialSource interface {
	Credentials(ctx context.Context) domain.Credentials
}

// FilePreflight rejects files the backend would not accept before any upload
// starts.
type FilePreflight interface {
	Check(file types.File) error
}
