package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

const (
	IncorrectPasswordMessage = "Incorrect password"
	verifyFailedMessage      = "Failed to verify password. Please try again."
)

// ShareAccess verifies protected share links and keeps the returned access
// tokens for the rest of the session.
type ShareAccess struct {
	gateway  ports.ShareGateway
	store    ports.KeyValueStore
	fallback ports.CredentialSource
}

func NewShareAccess(gateway ports.ShareGateway, store ports.KeyValueStore, fallback ports.CredentialSource) *ShareAccess {
	return &ShareAccess{gateway: gateway, store: store, fallback: fallback}
}

// Verify returns the user-facing message on failure through the error's
// UserMessage.
func (s *ShareAccess) Verify(ctx context.Context, shareToken, password string) error {
	if strings.TrimSpace(shareToken) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "verify share password", errors.New("share token is empty"))
	}
	if strings.TrimSpace(password) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "verify share password", errors.New("password is empty"))
	}

	token, err := s.gateway.VerifySharePassword(ctx, shareToken, password)
	if err != nil {
		slog.Warn("share_verify_failed", "share_token", shareToken, "error", err)
		return &userFacingError{
			message: failureMessage(err, IncorrectPasswordMessage, verifyFailedMessage),
			err:     fmt.Errorf("verify share password: %w", err),
		}
	}
	if err := s.store.Set(ctx, domain.ShareAccessKey(shareToken), token); err != nil {
		return fmt.Errorf("store share access: %w", err)
	}
	return nil
}

// Forget drops every stored share unlock. Stores that cannot enumerate
// their entries keep them until they expire.
func (s *ShareAccess) Forget(ctx context.Context) error {
	clearer, ok := s.store.(ports.Clearer)
	if !ok {
		return nil
	}
	if err := clearer.Clear(ctx); err != nil {
		return fmt.Errorf("forget share access: %w", err)
	}
	return nil
}

// AccessToken returns the stored access token of a share link, if any.
func (s *ShareAccess) AccessToken(ctx context.Context, shareToken string) (string, bool) {
	token, ok, err := s.store.Get(ctx, domain.ShareAccessKey(shareToken))
	if err != nil {
		slog.Warn("share_access_read_failed", "share_token", shareToken, "error", err)
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

// CredentialsFor prefers the share-scoped access token, then the account
// session, then an anonymous call.
func (s *ShareAccess) CredentialsFor(shareToken string) ports.CredentialSource {
	return shareCredentials{access: s, shareToken: shareToken}
}

type shareCredentials struct {
	access     *ShareAccess
	shareToken string
}

func (c shareCredentials) Credentials(ctx context.Context) domain.Credentials {
	if token, ok := c.access.AccessToken(ctx, c.shareToken); ok {
		return domain.Credentials{Bearer: token}
	}
	if c.access.fallback != nil {
		return c.access.fallback.Credentials(ctx)
	}
	return domain.Credentials{}
}

// userFacingError carries the message a view should show next to the wrapped
// cause.
type userFacingError struct {
	message string
	err     error
}

func (e *userFacingError) Error() string       { return e.err.Error() }
func (e *userFacingError) Unwrap() error       { return e.err }
func (e *userFacingError) UserMessage() string { return e.message }
