package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

// Session owns the durable token slot. Reads are concurrent; only auth
// writes.
type Session struct {
	store ports.KeyValueStore
}

func NewSession(store ports.KeyValueStore) *Session {
	return &Session{store: store}
}

func (s *Session) Token(ctx context.Context) (string, bool, error) {
	token, ok, err := s.store.Get(ctx, domain.SessionTokenKey)
	if err != nil {
		return "", false, fmt.Errorf("read session token: %w", err)
	}
	token = strings.TrimSpace(token)
	return token, ok && token != "", nil
}

// Credentials never fails: an unreadable slot means an anonymous call, and
// the backend decides what that is allowed to do.
func (s *Session) Credentials(ctx context.Context) domain.Credentials {
	token, ok, err := s.Token(ctx)
	if err != nil {
		slog.Warn("session_read_failed", "error", err)
		return domain.Credentials{}
	}
	if !ok {
		return domain.Credentials{}
	}
	return domain.Credentials{Bearer: token}
}

func (s *Session) Save(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save session", fmt.Errorf("token is empty"))
	}
	if err := s.store.Set(ctx, domain.SessionTokenKey, token); err != nil {
		return fmt.Errorf("write session token: %w", err)
	}
	return nil
}

func (s *Session) Clear(ctx context.Context) error {
	if err := s.store.Delete(ctx, domain.SessionTokenKey); err != nil {
		return fmt.Errorf("clear session token: %w", err)
	}
	return nil
}
