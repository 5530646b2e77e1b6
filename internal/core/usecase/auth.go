package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

const (
	loginFailedMessage  = "Invalid email or password"
	signupFailedMessage = "Failed to create account"
)

// Auth issues and clears the session. It is the only writer of the token
// slot.
type Auth struct {
	gateway  ports.AuthGateway
	session  *Session
	now      func() time.Time
	onLogout []func(context.Context) error
}

func NewAuth(gateway ports.AuthGateway, session *Session) *Auth {
	return &Auth{gateway: gateway, session: session, now: time.Now}
}

func (a *Auth) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.WrapError(domain.ErrInvalidInput, "login", errors.New("email and password are required"))
	}
	token, err := a.gateway.Login(ctx, email, password)
	if err != nil {
		slog.Warn("login_failed", "email", email, "error", err)
		return &userFacingError{message: domain.UserMessage(err, loginFailedMessage), err: fmt.Errorf("login: %w", err)}
	}
	return a.session.Save(ctx, token)
}

func (a *Auth) Signup(ctx context.Context, name, email, password, confirm string) error {
	req := domain.SignupRequest{
		Name:     strings.TrimSpace(name),
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	switch {
	case req.Name == "" || req.Email == "" || req.Password == "":
		return domain.WrapError(domain.ErrInvalidInput, "signup", errors.New("all fields are required"))
	case password != confirm:
		return domain.WrapError(domain.ErrInvalidInput, "signup", errors.New("passwords do not match"))
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "signup", fmt.Errorf("invalid email: %w", err))
	}

	token, err := a.gateway.Signup(ctx, req)
	if err != nil {
		slog.Warn("signup_failed", "email", req.Email, "error", err)
		return &userFacingError{message: domain.UserMessage(err, signupFailedMessage), err: fmt.Errorf("signup: %w", err)}
	}
	if token == "" {
		return nil
	}
	return a.session.Save(ctx, token)
}

// OnLogout registers cleanup that runs after the session token is cleared,
// e.g. dropping share unlocks.
func (a *Auth) OnLogout(fn func(context.Context) error) {
	a.onLogout = append(a.onLogout, fn)
}

func (a *Auth) Logout(ctx context.Context) error {
	errs := []error{a.session.Clear(ctx)}
	for _, fn := range a.onLogout {
		errs = append(errs, fn(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("logout_incomplete", "error", err)
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Whoami decodes the claims of the stored token for display. The signature
// is not checked; the backend stays the only judge of the token.
func (a *Auth) Whoami(ctx context.Context) (domain.Identity, error) {
	token, ok, err := a.session.Token(ctx)
	if err != nil {
		return domain.Identity{}, err
	}
	if !ok {
		return domain.Identity{}, domain.WrapError(domain.ErrUnauthorized, "whoami", errors.New("not signed in"))
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return domain.Identity{}, domain.WrapError(domain.ErrInvalidInput, "whoami", fmt.Errorf("decode token: %w", err))
	}

	id := domain.Identity{}
	if sub, err := claims.GetSubject(); err == nil {
		id.Subject = sub
	}
	id.Subject = firstClaim(claims, id.Subject, "id", "userId", "_id")
	id.Email = firstClaim(claims, "", "email")
	id.Name = firstClaim(claims, "", "name")
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
		id.Expired = a.now().After(exp.Time)
	}
	return id, nil
}

func firstClaim(claims jwt.MapClaims, current string, keys ...string) string {
	if current != "" {
		return current
	}
	for _, key := range keys {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
