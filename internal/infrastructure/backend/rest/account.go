package rest

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
)

type tokenReply struct {
	Token       string `json:"token"`
	AccessToken string `json:"accessToken"`
}

func (r tokenReply) value() string {
	return firstNonEmpty(r.Token, r.AccessToken)
}

func (c *Client) VerifySharePassword(ctx context.Context, shareToken, password string) (string, error) {
	if strings.TrimSpace(shareToken) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "verify_share_password", errors.New("share token is empty"))
	}

	var reply tokenReply
	if err := c.do(ctx, request{
		operation: "verify_share_password",
		method:    http.MethodPost,
		path:      "/api/documents/public/" + url.PathEscape(shareToken) + "/verify",
		payload:   map[string]string{"password": password},
		out:       &reply,
	}); err != nil {
		return "", err
	}
	if reply.value() == "" {
		return "", domain.WrapError(domain.ErrRejected, "verify_share_password", errors.New("response has no token"))
	}
	return reply.value(), nil
}

func (c *Client) Usage(ctx context.Context, cred domain.Credentials) (*domain.UsageSnapshot, error) {
	var raw wireUsage
	if err := c.do(ctx, request{
		operation: "usage",
		method:    http.MethodGet,
		path:      "/api/analytics",
		cred:      cred,
		out:       &raw,
	}); err != nil {
		return nil, err
	}
	snap := raw.toDomain()
	return &snap, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, cred domain.Credentials, plan domain.Plan) (string, error) {
	var reply struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, request{
		operation: "create_checkout_session",
		method:    http.MethodPost,
		path:      "/api/payment/create-checkout-session",
		cred:      cred,
		payload:   map[string]string{"plan": string(plan)},
		out:       &reply,
	}); err != nil {
		return "", err
	}
	if strings.TrimSpace(reply.URL) == "" {
		return "", domain.WrapError(domain.ErrRejected, "create_checkout_session", errors.New("response has no redirect url"))
	}
	return reply.URL, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var reply tokenReply
	if err := c.do(ctx, request{
		operation: "login",
		method:    http.MethodPost,
		path:      "/api/auth/login",
		payload:   map[string]string{"email": email, "password": password},
		out:       &reply,
	}); err != nil {
		return "", err
	}
	if reply.value() == "" {
		return "", domain.WrapError(domain.ErrRejected, "login", errors.New("response has no token"))
	}
	return reply.value(), nil
}

// Signup may or may not return a token; an empty token is not an error.
func (c *Client) Signup(ctx context.Context, req domain.SignupRequest) (string, error) {
	var reply tokenReply
	if err := c.do(ctx, request{
		operation: "signup",
		method:    http.MethodPost,
		path:      "/api/auth/signup",
		payload: map[string]string{
			"name":     req.Name,
			"email":    req.Email,
			"password": req.Password,
		},
		out: &reply,
	}); err != nil {
		return "", err
	}
	return reply.value(), nil
}
