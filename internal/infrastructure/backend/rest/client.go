package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/kirillkom/prashnly-client/internal/core/ports"
	"github.com/kirillkom/prashnly-client/internal/infrastructure/backend/rest/contract"
	"github.com/kirillkom/prashnly-client/internal/infrastructure/resilience"
)

var (
	_ ports.DocumentGateway = (*Client)(nil)
	_ ports.ChatGateway     = (*Client)(nil)
	_ ports.ShareGateway    = (*Client)(nil)
	_ ports.UsageGateway    = (*Client)(nil)
	_ ports.BillingGateway  = (*Client)(nil)
	_ ports.AuthGateway     = (*Client)(nil)
)

// CallObserver is told about every finished API call.
type CallObserver interface {
	ObserveAPICall(operation string, status string, duration time.Duration)
}

type Options struct {
	Timeout  time.Duration
	Executor *resilience.Executor
	// Validator checks every request against the api contract before it is
	// sent. Nil disables the check.
	Validator *contract.Validator
	Observer  CallObserver
	// HTTPClient replaces the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client is the API gateway: every call goes to one base URL, carries the
// caller's bearer when there is one and returns typed domain errors.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	executor   *resilience.Executor
	validator  *contract.Validator
	observer   CallObserver
}

func New(baseURL string) (*Client, error) {
	return NewWithOptions(baseURL, Options{})
}

func NewWithOptions(baseURL string, opts Options) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("api url %q must be http or https", baseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		httpClient = &http.Client{Timeout: timeout, Jar: jar}
	}

	return &Client{
		baseURL:    parsed,
		httpClient: httpClient,
		executor:   opts.Executor,
		validator:  opts.Validator,
		observer:   opts.Observer,
	}, nil
}

// BasePath is the path prefix of the API, for the contract validator.
func (c *Client) BasePath() string {
	return c.baseURL.Path
}

// NewValidatorFor builds a contract validator matching the client's base URL.
func NewValidatorFor(ctx context.Context, baseURL string) (*contract.Validator, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	return contract.NewValidator(ctx, parsed.Path)
}

// endpoint joins the base URL with an already escaped path.
func (c *Client) endpoint(escapedPath string, query url.Values) string {
	u := *c.baseURL
	u.RawPath = c.baseURL.EscapedPath() + escapedPath
	if unescaped, err := url.PathUnescape(u.RawPath); err == nil {
		u.Path = unescaped
	} else {
		u.Path = u.RawPath
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
