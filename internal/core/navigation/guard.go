package navigation

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

const (
	RouteHome      = "/"
	RouteLogin     = "/login"
	RouteSignup    = "/signup"
	RouteDashboard = "/dashboard"
	RouteDocuments = "/documents"
	RouteChats     = "/chats"
	RouteUsage     = "/usage"
	RouteSettings  = "/settings"

	sharePrefix = "/chat/"
)

type Decision struct {
	Path     string
	Redirect string
}

func (d Decision) Allowed() bool {
	return d.Redirect == ""
}

// Target is where the caller should go: the requested path or the redirect.
func (d Decision) Target() string {
	if d.Redirect != "" {
		return d.Redirect
	}
	return d.Path
}

// Resolve applies the routing rule without touching storage.
func Resolve(path string, hasToken bool) Decision {
	clean := normalize(path)
	decision := Decision{Path: clean}

	switch {
	case !hasToken && !IsPublic(clean):
		decision.Redirect = RouteLogin
	case hasToken && (clean == RouteLogin || clean == RouteSignup):
		decision.Redirect = RouteDashboard
	}
	return decision
}

func IsPublic(path string) bool {
	switch path {
	case RouteHome, RouteLogin, RouteSignup:
		return true
	}
	return strings.HasPrefix(path, sharePrefix) && len(path) > len(sharePrefix)
}

// ShareRoute builds the public route of a shared document, optionally pinned
// to a conversation.
func ShareRoute(shareToken, chatID string) string {
	route := sharePrefix + url.PathEscape(shareToken)
	if chatID != "" {
		route += "?chatId=" + url.QueryEscape(chatID)
	}
	return route
}

func normalize(path string) string {
	p := strings.TrimSpace(path)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return RouteHome
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = RouteHome
		}
	}
	return p
}

// Guard reads the session slot once per navigation. It never validates the
// token; an expired token passes until an API call rejects it.
type Guard struct {
	store ports.KeyValueStore
}

func NewGuard(store ports.KeyValueStore) *Guard {
	return &Guard{store: store}
}

func (g *Guard) Check(ctx context.Context, path string) Decision {
	token, ok, err := g.store.Get(ctx, domain.SessionTokenKey)
	if err != nil {
		slog.Warn("session_read_failed", "path", path, "error", err)
		ok = false
	}
	decision := Resolve(path, ok && strings.TrimSpace(token) != "")
	if !decision.Allowed() {
		slog.Debug("route_redirect", "path", decision.Path, "redirect", decision.Redirect)
	}
	return decision
}
