// Package mcpadapter exposes the document tools over the Model Context
// Protocol so assistants can list, ask and check usage on the user's behalf.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/navigation"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
	"github.com/kirillkom/prashnly-client/internal/core/usecase"
)

const notSignedInMessage = "Not signed in. Run `prashnly login` first."

// RouteGuard decides whether a tool may reach a route.
type RouteGuard interface {
	Check(ctx context.Context, path string) navigation.Decision
}

type Tools struct {
	Guard     RouteGuard
	Documents func() ports.DocumentLister
	Asker     ports.QuestionAsker
	Usage     func() ports.UsageReader
	Now       func() time.Time
}

type documentItem struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	Active     bool      `json:"active"`
	Visibility string    `json:"visibility,omitempty"`
	ShareToken string    `json:"share_token,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// NewServer registers the tools on a fresh MCP server.
func NewServer(name, version string, tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List the signed-in user's documents with their processing status and share tokens."),
		mcp.WithString("query", mcp.Description("Only documents whose title contains this text")),
		mcp.WithBoolean("active_only", mcp.Description("Skip documents that are switched off")),
	), tools.ListDocuments)

	s.AddTool(mcp.NewTool("ask_document",
		mcp.WithDescription("Ask a question about a shared document and return the answer."),
		mcp.WithString("share_token", mcp.Required(), mcp.Description("Share token of the document")),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question to ask")),
	), tools.AskDocument)

	s.AddTool(mcp.NewTool("usage_summary",
		mcp.WithDescription("Show the plan, token usage and remaining quota of the signed-in user."),
	), tools.UsageSummary)

	return s
}

// ServeStdio blocks serving the protocol on stdin and stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func (t *Tools) allowed(ctx context.Context, route string) bool {
	if t.Guard == nil {
		return true
	}
	return t.Guard.Check(ctx, route).Allowed()
}

func (t *Tools) ListDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !t.allowed(ctx, navigation.RouteDocuments) {
		return mcp.NewToolResultError(notSignedInMessage), nil
	}
	query := strings.ToLower(strings.TrimSpace(req.GetString("query", "")))
	activeOnly := req.GetBool("active_only", false)

	list := t.Documents()
	if err := list.Refresh(ctx); err != nil {
		slog.Warn("mcp_list_documents_failed", "error", err)
		return mcp.NewToolResultError(domain.UserMessage(err, "Failed to load documents")), nil
	}

	items := make([]documentItem, 0)
	for _, doc := range list.Documents() {
		if activeOnly && !doc.Active {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(doc.Title), query) {
			continue
		}
		items = append(items, documentItem{
			ID:         doc.ID,
			Title:      doc.Title,
			Status:     string(doc.Status),
			Active:     doc.Active,
			Visibility: string(doc.Visibility),
			ShareToken: doc.ShareToken,
			CreatedAt:  doc.CreatedAt,
		})
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode documents: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func (t *Tools) AskDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	shareToken, err := req.RequireString("share_token")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(shareToken) == "" {
		return mcp.NewToolResultError("share_token must not be empty"), nil
	}
	if !t.allowed(ctx, navigation.ShareRoute(shareToken, "")) {
		return mcp.NewToolResultError(notSignedInMessage), nil
	}

	answer, err := t.Asker.AskOnce(ctx, shareToken, question)
	if err != nil {
		slog.Warn("mcp_ask_failed", "share_token", shareToken, "error", err)
		if answer == "" {
			answer = domain.UserMessage(err, "question is empty")
		}
		return mcp.NewToolResultError(answer), nil
	}
	return mcp.NewToolResultText(answer), nil
}

func (t *Tools) UsageSummary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !t.allowed(ctx, navigation.RouteUsage) {
		return mcp.NewToolResultError(notSignedInMessage), nil
	}
	snap, err := t.Usage().Load(ctx)
	if err != nil {
		return mcp.NewToolResultError(usecase.UsageFailedMessage), nil
	}

	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	summary := usecase.Summarize(*snap, now())

	var b strings.Builder
	fmt.Fprintf(&b, "Plan: %s\n", summary.Plan)
	fmt.Fprintf(&b, "Tokens used: %s of %s\n", summary.TokensUsed, summary.MaxTokens)
	fmt.Fprintf(&b, "Tokens left: %s\n", summary.TokensLeft)
	b.WriteString(summary.Summary)
	for i, row := range summary.Rows {
		if i == 0 {
			b.WriteString("\n\nRecent usage:")
		}
		fmt.Fprintf(&b, "\n- %s: %s tokens (%s)", row.Document, row.Tokens, row.When)
	}
	return mcp.NewToolResultText(b.String()), nil
}
