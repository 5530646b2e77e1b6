package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oapi-codegen/runtime/types"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/infrastructure/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	validator, err := NewValidatorFor(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("NewValidatorFor() error = %v", err)
	}
	client, err := NewWithOptions(server.URL, Options{Timeout: 5 * time.Second, Validator: validator})
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}
	return client, server
}

var userCred = domain.Credentials{Bearer: "user-token"}

func TestListDocumentsDecodesBothIDShapes(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/documents" || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer user-token" {
			t.Errorf("unexpected authorization header %q", got)
		}
		_, _ = w.Write([]byte(`[
			{"_id":"d1","title":"Handbook","status":"completed","createdAt":"2026-01-02T03:04:05.000Z","shareToken":"s1","visibility":"public","isActive":false},
			{"id":"d2","title":"Policy","status":"weird"},
			{"id":"d3","title":"Draft","visibility":"secret"}
		]`))
	})

	docs, err := client.ListDocuments(context.Background(), userCred)
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}
	if docs[0].ID != "d1" || docs[0].Active || docs[0].Status != domain.StatusCompleted || docs[0].CreatedAt.Year() != 2026 {
		t.Fatalf("unexpected first document %+v", docs[0])
	}
	if docs[1].ID != "d2" || !docs[1].Active || docs[1].Status != domain.StatusPending || docs[1].Visibility != "" {
		t.Fatalf("unexpected second document %+v", docs[1])
	}
	if docs[0].Visibility != domain.VisibilityPublic || docs[2].Visibility != "" {
		t.Fatalf("visibility must be kept as sent or left empty, got %q and %q", docs[0].Visibility, docs[2].Visibility)
	}
}

func TestListDocumentsAcceptsWrappedList(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"documents":[{"_id":"d1","title":"A"}]}`))
	})

	docs, err := client.ListDocuments(context.Background(), userCred)
	if err != nil || len(docs) != 1 || docs[0].ID != "d1" {
		t.Fatalf("ListDocuments() = %+v, %v", docs, err)
	}
}

func TestUploadSendsMultipartForm(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/documents/upload" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		content, _ := io.ReadAll(file)
		if header.Filename != "guide.pdf" || string(content) != "%PDF-1.4" {
			t.Errorf("unexpected file %q %q", header.Filename, content)
		}
		if r.FormValue("visibility") != "protected" || r.FormValue("protectionType") != "password" || r.FormValue("password") != "s3cret" {
			t.Errorf("unexpected fields %v", r.MultipartForm.Value)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"document":{"_id":"new-1","status":"processing"}}`))
	})

	var file types.File
	file.InitFromBytes([]byte("%PDF-1.4"), "guide.pdf")
	doc, err := client.UploadDocument(context.Background(), userCred, domain.UploadRequest{
		File:       file,
		Title:      "Guide",
		Visibility: domain.VisibilityProtected,
		Protection: domain.ProtectionPassword,
		Password:   "s3cret",
	})
	if err != nil {
		t.Fatalf("UploadDocument() error = %v", err)
	}
	if doc.ID != "new-1" || doc.Title != "Guide" || doc.Status != domain.StatusProcessing || doc.Visibility != domain.VisibilityProtected {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestSetDocumentActiveSendsTargetFlag(t *testing.T) {
	var body map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/documents/d1/status" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	if err := client.SetDocumentActive(context.Background(), userCred, "d1", false); err != nil {
		t.Fatalf("SetDocumentActive() error = %v", err)
	}
	if body["isActive"] != false {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestStatusCodesMapToDomainKinds(t *testing.T) {
	cases := []struct {
		status int
		kind   error
	}{
		{status: http.StatusUnauthorized, kind: domain.ErrUnauthorized},
		{status: http.StatusForbidden, kind: domain.ErrForbidden},
		{status: http.StatusNotFound, kind: domain.ErrNotFound},
		{status: http.StatusTooManyRequests, kind: domain.ErrTemporary},
		{status: http.StatusBadGateway, kind: domain.ErrTemporary},
		{status: http.StatusConflict, kind: domain.ErrRejected},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"message":"Document is locked"}`))
			})

			err := client.DeleteDocument(context.Background(), userCred, "d1")
			if !domain.IsKind(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
			if got := domain.UserMessage(err, "fallback"); got != "Document is locked" {
				t.Fatalf("expected server message, got %q", got)
			}
		})
	}
}

func TestAskErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		kind   error
	}{
		{name: "inactive", status: http.StatusForbidden, kind: domain.ErrDocumentUnavailable},
		{name: "private", status: http.StatusNotFound, kind: domain.ErrDocumentUnavailable},
		{name: "server error", status: http.StatusInternalServerError, kind: domain.ErrRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			})

			_, err := client.Ask(context.Background(), domain.Credentials{}, domain.AskRequest{Question: "hi", ShareToken: "s1"})
			if !domain.IsKind(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestAskTransportFailureIsTemporary(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	_, err := client.Ask(context.Background(), domain.Credentials{}, domain.AskRequest{Question: "hi"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestAskReturnsAnswerAndChatID(t *testing.T) {
	var payload map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if r.Header.Get("Authorization") != "" {
			t.Errorf("anonymous ask must not carry a bearer")
		}
		_, _ = w.Write([]byte(`{"answer":"Thirty days.","chatId":"c-1"}`))
	})

	resp, err := client.Ask(context.Background(), domain.Credentials{}, domain.AskRequest{Question: "Returns?", ShareToken: "s1"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if resp.Answer != "Thirty days." || resp.ChatID != "c-1" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if payload["shareToken"] != "s1" || payload["question"] != "Returns?" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if _, ok := payload["chatId"]; ok {
		t.Fatalf("fresh chat must not send a chat id")
	}
}

func TestChatHistoryPassesShareToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/c-1" || r.URL.Query().Get("shareToken") != "s1" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"messages":[{"_id":"m1","role":"user","content":"Hi"},{"_id":"m2","type":"assistant","content":"Hello"}]}`))
	})

	msgs, err := client.ChatHistory(context.Background(), "c-1", "s1")
	if err != nil {
		t.Fatalf("ChatHistory() error = %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != domain.RoleUser || msgs[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected messages %+v", msgs)
	}
}

func TestListChatsDecodesDocumentRef(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"_id":"c1","document":{"_id":"d1","title":"Handbook","shareToken":"s1"},"updatedAt":"2026-02-01T10:00:00Z","messages":[{"role":"user","content":"Hi"}]}]`))
	})

	chats, err := client.ListChats(context.Background(), userCred)
	if err != nil {
		t.Fatalf("ListChats() error = %v", err)
	}
	if len(chats) != 1 || chats[0].Document.ShareToken != "s1" || chats[0].LastMessage() != "Hi" {
		t.Fatalf("unexpected chats %+v", chats)
	}
}

func TestVerifySharePasswordReturnsToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/documents/public/s1/verify" {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "open" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Incorrect password"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"access-1"}`))
	})

	token, err := client.VerifySharePassword(context.Background(), "s1", "open")
	if err != nil || token != "access-1" {
		t.Fatalf("VerifySharePassword() = %q, %v", token, err)
	}
	if _, err := client.VerifySharePassword(context.Background(), "s1", "wrong"); !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestUsageDecodesSnapshot(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"plan":"Premium","tokensUsed":1500,"maxTokens":100000,"history":[{"document":"Handbook","tokens":42,"date":"2026-02-01T10:00:00Z"}]}`))
	})

	snap, err := client.Usage(context.Background(), userCred)
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if snap.Plan != domain.PlanPremium || snap.TokensUsed != 1500 || snap.MaxTokens != 100000 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(snap.History) != 1 || snap.History[0].Tokens != 42 || snap.History[0].ID == "" {
		t.Fatalf("unexpected history %+v", snap.History)
	}
}

func TestContractViolationIsNotSent(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"url":"https://pay.example/x"}`))
	})

	_, err := client.CreateCheckoutSession(context.Background(), userCred, domain.PlanEnterprise)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("request violating the contract must not reach the server")
	}

	url, err := client.CreateCheckoutSession(context.Background(), userCred, domain.PlanPremium)
	if err != nil || url != "https://pay.example/x" {
		t.Fatalf("CreateCheckoutSession() = %q, %v", url, err)
	}
}

func TestLoginAndSignup(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			_, _ = w.Write([]byte(`{"token":"jwt-1"}`))
		case "/api/auth/signup":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	})

	token, err := client.Login(context.Background(), "a@b.c", "pw")
	if err != nil || token != "jwt-1" {
		t.Fatalf("Login() = %q, %v", token, err)
	}
	token, err = client.Signup(context.Background(), domain.SignupRequest{Name: "A", Email: "a@b.c", Password: "pw"})
	if err != nil || token != "" {
		t.Fatalf("Signup() = %q, %v", token, err)
	}
}

func TestOpenBreakerIsTemporary(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := resilience.DefaultConfig()
	cfg.RateLimit = 0
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerOpenTimeout = time.Minute
	client, err := NewWithOptions(server.URL, Options{Executor: resilience.NewExecutor(cfg)})
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		_ = client.DeleteDocument(context.Background(), userCred, "d1")
	}
	err = client.DeleteDocument(context.Background(), userCred, "d1")
	if !domain.IsKind(err, domain.ErrTemporary) || !strings.Contains(err.Error(), "open") {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("expected the open breaker to short-circuit, got %d hits", hits)
	}
}

type observerFake struct {
	calls []string
}

func (o *observerFake) ObserveAPICall(operation, status string, _ time.Duration) {
	o.calls = append(o.calls, operation+":"+status)
}

func TestObserverSeesEveryCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	observer := &observerFake{}
	client, err := NewWithOptions(server.URL, Options{Observer: observer})
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}
	_, _ = client.ListDocuments(context.Background(), userCred)
	_ = client.DeleteDocument(context.Background(), userCred, "d1")

	if len(observer.calls) != 2 || observer.calls[0] != "list_documents:ok" || observer.calls[1] != "delete_document:404" {
		t.Fatalf("unexpected observations %v", observer.calls)
	}
}

func TestNewRejectsNonHTTPURL(t *testing.T) {
	if _, err := New("ftp://example.com"); err == nil {
		t.Fatalf("expected error for non-http url")
	}
}
