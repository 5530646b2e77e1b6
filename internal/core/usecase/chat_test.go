package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

type chatGatewayFake struct {
	mu sync.Mutex

	history    []domain.ChatMessage
	historyErr error
	chats      []domain.Chat
	chatsErr   error

	answer       *domain.AskResponse
	askErr       error
	askHook      func()
	asked        []domain.AskRequest
	askCreds     []domain.Credentials
	historyCalls []string
}

func (f *chatGatewayFake) ListChats(context.Context, domain.Credentials) ([]domain.Chat, error) {
	return f.chats, f.chatsErr
}

func (f *chatGatewayFake) ChatHistory(_ context.Context, chatID, shareToken string) ([]domain.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls = append(f.historyCalls, chatID+"|"+shareToken)
	return f.history, f.historyErr
}

func (f *chatGatewayFake) Ask(_ context.Context, cred domain.Credentials, req domain.AskRequest) (*domain.AskResponse, error) {
	f.mu.Lock()
	f.asked = append(f.asked, req)
	f.askCreds = append(f.askCreds, cred)
	hook := f.askHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if f.askErr != nil {
		return nil, f.askErr
	}
	return f.answer, nil
}

func newTestChatService(gateway *chatGatewayFake, onRoute func(string)) *ChatService {
	counter := 0
	return NewChatService(gateway, func(string) ports.CredentialSource {
		return staticCreds{bearer: "share-access"}
	}, ChatOptions{
		Now: func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) },
		NewID: func() string {
			counter++
			return fmt.Sprintf("m%d", counter)
		},
		OnRoute: onRoute,
	})
}

func TestFreshChatStartsWithSingleGreeting(t *testing.T) {
	gateway := &chatGatewayFake{}
	view := newTestChatService(gateway, nil).Open("share-1", "")

	if err := view.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	msgs := view.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one message, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleAssistant || msgs[0].Content != domain.DefaultGreeting {
		t.Fatalf("unexpected greeting %+v", msgs[0])
	}
	if len(gateway.historyCalls) != 0 {
		t.Fatalf("fresh chat must not fetch history")
	}
}

func TestResumedChatReplacesGreeting(t *testing.T) {
	gateway := &chatGatewayFake{history: []domain.ChatMessage{
		{ID: "h1", Role: domain.RoleUser, Content: "Hi"},
		{ID: "h2", Role: domain.RoleAssistant, Content: "Hello"},
	}}
	view := newTestChatService(gateway, nil).Open("share-1", "chat-9")

	if err := view.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	msgs := view.Messages()
	if len(msgs) != 2 || msgs[0].ID != "h1" || msgs[1].ID != "h2" {
		t.Fatalf("unexpected history %+v", msgs)
	}
	if gateway.historyCalls[0] != "chat-9|share-1" {
		t.Fatalf("unexpected history call %v", gateway.historyCalls)
	}
}

func TestResumedChatLoadFailureKeepsGreeting(t *testing.T) {
	gateway := &chatGatewayFake{historyErr: domain.WrapError(domain.ErrNotFound, "chat history", errors.New("404"))}
	view := newTestChatService(gateway, nil).Open("share-1", "chat-9")

	if err := view.Load(context.Background()); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if msgs := view.Messages(); len(msgs) != 1 || msgs[0].Content != domain.DefaultGreeting {
		t.Fatalf("expected greeting to stay, got %+v", msgs)
	}
}

func TestSendInResumedChatGrowsByTwo(t *testing.T) {
	const question = "What is your return policy?"
	cases := []struct {
		name   string
		answer *domain.AskResponse
		err    error
		reply  string
	}{
		{name: "success", answer: &domain.AskResponse{Answer: "30 days, no questions asked."}, reply: "30 days, no questions asked."},
		{name: "empty answer", answer: &domain.AskResponse{Answer: "  "}, reply: domain.EmptyAnswerReply},
		{name: "transport failure", err: domain.WrapError(domain.ErrTemporary, "ask", errors.New("connection refused")), reply: domain.ConnectionErrorReply},
		{name: "server error", err: domain.WrapError(domain.ErrRejected, "ask", errors.New("status 500")), reply: domain.EmptyAnswerReply},
		{name: "inactive document", err: domain.WrapError(domain.ErrDocumentUnavailable, "ask", errors.New("status 403")), reply: domain.UnavailableReply},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gateway := &chatGatewayFake{
				history: []domain.ChatMessage{{ID: "h1", Role: domain.RoleAssistant, Content: "Earlier"}},
				answer:  tc.answer,
				askErr:  tc.err,
			}
			view := newTestChatService(gateway, nil).Open("share-1", "chat-9")
			if err := view.Load(context.Background()); err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			before := len(view.Messages())

			var sawUser bool
			gateway.askHook = func() {
				msgs := view.Messages()
				sawUser = len(msgs) == before+1 && msgs[before].Role == domain.RoleUser
			}

			err := view.Send(context.Background(), question)
			if (err != nil) != (tc.err != nil) {
				t.Fatalf("Send() error = %v, want error %v", err, tc.err != nil)
			}
			if !sawUser {
				t.Fatalf("user message must be appended before the request settles")
			}
			msgs := view.Messages()
			if len(msgs) != before+2 {
				t.Fatalf("transcript grew by %d, want 2", len(msgs)-before)
			}
			if msgs[before].Content != question || msgs[before].Role != domain.RoleUser {
				t.Fatalf("unexpected user entry %+v", msgs[before])
			}
			if msgs[before+1].Content != tc.reply || msgs[before+1].Role != domain.RoleAssistant {
				t.Fatalf("unexpected reply %+v", msgs[before+1])
			}
			asked := gateway.asked[0]
			if asked.Question != question || asked.ShareToken != "share-1" || asked.ChatID != "chat-9" {
				t.Fatalf("unexpected ask request %+v", asked)
			}
			if gateway.askCreds[0].Bearer != "share-access" {
				t.Fatalf("expected share-scoped credentials, got %+v", gateway.askCreds[0])
			}
		})
	}
}

func TestSendIgnoresBlankText(t *testing.T) {
	gateway := &chatGatewayFake{answer: &domain.AskResponse{Answer: "x"}}
	view := newTestChatService(gateway, nil).Open("share-1", "")

	if err := view.Send(context.Background(), "   \n\t"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(view.Messages()) != 1 || len(gateway.asked) != 0 {
		t.Fatalf("blank text must not change the transcript")
	}
}

func TestSendIsNotReentrant(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	gateway := &chatGatewayFake{answer: &domain.AskResponse{Answer: "first"}}
	gateway.askHook = func() {
		close(entered)
		<-release
	}
	view := newTestChatService(gateway, nil).Open("share-1", "")

	done := make(chan error, 1)
	go func() { done <- view.Send(context.Background(), "one") }()
	<-entered

	if !view.InFlight() {
		t.Fatalf("expected request in flight")
	}
	if err := view.Send(context.Background(), "two"); !domain.IsKind(err, domain.ErrRequestInFlight) {
		t.Fatalf("expected in-flight error, got %v", err)
	}
	if len(view.Messages()) != 2 {
		t.Fatalf("second send must not append, got %d messages", len(view.Messages()))
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(view.Messages()) != 3 {
		t.Fatalf("expected greeting, question and answer, got %d", len(view.Messages()))
	}
}

func TestFreshChatAdoptsAssignedID(t *testing.T) {
	var routes []string
	gateway := &chatGatewayFake{answer: &domain.AskResponse{Answer: "Sure.", ChatID: "c-77"}}
	view := newTestChatService(gateway, func(route string) { routes = append(routes, route) }).Open("share-1", "")

	if err := view.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if view.ChatID() != "c-77" {
		t.Fatalf("expected chat id to be adopted, got %q", view.ChatID())
	}
	if len(routes) != 1 || routes[0] != "/chat/share-1?chatId=c-77" {
		t.Fatalf("unexpected route updates %v", routes)
	}

	gateway.answer = &domain.AskResponse{Answer: "Again.", ChatID: "c-77"}
	if err := view.Send(context.Background(), "again"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(routes) != 1 {
		t.Fatalf("route must only change when the id changes, got %v", routes)
	}
	if gateway.asked[1].ChatID != "c-77" {
		t.Fatalf("second ask must carry the chat id, got %+v", gateway.asked[1])
	}
}

func TestAskOnceReturnsReply(t *testing.T) {
	gateway := &chatGatewayFake{answer: &domain.AskResponse{Answer: "42"}}
	svc := newTestChatService(gateway, nil)

	got, err := svc.AskOnce(context.Background(), "share-1", "meaning?")
	if err != nil || got != "42" {
		t.Fatalf("AskOnce() = %q, %v", got, err)
	}
}

func TestAskOnceReturnsSyntheticReplyOnFailure(t *testing.T) {
	gateway := &chatGatewayFake{askErr: domain.WrapError(domain.ErrDocumentUnavailable, "ask", errors.New("status 403"))}
	svc := newTestChatService(gateway, nil)

	got, err := svc.AskOnce(context.Background(), "share-1", "anything?")
	if !domain.IsKind(err, domain.ErrDocumentUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if got != domain.UnavailableReply {
		t.Fatalf("AskOnce() reply = %q", got)
	}

	if got, err := svc.AskOnce(context.Background(), "share-1", " "); got != "" || !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("blank question: got %q, %v", got, err)
	}
}
