package usecase

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
)

type documentGatewayFake struct {
	mu sync.Mutex

	list    []domain.Document
	listErr error

	setActiveErr  map[string]error
	setActiveHook func(id string)
	setActiveArgs []bool
	deleteErr     error
	deleted       []string
	uploadReq     *domain.UploadRequest
	uploadDoc     *domain.Document
	uploadErr     error
	uploadHook    func()
	lastCreds     domain.Credentials
}

func (f *documentGatewayFake) ListDocuments(_ context.Context, cred domain.Credentials) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCreds = cred
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Document, len(f.list))
	copy(out, f.list)
	return out, nil
}

func (f *documentGatewayFake) UploadDocument(_ context.Context, cred domain.Credentials, req domain.UploadRequest) (*domain.Document, error) {
	if f.uploadHook != nil {
		f.uploadHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCreds = cred
	reqCopy := req
	f.uploadReq = &reqCopy
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return f.uploadDoc, nil
}

func (f *documentGatewayFake) DeleteDocument(_ context.Context, _ domain.Credentials, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *documentGatewayFake) SetDocumentActive(_ context.Context, _ domain.Credentials, id string, active bool) error {
	f.mu.Lock()
	hook := f.setActiveHook
	err := f.setActiveErr[id]
	f.setActiveArgs = append(f.setActiveArgs, active)
	f.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return err
}

func seededDocs() []domain.Document {
	return []domain.Document{
		{ID: "a", Title: "Return Policy", Status: domain.StatusCompleted, Active: true},
		{ID: "b", Title: "Pricing sheet", Status: domain.StatusProcessing, Active: false},
		{ID: "c", Title: "Onboarding guide", Status: domain.StatusPending, Active: true},
	}
}

func newSeededList(t *testing.T, gateway *documentGatewayFake) (*DocumentList, *notifierFake, *metricsFake) {
	t.Helper()
	gateway.list = seededDocs()
	notifier := &notifierFake{}
	metrics := &metricsFake{}
	list := NewDocumentList(gateway, staticCreds{bearer: "jwt"}, notifier, metrics)
	if err := list.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	return list, notifier, metrics
}

func TestApplyAndRevertToggleDoNotMutateInput(t *testing.T) {
	list := seededDocs()
	original := seededDocs()

	next, prior, ok := ApplyToggle(list, "b")
	if !ok || prior != false {
		t.Fatalf("ApplyToggle() prior = %v ok = %v", prior, ok)
	}
	if !next[1].Active {
		t.Fatalf("expected b to be active after toggle")
	}
	if !reflect.DeepEqual(list, original) {
		t.Fatalf("ApplyToggle mutated its input")
	}

	reverted := RevertToggle(next, "b", prior)
	if !reflect.DeepEqual(reverted, original) {
		t.Fatalf("RevertToggle() = %+v, want %+v", reverted, original)
	}
	if !next[1].Active {
		t.Fatalf("RevertToggle mutated its input")
	}

	if _, _, ok := ApplyToggle(list, "missing"); ok {
		t.Fatalf("expected ok=false for unknown id")
	}
}

func TestRefreshFailureKeepsPreviousList(t *testing.T) {
	gateway := &documentGatewayFake{}
	list, _, _ := newSeededList(t, gateway)

	gateway.listErr = domain.WrapError(domain.ErrTemporary, "list documents", errors.New("dial tcp: refused"))
	err := list.Refresh(context.Background())
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if list.Loading() {
		t.Fatalf("expected loading flag to be cleared")
	}
	if !reflect.DeepEqual(list.Documents(), seededDocs()) {
		t.Fatalf("expected previous list to survive failed refresh")
	}
	if gateway.lastCreds.Bearer != "jwt" {
		t.Fatalf("expected bearer to be passed, got %+v", gateway.lastCreds)
	}
}

func TestToggleActiveSuccessKeepsFlippedValue(t *testing.T) {
	gateway := &documentGatewayFake{}
	list, notifier, _ := newSeededList(t, gateway)

	if err := list.ToggleActive(context.Background(), "a"); err != nil {
		t.Fatalf("ToggleActive() error = %v", err)
	}
	if list.Documents()[0].Active {
		t.Fatalf("expected a to be inactive")
	}
	if len(gateway.setActiveArgs) != 1 || gateway.setActiveArgs[0] != false {
		t.Fatalf("expected backend to receive active=false, got %v", gateway.setActiveArgs)
	}
	if len(notifier.all()) != 0 {
		t.Fatalf("unexpected notices: %+v", notifier.all())
	}
}

func TestToggleActiveFailureRestoresPriorValue(t *testing.T) {
	gateway := &documentGatewayFake{
		setActiveErr: map[string]error{"a": domain.WrapError(domain.ErrRejected, "toggle", errors.New("status 500"))},
	}
	list, notifier, metrics := newSeededList(t, gateway)

	var observed bool
	gateway.setActiveHook = func(string) {
		observed = list.Documents()[0].Active
	}

	err := list.ToggleActive(context.Background(), "a")
	if !domain.IsKind(err, domain.ErrRejected) {
		t.Fatalf("expected rejected error, got %v", err)
	}
	if observed {
		t.Fatalf("expected optimistic flip to be visible while the call is in flight")
	}
	if !reflect.DeepEqual(list.Documents(), seededDocs()) {
		t.Fatalf("expected exact pre-toggle state, got %+v", list.Documents())
	}
	notices := notifier.all()
	if len(notices) != 1 || notices[0].Level != domain.NoticeError || notices[0].Message != toggleFailedMessage {
		t.Fatalf("unexpected notices: %+v", notices)
	}
	if metrics.reverts != 1 {
		t.Fatalf("expected one revert recorded, got %d", metrics.reverts)
	}
}

func TestConcurrentTogglesOnDifferentIDsDoNotInterfere(t *testing.T) {
	release := make(chan struct{})
	var arrived sync.WaitGroup
	arrived.Add(2)

	gateway := &documentGatewayFake{
		setActiveErr: map[string]error{"a": errors.New("boom")},
	}
	list, _, _ := newSeededList(t, gateway)
	gateway.setActiveHook = func(string) {
		arrived.Done()
		<-release
	}

	errs := make(chan error, 2)
	go func() { errs <- list.ToggleActive(context.Background(), "a") }()
	go func() { errs <- list.ToggleActive(context.Background(), "b") }()

	arrived.Wait()
	inFlight := list.Documents()
	if inFlight[0].Active || !inFlight[1].Active {
		t.Fatalf("expected both optimistic flips while in flight, got %+v", inFlight)
	}
	close(release)

	var failures int
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly one failure, got %d", failures)
	}

	docs := list.Documents()
	if !docs[0].Active {
		t.Fatalf("failed toggle on a must restore active=true")
	}
	if !docs[1].Active {
		t.Fatalf("successful toggle on b must keep active=true")
	}
	if !docs[2].Active {
		t.Fatalf("untouched c changed")
	}
}

func TestTogglesOnSameIDAreSerialized(t *testing.T) {
	gateway := &documentGatewayFake{}
	list, _, _ := newSeededList(t, gateway)

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	gateway.setActiveHook = func(string) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = list.ToggleActive(context.Background(), "a")
		}()
	}
	wg.Wait()

	if maxInFlight != 1 {
		t.Fatalf("expected serialized calls, saw %d in flight", maxInFlight)
	}
	if !list.Documents()[0].Active {
		t.Fatalf("four toggles must land back on the original value")
	}
}

func TestToggleUnknownDocument(t *testing.T) {
	gateway := &documentGatewayFake{}
	list, _, _ := newSeededList(t, gateway)

	err := list.ToggleActive(context.Background(), "nope")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(gateway.setActiveArgs) != 0 {
		t.Fatalf("expected no backend call")
	}
}

func TestDeleteFailureLeavesListIdentical(t *testing.T) {
	gateway := &documentGatewayFake{}
	list, notifier, _ := newSeededList(t, gateway)
	before := list.Documents()

	gateway.deleteErr = &messageError{msg: "Document is locked"}
	if err := list.Delete(context.Background(), "b"); err == nil {
		t.Fatalf("expected error")
	}
	if !reflect.DeepEqual(list.Documents(), before) {
		t.Fatalf("list changed after failed delete")
	}
	notices := notifier.all()
	if len(notices) != 1 || notices[0].Message != "Document is locked" {
		t.Fatalf("expected server message in notice, got %+v", notices)
	}
}

func TestDeleteSuccessRemovesByID(t *testing.T) {
	gateway := &documentGatewayFake{}
	list, _, _ := newSeededList(t, gateway)

	if err := list.Delete(context.Background(), "b"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	docs := list.Documents()
	if len(docs) != 2 || docs[0].ID != "a" || docs[1].ID != "c" {
		t.Fatalf("unexpected list after delete: %+v", docs)
	}
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	gateway := &documentGatewayFake{}
	list, _, _ := newSeededList(t, gateway)

	got := list.Search("  RETURN ")
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("unexpected search result: %+v", got)
	}
	if len(list.Search("")) != 3 {
		t.Fatalf("empty query must return everything")
	}
}

func TestRefreshAfterCloseIsDropped(t *testing.T) {
	gateway := &documentGatewayFake{}
	list, _, _ := newSeededList(t, gateway)
	list.Close()

	gateway.list = nil
	if err := list.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(list.Documents()) != 3 {
		t.Fatalf("closed view must not apply late results")
	}
}

type messageError struct {
	msg string
}

func (e *messageError) Error() string       { return "rejected: " + e.msg }
func (e *messageError) UserMessage() string { return e.msg }
