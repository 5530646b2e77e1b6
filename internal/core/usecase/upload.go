package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

type UploadState string

const (
	UploadIdle             UploadState = "idle"
	UploadSelecting        UploadState = "selecting"
	UploadSubmitting       UploadState = "submitting"
	UploadAwaitingProgress UploadState = "awaiting-progress"
	UploadComplete         UploadState = "complete"
	UploadFailed           UploadState = "failed"
)

const (
	uploadFailedMessage   = "Failed to upload document"
	progressFailedMessage = "Lost the progress stream before processing finished"

	DefaultUploadGrace = 1500 * time.Millisecond
)

// ErrUploadCanceled is returned by Submit when the dialog is dismissed while
// the upload is still running.
var ErrUploadCanceled = errors.New("upload dialog closed")

// UploadSnapshot is what a progress view renders.
type UploadSnapshot struct {
	State      UploadState
	DocumentID string
	Progress   int
	Message    string
}

type UploadOptions struct {
	GraceDelay time.Duration
	Preflight  ports.FilePreflight
	Notifier   ports.Notifier
	Metrics    ports.ViewMetrics
	// OnComplete is the parent refresh hook. It runs once per finished upload.
	OnComplete func()
	// Observer receives a snapshot after every transition and progress event.
	Observer func(UploadSnapshot)
}

type UploadFlow struct {
	gateway    ports.DocumentGateway
	subscriber ports.ProgressSubscriber
	creds      ports.CredentialSource

	grace      time.Duration
	preflight  ports.FilePreflight
	notifier   ports.Notifier
	metrics    ports.ViewMetrics
	onComplete func()
	observer   func(UploadSnapshot)

	mu         sync.Mutex
	state      UploadState
	form       domain.UploadRequest
	documentID string
	progress   int
	message    string
	lease      *subscriptionLease
	dismissed  chan struct{}
	dismissOne *sync.Once
}

func NewUploadFlow(
	gateway ports.DocumentGateway,
	subscriber ports.ProgressSubscriber,
	creds ports.CredentialSource,
	opts UploadOptions,
) *UploadFlow {
	grace := opts.GraceDelay
	if grace < 0 {
		grace = 0
	}
	return &UploadFlow{
		gateway:    gateway,
		subscriber: subscriber,
		creds:      creds,
		grace:      grace,
		preflight:  opts.Preflight,
		notifier:   notifierOrNoop(opts.Notifier),
		metrics:    metricsOrNoop(opts.Metrics),
		onComplete: opts.OnComplete,
		observer:   opts.Observer,
		state:      UploadIdle,
	}
}

func (f *UploadFlow) Snapshot() UploadSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *UploadFlow) Form() domain.UploadRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.form
}

// Select stores the chosen file and metadata. The form is locked while an
// upload is running.
func (f *UploadFlow) Select(form domain.UploadRequest) error {
	f.mu.Lock()
	switch f.state {
	case UploadIdle, UploadSelecting, UploadFailed:
	default:
		f.mu.Unlock()
		return domain.WrapError(domain.ErrRequestInFlight, "select upload", fmt.Errorf("upload is %s", f.state))
	}
	f.form = normalizeForm(form)
	f.state = UploadSelecting
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.emit(snap)
	return nil
}

// Validate checks the current form without touching the network.
func (f *UploadFlow) Validate() error {
	return f.validate(f.Form())
}

func (f *UploadFlow) validate(form domain.UploadRequest) error {
	if form.File.Filename() == "" && form.File.FileSize() == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("no file selected"))
	}
	if !form.Visibility.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload", fmt.Errorf("unknown visibility %q", form.Visibility))
	}
	if !form.Protection.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload", fmt.Errorf("unknown protection type %q", form.Protection))
	}
	if form.Protection == domain.ProtectionPassword && strings.TrimSpace(form.Password) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("password is required for password protection"))
	}
	if f.preflight != nil {
		if err := f.preflight.Check(form.File); err != nil {
			return domain.WrapError(domain.ErrInvalidInput, "validate upload", err)
		}
	}
	return nil
}

// Submit uploads the selected file and follows its progress until the backend
// reports 100, the dialog is dismissed, the stream fails or ctx ends. The
// progress subscription is always released before Submit returns.
func (f *UploadFlow) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.state != UploadSelecting && f.state != UploadFailed {
		state := f.state
		f.mu.Unlock()
		if state == UploadIdle {
			return domain.WrapError(domain.ErrInvalidInput, "submit upload", errors.New("no file selected"))
		}
		return domain.WrapError(domain.ErrRequestInFlight, "submit upload", fmt.Errorf("upload is %s", state))
	}
	form := f.form
	if err := f.validate(form); err != nil {
		f.state = UploadSelecting
		f.mu.Unlock()
		notifyError(f.notifier, validationMessage(err))
		return err
	}
	dismissed := make(chan struct{})
	f.dismissed = dismissed
	f.dismissOne = &sync.Once{}
	f.state = UploadSubmitting
	f.documentID, f.progress, f.message = "", 0, ""
	snap := f.snapshotLocked()
	f.mu.Unlock()
	f.emit(snap)

	creds := f.creds.Credentials(ctx)
	doc, err := f.gateway.UploadDocument(ctx, creds, form)
	if err != nil {
		f.metrics.RecordUploadOutcome("submit_failed")
		f.mu.Lock()
		if isClosed(dismissed) {
			// Cancel already reset the flow; the state may belong to a newer upload.
			f.mu.Unlock()
			slog.Warn("upload_submit_failed", "filename", form.File.Filename(), "error", err, "canceled", true)
			return fmt.Errorf("submit upload: %w", err)
		}
		f.state = UploadSelecting
		snap := f.snapshotLocked()
		f.mu.Unlock()
		f.emit(snap)

		slog.Warn("upload_submit_failed", "filename", form.File.Filename(), "error", err)
		notifyError(f.notifier, domain.UserMessage(err, uploadFailedMessage))
		return fmt.Errorf("submit upload: %w", err)
	}

	f.mu.Lock()
	if isClosed(dismissed) {
		f.mu.Unlock()
		f.metrics.RecordUploadOutcome("canceled")
		return ErrUploadCanceled
	}
	f.state = UploadAwaitingProgress
	f.documentID = doc.ID
	snap = f.snapshotLocked()
	f.mu.Unlock()
	f.emit(snap)

	sub, err := f.subscriber.SubscribeProgress(ctx, creds, doc.ID)
	if err != nil {
		return f.fail(doc.ID, dismissed, fmt.Errorf("subscribe progress: %w", err))
	}
	lease := &subscriptionLease{sub: sub}
	defer func() {
		if err := lease.Release(); err != nil {
			slog.Warn("progress_release_failed", "document_id", doc.ID, "error", err)
		}
	}()

	f.mu.Lock()
	if isClosed(dismissed) {
		f.mu.Unlock()
		f.metrics.RecordUploadOutcome("canceled")
		return ErrUploadCanceled
	}
	f.lease = lease
	f.mu.Unlock()

	return f.follow(ctx, doc.ID, lease, dismissed)
}

func (f *UploadFlow) follow(ctx context.Context, documentID string, lease *subscriptionLease, dismissed <-chan struct{}) error {
	events := lease.sub.Events()
	for {
		select {
		case <-ctx.Done():
			f.reset(UploadIdle)
			f.metrics.RecordUploadOutcome("abandoned")
			return fmt.Errorf("await upload progress: %w", ctx.Err())
		case <-dismissed:
			f.metrics.RecordUploadOutcome("canceled")
			return ErrUploadCanceled
		case ev, ok := <-events:
			if !ok {
				if isClosed(dismissed) {
					f.metrics.RecordUploadOutcome("canceled")
					return ErrUploadCanceled
				}
				return f.fail(documentID, dismissed, errors.New("progress stream closed before completion"))
			}
			if ev.DocumentID != "" && ev.DocumentID != documentID {
				continue
			}
			progress := domain.ClampProgress(ev.Progress)

			f.mu.Lock()
			f.progress = progress
			f.message = ev.Message
			if progress == 100 {
				f.state = UploadComplete
			}
			snap := f.snapshotLocked()
			f.mu.Unlock()

			f.metrics.RecordUploadProgress(progress)
			slog.Debug("upload_progress", "document_id", documentID, "progress", progress, "message", ev.Message)
			f.emit(snap)

			if progress == 100 {
				return f.finish(ctx, documentID, lease, dismissed)
			}
		}
	}
}

func (f *UploadFlow) finish(ctx context.Context, documentID string, lease *subscriptionLease, dismissed <-chan struct{}) error {
	if f.grace > 0 {
		timer := time.NewTimer(f.grace)
		select {
		case <-ctx.Done():
		case <-dismissed:
		case <-timer.C:
		}
		timer.Stop()
	}

	if err := lease.Release(); err != nil {
		slog.Warn("progress_release_failed", "document_id", documentID, "error", err)
	}
	f.reset(UploadIdle)

	f.metrics.RecordUploadOutcome("completed")
	slog.Info("upload_completed", "document_id", documentID)
	if f.onComplete != nil {
		f.onComplete()
	}
	return nil
}

func (f *UploadFlow) fail(documentID string, dismissed <-chan struct{}, err error) error {
	f.mu.Lock()
	if isClosed(dismissed) {
		f.mu.Unlock()
		f.metrics.RecordUploadOutcome("canceled")
		return ErrUploadCanceled
	}
	if f.lease != nil {
		_ = f.lease.Release()
		f.lease = nil
	}
	f.state = UploadFailed
	snap := f.snapshotLocked()
	f.mu.Unlock()
	f.emit(snap)

	f.metrics.RecordUploadOutcome("failed")
	slog.Warn("upload_progress_failed", "document_id", documentID, "error", err)
	notifyError(f.notifier, progressFailedMessage)
	return domain.WrapError(domain.ErrTemporary, "await upload progress", err)
}

// Cancel dismisses the dialog. The subscription is released at most once and
// the server-side document is left alone.
func (f *UploadFlow) Cancel() {
	f.mu.Lock()
	if f.dismissOne != nil {
		once, ch := f.dismissOne, f.dismissed
		once.Do(func() { close(ch) })
	}
	lease := f.lease
	f.lease = nil
	f.mu.Unlock()

	if lease != nil {
		if err := lease.Release(); err != nil {
			slog.Warn("progress_release_failed", "error", err)
		}
	}
	f.reset(UploadIdle)
}

func (f *UploadFlow) reset(state UploadState) {
	f.mu.Lock()
	f.form = domain.UploadRequest{}
	f.state = state
	f.documentID, f.progress, f.message = "", 0, ""
	f.lease = nil
	snap := f.snapshotLocked()
	f.mu.Unlock()
	f.emit(snap)
}

func (f *UploadFlow) snapshotLocked() UploadSnapshot {
	return UploadSnapshot{
		State:      f.state,
		DocumentID: f.documentID,
		Progress:   f.progress,
		Message:    f.message,
	}
}

func (f *UploadFlow) emit(snap UploadSnapshot) {
	if f.observer != nil {
		f.observer(snap)
	}
}

func normalizeForm(form domain.UploadRequest) domain.UploadRequest {
	if form.Visibility == "" {
		form.Visibility = domain.VisibilityPrivate
	}
	if form.Protection == "" {
		form.Protection = domain.ProtectionNone
	}
	if form.Protection != domain.ProtectionPassword {
		form.Password = ""
	}
	form.Title = strings.TrimSpace(form.Title)
	if form.Title == "" {
		name := filepath.Base(form.File.Filename())
		form.Title = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return form
}

func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	if msg == "" {
		return uploadFailedMessage
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// subscriptionLease releases a progress subscription exactly once no matter
// how many paths try.
type subscriptionLease struct {
	sub  ports.ProgressSubscription
	once sync.Once
	err  error
}

func (l *subscriptionLease) Release() error {
	l.once.Do(func() {
		l.err = l.sub.Close()
	})
	return l.err
}
