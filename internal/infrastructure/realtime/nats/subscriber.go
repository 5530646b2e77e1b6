package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

const DefaultPrefix = "uploadProgress"

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	// Prefix of the progress subjects; events for a document arrive on
	// "<prefix>.<documentId>".
	Prefix string
	Buffer int
}

// Subscriber receives upload progress from NATS. Authentication is part of
// the connection, so per-call credentials are not used.
type Subscriber struct {
	conn   *nats.Conn
	prefix string
	buffer int
}

var _ ports.ProgressSubscriber = (*Subscriber)(nil)

func New(url string) (*Subscriber, error) {
	return NewWithOptions(url, Options{})
}

func NewWithOptions(url string, options Options) (*Subscriber, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	prefix := strings.Trim(strings.TrimSpace(options.Prefix), ".")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	buffer := options.Buffer
	if buffer <= 0 {
		buffer = 16
	}

	conn, err := nats.Connect(
		url,
		nats.Name("prashnly-client"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Subscriber{conn: conn, prefix: prefix, buffer: buffer}, nil
}

// Close drains the connection.
func (s *Subscriber) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

func (s *Subscriber) Subject(documentID string) string {
	return subjectFor(s.prefix, documentID)
}

func subjectFor(prefix, documentID string) string {
	return prefix + "." + documentID
}

func (s *Subscriber) SubscribeProgress(ctx context.Context, _ domain.Credentials, documentID string) (ports.ProgressSubscription, error) {
	if strings.TrimSpace(documentID) == "" || strings.ContainsAny(documentID, ".*> ") {
		return nil, domain.WrapError(domain.ErrInvalidInput, "subscribe progress", fmt.Errorf("invalid document id %q", documentID))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := newSubscription(documentID, s.buffer)
	natsSub, err := s.conn.Subscribe(s.Subject(documentID), func(msg *nats.Msg) {
		event, err := decodeProgress(documentID, msg.Data)
		if err != nil {
			slog.Warn("progress_event_malformed", "subject", msg.Subject, "error", err)
			return
		}
		sub.deliver(event)
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded(fmt.Errorf("nats subscribe: %w", err))
	}
	if err := s.conn.Flush(); err != nil {
		_ = natsSub.Unsubscribe()
		return nil, wrapTemporaryIfNeeded(fmt.Errorf("nats flush: %w", err))
	}
	sub.unsubscribe = natsSub.Unsubscribe
	return sub, nil
}

// subscription never closes its events channel: the NATS callback may still
// be running when Close returns, so delivery selects on done instead.
type subscription struct {
	documentID  string
	events      chan domain.ProgressEvent
	done        chan struct{}
	once        sync.Once
	unsubscribe func() error
	err         error
}

func newSubscription(documentID string, buffer int) *subscription {
	return &subscription{
		documentID: documentID,
		events:     make(chan domain.ProgressEvent, buffer),
		done:       make(chan struct{}),
	}
}

func (s *subscription) Events() <-chan domain.ProgressEvent {
	return s.events
}

func (s *subscription) deliver(event domain.ProgressEvent) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.events <- event:
	case <-s.done:
	}
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		if s.unsubscribe != nil {
			s.err = s.unsubscribe()
		}
	})
	return s.err
}

func decodeProgress(documentID string, data []byte) (domain.ProgressEvent, error) {
	var payload struct {
		Progress *float64 `json:"progress"`
		Message  string   `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.ProgressEvent{}, err
	}
	if payload.Progress == nil {
		return domain.ProgressEvent{}, errors.New("progress is missing")
	}
	return domain.ProgressEvent{
		DocumentID: documentID,
		Progress:   domain.ClampProgress(int(math.Round(*payload.Progress))),
		Message:    payload.Message,
	}, nil
}
