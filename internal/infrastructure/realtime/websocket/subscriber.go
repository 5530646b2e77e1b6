package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

const (
	typeSubscribe   = "subscribe"
	typeUnsubscribe = "unsubscribe"
	typeEvent       = "event"
)

type envelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type progressPayload struct {
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Buffer           int
}

// Subscriber opens one websocket connection per progress subscription.
type Subscriber struct {
	url    string
	dialer *websocket.Dialer
	opts   Options
}

var _ ports.ProgressSubscriber = (*Subscriber)(nil)

func New(rawURL string) (*Subscriber, error) {
	return NewWithOptions(rawURL, Options{})
}

func NewWithOptions(rawURL string, opts Options) (*Subscriber, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse realtime url: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return nil, fmt.Errorf("realtime url %q must be ws or wss", rawURL)
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 16
	}
	return &Subscriber{
		url:    parsed.String(),
		dialer: &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout, Proxy: http.ProxyFromEnvironment},
		opts:   opts,
	}, nil
}

func (s *Subscriber) SubscribeProgress(ctx context.Context, cred domain.Credentials, documentID string) (ports.ProgressSubscription, error) {
	if documentID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "subscribe progress", errors.New("document id is empty"))
	}

	header := http.Header{}
	if !cred.Anonymous() {
		header.Set("Authorization", "Bearer "+cred.Bearer)
	}
	conn, resp, err := s.dialer.DialContext(ctx, s.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, domain.WrapError(domain.ErrUnauthorized, "subscribe progress", err)
		}
		return nil, domain.WrapError(domain.ErrTemporary, "subscribe progress", err)
	}

	sub := &subscription{
		conn:         conn,
		documentID:   documentID,
		channel:      domain.ProgressChannel(documentID),
		writeTimeout: s.opts.WriteTimeout,
		events:       make(chan domain.ProgressEvent, s.opts.Buffer),
		done:         make(chan struct{}),
	}
	if err := sub.write(typeSubscribe); err != nil {
		_ = conn.Close()
		return nil, domain.WrapError(domain.ErrTemporary, "subscribe progress", err)
	}

	go sub.readLoop()
	return sub, nil
}

type subscription struct {
	conn         *websocket.Conn
	documentID   string
	channel      string
	writeTimeout time.Duration

	events    chan domain.ProgressEvent
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func (s *subscription) Events() <-chan domain.ProgressEvent {
	return s.events
}

// Close unsubscribes and closes the connection. The events channel is closed
// by the read loop once the connection is gone.
func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.write(typeUnsubscribe); err != nil {
			slog.Debug("progress_unsubscribe_failed", "channel", s.channel, "error", err)
		}
		deadline := time.Now().Add(s.writeTimeout)
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *subscription) write(kind string) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(envelope{Type: kind, Channel: s.channel})
}

func (s *subscription) readLoop() {
	defer close(s.events)
	for {
		var msg envelope
		if err := s.conn.ReadJSON(&msg); err != nil {
			select {
			case <-s.done:
			default:
				slog.Warn("progress_stream_closed", "channel", s.channel, "error", err)
			}
			return
		}
		if msg.Type != typeEvent || msg.Channel != s.channel {
			continue
		}

		var payload progressPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			slog.Warn("progress_event_malformed", "channel", s.channel, "error", err)
			continue
		}
		event := domain.ProgressEvent{
			DocumentID: s.documentID,
			Progress:   domain.ClampProgress(int(math.Round(payload.Progress))),
			Message:    payload.Message,
		}
		select {
		case s.events <- event:
		case <-s.done:
			return
		}
	}
}
