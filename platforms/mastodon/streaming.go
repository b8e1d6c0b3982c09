package mastodon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sensenets/sensegraph/platforms"
	"github.com/sensenets/sensegraph/posts"
)

const reconnectDelay = 5 * time.Second

// StatusHandler receives each new status observed on the user stream.
type StatusHandler func(ctx context.Context, status Status) error

// StreamSubscriber connects to a mastodon server's streaming API and
// delivers user-timeline updates.
type StreamSubscriber struct {
	domain      string
	accessToken string
	handler     StatusHandler
	logger      *slog.Logger

	dialer         *websocket.Dialer
	reconnectDelay time.Duration
}

// NewStreamSubscriber creates a subscriber for one account's user
// stream.
func NewStreamSubscriber(domain, accessToken string, handler StatusHandler, logger *slog.Logger) *StreamSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamSubscriber{
		domain:         domain,
		accessToken:    accessToken,
		handler:        handler,
		logger:         logger,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: reconnectDelay,
	}
}

// Start connects to the stream and processes events until the context
// is cancelled. It automatically reconnects on transient errors.
func (s *StreamSubscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil {
				s.logger.Error("stream connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.reconnectDelay):
				}
			}
		}
	}
}

func (s *StreamSubscriber) buildURL() string {
	u := url.URL{Scheme: "wss", Host: s.domain, Path: "/api/v1/streaming"}
	q := u.Query()
	q.Set("stream", "user")
	q.Set("access_token", s.accessToken)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *StreamSubscriber) subscribe(ctx context.Context) error {
	wsURL := s.buildURL()
	s.logger.Info("connecting to user stream", "domain", s.domain)

	conn, _, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	s.logger.Info("connected to user stream", "domain", s.domain)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		var event struct {
			Event   string `json:"event"`
			Payload string `json:"payload"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			s.logger.Error("failed to parse stream event", "error", err)
			continue
		}
		if event.Event != "update" {
			continue
		}

		var status Status
		if err := json.Unmarshal([]byte(event.Payload), &status); err != nil {
			s.logger.Error("failed to parse status payload", "error", err)
			continue
		}

		if err := s.handler(ctx, status); err != nil {
			s.logger.Error("status handler failed", "status", status.ID, "error", err)
		}
	}
}

// Stream subscribes to the account's user stream and delivers each new
// status the account authors as its fully reconstructed thread. It
// blocks until the context is cancelled.
func (s *Service) Stream(ctx context.Context, userID string, creds platforms.Credentials, deliver func(ctx context.Context, posted *posts.PostedDetails) error) error {
	if creds.Mastodon == nil || creds.Mastodon.AccessToken == "" {
		return fmt.Errorf("mastodon: %w", platforms.ErrMissingCredentials)
	}
	domain := creds.Mastodon.Domain
	if domain == "" {
		domain = s.config.APIDomain
	}

	handler := func(ctx context.Context, status Status) error {
		if status.Account.ID != userID {
			return nil
		}
		posted, err := s.Get(ctx, status.ID, creds)
		if err != nil {
			return fmt.Errorf("reconstruct thread of %s: %w", status.ID, err)
		}
		return deliver(ctx, posted)
	}
	return s.newSubscriber(domain, creds.Mastodon.AccessToken, handler, s.logger).Start(ctx)
}
