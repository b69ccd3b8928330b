package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/devswipe/devswipe/internal/domain"
	"github.com/gorilla/websocket"
)

const reconnectDelay = 5 * time.Second

// Handler receives each chat message pushed for the subscribed user.
type Handler func(domain.Message)

// Subscriber connects to the backend's events socket and delivers new chat
// messages involving one user. It exists so the client does not have to poll
// for messages the user's peers send while a session is open.
type Subscriber struct {
	url     string
	user    domain.Identity
	handler Handler
	logger  *slog.Logger
}

// NewSubscriber creates an events subscriber for the given user.
func NewSubscriber(eventsURL string, user domain.Identity, handler Handler, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		url:     eventsURL,
		user:    user,
		handler: handler,
		logger:  logger,
	}
}

// Start connects to the events socket and processes events until the
// context is cancelled. It automatically reconnects on transient errors.
func (s *Subscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil {
				s.logger.Error("events connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(reconnectDelay):
					// backoff before reconnecting
				}
			}
		}
	}
}

func (s *Subscriber) buildURL() string {
	u, _ := url.Parse(s.url)
	q := u.Query()
	q.Set("user", s.user.CanonicalName)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	wsURL := s.buildURL()
	s.logger.Info("connecting to events socket", "url", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial events socket: %w", err)
	}
	defer conn.Close()

	s.logger.Info("connected to events socket")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}

		msg, ok, err := parseEvent(payload)
		if err != nil {
			s.logger.Error("failed to parse event", "error", err)
			continue
		}
		if !ok {
			continue
		}

		if !msg.Sender.Is(s.user) && !msg.Recipient.Is(s.user) {
			continue
		}
		s.handler(msg)
	}
}

// parseEvent decodes one socket frame. The second return value is false for
// event kinds that carry no chat message.
func parseEvent(data []byte) (domain.Message, bool, error) {
	var event chatEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.Message{}, false, fmt.Errorf("unmarshal event: %w", err)
	}
	if event.Kind != "message" || event.Message == nil {
		return domain.Message{}, false, nil
	}

	body := event.Message
	msg := domain.Message{
		ID:        body.ID,
		Sender:    domain.NewIdentity(0, body.Sender, ""),
		Recipient: domain.NewIdentity(0, body.Recipient, ""),
		Content:   body.Content,
		Timestamp: parseEventTime(body.Timestamp),
		State:     domain.Confirmed,
	}
	return msg, true, nil
}

func parseEventTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, err := time.Parse("2006-01-02T15:04:05.999999999", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
