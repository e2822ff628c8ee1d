package push

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/timbre-app/timbre/pkg/variables"
	"go.uber.org/fx"
)

// Config carries the VAPID key pair. Without both keys the service keeps
// accepting subscriptions but never sends; the signaling relay does not
// depend on push being configured.
type Config struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

func NewConfig() Config {
	return Config{
		PublicKey:  variables.Env(variables.VAPID_PUBLIC_KEY_NAME, ""),
		PrivateKey: variables.EnvSecret(variables.VAPID_PRIVATE_KEY_NAME),
		Subject:    variables.Env(variables.VAPID_SUBJECT_NAME, variables.VAPID_SUBJECT_DEFAULT),
	}
}

// Sender delivers one payload to one stored endpoint and reports the
// provider's status code. A zero status means the request never got a
// provider answer.
type Sender interface {
	Send(ctx context.Context, endpoint json.RawMessage, payload []byte) (int, error)
}

type webpushSender struct {
	options webpush.Options
}

func NewWebpushSender(config Config) Sender {
	return &webpushSender{
		options: webpush.Options{
			Subscriber:      config.Subject,
			VAPIDPublicKey:  config.PublicKey,
			VAPIDPrivateKey: config.PrivateKey,
			TTL:             60,
		},
	}
}

func (s *webpushSender) Send(ctx context.Context, endpoint json.RawMessage, payload []byte) (int, error) {
	var sub webpush.Subscription
	if err := json.Unmarshal(endpoint, &sub); err != nil {
		// an endpoint we cannot decode is permanently undeliverable
		return http.StatusGone, err
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &sub, &s.options)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// notification is the fixed payload shape the service worker renders.
type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

type Service struct {
	mu     sync.Mutex
	logger *slog.Logger
	sender Sender
	config Config

	// at most one subscription per room, last write wins
	subscriptions map[string]json.RawMessage
}

type NewServiceParams struct {
	fx.In

	Logger *slog.Logger
	Sender Sender
	Config Config
}

func NewService(params NewServiceParams) *Service {
	return &Service{
		logger:        params.Logger,
		sender:        params.Sender,
		config:        params.Config,
		subscriptions: make(map[string]json.RawMessage),
	}
}

func (s *Service) Enabled() bool {
	return s.config.PublicKey != "" && s.config.PrivateKey != ""
}

func (s *Service) PublicKey() string {
	return s.config.PublicKey
}

// Subscribe upserts the room's push endpoint. The blob is provider-specific
// and stored as-is.
func (s *Service) Subscribe(roomID string, endpoint json.RawMessage) {
	s.mu.Lock()
	s.subscriptions[roomID] = endpoint
	s.mu.Unlock()

	s.logger.Info("push subscription stored", slog.String("room", roomID))
}

// Notify wakes the room owner's device. Delivery is best effort: no stored
// subscription is a frequent non-error, transient provider failures are
// logged and dropped, and a gone endpoint removes itself.
func (s *Service) Notify(ctx context.Context, roomID string) {
	if !s.Enabled() {
		return
	}

	s.mu.Lock()
	endpoint, ok := s.subscriptions[roomID]
	s.mu.Unlock()
	if !ok {
		return
	}

	payload, err := json.Marshal(notification{
		Title: "Timbre",
		Body:  "Incoming call",
		URL:   "/call.html?room=" + url.QueryEscape(roomID),
	})
	if err != nil {
		return
	}

	status, err := s.sender.Send(ctx, endpoint, payload)
	if err != nil {
		s.logger.Warn("push send failed",
			slog.String("room", roomID),
			slog.String("err", err.Error()))
	}

	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		s.expire(roomID, endpoint)
	case status >= http.StatusMultipleChoices:
		s.logger.Warn("push provider refused",
			slog.String("room", roomID),
			slog.Int("status", status))
	}
}

// expire deletes the subscription the failed send used, unless the room was
// re-subscribed while the send was in flight.
func (s *Service) expire(roomID string, endpoint json.RawMessage) {
	s.mu.Lock()
	if current, ok := s.subscriptions[roomID]; ok && bytes.Equal(current, endpoint) {
		delete(s.subscriptions, roomID)
		s.logger.Info("push subscription expired", slog.String("room", roomID))
	}
	s.mu.Unlock()
}
