package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"telco-billing/internal/redisclient"
)

// Sender delivers one message over one channel. Implementations are
// independent transports; the dispatcher treats them uniformly.
type Sender interface {
	Send(ctx context.Context, target, subject, body string) error
}

// HTTPEmailSender delivers mail through a provider's HTTP API
type HTTPEmailSender struct {
	apiURL string
	apiKey string
	from   string
	client *http.Client
}

// NewHTTPEmailSender creates an email sender
func NewHTTPEmailSender(apiURL, apiKey, from string, timeout time.Duration) *HTTPEmailSender {
	return &HTTPEmailSender{
		apiURL: apiURL,
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: timeout},
	}
}

// Send delivers an email
func (s *HTTPEmailSender) Send(ctx context.Context, target, subject, body string) error {
	payload, err := json.Marshal(map[string]string{
		"from":    s.from,
		"to":      target,
		"subject": subject,
		"body":    body,
	})
	if err != nil {
		return err
	}

	return s.post(ctx, payload)
}

func (s *HTTPEmailSender) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("email provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("email provider returned status %d", resp.StatusCode)
	}
	return nil
}

// HTTPSMSSender delivers SMS through a provider's HTTP API
type HTTPSMSSender struct {
	apiURL   string
	apiKey   string
	senderID string
	client   *http.Client
}

// NewHTTPSMSSender creates an SMS sender
func NewHTTPSMSSender(apiURL, apiKey, senderID string, timeout time.Duration) *HTTPSMSSender {
	return &HTTPSMSSender{
		apiURL:   apiURL,
		apiKey:   apiKey,
		senderID: senderID,
		client:   &http.Client{Timeout: timeout},
	}
}

// Send delivers an SMS. The subject is dropped; SMS carries only the body.
func (s *HTTPSMSSender) Send(ctx context.Context, target, _ string, body string) error {
	payload, err := json.Marshal(map[string]string{
		"to":      target,
		"from":    s.senderID,
		"message": body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms provider returned status %d", resp.StatusCode)
	}
	return nil
}

// PushSender delivers in-app push notifications, either addressed to one
// user's subscription or broadcast to every connected client.
type PushSender interface {
	SendToUser(ctx context.Context, userID int64, title, message string) error
	Broadcast(ctx context.Context, title, message string) error
}

// RedisPushSender publishes push payloads over redis pub/sub; edge servers
// holding client connections subscribe to the per-user and broadcast channels.
type RedisPushSender struct {
	redis *redisclient.Client
}

// NewRedisPushSender creates a push sender backed by redis pub/sub
func NewRedisPushSender(redis *redisclient.Client) *RedisPushSender {
	return &RedisPushSender{redis: redis}
}

type pushPayload struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	UserID    int64     `json:"user_id,omitempty"`
}

// SendToUser publishes a push addressed to a single user
func (s *RedisPushSender) SendToUser(ctx context.Context, userID int64, title, message string) error {
	payload, err := json.Marshal(pushPayload{
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
		UserID:    userID,
	})
	if err != nil {
		return err
	}
	return s.redis.PublishPush(ctx, userID, payload)
}

// Broadcast publishes a push to every connected client
func (s *RedisPushSender) Broadcast(ctx context.Context, title, message string) error {
	payload, err := json.Marshal(pushPayload{
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}
	return s.redis.PublishBroadcast(ctx, payload)
}
