// Package webhook posts pipeline events to outgoing webhooks.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"go.uber.org/zap"

	"github.com/felixgeelhaar/crew/pkg/domain/events"
)

// Payload formats.
const (
	FormatJSON  = "json"
	FormatSlack = "slack"
)

// SignatureHeader carries the HMAC-SHA256 of the body when a secret is set.
const SignatureHeader = "X-Crew-Signature"

// Endpoint configures a single outgoing webhook.
type Endpoint struct {
	Name   string
	URL    string
	Secret string
	// Format is FormatJSON or FormatSlack. Empty means FormatJSON.
	Format string
	// Events filters by event type. Empty means every event.
	Events      []string
	MaxAttempts int
	RetryDelay  time.Duration
}

// Notifier sends pipeline events to webhook endpoints. Deliveries run in
// the background; Close waits for them.
type Notifier struct {
	endpoints  []Endpoint
	client     *http.Client
	deadLetter *DeadLetterStore
	logger     *zap.Logger
	wg         sync.WaitGroup
}

// NewNotifier creates a notifier. deadLetter may be nil.
func NewNotifier(endpoints []Endpoint, deadLetter *DeadLetterStore, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		endpoints: endpoints,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		deadLetter: deadLetter,
		logger:     logger.Named("webhook"),
	}
}

// Payload is the JSON body sent to FormatJSON endpoints.
type Payload struct {
	EventType string             `json:"event_type"`
	RunID     string             `json:"run_id"`
	Timestamp time.Time          `json:"timestamp"`
	Data      events.DomainEvent `json:"data"`
}

// Handle queues delivery of event to every matching endpoint. It never
// fails the dispatch; undeliverable events go to the dead letter file.
func (n *Notifier) Handle(ctx context.Context, event events.DomainEvent) error {
	for _, ep := range n.endpoints {
		if !matches(ep, event.EventType()) {
			continue
		}
		body, err := encode(ep, event)
		if err != nil {
			n.logger.Warn("encode webhook payload", zap.String("webhook", ep.Name), zap.Error(err))
			continue
		}
		n.wg.Add(1)
		go func(ep Endpoint) {
			defer n.wg.Done()
			n.deliver(context.WithoutCancel(ctx), ep, event.EventType(), body)
		}(ep)
	}
	return nil
}

// Registration subscribes the notifier to every pipeline event type.
func (n *Notifier) Registration() events.HandlerRegistration {
	return events.HandlerRegistration{
		Name:       "Webhooks",
		Handler:    n.Handle,
		EventTypes: events.AllTypes(),
	}
}

// Close waits for queued deliveries to finish or be dead-lettered.
func (n *Notifier) Close() error {
	n.wg.Wait()
	return nil
}

func matches(ep Endpoint, eventType string) bool {
	return len(ep.Events) == 0 || slices.Contains(ep.Events, eventType)
}

func encode(ep Endpoint, event events.DomainEvent) ([]byte, error) {
	if ep.Format == FormatSlack {
		return json.Marshal(slackMessage(event))
	}
	return json.Marshal(Payload{
		EventType: event.EventType(),
		RunID:     event.RunID(),
		Timestamp: event.OccurredAt(),
		Data:      event,
	})
}

func (n *Notifier) deliver(ctx context.Context, ep Endpoint, eventType string, body []byte) {
	attempts := ep.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := ep.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	r := retry.New[struct{}](retry.Config{
		MaxAttempts:   attempts,
		InitialDelay:  delay,
		BackoffPolicy: retry.BackoffExponential,
	})
	_, err := r.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, n.send(ctx, ep, body)
	})
	if err == nil {
		return
	}

	n.logger.Warn("webhook delivery failed",
		zap.String("webhook", ep.Name),
		zap.String("event_type", eventType),
		zap.Int("attempts", attempts),
		zap.Error(err))
	if n.deadLetter == nil {
		return
	}
	dl := DeadLetter{
		Timestamp:   time.Now().UTC(),
		WebhookName: ep.Name,
		URL:         ep.URL,
		EventType:   eventType,
		Payload:     string(body),
		Error:       err.Error(),
		Attempts:    attempts,
	}
	if err := n.deadLetter.Append(dl); err != nil {
		n.logger.Error("dead letter append failed", zap.Error(err))
	}
}

func (n *Notifier) send(ctx context.Context, ep Endpoint, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Crew-Webhook/1.0")
	if ep.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(body, ep.Secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign computes the HMAC-SHA256 of payload with secret, as sent in
// SignatureHeader.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
