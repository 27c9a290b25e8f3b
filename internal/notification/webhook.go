package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookGateway POSTs lifecycle events as JSON to a configured endpoint.
type WebhookGateway struct {
	url        string
	httpClient *http.Client
}

// NewWebhookGateway creates a gateway posting to url.
func NewWebhookGateway(url string) *WebhookGateway {
	return &WebhookGateway{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *WebhookGateway) post(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// NotifySubmitted implements Gateway.
func (w *WebhookGateway) NotifySubmitted(ctx context.Context, requestID, requesterID string) error {
	return w.post(ctx, Event{Type: EventSubmitted, RequestID: requestID, RequesterID: requesterID})
}

// NotifyApproved implements Gateway.
func (w *WebhookGateway) NotifyApproved(ctx context.Context, requestID, requesterID, stage string, isCompleted bool) error {
	return w.post(ctx, Event{
		Type: EventApproved, RequestID: requestID, RequesterID: requesterID,
		Stage: stage, IsCompleted: isCompleted,
	})
}

// NotifyRejected implements Gateway.
func (w *WebhookGateway) NotifyRejected(ctx context.Context, requestID, requesterID, stage, reason string) error {
	return w.post(ctx, Event{
		Type: EventRejected, RequestID: requestID, RequesterID: requesterID,
		Stage: stage, Reason: reason,
	})
}

// NotifyEscalated implements Gateway.
func (w *WebhookGateway) NotifyEscalated(ctx context.Context, requestID string, level, daysPending int) error {
	return w.post(ctx, Event{
		Type: EventEscalated, RequestID: requestID,
		Level: level, DaysPending: daysPending,
	})
}
