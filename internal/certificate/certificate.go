// Package certificate is the boundary to the clearance-certificate issuer.
// Generation is triggered exactly once per request, by the approval that
// clears the final stage; rendering and delivery live outside this service.
package certificate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Issuer requests certificate generation for a completed request.
type Issuer interface {
	Generate(ctx context.Context, requestID string) error
}

// Noop skips certificate generation (tests, deployments without an issuer).
type Noop struct{}

// Generate implements Issuer.
func (Noop) Generate(context.Context, string) error { return nil }

// WebhookIssuer POSTs a generation request to an external issuer service.
type WebhookIssuer struct {
	url        string
	httpClient *http.Client
}

// NewWebhookIssuer creates an issuer posting to url.
func NewWebhookIssuer(url string) *WebhookIssuer {
	return &WebhookIssuer{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Generate implements Issuer.
func (i *WebhookIssuer) Generate(ctx context.Context, requestID string) error {
	body, err := json.Marshal(map[string]string{"request_id": requestID})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("certificate issuer unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("certificate issuer returned status %d", resp.StatusCode)
	}
	return nil
}
