package notification

import (
	"context"
	"fmt"
	"io"
)

// WriterGateway prints one line per event to an io.Writer. Used by the CLI
// (stderr) when no webhook is configured, so operators still see deliveries.
type WriterGateway struct {
	w io.Writer
}

// NewWriterGateway creates a gateway writing to w.
func NewWriterGateway(w io.Writer) *WriterGateway {
	return &WriterGateway{w: w}
}

// NotifySubmitted implements Gateway.
func (g *WriterGateway) NotifySubmitted(_ context.Context, requestID, requesterID string) error {
	_, err := fmt.Fprintf(g.w, "notify: request %s submitted by %s\n", requestID, requesterID)
	return err
}

// NotifyApproved implements Gateway.
func (g *WriterGateway) NotifyApproved(_ context.Context, requestID, requesterID, stage string, isCompleted bool) error {
	if isCompleted {
		_, err := fmt.Fprintf(g.w, "notify: request %s fully cleared for %s\n", requestID, requesterID)
		return err
	}
	_, err := fmt.Fprintf(g.w, "notify: request %s approved at stage %s\n", requestID, stage)
	return err
}

// NotifyRejected implements Gateway.
func (g *WriterGateway) NotifyRejected(_ context.Context, requestID, requesterID, stage, reason string) error {
	_, err := fmt.Fprintf(g.w, "notify: request %s rejected at stage %s: %s\n", requestID, stage, reason)
	return err
}

// NotifyEscalated implements Gateway.
func (g *WriterGateway) NotifyEscalated(_ context.Context, requestID string, level, daysPending int) error {
	_, err := fmt.Fprintf(g.w, "notify: request %s escalated to level %d (%d days pending)\n", requestID, level, daysPending)
	return err
}
