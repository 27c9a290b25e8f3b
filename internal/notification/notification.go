// Package notification delivers request lifecycle events to interested
// parties. Delivery is best-effort: the transition that triggered an event has
// already committed by the time a gateway runs, so failures are logged by the
// caller and never propagated back into the state machine.
package notification

import (
	"context"
)

// Event is the wire payload for a lifecycle notification.
type Event struct {
	Type        string `json:"type"` // "submitted", "approved", "rejected", "escalated"
	RequestID   string `json:"request_id"`
	RequesterID string `json:"requester_id,omitempty"`
	Stage       string `json:"stage,omitempty"`
	IsCompleted bool   `json:"is_completed,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Level       int    `json:"level,omitempty"`
	DaysPending int    `json:"days_pending,omitempty"`
}

// Event type constants
const (
	EventSubmitted = "submitted"
	EventApproved  = "approved"
	EventRejected  = "rejected"
	EventEscalated = "escalated"
)

// Gateway is the outbound notification boundary.
type Gateway interface {
	NotifySubmitted(ctx context.Context, requestID, requesterID string) error
	NotifyApproved(ctx context.Context, requestID, requesterID, stage string, isCompleted bool) error
	NotifyRejected(ctx context.Context, requestID, requesterID, stage, reason string) error
	NotifyEscalated(ctx context.Context, requestID string, level, daysPending int) error
}

// Noop discards all notifications.
type Noop struct{}

// NotifySubmitted implements Gateway.
func (Noop) NotifySubmitted(context.Context, string, string) error { return nil }

// NotifyApproved implements Gateway.
func (Noop) NotifyApproved(context.Context, string, string, string, bool) error { return nil }

// NotifyRejected implements Gateway.
func (Noop) NotifyRejected(context.Context, string, string, string, string) error { return nil }

// NotifyEscalated implements Gateway.
func (Noop) NotifyEscalated(context.Context, string, int, int) error { return nil }
