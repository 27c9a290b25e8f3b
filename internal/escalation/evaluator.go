// Package escalation detects and records stalled clearance requests.
//
// The evaluator is a pure predicate over a request snapshot; the sweeper
// applies it in bulk, escalating each eligible request through the lifecycle
// handler with continue-on-error semantics.
package escalation

import (
	"time"

	"github.com/clearstack/clearflow/internal/types"
)

// Eligible reports whether a request should be auto-escalated as of now.
//
// A request qualifies when it is pending, incomplete, and has seen no
// activity for at least threshold. A request escalated within the threshold
// window is excluded even if it otherwise qualifies: together with the
// activity refresh on escalation this keeps back-to-back sweeps from
// re-escalating the same request without bound.
func Eligible(req *types.Request, now time.Time, threshold time.Duration) bool {
	if req.CurrentStatus != types.StatusPending || req.IsCompleted {
		return false
	}
	if now.Sub(req.LastActivityAt) < threshold {
		return false
	}
	if req.EscalatedAt != nil && now.Sub(*req.EscalatedAt) < threshold {
		return false
	}
	return true
}
