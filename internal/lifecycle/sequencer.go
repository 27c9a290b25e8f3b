// Package lifecycle implements the clearance request state machine: the pure
// stage sequencer that decides legal transitions, and the handler that commits
// them with optimistic concurrency and runs post-commit side effects.
package lifecycle

import (
	"fmt"

	"github.com/clearstack/clearflow/internal/storage"
	"github.com/clearstack/clearflow/internal/types"
)

// Decision is the outcome of the pure sequencer: where the request goes next.
// It carries no timestamps and touches no storage; applying it is the
// handler's job.
type Decision struct {
	NextIndex  int
	NextStatus types.Status

	// Completes is true for the approval that clears the final stage. It is
	// the only signal that may trigger the certificate issuer.
	Completes bool

	// ResetEscalated is true when the staleness clock restarts (the request
	// advanced to a new stage whose authority has not yet seen it).
	ResetEscalated bool
}

// DecideApprove returns the transition for an approval at the current stage.
// Only pending requests can be approved; the caller checks stage authority.
func DecideApprove(req *types.Request) (Decision, error) {
	switch req.CurrentStatus {
	case types.StatusCompleted:
		return Decision{}, fmt.Errorf("request %s is already completed: %w", req.ID, storage.ErrConflict)
	case types.StatusOnHold:
		return Decision{}, fmt.Errorf("request %s is on hold and must be resubmitted first: %w", req.ID, storage.ErrConflict)
	case types.StatusPending:
		// fall through
	default:
		return Decision{}, fmt.Errorf("request %s has invalid status %q: %w", req.ID, req.CurrentStatus, storage.ErrConflict)
	}

	last := req.CurrentStageIndex+1 == len(req.Stages)
	if last {
		return Decision{
			NextIndex:  len(req.Stages),
			NextStatus: types.StatusCompleted,
			Completes:  true,
		}, nil
	}
	return Decision{
		NextIndex:      req.CurrentStageIndex + 1,
		NextStatus:     types.StatusPending,
		ResetEscalated: true,
	}, nil
}

// DecideReject returns the transition for a rejection at the current stage.
// The stage index does not move; the request parks on hold until the owner
// resubmits.
func DecideReject(req *types.Request, reason string) (Decision, error) {
	if reason == "" {
		return Decision{}, fmt.Errorf("rejection reason is required: %w", ErrValidation)
	}
	switch req.CurrentStatus {
	case types.StatusCompleted:
		return Decision{}, fmt.Errorf("request %s is already completed: %w", req.ID, storage.ErrConflict)
	case types.StatusOnHold:
		return Decision{}, fmt.Errorf("request %s is already on hold: %w", req.ID, storage.ErrConflict)
	case types.StatusPending:
		return Decision{NextIndex: req.CurrentStageIndex, NextStatus: types.StatusOnHold}, nil
	default:
		return Decision{}, fmt.Errorf("request %s has invalid status %q: %w", req.ID, req.CurrentStatus, storage.ErrConflict)
	}
}

// DecideResubmit returns the transition for the owner resubmitting an on-hold
// request. The request resumes at the same stage it was rejected from, not at
// stage zero.
func DecideResubmit(req *types.Request) (Decision, error) {
	switch req.CurrentStatus {
	case types.StatusOnHold:
		return Decision{NextIndex: req.CurrentStageIndex, NextStatus: types.StatusPending}, nil
	case types.StatusPending:
		return Decision{}, fmt.Errorf("request %s is not on hold: %w", req.ID, storage.ErrConflict)
	case types.StatusCompleted:
		return Decision{}, fmt.Errorf("request %s is already completed: %w", req.ID, storage.ErrConflict)
	default:
		return Decision{}, fmt.Errorf("request %s has invalid status %q: %w", req.ID, req.CurrentStatus, storage.ErrConflict)
	}
}

// CanDelete reports whether the request may be hard-deleted. Completed
// requests are permanent records and can never be removed.
func CanDelete(req *types.Request) error {
	switch req.CurrentStatus {
	case types.StatusPending, types.StatusOnHold:
		return nil
	case types.StatusCompleted:
		return fmt.Errorf("completed request %s cannot be deleted: %w", req.ID, storage.ErrConflict)
	default:
		return fmt.Errorf("request %s has invalid status %q: %w", req.ID, req.CurrentStatus, storage.ErrConflict)
	}
}

// CanEscalate reports whether the request may be escalated at all.
// Escalation is orthogonal to the stage machine: it never moves the index or
// status, and only pending requests qualify.
func CanEscalate(req *types.Request) error {
	switch req.CurrentStatus {
	case types.StatusPending:
		return nil
	case types.StatusOnHold:
		return fmt.Errorf("request %s is on hold and awaiting the requester, not an authority: %w", req.ID, storage.ErrConflict)
	case types.StatusCompleted:
		return fmt.Errorf("request %s is already completed: %w", req.ID, storage.ErrConflict)
	default:
		return fmt.Errorf("request %s has invalid status %q: %w", req.ID, req.CurrentStatus, storage.ErrConflict)
	}
}
