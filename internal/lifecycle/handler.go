package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/clearstack/clearflow/internal/authz"
	"github.com/clearstack/clearflow/internal/certificate"
	"github.com/clearstack/clearflow/internal/notification"
	"github.com/clearstack/clearflow/internal/storage"
	"github.com/clearstack/clearflow/internal/types"
)

const meterScope = "github.com/clearstack/clearflow/internal/lifecycle"

// DefaultEscalationThreshold is how long a request may sit pending before the
// sweep escalates it.
const DefaultEscalationThreshold = 3 * 24 * time.Hour

// Actor is the identity performing a transition.
type Actor struct {
	ID   string
	Role string
}

// Options configures a Handler. Zero values get sensible defaults.
type Options struct {
	Notifier            notification.Gateway
	Certificates        certificate.Issuer
	EscalationThreshold time.Duration
	Now                 func() time.Time
	LogWriter           io.Writer // destination for swallowed collaborator failures
}

// Handler applies sequencer decisions against persisted state.
//
// Every transition follows the same shape: load the row, authorize, decide,
// commit with a version compare-and-swap, then run side effects. Side effects
// run strictly after commit and are best-effort; their failures are logged and
// counted but never surfaced to the caller or rolled back.
type Handler struct {
	store     storage.Storage
	roles     *authz.Table
	notifier  notification.Gateway
	certs     certificate.Issuer
	threshold time.Duration
	now       func() time.Time
	logw      io.Writer

	transitions metric.Int64Counter
	sideEffects metric.Int64Counter
}

// NewHandler creates a transition handler over the given store and role table.
func NewHandler(store storage.Storage, roles *authz.Table, opts Options) *Handler {
	h := &Handler{
		store:     store,
		roles:     roles,
		notifier:  opts.Notifier,
		certs:     opts.Certificates,
		threshold: opts.EscalationThreshold,
		now:       opts.Now,
		logw:      opts.LogWriter,
	}
	if h.notifier == nil {
		h.notifier = notification.Noop{}
	}
	if h.certs == nil {
		h.certs = certificate.Noop{}
	}
	if h.threshold <= 0 {
		h.threshold = DefaultEscalationThreshold
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.logw == nil {
		h.logw = os.Stderr
	}

	meter := otel.Meter(meterScope)
	h.transitions, _ = meter.Int64Counter("clearflow.transitions",
		metric.WithDescription("Committed request transitions by operation"))
	h.sideEffects, _ = meter.Int64Counter("clearflow.side_effect_failures",
		metric.WithDescription("Post-commit collaborator failures (logged, not propagated)"))
	return h
}

// EscalationThreshold returns the configured staleness threshold.
func (h *Handler) EscalationThreshold() time.Duration {
	return h.threshold
}

// Submit creates a new request at stage zero, copying the stage sequence from
// the document type.
func (h *Handler) Submit(ctx context.Context, requesterID, documentTypeID string) (*types.Request, error) {
	if requesterID == "" {
		return nil, fmt.Errorf("requester ID is required: %w", ErrValidation)
	}
	if documentTypeID == "" {
		return nil, fmt.Errorf("document type ID is required: %w", ErrValidation)
	}

	dt, err := h.store.GetDocumentType(ctx, documentTypeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("unknown document type %s: %w", documentTypeID, ErrValidation)
		}
		return nil, err
	}

	now := h.now().UTC()
	req := &types.Request{
		ID:                uuid.NewString(),
		DocumentTypeID:    dt.ID,
		RequesterID:       requesterID,
		Stages:            append([]string(nil), dt.RequiredStages...),
		CurrentStageIndex: 0,
		CurrentStatus:     types.StatusPending,
		LastActivityAt:    now,
		CreatedAt:         now,
		Version:           1,
	}
	if err := h.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	h.countTransition(ctx, "submit")

	h.runSideEffect(ctx, "notify submitted", req.ID, func(ctx context.Context) error {
		return h.notifier.NotifySubmitted(ctx, req.ID, req.RequesterID)
	})
	return req, nil
}

// Approve advances a pending request past its current stage. The approval
// that clears the final stage completes the request and triggers certificate
// generation, exactly once.
func (h *Handler) Approve(ctx context.Context, requestID string, actor Actor) (*types.Request, error) {
	req, err := h.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	decision, err := DecideApprove(req)
	if err != nil {
		return nil, err
	}
	stage := req.CurrentStage()
	if !h.roles.CanActOnStage(actor.Role, stage) {
		return nil, fmt.Errorf("role %q does not own stage %q: %w", actor.Role, stage, ErrUnauthorized)
	}

	expected := req.Version
	req.CurrentStageIndex = decision.NextIndex
	req.CurrentStatus = decision.NextStatus
	req.IsCompleted = decision.Completes
	if decision.ResetEscalated {
		// New stage, new staleness clock. Cumulative level is retained.
		req.Escalated = false
	}
	req.LastActivityAt = h.now().UTC()

	if err := h.store.UpdateRequest(ctx, req, expected, nil); err != nil {
		return nil, err
	}
	h.countTransition(ctx, "approve")

	h.runSideEffect(ctx, "notify approved", req.ID, func(ctx context.Context) error {
		return h.notifier.NotifyApproved(ctx, req.ID, req.RequesterID, stage, req.IsCompleted)
	})
	if decision.Completes {
		h.runSideEffect(ctx, "generate certificate", req.ID, func(ctx context.Context) error {
			return h.certs.Generate(ctx, req.ID)
		})
	}
	return req, nil
}

// Reject puts a pending request on hold with a mandatory reason. The stage
// index is unchanged; the owner resumes at the same stage via Resubmit.
func (h *Handler) Reject(ctx context.Context, requestID string, actor Actor, reason string) (*types.Request, error) {
	req, err := h.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	decision, err := DecideReject(req, reason)
	if err != nil {
		return nil, err
	}
	stage := req.CurrentStage()
	if !h.roles.CanActOnStage(actor.Role, stage) {
		return nil, fmt.Errorf("role %q does not own stage %q: %w", actor.Role, stage, ErrUnauthorized)
	}

	expected := req.Version
	req.CurrentStatus = decision.NextStatus
	req.RejectionReason = reason
	req.LastActivityAt = h.now().UTC()

	if err := h.store.UpdateRequest(ctx, req, expected, nil); err != nil {
		return nil, err
	}
	h.countTransition(ctx, "reject")

	h.runSideEffect(ctx, "notify rejected", req.ID, func(ctx context.Context) error {
		return h.notifier.NotifyRejected(ctx, req.ID, req.RequesterID, stage, reason)
	})
	return req, nil
}

// Resubmit returns an on-hold request to pending at the same stage, clearing
// the rejection reason. Only the owner may resubmit.
func (h *Handler) Resubmit(ctx context.Context, requestID, ownerID string) (*types.Request, error) {
	req, err := h.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != ownerID {
		return nil, fmt.Errorf("only the request owner may resubmit: %w", ErrUnauthorized)
	}

	decision, err := DecideResubmit(req)
	if err != nil {
		return nil, err
	}

	expected := req.Version
	req.CurrentStatus = decision.NextStatus
	req.RejectionReason = ""
	req.LastActivityAt = h.now().UTC()

	if err := h.store.UpdateRequest(ctx, req, expected, nil); err != nil {
		return nil, err
	}
	h.countTransition(ctx, "resubmit")
	return req, nil
}

// Delete permanently removes a request. Only the owner may delete, and only
// while the request is pending or on hold.
func (h *Handler) Delete(ctx context.Context, requestID, ownerID string) error {
	req, err := h.store.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.RequesterID != ownerID {
		return fmt.Errorf("only the request owner may delete: %w", ErrUnauthorized)
	}
	if err := CanDelete(req); err != nil {
		return err
	}
	if err := h.store.DeleteRequest(ctx, requestID, req.Version); err != nil {
		return err
	}
	h.countTransition(ctx, "delete")
	return nil
}

// ManualEscalate raises a request's escalation level on an admin's authority,
// bypassing the staleness threshold. Requires the super flag.
func (h *Handler) ManualEscalate(ctx context.Context, requestID string, admin Actor, reason string) (*types.Request, error) {
	if !h.roles.IsSuper(admin.Role) {
		return nil, fmt.Errorf("role %q lacks super authority for manual escalation: %w", admin.Role, ErrUnauthorized)
	}
	req, err := h.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "Manually escalated by admin"
	}
	if err := h.escalate(ctx, req, types.AdminSource(admin.ID), reason); err != nil {
		return nil, err
	}
	return req, nil
}

// SystemEscalate raises the escalation level of a stale pending request on
// behalf of the sweep. The staleness threshold is enforced here as well as in
// the sweep's query, so a racing activity refresh loses cleanly.
func (h *Handler) SystemEscalate(ctx context.Context, req *types.Request) error {
	now := h.now().UTC()
	if now.Sub(req.LastActivityAt) < h.threshold {
		return fmt.Errorf("request %s is not stale (last activity %s): %w",
			req.ID, req.LastActivityAt.Format(time.RFC3339), storage.ErrConflict)
	}
	reason := fmt.Sprintf("Request pending for %d days without action", req.DaysPending(now))
	return h.escalate(ctx, req, types.SystemSource(), reason)
}

// escalate applies the escalation transition: level bump, flag set, ledger
// append, all in one commit. The stage index and status never move, but
// LastActivityAt is refreshed so back-to-back sweeps do not re-escalate the
// same request indefinitely.
func (h *Handler) escalate(ctx context.Context, req *types.Request, src types.EscalationSource, reason string) error {
	if err := CanEscalate(req); err != nil {
		return err
	}

	now := h.now().UTC()
	daysPending := req.DaysPending(now)
	expected := req.Version
	req.EscalationLevel++
	req.Escalated = true
	req.EscalatedAt = &now
	req.LastActivityAt = now

	entry := &types.EscalationEntry{
		RequestID:   req.ID,
		Level:       req.EscalationLevel,
		EscalatedBy: src.By,
		Reason:      reason,
		CreatedAt:   now,
	}
	if err := h.store.UpdateRequest(ctx, req, expected, entry); err != nil {
		return err
	}
	h.countTransition(ctx, "escalate")

	h.runSideEffect(ctx, "notify escalated", req.ID, func(ctx context.Context) error {
		return h.notifier.NotifyEscalated(ctx, req.ID, req.EscalationLevel, daysPending)
	})
	return nil
}

// runSideEffect executes a post-commit collaborator call. Failures are
// downgraded to a logged warning and a counter bump; the transition that
// triggered them has already committed and must not be negated.
func (h *Handler) runSideEffect(ctx context.Context, name, requestID string, fn func(ctx context.Context) error) {
	if err := fn(ctx); err != nil {
		wrapped := fmt.Errorf("%s for request %s: %v: %w", name, requestID, err, ErrDependency)
		fmt.Fprintf(h.logw, "warning: %v\n", wrapped)
		if h.sideEffects != nil {
			h.sideEffects.Add(ctx, 1, metric.WithAttributes(attribute.String("effect", name)))
		}
	}
}

func (h *Handler) countTransition(ctx context.Context, op string) {
	if h.transitions != nil {
		h.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}
}
