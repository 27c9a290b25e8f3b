// Package types defines core data structures for the clearflow clearance tracker.
package types

import (
	"fmt"
	"time"
)

// SystemActor is the sentinel identity recorded when the escalation sweep
// (rather than an admin) escalates a request.
const SystemActor = "system"

// Request represents one multi-stage clearance request.
//
// Stages is copied from the owning DocumentType at creation time and is
// immutable afterward; CurrentStageIndex walks it from 0 to len(Stages).
// Index == len(Stages) together with StatusCompleted is the terminal state.
type Request struct {
	ID                string     `json:"id"`
	DocumentTypeID    string     `json:"document_type_id"`
	RequesterID       string     `json:"requester_id"`
	Stages            []string   `json:"stages"`
	CurrentStageIndex int        `json:"current_stage_index"`
	CurrentStatus     Status     `json:"current_status"`
	IsCompleted       bool       `json:"is_completed"`
	LastActivityAt    time.Time  `json:"last_activity_at"`
	Escalated         bool       `json:"escalated"`
	EscalationLevel   int        `json:"escalation_level"`
	EscalatedAt       *time.Time `json:"escalated_at,omitempty"`
	RejectionReason   string     `json:"rejection_reason,omitempty"` // Non-empty iff CurrentStatus == on_hold
	CreatedAt         time.Time  `json:"created_at"`

	// Version is the optimistic-concurrency token. Every committed transition
	// increments it; a stale writer fails its compare-and-swap.
	Version int64 `json:"version"`
}

// CurrentStage returns the name of the stage the request is waiting on,
// or "" once the request has cleared every stage.
func (r *Request) CurrentStage() string {
	if r.CurrentStageIndex < 0 || r.CurrentStageIndex >= len(r.Stages) {
		return ""
	}
	return r.Stages[r.CurrentStageIndex]
}

// DaysPending returns the whole days elapsed since the last state-changing
// activity on the request.
func (r *Request) DaysPending(now time.Time) int {
	d := int(now.Sub(r.LastActivityAt).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// Validate checks the request's structural invariants.
func (r *Request) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("request ID is required")
	}
	if r.RequesterID == "" {
		return fmt.Errorf("requester ID is required")
	}
	if len(r.Stages) == 0 {
		return fmt.Errorf("request must have at least one stage")
	}
	if r.CurrentStageIndex < 0 || r.CurrentStageIndex > len(r.Stages) {
		return fmt.Errorf("stage index %d out of range [0, %d]", r.CurrentStageIndex, len(r.Stages))
	}
	if !r.CurrentStatus.IsValid() {
		return fmt.Errorf("invalid status: %s", r.CurrentStatus)
	}
	terminal := r.CurrentStageIndex == len(r.Stages) && r.CurrentStatus == StatusCompleted
	if r.IsCompleted != terminal {
		return fmt.Errorf("is_completed=%v inconsistent with index %d/%d status %s",
			r.IsCompleted, r.CurrentStageIndex, len(r.Stages), r.CurrentStatus)
	}
	if r.CurrentStatus == StatusCompleted && !terminal {
		return fmt.Errorf("completed status requires index == len(stages)")
	}
	if r.EscalationLevel < 0 {
		return fmt.Errorf("escalation_level cannot be negative")
	}
	// Rejection reason must be present exactly while the request is on hold.
	if r.CurrentStatus == StatusOnHold && r.RejectionReason == "" {
		return fmt.Errorf("on-hold requests must have a rejection reason")
	}
	if r.CurrentStatus != StatusOnHold && r.RejectionReason != "" {
		return fmt.Errorf("only on-hold requests may carry a rejection reason")
	}
	return nil
}

// Status represents the current state of a request at its current stage
type Status string

// Request status constants
const (
	StatusPending   Status = "pending"   // Awaiting action from the current stage's authority
	StatusOnHold    Status = "on_hold"   // Rejected back to the requester; resubmit to continue
	StatusCompleted Status = "completed" // Cleared every stage; terminal
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusOnHold, StatusCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// DocumentType is the authoritative template new requests copy their stage
// sequence from.
type DocumentType struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	RequiredStages []string  `json:"required_stages"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate checks the document type's field values.
func (d *DocumentType) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("document type ID is required")
	}
	if d.Name == "" {
		return fmt.Errorf("document type name is required")
	}
	if len(d.RequiredStages) == 0 {
		return fmt.Errorf("document type must define at least one stage")
	}
	seen := make(map[string]bool, len(d.RequiredStages))
	for _, s := range d.RequiredStages {
		if s == "" {
			return fmt.Errorf("stage names cannot be empty")
		}
		if seen[s] {
			return fmt.Errorf("duplicate stage name: %s", s)
		}
		seen[s] = true
	}
	return nil
}

// EscalationEntry is one row of the append-only escalation audit ledger.
// Entries are never updated or deleted.
type EscalationEntry struct {
	ID          int64     `json:"id"`
	RequestID   string    `json:"request_id"`
	Level       int       `json:"level"`
	EscalatedBy string    `json:"escalated_by"` // SystemActor or an admin identity
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

// EscalationSource identifies who triggered an escalation. System escalations
// come from the sweep and are subject to the staleness threshold; manual
// escalations come from an admin and bypass it.
type EscalationSource struct {
	By     string
	Manual bool
}

// SystemSource returns the source used by the automatic sweep.
func SystemSource() EscalationSource {
	return EscalationSource{By: SystemActor}
}

// AdminSource returns a manual escalation source for the given admin.
func AdminSource(adminID string) EscalationSource {
	return EscalationSource{By: adminID, Manual: true}
}

// RequestFilter is used to filter request queries
type RequestFilter struct {
	Status         *Status
	RequesterID    string
	DocumentTypeID string
	Escalated      *bool

	// StaleBefore selects requests whose LastActivityAt is strictly older
	// than the given cutoff. Used by the escalation sweep.
	StaleBefore *time.Time

	// NotEscalatedSince excludes requests already escalated at or after the
	// given cutoff. Paired with StaleBefore it makes sweeps idempotent.
	NotEscalatedSince *time.Time

	Limit int
}

// EscalationStats provides aggregate escalation metrics for dashboards.
type EscalationStats struct {
	TotalEscalated    int         `json:"total_escalated"`
	ByLevel           map[int]int `json:"by_level"`
	RecentEscalations int         `json:"recent_escalations"` // escalated within the last 7 days
}

// RecentEscalationWindow is the lookback used for EscalationStats.RecentEscalations.
const RecentEscalationWindow = 7 * 24 * time.Hour
