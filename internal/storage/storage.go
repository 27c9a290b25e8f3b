// Package storage provides shared types for clearance request storage.
//
// The concrete implementations live in the sqlite, mysql, and memory
// sub-packages. This package holds the interface and sentinel errors that are
// referenced by both the backends and their consumers (lifecycle, escalation,
// cmd/cfl).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/clearstack/clearflow/internal/types"
)

// ErrNotFound is returned when a requested entity does not exist in the database.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a compare-and-swap update loses to a concurrent
// writer, or when a unique constraint is violated. Callers may reload and retry.
var ErrConflict = errors.New("conflict")

// ErrTransient is returned for retryable infrastructure failures (timeouts,
// dropped connections). The escalation sweep reports these per item and relies
// on the next scheduled sweep to retry.
var ErrTransient = errors.New("transient storage error")

// Storage is the interface satisfied by the sqlite, mysql, and memory backends.
// Consumers depend on this interface rather than on a concrete type so that
// backends can be substituted (and tests can run against the memory store).
type Storage interface {
	// Document types
	CreateDocumentType(ctx context.Context, dt *types.DocumentType) error
	GetDocumentType(ctx context.Context, id string) (*types.DocumentType, error)
	ListDocumentTypes(ctx context.Context) ([]*types.DocumentType, error)

	// Requests
	CreateRequest(ctx context.Context, req *types.Request) error
	GetRequest(ctx context.Context, id string) (*types.Request, error)

	// ListRequests returns requests matching the filter. When
	// filter.StaleBefore is set, results are ordered oldest LastActivityAt
	// first (sweep determinism); otherwise newest CreatedAt first.
	ListRequests(ctx context.Context, filter types.RequestFilter) ([]*types.Request, error)

	// UpdateRequest commits the already-mutated req if and only if the stored
	// row still carries expectedVersion, bumping req.Version on success.
	// A non-nil entry is appended to the escalation ledger inside the same
	// transaction, so state and audit row commit or fail together.
	// Returns ErrConflict if the version check fails.
	UpdateRequest(ctx context.Context, req *types.Request, expectedVersion int64, entry *types.EscalationEntry) error

	// DeleteRequest permanently removes the request and its ledger entries.
	// Returns ErrConflict if the stored version differs from expectedVersion.
	DeleteRequest(ctx context.Context, id string, expectedVersion int64) error

	// Escalation ledger (append-only; writes happen via UpdateRequest)
	ListEscalations(ctx context.Context, requestID string) ([]*types.EscalationEntry, error)

	// EscalationStats computes the dashboard rollups as of now.
	EscalationStats(ctx context.Context, now time.Time) (*types.EscalationStats, error)

	// Lifecycle
	Close() error
}
