// Package memory implements the storage interface with in-process maps.
// It exists for tests and ephemeral runs; semantics (CAS versioning, sweep
// ordering, atomic state+ledger commit) match the SQL backends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/clearstack/clearflow/internal/storage"
	"github.com/clearstack/clearflow/internal/types"
)

// Store implements storage.Storage in memory.
type Store struct {
	mu           sync.RWMutex
	docTypes     map[string]*types.DocumentType
	requests     map[string]*types.Request
	escalations  map[string][]*types.EscalationEntry // keyed by request ID
	nextLedgerID int64
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		docTypes:     make(map[string]*types.DocumentType),
		requests:     make(map[string]*types.Request),
		escalations:  make(map[string][]*types.EscalationEntry),
		nextLedgerID: 1,
	}
}

// CreateDocumentType inserts a new document type.
func (m *Store) CreateDocumentType(_ context.Context, dt *types.DocumentType) error {
	if err := dt.Validate(); err != nil {
		return fmt.Errorf("invalid document type: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docTypes[dt.ID]; ok {
		return fmt.Errorf("document type %s already exists: %w", dt.ID, storage.ErrConflict)
	}
	for _, existing := range m.docTypes {
		if existing.Name == dt.Name {
			return fmt.Errorf("document type name %q already exists: %w", dt.Name, storage.ErrConflict)
		}
	}
	m.docTypes[dt.ID] = copyDocType(dt)
	return nil
}

// GetDocumentType retrieves a document type by ID.
func (m *Store) GetDocumentType(_ context.Context, id string) (*types.DocumentType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dt, ok := m.docTypes[id]
	if !ok {
		return nil, fmt.Errorf("document type %s: %w", id, storage.ErrNotFound)
	}
	return copyDocType(dt), nil
}

// ListDocumentTypes returns all document types ordered by name.
func (m *Store) ListDocumentTypes(_ context.Context) ([]*types.DocumentType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.DocumentType, 0, len(m.docTypes))
	for _, dt := range m.docTypes {
		out = append(out, copyDocType(dt))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateRequest inserts a new request.
func (m *Store) CreateRequest(_ context.Context, req *types.Request) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[req.ID]; ok {
		return fmt.Errorf("request %s already exists: %w", req.ID, storage.ErrConflict)
	}
	m.requests[req.ID] = copyRequest(req)
	return nil
}

// GetRequest retrieves a request by ID.
func (m *Store) GetRequest(_ context.Context, id string) (*types.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, storage.ErrNotFound)
	}
	return copyRequest(req), nil
}

// ListRequests returns requests matching the filter with the same ordering
// contract as the SQL backends.
func (m *Store) ListRequests(_ context.Context, filter types.RequestFilter) ([]*types.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*types.Request
	for _, req := range m.requests {
		if filter.Status != nil && req.CurrentStatus != *filter.Status {
			continue
		}
		if filter.RequesterID != "" && req.RequesterID != filter.RequesterID {
			continue
		}
		if filter.DocumentTypeID != "" && req.DocumentTypeID != filter.DocumentTypeID {
			continue
		}
		if filter.Escalated != nil && req.Escalated != *filter.Escalated {
			continue
		}
		if filter.StaleBefore != nil {
			if req.IsCompleted || !req.LastActivityAt.Before(*filter.StaleBefore) {
				continue
			}
		}
		if filter.NotEscalatedSince != nil {
			if req.EscalatedAt != nil && !req.EscalatedAt.Before(*filter.NotEscalatedSince) {
				continue
			}
		}
		out = append(out, copyRequest(req))
	}

	if filter.StaleBefore != nil {
		sort.Slice(out, func(i, j int) bool {
			return out[i].LastActivityAt.Before(out[j].LastActivityAt)
		})
	} else {
		sort.Slice(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// UpdateRequest commits a mutated request under the version check, appending
// the ledger entry in the same critical section.
func (m *Store) UpdateRequest(_ context.Context, req *types.Request, expectedVersion int64, entry *types.EscalationEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.requests[req.ID]
	if !ok {
		return fmt.Errorf("request %s: %w", req.ID, storage.ErrNotFound)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("request %s was modified concurrently: %w", req.ID, storage.ErrConflict)
	}

	req.Version = expectedVersion + 1
	m.requests[req.ID] = copyRequest(req)

	if entry != nil {
		e := *entry
		e.ID = m.nextLedgerID
		m.nextLedgerID++
		m.escalations[req.ID] = append(m.escalations[req.ID], &e)
		entry.ID = e.ID
	}
	return nil
}

// DeleteRequest removes a request and its ledger rows under the version check.
func (m *Store) DeleteRequest(_ context.Context, id string, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.requests[id]
	if !ok {
		return fmt.Errorf("request %s: %w", id, storage.ErrNotFound)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("request %s was modified concurrently: %w", id, storage.ErrConflict)
	}
	delete(m.requests, id)
	delete(m.escalations, id)
	return nil
}

// ListEscalations returns the ledger for a request, newest first.
func (m *Store) ListEscalations(_ context.Context, requestID string) ([]*types.EscalationEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.escalations[requestID]
	out := make([]*types.EscalationEntry, 0, len(entries))
	for _, e := range entries {
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// EscalationStats computes the dashboard rollups.
func (m *Store) EscalationStats(_ context.Context, now time.Time) (*types.EscalationStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &types.EscalationStats{ByLevel: make(map[int]int)}
	cutoff := now.Add(-types.RecentEscalationWindow)
	for _, req := range m.requests {
		if !req.Escalated {
			continue
		}
		stats.TotalEscalated++
		stats.ByLevel[req.EscalationLevel]++
		if req.EscalatedAt != nil && !req.EscalatedAt.Before(cutoff) {
			stats.RecentEscalations++
		}
	}
	return stats, nil
}

// Close is a no-op for the memory backend.
func (m *Store) Close() error {
	return nil
}

func copyRequest(r *types.Request) *types.Request {
	c := *r
	c.Stages = append([]string(nil), r.Stages...)
	if r.EscalatedAt != nil {
		t := *r.EscalatedAt
		c.EscalatedAt = &t
	}
	return &c
}

func copyDocType(d *types.DocumentType) *types.DocumentType {
	c := *d
	c.RequiredStages = append([]string(nil), d.RequiredStages...)
	return &c
}
