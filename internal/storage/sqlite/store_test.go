package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearstack/clearflow/internal/storage"
	"github.com/clearstack/clearflow/internal/types"
)

var testTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// testStore opens a fresh on-disk store so tests never share state through
// the shared in-memory database.
func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedDocType(t *testing.T, s *Store) *types.DocumentType {
	t.Helper()
	dt := &types.DocumentType{
		ID:             "dt-1",
		Name:           "Graduation Clearance",
		RequiredStages: []string{"library", "cashier", "registrar"},
		CreatedAt:      testTime,
	}
	require.NoError(t, s.CreateDocumentType(context.Background(), dt))
	return dt
}

func seedRequest(t *testing.T, s *Store, id string, mutate func(*types.Request)) *types.Request {
	t.Helper()
	req := &types.Request{
		ID:             id,
		DocumentTypeID: "dt-1",
		RequesterID:    "student-1",
		Stages:         []string{"library", "cashier", "registrar"},
		CurrentStatus:  types.StatusPending,
		LastActivityAt: testTime,
		CreatedAt:      testTime,
		Version:        1,
	}
	if mutate != nil {
		mutate(req)
	}
	require.NoError(t, s.CreateRequest(context.Background(), req))
	return req
}

func TestDocumentTypeRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	dt := seedDocType(t, s)

	got, err := s.GetDocumentType(ctx, dt.ID)
	require.NoError(t, err)
	assert.Equal(t, dt.Name, got.Name)
	assert.Equal(t, dt.RequiredStages, got.RequiredStages)

	_, err = s.GetDocumentType(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDocumentTypeDuplicateName(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedDocType(t, s)

	err := s.CreateDocumentType(ctx, &types.DocumentType{
		ID:             "dt-2",
		Name:           "Graduation Clearance",
		RequiredStages: []string{"library"},
		CreatedAt:      testTime,
	})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestListDocumentTypesOrderedByName(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	for _, name := range []string{"Transcript", "Clearance", "Diploma"} {
		require.NoError(t, s.CreateDocumentType(ctx, &types.DocumentType{
			ID:             "dt-" + name,
			Name:           name,
			RequiredStages: []string{"registrar"},
			CreatedAt:      testTime,
		}))
	}
	got, err := s.ListDocumentTypes(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Clearance", got[0].Name)
	assert.Equal(t, "Diploma", got[1].Name)
	assert.Equal(t, "Transcript", got[2].Name)
}

func TestRequestRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedDocType(t, s)
	req := seedRequest(t, s, "req-1", func(r *types.Request) {
		r.CurrentStageIndex = 1
		r.CurrentStatus = types.StatusOnHold
		r.RejectionReason = "missing receipt"
	})

	got, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.Stages, got.Stages)
	assert.Equal(t, 1, got.CurrentStageIndex)
	assert.Equal(t, types.StatusOnHold, got.CurrentStatus)
	assert.Equal(t, "missing receipt", got.RejectionReason)
	assert.Equal(t, int64(1), got.Version)
	assert.Nil(t, got.EscalatedAt)
	assert.True(t, got.LastActivityAt.Equal(testTime))

	_, err = s.GetRequest(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateRequestVersionCheck(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedDocType(t, s)
	req := seedRequest(t, s, "req-1", nil)

	req.CurrentStageIndex = 1
	require.NoError(t, s.UpdateRequest(ctx, req, 1, nil))
	assert.Equal(t, int64(2), req.Version)

	// Stale version loses.
	stale := *req
	stale.Stages = append([]string(nil), req.Stages...)
	err := s.UpdateRequest(ctx, &stale, 1, nil)
	assert.ErrorIs(t, err, storage.ErrConflict)

	// Missing row is reported as not found, not conflict.
	gone := *req
	gone.ID = "missing"
	err = s.UpdateRequest(ctx, &gone, 1, nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, 1, got.CurrentStageIndex)
}

func TestUpdateRequestCommitsLedgerAtomically(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedDocType(t, s)
	req := seedRequest(t, s, "req-1", nil)

	escalatedAt := testTime.Add(time.Hour)
	req.Escalated = true
	req.EscalationLevel = 1
	req.EscalatedAt = &escalatedAt
	req.LastActivityAt = escalatedAt
	entry := &types.EscalationEntry{
		RequestID:   req.ID,
		Level:       1,
		EscalatedBy: types.SystemActor,
		Reason:      "Request pending for 4 days without action",
		CreatedAt:   escalatedAt,
	}
	require.NoError(t, s.UpdateRequest(ctx, req, 1, entry))
	assert.NotZero(t, entry.ID)

	entries, err := s.ListEscalations(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Level)
	assert.Equal(t, types.SystemActor, entries[0].EscalatedBy)

	// A conflicting update must not leave a stray ledger row behind.
	stale := *req
	stale.Stages = append([]string(nil), req.Stages...)
	stale.EscalationLevel = 2
	err = s.UpdateRequest(ctx, &stale, 1, &types.EscalationEntry{
		RequestID:   req.ID,
		Level:       2,
		EscalatedBy: types.SystemActor,
		Reason:      "should never land",
		CreatedAt:   escalatedAt,
	})
	assert.ErrorIs(t, err, storage.ErrConflict)

	entries, err = s.ListEscalations(ctx, req.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestListEscalationsNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedDocType(t, s)
	req := seedRequest(t, s, "req-1", nil)

	for i := 1; i <= 3; i++ {
		at := testTime.Add(time.Duration(i) * time.Hour)
		req.EscalationLevel = i
		req.Escalated = true
		req.EscalatedAt = &at
		req.LastActivityAt = at
		require.NoError(t, s.UpdateRequest(ctx, req, req.Version, &types.EscalationEntry{
			RequestID:   req.ID,
			Level:       i,
			EscalatedBy: "admin-1",
			Reason:      "Manually escalated by admin",
			CreatedAt:   at,
		}))
	}

	entries, err := s.ListEscalations(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 3, entries[0].Level)
	assert.Equal(t, 2, entries[1].Level)
	assert.Equal(t, 1, entries[2].Level)
}

func TestDeleteRequestCascadesLedger(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedDocType(t, s)
	req := seedRequest(t, s, "req-1", nil)

	at := testTime.Add(time.Hour)
	req.Escalated = true
	req.EscalationLevel = 1
	req.EscalatedAt = &at
	require.NoError(t, s.UpdateRequest(ctx, req, 1, &types.EscalationEntry{
		RequestID: req.ID, Level: 1, EscalatedBy: "admin-1", Reason: "r", CreatedAt: at,
	}))

	err := s.DeleteRequest(ctx, req.ID, 1)
	assert.ErrorIs(t, err, storage.ErrConflict, "stale version must not delete")

	require.NoError(t, s.DeleteRequest(ctx, req.ID, req.Version))
	_, err = s.GetRequest(ctx, req.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	entries, err := s.ListEscalations(ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	err = s.DeleteRequest(ctx, req.ID, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListRequestsFilters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedDocType(t, s)
	seedRequest(t, s, "req-1", func(r *types.Request) {
		r.RequesterID = "student-1"
		r.CreatedAt = testTime
	})
	seedRequest(t, s, "req-2", func(r *types.Request) {
		r.RequesterID = "student-2"
		r.CurrentStatus = types.StatusOnHold
		r.RejectionReason = "unpaid balance"
		r.CreatedAt = testTime.Add(time.Hour)
	})
	seedRequest(t, s, "req-3", func(r *types.Request) {
		r.RequesterID = "student-1"
		r.Escalated = true
		r.EscalationLevel = 1
		at := testTime
		r.EscalatedAt = &at
		r.CreatedAt = testTime.Add(2 * time.Hour)
	})

	all, err := s.ListRequests(ctx, types.RequestFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "req-3", all[0].ID, "default ordering is newest created first")

	onHold := types.StatusOnHold
	got, err := s.ListRequests(ctx, types.RequestFilter{Status: &onHold})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "req-2", got[0].ID)

	got, err = s.ListRequests(ctx, types.RequestFilter{RequesterID: "student-1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	escalated := true
	got, err = s.ListRequests(ctx, types.RequestFilter{Escalated: &escalated})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "req-3", got[0].ID)

	got, err = s.ListRequests(ctx, types.RequestFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestListRequestsSweepQuery(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedDocType(t, s)
	seedRequest(t, s, "req-stale", func(r *types.Request) {
		r.LastActivityAt = testTime.Add(-4 * 24 * time.Hour)
	})
	seedRequest(t, s, "req-staler", func(r *types.Request) {
		r.LastActivityAt = testTime.Add(-9 * 24 * time.Hour)
	})
	seedRequest(t, s, "req-fresh", func(r *types.Request) {
		r.LastActivityAt = testTime.Add(-time.Hour)
	})
	seedRequest(t, s, "req-done", func(r *types.Request) {
		r.CurrentStatus = types.StatusCompleted
		r.IsCompleted = true
		r.CurrentStageIndex = 3
		r.LastActivityAt = testTime.Add(-9 * 24 * time.Hour)
	})
	seedRequest(t, s, "req-recent-esc", func(r *types.Request) {
		r.LastActivityAt = testTime.Add(-4 * 24 * time.Hour)
		r.Escalated = true
		r.EscalationLevel = 1
		at := testTime.Add(-time.Hour)
		r.EscalatedAt = &at
	})

	cutoff := testTime.Add(-3 * 24 * time.Hour)
	pending := types.StatusPending
	got, err := s.ListRequests(ctx, types.RequestFilter{
		Status:            &pending,
		StaleBefore:       &cutoff,
		NotEscalatedSince: &cutoff,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "req-staler", got[0].ID, "oldest activity first")
	assert.Equal(t, "req-stale", got[1].ID)
}

func TestEscalationStats(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedDocType(t, s)

	recent := testTime.Add(-2 * 24 * time.Hour)
	old := testTime.Add(-20 * 24 * time.Hour)
	seedRequest(t, s, "req-1", func(r *types.Request) {
		r.Escalated = true
		r.EscalationLevel = 1
		r.EscalatedAt = &recent
	})
	seedRequest(t, s, "req-2", func(r *types.Request) {
		r.Escalated = true
		r.EscalationLevel = 1
		r.EscalatedAt = &old
	})
	seedRequest(t, s, "req-3", func(r *types.Request) {
		r.Escalated = true
		r.EscalationLevel = 3
		r.EscalatedAt = &recent
	})
	seedRequest(t, s, "req-4", nil) // never escalated, excluded entirely

	stats, err := s.EscalationStats(ctx, testTime)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalEscalated)
	assert.Equal(t, 2, stats.RecentEscalations)
	assert.Equal(t, map[int]int{1: 2, 3: 1}, stats.ByLevel)
}

func TestCreateRequestRejectsInvalid(t *testing.T) {
	s := testStore(t)
	seedDocType(t, s)
	err := s.CreateRequest(context.Background(), &types.Request{ID: "bad"})
	assert.Error(t, err)
}

func TestStoreReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persist.db")
	ctx := context.Background()

	s, err := New(ctx, path)
	require.NoError(t, err)
	seedDocType(t, s)
	seedRequest(t, s, "req-1", nil)
	require.NoError(t, s.Close())

	s2, err := New(ctx, path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", got.ID)
}
