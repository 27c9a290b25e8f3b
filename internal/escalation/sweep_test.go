package escalation

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearstack/clearflow/internal/storage/memory"
	"github.com/clearstack/clearflow/internal/types"
)

var baseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestEligible(t *testing.T) {
	threshold := 3 * 24 * time.Hour
	now := baseTime

	fresh := &types.Request{CurrentStatus: types.StatusPending, LastActivityAt: now.Add(-time.Hour)}
	stale := &types.Request{CurrentStatus: types.StatusPending, LastActivityAt: now.Add(-4 * 24 * time.Hour)}
	exactly := &types.Request{CurrentStatus: types.StatusPending, LastActivityAt: now.Add(-threshold)}
	onHold := &types.Request{CurrentStatus: types.StatusOnHold, LastActivityAt: now.Add(-10 * 24 * time.Hour)}
	completed := &types.Request{CurrentStatus: types.StatusCompleted, IsCompleted: true, LastActivityAt: now.Add(-10 * 24 * time.Hour)}

	assert.False(t, Eligible(fresh, now, threshold))
	assert.True(t, Eligible(stale, now, threshold))
	assert.True(t, Eligible(exactly, now, threshold), "exactly at threshold counts as stale")
	assert.False(t, Eligible(onHold, now, threshold))
	assert.False(t, Eligible(completed, now, threshold))
}

func TestEligibleRecentEscalationGate(t *testing.T) {
	threshold := 3 * 24 * time.Hour
	now := baseTime

	recent := now.Add(-time.Hour)
	old := now.Add(-5 * 24 * time.Hour)

	r := &types.Request{
		CurrentStatus:  types.StatusPending,
		LastActivityAt: now.Add(-4 * 24 * time.Hour),
		EscalatedAt:    &recent,
	}
	assert.False(t, Eligible(r, now, threshold), "escalated within the window is not re-eligible")

	r.EscalatedAt = &old
	assert.True(t, Eligible(r, now, threshold), "an old escalation does not block a new one")
}

// stubEscalator applies the escalation mutation directly against the store,
// mimicking the lifecycle handler without importing it.
type stubEscalator struct {
	store     *memory.Store
	threshold time.Duration
	now       func() time.Time

	mu      sync.Mutex
	failIDs map[string]error
	calls   []string
}

func (s *stubEscalator) EscalationThreshold() time.Duration { return s.threshold }

func (s *stubEscalator) SystemEscalate(ctx context.Context, req *types.Request) error {
	s.mu.Lock()
	s.calls = append(s.calls, req.ID)
	err := s.failIDs[req.ID]
	s.mu.Unlock()
	if err != nil {
		return err
	}

	now := s.now().UTC()
	expected := req.Version
	req.EscalationLevel++
	req.Escalated = true
	req.EscalatedAt = &now
	req.LastActivityAt = now
	return s.store.UpdateRequest(ctx, req, expected, &types.EscalationEntry{
		RequestID:   req.ID,
		Level:       req.EscalationLevel,
		EscalatedBy: types.SystemActor,
		Reason:      "Request pending for 4 days without action",
		CreatedAt:   now,
	})
}

func sweepFixture(t *testing.T) (*memory.Store, *stubEscalator, *Sweeper) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.CreateDocumentType(context.Background(), &types.DocumentType{
		ID: "dt-1", Name: "Clearance", RequiredStages: []string{"library"}, CreatedAt: baseTime,
	}))
	esc := &stubEscalator{
		store:     store,
		threshold: 3 * 24 * time.Hour,
		now:       func() time.Time { return baseTime },
		failIDs:   map[string]error{},
	}
	sweeper := NewSweeper(store, esc, SweepOptions{
		Now:       func() time.Time { return baseTime },
		LogWriter: &bytes.Buffer{},
	})
	return store, esc, sweeper
}

func addRequest(t *testing.T, store *memory.Store, id string, lastActivity time.Time) *types.Request {
	t.Helper()
	req := &types.Request{
		ID:             id,
		DocumentTypeID: "dt-1",
		RequesterID:    "student-1",
		Stages:         []string{"library"},
		CurrentStatus:  types.StatusPending,
		LastActivityAt: lastActivity,
		CreatedAt:      lastActivity,
		Version:        1,
	}
	require.NoError(t, store.CreateRequest(context.Background(), req))
	return req
}

// Scenario: one request four days stale, threshold three days. The sweep
// escalates it to level 1 and appends a system ledger entry.
func TestSweepEscalatesStaleRequest(t *testing.T) {
	store, _, sweeper := sweepFixture(t)
	ctx := context.Background()
	addRequest(t, store, "req-stale", baseTime.Add(-4*24*time.Hour))
	addRequest(t, store, "req-fresh", baseTime.Add(-time.Hour))

	report, err := sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Escalated)
	assert.Equal(t, 0, report.Failed)

	got, err := store.GetRequest(ctx, "req-stale")
	require.NoError(t, err)
	assert.Equal(t, 1, got.EscalationLevel)
	assert.True(t, got.Escalated)

	entries, err := store.ListEscalations(ctx, "req-stale")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.SystemActor, entries[0].EscalatedBy)

	fresh, err := store.GetRequest(ctx, "req-fresh")
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.EscalationLevel)
}

// Two sweeps back to back must not double-escalate: the first refreshes the
// activity clock, so the second finds nothing.
func TestSweepIsIdempotentAcrossRuns(t *testing.T) {
	store, _, sweeper := sweepFixture(t)
	ctx := context.Background()
	addRequest(t, store, "req-stale", baseTime.Add(-4*24*time.Hour))

	report, err := sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Escalated)

	report, err = sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Scanned)
	assert.Equal(t, 0, report.Escalated)

	got, err := store.GetRequest(ctx, "req-stale")
	require.NoError(t, err)
	assert.Equal(t, 1, got.EscalationLevel, "level must not grow without new staleness")
}

// One failing item must not abort the rest of the batch.
func TestSweepContinuesOnError(t *testing.T) {
	store, esc, sweeper := sweepFixture(t)
	ctx := context.Background()
	addRequest(t, store, "req-a", baseTime.Add(-6*24*time.Hour))
	addRequest(t, store, "req-b", baseTime.Add(-5*24*time.Hour))
	addRequest(t, store, "req-c", baseTime.Add(-4*24*time.Hour))
	esc.failIDs["req-b"] = errors.New("simulated storage timeout")

	report, err := sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 2, report.Escalated)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "req-b")
}

// Candidates are processed oldest activity first for determinism.
func TestSweepOrdersOldestFirst(t *testing.T) {
	store, esc, sweeper := sweepFixture(t)
	ctx := context.Background()
	addRequest(t, store, "req-newer", baseTime.Add(-4*24*time.Hour))
	addRequest(t, store, "req-oldest", baseTime.Add(-9*24*time.Hour))
	addRequest(t, store, "req-middle", baseTime.Add(-6*24*time.Hour))

	// Single worker so call order mirrors candidate order.
	sweeper.workers = 1

	report, err := sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Escalated)
	assert.Equal(t, []string{"req-oldest", "req-middle", "req-newer"}, esc.calls)
}

func TestSweepEmptyStore(t *testing.T) {
	_, _, sweeper := sweepFixture(t)
	report, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Scanned)
	assert.Empty(t, report.Errors)
}
