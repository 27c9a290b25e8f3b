package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/clearstack/clearflow/internal/types"
)

// insertEscalation appends a ledger row inside an open transaction. The ledger
// has no update or delete path; this is its only write.
func insertEscalation(ctx context.Context, tx *sql.Tx, entry *types.EscalationEntry) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO escalation_history (request_id, escalation_level, escalated_by, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.RequestID, entry.Level, entry.EscalatedBy, entry.Reason, entry.CreatedAt)
	if err != nil {
		return wrapDBErrorf(err, "append escalation for %s", entry.RequestID)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// ListEscalations returns the escalation ledger for a request, newest first.
func (s *Store) ListEscalations(ctx context.Context, requestID string) ([]*types.EscalationEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, escalation_level, escalated_by, reason, created_at
		FROM escalation_history
		WHERE request_id = ?
		ORDER BY created_at DESC, id DESC
	`, requestID)
	if err != nil {
		return nil, wrapDBError("list escalations", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.EscalationEntry
	for rows.Next() {
		var e types.EscalationEntry
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Level, &e.EscalatedBy, &e.Reason, &e.CreatedAt); err != nil {
			return nil, wrapDBError("scan escalation", err)
		}
		out = append(out, &e)
	}
	return out, wrapDBError("list escalations", rows.Err())
}

// EscalationStats computes dashboard rollups over the requests table.
func (s *Store) EscalationStats(ctx context.Context, now time.Time) (*types.EscalationStats, error) {
	stats := &types.EscalationStats{ByLevel: make(map[int]int)}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE escalated = 1`).Scan(&stats.TotalEscalated)
	if err != nil {
		return nil, wrapDBError("escalation stats: total", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT escalation_level, COUNT(*)
		FROM requests WHERE escalated = 1
		GROUP BY escalation_level
	`)
	if err != nil {
		return nil, wrapDBError("escalation stats: by level", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var level, count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, wrapDBError("escalation stats: scan level", err)
		}
		stats.ByLevel[level] = count
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("escalation stats: by level", err)
	}

	cutoff := now.Add(-types.RecentEscalationWindow)
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM requests
		WHERE escalated = 1 AND escalated_at IS NOT NULL AND escalated_at >= ?
	`, cutoff).Scan(&stats.RecentEscalations)
	if err != nil {
		return nil, wrapDBError("escalation stats: recent", err)
	}

	return stats, nil
}
