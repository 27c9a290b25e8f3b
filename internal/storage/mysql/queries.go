package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/clearstack/clearflow/internal/storage"
	"github.com/clearstack/clearflow/internal/types"
)

const requestColumns = `id, document_type_id, requester_id, stages, current_stage_index,
	current_status, is_completed, last_activity_at, escalated, escalation_level,
	escalated_at, rejection_reason, created_at, version`

// CreateDocumentType inserts a new document type.
func (s *Store) CreateDocumentType(ctx context.Context, dt *types.DocumentType) error {
	if err := dt.Validate(); err != nil {
		return fmt.Errorf("invalid document type: %w", err)
	}
	stages, err := json.Marshal(dt.RequiredStages)
	if err != nil {
		return fmt.Errorf("failed to marshal stages: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO document_types (id, name, required_stages, created_at)
		VALUES (?, ?, ?, ?)
	`, dt.ID, dt.Name, string(stages), dt.CreatedAt)
	return wrapDBError("create document type", err)
}

// GetDocumentType retrieves a document type by ID.
func (s *Store) GetDocumentType(ctx context.Context, id string) (*types.DocumentType, error) {
	var dt types.DocumentType
	var stages string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, required_stages, created_at
		FROM document_types WHERE id = ?
	`, id).Scan(&dt.ID, &dt.Name, &stages, &dt.CreatedAt)
	if err != nil {
		return nil, wrapDBErrorf(err, "get document type %s", id)
	}
	if err := json.Unmarshal([]byte(stages), &dt.RequiredStages); err != nil {
		return nil, fmt.Errorf("failed to parse stages: %w", err)
	}
	return &dt, nil
}

// ListDocumentTypes returns all document types ordered by name.
func (s *Store) ListDocumentTypes(ctx context.Context) ([]*types.DocumentType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, required_stages, created_at
		FROM document_types ORDER BY name
	`)
	if err != nil {
		return nil, wrapDBError("list document types", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.DocumentType
	for rows.Next() {
		var dt types.DocumentType
		var stages string
		if err := rows.Scan(&dt.ID, &dt.Name, &stages, &dt.CreatedAt); err != nil {
			return nil, wrapDBError("scan document type", err)
		}
		if err := json.Unmarshal([]byte(stages), &dt.RequiredStages); err != nil {
			return nil, fmt.Errorf("failed to parse stages: %w", err)
		}
		out = append(out, &dt)
	}
	return out, wrapDBError("list document types", rows.Err())
}

// CreateRequest inserts a new request row.
func (s *Store) CreateRequest(ctx context.Context, req *types.Request) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	stages, err := json.Marshal(req.Stages)
	if err != nil {
		return fmt.Errorf("failed to marshal stages: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO requests (
			id, document_type_id, requester_id, stages, current_stage_index,
			current_status, is_completed, last_activity_at, escalated,
			escalation_level, escalated_at, rejection_reason, created_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		req.ID, req.DocumentTypeID, req.RequesterID, string(stages), req.CurrentStageIndex,
		req.CurrentStatus, req.IsCompleted, req.LastActivityAt, req.Escalated,
		req.EscalationLevel, req.EscalatedAt, req.RejectionReason, req.CreatedAt, req.Version,
	)
	return wrapDBError("create request", err)
}

// GetRequest retrieves a request by ID.
func (s *Store) GetRequest(ctx context.Context, id string) (*types.Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	req, err := scanRequest(row)
	if err != nil {
		return nil, wrapDBErrorf(err, "get request %s", id)
	}
	return req, nil
}

// ListRequests returns requests matching the filter.
func (s *Store) ListRequests(ctx context.Context, filter types.RequestFilter) ([]*types.Request, error) {
	var conds []string
	var args []interface{}

	if filter.Status != nil {
		conds = append(conds, "current_status = ?")
		args = append(args, *filter.Status)
	}
	if filter.RequesterID != "" {
		conds = append(conds, "requester_id = ?")
		args = append(args, filter.RequesterID)
	}
	if filter.DocumentTypeID != "" {
		conds = append(conds, "document_type_id = ?")
		args = append(args, filter.DocumentTypeID)
	}
	if filter.Escalated != nil {
		conds = append(conds, "escalated = ?")
		args = append(args, *filter.Escalated)
	}
	if filter.StaleBefore != nil {
		conds = append(conds, "is_completed = 0 AND last_activity_at < ?")
		args = append(args, *filter.StaleBefore)
	}
	if filter.NotEscalatedSince != nil {
		conds = append(conds, "(escalated_at IS NULL OR escalated_at < ?)")
		args = append(args, *filter.NotEscalatedSince)
	}

	query := `SELECT ` + requestColumns + ` FROM requests`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if filter.StaleBefore != nil {
		query += " ORDER BY last_activity_at ASC"
	} else {
		query += " ORDER BY created_at DESC"
	}
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list requests", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, wrapDBError("scan request", err)
		}
		out = append(out, req)
	}
	return out, wrapDBError("list requests", rows.Err())
}

// UpdateRequest commits a mutated request using the version compare-and-swap,
// appending the ledger entry in the same transaction.
func (s *Store) UpdateRequest(ctx context.Context, req *types.Request, expectedVersion int64, entry *types.EscalationEntry) error {
	stages, err := json.Marshal(req.Stages)
	if err != nil {
		return fmt.Errorf("failed to marshal stages: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError("begin update", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE requests SET
			stages = ?, current_stage_index = ?, current_status = ?,
			is_completed = ?, last_activity_at = ?, escalated = ?,
			escalation_level = ?, escalated_at = ?, rejection_reason = ?,
			version = version + 1
		WHERE id = ? AND version = ?
	`,
		string(stages), req.CurrentStageIndex, req.CurrentStatus,
		req.IsCompleted, req.LastActivityAt, req.Escalated,
		req.EscalationLevel, req.EscalatedAt, req.RejectionReason,
		req.ID, expectedVersion,
	)
	if err != nil {
		return wrapDBErrorf(err, "update request %s", req.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("update request", err)
	}
	if n == 0 {
		return versionCheckFailure(ctx, tx, req.ID)
	}

	if entry != nil {
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
	}

	if err := tx.Commit(); err != nil {
		return wrapDBErrorf(err, "commit update %s", req.ID)
	}
	req.Version = expectedVersion + 1
	return nil
}

// DeleteRequest permanently removes a request under the version check.
func (s *Store) DeleteRequest(ctx context.Context, id string, expectedVersion int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError("begin delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM requests WHERE id = ? AND version = ?`, id, expectedVersion)
	if err != nil {
		return wrapDBErrorf(err, "delete request %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("delete request", err)
	}
	if n == 0 {
		return versionCheckFailure(ctx, tx, id)
	}
	return wrapDBErrorf(tx.Commit(), "commit delete %s", id)
}

// ListEscalations returns the ledger for a request, newest first.
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

func versionCheckFailure(ctx context.Context, tx *sql.Tx, id string) error {
	var exists int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return wrapDBErrorf(err, "check request %s", id)
	}
	if exists == 0 {
		return fmt.Errorf("request %s: %w", id, storage.ErrNotFound)
	}
	return fmt.Errorf("request %s was modified concurrently: %w", id, storage.ErrConflict)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*types.Request, error) {
	var req types.Request
	var stages string
	var escalatedAt sql.NullTime

	err := row.Scan(
		&req.ID, &req.DocumentTypeID, &req.RequesterID, &stages,
		&req.CurrentStageIndex, &req.CurrentStatus, &req.IsCompleted,
		&req.LastActivityAt, &req.Escalated, &req.EscalationLevel,
		&escalatedAt, &req.RejectionReason, &req.CreatedAt, &req.Version,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(stages), &req.Stages); err != nil {
		return nil, fmt.Errorf("failed to parse stages: %w", err)
	}
	if escalatedAt.Valid {
		t := escalatedAt.Time
		req.EscalatedAt = &t
	}
	return &req, nil
}
