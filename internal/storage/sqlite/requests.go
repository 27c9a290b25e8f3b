package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/clearstack/clearflow/internal/storage"
	"github.com/clearstack/clearflow/internal/types"
)

const requestColumns = `id, document_type_id, requester_id, stages, current_stage_index,
	current_status, is_completed, last_activity_at, escalated, escalation_level,
	escalated_at, rejection_reason, created_at, version`

// CreateRequest inserts a new request row.
func (s *Store) CreateRequest(ctx context.Context, req *types.Request) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	stages, err := formatStages(req.Stages)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO requests (
			id, document_type_id, requester_id, stages, current_stage_index,
			current_status, is_completed, last_activity_at, escalated,
			escalation_level, escalated_at, rejection_reason, created_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		req.ID, req.DocumentTypeID, req.RequesterID, stages, req.CurrentStageIndex,
		req.CurrentStatus, boolToInt(req.IsCompleted), req.LastActivityAt,
		boolToInt(req.Escalated), req.EscalationLevel, req.EscalatedAt,
		req.RejectionReason, req.CreatedAt, req.Version,
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

// ListRequests returns requests matching the filter. Sweep queries
// (StaleBefore set) are ordered oldest activity first; everything else is
// newest created first.
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
		args = append(args, boolToInt(*filter.Escalated))
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

// UpdateRequest commits a mutated request using optimistic concurrency.
// The UPDATE is conditioned on the stored version; zero rows affected with an
// existing row means a concurrent writer won, surfaced as storage.ErrConflict.
// A non-nil ledger entry is inserted inside the same transaction so the state
// change and its audit record land atomically.
func (s *Store) UpdateRequest(ctx context.Context, req *types.Request, expectedVersion int64, entry *types.EscalationEntry) error {
	stages, err := formatStages(req.Stages)
	if err != nil {
		return err
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
		stages, req.CurrentStageIndex, req.CurrentStatus,
		boolToInt(req.IsCompleted), req.LastActivityAt, boolToInt(req.Escalated),
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
		return s.versionCheckFailure(ctx, tx, req.ID)
	}

	if entry != nil {
		if err := insertEscalation(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapDBErrorf(err, "commit update %s", req.ID)
	}
	req.Version = expectedVersion + 1
	return nil
}

// DeleteRequest permanently removes a request. The delete is version-guarded
// like UpdateRequest; ledger rows go with it via ON DELETE CASCADE.
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
		return s.versionCheckFailure(ctx, tx, id)
	}
	return wrapDBErrorf(tx.Commit(), "commit delete %s", id)
}

// versionCheckFailure distinguishes a lost CAS race from a missing row.
func (s *Store) versionCheckFailure(ctx context.Context, tx *sql.Tx, id string) error {
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
	var isCompleted, escalated int
	var escalatedAt sql.NullTime

	err := row.Scan(
		&req.ID, &req.DocumentTypeID, &req.RequesterID, &stages,
		&req.CurrentStageIndex, &req.CurrentStatus, &isCompleted,
		&req.LastActivityAt, &escalated, &req.EscalationLevel,
		&escalatedAt, &req.RejectionReason, &req.CreatedAt, &req.Version,
	)
	if err != nil {
		return nil, err
	}

	req.Stages, err = parseStages(stages)
	if err != nil {
		return nil, err
	}
	req.IsCompleted = isCompleted != 0
	req.Escalated = escalated != 0
	if escalatedAt.Valid {
		t := escalatedAt.Time
		req.EscalatedAt = &t
	}
	return &req, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// wrapDBErrorf wraps a database error with formatted operation context.
func wrapDBErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return wrapDBError(fmt.Sprintf(format, args...), err)
}
