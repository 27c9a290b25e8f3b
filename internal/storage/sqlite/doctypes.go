package sqlite

import (
	"context"
	"fmt"

	"github.com/clearstack/clearflow/internal/types"
)

// CreateDocumentType inserts a new document type.
func (s *Store) CreateDocumentType(ctx context.Context, dt *types.DocumentType) error {
	if err := dt.Validate(); err != nil {
		return fmt.Errorf("invalid document type: %w", err)
	}
	stages, err := formatStages(dt.RequiredStages)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO document_types (id, name, required_stages, created_at)
		VALUES (?, ?, ?, ?)
	`, dt.ID, dt.Name, stages, dt.CreatedAt)
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
	dt.RequiredStages, err = parseStages(stages)
	if err != nil {
		return nil, err
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
		dt.RequiredStages, err = parseStages(stages)
		if err != nil {
			return nil, err
		}
		out = append(out, &dt)
	}
	return out, wrapDBError("list document types", rows.Err())
}
