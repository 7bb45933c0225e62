package postgres

import (
	"context"
	"fmt"
	"strings"

	"lrp-copilot/internal/storage"
)

// WorkspaceStore implements storage.WorkspaceStore using PostgreSQL.
type WorkspaceStore struct {
	pool *Pool
}

// NewWorkspaceStore creates a new WorkspaceStore.
func NewWorkspaceStore(pool *Pool) *WorkspaceStore {
	return &WorkspaceStore{pool: pool}
}

var _ storage.WorkspaceStore = (*WorkspaceStore)(nil)

// Create adds a new workspace. Returns ErrDuplicateKey if the ID exists.
func (s *WorkspaceStore) Create(ctx context.Context, w *storage.Workspace) error {
	if strings.TrimSpace(w.ID) == "" {
		return fmt.Errorf("workspace id is required: %w", storage.ErrInvalidInput)
	}
	if w.Name == "" {
		w.Name = w.ID
	}

	query := `
		INSERT INTO workspaces (workspace_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	err := s.pool.QueryRow(ctx, query, w.ID, w.Name, w.Description).Scan(&w.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

// Get retrieves a workspace by ID. Returns ErrNotFound if not exists.
func (s *WorkspaceStore) Get(ctx context.Context, id string) (*storage.Workspace, error) {
	query := `
		SELECT workspace_id, name, description, created_at
		FROM workspaces
		WHERE workspace_id = $1
	`
	var w storage.Workspace
	err := s.pool.QueryRow(ctx, query, id).Scan(&w.ID, &w.Name, &w.Description, &w.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	return &w, nil
}
