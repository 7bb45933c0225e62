package storage

import (
	"context"
	"time"

	"lrp-copilot/internal/baseline"
)

// Workspace groups a baseline and the runs made against it.
type Workspace struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// WorkspaceStore provides access to workspaces storage.
type WorkspaceStore interface {
	// Create adds a new workspace. Returns ErrDuplicateKey if the ID exists.
	Create(ctx context.Context, w *Workspace) error

	// Get retrieves a workspace by ID. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*Workspace, error)
}

// BaselineStore provides access to the segment rows of a workspace.
type BaselineStore interface {
	// ReplaceBaseline atomically swaps the workspace's rows for table.
	ReplaceBaseline(ctx context.Context, workspaceID string, table baseline.Table) error

	// LoadBaseline returns the workspace's rows in insertion order.
	// Returns ErrNotFound if the workspace has no rows.
	LoadBaseline(ctx context.Context, workspaceID string) (baseline.Table, error)
}
