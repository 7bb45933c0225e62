package copilot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"lrp-copilot/internal/baseline"
	"lrp-copilot/internal/storage"
)

// BaselineSource resolves the segment table for a workspace.
type BaselineSource interface {
	Table(ctx context.Context, workspaceID string) (baseline.Table, error)
}

// FileBaselines serves one baseline file for every workspace. The file is
// read once and cached.
type FileBaselines struct {
	Path string

	once  sync.Once
	table baseline.Table
	err   error
}

func (f *FileBaselines) Table(_ context.Context, _ string) (baseline.Table, error) {
	f.once.Do(func() {
		if f.Path == "" {
			f.err = fmt.Errorf("no baseline file configured: %w", storage.ErrNotFound)
			return
		}
		doc, err := baseline.LoadFile(f.Path)
		if err != nil {
			f.err = err
			return
		}
		f.table = doc.Segments
	})
	return f.table, f.err
}

// StaticBaselines serves an in-memory table.
type StaticBaselines baseline.Table

func (s StaticBaselines) Table(context.Context, string) (baseline.Table, error) {
	return baseline.Table(s), nil
}

// StoreBaselines reads baselines from a BaselineStore, falling back to
// DefaultWorkspace when the query names none and to Fallback when the store
// has no rows.
type StoreBaselines struct {
	Store            storage.BaselineStore
	DefaultWorkspace string
	Fallback         BaselineSource
}

func (s *StoreBaselines) Table(ctx context.Context, workspaceID string) (baseline.Table, error) {
	if workspaceID == "" {
		workspaceID = s.DefaultWorkspace
	}
	table, err := s.Store.LoadBaseline(ctx, workspaceID)
	if errors.Is(err, storage.ErrNotFound) && s.Fallback != nil {
		return s.Fallback.Table(ctx, workspaceID)
	}
	if err != nil {
		return nil, fmt.Errorf("load baseline for workspace %q: %w", workspaceID, err)
	}
	return table, nil
}
