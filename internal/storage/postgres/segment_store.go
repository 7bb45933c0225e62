package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"lrp-copilot/internal/baseline"
	"lrp-copilot/internal/storage"
)

// SegmentStore implements storage.BaselineStore using PostgreSQL.
type SegmentStore struct {
	pool *Pool
}

// NewSegmentStore creates a new SegmentStore.
func NewSegmentStore(pool *Pool) *SegmentStore {
	return &SegmentStore{pool: pool}
}

var _ storage.BaselineStore = (*SegmentStore)(nil)

// ReplaceBaseline deletes the workspace's rows and inserts table in one
// transaction. The workspace must exist.
func (s *SegmentStore) ReplaceBaseline(ctx context.Context, workspaceID string, table baseline.Table) error {
	if err := table.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM baseline_segments WHERE workspace_id = $1`, workspaceID); err != nil {
		return fmt.Errorf("clear baseline: %w", err)
	}

	query := `
		INSERT INTO baseline_segments (
			workspace_id, position, country, region, segment, stream,
			presentation_rate, win_rate, asp_usd, attach_rate, attach_arr, unit_count,
			win_rate_min, win_rate_max, attach_rate_min, attach_rate_max, asp_min, asp_max
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	batch := &pgx.Batch{}
	for i, seg := range table {
		args := append([]any{},
			workspaceID, i, seg.Country, seg.Region, seg.Segment, seg.Stream,
			seg.PresentationRate, seg.WinRate, seg.ASPUSD, seg.AttachRate, seg.AttachARR, seg.UnitCount,
		)
		batch.Queue(query, append(args, boundArgs(seg.WinRateBounds, seg.AttachRateBounds, seg.ASPBounds)...)...)
	}
	if batch.Len() > 0 {
		if err := execBatch(ctx, tx, batch, workspaceID); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, workspaceID string) error {
	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			if isForeignKeyError(err) {
				return fmt.Errorf("workspace %s: %w", workspaceID, storage.ErrNotFound)
			}
			return fmt.Errorf("insert baseline segment: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	return nil
}

// LoadBaseline returns the workspace's rows ordered by position.
// Returns ErrNotFound if the workspace has no rows.
func (s *SegmentStore) LoadBaseline(ctx context.Context, workspaceID string) (baseline.Table, error) {
	query := `
		SELECT country, region, segment, stream,
			presentation_rate, win_rate, asp_usd, attach_rate, attach_arr, unit_count,
			win_rate_min, win_rate_max, attach_rate_min, attach_rate_max, asp_min, asp_max
		FROM baseline_segments
		WHERE workspace_id = $1
		ORDER BY position ASC
	`
	rows, err := s.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("load baseline: %w", err)
	}
	defer rows.Close()

	var table baseline.Table
	for rows.Next() {
		var seg baseline.Segment
		var limits [6]*float64
		if err := rows.Scan(
			&seg.Country, &seg.Region, &seg.Segment, &seg.Stream,
			&seg.PresentationRate, &seg.WinRate, &seg.ASPUSD, &seg.AttachRate, &seg.AttachARR, &seg.UnitCount,
			&limits[0], &limits[1], &limits[2], &limits[3], &limits[4], &limits[5],
		); err != nil {
			return nil, fmt.Errorf("scan baseline segment: %w", err)
		}
		seg.WinRateBounds = scanBounds(limits[0], limits[1])
		seg.AttachRateBounds = scanBounds(limits[2], limits[3])
		seg.ASPBounds = scanBounds(limits[4], limits[5])
		table = append(table, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate baseline segments: %w", err)
	}
	if len(table) == 0 {
		return nil, storage.ErrNotFound
	}
	return table, nil
}

// boundArgs flattens bounds into (min, max) pairs; missing bounds are NULL.
func boundArgs(bounds ...*baseline.Bounds) []any {
	args := make([]any, 0, 2*len(bounds))
	for _, b := range bounds {
		if b == nil {
			args = append(args, nil, nil)
			continue
		}
		args = append(args, b.Min, b.Max)
	}
	return args
}

func scanBounds(lo, hi *float64) *baseline.Bounds {
	if lo == nil || hi == nil {
		return nil
	}
	return baseline.NewBounds(*lo, *hi)
}
