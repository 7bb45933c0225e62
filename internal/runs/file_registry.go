package runs

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"lrp-copilot/internal/simulation"
	"lrp-copilot/internal/storage"

	"github.com/rs/zerolog/log"
)

// FileRegistry is a Registry persisted as a JSONL file, one run per line.
type FileRegistry struct {
	mu    sync.RWMutex
	path  string
	runs  map[string]*Run
	order []string
	now   func() time.Time
}

var _ Registry = (*FileRegistry)(nil)

// NewFileRegistry opens (or creates on first write) the registry in dir.
func NewFileRegistry(dir string) (*FileRegistry, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	r := &FileRegistry{
		path: filepath.Join(dir, "runs.jsonl"),
		runs: make(map[string]*Run),
		now:  time.Now,
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Path is the backing file.
func (r *FileRegistry) Path() string { return r.path }

func (r *FileRegistry) load() error {
	file, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open run registry: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var run Run
		if err := json.Unmarshal(scanner.Bytes(), &run); err != nil || run.ID == "" {
			log.Warn().Err(err).Str("path", r.path).Msg("Skipping invalid JSON line in run registry")
			continue
		}
		if _, seen := r.runs[run.ID]; !seen {
			r.order = append(r.order, run.ID)
		}
		r.runs[run.ID] = &run
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading run registry: %w", err)
	}

	log.Debug().Str("path", r.path).Int("count", len(r.runs)).Msg("Loaded run registry")
	return nil
}

// save rewrites the whole file. Caller holds the write lock.
func (r *FileRegistry) save() error {
	tmpPath := r.path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp registry file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	for _, id := range r.order {
		if err := encoder.Encode(r.runs[id]); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode run: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		return fmt.Errorf("failed to rename registry file: %w", err)
	}
	return nil
}

func (r *FileRegistry) Start(_ context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run.Begin(r.now())
	if _, exists := r.runs[run.ID]; exists {
		return fmt.Errorf("run %s: %w", run.ID, storage.ErrDuplicateKey)
	}
	stored := *run
	r.runs[run.ID] = &stored
	r.order = append(r.order, run.ID)
	if err := r.save(); err != nil {
		delete(r.runs, run.ID)
		r.order = r.order[:len(r.order)-1]
		return err
	}
	return nil
}

func (r *FileRegistry) RecordResult(_ context.Context, id string, res simulation.Result) error {
	return r.update(id, func(run *Run) { run.Apply(res) })
}

func (r *FileRegistry) Finish(_ context.Context, id string, status Status, notes string) error {
	return r.update(id, func(run *Run) { run.Close(r.now(), status, notes) })
}

func (r *FileRegistry) update(id string, fn func(*Run)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.runs[id]
	if !ok {
		return fmt.Errorf("run %s: %w", id, storage.ErrNotFound)
	}
	next := *prev
	fn(&next)
	r.runs[id] = &next
	if err := r.save(); err != nil {
		r.runs[id] = prev
		return err
	}
	return nil
}

func (r *FileRegistry) Get(_ context.Context, id string) (*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, storage.ErrNotFound)
	}
	cp := *run
	return &cp, nil
}

func (r *FileRegistry) List(_ context.Context, limit int) ([]*Run, error) {
	r.mu.RLock()
	out := make([]*Run, 0, len(r.order))
	for _, id := range r.order {
		cp := *r.runs[id]
		out = append(out, &cp)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
