package runs

import (
	"context"
	"errors"
	"os"
	"regexp"
	"testing"
	"time"

	"lrp-copilot/internal/simulation"
	"lrp-copilot/internal/storage"
)

func TestNewLabel(t *testing.T) {
	ts := time.Date(2026, 3, 7, 9, 5, 2, 0, time.UTC)
	label := NewLabel(ts)

	re := regexp.MustCompile(`^RUN_20260307_090502_[1-9][0-9]{2}$`)
	if !re.MatchString(label) {
		t.Errorf("unexpected label %q", label)
	}
}

func TestFileRegistry_Lifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	reg, err := NewFileRegistry(dir)
	if err != nil {
		t.Fatalf("NewFileRegistry failed: %v", err)
	}
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	reg.now = func() time.Time { return base }

	capShare := 0.4
	run := &Run{Prompt: "Increase EMEA ARR by $10M", Region: "EMEA", Segment: "All Segments", TargetUSD: 1e7, PlatformCap: &capShare}
	if err := reg.Start(ctx, run); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if run.ID == "" || run.Status != StatusRunning {
		t.Fatalf("Start must assign an ID and RUNNING status, got %+v", run)
	}

	res := simulation.Result{ProbabilityOfHit: 0.62, MeanDelta: 1.1e7, P10: 8e6, P50: 1.05e7, P90: 1.4e7}
	if err := reg.RecordResult(ctx, run.ID, res); err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}

	reg.now = func() time.Time { return base.Add(3 * time.Second) }
	if err := reg.Finish(ctx, run.ID, StatusDone, ""); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	// Reload from disk
	reloaded, err := NewFileRegistry(dir)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	got, err := reloaded.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusDone {
		t.Errorf("expected DONE, got %s", got.Status)
	}
	if got.ProbabilityOfHit == nil || *got.ProbabilityOfHit != 0.62 {
		t.Errorf("expected prob_hit 0.62, got %v", got.ProbabilityOfHit)
	}
	if got.P90 == nil || *got.P90 != 1.4e7 {
		t.Errorf("expected p90 1.4e7, got %v", got.P90)
	}
	if got.PlatformCap == nil || *got.PlatformCap != 0.4 {
		t.Errorf("platform cap lost: %v", got.PlatformCap)
	}
	if got.Duration() != 3*time.Second {
		t.Errorf("expected 3s duration, got %v", got.Duration())
	}
}

func TestFileRegistry_NotFound(t *testing.T) {
	ctx := context.Background()
	reg, err := NewFileRegistry(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := reg.Get(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if err := reg.Finish(ctx, "missing", StatusFailed, "boom"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Finish: expected ErrNotFound, got %v", err)
	}
	if err := reg.RecordResult(ctx, "missing", simulation.Result{}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("RecordResult: expected ErrNotFound, got %v", err)
	}
}

func TestFileRegistry_FailedWithNotes(t *testing.T) {
	ctx := context.Background()
	reg, err := NewFileRegistry(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	run := &Run{Region: "APAC"}
	if err := reg.Start(ctx, run); err != nil {
		t.Fatal(err)
	}
	if err := reg.Finish(ctx, run.ID, StatusFailed, "baseline not found"); err != nil {
		t.Fatal(err)
	}

	got, _ := reg.Get(ctx, run.ID)
	if got.Status != StatusFailed || got.Notes != "baseline not found" {
		t.Errorf("unexpected run %+v", got)
	}
	if got.ProbabilityOfHit != nil {
		t.Error("failed run must not carry a result")
	}
}

func TestFileRegistry_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	reg, err := NewFileRegistry(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		reg.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		run := &Run{Region: "EMEA"}
		if err := reg.Start(ctx, run); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, run.ID)
	}

	all, _ := reg.List(ctx, 0)
	if len(all) != 3 || all[0].ID != ids[2] || all[2].ID != ids[0] {
		t.Errorf("expected newest first, got %v", []string{all[0].ID, all[1].ID, all[2].ID})
	}

	limited, _ := reg.List(ctx, 2)
	if len(limited) != 2 {
		t.Errorf("expected 2 runs, got %d", len(limited))
	}
}

func TestFileRegistry_SkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	reg, err := NewFileRegistry(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Start(context.Background(), &Run{Region: "EMEA"}); err != nil {
		t.Fatal(err)
	}

	f, err := os.OpenFile(reg.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("{not json\n")
	f.WriteString("{}\n")
	f.Close()

	reloaded, err := NewFileRegistry(dir)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	all, _ := reloaded.List(context.Background(), 0)
	if len(all) != 1 {
		t.Errorf("expected 1 valid run after skipping corrupt lines, got %d", len(all))
	}
}

func TestFileRegistry_RollsBackOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	reg, err := NewFileRegistry(dir)
	if err != nil {
		t.Fatalf("NewFileRegistry failed: %v", err)
	}
	run := &Run{Region: "EMEA", Segment: "SMB"}
	if err := reg.Start(ctx, run); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// A directory in place of the temp file makes every save fail.
	blocker := reg.Path() + ".tmp"
	if err := os.Mkdir(blocker, 0755); err != nil {
		t.Fatal(err)
	}

	if err := reg.Finish(ctx, run.ID, StatusDone, ""); err == nil {
		t.Fatal("expected Finish to fail")
	}
	got, err := reg.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusRunning || got.FinishedAt != nil {
		t.Errorf("failed Finish must leave the run untouched, got %+v", got)
	}

	if err := reg.Start(ctx, &Run{Region: "AMER"}); err == nil {
		t.Fatal("expected Start to fail")
	}
	if all, _ := reg.List(ctx, 0); len(all) != 1 {
		t.Errorf("failed Start must not register the run, got %d runs", len(all))
	}

	if err := os.Remove(blocker); err != nil {
		t.Fatal(err)
	}
	if err := reg.Finish(ctx, run.ID, StatusDone, ""); err != nil {
		t.Fatalf("Finish after recovery failed: %v", err)
	}
	reloaded, err := NewFileRegistry(dir)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	all, _ := reloaded.List(ctx, 0)
	if len(all) != 1 || all[0].Status != StatusDone {
		t.Errorf("disk must hold exactly the finished run, got %+v", all)
	}
}
