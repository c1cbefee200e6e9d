package store

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMemoryStore_LatestRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.SaveLatest(ctx, "run-1", 1, []byte("snapshot-a")); err != nil {
		t.Fatalf("SaveLatest: %v", err)
	}
	rec, err := s.LoadLatest(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if rec.AutomaID != "run-1" || rec.FormatVersion != 1 || string(rec.Snapshot) != "snapshot-a" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if err := s.SaveLatest(ctx, "run-1", 2, []byte("snapshot-b")); err != nil {
		t.Fatalf("SaveLatest overwrite: %v", err)
	}
	rec, err = s.LoadLatest(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadLatest after overwrite: %v", err)
	}
	if rec.FormatVersion != 2 || string(rec.Snapshot) != "snapshot-b" {
		t.Fatalf("expected latest to be overwritten, got %+v", rec)
	}
}

func TestMemoryStore_LoadLatestUnknownIDReturnsErrNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.LoadLatest(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_CheckpointsAreIndependentOfLatestAndEachOther(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.SaveLatest(ctx, "run-1", 1, []byte("latest")); err != nil {
		t.Fatalf("SaveLatest: %v", err)
	}
	if err := s.SaveCheckpoint(ctx, "run-1", "before-approval", 1, []byte("checkpoint-a")); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	if err := s.SaveCheckpoint(ctx, "run-1", "after-approval", 1, []byte("checkpoint-b")); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	rec, err := s.LoadCheckpoint(ctx, "run-1", "before-approval")
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if rec.Label != "before-approval" || string(rec.Snapshot) != "checkpoint-a" {
		t.Fatalf("unexpected checkpoint record: %+v", rec)
	}

	rec, err = s.LoadCheckpoint(ctx, "run-1", "after-approval")
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if string(rec.Snapshot) != "checkpoint-b" {
		t.Fatalf("expected the second checkpoint label to be distinct, got %+v", rec)
	}

	latest, err := s.LoadLatest(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if string(latest.Snapshot) != "latest" {
		t.Fatalf("expected checkpoints not to disturb the latest record, got %+v", latest)
	}
}

func TestMemoryStore_LoadCheckpointUnknownLabelReturnsErrNotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.SaveCheckpoint(ctx, "run-1", "known", 1, []byte("x")); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	if _, err := s.LoadCheckpoint(ctx, "run-1", "unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown label, got %v", err)
	}
	if _, err := s.LoadCheckpoint(ctx, "unknown-run", "known"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown automa ID, got %v", err)
	}
}

func TestMemoryStore_SavedSnapshotBytesAreCopiedNotAliased(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	buf := []byte("original")
	if err := s.SaveLatest(ctx, "run-1", 1, buf); err != nil {
		t.Fatalf("SaveLatest: %v", err)
	}
	buf[0] = 'X'

	rec, err := s.LoadLatest(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if string(rec.Snapshot) != "original" {
		t.Fatalf("expected stored snapshot to be insulated from caller mutation, got %q", rec.Snapshot)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = s.SaveLatest(ctx, "run-1", n, []byte("x"))
			_, _ = s.LoadLatest(ctx, "run-1")
		}(i)
	}
	wg.Wait()
	if _, err := s.LoadLatest(ctx, "run-1"); err != nil {
		t.Fatalf("LoadLatest after concurrent writes: %v", err)
	}
}

func TestMemoryStore_Close(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

var _ Store = (*MemoryStore)(nil)
