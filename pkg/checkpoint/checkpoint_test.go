package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	fileBackend, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBackend failed: %v", err)
	}
	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"file":   fileBackend,
	}
}

func TestBackendRoundtrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			cp := &Checkpoint{
				ID:          "run-1",
				InputPath:   "/data/traces.jsonl",
				ContentHash: "abc123",
				InputSize:   4096,
				TracesRead:  10,
				Phase:       PhaseAnalyzing,
				StartedAt:   time.Now().UTC(),
				UpdatedAt:   time.Now().UTC(),
			}
			if err := b.Save(ctx, cp); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			got, err := b.Load(ctx, "run-1")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if got.InputPath != cp.InputPath || got.ContentHash != cp.ContentHash {
				t.Errorf("loaded checkpoint differs: %+v", got)
			}
			if got.TracesRead != 10 || got.Phase != PhaseAnalyzing {
				t.Errorf("progress fields not persisted: %+v", got)
			}

			if err := b.Delete(ctx, "run-1"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, err := b.Load(ctx, "run-1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}

func TestBackendLoadMissing(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := b.Load(ctx, "nope"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestListIncomplete(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			done := &Checkpoint{ID: "done", InputPath: "/a", Phase: PhaseLoading}
			done.Complete()
			pending := &Checkpoint{ID: "pending", InputPath: "/b", Phase: PhaseLoading}

			if err := b.Save(ctx, done); err != nil {
				t.Fatal(err)
			}
			if err := b.Save(ctx, pending); err != nil {
				t.Fatal(err)
			}

			incomplete, err := b.ListIncomplete(ctx)
			if err != nil {
				t.Fatalf("ListIncomplete failed: %v", err)
			}
			if len(incomplete) != 1 || incomplete[0].ID != "pending" {
				t.Errorf("expected only the pending checkpoint, got %+v", incomplete)
			}
		})
	}
}

func TestFindByInput(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			cp := &Checkpoint{ID: "x", InputPath: "/data/run.jsonl", Phase: PhaseLoading}
			if err := b.Save(ctx, cp); err != nil {
				t.Fatal(err)
			}

			got, err := b.FindByInput(ctx, "/data/run.jsonl")
			if err != nil {
				t.Fatalf("FindByInput failed: %v", err)
			}
			if got.ID != "x" {
				t.Errorf("unexpected checkpoint: %+v", got)
			}

			if _, err := b.FindByInput(ctx, "/data/other.jsonl"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestCompleteAndMatches(t *testing.T) {
	cp := &Checkpoint{ID: "x", ContentHash: "h", InputSize: 100, Phase: PhaseExporting}

	if cp.IsComplete() {
		t.Error("checkpoint must not start complete")
	}
	cp.Complete()
	if !cp.IsComplete() || cp.CompletedAt == nil {
		t.Error("Complete must set phase and completion time")
	}

	if !cp.Matches("h", 100) {
		t.Error("expected match on same hash and size")
	}
	if cp.Matches("h", 101) || cp.Matches("other", 100) {
		t.Error("changed content must not match")
	}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.jsonl")
	if err := os.WriteFile(path, []byte("hello\n"), 0644); err != nil {
		t.Fatal(err)
	}

	hash, size, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	if size != 6 {
		t.Errorf("expected size 6, got %d", size)
	}
	if len(hash) != 64 {
		t.Errorf("expected hex sha256 digest, got %q", hash)
	}

	again, _, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if again != hash {
		t.Error("hash must be stable for unchanged content")
	}

	if err := os.WriteFile(path, []byte("changed\n"), 0644); err != nil {
		t.Fatal(err)
	}
	changed, _, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if changed == hash {
		t.Error("hash must change with content")
	}

	if _, _, err := HashFile(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMemoryBackendSaveCopies(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	cp := &Checkpoint{ID: "x", Phase: PhaseLoading}
	if err := b.Save(ctx, cp); err != nil {
		t.Fatal(err)
	}
	cp.Phase = PhaseComplete

	got, err := b.Load(ctx, "x")
	if err != nil {
		t.Fatal(err)
	}
	if got.Phase != PhaseLoading {
		t.Error("Save must store a copy, not the caller's pointer")
	}
}
