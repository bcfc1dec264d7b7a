// Package checkpoint provides resume capability for interrupted batch runs.
// A checkpoint records which input file a run covered and how far it got,
// keyed by the file's content hash so unchanged inputs can be skipped.
package checkpoint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Run phases.
const (
	PhaseLoading   = "loading"
	PhaseAnalyzing = "analyzing"
	PhaseExporting = "exporting"
	PhaseComplete  = "complete"
)

// Checkpoint tracks analysis progress over one input file.
type Checkpoint struct {
	ID          string `json:"id"`
	InputPath   string `json:"input_path"`
	ContentHash string `json:"content_hash"`
	InputSize   int64  `json:"input_size"`

	TracesRead int64 `json:"traces_read"`
	CasesBuilt int64 `json:"cases_built"`

	Phase       string     `json:"phase"`
	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Complete marks the checkpoint finished.
func (cp *Checkpoint) Complete() {
	now := time.Now()
	cp.Phase = PhaseComplete
	cp.CompletedAt = &now
	cp.UpdatedAt = now
}

// IsComplete reports whether the run finished.
func (cp *Checkpoint) IsComplete() bool {
	return cp.Phase == PhaseComplete
}

// Matches reports whether the checkpoint covers the same input content.
func (cp *Checkpoint) Matches(hash string, size int64) bool {
	return cp.ContentHash == hash && cp.InputSize == size
}

// HashFile returns the sha256 hex digest and size of a file.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Backend defines the interface for checkpoint storage backends.
type Backend interface {
	// Save persists a checkpoint to the backend.
	Save(ctx context.Context, cp *Checkpoint) error

	// Load retrieves a checkpoint by ID.
	Load(ctx context.Context, id string) (*Checkpoint, error)

	// Delete removes a checkpoint.
	Delete(ctx context.Context, id string) error

	// ListIncomplete returns all checkpoints that haven't completed.
	ListIncomplete(ctx context.Context) ([]*Checkpoint, error)

	// FindByInput finds a checkpoint for the given input path.
	FindByInput(ctx context.Context, inputPath string) (*Checkpoint, error)

	// Name returns the backend name for logging.
	Name() string
}

// ErrNotFound is returned when a checkpoint does not exist.
var ErrNotFound = fmt.Errorf("checkpoint: not found")

// MemoryBackend stores checkpoints in process memory. It is the default
// backend and is suitable for single-run batch invocations.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]*Checkpoint
}

// NewMemoryBackend creates an in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]*Checkpoint)}
}

// Save stores a copy of the checkpoint.
func (b *MemoryBackend) Save(ctx context.Context, cp *Checkpoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	clone := *cp
	b.entries[cp.ID] = &clone
	return nil
}

// Load retrieves a checkpoint by ID.
func (b *MemoryBackend) Load(ctx context.Context, id string) (*Checkpoint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cp, ok := b.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *cp
	return &clone, nil
}

// Delete removes a checkpoint.
func (b *MemoryBackend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, id)
	return nil
}

// ListIncomplete returns all unfinished checkpoints.
func (b *MemoryBackend) ListIncomplete(ctx context.Context) ([]*Checkpoint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*Checkpoint
	for _, cp := range b.entries {
		if !cp.IsComplete() {
			clone := *cp
			out = append(out, &clone)
		}
	}
	return out, nil
}

// FindByInput finds the checkpoint for an input path.
func (b *MemoryBackend) FindByInput(ctx context.Context, inputPath string) (*Checkpoint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, cp := range b.entries {
		if cp.InputPath == inputPath {
			clone := *cp
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

// Name returns "memory".
func (b *MemoryBackend) Name() string {
	return "memory"
}

// FileBackend stores checkpoints as JSON files in a directory.
type FileBackend struct {
	dir string
}

// NewFileBackend creates a file-based backend rooted at dir.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("checkpoint: creating directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) path(id string) string {
	return filepath.Join(b.dir, id+".checkpoint")
}

// Save writes the checkpoint as a JSON file.
func (b *FileBackend) Save(ctx context.Context, cp *Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}

	// Write via temp file and rename so a crash never leaves a torn file.
	tmp := b.path(cp.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, b.path(cp.ID))
}

// Load reads a checkpoint file by ID.
func (b *FileBackend) Load(ctx context.Context, id string) (*Checkpoint, error) {
	data, err := os.ReadFile(b.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Delete removes a checkpoint file.
func (b *FileBackend) Delete(ctx context.Context, id string) error {
	err := os.Remove(b.path(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ListIncomplete scans the directory for unfinished checkpoints.
func (b *FileBackend) ListIncomplete(ctx context.Context) ([]*Checkpoint, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, err
	}

	var out []*Checkpoint
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".checkpoint" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(b.dir, entry.Name()))
		if err != nil {
			continue
		}
		var cp Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			continue
		}
		if !cp.IsComplete() {
			out = append(out, &cp)
		}
	}
	return out, nil
}

// FindByInput scans the directory for a checkpoint covering inputPath.
func (b *FileBackend) FindByInput(ctx context.Context, inputPath string) (*Checkpoint, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".checkpoint" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(b.dir, entry.Name()))
		if err != nil {
			continue
		}
		var cp Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			continue
		}
		if cp.InputPath == inputPath {
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// Name returns "file".
func (b *FileBackend) Name() string {
	return "file"
}
