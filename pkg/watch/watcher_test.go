package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMatches(t *testing.T) {
	w, err := NewWatcher([]string{"*.jsonl", "*.json.gz"}, time.Second)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	cases := []struct {
		path string
		want bool
	}{
		{"/data/run.jsonl", true},
		{"/data/dump.json.gz", true},
		{"/data/run.csv", false},
		{"/data/nested/dir/traces.jsonl", true},
	}
	for _, tc := range cases {
		if got := w.matches(tc.path); got != tc.want {
			t.Errorf("matches(%q): expected %v, got %v", tc.path, tc.want, got)
		}
	}
}

func TestMatchesEmptyPatterns(t *testing.T) {
	w, err := NewWatcher(nil, time.Second)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	if !w.matches("/any/file.xyz") {
		t.Error("empty pattern list must match everything")
	}
}

func TestWatchRejectsFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.jsonl")
	if err := os.WriteFile(file, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(nil, time.Second)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	if err := w.Watch(file); err == nil {
		t.Error("watching a regular file must fail")
	}
	if err := w.Watch(filepath.Join(dir, "missing")); err == nil {
		t.Error("watching a missing path must fail")
	}
	if err := w.Watch(dir); err != nil {
		t.Errorf("watching a directory must succeed: %v", err)
	}
}

func TestHandleChangeSkipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "run.jsonl")
	if err := os.WriteFile(file, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(nil, time.Second)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	var calls int
	w.OnChange = func(path string) error {
		calls++
		return nil
	}

	w.handleChange(file)
	w.handleChange(file)
	if calls != 1 {
		t.Errorf("unchanged file must be processed once, got %d calls", calls)
	}

	// Grow the file; the next change must fire again.
	if err := os.WriteFile(file, []byte("{}\n{}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	w.handleChange(file)
	if calls != 2 {
		t.Errorf("changed file must be reprocessed, got %d calls", calls)
	}
}

func TestHandleChangeReportsMissingFile(t *testing.T) {
	w, err := NewWatcher(nil, time.Second)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	var gotErr error
	w.OnError = func(path string, err error) { gotErr = err }
	w.OnChange = func(path string) error {
		t.Error("OnChange must not fire for a missing file")
		return nil
	}

	w.handleChange(filepath.Join(t.TempDir(), "gone.jsonl"))
	if gotErr == nil {
		t.Error("expected a stat error to be reported")
	}
}
