// Package state persists import progress so interrupted runs can resume.
// A single JSON file holds two tables: a per-top-path map of completed
// sub-paths (kept sorted for binary-search membership tests) and an
// append-only history of fully imported path groups used by incremental
// imports. Failing to read or write this file is never fatal.
package state

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"
)

const version = 1

type fileFormat struct {
	Version  int                 `json:"version"`
	Progress map[string][]string `json:"progress"`
	History  [][]string          `json:"history"`
}

// File is the durable import state. All methods are safe for concurrent use.
type File struct {
	mu       sync.Mutex
	path     string
	lock     *flock.Flock
	progress map[string][]string
	history  [][]string
	log      *slog.Logger
}

// Open loads the state file at path, creating parent directories as needed.
// A missing or corrupt file is logged and treated as empty. The file is
// guarded by an advisory lock so two processes cannot interleave writes.
func Open(path string, log *slog.Logger) (*File, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, err
	}

	f := &File{
		path:     path,
		lock:     lock,
		progress: make(map[string][]string),
		log:      log,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("could not read state file, starting empty", "path", path, "error", err)
		}
		return f, nil
	}

	var raw fileFormat
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Warn("corrupt state file, starting empty", "path", path, "error", err)
		return f, nil
	}
	if raw.Progress != nil {
		f.progress = raw.Progress
	}
	f.history = raw.History
	return f, nil
}

// Close releases the advisory lock.
func (f *File) Close() error {
	return f.lock.Unlock()
}

// MarkProgress records sub-paths as completed under top. The per-top
// sequence stays sorted and duplicate-free: values greater than the last
// element are appended, everything else is insert-sorted.
func (f *File) MarkProgress(top string, paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	seq := f.progress[top]
	for _, p := range paths {
		if n := len(seq); n == 0 || p > seq[n-1] {
			seq = append(seq, p)
			continue
		}
		i := sort.SearchStrings(seq, p)
		if i < len(seq) && seq[i] == p {
			continue
		}
		seq = append(seq, "")
		copy(seq[i+1:], seq[i:])
		seq[i] = p
	}
	f.progress[top] = seq
	f.save()
}

// HasProgress reports whether any progress has been recorded under top.
func (f *File) HasProgress(top string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.progress[top]) > 0
}

// LookupProgress reports whether the sub-path was recorded under top.
func (f *File) LookupProgress(top, sub string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	seq := f.progress[top]
	i := sort.SearchStrings(seq, sub)
	return i < len(seq) && seq[i] == sub
}

// ResetProgress deletes all progress recorded under top.
func (f *File) ResetProgress(top string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.progress, top)
	f.save()
}

// AddHistory appends a completed path group. The group's path order is
// preserved exactly as emitted; lookups compare the whole ordered tuple.
func (f *File) AddHistory(paths []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hasHistory(paths) {
		return
	}
	f.history = append(f.history, append([]string(nil), paths...))
	f.save()
}

// History returns a copy of every imported path group, oldest first.
func (f *File) History() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.history))
	for i, h := range f.history {
		out[i] = append([]string(nil), h...)
	}
	return out
}

// HasHistory reports whether the exact path group was imported before.
func (f *File) HasHistory(paths []string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasHistory(paths)
}

func (f *File) hasHistory(paths []string) bool {
	for _, h := range f.history {
		if equalTuple(h, paths) {
			return true
		}
	}
	return false
}

func equalTuple(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// save serializes the whole state and atomically replaces the file.
// Persistence failures are logged, not raised: losing a progress write
// must not abort an otherwise-successful import.
func (f *File) save() {
	raw := fileFormat{
		Version:  version,
		Progress: f.progress,
		History:  f.history,
	}
	data, err := json.Marshal(raw)
	if err != nil {
		f.log.Warn("could not serialize state", "error", err)
		return
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		f.log.Warn("could not write state file", "path", f.path, "error", err)
		return
	}
	if err := os.Rename(tmp, f.path); err != nil {
		f.log.Warn("could not replace state file", "path", f.path, "error", err)
	}
}
