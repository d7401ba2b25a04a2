// Package watch implements the folder watcher and the write-completion
// stability tracker (spec.md §4.1/§4.2).
package watch

import (
	"os"
	"sync"
	"time"

	"github.com/gwlsn/pipeline/internal/logging"
)

// TrackedFile is the stability tracker's per-path bookkeeping record.
type TrackedFile struct {
	Path        string
	ProfileName string
	LastSize    int64
	StableSince *time.Time
}

// ReadyEvent is emitted once a tracked file has been stable for the
// configured duration.
type ReadyEvent struct {
	Path        string
	ProfileName string
}

// StabilityTracker maps path -> observed-size history and emits a path
// once its size has been stable for StabilityDuration (spec.md §4.2).
// Track and CheckAll may be called from different goroutines (the
// supervisor runs its detection loop and its tick loop separately), so
// entries is guarded by mu.
type StabilityTracker struct {
	StabilityDuration time.Duration
	Ready             chan<- ReadyEvent

	entries map[string]*TrackedFile
	mu      sync.Mutex // guards entries across Track, CheckAll and Len
}

func NewStabilityTracker(stabilityDuration time.Duration, ready chan<- ReadyEvent) *StabilityTracker {
	return &StabilityTracker{
		StabilityDuration: stabilityDuration,
		Ready:             ready,
		entries:           make(map[string]*TrackedFile),
	}
}

// Track begins watching path for stability. Idempotent: a no-op if the
// path is already tracked.
func (t *StabilityTracker) Track(path, profileName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[path]; exists {
		return
	}
	t.entries[path] = &TrackedFile{Path: path, ProfileName: profileName}
}

// CheckAll runs one tick of the stability algorithm over every tracked
// entry (spec.md §4.2 algorithm).
func (t *StabilityTracker) CheckAll(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for path, entry := range t.entries {
		info, err := os.Stat(path)
		if err != nil {
			logging.Debug("stability stat failed, retaining entry", "path", path, "error", err)
			continue
		}
		size := info.Size()

		if size == entry.LastSize && size > 0 {
			if entry.StableSince == nil {
				n := now
				entry.StableSince = &n
				continue
			}
			if now.Sub(*entry.StableSince) >= t.StabilityDuration {
				delete(t.entries, path)
				t.Ready <- ReadyEvent{Path: path, ProfileName: entry.ProfileName}
			}
			continue
		}

		entry.LastSize = size
		entry.StableSince = nil
	}
}

// Len reports how many files are currently tracked (for metrics/tests).
func (t *StabilityTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
