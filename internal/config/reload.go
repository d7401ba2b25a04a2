package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gwlsn/pipeline/internal/logging"
)

// Watcher holds the current config behind a read-copy-update swap: readers
// take Get() once per phase and hold that snapshot; reload only ever
// replaces the pointer under an exclusive lock, so no reader ever observes
// a half-applied config.
type Watcher struct {
	path string

	mu  sync.RWMutex
	cur *Config

	// ReloadEvents receives nil on a successful reload and the validation
	// error on a rejected one; the prior config is kept in either case
	// except success.
	ReloadEvents chan error
}

// NewWatcher loads the initial config and prepares a hot-reload watcher.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Watcher{
		path:         path,
		cur:          cfg,
		ReloadEvents: make(chan error, 8),
	}, nil
}

// Get returns the current config snapshot. Callers should hold the
// returned pointer for the duration of one phase rather than calling Get
// repeatedly mid-phase.
func (w *Watcher) Get() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cur
}

// Run watches the config file for changes and reloads on write, debouncing
// bursts of events within a fixed window. Matches the original's documented
// behavior: events arriving within the debounce window are coalesced by
// discarding all of them and restarting the timer, so a burst that never
// goes quiet longer than the window produces no reload (spec.md §9 open
// question 4 — preserved, not "fixed").
func (w *Watcher) Run(stop <-chan struct{}) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.path); err != nil {
		return err
	}

	const debounce = 500 * time.Millisecond
	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-stop:
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.Warn("config watch error", "error", err)
		case <-timerCh:
			timerCh = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	fresh, err := Load(w.path)
	if err != nil {
		w.emit(err)
		return
	}
	if err := fresh.Validate(); err != nil {
		w.emit(err)
		return
	}

	w.mu.Lock()
	w.cur = fresh
	w.mu.Unlock()
	w.emit(nil)
}

func (w *Watcher) emit(err error) {
	select {
	case w.ReloadEvents <- err:
	default:
	}
}
