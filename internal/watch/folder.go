package watch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/gwlsn/pipeline/internal/logging"
	"github.com/gwlsn/pipeline/internal/model"
)

// DetectedFile is what the folder watcher forwards to its sink: a path
// plus the profile that owns it (spec.md §4.1).
type DetectedFile struct {
	Path        string
	ProfileName string
}

// FolderWatcher subscribes to OS file-create/modify events under a single
// profile's input path and forwards matches to a sink channel.
type FolderWatcher struct {
	ProfileName  string
	Root         string
	Recursive    bool
	Patterns     []string
	Sink         chan<- DetectedFile

	fsw *fsnotify.Watcher
}

func NewFolderWatcher(profileName, root string, recursive bool, patterns []string, sink chan<- DetectedFile) *FolderWatcher {
	return &FolderWatcher{
		ProfileName: profileName,
		Root:        root,
		Recursive:   recursive,
		Patterns:    patterns,
		Sink:        sink,
	}
}

func (w *FolderWatcher) matches(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.Patterns {
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}

// ScanExisting walks the tree once (respecting Recursive) and emits all
// current matches — used at startup when --process-existing is set.
func (w *FolderWatcher) ScanExisting() error {
	return filepath.Walk(w.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logging.Warn("scan_existing walk error", "path", path, "error", err)
			return nil
		}
		if info.IsDir() {
			if !w.Recursive && path != w.Root {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Mode().IsRegular() && w.matches(path) {
			w.Sink <- DetectedFile{Path: path, ProfileName: w.ProfileName}
		}
		return nil
	})
}

// Run subscribes to OS file events and forwards matches until stop closes.
// A failed initial subscription is fatal for this watcher (returned);
// individual event-delivery errors are logged and skipped.
func (w *FolderWatcher) Run(stop <-chan struct{}) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrWatchFailed, err)
	}
	w.fsw = fsw
	defer fsw.Close()

	if err := w.addTree(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrWatchFailed, err)
	}

	for {
		select {
		case <-stop:
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.Warn("watch event-delivery error, continuing", "profile", w.ProfileName, "error", err)
		}
	}
}

func (w *FolderWatcher) addTree() error {
	if !w.Recursive {
		return w.fsw.Add(w.Root)
	}
	return filepath.Walk(w.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *FolderWatcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil || info.IsDir() || !info.Mode().IsRegular() {
		return
	}
	if !w.matches(ev.Name) {
		return
	}
	w.Sink <- DetectedFile{Path: ev.Name, ProfileName: w.ProfileName}
}
