package dynamo

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher is the fsnotify-backed Watcher. File registrations watch the
// parent directory and filter to completed writes of the exact path, which
// also catches atomic rename-into-place writers. Directory registrations
// are recursive: subdirectories present at Watch time are added up front,
// and subdirectories created later are added as their create events arrive.
//
// If the native notification facility cannot be initialized, Watch degrades
// to a channel that never fires rather than returning an error.
type FileWatcher struct {
	mu      sync.Mutex
	started bool
	watches []registration
}

type registration struct {
	path string
	kind WatchKind
}

// NewFileWatcher creates an empty FileWatcher.
func NewFileWatcher() *FileWatcher {
	return &FileWatcher{}
}

// Register adds a path to the watch set. The path does not need to exist
// yet for WatchFile registrations; its parent directory does.
func (w *FileWatcher) Register(path string, kind WatchKind) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrAlreadyStarted
	}
	w.watches = append(w.watches, registration{path: filepath.Clean(path), kind: kind})
	return nil
}

// Watch begins observing the registered paths. The returned channel emits
// an Event per filesystem change and is closed when ctx is canceled.
func (w *FileWatcher) Watch(ctx context.Context) (<-chan Event, error) {
	w.mu.Lock()
	w.started = true
	watches := make([]registration, len(w.watches))
	copy(watches, w.watches)
	w.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		// Degrade to a silent source; the engine still regenerates on
		// its poll timeout.
		return NopWatcher{}.Watch(ctx)
	}

	files := make(map[string]bool)
	var roots []string
	for _, reg := range watches {
		switch reg.kind {
		case WatchFile:
			files[reg.path] = true
			_ = fsw.Add(filepath.Dir(reg.path)) //nolint:errcheck // Missing parent degrades to silence
		case WatchDirectory:
			roots = append(roots, reg.path)
			addRecursive(fsw, reg.path)
		}
	}

	out := make(chan Event)

	go func() {
		defer close(out)
		defer fsw.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}

				path := filepath.Clean(ev.Name)

				if files[path] {
					// Exact-file watch: only a completed write counts.
					if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
						continue
					}
				} else if underRoot(roots, path) {
					if ev.Op&fsnotify.Chmod != 0 {
						continue
					}
					// New subdirectory under a recursive root: start
					// watching it and everything below it.
					if ev.Op&fsnotify.Create != 0 {
						if info, err := os.Stat(path); err == nil && info.IsDir() {
							addRecursive(fsw, path)
						}
					}
				} else {
					// Parent-directory noise from an exact-file watch.
					continue
				}

				select {
				case out <- Event{Path: path, Op: strings.ToLower(ev.Op.String())}:
				case <-ctx.Done():
					return
				}

			case _, ok := <-fsw.Errors:
				if !ok {
					return
				}
				// Keep watching despite errors.
			}
		}
	}()

	return out, nil
}

// addRecursive registers dir and every directory below it. Add failures
// are ignored; an unwatchable subtree degrades to the poll timeout.
func addRecursive(fsw *fsnotify.Watcher, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error { //nolint:errcheck // Best effort
		if err != nil {
			return nil //nolint:nilerr // Skip unreadable entries
		}
		if d.IsDir() {
			_ = fsw.Add(path) //nolint:errcheck // Best effort
		}
		return nil
	})
}

// underRoot reports whether path is one of the roots or inside one.
func underRoot(roots []string, path string) bool {
	for _, root := range roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
