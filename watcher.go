package dynamo

import "context"

// WatchKind distinguishes the two registration flavors a Watcher supports.
type WatchKind int

const (
	// WatchFile watches a single file and fires only on a completed write
	// to that exact path.
	WatchFile WatchKind = iota

	// WatchDirectory watches a directory recursively and fires on
	// create/modify/delete/move of any current or future descendant.
	WatchDirectory
)

// String returns the string representation of the kind.
func (k WatchKind) String() string {
	switch k {
	case WatchFile:
		return "file"
	case WatchDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Event is a single filesystem change reported by a Watcher.
type Event struct {
	// Path is the file or directory the change happened to.
	Path string

	// Op describes the change, e.g. "write" or "create".
	Op string
}

// Watcher observes a set of registered paths for changes and emits events
// on a channel. Registration happens before Watch; the set never shrinks.
//
// A Watcher must degrade, never fail: on platforms or paths where native
// notification is unavailable, Watch returns a channel that simply never
// fires, and the engine falls back to its poll timeout alone.
type Watcher interface {
	// Register adds a path to the watch set. Calling Register after Watch
	// has been called returns an error.
	Register(path string, kind WatchKind) error

	// Watch begins observing the registered paths and returns a channel
	// that emits change events. The channel is closed when the context is
	// canceled.
	Watch(ctx context.Context) (<-chan Event, error)
}

// NopWatcher is a Watcher that never fires. It is the degraded form every
// real Watcher falls back to, and is useful on its own for engines that
// should regenerate on the poll timeout alone.
type NopWatcher struct{}

// Register accepts and ignores the path.
func (NopWatcher) Register(string, WatchKind) error { return nil }

// Watch returns a channel that emits nothing and closes when ctx is done.
func (NopWatcher) Watch(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event)
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}
