package dynamo

import "context"

// ChannelWatcher wraps an existing event channel as a Watcher. Useful for
// hosts with their own change-notification plumbing — service discovery
// callbacks, message buses — and for testing.
type ChannelWatcher struct {
	ch <-chan Event
}

// NewChannelWatcher creates a ChannelWatcher that forwards events from the
// given channel.
func NewChannelWatcher(ch <-chan Event) *ChannelWatcher {
	return &ChannelWatcher{ch: ch}
}

// Register accepts and ignores the path; the wrapped channel's producer
// decides what is watched.
func (w *ChannelWatcher) Register(string, WatchKind) error { return nil }

// Watch returns a channel that emits events from the wrapped channel until
// it closes or ctx is done.
func (w *ChannelWatcher) Watch(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.ch:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
