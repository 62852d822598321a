package dynamo

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/zoobzio/capitan"
)

// BindSignals maps OS signals onto the engine's existing wake channels:
// SIGHUP requests a forced regeneration, SIGINT and SIGTERM request
// shutdown. Signals become one more event source the loop already
// multiplexes; no cycle work happens on the signal goroutine.
//
// The returned release function unregisters the handler; it is safe to call
// more than once. Signals are also released when ctx is canceled.
func BindSignals(ctx context.Context, e *Engine) (release func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case sig := <-sigs:
				e.metrics.OnSignal(sig.String())
				capitan.Emit(ctx, SignalReceived,
					KeySignal.Field(sig.String()),
				)
				switch sig {
				case syscall.SIGHUP:
					e.logger.Info("reload signal received", "signal", sig)
					e.Kick()
				default:
					e.logger.Info("shutdown signal received", "signal", sig)
					e.Stop()
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
		})
	}
}
