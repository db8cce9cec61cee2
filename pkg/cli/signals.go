package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// SetupSignalHandler returns a context that is canceled on SIGINT or
// SIGTERM. After that first signal a second one is left to the default
// handler, so pressing Ctrl-C twice terminates a stuck shutdown.
//
// Cancelling the context, or its parent, only unregisters this handler.
// Other handlers registered in the process keep working.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, shutdownSignals...)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			// Reset before cancel: once ctx is done a new handler may
			// already be registered, and Reset would disarm it.
			signal.Reset(shutdownSignals...)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
