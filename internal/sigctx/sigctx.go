// Package sigctx implements the async-signal-safe shutdown flag described
// for the supervisor's signal handling: SIGINT/SIGTERM set a flag and do
// nothing else from signal context. Context also returns an ordinary
// context.Context canceled alongside the flag; the supervisor itself reads
// only the Flag.
package sigctx

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/LK4D4/joincontext"
)

// Flag is a lock-free shutdown request flag, safe to set from a signal
// handler goroutine.
type Flag struct {
	requested atomic.Bool
}

// Requested reports whether shutdown has been requested.
func (f *Flag) Requested() bool { return f.requested.Load() }

// Set marks shutdown as requested. Idempotent.
func (f *Flag) Set() { f.requested.Store(true) }

// Context wires SIGINT/SIGTERM into a Flag and a context.Context that is
// canceled the moment either signal arrives, or when fatal is canceled
// (e.g. by the supervisor loop reporting an unrecoverable startup error).
// The returned stop func removes the signal handler.
func Context(fatal context.Context) (ctx context.Context, flag *Flag, stop func()) {
	flag = &Flag{}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sigCtx, cancelSig := context.WithCancel(context.Background())
	go func() {
		select {
		case <-sigCh:
			flag.Set()
			cancelSig()
		case <-sigCtx.Done():
		}
	}()

	joined, _ := joincontext.Join(sigCtx, fatal)

	return joined, flag, func() {
		signal.Stop(sigCh)
		cancelSig()
	}
}
