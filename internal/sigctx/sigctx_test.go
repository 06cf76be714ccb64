package sigctx

import (
	"context"
	"syscall"
	"testing"
	"time"
)

func TestFlagSetIsIdempotentAndObservable(t *testing.T) {
	var f Flag
	if f.Requested() {
		t.Fatal("Requested should start false")
	}
	f.Set()
	f.Set()
	if !f.Requested() {
		t.Error("Requested should be true after Set")
	}
}

func TestContextCancelsOnFatal(t *testing.T) {
	fatal, cancelFatal := context.WithCancel(context.Background())
	ctx, flag, stop := Context(fatal)
	defer stop()

	cancelFatal()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("expected ctx to be canceled when fatal is canceled")
	}
	if flag.Requested() {
		t.Error("flag should not be set when cancellation came from fatal, not a signal")
	}
}

func TestContextCancelsOnSignal(t *testing.T) {
	fatal, cancelFatal := context.WithCancel(context.Background())
	defer cancelFatal()

	ctx, flag, stop := Context(fatal)
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("Kill: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("expected ctx to be canceled after SIGTERM")
	}
	if !flag.Requested() {
		t.Error("expected the shutdown flag to be set after SIGTERM")
	}
}
