package outlog

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"
)

func newAggregateOverPipe(t *testing.T) (*Aggregate, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	t.Cleanup(func() { w.Close(); r.Close() })
	return NewAggregate(w), r
}

func TestMultiplexerPrefixesLinesFromBothStreams(t *testing.T) {
	outAgg, outR := newAggregateOverPipe(t)
	errAgg, errR := newAggregateOverPipe(t)
	streams := &Streams{Stdout: outAgg, Stderr: errAgg}

	stdoutMaster, stdoutSlave, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	stderrMaster, stderrSlave, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}

	mux := New("[svc]        ", stdoutMaster, stderrMaster, streams, nil)
	go mux.Run()

	stdoutSlave.WriteString("hello\n")
	stderrSlave.WriteString("oops\n")
	stdoutSlave.Close()
	stderrSlave.Close()

	select {
	case <-mux.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("Multiplexer.Run did not finish after both fds closed")
	}

	outR.Close()
	errR.Close()
	stdoutMaster.Close()
	stderrMaster.Close()

	var outBuf, errBuf bytes.Buffer
	io.Copy(&outBuf, outR)
	io.Copy(&errBuf, errR)

	if !bytes.Contains(outBuf.Bytes(), []byte("hello")) {
		t.Errorf("stdout aggregate missing line, got %q", outBuf.String())
	}
	if !bytes.Contains(errBuf.Bytes(), []byte("oops")) {
		t.Errorf("stderr aggregate missing line, got %q", errBuf.String())
	}
}

func TestMultiplexerStripsEscapeHatchPrefix(t *testing.T) {
	outAgg, outR := newAggregateOverPipe(t)
	errAgg, _ := newAggregateOverPipe(t)
	streams := &Streams{Stdout: outAgg, Stderr: errAgg}

	stdoutMaster, stdoutSlave, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	stderrMaster, stderrSlave, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}

	mux := New("[svc]        ", stdoutMaster, stderrMaster, streams, nil)
	go mux.Run()

	stdoutSlave.WriteString(":::unprefixed\n")
	stdoutSlave.Close()
	stderrSlave.Close()

	select {
	case <-mux.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("Multiplexer.Run did not finish")
	}
	outR.Close()
	stdoutMaster.Close()
	stderrMaster.Close()

	var buf bytes.Buffer
	io.Copy(&buf, outR)
	if bytes.Contains(buf.Bytes(), []byte("[svc]")) {
		t.Errorf("expected the prefix to be stripped for a ::: line, got %q", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("unprefixed")) {
		t.Errorf("expected the line content to survive, got %q", buf.String())
	}
}

func TestMultiplexerStopsWhenExitFlagFires(t *testing.T) {
	outAgg, outR := newAggregateOverPipe(t)
	errAgg, _ := newAggregateOverPipe(t)
	streams := &Streams{Stdout: outAgg, Stderr: errAgg}

	stdoutMaster, stdoutSlave, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	stderrMaster, _, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer stdoutSlave.Close()

	exit := false
	mux := New("[svc]        ", stdoutMaster, stderrMaster, streams, func() bool { return exit })
	go mux.Run()

	exit = true

	select {
	case <-mux.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("Multiplexer.Run did not observe the exit flag in time")
	}
	outR.Close()
	stdoutMaster.Close()
	stderrMaster.Close()
}
