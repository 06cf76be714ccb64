// Package outlog implements the per-service output multiplexer: a reader
// goroutine per service that demultiplexes its two pty master descriptors
// into line-buffered, name-prefixed records on a pair of process-wide
// aggregate streams. Grounded on utils.c's read_lines and log.c's
// log_prefixer/log_stdout/log_stderr.
package outlog

import (
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const (
	bufSize = 4096
	// pollTimeout bounds each poll() call so the reader can observe the
	// exit flag promptly; log_prefixer's original read_lines blocks in
	// poll(..., -1) forever because nothing there needed an early exit
	// check apart from EOF. Our long-running per-service logger does need
	// one (see DESIGN.md's note on log_prefixer's richer, exit-flag-aware
	// signature), so it polls with a timeout instead.
	pollTimeout = 250 * time.Millisecond
)

// Aggregate serializes writes to one real output stream (the process's own
// stdout or stderr) behind a single mutex, matching log_stdout/log_stderr.
type Aggregate struct {
	mu  sync.Mutex
	out *os.File
}

// NewAggregate wraps f as a mutex-protected aggregate stream.
func NewAggregate(f *os.File) *Aggregate {
	return &Aggregate{out: f}
}

func (a *Aggregate) writeLine(prefix, line string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out.WriteString(prefix)
	a.out.WriteString(line)
	a.out.WriteString("\n")
}

// Streams bundles the two process-wide aggregate outputs.
type Streams struct {
	Stdout *Aggregate
	Stderr *Aggregate
}

// NewStreams returns the standard os.Stdout/os.Stderr-backed aggregates.
func NewStreams() *Streams {
	return &Streams{
		Stdout: NewAggregate(os.Stdout),
		Stderr: NewAggregate(os.Stderr),
	}
}

type fdState struct {
	f    *os.File
	buf  [bufSize]byte
	used int
	eof  bool
	agg  *Aggregate
}

// Multiplexer reads a service's stdout/stderr pty masters and emits
// prefixed lines onto a Streams pair until both fds hit EOF or ExitFlag is
// observed true.
type Multiplexer struct {
	prefix    string
	stdout    fdState
	stderr    fdState
	streams   *Streams
	ExitFlag  func() bool
	Done      chan struct{}
}

// New builds a Multiplexer for one service. prefix is the padded service
// name; lines literally starting with ":::" have it and the prefix
// stripped before being written, per the escape hatch in log_prefixer.
func New(prefix string, stdoutMaster, stderrMaster *os.File, streams *Streams, exitFlag func() bool) *Multiplexer {
	return &Multiplexer{
		prefix:   prefix,
		stdout:   fdState{f: stdoutMaster, agg: streams.Stdout},
		stderr:   fdState{f: stderrMaster, agg: streams.Stderr},
		streams:  streams,
		ExitFlag: exitFlag,
		Done:     make(chan struct{}),
	}
}

// Run reads until both descriptors are exhausted or the exit flag fires.
// It must run in its own goroutine; the caller joins it via Done before
// closing the underlying pty master fds (see SPEC_FULL §4.6 reap-protocol
// ordering: closing fds before the logger returns would race its final
// read, and the slave-side EOF delivered at child death is what lets that
// final read return on its own).
func (m *Multiplexer) Run() {
	defer close(m.Done)

	states := []*fdState{&m.stdout, &m.stderr}
	fds := make([]unix.PollFd, len(states))
	for i, st := range states {
		fds[i] = unix.PollFd{Fd: int32(st.f.Fd()), Events: unix.POLLIN}
	}

	for {
		allEOF := true
		for _, st := range states {
			if !st.eof {
				allEOF = false
			}
		}
		if allEOF {
			return
		}
		if m.ExitFlag != nil && m.ExitFlag() {
			return
		}

		for i, st := range states {
			if st.eof {
				fds[i].Fd = -1
			} else {
				fds[i].Fd = int32(st.f.Fd())
			}
			fds[i].Events = unix.POLLIN
			fds[i].Revents = 0
		}

		n, err := unix.Poll(fds, int(pollTimeout/time.Millisecond))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if n == 0 {
			continue // timed out, loop back to recheck the exit flag
		}

		for i, st := range states {
			if st.eof {
				continue
			}
			revents := fds[i].Revents
			switch {
			case revents&unix.POLLIN != 0:
				m.readFrom(st)
			case revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0:
				m.flush(st)
				st.eof = true
			}
		}
	}
}

func (m *Multiplexer) readFrom(st *fdState) {
	max := bufSize - st.used - 1
	if max <= 0 {
		// Line too big to fit; flush what we have (B2: flush-on-overflow).
		m.flush(st)
		return
	}
	n, err := unix.Read(int(st.f.Fd()), st.buf[st.used:st.used+max])
	if err != nil {
		if err == unix.EINTR {
			return
		}
		m.flush(st)
		st.eof = true
		return
	}
	if n == 0 {
		m.flush(st)
		st.eof = true
		return
	}
	st.used += n
	m.drainLines(st)
}

// drainLines extracts every complete line currently buffered, where a
// line is terminated by either '\n' or '\r' (either byte, not just the
// "\r\n" pair), matching read_lines's scan.
func (m *Multiplexer) drainLines(st *fdState) {
	for {
		idx := -1
		for j := 0; j < st.used; j++ {
			if st.buf[j] == '\n' || st.buf[j] == '\r' {
				idx = j
				break
			}
		}
		if idx < 0 {
			return
		}
		if idx != 0 {
			m.emit(st.agg, string(st.buf[:idx]))
		}
		remaining := st.used - (idx + 1)
		copy(st.buf[:remaining], st.buf[idx+1:st.used])
		st.used = remaining
	}
}

// flush emits whatever is left in the buffer (used when the far end
// closes or the buffer overflows without a line terminator).
func (m *Multiplexer) flush(st *fdState) {
	if st.used == 0 {
		return
	}
	m.emit(st.agg, string(st.buf[:st.used]))
	st.used = 0
}

func (m *Multiplexer) emit(agg *Aggregate, line string) {
	prefix := m.prefix
	if len(line) >= 3 && line[0] == ':' && line[1] == ':' && line[2] == ':' {
		prefix = ""
		line = line[3:]
	}
	agg.writeLine(prefix, line)
}
