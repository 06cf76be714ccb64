// Package service defines the declarative service model, its fixed-size
// table, dependency ordering, and directory loader. It is grounded on
// cinit.c's service_t/context_t and load_service/load_service_with_deps.
package service

import (
	"os"
	"sync/atomic"
	"time"
)

// MaxServices bounds the service table, matching MAX_NUM_SERVICES.
const MaxServices = 64

const (
	// DefaultUID/DefaultGID/DefaultUmask/DefaultPriority are the defaults
	// applied to a service that does not override them.
	DefaultUID      = 1000
	DefaultGID      = 1000
	DefaultUmask    = 0o022
	DefaultPriority = 0

	DefaultGraceTime      = 5 * time.Second
	DefaultReadyTimeout   = 5 * time.Second
	DefaultMinRunningTime = 500 * time.Millisecond
	RestartDelay          = 500 * time.Millisecond
	ReadinessCheckInterval = 250 * time.Millisecond
	minLogPrefixLength    = 12
)

// Definition is the static, load-time description of one service.
type Definition struct {
	Name string

	Disabled bool
	IsGroup  bool

	RunPath     string
	Params      []string
	Environment []string

	UID        uint32
	GID        uint32
	SGIDs      []uint32
	Umask      uint32
	Priority   int
	WorkingDir string

	Respawn             bool
	Sync                bool
	IgnoreFailure       bool
	ShutdownOnTerminate bool

	MinRunningTime time.Duration
	ReadyTimeout   time.Duration
	Interval       time.Duration
	IntervalCron   string // optional, see SPEC_FULL §4.1.1

	// Depends lists the services (by name) this one must start after,
	// collected from the .dep files found alongside the service.
	Depends []string
}

// Runnable reports whether the definition describes something that is
// actually started (i.e. not a pure dependency group and not disabled).
func (d *Definition) Runnable() bool {
	return !d.Disabled && !d.IsGroup
}

// Runtime holds the mutable, supervisor-owned state of a running or
// previously-run service. PID returns to 0 when nothing is running;
// Completed distinguishes "never started"/"currently down" from "a sync
// service ran to completion" (see SPEC_FULL OQ-1 — pid==1 is never used as
// a sentinel).
type Runtime struct {
	PID       int
	Completed bool
	StartTime time.Time
	ExitCode  int

	LoggerExit atomic.Bool
	LoggerDone chan struct{}

	// StdoutFD/StderrFD are the pty master descriptors the output
	// multiplexer reads from. The supervisor closes both exactly once,
	// right after joining the logger, matching the reap protocol's
	// "join the logger worker, close both pty masters, clear pid" order.
	StdoutFD *os.File
	StderrFD *os.File
}

// IsRunning reports whether a child process is currently tracked.
func (r *Runtime) IsRunning() bool { return r.PID != 0 }

// Service couples a Definition to its live Runtime and table index.
type Service struct {
	Index int
	Definition
	Runtime
}

// LogPrefixLength computes the minimum field width for aggregate log line
// prefixes: at least minLogPrefixLength, or the longest service/program
// name, whichever is larger.
func LogPrefixLength(progName string, defs []Definition) int {
	width := len(progName)
	if width < minLogPrefixLength {
		width = minLogPrefixLength
	}
	for _, d := range defs {
		if len(d.Name) > width {
			width = len(d.Name)
		}
	}
	return width
}
