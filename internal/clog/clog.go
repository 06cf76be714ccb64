// Package clog wires the supervisor's operational logging onto
// github.com/hashicorp/go-hclog, the same structured logger the teacher
// driver uses for its own lifecycle events. It is distinct from the
// per-service aggregate stdout/stderr streams (see internal/outlog), which
// keep the original flat "[prefix] line" format untouched.
package clog

import (
	"os"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-uuid"
)

// New builds the root logger for a supervisor run, tagging every line with
// a per-run correlation id so concurrent container starts can be told apart
// in aggregated log storage.
func New(name string, debug bool) hclog.Logger {
	level := hclog.Info
	if debug {
		level = hclog.Debug
	}

	runID, err := uuid.GenerateUUID()
	if err != nil {
		runID = "unknown"
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  level,
		Output: os.Stderr,
	})
	return logger.With("run_id", runID)
}

// signalNames corrects the two mismappings present in one variant of the
// original signal_to_str (SIGQUIT was reported as "SIGINT", SIGTRAP as
// "SIGILL"); every other mnemonic matches what the kernel defines.
var signalNames = map[syscall.Signal]string{
	syscall.SIGHUP:    "SIGHUP",
	syscall.SIGINT:    "SIGINT",
	syscall.SIGQUIT:   "SIGQUIT",
	syscall.SIGILL:    "SIGILL",
	syscall.SIGTRAP:   "SIGTRAP",
	syscall.SIGABRT:   "SIGABRT",
	syscall.SIGBUS:    "SIGBUS",
	syscall.SIGFPE:    "SIGFPE",
	syscall.SIGKILL:   "SIGKILL",
	syscall.SIGUSR1:   "SIGUSR1",
	syscall.SIGSEGV:   "SIGSEGV",
	syscall.SIGUSR2:   "SIGUSR2",
	syscall.SIGPIPE:   "SIGPIPE",
	syscall.SIGALRM:   "SIGALRM",
	syscall.SIGTERM:   "SIGTERM",
	syscall.SIGCHLD:   "SIGCHLD",
	syscall.SIGCONT:   "SIGCONT",
	syscall.SIGSTOP:   "SIGSTOP",
	syscall.SIGTSTP:   "SIGTSTP",
	syscall.SIGTTIN:   "SIGTTIN",
	syscall.SIGTTOU:   "SIGTTOU",
}

// SignalName returns the canonical mnemonic for a signal number, or the
// upper-cased syscall.Signal description (e.g. "SIGNAL 64") for anything
// not in the common set above.
func SignalName(sig syscall.Signal) string {
	if name, ok := signalNames[sig]; ok {
		return name
	}
	return strings.ToUpper(sig.String())
}
