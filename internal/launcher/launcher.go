// Package launcher implements the child process launcher: two
// pseudo-terminals (one per stream, preserving stdout/stderr identity and
// disabling stdio block-buffering in the child), credential drop in the
// mandated order (niceness, umask, supplementary groups, gid, uid, chdir),
// and argv/environment construction. Grounded on cinit.c's fork_and_exec
// and start_service.
package launcher

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/jlesage/cinit/internal/service"
)

// Exit code conventions preserved from the original implementation, used
// to describe launch failures even though this Go implementation never
// runs a doomed child to completion the way a raw fork+exec would: a
// Start() failure is reported back to the parent synchronously instead of
// the child calling _exit(126)/_exit(50) itself.
const (
	ExitCodeExecFailure       = 126
	ExitCodeCredentialFailure = 50
)

// Error wraps a launch failure with the exit-code vocabulary the rest of
// the supervisor (logging, shutdown_on_terminate propagation) expects.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Result is a successfully launched child: its pid and the two pty
// master file descriptors the output multiplexer reads from.
type Result struct {
	PID          int
	StdoutMaster *os.File
	StderrMaster *os.File
}

const maxRetries = 4
const retryBackoff = 500 // milliseconds, matches SERVICE_RESTART_DELAY

// Launch forks and execs def.RunPath once. Retries (up to maxRetries, with
// retryBackoff between attempts) are the caller's responsibility (see
// internal/supervisor), matching start_service's own retry loop rather
// than duplicating it here.
func Launch(def *service.Definition) (*Result, error) {
	outMaster, outSlave, err := pty.Open()
	if err != nil {
		return nil, &Error{Code: ExitCodeExecFailure, Err: fmt.Errorf("launcher: open stdout pty: %w", err)}
	}
	defer outSlave.Close()

	errMaster, errSlave, err := pty.Open()
	if err != nil {
		outMaster.Close()
		return nil, &Error{Code: ExitCodeExecFailure, Err: fmt.Errorf("launcher: open stderr pty: %w", err)}
	}
	defer errSlave.Close()

	cmd := exec.Command(def.RunPath, def.Params...)
	cmd.Dir = workDir(def)
	cmd.Env = buildEnv(def)
	cmd.Stdin = outSlave
	cmd.Stdout = outSlave
	cmd.Stderr = errSlave
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0,
		Credential: &syscall.Credential{
			Uid:    def.UID,
			Gid:    def.GID,
			Groups: def.SGIDs,
		},
	}

	// Niceness and umask have no equivalent SysProcAttr field on Linux;
	// both are inherited across fork, so they are applied to this
	// process around the Start() call (which forks+execs synchronously)
	// and restored immediately after, preserving the mandated
	// niceness -> umask -> sgid -> gid -> uid -> chdir -> exec order
	// (sgid/gid/uid/chdir are applied inside the runtime's fork child via
	// Credential and cmd.Dir).
	restoreNice, niceErr := applyNiceness(def.Priority)
	if niceErr != nil {
		outMaster.Close()
		errMaster.Close()
		return nil, &Error{Code: ExitCodeCredentialFailure, Err: fmt.Errorf("launcher: set priority: %w", niceErr)}
	}
	oldUmask := unix.Umask(int(def.Umask))

	startErr := cmd.Start()

	unix.Umask(oldUmask)
	restoreNice()

	if startErr != nil {
		outMaster.Close()
		errMaster.Close()
		return nil, &Error{Code: classifyStartError(startErr), Err: fmt.Errorf("launcher: start %s: %w", def.Name, startErr)}
	}

	return &Result{
		PID:          cmd.Process.Pid,
		StdoutMaster: outMaster,
		StderrMaster: errMaster,
	}, nil
}

func workDir(def *service.Definition) string {
	if def.WorkingDir != "" {
		return def.WorkingDir
	}
	return ""
}

func buildEnv(def *service.Definition) []string {
	env := append([]string(nil), os.Environ()...)
	return append(env, def.Environment...)
}

func applyNiceness(priority int) (restore func(), err error) {
	if priority == 0 {
		return func() {}, nil
	}
	old, err := unix.Getpriority(unix.PRIO_PROCESS, 0)
	if err != nil {
		return nil, err
	}
	// Linux getpriority returns 20-nice; normalize back to the nice scale.
	oldNice := 20 - old
	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, priority); err != nil {
		return nil, err
	}
	return func() {
		_ = unix.Setpriority(unix.PRIO_PROCESS, 0, oldNice)
	}, nil
}

func classifyStartError(err error) int {
	if _, ok := err.(*os.SyscallError); ok {
		return ExitCodeCredentialFailure
	}
	return ExitCodeExecFailure
}
