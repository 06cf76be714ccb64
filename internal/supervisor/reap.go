package supervisor

import (
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jlesage/cinit/internal/clog"
	"github.com/jlesage/cinit/internal/service"
)

// waitStatus is the outcome of one reaped child, passed to joinAndFinish.
type waitStatus struct {
	exited   bool
	code     int
	signal   syscall.Signal
	signaled bool
}

// reapOne performs a single blocking waitpid on a specific pid, used by
// the sync-service startup gate (start_services's "waitpid(pid, NULL, 0)"
// loop). It returns (nil, nil) if interrupted, matching the original's
// EINTR-retry discipline, and never swallows the shutdown-request check.
func reapOne(pid int) (*waitStatus, error) {
	var ws unix.WaitStatus
	_, err := unix.Wait4(pid, &ws, 0, nil)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	return decodeStatus(ws), nil
}

func decodeStatus(ws unix.WaitStatus) *waitStatus {
	st := &waitStatus{}
	if ws.Exited() {
		st.exited = true
		st.code = ws.ExitStatus()
	} else if ws.Signaled() {
		st.signaled = true
		st.signal = syscall.Signal(ws.Signal())
	}
	return st
}

// processAlive reports whether pid can still be signaled (kill(pid, 0) ==
// 0 in the original). A child that has exited but has not been reaped yet
// still answers kill(pid, 0), so callers run a reap pass (which clears the
// service's pid) before asking.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return unix.Kill(pid, 0) == nil
}

// ReapLoop is the single reusable non-blocking/bounded/unbounded reap
// primitive (child_handler): period == 0 performs one non-blocking pass;
// period > 0 bounds the wait to that duration; period < 0 blocks until
// ECHILD (no children left). serviceIdx, if >= 0, is an additional early
// exit condition: stop as soon as that specific service's pid has been
// cleared. It returns true iff the loop ultimately observed ECHILD (every
// child reaped).
func (s *Supervisor) ReapLoop(period time.Duration, serviceIdx int) bool {
	start := time.Now()
	allGone := false

	for {
		sawAny := false
		for {
			var ws unix.WaitStatus
			pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
			if err != nil {
				if err == unix.ECHILD {
					allGone = true
					break
				}
				break
			}
			if pid == 0 {
				break // no more exited children right now
			}
			sawAny = true
			s.handleKilled(pid, decodeStatus(ws))
		}

		if allGone {
			return true
		}

		if period == 0 {
			return false
		}
		if period > 0 && time.Since(start) >= period {
			return false
		}
		if serviceIdx >= 0 && sawAny {
			if svc := s.table.At(serviceIdx); svc != nil && svc.PID == 0 {
				return false
			}
		}

		time.Sleep(50 * time.Millisecond)
	}
}

// handleKilled applies the reap-protocol ordering mandated for a
// terminated child: join its logger, close its pty masters, clear its pid,
// then run its finish hook, exactly as handle_killed does.
func (s *Supervisor) handleKilled(pid int, st *waitStatus) {
	svc := s.findByPID(pid)
	if svc == nil {
		return
	}

	switch {
	case st.exited:
		if st.code != 0 || svc.Interval == 0 || s.cfg.Debug {
			s.log.Info("service exited", "service", svc.Name, "status", st.code)
		}
	case st.signaled:
		s.log.Info("service exited", "service", svc.Name, "signal", clog.SignalName(st.signal))
	default:
		s.log.Info("service exited", "service", svc.Name)
	}

	s.joinAndFinish(svc, st)
}

// joinAndFinish runs the remainder of handle_killed once a child has been
// reaped: join the logger, close its pty masters, clear its pid, run the
// finish hook, and propagate shutdown_on_terminate. Sync-service
// completions join the logger and close the same fds through the lighter
// path in waitSyncCompletion instead, since start_services's sync-wait
// loop skips straight to the next service without touching any of this.
func (s *Supervisor) joinAndFinish(svc *service.Service, st *waitStatus) {
	svc.LoggerExit.Store(true)
	if svc.LoggerDone != nil {
		<-svc.LoggerDone
	}
	// Pty master fds are read by the multiplexer goroutine but owned by
	// the table entry; closing them here, after the join above and before
	// the finish hook runs, matches the mandated ordering: set exit flag
	// -> join logger -> close fds -> clear pid -> run finish hook.
	closeStreams(svc)
	svc.PID = 0

	finishPath := s.hookPath(svc.Name, "finish")
	if isExecutable(finishPath) {
		arg := "126"
		if st.exited {
			arg = strconv.Itoa(st.code)
		} else if st.signaled {
			arg = strconv.Itoa(128 + int(st.signal))
		}
		if err := s.runHook(svc, "finish", arg); err != nil {
			s.log.Error("finish hook failed", "service", svc.Name, "error", err)
		}
	}

	if !s.shut.Requested() && svc.ShutdownOnTerminate {
		s.log.Info("service exited, shutting down", "service", svc.Name)
		s.shut.Set()
		if st.exited {
			s.ExitCode = st.code
		} else if st.signaled {
			s.ExitCode = 128 + int(st.signal)
		}
	}
}

// closeStreams releases a service's two pty master fds exactly once. It
// must only be called after the logger goroutine reading them has been
// joined, and is safe to call even if a service never started (both
// fields nil) or was already closed (set back to nil here).
func closeStreams(svc *service.Service) {
	if svc.StdoutFD != nil {
		svc.StdoutFD.Close()
		svc.StdoutFD = nil
	}
	if svc.StderrFD != nil {
		svc.StderrFD.Close()
		svc.StderrFD = nil
	}
}

func (s *Supervisor) findByPID(pid int) *service.Service {
	return s.table.FindByPID(pid)
}

func (s *Supervisor) hookPath(serviceName, hook string) string {
	return filepath.Join(s.cfg.ServicesRoot, serviceName, hook)
}
