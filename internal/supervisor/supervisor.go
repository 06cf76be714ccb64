// Package supervisor implements the steady-state service state machine:
// startup sequencing (sync/min-running-time/readiness gates), reaping,
// respawn and interval policy, and the shutdown driver. Grounded on
// cinit.c's start_services/child_handler/handle_killed/cinit_shutdown.
package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jlesage/cinit/internal/launcher"
	"github.com/jlesage/cinit/internal/outlog"
	"github.com/jlesage/cinit/internal/readyset"
	"github.com/jlesage/cinit/internal/service"
	"github.com/jlesage/cinit/internal/sigctx"
)

// Config carries the process-wide knobs that aren't per-service.
type Config struct {
	ServicesRoot    string
	GraceTime       time.Duration
	Debug           bool
	NotifyReady     bool
	// LogPrefixWidth is the padded field width used for aggregate output
	// line prefixes (service.LogPrefixLength's result).
	LogPrefixWidth int
	// StatusFile, if non-empty, receives a rendered status.Collect snapshot
	// once per tick for "cinit status" to read back out-of-process.
	StatusFile string
}

// Supervisor owns a loaded service table/order and drives its lifecycle.
type Supervisor struct {
	cfg     Config
	table   *service.Table
	order   *service.Order
	streams *outlog.Streams
	log     hclog.Logger
	shut    *sigctx.Flag

	// ExitCode is set when a terminated service with shutdown_on_terminate
	// requests the overall exit status (handle_killed's g_ctx.exit_code).
	ExitCode int
}

// New builds a Supervisor around an already-loaded table/order.
func New(cfg Config, table *service.Table, order *service.Order, streams *outlog.Streams, logger hclog.Logger, shut *sigctx.Flag) *Supervisor {
	return &Supervisor{cfg: cfg, table: table, order: order, streams: streams, log: logger, shut: shut}
}

// StartServices starts every runnable service in start order, applying
// each one's sync/min-running-time/readiness gate before moving to the
// next, exactly as start_services does.
func (s *Supervisor) StartServices() error {
	for _, idx := range s.order.Indices() {
		svc := s.table.At(idx)
		if svc == nil || !svc.Runnable() {
			continue
		}
		if s.shut.Requested() {
			break
		}

		if err := s.startAndGate(svc); err != nil {
			if svc.IgnoreFailure {
				s.log.Error("service failed to start", "service", svc.Name, "error", err)
				continue
			}
			return fmt.Errorf("service %q failed to be started: %w", svc.Name, err)
		}
	}
	return nil
}

// startAndGate starts one service and waits out its sync/min-running-
// time/readiness gate, matching the inner Try block of start_services.
func (s *Supervisor) startAndGate(svc *service.Service) error {
	if err := s.startService(svc); err != nil {
		return err
	}

	if svc.Sync {
		s.log.Debug("waiting for service to terminate", "service", svc.Name)
		s.waitSyncCompletion(svc)
		return nil
	}

	for {
		if time.Since(svc.StartTime) >= svc.MinRunningTime {
			break
		}
		s.ReapLoop(0, -1)
		if !processAlive(svc.PID) {
			return fmt.Errorf("minimum uptime not met")
		}
		if s.shut.Requested() {
			return nil
		}
		time.Sleep(service.RestartDelay)
	}

	readyPath := filepath.Join(s.cfg.ServicesRoot, svc.Name, "is_ready")
	if isExecutable(readyPath) {
		s.log.Debug("waiting for service to be ready", "service", svc.Name)
		for {
			if time.Since(svc.StartTime) >= svc.ReadyTimeout {
				return fmt.Errorf("not ready after %s, giving up", svc.ReadyTimeout)
			}
			s.ReapLoop(0, -1)
			if !processAlive(svc.PID) {
				return fmt.Errorf("terminated before being ready")
			}
			if runHookSilent(readyPath, strconv.Itoa(svc.PID)) == nil {
				break
			}
			if s.shut.Requested() {
				return nil
			}
			time.Sleep(service.ReadinessCheckInterval)
		}
	}
	return nil
}

// startService forks+execs svc.RunPath (retrying up to 4 times with a
// 500ms backoff, as start_service does), wires up its output multiplexer,
// and records its start time.
func (s *Supervisor) startService(svc *service.Service) error {
	s.log.Info("starting service", "service", svc.Name)

	var lastErr error
	for attempt := 0; attempt < 4; attempt++ {
		def := svc.Definition
		res, err := launcher.Launch(&def)
		if err == nil {
			svc.PID = res.PID
			svc.StartTime = time.Now()
			svc.Completed = false
			svc.LoggerExit.Store(false)
			svc.LoggerDone = make(chan struct{})
			svc.StdoutFD = res.StdoutMaster
			svc.StderrFD = res.StderrMaster

			prefix := fmt.Sprintf("[%-*s] ", s.cfg.LogPrefixWidth, svc.Name)
			mux := outlog.New(prefix, res.StdoutMaster, res.StderrMaster, s.streams, svc.LoggerExit.Load)
			go mux.Run()
			// Replace the placeholder channel with the multiplexer's
			// actual completion channel (closed by Run itself) so
			// handleKilled joins the real reader instead of an unclosed
			// stand-in.
			svc.LoggerDone = mux.Done

			s.log.Debug("started service", "service", svc.Name, "pid", res.PID)
			return nil
		}
		lastErr = err
		time.Sleep(service.RestartDelay)
	}
	return fmt.Errorf("could not fork: %w", lastErr)
}

// waitSyncCompletion blocks until a sync service terminates, matching
// start_services's waitpid(pid, NULL, 0) loop: the logger goroutine is
// still joined and its pty masters still closed (it was started, it must
// be cleaned up), but — matching the original, which skips straight to the
// next service afterward — no finish hook runs and no shutdown_on_terminate
// propagation happens for sync completions.
func (s *Supervisor) waitSyncCompletion(svc *service.Service) {
	for {
		status, err := reapOne(svc.PID)
		if err != nil {
			if s.shut.Requested() {
				return
			}
			continue
		}
		if status != nil {
			svc.PID = 0
			svc.Completed = true
			svc.LoggerExit.Store(true)
			if svc.LoggerDone != nil {
				<-svc.LoggerDone
			}
			closeStreams(svc)
			return
		}
		if s.shut.Requested() {
			return
		}
	}
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode()&0o111 != 0
}

// runHook invokes a service lifecycle hook (kill/is_ready/finish) with the
// given argument. Its output is discarded unless debug logging is on, in
// which case it is forwarded to the logger with the hook's name, matching
// exec_service_cmd's debug-gated prefixed-output behavior (the original
// pipes hook output through the same per-line prefixer as service output;
// this rewrite forwards it through the structured logger instead since
// hook invocations are short-lived, not long-running services).
func (s *Supervisor) runHook(svc *service.Service, hook, arg string) error {
	path := filepath.Join(s.cfg.ServicesRoot, svc.Name, hook)
	cmd := exec.Command(path, arg)
	out, err := cmd.CombinedOutput()
	if s.cfg.Debug && len(out) > 0 {
		s.log.Debug("hook output", "service", svc.Name, "hook", hook, "output", string(out))
	}
	return err
}

// runHookSilent invokes a hook purely to test its exit code (is_ready
// polling), discarding output entirely.
func runHookSilent(path string, arg string) error {
	cmd := exec.Command(path, arg)
	return cmd.Run()
}

func notifyReadyIfConfigured(cfg Config, log hclog.Logger) {
	if !cfg.NotifyReady {
		return
	}
	ok, err := readyset.Notify()
	if err != nil {
		log.Debug("readiness notification failed", "error", err)
		return
	}
	if ok {
		log.Debug("readiness notification sent")
	}
}
