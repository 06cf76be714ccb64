package supervisor

import (
	"time"

	"github.com/jlesage/cinit/internal/service"
	"github.com/jlesage/cinit/internal/status"
)

// tickInterval matches the original's 1-second msleep at the bottom of its
// main loop.
const tickInterval = time.Second

// Run executes the steady-state supervisor loop until shutdown is
// requested (by a signal, a terminated shutdown_on_terminate service, or
// every service having exited with nothing left to respawn), then drives
// the shutdown sequence and exits. It never returns.
func (s *Supervisor) Run() {
	if !s.shut.Requested() {
		notifyReadyIfConfigured(s.cfg, s.log)
	}

	for {
		if s.shut.Requested() {
			break
		}

		allTerminated := s.ReapLoop(0, -1)

		if s.shut.Requested() {
			break
		}

		if allTerminated && !s.anyRespawnPending() {
			s.log.Info("all services exited, shutting down")
			s.shut.Set()
			break
		}

		s.runDueIntervals()
		s.respawnDue()
		s.writeStatusSnapshot()

		time.Sleep(tickInterval)
	}

	s.Shutdown()
	s.Exit(s.ExitCode)
}

// writeStatusSnapshot renders the current service table to cfg.StatusFile,
// if configured, for an out-of-process "cinit status" invocation to read.
// Failures are logged at debug level only: a missing status directory must
// never affect supervision.
func (s *Supervisor) writeStatusSnapshot() {
	if s.cfg.StatusFile == "" {
		return
	}
	if err := status.WriteSnapshot(s.cfg.StatusFile, status.Collect(s.table)); err != nil {
		s.log.Debug("failed to write status snapshot", "error", err)
	}
}

func (s *Supervisor) anyRespawnPending() bool {
	for _, svc := range s.table.All() {
		if svc.Respawn && svc.PID == 0 {
			return true
		}
	}
	return false
}

// runDueIntervals starts (or logs an overrun for) every service whose
// interval has elapsed, matching the main loop's interval-processing
// block. A service still running at its scheduled tick is never
// double-instanced: the deadline is simply reset.
func (s *Supervisor) runDueIntervals() {
	now := time.Now()
	for _, svc := range s.table.All() {
		if svc.Interval <= 0 && svc.IntervalCron == "" {
			continue
		}

		due := false
		if svc.IntervalCron != "" {
			next, err := service.NextCronOccurrence(svc.IntervalCron, svc.StartTime)
			due = err == nil && !now.Before(next)
		} else {
			due = now.Sub(svc.StartTime) >= svc.Interval
		}
		if !due {
			continue
		}

		if svc.PID > 0 {
			s.log.Error("service didn't terminate within its defined interval", "service", svc.Name, "interval", svc.Interval)
			svc.StartTime = now
			continue
		}

		if err := s.startService(svc); err != nil {
			s.log.Error("failed to start interval service", "service", svc.Name, "error", err)
		}
	}
}

// respawnDue restarts every respawn service that is down and has waited
// out the minimum restart delay since its last start.
func (s *Supervisor) respawnDue() {
	for _, svc := range s.table.All() {
		if !svc.Respawn || svc.PID != 0 {
			continue
		}
		if time.Since(svc.StartTime) <= service.RestartDelay {
			continue
		}
		s.log.Info("restarting service", "service", svc.Name)
		if err := s.startService(svc); err != nil {
			s.log.Error("failed to restart service", "service", svc.Name, "error", err)
		}
	}
}
