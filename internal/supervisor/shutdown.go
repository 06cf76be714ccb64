package supervisor

import (
	"os"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/jlesage/cinit/internal/service"
)

// Shutdown drives the four-phase termination sequence: reverse-start-order
// polite stop, a broadcast SIGTERM wave, a broadcast SIGKILL wave, and a
// final unbounded reap. Grounded on cinit_shutdown.
func (s *Supervisor) Shutdown() {
	for _, idx := range s.order.Reverse() {
		svc := s.table.At(idx)
		if svc == nil || svc.IsGroup || svc.PID == 0 {
			continue
		}

		s.stopService(svc)

		if s.ReapLoop(service.ReadinessCheckInterval, idx) {
			return
		}
	}

	if s.ReapLoop(0, -1) {
		return
	}

	s.log.Info("sending SIGTERM to all processes")
	_ = unix.Kill(-1, syscall.SIGTERM)
	if s.ReapLoop(s.cfg.GraceTime, -1) {
		return
	}

	s.log.Info("sending SIGKILL to all processes")
	_ = unix.Kill(-1, syscall.SIGKILL)
	s.ReapLoop(-1, -1)
}

// stopService runs a service's optional kill hook and sends SIGTERM,
// matching stop_service. Unlike one historical variant of the original,
// pid==1 is never special-cased; pid==0 ("not running") is the only
// sentinel consulted by the caller before stopService is invoked.
func (s *Supervisor) stopService(svc *service.Service) {
	s.log.Info("stopping service", "service", svc.Name)

	killPath := s.hookPath(svc.Name, "kill")
	if isExecutable(killPath) {
		if err := s.runHook(svc, "kill", strconv.Itoa(svc.PID)); err != nil {
			s.log.Debug("kill hook failed", "service", svc.Name, "error", err)
		}
	}
	_ = unix.Kill(svc.PID, syscall.SIGTERM)
}

// Exit replaces the process image with the services root's optional exit
// hook (argv = ["exit", "<status>"]), falling back to a plain process
// exit. Grounded on cinit_exit.
func (s *Supervisor) Exit(status int) {
	exitPath := s.cfg.ServicesRoot + "/exit"
	if isExecutable(exitPath) {
		argv := []string{"exit", strconv.Itoa(status)}
		if err := unix.Exec(exitPath, argv, os.Environ()); err != nil {
			s.log.Error("exec of exit hook failed", "error", err)
		}
	}
	os.Exit(status)
}
