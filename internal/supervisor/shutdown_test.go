package supervisor

import (
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jlesage/cinit/internal/service"
	"golang.org/x/sys/unix"
)

func TestStopServiceSendsSIGTERM(t *testing.T) {
	sup, tbl := newTestSupervisor(t)
	def := service.Definition{Name: "sleeper"}
	svc, err := tbl.Allocate(def)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	cmd := exec.Command("/bin/sh", "-c", "trap 'exit 0' TERM; sleep 30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	svc.PID = cmd.Process.Pid
	defer cmd.Process.Kill()

	sup.stopService(svc)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("process did not terminate after SIGTERM")
	}
}

func TestStopServiceRunsKillHookWhenPresent(t *testing.T) {
	sup, tbl := newTestSupervisor(t)
	def := service.Definition{Name: "withkill"}
	svc, err := tbl.Allocate(def)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	marker := sup.cfg.ServicesRoot + "/withkill-marker"
	writeExecutable(t, sup.cfg.ServicesRoot+"/withkill/kill", "#!/bin/sh\ntouch "+marker+"\n")

	cmd := exec.Command("/bin/sh", "-c", "sleep 30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	svc.PID = cmd.Process.Pid
	defer cmd.Process.Kill()
	defer unix.Kill(cmd.Process.Pid, unix.SIGKILL)

	sup.stopService(svc)

	if _, err := os.Stat(marker); err != nil {
		t.Errorf("expected the kill hook to have run and created %s: %v", marker, err)
	}
}
