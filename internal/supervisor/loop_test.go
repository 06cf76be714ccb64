package supervisor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jlesage/cinit/internal/clog"
	"github.com/jlesage/cinit/internal/outlog"
	"github.com/jlesage/cinit/internal/service"
	"github.com/jlesage/cinit/internal/sigctx"
)

func TestAnyRespawnPendingReflectsDownRespawnService(t *testing.T) {
	sup, tbl := newTestSupervisor(t)
	def := service.Definition{Name: "web", Respawn: true}
	svc, err := tbl.Allocate(def)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	if !sup.anyRespawnPending() {
		t.Error("expected a down respawn service to be reported as pending")
	}

	svc.PID = 123
	if sup.anyRespawnPending() {
		t.Error("a running respawn service should not be reported as pending")
	}
}

func TestRespawnDueRestartsAfterDelayElapsed(t *testing.T) {
	root := t.TempDir()
	writeExecutable(t, filepath.Join(root, "web", "run"), "#!/bin/sh\nsleep 30\n")

	tbl := service.NewTable()
	order := service.NewOrder()
	def := service.Definition{
		Name:    "web",
		RunPath: filepath.Join(root, "web", "run"),
		Respawn: true,
		UID:     uint32(os.Getuid()),
		GID:     uint32(os.Getgid()),
	}
	svc, err := tbl.Allocate(def)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	order.Insert(svc.Index, -1)
	svc.StartTime = time.Now().Add(-2 * service.RestartDelay)

	sup := New(Config{ServicesRoot: root, LogPrefixWidth: 12}, tbl, order, outlog.NewStreams(), clog.New("test", false), &sigctx.Flag{})

	sup.respawnDue()

	if svc.PID == 0 {
		t.Error("expected respawnDue to have restarted the service")
	}
	unix.Kill(svc.PID, unix.SIGKILL)
}

func TestRespawnDueSkipsServiceWithinRestartDelay(t *testing.T) {
	tbl := service.NewTable()
	order := service.NewOrder()
	def := service.Definition{Name: "web", Respawn: true}
	svc, err := tbl.Allocate(def)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	svc.StartTime = time.Now()

	sup := New(Config{ServicesRoot: t.TempDir(), LogPrefixWidth: 12}, tbl, order, outlog.NewStreams(), clog.New("test", false), &sigctx.Flag{})
	sup.respawnDue()

	if svc.PID != 0 {
		t.Error("expected respawnDue to skip a service still within its restart delay")
	}
}

func TestRunDueIntervalsLogsOverrunWithoutRestarting(t *testing.T) {
	tbl := service.NewTable()
	order := service.NewOrder()
	def := service.Definition{Name: "backup", Interval: time.Millisecond}
	svc, err := tbl.Allocate(def)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	svc.PID = 4242
	svc.StartTime = time.Now().Add(-time.Hour)

	sup := New(Config{ServicesRoot: t.TempDir(), LogPrefixWidth: 12}, tbl, order, outlog.NewStreams(), clog.New("test", false), &sigctx.Flag{})
	sup.runDueIntervals()

	if svc.PID != 4242 {
		t.Error("an overrunning interval service's pid must not be touched")
	}
}
