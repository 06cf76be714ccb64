package supervisor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jlesage/cinit/internal/clog"
	"github.com/jlesage/cinit/internal/outlog"
	"github.com/jlesage/cinit/internal/service"
	"github.com/jlesage/cinit/internal/sigctx"
)

func writeExecutable(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestStartServicesRunsSyncServiceToCompletion(t *testing.T) {
	root := t.TempDir()
	writeExecutable(t, filepath.Join(root, "init", "run"), "#!/bin/sh\nexit 0\n")

	tbl := service.NewTable()
	order := service.NewOrder()
	def := service.Definition{Name: "init", RunPath: filepath.Join(root, "init", "run"), Sync: true, UID: uint32(os.Getuid()), GID: uint32(os.Getgid())}
	svc, err := tbl.Allocate(def)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	order.Insert(svc.Index, -1)

	var flag sigctx.Flag
	sup := New(Config{ServicesRoot: root, LogPrefixWidth: 12}, tbl, order, outlog.NewStreams(), clog.New("test", false), &flag)

	done := make(chan error, 1)
	go func() { done <- sup.StartServices() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("StartServices: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("StartServices did not return for a sync service")
	}

	if !svc.Completed {
		t.Error("expected the sync service to be marked Completed")
	}
	if svc.PID != 0 {
		t.Errorf("expected PID to be cleared after sync completion, got %d", svc.PID)
	}
}

func TestStartServicesFailsWhenMinRunningTimeNotMet(t *testing.T) {
	root := t.TempDir()
	writeExecutable(t, filepath.Join(root, "flaky", "run"), "#!/bin/sh\nexit 1\n")

	tbl := service.NewTable()
	order := service.NewOrder()
	def := service.Definition{
		Name:           "flaky",
		RunPath:        filepath.Join(root, "flaky", "run"),
		MinRunningTime: 2 * time.Second,
		UID:            uint32(os.Getuid()),
		GID:            uint32(os.Getgid()),
	}
	svc, err := tbl.Allocate(def)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	order.Insert(svc.Index, -1)

	var flag sigctx.Flag
	sup := New(Config{ServicesRoot: root, LogPrefixWidth: 12}, tbl, order, outlog.NewStreams(), clog.New("test", false), &flag)

	if err := sup.StartServices(); err == nil {
		t.Error("expected an error when a service exits before its minimum running time")
	}
}

func TestStartServicesContinuesPastIgnoreFailureService(t *testing.T) {
	root := t.TempDir()
	writeExecutable(t, filepath.Join(root, "bad", "run"), "#!/bin/sh\nexit 1\n")

	tbl := service.NewTable()
	order := service.NewOrder()
	def := service.Definition{
		Name:           "bad",
		RunPath:        filepath.Join(root, "bad", "run"),
		MinRunningTime: 2 * time.Second,
		IgnoreFailure:  true,
		UID:            uint32(os.Getuid()),
		GID:            uint32(os.Getgid()),
	}
	svc, err := tbl.Allocate(def)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	order.Insert(svc.Index, -1)

	var flag sigctx.Flag
	sup := New(Config{ServicesRoot: root, LogPrefixWidth: 12}, tbl, order, outlog.NewStreams(), clog.New("test", false), &flag)

	if err := sup.StartServices(); err != nil {
		t.Errorf("expected StartServices to tolerate an ignore_failure service, got %v", err)
	}
}
