package service

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRun(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "run"), []byte("#!/bin/sh\nexec \"$@\"\n"), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLoadDefaultLoadsDependenciesBeforeDependent(t *testing.T) {
	root := t.TempDir()

	dbDir := filepath.Join(root, "db")
	webDir := filepath.Join(root, "default")
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.MkdirAll(webDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	writeRun(t, dbDir)
	writeRun(t, webDir)
	if err := os.WriteFile(filepath.Join(webDir, "db.dep"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loader := NewLoader(root, Defaults{UID: 1000, GID: 1000})
	tbl, order, err := loader.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}

	names := make([]string, 0, 2)
	for _, idx := range order.Indices() {
		names = append(names, tbl.At(idx).Name)
	}
	if len(names) != 2 || names[0] != "db" || names[1] != "default" {
		t.Fatalf("start order = %v, want [db default]", names)
	}
}

func TestLoadOneParsesMultiLineParams(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "default")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	writeRun(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "params"), []byte("--foo\n--bar\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "environment"), []byte("A=1\nB=2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loader := NewLoader(root, Defaults{})
	tbl, _, err := loader.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}

	svc := tbl.FindByName("default")
	if svc == nil {
		t.Fatal("expected a default service to be loaded")
	}
	if len(svc.Params) != 2 || svc.Params[0] != "--foo" || svc.Params[1] != "--bar" {
		t.Errorf("Params = %v, want [--foo --bar]", svc.Params)
	}
	if len(svc.Environment) != 2 || svc.Environment[0] != "A=1" || svc.Environment[1] != "B=2" {
		t.Errorf("Environment = %v, want [A=1 B=2]", svc.Environment)
	}
}

func TestLoadOneRejectsRespawnAndSyncTogether(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "default")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	writeRun(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "respawn"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sync"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loader := NewLoader(root, Defaults{})
	if _, _, err := loader.LoadDefault(); err == nil {
		t.Error("expected an error when respawn and sync are both set")
	}
}

func TestLoadOneMarksGroupWhenNoRunFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "default")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	loader := NewLoader(root, Defaults{})
	tbl, _, err := loader.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}

	svc := tbl.FindByName("default")
	if svc == nil || !svc.IsGroup {
		t.Errorf("expected default to be loaded as a group, got %+v", svc)
	}
}
