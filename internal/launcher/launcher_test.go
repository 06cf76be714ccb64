package launcher

import (
	"bufio"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/jlesage/cinit/internal/service"
)

func writeScript(t *testing.T, contents string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "run-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.WriteString(contents); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	f.Close()
	if err := os.Chmod(f.Name(), 0o755); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	return f.Name()
}

func readLine(t *testing.T, f *os.File) string {
	t.Helper()
	f.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	return line
}

func TestLaunchCapturesStdoutOnItsOwnPty(t *testing.T) {
	run := writeScript(t, "#!/bin/sh\necho hello-stdout\n")
	def := &service.Definition{Name: "test", RunPath: run, UID: uint32(os.Getuid()), GID: uint32(os.Getgid())}

	res, err := Launch(def)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer res.StdoutMaster.Close()
	defer res.StderrMaster.Close()

	line := readLine(t, res.StdoutMaster)
	if line != "hello-stdout\r\n" && line != "hello-stdout\n" {
		t.Errorf("unexpected stdout line: %q", line)
	}

	var ws syscall.WaitStatus
	if _, err := syscall.Wait4(res.PID, &ws, 0, nil); err != nil {
		t.Fatalf("Wait4: %v", err)
	}
}

func TestLaunchPassesParamsAndEnvironment(t *testing.T) {
	run := writeScript(t, "#!/bin/sh\necho \"$1:$TEST_VAR\"\n")
	def := &service.Definition{
		Name:        "test",
		RunPath:     run,
		UID:         uint32(os.Getuid()),
		GID:         uint32(os.Getgid()),
		Params:      []string{"arg1"},
		Environment: []string{"TEST_VAR=set"},
	}

	res, err := Launch(def)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer res.StdoutMaster.Close()
	defer res.StderrMaster.Close()

	line := readLine(t, res.StdoutMaster)
	want := "arg1:set"
	if line != want+"\r\n" && line != want+"\n" {
		t.Errorf("unexpected stdout line: %q, want %q", line, want)
	}

	var ws syscall.WaitStatus
	syscall.Wait4(res.PID, &ws, 0, nil)
}

func TestLaunchRejectsNonExecutableRunFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "run-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	f.Close()

	def := &service.Definition{Name: "test", RunPath: f.Name(), UID: uint32(os.Getuid()), GID: uint32(os.Getgid())}
	if _, err := Launch(def); err == nil {
		t.Error("expected an error launching a non-executable run file")
	}
}
