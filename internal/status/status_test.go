package status

import (
	"strings"
	"testing"

	"github.com/jlesage/cinit/internal/service"
)

func TestCollectReportsDownServiceWithoutPID(t *testing.T) {
	tbl := service.NewTable()
	if _, err := tbl.Allocate(service.Definition{Name: "web"}); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	entries := Collect(tbl)
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Running {
		t.Errorf("expected web to be reported as not running")
	}
	if entries[0].Name != "web" {
		t.Errorf("Name = %q, want %q", entries[0].Name, "web")
	}
}

func TestCollectSkipsGroups(t *testing.T) {
	tbl := service.NewTable()
	if _, err := tbl.Allocate(service.Definition{Name: "group", IsGroup: true}); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	if entries := Collect(tbl); len(entries) != 0 {
		t.Errorf("expected groups to be skipped, got %d entries", len(entries))
	}
}

func TestFormatIncludesHeaderAndServiceName(t *testing.T) {
	out := Format([]Entry{{Name: "web", PID: 42, Running: true}})
	if !strings.Contains(out, "SERVICE") {
		t.Error("expected a header row")
	}
	if !strings.Contains(out, "web") {
		t.Error("expected the service name in the output")
	}
}
