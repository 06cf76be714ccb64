// Package status reports point-in-time process metrics for the live
// service table, backing the "cinit status" subcommand. It is read-only:
// it never mutates a service.Runtime field, so it carries none of the
// single-writer obligations the supervisor package otherwise enforces.
package status

import (
	"fmt"
	"os"
	"sort"

	"github.com/shirou/gopsutil/process"

	"github.com/jlesage/cinit/internal/service"
)

// DefaultSnapshotPath is where the supervisor periodically writes its
// rendered status table and where "cinit status" reads it from by default.
// A PID-1 process has no other client listening on a socket to query, so
// the snapshot file is the simplest faithful stand-in for a live query.
const DefaultSnapshotPath = "/var/run/cinit.status"

// Entry is one service's reported status line.
type Entry struct {
	Name    string
	PID     int
	Running bool

	// CPUPercent, RSS and Nice are zero when Running is false or the
	// underlying process could not be inspected (it may have exited
	// between the reap loop's last pass and this report).
	CPUPercent float64
	RSS        uint64
	Nice       int32
}

// Collect reports one Entry per non-group service in table (groups are
// skipped), sorted by name so
// output is stable across runs. Services with no pid are reported as not
// running rather than omitted, so a down respawn service is still visible.
func Collect(tbl *service.Table) []Entry {
	svcs := tbl.All()
	entries := make([]Entry, 0, len(svcs))

	for _, svc := range svcs {
		if svc.IsGroup {
			continue
		}
		e := Entry{Name: svc.Name, PID: svc.PID, Running: svc.PID > 0}
		if e.Running {
			if err := fillProcessInfo(&e); err != nil {
				e.Running = false
			}
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

func fillProcessInfo(e *Entry) error {
	proc, err := process.NewProcess(int32(e.PID))
	if err != nil {
		return err
	}
	if pct, err := proc.CPUPercent(); err == nil {
		e.CPUPercent = pct
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		e.RSS = mem.RSS
	}
	if nice, err := proc.Nice(); err == nil {
		e.Nice = nice
	}
	return nil
}

// Format renders entries as the fixed-width table printed by "cinit status".
func Format(entries []Entry) string {
	out := fmt.Sprintf("%-20s %-8s %-8s %10s %10s %6s\n", "SERVICE", "PID", "STATE", "CPU%", "RSS", "NICE")
	for _, e := range entries {
		state := "down"
		if e.Running {
			state = "up"
		}
		out += fmt.Sprintf("%-20s %-8d %-8s %10.1f %10d %6d\n", e.Name, e.PID, state, e.CPUPercent, e.RSS, e.Nice)
	}
	return out
}

// WriteSnapshot renders entries and writes them to path, replacing any
// prior snapshot atomically (write-to-temp-then-rename) so a concurrent
// reader never observes a half-written file.
func WriteSnapshot(path string, entries []Entry) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(Format(entries)), 0o644); err != nil {
		return fmt.Errorf("status: writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("status: replacing snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot reads back a snapshot previously written by WriteSnapshot.
func ReadSnapshot(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("status: reading snapshot: %w", err)
	}
	return string(data), nil
}
