package service

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jlesage/cinit/internal/valuefile"
)

// envNameRe validates a KEY in a KEY=VALUE environment assignment, matching
// load_service's digit/alnum/underscore checks.
var envNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Defaults carries the context-level default uid/gid/sgid/umask applied to
// every service that does not override them (context_t.default_srv_*).
type Defaults struct {
	UID, GID uint32
	SGIDs    []uint32
	Umask    uint32
}

// Loader reads a services root directory into Definitions, following
// .dep-declared dependencies recursively, exactly as load_service_with_deps
// does starting from "default".
type Loader struct {
	Root     string
	Defaults Defaults

	table   *Table
	order   *Order
	visited map[string]int // name -> table index, for cycle/already-loaded detection
}

// NewLoader returns a Loader rooted at root.
func NewLoader(root string, defaults Defaults) *Loader {
	return &Loader{
		Root:     root,
		Defaults: defaults,
		table:    NewTable(),
		order:    NewOrder(),
		visited:  map[string]int{},
	}
}

// LoadDefault loads the "default" service (and transitively everything it
// depends on), mirroring the program's load_service_with_deps("default", -1)
// entry point.
func (l *Loader) LoadDefault() (*Table, *Order, error) {
	if _, err := l.loadWithDeps("default", -1); err != nil {
		return nil, nil, err
	}
	return l.table, l.order, nil
}

// LoadAll scans every entry directly under root and loads each one,
// matching the LOAD_ALL_DEFINED_SERVICES alternate mode.
func (l *Loader) LoadAll() (*Table, *Order, error) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("service: read services root %s: %w", l.Root, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := l.loadWithDeps(name, -1); err != nil {
			return nil, nil, err
		}
	}
	return l.table, l.order, nil
}

// loadWithDeps loads service, then every service it depends on (from
// .dep files in its directory), inserting each into the start order
// before "dependent" (the table index of the service that required it,
// or -1 for the top-level entry point).
func (l *Loader) loadWithDeps(name string, dependent int) (int, error) {
	if idx, ok := l.visited[name]; ok {
		return idx, nil
	}

	idx, def, err := l.loadOne(name)
	if err != nil {
		return -1, err
	}
	l.visited[name] = idx
	l.order.Insert(idx, dependent)

	dir := filepath.Join(l.Root, name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return -1, fmt.Errorf("service: could not load %q: could not read service directory: %w", name, err)
	}
	var depNames []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".dep") {
			depNames = append(depNames, strings.TrimSuffix(e.Name(), ".dep"))
		}
	}
	sort.Strings(depNames)
	if svc := l.table.At(idx); svc != nil {
		svc.Depends = depNames
	}
	for _, dep := range depNames {
		if _, err := l.loadWithDeps(dep, idx); err != nil {
			return -1, fmt.Errorf("service: could not load dependency %q of %q: %w", dep, name, err)
		}
	}

	_ = def
	return idx, nil
}

// loadOne reads a single service directory into a Definition and allocates
// it in the table, mirroring load_service (minus dependency handling,
// which loadWithDeps drives).
func (l *Loader) loadOne(name string) (int, Definition, error) {
	if len(name) == 0 {
		return -1, Definition{}, fmt.Errorf("service: empty service name")
	}
	if len(name) > 255 {
		return -1, Definition{}, fmt.Errorf("service: name %q too long", name)
	}

	dir := filepath.Join(l.Root, name)
	if _, err := os.Stat(dir); err != nil {
		return -1, Definition{}, fmt.Errorf("service: could not access service directory %q: %w", name, err)
	}

	def := Definition{
		Name:           name,
		UID:            l.Defaults.UID,
		GID:            l.Defaults.GID,
		SGIDs:          append([]uint32(nil), l.Defaults.SGIDs...),
		Umask:          l.Defaults.Umask,
		ReadyTimeout:   DefaultReadyTimeout,
		MinRunningTime: DefaultMinRunningTime,
	}

	runPath := filepath.Join(dir, "run")
	if _, err := os.Stat(runPath); err != nil {
		def.IsGroup = true
	}

	disabled, err := valuefile.Bool(filepath.Join(dir, "disabled"), false)
	if err != nil {
		return -1, Definition{}, fmt.Errorf("service: %q: %w", name, err)
	}
	def.Disabled = disabled

	if def.IsGroup || def.Disabled {
		svc, err := l.table.Allocate(def)
		if err != nil {
			return -1, Definition{}, err
		}
		return svc.Index, def, nil
	}

	info, err := os.Stat(runPath)
	if err != nil || info.Mode()&0o111 == 0 {
		return -1, Definition{}, fmt.Errorf("service: %q: run file not executable", name)
	}
	abs, err := filepath.Abs(runPath)
	if err != nil {
		return -1, Definition{}, fmt.Errorf("service: %q: could not resolve run path: %w", name, err)
	}
	def.RunPath = abs

	if params, err := loadLines(filepath.Join(dir, "params")); err != nil {
		return -1, Definition{}, fmt.Errorf("service: %q: params: %w", name, err)
	} else {
		if len(params) > 32 {
			return -1, Definition{}, fmt.Errorf("service: %q: too many parameters", name)
		}
		def.Params = params
	}

	if env, err := loadLines(filepath.Join(dir, "environment")); err != nil {
		return -1, Definition{}, fmt.Errorf("service: %q: environment: %w", name, err)
	} else {
		if len(env) > 32 {
			return -1, Definition{}, fmt.Errorf("service: %q: too many environment variables", name)
		}
		for _, kv := range env {
			eq := strings.IndexByte(kv, '=')
			if eq < 0 {
				return -1, Definition{}, fmt.Errorf("service: %q: invalid environment variable format %q", name, kv)
			}
			if !envNameRe.MatchString(kv[:eq]) {
				return -1, Definition{}, fmt.Errorf("service: %q: invalid environment variable name %q", name, kv[:eq])
			}
		}
		def.Environment = env
	}

	if v, err := valuefile.UID(filepath.Join(dir, "uid"), def.UID); err != nil {
		return -1, Definition{}, fmt.Errorf("service: %q: uid: %w", name, err)
	} else {
		def.UID = v
	}
	if v, err := valuefile.GID(filepath.Join(dir, "gid"), def.GID); err != nil {
		return -1, Definition{}, fmt.Errorf("service: %q: gid: %w", name, err)
	} else {
		def.GID = v
	}

	if sgidLines, err := loadLines(filepath.Join(dir, "sgid")); err != nil {
		return -1, Definition{}, fmt.Errorf("service: %q: sgid: %w", name, err)
	} else if len(sgidLines) > 0 {
		if len(sgidLines) > 32 {
			return -1, Definition{}, fmt.Errorf("service: %q: too many supplementary groups", name)
		}
		sgids := make([]uint32, 0, len(sgidLines))
		for _, line := range sgidLines {
			g, err := valuefile.ParseGID(line)
			if err != nil {
				return -1, Definition{}, fmt.Errorf("service: %q: sgid: %w", name, err)
			}
			sgids = append(sgids, g)
		}
		def.SGIDs = sgids
	}

	if v, err := valuefile.Mode(filepath.Join(dir, "umask"), def.Umask); err != nil {
		return -1, Definition{}, fmt.Errorf("service: %q: umask: %w", name, err)
	} else {
		def.Umask = v
	}
	if v, err := valuefile.Int(filepath.Join(dir, "priority"), DefaultPriority); err != nil {
		return -1, Definition{}, fmt.Errorf("service: %q: priority: %w", name, err)
	} else {
		def.Priority = v
	}
	if v, err := valuefile.String(filepath.Join(dir, "workdir"), ""); err != nil {
		return -1, Definition{}, fmt.Errorf("service: %q: workdir: %w", name, err)
	} else {
		def.WorkingDir = v
	}

	if v, err := valuefile.Bool(filepath.Join(dir, "respawn"), false); err != nil {
		return -1, Definition{}, fmt.Errorf("service: %q: respawn: %w", name, err)
	} else {
		def.Respawn = v
	}
	if v, err := valuefile.Bool(filepath.Join(dir, "sync"), false); err != nil {
		return -1, Definition{}, fmt.Errorf("service: %q: sync: %w", name, err)
	} else {
		def.Sync = v
	}
	if v, err := valuefile.Bool(filepath.Join(dir, "ignore_failure"), false); err != nil {
		return -1, Definition{}, fmt.Errorf("service: %q: ignore_failure: %w", name, err)
	} else {
		def.IgnoreFailure = v
	}
	if v, err := valuefile.Bool(filepath.Join(dir, "shutdown_on_terminate"), false); err != nil {
		return -1, Definition{}, fmt.Errorf("service: %q: shutdown_on_terminate: %w", name, err)
	} else {
		def.ShutdownOnTerminate = v
	}
	if v, err := valuefile.Interval(filepath.Join(dir, "min_running_time"), DefaultMinRunningTime); err != nil {
		return -1, Definition{}, fmt.Errorf("service: %q: min_running_time: %w", name, err)
	} else {
		def.MinRunningTime = v
	}
	if v, err := valuefile.Interval(filepath.Join(dir, "ready_timeout"), DefaultReadyTimeout); err != nil {
		return -1, Definition{}, fmt.Errorf("service: %q: ready_timeout: %w", name, err)
	} else {
		def.ReadyTimeout = v
	}

	intervalPath := filepath.Join(dir, "interval")
	if raw, ok, err := valuefile.Resolve(intervalPath); err != nil {
		return -1, Definition{}, fmt.Errorf("service: %q: interval: %w", name, err)
	} else if ok {
		if d, cronErr := tryParseCronInterval(raw); cronErr == nil {
			def.IntervalCron = raw
			def.Interval = d
		} else if d, err := valuefile.ParseInterval(raw); err == nil {
			def.Interval = d
		} else {
			return -1, Definition{}, fmt.Errorf("service: %q: invalid interval %q", name, raw)
		}
	}

	if def.Respawn && def.Sync {
		return -1, Definition{}, fmt.Errorf("service: %q: 'respawn' and 'sync' flags are exclusive", name)
	}
	if def.Respawn && def.Interval > 0 {
		return -1, Definition{}, fmt.Errorf("service: %q: interval cannot be used with respawned service", name)
	}

	svc, err := l.table.Allocate(def)
	if err != nil {
		return -1, Definition{}, fmt.Errorf("service: %q: %w", name, err)
	}
	return svc.Index, def, nil
}

// loadLines reads a newline-delimited list value file (params,
// environment, sgid), trimming CR bytes and blank lines the way
// load_service's remove_all_char('\r') + split(..., '\n') do.
func loadLines(path string) ([]string, error) {
	raw, ok, err := valuefile.ResolveFull(path)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}
	raw = strings.ReplaceAll(raw, "\r", "")
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}
