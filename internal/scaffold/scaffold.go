// Package scaffold renders a new service directory from a small set of
// text/template-driven stubs. Grounded on the teacher's systemd/template.go,
// which renders a single structured unit file from a Go struct via
// text/template plus a custom FuncMap; this generalizes the same idiom to
// "render a directory's worth of executable stubs and value files" instead
// of "render one file".
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Spec describes the service directory to render. An empty Depends
// produces no .dep file; Respawn must be set explicitly by the caller
// (the zero value renders a sync service, matching cinit's own
// respawn-XOR-sync default of treating an unspecified service as
// run-once unless told otherwise).
type Spec struct {
	Name     string
	Respawn  bool
	Depends  []string
	UID      int
	GID      int
	Priority int
}

var funcMaps = template.FuncMap{
	"join": strings.Join,
}

const runTemplate = `#!/bin/sh
# Service: {{ .Name }}
exec "$@"
`

const finishTemplate = `#!/bin/sh
# finish hook for {{ .Name }}: $1 is the exit code/signal status.
exit 0
`

const isReadyTemplate = `#!/bin/sh
# is_ready probe for {{ .Name }}: exit 0 once the service is ready to serve.
exit 0
`

var (
	runTmpl      = template.Must(template.New("run").Funcs(funcMaps).Parse(runTemplate))
	finishTmpl   = template.Must(template.New("finish").Funcs(funcMaps).Parse(finishTemplate))
	isReadyTmpl  = template.Must(template.New("is_ready").Funcs(funcMaps).Parse(isReadyTemplate))
)

// Generate renders Spec into a new subdirectory of root named spec.Name,
// writing run/finish/is_ready stubs plus one <dep>.dep marker file per
// dependency and, when spec.Respawn is false, a touch-disabled respawn
// opt-out is left implicit (respawn's absence is the default already).
func Generate(root string, spec Spec) error {
	if spec.Name == "" {
		return fmt.Errorf("scaffold: service name must not be empty")
	}

	dir := filepath.Join(root, spec.Name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return fmt.Errorf("scaffold: %w", err)
	}

	if err := renderExecutable(dir, "run", runTmpl, spec); err != nil {
		return err
	}
	if err := renderExecutable(dir, "finish", finishTmpl, spec); err != nil {
		return err
	}
	if err := renderExecutable(dir, "is_ready", isReadyTmpl, spec); err != nil {
		return err
	}

	if spec.UID != 0 {
		if err := writeValue(dir, "uid", fmt.Sprintf("%d\n", spec.UID)); err != nil {
			return err
		}
	}
	if spec.GID != 0 {
		if err := writeValue(dir, "gid", fmt.Sprintf("%d\n", spec.GID)); err != nil {
			return err
		}
	}
	if spec.Priority != 0 {
		if err := writeValue(dir, "priority", fmt.Sprintf("%d\n", spec.Priority)); err != nil {
			return err
		}
	}
	if !spec.Respawn {
		if err := writeValue(dir, "sync", ""); err != nil {
			return err
		}
	}

	for _, dep := range spec.Depends {
		if dep == "" {
			continue
		}
		depFile := filepath.Join(dir, dep+".dep")
		if err := os.WriteFile(depFile, nil, 0o644); err != nil {
			return fmt.Errorf("scaffold: writing dependency marker for %q: %w", dep, err)
		}
	}

	return nil
}

func renderExecutable(dir, name string, tmpl *template.Template, spec Spec) error {
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("scaffold: creating %s: %w", name, err)
	}
	defer f.Close()
	if err := tmpl.Execute(f, spec); err != nil {
		return fmt.Errorf("scaffold: rendering %s: %w", name, err)
	}
	return nil
}

func writeValue(dir, name, contents string) error {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return fmt.Errorf("scaffold: writing %s: %w", name, err)
	}
	return nil
}
