// Package cli parses the cinit command line, matching the flag surface of
// the original parse_args/long_options table. It deliberately stays on the
// standard library's flag package: a PID-1 binary must finish parsing its
// arguments in the first milliseconds of container boot, and this is the
// one ambient concern scoped out of the CLI surface (see SPEC_FULL §4.9).
package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jlesage/cinit/internal/service"
	"github.com/jlesage/cinit/internal/valuefile"
)

// Options mirrors context_t's CLI-configurable fields.
type Options struct {
	Debug             bool
	ProgName          string
	ServicesRoot      string
	ServicesGraceTime uint32 // milliseconds
	DefaultUID        uint32
	DefaultGID        uint32
	DefaultSGIDs      []uint32
	DefaultUmask      uint32
	NotifyReady       bool
}

// Parse parses args (excluding argv[0]) into Options, applying the same
// defaults as context_t's initial values.
func Parse(progName string, args []string) (Options, error) {
	opts := Options{
		ProgName:          progName,
		ServicesRoot:      "/etc/services.d",
		ServicesGraceTime: 5000,
		DefaultUID:        service.DefaultUID,
		DefaultGID:        service.DefaultGID,
		DefaultUmask:      service.DefaultUmask,
	}

	var uid, gid, sgids, umask string
	var grace uint

	fs := flag.NewFlagSet(progName, flag.ContinueOnError)
	fs.Usage = func() { Usage(progName) }
	bindBool := func(name, short string, p *bool, usage string) {
		fs.BoolVar(p, name, *p, usage)
		fs.BoolVar(p, short, *p, usage+" (shorthand)")
	}
	bindString := func(name, short string, p *string, usage string) {
		fs.StringVar(p, name, *p, usage)
		fs.StringVar(p, short, *p, usage+" (shorthand)")
	}

	bindBool("debug", "d", &opts.Debug, "enable debug logging")
	bindString("progname", "p", &opts.ProgName, "program name used in log prefixes")
	bindString("root-directory", "r", &opts.ServicesRoot, "root directory of service definitions")
	fs.UintVar(&grace, "services-gracetime", uint(opts.ServicesGraceTime), "milliseconds allowed for graceful termination")
	fs.UintVar(&grace, "g", uint(opts.ServicesGraceTime), "gracetime (shorthand)")
	bindString("default-service-uid", "u", &uid, "default UID for services")
	bindString("default-service-gid", "i", &gid, "default GID for services")
	bindString("default-service-sgid-list", "s", &sgids, "comma-separated default supplementary GIDs")
	bindString("default-service-umask", "m", &umask, "default umask for services (octal)")
	fs.BoolVar(&opts.NotifyReady, "notify-ready", false, "send sd_notify(READY=1) once all services are ready")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	if fs.NArg() > 0 {
		return Options{}, fmt.Errorf("unexpected argument: %q", fs.Arg(0))
	}

	opts.ServicesGraceTime = uint32(grace)

	if !strings.HasPrefix(opts.ServicesRoot, "/") {
		return Options{}, fmt.Errorf("root directory path must be absolute")
	}

	if uid != "" {
		parsed, err := valuefile.ParseUID(uid)
		if err != nil {
			return Options{}, fmt.Errorf("invalid default service UID %q: %w", uid, err)
		}
		opts.DefaultUID = parsed
	}
	if gid != "" {
		parsed, err := valuefile.ParseGID(gid)
		if err != nil {
			return Options{}, fmt.Errorf("invalid default service GID %q: %w", gid, err)
		}
		opts.DefaultGID = parsed
	}
	if sgids != "" {
		for _, tok := range strings.Split(sgids, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			g, err := valuefile.ParseGID(tok)
			if err != nil {
				return Options{}, fmt.Errorf("invalid default service supplementary group %q: %w", tok, err)
			}
			opts.DefaultSGIDs = append(opts.DefaultSGIDs, g)
		}
	}
	if umask != "" {
		var parsed uint64
		if _, err := fmt.Sscanf(umask, "%o", &parsed); err != nil {
			return Options{}, fmt.Errorf("invalid default service umask %q", umask)
		}
		opts.DefaultUmask = uint32(parsed)
	}

	return opts, nil
}

// ProgramName extracts the basename of argv[0], matching main()'s
// strrchr(argv[0], '/') fallback.
func ProgramName(argv0 string) string {
	if i := strings.LastIndexByte(argv0, '/'); i >= 0 {
		return argv0[i+1:]
	}
	return argv0
}

// Usage prints the help text, matching the original's usage().
func Usage(progName string) {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n", progName)
	fmt.Fprintln(os.Stderr, `
  -d, --debug                           enable debug logging
  -p, --progname NAME                   program name used in log prefixes
  -r, --root-directory DIR              root directory of service definitions
  -g, --services-gracetime MSEC         milliseconds allowed for graceful termination
  -u, --default-service-uid UID         default UID for services
  -i, --default-service-gid GID         default GID for services
  -s, --default-service-sgid-list LIST  comma-separated default supplementary GIDs
  -m, --default-service-umask MODE      default umask for services (octal)
      --notify-ready                    send sd_notify(READY=1) once ready
  -h, --help                             show this help`)
}
