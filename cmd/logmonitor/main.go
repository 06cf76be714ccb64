// Command logmonitor watches a set of log files and notifies configured
// targets when a line matches a notification's filter. It is a sibling
// program to cinit, sharing only the services-directory-tree configuration
// idiom, not any runtime state.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"github.com/jlesage/cinit/internal/clog"
	"github.com/jlesage/cinit/logmonitor/config"
	"github.com/jlesage/cinit/logmonitor/filter"
	"github.com/jlesage/cinit/logmonitor/tail"
	"github.com/jlesage/cinit/logmonitor/target"
)

const defaultConfigDir = "/etc/logmonitor"

func main() {
	var configDir string
	var debug bool

	fs := flag.NewFlagSet("logmonitor", flag.ContinueOnError)
	fs.Usage = usage
	fs.StringVar(&configDir, "configdir", defaultConfigDir, "directory where configuration is stored")
	fs.StringVar(&configDir, "c", defaultConfigDir, "configdir (shorthand)")
	fs.BoolVar(&debug, "debug", false, "enable debug logging")
	fs.BoolVar(&debug, "d", false, "debug (shorthand)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	fileArgs := fs.Args()
	log := clog.New("logmonitor", debug)

	cfg, err := config.Load(configDir, fileArgs)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		cancel()
	}()

	run(ctx, cfg, log)
}

func run(ctx context.Context, cfg *config.Config, log hclog.Logger) {
	lines := make(chan string, 64)
	dispatcher := target.NewDispatcher()

	for _, mf := range cfg.MonitoredFiles {
		mf := mf
		go tail.Follow(ctx, mf, lines, func(err error) {
			log.Debug("tail error", "file", mf.Path, "error", err)
		})
	}

	watchConfigRoot(ctx, cfg.ConfigDir, log)

	for {
		select {
		case <-ctx.Done():
			return
		case line := <-lines:
			handleLine(cfg, dispatcher, line, log)
		}
	}
}

// handleLine runs line through every configured notification's filter and
// dispatches to targets on a match, matching handle_line.
func handleLine(cfg *config.Config, dispatcher *target.Dispatcher, line string, log hclog.Logger) {
	for _, notif := range cfg.Notifications {
		matched, err := filter.Matches(notif.Filter, line)
		if err != nil {
			log.Debug("filter invocation failed", "notification", notif.Name, "error", err)
			continue
		}
		if !matched {
			continue
		}
		log.Debug("notification matched", "notification", notif.Name)
		dispatcher.Send(cfg.Targets, notif)
	}
}

// watchConfigRoot watches for new notifications.d/targets.d subdirectories
// added after startup, purely as an informational log: existing
// notifications/targets are never hot-reloaded, matching the Non-goal of
// no runtime reconfiguration for already-loaded entries.
func watchConfigRoot(ctx context.Context, configDir string, log hclog.Logger) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Debug("config root watch disabled", "error", err)
		return
	}

	for _, sub := range []string{"notifications.d", "targets.d"} {
		if err := watcher.Add(configDir + "/" + sub); err != nil {
			log.Debug("failed to watch config subdirectory", "dir", sub, "error", err)
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&fsnotify.Create != 0 {
					log.Info("new configuration entry detected, restart logmonitor to pick it up", "path", ev.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Debug("config root watch error", "error", err)
			}
		}
	}()
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: logmonitor [OPTIONS...] FILE [FILE...]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Arguments:")
	fmt.Fprintln(os.Stderr, "  FILE                    Path to the file(s) to be monitored. Prefix")
	fmt.Fprintln(os.Stderr, "                          with 's:' for status files.")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintf(os.Stderr, "  -c, --configdir DIR     Directory where configuration is stored (default: %s).\n", defaultConfigDir)
	fmt.Fprintln(os.Stderr, "  -d, --debug             Enable debug logging.")
	fmt.Fprintln(os.Stderr, "  -h, --help              Display this help and exit.")
}
