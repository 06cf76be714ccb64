// Command cinit is a minimal PID-1 process supervisor for containers: it
// loads a declarative set of services, starts them in dependency order,
// aggregates their output, supervises respawn/interval policy, and drives
// an orderly shutdown on SIGINT/SIGTERM or service failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jlesage/cinit/internal/cli"
	"github.com/jlesage/cinit/internal/clog"
	"github.com/jlesage/cinit/internal/outlog"
	"github.com/jlesage/cinit/internal/service"
	"github.com/jlesage/cinit/internal/sigctx"
	"github.com/jlesage/cinit/internal/status"
	"github.com/jlesage/cinit/internal/supervisor"
)

func main() {
	progName := cli.ProgramName(os.Args[0])

	if len(os.Args) > 1 && os.Args[1] == "status" {
		runStatus()
		return
	}

	opts, err := cli.Parse(progName, os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := clog.New(opts.ProgName, opts.Debug)

	if err := os.Chdir(opts.ServicesRoot); err != nil {
		logger.Error("root directory not found", "root", opts.ServicesRoot, "error", err)
		os.Exit(1)
	}

	fatalCtx, fatal := context.WithCancel(context.Background())
	_, shut, stop := sigctx.Context(fatalCtx)
	defer stop()

	loader := service.NewLoader(opts.ServicesRoot, service.Defaults{
		UID:   opts.DefaultUID,
		GID:   opts.DefaultGID,
		SGIDs: opts.DefaultSGIDs,
		Umask: opts.DefaultUmask,
	})

	logger.Info("loading services")
	table, order, err := loader.LoadDefault()
	exitStatus := 0
	if err != nil {
		logger.Error("failed to load services", "error", err)
		exitStatus = 1
		shut.Set()
		fatal()
		table, order = service.NewTable(), service.NewOrder()
	} else {
		logger.Info("all services loaded")
	}

	defs := make([]service.Definition, 0)
	for _, svc := range table.All() {
		defs = append(defs, svc.Definition)
	}

	sup := supervisor.New(supervisor.Config{
		ServicesRoot:   opts.ServicesRoot,
		GraceTime:      time.Duration(opts.ServicesGraceTime) * time.Millisecond,
		Debug:          opts.Debug,
		NotifyReady:    opts.NotifyReady,
		LogPrefixWidth: service.LogPrefixLength(opts.ProgName, defs),
		StatusFile:     status.DefaultSnapshotPath,
	}, table, order, outlog.NewStreams(), logger, shut)

	if err == nil {
		logger.Info("starting services")
		if err := sup.StartServices(); err != nil {
			logger.Error(err.Error())
			exitStatus = 1
			shut.Set()
			fatal()
		} else {
			logger.Info("all services started")
		}
	}

	sup.ExitCode = exitStatus
	sup.Run()
}

// runStatus implements "cinit status": it has no connection to a running
// instance, so it simply reads back the snapshot the running supervisor
// writes once per tick (see supervisor.Config.StatusFile).
func runStatus() {
	snapshot, err := status.ReadSnapshot(status.DefaultSnapshotPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Print(snapshot)
}
