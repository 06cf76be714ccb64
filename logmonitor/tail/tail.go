// Package tail follows monitored log files, replacing logmonitor.c's
// hand-rolled tail_read/full_read/reopen-on-inode-change loop with
// github.com/hpcloud/tail for regular files. Status files (the "s:"-
// prefixed monitored-file form) are polled from the beginning on a fixed
// interval instead, matching STATUS_FILE_READ_INTERVAL.
package tail

import (
	"bufio"
	"context"
	"os"
	"time"

	hpctail "github.com/hpcloud/tail"

	"github.com/jlesage/cinit/logmonitor/config"
)

// StatusPollInterval matches STATUS_FILE_READ_INTERVAL.
const StatusPollInterval = 5 * time.Second

// Follow streams every new line from mf to lines until ctx is cancelled.
// Tailing errors (a file that hasn't appeared yet, or disappears) are
// logged through onError and do not stop the watch — the original
// tolerates a monitored file being absent or inaccessible and keeps
// retrying on the next pass.
func Follow(ctx context.Context, mf config.MonitoredFile, lines chan<- string, onError func(error)) {
	if mf.IsStatus {
		followStatus(ctx, mf.Path, lines, onError)
		return
	}
	followRegular(ctx, mf.Path, lines, onError)
}

func followRegular(ctx context.Context, path string, lines chan<- string, onError func(error)) {
	t, err := hpctail.TailFile(path, hpctail.Config{
		ReOpen:    true,
		MustExist: false,
		Follow:    true,
		Location:  &hpctail.SeekInfo{Whence: 2}, // start at end of file, like the original's initial lseek(SEEK_END)
		Logger:    hpctail.DiscardingLogger,
	})
	if err != nil {
		onError(err)
		return
	}
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-t.Lines:
			if !ok {
				return
			}
			if line.Err != nil {
				onError(line.Err)
				continue
			}
			lines <- line.Text
		}
	}
}

func followStatus(ctx context.Context, path string, lines chan<- string, onError func(error)) {
	ticker := time.NewTicker(StatusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			readWholeFile(path, lines, onError)
		}
	}
}

func readWholeFile(path string, lines chan<- string, onError func(error)) {
	f, err := os.Open(path)
	if err != nil {
		onError(err)
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines <- sc.Text()
	}
	if err := sc.Err(); err != nil {
		onError(err)
	}
}
