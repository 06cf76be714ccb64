// Package target delivers firing notifications to configured targets and
// enforces per (notification, target) debouncing. Grounded on
// logmonitor.c's invoke_target and lm_target_t.last_notif_sent[].
package target

import (
	"os/exec"
	"sync"
	"time"

	"github.com/jlesage/cinit/logmonitor/config"
)

// Dispatcher tracks the last delivery time of every (notification, target)
// pair so repeat deliveries within a target's debounce window are dropped.
type Dispatcher struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// NewDispatcher returns a Dispatcher with no recorded deliveries.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{last: make(map[string]time.Time)}
}

// Send delivers notif to every target, skipping any target still within
// its debounce window for this notification, and invoking the rest's send
// executable with argv = [title, desc, level].
func (d *Dispatcher) Send(targets []config.Target, notif config.Notification) {
	now := time.Now()
	for _, t := range targets {
		key := notif.Name + "\x00" + t.Name
		if t.Debounce > 0 {
			d.mu.Lock()
			last, seen := d.last[key]
			d.mu.Unlock()
			if seen && now.Sub(last) < time.Duration(t.Debounce)*time.Second {
				continue
			}
		}

		invoke(t.Send, notif.Title, notif.Desc, notif.Level)

		d.mu.Lock()
		d.last[key] = now
		d.mu.Unlock()
	}
}

func invoke(sendPath, title, desc, level string) {
	cmd := exec.Command(sendPath, title, desc, level)
	_ = cmd.Run()
}
