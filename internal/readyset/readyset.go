// Package readyset is a narrow reuse of the teacher's go-systemd
// dependency: once every required service is ready, cinit can optionally
// notify systemd (or any supervisor that honors the sd_notify protocol,
// including container healthchecks that shell out to systemd-notify) so
// the container is observably "ready" from the outside. This replaces the
// teacher's heavier dbus/machine1/import1 machine-management usage, which
// has no equivalent in this domain (see DESIGN.md).
package readyset

import (
	"github.com/coreos/go-systemd/daemon"
)

// Notify reports readiness via sd_notify, if NOTIFY_SOCKET is set (e.g.
// when running under a systemd service with Type=notify). It is a no-op,
// returning false with a nil error, outside that environment.
func Notify() (bool, error) {
	return daemon.SdNotify(false, daemon.SdNotifyReady)
}

// NotifyStopping reports that the supervisor is shutting down.
func NotifyStopping() (bool, error) {
	return daemon.SdNotify(false, daemon.SdNotifyStopping)
}
