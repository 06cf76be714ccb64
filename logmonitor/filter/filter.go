// Package filter runs a notification's filter executable against a new log
// line. Grounded on logmonitor.c's invoke_filter/invoke_exec: the line is
// passed as a single argv element, not piped over stdin, and the filter's
// own stdout is discarded — only its exit status is consulted.
package filter

import "os/exec"

// Matches reports whether filterPath exits zero when invoked with line as
// its sole argument, meaning the notification should fire.
func Matches(filterPath, line string) (bool, error) {
	cmd := exec.Command(filterPath, line)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	if _, ok := err.(*exec.ExitError); ok {
		return false, nil
	}
	return false, err
}
