// Package valuefile implements the value-file resolution rule used
// throughout the service directory tree: a configuration value is either
// read from a file, or, when the file is executable, captured from the
// program's stdout. Scalar values (Resolve) keep only the first line; list
// values (ResolveFull) keep every line.
package valuefile

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"strings"
	"time"
)

const maxFileReadSize = 1 << 20 // 1MB, mirrors MAX_FILE_READ_SIZE

// Resolve implements the value resolution rule: if path does not exist,
// ok is false. If path is executable, the value is the trimmed first line
// of its stdout. Otherwise the value is the trimmed first line of the
// file's contents.
func Resolve(path string) (value string, ok bool, err error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("valuefile: stat %s: %w", path, err)
	}

	if info.Mode()&0o111 != 0 {
		out, err := exec.Command(path).Output()
		if err != nil {
			return "", false, fmt.Errorf("valuefile: run %s: %w", path, err)
		}
		return firstLine(out), true, nil
	}

	if info.Size() > maxFileReadSize {
		return "", false, fmt.Errorf("valuefile: %s exceeds %d bytes", path, maxFileReadSize)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("valuefile: read %s: %w", path, err)
	}
	return strings.TrimSpace(firstLine(raw)), true, nil
}

// ResolveFull is like Resolve but returns the full captured output/file
// contents rather than only its first line, for multi-line list values
// (params, environment, sgid) whose load_value_as_string call sites pass
// an unbounded buffer instead of truncating at the first line ending.
func ResolveFull(path string) (value string, ok bool, err error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("valuefile: stat %s: %w", path, err)
	}

	if info.Mode()&0o111 != 0 {
		out, err := exec.Command(path).Output()
		if err != nil {
			return "", false, fmt.Errorf("valuefile: run %s: %w", path, err)
		}
		return strings.TrimRight(string(out), "\n"), true, nil
	}

	if info.Size() > maxFileReadSize {
		return "", false, fmt.Errorf("valuefile: %s exceeds %d bytes", path, maxFileReadSize)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("valuefile: read %s: %w", path, err)
	}
	return strings.TrimRight(string(raw), "\n"), true, nil
}

func firstLine(b []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(b))
	if sc.Scan() {
		return strings.TrimSpace(sc.Text())
	}
	return ""
}

// Bool loads a boolean value. A file that exists but is empty (the "touch
// disabled" idiom) resolves to true; content is otherwise matched against
// the truthy/falsy literal sets.
func Bool(path string, def bool) (bool, error) {
	raw, ok, err := resolveRawForBool(path)
	if err != nil {
		return false, err
	}
	if !ok {
		return def, nil
	}
	if raw == "" {
		return true, nil
	}
	return ParseBool(raw)
}

// resolveRawForBool is like Resolve but preserves empty-but-present files,
// which Resolve's TrimSpace/firstLine handling already collapses to "".
func resolveRawForBool(path string) (string, bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("valuefile: stat %s: %w", path, err)
	}
	if info.Mode()&0o111 != 0 {
		v, ok, err := Resolve(path)
		return v, ok, err
	}
	if info.Size() > maxFileReadSize {
		return "", false, fmt.Errorf("valuefile: %s exceeds %d bytes", path, maxFileReadSize)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("valuefile: read %s: %w", path, err)
	}
	return strings.TrimSpace(firstLine(raw)), true, nil
}

var trueLiterals = map[string]bool{
	"1": true, "true": true, "yes": true, "on": true, "enable": true, "enabled": true,
}

var falseLiterals = map[string]bool{
	"0": true, "false": true, "no": true, "off": true, "disable": true, "disabled": true,
}

// ParseBool parses the literal boolean vocabulary accepted by value files.
// Every word but "1"/"0" is matched case-insensitively (so "YES", "On" and
// "Disabled" are all valid), matching string_to_bool's strcasecmp checks.
func ParseBool(s string) (bool, error) {
	lower := strings.ToLower(s)
	if trueLiterals[lower] {
		return true, nil
	}
	if falseLiterals[lower] {
		return false, nil
	}
	return false, fmt.Errorf("valuefile: invalid boolean literal %q", s)
}

// String loads a scalar string value, or def if the file is absent.
func String(path, def string) (string, error) {
	v, ok, err := Resolve(path)
	if err != nil {
		return "", err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

// Int loads a signed integer value, or def if the file is absent.
func Int(path string, def int) (int, error) {
	v, ok, err := Resolve(path)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("valuefile: %s: invalid integer %q", path, v)
	}
	return n, nil
}

// Uint loads an unsigned integer value, or def if the file is absent.
func Uint(path string, def uint32) (uint32, error) {
	v, ok, err := Resolve(path)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("valuefile: %s: invalid unsigned integer %q", path, v)
	}
	return uint32(n), nil
}

// Mode loads a unix file-mode value (octal), or def if the file is absent.
func Mode(path string, def uint32) (uint32, error) {
	v, ok, err := Resolve(path)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("valuefile: %s: invalid mode %q", path, v)
	}
	return uint32(n), nil
}

// UID loads a uid value, accepting either a numeric literal or a user name
// resolvable via the system's user database.
func UID(path string, def uint32) (uint32, error) {
	v, ok, err := Resolve(path)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return parseUID(v)
}

// ParseUID parses a uid literal directly (not a file path): a numeric
// literal or a user name resolvable via the system's user database.
func ParseUID(v string) (uint32, error) { return parseUID(v) }

// ParseGID parses a gid literal directly (not a file path): a numeric
// literal or a group name resolvable via the system's group database.
func ParseGID(v string) (uint32, error) { return parseGID(v) }

func parseUID(v string) (uint32, error) {
	if n, err := strconv.ParseUint(v, 10, 32); err == nil {
		return uint32(n), nil
	}
	u, err := user.Lookup(v)
	if err != nil {
		return 0, fmt.Errorf("valuefile: unknown user %q: %w", v, err)
	}
	n, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("valuefile: user %q has malformed uid %q", v, u.Uid)
	}
	return uint32(n), nil
}

// GID loads a gid value, accepting either a numeric literal or a group name.
func GID(path string, def uint32) (uint32, error) {
	v, ok, err := Resolve(path)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return parseGID(v)
}

func parseGID(v string) (uint32, error) {
	if n, err := strconv.ParseUint(v, 10, 32); err == nil {
		return uint32(n), nil
	}
	g, err := user.LookupGroup(v)
	if err != nil {
		return 0, fmt.Errorf("valuefile: unknown group %q: %w", v, err)
	}
	n, err := strconv.ParseUint(g.Gid, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("valuefile: group %q has malformed gid %q", v, g.Gid)
	}
	return uint32(n), nil
}

// intervalKeywords maps the legacy interval keywords to elapsed-time
// durations. These are the same fixed constants as the original
// implementation: "yearly" is 365 days, not a calendar year.
var intervalKeywords = map[string]time.Duration{
	"hourly":  time.Hour,
	"daily":   24 * time.Hour,
	"weekly":  7 * 24 * time.Hour,
	"monthly": 30 * 24 * time.Hour,
	"yearly":  365 * 24 * time.Hour,
}

// ParseInterval parses a legacy interval value: either one of the five
// keywords, or a plain unsigned integer number of seconds.
func ParseInterval(s string) (time.Duration, error) {
	if d, ok := intervalKeywords[s]; ok {
		return d, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("valuefile: invalid interval %q", s)
	}
	return time.Duration(n) * time.Second, nil
}

// Interval loads an interval value, or def if the file is absent.
func Interval(path string, def time.Duration) (time.Duration, error) {
	v, ok, err := Resolve(path)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return ParseInterval(v)
}
