// Package config loads a logmonitor configuration root: the notification
// and target definitions under notifications.d/ and targets.d/, plus the
// monitored-file list supplied on the command line. Grounded on
// logmonitor.c's create_context/alloc_notification/alloc_target.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jlesage/cinit/internal/valuefile"
)

// MaxNotifications and MaxTargets mirror MAX_NUM_NOTIFICATIONS/MAX_NUM_TARGETS.
const (
	MaxNotifications = 16
	MaxTargets        = 16
	MaxMonitoredFiles = 16
)

// Level is a notification severity, validated against the original's fixed set.
type Level string

const (
	LevelError   Level = "ERROR"
	LevelWarning Level = "WARNING"
	LevelInfo    Level = "INFO"
)

func validLevel(l string) bool {
	switch Level(l) {
	case LevelError, LevelWarning, LevelInfo:
		return true
	}
	return false
}

// Notification is one loaded notifications.d/<name> definition.
type Notification struct {
	Name   string
	Filter string // executable path
	Title  string
	Desc   string
	Level  string
}

// Target is one loaded targets.d/<name> definition.
type Target struct {
	Name      string
	Send      string // executable path
	Debounce  int    // seconds; 0 means no debouncing
}

// MonitoredFile is one command-line FILE argument.
type MonitoredFile struct {
	Path     string
	IsStatus bool // "s:"-prefixed
}

// Config is the fully loaded logmonitor configuration.
type Config struct {
	ConfigDir      string
	Notifications  []Notification
	Targets        []Target
	MonitoredFiles []MonitoredFile
}

// Load reads configDir's notifications.d/ and targets.d/ and pairs them
// with the monitored-file arguments, matching create_context's validation:
// at least one file, one notification and one target are required.
func Load(configDir string, fileArgs []string) (*Config, error) {
	cfg := &Config{ConfigDir: configDir}

	notifs, err := loadNotifications(filepath.Join(configDir, "notifications.d"))
	if err != nil {
		return nil, err
	}
	cfg.Notifications = notifs

	targets, err := loadTargets(filepath.Join(configDir, "targets.d"))
	if err != nil {
		return nil, err
	}
	cfg.Targets = targets

	if len(fileArgs) > MaxMonitoredFiles {
		return nil, fmt.Errorf("config: too many files to monitor (max %d)", MaxMonitoredFiles)
	}
	for _, arg := range fileArgs {
		mf := MonitoredFile{Path: arg}
		if strings.HasPrefix(arg, "s:") {
			mf.IsStatus = true
			mf.Path = arg[2:]
		}
		cfg.MonitoredFiles = append(cfg.MonitoredFiles, mf)
	}

	if len(cfg.MonitoredFiles) == 0 {
		return nil, fmt.Errorf("config: at least one file to monitor must be specified")
	}
	if len(cfg.Notifications) == 0 {
		return nil, fmt.Errorf("config: no notification configured")
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("config: no target configured")
	}

	return cfg, nil
}

func loadNotifications(dir string) ([]Notification, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("config: notification directory %q not found: %w", dir, err)
	}

	var notifs []Notification
	for _, de := range entries {
		if !de.IsDir() {
			continue
		}
		if len(notifs) >= MaxNotifications {
			return nil, fmt.Errorf("config: too many notifications defined")
		}
		n, err := loadNotification(filepath.Join(dir, de.Name()), de.Name())
		if err != nil {
			return nil, fmt.Errorf("config: failed to load notification %q: %w", de.Name(), err)
		}
		notifs = append(notifs, n)
	}
	return notifs, nil
}

func loadNotification(dir, name string) (Notification, error) {
	n := Notification{Name: name}

	filterPath := filepath.Join(dir, "filter")
	if !isExecutable(filterPath) {
		return n, fmt.Errorf("filter executable missing or not executable")
	}
	n.Filter = filterPath

	title, err := valuefile.String(filepath.Join(dir, "title"), "")
	if err != nil || title == "" {
		return n, fmt.Errorf("title missing")
	}
	n.Title = title

	desc, err := valuefile.String(filepath.Join(dir, "desc"), "")
	if err != nil || desc == "" {
		return n, fmt.Errorf("description missing")
	}
	n.Desc = desc

	level, err := valuefile.String(filepath.Join(dir, "level"), "")
	if err != nil || level == "" {
		return n, fmt.Errorf("level missing")
	}
	if !validLevel(level) {
		return n, fmt.Errorf("invalid level %q", level)
	}
	n.Level = level

	return n, nil
}

func loadTargets(dir string) ([]Target, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("config: target directory %q not found: %w", dir, err)
	}

	var targets []Target
	for _, de := range entries {
		if !de.IsDir() {
			continue
		}
		if len(targets) >= MaxTargets {
			return nil, fmt.Errorf("config: too many targets defined")
		}
		t, err := loadTarget(filepath.Join(dir, de.Name()), de.Name())
		if err != nil {
			return nil, fmt.Errorf("config: failed to load target %q: %w", de.Name(), err)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func loadTarget(dir, name string) (Target, error) {
	t := Target{Name: name}

	sendPath := filepath.Join(dir, "send")
	if !isExecutable(sendPath) {
		return t, fmt.Errorf("send executable missing or not executable")
	}
	t.Send = sendPath

	debouncePath := filepath.Join(dir, "debouncing")
	if _, err := os.Stat(debouncePath); err == nil {
		seconds, err := valuefile.Int(debouncePath, 0)
		if err != nil {
			return t, fmt.Errorf("invalid debouncing value: %w", err)
		}
		t.Debounce = seconds
	}

	return t, nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Mode()&0o111 != 0
}
