// Package config loads the klaxon configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Database is the path of the sqlite alarm store.
	Database string `yaml:"database"`
	LogLevel string `yaml:"log_level"`

	// Period is how often the scheduler checks for due alarms.
	Period Duration `yaml:"period"`
	// SyncPeriod is how often the daemon looks for alarm list changes.
	SyncPeriod Duration `yaml:"sync_period"`
	// FireMissed fires alarms that came due while the machine was asleep.
	FireMissed bool `yaml:"fire_missed"`

	Sound  SoundConfig  `yaml:"sound"`
	Notify NotifyConfig `yaml:"notify"`
}

type SoundConfig struct {
	// Command plays one sound file given as its last argument.
	Command []string `yaml:"command"`
	// RingLimit bounds how long a sound loops while its notification stays
	// open. Zero means until dismissed.
	RingLimit Duration `yaml:"ring_limit"`
}

type NotifyConfig struct {
	// Backend is one of dbus, terminal or none.
	Backend string `yaml:"backend"`
	AppName string `yaml:"app_name"`
}

// Duration is a time.Duration written as "90s" or "15m" in the file.
type Duration time.Duration

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(v)
	return nil
}

const (
	BackendDBus     = "dbus"
	BackendTerminal = "terminal"
	BackendNone     = "none"
)

func DefaultConfig() Config {
	return Config{
		Database:   filepath.Join(dataDir(), "klaxon", "alarms.db"),
		LogLevel:   "info",
		Period:     Duration(time.Second),
		SyncPeriod: Duration(2 * time.Second),
		Sound: SoundConfig{
			Command:   []string{"paplay"},
			RingLimit: Duration(15 * time.Minute),
		},
		Notify: NotifyConfig{
			Backend: BackendDBus,
			AppName: "klaxon",
		},
	}
}

// WithDefaults fills the unset fields of c from DefaultConfig.
func (c Config) WithDefaults() Config {
	out := c
	def := DefaultConfig()
	if strings.TrimSpace(out.Database) == "" {
		out.Database = def.Database
	}
	out.Database = expandHome(out.Database)
	if strings.TrimSpace(out.LogLevel) == "" {
		out.LogLevel = def.LogLevel
	}
	if out.Period <= 0 {
		out.Period = def.Period
	}
	if out.SyncPeriod <= 0 {
		out.SyncPeriod = def.SyncPeriod
	}
	if len(out.Sound.Command) == 0 {
		out.Sound.Command = def.Sound.Command
	}
	if out.Sound.RingLimit < 0 {
		out.Sound.RingLimit = def.Sound.RingLimit
	}
	out.Notify.Backend = strings.ToLower(strings.TrimSpace(out.Notify.Backend))
	if out.Notify.Backend == "" {
		out.Notify.Backend = def.Notify.Backend
	}
	if strings.TrimSpace(out.Notify.AppName) == "" {
		out.Notify.AppName = def.Notify.AppName
	}
	return out
}

func (c Config) Validate() error {
	switch c.Notify.Backend {
	case BackendDBus, BackendTerminal, BackendNone:
	default:
		return fmt.Errorf("notify.backend must be dbus, terminal or none, got %q", c.Notify.Backend)
	}
	if c.Period > Duration(time.Minute) {
		return errors.New("period must not exceed one minute or alarms will be skipped")
	}
	return nil
}

// DefaultPath returns the configuration file path in the user's
// configuration directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "klaxon.yaml"
	}
	return filepath.Join(dir, "klaxon", "config.yaml")
}

// Load reads the configuration at path from fs. A missing file yields the
// defaults.
func Load(fs afero.Fs, path string) (Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes c to path on fs, creating parent directories.
func Save(fs afero.Fs, path string, c Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(fs, path, data, 0o644)
}

func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
