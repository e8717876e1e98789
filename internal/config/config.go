package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/djwarf/shellcal/pkg/calendar"
	"github.com/djwarf/shellcal/pkg/providers"
	"github.com/djwarf/shellcal/pkg/settings"
)

const (
	AccountCalDAV = "caldav"
	AccountGoogle = "google"

	defaultSchedule   = "*/15 * * * *"
	defaultPastDays   = 31
	defaultFutureDays = 93
)

// AccountConfig describes one calendar account synced by the daemon.
type AccountConfig struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Type      string `yaml:"type"` // "caldav" or "google"
	// ServerURL is the CalDAV endpoint, or a known provider name such
	// as "icloud".
	ServerURL string `yaml:"server_url,omitempty"`
	Username  string `yaml:"username,omitempty"`
	// PasswordEnv names the environment variable holding the password
	// or app token, so secrets stay out of the YAML file.
	PasswordEnv string `yaml:"password_env,omitempty"`
}

// Password returns the secret named by PasswordEnv.
func (a AccountConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(a.PasswordEnv))
}

// Config holds application configuration
type Config struct {
	// Popup settings.
	//
	// WeekStart is "locale" (default), "sunday", "monday" or "saturday".
	WeekStart string `yaml:"week_start"`
	// ShowWeekNumbers overrides the desktop setting when set.
	ShowWeekNumbers *bool `yaml:"show_week_numbers,omitempty"`
	// ClockFormat is "12h", "24h" or empty to follow the desktop.
	ClockFormat   string `yaml:"clock_format"`
	FollowDesktop bool   `yaml:"follow_desktop"`
	LogLevel      string `yaml:"log_level"`

	// Provider daemon settings.
	DataDir           string          `yaml:"data_dir"`
	SyncSchedule      string          `yaml:"sync_schedule"`
	SyncPastDays      int             `yaml:"sync_past_days"`
	SyncFutureDays    int             `yaml:"sync_future_days"`
	UseOnlineAccounts bool            `yaml:"use_online_accounts"`
	Accounts          []AccountConfig `yaml:"accounts"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		WeekStart:         "locale",
		FollowDesktop:     true,
		LogLevel:          "info",
		DataDir:           defaultDataDir(),
		SyncSchedule:      defaultSchedule,
		SyncPastDays:      defaultPastDays,
		SyncFutureDays:    defaultFutureDays,
		UseOnlineAccounts: true,
		Accounts:          []AccountConfig{},
	}
}

// Normalize fills in missing values so that partial or older files
// still behave.
func (c *Config) Normalize() {
	switch strings.ToLower(c.WeekStart) {
	case "locale", "sunday", "monday", "saturday":
		c.WeekStart = strings.ToLower(c.WeekStart)
	default:
		c.WeekStart = "locale"
	}
	if _, err := calendar.ParseClockFormat(c.ClockFormat); err != nil {
		c.ClockFormat = ""
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.SyncSchedule == "" {
		c.SyncSchedule = defaultSchedule
	}
	if c.SyncPastDays <= 0 {
		c.SyncPastDays = defaultPastDays
	}
	if c.SyncFutureDays <= 0 {
		c.SyncFutureDays = defaultFutureDays
	}
	if c.Accounts == nil {
		c.Accounts = []AccountConfig{}
	}
	for i := range c.Accounts {
		c.Accounts[i].Type = strings.ToLower(c.Accounts[i].Type)
		if c.Accounts[i].ID == "" {
			c.Accounts[i].ID = fmt.Sprintf("%s-%d", c.Accounts[i].Type, i+1)
		}
		if c.Accounts[i].Type == AccountCalDAV {
			key := strings.ToLower(strings.TrimSpace(c.Accounts[i].ServerURL))
			if url, ok := providers.CalDAVServers[key]; ok {
				c.Accounts[i].ServerURL = url
			}
		}
	}
}

// Validate reports account entries the daemon cannot use.
func (c *Config) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for _, a := range c.Accounts {
		if seen[a.ID] {
			errs = append(errs, fmt.Errorf("account %q: duplicate id", a.ID))
		}
		seen[a.ID] = true
		switch a.Type {
		case AccountCalDAV:
			if a.ServerURL == "" {
				errs = append(errs, fmt.Errorf("account %q: caldav needs server_url", a.ID))
			}
		case AccountGoogle:
		default:
			errs = append(errs, fmt.Errorf("account %q: unknown type %q", a.ID, a.Type))
		}
	}
	return errors.Join(errs...)
}

// WeekStartDay resolves WeekStart, asking the locale when it is "locale".
func (c *Config) WeekStartDay() time.Weekday {
	switch c.WeekStart {
	case "sunday":
		return time.Sunday
	case "monday":
		return time.Monday
	case "saturday":
		return time.Saturday
	}
	return settings.LocaleWeekStart()
}

// Overrides returns the values that win over the desktop's. The week
// start is always resolved here since the desktop does not publish it.
func (c *Config) Overrides() settings.Overrides {
	wd := c.WeekStartDay()
	return settings.Overrides{
		WeekStart:       &wd,
		ShowWeekNumbers: c.ShowWeekNumbers,
		ClockFormat:     calendar.ClockFormat(c.ClockFormat),
	}
}

// Settings returns the popup settings without consulting the desktop.
func (c *Config) Settings() calendar.Settings {
	return c.Overrides().Apply(calendar.DefaultSettings())
}

// Load loads config from path. A missing file is created with the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".shellcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save writes c to path.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// LoadEnv reads KEY=value secrets from path into the environment.
// A missing file is fine; variables already set are kept.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// DatabasePath returns the path to the SQLite database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "shellcal.db")
}

// TokenPath is where the Google OAuth token of an account is kept.
func (c *Config) TokenPath(accountID string) string {
	return filepath.Join(c.DataDir, "google-"+accountID+".json")
}

// DefaultPath returns $XDG_CONFIG_HOME/shellcal/config.yaml.
func DefaultPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultEnvPath returns the .env file next to the config.
func DefaultEnvPath() string {
	return filepath.Join(configDir(), ".env")
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, "shellcal")
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		dir = filepath.Join(os.Getenv("HOME"), ".local", "share")
	}
	return filepath.Join(dir, "shellcal")
}
