package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the preview server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the preview server.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used when deciding which runs are
	// upcoming (e.g. "Europe/London").
	Timezone string `yaml:"timezone" json:"timezone"`

	// ClubName is the group's display name, used in the ICS export.
	ClubName string `yaml:"club_name" json:"club_name"`

	// RunWeekday is the club's fixed run night ("thursday" by default).
	// Upcoming-run selection advances to the next occurrence of this
	// weekday strictly after today.
	RunWeekday string `yaml:"run_weekday" json:"run_weekday"`

	// DepartureTime is the human-readable start time used in the fixed
	// time line, e.g. "7:00pm".
	DepartureTime string `yaml:"departure_time" json:"departure_time"`

	// DefaultMeetingPoint is used when a schedule row has no meeting
	// location of its own.
	DefaultMeetingPoint string `yaml:"default_meeting_point" json:"default_meeting_point"`

	// BookingURL / CancelURL are the fixed call-to-action links appended
	// to every message.
	BookingURL string `yaml:"booking_url" json:"booking_url"`
	CancelURL  string `yaml:"cancel_url" json:"cancel_url"`

	// Hashtags is the fixed tag block appended after the outro on
	// Instagram.
	Hashtags []string `yaml:"hashtags" json:"hashtags"`

	// SchedulePath is the CSV export of the route schedule spreadsheet.
	SchedulePath string `yaml:"schedule_path" json:"schedule_path"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used by the preview server to reload the schedule file.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// OutputDir is where generated .txt messages are written.
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              "127.0.0.1:8080",
		Timezone:            "Europe/London",
		ClubName:            "RunTogether Radcliffe",
		RunWeekday:          "thursday",
		DepartureTime:       "7:00pm",
		DefaultMeetingPoint: "Radcliffe market",
		BookingURL:          "https://groups.runtogether.co.uk/RunTogetherRadcliffe/Runs",
		CancelURL:           "https://groups.runtogether.co.uk/My/BookedRuns",
		Hashtags:            []string{"#RunTogetherRadcliffe", "#RadcliffeRunners", "#ThursdayRun"},
		SchedulePath:        "data/route-schedule.csv",
		RefreshCron:         "*/15 * * * *",
		OutputDir:           "out",
		BasicAuth:           nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.ClubName == "" {
		c.ClubName = def.ClubName
	}
	if c.RunWeekday == "" {
		c.RunWeekday = def.RunWeekday
	}
	if c.DepartureTime == "" {
		c.DepartureTime = def.DepartureTime
	}
	if c.DefaultMeetingPoint == "" {
		c.DefaultMeetingPoint = def.DefaultMeetingPoint
	}
	if c.BookingURL == "" {
		c.BookingURL = def.BookingURL
	}
	if c.CancelURL == "" {
		c.CancelURL = def.CancelURL
	}
	if c.Hashtags == nil {
		c.Hashtags = def.Hashtags
	}
	if c.SchedulePath == "" {
		c.SchedulePath = def.SchedulePath
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.OutputDir == "" {
		c.OutputDir = def.OutputDir
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
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
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".rtrgen-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
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

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
