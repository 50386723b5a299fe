// Package config loads application settings from environment variables,
// optionally seeded from a .env file. Configuration is loaded once at startup
// and read-only thereafter.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// MissingKeysError lists every required environment variable that was absent,
// so a misconfigured run fails fast with the full picture instead of one key
// at a time.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Keys, ", "))
}

type Config struct {
	// Speed test settings
	AdvertisedSpeedMbps float64 `koanf:"advertised_speed_mbps"`
	ThresholdPercent    int     `koanf:"threshold_percent"`
	SpeedtestBackend    string  `koanf:"speedtest_backend"`
	SpeedtestCommand    string  `koanf:"speedtest_command"`

	// FCC portal credentials, handed to the filer
	FCCUsername string `koanf:"fcc_username"`
	FCCPassword string `koanf:"fcc_password"`

	// ISP and account details
	ISPName          string `koanf:"isp_name"`
	ISPAccountNumber string `koanf:"isp_account_number"`

	// Contact information
	ServiceAddress string `koanf:"service_address"`
	PhoneNumber    string `koanf:"phone_number"`
	Email          string `koanf:"email"`
	FirstName      string `koanf:"first_name"`
	LastName       string `koanf:"last_name"`

	// Database
	DBPath string `koanf:"db_path"`

	// External filer command (optional; filing fails without it)
	FilerCommand string `koanf:"filer_command"`
	FilerTimeout string `koanf:"filer_timeout"`

	// Email notification settings (optional; disabled unless both are set)
	SendGridAPIKey    string `koanf:"sendgrid_api_key"`
	NotificationEmail string `koanf:"notification_email"`

	// Serve mode schedules
	SampleInterval  string `koanf:"sample_interval"`
	DailyReportTime string `koanf:"daily_report_time"`
}

var requiredKeys = []string{
	"FCC_USERNAME",
	"FCC_PASSWORD",
	"ISP_NAME",
	"ISP_ACCOUNT_NUMBER",
	"SERVICE_ADDRESS",
	"PHONE_NUMBER",
	"EMAIL",
	"FIRST_NAME",
	"LAST_NAME",
}

// Load reads configuration from the environment. If envFile is non-empty it
// must exist; otherwise a .env in the working directory is used when present.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, errors.Wrapf(err, "load env file %s", envFile)
		}
	} else {
		// A missing default .env just means everything comes from the
		// real environment.
		_ = godotenv.Load()
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, errors.Wrap(err, "load environment")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	// Empty or absent optionals fall back to defaults.
	cfg.applyDefaults()

	var missing []string
	for _, key := range requiredKeys {
		if !k.Exists(strings.ToLower(key)) || strings.TrimSpace(k.String(strings.ToLower(key))) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingKeysError{Keys: missing}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.AdvertisedSpeedMbps == 0 {
		c.AdvertisedSpeedMbps = 1000
	}
	if c.ThresholdPercent == 0 {
		c.ThresholdPercent = 70
	}
	if c.SpeedtestBackend == "" {
		c.SpeedtestBackend = "cli"
	}
	if c.SpeedtestCommand == "" {
		c.SpeedtestCommand = "speedtest-cli"
	}
	if c.DBPath == "" {
		c.DBPath = "speedtest_history.db"
	}
	if c.FilerTimeout == "" {
		c.FilerTimeout = "30m"
	}
	if c.SampleInterval == "" {
		c.SampleInterval = "1h"
	}
	if c.DailyReportTime == "" {
		c.DailyReportTime = "08:00"
	}
}

func (c *Config) validate() error {
	if c.AdvertisedSpeedMbps <= 0 {
		return errors.New("ADVERTISED_SPEED_MBPS must be positive")
	}
	if c.ThresholdPercent < 0 || c.ThresholdPercent > 100 {
		return errors.New("THRESHOLD_PERCENT must be between 0 and 100")
	}
	switch c.SpeedtestBackend {
	case "cli", "native":
	default:
		return errors.Errorf("SPEEDTEST_BACKEND must be cli or native, got %q", c.SpeedtestBackend)
	}
	if _, err := time.ParseDuration(c.FilerTimeout); err != nil {
		return errors.Wrap(err, "FILER_TIMEOUT")
	}
	if _, err := time.ParseDuration(c.SampleInterval); err != nil {
		return errors.Wrap(err, "SAMPLE_INTERVAL")
	}
	return nil
}

// ThresholdSpeedMbps is the pass/fail cutoff. It is always derived from the
// advertised speed and the percent, never stored, so changing the percent
// reclassifies historical raw samples without touching complaint records.
func (c *Config) ThresholdSpeedMbps() float64 {
	return c.AdvertisedSpeedMbps * float64(c.ThresholdPercent) / 100
}

// EmailEnabled reports whether notification email is configured. Both the
// SendGrid key and a destination address are required.
func (c *Config) EmailEnabled() bool {
	return c.SendGridAPIKey != "" && c.NotificationEmail != ""
}

// FilerTimeoutDuration returns the filing timeout. Load validates the value,
// so parse failures here fall back to the default.
func (c *Config) FilerTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.FilerTimeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// SampleIntervalDuration returns the serve-mode sampling interval.
func (c *Config) SampleIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.SampleInterval)
	if err != nil {
		return time.Hour
	}
	return d
}
