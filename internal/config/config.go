package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	API struct {
		Enabled bool   `yaml:"enabled"`
		Address string `yaml:"address"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"api"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		MinLeadTimeMinutes      int  `yaml:"min_lead_time_minutes"`
		CancellationCutoffHours int  `yaml:"cancellation_cutoff_hours"`
		ReminderGraceMinutes    int  `yaml:"reminder_grace_minutes"`
		DefaultSlotMinutes      int  `yaml:"default_slot_minutes"`
		EnforceSlotEnd          bool `yaml:"enforce_slot_end"`
	} `yaml:"booking"`

	Availability struct {
		ExcludeBreakRanges bool `yaml:"exclude_break_ranges"`
		CacheTTLSeconds    int  `yaml:"cache_ttl_seconds"`
	} `yaml:"availability"`

	Notifications struct {
		TelegramEnabled bool   `yaml:"telegram_enabled"`
		BotToken        string `yaml:"bot_token"`
	} `yaml:"notifications"`

	Reminders struct {
		Enabled              bool    `yaml:"enabled"`
		CheckIntervalMinutes int     `yaml:"check_interval_minutes"`
		LeadTimeHours        int     `yaml:"lead_time_hours"`
		SendRate             float64 `yaml:"send_rate"`
		SendBurst            int     `yaml:"send_burst"`
	} `yaml:"reminders"`

	Audit struct {
		Enabled       bool   `yaml:"enabled"`
		Schedule      string `yaml:"schedule"`
		ExportDir     string `yaml:"export_dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"audit"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/zapisly.db"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) MinLeadTime() time.Duration {
	if c.Booking.MinLeadTimeMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(c.Booking.MinLeadTimeMinutes) * time.Minute
}

func (c *Config) CancellationCutoff() time.Duration {
	if c.Booking.CancellationCutoffHours <= 0 {
		return 23 * time.Hour
	}
	return time.Duration(c.Booking.CancellationCutoffHours) * time.Hour
}

func (c *Config) ReminderGrace() time.Duration {
	if c.Booking.ReminderGraceMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Booking.ReminderGraceMinutes) * time.Minute
}

func (c *Config) DefaultSlotDuration() time.Duration {
	if c.Booking.DefaultSlotMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Booking.DefaultSlotMinutes) * time.Minute
}

func (c *Config) AvailabilityCacheTTL() time.Duration {
	if c.Availability.CacheTTLSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Availability.CacheTTLSeconds) * time.Second
}

func (c *Config) ReminderCheckInterval() time.Duration {
	if c.Reminders.CheckIntervalMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Reminders.CheckIntervalMinutes) * time.Minute
}

func (c *Config) ReminderLeadTime() time.Duration {
	if c.Reminders.LeadTimeHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Reminders.LeadTimeHours) * time.Hour
}

func (c *Config) AuditSchedule() string {
	if c.Audit.Schedule == "" {
		return "0 3 1 * *"
	}
	return c.Audit.Schedule
}
