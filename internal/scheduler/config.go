package scheduler

import (
	"time"

	"github.com/smallbiznis/dentaldesk/internal/config"
)

// Config controls housekeeping intervals and retention.
type Config struct {
	Enabled          bool
	RunInterval      time.Duration
	SessionRetention time.Duration
	JobTimeout       time.Duration
	EnabledJobs      []string
}

func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		RunInterval:      time.Hour,
		SessionRetention: 30 * 24 * time.Hour,
		JobTimeout:       30 * time.Second,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:          cfg.Housekeeping.Enabled,
		RunInterval:      time.Duration(cfg.Housekeeping.Interval) * time.Second,
		SessionRetention: time.Duration(cfg.Housekeeping.SessionRetentionDays) * 24 * time.Hour,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.SessionRetention <= 0 {
		c.SessionRetention = defaults.SessionRetention
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
