package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	_ "time/tzdata"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// SchedulingConfig drives the appointment slot grid.
type SchedulingConfig struct {
	StartHour   int    `mapstructure:"startHour" json:"start_hour"`
	EndHour     int    `mapstructure:"endHour" json:"end_hour"`
	Granularity int    `mapstructure:"granularity" json:"granularity"`
	Timezone    string `mapstructure:"timezone" json:"timezone"`
}

func DefaultSchedulingConfig() SchedulingConfig {
	return SchedulingConfig{
		StartHour:   7,
		EndHour:     20,
		Granularity: 30,
		Timezone:    "UTC",
	}
}

// Location resolves Timezone, falling back to UTC.
func (c SchedulingConfig) Location() *time.Location {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c SchedulingConfig) SlotDuration() time.Duration {
	return time.Duration(c.Granularity) * time.Minute
}

type SchedulingConfigHolder struct {
	current atomic.Value // holds SchedulingConfig
}

// NewStaticSchedulingConfigHolder returns a holder that never reloads.
func NewStaticSchedulingConfigHolder(cfg SchedulingConfig) (*SchedulingConfigHolder, error) {
	if err := ValidateSchedulingConfig(cfg); err != nil {
		return nil, err
	}
	holder := &SchedulingConfigHolder{}
	holder.current.Store(cfg)
	return holder, nil
}

func NewSchedulingConfigHolder(log *zap.Logger) (*SchedulingConfigHolder, error) {
	log = log.Named("scheduling-config")
	v := viper.New()

	v.SetConfigName("scheduling")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/dentaldesk/config")
	v.AddConfigPath("/etc/dentaldesk")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DENTALDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultSchedulingConfig()
	v.SetDefault("scheduling.startHour", defaults.StartHour)
	v.SetDefault("scheduling.endHour", defaults.EndHour)
	v.SetDefault("scheduling.granularity", defaults.Granularity)
	v.SetDefault("scheduling.timezone", defaults.Timezone)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg SchedulingConfig
	if err := v.UnmarshalKey("scheduling", &cfg); err != nil {
		return nil, err
	}
	if err := ValidateSchedulingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &SchedulingConfigHolder{}
	holder.current.Store(cfg)

	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated SchedulingConfig
		if err := v.UnmarshalKey("scheduling", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := ValidateSchedulingConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *SchedulingConfigHolder) Get() SchedulingConfig {
	return h.current.Load().(SchedulingConfig)
}

// Set replaces the active configuration after validation.
func (h *SchedulingConfigHolder) Set(cfg SchedulingConfig) error {
	if err := ValidateSchedulingConfig(cfg); err != nil {
		return err
	}
	h.current.Store(cfg)
	return nil
}

func ValidateSchedulingConfig(cfg SchedulingConfig) error {
	if cfg.StartHour < 0 || cfg.EndHour > 24 {
		return errors.New("scheduling hours must be within 0..24")
	}
	if cfg.StartHour >= cfg.EndHour {
		return errors.New("scheduling.startHour must be before scheduling.endHour")
	}
	if cfg.Granularity <= 0 || cfg.Granularity > 60 || 60%cfg.Granularity != 0 {
		return fmt.Errorf("scheduling.granularity %d must divide 60", cfg.Granularity)
	}
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduling.timezone: %w", err)
		}
	}
	return nil
}
