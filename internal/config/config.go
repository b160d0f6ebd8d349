// Package config loads process configuration the way pkg/config did in the
// teacher repo, trimmed to what the invigilation scheduler actually needs.
package config

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the process-wide configuration for the scheduler service.
type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Log       LogConfig
	Scheduler SchedulerConfig
}

// LogConfig mirrors the teacher's pkg/config.LogConfig.
type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig carries the V3 optimizer's default tunables as loaded from
// the environment. Nothing in cmd/scheduler, internal/httpapi or
// internal/solver reads these values: every solver.Run call uses only the
// Params carried by its request (spec §6), and a field the request omits is
// not filled in from here.
type SchedulerConfig struct {
	MaxWorkers             int
	DefaultTimeBudget      time.Duration
	DefaultGap             float64
	DefaultMinInvigilators int
	DefaultAllowFallback   bool
	DefaultHonorWishes     bool
	DefaultEnableGrouping  bool
}

// Load reads configuration from .env and the process environment, the same
// way the teacher's config.Load does.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{
		Env:       v.GetString("ENV"),
		Port:      v.GetInt("PORT"),
		APIPrefix: v.GetString("API_PREFIX"),
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Scheduler: SchedulerConfig{
			MaxWorkers:             v.GetInt("SCHEDULER_MAX_WORKERS"),
			DefaultTimeBudget:      parseDuration(v.GetString("SCHEDULER_TIME_BUDGET"), 30*time.Second),
			DefaultGap:             v.GetFloat64("SCHEDULER_GAP"),
			DefaultMinInvigilators: v.GetInt("SCHEDULER_MIN_INVIGILATORS"),
			DefaultAllowFallback:   v.GetBool("SCHEDULER_ALLOW_FALLBACK"),
			DefaultHonorWishes:     v.GetBool("SCHEDULER_HONOR_WISHES"),
			DefaultEnableGrouping:  v.GetBool("SCHEDULER_ENABLE_GROUPING"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULER_MAX_WORKERS", 16)
	v.SetDefault("SCHEDULER_TIME_BUDGET", "30s")
	v.SetDefault("SCHEDULER_GAP", 0.02)
	v.SetDefault("SCHEDULER_MIN_INVIGILATORS", 2)
	v.SetDefault("SCHEDULER_ALLOW_FALLBACK", true)
	v.SetDefault("SCHEDULER_HONOR_WISHES", true)
	v.SetDefault("SCHEDULER_ENABLE_GROUPING", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
