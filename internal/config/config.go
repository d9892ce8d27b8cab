package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the runtime configuration for the arena server.
// Values come from an optional YAML file (ARENA_CONFIG) with environment
// variables taking precedence, so containers can override single knobs.
type AppConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
	HintAPIURL  string `yaml:"hint_api_url"`

	GraceWindow   time.Duration `yaml:"grace_window"`
	ViewingWindow time.Duration `yaml:"viewing_window"`
	MaxSessionAge time.Duration `yaml:"max_session_age"`
	ReapInterval  time.Duration `yaml:"reap_interval"`
	DiagInterval  time.Duration `yaml:"diag_interval"`

	EgressQueueSize int `yaml:"egress_queue_size"`
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:      ":8080",
		HintAPIURL:      "https://stockfish.online/api/s/v2.php",
		GraceWindow:     30 * time.Second,
		ViewingWindow:   60 * time.Second,
		MaxSessionAge:   3 * time.Hour,
		ReapInterval:    15 * time.Minute,
		DiagInterval:    60 * time.Second,
		EgressQueueSize: 32,
	}

	if path := strings.TrimSpace(os.Getenv("ARENA_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("ARENA_LISTEN")); v != "" {
		cfg.ListenAddr = v
	} else if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		cfg.ListenAddr = ":" + p
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("HINT_API_URL")); v != "" {
		cfg.HintAPIURL = v
	}

	if err := overrideDuration(&cfg.GraceWindow, "ARENA_GRACE_WINDOW"); err != nil {
		return nil, err
	}
	if err := overrideDuration(&cfg.ViewingWindow, "ARENA_VIEWING_WINDOW"); err != nil {
		return nil, err
	}
	if err := overrideDuration(&cfg.MaxSessionAge, "ARENA_MAX_SESSION_AGE"); err != nil {
		return nil, err
	}
	if err := overrideDuration(&cfg.ReapInterval, "ARENA_REAP_INTERVAL"); err != nil {
		return nil, err
	}
	if err := overrideDuration(&cfg.DiagInterval, "ARENA_DIAG_INTERVAL"); err != nil {
		return nil, err
	}

	if cfg.GraceWindow <= 0 || cfg.ViewingWindow <= 0 {
		return nil, fmt.Errorf("grace_window and viewing_window must be positive")
	}
	if cfg.MaxSessionAge <= 0 || cfg.ReapInterval <= 0 {
		return nil, fmt.Errorf("max_session_age and reap_interval must be positive")
	}
	if cfg.EgressQueueSize <= 0 {
		cfg.EgressQueueSize = 32
	}

	return cfg, nil
}

func overrideDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
