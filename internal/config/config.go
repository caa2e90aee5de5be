// Package config loads the server configuration from the environment with an
// optional YAML overlay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names
const (
	EnvConfigFile = "REELCAST_CONFIG_FILE"

	EnvListenAddr    = "REELCAST_LISTEN_ADDR"
	EnvPublicBaseURL = "REELCAST_PUBLIC_BASE_URL"
	EnvTriggerToken  = "REELCAST_TRIGGER_TOKEN"

	EnvDriverMode        = "REELCAST_DRIVER_MODE"
	EnvSelfTrigger       = "REELCAST_SELF_TRIGGER"
	EnvPollInterval      = "REELCAST_POLL_INTERVAL"
	EnvPollBudget        = "REELCAST_POLL_BUDGET"
	EnvAbandonGrace      = "REELCAST_ABANDON_GRACE"
	EnvWorkers           = "REELCAST_WORKERS"
	EnvSweepInterval     = "REELCAST_SWEEP_INTERVAL"
	EnvStaleAfter        = "REELCAST_STALE_AFTER"
	EnvMaxScenes         = "REELCAST_MAX_SCENES"
	EnvDefaultVoice      = "REELCAST_DEFAULT_VOICE"
	EnvDefaultMusicTrack = "REELCAST_DEFAULT_MUSIC_TRACK"

	EnvDBHost     = "DB_HOST"
	EnvDBPort     = "DB_PORT"
	EnvDBUser     = "DB_USER"
	EnvDBPassword = "DB_PASSWORD"
	EnvDBName     = "DB_NAME"
	EnvDBSSLMode  = "DB_SSL_MODE"
	EnvDBSQLite   = "DB_SQLITE_PATH"
)

// Driver modes
const (
	DriverMonolithic = "monolithic"
	DriverChunked    = "chunked"
	DriverCallback   = "callback"
)

// Vendor holds the endpoint of one remote capability
type Vendor struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// Vendors groups the remote capability endpoints
type Vendors struct {
	Narration     Vendor `yaml:"narration"`
	TalkingHead   Vendor `yaml:"talking_head"`
	Image         Vendor `yaml:"image"`
	Transcription Vendor `yaml:"transcription"`
	Render        Vendor `yaml:"render"`
}

// Database holds connection settings
type Database struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	DBName     string `yaml:"name"`
	SSLMode    string `yaml:"ssl_mode"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Pipeline holds the knobs of the rendering pipeline and its driver
type Pipeline struct {
	DriverMode        string        `yaml:"driver_mode"`
	SelfTrigger       bool          `yaml:"self_trigger"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	PollBudget        time.Duration `yaml:"poll_budget"`
	AbandonGrace      time.Duration `yaml:"abandon_grace"`
	Workers           int           `yaml:"workers"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
	MaxScenes         int           `yaml:"max_scenes"`
	DefaultVoice      string        `yaml:"default_voice"`
	DefaultMusicTrack string        `yaml:"default_music_track"`
}

// Config is the full server configuration
type Config struct {
	ListenAddr    string   `yaml:"listen_addr"`
	PublicBaseURL string   `yaml:"public_base_url"`
	TriggerToken  string   `yaml:"trigger_token"`
	Pipeline      Pipeline `yaml:"pipeline"`
	Database      Database `yaml:"database"`
	Vendors       Vendors  `yaml:"vendors"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		ListenAddr:    ":8080",
		PublicBaseURL: "http://localhost:8080",
		Pipeline: Pipeline{
			DriverMode:    DriverChunked,
			PollInterval:  2 * time.Second,
			PollBudget:    3 * time.Minute,
			AbandonGrace:  30 * time.Second,
			Workers:       4,
			SweepInterval: time.Minute,
			StaleAfter:    10 * time.Minute,
			MaxScenes:     20,
			DefaultVoice:  "default",
		},
		Database: Database{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			DBName:  "reelcast",
			SSLMode: "disable",
		},
	}
}

// Load builds the configuration from defaults, the environment and, when
// REELCAST_CONFIG_FILE is set, a YAML file applied on top.
func Load() (Config, error) {
	cfg := Default()
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.ListenAddr = GetEnv(EnvListenAddr, cfg.ListenAddr)
	cfg.PublicBaseURL = strings.TrimRight(GetEnv(EnvPublicBaseURL, cfg.PublicBaseURL), "/")
	cfg.TriggerToken = GetEnv(EnvTriggerToken, cfg.TriggerToken)

	p := &cfg.Pipeline
	p.DriverMode = GetEnv(EnvDriverMode, p.DriverMode)
	p.DefaultVoice = GetEnv(EnvDefaultVoice, p.DefaultVoice)
	p.DefaultMusicTrack = GetEnv(EnvDefaultMusicTrack, p.DefaultMusicTrack)

	var err error
	if p.SelfTrigger, err = GetEnvBool(EnvSelfTrigger, p.SelfTrigger); err != nil {
		return err
	}
	if p.PollInterval, err = GetEnvDuration(EnvPollInterval, p.PollInterval); err != nil {
		return err
	}
	if p.PollBudget, err = GetEnvDuration(EnvPollBudget, p.PollBudget); err != nil {
		return err
	}
	if p.AbandonGrace, err = GetEnvDuration(EnvAbandonGrace, p.AbandonGrace); err != nil {
		return err
	}
	if p.SweepInterval, err = GetEnvDuration(EnvSweepInterval, p.SweepInterval); err != nil {
		return err
	}
	if p.StaleAfter, err = GetEnvDuration(EnvStaleAfter, p.StaleAfter); err != nil {
		return err
	}
	if p.Workers, err = GetEnvInt(EnvWorkers, p.Workers); err != nil {
		return err
	}
	if p.MaxScenes, err = GetEnvInt(EnvMaxScenes, p.MaxScenes); err != nil {
		return err
	}

	d := &cfg.Database
	d.Host = GetEnv(EnvDBHost, d.Host)
	d.User = GetEnv(EnvDBUser, d.User)
	d.Password = GetEnv(EnvDBPassword, d.Password)
	d.DBName = GetEnv(EnvDBName, d.DBName)
	d.SSLMode = GetEnv(EnvDBSSLMode, d.SSLMode)
	d.SQLitePath = GetEnv(EnvDBSQLite, d.SQLitePath)
	if d.Port, err = GetEnvInt(EnvDBPort, d.Port); err != nil {
		return err
	}

	cfg.Vendors.Narration = vendorFromEnv("NARRATION", cfg.Vendors.Narration)
	cfg.Vendors.TalkingHead = vendorFromEnv("TALKING_HEAD", cfg.Vendors.TalkingHead)
	cfg.Vendors.Image = vendorFromEnv("IMAGE", cfg.Vendors.Image)
	cfg.Vendors.Transcription = vendorFromEnv("TRANSCRIPTION", cfg.Vendors.Transcription)
	cfg.Vendors.Render = vendorFromEnv("RENDER", cfg.Vendors.Render)
	return nil
}

// vendorFromEnv reads REELCAST_<NAME>_URL and REELCAST_<NAME>_API_KEY
func vendorFromEnv(name string, v Vendor) Vendor {
	v.BaseURL = strings.TrimRight(GetEnv("REELCAST_"+name+"_URL", v.BaseURL), "/")
	v.APIKey = GetEnv("REELCAST_"+name+"_API_KEY", v.APIKey)
	return v
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for values the server cannot run with
func (c Config) Validate() error {
	switch c.Pipeline.DriverMode {
	case DriverMonolithic, DriverChunked, DriverCallback:
	default:
		return fmt.Errorf("invalid driver mode %q", c.Pipeline.DriverMode)
	}
	if c.Pipeline.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Pipeline.PollBudget < c.Pipeline.PollInterval {
		return fmt.Errorf("poll budget must be at least the poll interval")
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.Pipeline.MaxScenes < 1 {
		return fmt.Errorf("max scenes must be at least 1")
	}
	if c.Pipeline.DriverMode == DriverCallback && c.PublicBaseURL == "" {
		return fmt.Errorf("callback driver requires a public base url")
	}
	if c.Pipeline.SelfTrigger && c.PublicBaseURL == "" {
		return fmt.Errorf("self trigger requires a public base url")
	}
	return nil
}

// GetEnv retrieves the value of an environment variable with a fallback value if not set
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// GetEnvInt retrieves an integer environment variable with a fallback value if not set
func GetEnvInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return n, nil
}

// GetEnvBool retrieves a boolean environment variable with a fallback value if not set
func GetEnvBool(key string, fallback bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return b, nil
}

// GetEnvDuration retrieves a duration environment variable with a fallback value if not set
func GetEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return d, nil
}
