package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/siae-sistema/cardlink/internal/capture"
	"gopkg.in/yaml.v3"
)

const (
	EnvReaderDevice   = "CARDLINK_READER_DEVICE"
	EnvUIDLength      = "CARDLINK_UID_LENGTH"
	EnvDebounce       = "CARDLINK_DEBOUNCE"
	EnvSubmitDelay    = "CARDLINK_SUBMIT_DELAY"
	EnvFocusInterval  = "CARDLINK_FOCUS_INTERVAL"
	EnvDatabasePath   = "CARDLINK_DB_PATH"
	EnvBackendURL     = "CARDLINK_BACKEND_URL"
	EnvBackendToken   = "CARDLINK_BACKEND_TOKEN"
	EnvBackendTimeout = "CARDLINK_BACKEND_TIMEOUT"
	EnvServerPort     = "CARDLINK_PORT"

	MinUIDLength = 4
	MaxUIDLength = 20
)

// ReaderConfig holds the timings of the attached card reader. They are
// empirical per hardware model and need re-tuning for other readers.
type ReaderConfig struct {
	Device        string        `yaml:"device"`
	UIDLength     int           `yaml:"uid_length"`
	Debounce      time.Duration `yaml:"debounce"`
	SubmitDelay   time.Duration `yaml:"submit_delay"`
	FocusInterval time.Duration `yaml:"focus_interval"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

// BackendConfig points at the attendance REST backend. An empty URL means the
// local store is used instead.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// Config is the full cardlink configuration.
type Config struct {
	Reader  ReaderConfig  `yaml:"reader"`
	Store   StoreConfig   `yaml:"store"`
	Backend BackendConfig `yaml:"backend"`
	Server  ServerConfig  `yaml:"server"`
}

func Default() Config {
	return Config{
		Reader: ReaderConfig{
			UIDLength:     capture.DefaultUIDLength,
			Debounce:      capture.DefaultDebounce,
			SubmitDelay:   capture.DefaultSubmitDelay,
			FocusInterval: capture.DefaultFocusInterval,
		},
		Store: StoreConfig{
			Path: "cardlink.db",
		},
		Backend: BackendConfig{
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Port: "8888",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path
// and CARDLINK_* environment variables, in that order.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := lookup(EnvReaderDevice); ok {
		c.Reader.Device = v
	}
	if v, ok := lookup(EnvUIDLength); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvUIDLength, err)
		}
		c.Reader.UIDLength = n
	}
	durations := []struct {
		env string
		dst *time.Duration
	}{
		{EnvDebounce, &c.Reader.Debounce},
		{EnvSubmitDelay, &c.Reader.SubmitDelay},
		{EnvFocusInterval, &c.Reader.FocusInterval},
		{EnvBackendTimeout, &c.Backend.Timeout},
	}
	for _, d := range durations {
		v, ok := lookup(d.env)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.env, err)
		}
		*d.dst = parsed
	}
	if v, ok := lookup(EnvDatabasePath); ok {
		c.Store.Path = v
	}
	if v, ok := lookup(EnvBackendURL); ok {
		c.Backend.URL = v
	}
	if v, ok := lookup(EnvBackendToken); ok {
		c.Backend.Token = v
	}
	if v, ok := lookup(EnvServerPort); ok {
		c.Server.Port = v
	}
	return nil
}

// Validate checks that the configuration is coherent.
func (c Config) Validate() error {
	if c.Reader.UIDLength < MinUIDLength || c.Reader.UIDLength > MaxUIDLength {
		return fmt.Errorf("invalid reader.uid_length: must be in range %d..%d", MinUIDLength, MaxUIDLength)
	}
	if c.Reader.Debounce <= 0 {
		return fmt.Errorf("invalid reader.debounce: must be > 0")
	}
	if c.Reader.SubmitDelay < 0 {
		return fmt.Errorf("invalid reader.submit_delay: must be >= 0")
	}
	if c.Reader.FocusInterval <= 0 {
		return fmt.Errorf("invalid reader.focus_interval: must be > 0")
	}
	if c.Backend.URL == "" && c.Store.Path == "" {
		return fmt.Errorf("invalid store.path: must not be empty without backend.url")
	}
	if c.Backend.URL != "" {
		u, err := url.Parse(c.Backend.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid backend.url: must be an absolute http(s) URL")
		}
		if c.Backend.Timeout <= 0 {
			return fmt.Errorf("invalid backend.timeout: must be > 0")
		}
	}
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server.port: must be in range 1..65535")
	}
	return nil
}

// Capture returns the protocol tunables for the capture controller.
func (c Config) Capture() capture.Config {
	return capture.Config{
		UIDLength:     c.Reader.UIDLength,
		Debounce:      c.Reader.Debounce,
		SubmitDelay:   c.Reader.SubmitDelay,
		FocusInterval: c.Reader.FocusInterval,
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
