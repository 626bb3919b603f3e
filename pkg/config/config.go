package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/lookout/pkg/log"
	"github.com/cuemby/lookout/pkg/notify"
	"github.com/cuemby/lookout/pkg/supervisor"
)

// Environment variables that override the file
const (
	EnvWorkerURL   = "LOOKOUT_WORKER_URL"
	EnvWorkerToken = "LOOKOUT_WORKER_TOKEN"
	EnvConfig      = "LOOKOUT_CONFIG"
)

// Config is the lookout client configuration
type Config struct {
	Worker  WorkerConfig      `yaml:"worker"`
	Log     log.Config        `yaml:"log"`
	Notify  notify.Config     `yaml:"notify"`
	API     APIConfig         `yaml:"api"`
	Policy  supervisor.Policy `yaml:"policy"`
	DataDir string            `yaml:"data_dir"`
}

// WorkerConfig locates the worker control endpoint
type WorkerConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// APIConfig configures the local daemon API served by `lookout watch`
type APIConfig struct {
	Addr         string   `yaml:"addr"`
	Token        string   `yaml:"token"`
	AllowedIPs   []string `yaml:"allowed_ips"`
	CommandRate  float64  `yaml:"command_rate"`
	CommandBurst int      `yaml:"command_burst"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Worker: WorkerConfig{
			URL: "http://localhost:5000",
		},
		Log: log.Config{
			Level: log.InfoLevel,
		},
		Notify: notify.Config{
			BaseURL:  notify.DefaultBaseURL,
			Priority: notify.DefaultPriority,
		},
		API: APIConfig{
			Addr:         "127.0.0.1:9090",
			CommandRate:  1,
			CommandBurst: 5,
		},
		Policy:  supervisor.DefaultPolicy(),
		DataDir: defaultDataDir(),
	}
}

// Load reads the YAML file at path over the defaults. An empty path, or a
// missing file at the default location, yields the defaults. Environment
// overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvWorkerURL); v != "" {
		c.Worker.URL = v
	}
	if v := os.Getenv(EnvWorkerToken); v != "" {
		c.Worker.Token = v
	}
}

// Validate checks the fields the daemon cannot run without
func (c *Config) Validate() error {
	url := strings.TrimSpace(c.Worker.URL)
	if url == "" {
		return errors.New("worker.url is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("worker.url must be an http(s) URL, got %q", url)
	}
	return nil
}

// DefaultPath returns the config file location used when none is given
func DefaultPath() string {
	if v := os.Getenv(EnvConfig); v != "" {
		return v
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "lookout.yaml"
	}
	return filepath.Join(dir, "lookout", "config.yaml")
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".lookout"
	}
	return filepath.Join(dir, "lookout")
}
