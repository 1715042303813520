package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines runtime settings for the dashboard server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LogLevel  string          `yaml:"logLevel"`
	LogFormat string          `yaml:"logFormat"`
	Exec      ExecConfig      `yaml:"exec"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	RSS       RSSConfig       `yaml:"rss"`
	IRC       IRCConfig       `yaml:"irc"`
}

type ServerConfig struct {
	Address     string `yaml:"address"`
	StaticDir   string `yaml:"staticDir"`
	MaxSessions int    `yaml:"maxSessions"`
}

// ExecConfig bounds every remote command.
type ExecConfig struct {
	Timeout   Duration `yaml:"timeout"`
	MaxOutput int      `yaml:"maxOutput"`
	KillGrace Duration `yaml:"killGrace"`
	QueueSize int      `yaml:"queueSize"`
	// Shell overrides the interpreter, e.g. "/bin/bash -c".
	Shell string `yaml:"shell"`
}

type WorkspaceConfig struct {
	Root        string `yaml:"root"`
	MaxFileSize int64  `yaml:"maxFileSize"`
	MaxDepth    int    `yaml:"maxDepth"`
}

type RSSConfig struct {
	DBPath          string     `yaml:"dbPath"`
	RefreshInterval Duration   `yaml:"refreshInterval"`
	Seed            []SeedFeed `yaml:"seed"`
}

type SeedFeed struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type IRCConfig struct {
	HistoryLimit int `yaml:"historyLimit"`
}

// Duration accepts Go duration strings ("10s") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cwd, _ := os.Getwd()
	return &Config{
		Server: ServerConfig{
			Address:   ":3000",
			StaticDir: "public",
		},
		LogLevel:  "info",
		LogFormat: "json",
		Exec: ExecConfig{
			Timeout:   Duration(10 * time.Second),
			MaxOutput: 1024 * 1024,
			KillGrace: Duration(2 * time.Second),
			QueueSize: 16,
		},
		Workspace: WorkspaceConfig{
			Root:        cwd,
			MaxFileSize: 1024 * 1024,
			MaxDepth:    3,
		},
		RSS: RSSConfig{
			DBPath:          filepath.Join(HomeDir(), "xweb.db"),
			RefreshInterval: Duration(5 * time.Minute),
			Seed:            []SeedFeed{{Name: "BBC News", URL: "http://feeds.bbci.co.uk/news/rss.xml"}},
		},
		IRC: IRCConfig{HistoryLimit: 100},
	}
}

// LoadConfig loads configuration from a YAML file and environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("XWEB_ADDR"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("XWEB_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("XWEB_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("XWEB_WORKSPACE"); v != "" {
		cfg.Workspace.Root = v
	}
	if v := os.Getenv("XWEB_DB_PATH"); v != "" {
		cfg.RSS.DBPath = v
	}
	if v := os.Getenv("XWEB_EXEC_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("XWEB_EXEC_TIMEOUT: %w", err)
		}
		cfg.Exec.Timeout = Duration(d)
	}
	if v := os.Getenv("XWEB_EXEC_MAX_OUTPUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("XWEB_EXEC_MAX_OUTPUT: %w", err)
		}
		cfg.Exec.MaxOutput = n
	}
	return nil
}

// Validate rejects settings that would leave a command unbounded.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Address == "" {
		errs = append(errs, errors.New("server.address is required"))
	}
	if c.Exec.Timeout <= 0 {
		errs = append(errs, errors.New("exec.timeout must be positive"))
	}
	if c.Exec.MaxOutput <= 0 {
		errs = append(errs, errors.New("exec.maxOutput must be positive"))
	}
	if c.Exec.KillGrace <= 0 {
		errs = append(errs, errors.New("exec.killGrace must be positive"))
	}
	if c.Exec.QueueSize <= 0 {
		errs = append(errs, errors.New("exec.queueSize must be positive"))
	}
	if c.Workspace.Root == "" {
		errs = append(errs, errors.New("workspace.root is required"))
	}
	if c.Server.MaxSessions < 0 {
		errs = append(errs, errors.New("server.maxSessions must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DefaultConfigPath returns the default location for the config file.
func DefaultConfigPath() string {
	if path := os.Getenv("XWEB_CONFIG"); path != "" {
		return path
	}
	return filepath.Join(HomeDir(), "config.yaml")
}

// HomeDir is where xweb keeps its state.
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".xweb")
}
