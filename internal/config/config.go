package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

type Config struct {
	Port       int
	Token      string
	ConfigPath string
	PrintToken bool

	Shell     string
	AWSBinary string
	Profile   string
	Region    string

	DBPath     string
	PresetsDir string
	NatsURL    string

	PollInterval time.Duration
	Lookback     time.Duration

	Debug bool
}

// ErrHelp is returned when --help was requested.
var ErrHelp = pflag.ErrHelp

// Load reads ~/.config/cloudmux/config and the process arguments.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return LoadFrom(filepath.Join(homeDir, ".config", "cloudmux", "config"), os.Args[1:])
}

// LoadFrom applies defaults, then the config file at path, then args.
// A token is generated and written back when none is configured; nothing
// else is written.
func LoadFrom(path string, args []string) (*Config, error) {
	cfg := defaults(filepath.Dir(path))
	cfg.ConfigPath = path

	if err := cfg.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	flags := pflag.NewFlagSet("cloudmux", pflag.ContinueOnError)
	flags.IntVar(&cfg.Port, "port", cfg.Port, "server port (1-65535)")
	flags.StringVar(&cfg.Token, "token", cfg.Token, "authentication token (auto-generated if empty)")
	flags.BoolVar(&cfg.PrintToken, "print-token", false, "print token to stdout (for local debugging)")
	flags.StringVar(&cfg.Shell, "shell", cfg.Shell, "shell for local sessions and container exec")
	flags.StringVar(&cfg.AWSBinary, "aws-binary", cfg.AWSBinary, "aws CLI executable")
	flags.StringVar(&cfg.Profile, "profile", cfg.Profile, "default AWS profile")
	flags.StringVar(&cfg.Region, "region", cfg.Region, "default AWS region")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "history database path")
	flags.StringVar(&cfg.PresetsDir, "presets-dir", cfg.PresetsDir, "session presets directory")
	flags.StringVar(&cfg.NatsURL, "nats-url", cfg.NatsURL, "publish session events to this NATS server")
	flags.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "log tail poll interval")
	flags.DurationVar(&cfg.Lookback, "lookback", cfg.Lookback, "how far back a new log tail starts")
	flags.BoolVarP(&cfg.Debug, "debug", "d", cfg.Debug, "enable debug logging")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if extra := flags.Args(); len(extra) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", extra[0])
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Token == "" {
		token, err := generateToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %w", err)
		}
		cfg.Token = token
		if err := cfg.saveToken(); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	}

	return cfg, nil
}

func defaults(dir string) *Config {
	return &Config{
		Port:         8765,
		Shell:        "/bin/sh",
		AWSBinary:    "aws",
		DBPath:       filepath.Join(dir, "cloudmux.db"),
		PresetsDir:   filepath.Join(dir, "presets"),
		PollInterval: 2 * time.Second,
		Lookback:     30 * time.Second,
	}
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Port)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("invalid poll interval %s: must be positive", c.PollInterval)
	}
	if c.Lookback < 0 {
		return fmt.Errorf("invalid lookback %s: must not be negative", c.Lookback)
	}
	if strings.TrimSpace(c.Shell) == "" {
		return errors.New("shell must not be empty")
	}
	return nil
}

func (c *Config) loadFromFile() error {
	data, err := os.ReadFile(c.ConfigPath)
	if err != nil {
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if err := c.set(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "Port":
		c.Port, err = strconv.Atoi(value)
	case "Token":
		c.Token = value
	case "Shell":
		c.Shell = value
	case "AWSBinary":
		c.AWSBinary = value
	case "Profile":
		c.Profile = value
	case "Region":
		c.Region = value
	case "DBPath":
		c.DBPath = value
	case "PresetsDir":
		c.PresetsDir = value
	case "NatsURL":
		c.NatsURL = value
	case "PollInterval":
		c.PollInterval, err = time.ParseDuration(value)
	case "Lookback":
		c.Lookback, err = time.ParseDuration(value)
	case "Debug":
		c.Debug, err = strconv.ParseBool(value)
	}
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return nil
}

// saveToken writes the token into the config file and keeps every other
// line of it as it was. Flag values are never persisted.
func (c *Config) saveToken() error {
	dir := filepath.Dir(c.ConfigPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := os.ReadFile(c.ConfigPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	var b strings.Builder
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if key, _, ok := strings.Cut(line, "="); ok && strings.TrimSpace(key) == "Token" {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Token=%s\n", c.Token)

	if err := os.WriteFile(c.ConfigPath, []byte(b.String()), 0o600); err != nil {
		return err
	}
	return os.Chmod(c.ConfigPath, 0o600)
}

func generateToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
