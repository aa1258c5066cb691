package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mwbgen/mwbgen/internal/scaffold"
)

const (
	CurrentVersion = 1
	DefaultPath    = "~/.mwbgen/mwbgen.yaml"
)

// Config is the top-level configuration.
type Config struct {
	Version   int             `yaml:"version"`
	Output    OutputConfig    `yaml:"output"`
	Laravel   LaravelConfig   `yaml:"laravel"`
	Pivots    []string        `yaml:"pivots,omitempty"`
	Formatter FormatterConfig `yaml:"formatter"`
	Logging   LogConfig       `yaml:"logging,omitempty"`
}

// OutputConfig defines where generated files go.
type OutputConfig struct {
	Migrations string `yaml:"migrations"`       // default database/migrations
	Models     string `yaml:"models"`           // default app
	Report     string `yaml:"report,omitempty"` // JSON run report, disabled when empty
}

// LaravelConfig describes the target application.
type LaravelConfig struct {
	Namespace string `yaml:"namespace"` // default App
}

// FormatterConfig defines the code style pass run on every written file.
type FormatterConfig struct {
	Enabled bool   `yaml:"enabled"`
	Command string `yaml:"command,omitempty"` // {file} is replaced by the path
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level     string `yaml:"level,omitempty"`     // debug, info, warn, error
	Directory string `yaml:"directory,omitempty"` // default ~/.mwbgen/logs/
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{
		Version:   CurrentVersion,
		Formatter: FormatterConfig{Enabled: true},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the config file from the given path. A missing file
// at the default path yields the defaults; a missing explicit path is an
// error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{Formatter: FormatterConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.resolveEnv(); err != nil {
		return nil, fmt.Errorf("resolving environment: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config to the given path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyDefaults() {
	if c.Output.Migrations == "" {
		c.Output.Migrations = filepath.Join("database", "migrations")
	}
	if c.Output.Models == "" {
		c.Output.Models = "app"
	}
	if c.Laravel.Namespace == "" {
		c.Laravel.Namespace = "App"
	}
	if c.Formatter.Command == "" {
		c.Formatter.Command = scaffold.DefaultFormatCommand()
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Directory == "" {
		c.Logging.Directory = ExpandHome("~/.mwbgen/logs/")
	}
}

var envPattern = regexp.MustCompile(`\$\{ENV:([^}]+)\}`)

func (c *Config) resolveEnv() error {
	fields := []struct {
		name string
		val  *string
	}{
		{"output.migrations", &c.Output.Migrations},
		{"output.models", &c.Output.Models},
		{"output.report", &c.Output.Report},
		{"laravel.namespace", &c.Laravel.Namespace},
		{"formatter.command", &c.Formatter.Command},
		{"logging.directory", &c.Logging.Directory},
	}
	for _, f := range fields {
		v, err := ResolveValue(*f.val)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.val = v
	}
	for i, p := range c.Pivots {
		v, err := ResolveValue(p)
		if err != nil {
			return fmt.Errorf("pivots[%d]: %w", i, err)
		}
		c.Pivots[i] = v
	}
	return nil
}

// ResolveValue replaces every ${ENV:NAME} reference with the variable's
// value. An unset variable is an error.
func ResolveValue(val string) (string, error) {
	var missing []string
	out := envPattern.ReplaceAllStringFunc(val, func(ref string) string {
		name := envPattern.FindStringSubmatch(ref)[1]
		v, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("environment variable %s not set", strings.Join(missing, ", "))
	}
	return out, nil
}

// LoadEnv loads variables from the given .env files, or ./.env when none is
// given. Variables already set win. Missing files are skipped.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
