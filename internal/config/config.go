// Package config loads ftgen settings from ftgen.yaml, FTGEN_* environment
// variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/chriserin/ftgen/internal/catalog"
	"github.com/chriserin/ftgen/internal/parser"
)

const (
	// Dir holds the template, the history database and optionally the
	// config file.
	Dir       = "ftgen"
	FileName  = "ftgen.yaml"
	EnvPrefix = "FTGEN"
)

type Config struct {
	Features    []string `mapstructure:"features" yaml:"features"`
	Steps       []string `mapstructure:"steps" yaml:"steps"`
	Sources     []string `mapstructure:"sources" yaml:"sources,omitempty"`
	Template    string   `mapstructure:"template" yaml:"template,omitempty"`
	TemplateDir string   `mapstructure:"template_dir" yaml:"template_dir,omitempty"`
	Output      string   `mapstructure:"output" yaml:"output,omitempty"`
	Package     string   `mapstructure:"package" yaml:"package,omitempty"`
	Parser      string   `mapstructure:"parser" yaml:"parser"`
	Parallel    int      `mapstructure:"parallel" yaml:"parallel,omitempty"`
	Format      bool     `mapstructure:"format" yaml:"format"`
	DebugCRIF   bool     `mapstructure:"debug_crif" yaml:"debug_crif,omitempty"`
	// History is the run history database; empty disables it.
	History string `mapstructure:"history" yaml:"history,omitempty"`

	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`
}

// New returns a viper instance with defaults, the config search path and
// environment binding set up. Callers bind flags before calling Load.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigName(strings.TrimSuffix(FileName, ".yaml"))
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(Dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("features", []string{"features"})
	v.SetDefault("steps", []string{"."})
	v.SetDefault("sources", []string{})
	v.SetDefault("template", "")
	v.SetDefault("template_dir", "")
	v.SetDefault("output", "")
	v.SetDefault("package", "")
	v.SetDefault("parser", "native")
	v.SetDefault("parallel", 0)
	v.SetDefault("format", true)
	v.SetDefault("debug_crif", false)
	v.SetDefault("history", "")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
}

// Defaults returns the settings used when nothing overrides them.
func Defaults() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// LoadEnv loads a .env file into the environment when one exists.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads the config file, if any, and returns the validated settings.
// file overrides the search path.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", c.Log.Format)
	}
	if _, err := parser.New(c.Parser); err != nil {
		return err
	}
	if _, err := catalog.Extractors(c.Sources); err != nil {
		return err
	}
	if c.Parallel < 0 {
		return fmt.Errorf("parallel must not be negative, got: %d", c.Parallel)
	}
	if len(c.Features) == 0 {
		return fmt.Errorf("features must name at least one path")
	}
	if c.Template != "" && c.TemplateDir != "" {
		return fmt.Errorf("template and template_dir are mutually exclusive")
	}
	return nil
}

// Write saves c as YAML.
func Write(path string, c *Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
