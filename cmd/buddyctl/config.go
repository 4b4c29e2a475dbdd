package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/kelseyhightower/envconfig"
	"github.com/vkngwrapper/pagealloc/buddy"
	"golang.org/x/exp/slog"
	"gopkg.in/yaml.v2"
)

const (
	envVarPrefix = "BUDDYCTL"
	appName      = "buddyctl"
)

type Config struct {
	LogLevel     string `envconfig:"LOG_LEVEL"    yaml:"logLevel"`
	LogFormat    string `envconfig:"LOG_FORMAT"   yaml:"logFormat"`
	Synchronized bool   `envconfig:"SYNCHRONIZED" yaml:"synchronized"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// LoadConfig reads the yaml config file, if there is one, and then applies BUDDYCTL_* environment
// variables on top of it. An empty path falls back to BUDDYCTL_CONFIG_FILE and then to
// buddyctl.yaml in the user config directory.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(envVarPrefix + "_CONFIG_FILE")
	}
	if path == "" {
		dir, err := os.UserConfigDir()
		if err == nil {
			path = filepath.Join(dir, appName+".yaml")
		}
	}

	c := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "reading config file")
		}

		if err == nil {
			if err := yaml.UnmarshalStrict(data, &c); err != nil {
				return nil, errors.Wrap(err, "unmarshaling config file")
			}
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, errors.Wrap(err, "parsing environment variables")
	}

	return &c, c.Validate()
}

func (c *Config) Validate() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return errors.Wrapf(err, "invalid logLevel / %s_LOG_LEVEL", envVarPrefix)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return errors.Newf("invalid logFormat / %s_LOG_FORMAT %q: must be text or json", envVarPrefix, c.LogFormat)
	}

	return nil
}

// Logger builds the diagnostic logger described by the config. Allocator debug output only shows
// up at the debug level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	// Validate has already rejected unparseable levels
	_ = level.UnmarshalText([]byte(c.LogLevel))

	options := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, options))
	}
	return slog.New(slog.NewTextHandler(w, options))
}

func (c *Config) CreateOptions() buddy.CreateOptions {
	var options buddy.CreateOptions
	if c.Synchronized {
		options.Flags |= buddy.CreateSynchronized
	}
	return options
}
