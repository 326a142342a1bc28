package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SINKSWITCH"

var defaults = map[string]any{
	"server":         "",
	"cookie":         "",
	"timeout":        "0s",
	"dry_run":        false,
	"client.name":    "sinkswitch",
	"client.id":      "sinkswitch",
	"client.icon":    "audio-card",
	"client.version": "dev",
	"log.level":      "info",
	"log.format":     "auto",
}

// flagKeys maps config keys to the command-line flags that override them.
var flagKeys = map[string]string{
	"server":     "server",
	"cookie":     "cookie",
	"timeout":    "timeout",
	"dry_run":    "dry-run",
	"log.level":  "log-level",
	"log.format": "log-format",
}

// Load reads the configuration. filename may be empty, in which case
// $XDG_CONFIG_HOME/sinkswitch/config.yaml is used if it exists. Flags that
// were set on the command line take precedence over the environment, which
// takes precedence over the file.
func Load(filename string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("unable to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if filename != "" {
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found", filename)
			}
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else if dir, err := os.UserConfigDir(); err == nil {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(dir, "sinkswitch"))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that cannot work.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "auto", "console", "json":
	default:
		return fmt.Errorf("unknown log format %q (want auto, console or json)", c.Log.Format)
	}
	if strings.TrimSpace(c.Client.Name) == "" {
		return errors.New("client name must not be empty")
	}
	return nil
}
