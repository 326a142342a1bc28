package config

import "time"

// Config represents the merged settings from flags, SINKSWITCH_* environment
// variables and the optional config file
type Config struct {
	Server  string        `mapstructure:"server"`  // e.g., "unix:/run/user/1000/pulse/native"
	Cookie  string        `mapstructure:"cookie"`  // path to the 256-byte auth cookie
	Timeout time.Duration `mapstructure:"timeout"` // 0 waits forever
	DryRun  bool          `mapstructure:"dry_run"`
	Client  Client        `mapstructure:"client"`
	Log     Log           `mapstructure:"log"`
}

// Client is how the tool introduces itself to the audio server
type Client struct {
	Name    string `mapstructure:"name"`
	ID      string `mapstructure:"id"`
	Icon    string `mapstructure:"icon"`
	Version string `mapstructure:"version"`
}

type Log struct {
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format"` // "auto", "console" or "json"
}
