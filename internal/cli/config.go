// Package cli implements the tcpframed command-line front-end: cobra
// subcommands wired to the tcpsock package's Listener and Dialer, with
// viper handling config-file/flag/env layering.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level static configuration for a tcpframed process.
// Only one of Listen/Dial is exercised, depending on the subcommand.
type Config struct {
	Framing FramingConfig `mapstructure:"framing"`
	Listen  ListenConfig  `mapstructure:"listen"`
	Dial    DialConfig    `mapstructure:"dial"`
	Log     LogConfig     `mapstructure:"log"`
}

// FramingConfig selects and configures the wire codec.
type FramingConfig struct {
	// Mode is one of "size-prefix", "delimiter", "netstring".
	Mode string `mapstructure:"mode"`
	// Delimiter is the byte sequence terminating each message in
	// delimiter mode. Ignored otherwise.
	Delimiter string `mapstructure:"delimiter"`
	// MaxMessageSize caps a single message's encoded or decoded size.
	// Zero selects the codec's own default.
	MaxMessageSize int `mapstructure:"max_message_size"`
	// Concurrency is one of "multi-threaded" (default) or
	// "single-threaded"; see ConcurrencyMode.
	Concurrency string `mapstructure:"concurrency"`
}

// ListenConfig configures the listen subcommand.
type ListenConfig struct {
	Ports          []int `mapstructure:"ports"`
	MaxConnections int   `mapstructure:"max_connections"`
}

// DialConfig configures the dial subcommand.
type DialConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	DialTimeout string `mapstructure:"dial_timeout"`
}

// LogConfig controls the CLI's own logrus output, independent of any
// per-connection Logger passed into the library.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from path (if non-empty), layers
// TCPFRAMED_-prefixed environment variables on top, applies defaults for
// anything still unset, and returns the merged result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("tcpframed")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("framing.mode", "size-prefix")
	v.SetDefault("framing.delimiter", "\n")
	v.SetDefault("framing.max_message_size", 0)
	v.SetDefault("framing.concurrency", "multi-threaded")

	v.SetDefault("listen.ports", []int{9000})
	v.SetDefault("listen.max_connections", 0)

	v.SetDefault("dial.host", "127.0.0.1")
	v.SetDefault("dial.port", 9000)
	v.SetDefault("dial.dial_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func (cfg *Config) validate() error {
	switch cfg.Framing.Mode {
	case "size-prefix", "delimiter", "netstring":
	default:
		return fmt.Errorf("framing.mode must be size-prefix, delimiter, or netstring, got %q", cfg.Framing.Mode)
	}
	if cfg.Framing.Mode == "delimiter" && cfg.Framing.Delimiter == "" {
		return fmt.Errorf("framing.delimiter must be non-empty in delimiter mode")
	}
	switch cfg.Framing.Concurrency {
	case "multi-threaded", "single-threaded":
	default:
		return fmt.Errorf("framing.concurrency must be multi-threaded or single-threaded, got %q", cfg.Framing.Concurrency)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format)
	}
	return nil
}
