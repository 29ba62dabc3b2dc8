package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/kecontact/kecontact-go/pkg/connection"
	"github.com/kecontact/kecontact-go/pkg/station"
	"github.com/kecontact/kecontact-go/pkg/transport"
)

// Config is the CLI configuration, loadable from a YAML file. Durations are
// written as Go duration strings ("3s", "100ms").
type Config struct {
	BindAddress string `yaml:"bind_address"`
	BindPort    int    `yaml:"bind_port"`
	Port        int    `yaml:"port"`

	DiscoveryTimeout duration `yaml:"discovery_timeout"`
	SetupTimeout     duration `yaml:"setup_timeout"`
	MinSendSpacing   duration `yaml:"min_send_spacing"`

	PollInterval     duration `yaml:"poll_interval"`
	FastPollInterval duration `yaml:"fast_poll_interval"`

	LogLevel string `yaml:"log_level"`
}

// duration wraps time.Duration with YAML string decoding.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = duration(parsed)
	return nil
}

// DefaultCLIConfig returns the built-in defaults.
func DefaultCLIConfig() Config {
	return Config{
		BindAddress:      "0.0.0.0",
		BindPort:         transport.DefaultPort,
		Port:             transport.DefaultPort,
		DiscoveryTimeout: duration(connection.DefaultTimeout),
		SetupTimeout:     duration(connection.DefaultTimeout),
		MinSendSpacing:   duration(transport.DefaultMinSendSpacing),
		PollInterval:     duration(station.DefaultInterval),
		FastPollInterval: duration(station.DefaultFastInterval),
		LogLevel:         "info",
	}
}

// LoadConfig returns the defaults, overlaid with the YAML file at path if
// one is given.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultCLIConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// managerConfig maps the CLI config onto a manager config; the timeout is
// the one relevant to the subcommand (discovery window or setup handshake).
func (c Config) managerConfig(logger zerolog.Logger, timeout duration) connection.Config {
	mc := connection.DefaultConfig()
	mc.BindAddress = c.BindAddress
	mc.BindPort = c.BindPort
	mc.Port = c.Port
	mc.Timeout = time.Duration(timeout)
	mc.MinSendSpacing = time.Duration(c.MinSendSpacing)
	mc.Logger = logger
	return mc
}

func (c Config) stationOptions() station.Options {
	opts := station.DefaultOptions()
	opts.Interval = time.Duration(c.PollInterval)
	opts.FastInterval = time.Duration(c.FastPollInterval)
	return opts
}
