// Command kecontact drives KEBA KeContact charging stations (and OEM
// derivatives) over their UDP protocol.
//
// Usage:
//
//	kecontact discover [--broadcast addr]
//	kecontact connect <host>
//	kecontact emulate [--listen addr]
//	kecontact version
//
// Global flags:
//
//	--config path   YAML configuration file
//	--bind addr     local address to bind the UDP socket to
//	--debug         enable debug logging
//
// connect sets the station up, starts background polling and drops into an
// interactive prompt; type "help" there for the command list.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kecontact/kecontact-go/pkg/connection"
)

var (
	flagConfig string
	flagBind   string
	flagDebug  bool
)

var rootCmd = &cobra.Command{
	Use:           "kecontact",
	Short:         "Drive KEBA KeContact charging stations over UDP",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&flagBind, "bind", "", "local address to bind the UDP socket to")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger every subcommand
// shares.
func setup() (Config, zerolog.Logger, error) {
	cfg, err := LoadConfig(flagConfig)
	if err != nil {
		return Config{}, zerolog.Nop(), err
	}
	if flagBind != "" {
		cfg.BindAddress = flagBind
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return Config{}, zerolog.Nop(), fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	if flagDebug {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger().
		Level(level)
	return cfg, logger, nil
}

// newManager builds and starts a connection manager from the CLI config.
func newManager(cfg Config, logger zerolog.Logger, timeout duration) (*connection.Manager, error) {
	m, err := connection.New(cfg.managerConfig(logger, timeout))
	if err != nil {
		return nil, err
	}
	if err := m.Start(); err != nil {
		return nil, err
	}
	return m, nil
}
