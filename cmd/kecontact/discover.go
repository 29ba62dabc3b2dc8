package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	flagBroadcast       string
	flagDiscoverTimeout time.Duration
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Probe the local network for charging stations",
	Long: `Sends a broadcast probe and lists every station that answers within
the discovery window, then identifies each one.`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().StringVar(&flagBroadcast, "broadcast", "255.255.255.255", "broadcast address to probe")
	discoverCmd.Flags().DurationVar(&flagDiscoverTimeout, "timeout", 0, "discovery collection window (default from config)")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	timeout := cfg.DiscoveryTimeout
	if flagDiscoverTimeout > 0 {
		timeout = duration(flagDiscoverTimeout)
	}

	m, err := newManager(cfg, logger, timeout)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx := cmd.Context()
	hosts, err := m.Discover(ctx, flagBroadcast)
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		fmt.Println("No charging stations found.")
		return nil
	}

	for _, host := range hosts {
		info, err := m.Identify(ctx, host)
		if err != nil {
			logger.Warn().Str("host", host).Err(err).Msg("identification failed")
			fmt.Printf("%-15s  (identification failed)\n", host)
			continue
		}
		fmt.Printf("%-15s  %s %s  serial %s  firmware %s\n",
			host, info.Manufacturer, info.Model, info.Serial, info.Firmware)
	}
	return nil
}
