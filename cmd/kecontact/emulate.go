package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kecontact/kecontact-go/pkg/emulator"
)

var (
	flagEmulateListen  string
	flagEmulateSerial  string
	flagEmulateProduct string
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Run a charging station emulator",
	Long: `Answers probes, report requests and commands the way a real station
does. Useful for testing clients without hardware.`,
	Args: cobra.NoArgs,
	RunE: runEmulate,
}

func init() {
	emulateCmd.Flags().StringVar(&flagEmulateListen, "listen", "0.0.0.0", "address to listen on")
	emulateCmd.Flags().StringVar(&flagEmulateSerial, "serial", "", "serial number to report")
	emulateCmd.Flags().StringVar(&flagEmulateProduct, "product", "", "product designation to report")
	rootCmd.AddCommand(emulateCmd)
}

func runEmulate(_ *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	em := emulator.New(emulator.Config{
		ListenAddress: flagEmulateListen,
		Port:          cfg.Port,
		Serial:        flagEmulateSerial,
		Product:       flagEmulateProduct,
		Logger:        logger,
	})
	if err := em.Start(); err != nil {
		return err
	}
	defer em.Close()

	fmt.Printf("Emulator listening on %s\n", em.Addr())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs
	return nil
}
