// Freesat is a command-line remote control for Freesat set-top boxes.
//
// It finds boxes on the local network by serial number (SSDP/DIAL) or IP
// address (port scan), sends remote-control keys, reads the box's power and
// locale state, queries the regional programme services, and can run an
// HTTP/MQTT bridge for home automation.
//
// Usage:
//
//	freesat [command] [flags]
//
// See 'freesat --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/freesat/internal/config"
	"github.com/muurk/freesat/internal/freesat"
	"github.com/muurk/freesat/internal/logging"
	"github.com/muurk/freesat/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := freesat.GetTroubleshootingHint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "\n%s\n", hint)
		}
		os.Exit(1)
	}
}

// Global flags
var (
	deviceFlag   string
	timeoutFlag  int
	outputFormat string
	configPath   string
	logLevel     string
	logFormat    string
)

// registry is loaded once per invocation by the root pre-run hook
var registry *config.Registry

var rootCmd = &cobra.Command{
	Use:   "freesat",
	Short: "Freesat set-top box remote control",
	Long: `A command-line remote control for Freesat set-top boxes.

Boxes are addressed by serial number (e.g. FS-HMX-01A-0000-6A15), found over
SSDP, or by IP address, in which case the control port is found by scanning.
Nicknames set with 'freesat alias' can be used anywhere an identity is expected.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Configure(logLevel, logFormat); err != nil {
			return err
		}

		var err error
		if configPath != "" {
			registry, err = config.LoadRegistryFrom(configPath)
		} else {
			registry, err = config.LoadRegistry()
		}
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		switch outputFormat {
		case "detailed", "json":
		default:
			return fmt.Errorf("unknown format %q (expected detailed or json)", outputFormat)
		}
		return nil
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&deviceFlag, "device", "d", "", "Box serial number, IP address or nickname (default: configured default device)")
	rootCmd.PersistentFlags().IntVar(&timeoutFlag, "timeout", 0, "HTTP request timeout in seconds (default: from config, 10)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: platform config dir, or $"+config.ConfigPathEnvVar+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log encoding (console, json; default: $"+logging.LogFormatEnvVar+" or console)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		return output(info, func() {
			fmt.Printf("freesat %s\n", version.Full())
			fmt.Printf("  %s %s\n", info.GoVersion, info.Platform)
		})
	},
}
