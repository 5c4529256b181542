package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/freesat/internal/discovery"
	"github.com/muurk/freesat/internal/freesat"
	"github.com/muurk/freesat/internal/keycodes"
	"github.com/muurk/freesat/internal/remote"
)

// Command flags
var (
	scanTimeout    int
	refreshRegions bool
	aliasDefault   bool
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(codeCmd)
	rootCmd.AddCommand(powerCmd)
	rootCmd.AddCommand(localeCmd)
	rootCmd.AddCommand(netflixCmd)
	rootCmd.AddCommand(regionsCmd)
	rootCmd.AddCommand(showcaseCmd)
	rootCmd.AddCommand(ondemandCmd)
	rootCmd.AddCommand(nownextCmd)
	rootCmd.AddCommand(channelsCmd)
	rootCmd.AddCommand(aliasCmd)
	rootCmd.AddCommand(remoteCmd)
}

// scanCmd lists boxes found over SSDP
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Freesat boxes on the network",
	Long: `Scan for Freesat boxes using SSDP (DIAL) discovery.

Every box that answers is listed with its serial number, name, model and
control address. Addresses found are remembered for later commands.`,
	Example: `  # Scan for 3 seconds (default)
  freesat scan

  # Longer scan for slow networks
  freesat scan --scan-timeout 10

  # JSON output for scripting
  freesat scan --format json`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "scan-timeout", 0, "SSDP search window in seconds (default: from config, 3)")
}

func runScan(cmd *cobra.Command, args []string) error {
	sess := newSession(registry)
	if scanTimeout > 0 {
		sess.dispatcher.SSDP.Timeout = time.Duration(scanTimeout) * time.Second
	}

	if outputFormat != "json" {
		fmt.Printf("Scanning for Freesat boxes (timeout: %s)...\n\n", sess.dispatcher.SSDP.Timeout)
	}

	devices, err := sess.dispatcher.SSDP.Browse(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	for _, d := range devices {
		sess.dispatcher.Seed(d.Identity, d.BaseURL)
		sess.remember(d.Identity)
	}

	return output(devices, func() {
		if len(devices) == 0 {
			fmt.Println("No boxes found.")
			fmt.Println("\nTroubleshooting:")
			fmt.Println("  - Ensure the box is switched on (not in deep standby)")
			fmt.Println("  - Check that this computer is on the same network as the box")
			fmt.Println("  - Networks that block multicast need the box's IP address instead")
			fmt.Println("  - Try increasing --scan-timeout for slower networks")
			return
		}

		fmt.Printf("Found %d box(es):\n\n", len(devices))
		for i, d := range devices {
			fmt.Printf("%d. %s\n", i+1, registry.DisplayName(d.Identity))
			if d.FriendlyName != "" {
				fmt.Printf("   Name:    %s\n", d.FriendlyName)
			}
			if d.ModelName != "" {
				fmt.Printf("   Model:   %s %s\n", d.Manufacturer, d.ModelName)
			}
			fmt.Printf("   Address: %s\n", d.BaseURL)
			fmt.Println()
		}
		fmt.Println("Use 'freesat alias <name> <serial> --default' to set a default box")
	})
}

// resolveCmd prints the control address of a box
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a box's control address",
	Example: `  freesat resolve --device FS-HMX-01A-0000-6A15
  freesat resolve --device 192.168.1.20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := newSession(registry)
		identity, err := sess.requireDevice()
		if err != nil {
			return err
		}

		// Start from a fresh lookup so the answer reflects the network now
		sess.dispatcher.Invalidate(identity)
		base, err := sess.client.Address(cmd.Context(), identity)
		if err != nil {
			return err
		}
		sess.remember(identity)

		strategy := discovery.StrategyPortScan
		if discovery.IsSerial(identity) {
			strategy = discovery.StrategySSDP
		}

		return output(map[string]string{"identity": identity, "address": base, "strategy": strategy}, func() {
			fmt.Printf("%s -> %s (%s)\n", registry.DisplayName(identity), base, strategy)
		})
	},
}

// keysCmd lists the key table
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the remote-control key names",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := keycodes.Names()
		return output(keycodes.All(), func() {
			for _, name := range names {
				fmt.Printf("  %-14s %d\n", name, keycodes.MustLookup(name))
			}
		})
	},
}

// keyCmd sends keys
var keyCmd = &cobra.Command{
	Use:   "key <keys>...",
	Short: "Send remote-control keys",
	Long: `Send one or more remote-control keys to a box.

Each argument is either a key name ("Play", "Volume Up", "Channel Up") or a
string of single-character keys, so "702" presses 7, 0 and 2. Arguments are
sent in order and sending stops at the first key the box rejects.

Run 'freesat keys' for the full list of key names.`,
	Example: `  # Play
  freesat key Play

  # Change to channel 702
  freesat key 702

  # Open the guide and move down twice
  freesat key Guide Down Down OK`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := newSession(registry)
		identity, err := sess.requireDevice()
		if err != nil {
			return err
		}
		defer sess.remember(identity)

		for _, keys := range args {
			if err := sess.client.SendKeys(cmd.Context(), identity, keys); err != nil {
				return err
			}
			if outputFormat != "json" {
				fmt.Printf("✓ Sent %q to %s\n", keys, registry.DisplayName(identity))
			}
		}

		if outputFormat == "json" {
			return printJSON(map[string]any{"identity": identity, "sent": args})
		}
		return nil
	},
}

// codeCmd sends a raw key code
var codeCmd = &cobra.Command{
	Use:   "code <n>",
	Short: "Send a raw key code",
	Long: `Send a raw HbbTV key code to a box and print its answer.

Unlike 'key', the box's answer is reported whatever its status, which makes
this useful for trying codes that are not in the key table.`,
	Example: `  freesat code 415`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := strconv.Atoi(args[0])
		if err != nil || code < 0 {
			return fmt.Errorf("invalid key code %q", args[0])
		}

		sess := newSession(registry)
		identity, err := sess.requireDevice()
		if err != nil {
			return err
		}
		defer sess.remember(identity)

		resp, err := sess.client.SendCode(cmd.Context(), identity, code)
		if err != nil {
			return err
		}

		return output(resp, func() {
			mark := "✓"
			if !resp.Accepted() {
				mark = "✗"
			}
			name := keycodes.NameFor(code)
			if name == "" {
				name = "unnamed"
			}
			fmt.Printf("%s Code %d (%s): %s\n", mark, code, name, resp.Status)
			if resp.Body != "" {
				fmt.Printf("  %s\n", resp.Body)
			}
		})
	},
}

// powerCmd prints the power state
var powerCmd = &cobra.Command{
	Use:   "power",
	Short: "Show the box's power state",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := newSession(registry)
		identity, err := sess.requireDevice()
		if err != nil {
			return err
		}
		defer sess.remember(identity)

		status, err := sess.client.PowerStatus(cmd.Context(), identity)
		if err != nil {
			return err
		}

		return output(status, func() {
			fmt.Printf("%s: %s", registry.DisplayName(identity), status.State())
			if status.Transitioning() {
				fmt.Printf(" (changing to %s)", status.Power.TransitioningTo)
			}
			fmt.Println()
		})
	},
}

// localeCmd prints serial, postcode and tuner count
var localeCmd = &cobra.Command{
	Use:   "locale",
	Short: "Show the box's serial number, postcode and tuner count",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := newSession(registry)
		identity, err := sess.requireDevice()
		if err != nil {
			return err
		}
		defer sess.remember(identity)

		locale, err := sess.client.Locale(cmd.Context(), identity)
		if err != nil {
			return err
		}

		return output(locale, func() {
			fmt.Printf("Serial:   %s\n", locale.DeviceID())
			fmt.Printf("Postcode: %s\n", locale.Postcode())
			fmt.Printf("Tuners:   %d\n", locale.Locale.Tuners)
		})
	},
}

// netflixCmd prints the Netflix DIAL app state
var netflixCmd = &cobra.Command{
	Use:   "netflix",
	Short: "Show the state of the Netflix app",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := newSession(registry)
		identity, err := sess.requireDevice()
		if err != nil {
			return err
		}
		defer sess.remember(identity)

		app, err := sess.client.NetflixStatus(cmd.Context(), identity)
		if err != nil {
			return err
		}

		return output(app, func() {
			fmt.Printf("%s: %s\n", app.Name, app.State)
			if app.DialVersion != "" {
				fmt.Printf("DIAL version: %s\n", app.DialVersion)
			}
		})
	},
}

// regionsCmd prints the region pair
var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Show the box's region pair",
	Long: `Show the primary and secondary region the regional programme services
are keyed on. The pair is looked up from the box's postcode once and then
remembered; --refresh forces a fresh lookup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := newSession(registry)
		identity, err := sess.requireDevice()
		if err != nil {
			return err
		}

		if refreshRegions {
			sess.client.ForgetRegions(identity)
			registry.ForgetRegions(identity)
		}
		defer sess.remember(identity)

		regions, err := sess.client.Regions(cmd.Context(), identity)
		if err != nil {
			return err
		}

		return output(regions, func() {
			fmt.Printf("Primary region:   %s\n", regions.Primary)
			fmt.Printf("Secondary region: %s\n", regions.Secondary)
		})
	},
}

func init() {
	regionsCmd.Flags().BoolVar(&refreshRegions, "refresh", false, "Look the region pair up again")
}

// regionalCommand builds a command printing one regional content document
func regionalCommand(use, short string, fetch func(*freesat.Client, context.Context, string) (json.RawMessage, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := newSession(registry)
			identity, err := sess.requireDevice()
			if err != nil {
				return err
			}
			defer sess.remember(identity)

			raw, err := fetch(sess.client, cmd.Context(), identity)
			if err != nil {
				return err
			}
			return printRawJSON(raw)
		},
	}
}

var (
	showcaseCmd = regionalCommand("showcase", "Show the regional showcase events", (*freesat.Client).ShowcaseEvents)
	ondemandCmd = regionalCommand("ondemand", "Show the regional on-demand apps", (*freesat.Client).OnDemandApps)
	nownextCmd  = regionalCommand("nownext", "Show now and next for every channel", (*freesat.Client).NowNextAll)
	channelsCmd = regionalCommand("channels", "Show the regional channel list", (*freesat.Client).ChannelList)
)

// aliasCmd names a box
var aliasCmd = &cobra.Command{
	Use:   "alias <nickname> <identity>",
	Short: "Give a box a nickname",
	Example: `  freesat alias lounge FS-HMX-01A-0000-6A15 --default
  freesat alias bedroom 192.168.1.30`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		nickname, identity := args[0], args[1]

		registry.SetDeviceNickname(identity, nickname)
		if aliasDefault {
			registry.DefaultDevice = identity
		}
		if err := registry.Save(); err != nil {
			return fmt.Errorf("failed to save configuration: %w", err)
		}

		fmt.Printf("✓ %s is now %q", identity, nickname)
		if aliasDefault {
			fmt.Print(" (default)")
		}
		fmt.Println()
		return nil
	},
}

func init() {
	aliasCmd.Flags().BoolVar(&aliasDefault, "default", false, "Also make this the default box")
}

// remoteCmd launches the interactive remote
var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Launch the interactive remote control",
	Long: `Launch a full-screen remote control in the terminal.

Arrow keys move, enter is OK, backspace is Back, digits change channel and
? shows every binding. Without --device or a default box, the boxes on the
network are listed to choose from.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := newSession(registry)
		identity := registry.ResolveIdentity(deviceFlag)
		if identity == "" {
			device, err := remote.Pick(cmd.Context(), sess.dispatcher.SSDP, registry.DisplayName)
			if errors.Is(err, remote.ErrNoDeviceChosen) {
				return nil
			}
			if err != nil {
				return err
			}
			identity = device.Identity
			sess.dispatcher.Seed(identity, device.BaseURL)
		}
		defer sess.remember(identity)

		return remote.Run(cmd.Context(), sess.client, identity, registry.DisplayName(identity))
	},
}
