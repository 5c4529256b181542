package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/freesat/internal/bridge"
	"github.com/muurk/freesat/internal/config"
	"github.com/muurk/freesat/internal/logging"
	"github.com/muurk/freesat/internal/mqttbridge"
)

// Bridge command flags
var (
	bridgeListen     string
	bridgeAdvertise  bool
	bridgePoll       int
	bridgeMQTTBroker string
	bridgeMQTTPrefix string
	bridgeDevices    []string
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the HTTP/MQTT bridge for home automation",
	Long: `Run a long-lived bridge that exposes Freesat boxes to home automation.

The HTTP side serves a JSON API under /api, a WebSocket power event stream
and Prometheus metrics on /metrics. With --advertise the bridge registers
itself over mDNS as ` + bridge.ServiceType + `.

When an MQTT broker is configured the bridge also subscribes to key commands
and publishes each box's power state. Boxes bridged over MQTT come from
--mqtt-device, the bridge.devices setting, or every known box.

Settings not given as flags are read from the bridge section of the
configuration file.`,
	Example: `  # HTTP only
  freesat bridge --listen :8080

  # HTTP plus MQTT for the lounge box
  freesat bridge --mqtt-broker tcp://192.168.1.10:1883 --mqtt-device lounge

  # Announce the bridge over mDNS
  freesat bridge --advertise`,
	RunE: runBridge,
}

func init() {
	bridgeCmd.Flags().StringVar(&bridgeListen, "listen", "", "HTTP listen address (default: from config, "+bridge.DefaultListen+")")
	bridgeCmd.Flags().BoolVar(&bridgeAdvertise, "advertise", false, "Advertise the bridge over mDNS")
	bridgeCmd.Flags().IntVar(&bridgePoll, "poll", 0, "Power poll interval in seconds (default: from config, 5)")
	bridgeCmd.Flags().StringVar(&bridgeMQTTBroker, "mqtt-broker", "", "MQTT broker URL, e.g. tcp://host:1883 (default: from config)")
	bridgeCmd.Flags().StringVar(&bridgeMQTTPrefix, "mqtt-prefix", "", "MQTT topic prefix (default: "+mqttbridge.DefaultTopicPrefix+")")
	bridgeCmd.Flags().StringSliceVar(&bridgeDevices, "mqtt-device", nil, "Box to bridge over MQTT (repeatable)")

	rootCmd.AddCommand(bridgeCmd)
}

func runBridge(cmd *cobra.Command, args []string) error {
	settings := registry.Bridge
	if settings == nil {
		settings = &config.BridgeConfig{}
	}

	pollInterval := settings.PollIntervalDuration()
	if bridgePoll > 0 {
		pollInterval = time.Duration(bridgePoll) * time.Second
	}

	httpConfig := bridge.Config{
		Listen:       settings.Listen,
		Advertise:    settings.Advertise || bridgeAdvertise,
		PollInterval: pollInterval,
	}
	if bridgeListen != "" {
		httpConfig.Listen = bridgeListen
	}

	mqttConfig := mqttSettings(settings)

	sess := newSession(registry)

	var (
		mqtt    *mqttbridge.Bridge
		devices []string
	)
	if mqttConfig != nil {
		devices = bridgedDevices(settings)
		if len(devices) == 0 {
			return fmt.Errorf("MQTT is configured but no boxes are known: pass --mqtt-device or set a default device")
		}

		topics := mqttbridge.NewTopics(mqttConfig.TopicPrefix)
		broker, err := mqttbridge.ConnectPaho(mqttbridge.BrokerConfig{
			URL:      mqttConfig.Broker,
			ClientID: mqttConfig.ClientID,
			Username: mqttConfig.Username,
			Password: mqttConfig.Password,
		}, topics)
		if err != nil {
			return err
		}
		defer broker.Close()

		logging.Info("Bridging boxes over MQTT",
			zap.Strings("devices", devices),
			zap.String("prefix", topics.Prefix),
		)
		mqtt = mqttbridge.New(broker, sess.client, topics, devices, pollInterval)
	}

	server := bridge.New(httpConfig, sess.client)
	g, ctx := errgroup.WithContext(cmd.Context())

	g.Go(func() error {
		return server.Start(ctx)
	})
	if mqtt != nil {
		g.Go(func() error {
			return mqtt.Run(ctx)
		})
	}

	err := g.Wait()
	for identity := range registry.Devices {
		sess.remember(identity)
	}
	return err
}

// mqttSettings merges the MQTT flags over the configured broker. It returns
// nil when no broker is set anywhere.
func mqttSettings(settings *config.BridgeConfig) *config.MQTTConfig {
	var cfg config.MQTTConfig
	if settings.MQTT != nil {
		cfg = *settings.MQTT
	}
	if bridgeMQTTBroker != "" {
		cfg.Broker = bridgeMQTTBroker
	}
	if bridgeMQTTPrefix != "" {
		cfg.TopicPrefix = bridgeMQTTPrefix
	}
	if cfg.Broker == "" {
		return nil
	}
	if cfg.ClientID == "" {
		host, _ := os.Hostname()
		cfg.ClientID = "freesat-bridge"
		if host != "" {
			cfg.ClientID += "-" + host
		}
	}
	return &cfg
}

// bridgedDevices picks the identities bridged over MQTT, resolving nicknames
func bridgedDevices(settings *config.BridgeConfig) []string {
	names := bridgeDevices
	if len(names) == 0 {
		names = settings.Devices
	}
	if len(names) == 0 && registry.DefaultDevice != "" {
		names = []string{registry.DefaultDevice}
	}
	if len(names) == 0 {
		for identity := range registry.Devices {
			names = append(names, identity)
		}
		sort.Strings(names)
	}

	seen := make(map[string]bool, len(names))
	devices := make([]string, 0, len(names))
	for _, name := range names {
		identity := registry.ResolveIdentity(name)
		if identity == "" || seen[identity] {
			continue
		}
		seen[identity] = true
		devices = append(devices, identity)
	}
	return devices
}
