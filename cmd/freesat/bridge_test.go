package main

import (
	"reflect"
	"strings"
	"testing"

	"github.com/muurk/freesat/internal/config"
	"github.com/muurk/freesat/internal/freesat"
)

// withRegistry swaps the package registry and flag globals for one test
func withRegistry(t *testing.T, reg *config.Registry) {
	t.Helper()
	saved := registry
	savedDevices, savedBroker, savedPrefix := bridgeDevices, bridgeMQTTBroker, bridgeMQTTPrefix
	registry = reg
	t.Cleanup(func() {
		registry = saved
		bridgeDevices, bridgeMQTTBroker, bridgeMQTTPrefix = savedDevices, savedBroker, savedPrefix
	})
}

func testRegistry() *config.Registry {
	reg := config.NewRegistry()
	reg.SetDeviceNickname("FS-HMX-01A-0000-6A15", "lounge")
	reg.SetDeviceNickname("192.168.1.30", "bedroom")
	return reg
}

func TestBridgedDevices(t *testing.T) {
	tests := []struct {
		name     string
		flags    []string
		settings []string
		def      string
		want     []string
	}{
		{
			name:  "flags resolve nicknames",
			flags: []string{"lounge", "Bedroom"},
			want:  []string{"FS-HMX-01A-0000-6A15", "192.168.1.30"},
		},
		{
			name:     "configured devices",
			settings: []string{"bedroom"},
			want:     []string{"192.168.1.30"},
		},
		{
			name: "default device",
			def:  "FS-HMX-01A-0000-6A15",
			want: []string{"FS-HMX-01A-0000-6A15"},
		},
		{
			name: "every known box",
			want: []string{"192.168.1.30", "FS-HMX-01A-0000-6A15"},
		},
		{
			name:  "duplicates dropped",
			flags: []string{"lounge", "FS-HMX-01A-0000-6A15"},
			want:  []string{"FS-HMX-01A-0000-6A15"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := testRegistry()
			reg.DefaultDevice = tt.def
			withRegistry(t, reg)
			bridgeDevices = tt.flags

			got := bridgedDevices(&config.BridgeConfig{Devices: tt.settings})
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("bridgedDevices() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMQTTSettings(t *testing.T) {
	withRegistry(t, testRegistry())

	bridgeMQTTBroker, bridgeMQTTPrefix = "", ""
	if cfg := mqttSettings(&config.BridgeConfig{}); cfg != nil {
		t.Errorf("mqttSettings() = %+v, want nil without a broker", cfg)
	}

	settings := &config.BridgeConfig{MQTT: &config.MQTTConfig{
		Broker:      "tcp://configured:1883",
		ClientID:    "living-room",
		TopicPrefix: "home/tv",
	}}
	cfg := mqttSettings(settings)
	if cfg == nil || cfg.Broker != "tcp://configured:1883" || cfg.ClientID != "living-room" || cfg.TopicPrefix != "home/tv" {
		t.Fatalf("mqttSettings() = %+v", cfg)
	}

	bridgeMQTTBroker, bridgeMQTTPrefix = "tcp://flag:1883", "flag"
	settings.MQTT.ClientID = ""
	cfg = mqttSettings(settings)
	if cfg.Broker != "tcp://flag:1883" || cfg.TopicPrefix != "flag" {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if !strings.HasPrefix(cfg.ClientID, "freesat-bridge") {
		t.Errorf("ClientID = %q, want freesat-bridge prefix", cfg.ClientID)
	}
	if settings.MQTT.Broker != "tcp://configured:1883" {
		t.Error("mqttSettings() modified the configuration")
	}
}

func TestNewSession_SeedsFromRegistry(t *testing.T) {
	reg := testRegistry()
	reg.RememberAddress("FS-HMX-01A-0000-6A15", "http://192.168.1.20:8080")
	reg.RememberRegions("FS-HMX-01A-0000-6A15", freesat.Regions{Primary: "64", Secondary: "3"})

	sess := newSession(reg)

	if base, ok := sess.dispatcher.Cached("FS-HMX-01A-0000-6A15"); !ok || base != "http://192.168.1.20:8080" {
		t.Errorf("Cached() = %q, %v", base, ok)
	}
	if regions, ok := sess.client.CachedRegions("FS-HMX-01A-0000-6A15"); !ok || regions.Primary != "64" {
		t.Errorf("CachedRegions() = %+v, %v", regions, ok)
	}
	if _, ok := sess.dispatcher.Cached("192.168.1.30"); ok {
		t.Error("box without an address should not be seeded")
	}
}

func TestRequireDevice(t *testing.T) {
	reg := testRegistry()
	sess := newSession(reg)

	saved := deviceFlag
	t.Cleanup(func() { deviceFlag = saved })

	deviceFlag = ""
	if _, err := sess.requireDevice(); err == nil {
		t.Error("requireDevice() should fail with no device and no default")
	}

	deviceFlag = "bedroom"
	if id, err := sess.requireDevice(); err != nil || id != "192.168.1.30" {
		t.Errorf("requireDevice() = %q, %v", id, err)
	}
}
