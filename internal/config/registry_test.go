package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/muurk/freesat/internal/freesat"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if configDir == "" {
		t.Error("GetConfigDir() returned empty string")
	}

	if !strings.Contains(configDir, "freesat") {
		t.Errorf("GetConfigDir() = %v, should contain 'freesat'", configDir)
	}

	t.Logf("Config directory: %s", configDir)
}

func TestGetConfigDir_XDG(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux and other Unix-like systems")
	}

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if want := filepath.Join(xdg, "freesat"); configDir != want {
		t.Errorf("GetConfigDir() = %v, want %v", configDir, want)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")

	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	override := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv(ConfigPathEnvVar, override)

	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if configPath != override {
		t.Errorf("GetConfigPath() = %v, want %v", configPath, override)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}

	if reg.Devices == nil {
		t.Error("NewRegistry().Devices should not be nil")
	}

	if reg.Preferences == nil {
		t.Fatal("NewRegistry().Preferences should not be nil")
	}

	if reg.Preferences.DiscoverTimeout != 3 {
		t.Errorf("NewRegistry().Preferences.DiscoverTimeout = %v, want 3", reg.Preferences.DiscoverTimeout)
	}
}

func TestRegistryEnsureDevice(t *testing.T) {
	reg := NewRegistry()

	device1 := reg.EnsureDevice("FS-HMX-01A-0000-6A15")
	if device1 == nil {
		t.Fatal("EnsureDevice() returned nil")
	}

	device2 := reg.EnsureDevice("FS-HMX-01A-0000-6A15")
	if device1 != device2 {
		t.Error("EnsureDevice() should return same instance for same identity")
	}

	device3 := reg.EnsureDevice("192.168.1.20")
	if device1 == device3 {
		t.Error("EnsureDevice() should create new instance for different identity")
	}
}

func TestRegistryRememberAddress(t *testing.T) {
	reg := NewRegistry()

	before := time.Now()
	reg.RememberAddress("FS-HMX-01A-0000-6A15", "http://192.168.1.20:55000")
	after := time.Now()

	device := reg.GetDevice("FS-HMX-01A-0000-6A15")
	if device == nil {
		t.Fatal("Device should exist after RememberAddress()")
	}

	if device.LastAddress != "http://192.168.1.20:55000" {
		t.Errorf("LastAddress = %v, want http://192.168.1.20:55000", device.LastAddress)
	}

	if device.LastSeen.Before(before) || device.LastSeen.After(after) {
		t.Errorf("LastSeen = %v, should be between %v and %v", device.LastSeen, before, after)
	}
}

func TestRegistryRegions(t *testing.T) {
	reg := NewRegistry()

	if _, ok := reg.Regions("FS-1"); ok {
		t.Error("Regions() should report false for unknown device")
	}

	reg.RememberRegions("FS-1", freesat.Regions{Primary: "64", Secondary: "3"})
	regions, ok := reg.Regions("FS-1")
	if !ok || regions.Primary != "64" || regions.Secondary != "3" {
		t.Errorf("Regions() = %+v, %v, want 64/3, true", regions, ok)
	}

	reg.ForgetRegions("FS-1")
	if _, ok := reg.Regions("FS-1"); ok {
		t.Error("Regions() should report false after ForgetRegions()")
	}

	reg.RememberRegions("FS-2", freesat.Regions{Primary: "64"})
	if _, ok := reg.Regions("FS-2"); ok {
		t.Error("Regions() should report false for an incomplete pair")
	}
}

func TestRegistryResolveIdentity(t *testing.T) {
	reg := NewRegistry()
	reg.DefaultDevice = "FS-HMX-01A-0000-6A15"
	reg.SetDeviceNickname("FS-HMX-01A-0000-6A15", "Living Room")
	reg.SetDeviceNickname("192.168.1.30", "Bedroom")

	tests := []struct {
		name string
		want string
	}{
		{"", "FS-HMX-01A-0000-6A15"},
		{"Living Room", "FS-HMX-01A-0000-6A15"},
		{"living room", "FS-HMX-01A-0000-6A15"},
		{"  Bedroom ", "192.168.1.30"},
		{"192.168.1.30", "192.168.1.30"},
		{"FS-UNKNOWN", "FS-UNKNOWN"},
		{"10.0.0.5", "10.0.0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reg.ResolveIdentity(tt.name); got != tt.want {
				t.Errorf("ResolveIdentity(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}

	if got := reg.DisplayName("192.168.1.30"); got != "Bedroom (192.168.1.30)" {
		t.Errorf("DisplayName() = %q", got)
	}
	if got := reg.DisplayName("10.0.0.5"); got != "10.0.0.5" {
		t.Errorf("DisplayName() = %q", got)
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	reg, err := LoadRegistryFrom(path)
	if err != nil {
		t.Fatalf("LoadRegistryFrom() on missing file error = %v", err)
	}
	if reg.Path() != path {
		t.Errorf("Path() = %v, want %v", reg.Path(), path)
	}

	reg.DefaultDevice = "FS-HMX-01A-0000-6A15"
	reg.SetDeviceNickname("FS-HMX-01A-0000-6A15", "Living Room")
	reg.RememberAddress("FS-HMX-01A-0000-6A15", "http://192.168.1.20:55000")
	reg.RememberRegions("FS-HMX-01A-0000-6A15", freesat.Regions{Primary: "64", Secondary: "3"})
	reg.Endpoints.NowNext = "http://example.test/nownext/{primary}/{secondary}"
	reg.Bridge = &BridgeConfig{
		Listen:       ":8080",
		PollInterval: 10,
		Devices:      []string{"FS-HMX-01A-0000-6A15"},
		MQTT:         &MQTTConfig{Broker: "tcp://localhost:1883", TopicPrefix: "home/freesat"},
	}

	if err := reg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}
	if leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".config.yaml.*")); len(leftovers) != 0 {
		t.Errorf("temporary files left after Save(): %v", leftovers)
	}

	loaded, err := LoadRegistryFrom(path)
	if err != nil {
		t.Fatalf("LoadRegistryFrom() error = %v", err)
	}

	if loaded.DefaultDevice != "FS-HMX-01A-0000-6A15" {
		t.Errorf("DefaultDevice = %v", loaded.DefaultDevice)
	}
	device := loaded.GetDevice("FS-HMX-01A-0000-6A15")
	if device == nil {
		t.Fatal("Device should exist in loaded registry")
	}
	if device.Nickname != "Living Room" || device.LastAddress != "http://192.168.1.20:55000" {
		t.Errorf("Loaded device = %+v", device)
	}
	if regions, ok := loaded.Regions("FS-HMX-01A-0000-6A15"); !ok || regions.Primary != "64" {
		t.Errorf("Loaded regions = %+v, %v", regions, ok)
	}
	if loaded.Endpoints.NowNext != "http://example.test/nownext/{primary}/{secondary}" {
		t.Errorf("Loaded NowNext endpoint = %v", loaded.Endpoints.NowNext)
	}
	if loaded.Bridge == nil || loaded.Bridge.MQTT == nil || loaded.Bridge.MQTT.TopicPrefix != "home/freesat" {
		t.Errorf("Loaded bridge = %+v", loaded.Bridge)
	}
	if loaded.Bridge.PollIntervalDuration() != 10*time.Second {
		t.Errorf("PollIntervalDuration() = %v, want 10s", loaded.Bridge.PollIntervalDuration())
	}
}

func TestLoadRegistryFrom_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad yaml", content: "version: [1\n"},
		{name: "unsupported version", content: "version: 2\n"},
		{name: "missing version", content: "default_device: lounge\n"},
		{name: "relative endpoint", content: "version: 1\nendpoints:\n  showcase: /ms/showcase\n"},
		{name: "ftp endpoint", content: "version: 1\nendpoints:\n  nownext: ftp://example.test/{primary}\n"},
		{name: "broker without scheme", content: "version: 1\nbridge:\n  mqtt:\n    broker: localhost:1883\n"},
		{name: "broker with http scheme", content: "version: 1\nbridge:\n  mqtt:\n    broker: http://localhost:1883\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := LoadRegistryFrom(path); err == nil {
				t.Error("LoadRegistryFrom() should fail")
			}
		})
	}
}

func TestLoadRegistryFrom_FillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	reg, err := LoadRegistryFrom(path)
	if err != nil {
		t.Fatalf("LoadRegistryFrom() error = %v", err)
	}
	if reg.Devices == nil || reg.Preferences == nil {
		t.Fatal("Devices and Preferences should be initialised")
	}
	if reg.Preferences.RequestTimeoutDuration() != 10*time.Second {
		t.Errorf("RequestTimeoutDuration() = %v, want 10s", reg.Preferences.RequestTimeoutDuration())
	}
}

func TestPreferencesDurations(t *testing.T) {
	var nilPrefs *Preferences
	if nilPrefs.DiscoverTimeoutDuration() != 3*time.Second {
		t.Error("nil Preferences should use default discover timeout")
	}
	if nilPrefs.ProbeTimeoutDuration() != 250*time.Millisecond {
		t.Error("nil Preferences should use default probe timeout")
	}

	p := &Preferences{DiscoverTimeout: 5, ProbeTimeoutMS: 100, RequestTimeout: 2}
	if p.DiscoverTimeoutDuration() != 5*time.Second {
		t.Errorf("DiscoverTimeoutDuration() = %v", p.DiscoverTimeoutDuration())
	}
	if p.ProbeTimeoutDuration() != 100*time.Millisecond {
		t.Errorf("ProbeTimeoutDuration() = %v", p.ProbeTimeoutDuration())
	}
	if p.RequestTimeoutDuration() != 2*time.Second {
		t.Errorf("RequestTimeoutDuration() = %v", p.RequestTimeoutDuration())
	}
}

func BenchmarkEnsureDevice(b *testing.B) {
	reg := NewRegistry()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.EnsureDevice("FS-HMX-01A-0000-6A15")
	}
}
