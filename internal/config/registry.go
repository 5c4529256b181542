package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "freesat"
	configFile = "config.yaml"

	// currentVersion is the only file layout this package reads and writes
	currentVersion = 1

	// ConfigPathEnvVar overrides the configuration file location
	ConfigPathEnvVar = "FREESAT_CONFIG"
)

// fileMutex serialises reads and writes of configuration files
var fileMutex sync.Mutex

// brokerSchemes are the URL schemes paho accepts for a broker
var brokerSchemes = map[string]bool{
	"tcp": true, "mqtt": true, "ssl": true, "tls": true, "mqtts": true, "ws": true, "wss": true,
}

// GetConfigDir returns the directory holding the configuration file:
// $HOME/.config/freesat on macOS, $XDG_CONFIG_HOME/freesat (or
// $HOME/.config/freesat) on Linux and %AppData%\freesat on Windows.
func GetConfigDir() (string, error) {
	if runtime.GOOS == "darwin" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(home, ".config", appName), nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine configuration directory: %w", err)
	}
	return filepath.Join(base, appName), nil
}

// GetConfigPath returns the full path to the configuration file.
// FREESAT_CONFIG, when set, wins over the platform location.
func GetConfigPath() (string, error) {
	if override := os.Getenv(ConfigPathEnvVar); override != "" {
		return override, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// LoadRegistry loads the registry from the default location.
// A missing file yields an empty registry.
func LoadRegistry() (*Registry, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadRegistryFrom(path)
}

// LoadRegistryFrom loads the registry from path.
// A missing file yields an empty registry that saves to path.
func LoadRegistryFrom(path string) (*Registry, error) {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		reg := NewRegistry()
		reg.path = path
		return reg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	reg := &Registry{}
	if err := yaml.Unmarshal(data, reg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if reg.Version != currentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", reg.Version, currentVersion)
	}
	if err := reg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	if reg.Devices == nil {
		reg.Devices = make(map[string]*Device)
	}
	if reg.Preferences == nil {
		reg.Preferences = defaultPreferences()
	}
	reg.path = path
	return reg, nil
}

// validate checks the settings that would otherwise only fail deep inside a
// request: endpoint templates and the MQTT broker URL
func (r *Registry) validate() error {
	templates := map[string]string{
		"endpoints.postcode_lookup": r.Endpoints.PostcodeLookup,
		"endpoints.showcase":        r.Endpoints.Showcase,
		"endpoints.ondemand":        r.Endpoints.OnDemand,
		"endpoints.nownext":         r.Endpoints.NowNext,
		"endpoints.channel_list":    r.Endpoints.ChannelList,
	}
	for field, template := range templates {
		if template == "" {
			continue
		}
		u, err := url.Parse(template)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s: %q is not an http(s) URL", field, template)
		}
	}

	if r.Bridge != nil && r.Bridge.MQTT != nil && r.Bridge.MQTT.Broker != "" {
		u, err := url.Parse(r.Bridge.MQTT.Broker)
		if err != nil || !brokerSchemes[u.Scheme] || u.Host == "" {
			return fmt.Errorf("bridge.mqtt.broker: %q is not a broker URL (e.g. tcp://host:1883)", r.Bridge.MQTT.Broker)
		}
	}
	return nil
}

const fileHeader = `# Freesat Configuration File
# Known set-top boxes, their last address and region pair, and bridge settings.
#
# Location: %s

`

// Save writes the registry to the file it was loaded from, or the default
// location. The file is replaced atomically.
func (r *Registry) Save() error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if r.path == "" {
		path, err := GetConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		r.path = path
	}
	if r.Version == 0 {
		r.Version = currentVersion
	}

	body, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data := append([]byte(fmt.Sprintf(fileHeader, r.path)), body...)

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+configFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary config file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}
