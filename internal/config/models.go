package config

import (
	"strings"
	"time"

	"github.com/muurk/freesat/internal/freesat"
)

// Registry represents the entire user configuration file.
// This stores user-defined metadata for boxes and application preferences.
type Registry struct {
	Version       int                `yaml:"version"`
	DefaultDevice string             `yaml:"default_device,omitempty"` // Identity used when --device is not given
	Devices       map[string]*Device `yaml:"devices,omitempty"`        // Keyed by device identity
	Preferences   *Preferences       `yaml:"preferences,omitempty"`
	Endpoints     freesat.Endpoints  `yaml:"endpoints,omitempty"` // Overrides for the regional content service
	Bridge        *BridgeConfig      `yaml:"bridge,omitempty"`

	// path is where the registry was loaded from and is saved to
	path string
}

// Device represents user-defined metadata for a single box.
// This is keyed by the device identity (serial number or IP) in the Registry.
type Device struct {
	Nickname        string    `yaml:"nickname,omitempty"`         // User-friendly name
	LastAddress     string    `yaml:"last_address,omitempty"`     // Last resolved base address
	LastSeen        time.Time `yaml:"last_seen,omitempty"`        // Last successful contact
	PrimaryRegion   string    `yaml:"primary_region,omitempty"`   // Cached region pair
	SecondaryRegion string    `yaml:"secondary_region,omitempty"`
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DiscoverTimeout int `yaml:"discover_timeout"`         // SSDP search window in seconds
	ProbeTimeoutMS  int `yaml:"probe_timeout_ms"`         // Per-port connect timeout in milliseconds
	RequestTimeout  int `yaml:"request_timeout"`          // HTTP request timeout in seconds
	ScanBatchSize   int `yaml:"scan_batch_size,omitempty"` // Ports probed concurrently
}

// BridgeConfig configures the HTTP and MQTT bridge.
type BridgeConfig struct {
	Listen       string      `yaml:"listen,omitempty"`        // HTTP listen address (e.g., ":8080")
	Advertise    bool        `yaml:"advertise"`               // Register the bridge over mDNS
	PollInterval int         `yaml:"poll_interval,omitempty"` // Power poll interval in seconds
	Devices      []string    `yaml:"devices,omitempty"`       // Identities bridged over MQTT
	MQTT         *MQTTConfig `yaml:"mqtt,omitempty"`
}

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`                 // e.g., "tcp://192.168.1.10:1883"
	ClientID    string `yaml:"client_id,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"` // Defaults to "freesat"
}

func defaultPreferences() *Preferences {
	return &Preferences{
		DiscoverTimeout: 3,
		ProbeTimeoutMS:  250,
		RequestTimeout:  10,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: defaultPreferences(),
	}
}

// Path returns the file the registry is saved to.
func (r *Registry) Path() string {
	return r.path
}

// GetDevice retrieves device metadata by identity.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(identity string) *Device {
	return r.Devices[identity]
}

// EnsureDevice ensures a device entry exists in the registry.
// Returns the device entry (existing or newly created).
func (r *Registry) EnsureDevice(identity string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[identity]; exists {
		return device
	}

	device := &Device{}
	r.Devices[identity] = device
	return device
}

// RememberAddress records a successfully used base address.
func (r *Registry) RememberAddress(identity, address string) {
	device := r.EnsureDevice(identity)
	device.LastSeen = time.Now()
	device.LastAddress = address
}

// RememberRegions records the region pair for a device.
func (r *Registry) RememberRegions(identity string, regions freesat.Regions) {
	device := r.EnsureDevice(identity)
	device.PrimaryRegion = regions.Primary
	device.SecondaryRegion = regions.Secondary
}

// ForgetRegions clears the stored region pair for a device.
func (r *Registry) ForgetRegions(identity string) {
	if device := r.GetDevice(identity); device != nil {
		device.PrimaryRegion = ""
		device.SecondaryRegion = ""
	}
}

// Regions returns the stored region pair for a device, if complete.
func (r *Registry) Regions(identity string) (freesat.Regions, bool) {
	device := r.GetDevice(identity)
	if device == nil || device.PrimaryRegion == "" || device.SecondaryRegion == "" {
		return freesat.Regions{}, false
	}
	return freesat.Regions{Primary: device.PrimaryRegion, Secondary: device.SecondaryRegion}, true
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(identity, nickname string) {
	device := r.EnsureDevice(identity)
	device.Nickname = nickname
}

// ResolveIdentity maps a nickname or identity to an identity.
// An empty name resolves to DefaultDevice. Nicknames match case-insensitively;
// anything that is not a known nickname is returned unchanged.
func (r *Registry) ResolveIdentity(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return r.DefaultDevice
	}
	if _, ok := r.Devices[name]; ok {
		return name
	}
	for identity, device := range r.Devices {
		if device.Nickname != "" && strings.EqualFold(device.Nickname, name) {
			return identity
		}
	}
	return name
}

// DisplayName returns "nickname (identity)" when a nickname is set.
func (r *Registry) DisplayName(identity string) string {
	if device := r.GetDevice(identity); device != nil && device.Nickname != "" {
		return device.Nickname + " (" + identity + ")"
	}
	return identity
}

// DiscoverTimeoutDuration returns the SSDP search window.
func (p *Preferences) DiscoverTimeoutDuration() time.Duration {
	if p == nil || p.DiscoverTimeout <= 0 {
		return 3 * time.Second
	}
	return time.Duration(p.DiscoverTimeout) * time.Second
}

// ProbeTimeoutDuration returns the per-port connect timeout.
func (p *Preferences) ProbeTimeoutDuration() time.Duration {
	if p == nil || p.ProbeTimeoutMS <= 0 {
		return 250 * time.Millisecond
	}
	return time.Duration(p.ProbeTimeoutMS) * time.Millisecond
}

// RequestTimeoutDuration returns the HTTP request timeout.
func (p *Preferences) RequestTimeoutDuration() time.Duration {
	if p == nil || p.RequestTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.RequestTimeout) * time.Second
}

// PollIntervalDuration returns the bridge power poll interval.
func (b *BridgeConfig) PollIntervalDuration() time.Duration {
	if b == nil || b.PollInterval <= 0 {
		return 5 * time.Second
	}
	return time.Duration(b.PollInterval) * time.Second
}
