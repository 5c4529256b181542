package discovery

import (
	"fmt"
	"time"
)

// Device represents a Freesat box found on the network
type Device struct {
	// Identity is the value used to address the device: the serial number
	// (e.g., "FS-HMX-01A-0000-6A15") or, for scanned devices, the IP address
	Identity string

	// FriendlyName is the name from the description document (e.g., "Living Room")
	FriendlyName string

	// Manufacturer and ModelName come from the description document
	Manufacturer string
	ModelName    string

	// Location is the description document URL advertised over SSDP
	Location string

	// BaseURL is the scheme+host+port all /rc requests are built on
	BaseURL string

	// Strategy records how the address was found ("ssdp" or "portscan")
	Strategy string

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	if d.FriendlyName == "" {
		return fmt.Sprintf("Freesat Device %s at %s", d.Identity, d.BaseURL)
	}
	return fmt.Sprintf("Freesat Device %s (%s) at %s", d.Identity, d.FriendlyName, d.BaseURL)
}
