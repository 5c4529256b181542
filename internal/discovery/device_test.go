package discovery

import "testing"

func TestDevice_String(t *testing.T) {
	tests := []struct {
		name     string
		device   *Device
		expected string
	}{
		{
			name: "with friendly name",
			device: &Device{
				Identity:     "FS-HMX-01A-0000-6A15",
				FriendlyName: "Living Room",
				BaseURL:      "http://192.168.1.20:55000",
			},
			expected: "Freesat Device FS-HMX-01A-0000-6A15 (Living Room) at http://192.168.1.20:55000",
		},
		{
			name: "scanned device without description",
			device: &Device{
				Identity: "192.168.1.20",
				BaseURL:  "http://192.168.1.20:60123",
			},
			expected: "Freesat Device 192.168.1.20 at http://192.168.1.20:60123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.device.String(); got != tt.expected {
				t.Errorf("Device.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}
