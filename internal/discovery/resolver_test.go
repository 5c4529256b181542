package discovery

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koron/go-ssdp"
)

func TestIsSerial(t *testing.T) {
	tests := []struct {
		identity string
		want     bool
	}{
		{"FS-HMX-01A-0000-6A15", true},
		{"FS-", true},
		{"fs-hmx-01a", false},
		{"192.168.1.20", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.identity, func(t *testing.T) {
			if got := IsSerial(tt.identity); got != tt.want {
				t.Errorf("IsSerial(%q) = %v, want %v", tt.identity, got, tt.want)
			}
		})
	}
}

func TestDispatcher_RoutesByIdentityShape(t *testing.T) {
	var searches, probes atomic.Int32

	d := NewDispatcher()
	d.SSDP.Search = func(string, time.Duration) ([]ssdp.Service, error) {
		searches.Add(1)
		return nil, nil
	}
	d.PortScan.FirstPort = 60000
	d.PortScan.LastPort = 60003
	d.PortScan.Probe = func(context.Context, string, time.Duration) bool {
		probes.Add(1)
		return false
	}

	_, _ = d.Address(context.Background(), "FS-HMX-01A-0000-6A15")
	if searches.Load() != 1 || probes.Load() != 0 {
		t.Errorf("serial identity: searches=%d probes=%d, want 1/0", searches.Load(), probes.Load())
	}

	_, _ = d.Address(context.Background(), "192.168.1.20")
	if searches.Load() != 1 || probes.Load() != 4 {
		t.Errorf("ip identity: searches=%d probes=%d, want 1/4", searches.Load(), probes.Load())
	}

	if _, ok := d.For("FS-X").(*SSDPResolver); !ok {
		t.Error("For(serial) should return the SSDP resolver")
	}
	if _, ok := d.For("10.0.0.1").(*PortScanResolver); !ok {
		t.Error("For(ip) should return the port-scan resolver")
	}
}

func TestDispatcher_SeedAndInvalidate(t *testing.T) {
	d := NewDispatcher()
	d.SSDP.Search = func(string, time.Duration) ([]ssdp.Service, error) {
		t.Error("seeded identity should not trigger a search")
		return nil, nil
	}

	d.Seed("FS-HMX-01A-0000-6A15", "http://192.168.1.20:55000")
	d.Seed("192.168.1.30", "")

	got, err := d.Address(context.Background(), "FS-HMX-01A-0000-6A15")
	if err != nil {
		t.Fatalf("Address() error = %v", err)
	}
	if got != "http://192.168.1.20:55000" {
		t.Errorf("Address() = %q, want seeded address", got)
	}

	if _, ok := d.Cached("192.168.1.30"); ok {
		t.Error("empty seed should be ignored")
	}

	d.Invalidate("FS-HMX-01A-0000-6A15")
	if _, ok := d.Cached("FS-HMX-01A-0000-6A15"); ok {
		t.Error("Invalidate should drop the cached address")
	}
}

func TestNotFoundError(t *testing.T) {
	cause := errors.New("multicast unavailable")
	err := &NotFoundError{
		Identity: "FS-1",
		Strategy: StrategySSDP,
		Reason:   "search failed",
		Err:      cause,
	}

	if !errors.Is(err, ErrDeviceNotFound) {
		t.Error("errors.Is(err, ErrDeviceNotFound) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
	for _, part := range []string{"FS-1", "ssdp", "search failed", "multicast unavailable"} {
		if !strings.Contains(err.Error(), part) {
			t.Errorf("Error() = %q, missing %q", err.Error(), part)
		}
	}
}
