package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koron/go-ssdp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/muurk/freesat/internal/logging"
)

const testDescription = `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <specVersion><major>1</major><minor>0</minor></specVersion>
  <device>
    <deviceType>urn:dial-multiscreen-org:device:dial:1</deviceType>
    <friendlyName>%s</friendlyName>
    <manufacturer>Humax</manufacturer>
    <modelName>HDR-1100S</modelName>
    <serialNumber>%s</serialNumber>
    <UDN>uuid:1234</UDN>
  </device>
</root>`

// newDescriptionServer serves a description document per path, keyed by serial
func newDescriptionServer(t *testing.T, docs map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serial, ok := docs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		_, _ = fmt.Fprintf(w, testDescription, "Box "+serial, serial)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestSSDPResolver(search SearchFunc) *SSDPResolver {
	r := NewSSDPResolver()
	r.Timeout = 10 * time.Millisecond
	r.Search = search
	return r
}

func TestSSDPResolver_Address(t *testing.T) {
	srv := newDescriptionServer(t, map[string]string{
		"/other/device.xml": "FS-OTHER-0001",
		"/device.xml":       "FS-HMX-01A-0000-6A15",
	})

	var searches atomic.Int32
	r := newTestSSDPResolver(func(st string, wait time.Duration) ([]ssdp.Service, error) {
		searches.Add(1)
		if st != SearchTarget {
			t.Errorf("search target = %q, want %q", st, SearchTarget)
		}
		return []ssdp.Service{
			{Location: srv.URL + "/status"},
			{Location: srv.URL + "/missing.xml"},
			{Location: srv.URL + "/other/device.xml"},
			{Location: srv.URL + "/device.xml"},
			{Location: srv.URL + "/device.xml"},
		}, nil
	})

	base, err := r.Address(context.Background(), "FS-HMX-01A-0000-6A15")
	if err != nil {
		t.Fatalf("Address() error = %v", err)
	}
	if base != srv.URL {
		t.Errorf("Address() = %q, want %q", base, srv.URL)
	}

	// Second call is served from the cache
	if _, err := r.Address(context.Background(), "FS-HMX-01A-0000-6A15"); err != nil {
		t.Fatalf("Address() second call error = %v", err)
	}
	if got := searches.Load(); got != 1 {
		t.Errorf("searches = %d, want 1", got)
	}

	r.Invalidate("FS-HMX-01A-0000-6A15")
	if _, err := r.Address(context.Background(), "FS-HMX-01A-0000-6A15"); err != nil {
		t.Fatalf("Address() after invalidate error = %v", err)
	}
	if got := searches.Load(); got != 2 {
		t.Errorf("searches after invalidate = %d, want 2", got)
	}
}

func TestSSDPResolver_AddressNotFound(t *testing.T) {
	srv := newDescriptionServer(t, map[string]string{
		"/device.xml": "FS-OTHER-0001",
	})

	tests := []struct {
		name   string
		search SearchFunc
	}{
		{
			name: "no responses",
			search: func(string, time.Duration) ([]ssdp.Service, error) {
				return nil, nil
			},
		},
		{
			name: "serial mismatch",
			search: func(string, time.Duration) ([]ssdp.Service, error) {
				return []ssdp.Service{{Location: srv.URL + "/device.xml"}}, nil
			},
		},
		{
			name: "search error",
			search: func(string, time.Duration) ([]ssdp.Service, error) {
				return nil, errors.New("no multicast interface")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestSSDPResolver(tt.search)
			_, err := r.Address(context.Background(), "FS-HMX-01A-0000-6A15")
			if !errors.Is(err, ErrDeviceNotFound) {
				t.Fatalf("Address() error = %v, want ErrDeviceNotFound", err)
			}
			var nf *NotFoundError
			if !errors.As(err, &nf) {
				t.Fatalf("Address() error type = %T, want *NotFoundError", err)
			}
			if nf.Strategy != StrategySSDP {
				t.Errorf("Strategy = %q, want %q", nf.Strategy, StrategySSDP)
			}
			if _, ok := r.cache.lookup("FS-HMX-01A-0000-6A15"); ok {
				t.Error("failed resolution should not be cached")
			}
		})
	}
}

func TestSSDPResolver_ConcurrentAddressSharesSearch(t *testing.T) {
	srv := newDescriptionServer(t, map[string]string{
		"/device.xml": "FS-HMX-01A-0000-6A15",
	})

	var searches atomic.Int32
	r := newTestSSDPResolver(func(string, time.Duration) ([]ssdp.Service, error) {
		searches.Add(1)
		time.Sleep(50 * time.Millisecond)
		return []ssdp.Service{{Location: srv.URL + "/device.xml"}}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Address(context.Background(), "FS-HMX-01A-0000-6A15"); err != nil {
				t.Errorf("Address() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := searches.Load(); got != 1 {
		t.Errorf("searches = %d, want 1", got)
	}
}

func TestSSDPResolver_Browse(t *testing.T) {
	srv := newDescriptionServer(t, map[string]string{
		"/a/device.xml": "FS-AAA-0001",
		"/b/device.xml": "FS-BBB-0002",
	})

	r := newTestSSDPResolver(func(string, time.Duration) ([]ssdp.Service, error) {
		return []ssdp.Service{
			{Location: srv.URL + "/a/device.xml"},
			{Location: srv.URL + "/broken.xml"},
			{Location: srv.URL + "/b/device.xml"},
		}, nil
	})

	devices, err := r.Browse(context.Background())
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("Browse() returned %d devices, want 2", len(devices))
	}

	first := devices[0]
	if first.Identity != "FS-AAA-0001" {
		t.Errorf("Identity = %q, want FS-AAA-0001", first.Identity)
	}
	if first.BaseURL != srv.URL+"/a" {
		t.Errorf("BaseURL = %q, want %q", first.BaseURL, srv.URL+"/a")
	}
	if first.FriendlyName != "Box FS-AAA-0001" || first.Manufacturer != "Humax" || first.ModelName != "HDR-1100S" {
		t.Errorf("unexpected description fields: %+v", first)
	}
	if first.Strategy != StrategySSDP {
		t.Errorf("Strategy = %q, want %q", first.Strategy, StrategySSDP)
	}

	if _, ok := r.cache.lookup("FS-AAA-0001"); ok {
		t.Error("Browse should not populate the address cache")
	}
}

func TestBaseFromLocation(t *testing.T) {
	tests := []struct {
		name     string
		location string
		want     string
		wantErr  bool
	}{
		{
			name:     "standard description path",
			location: "http://192.168.1.20:55000/device.xml",
			want:     "http://192.168.1.20:55000",
		},
		{
			name:     "nested description path",
			location: "http://192.168.1.20:55000/dial/device.xml",
			want:     "http://192.168.1.20:55000/dial",
		},
		{
			name:     "other document name falls back to host",
			location: "http://192.168.1.20:55000/dd.xml",
			want:     "http://192.168.1.20:55000",
		},
		{
			name:     "relative location",
			location: "dd.xml",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := baseFromLocation(tt.location)
			if (err != nil) != tt.wantErr {
				t.Fatalf("baseFromLocation() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("baseFromLocation() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBaseFromLocation_LogsHostFallback(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging.SetLogger(zap.New(core))
	defer logging.SetLogger(nil)

	if _, err := baseFromLocation("http://192.168.1.20:55000/device.xml"); err != nil {
		t.Fatalf("baseFromLocation() error = %v", err)
	}
	if logs.Len() != 0 {
		t.Errorf("logged %d entries for a standard location, want 0", logs.Len())
	}

	got, err := baseFromLocation("http://192.168.1.20:55000/dd.xml")
	if err != nil {
		t.Fatalf("baseFromLocation() error = %v", err)
	}

	entries := logs.FilterField(zap.String("location", "http://192.168.1.20:55000/dd.xml")).All()
	if len(entries) != 1 {
		t.Fatalf("fallback log entries = %d, want 1", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel {
		t.Errorf("level = %v, want debug", entries[0].Level)
	}
	if base := entries[0].ContextMap()["base"]; base != got {
		t.Errorf("logged base = %v, want %q", base, got)
	}
}
