package discovery

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/koron/go-ssdp"
	"go.uber.org/zap"

	"github.com/muurk/freesat/internal/logging"
)

const (
	// SearchTarget is the DIAL service type Freesat boxes answer M-SEARCH for
	SearchTarget = "urn:dial-multiscreen-org:service:dial:1"

	// DescriptionPath is the description document path the box advertises.
	// Stripping it from the SSDP location leaves the base address.
	DescriptionPath = "/device.xml"

	// DefaultSearchTimeout is how long to collect SSDP responses
	DefaultSearchTimeout = 3 * time.Second

	// DefaultDescriptionTimeout bounds each description document fetch
	DefaultDescriptionTimeout = 5 * time.Second
)

// SearchFunc performs an SSDP M-SEARCH and returns every response received
// within wait. The default implementation is go-ssdp's Search.
type SearchFunc func(searchType string, wait time.Duration) ([]ssdp.Service, error)

// description is the subset of the UPnP description document we read
type description struct {
	XMLName xml.Name `xml:"root"`
	Device  struct {
		FriendlyName string `xml:"friendlyName"`
		Manufacturer string `xml:"manufacturer"`
		ModelName    string `xml:"modelName"`
		SerialNumber string `xml:"serialNumber"`
		UDN          string `xml:"UDN"`
	} `xml:"device"`
}

// SSDPResolver resolves serial-number identities by DIAL discovery
type SSDPResolver struct {
	// Timeout is how long each search waits for responses
	Timeout time.Duration

	// HTTPClient fetches description documents
	HTTPClient *http.Client

	// Search runs the M-SEARCH; replaced in tests
	Search SearchFunc

	cache addressCache
}

// NewSSDPResolver creates an SSDP resolver with default settings
func NewSSDPResolver() *SSDPResolver {
	return &SSDPResolver{
		Timeout:    DefaultSearchTimeout,
		HTTPClient: &http.Client{Timeout: DefaultDescriptionTimeout},
		Search:     searchSSDP,
	}
}

// searchSSDP adapts go-ssdp's whole-second wait to a duration
func searchSSDP(searchType string, wait time.Duration) ([]ssdp.Service, error) {
	waitSec := int(wait / time.Second)
	if waitSec < 1 {
		waitSec = 1
	}
	return ssdp.Search(searchType, waitSec, "")
}

// Address returns the cached base address for serial, discovering it on first use
func (r *SSDPResolver) Address(ctx context.Context, serial string) (string, error) {
	return r.cache.get(ctx, serial, StrategySSDP, func(ctx context.Context) (string, error) {
		return r.resolve(ctx, serial)
	})
}

// Invalidate drops the cached address for serial
func (r *SSDPResolver) Invalidate(serial string) {
	logging.Debug("Invalidating cached address",
		zap.String("identity", serial),
		zap.String("strategy", StrategySSDP),
	)
	r.cache.invalidate(serial)
}

// resolve walks the SSDP results and returns the base address of the
// device whose description document carries serial
func (r *SSDPResolver) resolve(ctx context.Context, serial string) (string, error) {
	locations, err := r.searchLocations()
	if err != nil {
		return "", &NotFoundError{Identity: serial, Strategy: StrategySSDP, Reason: "search failed", Err: err}
	}

	for _, location := range locations {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		desc, err := r.fetchDescription(ctx, location)
		if err != nil {
			logging.Debug("Skipping SSDP candidate",
				zap.String("location", location),
				zap.Error(err),
			)
			continue
		}

		if strings.TrimSpace(desc.Device.SerialNumber) != serial {
			continue
		}

		return baseFromLocation(location)
	}

	return "", &NotFoundError{
		Identity: serial,
		Strategy: StrategySSDP,
		Reason:   fmt.Sprintf("no matching serial among %d candidates", len(locations)),
	}
}

// Browse lists every DIAL device that answers the search and serves a
// readable description document. The cache is not touched.
func (r *SSDPResolver) Browse(ctx context.Context) ([]*Device, error) {
	locations, err := r.searchLocations()
	if err != nil {
		return nil, fmt.Errorf("failed to search for DIAL devices: %w", err)
	}

	devices := make([]*Device, 0, len(locations))
	for _, location := range locations {
		if err := ctx.Err(); err != nil {
			return devices, err
		}

		desc, err := r.fetchDescription(ctx, location)
		if err != nil {
			logging.Debug("Skipping SSDP candidate",
				zap.String("location", location),
				zap.Error(err),
			)
			continue
		}

		base, err := baseFromLocation(location)
		if err != nil {
			continue
		}

		devices = append(devices, &Device{
			Identity:     strings.TrimSpace(desc.Device.SerialNumber),
			FriendlyName: desc.Device.FriendlyName,
			Manufacturer: desc.Device.Manufacturer,
			ModelName:    desc.Device.ModelName,
			Location:     location,
			BaseURL:      base,
			Strategy:     StrategySSDP,
			DiscoveredAt: time.Now(),
		})
	}

	return devices, nil
}

// searchLocations runs the search and returns the distinct description
// document locations, in response order. Devices answer M-SEARCH more than
// once, and only .xml locations are description documents.
func (r *SSDPResolver) searchLocations() ([]string, error) {
	services, err := r.Search(SearchTarget, r.Timeout)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(services))
	locations := make([]string, 0, len(services))
	for _, svc := range services {
		location := strings.TrimSpace(svc.Location)
		if !strings.HasSuffix(location, ".xml") || seen[location] {
			continue
		}
		seen[location] = true
		locations = append(locations, location)
	}

	logging.Debug("SSDP search complete",
		zap.Int("responses", len(services)),
		zap.Int("candidates", len(locations)),
	)
	return locations, nil
}

// fetchDescription downloads and parses a description document
func (r *SSDPResolver) fetchDescription(ctx context.Context, location string) (*description, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create description request: %w", err)
	}

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch description: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("description request returned status %d", resp.StatusCode)
	}

	var desc description
	if err := xml.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return nil, fmt.Errorf("failed to parse description: %w", err)
	}
	return &desc, nil
}

// baseFromLocation strips DescriptionPath from an SSDP location. Locations
// with a different document path fall back to the location's scheme and
// host, which is logged at debug level.
func baseFromLocation(location string) (string, error) {
	if strings.HasSuffix(location, DescriptionPath) {
		return strings.TrimSuffix(location, DescriptionPath), nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid location %q: %w", location, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid location %q: missing scheme or host", location)
	}

	base := u.Scheme + "://" + u.Host
	logging.Debug("Description location has unexpected path, using host",
		zap.String("location", location),
		zap.String("base", base),
	)
	return base, nil
}
