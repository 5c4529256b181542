package freesat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/muurk/freesat/internal/logging"
)

// regionCache holds the region pair per identity. Once set an entry is
// kept until ForgetRegions.
type regionCache struct {
	mu      sync.Mutex
	entries map[string]Regions
	group   singleflight.Group
}

func (rc *regionCache) lookup(identity string) (Regions, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	r, ok := rc.entries[identity]
	return r, ok
}

func (rc *regionCache) store(identity string, r Regions) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.entries == nil {
		rc.entries = make(map[string]Regions)
	}
	rc.entries[identity] = r
}

func (rc *regionCache) forget(identity string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.entries, identity)
}

// Regions returns the region pair for identity, looking it up from the
// box's postcode on first use. Concurrent callers share one lookup, which
// runs detached from any single caller's cancellation and is bounded by the
// HTTP client timeout.
func (c *Client) Regions(ctx context.Context, identity string) (Regions, error) {
	if r, ok := c.regions.lookup(identity); ok {
		return r, nil
	}
	if err := ctx.Err(); err != nil {
		return Regions{}, err
	}

	shared := context.WithoutCancel(ctx)
	ch := c.regions.group.DoChan(identity, func() (interface{}, error) {
		if r, ok := c.regions.lookup(identity); ok {
			return r, nil
		}
		r, err := c.lookupRegions(shared, identity)
		if err != nil {
			return Regions{}, err
		}
		c.regions.store(identity, r)
		return r, nil
	})

	select {
	case <-ctx.Done():
		return Regions{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Regions{}, res.Err
		}
		return res.Val.(Regions), nil
	}
}

func (c *Client) lookupRegions(ctx context.Context, identity string) (Regions, error) {
	locale, err := c.Locale(ctx, identity)
	if err != nil {
		return Regions{}, err
	}

	postcode := locale.Postcode()
	if postcode == "" {
		return Regions{}, NewParseError(identity, "locale has no postcode", nil)
	}

	body, err := c.get(ctx, identity, postcodeURL(c.Endpoints.WithDefaults().PostcodeLookup, postcode))
	if err != nil {
		return Regions{}, err
	}

	var lookup postcodeLookup
	if err := json.Unmarshal(body, &lookup); err != nil {
		return Regions{}, NewParseError(identity, "failed to decode postcode lookup", err)
	}
	regions, err := lookup.regions()
	if err != nil {
		return Regions{}, NewParseError(identity, "postcode lookup is missing a region", err)
	}

	logging.Info("Regions resolved",
		zap.String("identity", identity),
		zap.String("postcode", postcode),
		zap.String("primary", regions.Primary),
		zap.String("secondary", regions.Secondary),
	)
	return regions, nil
}

// SeedRegions primes the region cache, e.g. from the config registry
func (c *Client) SeedRegions(identity string, regions Regions) {
	if regions.Primary == "" || regions.Secondary == "" {
		return
	}
	c.regions.store(identity, regions)
}

// ForgetRegions drops the cached region pair so the next call looks it up again
func (c *Client) ForgetRegions(identity string) {
	c.regions.forget(identity)
}

// CachedRegions returns the cached region pair without any lookup
func (c *Client) CachedRegions(identity string) (Regions, bool) {
	return c.regions.lookup(identity)
}

// regionalJSON fetches a regional content endpoint for identity's region
// pair. The body is returned only if it is well-formed JSON.
func (c *Client) regionalJSON(ctx context.Context, identity, name, template string) (json.RawMessage, error) {
	regions, err := c.Regions(ctx, identity)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, identity, regionalURL(template, regions))
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, NewParseError(identity, fmt.Sprintf("failed to decode %s", name), err)
	}
	return raw, nil
}

// ShowcaseEvents returns the showcase (featured programmes) feed
func (c *Client) ShowcaseEvents(ctx context.Context, identity string) (json.RawMessage, error) {
	return c.regionalJSON(ctx, identity, "showcase events", c.Endpoints.WithDefaults().Showcase)
}

// OnDemandApps returns the catalogue of on-demand players for the region
func (c *Client) OnDemandApps(ctx context.Context, identity string) (json.RawMessage, error) {
	return c.regionalJSON(ctx, identity, "on-demand apps", c.Endpoints.WithDefaults().OnDemand)
}

// NowNextAll returns the now/next EPG for every channel in the region
func (c *Client) NowNextAll(ctx context.Context, identity string) (json.RawMessage, error) {
	return c.regionalJSON(ctx, identity, "now/next", c.Endpoints.WithDefaults().NowNext)
}

// ChannelList returns the channel line-up for the region
func (c *Client) ChannelList(ctx context.Context, identity string) (json.RawMessage, error) {
	return c.regionalJSON(ctx, identity, "channel list", c.Endpoints.WithDefaults().ChannelList)
}
