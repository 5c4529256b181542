package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/muurk/freesat/internal/logging"
)

// SerialPrefix is the vendor prefix carried by Freesat serial numbers.
// Identities without it are treated as IP addresses.
const SerialPrefix = "FS-"

// Strategy names reported in logs and on Device.Strategy
const (
	StrategySSDP     = "ssdp"
	StrategyPortScan = "portscan"
)

// ErrDeviceNotFound is matched by every NotFoundError via errors.Is
var ErrDeviceNotFound = errors.New("device not found")

// NotFoundError reports that no address could be resolved for an identity
type NotFoundError struct {
	Identity string
	Strategy string
	Reason   string
	Err      error
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("device not found: %s", e.Identity)
	if e.Reason != "" {
		msg += fmt.Sprintf(" (%s: %s)", e.Strategy, e.Reason)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Is lets errors.Is(err, ErrDeviceNotFound) match
func (e *NotFoundError) Is(target error) bool {
	return target == ErrDeviceNotFound
}

// Unwrap returns the underlying error for error chain inspection
func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// Resolver turns a device identity into a base address.
//
// Address resolves on first use and serves later calls from a cache.
// Invalidate drops the cached entry so the next Address call resolves again;
// callers do this after a connection-level failure against the cached address.
type Resolver interface {
	Address(ctx context.Context, identity string) (string, error)
	Invalidate(identity string)
}

// IsSerial reports whether identity is a vendor-prefixed serial number
// and should therefore be resolved over SSDP.
func IsSerial(identity string) bool {
	return strings.HasPrefix(identity, SerialPrefix)
}

// addressCache is the per-resolver identity -> base address cache.
// Concurrent resolutions of the same identity share one lookup.
type addressCache struct {
	mu      sync.Mutex
	entries map[string]string
	group   singleflight.Group
}

func (c *addressCache) lookup(identity string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	base, ok := c.entries[identity]
	return base, ok
}

func (c *addressCache) store(identity, base string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]string)
	}
	c.entries[identity] = base
}

func (c *addressCache) invalidate(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, identity)
}

// get returns the cached address or runs resolve exactly once for all
// concurrent callers asking for the same identity. The shared resolve runs
// on a context detached from any one caller, so a caller that gives up only
// stops waiting; the others still get the result. Each resolver bounds its
// own work (search window, probe timeouts).
func (c *addressCache) get(ctx context.Context, identity, strategy string, resolve func(context.Context) (string, error)) (string, error) {
	if base, ok := c.lookup(identity); ok {
		return base, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(identity, func() (interface{}, error) {
		if base, ok := c.lookup(identity); ok {
			return base, nil
		}
		base, err := resolve(shared)
		if err != nil {
			return "", err
		}
		c.store(identity, base)
		logging.LogResolve(identity, strategy, base)
		return base, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Dispatcher picks the resolver variant from the identity shape:
// serial numbers go to SSDP, everything else to the port scanner.
type Dispatcher struct {
	SSDP     *SSDPResolver
	PortScan *PortScanResolver
}

// NewDispatcher creates a dispatcher over default SSDP and port-scan resolvers
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		SSDP:     NewSSDPResolver(),
		PortScan: NewPortScanResolver(),
	}
}

// For returns the resolver variant responsible for identity
func (d *Dispatcher) For(identity string) Resolver {
	if IsSerial(identity) {
		return d.SSDP
	}
	return d.PortScan
}

// Address resolves identity with the matching variant
func (d *Dispatcher) Address(ctx context.Context, identity string) (string, error) {
	return d.For(identity).Address(ctx, identity)
}

// Invalidate drops the cached address for identity
func (d *Dispatcher) Invalidate(identity string) {
	d.For(identity).Invalidate(identity)
}

// Seed primes the cache with a previously known address, e.g. from the
// config registry. A stale seed is repaired by the normal invalidation path.
func (d *Dispatcher) Seed(identity, base string) {
	if base == "" {
		return
	}
	if IsSerial(identity) {
		d.SSDP.cache.store(identity, base)
		return
	}
	d.PortScan.cache.store(identity, base)
}

// Cached returns the cached address for identity without resolving
func (d *Dispatcher) Cached(identity string) (string, bool) {
	if IsSerial(identity) {
		return d.SSDP.cache.lookup(identity)
	}
	return d.PortScan.cache.lookup(identity)
}
