package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/freesat/internal/logging"
)

const (
	// DefaultFirstPort and DefaultLastPort bound the range the box's
	// control service is known to listen in
	DefaultFirstPort = 60000
	DefaultLastPort  = 65535

	// DefaultProbeTimeout bounds each TCP connect attempt
	DefaultProbeTimeout = 250 * time.Millisecond

	// DefaultBatchSize is how many ports are probed concurrently
	DefaultBatchSize = 512
)

// ProbeFunc reports whether a TCP connection to address succeeds
type ProbeFunc func(ctx context.Context, address string, timeout time.Duration) bool

// PortScanResolver resolves IP identities by finding the lowest open
// port in [FirstPort, LastPort]
type PortScanResolver struct {
	FirstPort    int
	LastPort     int
	ProbeTimeout time.Duration
	BatchSize    int

	// Probe performs a single connect attempt; replaced in tests
	Probe ProbeFunc

	cache addressCache
}

// NewPortScanResolver creates a port-scan resolver with default settings
func NewPortScanResolver() *PortScanResolver {
	return &PortScanResolver{
		FirstPort:    DefaultFirstPort,
		LastPort:     DefaultLastPort,
		ProbeTimeout: DefaultProbeTimeout,
		BatchSize:    DefaultBatchSize,
		Probe:        probeTCP,
	}
}

func probeTCP(ctx context.Context, address string, timeout time.Duration) bool {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Address returns the cached base address for ip, scanning on first use
func (r *PortScanResolver) Address(ctx context.Context, ip string) (string, error) {
	return r.cache.get(ctx, ip, StrategyPortScan, func(ctx context.Context) (string, error) {
		return r.resolve(ctx, ip)
	})
}

// Invalidate drops the cached address for ip
func (r *PortScanResolver) Invalidate(ip string) {
	logging.Debug("Invalidating cached address",
		zap.String("identity", ip),
		zap.String("strategy", StrategyPortScan),
	)
	r.cache.invalidate(ip)
}

func (r *PortScanResolver) resolve(ctx context.Context, ip string) (string, error) {
	if net.ParseIP(ip) == nil {
		return "", &NotFoundError{Identity: ip, Strategy: StrategyPortScan, Reason: "not a valid IP address"}
	}
	if r.FirstPort <= 0 || r.LastPort > 65535 || r.FirstPort > r.LastPort {
		return "", &NotFoundError{
			Identity: ip,
			Strategy: StrategyPortScan,
			Reason:   fmt.Sprintf("invalid port range %d-%d", r.FirstPort, r.LastPort),
		}
	}

	port, err := r.scan(ctx, ip)
	if err != nil {
		return "", err
	}
	if port == 0 {
		return "", &NotFoundError{
			Identity: ip,
			Strategy: StrategyPortScan,
			Reason:   fmt.Sprintf("no open port in %d-%d", r.FirstPort, r.LastPort),
		}
	}

	return "http://" + net.JoinHostPort(ip, strconv.Itoa(port)), nil
}

// scan probes the range in ascending batches and returns the lowest open
// port, or 0. A batch is finished before its result is used so a slow low
// port is never beaten by a fast high one.
func (r *PortScanResolver) scan(ctx context.Context, ip string) (int, error) {
	batch := r.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	for start := r.FirstPort; start <= r.LastPort; start += batch {
		end := start + batch - 1
		if end > r.LastPort {
			end = r.LastPort
		}

		lowest, err := r.scanBatch(ctx, ip, start, end)
		if err != nil {
			return 0, err
		}
		if lowest != 0 {
			return lowest, nil
		}
	}
	return 0, nil
}

func (r *PortScanResolver) scanBatch(ctx context.Context, ip string, start, end int) (int, error) {
	var (
		mu     sync.Mutex
		lowest int
	)

	g, gctx := errgroup.WithContext(ctx)
	for port := start; port <= end; port++ {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if !r.Probe(gctx, net.JoinHostPort(ip, strconv.Itoa(port)), r.ProbeTimeout) {
				return nil
			}
			mu.Lock()
			if lowest == 0 || port < lowest {
				lowest = port
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return lowest, nil
}
