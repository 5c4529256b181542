package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/freesat/internal/freesat"
	"github.com/muurk/freesat/internal/logging"
	"github.com/muurk/freesat/internal/version"
)

const (
	// ServiceType is the mDNS service type the bridge advertises
	ServiceType = "_freesat-bridge._tcp"

	// DefaultListen is the default listen address
	DefaultListen = ":8080"

	// DefaultPollInterval is how often event streams poll the power state
	DefaultPollInterval = 5 * time.Second

	shutdownTimeout = 10 * time.Second
)

// Remote is the part of the Freesat client the bridge exposes
type Remote interface {
	SendKeys(ctx context.Context, identity, keys string) error
	SendKeySequence(ctx context.Context, identity string, names []string) error
	SendCode(ctx context.Context, identity string, code int) (*freesat.KeyResponse, error)
	PowerStatus(ctx context.Context, identity string) (*freesat.PowerStatus, error)
	Locale(ctx context.Context, identity string) (*freesat.Locale, error)
	NetflixStatus(ctx context.Context, identity string) (*freesat.AppStatus, error)
	Regions(ctx context.Context, identity string) (freesat.Regions, error)
	ShowcaseEvents(ctx context.Context, identity string) (json.RawMessage, error)
	OnDemandApps(ctx context.Context, identity string) (json.RawMessage, error)
	NowNextAll(ctx context.Context, identity string) (json.RawMessage, error)
	ChannelList(ctx context.Context, identity string) (json.RawMessage, error)
}

// Config holds the bridge configuration
type Config struct {
	Listen       string        // Listen address, e.g. ":8080"
	Advertise    bool          // Register the bridge over mDNS
	InstanceName string        // mDNS instance name (default: hostname)
	PollInterval time.Duration // Event stream poll period
}

// Server exposes a Remote over HTTP and WebSocket
type Server struct {
	config  Config
	remote  Remote
	metrics *Metrics

	// baseCtx is cancelled on shutdown and stops every event stream
	baseCtx context.Context
	cancel  context.CancelFunc

	mu          sync.Mutex
	listener    net.Listener
	httpServer  *http.Server
	mdns        *zeroconf.Server
	activeConns map[*websocket.Conn]string
	wg          sync.WaitGroup
}

// New creates a bridge over remote
func New(config Config, remote Remote) *Server {
	if config.Listen == "" {
		config.Listen = DefaultListen
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:      config,
		remote:      remote,
		metrics:     NewMetrics(),
		baseCtx:     ctx,
		cancel:      cancel,
		activeConns: make(map[*websocket.Conn]string),
	}
}

// Metrics returns the server's collectors
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the bridge's routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	m := s.metrics

	mux.HandleFunc("GET /api/keys", m.instrument("keys_list", s.handleKeyTable))
	mux.HandleFunc("POST /api/devices/{id}/keys", m.instrument("keys", s.handleSendKeys))
	mux.HandleFunc("POST /api/devices/{id}/code", m.instrument("code", s.handleSendCode))
	mux.HandleFunc("GET /api/devices/{id}/power", m.instrument("power", s.handlePower))
	mux.HandleFunc("GET /api/devices/{id}/locale", m.instrument("locale", s.handleLocale))
	mux.HandleFunc("GET /api/devices/{id}/netflix", m.instrument("netflix", s.handleNetflix))
	mux.HandleFunc("GET /api/devices/{id}/regions", m.instrument("regions", s.handleRegions))
	mux.HandleFunc("GET /api/devices/{id}/showcase", m.instrument("showcase", s.regional(s.remote.ShowcaseEvents)))
	mux.HandleFunc("GET /api/devices/{id}/ondemand", m.instrument("ondemand", s.regional(s.remote.OnDemandApps)))
	mux.HandleFunc("GET /api/devices/{id}/nownext", m.instrument("nownext", s.regional(s.remote.NowNextAll)))
	mux.HandleFunc("GET /api/devices/{id}/channels", m.instrument("channels", s.regional(s.remote.ChannelList)))
	mux.HandleFunc("GET /api/devices/{id}/events", s.handleEvents)
	mux.Handle("GET /metrics", m.Handler())

	return mux
}

// Addr returns the listening address once Start has bound it
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start serves until ctx is cancelled, SIGINT/SIGTERM arrives or the
// listener fails, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = httpServer
	s.mu.Unlock()

	logging.Info("Freesat bridge listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("poll_interval", s.config.PollInterval),
	)

	if s.config.Advertise {
		if err := s.advertise(listener.Addr()); err != nil {
			logging.Warn("mDNS advertisement failed, continuing without it", zap.Error(err))
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Serve(listener)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping bridge...")
	case <-ctx.Done():
		logging.Info("Context cancelled, stopping bridge...")
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("bridge server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// advertise registers the bridge over mDNS
func (s *Server) advertise(addr net.Addr) error {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return fmt.Errorf("unexpected listener address %v", addr)
	}

	name := s.config.InstanceName
	if name == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "freesat"
		}
		name = "Freesat bridge on " + host
	}

	txt := []string{"path=/api", "version=" + version.Version}
	server, err := zeroconf.Register(name, ServiceType, "local.", tcpAddr.Port, txt, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.mdns = server
	s.mu.Unlock()

	logging.Info("Advertising bridge over mDNS",
		zap.String("instance", name),
		zap.String("service", ServiceType),
		zap.Int("port", tcpAddr.Port),
	)
	return nil
}

// Shutdown stops advertising, closes event streams and drains in-flight
// requests
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down bridge...")

	s.cancel()

	s.mu.Lock()
	mdns := s.mdns
	s.mdns = nil
	httpServer := s.httpServer
	for conn, addr := range s.activeConns {
		logging.Debug("Closing event stream", zap.String("remote_addr", addr))
		_ = conn.Close()
	}
	s.mu.Unlock()

	if mdns != nil {
		mdns.Shutdown()
	}

	var err error
	if httpServer != nil {
		err = httpServer.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All event streams closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return err
}

// ActiveStreams returns the number of connected event streams
func (s *Server) ActiveStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

func (s *Server) trackConn(conn *websocket.Conn, remoteAddr string) {
	s.mu.Lock()
	s.activeConns[conn] = remoteAddr
	s.mu.Unlock()
	s.metrics.wsClients.Inc()
}

func (s *Server) untrackConn(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.activeConns, conn)
	s.mu.Unlock()
	s.metrics.wsClients.Dec()
}
