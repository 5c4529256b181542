package freesat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/freesat/internal/discovery"
	"github.com/muurk/freesat/internal/logging"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// RemotePath accepts key presses
	RemotePath = "/rc/remote"

	// PowerPath reports the power state
	PowerPath = "/rc/power"

	// LocalePath reports the serial number, postcode and tuner count
	LocalePath = "/rc/locale"

	// AppsPath is the prefix of DIAL application resources
	AppsPath = "/rc/apps/"

	// NetflixApp is the DIAL application name of the Netflix client
	NetflixApp = "Netflix"

	// maxResponseBytes bounds how much of a response body is read
	maxResponseBytes = 8 << 20
)

// Client talks to Freesat boxes by identity. Addresses come from Resolver
// and are re-resolved once when a request fails at the connection level.
// A Client is safe for concurrent use.
type Client struct {
	// Resolver maps identities to base addresses
	Resolver discovery.Resolver

	// HTTPClient is the underlying HTTP client for box and content requests
	HTTPClient *http.Client

	// Endpoints are the regional content URL templates
	Endpoints Endpoints

	// UserAgent is sent on every request when set
	UserAgent string

	regions regionCache
}

// NewClient creates a client over resolver with default settings
func NewClient(resolver discovery.Resolver) *Client {
	return &Client{
		Resolver:   resolver,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		Endpoints:  DefaultEndpoints(),
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// withDevice runs fn against the resolved base address of identity. When fn
// fails at the connection level the cached address is dropped, identity is
// resolved again and fn runs once more. The second result is final.
func (c *Client) withDevice(ctx context.Context, identity string, fn func(base string) error) error {
	base, err := c.address(ctx, identity)
	if err != nil {
		return err
	}

	err = fn(base)
	if err == nil || !IsNetworkError(err) || ctx.Err() != nil {
		return err
	}

	logging.Warn("Request to cached address failed, re-resolving",
		zap.String("identity", identity),
		zap.String("address", base),
		zap.Error(err),
	)
	c.Resolver.Invalidate(identity)

	base, err = c.address(ctx, identity)
	if err != nil {
		return err
	}
	return fn(base)
}

// Address resolves identity without sending anything
func (c *Client) Address(ctx context.Context, identity string) (string, error) {
	return c.address(ctx, identity)
}

func (c *Client) address(ctx context.Context, identity string) (string, error) {
	base, err := c.Resolver.Address(ctx, identity)
	if err != nil {
		if errors.Is(err, discovery.ErrDeviceNotFound) {
			return "", NewNotFoundError(identity, err)
		}
		return "", err
	}
	return base, nil
}

// response is a fully read HTTP response
type response struct {
	StatusCode int
	Status     string
	Body       []byte
}

// do performs a single request and reads the whole body. Transport
// failures come back as classified network errors; a target that cannot
// be turned into a request is a parse error and is never retried.
func (c *Client) do(ctx context.Context, identity, method, target string, body io.Reader, contentType string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, NewParseError(identity, fmt.Sprintf("failed to create %s request for %s", method, target), err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, NewNetworkError(identity, fmt.Sprintf("%s %s failed", method, target), err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, NewNetworkError(identity, "failed to read response body", err)
	}

	logging.LogDeviceRequest(method, target, resp.StatusCode, time.Since(start))

	return &response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       data,
	}, nil
}

// get performs a GET and requires a 2xx status
func (c *Client) get(ctx context.Context, identity, target string) ([]byte, error) {
	resp, err := c.do(ctx, identity, http.MethodGet, target, nil, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewHTTPError(identity, resp.StatusCode,
			fmt.Sprintf("GET %s returned %s", target, strings.TrimSpace(resp.Status)), resp.Body)
	}
	return resp.Body, nil
}
