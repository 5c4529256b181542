package freesat

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/muurk/freesat/internal/discovery"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error (reset, unreachable, etc.)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the box refused the connection
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeNotFound indicates the box could not be located
	ErrTypeNotFound
	// ErrTypeKeyRejected indicates the box answered a key send with something other than 202
	ErrTypeKeyRejected
	// ErrTypeUnknownKey indicates a key name that is not in the key code table
	ErrTypeUnknownKey
	// ErrTypeHTTP indicates a non-success status from a status or content endpoint
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed XML or JSON body
	ErrTypeParse
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeNotFound:
		return "Device Not Found"
	case ErrTypeKeyRejected:
		return "Key Send Failed"
	case ErrTypeUnknownKey:
		return "Unknown Key"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError represents an error that occurred talking to a box or to
// the regional content service
type DeviceError struct {
	Type       ErrorType // Category of error
	Message    string    // Human-readable error message
	StatusCode int       // HTTP status code (if applicable)
	Identity   string    // Device identity (for context)
	Key        string    // Key name, for key send failures
	Body       string    // Response body, truncated
	Err        error     // Underlying error (if any)
	Retryable  bool      // Whether a re-resolve and retry may help
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Identity != "" {
		msg += fmt.Sprintf(" [%s]", e.Identity)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// maxBodyInError caps how much of a response body is kept on an error
const maxBodyInError = 256

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodyInError {
		return s[:maxBodyInError] + "..."
	}
	return s
}

// ClassifyNetworkError analyzes a transport error and returns a more specific error type
func ClassifyNetworkError(err error, identity string) *DeviceError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &DeviceError{
			Type:      ErrTypeTimeout,
			Message:   "Request timed out",
			Err:       err,
			Identity:  identity,
			Retryable: true,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &DeviceError{
			Type:      ErrTypeDNS,
			Message:   fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:       err,
			Identity:  identity,
			Retryable: true,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return &DeviceError{
				Type:      ErrTypeConnectionRefused,
				Message:   "Device refused connection",
				Err:       err,
				Identity:  identity,
				Retryable: true,
			}
		}
		if errors.Is(opErr.Err, syscall.ECONNRESET) {
			return &DeviceError{
				Type:      ErrTypeNetwork,
				Message:   "Connection reset by device",
				Err:       err,
				Identity:  identity,
				Retryable: true,
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != err {
		return ClassifyNetworkError(urlErr.Err, identity)
	}

	return &DeviceError{
		Type:      ErrTypeNetwork,
		Message:   "Network error occurred",
		Err:       err,
		Identity:  identity,
		Retryable: true,
	}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(identity, message string, err error) *DeviceError {
	classified := ClassifyNetworkError(err, identity)
	if classified == nil {
		classified = &DeviceError{Type: ErrTypeNetwork, Identity: identity, Retryable: true}
	}
	classified.Message = message
	return classified
}

// NewNotFoundError wraps a resolution failure
func NewNotFoundError(identity string, err error) *DeviceError {
	return &DeviceError{
		Type:     ErrTypeNotFound,
		Message:  "device not found",
		Identity: identity,
		Err:      err,
	}
}

// NewKeyRejectedError reports a key send the box did not accept
func NewKeyRejectedError(identity, key string, statusCode int, body []byte) *DeviceError {
	return &DeviceError{
		Type:       ErrTypeKeyRejected,
		Message:    fmt.Sprintf("key send failed: %q (HTTP %d)", key, statusCode),
		StatusCode: statusCode,
		Identity:   identity,
		Key:        key,
		Body:       truncateBody(body),
	}
}

// NewUnknownKeyError reports a key name missing from the key code table
func NewUnknownKeyError(identity, key string) *DeviceError {
	return &DeviceError{
		Type:     ErrTypeUnknownKey,
		Message:  fmt.Sprintf("unknown key %q", key),
		Identity: identity,
		Key:      key,
	}
}

// NewHTTPError creates an HTTP-level error
func NewHTTPError(identity string, statusCode int, message string, body []byte) *DeviceError {
	return &DeviceError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		Identity:   identity,
		Body:       truncateBody(body),
	}
}

// NewParseError creates a parsing error
func NewParseError(identity, message string, err error) *DeviceError {
	return &DeviceError{
		Type:     ErrTypeParse,
		Message:  message,
		Identity: identity,
		Err:      err,
	}
}

func asDeviceError(err error) (*DeviceError, bool) {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr, true
	}
	return nil, false
}

// IsNetworkError checks if an error is a network error (including timeout, connection refused, DNS, etc.)
func IsNetworkError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeNetwork ||
			devErr.Type == ErrTypeTimeout ||
			devErr.Type == ErrTypeConnectionRefused ||
			devErr.Type == ErrTypeDNS
	}
	return false
}

// IsNotFound checks if an error is a resolution failure
func IsNotFound(err error) bool {
	if devErr, ok := asDeviceError(err); ok && devErr.Type == ErrTypeNotFound {
		return true
	}
	return errors.Is(err, discovery.ErrDeviceNotFound)
}

// IsKeyRejected checks if an error is a rejected key send
func IsKeyRejected(err error) bool {
	devErr, ok := asDeviceError(err)
	return ok && devErr.Type == ErrTypeKeyRejected
}

// IsUnknownKey checks if an error names a key missing from the table
func IsUnknownKey(err error) bool {
	devErr, ok := asDeviceError(err)
	return ok && devErr.Type == ErrTypeUnknownKey
}

// IsHTTPError checks if an error is an HTTP error
func IsHTTPError(err error) bool {
	devErr, ok := asDeviceError(err)
	return ok && devErr.Type == ErrTypeHTTP
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	devErr, ok := asDeviceError(err)
	return ok && devErr.Type == ErrTypeParse
}

// IsRetryable checks if an error warrants a re-resolve and retry
func IsRetryable(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Retryable
	}
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	devErr, ok := asDeviceError(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch devErr.Type {
	case ErrTypeNotFound:
		return strings.Join([]string{
			"The set-top box could not be found on the network.",
			"Troubleshooting:",
			"  • Check that the box is switched on (not in deep standby)",
			"  • Serial numbers start with FS- and are shown under Settings > System",
			"  • SSDP discovery needs multicast; try the box's IP address instead",
			"  • Run 'freesat scan' to list boxes that answer discovery",
		}, "\n")

	case ErrTypeTimeout:
		return strings.Join([]string{
			"The box did not respond in time.",
			"Troubleshooting:",
			"  • Check that the box is powered on and on the same network",
			"  • Try increasing the timeout with --timeout",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The box refused the connection.",
			"Troubleshooting:",
			"  • The control port changes when the box restarts; retry to rediscover it",
			"  • Check that network remote control is enabled on the box",
		}, "\n")

	case ErrTypeDNS:
		return "Could not resolve a hostname. Check your network DNS settings."

	case ErrTypeNetwork:
		return strings.Join([]string{
			"Network communication failed.",
			"Troubleshooting:",
			"  • Check your network connection",
			"  • Verify the box is powered on",
		}, "\n")

	case ErrTypeKeyRejected:
		return fmt.Sprintf("The box did not accept key %q (HTTP %d). It may be in standby or showing a menu that ignores the key.", devErr.Key, devErr.StatusCode)

	case ErrTypeUnknownKey:
		return "Run 'freesat keys' to list the supported key names. Names are case-sensitive."

	case ErrTypeHTTP:
		if devErr.StatusCode == 404 {
			return "The endpoint was not found. The box firmware or regional service may not support this request."
		}
		return fmt.Sprintf("The server returned HTTP error %d.", devErr.StatusCode)

	case ErrTypeParse:
		return "Failed to parse the response. The box firmware or regional service may have changed its format."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	devErr, ok := asDeviceError(err)
	if !ok {
		if errors.Is(err, discovery.ErrDeviceNotFound) {
			return "Device not found"
		}
		return err.Error()
	}

	switch devErr.Type {
	case ErrTypeNotFound:
		return fmt.Sprintf("Device not found: %s", devErr.Identity)
	case ErrTypeTimeout:
		return "Device not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Device refused connection"
	case ErrTypeDNS:
		return "Cannot resolve hostname"
	case ErrTypeNetwork:
		return "Network error - check connection"
	case ErrTypeKeyRejected:
		return fmt.Sprintf("Key %q rejected (HTTP %d)", devErr.Key, devErr.StatusCode)
	case ErrTypeUnknownKey:
		return fmt.Sprintf("Unknown key %q", devErr.Key)
	case ErrTypeHTTP:
		return fmt.Sprintf("Request failed (HTTP %d)", devErr.StatusCode)
	case ErrTypeParse:
		return "Failed to parse response"
	default:
		return devErr.Message
	}
}
