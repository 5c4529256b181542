// Package logging provides structured logging for the freesat tools.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used across discovery, the device client and the bridge.
//
// # Log Levels
//
//   - Debug: Per-request HTTP details, SSDP candidates, probe results
//   - Info: Resolutions, key sends, bridge lifecycle
//   - Warn: Stale cached addresses, retries, dropped WebSocket clients
//   - Error: Failures surfaced to the user
//
// # Silent By Default
//
// The CLI must not print log lines in the middle of its output, so the logger
// is a no-op until Initialize is called with a level or FREESAT_LOG_LEVEL is
// set:
//
//	FREESAT_LOG_LEVEL=debug freesat power --device FS-HMX-01A-0000-6A15
//
// Commands pass their --log-level and --log-format flags instead. The
// bridge usually runs with JSON lines for a log collector:
//
//	if err := logging.Configure("info", "json"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Specialized Logging
//
//	logging.LogResolve(identity, "ssdp", "http://192.168.1.20:55000")
//	logging.LogKeySend(identity, "Play", 415, 202)
//	logging.LogDeviceRequest("GET", url, 200, elapsed)
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. Initialize and SetLogger
// are meant to be called once at startup.
package logging
