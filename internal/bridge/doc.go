// Package bridge exposes Freesat boxes over a small HTTP API for home
// automation systems.
//
// # Routes
//
//	GET  /api/keys                         key table
//	POST /api/devices/{id}/keys            {"keys":"702"} or {"sequence":["Down","OK"]}
//	POST /api/devices/{id}/code            {"code":415}
//	GET  /api/devices/{id}/power           power state
//	GET  /api/devices/{id}/locale          serial, postcode, tuners
//	GET  /api/devices/{id}/netflix         Netflix DIAL app state
//	GET  /api/devices/{id}/regions         region pair
//	GET  /api/devices/{id}/showcase        regional content, passed through
//	GET  /api/devices/{id}/ondemand
//	GET  /api/devices/{id}/nownext
//	GET  /api/devices/{id}/channels
//	GET  /api/devices/{id}/events          WebSocket power change stream
//	GET  /metrics                          Prometheus metrics
//
// {id} is a device identity: a serial number or an IP address.
//
// # Errors
//
// Failures come back as {"status":..,"code":..,"message":..,"hint":..}.
// Unknown keys and malformed bodies are 400, unresolvable devices 404, and
// anything the box or a content service got wrong is 502.
//
// # Event Stream
//
// Each event stream polls the power state every PollInterval and pushes a
// {"type":"power"} frame only when the state changes. Failures are pushed
// once as {"type":"error"} frames until the device answers again.
//
// # Discovery
//
// With Advertise set the bridge registers itself over mDNS as
// _freesat-bridge._tcp with TXT records path=/api and version=<version>.
package bridge
