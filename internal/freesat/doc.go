// Package freesat is the remote-control and status client for Freesat
// set-top boxes.
//
// Boxes are addressed by identity (serial number or IP address). The Client
// resolves the identity through a discovery.Resolver, then talks to the
// box's HTTP control service:
//
//   - POST /rc/remote sends a key code; the box answers 202 Accepted
//   - GET /rc/power, /rc/locale and /rc/apps/<name> return small XML documents
//
// Regional content (channel list, now/next EPG, on-demand players and the
// showcase feed) is served by Freesat's public content service, keyed by the
// region pair derived from the box's postcode.
//
// # Usage Example
//
//	client := freesat.NewClient(discovery.NewDispatcher())
//
//	// Change to channel 702
//	if err := client.SendKeys(ctx, "FS-HMX-01A-0000-6A15", "702"); err != nil {
//	    fmt.Println(freesat.GetShortErrorMessage(err))
//	}
//
//	power, err := client.PowerStatus(ctx, "FS-HMX-01A-0000-6A15")
//
// # Error Handling
//
// Every failure is a *DeviceError carrying the identity and, where relevant,
// the key or HTTP status. Connection-level failures against a cached address
// trigger exactly one re-resolve and retry before being returned.
//
// # Thread Safety
//
// A Client is safe for concurrent use. Address and region caches are per
// client and concurrent lookups for one identity are collapsed.
package freesat
