// Package discovery resolves Freesat set-top box identities to the base
// address of the box's HTTP control service.
//
// Two identity shapes are supported:
//
//   - Serial numbers carrying the "FS-" prefix are found with an SSDP
//     M-SEARCH for the DIAL service type. Each responding description
//     document is fetched and its serialNumber compared to the identity.
//   - Anything else is taken to be an IP address. The box's control service
//     listens on an unpredictable port in 60000-65535, so the range is
//     scanned and the lowest open port wins.
//
// # Usage Example
//
//	resolver := discovery.NewDispatcher()
//	base, err := resolver.Address(ctx, "FS-HMC-12345678")
//	if errors.Is(err, discovery.ErrDeviceNotFound) {
//	    // box is off or on another network
//	}
//
// Resolved addresses are cached per resolver. Callers invalidate an entry
// after a connection failure so the next Address call resolves again.
//
// # Network Requirements
//
// SSDP needs multicast on the local segment (UDP port 1900). Port scanning
// opens many short-lived TCP connections to the target.
//
// # Thread Safety
//
// Resolvers are safe for concurrent use. Concurrent lookups of the same
// identity share a single resolution.
package discovery
