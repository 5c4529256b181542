// Package keycodes holds the remote-control key table for Freesat set-top boxes.
//
// The box's /rc/remote endpoint accepts HbbTV/DOM virtual key codes. This
// package maps the names printed on the physical remote ("Play", "Volume Up",
// "0" to "9") to those codes.
//
// # Lookups
//
// Lookups are exact and case-sensitive:
//
//	code, ok := keycodes.Lookup("Play") // 415, true
//	_, ok = keycodes.Lookup("play")     // 0, false
//
// Digits are single-character names, which is what lets a channel number such
// as "702" be sent one digit at a time.
//
// # Thread Safety
//
// The table is never modified after package initialisation. All functions are
// safe for concurrent use; All returns a copy.
package keycodes
