// Package remote implements the interactive terminal remote control.
//
// The remote is a bubbletea program: each keyboard key is bound to a button
// on the Freesat remote (arrows, enter for OK, p for Play, digits, colour keys
// and so on) and pressing it sends that button to the box. Presses are sent
// strictly in order; keys typed while a send is in flight are queued and the
// queue is dropped when a press fails.
//
// The power state is fetched on start, after every Power press, and on demand
// with R.
//
//	err := remote.Run(ctx, client, "FS-HMX-01A-0000-6A15", "Living Room")
//
// Pick shows the boxes found on the network and returns the one chosen:
//
//	device, err := remote.Pick(ctx, dispatcher.SSDP, registry.DisplayName)
package remote
