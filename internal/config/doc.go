// Package config provides user configuration management for the freesat tools.
//
// This package manages a YAML configuration file holding known set-top boxes
// (nickname, last resolved address, region pair), the default box, timeouts,
// overrides for the regional content endpoints and bridge settings.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/freesat/config.yaml or $HOME/.config/freesat/config.yaml
//   - macOS: $HOME/.config/freesat/config.yaml
//   - Windows: %AppData%\freesat\config.yaml
//
// FREESAT_CONFIG overrides the location.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.SetDeviceNickname("FS-HMX-01A-0000-6A15", "Living Room")
//	identity := registry.ResolveIdentity("living room")
//
//	// Save changes atomically
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// File operations are protected by a mutex and writes go through a temporary
// file and rename. A Registry value itself is not safe for concurrent mutation.
package config
