package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/freesat/internal/config"
	"github.com/muurk/freesat/internal/discovery"
	"github.com/muurk/freesat/internal/freesat"
	"github.com/muurk/freesat/internal/logging"
	"github.com/muurk/freesat/internal/version"
)

// session is a client wired to the registry: resolver caches are seeded from
// it and whatever was learned is written back by remember
type session struct {
	registry   *config.Registry
	dispatcher *discovery.Dispatcher
	client     *freesat.Client
}

func newSession(reg *config.Registry) *session {
	prefs := reg.Preferences

	dispatcher := discovery.NewDispatcher()
	dispatcher.SSDP.Timeout = prefs.DiscoverTimeoutDuration()
	dispatcher.PortScan.ProbeTimeout = prefs.ProbeTimeoutDuration()
	if prefs != nil && prefs.ScanBatchSize > 0 {
		dispatcher.PortScan.BatchSize = prefs.ScanBatchSize
	}

	client := freesat.NewClient(dispatcher)
	client.Endpoints = reg.Endpoints.WithDefaults()
	client.UserAgent = version.UserAgent()

	timeout := prefs.RequestTimeoutDuration()
	if timeoutFlag > 0 {
		timeout = time.Duration(timeoutFlag) * time.Second
	}
	client.SetTimeout(timeout)

	for identity, device := range reg.Devices {
		dispatcher.Seed(identity, device.LastAddress)
		if regions, ok := reg.Regions(identity); ok {
			client.SeedRegions(identity, regions)
		}
	}

	return &session{registry: reg, dispatcher: dispatcher, client: client}
}

// requireDevice resolves the --device flag (or the default device) to an
// identity
func (s *session) requireDevice() (string, error) {
	identity := s.registry.ResolveIdentity(deviceFlag)
	if identity == "" {
		return "", fmt.Errorf("no device given: pass --device or set one with 'freesat alias <name> <identity> --default'")
	}
	return identity, nil
}

// remember records the address and regions learned for identity and saves
// the registry when anything changed
func (s *session) remember(identity string) {
	changed := false

	if base, ok := s.dispatcher.Cached(identity); ok {
		s.registry.RememberAddress(identity, base)
		changed = true
	}

	if regions, ok := s.client.CachedRegions(identity); ok {
		if known, ok := s.registry.Regions(identity); !ok || known != regions {
			s.registry.RememberRegions(identity, regions)
			changed = true
		}
	}

	if !changed {
		return
	}
	if err := s.registry.Save(); err != nil {
		logging.Warn("Failed to save configuration", zap.Error(err))
	}
}

// printJSON writes v indented to stdout
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// printRawJSON pretty-prints a JSON document passed through from a service
func printRawJSON(raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("failed to format JSON: %w", err)
	}
	fmt.Println(buf.String())
	return nil
}

// output prints v as JSON or through detailed depending on --format
func output(v any, detailed func()) error {
	if outputFormat == "json" {
		return printJSON(v)
	}
	detailed()
	return nil
}
