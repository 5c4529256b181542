package freesat

import (
	"net/url"
	"strings"
)

// DefaultContentBase is the host serving postcode lookups and regional content
const DefaultContentBase = "https://www.freesat.co.uk"

// Endpoints holds the URL templates for the regional content service.
// {postcode}, {primary} and {secondary} are substituted, path-escaped.
type Endpoints struct {
	PostcodeLookup string `yaml:"postcode_lookup,omitempty"`
	Showcase       string `yaml:"showcase,omitempty"`
	OnDemand       string `yaml:"ondemand,omitempty"`
	NowNext        string `yaml:"nownext,omitempty"`
	ChannelList    string `yaml:"channel_list,omitempty"`
}

// DefaultEndpoints returns the public Freesat content endpoints
func DefaultEndpoints() Endpoints {
	return Endpoints{
		PostcodeLookup: DefaultContentBase + "/ms/channels/json/pcodelookup/g2/{postcode}",
		Showcase:       DefaultContentBase + "/ms/showcase/json/{primary}/{secondary}",
		OnDemand:       DefaultContentBase + "/ms/ondemand/json/apps/{primary}/{secondary}",
		NowNext:        DefaultContentBase + "/ms/epg/json/nownext/all/{primary}/{secondary}",
		ChannelList:    DefaultContentBase + "/ms/channels/json/chlist/{primary}/{secondary}",
	}
}

// WithDefaults fills empty templates from DefaultEndpoints
func (e Endpoints) WithDefaults() Endpoints {
	d := DefaultEndpoints()
	if e.PostcodeLookup == "" {
		e.PostcodeLookup = d.PostcodeLookup
	}
	if e.Showcase == "" {
		e.Showcase = d.Showcase
	}
	if e.OnDemand == "" {
		e.OnDemand = d.OnDemand
	}
	if e.NowNext == "" {
		e.NowNext = d.NowNext
	}
	if e.ChannelList == "" {
		e.ChannelList = d.ChannelList
	}
	return e
}

// RebaseAll rewrites DefaultContentBase in every template to base
func (e Endpoints) RebaseAll(base string) Endpoints {
	base = strings.TrimRight(base, "/")
	swap := func(s string) string {
		return strings.Replace(s, DefaultContentBase, base, 1)
	}
	e = e.WithDefaults()
	e.PostcodeLookup = swap(e.PostcodeLookup)
	e.Showcase = swap(e.Showcase)
	e.OnDemand = swap(e.OnDemand)
	e.NowNext = swap(e.NowNext)
	e.ChannelList = swap(e.ChannelList)
	return e
}

func postcodeURL(template, postcode string) string {
	return strings.NewReplacer("{postcode}", url.PathEscape(postcode)).Replace(template)
}

func regionalURL(template string, regions Regions) string {
	return strings.NewReplacer(
		"{primary}", url.PathEscape(regions.Primary),
		"{secondary}", url.PathEscape(regions.Secondary),
	).Replace(template)
}
