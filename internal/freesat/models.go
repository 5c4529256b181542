package freesat

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
)

// PowerStatus is the body of GET /rc/power:
//
//	<response resource="/rc/power"><power state="on" transitioning-to="" no-passive-standby="true"/></response>
type PowerStatus struct {
	XMLName  xml.Name `xml:"response" json:"-"`
	Resource string   `xml:"resource,attr" json:"resource,omitempty"`
	Power    struct {
		State            string `xml:"state,attr" json:"state"`
		TransitioningTo  string `xml:"transitioning-to,attr" json:"transitioning_to,omitempty"`
		NoPassiveStandby string `xml:"no-passive-standby,attr" json:"no_passive_standby,omitempty"`
	} `xml:"power" json:"power"`
}

// State returns the reported power state ("on", "standby", ...)
func (p *PowerStatus) State() string {
	return p.Power.State
}

// IsOn reports whether the box is fully on
func (p *PowerStatus) IsOn() bool {
	return p.Power.State == "on"
}

// Transitioning reports whether the box is part way through a power change
func (p *PowerStatus) Transitioning() bool {
	return p.Power.TransitioningTo != ""
}

// Locale is the body of GET /rc/locale:
//
//	<response resource="/rc/locale"><locale><deviceid>FS-HMX-01A-0000-FFFF</deviceid><postcode>NN9</postcode><tuners>2</tuners></locale></response>
type Locale struct {
	XMLName  xml.Name `xml:"response" json:"-"`
	Resource string   `xml:"resource,attr" json:"resource,omitempty"`
	Locale   struct {
		DeviceID string `xml:"deviceid" json:"device_id"`
		Postcode string `xml:"postcode" json:"postcode"`
		Tuners   int    `xml:"tuners" json:"tuners"`
	} `xml:"locale" json:"locale"`
}

// DeviceID returns the serial number the box reports for itself
func (l *Locale) DeviceID() string {
	return strings.TrimSpace(l.Locale.DeviceID)
}

// Postcode returns the (outward) postcode configured on the box
func (l *Locale) Postcode() string {
	return strings.TrimSpace(l.Locale.Postcode)
}

// AppStatus is a DIAL application resource, e.g. GET /rc/apps/Netflix:
//
//	<service xmlns="urn:dial-multiscreen-org:schemas:dial" dialVer="1.7">
//	  <name>Netflix</name>
//	  <options allowStop="true"/>
//	  <state>stopped</state>
//	</service>
type AppStatus struct {
	XMLName     xml.Name `xml:"service" json:"-"`
	DialVersion string   `xml:"dialVer,attr" json:"dial_version,omitempty"`
	Name        string   `xml:"name" json:"name"`
	Options     struct {
		AllowStop bool `xml:"allowStop,attr" json:"allow_stop"`
	} `xml:"options" json:"options"`
	State string `xml:"state" json:"state"`
}

// Running reports whether the app is in the foreground
func (a *AppStatus) Running() bool {
	return strings.TrimSpace(a.State) == "running"
}

// Regions is the region pair the regional content endpoints are keyed on
type Regions struct {
	Primary   string `json:"primary_region" yaml:"primary_region"`
	Secondary string `json:"secondary_region" yaml:"secondary_region"`
}

// IsZero reports whether no region is set
func (r Regions) IsZero() bool {
	return r.Primary == "" && r.Secondary == ""
}

// postcodeLookup is the body of the postcode lookup endpoint. Region
// identifiers arrive as numbers or strings depending on the service
// version, so both are accepted.
type postcodeLookup struct {
	PrimaryRegion   json.RawMessage `json:"primaryRegion"`
	SecondaryRegion json.RawMessage `json:"secondaryRegion"`
}

func (p *postcodeLookup) regions() (Regions, error) {
	primary, err := regionID(p.PrimaryRegion)
	if err != nil {
		return Regions{}, fmt.Errorf("primaryRegion: %w", err)
	}
	secondary, err := regionID(p.SecondaryRegion)
	if err != nil {
		return Regions{}, fmt.Errorf("secondaryRegion: %w", err)
	}
	return Regions{Primary: primary, Secondary: secondary}, nil
}

func regionID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("missing")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", fmt.Errorf("empty")
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("not a string or number: %s", raw)
	}
	return n.String(), nil
}

// KeyResponse is what the box answered to a POST /rc/remote
type KeyResponse struct {
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
	Body       string `json:"body,omitempty"`
}

// Accepted reports whether the box took the key (HTTP 202)
func (k *KeyResponse) Accepted() bool {
	return k.StatusCode == 202
}
