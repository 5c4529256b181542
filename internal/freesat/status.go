package freesat

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
)

// getXML fetches path from the box and decodes it into v
func (c *Client) getXML(ctx context.Context, identity, path string, v interface{}) error {
	return c.withDevice(ctx, identity, func(base string) error {
		body, err := c.get(ctx, identity, base+path)
		if err != nil {
			return err
		}
		if err := xml.Unmarshal(body, v); err != nil {
			return NewParseError(identity, fmt.Sprintf("failed to parse %s response", path), err)
		}
		return nil
	})
}

// PowerStatus returns the box's power state
func (c *Client) PowerStatus(ctx context.Context, identity string) (*PowerStatus, error) {
	var status PowerStatus
	if err := c.getXML(ctx, identity, PowerPath, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Locale returns the box's serial number, postcode and tuner count
func (c *Client) Locale(ctx context.Context, identity string) (*Locale, error) {
	var locale Locale
	if err := c.getXML(ctx, identity, LocalePath, &locale); err != nil {
		return nil, err
	}
	return &locale, nil
}

// AppStatus returns the DIAL state of an installed application
func (c *Client) AppStatus(ctx context.Context, identity, app string) (*AppStatus, error) {
	var status AppStatus
	if err := c.getXML(ctx, identity, AppsPath+url.PathEscape(app), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// NetflixStatus returns the DIAL state of the Netflix app
func (c *Client) NetflixStatus(ctx context.Context, identity string) (*AppStatus, error) {
	return c.AppStatus(ctx, identity, NetflixApp)
}
