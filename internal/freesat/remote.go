package freesat

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/muurk/freesat/internal/keycodes"
	"github.com/muurk/freesat/internal/logging"
)

// remoteBody is the XML document /rc/remote expects
const remoteBody = `<?xml version="1.0" ?><remote><key code="%d"/></remote>`

// SendCode posts a raw key code to the box. The box's answer is returned
// whatever its status; only transport failures are errors.
func (c *Client) SendCode(ctx context.Context, identity string, code int) (*KeyResponse, error) {
	var result *KeyResponse
	err := c.withDevice(ctx, identity, func(base string) error {
		resp, err := c.do(ctx, identity, http.MethodPost, base+RemotePath,
			strings.NewReader(fmt.Sprintf(remoteBody, code)), "text/xml")
		if err != nil {
			return err
		}
		result = &KeyResponse{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       truncateBody(resp.Body),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SendKeys presses keys on the box. A string that is itself a key name
// ("Play", "Volume Up", "7") is sent as one key. Anything else is split
// into single characters, each of which must be a key name ("702" sends
// 7, 0 and 2). The whole split is checked before the first key goes out,
// so "7x" sends nothing and fails with an unknown-key error. Sending stops
// at the first key the box does not accept.
func (c *Client) SendKeys(ctx context.Context, identity, keys string) error {
	if code, ok := keycodes.Lookup(keys); ok {
		return c.sendKey(ctx, identity, keys, code)
	}
	return c.SendKeySequence(ctx, identity, SplitKeys(keys))
}

// SendKeySequence presses each named key in order. Every name is checked
// against the key table before anything is sent.
func (c *Client) SendKeySequence(ctx context.Context, identity string, names []string) error {
	if len(names) == 0 {
		return NewUnknownKeyError(identity, "")
	}

	codes := make([]int, len(names))
	for i, name := range names {
		code, ok := keycodes.Lookup(name)
		if !ok {
			return NewUnknownKeyError(identity, name)
		}
		codes[i] = code
	}

	for i, name := range names {
		if err := c.sendKey(ctx, identity, name, codes[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) sendKey(ctx context.Context, identity, name string, code int) error {
	resp, err := c.SendCode(ctx, identity, code)
	if err != nil {
		return err
	}

	logging.LogKeySend(identity, name, code, resp.StatusCode)

	if resp.StatusCode != http.StatusAccepted {
		return NewKeyRejectedError(identity, name, resp.StatusCode, []byte(resp.Body))
	}
	return nil
}

// SplitKeys returns the key names SendKeys would press for keys
func SplitKeys(keys string) []string {
	if _, ok := keycodes.Lookup(keys); ok {
		return []string{keys}
	}
	names := make([]string, 0, len(keys))
	for _, r := range keys {
		names = append(names, string(r))
	}
	return names
}
