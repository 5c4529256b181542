package mqttbridge

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when no prefix is configured
const DefaultTopicPrefix = "freesat"

// Topics builds the bridge's topic names under a prefix
type Topics struct {
	Prefix string
}

// NewTopics trims stray slashes from prefix and falls back to the default
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

// KeysSet is the command topic taking a key string.
//
// Example: freesat/FS-HMX-01A-0000-6A15/keys/set
func (t Topics) KeysSet(identity string) string {
	return fmt.Sprintf("%s/%s/keys/set", t.Prefix, identity)
}

// CodeSet is the command topic taking a raw key code
func (t Topics) CodeSet(identity string) string {
	return fmt.Sprintf("%s/%s/code/set", t.Prefix, identity)
}

// Ack carries the outcome of the last command for a device
func (t Topics) Ack(identity string) string {
	return fmt.Sprintf("%s/%s/ack", t.Prefix, identity)
}

// Power is the retained power state topic
func (t Topics) Power(identity string) string {
	return fmt.Sprintf("%s/%s/power", t.Prefix, identity)
}

// Status is the retained online/offline topic of the bridge itself
func (t Topics) Status() string {
	return t.Prefix + "/bridge/status"
}
