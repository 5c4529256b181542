package keycodes

import (
	"fmt"
	"sort"
)

// Key names as printed on the Freesat remote.
const (
	Power       = "Power"
	Play        = "Play"
	Pause       = "Pause"
	Stop        = "Stop"
	Record      = "Record"
	FastForward = "Fast Forward"
	Rewind      = "Rewind"
	Up          = "Up"
	Down        = "Down"
	Left        = "Left"
	Right       = "Right"
	OK          = "OK"
	Back        = "Back"
	Home        = "Home"
	Guide       = "Guide"
	Info        = "Info"
	Text        = "Text"
	Subtitles   = "Subtitles"
	Red         = "Red"
	Green       = "Green"
	Yellow      = "Yellow"
	Blue        = "Blue"
	ChannelUp   = "Channel Up"
	ChannelDown = "Channel Down"
	VolumeUp    = "Volume Up"
	VolumeDown  = "Volume Down"
	Mute        = "Mute"
)

// table maps key names to virtual key codes.
var table = map[string]int{
	Power:       409,
	Play:        415,
	Pause:       19,
	Stop:        413,
	Record:      416,
	FastForward: 417,
	Rewind:      412,
	Up:          38,
	Down:        40,
	Left:        37,
	Right:       39,
	OK:          13,
	Back:        461,
	Home:        36,
	Guide:       458,
	Info:        457,
	Text:        459,
	Subtitles:   460,
	Red:         403,
	Green:       404,
	Yellow:      405,
	Blue:        406,
	ChannelUp:   427,
	ChannelDown: 428,
	VolumeUp:    447,
	VolumeDown:  448,
	Mute:        449,
	"0":         48,
	"1":         49,
	"2":         50,
	"3":         51,
	"4":         52,
	"5":         53,
	"6":         54,
	"7":         55,
	"8":         56,
	"9":         57,
}

// byCode is the reverse index, built once at init.
var byCode = func() map[int]string {
	m := make(map[int]string, len(table))
	for name, code := range table {
		m[code] = name
	}
	return m
}()

// Lookup returns the code for an exact, case-sensitive key name.
func Lookup(name string) (int, bool) {
	code, ok := table[name]
	return code, ok
}

// MustLookup is like Lookup but panics on an unknown name.
// Only use it with the exported name constants.
func MustLookup(name string) int {
	code, ok := table[name]
	if !ok {
		panic(fmt.Sprintf("keycodes: unknown key %q", name))
	}
	return code
}

// NameFor returns the key name for a code, or "" if the code is not in the table.
func NameFor(code int) string {
	return byCode[code]
}

// Names returns every key name, sorted.
func Names() []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns a copy of the full table.
func All() map[string]int {
	out := make(map[string]int, len(table))
	for name, code := range table {
		out[name] = code
	}
	return out
}
