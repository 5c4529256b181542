package remote

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/freesat/internal/keycodes"
)

// buttonBinding ties a keyboard binding to the remote button it presses
type buttonBinding struct {
	Binding key.Binding
	Button  string
}

// keyMap defines the keyboard layout of the interactive remote
type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	Left        key.Binding
	Right       key.Binding
	OK          key.Binding
	Back        key.Binding
	Play        key.Binding
	Pause       key.Binding
	Stop        key.Binding
	Record      key.Binding
	Rewind      key.Binding
	FastForward key.Binding
	Red         key.Binding
	Green       key.Binding
	Yellow      key.Binding
	Blue        key.Binding
	VolumeUp    key.Binding
	VolumeDown  key.Binding
	Mute        key.Binding
	ChannelUp   key.Binding
	ChannelDown key.Binding
	Info        key.Binding
	Guide       key.Binding
	Home        key.Binding
	Text        key.Binding
	Power       key.Binding
	Digits      key.Binding
	Refresh     key.Binding
	Help        key.Binding
	Quit        key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.OK, k.Back, k.Play, k.Pause, k.Digits, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.OK, k.Back, k.Home},
		{k.Play, k.Pause, k.Stop, k.Record, k.Rewind, k.FastForward},
		{k.Red, k.Green, k.Yellow, k.Blue, k.Info, k.Guide, k.Text},
		{k.VolumeUp, k.VolumeDown, k.Mute, k.ChannelUp, k.ChannelDown, k.Digits},
		{k.Power, k.Refresh, k.Help, k.Quit},
	}
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "down"),
	),
	Left: key.NewBinding(
		key.WithKeys("left"),
		key.WithHelp("←", "left"),
	),
	Right: key.NewBinding(
		key.WithKeys("right"),
		key.WithHelp("→", "right"),
	),
	OK: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "ok"),
	),
	Back: key.NewBinding(
		key.WithKeys("backspace", "esc"),
		key.WithHelp("⌫", "back"),
	),
	Play: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "play"),
	),
	Pause: key.NewBinding(
		key.WithKeys(" ", "space"),
		key.WithHelp("space", "pause"),
	),
	Stop: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "stop"),
	),
	Record: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "record"),
	),
	Rewind: key.NewBinding(
		key.WithKeys(","),
		key.WithHelp(",", "rewind"),
	),
	FastForward: key.NewBinding(
		key.WithKeys("."),
		key.WithHelp(".", "fast forward"),
	),
	Red: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "red"),
	),
	Green: key.NewBinding(
		key.WithKeys("g"),
		key.WithHelp("g", "green"),
	),
	Yellow: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "yellow"),
	),
	Blue: key.NewBinding(
		key.WithKeys("b"),
		key.WithHelp("b", "blue"),
	),
	VolumeUp: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+", "vol up"),
	),
	VolumeDown: key.NewBinding(
		key.WithKeys("-"),
		key.WithHelp("-", "vol down"),
	),
	Mute: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "mute"),
	),
	ChannelUp: key.NewBinding(
		key.WithKeys("]", "pgup"),
		key.WithHelp("]", "ch up"),
	),
	ChannelDown: key.NewBinding(
		key.WithKeys("[", "pgdown"),
		key.WithHelp("[", "ch down"),
	),
	Info: key.NewBinding(
		key.WithKeys("i"),
		key.WithHelp("i", "info"),
	),
	Guide: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "guide"),
	),
	Home: key.NewBinding(
		key.WithKeys("h"),
		key.WithHelp("h", "home"),
	),
	Text: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "text"),
	),
	Power: key.NewBinding(
		key.WithKeys("P"),
		key.WithHelp("P", "power"),
	),
	Digits: key.NewBinding(
		key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"),
		key.WithHelp("0-9", "digits"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("R"),
		key.WithHelp("R", "refresh power"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// buttons lists the bindings that press a fixed remote button. Digits are
// handled separately since the pressed key is the button name.
var buttons = []buttonBinding{
	{keys.Up, keycodes.Up},
	{keys.Down, keycodes.Down},
	{keys.Left, keycodes.Left},
	{keys.Right, keycodes.Right},
	{keys.OK, keycodes.OK},
	{keys.Back, keycodes.Back},
	{keys.Play, keycodes.Play},
	{keys.Pause, keycodes.Pause},
	{keys.Stop, keycodes.Stop},
	{keys.Record, keycodes.Record},
	{keys.Rewind, keycodes.Rewind},
	{keys.FastForward, keycodes.FastForward},
	{keys.Red, keycodes.Red},
	{keys.Green, keycodes.Green},
	{keys.Yellow, keycodes.Yellow},
	{keys.Blue, keycodes.Blue},
	{keys.VolumeUp, keycodes.VolumeUp},
	{keys.VolumeDown, keycodes.VolumeDown},
	{keys.Mute, keycodes.Mute},
	{keys.ChannelUp, keycodes.ChannelUp},
	{keys.ChannelDown, keycodes.ChannelDown},
	{keys.Info, keycodes.Info},
	{keys.Guide, keycodes.Guide},
	{keys.Home, keycodes.Home},
	{keys.Text, keycodes.Text},
	{keys.Power, keycodes.Power},
}

// ButtonFor returns the remote button a key press maps to
func ButtonFor(msg tea.KeyMsg) (string, bool) {
	if key.Matches(msg, keys.Digits) {
		return msg.String(), true
	}
	for _, b := range buttons {
		if key.Matches(msg, b.Binding) {
			return b.Button, true
		}
	}
	return "", false
}
