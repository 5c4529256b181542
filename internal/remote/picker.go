package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/freesat/internal/discovery"
)

// Browser lists the boxes on the network
type Browser interface {
	Browse(ctx context.Context) ([]*discovery.Device, error)
}

type browseMsg struct {
	devices []*discovery.Device
	err     error
}

// deviceItem adapts a discovered box to bubbles/list
type deviceItem struct {
	device *discovery.Device
	name   string
}

func (d deviceItem) FilterValue() string {
	return d.name + " " + d.device.FriendlyName + " " + d.device.BaseURL
}

func (d deviceItem) Title() string { return d.name }

func (d deviceItem) Description() string {
	desc := d.device.BaseURL
	if d.device.ModelName != "" {
		desc = fmt.Sprintf("%s %s • %s", d.device.Manufacturer, d.device.ModelName, desc)
	}
	return desc
}

type pickerKeyMap struct {
	Select key.Binding
	Rescan key.Binding
	Quit   key.Binding
}

func (k pickerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Rescan, k.Quit}
}

func (k pickerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var pickerKeys = pickerKeyMap{
	Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "control")),
	Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
	Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Picker is a box chooser shown when the remote is started without a device
type Picker struct {
	ctx     context.Context
	browser Browser
	display func(identity string) string

	list     list.Model
	spinner  spinner.Model
	help     help.Model
	scanning bool
	err      error
	chosen   *discovery.Device

	width, height int
}

// NewPicker creates a picker. display renders an identity for the list
// (nickname lookups); nil shows identities as they are.
func NewPicker(ctx context.Context, browser Browser, display func(string) string) Picker {
	if display == nil {
		display = func(identity string) string { return identity }
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	l := list.New(nil, list.NewDefaultDelegate(), MinTerminalWidth, MinTerminalHeight-8)
	l.Title = "Freesat boxes"
	l.Styles.Title = TitleStyle
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	return Picker{
		ctx:      ctx,
		browser:  browser,
		display:  display,
		list:     l,
		spinner:  s,
		help:     help.New(),
		scanning: true,
	}
}

// Chosen returns the selected box, or nil if the user quit
func (p Picker) Chosen() *discovery.Device {
	return p.chosen
}

func (p Picker) browse() tea.Cmd {
	return func() tea.Msg {
		devices, err := p.browser.Browse(p.ctx)
		return browseMsg{devices: devices, err: err}
	}
}

func (p Picker) Init() tea.Cmd {
	return tea.Batch(p.spinner.Tick, p.browse())
}

func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width, p.height = clampSize(msg.Width, msg.Height)
		p.list.SetSize(p.width-4, p.height-8)
		return p, nil

	case browseMsg:
		p.scanning = false
		p.err = msg.err
		items := make([]list.Item, 0, len(msg.devices))
		for _, d := range msg.devices {
			items = append(items, deviceItem{device: d, name: p.display(d.Identity)})
		}
		return p, p.list.SetItems(items)

	case spinner.TickMsg:
		if !p.scanning {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, pickerKeys.Quit):
			return p, tea.Quit
		case p.scanning:
			return p, nil
		case key.Matches(msg, pickerKeys.Rescan):
			p.scanning = true
			p.err = nil
			return p, tea.Batch(p.list.SetItems(nil), p.spinner.Tick, p.browse())
		case key.Matches(msg, pickerKeys.Select):
			if item, ok := p.list.SelectedItem().(deviceItem); ok {
				p.chosen = item.device
				return p, tea.Quit
			}
			return p, nil
		}
	}

	var cmd tea.Cmd
	p.list, cmd = p.list.Update(msg)
	return p, cmd
}

func (p Picker) View() string {
	var content string
	switch {
	case p.scanning:
		content = fmt.Sprintf("%s Searching for boxes...", p.spinner.View())
	case p.err != nil:
		content = ErrorStyle.Render("Search failed: " + p.err.Error())
	case len(p.list.Items()) == 0:
		content = SubtitleStyle.Render("No boxes found. Check the box is on and on this network, then press r.")
	default:
		content = p.list.View()
	}
	return RenderApplicationContainer(content, p.help.View(pickerKeys), p.width, p.height)
}

// ErrNoDeviceChosen is returned by Pick when the user quits without choosing
var ErrNoDeviceChosen = errors.New("no device chosen")

// Pick runs the picker and returns the chosen box
func Pick(ctx context.Context, browser Browser, display func(string) string) (*discovery.Device, error) {
	p := tea.NewProgram(NewPicker(ctx, browser, display), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil, ErrNoDeviceChosen
		}
		return nil, err
	}
	if chosen := final.(Picker).Chosen(); chosen != nil {
		return chosen, nil
	}
	return nil, ErrNoDeviceChosen
}
