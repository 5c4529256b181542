package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/muurk/freesat/internal/freesat"
	"github.com/muurk/freesat/internal/keycodes"
	"github.com/muurk/freesat/internal/logging"
)

// Sender is the part of the Freesat client the remote needs
type Sender interface {
	SendKeys(ctx context.Context, identity, keys string) error
	PowerStatus(ctx context.Context, identity string) (*freesat.PowerStatus, error)
}

// Message types
type (
	keySentMsg struct {
		button string
		err    error
	}

	powerMsg struct {
		status *freesat.PowerStatus
		err    error
	}
)

// Model is the bubbletea model of the interactive remote. Button presses
// are sent one at a time in the order they were typed.
type Model struct {
	ctx      context.Context
	sender   Sender
	identity string
	name     string

	spinner spinner.Model
	help    help.Model

	sending string
	queue   []string
	last    string
	sent    int
	err     error

	power        *freesat.PowerStatus
	powerErr     error
	powerLoading bool

	width  int
	height int
}

// NewModel creates a remote for identity. name is what the header shows
// for the box and may be empty.
func NewModel(ctx context.Context, sender Sender, identity, name string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	if name == "" {
		name = identity
	}

	width, height := GetTerminalSize()

	return Model{
		ctx:      ctx,
		sender:   sender,
		identity: identity,
		name:     name,
		spinner:  s,
		help:     help.New(),
		width:    width,
		height:   height,
	}
}

// Run starts the interactive remote in the alternate screen and blocks
// until the user quits or ctx is cancelled.
func Run(ctx context.Context, sender Sender, identity, name string) error {
	p := tea.NewProgram(NewModel(ctx, sender, identity, name),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init fetches the power state and starts the spinner
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchPower())
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = clampSize(msg.Width, msg.Height)
		m.help.Width = m.width - 4
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case keySentMsg:
		return m.handleKeySent(msg)

	case powerMsg:
		m.powerLoading = false
		m.power = msg.status
		m.powerErr = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, keys.Refresh):
		if m.powerLoading {
			return m, nil
		}
		m.powerLoading = true
		return m, m.fetchPower()
	}

	button, ok := ButtonFor(msg)
	if !ok {
		return m, nil
	}

	if m.sending != "" {
		m.queue = append(m.queue, button)
		return m, nil
	}
	return m.startSend(button)
}

func (m Model) startSend(button string) (tea.Model, tea.Cmd) {
	m.sending = button
	m.err = nil
	return m, m.sendButton(button)
}

func (m Model) handleKeySent(msg keySentMsg) (tea.Model, tea.Cmd) {
	m.sending = ""
	m.last = msg.button

	var cmds []tea.Cmd
	if msg.err != nil {
		// Drop whatever was typed after a failed press.
		m.err = msg.err
		m.queue = nil
	} else {
		m.sent++
		if msg.button == keycodes.Power && !m.powerLoading {
			m.powerLoading = true
			cmds = append(cmds, m.fetchPower())
		}
	}

	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.sending = next
		cmds = append(cmds, m.sendButton(next))
	}

	return m, tea.Batch(cmds...)
}

func (m Model) sendButton(button string) tea.Cmd {
	ctx, sender, identity := m.ctx, m.sender, m.identity
	return func() tea.Msg {
		err := sender.SendKeys(ctx, identity, button)
		if err != nil {
			logging.Debug("Remote key press failed",
				zap.String("identity", identity),
				zap.String("key", button),
				zap.Error(err),
			)
		}
		return keySentMsg{button: button, err: err}
	}
}

func (m Model) fetchPower() tea.Cmd {
	ctx, sender, identity := m.ctx, m.sender, m.identity
	return func() tea.Msg {
		status, err := sender.PowerStatus(ctx, identity)
		return powerMsg{status: status, err: err}
	}
}

// View renders the remote
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Remote Control"))
	b.WriteString("\n")

	b.WriteString(LabelStyle.Render("Box"))
	b.WriteString(ValueStyle.Render(m.name))
	b.WriteString("\n")

	b.WriteString(LabelStyle.Render("Power"))
	b.WriteString(m.renderPower())
	b.WriteString("\n\n")

	b.WriteString(m.renderActivity())
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("✗ " + freesat.GetShortErrorMessage(m.err)))
		if hint := freesat.GetTroubleshootingHint(m.err); hint != "" {
			b.WriteString("\n")
			b.WriteString(SubtitleStyle.Render(hint))
		}
		b.WriteString("\n")
	}

	return RenderApplicationContainer(b.String(), m.help.View(keys), m.width, m.height)
}

func (m Model) renderPower() string {
	switch {
	case m.powerLoading:
		return m.spinner.View() + " checking..."
	case m.powerErr != nil:
		return ErrorStyle.Render("unknown") + " " + SubtitleStyle.Render(freesat.GetShortErrorMessage(m.powerErr))
	case m.power == nil:
		return SubtitleStyle.Render("unknown")
	case m.power.Transitioning():
		return PowerStandbyStyle.Render(fmt.Sprintf("%s → %s", m.power.State(), m.power.Power.TransitioningTo))
	case m.power.IsOn():
		return PowerOnStyle.Render(m.power.State())
	default:
		return PowerStandbyStyle.Render(m.power.State())
	}
}

func (m Model) renderActivity() string {
	if m.sending != "" {
		line := m.spinner.View() + " Sending " + ValueStyle.Render(m.sending)
		if n := len(m.queue); n > 0 {
			line += SubtitleStyle.Render(fmt.Sprintf(" (%d queued)", n))
		}
		return line
	}

	if m.last == "" {
		return SubtitleStyle.Render("Press a key to send it to the box.")
	}

	style := PressedKeyCapStyle
	if m.err != nil {
		style = KeyCapStyle.BorderForeground(ErrorColor)
	} else if c, ok := colourKey(m.last); ok {
		style = style.BorderForeground(c).Foreground(c)
	}

	return lipgloss.JoinHorizontal(lipgloss.Center,
		style.Render(m.last),
		"  ",
		SuccessStyle.Render(fmt.Sprintf("%d sent", m.sent)),
	)
}

func colourKey(button string) (lipgloss.Color, bool) {
	switch button {
	case keycodes.Red:
		return RedKeyColor, true
	case keycodes.Green:
		return GreenKeyColor, true
	case keycodes.Yellow:
		return YellowKeyColor, true
	case keycodes.Blue:
		return BlueKeyColor, true
	}
	return "", false
}
