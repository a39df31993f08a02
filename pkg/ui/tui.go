package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	appevents "github.com/corv87/lanCaller/internal/app_events"
	clientevents "github.com/corv87/lanCaller/internal/app_events/client"
	"github.com/corv87/lanCaller/pkg/call"
	"github.com/corv87/lanCaller/pkg/discovery"
)

// AppController is the slice of the application the TUI talks to.
type AppController interface {
	Run(ctx context.Context) error
	UIMessages() <-chan tea.Msg
	AppEvents() chan<- appevents.AppEvent
}

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Call    key.Binding
	Answer  key.Binding
	Decline key.Binding
	HangUp  key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k")),
		Down:    key.NewBinding(key.WithKeys("down", "j")),
		Call:    key.NewBinding(key.WithKeys("enter", "c")),
		Answer:  key.NewBinding(key.WithKeys("a")),
		Decline: key.NewBinding(key.WithKeys("d")),
		HangUp:  key.NewBinding(key.WithKeys("h", "e")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c")),
	}
}

type appStoppedMsg struct{ err error }

// Model is the root bubbletea model.
type Model struct {
	app    AppController
	ctx    context.Context
	cancel context.CancelFunc

	keys    keyMap
	spin    spinner.Model
	peers   []discovery.PeerInfo
	cursor  int
	snap    call.Snapshot
	lastErr error
}

func NewModel(app AppController) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		app:    app,
		ctx:    ctx,
		cancel: cancel,
		keys:   defaultKeyMap(),
		spin:   sp,
		snap:   call.Snapshot{Status: call.StatusIdle},
	}
}

func (m Model) Init() tea.Cmd {
	app := m.app
	ctx := m.ctx
	runDone := func() tea.Msg {
		err := app.Run(ctx)
		if err != nil && err != context.Canceled {
			return appStoppedMsg{err: err}
		}
		return nil
	}
	return tea.Batch(m.spin.Tick, runDone, m.waitForAppMsg())
}

func (m Model) waitForAppMsg() tea.Cmd {
	return func() tea.Msg {
		return <-m.app.UIMessages()
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case clientevents.PeersFoundMsg:
		m.peers = msg.Peers
		if m.cursor >= len(m.peers) {
			m.cursor = max(0, len(m.peers)-1)
		}
		return m, m.waitForAppMsg()

	case clientevents.CallStatusMsg:
		m.snap = msg.Snapshot
		if m.snap.Status != call.StatusIdle {
			m.lastErr = nil
		}
		return m, m.waitForAppMsg()

	case appevents.ErrorMsg:
		m.lastErr = msg.Err
		return m, m.waitForAppMsg()

	case appStoppedMsg:
		m.lastErr = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.peers)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Call):
		if m.snap.Status == call.StatusIdle && m.cursor < len(m.peers) {
			m.send(clientevents.CallPeerMsg{Peer: m.peers[m.cursor]})
		}

	case key.Matches(msg, m.keys.Answer):
		if m.incomingRinging() {
			m.send(clientevents.AnswerCallMsg{})
		}

	case key.Matches(msg, m.keys.Decline):
		if m.incomingRinging() {
			m.send(clientevents.DeclineCallMsg{})
		}

	case key.Matches(msg, m.keys.HangUp):
		if m.snap.Status != call.StatusIdle {
			m.send(clientevents.HangUpMsg{})
		}
	}
	return m, nil
}

func (m Model) incomingRinging() bool {
	return m.snap.Status == call.StatusRinging && m.snap.Role == call.RoleCallee
}

func (m Model) send(event appevents.AppEvent) {
	go func() {
		m.app.AppEvents() <- event
	}()
}

func (m Model) View() string {
	s := titleStyle.Render("lanCaller") + "\n\n"
	s += m.peersView()
	s += "\n" + m.statusView() + "\n"
	if m.lastErr != nil {
		s += errorStyle.Render(fmt.Sprintf("error: %v", m.lastErr)) + "\n"
	}
	s += helpStyle.Render(m.helpLine())
	return s
}

func (m Model) peersView() string {
	if len(m.peers) == 0 {
		return dimStyle.Render("searching for peers...") + "\n"
	}
	var s string
	for i, p := range m.peers {
		line := fmt.Sprintf("%s (%s)", truncateName(p.DisplayName), p.ID)
		if i == m.cursor {
			s += selectedStyle.Render("> "+line) + "\n"
		} else {
			s += "  " + line + "\n"
		}
	}
	return s
}

func (m Model) statusView() string {
	name := truncateName(m.snap.Remote.DisplayName)
	switch m.snap.Status {
	case call.StatusIdle:
		if m.snap.Reason != "" {
			return dimStyle.Render(m.snap.Reason)
		}
		return dimStyle.Render("ready")
	case call.StatusCalling, call.StatusConnecting:
		return m.spin.View() + statusStyle.Render(fmt.Sprintf("%s %s...", m.snap.Status, name))
	case call.StatusRinging:
		if m.snap.Role == call.RoleCallee {
			return ringStyle.Render(fmt.Sprintf("incoming call from %s: (a)nswer / (d)ecline", name))
		}
		return m.spin.View() + statusStyle.Render(fmt.Sprintf("ringing %s...", name))
	case call.StatusConnected:
		return connectedStyle.Render(fmt.Sprintf("in call with %s", name))
	default:
		reason := m.snap.Reason
		if reason == "" {
			reason = m.snap.Status.String()
		}
		return statusStyle.Render(reason)
	}
}

func (m Model) helpLine() string {
	switch {
	case m.incomingRinging():
		return "a: answer • d: decline • q: quit"
	case m.snap.Status != call.StatusIdle:
		return "h: hang up • q: quit"
	default:
		return "↑/↓: select peer • enter: call • q: quit"
	}
}
