// Package tui renders the wallet session in the terminal and drives mint and
// deposit from key presses.
package tui

import (
	"context"
	"errors"
	"fmt"

	"depositdapp/internal/session"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
)

// Session is what the screen reads and drives.
type Session interface {
	State() session.State
	Connect(ctx context.Context) error
	ReadBalances(ctx context.Context) (session.Snapshot, error)
	Mint(ctx context.Context, account common.Address) error
	Deposit(ctx context.Context, account common.Address, amount string) error
	DismissError()
	Subscribe(l session.Listener) (cancel func())
}

// eventBuffer bounds the queue between session listeners and the program.
// Every event carries a full State, so a dropped one only delays a repaint.
const eventBuffer = 32

type eventMsg struct {
	event session.Event
}

type opDoneMsg struct {
	op  string
	err error
}

// Model is the single wallet screen.
type Model struct {
	ctx           context.Context
	sess          Session
	depositAmount string
	events        chan session.Event

	keys    KeyMap
	spinner spinner.Model
	state   session.State

	busy       bool
	op         string
	noProvider bool
	width      int
}

// New builds the model and subscribes it to sess. The returned cancel func
// removes the subscription.
func New(ctx context.Context, sess Session, depositAmount string) (Model, func()) {
	events := make(chan session.Event, eventBuffer)
	cancel := sess.Subscribe(func(ev session.Event) {
		select {
		case events <- ev:
		default:
		}
	})

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	m := Model{
		ctx:           ctx,
		sess:          sess,
		depositAmount: depositAmount,
		events:        events,
		keys:          DefaultKeyMap().setBusy(true),
		spinner:       sp,
		state:         sess.State(),
		busy:          true,
		op:            "connect",
	}
	return m, cancel
}

// Init requests account access immediately.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent(), m.run("connect", m.sess.Connect))
}

func (m Model) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		return eventMsg{event: <-events}
	}
}

func (m Model) run(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

// start marks op in flight and returns the command performing it.
func (m Model) start(op string, fn func(context.Context) error) (Model, tea.Cmd) {
	m.busy = true
	m.op = op
	m.keys = m.keys.setBusy(true)
	return m, m.run(op, fn)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.state = msg.event.State
		return m, m.waitForEvent()

	case opDoneMsg:
		m.busy = false
		m.op = ""
		m.keys = m.keys.setBusy(false)
		m.state = m.sess.State()
		if errors.Is(msg.err, session.ErrNoProvider) {
			m.noProvider = true
		}
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
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Dismiss):
		m.sess.DismissError()
		m.state = m.sess.State()
		return m, nil
	}

	if m.noProvider {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Connect):
		return m.start("connect", m.sess.Connect)

	case !m.state.Session.Connected:
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m.start("refresh", func(ctx context.Context) error {
			_, err := m.sess.ReadBalances(ctx)
			return err
		})

	case key.Matches(msg, m.keys.Mint):
		account := m.state.Session.Account
		return m.start("mint", func(ctx context.Context) error {
			return m.sess.Mint(ctx, account)
		})

	case key.Matches(msg, m.keys.Deposit):
		account, amount := m.state.Session.Account, m.depositAmount
		return m.start(fmt.Sprintf("deposit %s", amount), func(ctx context.Context) error {
			return m.sess.Deposit(ctx, account, amount)
		})
	}
	return m, nil
}

// Run shows the screen until the user quits or ctx is cancelled.
func Run(ctx context.Context, sess Session, depositAmount string, opts ...tea.ProgramOption) error {
	m, cancel := New(ctx, sess, depositAmount)
	defer cancel()

	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	_, err := tea.NewProgram(m, opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
