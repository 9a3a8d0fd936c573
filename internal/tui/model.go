// Package tui provides a Bubble Tea terminal view of the analytics dashboard.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jpalmerr/creditpulse"
	"github.com/jpalmerr/creditpulse/analytics"
)

// Source is the synchronizer surface the view needs.
type Source interface {
	GetState() creditpulse.State[analytics.Dashboard]
	RefetchBlocking(ctx context.Context) error
}

// Options configures the UI.
type Options struct {
	Context  context.Context
	Source   Source
	Title    string
	PollTick time.Duration
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx      context.Context
	source   Source
	title    string
	pollTick time.Duration
	styles   styles

	width      int
	state      creditpulse.State[analytics.Dashboard]
	refreshing bool
	refreshErr error
	spinner    spinner.Model
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick == 0 {
		pollTick = time.Second
	}

	title := opts.Title
	if title == "" {
		title = "CreditPulse"
	}

	st := newStyles()
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(st.accent))

	return Model{
		ctx:      ctx,
		source:   opts.Source,
		title:    title,
		pollTick: pollTick,
		styles:   st,
		spinner:  sp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(m.pollTick),
		fetchStateCmd(m.source),
		m.spinner.Tick,
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		return m, tea.Batch(fetchStateCmd(m.source), tickCmd(m.pollTick))

	case stateMsg:
		m.state = creditpulse.State[analytics.Dashboard](msg)
		return m, nil

	case refetchDoneMsg:
		m.refreshing = false
		m.refreshErr = msg.err
		return m, fetchStateCmd(m.source)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit

	case "r":
		if m.refreshing {
			return m, nil
		}
		m.refreshing = true
		m.refreshErr = nil
		return m, tea.Batch(refetchCmd(m.ctx, m.source), fetchStateCmd(m.source))
	}
	return m, nil
}

// Messages

type tickMsg time.Time

type stateMsg creditpulse.State[analytics.Dashboard]

type refetchDoneMsg struct{ err error }

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchStateCmd(source Source) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(source.GetState())
	}
}

func refetchCmd(ctx context.Context, source Source) tea.Cmd {
	return func() tea.Msg {
		return refetchDoneMsg{err: source.RefetchBlocking(ctx)}
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or
// opts.Context is cancelled.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
