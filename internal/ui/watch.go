package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/josephgoksu/TaskPace/internal/app"
	"github.com/josephgoksu/TaskPace/internal/task"
)

// TimerActions is the subset of the task service the watch view drives.
type TimerActions interface {
	Get(ctx context.Context, id, userID string) (*task.Task, error)
	Start(ctx context.Context, id, userID string) (*app.TimerResult, error)
	Resume(ctx context.Context, id, userID string) (*app.TimerResult, error)
	Pause(ctx context.Context, id, userID string) (*app.TimerResult, error)
	Complete(ctx context.Context, opts app.CompleteOptions) (*app.CompleteResult, error)
}

type watchKeys struct {
	Toggle   key.Binding
	Complete key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func (k watchKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Complete, k.Help, k.Quit}
}

func (k watchKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Toggle, k.Complete}, {k.Help, k.Quit}}
}

func defaultWatchKeys() watchKeys {
	return watchKeys{
		Toggle:   key.NewBinding(key.WithKeys(" ", "s"), key.WithHelp("space", "start/pause")),
		Complete: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "complete")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type tickMsg time.Time

type actionMsg struct {
	task *task.Task
	note string
	err  error
}

// WatchModel is a live timer view for one task.
type WatchModel struct {
	ctx     context.Context
	actions TimerActions
	userID  string
	clock   func() time.Time

	task   *task.Task
	now    time.Time
	note   string
	err    error
	keys   watchKeys
	help   help.Model
	busy   bool
	closed bool
}

// NewWatchModel creates the view for t. clock may be nil.
func NewWatchModel(ctx context.Context, actions TimerActions, t *task.Task, userID string, clock func() time.Time) WatchModel {
	if clock == nil {
		clock = time.Now
	}
	return WatchModel{
		ctx:     ctx,
		actions: actions,
		userID:  userID,
		clock:   clock,
		task:    t,
		now:     clock(),
		keys:    defaultWatchKeys(),
		help:    help.New(),
	}
}

// Task returns the latest known task record.
func (m WatchModel) Task() *task.Task { return m.task }

func (m WatchModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.now = m.clock()
		if m.closed {
			return m, nil
		}
		return m, tick()

	case actionMsg:
		m.busy = false
		m.err = msg.err
		if msg.task != nil {
			m.task = msg.task
		}
		m.note = msg.note
		m.now = m.clock()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.closed = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case m.busy || m.task.Timer.Completed:
			return m, nil
		case key.Matches(msg, m.keys.Toggle):
			m.busy = true
			return m, m.toggle()
		case key.Matches(msg, m.keys.Complete):
			m.busy = true
			return m, m.complete()
		}
	}
	return m, nil
}

func (m WatchModel) toggle() tea.Cmd {
	id, phase := m.task.ID, m.task.Timer.Phase()
	return func() tea.Msg {
		var err error
		note := "started"
		switch phase {
		case task.PhaseRunning:
			var res *app.TimerResult
			res, err = m.actions.Pause(m.ctx, id, m.userID)
			if err == nil && res.ElapsedSecondsAdded != nil {
				note = fmt.Sprintf("paused (+%s)", FormatClock(time.Duration(*res.ElapsedSecondsAdded)*time.Second))
			}
		case task.PhasePaused:
			_, err = m.actions.Resume(m.ctx, id, m.userID)
			note = "resumed"
		default:
			_, err = m.actions.Start(m.ctx, id, m.userID)
		}
		return m.reload(id, note, err)
	}
}

func (m WatchModel) complete() tea.Cmd {
	id := m.task.ID
	return func() tea.Msg {
		res, err := m.actions.Complete(m.ctx, app.CompleteOptions{TaskID: id, UserID: m.userID})
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{task: res.Task, note: fmt.Sprintf("completed in %s", FormatMinutes(res.ActualMinutes))}
	}
}

func (m WatchModel) reload(id, note string, err error) tea.Msg {
	if err != nil {
		return actionMsg{err: err}
	}
	t, err := m.actions.Get(m.ctx, id, m.userID)
	if err != nil {
		return actionMsg{err: err}
	}
	return actionMsg{task: t, note: note}
}

func (m WatchModel) View() string {
	if m.task == nil {
		return ""
	}
	phase := m.task.Timer.Phase()
	elapsed := time.Duration(m.task.Timer.TotalSeconds(m.now)) * time.Second

	var sb strings.Builder
	sb.WriteString(StyleHeader.Render(m.task.Title) + StyleSubtle.Render(m.task.ID) + "\n\n")
	sb.WriteString(StyleClock.Render(FormatClock(elapsed)) + "\n")
	sb.WriteString(PhaseStyle(phase).Render(PhaseIcon(phase)+" "+string(phase)) + "  ")
	sb.WriteString(StyleSubtle.Render("estimate ") + FormatEstimate(m.task.Estimate) + "\n")

	switch {
	case m.err != nil:
		sb.WriteString(StyleError.Render("error: "+m.err.Error()) + "\n")
	case m.busy:
		sb.WriteString(StyleSubtle.Render("working…") + "\n")
	case m.note != "":
		sb.WriteString(StyleSubtle.Render(m.note) + "\n")
	}

	sb.WriteString("\n" + m.help.View(m.keys))
	return sb.String()
}
