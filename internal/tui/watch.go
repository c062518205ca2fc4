package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/runlog"
)

const eventBuffer = 64

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	logBorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	levelStyles = map[model.LogLevel]lipgloss.Style{
		model.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		model.LevelSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		model.LevelWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		model.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}

	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// eventMsg carries one run event into the update loop.
type eventMsg runlog.Event

// streamClosedMsg is sent once the event channel is closed.
type streamClosedMsg struct{}

type runState int

const (
	stateRunning runState = iota
	stateAborting
	stateCompleted
	stateFailed
)

// WatchResult summarises a watched run after the view closes.
type WatchResult struct {
	RunID   string
	Stats   model.RunStats
	Failed  bool
	Aborted bool
	Error   string
}

type watchModel struct {
	title   string
	events  <-chan runlog.Event
	cancel  context.CancelFunc
	spinner spinner.Model
	logs    viewport.Model
	lines   []string
	result  WatchResult
	state   runState
	width   int
	height  int
	ready   bool
	follow  bool // keep the newest line in view

	userAbort bool // quit once the run reports its end
}

func newWatchModel(title string, events <-chan runlog.Event, cancel context.CancelFunc) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	return watchModel{
		title:   title,
		events:  events,
		cancel:  cancel,
		spinner: sp,
		follow:  true,
	}
}

func waitForEvent(ch <-chan runlog.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(e)
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func (m watchModel) finished() bool {
	return m.state == stateCompleted || m.state == stateFailed
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		return m, nil

	case spinner.TickMsg:
		if m.finished() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(runlog.Event(msg))
		if m.finished() && m.userAbort {
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		if !m.finished() {
			// The producer went away without a terminal event.
			m.state = stateFailed
			if m.result.Error == "" {
				m.result.Error = "event stream closed before the run finished"
			}
			m.result.Failed = true
		}
		if m.userAbort {
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.finished() {
				return m, tea.Quit
			}
			if m.state == stateAborting {
				// Second press: stop waiting for the run to wind down.
				return m, tea.Quit
			}
			m.state = stateAborting
			m.userAbort = true
			m.result.Aborted = true
			m.appendLine(model.LevelWarning, time.Now(), "aborting run...")
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		case "f":
			m.follow = !m.follow
			if m.follow {
				m.logs.GotoBottom()
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		m.follow = m.logs.AtBottom()
		return m, cmd
	}

	return m, nil
}

// apply folds one event into the view state.
func (m *watchModel) apply(e runlog.Event) {
	if e.RunID != "" {
		m.result.RunID = e.RunID
	}
	if e.Stats != nil {
		m.result.Stats = *e.Stats
	}

	switch e.Type {
	case runlog.EventSyncStarted:
		m.appendLine(model.LevelInfo, e.Time, fmt.Sprintf("run %s started", shortID(e.RunID)))
	case runlog.EventLog:
		m.appendLine(e.Level, e.Time, e.Message)
	case runlog.EventComplete:
		m.state = stateCompleted
		if m.result.Stats.Aborted {
			m.result.Aborted = true
		}
		m.appendLine(model.LevelSuccess, e.Time, "run complete: "+statsLine(m.result.Stats))
	case runlog.EventError:
		m.state = stateFailed
		m.result.Failed = true
		m.result.Error = e.Message
		m.appendLine(model.LevelError, e.Time, "run failed: "+e.Message)
	}
}

func (m *watchModel) appendLine(level model.LogLevel, at time.Time, msg string) {
	style, ok := levelStyles[level]
	if !ok {
		style = levelStyles[model.LevelInfo]
	}
	if at.IsZero() {
		at = time.Now()
	}
	m.lines = append(m.lines, timeStyle.Render(at.Local().Format("15:04:05"))+" "+style.Render(msg))
	if m.ready {
		m.logs.SetContent(m.renderLines())
		if m.follow {
			m.logs.GotoBottom()
		}
	}
}

func (m *watchModel) recalcLayout() {
	// Title (1) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	width := max(m.width-2, 20)
	height := max(m.height-4, 3)

	if !m.ready {
		m.logs = viewport.New(width, height)
		m.ready = true
	} else {
		m.logs.Width = width
		m.logs.Height = height
	}
	m.logs.SetContent(m.renderLines())
	if m.follow {
		m.logs.GotoBottom()
	}
}

func (m watchModel) renderLines() string {
	width := max(m.logs.Width, 20)
	wrapped := make([]string, len(m.lines))
	for i, l := range m.lines {
		wrapped[i] = lipgloss.NewStyle().Width(width).Render(l)
	}
	return strings.Join(wrapped, "\n")
}

func (m watchModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var status string
	switch m.state {
	case stateRunning:
		status = m.spinner.View() + " running"
	case stateAborting:
		status = m.spinner.View() + " aborting"
	case stateCompleted:
		status = doneStyle.Render("✔ done")
		if m.result.Aborted {
			status = doneStyle.Render("✔ aborted")
		}
	case stateFailed:
		status = failedStyle.Render("✘ failed")
	}

	title := titleStyle.Render(m.title) + " " + status
	body := logBorderStyle.Width(m.logs.Width).Render(m.logs.View())

	hint := "q abort"
	if m.finished() {
		hint = "q quit"
	}
	statusText := fmt.Sprintf(" %s    ↑/↓ scroll  f follow  %s", statsLine(m.result.Stats), hint)
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return title + "\n" + body + "\n" + statusBar
}

func statsLine(s model.RunStats) string {
	line := fmt.Sprintf("fetched %d | added %d | updated %d | skipped %d | failed %d",
		s.Fetched, s.Added, s.Updated, s.Skipped, s.Failed)
	if s.Checked > 0 {
		line += fmt.Sprintf(" | checked %d | discovered %d", s.Checked, s.Discovered)
	}
	if s.DuplicatesRemoved > 0 {
		line += fmt.Sprintf(" | duplicates removed %d", s.DuplicatesRemoved)
	}
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// RunWatch starts run in the background and shows its events full-screen
// until the user quits. Quitting before the run finishes cancels its context
// and waits for it to return.
func RunWatch(title string, run func(ctx context.Context, sink runlog.Sink)) (WatchResult, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := runlog.NewChanSink(eventBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer sink.Close()
		run(ctx, sink)
	}()

	p := tea.NewProgram(newWatchModel(title, sink.Events(), cancel), tea.WithAltScreen())
	result, err := p.Run()

	cancel()
	sink.Stop()
	<-done

	if err != nil {
		return WatchResult{}, err
	}
	return result.(watchModel).result, nil
}
