package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/runlog"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m tea.Model, msg tea.Msg) (tea.Model, tea.Cmd) {
	t.Helper()
	return m.Update(msg)
}

// isQuit runs cmd, so it must not be a command that blocks.
func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestPicker_ToggleAndConfirm(t *testing.T) {
	var m tea.Model = newPickerModel([]string{"greenhouse", "lever", "himalayas"})

	m, _ = update(t, m, key("down"))
	m, _ = update(t, m, key(" ")) // uncheck lever
	m, cmd := update(t, m, key("enter"))

	if !isQuit(cmd) {
		t.Fatal("enter should quit the picker")
	}
	got := m.(pickerModel).selected()
	if strings.Join(got, ",") != "greenhouse,himalayas" {
		t.Errorf("selected = %v", got)
	}
}

func TestPicker_EnterWithNothingSelectedIsIgnored(t *testing.T) {
	var m tea.Model = newPickerModel([]string{"greenhouse", "lever"})

	m, _ = update(t, m, key("a")) // all off
	m, cmd := update(t, m, key("enter"))
	if isQuit(cmd) {
		t.Fatal("enter with no sources should not quit")
	}
	if m.(pickerModel).done {
		t.Error("picker marked done with nothing selected")
	}

	m, _ = update(t, m, key("a")) // all on
	if len(m.(pickerModel).selected()) != 2 {
		t.Errorf("selected = %v", m.(pickerModel).selected())
	}
}

func TestPicker_Quit(t *testing.T) {
	m, cmd := update(t, newPickerModel([]string{"greenhouse"}), key("q"))
	if !isQuit(cmd) || !m.(pickerModel).quit {
		t.Error("q should quit without a choice")
	}
}

func sized(t *testing.T, m tea.Model) tea.Model {
	t.Helper()
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return m
}

func TestWatch_FoldsEventsIntoResult(t *testing.T) {
	now := time.Now()
	closed := make(chan runlog.Event)
	close(closed)
	m := sized(t, newWatchModel("sync", closed, nil))

	m, _ = update(t, m, eventMsg{Type: runlog.EventSyncStarted, RunID: "0123456789abcdef", Time: now})
	m, _ = update(t, m, eventMsg{Type: runlog.EventLog, Level: model.LevelWarning, Message: "lever: acme has no board", Time: now})
	m, _ = update(t, m, eventMsg{Type: runlog.EventReport, Stats: &model.RunStats{Fetched: 4, Added: 2}, Time: now})

	wm := m.(watchModel)
	if wm.finished() {
		t.Fatal("finished before a terminal event")
	}
	if !strings.Contains(wm.View(), "running") {
		t.Errorf("view should show running status:\n%s", wm.View())
	}

	m, cmd := update(t, m, eventMsg{Type: runlog.EventComplete, Stats: &model.RunStats{Fetched: 4, Added: 3}, Time: now})
	wm = m.(watchModel)
	if isQuit(cmd) {
		t.Error("completed run should wait for the user to quit")
	}
	if wm.state != stateCompleted || wm.result.Stats.Added != 3 || wm.result.RunID != "0123456789abcdef" {
		t.Errorf("result = %+v, state %v", wm.result, wm.state)
	}
	view := wm.View()
	for _, want := range []string{"done", "run 01234567 started", "acme has no board", "added 3"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	_, cmd = update(t, m, key("q"))
	if !isQuit(cmd) {
		t.Error("q after completion should quit")
	}
}

func TestWatch_ErrorEvent(t *testing.T) {
	m := sized(t, newWatchModel("sync", nil, nil))
	m, _ = update(t, m, eventMsg{Type: runlog.EventError, Message: "all 2 sources failed"})

	wm := m.(watchModel)
	if wm.state != stateFailed || !wm.result.Failed || wm.result.Error != "all 2 sources failed" {
		t.Errorf("result = %+v", wm.result)
	}
	if !strings.Contains(wm.View(), "failed") {
		t.Errorf("view:\n%s", wm.View())
	}
}

func TestWatch_QuitWhileRunningCancelsThenQuitsOnEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := sized(t, newWatchModel("sync", nil, cancel))

	m, cmd := update(t, m, key("q"))
	if isQuit(cmd) {
		t.Fatal("first q should abort, not quit")
	}
	if ctx.Err() == nil {
		t.Error("run context not cancelled")
	}
	if m.(watchModel).state != stateAborting {
		t.Errorf("state = %v, want aborting", m.(watchModel).state)
	}

	m, cmd = update(t, m, eventMsg{Type: runlog.EventComplete, Stats: &model.RunStats{Aborted: true}})
	if !isQuit(cmd) {
		t.Error("terminal event after abort should quit")
	}
	if !m.(watchModel).result.Aborted {
		t.Error("result not marked aborted")
	}
}

func TestWatch_StreamClosedWithoutTerminalEvent(t *testing.T) {
	m := sized(t, newWatchModel("sync", nil, nil))
	m, _ = update(t, m, streamClosedMsg{})

	wm := m.(watchModel)
	if !wm.result.Failed || wm.result.Error == "" {
		t.Errorf("result = %+v", wm.result)
	}
}

func TestRunWatch_WaitForEventReadsChannel(t *testing.T) {
	sink := runlog.NewChanSink(1)
	go func() {
		sink.Emit(runlog.Event{Type: runlog.EventLog, Message: "hi"})
		sink.Close()
	}()

	msg := waitForEvent(sink.Events())()
	if e, ok := msg.(eventMsg); !ok || e.Message != "hi" {
		t.Fatalf("first msg = %#v", msg)
	}
	if _, ok := waitForEvent(sink.Events())().(streamClosedMsg); !ok {
		t.Error("closed channel should yield streamClosedMsg")
	}
}
