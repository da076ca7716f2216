package viz

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/driftsim/internal/probe"
	"github.com/san-kum/driftsim/internal/vecmath"
)

func testScenario() probe.Scenario {
	return probe.Scenario{
		Name:      "monitor",
		Direction: vecmath.New(1, 2, 3),
		Scale:     1.0 / 60.0,
		Steps:     2000,
		Samples:   20,
	}
}

func feed(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	var next tea.Model = m
	for _, msg := range msgs {
		next, _ = next.Update(msg)
	}
	return next.(Model)
}

func TestModelObservesSamples(t *testing.T) {
	sc := testScenario()
	var samples []probe.Sample
	if _, err := probe.RunWithCallback(context.Background(), sc, func(s probe.Sample) bool {
		samples = append(samples, s)
		return true
	}); err != nil {
		t.Fatal(err)
	}

	m := NewModel(sc, nil)
	for _, s := range samples {
		m = feed(t, m, sampleMsg(s))
	}

	if m.samples != len(samples) {
		t.Errorf("observed %d samples, want %d", m.samples, len(samples))
	}
	for _, name := range sc.StrategyNames() {
		if got := len(m.history[name]); got != len(samples) {
			t.Errorf("%s history has %d points", name, got)
		}
	}
	if p := m.progress(); p != 1 {
		t.Errorf("progress = %v, want 1", p)
	}

	view := m.View()
	for _, want := range []string{"DRIFT MONITOR", "monitor", "neumaier", "kahan", "naive", "◆"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModelHistoryCapacity(t *testing.T) {
	m := NewModel(testScenario(), nil)
	s := probe.Sample{
		Step:      1,
		Reference: vecmath.New(1, 1, 1),
		AbsError:  map[string]float64{probe.Neumaier: 0},
	}
	for i := 0; i < historyCapacity+50; i++ {
		m.observe(s)
	}
	if got := len(m.history[probe.Neumaier]); got != historyCapacity {
		t.Errorf("history length %d, want %d", got, historyCapacity)
	}
}

func TestModelPauseAndKeys(t *testing.T) {
	m := NewModel(testScenario(), nil)

	m = feed(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{' '}})
	if !m.paused || !m.gate.paused {
		t.Fatal("space should pause the model and the gate")
	}
	if !strings.Contains(m.View(), "PAUSED") {
		t.Error("view should show PAUSED")
	}

	m = feed(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{' '}})
	if m.paused || m.gate.paused {
		t.Error("second space should resume")
	}

	m = feed(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'l'}})
	if m.logScale {
		t.Error("l should toggle log scale off")
	}
}

func TestModelQuitStopsProbe(t *testing.T) {
	stopped := false
	m := NewModel(testScenario(), func() { stopped = true })
	m.gate.pause()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if !stopped {
		t.Error("quit should call stop")
	}
	if m.gate.paused {
		t.Error("quit should release a paused probe")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
}

func TestModelDone(t *testing.T) {
	m := NewModel(testScenario(), nil)
	m = feed(t, m, doneMsg{err: context.Canceled})

	if !m.done {
		t.Fatal("expected done")
	}
	if _, err := m.Result(); !errors.Is(err, context.Canceled) {
		t.Errorf("Result err = %v", err)
	}
	if !strings.Contains(m.View(), "STOPPED") {
		t.Error("view should report the stop")
	}
	if _, cmd := m.Update(TickMsg(time.Now())); cmd != nil {
		t.Error("finished model should stop ticking")
	}
}

func TestGateWait(t *testing.T) {
	g := &gate{}
	g.wait(context.Background())

	g.pause()
	released := make(chan struct{})
	go func() {
		g.wait(context.Background())
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("wait returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	g.release()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("wait did not return after release")
	}

	g.pause()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g.wait(ctx)
}
