package viz

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/driftsim/internal/probe"
)

const (
	historyCapacity = 600
	chartWidth      = 60
	chartHeight     = 10
	barWidth        = 40
)

type TickMsg time.Time

type sampleMsg probe.Sample

type doneMsg struct {
	result *probe.Result
	err    error
}

// Model holds the monitor state for one probe run.
type Model struct {
	scenario   probe.Scenario
	strategies []string
	history    map[string][]float64
	last       probe.Sample
	samples    int

	start    time.Time
	elapsed  time.Duration
	paused   bool
	logScale bool
	showHelp bool
	done     bool
	result   *probe.Result
	err      error
	width    int

	gate *gate
	stop context.CancelFunc
}

// NewModel creates a monitor for sc. stop is called when the user quits.
func NewModel(sc probe.Scenario, stop context.CancelFunc) Model {
	names := sc.StrategyNames()
	history := make(map[string][]float64, len(names))
	for _, name := range names {
		history[name] = make([]float64, 0, historyCapacity)
	}
	return Model{
		scenario:   sc,
		strategies: names,
		history:    history,
		start:      time.Now(),
		logScale:   true,
		width:      chartWidth,
		gate:       &gate{},
		stop:       stop,
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/10, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.stop != nil {
				m.stop()
			}
			m.gate.release()
			return m, tea.Quit
		case " ", "space":
			if m.done {
				break
			}
			m.paused = !m.paused
			if m.paused {
				m.gate.pause()
			} else {
				m.gate.release()
			}
		case "l":
			m.logScale = !m.logScale
		case "?":
			m.showHelp = !m.showHelp
		}
	case tea.WindowSizeMsg:
		m.width = min(max(msg.Width-20, 20), chartWidth)
	case sampleMsg:
		m.observe(probe.Sample(msg))
	case doneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
	case TickMsg:
		if m.done {
			return m, nil
		}
		if !m.paused {
			m.elapsed = time.Time(msg).Sub(m.start)
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) observe(s probe.Sample) {
	m.last = s
	m.samples++
	for _, name := range m.strategies {
		h := append(m.history[name], s.ULPs(name))
		if len(h) > historyCapacity {
			h = h[len(h)-historyCapacity:]
		}
		m.history[name] = h
	}
}

// Result is the final probe result, once the run has finished.
func (m Model) Result() (*probe.Result, error) {
	return m.result, m.err
}

func (m Model) progress() float64 {
	if m.samples == 0 || m.scenario.Steps == 0 {
		return 0
	}
	return float64(m.last.Step-m.scenario.StartStep) / float64(m.scenario.Steps)
}

func (m Model) View() string {
	var s strings.Builder

	name := m.scenario.Name
	if name == "" {
		name = "scenario"
	}
	s.WriteString(GradientTitle.Render("DRIFT MONITOR") + "  " + Subtle.Render(name) + "\n\n")

	status := StatusRunning.Render("RUNNING")
	switch {
	case m.err != nil:
		status = StatusFailed.Render("STOPPED: " + m.err.Error())
	case m.done:
		status = StatusRunning.Render("DONE")
	case m.paused:
		status = StatusPaused.Render("PAUSED")
	}
	s.WriteString(status + "\n")

	step := 0
	if m.samples > 0 {
		step = m.last.Step
	}
	s.WriteString(fmt.Sprintf("%s %d / %d  %s\n\n",
		ProgressBar(m.progress(), barWidth), step, m.scenario.StartStep+m.scenario.Steps,
		Subtle.Render(m.elapsed.Truncate(100*time.Millisecond).String())))

	for i, name := range m.strategies {
		style := seriesPalette[i%len(seriesPalette)].style
		abs, ulps := 0.0, 0.0
		if m.samples > 0 {
			abs, ulps = m.last.AbsError[name], m.last.ULPs(name)
		}
		s.WriteString(fmt.Sprintf("%s %s %s %s\n",
			style.Render(fmt.Sprintf("%-10s", name)),
			MetricLabel.Render("abs error"), MetricValue.Render(fmt.Sprintf("%-12.3e", abs)),
			MetricValue.Render(fmt.Sprintf("%.2f ulp", ulps))))
	}
	s.WriteString(Separator(m.width+8) + "\n\n")

	s.WriteString(m.chart() + "\n\n")

	if m.showHelp {
		s.WriteString(GlassPanel.Render("space  pause/resume\nl      toggle log axis\n?      help\nq      quit") + "\n")
	} else {
		s.WriteString(KeyHint.Render("[space] pause  [l] log axis  [?] help  [q] quit") + "\n")
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(s.String())
}

func (m Model) chart() string {
	if m.samples < 2 {
		return Subtle.Render("waiting for samples...")
	}

	series := make([][]float64, 0, len(m.strategies))
	colors := make([]asciigraph.AnsiColor, 0, len(m.strategies))
	for i, name := range m.strategies {
		h := m.history[name]
		data := make([]float64, len(h))
		for j, v := range h {
			if m.logScale {
				v = math.Log10(1 + v)
			}
			data[j] = v
		}
		series = append(series, data)
		colors = append(colors, seriesPalette[i%len(seriesPalette)].color)
	}

	caption := "error (ulp)"
	if m.logScale {
		caption = "error log10(1+ulp)"
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(chartHeight),
		asciigraph.Width(m.width),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(colors...))
}

// RunLive runs sc under the monitor and returns the probe result. Quitting
// early stops the probe and returns its partial result with the context
// error.
func RunLive(ctx context.Context, sc probe.Scenario) (*probe.Result, error) {
	if err := probe.Validate(sc); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel(sc, cancel)
	p := tea.NewProgram(m, tea.WithAltScreen())

	type outcome struct {
		result *probe.Result
		err    error
	}
	finished := make(chan outcome, 1)

	go func() {
		result, err := probe.RunWithCallback(ctx, sc, func(s probe.Sample) bool {
			m.gate.wait(ctx)
			p.Send(sampleMsg(s))
			return ctx.Err() == nil
		})
		finished <- outcome{result, err}
		p.Send(doneMsg{result, err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-finished
		return nil, err
	}

	cancel()
	out := <-finished
	if out.err == nil && out.result != nil && out.result.StepsTaken < sc.Steps {
		out.err = context.Canceled
	}
	return out.result, out.err
}

// gate blocks the probe callback while the monitor is paused.
type gate struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

func (g *gate) pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		g.paused = true
		g.resume = make(chan struct{})
	}
}

func (g *gate) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		g.paused = false
		close(g.resume)
	}
}

func (g *gate) wait(ctx context.Context) {
	g.mu.Lock()
	paused, resume := g.paused, g.resume
	g.mu.Unlock()
	if !paused {
		return
	}
	select {
	case <-resume:
	case <-ctx.Done():
	}
}
