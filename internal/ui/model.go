package ui

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/olivier-w/notegrid/internal/analyzer"
	"github.com/olivier-w/notegrid/internal/config"
	"github.com/olivier-w/notegrid/internal/queue"
	"github.com/olivier-w/notegrid/internal/util"
	"github.com/olivier-w/notegrid/internal/visualizer"
	"github.com/rs/zerolog"
)

// New markers start small and mostly opaque, with a little size jitter so
// repeated hits on one note stay distinguishable.
const (
	markerRadius  = 0.1
	markerJitter  = 0.15
	markerOpacity = 0.8
)

// Analyzer is the part of the analyzer the UI reads and tunes.
type Analyzer interface {
	Stats() analyzer.Stats
	Sensitivity() float64
	SetSensitivity(float64) float64
}

// Options wires a Model to its data sources.
type Options struct {
	Config   config.Config
	Events   *queue.Queue[analyzer.Detection]
	Analyzer Analyzer
	// Title names the input, e.g. "microphone" or the replayed track.
	Title string
	// Done is closed when a finite source runs out. Nil for live input.
	Done <-chan struct{}
	// Position reports replay progress. Nil for live input.
	Position func() time.Duration
	Log      zerolog.Logger
}

// Model is the Bubbletea model for the notegrid TUI.
type Model struct {
	cfg      config.Config
	grid     *visualizer.Grid
	events   *queue.Queue[analyzer.Detection]
	analyzer Analyzer
	title    string
	done     <-chan struct{}
	position func() time.Duration
	log      zerolog.Logger

	ticker *time.Ticker
	meter  progress.Model

	stats    analyzer.Stats
	elapsed  time.Duration
	width    int
	height   int
	paused   bool
	ended    bool
	quitting bool
}

// New creates a Model and starts its render ticker. Call Close once the
// program has exited.
func New(opts Options) Model {
	return Model{
		cfg:      opts.Config,
		grid:     visualizer.NewGrid(opts.Config.FPS()),
		events:   opts.Events,
		analyzer: opts.Analyzer,
		title:    opts.Title,
		done:     opts.Done,
		position: opts.Position,
		log:      opts.Log.With().Str("component", "ui").Logger(),
		ticker:   time.NewTicker(opts.Config.Tick),
		meter:    newLevelMeter(),
	}
}

// Close stops the render ticker.
func (m Model) Close() {
	m.ticker.Stop()
}

// Grid exposes the marker state for inspection.
func (m Model) Grid() *visualizer.Grid {
	return m.grid
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitTick(m.ticker.C),
		waitSourceEnd(m.done),
		tea.SetWindowTitle(windowTitle(m.title, false)),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m.handleMsg(msg)
}

func (m Model) handleMsg(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.step()
		return m, waitTick(m.ticker.C)

	case sourceEndedMsg:
		m.ended = true
		m.log.Info().Str("source", m.title).Msg("replay finished")
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		barWidth := msg.Width - 40
		if barWidth < 10 {
			barWidth = 10
		}
		if barWidth > 40 {
			barWidth = 40
		}
		m.meter.Width = barWidth
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if isQuit(msg) {
		m.quitting = true
		return m, tea.Sequence(tea.SetWindowTitle(""), tea.Quit)
	}
	switch msg.String() {
	case " ":
		m.paused = !m.paused
		m.log.Debug().Bool("paused", m.paused).Msg("toggled pause")
		return m, tea.SetWindowTitle(windowTitle(m.title, m.paused))
	case "c":
		m.events.Clear()
		m.grid.Clear()
		m.log.Debug().Msg("cleared grid")
	case "+", "=":
		m.adjustSensitivity(sensitivityStep)
	case "-", "_":
		m.adjustSensitivity(-sensitivityStep)
	}
	return m, nil
}

// adjustSensitivity steps the sensitivity. Stepping down stops at
// analyzer.DefaultMinSensitivity, and a lower configured value is left alone.
func (m *Model) adjustSensitivity(delta float64) {
	cur := m.analyzer.Sensitivity()
	next := cur + delta
	if delta < 0 && next < analyzer.DefaultMinSensitivity {
		next = min(cur, analyzer.DefaultMinSensitivity)
	}
	s := m.analyzer.SetSensitivity(next)
	m.log.Debug().Float64("sensitivity", s).Msg("adjusted sensitivity")
}

// step runs one frame: queued detections become markers (or are discarded
// while paused), then every marker decays.
func (m *Model) step() {
	for _, d := range m.events.Drain() {
		if m.paused {
			continue
		}
		m.grid.Spawn(d.Note, markerRadius+rand.Float64()*markerJitter, markerOpacity)
	}
	m.grid.Decay(m.cfg.Decay, m.cfg.Threshold)
	m.stats = m.analyzer.Stats()
	if m.position != nil {
		m.elapsed = m.position()
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	w, h := m.width, m.height
	if w < 30 {
		w = 80
	}
	if h < 12 {
		h = 24
	}

	header := "  " + headerStyle.Render("notegrid") + "  " + titleStyle.Render(m.title)
	switch {
	case m.ended:
		header += "  " + statusStyle.Render("replay finished")
	case m.position != nil:
		header += "  " + statusStyle.Render(util.FormatDuration(m.elapsed))
	}

	// Header, status, meter, help, and three spacer lines.
	const chrome = 7
	grid := m.grid.Render(w, h-chrome)

	state := "listening"
	if m.paused {
		state = "paused"
	}
	sens := fmt.Sprintf("sens %.2f", m.analyzer.Sensitivity())
	statusLine := fmt.Sprintf("  %s  %s  %s",
		renderDetection(m.stats.Last),
		statusStyle.Render(state),
		statusStyle.Render(sens),
	)
	meterLine := fmt.Sprintf("  %s %s  %s",
		counterStyle.Render("level"),
		m.meter.ViewAs(rmsToLevel(m.stats.Level)),
		renderCounters(m.stats),
	)
	help := "  " + helpStyle.Render(helpText(m.paused))

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		grid,
		"",
		statusLine,
		meterLine,
		"",
		help,
	)
}

func windowTitle(title string, paused bool) string {
	if paused {
		return "⏸ " + title + " · notegrid"
	}
	return "♪ " + title + " · notegrid"
}
