package ui

import (
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/olivier-w/notegrid/internal/analyzer"
	"github.com/olivier-w/notegrid/internal/config"
	"github.com/olivier-w/notegrid/internal/notes"
	"github.com/olivier-w/notegrid/internal/queue"
	"github.com/rs/zerolog"
)

func newTestModel(t *testing.T, done <-chan struct{}) (Model, *queue.Queue[analyzer.Detection], *analyzer.Analyzer) {
	t.Helper()
	cfg := config.Default()
	events := queue.New[analyzer.Detection](cfg.QueueSize)
	a := analyzer.New(analyzer.Settings{
		SampleRate:  cfg.SampleRate,
		BlockSize:   cfg.BufferSize,
		Sensitivity: cfg.Sensitivity,
		MinFreq:     cfg.MinFreq,
		MaxFreq:     cfg.MaxFreq,
	}, events, zerolog.Nop())
	m := New(Options{
		Config:   cfg,
		Events:   events,
		Analyzer: a,
		Title:    "microphone",
		Done:     done,
		Log:      zerolog.Nop(),
	})
	t.Cleanup(m.Close)
	return m, events, a
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTickDrainsDetectionsIntoGrid(t *testing.T) {
	m, events, _ := newTestModel(t, nil)
	events.Push(analyzer.Detection{Note: notes.A, Octave: 4, Frequency: 440})
	events.Push(analyzer.Detection{Note: notes.A, Octave: 4, Frequency: 441})
	events.Push(analyzer.Detection{Note: notes.C, Octave: 3, Frequency: 130.8})

	next, cmd := m.handleMsg(tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("expected tick to re-arm its wait command")
	}
	if got := next.Grid().Count(notes.A); got != 2 {
		t.Fatalf("expected 2 markers on A, got %d", got)
	}
	if got := next.Grid().Count(notes.C); got != 1 {
		t.Fatalf("expected 1 marker on C, got %d", got)
	}
	if events.Len() != 0 {
		t.Fatalf("expected queue drained, %d left", events.Len())
	}
}

func TestMarkersFadeOutAfterEnoughTicks(t *testing.T) {
	m, events, _ := newTestModel(t, nil)
	events.Push(analyzer.Detection{Note: notes.E})

	for range 200 {
		m, _ = m.handleMsg(tickMsg(time.Now()))
	}
	if got := m.Grid().Len(); got != 0 {
		t.Fatalf("expected all markers removed, got %d", got)
	}
}

func TestPauseDiscardsDetections(t *testing.T) {
	m, events, _ := newTestModel(t, nil)

	m, cmd := m.handleMsg(key(" "))
	if !m.paused {
		t.Fatal("expected paused after space")
	}
	if cmd == nil {
		t.Fatal("expected window title command")
	}

	events.Push(analyzer.Detection{Note: notes.G})
	m, _ = m.handleMsg(tickMsg(time.Now()))
	if got := m.Grid().Len(); got != 0 {
		t.Fatalf("expected no markers while paused, got %d", got)
	}
	if events.Len() != 0 {
		t.Fatal("expected paused tick to still drain the queue")
	}

	m, _ = m.handleMsg(key(" "))
	events.Push(analyzer.Detection{Note: notes.G})
	m, _ = m.handleMsg(tickMsg(time.Now()))
	if got := m.Grid().Count(notes.G); got != 1 {
		t.Fatalf("expected marker after resume, got %d", got)
	}
}

func TestClearKeyEmptiesGrid(t *testing.T) {
	m, events, _ := newTestModel(t, nil)
	events.Push(analyzer.Detection{Note: notes.B})
	m, _ = m.handleMsg(tickMsg(time.Now()))

	m, _ = m.handleMsg(key("c"))
	if got := m.Grid().Len(); got != 0 {
		t.Fatalf("expected cleared grid, got %d markers", got)
	}
}

func TestClearKeyDiscardsQueuedDetections(t *testing.T) {
	m, events, _ := newTestModel(t, nil)
	events.Push(analyzer.Detection{Note: notes.D})
	events.Push(analyzer.Detection{Note: notes.F})

	m, _ = m.handleMsg(key("c"))
	if events.Len() != 0 {
		t.Fatalf("expected queue emptied by clear, %d left", events.Len())
	}
	m, _ = m.handleMsg(tickMsg(time.Now()))
	if got := m.Grid().Len(); got != 0 {
		t.Fatalf("expected no markers from detections received before clear, got %d", got)
	}
}

func TestSensitivityKeys(t *testing.T) {
	m, _, a := newTestModel(t, nil)

	m, _ = m.handleMsg(key("+"))
	if got := a.Sensitivity(); math.Abs(got-0.90) > 1e-9 {
		t.Fatalf("expected 0.90 after +, got %v", got)
	}
	m, _ = m.handleMsg(key("-"))
	m, _ = m.handleMsg(key("-"))
	if got := a.Sensitivity(); math.Abs(got-0.80) > 1e-9 {
		t.Fatalf("expected 0.80 after two -, got %v", got)
	}
	for range 10 {
		m, _ = m.handleMsg(key("="))
	}
	if got := a.Sensitivity(); got != 1 {
		t.Fatalf("expected sensitivity clamped at 1, got %v", got)
	}
	if !strings.Contains(m.View(), "sens 1.00") {
		t.Fatal("expected status line to show sensitivity")
	}
}

func TestSensitivityKeysStopAtFloor(t *testing.T) {
	m, _, a := newTestModel(t, nil)
	a.SetSensitivity(0.12)
	for range 5 {
		m, _ = m.handleMsg(key("-"))
	}
	if got := a.Sensitivity(); got != analyzer.DefaultMinSensitivity {
		t.Fatalf("expected stepping down to stop at %v, got %v", analyzer.DefaultMinSensitivity, got)
	}

	// A configured value below the floor is not raised by stepping down.
	a.SetSensitivity(0.01)
	m, _ = m.handleMsg(key("-"))
	if got := a.Sensitivity(); got != 0.01 {
		t.Fatalf("expected 0.01 kept, got %v", got)
	}
	m, _ = m.handleMsg(key("+"))
	if got := a.Sensitivity(); math.Abs(got-0.06) > 1e-9 {
		t.Fatalf("expected 0.06 after +, got %v", got)
	}
}

func TestQuitKeys(t *testing.T) {
	for _, k := range []string{"q", "esc", "ctrl+c"} {
		m, _, _ := newTestModel(t, nil)
		next, cmd := m.handleMsg(key(k))
		if !next.quitting {
			t.Fatalf("%q: expected quitting", k)
		}
		if cmd == nil {
			t.Fatalf("%q: expected quit command", k)
		}
		if next.View() != "" {
			t.Fatalf("%q: expected empty view after quit", k)
		}
	}
}

func TestViewShowsGridAndStatus(t *testing.T) {
	m, _, _ := newTestModel(t, nil)
	m, _ = m.handleMsg(tea.WindowSizeMsg{Width: 100, Height: 30})

	view := m.View()
	for _, n := range notes.All() {
		if !strings.Contains(view, n.String()) {
			t.Fatalf("expected label %q in view", n)
		}
	}
	for _, want := range []string{"notegrid", "microphone", "listening", "blocks 0", "q quit"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view", want)
		}
	}
}

func TestStatusShowsLastDetection(t *testing.T) {
	m, events, a := newTestModel(t, nil)
	block := make([]float32, 2048)
	for i := range block {
		block[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/44100))
	}
	a.Process(block)
	if events.Len() != 1 {
		t.Fatalf("expected one detection, got %d", events.Len())
	}

	m, _ = m.handleMsg(tickMsg(time.Now()))
	view := m.View()
	if !strings.Contains(view, "A4") {
		t.Fatalf("expected A4 in status line, got %q", view)
	}
	if !strings.Contains(view, "notes 1") {
		t.Fatal("expected accepted counter in view")
	}
}

func TestSourceEndedShowsReplayFinished(t *testing.T) {
	done := make(chan struct{})
	m, _, _ := newTestModel(t, done)
	if cmd := waitSourceEnd(done); cmd == nil {
		t.Fatal("expected wait command for finite source")
	}

	m, _ = m.handleMsg(sourceEndedMsg{})
	if !strings.Contains(m.View(), "replay finished") {
		t.Fatal("expected replay finished in header")
	}
}

func TestWaitSourceEndNilForLiveInput(t *testing.T) {
	if waitSourceEnd(nil) != nil {
		t.Fatal("expected no command for live input")
	}
}

func TestWaitTickYieldsTickMsg(t *testing.T) {
	c := make(chan time.Time, 1)
	now := time.Now()
	c <- now
	msg := waitTick(c)()
	if got, ok := msg.(tickMsg); !ok || !time.Time(got).Equal(now) {
		t.Fatalf("expected tickMsg(%v), got %#v", now, msg)
	}
}

func TestRmsToLevel(t *testing.T) {
	tests := []struct {
		rms  float64
		want float64
	}{
		{0, 0},
		{1e-4, 0},
		{0.001, 0},
		{0.01, 1.0 / 3},
		{1, 1},
		{4, 1},
	}
	for _, tc := range tests {
		if got := rmsToLevel(tc.rms); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("rmsToLevel(%v) = %v, want %v", tc.rms, got, tc.want)
		}
	}
}
