package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/olivier-w/notegrid/internal/analyzer"
	"github.com/olivier-w/notegrid/internal/util"
)

func newLevelMeter() progress.Model {
	return progress.New(
		progress.WithScaledGradient("#2E8B57", "#FF5F1F"),
		progress.WithoutPercentage(),
		progress.WithWidth(24),
	)
}

// rmsToLevel maps an RMS value onto a 0..1 meter position using a dB scale
// with a -60 dB floor.
func rmsToLevel(rms float64) float64 {
	const dbFloor = -60.0
	if rms < 1e-6 {
		return 0
	}
	db := 20.0 * math.Log10(rms)
	if db < dbFloor {
		return 0
	}
	level := (db - dbFloor) / -dbFloor
	if level > 1.0 {
		level = 1.0
	}
	return level
}

func renderDetection(last *analyzer.Detection) string {
	if last == nil {
		return freqStyle.Render("listening…")
	}
	name := fmt.Sprintf("%s%d", last.Note, last.Octave)
	return fmt.Sprintf("%s  %s  %s",
		noteStyle(last.Note.Color()).Render(padRight(name, 3)),
		freqStyle.Render(util.FormatFrequency(last.Frequency)),
		freqStyle.Render(util.FormatCents(last.Cents)),
	)
}

func renderCounters(s analyzer.Stats) string {
	text := fmt.Sprintf("blocks %d  notes %d  dropped %d", s.Blocks, s.Accepted, s.Dropped)
	if s.Statuses > 0 {
		text += fmt.Sprintf("  xruns %d", s.Statuses)
	}
	return counterStyle.Render(text)
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}
