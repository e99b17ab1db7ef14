package ui

import tea "github.com/charmbracelet/bubbletea"

const sensitivityStep = 0.05

func isQuit(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return true
	}
	return false
}

func helpText(paused bool) string {
	s := "space pause"
	if paused {
		s = "space resume"
	}
	return s + "  c clear  +/- sensitivity  q quit"
}
