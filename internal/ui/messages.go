package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type tickMsg time.Time
type sourceEndedMsg struct{}

// waitTick blocks on the render ticker's channel. The ticker itself keeps
// the period, so the command is simply re-issued after each tick.
func waitTick(c <-chan time.Time) tea.Cmd {
	return func() tea.Msg {
		return tickMsg(<-c)
	}
}

func waitSourceEnd(done <-chan struct{}) tea.Cmd {
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		<-done
		return sourceEndedMsg{}
	}
}
