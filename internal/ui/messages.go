package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/olivier-w/mailbox/internal/player"
)

type engineEventMsg player.Event
type fragmentMsg string
type meterTickMsg time.Time

const meterFPS = 30

func waitForEngine(events <-chan player.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return engineEventMsg(ev)
	}
}

func waitForFragment(changes <-chan string) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		f, ok := <-changes
		if !ok {
			return nil
		}
		return fragmentMsg(f)
	}
}

func meterTickCmd() tea.Cmd {
	return tea.Tick(time.Second/meterFPS, func(t time.Time) tea.Msg {
		return meterTickMsg(t)
	})
}
