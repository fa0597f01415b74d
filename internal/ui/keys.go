package ui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type keyMap struct {
	Play    key.Binding
	Stop    key.Binding
	Next    key.Binding
	Prev    key.Binding
	Back    key.Binding
	Forward key.Binding
	VolUp   key.Binding
	VolDown key.Binding
	Mute    key.Binding
	Speed   key.Binding
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Sort    key.Binding
	Help    key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Play:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
	Stop:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
	Next:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
	Prev:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "prev")),
	Back:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "-5s")),
	Forward: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "+5s")),
	VolUp:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "louder")),
	VolDown: key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "quieter")),
	Mute:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
	Speed:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "speed")),
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play message")),
	Sort:    key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-9", "sort column")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:    key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.Next, k.Prev, k.Enter, k.Sort, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Play, k.Stop, k.Next, k.Prev},
		{k.Back, k.Forward, k.Speed},
		{k.VolUp, k.VolDown, k.Mute},
		{k.Up, k.Down, k.Enter, k.Sort},
		{k.Help, k.Quit},
	}
}

func fullHelpHeight(k keyMap) int {
	h := 0
	for _, col := range k.FullHelp() {
		h = max(h, len(col))
	}
	return h
}

// sortColumn returns the zero-based column for a digit key.
func sortColumn(msg tea.KeyMsg) (int, bool) {
	s := msg.String()
	if len(s) != 1 || s[0] < '1' || s[0] > '9' {
		return 0, false
	}
	return int(s[0] - '1'), true
}
