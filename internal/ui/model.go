// Package ui renders the mailbox in a terminal. The Model forwards keys,
// mouse clicks, engine events and fragment changes to a mailbox.Controller
// and draws whatever state the controller reports.
package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/olivier-w/mailbox/internal/mailbox"
	"github.com/olivier-w/mailbox/internal/player"
	"github.com/olivier-w/mailbox/internal/registry"
	"github.com/olivier-w/mailbox/internal/sorter"
	"github.com/olivier-w/mailbox/internal/util"
)

const (
	seekStep   = 5 * time.Second
	volumeStep = 0.05

	// Screen lines of the clickable parts of View.
	progressLine    = 6
	tableHeaderLine = 9
	firstRowLine    = 10
	// footerLines is the blank line and help line below the table.
	footerLines = 2
	leftMargin  = 2
)

// Options wires a Model to an initialized controller.
type Options struct {
	Controller *mailbox.Controller
	Registry   *registry.Registry
	Table      *sorter.Table
	// Events is the engine's event channel; nil disables forwarding.
	Events <-chan player.Event
	// Fragments delivers fragment changes made outside the program.
	Fragments <-chan string
	Heading   string
}

// Model is the Bubbletea model for the mailbox TUI.
type Model struct {
	ctrl      *mailbox.Controller
	reg       *registry.Registry
	table     *sorter.Table
	layout    tableLayout
	events    <-chan player.Event
	fragments <-chan string
	heading   string

	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	progress progress.Model
	meter    volumeMeter
	metering bool

	cursor   int
	offset   int
	selected string
	title    string
	errText  string
	width    int
	height   int
	quitting bool
}

// New creates a Model for ctrl. ctrl.Init must already have run.
func New(opts Options) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = statusStyle

	p := progress.New(
		progress.WithScaledGradient("#FF8C00", "#FF5F1F"),
		progress.WithoutPercentage(),
	)
	p.Width = 40

	m := Model{
		ctrl:      opts.Controller,
		reg:       opts.Registry,
		table:     opts.Table,
		layout:    newTableLayout(opts.Table),
		events:    opts.Events,
		fragments: opts.Fragments,
		heading:   opts.Heading,
		keys:      keys,
		help:      help.New(),
		spinner:   s,
		progress:  p,
		meter:     newVolumeMeter(opts.Controller.PlayerState().Volume),
		title:     opts.Controller.Title(),
	}
	m.selected = m.ctrl.PlayerState().SelectedID
	m.cursor = m.rowIndex(m.selected)
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle(m.title),
		waitForEngine(m.events),
		waitForFragment(m.fragments),
		m.spinner.Tick,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m.handleMsg(msg)
}

func (m Model) handleMsg(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.progress.Width = min(max(msg.Width-20, 20), 60)
		m.ensureVisible()
		return m, nil

	case engineEventMsg:
		ev := player.Event(msg)
		if ev.Kind == player.EventError && ev.Token == m.ctrl.Token() && ev.Err != nil {
			m.errText = ev.Err.Error()
		}
		m.ctrl.Dispatch(mailbox.EngineEvent{Event: ev})
		next, cmd := m.sync()
		return next, tea.Batch(cmd, waitForEngine(m.events))

	case fragmentMsg:
		m.ctrl.Dispatch(mailbox.FragmentChanged{Fragment: string(msg)})
		next, cmd := m.sync()
		return next, tea.Batch(cmd, waitForFragment(m.fragments))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case meterTickMsg:
		if m.meter.step() {
			return m, meterTickCmd()
		}
		m.metering = false
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	c := m.ctrl.Controls()
	ps := m.ctrl.PlayerState()

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Play):
		m.ctrl.Dispatch(mailbox.PlayClicked{})
	case key.Matches(msg, m.keys.Stop):
		m.ctrl.Dispatch(mailbox.StopClicked{})
	case key.Matches(msg, m.keys.Next):
		m.ctrl.Dispatch(mailbox.NextClicked{})
	case key.Matches(msg, m.keys.Prev):
		m.ctrl.Dispatch(mailbox.PrevClicked{})
	case key.Matches(msg, m.keys.Back):
		m.ctrl.Dispatch(mailbox.SeekRequested{Position: max(c.Position-seekStep, 0)})
	case key.Matches(msg, m.keys.Forward):
		m.ctrl.Dispatch(mailbox.SeekRequested{Position: c.Position + seekStep})
	case key.Matches(msg, m.keys.VolUp):
		m.ctrl.Dispatch(mailbox.VolumeChanged{Volume: ps.LastVolume + volumeStep})
	case key.Matches(msg, m.keys.VolDown):
		m.ctrl.Dispatch(mailbox.VolumeChanged{Volume: ps.LastVolume - volumeStep})
	case key.Matches(msg, m.keys.Mute):
		m.ctrl.Dispatch(mailbox.MuteClicked{})
	case key.Matches(msg, m.keys.Speed):
		m.ctrl.Dispatch(mailbox.SpeedClicked{})
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
		return m, nil
	case key.Matches(msg, m.keys.Enter):
		m.playRow(m.cursor)
	case key.Matches(msg, m.keys.Sort):
		col, _ := sortColumn(msg)
		m.sortBy(col)
	default:
		return m, nil
	}
	return m.sync()
}

func (m Model) handleMouse(msg tea.MouseMsg) (Model, tea.Cmd) {
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.moveCursor(-1)
		return m, nil
	case tea.MouseButtonWheelDown:
		m.moveCursor(1)
		return m, nil
	}
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}

	switch {
	case msg.Y == progressLine:
		if ratio, ok := m.barRatio(msg.X); ok {
			d := m.ctrl.Controls().Duration
			m.ctrl.Dispatch(mailbox.SeekRequested{Position: time.Duration(ratio * float64(d))})
		}
	case msg.Y == tableHeaderLine:
		col, ok := m.layout.columnAt(msg.X - leftMargin)
		if !ok {
			return m, nil
		}
		m.sortBy(col)
	case msg.Y >= firstRowLine:
		i := m.offset + msg.Y - firstRowLine
		if i >= len(m.table.Rows()) || i >= m.offset+m.visibleRows() {
			return m, nil
		}
		m.cursor = i
		m.playRow(i)
	default:
		return m, nil
	}
	return m.sync()
}

// sync brings the model in line with the controller after a dispatch.
func (m Model) sync() (Model, tea.Cmd) {
	var cmds []tea.Cmd

	ps := m.ctrl.PlayerState()
	if ps.SelectedID != m.selected {
		m.selected = ps.SelectedID
		m.cursor = m.rowIndex(m.selected)
		m.ensureVisible()
	}
	if m.ctrl.State() != mailbox.Error {
		m.errText = ""
	}
	if title := m.ctrl.Title(); title != m.title {
		m.title = title
		cmds = append(cmds, tea.SetWindowTitle(title))
	}
	if ps.Volume != m.meter.target {
		m.meter.target = ps.Volume
		if !m.metering {
			m.metering = true
			cmds = append(cmds, meterTickCmd())
		}
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) sortBy(col int) {
	rows := m.table.Rows()
	var id string
	if m.cursor >= 0 && m.cursor < len(rows) {
		id = rows[m.cursor].ID
	}
	if !m.table.Click(col) {
		return
	}
	if id != "" {
		m.cursor = m.rowIndex(id)
	}
	m.ensureVisible()
}

func (m *Model) playRow(i int) {
	rows := m.table.Rows()
	if i < 0 || i >= len(rows) {
		return
	}
	m.ctrl.Dispatch(mailbox.SelectMessage{ID: rows[i].ID, Play: true})
}

func (m *Model) moveCursor(delta int) {
	n := len(m.table.Rows())
	if n == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), n-1)
	m.ensureVisible()
}

func (m Model) rowIndex(id string) int {
	for i, row := range m.table.Rows() {
		if row.ID == id {
			return i
		}
	}
	return 0
}

// visibleRows is the number of table rows that fit the window. Before the
// first resize every row is shown.
func (m Model) visibleRows() int {
	n := len(m.table.Rows())
	if m.height <= 0 {
		return n
	}
	avail := m.height - firstRowLine - footerLines
	if m.help.ShowAll {
		avail -= fullHelpHeight(m.keys) - 1
	}
	return min(max(avail, 1), n)
}

func (m *Model) ensureVisible() {
	visible := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	m.offset = max(m.offset, 0)
}

// barRatio maps a click on the progress line to a fraction of the bar.
func (m Model) barRatio(x int) (float64, bool) {
	start := leftMargin + len(util.FormatDuration(m.ctrl.Controls().Position)) + 1
	x -= start
	if x < 0 || x >= m.progress.Width {
		return 0, false
	}
	return float64(x) / float64(m.progress.Width), true
}

func (m Model) statusLine(c mailbox.Controls) string {
	switch c.State {
	case mailbox.Loading:
		return m.spinner.View() + " " + statusStyle.Render("loading")
	case mailbox.Playing:
		return statusStyle.Render("playing")
	case mailbox.Paused:
		return statusStyle.Render("paused")
	case mailbox.Error:
		if m.errText != "" {
			return errorStyle.Render("error: " + m.errText)
		}
		return errorStyle.Render("error")
	default:
		return helpStyle.Render("stopped")
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	c := m.ctrl.Controls()
	memo := ""
	if msg, ok := m.reg.Get(m.selected); ok {
		memo = msg.Memo
	}

	var ratio float64
	if c.Duration > 0 {
		ratio = float64(c.Position) / float64(c.Duration)
	}
	bar := m.progress.ViewAs(min(max(ratio, 0), 1))
	if !c.SeekEnabled {
		bar = disabledStyle.Render(renderProgressBar(0, 0, m.progress.Width+2))
	}

	volume := helpStyle.Render("muted")
	if !c.Muted {
		volume = statusStyle.Render(renderVolumePercent(c.Volume))
	}

	lines := []string{
		"",
		"  " + headerStyle.Render(strings.ToUpper(m.heading)),
		"",
		"  " + titleStyle.Render(memo),
		"  " + m.statusLine(c),
		"",
		"  " + timeStyle.Render(util.FormatDuration(c.Position)) + " " + bar + " " + timeStyle.Render(util.FormatDuration(c.Duration)),
		"  " + renderTransport(c) + "    " + timeStyle.Render(m.meter.view()) + " " + volume,
		"",
		"  " + m.layout.header(m.table),
	}

	rows := m.table.Rows()
	end := min(m.offset+m.visibleRows(), len(rows))
	for i := m.offset; i < end; i++ {
		lines = append(lines, "  "+m.layout.row(rows[i], i == m.cursor, rows[i].ID == m.selected))
	}

	lines = append(lines, "", "  "+m.help.View(m.keys))

	for m.height > 0 && len(lines) < m.height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
