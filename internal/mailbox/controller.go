// Package mailbox implements the voicemail player's state machine. A
// Controller keeps the playback engine, the visible controls and the
// navigation fragment consistent. It is not safe for concurrent use: all
// events must be dispatched from one goroutine.
package mailbox

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/olivier-w/mailbox/internal/player"
	"github.com/olivier-w/mailbox/internal/registry"
)

// Engine is the playback engine the controller drives.
type Engine interface {
	Load(locator string) uint64
	Play()
	Pause()
	Stop()
	Seek(pos time.Duration)
	SetVolume(v float64)
	SetSpeed(s player.SpeedMode)
}

// Navigator persists the selected message id.
type Navigator interface {
	Encode(id string) error
	Current() (string, bool)
	Resolve(fragment, selected string) (string, bool)
	Watch(fn func(fragment string)) (unsubscribe func())
}

// Reorderer notifies the controller when the message table is re-sorted.
type Reorderer interface {
	Subscribe(fn func(order []string)) (unsubscribe func())
}

// PlayStart is passed to the play-started hook.
type PlayStart struct {
	ID   string
	Memo string
}

// PlayerState is the controller's selection and volume state.
type PlayerState struct {
	SelectedID string
	// Volume is the volume applied to the engine, 0 while muted.
	Volume float64
	Muted  bool
	// LastVolume is the user-set volume, restored on unmute.
	LastVolume        float64
	HasFiredPlayStart bool
}

// Controls is the visible state of the transport controls.
type Controls struct {
	SeekEnabled   bool
	PrevEnabled   bool
	StopEnabled   bool
	PlayEnabled   bool
	NextEnabled   bool
	MuteEnabled   bool
	VolumeEnabled bool

	// PlayActive is set while the play button shows the pause glyph.
	PlayActive bool
	State      State
	Position   time.Duration
	Duration   time.Duration
	Muted      bool
	Volume     float64
	Speed      player.SpeedMode
}

// Options configures a Controller. Engine and Registry are required.
type Options struct {
	Engine    Engine
	Registry  *registry.Registry
	Router    Navigator
	Sorter    Reorderer
	SiteTitle string
	// Volume is the initial volume; values outside [0, 1] are clamped.
	Volume        float64
	OnPlayStarted func(PlayStart)
}

// Controller is the mailbox state machine.
type Controller struct {
	engine    Engine
	reg       *registry.Registry
	router    Navigator
	sorter    Reorderer
	siteTitle string
	onStart   func(PlayStart)

	state       State
	ps          PlayerState
	controls    Controls
	token       uint64
	pendingPlay bool
	// loadFailed outlives the Error indicator: stop clears the state but the
	// engine still has nothing loaded.
	loadFailed bool

	queue       []Event
	dispatching bool
	started     bool
	disposed    bool
	unsubscribe []func()
}

// New returns a controller. Call Init to select the initial message.
func New(opts Options) *Controller {
	v := clampVolume(opts.Volume)
	return &Controller{
		engine:    opts.Engine,
		reg:       opts.Registry,
		router:    opts.Router,
		sorter:    opts.Sorter,
		siteTitle: opts.SiteTitle,
		onStart:   opts.OnPlayStarted,
		ps:        PlayerState{Volume: v, LastVolume: v},
	}
}

// Init enables the controls and selects the message named by the
// navigation fragment, the pre-selected message, or the first message.
// An empty mailbox stays disabled.
func (c *Controller) Init() {
	if c.started || c.disposed {
		return
	}
	c.started = true
	c.controls.Volume = c.ps.LastVolume
	if c.reg.Len() == 0 {
		log.Debug().Msg("Mailbox is empty")
		return
	}

	c.engine.SetVolume(c.ps.Volume)
	c.enable(true)
	c.stopDisplay()

	if c.sorter != nil {
		c.unsubscribe = append(c.unsubscribe, c.sorter.Subscribe(func(order []string) {
			c.Dispatch(Reordered{Order: order})
		}))
	}
	if c.router != nil {
		c.unsubscribe = append(c.unsubscribe, c.router.Watch(func(fragment string) {
			c.Dispatch(FragmentChanged{Fragment: fragment})
		}))
	}

	c.Dispatch(SelectMessage{ID: c.initialID()})
}

func (c *Controller) initialID() string {
	if c.router != nil {
		if id, ok := c.router.Current(); ok {
			return id
		}
	}
	if m, ok := c.reg.Selected(); ok {
		return m.ID
	}
	id, _ := c.reg.First()
	return id
}

// Dispose stops playback and detaches the controller. Later events are
// ignored.
func (c *Controller) Dispose() {
	if c.disposed {
		return
	}
	c.disposed = true
	c.queue = nil
	for _, fn := range c.unsubscribe {
		fn()
	}
	c.unsubscribe = nil
	if c.started && c.reg.Len() > 0 {
		c.engine.Stop()
	}
}

// Dispatch runs ev through the state machine. Events dispatched while
// another event is being handled are queued and handled afterwards, in
// order.
func (c *Controller) Dispatch(ev Event) {
	if c.disposed || !c.started || c.reg.Len() == 0 {
		return
	}
	c.queue = append(c.queue, ev)
	if c.dispatching {
		return
	}
	c.dispatching = true
	defer func() { c.dispatching = false }()
	for len(c.queue) > 0 && !c.disposed {
		next := c.queue[0]
		c.queue = c.queue[1:]
		c.handle(next)
	}
}

func (c *Controller) handle(ev Event) {
	from := c.state
	switch ev := ev.(type) {
	case SelectMessage:
		c.selectMessage(ev.ID, ev.Play)
	case PlayClicked:
		c.playClicked()
	case StopClicked:
		c.stopClicked()
	case NextClicked:
		c.step(c.reg.Next)
	case PrevClicked:
		c.step(c.reg.Prev)
	case MuteClicked:
		c.toggleMute()
	case SpeedClicked:
		c.cycleSpeed()
	case VolumeChanged:
		c.setVolume(ev.Volume)
	case SeekRequested:
		c.seek(ev.Position)
	case Reordered:
		c.reg.Rebuild(ev.Order)
		c.updateNavigation()
	case FragmentChanged:
		c.fragmentChanged(ev.Fragment)
	case EngineEvent:
		c.engineEvent(ev.Event)
	}
	c.updateControls()
	if c.state != from {
		log.Debug().Stringer("from", from).Stringer("to", c.state).Str("id", c.ps.SelectedID).Msg("Mailbox state changed")
	}
}

func (c *Controller) selectMessage(id string, play bool) {
	m, ok := c.reg.Get(id)
	if !ok {
		log.Debug().Str("id", id).Msg("Ignoring selection of unknown message")
		return
	}
	c.reg.Select(id)
	c.ps.SelectedID = id
	c.updateNavigation()
	c.controls.Position = 0
	c.controls.Duration = 0
	c.load(m, play)

	if c.router != nil {
		if err := c.router.Encode(id); err != nil {
			log.Warn().Err(err).Str("id", id).Msg("Updating navigation fragment failed")
		}
	}
}

// load asks the engine for m and makes its token the only one accepted.
func (c *Controller) load(m *registry.Message, play bool) {
	c.state = Loading
	c.controls.State = Loading
	c.ps.HasFiredPlayStart = false
	c.pendingPlay = play
	c.loadFailed = false
	c.token = c.engine.Load(m.Locator)
	if play {
		c.engine.Play()
	}
}

func (c *Controller) playClicked() {
	m, ok := c.reg.Get(c.ps.SelectedID)
	if !ok {
		return
	}
	switch {
	case c.state == Error || c.loadFailed:
		c.load(m, true)
	case c.state == Playing:
		c.engine.Pause()
	default:
		c.pendingPlay = true
		c.engine.Play()
	}
}

func (c *Controller) stopClicked() {
	if c.ps.SelectedID == "" {
		return
	}
	c.engine.Stop()
	c.pendingPlay = false
	c.state = Stopped
	c.stopDisplay()
}

func (c *Controller) step(neighbor func(string) (string, bool)) {
	if c.ps.SelectedID == "" || c.state == Error {
		return
	}
	id, ok := neighbor(c.ps.SelectedID)
	if !ok {
		return
	}
	c.selectMessage(id, true)
}

func (c *Controller) toggleMute() {
	if !c.controls.MuteEnabled {
		return
	}
	if c.ps.Muted {
		c.ps.Muted = false
		c.ps.Volume = c.ps.LastVolume
	} else {
		c.ps.Muted = true
		c.ps.Volume = 0
	}
	c.engine.SetVolume(c.ps.Volume)
	c.controls.Muted = c.ps.Muted
}

func (c *Controller) cycleSpeed() {
	if !c.controls.PlayEnabled {
		return
	}
	c.controls.Speed = c.controls.Speed.Next()
	c.engine.SetSpeed(c.controls.Speed)
}

func (c *Controller) setVolume(v float64) {
	if !c.controls.VolumeEnabled {
		return
	}
	v = clampVolume(v)
	c.ps.LastVolume = v
	c.controls.Volume = v
	if c.ps.Muted {
		return
	}
	c.ps.Volume = v
	c.engine.SetVolume(v)
}

func (c *Controller) seek(pos time.Duration) {
	if !c.controls.SeekEnabled || c.ps.SelectedID == "" {
		return
	}
	if pos < 0 {
		pos = 0
	}
	if d := c.controls.Duration; d > 0 && pos > d {
		pos = d
	}
	c.engine.Seek(pos)
	c.controls.Position = pos
}

func (c *Controller) fragmentChanged(fragment string) {
	if c.router == nil {
		return
	}
	id, ok := c.router.Resolve(fragment, c.ps.SelectedID)
	if !ok {
		return
	}
	c.engine.Stop()
	c.pendingPlay = false
	c.state = Stopped
	c.stopDisplay()
	c.selectMessage(id, false)
}

func (c *Controller) engineEvent(ev player.Event) {
	if ev.Token != c.token {
		log.Debug().Stringer("kind", ev.Kind).Uint64("token", ev.Token).Uint64("current", c.token).Msg("Ignoring stale engine event")
		return
	}
	switch ev.Kind {
	case player.EventLoading:
		if c.state != Error {
			c.state = Loading
		}
	case player.EventPlaying:
		c.state = Playing
		c.pendingPlay = false
		c.controls.StopEnabled = true
		c.firePlayStart()
	case player.EventPaused:
		if c.state == Playing {
			c.state = Paused
		}
	case player.EventEnded:
		if c.state == Playing {
			c.state = Paused
		}
		c.ps.HasFiredPlayStart = false
	case player.EventPosition:
		if c.state != Error {
			c.controls.Position = ev.Position
		}
	case player.EventDuration:
		c.loadFailed = false
		c.controls.Duration = ev.Duration
		if c.state == Loading && !c.pendingPlay {
			c.state = Stopped
		}
	case player.EventError:
		log.Debug().Err(ev.Err).Str("id", c.ps.SelectedID).Msg("Playback failed")
		c.pendingPlay = false
		c.loadFailed = true
		c.state = Error
		c.stopDisplay()
	}
}

func (c *Controller) firePlayStart() {
	if c.ps.HasFiredPlayStart {
		return
	}
	c.ps.HasFiredPlayStart = true
	m, ok := c.reg.Get(c.ps.SelectedID)
	if !ok || c.onStart == nil {
		return
	}
	c.onStart(PlayStart{ID: m.ID, Memo: m.Memo})
}

// stopDisplay resets the seek bar and disables the stop button.
func (c *Controller) stopDisplay() {
	c.controls.Position = 0
	c.controls.StopEnabled = false
}

func (c *Controller) enable(enabled bool) {
	c.controls.SeekEnabled = enabled
	c.controls.PrevEnabled = enabled
	c.controls.StopEnabled = enabled
	c.controls.PlayEnabled = enabled
	c.controls.NextEnabled = enabled
	c.controls.MuteEnabled = enabled
	c.controls.VolumeEnabled = enabled
}

func (c *Controller) updateNavigation() {
	id := c.ps.SelectedID
	_, hasPrev := c.reg.Prev(id)
	_, hasNext := c.reg.Next(id)
	c.controls.PrevEnabled = id != "" && hasPrev
	c.controls.NextEnabled = id != "" && hasNext
}

func (c *Controller) updateControls() {
	c.controls.State = c.state
	c.controls.PlayActive = c.state == Playing
	c.controls.SeekEnabled = c.state != Error
	if c.state == Error {
		c.controls.StopEnabled = false
		c.controls.PrevEnabled = false
		c.controls.NextEnabled = false
		return
	}
	c.updateNavigation()
}

// State returns the current playback state.
func (c *Controller) State() State {
	return c.state
}

// Controls returns the visible control state.
func (c *Controller) Controls() Controls {
	ctl := c.controls
	ctl.State = c.state
	return ctl
}

// PlayerState returns the selection and volume state.
func (c *Controller) PlayerState() PlayerState {
	return c.ps
}

// Token returns the token of the load the controller is waiting on.
func (c *Controller) Token() uint64 {
	return c.token
}

// Title is the window title: the selected memo followed by the site
// title.
func (c *Controller) Title() string {
	m, ok := c.reg.Get(c.ps.SelectedID)
	if !ok {
		return c.siteTitle
	}
	if c.siteTitle == "" {
		return m.Memo
	}
	return m.Memo + " | " + c.siteTitle
}

func clampVolume(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
