package mailbox

import (
	"fmt"
	"time"

	"github.com/olivier-w/mailbox/internal/player"
)

// State is the playback state shown by the mailbox.
type State int

const (
	Stopped State = iota
	Loading
	Playing
	Paused
	Error
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event is an input to Controller.Dispatch.
type Event interface {
	event()
}

// SelectMessage selects a message and loads it. Play starts playback once
// loaded.
type SelectMessage struct {
	ID   string
	Play bool
}

type PlayClicked struct{}
type StopClicked struct{}
type NextClicked struct{}
type PrevClicked struct{}
type MuteClicked struct{}

// SpeedClicked cycles the playback speed.
type SpeedClicked struct{}

// VolumeChanged is a move of the volume slider.
type VolumeChanged struct {
	Volume float64
}

// SeekRequested is a move of the seek slider.
type SeekRequested struct {
	Position time.Duration
}

// Reordered reports the message table's new row order.
type Reordered struct {
	Order []string
}

// FragmentChanged reports a navigation change made outside the mailbox.
type FragmentChanged struct {
	Fragment string
}

// EngineEvent wraps a playback engine notification.
type EngineEvent struct {
	player.Event
}

func (SelectMessage) event()   {}
func (PlayClicked) event()     {}
func (StopClicked) event()     {}
func (NextClicked) event()     {}
func (PrevClicked) event()     {}
func (MuteClicked) event()     {}
func (SpeedClicked) event()    {}
func (VolumeChanged) event()   {}
func (SeekRequested) event()   {}
func (Reordered) event()       {}
func (FragmentChanged) event() {}
func (EngineEvent) event()     {}
