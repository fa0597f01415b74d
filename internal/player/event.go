package player

import (
	"fmt"
	"time"
)

// EventKind identifies an engine notification.
type EventKind int

const (
	EventLoading EventKind = iota
	EventPlaying
	EventPaused
	EventEnded
	EventPosition
	EventDuration
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventLoading:
		return "loading"
	case EventPlaying:
		return "playing"
	case EventPaused:
		return "paused"
	case EventEnded:
		return "ended"
	case EventPosition:
		return "position"
	case EventDuration:
		return "duration"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is an asynchronous engine notification. Token is the value Load
// returned for the media the event belongs to.
type Event struct {
	Kind     EventKind
	Token    uint64
	Position time.Duration
	Duration time.Duration
	Err      error
}
