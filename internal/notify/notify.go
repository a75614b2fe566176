package notify

import "time"

type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one human-facing status notification. Delivery is
// fire-and-forget; a failing notifier never affects pipeline outcome.
type Event struct {
	Severity Severity
	Category string
	Message  string
	At       time.Time
}

type Notifier interface {
	Notify(Event)
}

// Multi fans one event out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(e Event) {
	for _, n := range m {
		n.Notify(e)
	}
}

// Func adapts a plain function to the Notifier interface.
type Func func(Event)

func (f Func) Notify(e Event) { f(e) }

// Discard swallows every event. Useful as a default.
var Discard Notifier = Func(func(Event) {})
