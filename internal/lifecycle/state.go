package lifecycle

import (
	"time"

	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/pkg/exception"
)

// State tracks one order through submission and confirmation.
type State uint8

const (
	StateCreated State = iota
	StateSubmitted
	StateOpen
	StateFilled
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSubmitted:
		return "submitted"
	case StateOpen:
		return "open"
	case StateFilled:
		return "filled"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is legal.
func (s State) IsTerminal() bool {
	switch s {
	case StateFilled, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

var transitions = map[State][]State{
	StateCreated:   {StateSubmitted, StateFailed},
	StateSubmitted: {StateOpen, StateFilled, StateCancelled, StateFailed},
	StateOpen:      {StateOpen, StateFilled, StateCancelled, StateFailed},
}

// Execution is the executor's view of one order from creation to a
// terminal state.
type Execution struct {
	Request     model.OrderRequest
	Placed      model.PlacedOrder
	State       State
	SubmittedAt time.Time
	ResolvedAt  time.Time

	// AssumedFilled marks fills inferred from a missing settled order
	// rather than an explicit closed status.
	AssumedFilled bool
}

func newExecution(req model.OrderRequest) *Execution {
	return &Execution{Request: req, State: StateCreated}
}

func (e *Execution) transition(to State) error {
	for _, allowed := range transitions[e.State] {
		if allowed == to {
			e.State = to
			return nil
		}
	}
	return errors.Wrapf(exception.ErrOrderInvalidTransition, "from %s to %s", e.State, to)
}
