package enum

import "strings"

type Action uint8

const (
	_action_beg Action = iota
	ActionBuy
	ActionSell
	_action_end
)

func (a Action) IsAvailable() bool {
	return a > _action_beg && a < _action_end
}

func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "buy"
	case ActionSell:
		return "sell"
	default:
		return "unknown"
	}
}

func ParseAction(s string) (Action, bool) {
	switch strings.ToLower(s) {
	case "buy":
		return ActionBuy, true
	case "sell":
		return ActionSell, true
	default:
		return _action_beg, false
	}
}
