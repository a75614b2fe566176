package enum

import "strings"

// Mode decides whether a pipeline places real orders or stops after
// producing the would-be order parameters.
type Mode uint8

const (
	_mode_beg Mode = iota
	ModeSimulate
	ModeTrade
	_mode_end
)

func (m Mode) IsAvailable() bool {
	return m > _mode_beg && m < _mode_end
}

func (m Mode) String() string {
	switch m {
	case ModeSimulate:
		return "simulate"
	case ModeTrade:
		return "trade"
	default:
		return "unknown"
	}
}

func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(s) {
	case "simulate":
		return ModeSimulate, true
	case "trade":
		return ModeTrade, true
	default:
		return _mode_beg, false
	}
}
