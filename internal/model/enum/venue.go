package enum

import "strings"

// Venue identifies a trading counterparty family. Dispatch happens through
// a registry keyed by this value, never by matching raw strings.
type Venue uint8

const (
	_venue_beg Venue = iota
	VenueSpot
	VenueBrokerage
	VenueChain
	_venue_end
)

func (v Venue) IsAvailable() bool {
	return v > _venue_beg && v < _venue_end
}

func (v Venue) String() string {
	switch v {
	case VenueSpot:
		return "spot"
	case VenueBrokerage:
		return "brokerage"
	case VenueChain:
		return "chain"
	default:
		return "unknown"
	}
}

func ParseVenue(s string) (Venue, bool) {
	switch strings.ToLower(s) {
	case "spot":
		return VenueSpot, true
	case "brokerage":
		return VenueBrokerage, true
	case "chain":
		return VenueChain, true
	default:
		return _venue_beg, false
	}
}
