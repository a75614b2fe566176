package exception

import "github.com/yanun0323/errors"

var (
	ErrOrderStillOpen         = errors.New("order: status is not closed yet")
	ErrOrderNotFound          = errors.New("order: not found at venue")
	ErrOrderReverted          = errors.New("order: transaction reverted")
	ErrRetriesExhausted       = errors.New("order: confirmation retries exhausted")
	ErrOrderInvalidRequest    = errors.New("order: invalid request")
	ErrOrderInvalidTransition = errors.New("order: invalid state transition")
	ErrUnsupportedVenue       = errors.New("order: unsupported venue")
	ErrSessionClosed          = errors.New("order: broker session closed")
	ErrInsufficientBalance    = errors.New("order: not enough balance")
)
