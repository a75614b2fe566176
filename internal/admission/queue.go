package admission

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/model"
)

type Decision uint8

const (
	DecisionUnknown Decision = iota
	DecisionAccepted
	DecisionDuplicate
	DecisionRejectedStale
)

func (d Decision) String() string {
	switch d {
	case DecisionAccepted:
		return "accepted"
	case DecisionDuplicate:
		return "duplicate"
	case DecisionRejectedStale:
		return "rejected-stale"
	default:
		return "unknown"
	}
}

// Store is the ledger of accepted signals: append-only with bounded
// retention, queried for the latest entry per (symbol, currency) pair.
type Store interface {
	Latest(symbol, currency string) (model.TradeSignal, bool, error)
	Append(signal model.TradeSignal) error
	Prune(before time.Time) error
}

const _stripes = 64

// Queue admits, deduplicates, or rejects signals so that signals for one
// pair are processed in strict timestamp order. Check-then-append is
// serialized per pair through striped locks; distinct pairs admit
// concurrently.
type Queue struct {
	store     Store
	retention time.Duration
	locks     [_stripes]sync.Mutex
	now       func() time.Time
}

func NewQueue(store Store, retention time.Duration) *Queue {
	return &Queue{
		store:     store,
		retention: retention,
		now:       time.Now,
	}
}

// Admit decides the fate of one incoming signal.
//
// No prior entry, or prior entry older: accept and append.
// Prior entry at the same instant: duplicate, forwarded without
// re-appending so webhook redelivery stays idempotent.
// Prior entry newer: reject; out-of-order delivery must not re-trigger
// work a later signal already superseded.
func (q *Queue) Admit(signal model.TradeSignal) (Decision, error) {
	lock := &q.locks[stripeOf(signal.Symbol, signal.Currency)]
	lock.Lock()
	defer lock.Unlock()

	latest, found, err := q.store.Latest(signal.Symbol, signal.Currency)
	if err != nil {
		return DecisionUnknown, errors.Wrap(err, "lookup latest accepted signal")
	}

	if found {
		switch {
		case latest.Timestamp.Equal(signal.Timestamp):
			return DecisionDuplicate, nil
		case latest.Timestamp.After(signal.Timestamp):
			return DecisionRejectedStale, nil
		}
	}

	if err := q.store.Prune(q.now().Add(-q.retention)); err != nil {
		return DecisionUnknown, errors.Wrap(err, "prune ledger")
	}
	if err := q.store.Append(signal); err != nil {
		return DecisionUnknown, errors.Wrap(err, "append accepted signal")
	}
	return DecisionAccepted, nil
}

func stripeOf(symbol, currency string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	h.Write([]byte{'/'})
	h.Write([]byte(currency))
	return h.Sum32() % _stripes
}
