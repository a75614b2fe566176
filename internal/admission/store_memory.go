package admission

import (
	"sync"
	"time"

	"main/internal/model"
)

// MemoryStore keeps the ledger in process memory. Entries per pair are
// appended in admission order; because the queue only accepts
// monotonically increasing timestamps per pair, the last entry is the
// latest.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]model.TradeSignal
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]model.TradeSignal)}
}

func (s *MemoryStore) Latest(symbol, currency string) (model.TradeSignal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pair := s.entries[pairKey(symbol, currency)]
	if len(pair) == 0 {
		return model.TradeSignal{}, false, nil
	}
	return pair[len(pair)-1], true, nil
}

func (s *MemoryStore) Append(signal model.TradeSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(signal.Symbol, signal.Currency)
	s.entries[key] = append(s.entries[key], signal)
	return nil
}

func (s *MemoryStore) Prune(before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, pair := range s.entries {
		kept := pair[:0]
		for _, sig := range pair {
			if !sig.Timestamp.Before(before) {
				kept = append(kept, sig)
			}
		}
		if len(kept) == 0 {
			delete(s.entries, key)
			continue
		}
		s.entries[key] = kept
	}
	return nil
}

func pairKey(symbol, currency string) string {
	return symbol + "/" + currency
}
