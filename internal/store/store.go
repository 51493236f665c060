// Package store keeps the latest resolved price per asset and a bounded,
// append-only history of past prices.
package store

import (
	"sort"
	"sync"

	"priceoracle/pkg/integrations/memcache"
	"priceoracle/pkg/types/cache"
	"priceoracle/pkg/types/prices"
)

const DefaultHistoryLimit = 100

// Store is safe for concurrent readers. Writes must come from a single
// owner; Upsert itself is atomic per symbol, so readers never see a record
// without its matching history entry.
type Store struct {
	mu      sync.RWMutex
	current cache.Cache[string, prices.PriceRecord]
	history map[string]*ring
	limit   int
}

type Option func(*Store)

// WithHistoryLimit caps the number of history entries kept per symbol.
func WithHistoryLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		current: memcache.New[string, prices.PriceRecord](),
		history: make(map[string]*ring),
		limit:   DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert replaces the current record for rec.Symbol and appends it to the
// symbol's history, evicting the oldest entry once the limit is reached.
func (s *Store) Upsert(rec prices.PriceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Set(rec.Symbol, rec)

	h, ok := s.history[rec.Symbol]
	if !ok {
		h = newRing(s.limit)
		s.history[rec.Symbol] = h
	}
	h.push(prices.HistoryEntry{
		Price:     rec.Price,
		Timestamp: rec.Timestamp,
		Source:    rec.Source,
	})
}

func (s *Store) Get(symbol string) (prices.PriceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Get(symbol)
}

func (s *Store) All() map[string]prices.PriceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]prices.PriceRecord, s.current.Len())
	for _, rec := range s.current.Values() {
		out[rec.Symbol] = rec
	}
	return out
}

// Symbols returns the symbols that currently have a price, sorted.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := s.current.Keys()
	sort.Strings(symbols)
	return symbols
}

func (s *Store) Len() int {
	return s.current.Len()
}

// History returns up to limit of the most recent entries, oldest first. A
// limit of zero or less returns everything retained.
func (s *Store) History(symbol string, limit int) []prices.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.history[symbol]
	if !ok {
		return []prices.HistoryEntry{}
	}
	return h.last(limit)
}

func (s *Store) Summary() map[string]prices.HistorySummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]prices.HistorySummary, len(s.history))
	for symbol, h := range s.history {
		if h.n == 0 {
			continue
		}
		out[symbol] = prices.HistorySummary{
			Points: h.n,
			Oldest: h.at(0).Timestamp,
			Latest: h.at(h.n - 1).Timestamp,
		}
	}
	return out
}

// HistoryPoints is the total number of history entries across all symbols.
func (s *Store) HistoryPoints() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, h := range s.history {
		total += h.n
	}
	return total
}

// ring is a fixed-capacity FIFO of history entries.
type ring struct {
	buf   []prices.HistoryEntry
	start int
	n     int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]prices.HistoryEntry, capacity)}
}

func (r *ring) push(e prices.HistoryEntry) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = e
		r.n++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) at(i int) prices.HistoryEntry {
	return r.buf[(r.start+i)%len(r.buf)]
}

func (r *ring) last(limit int) []prices.HistoryEntry {
	count := r.n
	if limit > 0 && limit < count {
		count = limit
	}
	out := make([]prices.HistoryEntry, count)
	for i := 0; i < count; i++ {
		out[i] = r.at(r.n - count + i)
	}
	return out
}
