package engine

import (
	"sort"
	"time"

	"SpikeWatch/internal/domain/models"
)

// SymbolBuffer holds the recent trades of one symbol, bounded by both a
// maximum count and a maximum age. Trades arrive in nondecreasing timestamp
// order per symbol, so window lookups binary-search the live slice instead of
// scanning it. The buffer is owned by a single shard goroutine; Snapshot
// returns sub-slices of the internal storage and callers must not retain them
// across mutations.
type SymbolBuffer struct {
	symbol   string
	trades   []models.Trade
	head     int
	maxCount int
	maxAge   time.Duration
}

// NewSymbolBuffer creates a buffer for one symbol.
func NewSymbolBuffer(symbol string, maxCount int, maxAge time.Duration) *SymbolBuffer {
	if maxCount <= 0 {
		maxCount = 1
	}
	return &SymbolBuffer{
		symbol:   symbol,
		trades:   make([]models.Trade, 0, 64),
		maxCount: maxCount,
		maxAge:   maxAge,
	}
}

// Symbol returns the symbol this buffer belongs to.
func (b *SymbolBuffer) Symbol() string {
	return b.symbol
}

// Record appends a trade, evicting from the oldest end when the count bound
// is exceeded. Out-of-order timestamps are accepted as-is.
func (b *SymbolBuffer) Record(t models.Trade) {
	b.trades = append(b.trades, t)
	if b.Len() > b.maxCount {
		b.head++
	}
	b.compact()
}

// Prune removes trades older than the age bound relative to now.
func (b *SymbolBuffer) Prune(now time.Time) {
	if b.maxAge <= 0 {
		return
	}
	cutoff := now.Add(-b.maxAge)
	live := b.trades[b.head:]
	drop := sort.Search(len(live), func(i int) bool {
		return !live[i].Timestamp.Before(cutoff)
	})
	b.head += drop
	b.compact()
}

// Snapshot returns the trades within the half-open interval [from, to) in
// insertion order. The returned slice aliases internal storage.
func (b *SymbolBuffer) Snapshot(from, to time.Time) []models.Trade {
	live := b.trades[b.head:]
	lo := sort.Search(len(live), func(i int) bool {
		return !live[i].Timestamp.Before(from)
	})
	hi := sort.Search(len(live), func(i int) bool {
		return !live[i].Timestamp.Before(to)
	})
	if lo >= hi {
		return nil
	}
	return live[lo:hi]
}

// LastN returns up to n most recent trades.
func (b *SymbolBuffer) LastN(n int) []models.Trade {
	live := b.trades[b.head:]
	if n <= 0 || len(live) == 0 {
		return nil
	}
	if n > len(live) {
		n = len(live)
	}
	return live[len(live)-n:]
}

// Len reports the number of live trades.
func (b *SymbolBuffer) Len() int {
	return len(b.trades) - b.head
}

// compact reclaims the dead prefix once it dominates the backing array.
func (b *SymbolBuffer) compact() {
	if b.head == 0 || b.head < len(b.trades)/2 {
		return
	}
	n := copy(b.trades, b.trades[b.head:])
	b.trades = b.trades[:n]
	b.head = 0
}
