package admission

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger is an in-process Ledger for tests, demos and single-process
// deployments. It honors the month-keyed record model but offers no
// cross-process durability; shared deployments use the ledger subpackages.
type MemoryLedger struct {
	mu     sync.Mutex
	limits map[string]int
	months map[string]map[string]int // month id -> provider -> used

	// now is swappable in tests.
	now func() time.Time
}

var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger creates a MemoryLedger with per-provider monthly limits.
func NewMemoryLedger(limits map[string]int) *MemoryLedger {
	l := &MemoryLedger{
		limits: make(map[string]int, len(limits)),
		months: make(map[string]map[string]int),
		now:    time.Now,
	}
	for p, lim := range limits {
		l.limits[p] = lim
	}
	return l
}

// SetLimit configures the monthly limit for a provider.
func (l *MemoryLedger) SetLimit(provider string, limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits[provider] = limit
}

// Remaining returns the unused quota for a provider this month.
func (l *MemoryLedger) Remaining(_ context.Context, provider string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.limits[provider]
	if !ok {
		return 0, ErrUnknownProvider
	}

	used := l.months[l.monthKey()][provider]
	if used >= limit {
		return 0, nil
	}
	return limit - used, nil
}

// TryIncrement consumes one quota slot, refusing once the limit is reached.
func (l *MemoryLedger) TryIncrement(_ context.Context, provider string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.limits[provider]
	if !ok {
		return false, ErrUnknownProvider
	}

	key := l.monthKey()
	month, ok := l.months[key]
	if !ok {
		month = make(map[string]int)
		l.months[key] = month
	}
	if month[provider] >= limit {
		return false, nil
	}
	month[provider]++
	return true, nil
}

// CurrentMonth returns the month being accounted against.
func (l *MemoryLedger) CurrentMonth() Month {
	l.mu.Lock()
	defer l.mu.Unlock()
	return MonthOf(l.now())
}

// Snapshot reports this month's usage for every limited provider.
func (l *MemoryLedger) Snapshot(_ context.Context) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{
		Month:     MonthOf(l.now()),
		Providers: make(map[string]ProviderUsage, len(l.limits)),
	}
	month := l.months[l.monthKey()]
	for p, lim := range l.limits {
		snap.Providers[p] = ProviderUsage{Used: month[p], Limit: lim}
	}
	return snap, nil
}

// monthKey must be called with the lock held.
func (l *MemoryLedger) monthKey() string {
	return MonthOf(l.now()).String()
}
