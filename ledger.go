package admission

import "context"

// Ledger is the persistent, cross-process count of metered calls made this
// month. Multiple independent processes share one ledger; implementations
// must make TryIncrement a linearizable compare-and-increment (an exclusive
// lock or transaction around the read-modify-write), not a bare file write.
type Ledger interface {
	// Remaining returns the unused quota for a provider this month.
	// A persistence failure returns 0 and a non-nil error: the ledger
	// fails safe as exhausted, never open into unbounded spend.
	Remaining(ctx context.Context, provider string) (int, error)

	// TryIncrement consumes one quota slot. It returns false, nil when the
	// month's limit would be exceeded, including when a concurrent process
	// took the last slot first.
	TryIncrement(ctx context.Context, provider string) (bool, error)

	// CurrentMonth returns the calendar month the ledger is accounting
	// against right now.
	CurrentMonth() Month

	// Snapshot reports this month's usage for every limited provider.
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Snapshot is a point-in-time view of the month's quota usage.
type Snapshot struct {
	Month     Month
	Providers map[string]ProviderUsage
}

// ProviderUsage is one provider's usage within a Snapshot.
type ProviderUsage struct {
	Used  int
	Limit int
}

// Remaining returns the unused quota in this usage entry.
func (u ProviderUsage) Remaining() int {
	r := u.Limit - u.Used
	if r < 0 {
		return 0
	}
	return r
}

// Percent returns the share of the quota already spent, 0-100.
func (u ProviderUsage) Percent() float64 {
	if u.Limit <= 0 {
		return 0
	}
	return float64(u.Used) / float64(u.Limit) * 100
}
