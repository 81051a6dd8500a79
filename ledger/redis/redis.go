// Package redis provides a Redis-backed quota ledger.
//
// Usage is stored in per-month keys incremented by an atomic Lua script, so
// TryIncrement is linearizable across any number of tracker processes and
// hosts sharing one Redis.
package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	admission "github.com/Cnd-North/adsb-flight-tracker"
)

// Store is a Redis-backed admission.Ledger.
type Store struct {
	client    goredis.Cmdable
	keyPrefix string
	limits    map[string]int

	now func() time.Time
}

var _ admission.Ledger = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithKeyPrefix sets the Redis key prefix (default "adsb:quota:").
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// New creates a Redis-backed ledger with per-provider monthly limits.
// The client must be a connected *goredis.Client or *goredis.ClusterClient.
func New(client goredis.Cmdable, limits map[string]int, opts ...Option) *Store {
	s := &Store{
		client:    client,
		keyPrefix: "adsb:quota:",
		limits:    make(map[string]int, len(limits)),
		now:       time.Now,
	}
	for p, lim := range limits {
		s.limits[p] = lim
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(provider string) string {
	return s.keyPrefix + admission.MonthOf(s.now()).String() + ":" + provider
}

// incrScript atomically increments a month counter unless it has reached
// the limit.
// KEYS[1] = month:provider counter key
// ARGV[1] = monthly limit
// ARGV[2] = expiry seconds (covers the record past the month boundary;
//           stale months fall out of Redis on their own)
//
// Returns 1 when the slot was taken, 0 when the limit was hit.
var incrScript = goredis.NewScript(`
local used = tonumber(redis.call("GET", KEYS[1]) or "0")
local limit = tonumber(ARGV[1])
if used >= limit then
    return 0
end
redis.call("INCR", KEYS[1])
redis.call("EXPIRE", KEYS[1], tonumber(ARGV[2]))
return 1
`)

// counterTTL keeps superseded month counters around for two more months of
// inspection before Redis reclaims them.
const counterTTL = 62 * 24 * time.Hour

// Remaining returns the unused quota for a provider this month.
func (s *Store) Remaining(ctx context.Context, provider string) (int, error) {
	limit, ok := s.limits[provider]
	if !ok {
		return 0, admission.ErrUnknownProvider
	}

	used, err := s.client.Get(ctx, s.key(provider)).Int()
	if err == goredis.Nil {
		used = 0
	} else if err != nil {
		return 0, &admission.LedgerError{Err: err, Op: "remaining", Provider: provider}
	}

	if used >= limit {
		return 0, nil
	}
	return limit - used, nil
}

// TryIncrement consumes one quota slot via the Lua script.
func (s *Store) TryIncrement(ctx context.Context, provider string) (bool, error) {
	limit, ok := s.limits[provider]
	if !ok {
		return false, admission.ErrUnknownProvider
	}

	res, err := incrScript.Run(ctx, s.client,
		[]string{s.key(provider)},
		limit, int(counterTTL.Seconds()),
	).Int64()
	if err != nil {
		return false, &admission.LedgerError{Err: err, Op: "increment", Provider: provider}
	}
	return res == 1, nil
}

// CurrentMonth returns the calendar month being accounted against.
func (s *Store) CurrentMonth() admission.Month {
	return admission.MonthOf(s.now())
}

// Snapshot reports this month's usage for every limited provider.
func (s *Store) Snapshot(ctx context.Context) (admission.Snapshot, error) {
	snap := admission.Snapshot{
		Month:     admission.MonthOf(s.now()),
		Providers: make(map[string]admission.ProviderUsage, len(s.limits)),
	}

	for p, lim := range s.limits {
		used, err := s.client.Get(ctx, s.key(p)).Int()
		if err == goredis.Nil {
			used = 0
		} else if err != nil {
			return admission.Snapshot{}, &admission.LedgerError{Err: err, Op: "snapshot", Provider: p}
		}
		snap.Providers[p] = admission.ProviderUsage{Used: used, Limit: lim}
	}
	return snap, nil
}
