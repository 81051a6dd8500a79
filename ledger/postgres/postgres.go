// Package postgres provides a PostgreSQL-backed quota ledger.
//
// Usage lives in a table keyed by (month, provider); TryIncrement is a
// single conditional UPDATE, so the compare-and-increment is linearizable
// across any number of tracker processes sharing the database.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	admission "github.com/Cnd-North/adsb-flight-tracker"
)

// Store is a PostgreSQL-backed admission.Ledger.
type Store struct {
	pool        *pgxpool.Pool
	tablePrefix string
	limits      map[string]int

	now func() time.Time
}

var _ admission.Ledger = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithTablePrefix sets the table name prefix (default "adsb_").
func WithTablePrefix(prefix string) Option {
	return func(s *Store) { s.tablePrefix = prefix }
}

// New creates a PostgreSQL-backed ledger with per-provider monthly limits.
func New(pool *pgxpool.Pool, limits map[string]int, opts ...Option) *Store {
	s := &Store{
		pool:        pool,
		tablePrefix: "adsb_",
		limits:      make(map[string]int, len(limits)),
		now:         time.Now,
	}
	for p, lim := range limits {
		s.limits[p] = lim
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) quotaTable() string { return s.tablePrefix + "api_quota" }

// EnsureSchema creates the quota table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			month    TEXT NOT NULL,
			provider TEXT NOT NULL,
			used     BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (month, provider)
		);
	`, s.quotaTable())
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return &admission.LedgerError{Err: err, Op: "schema"}
	}
	return nil
}

func (s *Store) monthKey() string {
	return admission.MonthOf(s.now()).String()
}

// Remaining returns the unused quota for a provider this month.
func (s *Store) Remaining(ctx context.Context, provider string) (int, error) {
	limit, ok := s.limits[provider]
	if !ok {
		return 0, admission.ErrUnknownProvider
	}

	var used int
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT used FROM %s WHERE month = $1 AND provider = $2`, s.quotaTable()),
		s.monthKey(), provider,
	).Scan(&used)
	if err == pgx.ErrNoRows {
		used = 0
	} else if err != nil {
		return 0, &admission.LedgerError{Err: err, Op: "remaining", Provider: provider}
	}

	if used >= limit {
		return 0, nil
	}
	return limit - used, nil
}

// TryIncrement consumes one quota slot: insert the month row if absent,
// then bump it only while it is under the limit.
func (s *Store) TryIncrement(ctx context.Context, provider string) (bool, error) {
	limit, ok := s.limits[provider]
	if !ok {
		return false, admission.ErrUnknownProvider
	}

	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (month, provider, used) VALUES ($1, $2, 0)
			ON CONFLICT (month, provider) DO NOTHING`, s.quotaTable()),
		s.monthKey(), provider,
	)
	if err != nil {
		return false, &admission.LedgerError{Err: err, Op: "increment", Provider: provider}
	}

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET used = used + 1
			WHERE month = $1 AND provider = $2 AND used < $3`, s.quotaTable()),
		s.monthKey(), provider, limit,
	)
	if err != nil {
		return false, &admission.LedgerError{Err: err, Op: "increment", Provider: provider}
	}
	return tag.RowsAffected() == 1, nil
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

	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT provider, used FROM %s WHERE month = $1`, s.quotaTable()),
		s.monthKey(),
	)
	if err != nil {
		return admission.Snapshot{}, &admission.LedgerError{Err: err, Op: "snapshot"}
	}
	defer rows.Close()

	used := make(map[string]int)
	for rows.Next() {
		var p string
		var u int
		if err := rows.Scan(&p, &u); err != nil {
			return admission.Snapshot{}, &admission.LedgerError{Err: err, Op: "snapshot"}
		}
		used[p] = u
	}
	if err := rows.Err(); err != nil {
		return admission.Snapshot{}, &admission.LedgerError{Err: err, Op: "snapshot"}
	}

	for p, lim := range s.limits {
		snap.Providers[p] = admission.ProviderUsage{Used: used[p], Limit: lim}
	}
	return snap, nil
}
