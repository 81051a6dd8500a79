// Package bolt provides a bbolt-backed quota ledger.
//
// bbolt holds an exclusive file lock and serializes writers through ACID
// transactions, so TryIncrement's read-modify-write is linearizable across
// processes without any extra locking here. One process opens the database
// at a time; independent short-lived commands (like the status CLI) should
// open read-only or use the file ledger against a shared record instead.
package bolt

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	admission "github.com/Cnd-North/adsb-flight-tracker"
)

var bucketQuota = []byte("quota")

// Ledger is a bbolt-backed admission.Ledger. Usage is stored one bucket per
// month identifier, provider name to count; past months are superseded,
// never deleted.
type Ledger struct {
	db     *bbolt.DB
	limits map[string]int

	now func() time.Time
}

var _ admission.Ledger = (*Ledger)(nil)

// Open opens (creating if needed) a bolt ledger at path with per-provider
// monthly limits.
func Open(path string, limits map[string]int) (*Ledger, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, &admission.LedgerError{Err: err, Op: "open"}
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketQuota)
		return err
	})
	if err != nil {
		db.Close()
		return nil, &admission.LedgerError{Err: err, Op: "open"}
	}

	l := &Ledger{
		db:     db,
		limits: make(map[string]int, len(limits)),
		now:    time.Now,
	}
	for p, lim := range limits {
		l.limits[p] = lim
	}
	return l, nil
}

// Close releases the database and its file lock.
func (l *Ledger) Close() error { return l.db.Close() }

// Remaining returns the unused quota for a provider this month.
func (l *Ledger) Remaining(_ context.Context, provider string) (int, error) {
	limit, ok := l.limits[provider]
	if !ok {
		return 0, admission.ErrUnknownProvider
	}

	var used int
	err := l.db.View(func(tx *bbolt.Tx) error {
		used = l.read(tx, provider)
		return nil
	})
	if err != nil {
		return 0, &admission.LedgerError{Err: err, Op: "remaining", Provider: provider}
	}

	if used >= limit {
		return 0, nil
	}
	return limit - used, nil
}

// TryIncrement consumes one quota slot inside a write transaction.
func (l *Ledger) TryIncrement(_ context.Context, provider string) (bool, error) {
	limit, ok := l.limits[provider]
	if !ok {
		return false, admission.ErrUnknownProvider
	}

	admitted := false
	err := l.db.Update(func(tx *bbolt.Tx) error {
		month, err := tx.Bucket(bucketQuota).CreateBucketIfNotExists([]byte(l.monthKey()))
		if err != nil {
			return err
		}

		used := decodeCount(month.Get([]byte(provider)))
		if used >= limit {
			return nil
		}
		admitted = true
		return month.Put([]byte(provider), encodeCount(used+1))
	})
	if err != nil {
		return false, &admission.LedgerError{Err: err, Op: "increment", Provider: provider}
	}
	return admitted, nil
}

// CurrentMonth returns the calendar month being accounted against.
func (l *Ledger) CurrentMonth() admission.Month {
	return admission.MonthOf(l.now())
}

// Snapshot reports this month's usage for every limited provider.
func (l *Ledger) Snapshot(_ context.Context) (admission.Snapshot, error) {
	snap := admission.Snapshot{
		Month:     admission.MonthOf(l.now()),
		Providers: make(map[string]admission.ProviderUsage, len(l.limits)),
	}

	err := l.db.View(func(tx *bbolt.Tx) error {
		for p, lim := range l.limits {
			snap.Providers[p] = admission.ProviderUsage{
				Used:  l.read(tx, p),
				Limit: lim,
			}
		}
		return nil
	})
	if err != nil {
		return admission.Snapshot{}, &admission.LedgerError{Err: err, Op: "snapshot"}
	}
	return snap, nil
}

// read returns the current month's count for a provider within tx.
func (l *Ledger) read(tx *bbolt.Tx, provider string) int {
	month := tx.Bucket(bucketQuota).Bucket([]byte(l.monthKey()))
	if month == nil {
		return 0
	}
	return decodeCount(month.Get([]byte(provider)))
}

func (l *Ledger) monthKey() string {
	return admission.MonthOf(l.now()).String()
}

func encodeCount(n int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

func decodeCount(b []byte) int {
	if len(b) != 8 {
		return 0
	}
	return int(binary.BigEndian.Uint64(b))
}

// SeedMonth writes a usage count under an arbitrary month identifier. Meant
// for tooling and tests that need to reconstruct historical state.
func (l *Ledger) SeedMonth(month admission.Month, provider string, used int) error {
	err := l.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(bucketQuota).CreateBucketIfNotExists([]byte(month.String()))
		if err != nil {
			return err
		}
		return b.Put([]byte(provider), encodeCount(used))
	})
	if err != nil {
		return &admission.LedgerError{Err: fmt.Errorf("seed month: %w", err), Op: "write"}
	}
	return nil
}
