// Package ledger provides durable, cross-process quota ledger backends.
//
// Every backend implements admission.Ledger with a linearizable
// TryIncrement: under concurrent processes racing for the last quota slot,
// at most one wins. The file backend takes an exclusive OS lock around its
// read-modify-write; the bolt, redis and postgres backends lean on their
// store's own transaction machinery.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	admission "github.com/Cnd-North/adsb-flight-tracker"
)

// EnvQuotaFile overrides the quota record location.
const EnvQuotaFile = "ADSB_QUOTA_FILE"

// DefaultPath returns the quota record path: $ADSB_QUOTA_FILE if set,
// otherwise ~/.adsb-tracker/api_quota.json.
func DefaultPath() string {
	if p := os.Getenv(EnvQuotaFile); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "api_quota.json"
	}
	return filepath.Join(home, ".adsb-tracker", "api_quota.json")
}

// record is the persisted quota state, keyed by month identifier then
// provider. Past months are superseded, never deleted: a month transition
// simply starts addressing a fresh key, so the reset is idempotent no
// matter how many processes observe it.
type record struct {
	Months map[string]map[string]int `json:"months"`
}

// FileLedger is a JSON-file quota ledger shared between processes. The
// read-modify-write in TryIncrement is guarded by an exclusive flock on a
// sidecar lock file; relying on write atomicity alone loses updates.
type FileLedger struct {
	path   string
	lock   *flock.Flock
	limits map[string]int

	now func() time.Time
}

var _ admission.Ledger = (*FileLedger)(nil)

// NewFileLedger creates a FileLedger at path with per-provider monthly
// limits. The parent directory is created if needed.
func NewFileLedger(path string, limits map[string]int) (*FileLedger, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("admission/ledger: create quota dir: %w", err)
	}

	l := &FileLedger{
		path:   path,
		lock:   flock.New(path + ".lock"),
		limits: make(map[string]int, len(limits)),
		now:    time.Now,
	}
	for p, lim := range limits {
		l.limits[p] = lim
	}
	return l, nil
}

// Path returns the quota record location.
func (l *FileLedger) Path() string { return l.path }

// Remaining returns the unused quota for a provider this month. The record
// is re-read on every call; other processes write it too.
func (l *FileLedger) Remaining(ctx context.Context, provider string) (int, error) {
	limit, ok := l.limits[provider]
	if !ok {
		return 0, admission.ErrUnknownProvider
	}

	if err := l.rlock(ctx); err != nil {
		return 0, err
	}
	defer l.lock.Unlock()

	rec, err := l.load()
	if err != nil {
		return 0, err
	}

	used := rec.Months[l.monthKey()][provider]
	if used >= limit {
		return 0, nil
	}
	return limit - used, nil
}

// TryIncrement consumes one quota slot under an exclusive lock: read the
// current month's count, verify it is under the limit, write count+1. The
// whole sequence is indivisible with respect to concurrent writers.
func (l *FileLedger) TryIncrement(ctx context.Context, provider string) (bool, error) {
	limit, ok := l.limits[provider]
	if !ok {
		return false, admission.ErrUnknownProvider
	}

	if err := l.xlock(ctx); err != nil {
		return false, err
	}
	defer l.lock.Unlock()

	rec, err := l.load()
	if err != nil {
		return false, err
	}

	key := l.monthKey()
	month, ok := rec.Months[key]
	if !ok {
		month = make(map[string]int)
		rec.Months[key] = month
	}
	if month[provider] >= limit {
		return false, nil
	}
	month[provider]++

	if err := l.store(rec); err != nil {
		return false, err
	}
	return true, nil
}

// CurrentMonth returns the calendar month being accounted against.
func (l *FileLedger) CurrentMonth() admission.Month {
	return admission.MonthOf(l.now())
}

// Snapshot reports this month's usage for every limited provider.
func (l *FileLedger) Snapshot(ctx context.Context) (admission.Snapshot, error) {
	if err := l.rlock(ctx); err != nil {
		return admission.Snapshot{}, err
	}
	defer l.lock.Unlock()

	rec, err := l.load()
	if err != nil {
		return admission.Snapshot{}, err
	}

	snap := admission.Snapshot{
		Month:     admission.MonthOf(l.now()),
		Providers: make(map[string]admission.ProviderUsage, len(l.limits)),
	}
	month := rec.Months[l.monthKey()]
	for p, lim := range l.limits {
		snap.Providers[p] = admission.ProviderUsage{Used: month[p], Limit: lim}
	}
	return snap, nil
}

func (l *FileLedger) monthKey() string {
	return admission.MonthOf(l.now()).String()
}

func (l *FileLedger) xlock(ctx context.Context) error {
	if err := lockCtx(ctx, l.lock.Lock); err != nil {
		return &admission.LedgerError{Err: err, Op: "lock"}
	}
	return nil
}

func (l *FileLedger) rlock(ctx context.Context) error {
	if err := lockCtx(ctx, l.lock.RLock); err != nil {
		return &admission.LedgerError{Err: err, Op: "lock"}
	}
	return nil
}

// lockCtx takes the lock unless ctx is already done. flock blocks without
// ctx awareness; the pre-check keeps cancelled evaluations cheap.
func lockCtx(ctx context.Context, acquire func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return acquire()
}

// load reads the record, treating a missing file as empty and anything
// unreadable or unparseable as a persistence error. Callers fail safe on
// error: quota reads as exhausted, never as unlimited.
func (l *FileLedger) load() (*record, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &record{Months: make(map[string]map[string]int)}, nil
	}
	if err != nil {
		return nil, &admission.LedgerError{Err: err, Op: "read"}
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &admission.LedgerError{
			Err: fmt.Errorf("%w: %v", admission.ErrLedgerCorrupt, err),
			Op:  "read",
		}
	}
	if rec.Months == nil {
		rec.Months = make(map[string]map[string]int)
	}
	return &rec, nil
}

// store writes the record via temp file + rename so readers never observe a
// torn write.
func (l *FileLedger) store(rec *record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return &admission.LedgerError{Err: err, Op: "write"}
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".quota-*")
	if err != nil {
		return &admission.LedgerError{Err: err, Op: "write"}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &admission.LedgerError{Err: err, Op: "write"}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &admission.LedgerError{Err: err, Op: "write"}
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return &admission.LedgerError{Err: err, Op: "write"}
	}
	return nil
}
