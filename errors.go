package admission

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrUnknownProvider   = errors.New("admission: unknown provider")
	ErrLedgerCorrupt     = errors.New("admission: quota record corrupt")
	ErrLedgerUnavailable = errors.New("admission: quota record unavailable")
)

// LedgerError wraps a persistence failure with ledger context.
type LedgerError struct {
	Err      error
	Op       string // "remaining", "increment", "snapshot"
	Provider string
}

func (e *LedgerError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("admission: ledger %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("admission: ledger %s provider=%s: %v", e.Op, e.Provider, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// IsPersistence reports whether err is a ledger persistence failure that the
// engine handles by treating the metered quota as exhausted.
func IsPersistence(err error) bool {
	var le *LedgerError
	return errors.As(err, &le) ||
		errors.Is(err, ErrLedgerCorrupt) ||
		errors.Is(err, ErrLedgerUnavailable)
}
