// Package admission decides, per detected flight, whether a scarce metered
// route-lookup API call is worth spending. It scores a flight's
// interestingness, tracks the monthly call quota across processes, derives a
// quota-aware admission threshold, and routes each lookup to the metered
// provider, the free fallback, or nowhere.
//
// The radio decoder, the detection loop, the flight database and the
// provider HTTP clients are external collaborators: they hand the engine a
// FlightCandidate and act on the Decision it returns.
package admission

import (
	"strings"
	"time"
)

// FlightCandidate describes one detected flight up for evaluation.
// Immutable per evaluation; supplied by the detection loop.
type FlightCandidate struct {
	// ICAO24 is the transponder hex code, e.g. "C061F2".
	ICAO24 string `json:"icao24"`

	// Callsign as broadcast, e.g. "ACA123". May be empty.
	Callsign string `json:"callsign,omitempty"`

	// Registration is the tail number, e.g. "C-FGDT". May be empty.
	Registration string `json:"registration,omitempty"`

	// Country of registration, e.g. "Canada". Derived from the
	// registration or hex code when empty.
	Country string `json:"country,omitempty"`

	// RouteKey is the candidate origin-destination pair, if one is already
	// derivable for this flight. Empty before resolution.
	RouteKey RouteKey `json:"route_key,omitempty"`
}

// AirlineCode returns the three-letter ICAO operator prefix of the
// callsign, or "" when the callsign is too short to carry one.
func (f FlightCandidate) AirlineCode() string {
	cs := strings.ToUpper(strings.TrimSpace(f.Callsign))
	if len(cs) < 3 {
		return ""
	}
	return cs[:3]
}

// RouteKey is a normalized origin-destination airport pair, e.g. "YVR-YYZ".
type RouteKey string

// MakeRouteKey builds a RouteKey from origin and destination airport codes.
// Returns "" unless both codes are present.
func MakeRouteKey(origin, destination string) RouteKey {
	o := strings.ToUpper(strings.TrimSpace(origin))
	d := strings.ToUpper(strings.TrimSpace(destination))
	if o == "" || d == "" {
		return ""
	}
	return RouteKey(o + "-" + d)
}

// Reason is one scoring rule that fired, with its point delta.
type Reason struct {
	Label string `json:"label"`
	Delta int    `json:"delta"`
}

// ScoreResult is the outcome of scoring a single flight. Created fresh per
// evaluation, never persisted.
type ScoreResult struct {
	Total   int      `json:"total"`
	Reasons []Reason `json:"reasons,omitempty"`
}

// Outcome is the routing verdict for one flight.
type Outcome int

const (
	// CallMetered admits the flight to the metered provider; the ledger
	// increment has already been applied.
	CallMetered Outcome = iota

	// CallFallback routes the lookup to the unmetered fallback provider.
	CallFallback

	// Skip means no lookup at all. When Decision.CachedRoute is set the
	// caller already holds the answer.
	Skip
)

func (o Outcome) String() string {
	switch o {
	case CallMetered:
		return "call-metered"
	case CallFallback:
		return "call-fallback"
	case Skip:
		return "skip"
	default:
		return "unknown"
	}
}

// Decision is the engine's verdict for one flight, with everything a caller
// needs to log exactly why the flight was admitted, deferred or skipped.
// Transient, not persisted.
type Decision struct {
	// ID correlates this decision across log lines.
	ID string

	Outcome  Outcome
	Provider string // provider the caller should use, "" for Skip

	Score     ScoreResult
	Threshold int
	Remaining int
	CarveOut  bool

	// CachedRoute is set on a Skip when the flight's route was already
	// resolved earlier in this run.
	CachedRoute RouteKey

	// RaceLost is set when the last quota slot was consumed by a
	// concurrent process between the remaining read and the increment.
	RaceLost bool

	// LedgerErr records a persistence failure that forced the fail-safe
	// path (quota treated as exhausted). Not a reason to crash.
	LedgerErr error

	EvaluatedAt time.Time
}

// Month identifies a calendar month for quota accounting.
type Month struct {
	Year int
	Mon  time.Month
}

// MonthOf returns the Month containing t, in UTC.
func MonthOf(t time.Time) Month {
	t = t.UTC()
	return Month{Year: t.Year(), Mon: t.Month()}
}

// String renders the month identifier used in persisted records, "2026-08".
func (m Month) String() string {
	return time.Date(m.Year, m.Mon, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// ParseMonth parses a "2006-01" month identifier.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, err
	}
	return MonthOf(t), nil
}
