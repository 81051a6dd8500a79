package admission

import "time"

// Meter observes admission events for monitoring/logging.
type Meter interface {
	// OnDecision is called after every evaluation.
	OnDecision(event DecisionEvent)

	// OnLedgerError is called when the quota ledger fails and the engine
	// takes the fail-safe path.
	OnLedgerError(event LedgerErrorEvent)
}

// DecisionEvent describes one admission decision.
type DecisionEvent struct {
	DecisionID string
	ICAO24     string
	Callsign   string
	Outcome    Outcome
	Provider   string
	Score      int
	Reasons    []Reason
	Threshold  int
	Remaining  int
	CarveOut   bool
	RaceLost   bool
	Cached     bool
	Duration   time.Duration
}

// LedgerErrorEvent describes a quota persistence failure.
type LedgerErrorEvent struct {
	DecisionID string
	Provider   string
	Err        error
}
