package meter

import (
	"log/slog"

	admission "github.com/Cnd-North/adsb-flight-tracker"
)

// LogMeter logs admission events using slog. Decision traceability is a
// first-class requirement: every line carries the score breakdown, the
// threshold used and the quota remaining.
type LogMeter struct {
	Logger *slog.Logger
}

var _ admission.Meter = (*LogMeter)(nil)

// NewLogMeter creates a LogMeter with the given logger.
// If logger is nil, slog.Default() is used.
func NewLogMeter(logger *slog.Logger) *LogMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMeter{Logger: logger}
}

func (m *LogMeter) OnDecision(e admission.DecisionEvent) {
	attrs := []any{
		"decision", e.DecisionID,
		"icao24", e.ICAO24,
		"callsign", e.Callsign,
		"outcome", e.Outcome.String(),
		"score", e.Score,
		"threshold", e.Threshold,
		"remaining", e.Remaining,
		"duration_us", e.Duration.Microseconds(),
	}
	if e.Provider != "" {
		attrs = append(attrs, "provider", e.Provider)
	}
	if len(e.Reasons) > 0 {
		attrs = append(attrs, "reasons", reasonLabels(e.Reasons))
	}
	if e.CarveOut {
		attrs = append(attrs, "carve_out", true)
	}
	if e.RaceLost {
		attrs = append(attrs, "race_lost", true)
	}
	if e.Cached {
		attrs = append(attrs, "cached", true)
	}

	m.Logger.Info("admission", attrs...)
}

func (m *LogMeter) OnLedgerError(e admission.LedgerErrorEvent) {
	m.Logger.Error("quota_ledger_error",
		"decision", e.DecisionID,
		"provider", e.Provider,
		"error", e.Err,
	)
}

func reasonLabels(reasons []admission.Reason) []string {
	labels := make([]string, len(reasons))
	for i, r := range reasons {
		labels[i] = r.Label
	}
	return labels
}
