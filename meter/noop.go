package meter

import admission "github.com/Cnd-North/adsb-flight-tracker"

// NoopMeter is a meter that does nothing.
type NoopMeter struct{}

var _ admission.Meter = (*NoopMeter)(nil)

func (NoopMeter) OnDecision(admission.DecisionEvent)       {}
func (NoopMeter) OnLedgerError(admission.LedgerErrorEvent) {}
