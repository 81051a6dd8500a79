package admission

import "strings"

// Threshold tiers: as the metered quota drains, only increasingly
// interesting flights clear the bar.
const (
	thresholdGenerous    = 20  // plenty of quota left
	thresholdSelective   = 50  // getting low
	thresholdStrict      = 80  // very low
	thresholdExceptional = 100 // almost out
)

// carveOutCeiling is the remaining-quota level at or below which the
// priority-airline carve-out applies. Above it the general threshold is
// already generous enough.
const carveOutCeiling = 20

// ThresholdFor maps remaining metered quota to the admission cutoff a
// flight's score must reach.
func ThresholdFor(remaining int) int {
	switch {
	case remaining > 50:
		return thresholdGenerous
	case remaining >= 20:
		return thresholdSelective
	case remaining >= 5:
		return thresholdStrict
	default:
		return thresholdExceptional
	}
}

// IsPriorityCarveOut reports whether the flight is admitted to the metered
// provider regardless of score: its operator is on the priority allow-list
// and quota is low but not gone. At zero remaining nothing is carved out.
func IsPriorityCarveOut(flight FlightCandidate, remaining int, priorityAirlines []string) bool {
	if remaining <= 0 || remaining > carveOutCeiling {
		return false
	}

	code := flight.AirlineCode()
	if code == "" {
		return false
	}
	for _, p := range priorityAirlines {
		if strings.EqualFold(p, code) {
			return true
		}
	}
	return false
}
