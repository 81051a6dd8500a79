package admission

import (
	"fmt"
	"regexp"
	"strings"
)

// Score deltas. Additive: every rule that applies fires, then the deltas
// are summed. A flight matching nothing scores the zero baseline.
const (
	DeltaMilitary      = 100 // scarce, high-value sighting
	DeltaPrivate       = 80  // rarely covered by commercial route feeds
	DeltaCargo         = 60  // under-represented in casual tracking
	DeltaInternational = 30  // registered outside the home region
	DeltaRepeatRoute   = -100
)

// RepeatRouteThreshold is the per-month resolution count at which a route
// stops being worth metered spend.
const RepeatRouteThreshold = 3

// Ruleset is a compiled, immutable set of scoring rules. Build one with
// CompileRules; share it freely, it is safe for concurrent use.
type Ruleset struct {
	military      []*regexp.Regexp
	private       []*regexp.Regexp
	cargo         map[string]string
	homeCountries map[string]bool
}

// CompileRules compiles a RuleConfig into a Ruleset. Bad regexes are
// configuration errors, reported eagerly.
func CompileRules(rc RuleConfig) (*Ruleset, error) {
	rs := &Ruleset{
		cargo:         make(map[string]string, len(rc.CargoAirlines)),
		homeCountries: make(map[string]bool, len(rc.HomeCountries)),
	}

	for _, pat := range rc.MilitaryPatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("admission: config: military pattern %q: %w", pat, err)
		}
		rs.military = append(rs.military, re)
	}
	for _, pat := range rc.PrivatePatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("admission: config: private pattern %q: %w", pat, err)
		}
		rs.private = append(rs.private, re)
	}
	for code, name := range rc.CargoAirlines {
		rs.cargo[strings.ToUpper(code)] = name
	}
	for _, c := range rc.HomeCountries {
		rs.homeCountries[strings.ToUpper(strings.TrimSpace(c))] = true
	}

	return rs, nil
}

// Score rates a flight's interestingness. Pure and deterministic: identical
// inputs always produce an identical ScoreResult. The repetition count comes
// from the route cache; the scorer never reads shared state itself.
func (rs *Ruleset) Score(flight FlightCandidate, repetition int) ScoreResult {
	var res ScoreResult

	add := func(label string, delta int) {
		res.Reasons = append(res.Reasons, Reason{Label: label, Delta: delta})
		res.Total += delta
	}

	if rs.IsMilitary(flight.Callsign) {
		add("MILITARY", DeltaMilitary)
	}
	if rs.IsPrivate(flight.Callsign, flight.Registration) {
		add("PRIVATE", DeltaPrivate)
	}
	if rs.IsCargo(flight.Callsign) {
		add("CARGO", DeltaCargo)
	}
	if rs.isForeign(flight) {
		add("INTERNATIONAL", DeltaInternational)
	}
	if repetition >= RepeatRouteThreshold {
		add(fmt.Sprintf("REPEAT_ROUTE(%dx)", repetition), DeltaRepeatRoute)
	}

	return res
}

// IsMilitary reports whether the callsign matches the military pattern set.
func (rs *Ruleset) IsMilitary(callsign string) bool {
	cs := strings.ToUpper(strings.TrimSpace(callsign))
	if cs == "" {
		return false
	}
	for _, re := range rs.military {
		if re.MatchString(cs) {
			return true
		}
	}
	return false
}

// IsCargo reports whether the callsign carries a cargo-carrier ICAO prefix.
func (rs *Ruleset) IsCargo(callsign string) bool {
	cs := strings.ToUpper(strings.TrimSpace(callsign))
	if len(cs) < 3 {
		return false
	}
	_, ok := rs.cargo[cs[:3]]
	return ok
}

// IsPrivate reports whether the flight looks like private or general
// aviation. Private aircraft commonly broadcast their registration as the
// callsign.
func (rs *Ruleset) IsPrivate(callsign, registration string) bool {
	cs := strings.ToUpper(strings.TrimSpace(callsign))
	if cs == "" {
		return false
	}

	if registration != "" {
		reg := strings.ToUpper(strings.ReplaceAll(registration, "-", ""))
		if cs == reg {
			return true
		}
	}

	for _, re := range rs.private {
		if re.MatchString(cs) {
			return true
		}
	}
	return false
}

// isForeign reports whether the aircraft is registered outside the
// configured home region. Falls back to deriving the country from the
// registration prefix, then the ICAO24 hex allocation.
func (rs *Ruleset) isForeign(flight FlightCandidate) bool {
	if len(rs.homeCountries) == 0 {
		return false
	}

	country := flight.Country
	if country == "" {
		country = CountryFromRegistration(flight.Registration)
	}
	if country == "" {
		country = CountryFromICAO24(flight.ICAO24)
	}
	if country == "" {
		return false // unknown, no bonus
	}

	return !rs.homeCountries[strings.ToUpper(country)]
}
