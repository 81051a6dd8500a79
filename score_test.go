package admission_test

import (
	"testing"

	admission "github.com/Cnd-North/adsb-flight-tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRules(t *testing.T) *admission.Ruleset {
	t.Helper()
	rules, err := admission.CompileRules(admission.DefaultConfig().Rules)
	require.NoError(t, err)
	return rules
}

func TestScore_RuleDeltas(t *testing.T) {
	rules := newTestRules(t)

	tests := []struct {
		name       string
		flight     admission.FlightCandidate
		repetition int
		wantTotal  int
		wantLabels []string
	}{
		{
			name:       "military callsign",
			flight:     admission.FlightCandidate{ICAO24: "A11111", Callsign: "RCH345"},
			wantTotal:  100,
			wantLabels: []string{"MILITARY"},
		},
		{
			name: "private registration as callsign",
			// N12345 also matches the registration-style pattern on its
			// own; the rule fires once.
			flight:     admission.FlightCandidate{ICAO24: "A22222", Callsign: "N12345", Registration: "N12345"},
			wantTotal:  80,
			wantLabels: []string{"PRIVATE"},
		},
		{
			name:       "cargo carrier",
			flight:     admission.FlightCandidate{ICAO24: "A33333", Callsign: "FDX1234"},
			wantTotal:  60,
			wantLabels: []string{"CARGO"},
		},
		{
			name:       "foreign registration",
			flight:     admission.FlightCandidate{ICAO24: "3C6444", Callsign: "DLH456", Country: "Germany"},
			wantTotal:  30,
			wantLabels: []string{"INTERNATIONAL"},
		},
		{
			name:       "common route penalty",
			flight:     admission.FlightCandidate{ICAO24: "C06111", Callsign: "ACA123", RouteKey: "YVR-YYZ"},
			repetition: 3,
			wantTotal:  -100,
			wantLabels: []string{"REPEAT_ROUTE(3x)"},
		},
		{
			name:      "plain domestic commercial scores baseline zero",
			flight:    admission.FlightCandidate{ICAO24: "A44444", Callsign: "UAL123"},
			wantTotal: 0,
		},
		{
			name:      "no callsign, no registration",
			flight:    admission.FlightCandidate{ICAO24: "A55555"},
			wantTotal: 0,
		},
		{
			name:       "military foreign stacks",
			flight:     admission.FlightCandidate{ICAO24: "43C111", Callsign: "RAF001", Country: "United Kingdom"},
			wantTotal:  130,
			wantLabels: []string{"MILITARY", "INTERNATIONAL"},
		},
		{
			name:       "cargo on a worn-out route nets negative",
			flight:     admission.FlightCandidate{ICAO24: "A66666", Callsign: "UPS901", RouteKey: "SDF-ONT"},
			repetition: 5,
			wantTotal:  -40,
			wantLabels: []string{"CARGO", "REPEAT_ROUTE(5x)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := rules.Score(tt.flight, tt.repetition)
			assert.Equal(t, tt.wantTotal, res.Total)

			labels := make([]string, len(res.Reasons))
			for i, r := range res.Reasons {
				labels[i] = r.Label
			}
			if tt.wantLabels == nil {
				assert.Empty(t, labels)
			} else {
				assert.Equal(t, tt.wantLabels, labels)
			}
		})
	}
}

func TestScore_Deterministic(t *testing.T) {
	rules := newTestRules(t)
	flight := admission.FlightCandidate{
		ICAO24:   "43C111",
		Callsign: "RAF001",
		Country:  "United Kingdom",
		RouteKey: "BZZ-ADW",
	}

	first := rules.Score(flight, 4)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, rules.Score(flight, 4))
	}
}

// The repetition penalty starts at the third resolution: two sightings of a
// route contribute nothing, three cost the full penalty.
func TestScore_RepetitionBoundary(t *testing.T) {
	rules := newTestRules(t)
	flight := admission.FlightCandidate{ICAO24: "A12121", Callsign: "UAL123", RouteKey: "LAX-JFK"}

	assert.Equal(t, 0, rules.Score(flight, 0).Total)
	assert.Equal(t, 0, rules.Score(flight, 2).Total)
	assert.Equal(t, -100, rules.Score(flight, 3).Total)
	assert.Equal(t, -100, rules.Score(flight, 10).Total)
}

func TestScore_SumsReasonDeltas(t *testing.T) {
	rules := newTestRules(t)
	flight := admission.FlightCandidate{ICAO24: "3C6444", Callsign: "CLX789", Country: "Luxembourg", RouteKey: "LUX-ORD"}

	res := rules.Score(flight, 7)
	sum := 0
	for _, r := range res.Reasons {
		sum += r.Delta
	}
	assert.Equal(t, res.Total, sum)
}

func TestRuleset_Matchers(t *testing.T) {
	rules := newTestRules(t)

	assert.True(t, rules.IsMilitary("RCH345"))
	assert.True(t, rules.IsMilitary("canforce01")) // case-insensitive
	assert.False(t, rules.IsMilitary("UAL123"))
	assert.False(t, rules.IsMilitary(""))

	assert.True(t, rules.IsCargo("FDX1234"))
	assert.True(t, rules.IsCargo("ups72"))
	assert.False(t, rules.IsCargo("AC"))
	assert.False(t, rules.IsCargo("ACA123"))

	assert.True(t, rules.IsPrivate("N12345", ""))
	assert.True(t, rules.IsPrivate("CFGDT", "C-FGDT")) // reg broadcast without dash
	assert.False(t, rules.IsPrivate("WJA550", ""))
	assert.False(t, rules.IsPrivate("", "N12345"))
}

func TestCountryDerivation(t *testing.T) {
	assert.Equal(t, "Canada", admission.CountryFromRegistration("C-FGDT"))
	assert.Equal(t, "Chile", admission.CountryFromRegistration("CC-BBA")) // longest prefix wins
	assert.Equal(t, "United States", admission.CountryFromRegistration("N12345"))
	assert.Equal(t, "", admission.CountryFromRegistration(""))
	assert.Equal(t, "", admission.CountryFromRegistration("ZZ-999"))

	assert.Equal(t, "United States", admission.CountryFromICAO24("A1B2C3"))
	assert.Equal(t, "Canada", admission.CountryFromICAO24("C061F2"))
	assert.Equal(t, "", admission.CountryFromICAO24("C8AAAA")) // outside the Canada block
	assert.Equal(t, "", admission.CountryFromICAO24("3C6444"))
}
