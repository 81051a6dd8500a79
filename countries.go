package admission

import "strings"

// registrationPrefixes maps tail-number prefixes to the country of
// registration. Longest prefix wins.
var registrationPrefixes = map[string]string{
	"C-":  "Canada",
	"N":   "United States",
	"G-":  "United Kingdom",
	"D-":  "Germany",
	"F-":  "France",
	"I-":  "Italy",
	"JA":  "Japan",
	"HL":  "South Korea",
	"B-":  "China",
	"VH-": "Australia",
	"ZK-": "New Zealand",
	"XA-": "Mexico",
	"XB-": "Mexico",
	"XC-": "Mexico",
	"CC-": "Chile",
	"PT-": "Brazil",
	"PR-": "Brazil",
	"PP-": "Brazil",
	"PH-": "Netherlands",
	"OO-": "Belgium",
	"LN-": "Norway",
	"SE-": "Sweden",
	"OH-": "Finland",
	"EI-": "Ireland",
	"HB-": "Switzerland",
	"TC-": "Turkey",
	"A6-": "United Arab Emirates",
	"A7-": "Qatar",
	"HZ-": "Saudi Arabia",
	"VT-": "India",
	"9M-": "Malaysia",
	"HS-": "Thailand",
	"RP-": "Philippines",
	"YV-": "Venezuela",
	"LV-": "Argentina",
	"ZS-": "South Africa",
}

// CountryFromRegistration derives the country of registration from a tail
// number prefix, or "" when unknown.
func CountryFromRegistration(registration string) string {
	reg := strings.ToUpper(strings.TrimSpace(registration))
	if reg == "" {
		return ""
	}

	// Longest prefix first so "C-" does not shadow "CC-".
	best := ""
	country := ""
	for prefix, c := range registrationPrefixes {
		if strings.HasPrefix(reg, prefix) && len(prefix) > len(best) {
			best = prefix
			country = c
		}
	}
	return country
}

// CountryFromICAO24 derives the country from the transponder hex code's
// allocation block. Only the home-region blocks are distinguished; anything
// else is unknown.
func CountryFromICAO24(icao24 string) string {
	hex := strings.ToUpper(strings.TrimSpace(icao24))
	if len(hex) < 2 {
		return ""
	}

	switch {
	case hex[0] == 'A':
		// A00000-AFFFFF is the United States block.
		return "United States"
	case hex[0] == 'C' && hex[1] >= '0' && hex[1] <= '3':
		// C00000-C3FFFF is the Canada block.
		return "Canada"
	}
	return ""
}
