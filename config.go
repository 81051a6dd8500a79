package admission

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level admission configuration. Everything here is data,
// not code: operators tune pattern sets and limits without redeploying.
type Config struct {
	// MeteredProvider names the quota-limited route source.
	MeteredProvider string `yaml:"metered_provider"`

	// FallbackProvider names the unmetered, lower-coverage source. Empty
	// means no fallback is configured: sub-threshold flights are skipped.
	FallbackProvider string `yaml:"fallback_provider"`

	Providers []ProviderConfig `yaml:"providers"`

	// PriorityAirlines are ICAO operator codes admitted to the metered
	// provider under low quota even when their score is sub-threshold.
	PriorityAirlines []string `yaml:"priority_airlines"`

	Rules RuleConfig `yaml:"rules"`
}

// ProviderConfig configures a single route-data provider.
type ProviderConfig struct {
	Name string `yaml:"name"`

	// MonthlyLimit is the hard call quota. Zero for unmetered providers.
	MonthlyLimit int `yaml:"monthly_limit"`
}

// RuleConfig holds the data-driven scoring pattern sets.
type RuleConfig struct {
	// MilitaryPatterns are anchored regexes matched against the callsign.
	MilitaryPatterns []string `yaml:"military_patterns"`

	// CargoAirlines maps ICAO operator code to carrier name.
	CargoAirlines map[string]string `yaml:"cargo_airlines"`

	// PrivatePatterns are regexes identifying registration-style callsigns
	// typical of private and general aviation.
	PrivatePatterns []string `yaml:"private_patterns"`

	// HomeCountries is the operator's home region; registrations from
	// anywhere else earn the foreign bonus.
	HomeCountries []string `yaml:"home_countries"`
}

// DefaultConfig returns the stock configuration: aviationstack metered at
// 100 calls/month, adsbdb as the free fallback, and the pattern sets the
// tracker ships with.
func DefaultConfig() Config {
	return Config{
		MeteredProvider:  "aviationstack",
		FallbackProvider: "adsbdb",
		Providers: []ProviderConfig{
			{Name: "aviationstack", MonthlyLimit: 100},
			{Name: "adsbdb"},
		},
		PriorityAirlines: []string{
			"ACA", // Air Canada
			"WJA", "WEN", // WestJet
			"UAL", // United
			"DAL", // Delta
			"AAL", // American
			"ASA", // Alaska
			"JBU", // JetBlue
		},
		Rules: RuleConfig{
			MilitaryPatterns: []string{
				`^RCH\d+`,      // Reach (USAF)
				`^CNV\d+`,      // Convoy (USN)
				`^EVAC\d+`,     // Evacuation
				`^SPAR\d+`,     // Special Air Resources
				`^DUKE\d+`,     // Duke (VIP)
				`^VM\d+`,       // Marine aircraft
				`^NAVY\d+`,     // Navy aircraft
				`^ARMY\d+`,     // Army aircraft
				`^COAST\d+`,    // Coast Guard
				`^GUARD\d+`,    // Air National Guard
				`^CFC\d+`,      // Canadian Forces
				`^CANFORCE\d+`, // Canadian Forces
				`^RAF\d+`,      // Royal Air Force
				`^ASCOT\d+`,    // RAF transport
				`^RAFAIR\d+`,   // RAF
			},
			CargoAirlines: map[string]string{
				"FDX": "FedEx",
				"UPS": "UPS",
				"GTI": "Atlas Air",
				"ABX": "ABX Air",
				"ATN": "Air Transport International",
				"KFS": "Kalitta Air",
				"NCR": "National Airlines",
				"PAC": "Polar Air Cargo",
				"SWN": "Southern Air",
				"CKS": "Kalitta Charters",
				"WES": "Western Global",
				"CAO": "Air China Cargo",
				"CPA": "Cathay Pacific Cargo",
				"CLX": "Cargolux",
				"MPH": "Martinair Cargo",
			},
			// Registration-shaped callsigns: one letter then digits, as in
			// N12345 or C1234X. Callsign == registration is handled by the
			// scorer directly.
			PrivatePatterns: []string{
				`^[A-Z]\d+[A-Z]*$`,
			},
			HomeCountries: []string{"United States", "Canada"},
		},
	}
}

// LoadConfig reads and parses a YAML config file. Environment variables in
// the format ${VAR} are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("admission: read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("admission: parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the config for required fields and consistency. Malformed
// pattern sets and non-positive limits are startup errors, never coerced
// into permissive defaults.
func (c Config) Validate() error {
	if c.MeteredProvider == "" {
		return fmt.Errorf("admission: config: metered_provider is required")
	}

	names := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("admission: config: providers[%d]: name is required", i)
		}
		if names[p.Name] {
			return fmt.Errorf("admission: config: duplicate provider %q", p.Name)
		}
		names[p.Name] = true
		if p.MonthlyLimit < 0 {
			return fmt.Errorf("admission: config: provider %q: monthly_limit must be >= 0", p.Name)
		}
	}

	metered, ok := c.provider(c.MeteredProvider)
	if !ok {
		return fmt.Errorf("admission: config: metered_provider %q has no providers entry", c.MeteredProvider)
	}
	if metered.MonthlyLimit <= 0 {
		return fmt.Errorf("admission: config: metered_provider %q needs monthly_limit > 0", c.MeteredProvider)
	}
	if c.FallbackProvider != "" {
		if _, ok := c.provider(c.FallbackProvider); !ok {
			return fmt.Errorf("admission: config: fallback_provider %q has no providers entry", c.FallbackProvider)
		}
	}

	// Compiling the rules surfaces bad regexes eagerly.
	if _, err := CompileRules(c.Rules); err != nil {
		return err
	}

	return nil
}

func (c Config) provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// MeteredLimit returns the metered provider's monthly call quota.
func (c Config) MeteredLimit() int {
	p, _ := c.provider(c.MeteredProvider)
	return p.MonthlyLimit
}

// Limits returns the per-provider monthly limits, for seeding a ledger.
func (c Config) Limits() map[string]int {
	limits := make(map[string]int, len(c.Providers))
	for _, p := range c.Providers {
		if p.MonthlyLimit > 0 {
			limits[p.Name] = p.MonthlyLimit
		}
	}
	return limits
}
