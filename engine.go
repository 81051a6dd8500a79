package admission

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Engine turns flight candidates into routing decisions. It is the only
// caller of the quota ledger's increment path: all metered spend funnels
// through Evaluate.
type Engine struct {
	mu    sync.RWMutex
	cfg   Config
	rules *Ruleset

	ledger Ledger
	cache  *RouteCache
	meter  Meter
}

// Option configures an Engine.
type Option func(*Engine)

// WithLedger sets the quota ledger.
func WithLedger(l Ledger) Option {
	return func(e *Engine) { e.ledger = l }
}

// WithCache sets the route repetition cache.
func WithCache(c *RouteCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithMeter sets the meter.
func WithMeter(m Meter) Option {
	return func(e *Engine) { e.meter = m }
}

// NewEngine creates an Engine with the given config. Default components (an
// in-process ledger seeded with the config's limits, a fresh RouteCache, a
// no-op meter) are used unless overridden via options. The config is
// validated and its pattern sets compiled eagerly; bad configuration is an
// error here, never a silent default.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rules, err := CompileRules(cfg.Rules)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:   cfg,
		rules: rules,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.ledger == nil {
		e.ledger = NewMemoryLedger(cfg.Limits())
	}
	if e.cache == nil {
		e.cache = NewRouteCache()
	}
	if e.meter == nil {
		e.meter = noopMeter{}
	}

	return e, nil
}

// UpdateConfig swaps in new configuration between evaluations. Pattern sets
// and limits are data; operators tune them without redeploying.
func (e *Engine) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	rules, err := CompileRules(cfg.Rules)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.cfg = cfg
	e.rules = rules
	e.mu.Unlock()
	return nil
}

// Cache returns the engine's route repetition cache.
func (e *Engine) Cache() *RouteCache { return e.cache }

// Ledger returns the engine's quota ledger.
func (e *Engine) Ledger() Ledger { return e.ledger }

// Evaluate decides how to resolve one flight's route. It is a single fast
// synchronous decision: the only shared-state mutation is the ledger
// increment on a successful metered admission.
func (e *Engine) Evaluate(ctx context.Context, flight FlightCandidate) Decision {
	e.mu.RLock()
	cfg := e.cfg
	rules := e.rules
	e.mu.RUnlock()

	start := time.Now()
	d := Decision{
		ID:          uuid.New().String(),
		EvaluatedAt: start,
	}

	// Already answered for this exact flight instance: zero cost, no
	// scoring, the caller reuses the cached route.
	if key, ok := e.cache.ResolvedRouteFor(flight.ICAO24); ok {
		d.Outcome = Skip
		d.CachedRoute = key
		e.emit(flight, d, true, time.Since(start))
		return d
	}

	repetition := e.cache.Lookup(flight.RouteKey)
	d.Score = rules.Score(flight, repetition)

	remaining, err := e.ledger.Remaining(ctx, cfg.MeteredProvider)
	if err != nil {
		// Fail safe: a broken ledger reads as exhausted, never as open.
		remaining = 0
		d.LedgerErr = err
		e.meter.OnLedgerError(LedgerErrorEvent{
			DecisionID: d.ID,
			Provider:   cfg.MeteredProvider,
			Err:        err,
		})
	}
	d.Remaining = remaining
	d.Threshold = ThresholdFor(remaining)
	d.CarveOut = IsPriorityCarveOut(flight, remaining, cfg.PriorityAirlines)

	switch {
	case remaining == 0:
		e.fallback(cfg, &d)

	case d.CarveOut || d.Score.Total >= d.Threshold:
		ok, incErr := e.ledger.TryIncrement(ctx, cfg.MeteredProvider)
		if incErr != nil {
			d.LedgerErr = incErr
			e.meter.OnLedgerError(LedgerErrorEvent{
				DecisionID: d.ID,
				Provider:   cfg.MeteredProvider,
				Err:        incErr,
			})
			e.fallback(cfg, &d)
			break
		}
		if !ok {
			// A concurrent process consumed the last slot after our
			// remaining read. Not an error.
			d.RaceLost = true
			e.fallback(cfg, &d)
			break
		}
		d.Outcome = CallMetered
		d.Provider = cfg.MeteredProvider

	default:
		e.fallback(cfg, &d)
	}

	e.emit(flight, d, false, time.Since(start))
	return d
}

// RecordResolution is called by the owner of the provider call once a route
// has actually been fetched, so future evaluations can skip this flight and
// penalize the route as it grows common. flightID is the identifier Evaluate
// matches against, the transponder hex code.
func (e *Engine) RecordResolution(flightID string, key RouteKey) {
	e.cache.recordResolution(flightID, key)
}

func (e *Engine) fallback(cfg Config, d *Decision) {
	if cfg.FallbackProvider == "" {
		d.Outcome = Skip
		return
	}
	d.Outcome = CallFallback
	d.Provider = cfg.FallbackProvider
}

func (e *Engine) emit(flight FlightCandidate, d Decision, cached bool, dur time.Duration) {
	e.meter.OnDecision(DecisionEvent{
		DecisionID: d.ID,
		ICAO24:     flight.ICAO24,
		Callsign:   flight.Callsign,
		Outcome:    d.Outcome,
		Provider:   d.Provider,
		Score:      d.Score.Total,
		Reasons:    d.Score.Reasons,
		Threshold:  d.Threshold,
		Remaining:  d.Remaining,
		CarveOut:   d.CarveOut,
		RaceLost:   d.RaceLost,
		Cached:     cached,
		Duration:   dur,
	})
}

// noopMeter is the default meter when none is configured.
type noopMeter struct{}

func (noopMeter) OnDecision(DecisionEvent)       {}
func (noopMeter) OnLedgerError(LedgerErrorEvent) {}
