package model

import "time"

// AlgorithmConfig is the immutable, opaque snapshot of tunable numeric
// parameters the Core Optimizer reads. It is supplied per call and the
// core never mutates it, never re-reads it mid-call, and never assumes
// any field beyond those listed here (spec §4.6).
type AlgorithmConfig struct {
	NToleranceKG        int
	NMaxToleranceKG      int
	PKSMinPct           int
	PKSMaxPct           int
	HighLevelThreshold  int
	MaxProductsHard     int
	NumStrategies       int
	TimeoutMS           int

	// InlineFallbackThreshold is a consecutive-pool-error count for the
	// optional inline-fallback path described in spec §4.3 and
	// SPEC_FULL.md. Nothing in the core reads it: the Solver Pool trips
	// that path from its own pool.Config.InlineFallbackThresh.
	InlineFallbackThreshold int
}

// DefaultAlgorithmConfig returns the configuration defaults from spec §3,
// table of recognized options.
func DefaultAlgorithmConfig() AlgorithmConfig {
	return AlgorithmConfig{
		NToleranceKG:            1,
		NMaxToleranceKG:         5,
		PKSMinPct:               90,
		PKSMaxPct:               150,
		HighLevelThreshold:      151,
		MaxProductsHard:         5,
		NumStrategies:           3,
		TimeoutMS:               30000,
		InlineFallbackThreshold: 1 << 30,
	}
}

// AlgorithmConfigOverrides carries the subset of fields a caller wants to
// override; a zero value for any field means "use the default". It is a
// plain standard-library builder (SPEC_FULL.md, "Configuration"), not a
// copy of a teacher pattern, so a partial config can never silently zero
// out a field the caller didn't mention.
type AlgorithmConfigOverrides struct {
	NToleranceKG            *int
	NMaxToleranceKG         *int
	PKSMinPct               *int
	PKSMaxPct               *int
	HighLevelThreshold      *int
	MaxProductsHard         *int
	NumStrategies           *int
	TimeoutMS               *int
	InlineFallbackThreshold *int
}

// WithOverrides returns a fully populated, immutable AlgorithmConfig
// built from the receiver (normally DefaultAlgorithmConfig()) with the
// given overrides merged in. The receiver is never mutated.
func (c AlgorithmConfig) WithOverrides(o AlgorithmConfigOverrides) AlgorithmConfig {
	out := c
	if o.NToleranceKG != nil {
		out.NToleranceKG = *o.NToleranceKG
	}
	if o.NMaxToleranceKG != nil {
		out.NMaxToleranceKG = *o.NMaxToleranceKG
	}
	if o.PKSMinPct != nil {
		out.PKSMinPct = *o.PKSMinPct
	}
	if o.PKSMaxPct != nil {
		out.PKSMaxPct = *o.PKSMaxPct
	}
	if o.HighLevelThreshold != nil {
		out.HighLevelThreshold = *o.HighLevelThreshold
	}
	if o.MaxProductsHard != nil {
		out.MaxProductsHard = *o.MaxProductsHard
	}
	if o.NumStrategies != nil {
		out.NumStrategies = *o.NumStrategies
	}
	if o.TimeoutMS != nil {
		out.TimeoutMS = *o.TimeoutMS
	}
	if o.InlineFallbackThreshold != nil {
		out.InlineFallbackThreshold = *o.InlineFallbackThreshold
	}
	return out
}

// Timeout returns TimeoutMS as a time.Duration.
func (c AlgorithmConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// HardCap returns the effective per-strategy product cardinality cap:
// min(4, MAX_PRODUCTS_HARD), per spec §4.4.4.
func (c AlgorithmConfig) HardCap() int {
	if c.MaxProductsHard < 4 {
		return c.MaxProductsHard
	}
	return 4
}
