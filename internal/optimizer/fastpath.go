package optimizer

import (
	"math"
	"sort"

	"github.com/smilemakc/fertiplan/internal/model"
)

// fastPath implements spec §4.4.3: when exactly one nutrient is active and
// no products are forced, each candidate product's optimal dose is a
// closed-form 1-D computation, so the MILP path is skipped entirely.
func (o *Optimizer) fastPath(
	prepared []model.ScaledProduct,
	targets model.NutrientTarget,
	flags model.ActivationFlags,
	nu model.Nutrient,
	bounds model.DoseBounds,
	cfg model.AlgorithmConfig,
) model.OptimizeOutput {
	target := targets.Get(nu)

	type candidate struct {
		strategy  model.Strategy
		deviation float64
	}
	var candidates []candidate

	for _, p := range prepared {
		frac := nutrientFraction10(p, nu)
		if frac <= 0 {
			continue
		}

		lower, upper := bandFor(nu, target, cfg)
		loDose := int(math.Ceil(lower / frac))
		hiDose := int(math.Floor(upper / frac))
		if loDose < bounds.MinDose {
			loDose = bounds.MinDose
		}
		if hiDose > bounds.MaxDose {
			hiDose = bounds.MaxDose
		}
		if loDose > hiDose {
			continue // infeasible for this product
		}

		bestDose, bestDev := 0, math.Inf(1)
		for d := loDose; d <= hiDose; d++ {
			achieved := frac * float64(d)
			dev := math.Abs(achieved/target - 1)
			if dev < bestDev-1e-12 || (dev < bestDev+1e-12 && d < bestDose) {
				bestDev = dev
				bestDose = d
			}
		}

		strat := buildStrategy(prepared, []dose{{index: p.Index, kgHa: bestDose}}, targets, flags, cfg, cfg.NToleranceKG, false)
		candidates = append(candidates, candidate{strategy: strat, deviation: bestDev})
	}

	if len(candidates) == 0 {
		return infeasible(model.ErrCodeInfeasible, "no single product can reach the target within dose bounds")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].strategy.TotalCostSEKHa != candidates[j].strategy.TotalCostSEKHa {
			return candidates[i].strategy.TotalCostSEKHa < candidates[j].strategy.TotalCostSEKHa
		}
		return candidates[i].deviation < candidates[j].deviation
	})

	n := cfg.NumStrategies
	if n > len(candidates) {
		n = len(candidates)
	}
	strategies := make([]model.Strategy, n)
	for i := 0; i < n; i++ {
		candidates[i].strategy.Rank = i + 1
		strategies[i] = candidates[i].strategy
	}

	return model.OptimizeOutput{
		Status:          model.StatusOK,
		UsedMaxProducts: 1,
		Strategies:      strategies,
	}
}

// nutrientFraction10 returns kg of nutrient delivered per kg/ha of dose,
// i.e. n10/1000 (the same scaling the solver works in, kept in float64
// here since the fast path never needs integer LP coefficients).
func nutrientFraction10(p model.ScaledProduct, nu model.Nutrient) float64 {
	var n10 int64
	switch nu {
	case model.N:
		n10 = p.N10
	case model.P:
		n10 = p.P10
	case model.K:
		n10 = p.K10
	case model.S:
		n10 = p.S10
	}
	return float64(n10) / 1000
}

// bandFor returns the (lower, upper) achieved-nutrient band in kg/ha a
// dose must land within, per spec §4.4.3: target..target+n_tol for N,
// PKS_MIN_PCT/100·target..PKS_MAX_PCT/100·target for P/K/S.
func bandFor(nu model.Nutrient, target float64, cfg model.AlgorithmConfig) (lower, upper float64) {
	if nu == model.N {
		return target, target + float64(cfg.NToleranceKG)
	}
	return float64(cfg.PKSMinPct) / 100 * target, float64(cfg.PKSMaxPct) / 100 * target
}
