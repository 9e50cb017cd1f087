package optimizer

import (
	"math"
	"sort"

	"github.com/smilemakc/fertiplan/internal/model"
)

// dose is one (product index, integer kg/ha) pair, the common currency
// between solver columns, the fast path, and the dose-variation fallback.
type dose struct {
	index int
	kgHa  int
}

// buildStrategy turns a set of doses into a fully shaped Strategy,
// computing achieved nutrients, percent of target, cost, and warnings
// exactly as spec §4.4.6 defines them.
func buildStrategy(prepared []model.ScaledProduct, doses []dose, targets model.NutrientTarget, flags model.ActivationFlags, cfg model.AlgorithmConfig, nTol int, synthetic bool) model.Strategy {
	byIndex := make(map[int]model.ScaledProduct, len(prepared))
	for _, p := range prepared {
		byIndex[p.Index] = p
	}

	var items []model.StrategyItem
	var achievedUnits [4]int64 // N,P,K,S in tenths-of-percent*kg units
	var costOre int64

	for _, d := range doses {
		p := byIndex[d.index]
		costOre += p.PriceOre * int64(d.kgHa)
		achievedUnits[model.N] += p.N10 * int64(d.kgHa)
		achievedUnits[model.P] += p.P10 * int64(d.kgHa)
		achievedUnits[model.K] += p.K10 * int64(d.kgHa)
		achievedUnits[model.S] += p.S10 * int64(d.kgHa)
		items = append(items, model.StrategyItem{
			Product:   p,
			DoseKgHa:  d.kgHa,
			CostSEKHa: round2(model.CostSEKFromOre(p.PriceOre * int64(d.kgHa))),
		})
	}

	var achieved model.NutrientTotals
	var pct model.PercentOfTarget
	var warnings []model.Warning
	for _, nu := range model.Nutrients {
		a := round2(model.NutrientKgFromUnits(achievedUnits[nu]))
		achieved.Set(nu, a)

		target := targets.Get(nu)
		if target == 0 {
			pct.Set(nu, nil)
			continue
		}
		p := math.Round(a/target*1000) / 10
		pct.Set(nu, &p)

		if !model.Active(nu, flags, targets) && target > 0 {
			ratio := a / target
			if ratio > float64(cfg.HighLevelThreshold)/100 {
				warnings = append(warnings, model.Warning{
					Nutrient:     nu,
					Type:         model.HighLevelWarning,
					ThresholdPct: cfg.HighLevelThreshold,
					ValueKgHa:    a,
					Ratio:        round2(ratio),
				})
			}
		}
	}

	return model.Strategy{
		Items:          items,
		Achieved:       achieved,
		PercentOfTarget: pct,
		TotalCostSEKHa: round2(model.CostSEKFromOre(costOre)),
		Warnings:       warnings,
		NToleranceUsed: nTol,
		Synthetic:      synthetic,
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func dosesFromSolution(values map[string]int64) []dose {
	var out []dose
	for name, v := range values {
		if len(name) < 2 || name[0] != 'x' || v <= 0 {
			continue
		}
		idx, ok := parseVarIndex(name[1:])
		if !ok {
			continue
		}
		out = append(out, dose{index: idx, kgHa: int(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

func parseVarIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func selectedIndices(values map[string]int64) []int {
	var out []int
	for name, v := range values {
		if len(name) < 2 || name[0] != 'y' || v == 0 {
			continue
		}
		idx, ok := parseVarIndex(name[1:])
		if !ok {
			continue
		}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// finalizeRanking applies the final sort (spec §4.4.6): cost ascending,
// then summed absolute relative deviation across active nutrients
// ascending, then product count ascending. Synthetic (dose-variation)
// strategies are ranked among themselves the same way but never placed
// ahead of any true MILP strategy.
func finalizeRanking(strategies []model.Strategy, active []model.Nutrient, targets model.NutrientTarget) []model.Strategy {
	less := func(a, b model.Strategy) bool {
		if a.TotalCostSEKHa != b.TotalCostSEKHa {
			return a.TotalCostSEKHa < b.TotalCostSEKHa
		}
		da, db := summedDeviation(a, active, targets), summedDeviation(b, active, targets)
		if da != db {
			return da < db
		}
		return len(a.Items) < len(b.Items)
	}

	var real, synth []model.Strategy
	for _, s := range strategies {
		if s.Synthetic {
			synth = append(synth, s)
		} else {
			real = append(real, s)
		}
	}
	sort.SliceStable(real, func(i, j int) bool { return less(real[i], real[j]) })
	sort.SliceStable(synth, func(i, j int) bool { return less(synth[i], synth[j]) })

	out := append(real, synth...)
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func summedDeviation(s model.Strategy, active []model.Nutrient, targets model.NutrientTarget) float64 {
	total := 0.0
	for _, nu := range active {
		target := targets.Get(nu)
		if target == 0 {
			continue
		}
		total += math.Abs(s.Achieved.Get(nu)/target - 1)
	}
	return total
}
