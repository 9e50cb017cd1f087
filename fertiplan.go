// Package fertiplan is the Engine Façade (spec §4.5): a thin adapter
// translating the system-facing request shape — a "need" vector, a set
// of required nutrients, and call options — into the Core Optimizer's
// input, and translating its output back into the system-facing
// Solution shape an API layer would serialize.
package fertiplan

import (
	"context"
	"fmt"

	"github.com/smilemakc/fertiplan/internal/model"
	"github.com/smilemakc/fertiplan/internal/optimizer"
)

// Need is the caller's nutrient target vector, keyed by nutrient code
// ("N", "P", "K", "S").
type Need map[string]float64

// RequiredNutrients is the subset of nutrient codes the caller wants
// treated as active (the `must*` flags), independent of which nutrients
// happen to have a nonzero Need entry.
type RequiredNutrients []string

// Options carries the remaining per-call knobs spec §4.5 lists: a
// max_products cap, dose bounds, an optional config snapshot override,
// and optional forced product IDs.
type Options struct {
	MaxProducts        int
	MinDoseKgHa        int
	MaxDoseKgHa        int
	Config             *model.AlgorithmConfig
	RequiredProductIDs []string
}

// SolutionItem is one (product, dose, cost) line within a Solution.
type SolutionItem struct {
	ProductID   string
	Artikelnr   int
	ProductName string
	DoseKgHa    int
	CostSEKHa   float64
}

// Deviation reports, for one nutrient, how far the achieved amount sits
// from target in both absolute (kg/ha) and relative (percent) terms.
type Deviation struct {
	Nutrient string
	KG       float64
	Percent  *float64 // nil when target is zero, mirroring PercentOfTarget
}

// Solution is the system-facing shape of one ranked strategy.
type Solution struct {
	Rank      int
	Products  []SolutionItem
	Supplied  map[string]float64 // achieved kg/ha per nutrient code
	Deviation []Deviation
	CostPerHa float64
	Score     float64 // always equal to CostPerHa, per spec §4.5
	Notes     []string
}

// nutrientMinBearingProducts is the fallback threshold from spec §4.5:
// fewer than this many nutrient-bearing products in the filtered set
// means the unfiltered catalogue is passed in instead.
const nutrientMinBearingProducts = 5

// Engine runs recommend() against a Core Optimizer.
type Engine struct {
	Optimizer *optimizer.Optimizer
}

// New builds an Engine around an already-constructed Optimizer (itself
// backed by a Solver Pool or an in-process fake, in tests).
func New(o *optimizer.Optimizer) *Engine {
	return &Engine{Optimizer: o}
}

// Recommend implements spec §4.5's `recommend(need, products, options) ->
// [Solution]`. required supplies the "set of required nutrients" treated
// as the must* flags. On a non-OK result it returns a nil slice and the
// Core Optimizer's structured DomainError explaining why.
func (e *Engine) Recommend(ctx context.Context, need Need, required RequiredNutrients, products []model.Product, opts Options) ([]Solution, *model.DomainError) {
	targets, flags := buildTargetsAndFlags(need, required)

	filtered := filterNutrientBearing(products)
	if len(filtered) < nutrientMinBearingProducts {
		filtered = products
	}

	in := model.OptimizeInput{
		Targets:            targets,
		Flags:              flags,
		MaxProductsUser:    opts.MaxProducts,
		MinDose:            opts.MinDoseKgHa,
		MaxDose:            opts.MaxDoseKgHa,
		Config:             opts.Config,
		RequiredProductIDs: opts.RequiredProductIDs,
	}

	out := e.Optimizer.Optimize(ctx, filtered, in)
	if out.Status != model.StatusOK {
		return nil, out.DomainError
	}

	solutions := make([]Solution, len(out.Strategies))
	for i, s := range out.Strategies {
		solutions[i] = toSolution(s, targets)
	}
	return solutions, nil
}

func buildTargetsAndFlags(need Need, required RequiredNutrients) (model.NutrientTarget, model.ActivationFlags) {
	var targets model.NutrientTarget
	for code, v := range need {
		nu, ok := nutrientFromCode(code)
		if !ok {
			continue
		}
		val := v
		targets.Set(nu, &val)
	}

	var flags model.ActivationFlags
	for _, code := range required {
		nu, ok := nutrientFromCode(code)
		if !ok {
			continue
		}
		flags.Set(nu, true)
	}
	return targets, flags
}

func nutrientFromCode(code string) (model.Nutrient, bool) {
	switch code {
	case "N":
		return model.N, true
	case "P":
		return model.P, true
	case "K":
		return model.K, true
	case "S":
		return model.S, true
	default:
		return 0, false
	}
}

// filterNutrientBearing drops products with no positive nutrient
// percentage, matching spec §4.5's "filter out products with no nutrient
// content before calling".
func filterNutrientBearing(products []model.Product) []model.Product {
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if p.HasAnyNutrient() {
			out = append(out, p)
		}
	}
	return out
}

func toSolution(s model.Strategy, targets model.NutrientTarget) Solution {
	items := make([]SolutionItem, len(s.Items))
	for i, it := range s.Items {
		items[i] = SolutionItem{
			ProductID:   it.Product.ID,
			Artikelnr:   it.Product.Artikelnr,
			ProductName: it.Product.Name,
			DoseKgHa:    it.DoseKgHa,
			CostSEKHa:   it.CostSEKHa,
		}
	}

	supplied := map[string]float64{
		"N": s.Achieved.N,
		"P": s.Achieved.P,
		"K": s.Achieved.K,
		"S": s.Achieved.S,
	}

	deviation := make([]Deviation, 0, len(model.Nutrients))
	for _, nu := range model.Nutrients {
		target := targets.Get(nu)
		achieved := s.Achieved.Get(nu)
		dev := Deviation{Nutrient: nu.String(), KG: achieved - target}
		if target > 0 {
			pct := (achieved/target - 1) * 100
			dev.Percent = &pct
		}
		deviation = append(deviation, dev)
	}

	notes := make([]string, 0, len(s.Warnings)+1)
	for _, w := range s.Warnings {
		notes = append(notes, fmt.Sprintf("%s: %s at %.0f%% of target (%.2f kg/ha)", w.Nutrient, w.Type, w.Ratio*100, w.ValueKgHa))
	}
	if s.NToleranceUsed > 1 {
		notes = append(notes, fmt.Sprintf("N-tolerance used: +%d", s.NToleranceUsed))
	}

	return Solution{
		Rank:      s.Rank,
		Products:  items,
		Supplied:  supplied,
		Deviation: deviation,
		CostPerHa: s.TotalCostSEKHa,
		Score:     s.TotalCostSEKHa,
		Notes:     notes,
	}
}
