package optimizer

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/smilemakc/fertiplan/internal/builder"
	"github.com/smilemakc/fertiplan/internal/model"
	"github.com/smilemakc/fertiplan/internal/solver"
)

// doseFallbackFactors are the multiplicative dose-variation factors spec
// §4.4.5 names as an example; kept as the literal set since the spec
// leaves the exact choice open but gives this set as illustrative.
var doseFallbackFactors = []float64{1.05, 0.95, 1.10, 0.90}

// minAchievedFraction is the dose-variation fallback's feasibility floor:
// a variant must still reach at least this fraction of every active
// nutrient's target to be offered.
const minAchievedFraction = 0.85

// enumeratePodium runs the no-good-cut podium (spec §4.4.5) starting from
// baseline, then tops up with synthetic dose-variation candidates if fewer
// than NumStrategies distinct MILP solutions exist.
func (o *Optimizer) enumeratePodium(
	ctx context.Context,
	requestID uuid.UUID,
	prepared []model.ScaledProduct,
	in model.OptimizeInput,
	requiredIdx []int,
	dose model.DoseBounds,
	cfg model.AlgorithmConfig,
	nTol, mp int,
	baseline solver.Solution,
	deadline time.Time,
) (strategies []model.Strategy, usedFallback bool) {
	var cuts [][]int
	cur := baseline

	for len(strategies) < cfg.NumStrategies {
		doses := dosesFromSolution(cur.Values)
		strategies = append(strategies, buildStrategy(prepared, doses, in.Targets, in.Flags, cfg, nTol, false))

		if len(strategies) >= cfg.NumStrategies {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		cuts = append(cuts, selectedIndices(cur.Values))

		bin := builder.Input{
			Products:        prepared,
			Targets:         in.Targets,
			Flags:           in.Flags,
			MaxProducts:     mp,
			Dose:            dose,
			NToleranceKG:    nTol,
			NoGoodCuts:      cuts,
			RequiredIndices: requiredIdx,
			Config:          cfg,
		}
		res := builder.Build(bin)
		next, perr := o.solveWithRetry(ctx, requestID, nTol, mp, res.LP, len(cuts))
		if perr != nil || next.Status != solver.StatusOptimal {
			break
		}
		cur = next
	}

	if len(strategies) < cfg.NumStrategies && len(strategies) > 0 {
		extras := synthesizeFallback(prepared, strategies, in.Targets, in.Flags, dose, cfg, nTol, cfg.NumStrategies-len(strategies))
		if len(extras) > 0 {
			strategies = append(strategies, extras...)
			usedFallback = true
		}
	}

	return strategies, usedFallback
}

// synthesizeFallback scales the cheapest baseline strategy's doses by each
// of doseFallbackFactors, keeping only variants that remain within dose
// bounds, still clear minAchievedFraction of every active nutrient's
// target, and whose product set differs from every strategy already
// produced.
func synthesizeFallback(
	prepared []model.ScaledProduct,
	existing []model.Strategy,
	targets model.NutrientTarget,
	flags model.ActivationFlags,
	bounds model.DoseBounds,
	cfg model.AlgorithmConfig,
	nTol, want int,
) []model.Strategy {
	if len(existing) == 0 || want <= 0 {
		return nil
	}
	base := existing[0]
	active := model.ActiveNutrients(flags, targets)

	seen := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		seen[strategySignature(s)] = struct{}{}
	}

	var out []model.Strategy
	for _, factor := range doseFallbackFactors {
		if len(out) >= want {
			break
		}
		var doses []dose
		for _, item := range base.Items {
			scaled := int(math.Round(float64(item.DoseKgHa) * factor))
			if scaled < bounds.MinDose {
				scaled = bounds.MinDose
			}
			if scaled > bounds.MaxDose {
				scaled = bounds.MaxDose
			}
			doses = append(doses, dose{index: item.Product.Index, kgHa: scaled})
		}

		candidate := buildStrategy(prepared, doses, targets, flags, cfg, nTol, true)
		if _, dup := seen[strategySignature(candidate)]; dup {
			continue
		}
		if !meetsFloor(candidate, active, targets) {
			continue
		}
		seen[strategySignature(candidate)] = struct{}{}
		out = append(out, candidate)
	}

	return out
}

func meetsFloor(s model.Strategy, active []model.Nutrient, targets model.NutrientTarget) bool {
	for _, nu := range active {
		target := targets.Get(nu)
		if target == 0 {
			continue
		}
		if s.Achieved.Get(nu)/target < minAchievedFraction {
			return false
		}
	}
	return true
}

func strategySignature(s model.Strategy) string {
	sig := ""
	for _, it := range s.Items {
		sig += it.Product.ID + ","
	}
	return sig
}
