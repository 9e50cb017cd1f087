// Package optimizer implements the Core Optimizer (spec §4.4): the
// top-level recommendation algorithm that validates input, prepares the
// product catalogue, takes the single-nutrient fast path when it applies,
// otherwise escalates through N-tolerance and max-products widening via
// the Solver Pool, enumerates a cost-ranked podium of distinct product
// mixes with no-good cuts, and shapes the result.
package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smilemakc/fertiplan/internal/builder"
	"github.com/smilemakc/fertiplan/internal/journal"
	"github.com/smilemakc/fertiplan/internal/model"
	"github.com/smilemakc/fertiplan/internal/solver"
)

// Solver is the narrow capability the optimizer needs from the Solver
// Pool. *pool.Pool satisfies this directly; tests substitute an
// in-process fake so the MILP path can be exercised without spawning
// worker processes.
type Solver interface {
	Solve(ctx context.Context, lp string) (solver.Solution, *model.PoolError)
}

// Optimizer runs the Core Optimizer algorithm against a Solver.
type Optimizer struct {
	Pool    Solver
	Log     zerolog.Logger
	Journal journal.Journal // optional; nil means no recording
}

// New builds an Optimizer around the given solve capability. The returned
// Optimizer records nothing to a journal; set the Journal field directly
// to opt in.
func New(s Solver, log zerolog.Logger) *Optimizer {
	return &Optimizer{Pool: s, Log: log}
}

const maxPoolRetries = 2

// Optimize runs the full algorithm described in spec §4.4 against the raw
// product catalogue.
func (o *Optimizer) Optimize(ctx context.Context, products []model.Product, in model.OptimizeInput) model.OptimizeOutput {
	cfg := model.DefaultAlgorithmConfig()
	if in.Config != nil {
		cfg = *in.Config
	}
	deadline := time.Now().Add(cfg.Timeout())

	active := model.ActiveNutrients(in.Flags, in.Targets)
	if len(active) == 0 {
		return infeasible(model.ErrCodeValidationFailed, "at least one nutrient must be active")
	}
	dose := model.DoseBounds{MinDose: in.MinDose, MaxDose: in.MaxDose}
	if !dose.Valid() {
		return infeasible(model.ErrCodeValidationFailed, "min_dose must be positive and not exceed max_dose")
	}

	prepared := model.PrepareCatalogue(products)
	if len(prepared) == 0 {
		return infeasible(model.ErrCodeValidationFailed, "no eligible products in catalogue")
	}

	requiredIdx, dropped := resolveRequired(prepared, in.RequiredProductIDs)
	for _, id := range dropped {
		o.Log.Warn().Str("product_id", id).Msg("forced product id did not resolve to an eligible, active product; dropped")
	}
	if len(requiredIdx) > in.MaxProductsUser {
		return infeasible(model.ErrCodeValidationFailed, fmt.Sprintf("%d forced products exceed max_products_user=%d", len(requiredIdx), in.MaxProductsUser))
	}

	if len(active) == 1 && len(requiredIdx) == 0 {
		return o.fastPath(prepared, in.Targets, in.Flags, active[0], dose, cfg)
	}

	requestID := uuid.New()
	return o.milpPath(ctx, requestID, prepared, in, active, requiredIdx, dose, cfg, deadline)
}

func infeasible(code, msg string) model.OptimizeOutput {
	return model.OptimizeOutput{
		Status:      model.StatusInfeasible,
		Message:     msg,
		DomainError: model.NewDomainError(code, msg, nil),
	}
}

// resolveRequired maps caller-supplied product IDs onto indices in the
// prepared catalogue, dropping (and reporting) any that don't resolve.
func resolveRequired(prepared []model.ScaledProduct, ids []string) (indices []int, droppedIDs []string) {
	byID := make(map[string]int, len(prepared))
	for _, p := range prepared {
		byID[p.ID] = p.Index
	}
	for _, id := range ids {
		if idx, ok := byID[id]; ok {
			indices = append(indices, idx)
		} else {
			droppedIDs = append(droppedIDs, id)
		}
	}
	return indices, droppedIDs
}

// milpPath runs the two-level escalation (spec §4.4.4) followed by podium
// enumeration (spec §4.4.5).
func (o *Optimizer) milpPath(
	ctx context.Context,
	requestID uuid.UUID,
	prepared []model.ScaledProduct,
	in model.OptimizeInput,
	active []model.Nutrient,
	requiredIdx []int,
	dose model.DoseBounds,
	cfg model.AlgorithmConfig,
	deadline time.Time,
) model.OptimizeOutput {
	hardCap := cfg.HardCap()
	nActive := model.Active(model.N, in.Flags, in.Targets)

	minMP := in.MaxProductsUser
	if minMP > hardCap {
		minMP = hardCap
	}
	if minMP < 1 {
		minMP = 1
	}

	var baseline solver.Solution
	var usedNTol, usedMP int
	var lastPoolErr *model.PoolError
	deadlineHit := false
	found := false

	nTolRange := []int{cfg.NToleranceKG}
	if nActive {
		nTolRange = nil
		for n := cfg.NToleranceKG; n <= cfg.NMaxToleranceKG; n++ {
			nTolRange = append(nTolRange, n)
		}
	}

escalation:
	for _, nTol := range nTolRange {
		for mp := minMP; mp <= hardCap; mp++ {
			if time.Now().After(deadline) {
				deadlineHit = true
				break escalation
			}

			bin := builder.Input{
				Products:        prepared,
				Targets:         in.Targets,
				Flags:           in.Flags,
				MaxProducts:     mp,
				Dose:            dose,
				NToleranceKG:    nTol,
				RequiredIndices: requiredIdx,
				Config:          cfg,
			}
			res := builder.Build(bin)

			sol, perr := o.solveWithRetry(ctx, requestID, nTol, mp, res.LP, 0)
			if perr != nil {
				lastPoolErr = perr
				continue // exhausted retries for this (n_tol, mp); try the next one
			}
			if sol.Status == solver.StatusOptimal {
				baseline = sol
				usedNTol = nTol
				usedMP = mp
				found = true
				break escalation
			}
		}
	}

	if !found {
		switch {
		case deadlineHit:
			msg := fmt.Sprintf("global deadline of %s exceeded before a feasible strategy was found", cfg.Timeout())
			return model.OptimizeOutput{
				Status:      model.StatusInfeasible,
				Message:     msg,
				DomainError: model.NewDomainError(model.ErrCodeGlobalDeadline, msg, nil),
			}
		case lastPoolErr != nil:
			code := model.ErrCodeWorkerCrash
			if lastPoolErr.Kind == model.PoolErrorTimeout {
				code = model.ErrCodeSolveTimeout
			}
			msg := "solver pool exhausted retries for every (n_tolerance, max_products) combination tried"
			return model.OptimizeOutput{
				Status:      model.StatusInfeasible,
				Message:     msg,
				DomainError: model.NewDomainError(code, msg, lastPoolErr),
			}
		default:
			msg := fmt.Sprintf("no feasible strategy within hard_cap=%d", hardCap)
			if nActive {
				msg += fmt.Sprintf(" and n_max_tolerance_kg=%d", cfg.NMaxToleranceKG)
			}
			return infeasible(model.ErrCodeInfeasible, msg)
		}
	}

	strategies, synthesizedFromFewer := o.enumeratePodium(ctx, requestID, prepared, in, requiredIdx, dose, cfg, usedNTol, usedMP, baseline, deadline)
	if len(strategies) == 0 {
		return infeasible(model.ErrCodeInfeasible, "podium enumeration produced no strategies")
	}

	strategies = finalizeRanking(strategies, active, in.Targets)
	out := model.OptimizeOutput{
		Status:          model.StatusOK,
		UsedMaxProducts: usedMP,
		Strategies:      strategies,
		NToleranceUsed:  intPtr(usedNTol),
	}
	if synthesizedFromFewer {
		out.Message = "fewer than NUM_STRATEGIES distinct MILP solutions existed; supplemented with dose-variation candidates"
	}
	return out
}

// solveWithRetry submits lp to the pool, retrying up to maxPoolRetries
// times on a pool/transport error (as opposed to a legitimate Infeasible
// answer, which is returned immediately with perr == nil). Every attempt
// is recorded to o.Journal, if one is set, with cutsApplied describing how
// many no-good cuts were already folded into lp.
func (o *Optimizer) solveWithRetry(ctx context.Context, requestID uuid.UUID, nTol, maxProducts int, lp string, cutsApplied int) (solver.Solution, *model.PoolError) {
	var lastErr *model.PoolError
	for attempt := 0; attempt <= maxPoolRetries; attempt++ {
		start := time.Now()
		sol, perr := o.Pool.Solve(ctx, lp)
		status := string(sol.Status)
		if perr != nil {
			status = perr.Kind.String()
		}
		o.recordSolve(ctx, requestID, nTol, maxProducts, lp, status, time.Since(start), cutsApplied)

		if perr == nil {
			return sol, nil
		}
		lastErr = perr
		o.Log.Warn().Str("kind", perr.Kind.String()).Int("attempt", attempt).Msg("solver pool error; retrying")
	}
	return solver.Solution{}, lastErr
}

func (o *Optimizer) recordSolve(ctx context.Context, requestID uuid.UUID, nTol, maxProducts int, lp, status string, dur time.Duration, cutsApplied int) {
	if o.Journal == nil {
		return
	}
	if err := o.Journal.Record(ctx, journal.NewEntry(requestID, nTol, maxProducts, lp, status, dur, cutsApplied)); err != nil {
		o.Log.Warn().Err(err).Msg("failed to record journal entry")
	}
}

func intPtr(v int) *int { return &v }
