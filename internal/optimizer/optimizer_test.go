package optimizer

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/smilemakc/fertiplan/internal/model"
	"github.com/smilemakc/fertiplan/internal/solver"
)

// inProcessSolver solves LPs directly with the in-process MILP engine,
// letting these tests exercise the full optimizer algorithm without
// spawning a cmd/solverworker child process.
type inProcessSolver struct{}

func (inProcessSolver) Solve(ctx context.Context, lp string) (solver.Solution, *model.PoolError) {
	sol, err := solver.Solve(lp, time.Now().Add(5*time.Second))
	if err != nil {
		return solver.Solution{}, &model.PoolError{Kind: model.PoolErrorCrash, Message: err.Error()}
	}
	return sol, nil
}

func f(v float64) *float64 { return &v }

func scenarioProducts() []model.Product {
	return []model.Product{
		{ID: "p1", Name: "NPK 21-4-7", PricePerKg: 4.50, NutrientN: f(21), NutrientP: f(4), NutrientK: f(7), NutrientS: f(3), Active: true, IsOptimizable: true},
		{ID: "p2", Name: "NPK 27-3-3", PricePerKg: 4.00, NutrientN: f(27), NutrientP: f(3), NutrientK: f(3), NutrientS: f(2), Active: true, IsOptimizable: true},
		{ID: "p3", Name: "KAS 27N", PricePerKg: 3.50, NutrientN: f(27), Active: true, IsOptimizable: true},
		{ID: "p4", Name: "PK 11-21", PricePerKg: 5.00, NutrientP: f(11), NutrientK: f(21), Active: true, IsOptimizable: true},
		{ID: "p5", Name: "AS 21-24", PricePerKg: 3.00, NutrientN: f(21), NutrientS: f(24), Active: true, IsOptimizable: true},
	}
}

func newTestOptimizer() *Optimizer {
	return New(inProcessSolver{}, zerolog.Nop())
}

func TestScenarioB_SingleNutrientFastPath(t *testing.T) {
	o := newTestOptimizer()
	out := o.Optimize(context.Background(), scenarioProducts(), model.OptimizeInput{
		Targets:         model.NutrientTarget{N: f(100)},
		Flags:           model.ActivationFlags{MustN: true},
		MaxProductsUser: 3,
		MinDose:         100,
		MaxDose:         600,
	})

	if out.Status != model.StatusOK {
		t.Fatalf("expected ok, got %s: %s", out.Status, out.Message)
	}
	for _, s := range out.Strategies {
		if len(s.Items) != 1 {
			t.Fatalf("expected single-product strategies, got %d items", len(s.Items))
		}
	}
	for i := 1; i < len(out.Strategies); i++ {
		if out.Strategies[i].TotalCostSEKHa < out.Strategies[i-1].TotalCostSEKHa {
			t.Fatalf("strategies not sorted by ascending cost")
		}
	}
}

func TestScenarioC_EmptyCatalogue(t *testing.T) {
	o := newTestOptimizer()
	out := o.Optimize(context.Background(), nil, model.OptimizeInput{
		Targets:         model.NutrientTarget{N: f(100)},
		Flags:           model.ActivationFlags{MustN: true},
		MaxProductsUser: 3,
		MinDose:         100,
		MaxDose:         600,
	})
	if out.Status != model.StatusInfeasible {
		t.Fatalf("expected infeasible for empty catalogue, got %s", out.Status)
	}
	if out.DomainError == nil || out.DomainError.Code != model.ErrCodeValidationFailed {
		t.Fatalf("expected a %s DomainError, got %+v", model.ErrCodeValidationFailed, out.DomainError)
	}
}

func TestScenarioD_ForcedProduct(t *testing.T) {
	o := newTestOptimizer()
	out := o.Optimize(context.Background(), scenarioProducts(), model.OptimizeInput{
		Targets:            model.NutrientTarget{N: f(150), P: f(25), K: f(40), S: f(15)},
		Flags:              model.ActivationFlags{MustN: true, MustP: true, MustK: true, MustS: true},
		MaxProductsUser:    3,
		MinDose:            100,
		MaxDose:            600,
		RequiredProductIDs: []string{"p1"},
	})

	if out.Status != model.StatusOK {
		t.Fatalf("expected ok, got %s: %s", out.Status, out.Message)
	}
	for _, s := range out.Strategies {
		found := false
		for _, it := range s.Items {
			if it.Product.ID == "p1" {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected every strategy to contain the forced product p1")
		}
	}
}

func TestScenarioE_NExactnessBand(t *testing.T) {
	o := newTestOptimizer()
	cfg := model.DefaultAlgorithmConfig()
	out := o.Optimize(context.Background(), scenarioProducts(), model.OptimizeInput{
		Targets:         model.NutrientTarget{N: f(150)},
		Flags:           model.ActivationFlags{MustN: true},
		MaxProductsUser: 3,
		MinDose:         100,
		MaxDose:         600,
		Config:          &cfg,
	})

	// With N as the only active nutrient and no forced products, the
	// optimizer takes the fast path, whose achieved N must still land in
	// [target, target+n_tolerance].
	if out.Status != model.StatusOK {
		t.Fatalf("expected ok, got %s: %s", out.Status, out.Message)
	}
	for _, s := range out.Strategies {
		if s.Achieved.N < 150 || s.Achieved.N > 151 {
			t.Fatalf("achieved N %.3f outside [150,151]", s.Achieved.N)
		}
	}
}

func TestScenarioF_PKSBand(t *testing.T) {
	o := newTestOptimizer()
	cfg := model.DefaultAlgorithmConfig()
	cfg.PKSMinPct = 85
	cfg.PKSMaxPct = 125
	out := o.Optimize(context.Background(), scenarioProducts(), model.OptimizeInput{
		Targets:         model.NutrientTarget{N: f(100), P: f(20), K: f(30)},
		Flags:           model.ActivationFlags{MustN: true, MustP: true, MustK: true},
		MaxProductsUser: 3,
		MinDose:         100,
		MaxDose:         600,
		Config:          &cfg,
	})

	if out.Status != model.StatusOK {
		t.Fatalf("expected ok, got %s: %s", out.Status, out.Message)
	}
	for _, s := range out.Strategies {
		if s.Achieved.P < 17 || s.Achieved.P > 25 {
			t.Fatalf("achieved P %.3f outside [17,25]", s.Achieved.P)
		}
		if s.Achieved.K < 25.5 || s.Achieved.K > 37.5 {
			t.Fatalf("achieved K %.3f outside [25.5,37.5]", s.Achieved.K)
		}
	}
}

func TestNoTwoStrategiesShareProductSet(t *testing.T) {
	o := newTestOptimizer()
	out := o.Optimize(context.Background(), scenarioProducts(), model.OptimizeInput{
		Targets:         model.NutrientTarget{N: f(150), P: f(20), K: f(30), S: f(10)},
		Flags:           model.ActivationFlags{MustN: true, MustP: true, MustK: true, MustS: true},
		MaxProductsUser: 3,
		MinDose:         100,
		MaxDose:         600,
	})
	if out.Status != model.StatusOK {
		t.Fatalf("expected ok, got %s: %s", out.Status, out.Message)
	}
	seen := map[string]bool{}
	for _, s := range out.Strategies {
		sig := strategySignature(s)
		if seen[sig] {
			t.Fatalf("duplicate product set across strategies: %s", sig)
		}
		seen[sig] = true
	}
}
