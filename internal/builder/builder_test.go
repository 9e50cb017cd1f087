package builder

import (
	"strings"
	"testing"

	"github.com/smilemakc/fertiplan/internal/model"
)

func f(v float64) *float64 { return &v }

func testProducts() []model.ScaledProduct {
	products := []model.Product{
		{ID: "p1", Name: "NPK 21-4-7", PricePerKg: 4.50, NutrientN: f(21), NutrientP: f(4), NutrientK: f(7), NutrientS: f(3), Active: true, IsOptimizable: true},
		{ID: "p2", Name: "NPK 27-3-3", PricePerKg: 4.00, NutrientN: f(27), NutrientP: f(3), NutrientK: f(3), NutrientS: f(2), Active: true, IsOptimizable: true},
	}
	return model.PrepareCatalogue(products)
}

func TestBuildContainsFixedSections(t *testing.T) {
	in := Input{
		Products:    testProducts(),
		Targets:     model.NutrientTarget{N: f(150), P: f(20)},
		Flags:       model.ActivationFlags{MustN: true, MustP: true},
		MaxProducts: 3,
		Dose:        model.DoseBounds{MinDose: 100, MaxDose: 600},
		NToleranceKG: 1,
		Config:      model.DefaultAlgorithmConfig(),
	}

	res := Build(in)

	for _, section := range []string{"Minimize", "Subject To", "Bounds", "General", "Binary", "End"} {
		if !strings.Contains(res.LP, section) {
			t.Fatalf("expected LP to contain section %q, got:\n%s", section, res.LP)
		}
	}
	if res.NumVars != 2 {
		t.Fatalf("expected 2 vars, got %d", res.NumVars)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	in := Input{
		Products:    testProducts(),
		Targets:     model.NutrientTarget{N: f(100)},
		Flags:       model.ActivationFlags{MustN: true},
		MaxProducts: 2,
		Dose:        model.DoseBounds{MinDose: 100, MaxDose: 400},
		NToleranceKG: 1,
		Config:      model.DefaultAlgorithmConfig(),
	}

	a := Build(in)
	b := Build(in)
	if a.LP != b.LP {
		t.Fatalf("expected identical LP text for identical input")
	}
}

func TestForcedInclusionEmitsEqualityConstraint(t *testing.T) {
	in := Input{
		Products:        testProducts(),
		Targets:         model.NutrientTarget{N: f(150)},
		Flags:           model.ActivationFlags{MustN: true},
		MaxProducts:     3,
		Dose:            model.DoseBounds{MinDose: 100, MaxDose: 600},
		NToleranceKG:    1,
		RequiredIndices: []int{0},
		Config:          model.DefaultAlgorithmConfig(),
	}

	res := Build(in)
	if !strings.Contains(res.LP, "y0 = 1") {
		t.Fatalf("expected forced-inclusion equality constraint for y0, got:\n%s", res.LP)
	}
}

func TestNoGoodCutForbidsExactSet(t *testing.T) {
	in := Input{
		Products:     testProducts(),
		Targets:      model.NutrientTarget{N: f(100)},
		Flags:        model.ActivationFlags{MustN: true},
		MaxProducts:  2,
		Dose:         model.DoseBounds{MinDose: 100, MaxDose: 400},
		NToleranceKG: 1,
		NoGoodCuts:   [][]int{{0}},
		Config:       model.DefaultAlgorithmConfig(),
	}

	res := Build(in)
	if !strings.Contains(res.LP, "- y0") || !strings.Contains(res.LP, "+ y1") {
		t.Fatalf("expected no-good cut referencing both y0 (selected) and y1 (not selected), got:\n%s", res.LP)
	}
}
