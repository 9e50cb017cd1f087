// Package builder implements the Model Builder (spec §4.1): a pure
// function from (products, targets, activation flags, dose bounds,
// forcing, no-good cuts, tolerances) to a canonical MILP problem
// description in CPLEX LP text form, using integer scaling throughout so
// the Solver Worker never compares floating-point coefficients.
package builder

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/smilemakc/fertiplan/internal/model"
)

// Input is everything the Model Builder needs for one build. It mirrors
// spec §4.1's input list exactly.
type Input struct {
	Products        []model.ScaledProduct
	Targets         model.NutrientTarget
	Flags           model.ActivationFlags
	MaxProducts     int
	Dose            model.DoseBounds
	NToleranceKG    int
	NoGoodCuts      [][]int // each inner slice holds the indices selected in a prior strategy
	RequiredIndices []int
	Config          model.AlgorithmConfig
}

// Result is the canonical LP text plus the number of decision variable
// pairs it describes (x0..x(n-1), y0..y(n-1)).
type Result struct {
	LP      string
	NumVars int
}

// nutrientCoeffs returns, in the fixed product order, the scaled
// coefficient for one nutrient.
func nutrientCoeffs(products []model.ScaledProduct, nu model.Nutrient) []int64 {
	out := make([]int64, len(products))
	for i, p := range products {
		switch nu {
		case model.N:
			out[i] = p.N10
		case model.P:
			out[i] = p.P10
		case model.K:
			out[i] = p.K10
		case model.S:
			out[i] = p.S10
		}
	}
	return out
}

// Build produces the canonical LP text for one optimization round. It is
// a pure function: the same Input always yields byte-identical LP text.
func Build(in Input) Result {
	n := len(in.Products)
	var b strings.Builder

	writeObjective(&b, in.Products)

	b.WriteString("Subject To\n")
	cIdx := 0
	writeDoseCoupling(&b, in.Products, in.Dose, &cIdx)
	writeCardinality(&b, n, in.MaxProducts, &cIdx)
	writeForcedInclusions(&b, in.RequiredIndices, &cIdx)
	writeNitrogenBand(&b, in.Products, in.Targets, in.Flags, in.NToleranceKG, &cIdx)
	for _, nu := range []model.Nutrient{model.P, model.K, model.S} {
		writePKSBand(&b, in.Products, in.Targets, in.Flags, nu, in.Config, &cIdx)
	}
	writeNoGoodCuts(&b, in.NoGoodCuts, n, &cIdx)

	writeBounds(&b, in.Products, in.Dose)
	writeGeneral(&b, n)
	writeBinary(&b, n)
	b.WriteString("End\n")

	return Result{LP: b.String(), NumVars: n}
}

func writeObjective(b *strings.Builder, products []model.ScaledProduct) {
	b.WriteString("Minimize\n obj:")
	if len(products) == 0 {
		b.WriteString(" 0\n")
		return
	}
	for _, p := range products {
		fmt.Fprintf(b, " + %d x%d", p.PriceOre, p.Index)
	}
	b.WriteString("\n")
}

func writeDoseCoupling(b *strings.Builder, products []model.ScaledProduct, dose model.DoseBounds, cIdx *int) {
	for _, p := range products {
		fmt.Fprintf(b, " c%d: x%d - %d y%d >= 0\n", *cIdx, p.Index, dose.MinDose, p.Index)
		*cIdx++
		fmt.Fprintf(b, " c%d: x%d - %d y%d <= 0\n", *cIdx, p.Index, dose.MaxDose, p.Index)
		*cIdx++
	}
}

func writeCardinality(b *strings.Builder, n, maxProducts int, cIdx *int) {
	if n == 0 {
		return
	}
	fmt.Fprintf(b, " c%d:", *cIdx)
	for i := 0; i < n; i++ {
		fmt.Fprintf(b, " + y%d", i)
	}
	fmt.Fprintf(b, " <= %d\n", maxProducts)
	*cIdx++
}

func writeForcedInclusions(b *strings.Builder, required []int, cIdx *int) {
	sorted := append([]int(nil), required...)
	sort.Ints(sorted)
	for _, i := range sorted {
		fmt.Fprintf(b, " c%d: y%d = 1\n", *cIdx, i)
		*cIdx++
	}
}

func writeNitrogenBand(b *strings.Builder, products []model.ScaledProduct, targets model.NutrientTarget, flags model.ActivationFlags, nTol int, cIdx *int) {
	if !model.Active(model.N, flags, targets) {
		return
	}
	target := targets.Get(model.N)
	lowerRHS := round1000(target)
	upperRHS := round1000(target + float64(nTol))

	coeffs := nutrientCoeffs(products, model.N)
	writeLinearConstraint(b, coeffs, ">=", lowerRHS, cIdx)
	writeLinearConstraint(b, coeffs, "<=", upperRHS, cIdx)
}

func writePKSBand(b *strings.Builder, products []model.ScaledProduct, targets model.NutrientTarget, flags model.ActivationFlags, nu model.Nutrient, cfg model.AlgorithmConfig, cIdx *int) {
	if !model.Active(nu, flags, targets) {
		return
	}
	target := targets.Get(nu)
	lowerRHS := int64(math.Ceil(float64(cfg.PKSMinPct) / 100 * target * 1000))
	upperRHS := int64(math.Floor(float64(cfg.PKSMaxPct) / 100 * target * 1000))

	coeffs := nutrientCoeffs(products, nu)
	writeLinearConstraint(b, coeffs, ">=", lowerRHS, cIdx)
	writeLinearConstraint(b, coeffs, "<=", upperRHS, cIdx)
}

func writeLinearConstraint(b *strings.Builder, coeffs []int64, op string, rhs int64, cIdx *int) {
	fmt.Fprintf(b, " c%d:", *cIdx)
	any := false
	for i, c := range coeffs {
		if c == 0 {
			continue
		}
		fmt.Fprintf(b, " + %d x%d", c, i)
		any = true
	}
	if !any {
		b.WriteString(" + 0 x0")
	}
	fmt.Fprintf(b, " %s %d\n", op, rhs)
	*cIdx++
}

// writeNoGoodCuts forbids each previously-selected product set S exactly:
// Σ_{i∉S} y_i − Σ_{i∈S} y_i ≥ 1 − |S| (spec §4.1, constraint 6).
func writeNoGoodCuts(b *strings.Builder, cuts [][]int, n int, cIdx *int) {
	for _, cut := range cuts {
		if len(cut) == 0 {
			continue
		}
		selected := make(map[int]bool, len(cut))
		for _, i := range cut {
			selected[i] = true
		}
		fmt.Fprintf(b, " c%d:", *cIdx)
		for i := 0; i < n; i++ {
			if selected[i] {
				fmt.Fprintf(b, " - y%d", i)
			} else {
				fmt.Fprintf(b, " + y%d", i)
			}
		}
		fmt.Fprintf(b, " >= %d\n", 1-len(cut))
		*cIdx++
	}
}

func writeBounds(b *strings.Builder, products []model.ScaledProduct, dose model.DoseBounds) {
	b.WriteString("Bounds\n")
	for _, p := range products {
		fmt.Fprintf(b, " 0 <= x%d <= %d\n", p.Index, dose.MaxDose)
		fmt.Fprintf(b, " 0 <= y%d <= 1\n", p.Index)
	}
}

func writeGeneral(b *strings.Builder, n int) {
	if n == 0 {
		return
	}
	b.WriteString("General\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(b, " x%d\n", i)
	}
}

func writeBinary(b *strings.Builder, n int) {
	if n == 0 {
		return
	}
	b.WriteString("Binary\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(b, " y%d\n", i)
	}
}

func round1000(kg float64) int64 {
	return int64(math.Round(kg * 1000))
}
