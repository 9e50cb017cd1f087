package model

import (
	"math"
	"strconv"
)

// Product is the external, immutable catalogue record the Core Optimizer
// receives from its caller. It is never mutated once built.
type Product struct {
	ID            string
	Artikelnr     int
	Name          string
	PricePerKg    float64
	NutrientN     *float64 // percent, grams of nutrient per 100g of product
	NutrientP     *float64
	NutrientK     *float64
	NutrientS     *float64
	Active        bool
	IsOptimizable bool
}

// HasAnyNutrient reports whether at least one nutrient percentage is
// strictly positive, the invariant spec §3 requires of every product the
// core is willing to consider.
func (p Product) HasAnyNutrient() bool {
	for _, v := range []*float64{p.NutrientN, p.NutrientP, p.NutrientK, p.NutrientS} {
		if v != nil && *v > 0 {
			return true
		}
	}
	return false
}

// Eligible reports whether the product passes the preparation filter of
// spec §4.4.2: active, optimizable, priced, and nutrient-bearing.
func (p Product) Eligible() bool {
	return p.Active && p.IsOptimizable && p.PricePerKg > 0 && p.HasAnyNutrient()
}

// Scaling constants. All model coefficients live in the integer domain to
// eliminate binary floating-point cancellation in the solver. Scale and the
// conversions below use these three named constants; the Model Builder
// (target ×1000) and the optimizer's fast path (÷1000) repeat the target
// factor as a literal.
const (
	priceScale    = 100  // SEK/kg -> öre/kg
	nutrientScale = 10   // percent -> tenths of a percent
	targetScale   = 1000 // kg/ha -> grams (so dose*n10 lands in the same unit)
)

// ScaledProduct is the integer-scaled, internal counterpart of Product
// that the Model Builder and Core Optimizer operate on. It is derived once
// during preparation and never mutated.
type ScaledProduct struct {
	Product
	Index    int // position in the prepared product slice; matches x{Index}/y{Index}
	PriceOre int64
	N10      int64
	P10      int64
	K10      int64
	S10      int64
}

func scaleNutrient(pct *float64) int64 {
	if pct == nil {
		return 0
	}
	return int64(math.Round(*pct * nutrientScale))
}

// parseArtikelnr extracts the integer article number spec §3 says is
// "parsed from id": the digits contained in id, read as one base-10
// integer. Returns 0 if id contains no digits.
func parseArtikelnr(id string) int {
	digits := make([]byte, 0, len(id))
	for i := 0; i < len(id); i++ {
		if c := id[i]; c >= '0' && c <= '9' {
			digits = append(digits, c)
		}
	}
	if len(digits) == 0 {
		return 0
	}
	n, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0
	}
	return n
}

// Scale derives a ScaledProduct from a Product at the given index. If the
// caller did not already set Artikelnr, it is parsed from ID.
func Scale(p Product, index int) ScaledProduct {
	if p.Artikelnr == 0 {
		p.Artikelnr = parseArtikelnr(p.ID)
	}
	return ScaledProduct{
		Product:  p,
		Index:    index,
		PriceOre: int64(math.Round(p.PricePerKg * priceScale)),
		N10:      scaleNutrient(p.NutrientN),
		P10:      scaleNutrient(p.NutrientP),
		K10:      scaleNutrient(p.NutrientK),
		S10:      scaleNutrient(p.NutrientS),
	}
}

// PrepareCatalogue filters products to the eligible subset (spec §4.4.2)
// and scales the survivors, in the same relative order they were supplied
// in, so variable indices stay deterministic across calls.
func PrepareCatalogue(products []Product) []ScaledProduct {
	out := make([]ScaledProduct, 0, len(products))
	idx := 0
	for _, p := range products {
		if !p.Eligible() {
			continue
		}
		out = append(out, Scale(p, idx))
		idx++
	}
	return out
}

// NutrientKgFromUnits converts a scaled nutrient-unit total (dose_kg * n10,
// summed over selected products) back into kilograms of nutrient per
// hectare: Σ(dose × n10) / 1000.
func NutrientKgFromUnits(units int64) float64 {
	return float64(units) / targetScale
}

// CostSEKFromOre converts a scaled cost total (Σ price_ore · x) back into
// SEK per hectare.
func CostSEKFromOre(ore int64) float64 {
	return float64(ore) / priceScale
}
