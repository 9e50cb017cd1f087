package solver

import (
	"math"
	"time"
)

const integerTol = 1e-5

// node is one branch-and-bound subproblem: the root's variable bounds with
// zero or more variables further tightened by prior branching decisions.
type node struct {
	lower, upper []float64
}

// SolveMILP runs branch-and-bound on p's LP relaxation, enforcing
// integrality on every variable marked Integer (General and Binary
// sections both set this). It stops and reports infeasible if deadline
// passes before a feasible integer solution is found, matching the
// Solver Worker's per-request timeout contract (spec §4.2): a timeout
// looks identical to genuine infeasibility from the caller's side, the
// distinction is carried separately by the Solver Pool as a PoolError.
func SolveMILP(p *Problem, deadline time.Time) Solution {
	n := p.NumVars()
	root := node{lower: make([]float64, n), upper: append([]float64(nil), p.Upper...)}

	best := relaxResult{feasible: false}
	bestObj := math.Inf(1)

	stack := []node{root}
	for len(stack) > 0 {
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		rr := solveRelaxation(p, cur.lower, cur.upper)
		if !rr.feasible {
			continue
		}
		if rr.obj >= bestObj-simplexEps {
			continue // bound: can't possibly beat the incumbent
		}

		branchVar, branchVal, isInt := firstFractional(p, rr.x)
		if isInt {
			best = rr
			bestObj = rr.obj
			continue
		}

		floorBound := math.Floor(branchVal)
		ceilBound := math.Ceil(branchVal)

		leftUpper := append([]float64(nil), cur.upper...)
		leftUpper[branchVar] = math.Min(leftUpper[branchVar], floorBound)
		if leftUpper[branchVar] >= cur.lower[branchVar]-simplexEps {
			stack = append(stack, node{lower: cur.lower, upper: leftUpper})
		}

		rightLower := append([]float64(nil), cur.lower...)
		rightLower[branchVar] = math.Max(rightLower[branchVar], ceilBound)
		if rightLower[branchVar] <= cur.upper[branchVar]+simplexEps {
			stack = append(stack, node{lower: rightLower, upper: cur.upper})
		}
	}

	if !best.feasible {
		return Solution{Status: StatusInfeasible}
	}

	values := make(map[string]int64, n)
	for j, name := range p.VarNames {
		values[name] = int64(math.Round(best.x[j]))
	}
	return Solution{Status: StatusOptimal, Objective: best.obj, Values: values}
}

// firstFractional returns the first integer-constrained variable whose
// relaxed value isn't within integerTol of an integer, used as the
// branching variable. Picking the first (rather than most-fractional)
// keeps branching deterministic, which keeps Solve reproducible across
// identical inputs.
func firstFractional(p *Problem, x []float64) (idx int, val float64, allInt bool) {
	for j, isInt := range p.Integer {
		if !isInt {
			continue
		}
		frac := x[j] - math.Floor(x[j])
		if frac > integerTol && frac < 1-integerTol {
			return j, x[j], false
		}
	}
	return -1, 0, true
}
