package solver

import "time"

// Solve parses lp text and runs branch-and-bound to optimality, honoring
// deadline as a wall-clock cutoff. It is the single entry point
// cmd/solverworker calls per request.
func Solve(lp string, deadline time.Time) (Solution, error) {
	p, err := Parse(lp)
	if err != nil {
		return Solution{}, err
	}
	return SolveMILP(p, deadline), nil
}
