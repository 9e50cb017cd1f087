package solver

import (
	"testing"
	"time"
)

func TestSolveSimpleTwoProduct(t *testing.T) {
	// Two products, nitrogen-only target of 150 kg/ha within [150,151],
	// cheapest single-product-or-mix solution should pick product 1 alone
	// given its lower price per unit of N (product 0 cannot reach 150 kg N
	// within its 600 kg/ha dose cap anyway).
	lp := `Minimize
 obj: + 450 x0 + 400 x1
Subject To
 c0: x0 - 100 y0 >= 0
 c1: x0 - 600 y0 <= 0
 c2: x1 - 100 y1 >= 0
 c3: x1 - 600 y1 <= 0
 c4: + y0 + y1 <= 3
 c5: + 210 x0 + 270 x1 >= 150000
 c6: + 210 x0 + 270 x1 <= 151000
Bounds
 0 <= x0 <= 600
 0 <= y0 <= 1
 0 <= x1 <= 600
 0 <= y1 <= 1
General
 x0
 x1
Binary
 y0
 y1
End
`
	sol, err := Solve(lp, time.Now().Add(5*time.Second))
	if err != nil {
		t.Fatalf("unexpected parse/solve error: %v", err)
	}
	if sol.Status != StatusOptimal {
		t.Fatalf("expected optimal, got %s", sol.Status)
	}
	n := 210*sol.Values["x0"] + 270*sol.Values["x1"]
	if n < 150000 || n > 151000 {
		t.Fatalf("nitrogen band violated: got %d units", n)
	}
}

func TestSolveInfeasibleWhenBandUnreachable(t *testing.T) {
	lp := `Minimize
 obj: + 450 x0
Subject To
 c0: x0 - 100 y0 >= 0
 c1: x0 - 600 y0 <= 0
 c2: + y0 <= 1
 c3: + 210 x0 >= 900000
 c4: + 210 x0 <= 901000
Bounds
 0 <= x0 <= 600
 0 <= y0 <= 1
General
 x0
Binary
 y0
End
`
	sol, err := Solve(lp, time.Now().Add(5*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sol.Status != StatusInfeasible {
		t.Fatalf("expected infeasible (band unreachable within dose cap), got %s", sol.Status)
	}
}

func TestSolveRespectsForcedInclusion(t *testing.T) {
	lp := `Minimize
 obj: + 450 x0 + 400 x1
Subject To
 c0: x0 - 100 y0 >= 0
 c1: x0 - 600 y0 <= 0
 c2: x1 - 100 y1 >= 0
 c3: x1 - 600 y1 <= 0
 c4: + y0 + y1 <= 2
 c5: y1 = 1
 c6: + 210 x0 + 270 x1 >= 150000
 c7: + 210 x0 + 270 x1 <= 151000
Bounds
 0 <= x0 <= 600
 0 <= y0 <= 1
 0 <= x1 <= 600
 0 <= y1 <= 1
General
 x0
 x1
Binary
 y0
 y1
End
`
	sol, err := Solve(lp, time.Now().Add(5*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sol.Status != StatusOptimal {
		t.Fatalf("expected optimal, got %s", sol.Status)
	}
	if sol.Values["x1"] == 0 {
		t.Fatalf("expected product 1 forced into the solution, got x1=%d", sol.Values["x1"])
	}
}

func TestParseEmptyCatalogueLP(t *testing.T) {
	lp := `Minimize
 obj: 0
Subject To
Bounds
General
Binary
End
`
	p, err := Parse(lp)
	if err != nil {
		t.Fatalf("unexpected error parsing empty catalogue LP: %v", err)
	}
	if p.NumVars() != 0 {
		t.Fatalf("expected 0 vars, got %d", p.NumVars())
	}
}
