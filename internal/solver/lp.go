package solver

import (
	"strconv"
	"strings"
)

// Parse reads the canonical CPLEX LP text the Model Builder emits and
// returns the Problem it describes. It accepts exactly the grammar
// builder.Build produces: Minimize/Subject To/Bounds/General/Binary/End
// sections, one constraint or bound per line, terms of the form
// "+ 123 x4" / "- y5" / "+ y1".
func Parse(lp string) (*Problem, error) {
	p := newProblem()
	section := ""
	lineNo := 0

	for _, raw := range strings.Split(lp, "\n") {
		lineNo++
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		switch line {
		case "Minimize", "Maximize", "Subject To", "Bounds", "General", "Binary", "End":
			section = line
			continue
		}

		switch section {
		case "Minimize", "Maximize":
			if err := parseObjectiveLine(p, line); err != nil {
				return nil, &parseError{lineNo, err.Error()}
			}
		case "Subject To":
			c, err := parseConstraintLine(p, line)
			if err != nil {
				return nil, &parseError{lineNo, err.Error()}
			}
			p.Constraints = append(p.Constraints, c)
		case "Bounds":
			if err := parseBoundLine(p, line); err != nil {
				return nil, &parseError{lineNo, err.Error()}
			}
		case "General":
			name := strings.TrimSpace(line)
			p.Integer[p.indexOf(name)] = true
		case "Binary":
			name := strings.TrimSpace(line)
			idx := p.indexOf(name)
			p.Integer[idx] = true
			p.Upper[idx] = 1
		}
	}

	// Variables can be registered mid-parse (e.g. a y-variable first seen
	// inside a constraint after the objective was already parsed), so pad
	// every row out to the final variable count and the objective too.
	n := len(p.VarNames)
	for i := range p.Constraints {
		p.Constraints[i].Coeffs = padTo(p.Constraints[i].Coeffs, n)
	}
	p.Obj = padTo(p.Obj, n)

	return p, nil
}

func padTo(v []float64, n int) []float64 {
	if len(v) >= n {
		return v
	}
	out := make([]float64, n)
	copy(out, v)
	return out
}

// parseObjectiveLine handles " obj: + 413 x0 + 250 x1" and the degenerate
// " obj: 0" form the builder emits for an empty product catalogue.
func parseObjectiveLine(p *Problem, line string) error {
	rest := line
	if i := strings.IndexByte(line, ':'); i >= 0 {
		rest = line[i+1:]
	}
	rest = strings.TrimSpace(rest)
	if rest == "0" {
		return nil
	}
	terms, err := splitTerms(rest)
	if err != nil {
		return err
	}
	for _, t := range terms {
		idx := p.indexOf(t.name)
		p.Obj[idx] += t.coeff
	}
	return nil
}

// parseConstraintLine handles "c3: + 413 x0 + 250 x1 >= 1500" and the
// forced-inclusion/no-good-cut equality/inequality forms.
func parseConstraintLine(p *Problem, line string) (Constraint, error) {
	name := ""
	rest := line
	if i := strings.IndexByte(line, ':'); i >= 0 {
		name = strings.TrimSpace(line[:i])
		rest = line[i+1:]
	}

	op, opStr, err := findOp(rest)
	if err != nil {
		return Constraint{}, err
	}
	lhs := strings.TrimSpace(rest[:strings.Index(rest, opStr)])
	rhsStr := strings.TrimSpace(rest[strings.Index(rest, opStr)+len(opStr):])
	rhs, err := strconv.ParseFloat(rhsStr, 64)
	if err != nil {
		return Constraint{}, err
	}

	terms, err := splitTerms(lhs)
	if err != nil {
		return Constraint{}, err
	}

	c := Constraint{Name: name, Op: op, RHS: rhs}
	// Coeffs is sized lazily once every variable in the whole problem has
	// been registered (see Parse's final pass), so keep a sparse map here
	// and expand to a dense slice once.
	sparse := make(map[int]float64, len(terms))
	for _, t := range terms {
		idx := p.indexOf(t.name)
		sparse[idx] += t.coeff
	}
	c.Coeffs = sparseToDense(sparse, p)
	return c, nil
}

// sparseToDense materializes a coefficient map against the current variable
// count. Because Subject To always appears before Bounds/General/Binary in
// the builder's output, and every variable a constraint references already
// appears in the objective or an earlier constraint, this is safe; any
// later-registered variable simply defaults its earlier constraints' rows
// to zero, which Parse's final padTo pass does by re-walking all
// constraints at the end.
func sparseToDense(sparse map[int]float64, p *Problem) []float64 {
	dense := make([]float64, len(p.VarNames))
	for idx, v := range sparse {
		dense[idx] = v
	}
	return dense
}

// parseBoundLine handles " 0 <= x0 <= 600" and " 0 <= y0 <= 1".
func parseBoundLine(p *Problem, line string) error {
	fields := strings.Fields(line)
	// fields: ["0", "<=", "x0", "<=", "600"]
	if len(fields) != 5 {
		return &parseError{0, "malformed bounds line: " + line}
	}
	name := fields[2]
	upper, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return err
	}
	idx := p.indexOf(name)
	p.Upper[idx] = upper
	return nil
}

func findOp(s string) (Op, string, error) {
	if strings.Contains(s, "<=") {
		return LE, "<=", nil
	}
	if strings.Contains(s, ">=") {
		return GE, ">=", nil
	}
	if strings.Contains(s, "=") {
		return EQ, "=", nil
	}
	return 0, "", &parseError{0, "no relational operator in: " + s}
}

type term struct {
	coeff float64
	name  string
}

// splitTerms tokenizes a run of "+ 413 x0 - y5 + y1" into signed terms. A
// bare variable name (no digits before it) has an implicit coefficient of
// 1 (or -1 when preceded by a minus sign).
func splitTerms(s string) ([]term, error) {
	fields := strings.Fields(s)
	var terms []term
	sign := 1.0
	i := 0
	for i < len(fields) {
		switch fields[i] {
		case "+":
			sign = 1
			i++
			continue
		case "-":
			sign = -1
			i++
			continue
		}
		coeff := sign
		name := fields[i]
		if n, err := strconv.ParseFloat(fields[i], 64); err == nil {
			coeff = sign * n
			i++
			if i >= len(fields) {
				return nil, &parseError{0, "dangling coefficient in: " + s}
			}
			name = fields[i]
		}
		terms = append(terms, term{coeff: coeff, name: name})
		sign = 1
		i++
	}
	return terms, nil
}
