// Package backend implements Backend Codegen (spec §4.10): it compiles
// Ground IR into a Constrained Quadratic Model (CQM) and then converts that
// CQM into a Binary Quadratic Model (BQM) by folding every constraint into a
// large-coefficient quadratic penalty. Grounded on `katalvlaran-lvlath`'s
// `matrix`/`matrix/ops` small-value-struct, explicit-dimension style
// (sparse map-of-terms instead of a dense matrix, since QSOL's polynomials
// are degree <= 2 over binary variables, not general linear algebra), and on
// the teacher's `operations_arithmetic.go` one-function-per-operator gadget
// style for the AND/OR/NOT/implication linearization gadgets.
package backend

import "sort"

// Polynomial is a sparse degree-<=2 polynomial over binary variables,
// represented as offset + linear terms + quadratic terms, keyed by stable
// variable labels (spec §6 "variable label grammar").
type Polynomial struct {
	Offset    float64
	Linear    map[string]float64
	Quadratic map[[2]string]float64
}

// NewPolynomial returns an empty (zero) polynomial.
func NewPolynomial() *Polynomial {
	return &Polynomial{Linear: map[string]float64{}, Quadratic: map[[2]string]float64{}}
}

// Constant returns the constant polynomial c.
func Constant(c float64) *Polynomial {
	p := NewPolynomial()
	p.Offset = c
	return p
}

// VarPoly returns the polynomial consisting of one linear variable.
func VarPoly(label string) *Polynomial {
	p := NewPolynomial()
	p.Linear[label] = 1
	return p
}

func quadKey(u, v string) [2]string {
	if u > v {
		u, v = v, u
	}
	return [2]string{u, v}
}

// AddLinear adds coeff*v to p.
func (p *Polynomial) AddLinear(v string, coeff float64) {
	if coeff == 0 {
		return
	}
	p.Linear[v] += coeff
}

// AddQuadratic adds coeff*u*v to p. Since every variable here is binary,
// u*u folds to u (idempotence of {0,1}), so a self-pair is added as linear.
func (p *Polynomial) AddQuadratic(u, v string, coeff float64) {
	if coeff == 0 {
		return
	}
	if u == v {
		p.AddLinear(u, coeff)
		return
	}
	p.Quadratic[quadKey(u, v)] += coeff
}

// Degree reports the polynomial's degree: 0 (constant), 1 (linear), or 2
// (has at least one quadratic term).
func (p *Polynomial) Degree() int {
	if len(p.Quadratic) > 0 {
		return 2
	}
	if len(p.Linear) > 0 {
		return 1
	}
	return 0
}

// Clone deep-copies p.
func (p *Polynomial) Clone() *Polynomial {
	out := NewPolynomial()
	out.Offset = p.Offset
	for k, v := range p.Linear {
		out.Linear[k] = v
	}
	for k, v := range p.Quadratic {
		out.Quadratic[k] = v
	}
	return out
}

// Add returns p + scale*q, a new polynomial.
func Add(p, q *Polynomial, scale float64) *Polynomial {
	out := p.Clone()
	out.Offset += scale * q.Offset
	for v, c := range q.Linear {
		out.AddLinear(v, scale*c)
	}
	for k, c := range q.Quadratic {
		out.AddQuadratic(k[0], k[1], scale*c)
	}
	return out
}

// Scale returns c*p.
func Scale(p *Polynomial, c float64) *Polynomial {
	return Add(NewPolynomial(), p, c)
}

// Multiply returns p*q if the result stays degree <= 2 over binaries
// (idempotent squares fold to linear, spec §4.10 "degree <= 2"); ok is
// false when the product would exceed degree 2.
func Multiply(p, q *Polynomial) (result *Polynomial, ok bool) {
	if p.Degree() == 0 {
		return Scale(q, p.Offset).addConst(p.Offset == 0, 0), true
	}
	if q.Degree() == 0 {
		return Scale(p, q.Offset), true
	}
	if p.Degree()+q.Degree() > 2 {
		return nil, false
	}
	out := NewPolynomial()
	out.Offset = p.Offset * q.Offset
	for v, c := range p.Linear {
		out.AddLinear(v, c*q.Offset)
	}
	for v, c := range q.Linear {
		out.AddLinear(v, c*p.Offset)
	}
	for u, cu := range p.Linear {
		for v, cv := range q.Linear {
			out.AddQuadratic(u, v, cu*cv)
		}
	}
	return out, true
}

// addConst is a tiny helper so Scale's degenerate p.Offset==0 case (the
// zero polynomial) still returns a clean empty polynomial rather than
// Scale(q, 0), which would be correct anyway; kept for readability at the
// call site above.
func (p *Polynomial) addConst(zero bool, _ float64) *Polynomial {
	if zero {
		return NewPolynomial()
	}
	return p
}

// Vars returns every variable label appearing in p, sorted.
func (p *Polynomial) Vars() []string {
	seen := map[string]bool{}
	for v := range p.Linear {
		seen[v] = true
	}
	for k := range p.Quadratic {
		seen[k[0]] = true
		seen[k[1]] = true
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// AbsCoeffSum returns the sum of absolute values of every coefficient
// (offset included), used to derive a safe big-M bound and the hard-
// constraint penalty scalar (SPEC_FULL.md §E.1).
func (p *Polynomial) AbsCoeffSum() float64 {
	sum := absf(p.Offset)
	for _, c := range p.Linear {
		sum += absf(c)
	}
	for _, c := range p.Quadratic {
		sum += absf(c)
	}
	return sum
}

// Eval evaluates p at the given binary assignment; a variable absent from
// sample is treated as 0.
func (p *Polynomial) Eval(sample map[string]float64) float64 {
	sum := p.Offset
	for v, c := range p.Linear {
		sum += c * sample[v]
	}
	for k, c := range p.Quadratic {
		sum += c * sample[k[0]] * sample[k[1]]
	}
	return sum
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
