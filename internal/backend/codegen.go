package backend

import (
	"fmt"
	"strconv"

	"github.com/qsol-lang/qsol/internal/ground"
	"github.com/qsol-lang/qsol/internal/model"
)

// numLitPoly parses a literal's decimal text into a constant polynomial.
// IntLit/RealLit values are already validated by the lexer, so a parse
// failure here would indicate a compiler bug upstream rather than bad input.
func numLitPoly(text string) *Polynomial {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Constant(0)
	}
	return Constant(v)
}

// CQM is a Constrained Quadratic Model: an objective polynomial plus a set
// of constraint rows, over a fixed variable universe (spec §4.10).
type CQM struct {
	Vars        []ground.Var
	Objective   *Polynomial
	Constraints []CQMConstraint
	// MappingLaws records the find names whose one-hot structural law was
	// emitted, for diagnostics/explain output.
	MappingLaws []ground.MappingLaw
	caps        capabilitySet
}

// Stats reports spec §6's CQM/BQM statistics triple.
type Stats struct {
	NumVariables   int
	NumConstraints int
	NumInteractions int
}

func (c *CQM) Stats() Stats {
	vars := map[string]bool{}
	for _, v := range c.Objective.Vars() {
		vars[v] = true
	}
	interactions := map[[2]string]bool{}
	for _, con := range c.Constraints {
		for _, v := range con.Poly.Vars() {
			vars[v] = true
		}
		for k := range con.Poly.Quadratic {
			interactions[k] = true
		}
	}
	for k := range c.Objective.Quadratic {
		interactions[k] = true
	}
	return Stats{NumVariables: len(vars), NumConstraints: len(c.Constraints), NumInteractions: len(interactions)}
}

// Build compiles a grounded program into a CQM (spec §4.10). It flattens
// every `must` constraint through top-level conjunctions so that plain
// numeric comparisons -- the overwhelmingly common shape -- become direct
// CQM rows instead of paying for an indicator variable; `should`/`nice`
// constraints are folded straight into the objective as penalty terms
// (spec §4.10 "soft constraints").
func Build(prob *ground.Program) (*CQM, []model.Diagnostic) {
	var diags model.Diagnostics
	g := &gadgets{}
	b := &builder{gadgets: g, diags: &diags, caps: capabilitySet{}}

	obj := NewPolynomial()
	if prob.Objective != nil {
		p, err := b.buildPoly(prob.Objective)
		if err != nil {
			diags.Errorf(prob.Objective.Pos(), model.CodeUnsupportedShape, "%s", err)
		} else {
			obj = p
		}
	}

	for _, c := range prob.Constraints {
		switch c.Weight {
		case model.WeightMust:
			for _, atom := range flattenAnd(c.Expr) {
				b.emitHard(atom)
			}
		case model.WeightShould:
			obj = Add(obj, b.penalty(c.Expr), 10.0)
		case model.WeightNice:
			obj = Add(obj, b.penalty(c.Expr), 1.0)
		}
	}

	for _, law := range prob.MappingLaws {
		sum := NewPolynomial()
		for _, v := range law.Vars {
			sum.AddLinear(v, 1)
		}
		g.add(fmt.Sprintf("%s:onehot:%s", law.FindName, law.A), sum, SenseEq, 1)
	}

	if len(prob.MappingLaws) > 0 {
		b.caps.add("unknown.mapping.v1")
	}
	cqm := &CQM{Vars: prob.Vars, Objective: obj, Constraints: g.constraints, MappingLaws: prob.MappingLaws, caps: b.caps}
	return cqm, diags.All()
}

// builder threads the shared gadget state through polynomial/boolean
// construction for one Build call.
type builder struct {
	gadgets *gadgets
	diags   *model.Diagnostics
	caps    capabilitySet
}

// flattenAnd splits top-level `and` conjunctions into independent atoms, so
// a must-constraint built from desugared guards (`G => E`, never `and` at
// the very top, but an elaborated law like `and(a, b)` might still surface
// one) emits one CQM row per atom instead of one indicator-heavy row.
func flattenAnd(expr model.Expr) []model.Expr {
	if b, ok := expr.(*model.BinaryOp); ok && b.Op == model.TK_And {
		return append(flattenAnd(b.Left), flattenAnd(b.Right)...)
	}
	return []model.Expr{expr}
}

// emitHard asserts atom as a hard constraint: a direct CQM row when atom is
// a plain numeric comparison, else an indicator z plus "z == 1".
func (b *builder) emitHard(atom model.Expr) {
	if bop, ok := atom.(*model.BinaryOp); ok {
		if op, isCmp := compareOpOf(bop.Op); isCmp {
			b.emitComparison(bop, op)
			return
		}
	}
	z, err := b.encodeBool(atom)
	if err != nil {
		b.diags.Errorf(atom.Pos(), model.CodeUnsupportedShape, "%s", err)
		return
	}
	b.gadgets.add("must", VarPoly(z), SenseEq, 1)
}

// emitComparison emits a numeric comparison directly: Eq/Le/Ge become a
// single CQM row; Lt/Gt shift the RHS by the tolerance epsilon; Ne needs a
// genuine disjunction and falls back to the boolean indicator path.
func (b *builder) emitComparison(bop *model.BinaryOp, op compareOp) {
	if op == cmpNe {
		z, err := b.encodeBool(bop)
		if err != nil {
			b.diags.Errorf(bop.Pos(), model.CodeUnsupportedShape, "%s", err)
			return
		}
		b.gadgets.add("must", VarPoly(z), SenseEq, 1)
		return
	}
	l, err := b.buildPoly(bop.Left)
	if err != nil {
		b.diags.Errorf(bop.Left.Pos(), model.CodeUnsupportedShape, "%s", err)
		return
	}
	r, err := b.buildPoly(bop.Right)
	if err != nil {
		b.diags.Errorf(bop.Right.Pos(), model.CodeUnsupportedShape, "%s", err)
		return
	}
	diff := Add(l, r, -1)
	poly := diff.Clone()
	poly.Offset = 0 // RHS absorbs the constant term below
	rhs := -diff.Offset
	b.caps.add(compareCapability[op])
	switch op {
	case cmpEq:
		b.gadgets.add("must", poly, SenseEq, rhs)
	case cmpLe:
		b.gadgets.add("must", poly, SenseLe, rhs)
	case cmpGe:
		b.gadgets.add("must", poly, SenseGe, rhs)
	case cmpLt:
		b.gadgets.add("must", poly, SenseLe, rhs-tolerance)
	case cmpGt:
		b.gadgets.add("must", poly, SenseGe, rhs+tolerance)
	}
}

// penalty returns a polynomial whose value is 0 when expr holds and > 0
// otherwise, suitable for adding into the objective for should/nice
// constraints (spec §4.10 "penalty(expr) = (1 - z)^2", which over a binary z
// equals 1-z since z^2=z for {0,1}).
func (b *builder) penalty(expr model.Expr) *Polynomial {
	z, err := b.encodeBool(expr)
	if err != nil {
		b.diags.Errorf(expr.Pos(), model.CodeUnsupportedShape, "%s", err)
		return NewPolynomial()
	}
	return Add(Constant(1), VarPoly(z), -1)
}

func compareOpOf(op model.TokenKind) (compareOp, bool) {
	switch op {
	case model.TK_Eq:
		return cmpEq, true
	case model.TK_Ne:
		return cmpNe, true
	case model.TK_Lt:
		return cmpLt, true
	case model.TK_Le:
		return cmpLe, true
	case model.TK_Gt:
		return cmpGt, true
	case model.TK_Ge:
		return cmpGe, true
	}
	return 0, false
}

// encodeBool compiles a Bool-typed expression into an indicator variable
// whose value equals the expression's truth value, introducing gadget
// auxiliaries as needed.
func (b *builder) encodeBool(expr model.Expr) (string, error) {
	switch n := expr.(type) {
	case *model.VarRef:
		return n.Label, nil
	case *model.BoolLit:
		return b.gadgets.fixAux(n.Value), nil
	case *model.UnaryOp:
		if n.Op == model.TK_Not {
			x, err := b.encodeBool(n.Operand)
			if err != nil {
				return "", err
			}
			b.caps.add("bool.not.v1")
			return b.gadgets.gadgetNot(x), nil
		}
	case *model.BinaryOp:
		if op, isCmp := compareOpOf(n.Op); isCmp {
			l, err := b.buildPoly(n.Left)
			if err != nil {
				return "", err
			}
			r, err := b.buildPoly(n.Right)
			if err != nil {
				return "", err
			}
			b.caps.add(compareCapability[op])
			return b.gadgets.gadgetCompare(Add(l, r, -1), op), nil
		}
		x, err := b.encodeBool(n.Left)
		if err != nil {
			return "", err
		}
		y, err := b.encodeBool(n.Right)
		if err != nil {
			return "", err
		}
		switch n.Op {
		case model.TK_And:
			b.caps.add("bool.and.v1")
			return b.gadgets.gadgetAnd(x, y), nil
		case model.TK_Or:
			b.caps.add("bool.or.v1")
			return b.gadgets.gadgetOr(x, y), nil
		case model.TK_Implies:
			b.caps.add("bool.implies.v1")
			return b.gadgets.gadgetImplies(x, y), nil
		}
	}
	return "", fmt.Errorf("cannot encode %T as a boolean indicator", expr)
}

// buildPoly compiles a numeric expression into a degree-<=2 polynomial,
// coercing nested Bool subexpressions (e.g. `F.has(i)` weighted in a sum)
// to their 0/1 indicator.
func (b *builder) buildPoly(expr model.Expr) (*Polynomial, error) {
	switch n := expr.(type) {
	case *model.IntLit:
		return numLitPoly(n.Value), nil
	case *model.RealLit:
		return numLitPoly(n.Value), nil
	case *model.VarRef:
		return VarPoly(n.Label), nil
	case *model.BoolLit:
		z := b.gadgets.fixAux(n.Value)
		return VarPoly(z), nil
	case *model.UnaryOp:
		if n.Op == model.TK_Minus {
			p, err := b.buildPoly(n.Operand)
			if err != nil {
				return nil, err
			}
			return Scale(p, -1), nil
		}
		z, err := b.encodeBool(n)
		if err != nil {
			return nil, err
		}
		return VarPoly(z), nil
	case *model.BinaryOp:
		switch n.Op {
		case model.TK_Plus:
			l, err := b.buildPoly(n.Left)
			if err != nil {
				return nil, err
			}
			r, err := b.buildPoly(n.Right)
			if err != nil {
				return nil, err
			}
			return Add(l, r, 1), nil
		case model.TK_Minus:
			l, err := b.buildPoly(n.Left)
			if err != nil {
				return nil, err
			}
			r, err := b.buildPoly(n.Right)
			if err != nil {
				return nil, err
			}
			return Add(l, r, -1), nil
		case model.TK_Star:
			l, err := b.buildPoly(n.Left)
			if err != nil {
				return nil, err
			}
			r, err := b.buildPoly(n.Right)
			if err != nil {
				return nil, err
			}
			out, ok := Multiply(l, r)
			if !ok {
				return nil, fmt.Errorf("the objective/constraint exceeds a degree-2 polynomial")
			}
			return out, nil
		case model.TK_Slash:
			l, err := b.buildPoly(n.Left)
			if err != nil {
				return nil, err
			}
			r, err := b.buildPoly(n.Right)
			if err != nil {
				return nil, err
			}
			if r.Degree() != 0 || r.Offset == 0 {
				return nil, fmt.Errorf("division requires a nonzero constant divisor")
			}
			return Scale(l, 1/r.Offset), nil
		}
		z, err := b.encodeBool(n)
		if err != nil {
			return nil, err
		}
		return VarPoly(z), nil
	case *model.Conditional:
		cz, err := b.encodeBool(n.Cond)
		if err != nil {
			return nil, err
		}
		thenP, err := b.buildPoly(n.Then)
		if err != nil {
			return nil, err
		}
		elseP, err := b.buildPoly(n.Else)
		if err != nil {
			return nil, err
		}
		cpoly := VarPoly(cz)
		thenTerm, ok := Multiply(cpoly, thenP)
		if !ok {
			return nil, fmt.Errorf("if-then-else exceeds a degree-2 polynomial")
		}
		notC := Add(Constant(1), cpoly, -1)
		elseTerm, ok := Multiply(notC, elseP)
		if !ok {
			return nil, fmt.Errorf("if-then-else exceeds a degree-2 polynomial")
		}
		return Add(thenTerm, elseTerm, 1), nil
	}
	return nil, fmt.Errorf("cannot compile %T into a polynomial", expr)
}
