package compiler

import "github.com/qsol-lang/qsol/internal/model"

// numericCompatible reports whether t can appear in an arithmetic/sum
// context: Real/Int directly, or Bool coerced to {0,1}.
func numericCompatible(t model.Type) bool {
	return t.IsNumeric() || t.Kind == model.TBool || t.Kind == model.TInvalid
}

// TypeCheck infers and checks the type of every expression in prob's
// constraints/objective against ps (built by Resolve), reporting QSOL2101
// shape violations: non-Bool constraint/guard/quantifier bodies, a
// non-numeric objective, and mismatched operand types. Grounded on the
// teacher's type-inference walk (internal/compiler/typecheck.go in rage),
// re-targeted at QSOL's small value-type lattice (spec §4.5).
func TypeCheck(prob *model.ProblemDef, ps *ProblemScope) []model.Diagnostic {
	var diags model.Diagnostics
	root := rootScope(ps)

	for _, c := range prob.Constraints {
		if t := inferType(c.Expr, root, &diags); t.Kind != model.TBool && t.Kind != model.TInvalid {
			diags.Errorf(c.Expr.Pos(), model.CodeShape, "a %s constraint must be Bool-typed, got %s", c.Weight, t)
		}
		if c.Guard != nil {
			if t := inferType(c.Guard, root, &diags); t.Kind != model.TBool && t.Kind != model.TInvalid {
				diags.Errorf(c.Guard.Pos(), model.CodeShape, "a constraint guard must be Bool-typed, got %s", t)
			}
		}
	}
	if prob.Objective != nil {
		if t := inferType(prob.Objective.Expr, root, &diags); !t.IsNumeric() && t.Kind != model.TInvalid {
			diags.Errorf(prob.Objective.Expr.Pos(), model.CodeShape, "the objective must be numeric, got %s", t)
		}
	}
	return diags.All()
}

// inferType returns the checked type of expr, emitting a diagnostic and
// returning model.Invalid wherever the shape is wrong. Unresolved names
// (already reported by Resolve) infer as Invalid without a second diagnostic.
func inferType(expr model.Expr, s *Scope, diags *model.Diagnostics) model.Type {
	switch n := expr.(type) {
	case *model.IntLit:
		return model.Type{Kind: model.TInt}
	case *model.RealLit:
		return model.Real
	case *model.BoolLit:
		return model.Bool
	case *model.Ident:
		t, _, ok := s.resolveName(n.Name)
		if !ok {
			return model.Invalid
		}
		return t
	case *model.ParamRead:
		p, ok := s.Problem.Params[n.Name]
		if !ok {
			return model.Invalid
		}
		for _, idx := range n.Indices {
			inferType(idx, s, diags)
		}
		return paramValueType(p)
	case *model.SizeOf:
		return model.Type{Kind: model.TInt}
	case *model.MethodCall:
		for _, a := range n.Args {
			inferType(a, s, diags)
		}
		if n.Method == model.MethodView {
			return model.Invalid // view members may be Bool or Real; the elaborator should already have inlined these by typecheck time
		}
		return model.Bool
	case *model.MacroCall:
		for _, a := range n.Args {
			if comp, ok := a.(*model.Comprehension); ok {
				inferType(comp.Body, s.push(comp.Var, model.Elem(comp.Set)), diags)
				continue
			}
			inferType(a, s, diags)
		}
		return model.Invalid // macro calls are expected to be inlined by the elaborator before typecheck runs
	case *model.UnaryOp:
		t := inferType(n.Operand, s, diags)
		switch n.Op {
		case model.TK_Not:
			if t.Kind != model.TBool && t.Kind != model.TInvalid {
				diags.Errorf(n.Span, model.CodeShape, "not requires a Bool operand, got %s", t)
			}
			return model.Bool
		case model.TK_Minus:
			if !t.IsNumeric() && t.Kind != model.TInvalid {
				diags.Errorf(n.Span, model.CodeShape, "unary - requires a numeric operand, got %s", t)
			}
			return model.Real
		}
		return model.Invalid
	case *model.BinaryOp:
		lt := inferType(n.Left, s, diags)
		rt := inferType(n.Right, s, diags)
		switch n.Op {
		case model.TK_Plus, model.TK_Minus, model.TK_Star, model.TK_Slash:
			// A Bool operand (typically `F.has(x)`) is accepted in
			// arithmetic, coerced to 0/1 -- the usual idiom for weighting a
			// decision variable inside a sum (spec §4.9 "F.has[s]" used as
			// a term).
			if !numericCompatible(lt) {
				diags.Errorf(n.Left.Pos(), model.CodeShape, "arithmetic requires a numeric or Bool operand, got %s", lt)
			}
			if !numericCompatible(rt) {
				diags.Errorf(n.Right.Pos(), model.CodeShape, "arithmetic requires a numeric or Bool operand, got %s", rt)
			}
			return model.Real
		case model.TK_Eq, model.TK_Ne, model.TK_Lt, model.TK_Le, model.TK_Gt, model.TK_Ge:
			if lt.IsNumeric() != rt.IsNumeric() && lt.Kind != model.TInvalid && rt.Kind != model.TInvalid {
				diags.Errorf(n.Span, model.CodeShape, "comparison operands must both be numeric (got %s and %s)", lt, rt)
			}
			return model.Bool
		case model.TK_And, model.TK_Or, model.TK_Implies:
			if lt.Kind != model.TBool && lt.Kind != model.TInvalid {
				diags.Errorf(n.Left.Pos(), model.CodeShape, "%s requires a Bool operand, got %s", n.Op, lt)
			}
			if rt.Kind != model.TBool && rt.Kind != model.TInvalid {
				diags.Errorf(n.Right.Pos(), model.CodeShape, "%s requires a Bool operand, got %s", n.Op, rt)
			}
			return model.Bool
		}
		return model.Invalid
	case *model.Conditional:
		ct := inferType(n.Cond, s, diags)
		if ct.Kind != model.TBool && ct.Kind != model.TInvalid {
			diags.Errorf(n.Cond.Pos(), model.CodeShape, "if-condition must be Bool, got %s", ct)
		}
		tt := inferType(n.Then, s, diags)
		et := inferType(n.Else, s, diags)
		if tt.Kind != et.Kind && tt.Kind != model.TInvalid && et.Kind != model.TInvalid {
			diags.Errorf(n.Span, model.CodeShape, "if-then-else branches must agree in type (got %s and %s)", tt, et)
		}
		return tt
	case *model.Quantifier:
		inner := s.push(n.Var, model.Elem(n.Set))
		bt := inferType(n.Body, inner, diags)
		if bt.Kind != model.TBool && bt.Kind != model.TInvalid {
			diags.Errorf(n.Body.Pos(), model.CodeShape, "forall/exists body must be Bool, got %s", bt)
		}
		return model.Bool
	case *model.Aggregate:
		inner := s
		if n.Var != "" {
			inner = s.push(n.Var, model.Elem(n.Set))
		}
		if n.Body != nil {
			bt := inferType(n.Body, inner, diags)
			switch n.Kind {
			case model.AggSum:
				if !numericCompatible(bt) {
					diags.Errorf(n.Body.Pos(), model.CodeShape, "sum(...) body must be numeric or Bool, got %s", bt)
				}
			case model.AggAny, model.AggAll:
				if bt.Kind != model.TBool && bt.Kind != model.TInvalid {
					diags.Errorf(n.Body.Pos(), model.CodeShape, "any/all(...) body must be Bool, got %s", bt)
				}
			}
		}
		if n.Where != nil {
			inferType(n.Where, inner, diags)
		}
		if n.Else != nil {
			inferType(n.Else, inner, diags)
		}
		switch n.Kind {
		case model.AggSum:
			return model.Real
		case model.AggCount:
			return model.Type{Kind: model.TInt}
		default:
			return model.Bool
		}
	case *model.Comprehension:
		inner := s.push(n.Var, model.Elem(n.Set))
		return inferType(n.Body, inner, diags)
	default:
		return model.Invalid
	}
}
