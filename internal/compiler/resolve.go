package compiler

import "github.com/qsol-lang/qsol/internal/model"

// Resolve binds every identifier reference in prob's constraints/objective
// against its declared set/param/find/iterator, and checks method-call
// target kinds, reporting QSOL2001 (unknown identifier) and QSOL2002
// (duplicate declaration, from buildProblemScope). Grounded on the
// teacher's SymbolTable-based Resolve pass (internal/compiler/resolve.go in
// rage), narrowed to QSOL's flatter declaration model.
func Resolve(prob *model.ProblemDef) (*ProblemScope, []model.Diagnostic) {
	var diags model.Diagnostics
	ps := buildProblemScope(prob, &diags)
	root := rootScope(ps)

	for _, c := range prob.Constraints {
		resolveExpr(c.Expr, root, &diags)
		if c.Guard != nil {
			resolveExpr(c.Guard, root, &diags)
		}
	}
	if prob.Objective != nil {
		resolveExpr(prob.Objective.Expr, root, &diags)
	}
	for _, o := range prob.ExtraObjectives {
		resolveExpr(o.Expr, root, &diags)
	}
	return ps, diags.All()
}

func resolveExpr(expr model.Expr, s *Scope, diags *model.Diagnostics) {
	if expr == nil {
		return
	}
	switch n := expr.(type) {
	case *model.Ident:
		if _, _, ok := s.resolveName(n.Name); !ok {
			diags.Errorf(n.Span, model.CodeUnknownIdent, "undefined name %q", n.Name)
		}
	case *model.ParamRead:
		p, ok := s.Problem.Params[n.Name]
		if !ok {
			diags.Errorf(n.Span, model.CodeUnknownIdent, "undefined param %q", n.Name)
		} else if len(n.Indices) != len(p.IndexSets) {
			diags.Errorf(n.Span, model.CodeShape, "param %q is indexed by %d set(s), got %d index expression(s)", n.Name, len(p.IndexSets), len(n.Indices))
		}
		for _, idx := range n.Indices {
			resolveExpr(idx, s, diags)
		}
	case *model.SizeOf:
		if _, ok := s.Problem.Sets[n.SetName]; !ok {
			diags.Errorf(n.Span, model.CodeUnknownIdent, "size(...) of undeclared set %q", n.SetName)
		}
	case *model.MethodCall:
		f, ok := s.Problem.Finds[n.Target]
		if !ok {
			diags.Errorf(n.Span, model.CodeUnknownIdent, "undefined find %q", n.Target)
		} else {
			switch n.Method {
			case model.MethodHas:
				if f.Kind != model.UKSubset {
					diags.Errorf(n.Span, model.CodeShape, "%q.has(...) requires a Subset find, got %s", n.Target, findKindName(f.Kind))
				}
				if len(n.Args) != 1 {
					diags.Errorf(n.Span, model.CodeShape, "%s.has(...) takes exactly one argument, got %d", n.Target, len(n.Args))
				}
			case model.MethodIs:
				if f.Kind != model.UKMapping {
					diags.Errorf(n.Span, model.CodeShape, "%q.is(...) requires a Mapping find, got %s", n.Target, findKindName(f.Kind))
				}
				if len(n.Args) != 2 {
					diags.Errorf(n.Span, model.CodeShape, "%s.is(...) takes exactly two arguments, got %d", n.Target, len(n.Args))
				}
			}
		}
		for _, a := range n.Args {
			resolveExpr(a, s, diags)
		}
	case *model.MacroCall:
		for _, a := range n.Args {
			resolveExpr(a, s, diags)
		}
	case *model.UnaryOp:
		resolveExpr(n.Operand, s, diags)
	case *model.BinaryOp:
		resolveExpr(n.Left, s, diags)
		resolveExpr(n.Right, s, diags)
	case *model.Conditional:
		resolveExpr(n.Cond, s, diags)
		resolveExpr(n.Then, s, diags)
		resolveExpr(n.Else, s, diags)
	case *model.Quantifier:
		if _, ok := s.Problem.Sets[n.Set]; !ok {
			diags.Errorf(n.Span, model.CodeUnknownIdent, "undeclared set %q", n.Set)
		}
		resolveExpr(n.Body, s.push(n.Var, model.Elem(n.Set)), diags)
	case *model.Aggregate:
		if n.Set != "" {
			if _, ok := s.Problem.Sets[n.Set]; !ok {
				diags.Errorf(n.Span, model.CodeUnknownIdent, "undeclared set %q", n.Set)
			}
		}
		inner := s
		if n.Var != "" {
			inner = s.push(n.Var, model.Elem(n.Set))
		}
		resolveExpr(n.Body, inner, diags)
		resolveExpr(n.Where, inner, diags)
		resolveExpr(n.Else, inner, diags)
	case *model.Comprehension:
		if _, ok := s.Problem.Sets[n.Set]; !ok {
			diags.Errorf(n.Span, model.CodeUnknownIdent, "undeclared set %q", n.Set)
		}
		inner := s.push(n.Var, model.Elem(n.Set))
		resolveExpr(n.Body, inner, diags)
		resolveExpr(n.Where, inner, diags)
	}
}

func findKindName(k model.UnknownKind) string {
	switch k {
	case model.UKSubset:
		return "Subset"
	case model.UKMapping:
		return "Mapping"
	default:
		return "user-defined"
	}
}
