package compiler

import "github.com/qsol-lang/qsol/internal/model"

// Validate runs the cross-cutting structural checks that don't fit cleanly
// into name resolution or type inference (spec §4.6): at most one objective
// per problem, Elem(Set) params may not carry a default, and an indexed
// param must always be read through its index brackets, never bare.
// Grounded on the teacher's separate validate pass (internal/compiler/
// validate.go in rage) sitting after type-checking and before desugaring.
func Validate(prob *model.ProblemDef, ps *ProblemScope) []model.Diagnostic {
	var diags model.Diagnostics

	for _, extra := range prob.ExtraObjectives {
		diags.Errorf(extra.Span, model.CodeShape, "problem %q declares more than one objective; only the first is used", prob.Name)
	}

	for _, p := range prob.Params {
		if p.Value == model.VTElem && p.HasDefault {
			diags.Errorf(p.Span, model.CodeShape, "param %q: Elem(%s)-valued params may not declare a default", p.Name, p.ElemSet)
		}
	}

	root := rootScope(ps)
	for _, c := range prob.Constraints {
		validateIndexedUsage(c.Expr, root, &diags)
		if c.Guard != nil {
			validateIndexedUsage(c.Guard, root, &diags)
		}
	}
	if prob.Objective != nil {
		validateIndexedUsage(prob.Objective.Expr, root, &diags)
	}

	return diags.All()
}

func validateIndexedUsage(expr model.Expr, s *Scope, diags *model.Diagnostics) {
	if expr == nil {
		return
	}
	switch n := expr.(type) {
	case *model.Ident:
		if p, ok := s.Problem.Params[n.Name]; ok && !p.IsScalar() {
			diags.Errorf(n.Span, model.CodeShape, "param %q is indexed by (%v) and must be read as %s[...]", n.Name, p.IndexSets, n.Name)
		}
	case *model.ParamRead:
		for _, idx := range n.Indices {
			validateIndexedUsage(idx, s, diags)
		}
	case *model.MethodCall:
		for _, a := range n.Args {
			validateIndexedUsage(a, s, diags)
		}
	case *model.MacroCall:
		for _, a := range n.Args {
			validateIndexedUsage(a, s, diags)
		}
	case *model.UnaryOp:
		validateIndexedUsage(n.Operand, s, diags)
	case *model.BinaryOp:
		validateIndexedUsage(n.Left, s, diags)
		validateIndexedUsage(n.Right, s, diags)
	case *model.Conditional:
		validateIndexedUsage(n.Cond, s, diags)
		validateIndexedUsage(n.Then, s, diags)
		validateIndexedUsage(n.Else, s, diags)
	case *model.Quantifier:
		validateIndexedUsage(n.Body, s.push(n.Var, model.Elem(n.Set)), diags)
	case *model.Aggregate:
		inner := s
		if n.Var != "" {
			inner = s.push(n.Var, model.Elem(n.Set))
		}
		validateIndexedUsage(n.Body, inner, diags)
		validateIndexedUsage(n.Where, inner, diags)
		validateIndexedUsage(n.Else, inner, diags)
	case *model.Comprehension:
		inner := s.push(n.Var, model.Elem(n.Set))
		validateIndexedUsage(n.Body, inner, diags)
		validateIndexedUsage(n.Where, inner, diags)
	}
}
