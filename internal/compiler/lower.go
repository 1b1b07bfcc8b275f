package compiler

import (
	"github.com/qsol-lang/qsol/internal/kernel"
	"github.com/qsol-lang/qsol/internal/model"
)

// Lower turns a desugared ProblemDef into Kernel IR (spec §4.8): it
// canonicalizes comparison direction (a > b / a >= b flip to b < a / b <= a
// so only =, <, <= survive alongside !=) and folds `maximize E` into
// `minimize(-E)`. Desugar must already have run -- Lower does not expect to
// see guards, count/any/all, or filtered/defaulted sums.
//
// Grounded on the teacher's lowering pass (internal/compiler/lower.go in
// rage), which likewise canonicalizes its IR's comparison/branch shapes
// right before the backend consumes them.
func Lower(prob *model.ProblemDef) *kernel.Program {
	out := &kernel.Program{Name: prob.Name, Sets: prob.Sets, Params: prob.Params, Finds: prob.Finds}
	for _, c := range prob.Constraints {
		out.Constraints = append(out.Constraints, kernel.Constraint{Weight: c.Weight, Expr: canonicalize(c.Expr)})
	}
	if prob.Objective != nil {
		expr := canonicalize(prob.Objective.Expr)
		if prob.Objective.Maximize {
			expr = &model.UnaryOp{Op: model.TK_Minus, Operand: expr, Span: prob.Objective.Span}
		}
		out.Objective = expr
	}
	return out
}

// canonicalize rewrites `a > b` to `b < a` and `a >= b` to `b <= a` so the
// backend only ever needs to handle =, !=, <, <= (spec §4.8, §4.10 tolerance
// policy). It recurses through every expression node.
func canonicalize(expr model.Expr) model.Expr {
	if expr == nil {
		return nil
	}
	switch n := expr.(type) {
	case *model.BinaryOp:
		left := canonicalize(n.Left)
		right := canonicalize(n.Right)
		switch n.Op {
		case model.TK_Gt:
			return &model.BinaryOp{Left: right, Op: model.TK_Lt, Right: left, Span: n.Span}
		case model.TK_Ge:
			return &model.BinaryOp{Left: right, Op: model.TK_Le, Right: left, Span: n.Span}
		default:
			return &model.BinaryOp{Left: left, Op: n.Op, Right: right, Span: n.Span}
		}
	case *model.UnaryOp:
		return &model.UnaryOp{Op: n.Op, Operand: canonicalize(n.Operand), Span: n.Span}
	case *model.Conditional:
		return &model.Conditional{Cond: canonicalize(n.Cond), Then: canonicalize(n.Then), Else: canonicalize(n.Else), Span: n.Span}
	case *model.Quantifier:
		return &model.Quantifier{Kind: n.Kind, Var: n.Var, Set: n.Set, Body: canonicalize(n.Body), Span: n.Span}
	case *model.Aggregate:
		return &model.Aggregate{Kind: n.Kind, Body: canonicalize(n.Body), Var: n.Var, Set: n.Set, Span: n.Span}
	case *model.MethodCall:
		args := make([]model.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = canonicalize(a)
		}
		return &model.MethodCall{Target: n.Target, Method: n.Method, MethodName: n.MethodName, Args: args, Span: n.Span}
	case *model.ParamRead:
		idx := make([]model.Expr, len(n.Indices))
		for i, a := range n.Indices {
			idx[i] = canonicalize(a)
		}
		return &model.ParamRead{Name: n.Name, Indices: idx, Span: n.Span}
	default:
		return expr
	}
}
