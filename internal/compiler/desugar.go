package compiler

import "github.com/qsol-lang/qsol/internal/model"

// Desugar rewrites a problem's constraints/objective into the smaller core
// expression grammar the lowerer consumes (spec §4.7):
//   - a constraint guard `must E if G` becomes `must (G => E)`
//   - `count(x in S)` becomes `size(S)`
//   - `count(pred(x) for x in S [where w])` becomes a sum of 0/1 terms
//   - `any(...)`/`all(...)` become exists/forall
//   - a filtered/defaulted sum `sum(B for x in S where w else f)` becomes
//     `sum((if w then B else f) for x in S)`
//
// Each rewrite recurses into its own result, so a single bottom-up pass is a
// fixed point: desugar never introduces a new instance of a form it has
// already eliminated below the current node.
//
// Grounded on the teacher's desugaring pass (internal/compiler/desugar.go
// in rage), which likewise expands high-level sugar into a narrower core
// before lowering.
func Desugar(prob *model.ProblemDef) *model.ProblemDef {
	out := &model.ProblemDef{
		Name:   prob.Name,
		Sets:   prob.Sets,
		Params: prob.Params,
		Finds:  prob.Finds,
		Span:   prob.Span,
	}
	for _, c := range prob.Constraints {
		expr := desugarExpr(c.Expr)
		if c.Guard != nil {
			guard := desugarExpr(c.Guard)
			expr = &model.BinaryOp{Left: guard, Op: model.TK_Implies, Right: expr, Span: c.Span}
		}
		out.Constraints = append(out.Constraints, &model.Constraint{Weight: c.Weight, Expr: expr, Span: c.Span})
	}
	if prob.Objective != nil {
		out.Objective = &model.Objective{Maximize: prob.Objective.Maximize, Expr: desugarExpr(prob.Objective.Expr), Span: prob.Objective.Span}
	}
	return out
}

func desugarExpr(expr model.Expr) model.Expr {
	if expr == nil {
		return nil
	}
	switch n := expr.(type) {
	case *model.UnaryOp:
		return &model.UnaryOp{Op: n.Op, Operand: desugarExpr(n.Operand), Span: n.Span}
	case *model.BinaryOp:
		return &model.BinaryOp{Left: desugarExpr(n.Left), Op: n.Op, Right: desugarExpr(n.Right), Span: n.Span}
	case *model.Conditional:
		return &model.Conditional{Cond: desugarExpr(n.Cond), Then: desugarExpr(n.Then), Else: desugarExpr(n.Else), Span: n.Span}
	case *model.Quantifier:
		return &model.Quantifier{Kind: n.Kind, Var: n.Var, Set: n.Set, Body: desugarExpr(n.Body), Span: n.Span}
	case *model.MethodCall:
		args := make([]model.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = desugarExpr(a)
		}
		return &model.MethodCall{Target: n.Target, Method: n.Method, MethodName: n.MethodName, Args: args, Span: n.Span}
	case *model.ParamRead:
		idx := make([]model.Expr, len(n.Indices))
		for i, a := range n.Indices {
			idx[i] = desugarExpr(a)
		}
		return &model.ParamRead{Name: n.Name, Indices: idx, Span: n.Span}
	case *model.Aggregate:
		return desugarAggregate(n)
	default:
		// Ident, IntLit, RealLit, BoolLit, SizeOf: leaves.
		return expr
	}
}

func desugarAggregate(n *model.Aggregate) model.Expr {
	switch n.Kind {
	case model.AggCount:
		if n.Body == nil {
			// `count(x in S)` or `count(x in S where c)` shorthand.
			if n.Where == nil {
				return &model.SizeOf{SetName: n.Set, Span: n.Span}
			}
			term := model.Expr(&model.Conditional{
				Cond: desugarExpr(n.Where),
				Then: &model.IntLit{Value: "1", Span: n.Span},
				Else: &model.IntLit{Value: "0", Span: n.Span},
				Span: n.Span,
			})
			return &model.Aggregate{Kind: model.AggSum, Body: term, Var: n.Var, Set: n.Set, Span: n.Span}
		}
		body := desugarExpr(n.Body)
		term := model.Expr(&model.Conditional{
			Cond: body,
			Then: &model.IntLit{Value: "1", Span: n.Span},
			Else: &model.IntLit{Value: "0", Span: n.Span},
			Span: n.Span,
		})
		if n.Where != nil {
			term = &model.Conditional{Cond: desugarExpr(n.Where), Then: term, Else: &model.IntLit{Value: "0", Span: n.Span}, Span: n.Span}
		}
		return &model.Aggregate{Kind: model.AggSum, Body: term, Var: n.Var, Set: n.Set, Span: n.Span}

	case model.AggAny:
		body := desugarExpr(n.Body)
		if n.Where != nil {
			body = &model.BinaryOp{Left: desugarExpr(n.Where), Op: model.TK_And, Right: body, Span: n.Span}
		}
		return &model.Quantifier{Kind: model.QuantExists, Var: n.Var, Set: n.Set, Body: body, Span: n.Span}

	case model.AggAll:
		body := desugarExpr(n.Body)
		if n.Where != nil {
			body = &model.BinaryOp{Left: desugarExpr(n.Where), Op: model.TK_Implies, Right: body, Span: n.Span}
		}
		return &model.Quantifier{Kind: model.QuantForall, Var: n.Var, Set: n.Set, Body: body, Span: n.Span}

	case model.AggSum:
		body := desugarExpr(n.Body)
		if n.Where == nil && n.Else == nil {
			return &model.Aggregate{Kind: model.AggSum, Body: body, Var: n.Var, Set: n.Set, Span: n.Span}
		}
		els := model.Expr(&model.RealLit{Value: "0", Span: n.Span})
		if n.Else != nil {
			els = desugarExpr(n.Else)
		}
		var term model.Expr = body
		if n.Where != nil {
			term = &model.Conditional{Cond: desugarExpr(n.Where), Then: body, Else: els, Span: n.Span}
		}
		return &model.Aggregate{Kind: model.AggSum, Body: term, Var: n.Var, Set: n.Set, Span: n.Span}

	default:
		return n
	}
}
