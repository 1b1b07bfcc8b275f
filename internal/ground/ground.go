// Package ground implements the Grounder (spec §4.9): it binds a Kernel IR
// problem against a concrete scenario payload, expands every quantifier and
// aggregate over its finite domain in declaration order, and emits Ground
// IR -- a finite expression tree whose only variable references are to
// primary decision binaries (model.VarRef).
//
// Grounded on the teacher's iteration/dispatch machinery
// (internal/runtime/iteration.go, generators_dispatch.go in rage): "walk a
// finite iterable in a stable order, with a suspend/checkpoint per step"
// generalizes directly from Python generator semantics to quantifier/
// aggregate domain expansion, with context.Context cancellation at each
// step standing in for the teacher's generator-suspend points (spec §5).
package ground

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/qsol-lang/qsol/internal/config"
	"github.com/qsol-lang/qsol/internal/kernel"
	"github.com/qsol-lang/qsol/internal/model"
)

// Constraint is one grounded constraint.
type Constraint struct {
	Weight model.ConstraintWeight
	Expr   model.Expr
}

// Program is the Ground IR for a single problem: every expression here is
// finite and built only from constants and model.VarRef leaves.
type Program struct {
	Name        string
	Vars        []Var
	Constraints []Constraint
	Objective   model.Expr
	MappingLaws []MappingLaw
}

// Var is one primary decision binary, its stable label, and its
// QSOL-level meaning string (spec §6 "variable label grammar"; spec §4.10
// "varmap"). Label is what the backend and runtime see; Meaning is what
// varmap.json records.
type Var struct {
	Label   string
	Meaning string
}

// MappingLaw is the structural one-hot constraint every `Mapping(A->B)`
// find must satisfy: `sum_b F.is[a,b] = 1` for each a in A (spec §4.10
// "Mapping one-hot law").
type MappingLaw struct {
	FindName string
	A        string // the fixed a
	Vars     []string
}

type groundError struct {
	code    string
	message string
}

func (e *groundError) Error() string { return e.message }

// Ground binds prob against payload and expands it into Ground IR.
// Returns diagnostics instead of a Go error for anything scenario- or
// shape-related (QSOL2201/QSOL2101), so callers fold it into the same
// collected-diagnostics flow as every earlier stage.
func Ground(ctx context.Context, prob *kernel.Program, payload *config.ScenarioPayload) (*Program, []model.Diagnostic) {
	g := &grounder{prob: prob, payload: payload}

	for _, s := range prob.Sets {
		if _, ok := payload.Sets[s.Name]; !ok {
			g.diags.Errorf(s.Span, model.CodeScenarioData, "scenario payload is missing set %q", s.Name)
		}
	}
	for _, p := range prob.Params {
		if _, ok := payload.Params[p.Name]; !ok && !p.HasDefault {
			g.diags.Errorf(p.Span, model.CodeScenarioData, "scenario payload is missing required param %q", p.Name)
		}
	}
	if g.diags.HasErrors() {
		return nil, g.diags.All()
	}

	out := &Program{Name: prob.Name}
	for _, f := range prob.Finds {
		g.emitFindVars(ctx, f, out)
	}

	for _, c := range prob.Constraints {
		if err := ctx.Err(); err != nil {
			g.diags.Errorf(model.Span{}, model.CodeScenarioData, "grounding cancelled: %s", err)
			break
		}
		expr, err := g.groundTree(ctx, c.Expr, nil)
		if err != nil {
			g.reportGroundError(err, c.Expr.Pos())
			continue
		}
		out.Constraints = append(out.Constraints, Constraint{Weight: c.Weight, Expr: expr})
	}
	if prob.Objective != nil {
		expr, err := g.groundTree(ctx, prob.Objective, nil)
		if err != nil {
			g.reportGroundError(err, prob.Objective.Pos())
		} else {
			out.Objective = expr
		}
	}
	out.MappingLaws = g.mappingLaws

	if g.diags.HasErrors() {
		return nil, g.diags.All()
	}
	return out, g.diags.All()
}

func (g *grounder) reportGroundError(err error, span model.Span) {
	if ge, ok := err.(*groundError); ok {
		g.diags.Errorf(span, ge.code, "%s", ge.message)
		return
	}
	g.diags.Errorf(span, model.CodeScenarioData, "%s", err)
}

type grounder struct {
	prob        *kernel.Program
	payload     *config.ScenarioPayload
	diags       model.Diagnostics
	mappingLaws []MappingLaw
}

// emitFindVars emits `F.has[s]` for every s in a Subset find's domain, or
// `F.is[a,b]` for every (a,b) in a Mapping find's domain plus the
// structural one-hot law for each a (spec §4.9, §4.10).
func (g *grounder) emitFindVars(ctx context.Context, f *model.FindDecl, out *Program) {
	switch f.Kind {
	case model.UKSubset:
		elems, ok := g.payload.Sets[f.SubsetOf]
		if !ok {
			g.diags.Errorf(f.Span, model.CodeScenarioData, "find %q: set %q not bound in scenario", f.Name, f.SubsetOf)
			return
		}
		for _, s := range elems {
			label := fmt.Sprintf("%s.has[%s]", f.Name, s)
			out.Vars = append(out.Vars, Var{Label: label, Meaning: fmt.Sprintf("%s.has(%s)", f.Name, s)})
		}
	case model.UKMapping:
		as, aok := g.payload.Sets[f.MapFrom]
		bs, bok := g.payload.Sets[f.MapTo]
		if !aok || !bok {
			g.diags.Errorf(f.Span, model.CodeScenarioData, "find %q: set %q or %q not bound in scenario", f.Name, f.MapFrom, f.MapTo)
			return
		}
		for _, a := range as {
			var lawVars []string
			for _, b := range bs {
				label := fmt.Sprintf("%s.is[%s,%s]", f.Name, a, b)
				out.Vars = append(out.Vars, Var{Label: label, Meaning: fmt.Sprintf("%s.is(%s,%s)", f.Name, a, b)})
				lawVars = append(lawVars, label)
			}
			g.mappingLaws = append(g.mappingLaws, MappingLaw{FindName: f.Name, A: a, Vars: lawVars})
		}
	default:
		g.diags.Errorf(f.Span, model.CodeShape, "find %q: unexpanded user-unknown reached the grounder", f.Name)
	}
	_ = ctx
}

// env binds quantifier/aggregate iterator variable names to a concrete
// element id for the duration of one expansion step.
type env map[string]string

func (e env) with(name, id string) env {
	next := make(env, len(e)+1)
	for k, v := range e {
		next[k] = v
	}
	next[name] = id
	return next
}

// groundTree recursively expands expr into a finite tree of constants and
// model.VarRef leaves. Desugar/Lower must already have run, so no guards,
// count/any/all, filtered/defaulted sums, or macro calls remain.
func (g *grounder) groundTree(ctx context.Context, expr model.Expr, e env) (model.Expr, error) {
	if err := ctx.Err(); err != nil {
		return nil, &groundError{code: model.CodeScenarioData, message: "grounding cancelled: " + err.Error()}
	}
	switch n := expr.(type) {
	case *model.IntLit, *model.RealLit, *model.BoolLit:
		return expr, nil
	case *model.Ident:
		return g.groundScalarIdent(n, e)
	case *model.ParamRead:
		return g.groundParamRead(n, e)
	case *model.SizeOf:
		elems, ok := g.payload.Sets[n.SetName]
		if !ok {
			return nil, &groundError{code: model.CodeScenarioData, message: fmt.Sprintf("size(%s): set not bound in scenario", n.SetName)}
		}
		return &model.IntLit{Value: strconv.Itoa(len(elems)), Span: n.Span}, nil
	case *model.UnaryOp:
		operand, err := g.groundTree(ctx, n.Operand, e)
		if err != nil {
			return nil, err
		}
		return foldUnary(n.Op, operand, n.Span), nil
	case *model.BinaryOp:
		left, err := g.groundTree(ctx, n.Left, e)
		if err != nil {
			return nil, err
		}
		right, err := g.groundTree(ctx, n.Right, e)
		if err != nil {
			return nil, err
		}
		return foldBinary(n.Op, left, right, n.Span), nil
	case *model.Conditional:
		cond, err := g.groundTree(ctx, n.Cond, e)
		if err != nil {
			return nil, err
		}
		then, err := g.groundTree(ctx, n.Then, e)
		if err != nil {
			return nil, err
		}
		els, err := g.groundTree(ctx, n.Else, e)
		if err != nil {
			return nil, err
		}
		if b, ok := cond.(*model.BoolLit); ok {
			if b.Value {
				return then, nil
			}
			return els, nil
		}
		return &model.Conditional{Cond: cond, Then: then, Else: els, Span: n.Span}, nil
	case *model.Quantifier:
		elems, ok := g.payload.Sets[n.Set]
		if !ok {
			return nil, &groundError{code: model.CodeScenarioData, message: fmt.Sprintf("%s in %s: set not bound in scenario", n.Var, n.Set)}
		}
		op := model.TK_And
		if n.Kind == model.QuantExists {
			op = model.TK_Or
		}
		var acc model.Expr
		for _, id := range elems {
			term, err := g.groundTree(ctx, n.Body, e.with(n.Var, id))
			if err != nil {
				return nil, err
			}
			acc = foldChain(op, acc, term, n.Span)
		}
		if acc == nil {
			return &model.BoolLit{Value: n.Kind == model.QuantForall, Span: n.Span}, nil
		}
		return acc, nil
	case *model.Aggregate:
		if n.Kind != model.AggSum {
			return nil, &groundError{code: model.CodeShape, message: "non-sum aggregate reached the grounder; desugar should have eliminated it"}
		}
		elems, ok := g.payload.Sets[n.Set]
		if !ok {
			return nil, &groundError{code: model.CodeScenarioData, message: fmt.Sprintf("%s in %s: set not bound in scenario", n.Var, n.Set)}
		}
		var acc model.Expr
		for _, id := range elems {
			term, err := g.groundTree(ctx, n.Body, e.with(n.Var, id))
			if err != nil {
				return nil, err
			}
			acc = foldChain(model.TK_Plus, acc, term, n.Span)
		}
		if acc == nil {
			return &model.RealLit{Value: "0", Span: n.Span}, nil
		}
		return acc, nil
	case *model.MethodCall:
		return g.groundMethodCall(n, e)
	default:
		return nil, &groundError{code: model.CodeShape, message: fmt.Sprintf("unexpected node %T reached the grounder", expr)}
	}
}

func (g *grounder) groundMethodCall(n *model.MethodCall, e env) (model.Expr, error) {
	ids := make([]string, len(n.Args))
	for i, a := range n.Args {
		id, err := g.evalElem(a, e)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	var label string
	switch n.Method {
	case model.MethodHas:
		label = fmt.Sprintf("%s.has[%s]", n.Target, ids[0])
	case model.MethodIs:
		label = fmt.Sprintf("%s.is[%s,%s]", n.Target, ids[0], ids[1])
	default:
		return nil, &groundError{code: model.CodeShape, message: fmt.Sprintf("%s: unresolved view call reached the grounder", n.Target)}
	}
	return &model.VarRef{Label: label, Span: n.Span}, nil
}

// evalElem resolves expr to a concrete set-element id: an iterator variable
// bound in e, or an Elem(S)-typed param lookup validated against S (spec
// §4.9 "validate ... members of S").
func (g *grounder) evalElem(expr model.Expr, e env) (string, error) {
	switch n := expr.(type) {
	case *model.Ident:
		if id, ok := e[n.Name]; ok {
			return id, nil
		}
		return "", &groundError{code: model.CodeScenarioData, message: fmt.Sprintf("%q is not a bound element reference", n.Name)}
	case *model.ParamRead:
		p := findParam(g.prob.Params, n.Name)
		if p == nil || p.Value != model.VTElem {
			return "", &groundError{code: model.CodeShape, message: fmt.Sprintf("%q is not an Elem-valued param", n.Name)}
		}
		raw, err := g.lookupParam(n, e)
		if err != nil {
			return "", err
		}
		id, ok := raw.(string)
		if !ok {
			return "", &groundError{code: model.CodeScenarioData, message: fmt.Sprintf("param %q: expected a set-element id string", n.Name)}
		}
		if !memberOf(g.payload.Sets[p.ElemSet], id) {
			return "", &groundError{code: model.CodeScenarioData, message: fmt.Sprintf("param %q: value %q is not a member of %s", n.Name, id, p.ElemSet)}
		}
		return id, nil
	default:
		return "", &groundError{code: model.CodeShape, message: "expected a set-element reference"}
	}
}

func (g *grounder) groundScalarIdent(n *model.Ident, e env) (model.Expr, error) {
	if id, ok := e[n.Name]; ok {
		// An Elem-typed iterator used directly (not through .has/.is) --
		// only valid as an Elem(S) param default comparison, which QSOL
		// does not support; treat as a shape error.
		_ = id
		return nil, &groundError{code: model.CodeShape, message: fmt.Sprintf("%q is an element variable and cannot be used directly as a value", n.Name)}
	}
	p := findParam(g.prob.Params, n.Name)
	if p == nil || !p.IsScalar() {
		return nil, &groundError{code: model.CodeShape, message: fmt.Sprintf("%q is not a bound scalar param", n.Name)}
	}
	raw, ok := g.payload.Params[n.Name]
	if !ok {
		if p.HasDefault {
			return g.groundTree(context.Background(), p.Default, nil)
		}
		return nil, &groundError{code: model.CodeScenarioData, message: fmt.Sprintf("missing required param %q", n.Name)}
	}
	return scalarToLit(raw, p.Value, n.Span)
}

func (g *grounder) groundParamRead(n *model.ParamRead, e env) (model.Expr, error) {
	p := findParam(g.prob.Params, n.Name)
	if p == nil {
		return nil, &groundError{code: model.CodeShape, message: fmt.Sprintf("%q is not a declared param", n.Name)}
	}
	raw, err := g.lookupParam(n, e)
	if err != nil {
		if p.HasDefault {
			return g.groundTree(context.Background(), p.Default, nil)
		}
		return nil, err
	}
	return scalarToLit(raw, p.Value, n.Span)
}

// lookupParam walks the nested-map scenario value for an indexed param,
// evaluating each index expression to a concrete element id first.
func (g *grounder) lookupParam(n *model.ParamRead, e env) (interface{}, error) {
	raw, ok := g.payload.Params[n.Name]
	if !ok {
		return nil, &groundError{code: model.CodeScenarioData, message: fmt.Sprintf("missing required param %q", n.Name)}
	}
	cur := raw
	for _, idxExpr := range n.Indices {
		id, err := g.evalElem(idxExpr, e)
		if err != nil {
			return nil, err
		}
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, &groundError{code: model.CodeScenarioData, message: fmt.Sprintf("param %q: scenario value is not nested deeply enough for its index sets", n.Name)}
		}
		cur, ok = m[id]
		if !ok {
			return nil, &groundError{code: model.CodeScenarioData, message: fmt.Sprintf("param %q: no entry for index %q", n.Name, id)}
		}
	}
	return cur, nil
}

func scalarToLit(raw interface{}, vt model.ValueType, span model.Span) (model.Expr, error) {
	switch vt {
	case model.VTBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, &groundError{code: model.CodeScenarioData, message: "expected a Bool scenario value"}
		}
		return &model.BoolLit{Value: b, Span: span}, nil
	case model.VTReal:
		f, ok := toFloat(raw)
		if !ok {
			return nil, &groundError{code: model.CodeScenarioData, message: "expected a Real scenario value"}
		}
		return &model.RealLit{Value: strconv.FormatFloat(f, 'g', -1, 64), Span: span}, nil
	case model.VTInt:
		f, ok := toFloat(raw)
		if !ok {
			return nil, &groundError{code: model.CodeScenarioData, message: "expected an Int scenario value"}
		}
		return &model.IntLit{Value: strconv.Itoa(int(f)), Span: span}, nil
	default:
		return nil, &groundError{code: model.CodeShape, message: "unsupported scalar param value type"}
	}
}

func toFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func findParam(params []*model.ParamDecl, name string) *model.ParamDecl {
	for _, p := range params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func memberOf(set []string, id string) bool {
	for _, s := range set {
		if s == id {
			return true
		}
	}
	return false
}

func foldChain(op model.TokenKind, acc, term model.Expr, span model.Span) model.Expr {
	if acc == nil {
		return term
	}
	return foldBinary(op, acc, term, span)
}

// foldUnary folds `not true/false` and `-<literal>` eagerly; anything else
// (a VarRef operand) stays symbolic for the backend.
func foldUnary(op model.TokenKind, operand model.Expr, span model.Span) model.Expr {
	switch op {
	case model.TK_Not:
		if b, ok := operand.(*model.BoolLit); ok {
			return &model.BoolLit{Value: !b.Value, Span: span}
		}
	case model.TK_Minus:
		if f, ok := numLit(operand); ok {
			return &model.RealLit{Value: strconv.FormatFloat(-f, 'g', -1, 64), Span: span}
		}
	}
	return &model.UnaryOp{Op: op, Operand: operand, Span: span}
}

// foldBinary folds arithmetic/comparison/boolean ops when both sides are
// already constant literals; otherwise it returns a symbolic node for the
// backend to encode against VarRef leaves.
func foldBinary(op model.TokenKind, left, right model.Expr, span model.Span) model.Expr {
	if lf, lok := numLit(left); lok {
		if rf, rok := numLit(right); rok {
			switch op {
			case model.TK_Plus:
				return &model.RealLit{Value: fmtF(lf + rf), Span: span}
			case model.TK_Minus:
				return &model.RealLit{Value: fmtF(lf - rf), Span: span}
			case model.TK_Star:
				return &model.RealLit{Value: fmtF(lf * rf), Span: span}
			case model.TK_Slash:
				if rf != 0 {
					return &model.RealLit{Value: fmtF(lf / rf), Span: span}
				}
			case model.TK_Eq:
				return &model.BoolLit{Value: lf == rf, Span: span}
			case model.TK_Ne:
				return &model.BoolLit{Value: lf != rf, Span: span}
			case model.TK_Lt:
				return &model.BoolLit{Value: lf < rf, Span: span}
			case model.TK_Le:
				return &model.BoolLit{Value: lf <= rf, Span: span}
			case model.TK_Gt:
				return &model.BoolLit{Value: lf > rf, Span: span}
			case model.TK_Ge:
				return &model.BoolLit{Value: lf >= rf, Span: span}
			}
		}
	}
	if lb, lok := left.(*model.BoolLit); lok {
		if rb, rok := right.(*model.BoolLit); rok {
			switch op {
			case model.TK_And:
				return &model.BoolLit{Value: lb.Value && rb.Value, Span: span}
			case model.TK_Or:
				return &model.BoolLit{Value: lb.Value || rb.Value, Span: span}
			case model.TK_Implies:
				return &model.BoolLit{Value: !lb.Value || rb.Value, Span: span}
			}
		}
	}
	// Short-circuit fold when one side of and/or is already decided.
	if op == model.TK_And {
		if lb, ok := left.(*model.BoolLit); ok && !lb.Value {
			return &model.BoolLit{Value: false, Span: span}
		}
		if rb, ok := right.(*model.BoolLit); ok && !rb.Value {
			return &model.BoolLit{Value: false, Span: span}
		}
	}
	if op == model.TK_Or {
		if lb, ok := left.(*model.BoolLit); ok && lb.Value {
			return &model.BoolLit{Value: true, Span: span}
		}
		if rb, ok := right.(*model.BoolLit); ok && rb.Value {
			return &model.BoolLit{Value: true, Span: span}
		}
	}
	return &model.BinaryOp{Left: left, Op: op, Right: right, Span: span}
}

func numLit(e model.Expr) (float64, bool) {
	switch n := e.(type) {
	case *model.IntLit:
		f, err := strconv.ParseFloat(n.Value, 64)
		return f, err == nil
	case *model.RealLit:
		f, err := strconv.ParseFloat(n.Value, 64)
		return f, err == nil
	case *model.BoolLit:
		if n.Value {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func fmtF(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

// SortedSetNames returns a problem's declared set names in sorted order,
// useful for deterministic logging/reporting.
func SortedSetNames(prob *kernel.Program) []string {
	names := make([]string, 0, len(prob.Sets))
	for _, s := range prob.Sets {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}
