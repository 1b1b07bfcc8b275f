package compiler

import (
	"fmt"

	"github.com/qsol-lang/qsol/internal/model"
)

// maxElaborateDepth bounds macro/view inlining recursion; a chain deeper than
// this is almost certainly a cycle rather than legitimate nesting (spec §9
// "Macro expansion... cycles are reported, not infinite-looped").
const maxElaborateDepth = 64

// Elaborator expands user-defined unknowns (rep/laws/view), inlines
// predicate/function macro calls, and splices Comp(Bool)/Comp(Real)
// comprehension arguments into the macro bodies that consume them. It runs
// as a single top-down pass per problem; the elaborateExpr recursion itself
// re-visits freshly-substituted subtrees, giving the fixed-point behaviour
// spec §4.3 asks for, bounded by maxElaborateDepth.
//
// Grounded on the teacher's multi-pass compile walk (internal/compiler/
// compiler_prescan.go runs a pre-pass before the main walk in rage;
// internal/compiler/ast_walker.go is its generic AST-visiting helper) --
// re-targeted here at macro/unknown inlining instead of Python scope
// prescans.
type Elaborator struct {
	unknowns   map[string]*model.UnknownDef
	predicates map[string]*model.PredicateDef
	functions  map[string]*model.FunctionDef
	params     map[string]*model.ParamDecl // the problem currently being elaborated
	diags      model.Diagnostics
	stack      []string // macro/view names currently being inlined, for cycle detection
}

// NewElaborator indexes every unknown/predicate/function declared anywhere
// in prog (including imported and stdlib modules, already flattened into
// prog.Items by the loader).
func NewElaborator(prog *model.Program) *Elaborator {
	e := &Elaborator{
		unknowns:   map[string]*model.UnknownDef{},
		predicates: map[string]*model.PredicateDef{},
		functions:  map[string]*model.FunctionDef{},
	}
	for _, item := range prog.Items {
		switch it := item.(type) {
		case *model.UnknownDef:
			e.unknowns[it.Name] = it
		case *model.PredicateDef:
			e.predicates[it.Name] = it
		case *model.FunctionDef:
			e.functions[it.Name] = it
		}
	}
	return e
}

// Elaborate expands prob in place logically, returning a new *model.ProblemDef
// (the input is never mutated) plus any diagnostics (cycles -> QSOL2101).
func (e *Elaborator) Elaborate(prob *model.ProblemDef) (*model.ProblemDef, []model.Diagnostic) {
	out := &model.ProblemDef{Name: prob.Name, Span: prob.Span}
	out.Sets = prob.Sets
	out.Params = prob.Params
	e.params = map[string]*model.ParamDecl{}
	for _, p := range prob.Params {
		e.params[p.Name] = p
	}

	for _, f := range prob.Finds {
		if f.Kind != model.UKUser {
			out.Finds = append(out.Finds, f)
			continue
		}
		e.expandUserFind(f, out)
	}

	for _, c := range prob.Constraints {
		out.Constraints = append(out.Constraints, &model.Constraint{
			Weight: c.Weight,
			Expr:   e.elaborateExpr(c.Expr),
			Guard:  e.elaborateExprMaybe(c.Guard),
			Span:   c.Span,
		})
	}
	if prob.Objective != nil {
		out.Objective = &model.Objective{
			Maximize: prob.Objective.Maximize,
			Expr:     e.elaborateExpr(prob.Objective.Expr),
			Span:     prob.Objective.Span,
		}
	}
	out.ExtraObjectives = prob.ExtraObjectives

	return out, e.diags.All()
}

// expandUserFind substitutes find F: UnknownName(args...) with:
//   - one fresh primitive find "F.field" per rep field of UnknownName
//   - one fresh `must` constraint per law, with rep-field references
//     qualified to "F.field" and type params substituted with args
//
// A rep field can itself be Kind==UKUser (a composite unknown nested inside
// another); that child is expanded recursively, right here, while
// f.UserType is still on e.stack -- so a cyclic chain of unknown-to-unknown
// nesting is caught by the stack check below instead of recursing forever.
func (e *Elaborator) expandUserFind(f *model.FindDecl, out *model.ProblemDef) {
	def, ok := e.unknowns[f.UserType]
	if !ok {
		e.diags.Errorf(f.Span, model.CodeUnknownIdent, "unknown type %q is not declared", f.UserType)
		return
	}
	for _, name := range e.stack {
		if name == "unknown:"+f.UserType {
			e.diags.Errorf(f.Span, model.CodeShape, "unknown %q recursively nests itself", f.UserType)
			return
		}
	}
	if len(def.TypeParams) != len(f.UserArgs) {
		e.diags.Errorf(f.Span, model.CodeShape, "unknown %q expects %d type argument(s), got %d", f.UserType, len(def.TypeParams), len(f.UserArgs))
		return
	}
	if len(e.stack) >= maxElaborateDepth {
		e.diags.Errorf(f.Span, model.CodeShape, "unknown nesting too deep at %q (depth %d)", f.UserType, len(e.stack))
		return
	}

	e.stack = append(e.stack, "unknown:"+f.UserType)
	defer func() { e.stack = e.stack[:len(e.stack)-1] }()

	typeSub := map[string]string{}
	for i, tp := range def.TypeParams {
		typeSub[tp.Name] = f.UserArgs[i]
	}
	rename := map[string]string{}
	for _, rep := range def.Rep {
		qualified := f.Name + "." + rep.Name
		rename[rep.Name] = qualified
		child := &model.FindDecl{
			Name:     qualified,
			Kind:     rep.Kind,
			SubsetOf: substSet(rep.SubsetOf, typeSub),
			MapFrom:  substSet(rep.MapFrom, typeSub),
			MapTo:    substSet(rep.MapTo, typeSub),
			UserType: rep.UserType,
			UserArgs: substArgs(rep.UserArgs, typeSub),
			Span:     rep.Span,
		}
		if child.Kind == model.UKUser {
			e.expandUserFind(child, out)
		} else {
			out.Finds = append(out.Finds, child)
		}
	}
	for _, view := range def.View {
		rename[view.Name] = f.Name + "." + view.Name
	}
	for _, law := range def.Laws {
		rewritten := rewriteExpr(law, rename, typeSub)
		out.Constraints = append(out.Constraints, &model.Constraint{
			Weight: model.WeightMust,
			Expr:   e.elaborateExpr(rewritten),
			Span:   law.Pos(),
		})
	}
}

// substArgs applies substSet to every type-parameter actual in args, for
// forwarding a nested unknown's own type arguments through the enclosing
// unknown's substitution.
func substArgs(args []string, typeSub map[string]string) []string {
	if args == nil {
		return nil
	}
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = substSet(a, typeSub)
	}
	return out
}

func substSet(name string, typeSub map[string]string) string {
	if name == "" {
		return ""
	}
	if actual, ok := typeSub[name]; ok {
		return actual
	}
	return name
}

// elaborateExprMaybe is elaborateExpr that tolerates a nil input (guards are
// optional).
func (e *Elaborator) elaborateExprMaybe(expr model.Expr) model.Expr {
	if expr == nil {
		return nil
	}
	return e.elaborateExpr(expr)
}

// elaborateExpr recursively rewrites expr, inlining every MacroCall and
// view-shaped MethodCall it finds, and recursing into the inlined bodies so
// that chained macros (a macro body that calls another macro) resolve.
func (e *Elaborator) elaborateExpr(expr model.Expr) model.Expr {
	switch n := expr.(type) {
	case *model.MacroCall:
		return e.inlineMacroCall(n)
	case *model.MethodCall:
		if n.Method == model.MethodView {
			return e.inlineViewCall(n)
		}
		args := make([]model.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = e.elaborateExpr(a)
		}
		return &model.MethodCall{Target: n.Target, Method: n.Method, MethodName: n.MethodName, Args: args, Span: n.Span}
	case *model.UnaryOp:
		return &model.UnaryOp{Op: n.Op, Operand: e.elaborateExpr(n.Operand), Span: n.Span}
	case *model.BinaryOp:
		return &model.BinaryOp{Left: e.elaborateExpr(n.Left), Op: n.Op, Right: e.elaborateExpr(n.Right), Span: n.Span}
	case *model.Conditional:
		return &model.Conditional{Cond: e.elaborateExpr(n.Cond), Then: e.elaborateExpr(n.Then), Else: e.elaborateExpr(n.Else), Span: n.Span}
	case *model.Quantifier:
		return &model.Quantifier{Kind: n.Kind, Var: n.Var, Set: n.Set, Body: e.elaborateExpr(n.Body), Span: n.Span}
	case *model.Aggregate:
		out := &model.Aggregate{Kind: n.Kind, Var: n.Var, Set: n.Set, CompRef: n.CompRef, Span: n.Span}
		if n.Body != nil {
			out.Body = e.elaborateExpr(n.Body)
		}
		if n.Where != nil {
			out.Where = e.elaborateExpr(n.Where)
		}
		if n.Else != nil {
			out.Else = e.elaborateExpr(n.Else)
		}
		return out
	case *model.ParamRead:
		idx := make([]model.Expr, len(n.Indices))
		for i, a := range n.Indices {
			idx[i] = e.elaborateExpr(a)
		}
		return &model.ParamRead{Name: n.Name, Indices: idx, Span: n.Span}
	case *model.Comprehension:
		out := &model.Comprehension{Body: e.elaborateExpr(n.Body), Var: n.Var, Set: n.Set, Span: n.Span}
		if n.Where != nil {
			out.Where = e.elaborateExpr(n.Where)
		}
		return out
	default:
		// Ident, IntLit, RealLit, BoolLit, SizeOf: no children to rewrite.
		return expr
	}
}

func (e *Elaborator) inlineMacroCall(call *model.MacroCall) model.Expr {
	if len(e.stack) >= maxElaborateDepth {
		e.diags.Errorf(call.Span, model.CodeShape, "macro expansion cycle detected at %q (depth %d)", call.Name, len(e.stack))
		return &model.BoolLit{Value: false, Span: call.Span}
	}
	var params []model.MacroParam
	var body model.Expr
	if pd, ok := e.predicates[call.Name]; ok {
		params, body = pd.Params, pd.Body
	} else if fd, ok := e.functions[call.Name]; ok {
		params, body = fd.Params, fd.Body
	} else if pd, ok := e.params[call.Name]; ok && !pd.IsScalar() {
		// Cost(i,j) where Cost is a declared indexed param: a shape error
		// (wrong access form), not an undefined-name error.
		e.diags.Errorf(call.Span, model.CodeShape, "%q is a param indexed by %d set(s); read it as %s[...], not %s(...)", call.Name, len(pd.IndexSets), call.Name, call.Name)
		return &model.BoolLit{Value: false, Span: call.Span}
	} else {
		e.diags.Errorf(call.Span, model.CodeUnknownIdent, "undefined predicate/function %q", call.Name)
		return &model.BoolLit{Value: false, Span: call.Span}
	}
	for _, name := range e.stack {
		if name == call.Name {
			e.diags.Errorf(call.Span, model.CodeShape, "macro %q recursively calls itself", call.Name)
			return &model.BoolLit{Value: false, Span: call.Span}
		}
	}
	if len(params) != len(call.Args) {
		e.diags.Errorf(call.Span, model.CodeShape, "%q expects %d argument(s), got %d", call.Name, len(params), len(call.Args))
		return &model.BoolLit{Value: false, Span: call.Span}
	}

	e.stack = append(e.stack, call.Name)
	defer func() { e.stack = e.stack[:len(e.stack)-1] }()

	result := body
	for i, p := range params {
		actual := call.Args[i]
		switch p.Kind {
		case model.FormalCompBool, model.FormalCompReal:
			comp, ok := actual.(*model.Comprehension)
			if !ok {
				e.diags.Errorf(call.Span, model.CodeShape, "%q argument %d (%s) needs a `for ... in ...` comprehension", call.Name, i+1, p.Name)
				continue
			}
			result = spliceCompRef(result, p.Name, comp)
		default:
			result = substituteFormal(result, p.Name, actual)
		}
	}
	return e.elaborateExpr(result)
}

func (e *Elaborator) inlineViewCall(call *model.MethodCall) model.Expr {
	// call.Target is a find name; find its declared user unknown type via
	// the target's qualified-vs-bare name is resolved by the resolver in
	// practice, but the elaborator only needs the UnknownDef to pull the
	// view member body, so it searches every UnknownDef for a matching
	// view member name -- ambiguity across unrelated unknowns sharing a
	// member name is rejected by the resolver's scope checks downstream.
	if len(e.stack) >= maxElaborateDepth {
		e.diags.Errorf(call.Span, model.CodeShape, "view expansion cycle detected at %q (depth %d)", call.MethodName, len(e.stack))
		return &model.BoolLit{Value: false, Span: call.Span}
	}
	for _, def := range e.unknowns {
		for _, vm := range def.View {
			if vm.Name != call.MethodName {
				continue
			}
			for _, name := range e.stack {
				if name == "view:"+vm.Name {
					e.diags.Errorf(call.Span, model.CodeShape, "view %q recursively calls itself", vm.Name)
					return &model.BoolLit{Value: false, Span: call.Span}
				}
			}
			if len(vm.Params) != len(call.Args) {
				e.diags.Errorf(call.Span, model.CodeShape, "%s.%s expects %d argument(s), got %d", call.Target, call.MethodName, len(vm.Params), len(call.Args))
				return &model.BoolLit{Value: false, Span: call.Span}
			}
			rename := map[string]string{}
			for _, rep := range def.Rep {
				rename[rep.Name] = call.Target + "." + rep.Name
			}
			body := rewriteExpr(vm.Body, rename, nil)
			for i, p := range vm.Params {
				actual := call.Args[i]
				switch p.Kind {
				case model.FormalCompBool, model.FormalCompReal:
					if comp, ok := actual.(*model.Comprehension); ok {
						body = spliceCompRef(body, p.Name, comp)
					}
				default:
					body = substituteFormal(body, p.Name, actual)
				}
			}
			e.stack = append(e.stack, "view:"+vm.Name)
			defer func() { e.stack = e.stack[:len(e.stack)-1] }()
			return e.elaborateExpr(body)
		}
	}
	e.diags.Errorf(call.Span, model.CodeUnknownIdent, "no view member %q found on %q", call.MethodName, call.Target)
	return &model.BoolLit{Value: false, Span: call.Span}
}

// substituteFormal deep-copies expr, replacing every bare Ident named
// formal with actual.
func substituteFormal(expr model.Expr, formal string, actual model.Expr) model.Expr {
	if expr == nil {
		return nil
	}
	switch n := expr.(type) {
	case *model.Ident:
		if n.Name == formal {
			return actual
		}
		return n
	case *model.UnaryOp:
		return &model.UnaryOp{Op: n.Op, Operand: substituteFormal(n.Operand, formal, actual), Span: n.Span}
	case *model.BinaryOp:
		return &model.BinaryOp{Left: substituteFormal(n.Left, formal, actual), Op: n.Op, Right: substituteFormal(n.Right, formal, actual), Span: n.Span}
	case *model.Conditional:
		return &model.Conditional{Cond: substituteFormal(n.Cond, formal, actual), Then: substituteFormal(n.Then, formal, actual), Else: substituteFormal(n.Else, formal, actual), Span: n.Span}
	case *model.Quantifier:
		return &model.Quantifier{Kind: n.Kind, Var: n.Var, Set: n.Set, Body: substituteFormal(n.Body, formal, actual), Span: n.Span}
	case *model.Aggregate:
		out := &model.Aggregate{Kind: n.Kind, Var: n.Var, Set: n.Set, CompRef: n.CompRef, Span: n.Span}
		out.Body = substituteFormal(n.Body, formal, actual)
		out.Where = substituteFormal(n.Where, formal, actual)
		out.Else = substituteFormal(n.Else, formal, actual)
		return out
	case *model.ParamRead:
		idx := make([]model.Expr, len(n.Indices))
		for i, a := range n.Indices {
			idx[i] = substituteFormal(a, formal, actual)
		}
		return &model.ParamRead{Name: n.Name, Indices: idx, Span: n.Span}
	case *model.MethodCall:
		args := make([]model.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = substituteFormal(a, formal, actual)
		}
		return &model.MethodCall{Target: n.Target, Method: n.Method, MethodName: n.MethodName, Args: args, Span: n.Span}
	case *model.MacroCall:
		args := make([]model.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = substituteFormal(a, formal, actual)
		}
		return &model.MacroCall{Name: n.Name, Args: args, Span: n.Span}
	case *model.Comprehension:
		return &model.Comprehension{Body: substituteFormal(n.Body, formal, actual), Var: n.Var, Set: n.Set, Where: substituteFormal(n.Where, formal, actual), Span: n.Span}
	default:
		return expr
	}
}

// spliceCompRef deep-copies body, replacing the Aggregate node whose
// CompRef == formal with comp's Var/Set/Where/Body.
func spliceCompRef(body model.Expr, formal string, comp *model.Comprehension) model.Expr {
	if body == nil {
		return nil
	}
	switch n := body.(type) {
	case *model.Aggregate:
		if n.CompRef == formal {
			return &model.Aggregate{Kind: n.Kind, Body: comp.Body, Var: comp.Var, Set: comp.Set, Where: comp.Where, Span: n.Span}
		}
		out := &model.Aggregate{Kind: n.Kind, Var: n.Var, Set: n.Set, CompRef: n.CompRef, Span: n.Span}
		out.Body = spliceCompRef(n.Body, formal, comp)
		out.Where = spliceCompRef(n.Where, formal, comp)
		out.Else = spliceCompRef(n.Else, formal, comp)
		return out
	case *model.UnaryOp:
		return &model.UnaryOp{Op: n.Op, Operand: spliceCompRef(n.Operand, formal, comp), Span: n.Span}
	case *model.BinaryOp:
		return &model.BinaryOp{Left: spliceCompRef(n.Left, formal, comp), Op: n.Op, Right: spliceCompRef(n.Right, formal, comp), Span: n.Span}
	case *model.Conditional:
		return &model.Conditional{Cond: spliceCompRef(n.Cond, formal, comp), Then: spliceCompRef(n.Then, formal, comp), Else: spliceCompRef(n.Else, formal, comp), Span: n.Span}
	case *model.Quantifier:
		return &model.Quantifier{Kind: n.Kind, Var: n.Var, Set: n.Set, Body: spliceCompRef(n.Body, formal, comp), Span: n.Span}
	case *model.MethodCall:
		args := make([]model.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = spliceCompRef(a, formal, comp)
		}
		return &model.MethodCall{Target: n.Target, Method: n.Method, MethodName: n.MethodName, Args: args, Span: n.Span}
	case *model.MacroCall:
		args := make([]model.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = spliceCompRef(a, formal, comp)
		}
		return &model.MacroCall{Name: n.Name, Args: args, Span: n.Span}
	default:
		return body
	}
}

// rewriteExpr deep-copies expr, qualifying MethodCall targets named in
// rename and substituting set names named in typeSub wherever a set name
// appears (SizeOf, Quantifier/Aggregate/Comprehension.Set).
func rewriteExpr(expr model.Expr, rename, typeSub map[string]string) model.Expr {
	if expr == nil {
		return nil
	}
	subSet := func(name string) string {
		if typeSub == nil {
			return name
		}
		if actual, ok := typeSub[name]; ok {
			return actual
		}
		return name
	}
	switch n := expr.(type) {
	case *model.SizeOf:
		return &model.SizeOf{SetName: subSet(n.SetName), Span: n.Span}
	case *model.UnaryOp:
		return &model.UnaryOp{Op: n.Op, Operand: rewriteExpr(n.Operand, rename, typeSub), Span: n.Span}
	case *model.BinaryOp:
		return &model.BinaryOp{Left: rewriteExpr(n.Left, rename, typeSub), Op: n.Op, Right: rewriteExpr(n.Right, rename, typeSub), Span: n.Span}
	case *model.Conditional:
		return &model.Conditional{Cond: rewriteExpr(n.Cond, rename, typeSub), Then: rewriteExpr(n.Then, rename, typeSub), Else: rewriteExpr(n.Else, rename, typeSub), Span: n.Span}
	case *model.Quantifier:
		return &model.Quantifier{Kind: n.Kind, Var: n.Var, Set: subSet(n.Set), Body: rewriteExpr(n.Body, rename, typeSub), Span: n.Span}
	case *model.Aggregate:
		out := &model.Aggregate{Kind: n.Kind, Var: n.Var, Set: subSet(n.Set), CompRef: n.CompRef, Span: n.Span}
		out.Body = rewriteExpr(n.Body, rename, typeSub)
		out.Where = rewriteExpr(n.Where, rename, typeSub)
		out.Else = rewriteExpr(n.Else, rename, typeSub)
		return out
	case *model.ParamRead:
		idx := make([]model.Expr, len(n.Indices))
		for i, a := range n.Indices {
			idx[i] = rewriteExpr(a, rename, typeSub)
		}
		return &model.ParamRead{Name: n.Name, Indices: idx, Span: n.Span}
	case *model.MethodCall:
		target := n.Target
		if actual, ok := rename[target]; ok {
			target = actual
		}
		args := make([]model.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = rewriteExpr(a, rename, typeSub)
		}
		return &model.MethodCall{Target: target, Method: n.Method, MethodName: n.MethodName, Args: args, Span: n.Span}
	case *model.MacroCall:
		args := make([]model.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = rewriteExpr(a, rename, typeSub)
		}
		return &model.MacroCall{Name: n.Name, Args: args, Span: n.Span}
	case *model.Comprehension:
		return &model.Comprehension{Body: rewriteExpr(n.Body, rename, typeSub), Var: n.Var, Set: subSet(n.Set), Where: rewriteExpr(n.Where, rename, typeSub), Span: n.Span}
	default:
		return expr
	}
}

// ElaborateProgram is the package-level entry point used by the pipeline:
// it locates the program's single ProblemDef and elaborates it.
func ElaborateProgram(prog *model.Program) (*model.ProblemDef, []model.Diagnostic) {
	var prob *model.ProblemDef
	for _, item := range prog.Items {
		if p, ok := item.(*model.ProblemDef); ok {
			if prob != nil {
				return nil, []model.Diagnostic{{
					Severity: model.SevError,
					Code:     model.CodeShape,
					Message:  fmt.Sprintf("multiple problem blocks found (%q and %q); a compilation unit declares exactly one", prob.Name, p.Name),
					Span:     p.Span,
				}}
			}
			prob = p
		}
	}
	if prob == nil {
		return nil, []model.Diagnostic{{Severity: model.SevError, Code: model.CodeShape, Message: "no problem block found in compilation unit"}}
	}
	e := NewElaborator(prog)
	return e.Elaborate(prob)
}
