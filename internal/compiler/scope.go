package compiler

import "github.com/qsol-lang/qsol/internal/model"

// ProblemScope is the set of names declared directly in a problem body:
// sets, params, and finds. Built once per problem and shared by every
// Scope pushed while walking that problem's constraints/objective.
//
// Grounded on the teacher's SymbolTable (internal/compiler/symtab.go in
// rage), narrowed to QSOL's three declaration namespaces.
type ProblemScope struct {
	Sets   map[string]*model.SetDecl
	Params map[string]*model.ParamDecl
	Finds  map[string]*model.FindDecl
}

func newProblemScope() *ProblemScope {
	return &ProblemScope{
		Sets:   map[string]*model.SetDecl{},
		Params: map[string]*model.ParamDecl{},
		Finds:  map[string]*model.FindDecl{},
	}
}

// Scope is a chain of iterator-variable bindings rooted at a ProblemScope.
// Pushed by forall/exists/sum/count/any/all/comprehension bodies.
type Scope struct {
	Problem *ProblemScope
	Vars    map[string]model.Type
	Outer   *Scope
}

func rootScope(ps *ProblemScope) *Scope {
	return &Scope{Problem: ps}
}

func (s *Scope) push(name string, t model.Type) *Scope {
	return &Scope{Problem: s.Problem, Vars: map[string]model.Type{name: t}, Outer: s}
}

// lookupIterator walks the local-variable chain only (not params/finds).
func (s *Scope) lookupIterator(name string) (model.Type, bool) {
	for cur := s; cur != nil; cur = cur.Outer {
		if cur.Vars != nil {
			if t, ok := cur.Vars[name]; ok {
				return t, true
			}
		}
	}
	return model.Invalid, false
}

// resolveName reports whether name is bound at all in this scope (as an
// iterator, a scalar param, or a find), and, when it carries a value type
// directly (iterator or scalar param), that type.
func (s *Scope) resolveName(name string) (t model.Type, kind nameKind, ok bool) {
	if t, found := s.lookupIterator(name); found {
		return t, nameIterator, true
	}
	if p, found := s.Problem.Params[name]; found && p.IsScalar() {
		return paramValueType(p), nameParam, true
	}
	if p, found := s.Problem.Params[name]; found && !p.IsScalar() {
		return model.Invalid, nameParam, true // exists, but indexed: bare use is a shape error
	}
	if _, found := s.Problem.Finds[name]; found {
		return model.Invalid, nameFind, true // exists, but has no bare value; only .has/.is are valid
	}
	return model.Invalid, nameNone, false
}

type nameKind int

const (
	nameNone nameKind = iota
	nameIterator
	nameParam
	nameFind
)

func paramValueType(p *model.ParamDecl) model.Type {
	switch p.Value {
	case model.VTBool:
		return model.Bool
	case model.VTReal:
		return model.Real
	case model.VTInt:
		return model.Type{Kind: model.TInt, IntLo: 0, IntHi: 0}
	case model.VTElem:
		return model.Elem(p.ElemSet)
	default:
		return model.Invalid
	}
}

// buildProblemScope collects a problem's own set/param/find names, flagging
// any duplicate declaration within a single namespace as QSOL2002 (spec
// §4.4 "Resolver ... duplicate-name detection").
func buildProblemScope(prob *model.ProblemDef, diags *model.Diagnostics) *ProblemScope {
	ps := newProblemScope()
	for _, s := range prob.Sets {
		if _, dup := ps.Sets[s.Name]; dup {
			diags.Errorf(s.Span, model.CodeDuplicateDecl, "duplicate set %q", s.Name)
			continue
		}
		ps.Sets[s.Name] = s
	}
	for _, p := range prob.Params {
		if _, dup := ps.Params[p.Name]; dup {
			diags.Errorf(p.Span, model.CodeDuplicateDecl, "duplicate param %q", p.Name)
			continue
		}
		ps.Params[p.Name] = p
	}
	for _, f := range prob.Finds {
		if _, dup := ps.Finds[f.Name]; dup {
			diags.Errorf(f.Span, model.CodeDuplicateDecl, "duplicate find %q", f.Name)
			continue
		}
		ps.Finds[f.Name] = f
	}
	return ps
}
