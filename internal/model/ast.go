package model

// Node is the base interface for all AST nodes.
type Node interface {
	Pos() Span
}

// Expr is the interface for all expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Item is a top-level declaration (spec §3 Program AST).
type Item interface {
	Node
	itemNode()
}

// Decl is a declaration nested inside a problem (set/param/find/constraint/objective).
type Decl interface {
	Node
	declNode()
}

// Program is an ordered list of top-level items, produced by the module
// loader concatenating the root file with every transitively imported module.
type Program struct {
	Items []Item
	Span  Span
}

func (p *Program) Pos() Span { return p.Span }

// ----------------------------------------------------------------------------
// Top-level items
// ----------------------------------------------------------------------------

// UseImport is a `use a.b.c;` module import.
type UseImport struct {
	Path []string
	Span Span
}

func (u *UseImport) Pos() Span { return u.Span }
func (u *UseImport) itemNode() {}

// TypeParam is a formal type parameter of a user-defined unknown (a set name).
type TypeParam struct {
	Name string
}

// UnknownDef declares a user-defined composite unknown: `unknown Name(params) { rep {...} laws {...} view {...} }`.
type UnknownDef struct {
	Name       string
	TypeParams []TypeParam
	Rep        []*FindDecl
	Laws       []Expr
	View       []*ViewMember
	Span       Span
}

func (u *UnknownDef) Pos() Span { return u.Span }
func (u *UnknownDef) itemNode() {}

// ViewMember is a predicate/function exposed through an unknown's public view.
type ViewMember struct {
	Name   string
	Params []MacroParam
	Body   Expr
	IsBool bool // Bool (predicate-shaped) vs Real (function-shaped)
	Span   Span
}

// MacroFormalKind is the kind tag of a predicate/function macro formal parameter.
type MacroFormalKind int

const (
	FormalBool MacroFormalKind = iota
	FormalReal
	FormalElem
	FormalCompBool
	FormalCompReal
)

// MacroParam is one formal parameter of a predicate/function/view macro.
type MacroParam struct {
	Name    string
	Kind    MacroFormalKind
	ElemSet string // set name, when Kind == FormalElem
}

// PredicateDef declares a reusable boolean macro.
type PredicateDef struct {
	Name   string
	Params []MacroParam
	Body   Expr
	Span   Span
}

func (p *PredicateDef) Pos() Span { return p.Span }
func (p *PredicateDef) itemNode() {}

// FunctionDef declares a reusable numeric macro.
type FunctionDef struct {
	Name   string
	Params []MacroParam
	Body   Expr
	Span   Span
}

func (f *FunctionDef) Pos() Span { return f.Span }
func (f *FunctionDef) itemNode() {}

// ProblemDef declares the single optimization problem in a compilation unit.
type ProblemDef struct {
	Name        string
	Sets        []*SetDecl
	Params      []*ParamDecl
	Finds       []*FindDecl
	Constraints []*Constraint
	Objective   *Objective // nil if absent; first one seen
	ExtraObjectives []*Objective // any objective beyond the first (validator flags these)
	Span        Span
}

func (p *ProblemDef) Pos() Span { return p.Span }
func (p *ProblemDef) itemNode() {}

// ----------------------------------------------------------------------------
// Problem-scoped declarations
// ----------------------------------------------------------------------------

// SetDecl declares a finite set by name.
type SetDecl struct {
	Name string
	Span Span
}

func (s *SetDecl) Pos() Span { return s.Span }
func (s *SetDecl) declNode() {}

// ValueType tags the value type of a parameter or expression.
type ValueType int

const (
	VTBool ValueType = iota
	VTReal
	VTInt
	VTElem
)

// ParamDecl declares a (possibly indexed) parameter.
type ParamDecl struct {
	Name       string
	IndexSets  []string // empty => scalar
	Value      ValueType
	ElemSet    string // set name, when Value == VTElem
	HasDefault bool
	Default    Expr
	Span       Span
}

func (p *ParamDecl) Pos() Span { return p.Span }
func (p *ParamDecl) declNode() {}

func (p *ParamDecl) IsScalar() bool { return len(p.IndexSets) == 0 }

// UnknownKind tags which shape a find declares.
type UnknownKind int

const (
	UKSubset UnknownKind = iota
	UKMapping
	UKUser
)

// FindDecl declares an unknown decision structure.
type FindDecl struct {
	Name      string
	Kind      UnknownKind
	SubsetOf  string   // set name, when Kind == UKSubset
	MapFrom   string   // set name, when Kind == UKMapping
	MapTo     string   // set name, when Kind == UKMapping
	UserType  string   // unknown-def name, when Kind == UKUser
	UserArgs  []string // set-name actuals, when Kind == UKUser
	Span      Span
}

func (f *FindDecl) Pos() Span { return f.Span }
func (f *FindDecl) declNode() {}

// ConstraintWeight is the weight class of a constraint.
type ConstraintWeight int

const (
	WeightMust ConstraintWeight = iota
	WeightShould
	WeightNice
)

func (w ConstraintWeight) String() string {
	switch w {
	case WeightMust:
		return "must"
	case WeightShould:
		return "should"
	case WeightNice:
		return "nice"
	default:
		return "?"
	}
}

// Constraint is `{must|should|nice} expr (if guard)?`.
type Constraint struct {
	Weight ConstraintWeight
	Expr   Expr
	Guard  Expr // nil if absent
	Span   Span
}

func (c *Constraint) Pos() Span { return c.Span }
func (c *Constraint) declNode() {}

// Objective is `minimize expr | maximize expr`.
type Objective struct {
	Maximize bool
	Expr     Expr
	Span     Span
}

func (o *Objective) Pos() Span { return o.Span }
func (o *Objective) declNode() {}

// ----------------------------------------------------------------------------
// Expressions
// ----------------------------------------------------------------------------

type IntLit struct {
	Value string
	Span  Span
}

func (n *IntLit) Pos() Span { return n.Span }
func (n *IntLit) exprNode() {}

type RealLit struct {
	Value string
	Span  Span
}

func (n *RealLit) Pos() Span { return n.Span }
func (n *RealLit) exprNode() {}

type BoolLit struct {
	Value bool
	Span  Span
}

func (n *BoolLit) Pos() Span { return n.Span }
func (n *BoolLit) exprNode() {}

// Ident is a bare identifier reference: an iterator, macro formal, scalar
// param, or find name.
type Ident struct {
	Name string
	Span Span
}

func (n *Ident) Pos() Span { return n.Span }
func (n *Ident) exprNode() {}

// ParamRead is `Param[i1,...,ik]`.
type ParamRead struct {
	Name    string
	Indices []Expr
	Span    Span
}

func (n *ParamRead) Pos() Span { return n.Span }
func (n *ParamRead) exprNode() {}

// SizeOf is `size(SetName)`.
type SizeOf struct {
	SetName string
	Span    Span
}

func (n *SizeOf) Pos() Span { return n.Span }
func (n *SizeOf) exprNode() {}

// MethodKind distinguishes `.has(x)` from `.is(a,b)`.
type MethodKind int

const (
	MethodHas MethodKind = iota
	MethodIs
	MethodView // F.memberName(...) -- a user-defined unknown's view member
)

// MethodCall is `F.has(x)`, `F.is(a,b)`, or `F.memberName(...)` on a find.
// MethodName carries the view member's name when Method == MethodView.
type MethodCall struct {
	Target     string // find name
	Method     MethodKind
	MethodName string
	Args       []Expr
	Span       Span
}

func (n *MethodCall) Pos() Span { return n.Span }
func (n *MethodCall) exprNode() {}

// MacroCall invokes a predicate/function by name; Args may themselves be
// Comprehension nodes for Comp(Bool)/Comp(Real) formals.
type MacroCall struct {
	Name string
	Args []Expr
	Span Span
}

func (n *MacroCall) Pos() Span { return n.Span }
func (n *MacroCall) exprNode() {}

// Comprehension is a bare `expr for x in S [where c]` tree, used only as a
// macro-call argument for Comp(Bool)/Comp(Real) formals.
type Comprehension struct {
	Body  Expr
	Var   string
	Set   string
	Where Expr // nil if absent
	Span  Span
}

func (n *Comprehension) Pos() Span { return n.Span }
func (n *Comprehension) exprNode() {}

// UnaryOp is `not x` or unary `-x`.
type UnaryOp struct {
	Op      TokenKind
	Operand Expr
	Span    Span
}

func (n *UnaryOp) Pos() Span { return n.Span }
func (n *UnaryOp) exprNode() {}

// BinaryOp covers arithmetic, comparisons, and `and/or/=>`.
type BinaryOp struct {
	Left  Expr
	Op    TokenKind
	Right Expr
	Span  Span
}

func (n *BinaryOp) Pos() Span { return n.Span }
func (n *BinaryOp) exprNode() {}

// Conditional is `if cond then A else B`.
type Conditional struct {
	Cond Expr
	Then Expr
	Else Expr
	Span Span
}

func (n *Conditional) Pos() Span { return n.Span }
func (n *Conditional) exprNode() {}

// QuantKind distinguishes forall/exists.
type QuantKind int

const (
	QuantForall QuantKind = iota
	QuantExists
)

// Quantifier is `forall x in S: body` / `exists x in S: body`.
type Quantifier struct {
	Kind QuantKind
	Var  string
	Set  string
	Body Expr
	Span Span
}

func (n *Quantifier) Pos() Span { return n.Span }
func (n *Quantifier) exprNode() {}

// AggKind distinguishes sum/count/any/all.
type AggKind int

const (
	AggSum AggKind = iota
	AggCount
	AggAny
	AggAll
)

// Aggregate is `agg(expr for x in S [where c] [else f])`. CompRef holds the
// name of a bare Comp(Bool)/Comp(Real) macro-formal reference (`sum(c)`,
// used inside a predicate/function/view body whose formal `c` stands for a
// whole comprehension); the elaborator splices the call-site Comprehension
// into Var/Set/Where/Body and clears CompRef. CompRef and Body/Var/Set are
// mutually exclusive.
type Aggregate struct {
	Kind    AggKind
	Body    Expr // nil for count(x in X) shorthand or a CompRef placeholder
	Var     string
	Set     string
	Where   Expr // nil if absent
	Else    Expr // nil if absent; only meaningful for AggSum
	CompRef string
	Span    Span
}

func (n *Aggregate) Pos() Span { return n.Span }
func (n *Aggregate) exprNode() {}

// VarRef is a grounded reference to a primary decision binary, produced by
// the grounder when it resolves a `.has(...)`/`.is(...)` call against a
// concrete scenario (spec §4.9): `F.has[s]` or `F.is[a,b]`. It only ever
// appears in Ground IR, never in source-level ASTs.
type VarRef struct {
	Label string
	Span  Span
}

func (n *VarRef) Pos() Span { return n.Span }
func (n *VarRef) exprNode() {}
