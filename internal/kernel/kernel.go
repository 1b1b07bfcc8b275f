// Package kernel holds the Kernel IR (spec §3 "Kernel IR (symbolic)"): the
// narrow, canonical expression core the lowerer produces and the grounder
// consumes. It reuses model.Expr for the expression trees themselves --
// lowering guarantees a shrunk grammar (no guards, count/any/all, or
// filtered/defaulted sums survive it), not a different node representation.
package kernel

import "github.com/qsol-lang/qsol/internal/model"

// Constraint is one lowered constraint: weight plus a pure Bool expression.
type Constraint struct {
	Weight model.ConstraintWeight
	Expr   model.Expr
}

// Program is a single problem's Kernel IR: set/param/find declarations
// carried through unchanged, constraints and an optional objective reduced
// to the core grammar and canonicalized to a minimize sense.
type Program struct {
	Name        string
	Sets        []*model.SetDecl
	Params      []*model.ParamDecl
	Finds       []*model.FindDecl
	Constraints []Constraint
	// Objective is always a minimize-sense expression; a source `maximize E`
	// lowers to `minimize(-E)` (spec §4.8). Nil if the problem declared none.
	Objective model.Expr
}
