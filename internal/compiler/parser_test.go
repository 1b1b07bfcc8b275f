package compiler

import (
	"testing"

	"github.com/qsol-lang/qsol/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParserLiterals(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected func(t *testing.T, e model.Expr)
	}{
		{
			name:  "integer",
			input: "42",
			expected: func(t *testing.T, e model.Expr) {
				lit, ok := e.(*model.IntLit)
				require.True(t, ok, "expected IntLit")
				assert.Equal(t, "42", lit.Value)
			},
		},
		{
			name:  "real",
			input: "3.14",
			expected: func(t *testing.T, e model.Expr) {
				lit, ok := e.(*model.RealLit)
				require.True(t, ok, "expected RealLit")
				assert.Equal(t, "3.14", lit.Value)
			},
		},
		{
			name:  "true",
			input: "true",
			expected: func(t *testing.T, e model.Expr) {
				lit, ok := e.(*model.BoolLit)
				require.True(t, ok, "expected BoolLit")
				assert.True(t, lit.Value)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewParser(tc.input)
			e := p.parseExpr(precLowest)
			require.Empty(t, p.diags)
			tc.expected(t, e)
		})
	}
}

func TestParserPrecedence(t *testing.T) {
	p := NewParser("1 + 2 * 3")
	e := p.parseExpr(precLowest)
	require.Empty(t, p.diags)
	bin, ok := e.(*model.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, model.TK_Plus, bin.Op)
	_, ok = bin.Left.(*model.IntLit)
	assert.True(t, ok)
	rhs, ok := bin.Right.(*model.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, model.TK_Star, rhs.Op)
}

func TestParserNotBindsTighterThanCompare(t *testing.T) {
	// spec §4.2: unary (not, unary -) binds tighter than comparisons.
	p := NewParser("not x = y")
	e := p.parseExpr(precLowest)
	require.Empty(t, p.diags)
	cmp, ok := e.(*model.BinaryOp)
	require.True(t, ok, "expected top-level comparison")
	assert.Equal(t, model.TK_Eq, cmp.Op)
	_, ok = cmp.Left.(*model.UnaryOp)
	assert.True(t, ok, "expected 'not x' to bind before '= y'")
}

func TestParserExactKSubsetProblem(t *testing.T) {
	src := `problem P {
		set Items;
		find Pick : Subset(Items);
		must sum(if Pick.has(i) then 1 else 0 for i in Items) = 2;
		minimize sum(if Pick.has(i) then 1 else 0 for i in Items);
	}`
	p := NewParser(src)
	prog, diags := p.Parse()
	require.Empty(t, diags)
	require.Len(t, prog.Items, 1)
	prob, ok := prog.Items[0].(*model.ProblemDef)
	require.True(t, ok)
	assert.Equal(t, "P", prob.Name)
	require.Len(t, prob.Sets, 1)
	require.Len(t, prob.Finds, 1)
	require.Len(t, prob.Constraints, 1)
	require.NotNil(t, prob.Objective)
	assert.False(t, prob.Objective.Maximize)
}

func TestParserMissingSemicolon(t *testing.T) {
	src := `problem P { set Items
		find Pick : Subset(Items);
	}`
	p := NewParser(src)
	_, diags := p.Parse()
	require.NotEmpty(t, diags)
	assert.Equal(t, model.CodeParse, diags[0].Code)
}

func TestParserMacroCallWithComprehensionArg(t *testing.T) {
	p := NewParser("exactly(2, Pick.has(i) for i in Items)")
	e := p.parseExpr(precLowest)
	require.Empty(t, p.diags)
	call, ok := e.(*model.MacroCall)
	require.True(t, ok)
	assert.Equal(t, "exactly", call.Name)
	require.Len(t, call.Args, 2)
	_, ok = call.Args[0].(*model.IntLit)
	assert.True(t, ok)
	comp, ok := call.Args[1].(*model.Comprehension)
	require.True(t, ok)
	assert.Equal(t, "i", comp.Var)
	assert.Equal(t, "Items", comp.Set)
}
