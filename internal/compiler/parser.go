package compiler

import (
	"fmt"

	"github.com/qsol-lang/qsol/internal/model"
)

// Precedence levels for the Pratt-style expression parser, per spec §4.2:
// "unary (not, unary -), * /, + -, comparisons, and, or, =>" high to low.
// Grounded on the teacher's precedence-table + current/peek/advance/check/
// match/expect helper set (internal/compiler/parser.go in rage).
const (
	precLowest  = 0
	precImplies = 1
	precOr      = 2
	precAnd     = 3
	precCompare = 4
	precAddSub  = 5
	precMulDiv  = 6
)

var binPrec = map[model.TokenKind]int{
	model.TK_Implies: precImplies,
	model.TK_Or:       precOr,
	model.TK_And:      precAnd,
	model.TK_Eq:       precCompare,
	model.TK_Ne:       precCompare,
	model.TK_Lt:       precCompare,
	model.TK_Le:       precCompare,
	model.TK_Gt:       precCompare,
	model.TK_Ge:       precCompare,
	model.TK_Plus:     precAddSub,
	model.TK_Minus:    precAddSub,
	model.TK_Star:     precMulDiv,
	model.TK_Slash:    precMulDiv,
}

// Parser parses QSOL source into a model.Program.
type Parser struct {
	tokens []model.Token
	pos    int
	diags  []model.Diagnostic
}

func NewParser(source string) *Parser { return NewParserWithFilename(source, "") }

func NewParserWithFilename(source, filename string) *Parser {
	lex := NewLexerWithFilename(source, filename)
	toks, lexDiags := lex.Tokenize()
	return &Parser{tokens: toks, diags: lexDiags}
}

// Parse parses the source and returns the Program, or a non-empty
// diagnostics list tagged QSOL1001 (spec §4.2).
func (p *Parser) Parse() (*model.Program, []model.Diagnostic) {
	prog := &model.Program{}
	if len(p.tokens) > 0 {
		prog.Span = p.tokens[0].Span
	}
	for !p.isAtEnd() {
		item := p.parseItem()
		if item != nil {
			prog.Items = append(prog.Items, item)
			prog.Span = prog.Span.Join(item.Pos())
		}
	}
	return prog, p.diags
}

// ----------------------------------------------------------------------------
// token helpers
// ----------------------------------------------------------------------------

func (p *Parser) current() model.Token {
	if p.pos >= len(p.tokens) {
		return model.Token{Kind: model.TK_EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek() model.Token {
	if p.pos+1 >= len(p.tokens) {
		return model.Token{Kind: model.TK_EOF}
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) advance() model.Token {
	tok := p.current()
	if !p.isAtEnd() {
		p.pos++
	}
	return tok
}

func (p *Parser) isAtEnd() bool { return p.current().Kind == model.TK_EOF }

func (p *Parser) check(kind model.TokenKind) bool { return p.current().Kind == kind }

func (p *Parser) match(kind model.TokenKind) bool {
	if p.check(kind) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(kind model.TokenKind) model.Token {
	if p.check(kind) {
		return p.advance()
	}
	p.addErrorf("expected %s, got %s", kind, p.current().Kind)
	return p.current()
}

func (p *Parser) expectIdentLit() string {
	tok := p.expect(model.TK_Identifier)
	return tok.Literal
}

func (p *Parser) addErrorf(format string, args ...any) {
	p.diags = append(p.diags, model.Diagnostic{
		Severity: model.SevError,
		Code:     model.CodeParse,
		Message:  fmt.Sprintf(format, args...),
		Span:     p.current().Span,
	})
}

// synchronize skips tokens until the next statement boundary, so a single
// parse error does not cascade into the whole remaining file (spec §7:
// diagnostics are collected, not thrown).
func (p *Parser) synchronize() {
	for !p.isAtEnd() {
		if p.check(model.TK_Semicolon) {
			p.advance()
			return
		}
		if p.check(model.TK_RBrace) {
			return
		}
		p.advance()
	}
}

// ----------------------------------------------------------------------------
// top-level items
// ----------------------------------------------------------------------------

func (p *Parser) parseItem() model.Item {
	switch p.current().Kind {
	case model.TK_Use:
		return p.parseUse()
	case model.TK_Unknown:
		return p.parseUnknownDef()
	case model.TK_Predicate:
		return p.parsePredicateDef()
	case model.TK_Function:
		return p.parseFunctionDef()
	case model.TK_Problem:
		return p.parseProblemDef()
	default:
		p.addErrorf("expected a top-level item (use/unknown/predicate/function/problem), got %s", p.current().Kind)
		p.synchronize()
		return nil
	}
}

func (p *Parser) parseUse() model.Item {
	start := p.advance().Span // 'use'
	var path []string
	path = append(path, p.expectIdentLit())
	for p.match(model.TK_Dot) {
		path = append(path, p.expectIdentLit())
	}
	end := p.expect(model.TK_Semicolon)
	return &model.UseImport{Path: path, Span: start.Join(end.Span)}
}

func (p *Parser) parseTypeParamList() []model.TypeParam {
	var params []model.TypeParam
	if !p.match(model.TK_LParen) {
		return params
	}
	if !p.check(model.TK_RParen) {
		params = append(params, model.TypeParam{Name: p.expectIdentLit()})
		for p.match(model.TK_Comma) {
			params = append(params, model.TypeParam{Name: p.expectIdentLit()})
		}
	}
	p.expect(model.TK_RParen)
	return params
}

func (p *Parser) parseUnknownDef() model.Item {
	start := p.advance().Span // 'unknown'
	name := p.expectIdentLit()
	typeParams := p.parseTypeParamList()
	p.expect(model.TK_LBrace)

	def := &model.UnknownDef{Name: name, TypeParams: typeParams}

	for !p.check(model.TK_RBrace) && !p.isAtEnd() {
		switch p.current().Kind {
		case model.TK_Rep:
			p.advance()
			p.expect(model.TK_LBrace)
			for !p.check(model.TK_RBrace) && !p.isAtEnd() {
				p.expect(model.TK_Find)
				def.Rep = append(def.Rep, p.parseFindBody())
			}
			p.expect(model.TK_RBrace)
		case model.TK_Laws:
			p.advance()
			p.expect(model.TK_LBrace)
			for !p.check(model.TK_RBrace) && !p.isAtEnd() {
				p.expect(model.TK_Must)
				e := p.parseExpr(precLowest)
				p.expect(model.TK_Semicolon)
				def.Laws = append(def.Laws, e)
			}
			p.expect(model.TK_RBrace)
		case model.TK_View:
			p.advance()
			p.expect(model.TK_LBrace)
			for !p.check(model.TK_RBrace) && !p.isAtEnd() {
				def.View = append(def.View, p.parseViewMember())
			}
			p.expect(model.TK_RBrace)
		default:
			p.addErrorf("expected rep/laws/view inside unknown %q, got %s", name, p.current().Kind)
			p.synchronize()
		}
	}
	end := p.expect(model.TK_RBrace)
	def.Span = start.Join(end.Span)
	return def
}

func (p *Parser) parseViewMember() *model.ViewMember {
	isBool := true
	start := p.current().Span
	switch p.current().Kind {
	case model.TK_Predicate:
		p.advance()
		isBool = true
	case model.TK_Function:
		p.advance()
		isBool = false
	default:
		p.addErrorf("expected predicate/function in view, got %s", p.current().Kind)
	}
	name := p.expectIdentLit()
	params := p.parseMacroParams()
	p.expect(model.TK_Eq)
	body := p.parseExpr(precLowest)
	end := p.expect(model.TK_Semicolon)
	return &model.ViewMember{Name: name, Params: params, Body: body, IsBool: isBool, Span: start.Join(end.Span)}
}

func (p *Parser) parseMacroParams() []model.MacroParam {
	var params []model.MacroParam
	p.expect(model.TK_LParen)
	if !p.check(model.TK_RParen) {
		params = append(params, p.parseMacroParam())
		for p.match(model.TK_Comma) {
			params = append(params, p.parseMacroParam())
		}
	}
	p.expect(model.TK_RParen)
	return params
}

func (p *Parser) parseMacroParam() model.MacroParam {
	name := p.expectIdentLit()
	p.expect(model.TK_Colon)
	// Kind ::= Bool | Real | Elem(SetName) | Comp(Bool) | Comp(Real)
	switch {
	case p.check(model.TK_Bool):
		p.advance()
		return model.MacroParam{Name: name, Kind: model.FormalBool}
	case p.check(model.TK_Real):
		p.advance()
		return model.MacroParam{Name: name, Kind: model.FormalReal}
	case p.check(model.TK_Identifier) && p.current().Literal == "Elem":
		p.advance()
		p.expect(model.TK_LParen)
		set := p.expectIdentLit()
		p.expect(model.TK_RParen)
		return model.MacroParam{Name: name, Kind: model.FormalElem, ElemSet: set}
	case p.check(model.TK_Identifier) && p.current().Literal == "Comp":
		p.advance()
		p.expect(model.TK_LParen)
		var kind model.MacroFormalKind
		switch {
		case p.check(model.TK_Bool):
			p.advance()
			kind = model.FormalCompBool
		case p.check(model.TK_Real):
			p.advance()
			kind = model.FormalCompReal
		default:
			p.addErrorf("expected Bool or Real inside Comp(...), got %s", p.current().Kind)
		}
		p.expect(model.TK_RParen)
		return model.MacroParam{Name: name, Kind: kind}
	default:
		p.addErrorf("expected a macro formal kind, got %s", p.current().Kind)
		p.advance()
		return model.MacroParam{Name: name, Kind: model.FormalBool}
	}
}

func (p *Parser) parsePredicateDef() model.Item {
	start := p.advance().Span // 'predicate'
	name := p.expectIdentLit()
	params := p.parseMacroParams()
	p.expect(model.TK_Eq)
	body := p.parseExpr(precLowest)
	end := p.expect(model.TK_Semicolon)
	return &model.PredicateDef{Name: name, Params: params, Body: body, Span: start.Join(end.Span)}
}

func (p *Parser) parseFunctionDef() model.Item {
	start := p.advance().Span // 'function'
	name := p.expectIdentLit()
	params := p.parseMacroParams()
	p.expect(model.TK_Eq)
	body := p.parseExpr(precLowest)
	end := p.expect(model.TK_Semicolon)
	return &model.FunctionDef{Name: name, Params: params, Body: body, Span: start.Join(end.Span)}
}

func (p *Parser) parseProblemDef() model.Item {
	start := p.advance().Span // 'problem'
	name := p.expectIdentLit()
	p.expect(model.TK_LBrace)

	def := &model.ProblemDef{Name: name}
	for !p.check(model.TK_RBrace) && !p.isAtEnd() {
		switch p.current().Kind {
		case model.TK_Set:
			p.advance()
			sname := p.expectIdentLit()
			end := p.expect(model.TK_Semicolon)
			def.Sets = append(def.Sets, &model.SetDecl{Name: sname, Span: end.Span})
		case model.TK_Param:
			def.Params = append(def.Params, p.parseParamDecl())
		case model.TK_Find:
			p.advance()
			def.Finds = append(def.Finds, p.parseFindBody())
		case model.TK_Must:
			def.Constraints = append(def.Constraints, p.parseConstraint(model.WeightMust))
		case model.TK_Should:
			def.Constraints = append(def.Constraints, p.parseConstraint(model.WeightShould))
		case model.TK_Nice:
			def.Constraints = append(def.Constraints, p.parseConstraint(model.WeightNice))
		case model.TK_Minimize:
			obj := p.parseObjective(false)
			if def.Objective == nil {
				def.Objective = obj
			} else {
				def.ExtraObjectives = append(def.ExtraObjectives, obj)
			}
		case model.TK_Maximize:
			obj := p.parseObjective(true)
			if def.Objective == nil {
				def.Objective = obj
			} else {
				def.ExtraObjectives = append(def.ExtraObjectives, obj)
			}
		default:
			p.addErrorf("expected a problem-body declaration, got %s", p.current().Kind)
			p.synchronize()
		}
	}
	end := p.expect(model.TK_RBrace)
	def.Span = start.Join(end.Span)
	return def
}

func (p *Parser) parseParamDecl() *model.ParamDecl {
	start := p.advance().Span // 'param'
	name := p.expectIdentLit()
	decl := &model.ParamDecl{Name: name}

	if p.match(model.TK_LParen) {
		decl.IndexSets = append(decl.IndexSets, p.expectIdentLit())
		for p.match(model.TK_Comma) {
			decl.IndexSets = append(decl.IndexSets, p.expectIdentLit())
		}
		p.expect(model.TK_RParen)
	}
	p.expect(model.TK_Colon)
	decl.Value, decl.ElemSet = p.parseValueType()

	if p.match(model.TK_Eq) {
		decl.HasDefault = true
		decl.Default = p.parseExpr(precLowest)
	}
	end := p.expect(model.TK_Semicolon)
	decl.Span = start.Join(end.Span)
	return decl
}

func (p *Parser) parseValueType() (model.ValueType, string) {
	switch {
	case p.check(model.TK_Bool):
		p.advance()
		return model.VTBool, ""
	case p.check(model.TK_Real):
		p.advance()
		return model.VTReal, ""
	case p.check(model.TK_Int):
		p.advance()
		if p.match(model.TK_LBracket) {
			p.parseExpr(precLowest) // lo
			p.expect(model.TK_DotDot)
			p.parseExpr(precLowest) // hi
			p.expect(model.TK_RBracket)
		}
		return model.VTInt, ""
	case p.check(model.TK_Identifier) && p.current().Literal == "Elem":
		p.advance()
		p.expect(model.TK_LParen)
		set := p.expectIdentLit()
		p.expect(model.TK_RParen)
		return model.VTElem, set
	default:
		p.addErrorf("expected a value type, got %s", p.current().Kind)
		p.advance()
		return model.VTBool, ""
	}
}

func (p *Parser) parseFindBody() *model.FindDecl {
	start := p.current().Span
	name := p.expectIdentLit()
	p.expect(model.TK_Colon)
	decl := &model.FindDecl{Name: name}

	switch {
	case p.check(model.TK_Subset):
		p.advance()
		p.expect(model.TK_LParen)
		decl.Kind = model.UKSubset
		decl.SubsetOf = p.expectIdentLit()
		p.expect(model.TK_RParen)
	case p.check(model.TK_Mapping):
		p.advance()
		p.expect(model.TK_LParen)
		decl.Kind = model.UKMapping
		decl.MapFrom = p.expectIdentLit()
		p.expect(model.TK_Arrow)
		decl.MapTo = p.expectIdentLit()
		p.expect(model.TK_RParen)
	case p.check(model.TK_Identifier):
		decl.Kind = model.UKUser
		decl.UserType = p.expectIdentLit()
		p.expect(model.TK_LParen)
		if !p.check(model.TK_RParen) {
			decl.UserArgs = append(decl.UserArgs, p.expectIdentLit())
			for p.match(model.TK_Comma) {
				decl.UserArgs = append(decl.UserArgs, p.expectIdentLit())
			}
		}
		p.expect(model.TK_RParen)
	default:
		p.addErrorf("expected Subset(...), Mapping(...->...) or a user unknown type, got %s", p.current().Kind)
	}
	end := p.expect(model.TK_Semicolon)
	decl.Span = start.Join(end.Span)
	return decl
}

func (p *Parser) parseConstraint(weight model.ConstraintWeight) *model.Constraint {
	start := p.advance().Span // must/should/nice
	expr := p.parseExpr(precLowest)
	var guard model.Expr
	if p.match(model.TK_If) {
		guard = p.parseExpr(precLowest)
	}
	end := p.expect(model.TK_Semicolon)
	return &model.Constraint{Weight: weight, Expr: expr, Guard: guard, Span: start.Join(end.Span)}
}

func (p *Parser) parseObjective(maximize bool) *model.Objective {
	start := p.advance().Span // minimize/maximize
	expr := p.parseExpr(precLowest)
	end := p.expect(model.TK_Semicolon)
	return &model.Objective{Maximize: maximize, Expr: expr, Span: start.Join(end.Span)}
}
