// Package parser turns Datalog source text into the ast package's trees.
//
// The grammar follows the usual surface syntax: .decl/.type/.functor
// declarations, .input/.output/.printsize/.limitsize directives, .pragma
// options, .comp/.init components, facts, and rules. Rule bodies may use
// ';' for top-level disjunction; the parser normalizes each disjunct into
// its own clause.
package parser

import (
	"fmt"

	"github.com/ramble-dl/ramble/ramble"
	"github.com/ramble-dl/ramble/ramble/ast"
)

// intrinsics maps named built-in functors to their operator. The infix
// arithmetic operators are handled by the expression grammar directly.
var intrinsics = map[string]ramble.FunctorOp{
	"band":      ramble.BAnd,
	"bor":       ramble.BOr,
	"bxor":      ramble.BXor,
	"bnot":      ramble.BNot,
	"max":       ramble.Max,
	"min":       ramble.Min,
	"cat":       ramble.Cat,
	"strlen":    ramble.StrLen,
	"substr":    ramble.Substr,
	"ord":       ramble.Ord,
	"to_number": ramble.ToNumber,
	"to_string": ramble.ToString,
	"range":     ramble.Range,
}

var aggregates = map[string]ramble.AggregateOp{
	"count": ramble.AggCount,
	"sum":   ramble.AggSum,
	"min":   ramble.AggMin,
	"max":   ramble.AggMax,
	"mean":  ramble.AggMean,
}

// Parser builds an AST from a token stream.
type Parser struct {
	file string
	lex  *Lexer
}

// Parse parses a complete program from source text. The file name appears in
// source locations and error messages only.
func Parse(file, input string) (*ast.Program, error) {
	lex := NewLexer(file, input)
	if err := lex.Lex(); err != nil {
		return nil, err
	}
	p := &Parser{file: file, lex: lex}
	return p.parseProgram()
}

// ParseClause parses a single clause, for tests and tooling.
func ParseClause(input string) (*ast.Clause, error) {
	lex := NewLexer("<clause>", input)
	if err := lex.Lex(); err != nil {
		return nil, err
	}
	p := &Parser{file: "<clause>", lex: lex}
	clauses, err := p.parseClause()
	if err != nil {
		return nil, err
	}
	if len(clauses) != 1 {
		return nil, fmt.Errorf("<clause>: expected a single clause, got %d", len(clauses))
	}
	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, p.errAt(tok, "trailing input after clause")
	}
	return clauses[0], nil
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	for {
		tok := p.peek()
		if tok.Type == TokenEOF {
			return prog, nil
		}
		if err := p.parseItem(tok, &prog.Types, &prog.Functors, &prog.Relations,
			&prog.Clauses, &prog.Directives, &prog.Pragmas, &prog.Components,
			&prog.Instantiations); err != nil {
			return nil, err
		}
	}
}

// parseItem parses one top-level item into the appropriate slice.
func (p *Parser) parseItem(tok Token,
	types *[]*ast.Type, functors *[]*ast.FunctorDeclaration, relations *[]*ast.Relation,
	clauses *[]*ast.Clause, directives *[]*ast.Directive, pragmas *[]*ast.Pragma,
	components *[]*ast.Component, inits *[]*ast.ComponentInit) error {

	if tok.Type != TokenDirective {
		parsed, err := p.parseClause()
		if err != nil {
			return err
		}
		*clauses = append(*clauses, parsed...)
		return nil
	}

	p.next()
	switch tok.Value {
	case "decl":
		rel, err := p.parseDecl(tok)
		if err != nil {
			return err
		}
		*relations = append(*relations, rel)
	case "type":
		typ, err := p.parseType(tok)
		if err != nil {
			return err
		}
		*types = append(*types, typ)
	case "functor":
		fn, err := p.parseFunctor(tok)
		if err != nil {
			return err
		}
		*functors = append(*functors, fn)
	case "input", "output", "printsize", "limitsize":
		dir, err := p.parseDirective(tok)
		if err != nil {
			return err
		}
		*directives = append(*directives, dir)
	case "pragma":
		pragma, err := p.parsePragma(tok)
		if err != nil {
			return err
		}
		*pragmas = append(*pragmas, pragma)
	case "comp":
		comp, err := p.parseComponent(tok)
		if err != nil {
			return err
		}
		*components = append(*components, comp)
	case "init":
		init, err := p.parseInit(tok)
		if err != nil {
			return err
		}
		*inits = append(*inits, init)
	default:
		return p.errAt(tok, "unknown directive .%s", tok.Value)
	}
	return nil
}

// parseDecl parses a relation declaration:
//
//	.decl name(attr:type, ...) [btree|brie|eqrel] [choice-domain key, (k1,k2)]
func (p *Parser) parseDecl(start Token) (*ast.Relation, error) {
	name, err := p.expectIdent("relation name")
	if err != nil {
		return nil, err
	}
	rel := &ast.Relation{Name: ast.ParseQualifiedName(name.Value)}
	rel.SetLoc(p.loc(start))

	if _, err := p.expect(TokenLeftParen, "("); err != nil {
		return nil, err
	}
	if p.peek().Type != TokenRightParen {
		for {
			attr, err := p.parseAttribute()
			if err != nil {
				return nil, err
			}
			rel.Attributes = append(rel.Attributes, attr)
			if p.peek().Type != TokenComma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(TokenRightParen, ")"); err != nil {
		return nil, err
	}

	for p.peek().Type == TokenIdent {
		qual := p.peek()
		switch qual.Value {
		case "btree":
			rel.Representation = ramble.BTreeRepresentation
			p.next()
		case "brie":
			rel.Representation = ramble.BrieRepresentation
			p.next()
		case "eqrel":
			rel.Representation = ramble.EqRelRepresentation
			p.next()
		case "choice":
			p.next()
			if _, err := p.expect(TokenMinus, "-"); err != nil {
				return nil, err
			}
			kw, err := p.expectIdent("domain")
			if err != nil {
				return nil, err
			}
			if kw.Value != "domain" {
				return nil, p.errAt(kw, "expected choice-domain, got choice-%s", kw.Value)
			}
			deps, err := p.parseChoiceDomain()
			if err != nil {
				return nil, err
			}
			rel.Dependencies = deps
		default:
			return rel, nil
		}
	}
	return rel, nil
}

func (p *Parser) parseChoiceDomain() ([]*ast.FunctionalConstraint, error) {
	var deps []*ast.FunctionalConstraint
	for {
		switch p.peek().Type {
		case TokenIdent:
			key := p.next()
			deps = append(deps, &ast.FunctionalConstraint{Keys: []string{key.Value}})
		case TokenLeftParen:
			p.next()
			var keys []string
			for {
				key, err := p.expectIdent("attribute name")
				if err != nil {
					return nil, err
				}
				keys = append(keys, key.Value)
				if p.peek().Type != TokenComma {
					break
				}
				p.next()
			}
			if _, err := p.expect(TokenRightParen, ")"); err != nil {
				return nil, err
			}
			deps = append(deps, &ast.FunctionalConstraint{Keys: keys})
		default:
			return nil, p.errAt(p.peek(), "expected choice-domain key")
		}
		if p.peek().Type != TokenComma {
			return deps, nil
		}
		p.next()
	}
}

// parseType parses a type declaration: alias, record, or ADT.
func (p *Parser) parseType(start Token) (*ast.Type, error) {
	name, err := p.expectIdent("type name")
	if err != nil {
		return nil, err
	}
	typ := &ast.Type{Name: ast.ParseQualifiedName(name.Value)}
	typ.SetLoc(p.loc(start))

	if _, err := p.expect(TokenEq, "="); err != nil {
		return nil, err
	}

	switch p.peek().Type {
	case TokenLeftBracket:
		p.next()
		typ.Kind = ast.RecordTypeKind
		if p.peek().Type != TokenRightBracket {
			for {
				field, err := p.parseAttribute()
				if err != nil {
					return nil, err
				}
				typ.Fields = append(typ.Fields, field)
				if p.peek().Type != TokenComma {
					break
				}
				p.next()
			}
		}
		if _, err := p.expect(TokenRightBracket, "]"); err != nil {
			return nil, err
		}
		return typ, nil

	case TokenIdent:
		// A brace after the name means an ADT branch; a bare name is an alias.
		if p.lex.PeekAhead(1).Type != TokenLeftBrace {
			alias := p.next()
			typ.Kind = ast.AliasTypeKind
			typ.Aliased = ast.ParseQualifiedName(alias.Value)
			return typ, nil
		}
		typ.Kind = ast.ADTTypeKind
		for {
			branch, err := p.parseBranch()
			if err != nil {
				return nil, err
			}
			typ.Branches = append(typ.Branches, branch)
			if p.peek().Type != TokenPipe {
				return typ, nil
			}
			p.next()
		}

	default:
		return nil, p.errAt(p.peek(), "expected type definition")
	}
}

func (p *Parser) parseBranch() (*ast.Branch, error) {
	name, err := p.expectIdent("branch name")
	if err != nil {
		return nil, err
	}
	branch := &ast.Branch{Name: ast.ParseQualifiedName(name.Value)}
	branch.SetLoc(p.loc(name))
	if _, err := p.expect(TokenLeftBrace, "{"); err != nil {
		return nil, err
	}
	if p.peek().Type != TokenRightBrace {
		for {
			field, err := p.parseAttribute()
			if err != nil {
				return nil, err
			}
			branch.Fields = append(branch.Fields, field)
			if p.peek().Type != TokenComma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(TokenRightBrace, "}"); err != nil {
		return nil, err
	}
	return branch, nil
}

func (p *Parser) parseAttribute() (*ast.Attribute, error) {
	name, err := p.expectIdent("attribute name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenColon, ":"); err != nil {
		return nil, err
	}
	typeName, err := p.expectIdent("type name")
	if err != nil {
		return nil, err
	}
	attr := &ast.Attribute{Name: name.Value, TypeName: ast.ParseQualifiedName(typeName.Value)}
	attr.SetLoc(p.loc(name))
	return attr, nil
}

// parseFunctor parses a user-defined functor declaration:
//
//	.functor name(arg:type, ...):type [stateful]
func (p *Parser) parseFunctor(start Token) (*ast.FunctorDeclaration, error) {
	name, err := p.expectIdent("functor name")
	if err != nil {
		return nil, err
	}
	fn := &ast.FunctorDeclaration{Name: name.Value}
	fn.SetLoc(p.loc(start))

	if _, err := p.expect(TokenLeftParen, "("); err != nil {
		return nil, err
	}
	if p.peek().Type != TokenRightParen {
		for {
			param, err := p.parseAttribute()
			if err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, param)
			if p.peek().Type != TokenComma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(TokenRightParen, ")"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenColon, ":"); err != nil {
		return nil, err
	}
	ret, err := p.expectIdent("return type")
	if err != nil {
		return nil, err
	}
	fn.Return = ast.ParseQualifiedName(ret.Value)

	if p.peek().Type == TokenIdent && p.peek().Value == "stateful" {
		p.next()
		fn.Stateful = true
	}
	return fn, nil
}

func (p *Parser) parseDirective(start Token) (*ast.Directive, error) {
	var kind ast.DirectiveKind
	switch start.Value {
	case "input":
		kind = ast.InputDirective
	case "output":
		kind = ast.OutputDirective
	case "printsize":
		kind = ast.PrintSizeDirective
	case "limitsize":
		kind = ast.LimitSizeDirective
	}

	name, err := p.expectIdent("relation name")
	if err != nil {
		return nil, err
	}
	dir := &ast.Directive{Kind: kind, Name: ast.ParseQualifiedName(name.Value)}
	dir.SetLoc(p.loc(start))

	if p.peek().Type != TokenLeftParen {
		return dir, nil
	}
	p.next()
	dir.Params = map[string]string{}
	if p.peek().Type != TokenRightParen {
		for {
			key, err := p.expectIdent("parameter name")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenEq, "="); err != nil {
				return nil, err
			}
			val := p.next()
			switch val.Type {
			case TokenString, TokenNumber, TokenUnsigned, TokenFloat, TokenIdent:
				dir.Params[key.Value] = val.Value
			default:
				return nil, p.errAt(val, "expected parameter value")
			}
			if p.peek().Type != TokenComma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(TokenRightParen, ")"); err != nil {
		return nil, err
	}
	return dir, nil
}

func (p *Parser) parsePragma(start Token) (*ast.Pragma, error) {
	key, err := p.expect(TokenString, "pragma key")
	if err != nil {
		return nil, err
	}
	pragma := &ast.Pragma{Key: key.Value}
	pragma.SetLoc(p.loc(start))
	if p.peek().Type == TokenString {
		pragma.Value = p.next().Value
	}
	return pragma, nil
}

func (p *Parser) parseComponent(start Token) (*ast.Component, error) {
	name, err := p.expectIdent("component name")
	if err != nil {
		return nil, err
	}
	comp := &ast.Component{Name: name.Value}
	comp.SetLoc(p.loc(start))

	if _, err := p.expect(TokenLeftBrace, "{"); err != nil {
		return nil, err
	}
	for p.peek().Type != TokenRightBrace {
		if p.peek().Type == TokenEOF {
			return nil, p.errAt(start, "unterminated component %s", comp.Name)
		}
		var (
			types      []*ast.Type
			functors   []*ast.FunctorDeclaration
			relations  []*ast.Relation
			clauses    []*ast.Clause
			directives []*ast.Directive
			pragmas    []*ast.Pragma
			components []*ast.Component
			inits      []*ast.ComponentInit
		)
		if err := p.parseItem(p.peek(), &types, &functors, &relations, &clauses,
			&directives, &pragmas, &components, &inits); err != nil {
			return nil, err
		}
		for _, n := range types {
			comp.Body = append(comp.Body, n)
		}
		for _, n := range functors {
			comp.Body = append(comp.Body, n)
		}
		for _, n := range relations {
			comp.Body = append(comp.Body, n)
		}
		for _, n := range clauses {
			comp.Body = append(comp.Body, n)
		}
		for _, n := range directives {
			comp.Body = append(comp.Body, n)
		}
		for _, n := range pragmas {
			comp.Body = append(comp.Body, n)
		}
		for _, n := range components {
			comp.Body = append(comp.Body, n)
		}
		for _, n := range inits {
			comp.Body = append(comp.Body, n)
		}
	}
	p.next() // closing brace
	return comp, nil
}

func (p *Parser) parseInit(start Token) (*ast.ComponentInit, error) {
	name, err := p.expectIdent("instance name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenEq, "="); err != nil {
		return nil, err
	}
	comp, err := p.expectIdent("component name")
	if err != nil {
		return nil, err
	}
	init := &ast.ComponentInit{Name: name.Value, Component: comp.Value}
	init.SetLoc(p.loc(start))
	return init, nil
}

// parseClause parses a fact or rule. A body with top-level ';' disjunction
// expands into one clause per disjunct.
func (p *Parser) parseClause() ([]*ast.Clause, error) {
	head, err := p.parseAtom()
	if err != nil {
		return nil, err
	}

	if p.peek().Type == TokenDot {
		p.next()
		clause := &ast.Clause{Head: head}
		clause.SetLoc(head.Loc())
		return []*ast.Clause{clause}, nil
	}

	if _, err := p.expect(TokenIf, ":-"); err != nil {
		return nil, err
	}

	var bodies [][]ast.Literal
	for {
		var body []ast.Literal
		for {
			lit, err := p.parseLiteral()
			if err != nil {
				return nil, err
			}
			body = append(body, lit)
			if p.peek().Type != TokenComma {
				break
			}
			p.next()
		}
		bodies = append(bodies, body)
		if p.peek().Type != TokenSemicolon {
			break
		}
		p.next()
	}
	if _, err := p.expect(TokenDot, "."); err != nil {
		return nil, err
	}

	clauses := make([]*ast.Clause, len(bodies))
	for i, body := range bodies {
		h := head
		if i > 0 {
			h = head.Clone().(*ast.Atom)
		}
		clause := &ast.Clause{Head: h, Body: body}
		clause.SetLoc(head.Loc())
		clauses[i] = clause
	}
	return clauses, nil
}

func (p *Parser) parseAtom() (*ast.Atom, error) {
	name, err := p.expectIdent("relation name")
	if err != nil {
		return nil, err
	}
	atom := &ast.Atom{Name: ast.ParseQualifiedName(name.Value)}
	atom.SetLoc(p.loc(name))

	if _, err := p.expect(TokenLeftParen, "("); err != nil {
		return nil, err
	}
	if p.peek().Type != TokenRightParen {
		for {
			arg, err := p.parseExpression(0)
			if err != nil {
				return nil, err
			}
			atom.Args = append(atom.Args, arg)
			if p.peek().Type != TokenComma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(TokenRightParen, ")"); err != nil {
		return nil, err
	}
	return atom, nil
}

// parseLiteral parses one body literal: a positive or negated atom, or a
// binary constraint in either infix (a < b) or functional (match(r, s)) form.
func (p *Parser) parseLiteral() (ast.Literal, error) {
	tok := p.peek()

	if tok.Type == TokenBang {
		p.next()
		inner := p.peek()
		if inner.Type == TokenIdent && p.lex.PeekAhead(1).Type == TokenLeftParen {
			if op, negated := constraintFn(inner.Value); negated {
				p.next()
				return p.parseFunctionalConstraint(inner, op.Negated())
			}
		}
		atom, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		neg := &ast.Negation{Atom: atom}
		neg.SetLoc(p.loc(tok))
		return neg, nil
	}

	if tok.Type == TokenIdent && p.lex.PeekAhead(1).Type == TokenLeftParen {
		if op, ok := constraintFn(tok.Value); ok {
			p.next()
			return p.parseFunctionalConstraint(tok, op)
		}
		if _, isFn := intrinsics[tok.Value]; !isFn && tok.Value != "as" {
			return p.parseAtom()
		}
	}

	lhs, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	opTok := p.peek()
	op, ok := comparisonOp(opTok.Type)
	if !ok {
		return nil, p.errAt(opTok, "expected comparison operator")
	}
	p.next()
	rhs, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	cons := &ast.BinaryConstraint{Op: op, LHS: lhs, RHS: rhs}
	cons.SetLoc(p.loc(tok))
	return cons, nil
}

func (p *Parser) parseFunctionalConstraint(start Token, op ramble.BinaryConstraintOp) (ast.Literal, error) {
	if _, err := p.expect(TokenLeftParen, "("); err != nil {
		return nil, err
	}
	lhs, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenComma, ","); err != nil {
		return nil, err
	}
	rhs, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRightParen, ")"); err != nil {
		return nil, err
	}
	cons := &ast.BinaryConstraint{Op: op, LHS: lhs, RHS: rhs}
	cons.SetLoc(p.loc(start))
	return cons, nil
}

func constraintFn(name string) (ramble.BinaryConstraintOp, bool) {
	switch name {
	case "match":
		return ramble.Match, true
	case "contains":
		return ramble.Contains, true
	}
	return 0, false
}

func comparisonOp(tt TokenType) (ramble.BinaryConstraintOp, bool) {
	switch tt {
	case TokenEq:
		return ramble.EQ, true
	case TokenNe:
		return ramble.NE, true
	case TokenLt:
		return ramble.LT, true
	case TokenLe:
		return ramble.LE, true
	case TokenGt:
		return ramble.GT, true
	case TokenGe:
		return ramble.GE, true
	}
	return 0, false
}

// binaryPrec gives the precedence of an infix arithmetic operator, or 0.
func binaryPrec(tt TokenType) (ramble.FunctorOp, int) {
	switch tt {
	case TokenCaret:
		return ramble.Exp, 4
	case TokenStar:
		return ramble.Mul, 3
	case TokenSlash:
		return ramble.Div, 3
	case TokenPercent:
		return ramble.Mod, 3
	case TokenPlus:
		return ramble.Add, 2
	case TokenMinus:
		return ramble.Sub, 2
	}
	return 0, 0
}

// parseExpression is a precedence climber over the infix operators.
// Exponentiation binds right; everything else binds left.
func (p *Parser) parseExpression(minPrec int) (ast.Argument, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, prec := binaryPrec(p.peek().Type)
		if prec == 0 || prec < minPrec {
			return lhs, nil
		}
		opTok := p.next()
		nextMin := prec + 1
		if op == ramble.Exp {
			nextMin = prec
		}
		rhs, err := p.parseExpression(nextMin)
		if err != nil {
			return nil, err
		}
		fn := &ast.IntrinsicFunctor{Op: op, Args: []ast.Argument{lhs, rhs}}
		fn.SetLoc(p.loc(opTok))
		lhs = fn
	}
}

func (p *Parser) parseUnary() (ast.Argument, error) {
	tok := p.peek()
	if tok.Type == TokenMinus {
		p.next()
		// Fold a minus directly into a numeric literal.
		switch p.peek().Type {
		case TokenNumber:
			num := p.next()
			c := &ast.NumericConstant{Literal: "-" + num.Value, Type: ast.NumericInt}
			c.SetLoc(p.loc(tok))
			return c, nil
		case TokenFloat:
			num := p.next()
			c := &ast.NumericConstant{Literal: "-" + num.Value, Type: ast.NumericFloat}
			c.SetLoc(p.loc(tok))
			return c, nil
		}
		arg, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		fn := &ast.IntrinsicFunctor{Op: ramble.Neg, Args: []ast.Argument{arg}}
		fn.SetLoc(p.loc(tok))
		return fn, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Argument, error) {
	tok := p.peek()
	switch tok.Type {
	case TokenNumber:
		p.next()
		c := &ast.NumericConstant{Literal: tok.Value, Type: ast.NumericInt}
		c.SetLoc(p.loc(tok))
		return c, nil

	case TokenUnsigned:
		p.next()
		c := &ast.NumericConstant{Literal: tok.Value, Type: ast.NumericUint}
		c.SetLoc(p.loc(tok))
		return c, nil

	case TokenFloat:
		p.next()
		c := &ast.NumericConstant{Literal: tok.Value, Type: ast.NumericFloat}
		c.SetLoc(p.loc(tok))
		return c, nil

	case TokenString:
		p.next()
		c := &ast.StringConstant{Value: tok.Value}
		c.SetLoc(p.loc(tok))
		return c, nil

	case TokenLeftParen:
		p.next()
		arg, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRightParen, ")"); err != nil {
			return nil, err
		}
		return arg, nil

	case TokenLeftBracket:
		p.next()
		rec := &ast.RecordInit{}
		rec.SetLoc(p.loc(tok))
		if p.peek().Type != TokenRightBracket {
			for {
				arg, err := p.parseExpression(0)
				if err != nil {
					return nil, err
				}
				rec.Args = append(rec.Args, arg)
				if p.peek().Type != TokenComma {
					break
				}
				p.next()
			}
		}
		if _, err := p.expect(TokenRightBracket, "]"); err != nil {
			return nil, err
		}
		return rec, nil

	case TokenDollar:
		p.next()
		if p.peek().Type != TokenIdent {
			counter := &ast.Counter{}
			counter.SetLoc(p.loc(tok))
			return counter, nil
		}
		name := p.next()
		branch := &ast.BranchInit{Branch: ast.ParseQualifiedName(name.Value)}
		branch.SetLoc(p.loc(tok))
		if p.peek().Type == TokenLeftParen {
			p.next()
			if p.peek().Type != TokenRightParen {
				for {
					arg, err := p.parseExpression(0)
					if err != nil {
						return nil, err
					}
					branch.Args = append(branch.Args, arg)
					if p.peek().Type != TokenComma {
						break
					}
					p.next()
				}
			}
			if _, err := p.expect(TokenRightParen, ")"); err != nil {
				return nil, err
			}
		}
		return branch, nil

	case TokenAt:
		p.next()
		name, err := p.expectIdent("functor name")
		if err != nil {
			return nil, err
		}
		fn := &ast.UserDefinedFunctor{Name: name.Value}
		fn.SetLoc(p.loc(tok))
		if _, err := p.expect(TokenLeftParen, "("); err != nil {
			return nil, err
		}
		if p.peek().Type != TokenRightParen {
			for {
				arg, err := p.parseExpression(0)
				if err != nil {
					return nil, err
				}
				fn.Args = append(fn.Args, arg)
				if p.peek().Type != TokenComma {
					break
				}
				p.next()
			}
		}
		if _, err := p.expect(TokenRightParen, ")"); err != nil {
			return nil, err
		}
		return fn, nil

	case TokenIdent:
		return p.parseIdentArgument(tok)
	}
	return nil, p.errAt(tok, "expected argument")
}

// parseIdentArgument resolves what an identifier means in argument position:
// nil, the wildcard, a type cast, an aggregate, an intrinsic call, or a
// plain variable.
func (p *Parser) parseIdentArgument(tok Token) (ast.Argument, error) {
	switch tok.Value {
	case "nil":
		p.next()
		c := &ast.NilConstant{}
		c.SetLoc(p.loc(tok))
		return c, nil
	case "_":
		p.next()
		u := &ast.UnnamedVariable{}
		u.SetLoc(p.loc(tok))
		return u, nil
	case "as":
		if p.lex.PeekAhead(1).Type == TokenLeftParen {
			p.next()
			p.next()
			value, err := p.parseExpression(0)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenComma, ","); err != nil {
				return nil, err
			}
			typeName, err := p.expectIdent("type name")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenRightParen, ")"); err != nil {
				return nil, err
			}
			cast := &ast.TypeCast{Value: value, Type: ast.ParseQualifiedName(typeName.Value)}
			cast.SetLoc(p.loc(tok))
			return cast, nil
		}
	}

	followedByParen := p.lex.PeekAhead(1).Type == TokenLeftParen

	// min/max with parens are binary intrinsics; without, aggregates.
	if aggOp, isAgg := aggregates[tok.Value]; isAgg && !followedByParen {
		return p.parseAggregator(tok, aggOp)
	}

	if fnOp, isFn := intrinsics[tok.Value]; isFn && followedByParen {
		p.next()
		p.next()
		fn := &ast.IntrinsicFunctor{Op: fnOp}
		fn.SetLoc(p.loc(tok))
		if p.peek().Type != TokenRightParen {
			for {
				arg, err := p.parseExpression(0)
				if err != nil {
					return nil, err
				}
				fn.Args = append(fn.Args, arg)
				if p.peek().Type != TokenComma {
					break
				}
				p.next()
			}
		}
		if _, err := p.expect(TokenRightParen, ")"); err != nil {
			return nil, err
		}
		return fn, nil
	}

	if followedByParen {
		return nil, p.errAt(tok, "unknown functor %s", tok.Value)
	}

	p.next()
	v := &ast.Variable{Name: tok.Value}
	v.SetLoc(p.loc(tok))
	return v, nil
}

// parseAggregator parses "op [target] : { body }".
func (p *Parser) parseAggregator(tok Token, op ramble.AggregateOp) (ast.Argument, error) {
	p.next()
	agg := &ast.Aggregator{Op: op}
	agg.SetLoc(p.loc(tok))

	if op.RequiresTarget() {
		target, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		agg.TargetExpr = target
	}
	if _, err := p.expect(TokenColon, ":"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenLeftBrace, "{"); err != nil {
		return nil, err
	}
	for {
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		agg.Body = append(agg.Body, lit)
		if p.peek().Type != TokenComma {
			break
		}
		p.next()
	}
	if _, err := p.expect(TokenRightBrace, "}"); err != nil {
		return nil, err
	}
	return agg, nil
}

func (p *Parser) peek() Token {
	return p.lex.Peek()
}

func (p *Parser) next() Token {
	return p.lex.Next()
}

func (p *Parser) expect(tt TokenType, what string) (Token, error) {
	tok := p.peek()
	if tok.Type != tt {
		return tok, p.errAt(tok, "expected %s", what)
	}
	return p.next(), nil
}

func (p *Parser) expectIdent(what string) (Token, error) {
	tok := p.peek()
	if tok.Type != TokenIdent {
		return tok, p.errAt(tok, "expected %s", what)
	}
	return p.next(), nil
}

func (p *Parser) loc(tok Token) ast.SrcLoc {
	return ast.SrcLoc{File: p.file, Line: tok.Line, Column: tok.Col}
}

func (p *Parser) errAt(tok Token, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s:%d:%d: %s (got %s)", p.file, tok.Line, tok.Col, msg, tok)
}
