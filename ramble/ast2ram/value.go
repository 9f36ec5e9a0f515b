package ast2ram

import (
	"fmt"
	"strconv"

	"github.com/ramble-dl/ramble/ramble"
	"github.com/ramble-dl/ramble/ramble/ast"
	"github.com/ramble-dl/ramble/ramble/ram"
)

// value translates one AST argument into a RAM expression. It is pure with
// respect to the clause context: all binding decisions were made while the
// value index was built. A variable without a definition point here is a
// translator bug.
func (t *clauseTranslator) value(arg ast.Argument) ram.Expression {
	switch a := arg.(type) {
	case *ast.Variable:
		if loc, ok := t.index.definition(a.Name); ok {
			return &ram.TupleElement{TupleID: loc.TupleID, Column: loc.Column}
		}
		if loc, ok := t.locals[a.Name]; ok {
			return &ram.TupleElement{TupleID: loc.TupleID, Column: loc.Column}
		}
		if expr, ok := t.aliases[a.Name]; ok {
			return t.value(expr)
		}
		panic(fmt.Sprintf("ast2ram: variable %s has no definition point in %s", a.Name, t.clause))
	case *ast.UnnamedVariable:
		return &ram.UndefValue{}
	case *ast.Counter:
		return &ram.AutoIncrement{}
	case *ast.NumericConstant:
		return numericConstant(a)
	case *ast.StringConstant:
		return &ram.StringConstant{Value: a.Value}
	case *ast.NilConstant:
		return &ram.SignedConstant{Value: 0}
	case *ast.TypeCast:
		// Casts are a static assertion; the value passes through unchanged.
		return t.value(a.Value)
	case *ast.IntrinsicFunctor:
		if id, ok := t.index.generator(a); ok {
			return &ram.TupleElement{TupleID: id, Column: 0}
		}
		return &ram.IntrinsicOperator{
			Op:       a.Op,
			TypeAttr: functorTypeAttr(a.Op),
			Args:     t.values(a.Args),
		}
	case *ast.UserDefinedFunctor:
		decl := t.sem.Functor(a.Name)
		if decl == nil {
			panic(fmt.Sprintf("ast2ram: unknown functor @%s in %s", a.Name, t.clause))
		}
		argTypes := make([]ramble.TypeAttribute, len(decl.Params))
		for i, param := range decl.Params {
			argTypes[i] = t.attributeType(param.TypeName)
		}
		return &ram.UserDefinedOperator{
			Name:       a.Name,
			ArgTypes:   argTypes,
			ReturnType: t.attributeType(decl.Return),
			Stateful:   decl.Stateful,
			Args:       t.values(a.Args),
		}
	case *ast.RecordInit:
		return &ram.PackRecord{Args: t.values(a.Args)}
	case *ast.BranchInit:
		return t.branchValue(a)
	case *ast.Aggregator:
		if id, ok := t.index.generator(a); ok {
			return &ram.TupleElement{TupleID: id, Column: 0}
		}
		panic(fmt.Sprintf("ast2ram: aggregator without generator level in %s", t.clause))
	}
	panic(fmt.Sprintf("ast2ram: unexpected argument %T in %s", arg, t.clause))
}

func (t *clauseTranslator) values(args []ast.Argument) []ram.Expression {
	out := make([]ram.Expression, len(args))
	for i, arg := range args {
		out[i] = t.value(arg)
	}
	return out
}

// branchValue encodes an ADT value as (tag, fields-record).
func (t *clauseTranslator) branchValue(b *ast.BranchInit) ram.Expression {
	_, _, tag, ok := t.sem.Types.Branch(b.Branch)
	if !ok {
		panic(fmt.Sprintf("ast2ram: unknown branch $%s in %s", b.Branch, t.clause))
	}
	return &ram.PackRecord{Args: []ram.Expression{
		&ram.SignedConstant{Value: ramble.RamDomain(tag)},
		&ram.PackRecord{Args: t.values(b.Args)},
	}}
}

func (t *clauseTranslator) attributeType(name ast.QualifiedName) ramble.TypeAttribute {
	attr, ok := t.sem.Types.Attribute(name)
	if !ok {
		return ramble.Signed
	}
	return attr
}

// constraint translates a binary constraint literal.
func (t *clauseTranslator) constraint(c *ast.BinaryConstraint) ram.Condition {
	return &ram.Constraint{Op: c.Op, LHS: t.value(c.LHS), RHS: t.value(c.RHS)}
}

// negation translates a negated atom into a non-existence condition over the
// full relation. Under provenance the check also requires the witness to
// carry a strictly lower derivation level, so no tuple justifies itself.
func (t *clauseTranslator) negation(n *ast.Negation) ram.Condition {
	values := make([]ram.Expression, len(n.Atom.Args))
	for i, arg := range n.Atom.Args {
		if _, wildcard := arg.(*ast.UnnamedVariable); wildcard {
			values[i] = &ram.UndefValue{}
			continue
		}
		values[i] = t.value(arg)
	}
	name := n.Atom.Name.String()
	if t.prov {
		return &ram.Negation{Cond: &ram.ProvenanceExistenceCheck{
			Relation:   name,
			Values:     values,
			LevelBound: t.levelExpr(),
		}}
	}
	return &ram.Negation{Cond: &ram.ExistenceCheck{Relation: name, Values: values}}
}

func numericConstant(n *ast.NumericConstant) ram.Expression {
	switch n.Type {
	case ast.NumericUint:
		v, err := strconv.ParseUint(n.Literal, 0, 64)
		if err != nil {
			panic(fmt.Sprintf("ast2ram: bad unsigned literal %q: %v", n.Literal, err))
		}
		return &ram.UnsignedConstant{Value: ramble.RamUnsigned(v)}
	case ast.NumericFloat:
		v, err := strconv.ParseFloat(n.Literal, 64)
		if err != nil {
			panic(fmt.Sprintf("ast2ram: bad float literal %q: %v", n.Literal, err))
		}
		return &ram.FloatConstant{Value: ramble.RamFloat(v)}
	default:
		v, err := strconv.ParseInt(n.Literal, 0, 64)
		if err != nil {
			panic(fmt.Sprintf("ast2ram: bad numeric literal %q: %v", n.Literal, err))
		}
		return &ram.SignedConstant{Value: ramble.RamDomain(v)}
	}
}

// functorTypeAttr is the structural result kind of an intrinsic. The symbol
// producers are the only ones the backend treats differently.
func functorTypeAttr(op ramble.FunctorOp) ramble.TypeAttribute {
	switch op {
	case ramble.Cat, ramble.Substr, ramble.ToString:
		return ramble.Symbol
	}
	return ramble.Signed
}
