// Package ramble holds the domain types shared by every stage of the
// compiler: the value domain, attribute types, operator enumerations, and
// relation representations.
package ramble

import (
	"fmt"
	"math"
)

// RamDomain is the uniform machine word all tuple values are carried in.
// Signed values are stored directly; unsigned and floating-point values are
// bit-cast. Symbols and records are stored as table references.
type RamDomain = int64

// RamUnsigned is the unsigned view of a RamDomain.
type RamUnsigned = uint64

// RamFloat is the floating-point view of a RamDomain.
type RamFloat = float64

// FromUnsigned bit-casts an unsigned value into the domain.
func FromUnsigned(u RamUnsigned) RamDomain { return int64(u) }

// ToUnsigned bit-casts a domain value to unsigned.
func ToUnsigned(d RamDomain) RamUnsigned { return uint64(d) }

// FromFloat bit-casts a float into the domain.
func FromFloat(f RamFloat) RamDomain { return int64(math.Float64bits(f)) }

// ToFloat bit-casts a domain value to float.
func ToFloat(d RamDomain) RamFloat { return math.Float64frombits(uint64(d)) }

// TypeAttribute classifies every attribute of every relation. Each value in
// each tuple carries exactly one of these, structurally.
type TypeAttribute uint8

const (
	Signed TypeAttribute = iota
	Unsigned
	Float
	Symbol
	Record
	ADT
)

func (t TypeAttribute) String() string {
	switch t {
	case Signed:
		return "signed"
	case Unsigned:
		return "unsigned"
	case Float:
		return "float"
	case Symbol:
		return "symbol"
	case Record:
		return "record"
	case ADT:
		return "adt"
	}
	return fmt.Sprintf("TypeAttribute(%d)", uint8(t))
}

// Char returns the single-character encoding used in synthesized relation
// type names: f for float, u for unsigned, i for everything carried as a
// signed word (symbols, records and ADTs included).
func (t TypeAttribute) Char() byte {
	switch t {
	case Float:
		return 'f'
	case Unsigned:
		return 'u'
	default:
		return 'i'
	}
}

// BinaryConstraintOp enumerates comparison operators between two values.
type BinaryConstraintOp uint8

const (
	EQ BinaryConstraintOp = iota
	NE
	LT
	LE
	GT
	GE
	Match
	NotMatch
	Contains
	NotContains
)

func (op BinaryConstraintOp) String() string {
	switch op {
	case EQ:
		return "="
	case NE:
		return "!="
	case LT:
		return "<"
	case LE:
		return "<="
	case GT:
		return ">"
	case GE:
		return ">="
	case Match:
		return "match"
	case NotMatch:
		return "!match"
	case Contains:
		return "contains"
	case NotContains:
		return "!contains"
	}
	return fmt.Sprintf("BinaryConstraintOp(%d)", uint8(op))
}

// IsEquality reports whether the operator is plain equality.
func (op BinaryConstraintOp) IsEquality() bool {
	return op == EQ
}

// Negated returns the complementary operator.
func (op BinaryConstraintOp) Negated() BinaryConstraintOp {
	switch op {
	case EQ:
		return NE
	case NE:
		return EQ
	case LT:
		return GE
	case LE:
		return GT
	case GT:
		return LE
	case GE:
		return LT
	case Match:
		return NotMatch
	case NotMatch:
		return Match
	case Contains:
		return NotContains
	case NotContains:
		return Contains
	}
	panic(fmt.Sprintf("ramble: no negation for %v", op))
}

// FunctorOp enumerates the intrinsic functors.
type FunctorOp uint8

const (
	Add FunctorOp = iota
	Sub
	Mul
	Div
	Mod
	Exp
	Neg
	BAnd
	BOr
	BXor
	BNot
	Max
	Min
	Cat
	StrLen
	Substr
	Ord
	ToNumber
	ToString
	// Range is multi-result: it binds one value per step of the range.
	Range
)

func (op FunctorOp) String() string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Mod:
		return "%"
	case Exp:
		return "^"
	case Neg:
		return "-"
	case BAnd:
		return "band"
	case BOr:
		return "bor"
	case BXor:
		return "bxor"
	case BNot:
		return "bnot"
	case Max:
		return "max"
	case Min:
		return "min"
	case Cat:
		return "cat"
	case StrLen:
		return "strlen"
	case Substr:
		return "substr"
	case Ord:
		return "ord"
	case ToNumber:
		return "to_number"
	case ToString:
		return "to_string"
	case Range:
		return "range"
	}
	return fmt.Sprintf("FunctorOp(%d)", uint8(op))
}

// IsInfix reports whether the functor prints between its two arguments.
func (op FunctorOp) IsInfix() bool {
	switch op {
	case Add, Sub, Mul, Div, Mod, Exp:
		return true
	}
	return false
}

// IsMultiResult reports whether the functor binds more than one result and
// therefore becomes a generator level during clause translation.
func (op FunctorOp) IsMultiResult() bool {
	return op == Range
}

// AggregateOp enumerates the aggregation operators.
type AggregateOp uint8

const (
	AggCount AggregateOp = iota
	AggSum
	AggMin
	AggMax
	AggMean
)

func (op AggregateOp) String() string {
	switch op {
	case AggCount:
		return "count"
	case AggSum:
		return "sum"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	case AggMean:
		return "mean"
	}
	return fmt.Sprintf("AggregateOp(%d)", uint8(op))
}

// RequiresTarget reports whether the aggregate needs a target expression.
func (op AggregateOp) RequiresTarget() bool {
	return op != AggCount
}

// RelationRepresentation selects the storage backing a relation.
type RelationRepresentation uint8

const (
	DefaultRepresentation RelationRepresentation = iota
	BTreeRepresentation
	BrieRepresentation
	EqRelRepresentation
	InfoRepresentation
)

func (r RelationRepresentation) String() string {
	switch r {
	case DefaultRepresentation:
		return "default"
	case BTreeRepresentation:
		return "btree"
	case BrieRepresentation:
		return "brie"
	case EqRelRepresentation:
		return "eqrel"
	case InfoRepresentation:
		return "info"
	}
	return fmt.Sprintf("RelationRepresentation(%d)", uint8(r))
}
