package interp

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ramble-dl/ramble/ramble"
	"github.com/ramble-dl/ramble/ramble/analysis"
	"github.com/ramble-dl/ramble/ramble/ram"
	"github.com/ramble-dl/ramble/ramble/relation"
)

const (
	lowSentinel  = ramble.RamDomain(math.MinInt64)
	highSentinel = ramble.RamDomain(math.MaxInt64)
)

func (in *Interpreter) execOp(ctx context.Context, op ram.Operation, env []relation.Tuple) error {
	switch o := op.(type) {
	case *ram.Scan:
		it := in.relation(o.Relation).Scan()
		for it.Next() {
			env[o.ID] = it.Tuple()
			if err := in.execOp(ctx, o.Nested(), env); err != nil {
				return err
			}
		}
		return nil

	case *ram.IndexScan:
		return in.execIndexScan(ctx, o, env)

	case *ram.Filter:
		holds, err := in.evalCond(o.Cond, env)
		if err != nil {
			return err
		}
		if !holds {
			return nil
		}
		return in.execOp(ctx, o.Nested(), env)

	case *ram.Break:
		holds, err := in.evalCond(o.Cond, env)
		if err != nil {
			return err
		}
		if holds {
			return errQueryBreak
		}
		return in.execOp(ctx, o.Nested(), env)

	case *ram.UnpackRecord:
		ref, err := in.evalExpr(o.Ref, env)
		if err != nil {
			return err
		}
		fields, ok := in.records.Unpack(ref, o.Arity)
		if !ok {
			// The nil reference, or an arity mismatch: no binding.
			return nil
		}
		env[o.ID] = fields
		return in.execOp(ctx, o.Nested(), env)

	case *ram.Aggregate:
		return in.execAggregate(ctx, o, env)

	case *ram.NestedIntrinsic:
		return in.execNestedIntrinsic(ctx, o, env)

	case *ram.Insert:
		tuple, err := in.evalTuple(o.Values, env)
		if err != nil {
			return err
		}
		in.relation(o.Relation).Insert(tuple)
		return nil

	case *ram.GuardedInsert:
		holds, err := in.evalCond(o.Guard, env)
		if err != nil {
			return err
		}
		if !holds {
			return nil
		}
		tuple, err := in.evalTuple(o.Values, env)
		if err != nil {
			return err
		}
		in.relation(o.Relation).Insert(tuple)
		return nil

	default:
		panic(fmt.Sprintf("interp: unexpected operation %T", op))
	}
}

// execIndexScan evaluates the per-column bounds, walks the serving index,
// and re-checks every column so correctness never depends on the chosen
// order.
func (in *Interpreter) execIndexScan(ctx context.Context, scan *ram.IndexScan, env []relation.Tuple) error {
	width := len(scan.Low)
	low := make(relation.Tuple, width)
	high := make(relation.Tuple, width)
	sig := analysis.NewSearchSignature(width)
	for i := 0; i < width; i++ {
		_, lowUndef := scan.Low[i].(*ram.UndefValue)
		_, highUndef := scan.High[i].(*ram.UndefValue)
		low[i], high[i] = lowSentinel, highSentinel
		var err error
		if !lowUndef {
			if low[i], err = in.evalExpr(scan.Low[i], env); err != nil {
				return err
			}
		}
		if !highUndef {
			if high[i], err = in.evalExpr(scan.High[i], env); err != nil {
				return err
			}
		}
		switch {
		case lowUndef && highUndef:
		case !lowUndef && !highUndef && low[i] == high[i]:
			sig[i] = analysis.Equal
		default:
			sig[i] = analysis.Inequal
		}
	}

	it := in.viewFor(scan.Relation, sig).Range(low, high)
	for it.Next() {
		t := it.Tuple()
		if !withinBounds(t, low, high) {
			continue
		}
		env[scan.ID] = t
		if err := in.execOp(ctx, scan.Nested(), env); err != nil {
			return err
		}
	}
	return nil
}

// viewFor picks the index serving the search, the master index when the
// selection does not know the signature.
func (in *Interpreter) viewFor(relName string, sig analysis.SearchSignature) relation.View {
	rel := in.relation(relName)
	if sel := in.index.Selection(relName); sel != nil {
		if id, ok := sel.IndexFor(sig); ok {
			return rel.View(id)
		}
	}
	return rel.View(0)
}

func withinBounds(t, low, high relation.Tuple) bool {
	for i := range t {
		if t[i] < low[i] || t[i] > high[i] {
			return false
		}
	}
	return true
}

// execAggregate folds the target expression over every qualifying tuple,
// through the float or unsigned view when the target column carries one.
// count and sum bind 0 on empty input; min, max and mean bind nothing.
func (in *Interpreter) execAggregate(ctx context.Context, agg *ram.Aggregate, env []relation.Tuple) error {
	count := 0
	var acc ramble.RamDomain
	var sum float64
	it := in.relation(agg.Relation).Scan()
	for it.Next() {
		env[agg.ID] = it.Tuple()
		holds, err := in.evalCond(agg.Cond, env)
		if err != nil {
			return err
		}
		if !holds {
			continue
		}
		v, err := in.evalExpr(agg.Expr, env)
		if err != nil {
			return err
		}
		switch {
		case count == 0:
			acc = v
		case agg.Fn == ramble.AggSum:
			acc, err = in.evalArithmetic(ramble.Add, agg.TypeAttr, acc, v)
			if err != nil {
				return err
			}
		case agg.Fn == ramble.AggMin && better(ramble.Min, agg.TypeAttr, v, acc):
			acc = v
		case agg.Fn == ramble.AggMax && better(ramble.Max, agg.TypeAttr, v, acc):
			acc = v
		}
		if agg.Fn == ramble.AggMean {
			sum += numericValue(agg.TypeAttr, v)
		}
		count++
	}

	var result ramble.RamDomain
	switch agg.Fn {
	case ramble.AggCount:
		result = ramble.RamDomain(count)
	case ramble.AggSum:
		if count == 0 {
			acc = 0
		}
		result = acc
	case ramble.AggMean:
		if count == 0 {
			return nil
		}
		result = ramble.FromFloat(sum / float64(count))
	default:
		if count == 0 {
			return nil
		}
		result = acc
	}
	env[agg.ID] = relation.Tuple{result}
	return in.execOp(ctx, agg.Nested(), env)
}

// numericValue reads a stored word as the real number it encodes.
func numericValue(attr ramble.TypeAttribute, v ramble.RamDomain) float64 {
	switch attr {
	case ramble.Float:
		return ramble.ToFloat(v)
	case ramble.Unsigned:
		return float64(ramble.ToUnsigned(v))
	default:
		return float64(v)
	}
}

func (in *Interpreter) execNestedIntrinsic(ctx context.Context, gen *ram.NestedIntrinsic, env []relation.Tuple) error {
	if gen.Op != ramble.Range {
		panic(fmt.Sprintf("interp: %v is not a multi-result functor", gen.Op))
	}
	args, err := in.evalTuple(gen.Args, env)
	if err != nil {
		return err
	}
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("interp: range expects 2 or 3 arguments, got %d", len(args))
	}
	start, stop := args[0], args[1]
	step := ramble.RamDomain(1)
	if len(args) == 3 {
		step = args[2]
	}
	if step == 0 {
		return fmt.Errorf("interp: range step must not be zero")
	}
	for v := start; (step > 0 && v < stop) || (step < 0 && v > stop); v += step {
		env[gen.ID] = relation.Tuple{v}
		if err := in.execOp(ctx, gen.Nested(), env); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) evalTuple(exprs []ram.Expression, env []relation.Tuple) (relation.Tuple, error) {
	out := make(relation.Tuple, len(exprs))
	for i, e := range exprs {
		v, err := in.evalExpr(e, env)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (in *Interpreter) evalExpr(expr ram.Expression, env []relation.Tuple) (ramble.RamDomain, error) {
	switch e := expr.(type) {
	case *ram.SignedConstant:
		return e.Value, nil
	case *ram.UnsignedConstant:
		return ramble.FromUnsigned(e.Value), nil
	case *ram.FloatConstant:
		return ramble.FromFloat(e.Value), nil
	case *ram.StringConstant:
		return in.symbols.Encode(e.Value), nil
	case *ram.TupleElement:
		return env[e.TupleID][e.Column], nil
	case *ram.AutoIncrement:
		return in.counter.Add(1) - 1, nil
	case *ram.RelationSize:
		return ramble.RamDomain(in.relation(e.Relation).Size()), nil
	case *ram.PackRecord:
		vals, err := in.evalTuple(e.Args, env)
		if err != nil {
			return 0, err
		}
		return in.records.Pack(vals), nil
	case *ram.IntrinsicOperator:
		args, err := in.evalTuple(e.Args, env)
		if err != nil {
			return 0, err
		}
		return in.evalIntrinsic(e.Op, e.TypeAttr, args)
	case *ram.UserDefinedOperator:
		args, err := in.evalTuple(e.Args, env)
		if err != nil {
			return 0, err
		}
		return in.opts.Functors.Call(e.Name, in.symbols, in.records, args)
	case *ram.UndefValue:
		return 0, fmt.Errorf("interp: undefined value evaluated outside a pattern")
	default:
		panic(fmt.Sprintf("interp: unexpected expression %T", expr))
	}
}

func (in *Interpreter) evalCond(cond ram.Condition, env []relation.Tuple) (bool, error) {
	switch c := cond.(type) {
	case *ram.True:
		return true, nil
	case *ram.False:
		return false, nil
	case *ram.Conjunction:
		lhs, err := in.evalCond(c.LHS, env)
		if err != nil || !lhs {
			return false, err
		}
		return in.evalCond(c.RHS, env)
	case *ram.Negation:
		holds, err := in.evalCond(c.Cond, env)
		return !holds, err
	case *ram.Constraint:
		return in.evalConstraint(c, env)
	case *ram.EmptinessCheck:
		return in.relation(c.Relation).Size() == 0, nil
	case *ram.ExistenceCheck:
		return in.evalExistence(c.Relation, c.Values, env)
	case *ram.ProvenanceExistenceCheck:
		return in.evalProvenanceExistence(c, env)
	default:
		panic(fmt.Sprintf("interp: unexpected condition %T", cond))
	}
}

func (in *Interpreter) evalConstraint(c *ram.Constraint, env []relation.Tuple) (bool, error) {
	lhs, err := in.evalExpr(c.LHS, env)
	if err != nil {
		return false, err
	}
	rhs, err := in.evalExpr(c.RHS, env)
	if err != nil {
		return false, err
	}
	switch c.Op {
	case ramble.EQ:
		return lhs == rhs, nil
	case ramble.NE:
		return lhs != rhs, nil
	case ramble.LT:
		return lhs < rhs, nil
	case ramble.LE:
		return lhs <= rhs, nil
	case ramble.GT:
		return lhs > rhs, nil
	case ramble.GE:
		return lhs >= rhs, nil
	case ramble.Match, ramble.NotMatch:
		matched, err := in.matchSymbols(lhs, rhs)
		if err != nil {
			return false, err
		}
		return matched == (c.Op == ramble.Match), nil
	case ramble.Contains, ramble.NotContains:
		contained, err := in.containsSymbols(lhs, rhs)
		if err != nil {
			return false, err
		}
		return contained == (c.Op == ramble.Contains), nil
	default:
		panic(fmt.Sprintf("interp: unexpected constraint operator %v", c.Op))
	}
}

// evalExistence checks the pattern against the relation: fully bound
// patterns use exact membership, partial patterns walk the serving index.
func (in *Interpreter) evalExistence(relName string, values []ram.Expression, env []relation.Tuple) (bool, error) {
	rel := in.relation(relName)
	if len(values) == 0 {
		return rel.Size() > 0, nil
	}

	width := len(values)
	low := make(relation.Tuple, width)
	high := make(relation.Tuple, width)
	sig := analysis.NewSearchSignature(width)
	bound := 0
	for i, v := range values {
		if _, undef := v.(*ram.UndefValue); undef {
			low[i], high[i] = lowSentinel, highSentinel
			continue
		}
		val, err := in.evalExpr(v, env)
		if err != nil {
			return false, err
		}
		low[i], high[i] = val, val
		sig[i] = analysis.Equal
		bound++
	}
	if bound == width {
		return rel.Contains(low), nil
	}
	it := in.viewFor(relName, sig).Range(low, high)
	for it.Next() {
		if withinBounds(it.Tuple(), low, high) {
			return true, nil
		}
	}
	return false, nil
}

// evalProvenanceExistence matches the payload columns and requires the
// witness's derivation level, the last auxiliary column, to be strictly
// below the bound. The rule-id column stays free.
func (in *Interpreter) evalProvenanceExistence(c *ram.ProvenanceExistenceCheck, env []relation.Tuple) (bool, error) {
	decl := in.prog.Relation(c.Relation)
	aux := 2
	if decl != nil {
		aux = decl.AuxArity
	}
	levelBound, err := in.evalExpr(c.LevelBound, env)
	if err != nil {
		return false, err
	}

	width := len(c.Values) + aux
	low := make(relation.Tuple, width)
	high := make(relation.Tuple, width)
	sig := analysis.NewSearchSignature(width)
	for i, v := range c.Values {
		if _, undef := v.(*ram.UndefValue); undef {
			low[i], high[i] = lowSentinel, highSentinel
			continue
		}
		val, err := in.evalExpr(v, env)
		if err != nil {
			return false, err
		}
		low[i], high[i] = val, val
		sig[i] = analysis.Equal
	}
	for i := len(c.Values); i < width; i++ {
		low[i], high[i] = lowSentinel, highSentinel
	}
	if aux > 0 {
		high[width-1] = levelBound - 1
		sig[width-1] = analysis.Inequal
	}

	it := in.viewFor(c.Relation, sig).Range(low, high)
	for it.Next() {
		if withinBounds(it.Tuple(), low, high) {
			return true, nil
		}
	}
	return false, nil
}

// compiledPattern caches one regular expression; a pattern that fails to
// compile stays cached as failed.
type compiledPattern struct {
	re  *regexp.Regexp
	err error
}

func (in *Interpreter) pattern(pat string) (*regexp.Regexp, error) {
	in.regexpMu.Lock()
	defer in.regexpMu.Unlock()
	if cached, ok := in.regexps[pat]; ok {
		return cached.re, cached.err
	}
	re, err := regexp.Compile("^(?:" + pat + ")$")
	if err != nil {
		err = fmt.Errorf("interp: bad match pattern %q: %w", pat, err)
	}
	in.regexps[pat] = &compiledPattern{re: re, err: err}
	return re, err
}

func (in *Interpreter) matchSymbols(pattern, text ramble.RamDomain) (bool, error) {
	pat, err := in.decodeSymbol(pattern)
	if err != nil {
		return false, err
	}
	str, err := in.decodeSymbol(text)
	if err != nil {
		return false, err
	}
	re, err := in.pattern(pat)
	if err != nil {
		return false, err
	}
	return re.MatchString(str), nil
}

func (in *Interpreter) containsSymbols(needle, haystack ramble.RamDomain) (bool, error) {
	sub, err := in.decodeSymbol(needle)
	if err != nil {
		return false, err
	}
	str, err := in.decodeSymbol(haystack)
	if err != nil {
		return false, err
	}
	return strings.Contains(str, sub), nil
}

func (in *Interpreter) decodeSymbol(id ramble.RamDomain) (string, error) {
	s, ok := in.symbols.Decode(id)
	if !ok {
		return "", fmt.Errorf("interp: invalid symbol reference %d", id)
	}
	return s, nil
}

// decodeRow converts one text row into a stored tuple, padding auxiliary
// columns with zeroes.
func (in *Interpreter) decodeRow(decl *ram.Relation, row []string) (relation.Tuple, error) {
	if len(row) != decl.Arity {
		return nil, fmt.Errorf("interp: %s expects %d fields, got %d", decl.Name, decl.Arity, len(row))
	}
	tuple := make(relation.Tuple, decl.TotalArity())
	for i, field := range row {
		v, err := in.decodeField(decl.AttributeTypes[i], field)
		if err != nil {
			return nil, fmt.Errorf("interp: %s column %s: %w", decl.Name, decl.AttributeNames[i], err)
		}
		tuple[i] = v
	}
	return tuple, nil
}

func (in *Interpreter) decodeField(attr ramble.TypeAttribute, field string) (ramble.RamDomain, error) {
	switch attr {
	case ramble.Symbol:
		return in.symbols.Encode(field), nil
	case ramble.Unsigned:
		v, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return 0, err
		}
		return ramble.FromUnsigned(v), nil
	case ramble.Float:
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return 0, err
		}
		return ramble.FromFloat(v), nil
	default:
		return strconv.ParseInt(field, 10, 64)
	}
}

// encodeRow renders the declared columns of a stored tuple as text.
func (in *Interpreter) encodeRow(decl *ram.Relation, tuple relation.Tuple) ([]string, error) {
	row := make([]string, decl.Arity)
	for i := 0; i < decl.Arity; i++ {
		field, err := in.encodeField(decl.AttributeTypes[i], tuple[i])
		if err != nil {
			return nil, fmt.Errorf("interp: %s column %s: %w", decl.Name, decl.AttributeNames[i], err)
		}
		row[i] = field
	}
	return row, nil
}

func (in *Interpreter) encodeField(attr ramble.TypeAttribute, v ramble.RamDomain) (string, error) {
	switch attr {
	case ramble.Symbol:
		return in.decodeSymbol(v)
	case ramble.Unsigned:
		return strconv.FormatUint(ramble.ToUnsigned(v), 10), nil
	case ramble.Float:
		return strconv.FormatFloat(ramble.ToFloat(v), 'g', -1, 64), nil
	default:
		return strconv.FormatInt(v, 10), nil
	}
}
