package interp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ramble-dl/ramble/ramble/analysis"
	"github.com/ramble-dl/ramble/ramble/ram"
	"github.com/ramble-dl/ramble/ramble/relation"
	"github.com/ramble-dl/ramble/ramble/storage"
)

// Options configures one evaluation run.
type Options struct {
	// Jobs bounds the worker pool executing Parallel statements. Defaults
	// to GOMAXPROCS.
	Jobs int
	// Store backs the program's input and output directives. Defaults to an
	// empty in-memory store.
	Store storage.FactStore
	// Functors resolves user-defined functor calls.
	Functors *Registry
	// Output receives .printsize lines.
	Output io.Writer
	Logger *logrus.Logger
	// ErrorsAsEmpty turns an evaluation error inside a query into an empty
	// target relation instead of aborting the run.
	ErrorsAsEmpty bool
}

// Interpreter evaluates one RAM program. Relations are materialized up
// front, one store per declared relation, indexed per the unit's index
// selection.
type Interpreter struct {
	prog    *ram.Program
	opts    Options
	index   *analysis.IndexAnalysis
	symbols *SymbolTable
	records *RecordTable
	counter atomic.Int64

	// rels is only remapped by Swap, which the translator emits exclusively
	// in the sequential sections of fixpoint loops.
	rels map[string]relation.Relation

	regexpMu sync.Mutex
	regexps  map[string]*compiledPattern
}

// New prepares an interpreter for the unit. Index selection runs here if it
// has not already.
func New(unit *ram.TranslationUnit, opts Options) *Interpreter {
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.GOMAXPROCS(0)
	}
	if opts.Store == nil {
		opts.Store = storage.NewMemStore()
	}
	if opts.Functors == nil {
		opts.Functors = NewRegistry()
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	in := &Interpreter{
		prog:    unit.Program,
		opts:    opts,
		index:   analysis.IndexAnalysisFor(unit),
		symbols: NewSymbolTable(),
		records: NewRecordTable(),
		rels:    map[string]relation.Relation{},
		regexps: map[string]*compiledPattern{},
	}
	for name, rel := range unit.Program.Relations {
		var orders [][]int
		if sel := in.index.Selection(name); sel != nil {
			orders = sel.Orders
		}
		in.rels[name] = relation.New(rel.TotalArity(), rel.Representation, orders)
	}
	return in
}

// Run executes the program's main statement to completion.
func (in *Interpreter) Run(ctx context.Context) error {
	if in.prog.Main == nil {
		return nil
	}
	return in.execStatement(ctx, in.prog.Main)
}

// Relation returns the store behind a relation, or nil if undeclared.
func (in *Interpreter) Relation(name string) relation.Relation {
	return in.rels[name]
}

// Symbols returns the run's symbol table.
func (in *Interpreter) Symbols() *SymbolTable { return in.symbols }

// Records returns the run's record table.
func (in *Interpreter) Records() *RecordTable { return in.records }

func (in *Interpreter) relation(name string) relation.Relation {
	rel, ok := in.rels[name]
	if !ok {
		panic("interp: reference to undeclared relation " + name)
	}
	return rel
}

// errLoopExit unwinds from an Exit statement to the enclosing Loop.
var errLoopExit = errors.New("loop exit")

// errQueryBreak unwinds from a Break operation to the enclosing Query.
var errQueryBreak = errors.New("query break")

func (in *Interpreter) execStatement(ctx context.Context, stmt ram.Statement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch s := stmt.(type) {
	case *ram.Sequence:
		for _, sub := range s.Stmts {
			if err := in.execStatement(ctx, sub); err != nil {
				return err
			}
		}
		return nil

	case *ram.Parallel:
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(in.opts.Jobs)
		for _, sub := range s.Stmts {
			sub := sub
			g.Go(func() error { return in.execStatement(ctx, sub) })
		}
		return g.Wait()

	case *ram.Loop:
		for {
			err := in.execStatement(ctx, s.Body)
			if errors.Is(err, errLoopExit) {
				return nil
			}
			if err != nil {
				return err
			}
		}

	case *ram.Exit:
		holds, err := in.evalCond(s.Cond, nil)
		if err != nil {
			return err
		}
		if holds {
			return errLoopExit
		}
		return nil

	case *ram.Query:
		return in.execQuery(ctx, s)

	case *ram.Swap:
		in.rels[s.First], in.rels[s.Second] = in.rels[s.Second], in.rels[s.First]
		return nil

	case *ram.Clear:
		in.relation(s.Relation).Purge()
		return nil

	case *ram.Extend:
		return in.execExtend(s)

	case *ram.IO:
		return in.execIO(s)

	case *ram.DebugInfo:
		in.opts.Logger.Debug(s.Message)
		return in.execStatement(ctx, s.Stmt)

	default:
		panic(fmt.Sprintf("interp: unexpected statement %T", stmt))
	}
}

// execExtend merges one relation's classes into another. Only equivalence
// relations have a wholesale merge; anything else degrades to tuple copies.
func (in *Interpreter) execExtend(s *ram.Extend) error {
	dst := in.relation(s.Target)
	src := in.relation(s.Source)
	if d, ok := dst.(*relation.EqRel); ok {
		if sr, ok := src.(*relation.EqRel); ok {
			d.Extend(sr)
			return nil
		}
	}
	it := src.Scan()
	for it.Next() {
		dst.Insert(it.Tuple())
	}
	return nil
}

func (in *Interpreter) execQuery(ctx context.Context, q *ram.Query) error {
	err := in.runQuery(ctx, q)
	if errors.Is(err, errQueryBreak) {
		return nil
	}
	if err != nil && in.opts.ErrorsAsEmpty {
		if target, ok := queryTarget(q.Op); ok {
			in.opts.Logger.WithError(err).Warnf("evaluation failed, leaving %s empty", target)
			in.relation(target).Purge()
			return nil
		}
	}
	return err
}

// runQuery executes the loop nest. When the outer level is a plain scan
// feeding an unguarded insert, the scan is split across the worker pool and
// each worker drains one chunk with its own environment; relation inserts
// are safe for concurrent use. Anything order-sensitive under the scan (a
// guarded insert, a break) keeps the sequential path.
func (in *Interpreter) runQuery(ctx context.Context, q *ram.Query) error {
	depth := queryDepth(q)
	if scan, ok := q.Op.(*ram.Scan); ok && in.opts.Jobs > 1 && partitionable(scan) {
		if rel := in.relation(scan.Relation); rel.Arity() > 0 {
			if parts := rel.View(0).PartitionScan(in.opts.Jobs); len(parts) > 1 {
				g, ctx := errgroup.WithContext(ctx)
				for _, part := range parts {
					it := part
					g.Go(func() error {
						env := make([]relation.Tuple, depth)
						for it.Next() {
							env[scan.ID] = it.Tuple()
							if err := in.execOp(ctx, scan.Nested(), env); err != nil {
								return err
							}
						}
						return nil
					})
				}
				return g.Wait()
			}
		}
	}
	env := make([]relation.Tuple, depth)
	return in.execOp(ctx, q.Op, env)
}

func partitionable(scan *ram.Scan) bool {
	op := scan.Nested()
	for {
		switch o := op.(type) {
		case *ram.Insert:
			return true
		case *ram.GuardedInsert:
			return false
		case *ram.Break:
			return false
		case ram.NestedOperation:
			op = o.Nested()
		default:
			return false
		}
	}
}

// queryDepth returns the size of the tuple environment: one slot past the
// largest tuple id bound anywhere in the query.
func queryDepth(q *ram.Query) int {
	max := -1
	ram.Visit(q, func(n ram.Node) {
		if op, ok := n.(ram.TupleOperation); ok && op.TupleID() > max {
			max = op.TupleID()
		}
	})
	return max + 1
}

// queryTarget returns the relation the query's leaf inserts into.
func queryTarget(op ram.Operation) (string, bool) {
	for {
		switch o := op.(type) {
		case *ram.Insert:
			return o.Relation, true
		case *ram.GuardedInsert:
			return o.Relation, true
		case ram.NestedOperation:
			op = o.Nested()
		default:
			return "", false
		}
	}
}

func (in *Interpreter) execIO(stmt *ram.IO) error {
	decl := in.prog.Relation(stmt.Relation)
	if decl == nil {
		return fmt.Errorf("interp: io on undeclared relation %s", stmt.Relation)
	}
	rel := in.relation(stmt.Relation)

	switch stmt.Mode {
	case ram.IOLoad:
		rows, err := in.opts.Store.Load(stmt.Relation, stmt.Params)
		if err != nil {
			return err
		}
		for _, row := range rows {
			tuple, err := in.decodeRow(decl, row)
			if err != nil {
				return err
			}
			rel.Insert(tuple)
		}
		return nil

	case ram.IOStore:
		var rows [][]string
		it := rel.Scan()
		for it.Next() {
			row, err := in.encodeRow(decl, it.Tuple())
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return in.opts.Store.Store(stmt.Relation, stmt.Params, rows)

	case ram.IOPrintSize:
		_, err := fmt.Fprintf(in.opts.Output, "%s\t%d\n", stmt.Relation, rel.Size())
		return err

	default:
		panic(fmt.Sprintf("interp: unexpected io mode %v", stmt.Mode))
	}
}
