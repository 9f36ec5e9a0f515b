package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"

	"github.com/ramble-dl/ramble/ramble"
	"github.com/ramble-dl/ramble/ramble/ast2ram"
	"github.com/ramble-dl/ramble/ramble/interp"
	"github.com/ramble-dl/ramble/ramble/parser"
	"github.com/ramble-dl/ramble/ramble/ram"
	"github.com/ramble-dl/ramble/ramble/semantic"
	"github.com/ramble-dl/ramble/ramble/storage"
	"github.com/ramble-dl/ramble/ramble/synth"
	"github.com/ramble-dl/ramble/ramble/transform"
)

func main() {
	var (
		factsDir   string
		outDir     string
		dbPath     string
		jobs       int
		verbose    bool
		provenance bool
		reportPath string
		dump       bool
		showTypes  bool
		showRAM    bool
	)

	flag.StringVar(&factsDir, "facts", ".", "directory to read .facts input files from")
	flag.StringVar(&outDir, "out", ".", "directory to write .csv output files to")
	flag.StringVar(&dbPath, "db", "", "back relation I/O with a badger database instead of fact files")
	flag.IntVar(&jobs, "jobs", 0, "parallel evaluation width (0 = all cores)")
	flag.BoolVar(&verbose, "verbose", false, "enable debug logging")
	flag.BoolVar(&provenance, "provenance", false, "record rule and derivation-level annotations on every tuple")
	flag.StringVar(&reportPath, "report", "", "write the optimizer's pass-by-pass report to a file")
	flag.BoolVar(&dump, "dump", false, "print every relation as a table after evaluation")
	flag.BoolVar(&showTypes, "types", false, "print the synthesized relation types and exit")
	flag.BoolVar(&showRAM, "ram", false, "print the optimized RAM program and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] program.dl\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Compile and evaluate a Datalog program.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s path.dl                       # Evaluate with facts from the working directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -facts in -out results path.dl # Separate input and output directories\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -db facts.db path.dl          # Load and store relations in badger\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -provenance -dump path.dl     # Show derivations with rule ids and levels\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -report passes.txt path.dl    # Record what each optimizer pass changed\n", os.Args[0])
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	sourcePath := flag.Arg(0)

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		logrus.SetLevel(logrus.DebugLevel)
	}

	source, err := os.ReadFile(sourcePath)
	if err != nil {
		fatalf("cannot read program: %v", err)
	}

	prog, err := parser.Parse(sourcePath, string(source))
	if err != nil {
		fatalf("%v", err)
	}

	sem, report := semantic.Analyze(prog)
	printDiagnostics(report)
	if report.HasErrors() {
		fatalf("%d error(s) in %s", report.ErrorCount(), sourcePath)
	}

	unit := ast2ram.Translate(sem, ast2ram.Config{Provenance: provenance})
	pipeline := transform.DefaultPipeline()
	if reportPath != "" {
		pipeline.Report = &transform.DebugReport{}
	}
	pipeline.Apply(unit)

	if reportPath != "" {
		f, err := os.Create(reportPath)
		if err != nil {
			fatalf("cannot write report: %v", err)
		}
		if _, err := pipeline.Report.WriteTo(f); err != nil {
			fatalf("cannot write report: %v", err)
		}
		f.Close()
	}

	if showTypes {
		for _, name := range synth.Types(unit) {
			fmt.Println(name)
		}
		return
	}
	if showRAM {
		fmt.Println(unit.Program.String())
		return
	}

	var store storage.FactStore
	if dbPath != "" {
		bs, err := storage.OpenBadger(dbPath)
		if err != nil {
			fatalf("cannot open database: %v", err)
		}
		defer bs.Close()
		store = bs
	} else {
		store = &storage.DirStore{InputDir: factsDir, OutputDir: outDir}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errorsAsEmpty := false
	for _, pragma := range prog.Pragmas {
		if pragma.Key == "errors-as-empty" {
			errorsAsEmpty = true
		}
	}

	in := interp.New(unit, interp.Options{
		Jobs:          jobs,
		Store:         store,
		Output:        os.Stdout,
		Logger:        logger,
		ErrorsAsEmpty: errorsAsEmpty,
	})

	start := time.Now()
	if err := in.Run(ctx); err != nil {
		fatalf("evaluation failed: %v", err)
	}
	logger.WithField("elapsed", time.Since(start)).Debug("evaluation finished")

	if dump {
		dumpRelations(unit.Program, in)
	}
}

func fatalf(format string, args ...interface{}) {
	color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error: ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printDiagnostics(report *semantic.Report) {
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)
	for _, d := range report.Diagnostics() {
		if d.Severity == semantic.SeverityError {
			red.Fprintln(os.Stderr, d.String())
		} else {
			yellow.Fprintln(os.Stderr, d.String())
		}
	}
}

// dumpRelations prints every source-level relation, auxiliary provenance
// columns included.
func dumpRelations(prog *ram.Program, in *interp.Interpreter) {
	for _, name := range prog.RelationNames() {
		decl := prog.Relation(name)
		if decl.IsTemp() {
			continue
		}
		rel := in.Relation(name)
		fmt.Printf("\n%s (%d tuples)\n", name, rel.Size())

		table := tablewriter.NewWriter(os.Stdout)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		header := append([]string{}, decl.AttributeNames...)
		if decl.AuxArity > 0 {
			header = append(header, "@rule", "@level")
		}
		table.SetHeader(header)

		it := rel.Scan()
		for it.Next() {
			tuple := it.Tuple()
			row := make([]string, len(tuple))
			for i, v := range tuple {
				row[i] = formatValue(in, decl, i, v)
			}
			table.Append(row)
		}
		table.Render()
	}
}

func formatValue(in *interp.Interpreter, decl *ram.Relation, col int, v ramble.RamDomain) string {
	if col >= decl.Arity {
		return strconv.FormatInt(int64(v), 10)
	}
	switch decl.AttributeTypes[col] {
	case ramble.Symbol:
		if s, ok := in.Symbols().Decode(v); ok {
			return s
		}
		return strconv.FormatInt(int64(v), 10)
	case ramble.Float:
		return strconv.FormatFloat(float64(ramble.ToFloat(v)), 'g', -1, 64)
	case ramble.Unsigned:
		return strconv.FormatUint(uint64(ramble.ToUnsigned(v)), 10)
	default:
		return strconv.FormatInt(int64(v), 10)
	}
}
