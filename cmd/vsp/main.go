// Vesper CLI - assembles, inspects, stores and runs bytecode packages.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/tomaz-v/vesper/bytecode"
	"github.com/tomaz-v/vesper/image"
	"github.com/tomaz-v/vesper/manifest"
	"github.com/tomaz-v/vesper/store"
	"github.com/tomaz-v/vesper/vm"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("vsp")

func main() {
	program := flag.String("program", "gauss", "Sample program to assemble")
	list := flag.Bool("list", false, "List the available sample programs")
	disassemble := flag.Bool("disassemble", false, "Print the package listing before running")
	noRun := flag.Bool("no-run", false, "Skip execution (useful with -disassemble or -save)")
	entry := flag.Uint64("entry", 0, "Entry point override (instruction index)")
	maxSteps := flag.Uint64("max-steps", 0, "Abort after this many instructions (0 = unlimited)")
	savePath := flag.String("save", "", "Write the package image to this path")
	loadPath := flag.String("load", "", "Run a package image instead of a sample")
	manifestDir := flag.String("manifest", "", "Directory containing vesper.toml")
	dbPath := flag.String("db", "", "Package store database path")
	storePut := flag.String("store-put", "", "Store the package under this name (requires -db)")
	storeGet := flag.String("store-get", "", "Load the package with this name from the store (requires -db)")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vsp [options]\n\n")
		fmt.Fprintf(os.Stderr, "Runs Vesper bytecode packages on the virtual machine.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  vsp -program fib-recursive            # Assemble and run a sample\n")
		fmt.Fprintf(os.Stderr, "  vsp -program gauss -disassemble       # Show the listing, then run\n")
		fmt.Fprintf(os.Stderr, "  vsp -program gauss -save gauss.vspi   # Write the package image\n")
		fmt.Fprintf(os.Stderr, "  vsp -load gauss.vspi                  # Run a saved image\n")
		fmt.Fprintf(os.Stderr, "  vsp -db pkg.db -program gauss -store-put gauss\n")
		fmt.Fprintf(os.Stderr, "  vsp -db pkg.db -store-get gauss\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	if *list {
		for _, name := range sampleNames() {
			fmt.Printf("%-14s %s\n", name, samples[name].Description)
		}
		return
	}

	if err := run(options{
		program:     *program,
		disassemble: *disassemble,
		noRun:       *noRun,
		entrySet:    flagWasSet("entry"),
		entry:       *entry,
		maxSteps:    *maxSteps,
		savePath:    *savePath,
		loadPath:    *loadPath,
		manifestDir: *manifestDir,
		dbPath:      *dbPath,
		storePut:    *storePut,
		storeGet:    *storeGet,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	program     string
	disassemble bool
	noRun       bool
	entrySet    bool
	entry       uint64
	maxSteps    uint64
	savePath    string
	loadPath    string
	manifestDir string
	dbPath      string
	storePut    string
	storeGet    string
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func run(opts options) error {
	cfg := vm.DefaultConfig()
	if opts.manifestDir != "" {
		m, err := manifest.Load(opts.manifestDir)
		if err != nil {
			return err
		}
		if m.VM.StackLimit != 0 {
			cfg.StackLimit = m.VM.StackLimit
		}
		if !opts.entrySet {
			opts.entrySet = true
			opts.entry = m.VM.EntryPoint
		}
		log.Infof("loaded manifest for project %q", m.Project.Name)
	}

	pkg, entry, result, err := resolvePackage(opts)
	if err != nil {
		return err
	}
	if opts.entrySet {
		entry = opts.entry
	}

	if opts.savePath != "" {
		if err := image.WriteFile(opts.savePath, pkg); err != nil {
			return err
		}
		log.Infof("saved package image to %s", opts.savePath)
	}
	if opts.dbPath != "" && opts.storePut != "" {
		db, err := store.Open(opts.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		id, err := db.Put(opts.storePut, pkg)
		if err != nil {
			return err
		}
		fmt.Printf("stored %q as %s\n", opts.storePut, id)
	}

	if opts.disassemble {
		fmt.Print(bytecode.NewDisassembler(pkg).InstructionsAsString())
	}
	if opts.noRun {
		return nil
	}

	machine := vm.NewVMWithConfig(cfg)
	interp := vm.NewInterpreter(machine, pkg)
	interp.SetEntryPoint(entry)
	log.Infof("executing %d instructions from entry %d", pkg.Count(), entry)

	if err := execute(interp, opts.maxSteps); err != nil {
		return err
	}

	value, err := machine.Register(result)
	if err != nil {
		return err
	}
	fmt.Printf("%s = %d\n", result, value)
	return nil
}

// resolvePackage picks the package to operate on: a stored one, a saved
// image, or an assembled sample.
func resolvePackage(opts options) (pkg *bytecode.Package, entry uint64, result bytecode.Register, err error) {
	switch {
	case opts.storeGet != "":
		if opts.dbPath == "" {
			return nil, 0, 0, fmt.Errorf("-store-get requires -db")
		}
		db, err := store.Open(opts.dbPath)
		if err != nil {
			return nil, 0, 0, err
		}
		defer db.Close()
		pkg, err := db.GetByName(opts.storeGet)
		if err != nil {
			return nil, 0, 0, err
		}
		return pkg, 0, bytecode.GPR0, nil

	case opts.loadPath != "":
		pkg, err := image.ReadFile(opts.loadPath)
		if err != nil {
			return nil, 0, 0, err
		}
		return pkg, 0, bytecode.GPR0, nil

	default:
		sample, err := lookupSample(opts.program)
		if err != nil {
			return nil, 0, 0, err
		}
		return sample.Build(), sample.Entry, sample.Result, nil
	}
}

// execute drives the interpreter, bounded by maxSteps when non-zero.
func execute(interp *vm.Interpreter, maxSteps uint64) error {
	if maxSteps == 0 {
		return interp.Execute()
	}
	for step := uint64(0); step < maxSteps; step++ {
		done, err := interp.Step()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return fmt.Errorf("aborted after %d steps (ip %d)", maxSteps, interp.IP())
}
