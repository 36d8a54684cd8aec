// Command cminusfc compiles a cminus-f source file to LoongArch-like
// assembly.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cminusfc/cminusfc/internal/codegen"
	"github.com/cminusfc/cminusfc/internal/grammar"
	"github.com/cminusfc/cminusfc/internal/irgen"
	"github.com/cminusfc/cminusfc/internal/validator"
)

func main() {
	var input string
	var output string
	var optLevel int
	flag.StringVar(&input, "file", "", "cminus-f source file to compile (reads from stdin if not provided)")
	flag.StringVar(&output, "o", "", "Output file (default: input file with .s extension)")
	flag.IntVar(&optLevel, "O", 1, "Optimization level: 0 (none), 1 (mem2reg+DCE), 2 (+CSE/CFG simplify), 3 (+inlining)")
	flag.Parse()

	var src []byte
	var err error
	name := input

	if input == "" {
		src, err = io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading from stdin: %v\n", err)
			os.Exit(1)
		}
		name = "<stdin>"
	} else {
		src, err = os.ReadFile(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading file %s: %v\n", input, err)
			os.Exit(1)
		}
	}

	prog, err := grammar.ParseString(name, string(src))
	if err != nil {
		// reportParseError has already printed the caret diagnostic.
		os.Exit(1)
	}

	module := grammar.Lower(prog)

	if err := validator.New().ValidateModule(module); err != nil {
		fmt.Fprintf(os.Stderr, "validation failed:\n%v\n", err)
		os.Exit(1)
	}

	irModule, err := irgen.Build(module)
	if err != nil {
		fmt.Fprintf(os.Stderr, "code generation failed: %v\n", err)
		os.Exit(1)
	}

	level := codegen.OptimizationLevel(optLevel)
	if level < codegen.OptNone || level > codegen.OptAggressive {
		fmt.Fprintf(os.Stderr, "unsupported optimization level: %d\n", optLevel)
		os.Exit(1)
	}
	opt := codegen.NewOptimizer(level)
	if err := opt.OptimizeModule(irModule); err != nil {
		fmt.Fprintf(os.Stderr, "optimization failed: %v\n", err)
		os.Exit(1)
	}

	asm := codegen.Emit(irModule)

	if output == "" {
		if input == "" {
			output = "output.s"
		} else {
			base := strings.TrimSuffix(input, filepath.Ext(input))
			output = base + ".s"
		}
	}

	if err := os.WriteFile(output, []byte(asm), 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "error writing assembly: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("assembly written to %s\n", output)
}
