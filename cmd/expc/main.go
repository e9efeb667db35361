package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/expc-lang/expc/pkg/asm"
	"github.com/expc-lang/expc/pkg/ast"
	"github.com/expc-lang/expc/pkg/codegen"
	"github.com/expc-lang/expc/pkg/config"
	"github.com/expc-lang/expc/pkg/interp"
	"github.com/expc-lang/expc/pkg/lexer"
	"github.com/expc-lang/expc/pkg/parser"
	"github.com/expc-lang/expc/pkg/regalloc"
	"github.com/expc-lang/expc/pkg/rename"
)

var version = "0.1.0"

// options holds the CLI flags for one invocation
type options struct {
	configPath  string
	dumpAST     bool
	dumpUnalloc bool
	dumpAlloc   bool
	noAlloc     bool
	useInterp   bool
	verbose     bool
}

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "expc: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "expc [file]",
		Short: "expc compiles expressions to a register machine and runs them",
		Long: `expc lowers a small expression language onto a minimal register
machine, rewrites the result through a spill-everything register
allocator, and evaluates the allocated code. With no file argument the
program is read from stdin.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args)
			if err != nil {
				return err
			}
			return compileAndRun(source, opts, out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "TOML run configuration file")
	rootCmd.Flags().BoolVar(&opts.dumpAST, "dump-ast", false, "Dump the expression tree after parsing")
	rootCmd.Flags().BoolVar(&opts.dumpUnalloc, "dump-unalloc", false, "Dump generated code before register allocation")
	rootCmd.Flags().BoolVar(&opts.dumpAlloc, "dump-alloc", false, "Dump code after register allocation")
	rootCmd.Flags().BoolVar(&opts.noAlloc, "no-alloc", false, "Evaluate the generated code without register allocation")
	rootCmd.Flags().BoolVar(&opts.useInterp, "interp", false, "Evaluate with the tree interpreter instead of compiling")
	rootCmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log compilation phases")

	return rootCmd
}

func readSource(args []string) (string, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}

func loadConfig(opts *options) (*config.Config, error) {
	if opts.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(opts.configPath)
}

// newLogger builds the phase logger: console output on errOut when
// verbose, a no-op logger otherwise.
func newLogger(verbose bool, errOut io.Writer) *zap.SugaredLogger {
	if !verbose {
		return zap.NewNop().Sugar()
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(errOut),
		zapcore.DebugLevel,
	)
	return zap.New(core).Sugar()
}

func compileAndRun(source string, opts *options, out, errOut io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	log := newLogger(opts.verbose, errOut)

	start := time.Now()
	p := parser.New(lexer.New(source))
	tree, err := p.Parse()
	if err != nil {
		return err
	}
	log.Infow("parsed", "duration", time.Since(start))

	tree = rename.New().Rename(tree)
	if opts.dumpAST {
		spew.Fdump(out, tree)
	}

	if opts.useInterp {
		return runInterp(tree, cfg, out)
	}

	env := make(map[asm.Name]int64, len(cfg.Env))
	for name, val := range cfg.Env {
		env[asm.Name(name)] = val
	}
	prog := asm.NewProgram(int(cfg.Machine.MemorySize), env)

	start = time.Now()
	result, err := codegen.New().Generate(tree, prog)
	if err != nil {
		return err
	}
	log.Infow("generated", "duration", time.Since(start), "instructions", len(prog.Insts()))

	if opts.dumpUnalloc {
		asm.NewPrinter(out).PrintProgram(prog)
	}

	// The allocator's rewrite is only guaranteed for straight-line code,
	// so branchy programs run unallocated.
	branchy := asm.HasControlFlow(prog.Insts())
	if opts.noAlloc || branchy {
		log.Infow("skipping allocation", "no_alloc", opts.noAlloc, "control_flow", branchy)
		if err := prog.Eval(); err != nil {
			return err
		}
		answer, err := prog.Val(result)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Answer: %d\n", answer)
		return nil
	}

	start = time.Now()
	alloc, err := regalloc.Run(prog)
	if err != nil {
		return err
	}
	log.Infow("allocated", "duration", time.Since(start),
		"instructions", len(prog.Insts()), "spill_slots", alloc.SpillSlots())

	if opts.dumpAlloc {
		asm.NewPrinter(out).PrintProgram(prog)
	}

	prog.ResetEnv()
	start = time.Now()
	if err := prog.Eval(); err != nil {
		return err
	}
	log.Infow("evaluated", "duration", time.Since(start))

	answer, err := alloc.Value(result)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Answer: %d\n", answer)
	return nil
}

func runInterp(tree ast.Expr, cfg *config.Config, out io.Writer) error {
	var env *interp.Env
	for name, val := range cfg.Env {
		env = env.Bind(name, interp.Int(val))
	}
	v, err := interp.Eval(tree, env)
	if err != nil {
		return err
	}
	answer, err := interp.AsInt(v)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Answer: %d\n", answer)
	return nil
}
