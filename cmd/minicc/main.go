// Command minicc is the backend driver: it reads a MIR translation
// unit from its YAML hand-off form and emits target assembly.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minicc-lang/minicc/pkg/config"
	"github.com/minicc-lang/minicc/pkg/mirload"
	"github.com/minicc-lang/minicc/pkg/pipeline"
	_ "github.com/minicc-lang/minicc/pkg/target/aarch64"
	_ "github.com/minicc-lang/minicc/pkg/target/riscv"
)

var version = "0.1.0"

type options struct {
	targetName    string
	output        string
	optimize      bool
	printAfterAll bool
	dumpJSON      bool
	watch         bool
	verbose       bool
	configPath    string
}

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "minicc: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "minicc [file]",
		Short: "minicc compiles MIR translation units to assembly",
		Long: `minicc is the code generation backend of a small C compiler.
It consumes a type checked SSA module handed off by the front end
and emits GAS compatible assembly for the selected target.`,
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return compileCommand(args[0], &opts, out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	flags := rootCmd.Flags()
	flags.StringVar(&opts.targetName, "target", "", "target architecture (aarch64, riscv32)")
	flags.StringVarP(&opts.output, "output", "o", "", "write assembly to file instead of stdout")
	flags.BoolVar(&opts.optimize, "opt", false, "enable the machine IR optimizer")
	flags.BoolVar(&opts.printAfterAll, "print-after-all", false, "dump the machine IR after every pass")
	flags.BoolVar(&opts.dumpJSON, "dump-json", false, "dump the final machine module as JSON to stderr")
	flags.BoolVar(&opts.watch, "watch", false, "recompile whenever the input file changes")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log pass timings")
	flags.StringVar(&opts.configPath, "config", "", "path to a minicc.toml configuration file")

	return rootCmd
}

// applyConfig merges the config file under the explicit flags.
func applyConfig(opts *options) error {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if opts.targetName == "" {
		opts.targetName = cfg.Target
	}
	opts.optimize = opts.optimize || cfg.Optimize
	opts.printAfterAll = opts.printAfterAll || cfg.PrintAfterAll
	opts.verbose = opts.verbose || cfg.Verbose
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	return cfg.Build()
}

func compileCommand(path string, opts *options, out, errOut io.Writer) error {
	if err := applyConfig(opts); err != nil {
		return err
	}
	logger, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if opts.watch {
		return watchAndCompile(path, opts, out, errOut, logger)
	}
	return compileOnce(path, opts, out, errOut, logger)
}

func compileOnce(path string, opts *options, out, errOut io.Writer, logger *zap.Logger) error {
	m, err := mirload.LoadFile(path)
	if err != nil {
		return err
	}

	w := out
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	mm, err := pipeline.CompileTo(m, opts.targetName, w, pipeline.Options{
		Optimize:      opts.optimize,
		PrintAfterAll: opts.printAfterAll,
		Dump:          errOut,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	if opts.dumpJSON {
		data, err := json.MarshalIndent(mm, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding machine module: %w", err)
		}
		fmt.Fprintf(errOut, "%s\n", data)
	}
	return nil
}

// watchAndCompile recompiles on every write to the input file until
// the process is interrupted.
func watchAndCompile(path string, opts *options, out, errOut io.Writer, logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	if err := compileOnce(path, opts, out, errOut, logger); err != nil {
		fmt.Fprintf(errOut, "minicc: %v\n", err)
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			logger.Debug("input changed, recompiling", zap.String("file", ev.Name))
			if err := compileOnce(path, opts, out, errOut, logger); err != nil {
				fmt.Fprintf(errOut, "minicc: %v\n", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(errOut, "minicc: watch: %v\n", err)
		}
	}
}
