// Package pipeline chains the backend passes: lowering, the optional
// machine IR optimizer, legalization, register class and instruction
// selection, register allocation, prologue/epilogue insertion, target
// fix-ups and emission. Each pass runs to completion on the whole
// module before the next starts.
package pipeline

import (
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/minicc-lang/minicc/pkg/emit"
	"github.com/minicc-lang/minicc/pkg/legalize"
	"github.com/minicc-lang/minicc/pkg/llirgen"
	"github.com/minicc-lang/minicc/pkg/llopt"
	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/mir"
	"github.com/minicc-lang/minicc/pkg/regalloc"
	"github.com/minicc-lang/minicc/pkg/selection"
	"github.com/minicc-lang/minicc/pkg/stacking"
	"github.com/minicc-lang/minicc/pkg/target"
)

// Options steer the pipeline.
type Options struct {
	// Optimize enables the machine IR optimizer.
	Optimize bool
	// PrintAfterAll dumps the machine IR after every pass to Dump.
	PrintAfterAll bool
	Dump          io.Writer
	Logger        *zap.Logger
}

func (o *Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Compile lowers the MIR module and writes the target assembly to w.
// Invariant violations inside the passes are programmer errors and
// panic; Compile itself has nothing recoverable to report.
func Compile(m *mir.Module, tm target.Machine, w io.Writer, opts Options) *machine.Module {
	log := opts.logger()

	var mm *machine.Module
	run := func(name string, pass func()) {
		start := time.Now()
		pass()
		log.Debug("pass finished",
			zap.String("pass", name),
			zap.String("target", tm.Name()),
			zap.Duration("elapsed", time.Since(start)))
		if opts.PrintAfterAll && opts.Dump != nil && mm != nil {
			io.WriteString(opts.Dump, "# after "+name+"\n")
			machine.NewPrinter(opts.Dump, func(op machine.Opcode) string {
				return tm.Mnemonic(op)
			}).PrintModule(mm)
		}
	}

	run("irtollir", func() { mm = llirgen.Translate(m, tm) })
	if opts.Optimize {
		run("llopt", func() { llopt.Run(mm) })
	}
	run("legalize", func() { legalize.Run(mm, tm) })
	run("regclass", func() { selection.SelectRegisterClasses(mm, tm) })
	run("isel", func() { selection.Run(mm, tm) })
	run("regalloc", func() { regalloc.Run(mm, tm) })
	run("stacking", func() { stacking.Run(mm, tm) })
	run("fixups", func() {
		for _, f := range mm.Functions {
			tm.PostRAFixups(f)
		}
	})
	run("emit", func() { emit.NewPrinter(w, tm).PrintModule(mm) })
	return mm
}

// CompileTo resolves the target by name and compiles.
func CompileTo(m *mir.Module, targetName string, w io.Writer, opts Options) (*machine.Module, error) {
	tm, err := target.ByName(targetName)
	if err != nil {
		return nil, err
	}
	return Compile(m, tm, w, opts), nil
}
