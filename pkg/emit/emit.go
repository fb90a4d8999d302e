// Package emit prints the final machine module as GAS compatible
// assembly: section directives, global data, function labels with
// qualified block labels, and the selected instructions spelled
// through the target's operand formatter.
package emit

import (
	"fmt"
	"io"
	"strconv"

	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/target"
)

// Printer writes one module.
type Printer struct {
	w  io.Writer
	tm target.Machine
}

// NewPrinter creates an assembly printer for the target.
func NewPrinter(w io.Writer, tm target.Machine) *Printer {
	return &Printer{w: w, tm: tm}
}

// PrintModule emits data then text.
func (p *Printer) PrintModule(m *machine.Module) {
	if len(m.Globals) > 0 {
		fmt.Fprintf(p.w, "\t.data\n")
		for _, g := range m.Globals {
			p.printGlobal(&g)
		}
		fmt.Fprintf(p.w, "\n")
	}

	fmt.Fprintf(p.w, "\t.text\n")
	for _, f := range m.Functions {
		p.printFunction(f)
	}
}

func log2(n uint) uint {
	var r uint
	for n > 1 {
		n >>= 1
		r++
	}
	return r
}

func (p *Printer) printGlobal(g *machine.GlobalData) {
	align := uint(1)
	for _, init := range g.Inits {
		if init.Kind == machine.InitScalar || init.Kind == machine.InitSymbol {
			if init.Size > align {
				align = init.Size
			}
		}
	}
	fmt.Fprintf(p.w, "\t.globl\t%s\n", g.Name)
	if align > 1 {
		fmt.Fprintf(p.w, "\t.p2align\t%d\n", log2(align))
	}
	fmt.Fprintf(p.w, "%s:\n", g.Name)
	for _, init := range g.Inits {
		switch init.Kind {
		case machine.InitZero:
			fmt.Fprintf(p.w, "\t.zero\t%d\n", init.Size)
		case machine.InitString:
			fmt.Fprintf(p.w, "\t.asciz\t%s\n", strconv.Quote(init.Str))
		case machine.InitScalar:
			fmt.Fprintf(p.w, "\t%s\t%d\n", scalarDirective(init.Size), init.Value)
		case machine.InitSymbol:
			fmt.Fprintf(p.w, "\t%s\t%s\n", scalarDirective(init.Size), init.Symbol)
		}
	}
}

func scalarDirective(size uint) string {
	switch size {
	case 1:
		return ".byte"
	case 2:
		return ".short"
	case 8:
		return ".quad"
	default:
		return ".word"
	}
}

func (p *Printer) printFunction(f *machine.Function) {
	qualifyLabels(f)

	fmt.Fprintf(p.w, "\t.p2align\t2\n")
	fmt.Fprintf(p.w, "\t.globl\t%s\n", f.Name)
	fmt.Fprintf(p.w, "\t.type\t%s, %%function\n", f.Name)
	fmt.Fprintf(p.w, "%s:\n", f.Name)

	for _, bb := range f.Blocks {
		fmt.Fprintf(p.w, "%s.%s:\n", f.Name, bb.Name)
		for _, mi := range bb.Instructions {
			p.printInstruction(mi)
		}
	}
	fmt.Fprintf(p.w, "\t.size\t%s, .-%s\n\n", f.Name, f.Name)
}

// qualifyLabels prefixes branch target labels with the function name,
// matching the printed block labels.
func qualifyLabels(f *machine.Function) {
	for _, bb := range f.Blocks {
		for _, mi := range bb.Instructions {
			for i := range mi.Operands {
				op := &mi.Operands[i]
				if op.IsLabel() {
					op.Symbol = f.Name + "." + op.Symbol
				}
			}
		}
	}
}

func (p *Printer) printInstruction(mi *machine.Instruction) {
	def := p.tm.InstrDef(mi.Opcode)

	if len(mi.Operands) == 0 && def.Trailer == "" {
		fmt.Fprintf(p.w, "\t%s\n", def.Mnemonic)
		return
	}

	fmt.Fprintf(p.w, "\t%s\t", def.Mnemonic)
	for i := range mi.Operands {
		if i > 0 {
			fmt.Fprintf(p.w, ", ")
		}
		fmt.Fprintf(p.w, "%s", p.tm.FormatOperand(mi, i))
	}
	if def.Trailer != "" {
		fmt.Fprintf(p.w, ", %s", def.Trailer)
	}
	fmt.Fprintf(p.w, "\n")
}
