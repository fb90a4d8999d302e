package machine

import (
	"fmt"
	"io"
	"strings"
)

// MnemonicFunc resolves a target opcode to its dump name. The printer
// falls back to it for opcodes below TargetOpcodeEnd.
type MnemonicFunc func(Opcode) string

// Printer writes human readable machine IR dumps, used by the
// --print-after-all driver flag.
type Printer struct {
	w        io.Writer
	mnemonic MnemonicFunc
}

// NewPrinter creates a printer. mnemonic may be nil when the module is
// still fully generic.
func NewPrinter(w io.Writer, mnemonic MnemonicFunc) *Printer {
	return &Printer{w: w, mnemonic: mnemonic}
}

func (p *Printer) opcodeName(mi *Instruction) string {
	if mi.Opcode.IsGeneric() {
		name := mi.Opcode.GenericName()
		if (mi.Opcode == CMP || mi.Opcode == CMPF) && mi.Relation != NoRelation {
			name += "." + mi.Relation.String()
		}
		return name
	}
	if p.mnemonic != nil {
		return p.mnemonic(mi.Opcode)
	}
	return fmt.Sprintf("op<%d>", mi.Opcode)
}

// PrintModule dumps every function of the module.
func (p *Printer) PrintModule(m *Module) {
	for _, f := range m.Functions {
		p.PrintFunction(f)
	}
}

// PrintFunction dumps one function with its frame and blocks.
func (p *Printer) PrintFunction(f *Function) {
	fmt.Fprintf(p.w, "function %s\n", f.Name)
	for _, slot := range f.Frame.Slots() {
		fmt.Fprintf(p.w, "  slot %d: size %d align %d", slot.ID, slot.Size, slot.Alignment)
		if slot.Offset >= 0 {
			fmt.Fprintf(p.w, " offset %d", slot.Offset)
		}
		fmt.Fprintln(p.w)
	}
	for _, bb := range f.Blocks {
		fmt.Fprintf(p.w, "%s.%s:\n", f.Name, bb.Name)
		for _, mi := range bb.Instructions {
			p.PrintInstruction(mi)
		}
	}
	fmt.Fprintln(p.w)
}

// PrintInstruction dumps one instruction, opcode padded to a column.
func (p *Printer) PrintInstruction(mi *Instruction) {
	name := p.opcodeName(mi)
	pad := 16 - len(name)
	if pad < 1 {
		pad = 1
	}
	ops := make([]string, len(mi.Operands))
	for i := range mi.Operands {
		ops[i] = mi.Operands[i].String()
	}
	fmt.Fprintf(p.w, "\t%s%s%s\n", name, strings.Repeat(" ", pad), strings.Join(ops, ", "))
}
