// Package llopt holds the optional machine IR optimizer: a block
// local copy propagation with dead copy removal. It runs between
// lowering and legalization when the driver asks for it.
package llopt

import (
	"github.com/minicc-lang/minicc/pkg/machine"
)

// Run optimizes every function of the module in place.
func Run(m *machine.Module) {
	for _, f := range m.Functions {
		for _, bb := range f.Blocks {
			propagateCopies(bb)
		}
		removeDeadCopies(f)
	}
}

// propagateCopies forwards vreg to vreg moves inside one block. A
// copy is killed as soon as either side is redefined.
func propagateCopies(bb *machine.BasicBlock) {
	copies := map[uint64]uint64{} // dest vreg -> source vreg

	kill := func(reg uint64) {
		delete(copies, reg)
		for d, s := range copies {
			if s == reg {
				delete(copies, d)
			}
		}
	}

	for _, mi := range bb.Instructions {
		start := 0
		if mi.HasDef() {
			start = 1
		}
		for i := start; i < len(mi.Operands); i++ {
			op := &mi.Operands[i]
			if !op.IsVirtualReg() {
				continue
			}
			if src, ok := copies[op.Reg]; ok {
				op.Reg = src
			}
		}

		if def := mi.Def(); def != nil && def.IsVirtualReg() {
			kill(def.Reg)
			if mi.Opcode == machine.MOV && mi.OperandCount() == 2 &&
				mi.Operand(1).IsVirtualReg() &&
				def.Size() == mi.Operand(1).Size() {
				copies[def.Reg] = mi.Operand(1).Reg
			}
		}
	}
}

// removeDeadCopies erases vreg to vreg moves whose destination is
// never read anywhere in the function.
func removeDeadCopies(f *machine.Function) {
	used := map[uint64]bool{}
	for _, bb := range f.Blocks {
		for _, mi := range bb.Instructions {
			start := 0
			if mi.HasDef() {
				start = 1
			}
			for i := start; i < len(mi.Operands); i++ {
				if op := mi.Operand(i); op.IsVirtualReg() {
					used[op.Reg] = true
				}
			}
		}
	}
	for _, bb := range f.Blocks {
		for i := 0; i < len(bb.Instructions); i++ {
			mi := bb.Instructions[i]
			if mi.Opcode != machine.MOV || mi.OperandCount() != 2 {
				continue
			}
			def := mi.Def()
			if def == nil || !def.IsVirtualReg() || !mi.Operand(1).IsVirtualReg() {
				continue
			}
			if !used[def.Reg] {
				bb.Erase(mi)
				i--
			}
		}
	}
}
