// Package selection holds the two passes turning generic machine IR
// into target instructions: register class selection derives a target
// register class for every virtual register, instruction selection
// rewrites generic opcodes through the target's selector table.
package selection

import (
	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/target"
)

// fpDefs are the opcodes whose definition lives in a float register.
var fpDefs = map[machine.Opcode]bool{
	machine.ADDF: true, machine.SUBF: true, machine.MULF: true,
	machine.DIVF: true, machine.MOVF: true, machine.ITOF: true,
}

// SelectRegisterClasses assigns every virtual register operand its
// target register class, derived from the defining opcode and the
// operand's width, then propagated to all uses.
func SelectRegisterClasses(m *machine.Module, tm target.Machine) {
	for _, f := range m.Functions {
		selectFunctionClasses(f, tm)
	}
}

func selectFunctionClasses(f *machine.Function, tm target.Machine) {
	ri := tm.RegInfo()
	classes := map[uint64]uint{}

	// parameters carry their kind on the descriptor; their slot
	// operands become plain virtual registers here so selection and
	// allocation treat them uniformly
	byID := map[uint64]machine.Parameter{}
	for _, p := range f.Parameters {
		classes[p.ID] = ri.RegisterClass(p.Type.BitWidth, p.IsFP)
		byID[p.ID] = p
	}
	for _, bb := range f.Blocks {
		for _, mi := range bb.Instructions {
			for i := range mi.Operands {
				op := &mi.Operands[i]
				if !op.IsParameter() {
					continue
				}
				p, ok := byID[op.Reg]
				if !ok {
					panic("selection: unknown parameter slot")
				}
				op.Kind = machine.OpVirtualRegister
				op.Type = p.Type
			}
		}
	}

	// defs decide the class
	for _, bb := range f.Blocks {
		for _, mi := range bb.Instructions {
			def := mi.Def()
			if def == nil || !def.IsVirtualReg() {
				continue
			}
			if _, have := classes[def.Reg]; have {
				continue
			}
			classes[def.Reg] = ri.RegisterClass(def.Size(), fpDefs[mi.Opcode])
		}
	}

	// every vreg operand gets its class stamped on
	for _, bb := range f.Blocks {
		for _, mi := range bb.Instructions {
			for i := range mi.Operands {
				op := &mi.Operands[i]
				if !op.IsVirtualReg() {
					continue
				}
				if cls, ok := classes[op.Reg]; ok {
					op.RegClass = cls
				} else {
					op.RegClass = ri.RegisterClass(op.Size(), false)
				}
			}
		}
	}
}
