package aarch64

import (
	"fmt"

	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/target"
)

// PostRAFixups renames physical registers to the sub register matching
// each operand's width: a 32 bit operand holding an X id becomes the W
// register and the other way around. Memory bases stay 64 bit.
func (t *Target) PostRAFixups(f *machine.Function) {
	for _, bb := range f.Blocks {
		for _, mi := range bb.Instructions {
			def := t.InstrDef(mi.Opcode)
			for i := range mi.Operands {
				op := &mi.Operands[i]
				if !op.IsRegister() {
					continue
				}
				want := op.Size()
				if i < len(def.Operands) {
					if w := def.Operands[i].Width(); w != 0 {
						want = w
					}
				}
				switch want {
				case 32:
					op.Reg = t.regInfo.SubRegisterForWidth(t.regInfo.FullRegisterFor(op.Reg), 32)
					op.SetSize(32)
				default:
					op.Reg = t.regInfo.FullRegisterFor(op.Reg)
					op.SetSize(64)
				}
			}
		}
	}
}

var style = target.Style{
	ImmPrefix: "#",
	Mem: func(base string, off int64) string {
		if off == 0 {
			return fmt.Sprintf("[%s]", base)
		}
		return fmt.Sprintf("[%s, #%d]", base, off)
	},
}

// FormatOperand handles the AArch64 spelling quirks: lo12 relocation
// operators, shifted movk immediates and the pre/post indexed frame
// pair accesses.
func (t *Target) FormatOperand(mi *machine.Instruction, idx int) string {
	op := mi.Operand(idx)

	switch mi.Opcode {
	case ADD_rri:
		if op.IsGlobalSymbol() {
			return ":lo12:" + op.Symbol
		}
	case MOVK_ri:
		if idx == 2 {
			return fmt.Sprintf("lsl #%d", op.IntVal)
		}
	case STP_pre:
		if op.IsMemory() {
			return fmt.Sprintf("[%s, #%d]!", t.regInfo.RegisterByID(op.Reg).Name, op.Offset)
		}
	case LDP_post:
		if op.IsMemory() {
			return fmt.Sprintf("[%s], #%d", t.regInfo.RegisterByID(op.Reg).Name, op.Offset)
		}
	}
	return target.FormatOperandDefault(t.regInfo, mi, idx, style)
}
