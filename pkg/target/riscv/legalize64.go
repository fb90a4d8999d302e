package riscv

import (
	"fmt"

	"github.com/minicc-lang/minicc/pkg/machine"
)

// LegalizeFunction eliminates 64 bit values, which do not fit the 32
// bit register file. MERGE records its halves in a pair table and
// disappears; SPLIT copies the recorded halves out; a 64 bit ADD
// becomes an ADDS/ADDC pair over the halves. Anything else touching a
// 64 bit register is unsupported on this target.
func (t *Target) LegalizeFunction(f *machine.Function) {
	type pair struct{ lo, hi machine.Operand }
	pairs := map[uint64]pair{}

	halves := func(op *machine.Operand) (pair, bool) {
		if !op.IsVirtualReg() {
			return pair{}, false
		}
		p, ok := pairs[op.Reg]
		return p, ok
	}

	for _, bb := range f.Blocks {
		for i := 0; i < len(bb.Instructions); i++ {
			mi := bb.Instructions[i]
			switch mi.Opcode {
			case machine.MERGE:
				def := mi.Operand(0)
				pairs[def.Reg] = pair{lo: *mi.Operand(1), hi: *mi.Operand(2)}
				bb.Erase(mi)
				i--

			case machine.SPLIT:
				src := mi.Operand(2)
				p, ok := halves(src)
				if !ok {
					panic(fmt.Sprintf("riscv: split of unpaired value %s in %s", src, f.Name))
				}
				lo := machine.NewInstruction(machine.MOV, bb)
				lo.AddOperand(*mi.Operand(0))
				lo.AddOperand(p.lo)
				hi := machine.NewInstruction(machine.MOV, bb)
				hi.AddOperand(*mi.Operand(1))
				hi.AddOperand(p.hi)
				bb.Erase(mi)
				bb.InsertAt(i, lo)
				bb.InsertAt(i+1, hi)
				i++

			case machine.ADD:
				def := mi.Def()
				if def == nil || def.Size() <= 32 {
					continue
				}
				pa, okA := halves(mi.Operand(1))
				pb, okB := halves(mi.Operand(2))
				if !okA || !okB {
					panic(fmt.Sprintf("riscv: 64 bit add of unpaired values in %s", f.Name))
				}
				loReg := machine.NewVirtualRegister(f.NextAvailableVReg(), 32)
				hiReg := machine.NewVirtualRegister(f.NextAvailableVReg(), 32)

				adds := machine.NewInstruction(machine.ADDS, bb)
				adds.AddOperand(loReg)
				adds.AddOperand(pa.lo)
				adds.AddOperand(pb.lo)

				addc := machine.NewInstruction(machine.ADDC, bb)
				addc.AddOperand(hiReg)
				addc.AddOperand(pa.hi)
				addc.AddOperand(pb.hi)

				pairs[def.Reg] = pair{lo: loReg, hi: hiReg}
				bb.Erase(mi)
				bb.InsertAt(i, adds)
				bb.InsertAt(i+1, addc)
				i++

			default:
				if def := mi.Def(); def != nil && def.IsVirtualReg() && def.Size() > 32 && !def.Type.IsPointer() {
					if _, ok := pairs[def.Reg]; !ok {
						panic(fmt.Sprintf("riscv: 64 bit value in %s is unsupported on this target", f.Name))
					}
				}
			}
		}
	}
}
