// Package regalloc assigns physical registers to virtual registers
// with a linear scan over live intervals. Parameters are hinted to
// their argument registers and values feeding returns to the return
// registers; when a class runs out of registers the interval with the
// farthest end is spilled to a stack slot and its uses reload through
// reserved scratch registers.
package regalloc

import (
	"sort"

	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/target"
)

// Interval is the live range of one virtual register.
type Interval struct {
	VReg  uint64
	Start int
	End   int
	Class uint
	Width uint

	// Hint is a physical register preference, 0 when absent.
	Hint uint64
	// CrossesCall is set when a call position lies inside the range.
	CrossesCall bool
	// StartsWithDef: the range opens with a definition, so ranges
	// ending exactly at Start (their last read happens before the
	// write) may share the register.
	StartsWithDef bool
}

// numbering walks the function in block order assigning linear
// positions, collecting call positions on the way.
func numbering(f *machine.Function) (positions map[*machine.Instruction]int, calls []int) {
	positions = make(map[*machine.Instruction]int)
	pos := 0
	for _, bb := range f.Blocks {
		for _, mi := range bb.Instructions {
			positions[mi] = pos
			if mi.IsCall() {
				calls = append(calls, pos)
			}
			pos++
		}
	}
	return positions, calls
}

// buildIntervals computes [first def, last use] for every virtual
// register. Parameter registers are live from function entry.
func buildIntervals(f *machine.Function, tm target.Machine, positions map[*machine.Instruction]int, calls []int) []*Interval {
	abi := tm.ABI()
	ri := tm.RegInfo()
	byVReg := map[uint64]*Interval{}

	paramIDs := map[uint64]bool{}
	for _, p := range f.Parameters {
		paramIDs[p.ID] = true
	}

	touch := func(op *machine.Operand, pos int, isDef bool) {
		iv, ok := byVReg[op.Reg]
		if !ok {
			start := pos
			if paramIDs[op.Reg] {
				start = 0
			}
			cls := op.RegClass
			if cls == machine.NoRegClass {
				cls = ri.RegisterClass(op.Size(), false)
			}
			iv = &Interval{VReg: op.Reg, Start: start, End: pos, Class: cls, Width: op.Size(),
				StartsWithDef: isDef && !paramIDs[op.Reg]}
			byVReg[op.Reg] = iv
		}
		if pos > iv.End {
			iv.End = pos
		}
		if op.Size() > iv.Width {
			iv.Width = op.Size()
		}
		if op.RegClass != machine.NoRegClass {
			iv.Class = op.RegClass
		}
	}

	for _, bb := range f.Blocks {
		for _, mi := range bb.Instructions {
			pos := positions[mi]
			for i := range mi.Operands {
				op := &mi.Operands[i]
				if !op.IsVirtualReg() {
					continue
				}
				touch(op, pos, i == 0 && mi.HasDef())
			}
			// a returned value prefers the return register
			if mi.IsReturn() && mi.OperandCount() == 1 && mi.Operand(0).IsVirtualReg() {
				if iv := byVReg[mi.Operand(0).Reg]; iv != nil && iv.Hint == 0 {
					idx := 0
					if iv.Class == ri.RegisterClass(iv.Width, true) && iv.Class != ri.RegisterClass(iv.Width, false) {
						idx = abi.FirstFPRet
					}
					iv.Hint = abi.ReturnRegisters[idx].ID
				}
			}
		}
	}

	// parameters prefer the argument register they arrive in
	gprIdx, fpIdx := 0, 0
	for _, p := range f.Parameters {
		var hint uint64
		if p.IsFP {
			if abi.FirstFPArg+fpIdx < len(abi.ArgumentRegisters) {
				hint = abi.ArgumentRegisters[abi.FirstFPArg+fpIdx].ID
			}
			fpIdx++
		} else {
			if gprIdx < abi.FirstFPArg {
				hint = abi.ArgumentRegisters[gprIdx].ID
			}
			gprIdx++
		}
		if iv := byVReg[p.ID]; iv != nil && iv.Hint == 0 && hint != 0 {
			iv.Hint = hint
		}
	}

	out := make([]*Interval, 0, len(byVReg))
	for _, iv := range byVReg {
		for _, c := range calls {
			if c > iv.Start && c < iv.End {
				iv.CrossesCall = true
				break
			}
		}
		out = append(out, iv)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].VReg < out[j].VReg
	})
	return out
}
