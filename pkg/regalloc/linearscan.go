package regalloc

import (
	"fmt"
	"sort"

	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/target"
)

// Run allocates every function of the module. Afterwards no virtual
// register operands remain.
func Run(m *machine.Module, tm target.Machine) {
	for _, f := range m.Functions {
		allocateFunction(f, tm)
	}
}

type allocator struct {
	f  *machine.Function
	tm target.Machine
	ri target.RegisterInfo

	// occupied maps full register ids to the interval holding them,
	// honoring sub register aliasing.
	occupied map[uint64]*Interval
	active   []*Interval

	assigned map[uint64]uint64 // vreg -> full register id
	spilled  map[uint64]uint64 // vreg -> stack slot id
}

func allocateFunction(f *machine.Function, tm target.Machine) {
	positions, calls := numbering(f)
	intervals := buildIntervals(f, tm, positions, calls)

	a := &allocator{
		f:        f,
		tm:       tm,
		ri:       tm.RegInfo(),
		occupied: map[uint64]*Interval{},
		assigned: map[uint64]uint64{},
		spilled:  map[uint64]uint64{},
	}

	for _, iv := range intervals {
		// a range opening with a write may reuse registers whose
		// last read happens at the same instruction
		if iv.StartsWithDef {
			a.expireBefore(iv.Start + 1)
		} else {
			a.expireBefore(iv.Start)
		}
		a.allocate(iv)
	}

	a.rewrite()
	a.insertParameterCopies()
}

func (a *allocator) expireBefore(pos int) {
	keep := a.active[:0]
	for _, iv := range a.active {
		if iv.End < pos {
			delete(a.occupied, a.assigned[iv.VReg])
		} else {
			keep = append(keep, iv)
		}
	}
	a.active = keep
}

func (a *allocator) take(iv *Interval, full uint64) {
	a.assigned[iv.VReg] = full
	a.occupied[full] = iv
	a.active = append(a.active, iv)

	reg := a.ri.RegisterByID(full)
	if reg.CalleeSaved && full != a.ri.StackPointer() && full != a.ri.FramePointer() {
		a.f.MarkCalleeSaved(full)
	}
}

// allocate hands iv a register, preferring its hint, falling back to
// the class allocation order, spilling on pressure.
func (a *allocator) allocate(iv *Interval) {
	if hint := iv.Hint; hint != 0 {
		full := a.ri.FullRegisterFor(hint)
		if _, busy := a.occupied[full]; !busy {
			// a hint into a caller saved register dies across calls
			if !iv.CrossesCall || a.ri.RegisterByID(full).CalleeSaved {
				a.take(iv, full)
				return
			}
		}
	}

	for _, cand := range a.ri.ClassRegisters(iv.Class) {
		full := a.ri.FullRegisterFor(cand)
		if _, busy := a.occupied[full]; busy {
			continue
		}
		if iv.CrossesCall && !a.ri.RegisterByID(full).CalleeSaved {
			continue
		}
		a.take(iv, full)
		return
	}

	a.spill(iv)
}

// spill evicts the same class interval with the farthest end, or
// spills iv itself when nothing active ends later.
func (a *allocator) spill(iv *Interval) {
	var victim *Interval
	for _, act := range a.active {
		if act.Class != iv.Class {
			continue
		}
		if victim == nil || act.End > victim.End {
			victim = act
		}
	}

	if victim != nil && victim.End > iv.End {
		full := a.assigned[victim.VReg]
		a.spillToSlot(victim)
		delete(a.assigned, victim.VReg)
		delete(a.occupied, full)
		for i, act := range a.active {
			if act == victim {
				a.active = append(a.active[:i], a.active[i+1:]...)
				break
			}
		}
		a.take(iv, full)
		return
	}
	a.spillToSlot(iv)
}

func (a *allocator) spillToSlot(iv *Interval) {
	bytes := iv.Width / 8
	if bytes == 0 {
		bytes = 4
	}
	slot := a.f.NextAvailableVReg()
	a.f.InsertStackSlot(slot, bytes, bytes)
	a.spilled[iv.VReg] = slot
}

// rewrite replaces every virtual register operand with its physical
// register, inserting reloads and stores for the spilled ones.
func (a *allocator) rewrite() {
	for _, bb := range a.f.Blocks {
		for i := 0; i < len(bb.Instructions); i++ {
			mi := bb.Instructions[i]

			// the return value operand is a hint, not a move: when
			// the value ended up elsewhere it must be copied into
			// the return register here
			if mi.IsReturn() {
				a.lowerReturnValue(bb, &i, mi)
				continue
			}

			scratchUsed := map[uint]int{}
			var loads []*machine.Instruction
			var stores []*machine.Instruction

			for oi := range mi.Operands {
				op := &mi.Operands[oi]
				if !op.IsVirtualReg() {
					continue
				}
				if full, ok := a.assigned[op.Reg]; ok {
					op.Kind = machine.OpRegister
					op.Reg = a.ri.SubRegisterForWidth(full, op.Size())
					continue
				}
				slot, ok := a.spilled[op.Reg]
				if !ok {
					panic(fmt.Sprintf("regalloc: vreg %d of %s has no register and no slot",
						op.Reg, a.f.Name))
				}

				scratches := a.ri.ScratchRegisters(op.RegClass)
				n := scratchUsed[op.RegClass]
				if n >= len(scratches) {
					panic("regalloc: out of scratch registers")
				}
				scratchUsed[op.RegClass] = n + 1
				phys := a.ri.SubRegisterForWidth(scratches[n], op.Size())

				isDef := oi == 0 && mi.HasDef()
				if isDef {
					st := machine.NewInstruction(machine.STORE, bb)
					st.AddStackAccess(slot, 0)
					st.AddRegister(phys, op.Size())
					stores = append(stores, st)
				} else {
					ld := machine.NewInstruction(machine.LOAD, bb)
					ld.AddRegister(phys, op.Size())
					ld.AddStackAccess(slot, 0)
					loads = append(loads, ld)
				}
				op.Kind = machine.OpRegister
				op.Reg = phys
			}

			// spill code is born generic and selected on the spot,
			// the selection pass already ran
			for _, ld := range loads {
				bb.InsertAt(i, ld)
				a.tm.SelectInstruction(ld)
				i++
			}
			for _, st := range stores {
				bb.InsertAt(i+1, st)
				a.tm.SelectInstruction(st)
				i++
			}
		}
	}
	sort.Slice(a.f.UsedCalleeSavedRegs, func(i, j int) bool {
		return a.f.UsedCalleeSavedRegs[i] < a.f.UsedCalleeSavedRegs[j]
	})
}

// lowerReturnValue drops the return's hint operand, copying the value
// into the declared return register when it lives somewhere else.
func (a *allocator) lowerReturnValue(bb *machine.BasicBlock, i *int, mi *machine.Instruction) {
	defer func() { mi.Operands = nil }()

	if len(mi.Operands) != 1 {
		return
	}
	op := mi.Operand(0)
	if op.IsRegister() && a.isReturnRegister(op.Reg) {
		return
	}
	if !op.IsVirtualReg() && !op.IsRegister() {
		return
	}

	want := a.returnRegisterFor(op)

	if op.IsVirtualReg() {
		if slot, ok := a.spilled[op.Reg]; ok {
			ld := machine.NewInstruction(machine.LOAD, bb)
			ld.AddRegister(want, op.Size())
			ld.AddStackAccess(slot, 0)
			bb.InsertAt(*i, ld)
			a.tm.SelectInstruction(ld)
			*i = *i + 1
			return
		}
		full, ok := a.assigned[op.Reg]
		if !ok {
			panic(fmt.Sprintf("regalloc: returned vreg %d unallocated in %s", op.Reg, a.f.Name))
		}
		op.Kind = machine.OpRegister
		op.Reg = a.ri.SubRegisterForWidth(full, op.Size())
	}
	if a.isReturnRegister(op.Reg) {
		return
	}

	mov := machine.NewInstruction(machine.MOV, bb)
	mov.AddRegister(want, op.Size())
	mov.AddOperand(*op)
	if a.ri.RegisterByID(a.ri.FullRegisterFor(op.Reg)).IsFP {
		mov.SetOpcode(machine.MOVF)
	}
	bb.InsertAt(*i, mov)
	a.tm.SelectInstruction(mov)
	*i = *i + 1
}

func (a *allocator) isReturnRegister(reg uint64) bool {
	full := a.ri.FullRegisterFor(reg)
	for _, r := range a.tm.ABI().ReturnRegisters {
		if r.ID == full {
			return true
		}
	}
	return false
}

func (a *allocator) returnRegisterFor(op *machine.Operand) uint64 {
	abi := a.tm.ABI()
	idx := 0
	if op.IsVirtualReg() {
		if full, ok := a.assigned[op.Reg]; ok && a.ri.RegisterByID(full).IsFP {
			idx = abi.FirstFPRet
		}
	} else if a.ri.RegisterByID(a.ri.FullRegisterFor(op.Reg)).IsFP {
		idx = abi.FirstFPRet
	}
	return a.ri.SubRegisterForWidth(abi.ReturnRegisters[idx].ID, op.Size())
}

// insertParameterCopies moves parameters that did not get their
// argument register from the incoming register (or into their spill
// slot). Moves are ordered so no incoming value is clobbered before
// its read; cycles break through a scratch register.
func (a *allocator) insertParameterCopies() {
	if len(a.f.Blocks) == 0 {
		return
	}
	abi := a.tm.ABI()

	type move struct {
		src   uint64 // incoming argument register (full)
		dst   uint64 // allocated register (full), 0 when spilled
		slot  uint64
		width uint
		class uint
		toMem bool
	}
	var moves []move

	gprIdx, fpIdx := 0, 0
	for _, p := range a.f.Parameters {
		var incoming uint64
		if p.IsFP {
			if abi.FirstFPArg+fpIdx >= len(abi.ArgumentRegisters) {
				continue // stack passed arguments are not supported
			}
			incoming = abi.ArgumentRegisters[abi.FirstFPArg+fpIdx].ID
			fpIdx++
		} else {
			if gprIdx >= abi.FirstFPArg {
				continue // stack passed arguments are not supported
			}
			incoming = abi.ArgumentRegisters[gprIdx].ID
			gprIdx++
		}
		cls := a.ri.RegisterClass(p.Type.BitWidth, p.IsFP)
		if slot, ok := a.spilled[p.ID]; ok {
			moves = append(moves, move{src: incoming, slot: slot, width: p.Type.BitWidth, class: cls, toMem: true})
			continue
		}
		full, ok := a.assigned[p.ID]
		if !ok || full == incoming {
			continue
		}
		moves = append(moves, move{src: incoming, dst: full, width: p.Type.BitWidth, class: cls})
	}

	entry := a.f.Blocks[0]
	pos := 0
	emit := func(mv move) {
		if mv.toMem {
			st := machine.NewInstruction(machine.STORE, entry)
			st.AddStackAccess(mv.slot, 0)
			st.AddRegister(a.ri.SubRegisterForWidth(mv.src, mv.width), mv.width)
			entry.InsertAt(pos, st)
			a.tm.SelectInstruction(st)
		} else {
			mov := machine.NewInstruction(machine.MOV, entry)
			mov.AddRegister(a.ri.SubRegisterForWidth(mv.dst, mv.width), mv.width)
			mov.AddRegister(a.ri.SubRegisterForWidth(mv.src, mv.width), mv.width)
			if a.ri.RegisterByID(mv.src).IsFP {
				mov.SetOpcode(machine.MOVF)
			}
			entry.InsertAt(pos, mov)
			a.tm.SelectInstruction(mov)
		}
		pos++
	}

	for len(moves) > 0 {
		progressed := false
		for i, mv := range moves {
			blocked := false
			for j, other := range moves {
				if i != j && !mv.toMem && other.src == mv.dst {
					blocked = true
					break
				}
			}
			if !blocked {
				emit(mv)
				moves = append(moves[:i], moves[i+1:]...)
				progressed = true
				break
			}
		}
		if !progressed {
			// a cycle: park one source in scratch and retarget its
			// readers
			mv := moves[0]
			scratch := a.ri.ScratchRegisters(mv.class)[0]
			scratchFull := a.ri.FullRegisterFor(scratch)
			emit(move{src: mv.src, dst: scratchFull, width: mv.width, class: mv.class})
			for j := range moves {
				if moves[j].src == mv.src {
					moves[j].src = scratchFull
				}
			}
		}
	}
}
