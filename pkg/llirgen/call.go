package llirgen

import (
	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/mir"
)

func (t *Translator) convertCall(in *mir.Instruction, bb *machine.BasicBlock, mf *machine.Function) {
	mf.HasCall = true
	abi := t.tm.ABI()
	argRegs := abi.ArgumentRegisters
	ptrSize := t.tm.PointerSize()
	ptrBytes := int64(ptrSize / 8)

	paramCounter := 0
	for _, arg := range in.Args {
		switch {
		// struct by value already exploded into vregs: move the
		// chunks into consecutive argument registers
		case arg.Type.IsStruct() && !arg.Type.IsPointer() && !arg.IsGlobalVar():
			chunks := t.structByID[arg.ID]
			if len(chunks) == 0 {
				panic("llirgen: struct argument was never loaded")
			}
			for _, vreg := range chunks {
				mov := machine.NewInstruction(machine.MOV, bb)
				mov.AddRegister(argRegs[paramCounter].ID, argRegs[paramCounter].BitWidth)
				mov.AddVirtualRegister(vreg, ptrSize)
				bb.Append(mov)
				paramCounter++
			}

		// pointers to stack or global objects: the address goes
		// straight into the argument register (or the struct pointer
		// register for the implicit return area argument)
		case arg.Type.IsPointer() && (arg.IsGlobalVar() || mf.IsStackSlot(t.idFromValue(arg))):
			destReg := argRegs[paramCounter].ID
			destBits := argRegs[paramCounter].BitWidth
			if paramCounter == in.ImplicitStructArgIndex {
				destReg = t.tm.RegInfo().StructPtrRegister()
			}
			if arg.IsGlobalVar() {
				ga := machine.NewInstruction(machine.GLOBAL_ADDRESS, bb)
				ga.AddRegister(destReg, destBits)
				ga.AddGlobalSymbol(arg.Name)
				bb.Append(ga)
			} else {
				sa := machine.NewInstruction(machine.STACK_ADDRESS, bb)
				sa.AddRegister(destReg, destBits)
				sa.AddStackAccess(t.idFromValue(arg), 0)
				bb.Append(sa)
			}
			paramCounter++

		default:
			mov := machine.NewInstruction(machine.MOV, bb)
			paramIdx := paramCounter
			if arg.Type.IsFP() {
				mov.SetOpcode(machine.MOVF)
				paramIdx += abi.FirstFPArg
			}

			src := t.operandFromValue(arg, bb, false)
			physReg := argRegs[paramIdx].ID
			physBits := argRegs[paramIdx].BitWidth
			if src.Size() < physBits {
				if sub := t.tm.RegInfo().SubRegisterForWidth(physReg, src.Size()); sub != physReg {
					physReg = sub
					physBits = t.tm.RegInfo().RegisterByID(sub).BitWidth
				}
			}
			mov.AddRegister(physReg, physBits)
			mov.AddOperand(src)
			bb.Append(mov)
			paramCounter++
		}
	}

	call := machine.NewInstruction(machine.CALL, bb)
	call.AddFunctionName(in.Callee)
	bb.Append(call)

	if in.RetType.IsVoid() {
		return
	}

	// spill the returned value to a fresh stack slot; later uses load
	// from there
	retBits := in.RetType.ByteSize() * 8
	if in.RetType.IsPointer() {
		retBits = ptrSize
	}
	regsCount := int((retBits + ptrSize - 1) / ptrSize)
	rets := abi.ReturnRegisters
	if regsCount == 0 || regsCount > 2 {
		panic("llirgen: unsupported return value size")
	}

	slot := mf.NextAvailableVReg()
	t.spilledRetSlots[in.Result.ID] = slot
	mf.InsertStackSlot(slot, retBits/8, retBits/8)

	remaining := retBits
	for i := 0; i < regsCount; i++ {
		store := machine.NewInstruction(machine.STORE, bb)
		store.AddStackAccess(slot, int64(i)*ptrBytes)

		retIdx := i
		if in.RetType.IsFP() {
			retIdx += abi.FirstFPRet
		}
		width := remaining
		if width > ptrSize {
			width = ptrSize
		}
		physReg := rets[retIdx].ID
		if width < ptrSize {
			if sub := t.tm.RegInfo().SubRegisterForWidth(physReg, width); sub != physReg {
				physReg = sub
			}
		}
		store.AddRegister(physReg, width)
		bb.Append(store)
		remaining -= ptrSize
	}
}

func (t *Translator) convertReturn(in *mir.Instruction, bb *machine.BasicBlock, mf *machine.Function) {
	ret := machine.NewInstruction(machine.RET, bb)
	if in.Left == nil {
		bb.Append(ret)
		return
	}

	abi := t.tm.ABI()
	rets := abi.ReturnRegisters
	ptrSize := t.tm.PointerSize()
	val := in.Left
	isFP := val.Type.IsFP()

	switch {
	// struct returns travel in consecutive return registers
	case val.Type.IsStruct() && !val.Type.IsPointer():
		chunks := t.structByID[val.ID]
		if len(chunks) > 2 {
			panic("llirgen: struct return needs more than two registers")
		}
		for i, vreg := range chunks {
			mov := machine.NewInstruction(machine.MOV, bb)
			mov.AddRegister(rets[i].ID, rets[i].BitWidth)
			mov.AddVirtualRegister(vreg, ptrSize)
			bb.Append(mov)
		}
		bb.Append(ret)

	case val.IsConstant():
		if val.BitWidth() <= ptrSize {
			op := machine.LOAD_IMM
			if isFP {
				op = machine.MOVF
			}
			li := machine.NewInstruction(op, bb)

			retIdx := 0
			if isFP {
				retIdx = abi.FirstFPRet
			}
			physReg := rets[retIdx].ID
			physBits := rets[retIdx].BitWidth
			if physBits != val.BitWidth() {
				if sub := t.tm.RegInfo().SubRegisterForWidth(physReg, val.BitWidth()); sub != physReg {
					physReg = sub
					physBits = t.tm.RegInfo().RegisterByID(sub).BitWidth
				}
			}
			li.AddRegister(physReg, physBits)
			li.AddOperand(t.operandFromValue(val, bb, false))
			bb.Append(li)

			ret.AddOperand(*li.Operand(0))
			bb.Append(ret)
		} else {
			// wide constants return in a register pair
			regsCount := int((val.BitWidth() + ptrSize - 1) / ptrSize)
			if regsCount != 2 || isFP {
				panic("llirgen: unsupported wide constant return")
			}
			for i := 0; i < regsCount; i++ {
				li := machine.NewInstruction(machine.LOAD_IMM, bb)
				li.AddRegister(rets[i].ID, rets[i].BitWidth)
				li.AddImmediate(val.IntVal>>(uint(i)*32)&0xffffffff, 32)
				bb.Append(li)
			}
			bb.Append(ret)
		}

	// values wider than a register split into a pair
	case !val.Type.IsPointer() && val.BitWidth() > ptrSize:
		if val.BitWidth() > 64 {
			panic("llirgen: return value wider than 64 bits")
		}
		lo := machine.NewVirtualRegister(mf.NextAvailableVReg(), ptrSize)
		hi := machine.NewVirtualRegister(mf.NextAvailableVReg(), ptrSize)

		split := machine.NewInstruction(machine.SPLIT, bb)
		split.AddOperand(lo)
		split.AddOperand(hi)
		split.AddOperand(t.operandFromValue(val, bb, false))
		bb.Append(split)

		for i, half := range []machine.Operand{lo, hi} {
			mov := machine.NewInstruction(machine.MOV, bb)
			mov.AddRegister(rets[i].ID, rets[i].BitWidth)
			mov.AddOperand(half)
			bb.Append(mov)
		}
		bb.Append(ret)

	default:
		ret.AddOperand(t.operandFromValue(val, bb, false))
		bb.Append(ret)
	}
}

// memcpyUnit is the load/store granule of the inline expansion. The
// MIR memcpy carries no alignment, so 4 byte units are assumed.
const memcpyUnit = 4

func (t *Translator) convertMemCopy(in *mir.Instruction, bb *machine.BasicBlock, mf *machine.Function) {
	// big copies become a libcall when the target allows it
	if in.Bytes >= 32 && t.tm.IsMemcpySupported() {
		mf.HasCall = true
		abi := t.tm.ABI()
		argRegs := abi.ArgumentRegisters

		dest := t.materializeAddress(in.Addr, bb)
		p1 := machine.NewInstruction(machine.MOV, bb)
		p1.AddRegister(argRegs[0].ID, argRegs[0].BitWidth)
		p1.AddOperand(dest)
		bb.Append(p1)

		src := t.materializeAddress(in.Left, bb)
		p2 := machine.NewInstruction(machine.MOV, bb)
		p2.AddRegister(argRegs[1].ID, argRegs[1].BitWidth)
		p2.AddOperand(src)
		bb.Append(p2)

		p3 := machine.NewInstruction(machine.MOV, bb)
		sizeReg := t.tm.RegInfo().SubRegisterForWidth(argRegs[2].ID, 32)
		p3.AddRegister(sizeReg, 32)
		p3.AddImmediate(int64(in.Bytes), 32)
		bb.Append(p3)

		call := machine.NewInstruction(machine.CALL, bb)
		call.AddFunctionName("memcpy")
		bb.Append(call)
		return
	}

	// otherwise a straight line of load/store pairs
	ptrSize := t.tm.PointerSize()

	resolve := func(v *mir.Value) uint64 {
		if _, ok := t.vregMap[v.ID]; !ok {
			return t.materializeAddress(v, bb).Reg
		}
		return t.idFromValue(v)
	}
	srcID := resolve(in.Left)
	destID := resolve(in.Addr)

	for i := int64(0); i < int64(in.Bytes/memcpyUnit); i++ {
		vreg := mf.NextAvailableVReg()
		load := machine.NewInstruction(machine.LOAD, bb)
		load.AddVirtualRegister(vreg, memcpyUnit*8)
		if mf.IsStackSlot(srcID) {
			load.AddStackAccess(srcID, i*memcpyUnit)
		} else {
			load.AddMemory(srcID, i*memcpyUnit, ptrSize)
		}
		bb.Append(load)

		store := machine.NewInstruction(machine.STORE, bb)
		if mf.IsStackSlot(destID) {
			store.AddStackAccess(destID, i*memcpyUnit)
		} else {
			store.AddMemory(destID, i*memcpyUnit, ptrSize)
		}
		store.AddVirtualRegister(vreg, memcpyUnit*8)
		bb.Append(store)
	}
}
