package llirgen

import (
	"fmt"

	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/mir"
)

var binaryOpcodes = map[mir.InstrKind]machine.Opcode{
	mir.IAnd: machine.AND, mir.IOr: machine.OR, mir.IXor: machine.XOR,
	mir.ILsl: machine.LSL, mir.ILsr: machine.LSR, mir.IAdd: machine.ADD,
	mir.ISub: machine.SUB, mir.IMul: machine.MUL, mir.IDiv: machine.DIV,
	mir.IDivU: machine.DIVU, mir.IMod: machine.MOD, mir.IModU: machine.MODU,
	mir.IAddF: machine.ADDF, mir.ISubF: machine.SUBF, mir.IMulF: machine.MULF,
	mir.IDivF: machine.DIVF,
}

var unaryOpcodes = map[mir.InstrKind]machine.Opcode{
	mir.ISExt: machine.SEXT, mir.IZExt: machine.ZEXT, mir.ITrunc: machine.TRUNC,
	mir.IFToI: machine.FTOI, mir.IIToF: machine.ITOF, mir.IBitCast: machine.BITCAST,
}

var relations = map[mir.Relation]machine.Relation{
	mir.EQ: machine.EQ, mir.NE: machine.NE, mir.LT: machine.LT,
	mir.LE: machine.LE, mir.GT: machine.GT, mir.GE: machine.GE,
	mir.LTU: machine.LTU, mir.LEU: machine.LEU, mir.GTU: machine.GTU,
	mir.GEU: machine.GEU,
}

func (t *Translator) convertInstruction(in *mir.Instruction, bb *machine.BasicBlock, mf *machine.Function) {
	switch in.Kind {
	case mir.IAnd, mir.IOr, mir.IXor, mir.ILsl, mir.ILsr, mir.IAdd, mir.ISub,
		mir.IMul, mir.IDiv, mir.IDivU, mir.IMod, mir.IModU, mir.IAddF,
		mir.ISubF, mir.IMulF, mir.IDivF:
		t.convertBinary(in, bb)
	case mir.ISExt, mir.IZExt, mir.ITrunc, mir.IFToI, mir.IIToF, mir.IBitCast:
		t.convertUnary(in, bb, mf)
	case mir.IStore:
		t.convertStore(in, bb, mf)
	case mir.ILoad:
		t.convertLoad(in, bb, mf)
	case mir.IGEP:
		t.convertGEP(in, bb, mf)
	case mir.IJump:
		j := machine.NewInstruction(machine.JUMP, bb)
		j.AddLabel(in.Target)
		bb.Append(j)
	case mir.IBranch:
		t.convertBranch(in, bb)
	case mir.ICmp, mir.ICmpF:
		t.convertCompare(in, bb)
	case mir.ICall:
		t.convertCall(in, bb, mf)
	case mir.IRet:
		t.convertReturn(in, bb, mf)
	case mir.IMemCopy:
		t.convertMemCopy(in, bb, mf)
	default:
		panic(fmt.Sprintf("llirgen: unimplemented instruction kind %d", in.Kind))
	}
}

func (t *Translator) convertBinary(in *mir.Instruction, bb *machine.BasicBlock) {
	mi := machine.NewInstruction(binaryOpcodes[in.Kind], bb)
	dest := t.operandFromValue(in.Result, bb, true)
	lhs := t.operandFromValue(in.Left, bb, false)
	rhs := t.operandFromValue(in.Right, bb, false)
	mi.AddOperand(dest)
	mi.AddOperand(lhs)
	mi.AddOperand(rhs)
	bb.Append(mi)
}

func (t *Translator) convertUnary(in *mir.Instruction, bb *machine.BasicBlock, mf *machine.Function) {
	mi := machine.NewInstruction(unaryOpcodes[in.Kind], bb)
	dest := t.operandFromValue(in.Result, bb, true)

	var src machine.Operand
	if in.Kind == mir.IBitCast {
		// pointer to pointer casts of stack objects take the slot's
		// address; spilled return slots load the value instead; plain
		// register casts degrade to moves
		srcVal := in.Left
		samePtrLevel := in.Result.Type.IsPointer() && srcVal.Type.IsPointer() &&
			in.Result.Type.PointerLevel == srcVal.Type.PointerLevel
		if samePtrLevel && mf.IsStackSlot(t.idFromValue(srcVal)) {
			if _, spilled := t.spilledRetSlots[srcVal.ID]; !spilled {
				mi.SetOpcode(machine.STACK_ADDRESS)
				src = machine.NewStackAccess(t.idFromValue(srcVal), 0)
			} else {
				mi.SetOpcode(machine.LOAD)
				src = machine.NewStackAccess(t.idFromValue(srcVal), 0)
			}
		} else {
			mi.SetOpcode(machine.MOV)
			src = t.operandFromValue(srcVal, bb, false)
		}
	} else {
		src = t.operandFromValue(in.Left, bb, false)
	}

	mi.AddOperand(dest)
	mi.AddOperand(src)
	bb.Append(mi)
}

// addressOf resolves the memory operand of a load or store: globals
// are materialized into a vreg, everything else must already be an
// address carrying register or a stack slot.
func (t *Translator) addressOf(loc *mir.Value, bb *machine.BasicBlock, mf *machine.Function) uint64 {
	if loc.IsGlobalVar() {
		vreg := mf.NextAvailableVReg()
		ga := machine.NewInstruction(machine.GLOBAL_ADDRESS, bb)
		ga.AddVirtualRegister(vreg, t.tm.PointerSize())
		ga.AddGlobalSymbol(loc.Name)
		bb.Append(ga)
		return vreg
	}
	if !loc.IsRegister() {
		panic(fmt.Sprintf("llirgen: forbidden memory location %d in %s", loc.ID, mf.Name))
	}
	// a pointer coming back from a call sits in its spill slot and
	// must be reloaded before it can address memory
	if _, ok := t.spilledRetSlots[loc.ID]; ok {
		return t.operandFromValue(loc, bb, false).Reg
	}
	return t.idFromValue(loc)
}

func (t *Translator) convertStore(in *mir.Instruction, bb *machine.BasicBlock, mf *machine.Function) {
	addrReg := t.addressOf(in.Addr, bb, mf)
	ptrSize := t.tm.PointerSize()
	ptrBytes := int64(ptrSize / 8)

	store := machine.NewInstruction(machine.STORE, bb)
	if mf.IsStackSlot(addrReg) {
		store.AddStackAccess(addrReg, 0)
	} else {
		store.AddMemory(addrReg, 0, ptrSize)
	}

	src := in.Left
	switch {
	// a struct held in registers: one store per chunk
	case src.Type.IsStruct() && !src.Type.IsPointer() && src.IsParameter():
		chunks := t.structToReg[src.Name]
		if len(chunks) == 0 {
			panic("llirgen: unknown struct parameter " + src.Name)
		}
		for i, vreg := range chunks {
			chunk := machine.NewInstruction(machine.STORE, bb)
			chunk.AddStackAccess(addrReg, int64(i)*ptrBytes)
			chunk.AddVirtualRegister(vreg, ptrSize)
			bb.Append(chunk)
		}

	// a struct just returned from a call: store the return registers
	case src.Type.IsStruct() && !src.Type.IsPointer():
		structBits := src.Type.BaseByteSize() * 8
		regsCount := int((structBits + ptrSize - 1) / ptrSize)
		rets := t.tm.ABI().ReturnRegisters
		if regsCount > len(rets) {
			panic("llirgen: struct return does not fit the return registers")
		}
		for i := 0; i < regsCount; i++ {
			chunk := machine.NewInstruction(machine.STORE, bb)
			chunk.AddStackAccess(addrReg, int64(i)*ptrBytes)
			chunk.AddRegister(rets[i].ID, ptrSize)
			bb.Append(chunk)
		}

	// a wide parameter living in several registers
	case len(t.paramByID[src.ID]) > 0:
		for i, vreg := range t.paramByID[src.ID] {
			chunk := machine.NewInstruction(machine.STORE, bb)
			chunk.AddStackAccess(addrReg, int64(i)*ptrBytes)
			chunk.AddVirtualRegister(vreg, ptrSize)
			bb.Append(chunk)
		}

	case src.IsGlobalVar():
		vreg := mf.NextAvailableVReg()
		ga := machine.NewInstruction(machine.GLOBAL_ADDRESS, bb)
		ga.AddVirtualRegister(vreg, ptrSize)
		ga.AddGlobalSymbol(src.Name)
		bb.Append(ga)
		store.AddVirtualRegister(vreg, ptrSize)
		bb.Append(store)

	// storing the address of a local: materialize it first
	case src.IsStackAlloc():
		if !mf.IsStackSlot(t.idFromValue(src)) {
			panic("llirgen: stack allocation without a slot")
		}
		vreg := mf.NextAvailableVReg()
		sa := machine.NewInstruction(machine.STACK_ADDRESS, bb)
		sa.AddVirtualRegister(vreg, ptrSize)
		sa.AddStackAccess(t.idFromValue(src), 0)
		bb.Append(sa)
		store.AddVirtualRegister(vreg, ptrSize)
		bb.Append(store)

	default:
		store.AddOperand(t.operandFromValue(src, bb, false))
		bb.Append(store)
	}
}

func (t *Translator) convertLoad(in *mir.Instruction, bb *machine.BasicBlock, mf *machine.Function) {
	addrReg := t.addressOf(in.Addr, bb, mf)
	ptrSize := t.tm.PointerSize()
	ptrBytes := int64(ptrSize / 8)

	// a struct load becomes one load per register sized chunk,
	// remembered for the later call or return that consumes it
	if in.Result.Type.IsStruct() && !in.Result.Type.IsPointer() {
		structBits := in.Result.Type.ByteSize() * 8
		regsCount := int((structBits + ptrSize - 1) / ptrSize)
		for i := 0; i < regsCount; i++ {
			chunk := machine.NewInstruction(machine.LOAD, bb)
			vreg := mf.NextAvailableVReg()
			chunk.AddVirtualRegister(vreg, ptrSize)
			t.structByID[in.Result.ID] = append(t.structByID[in.Result.ID], vreg)
			chunk.AddStackAccess(addrReg, int64(i)*ptrBytes)
			bb.Append(chunk)
		}
		return
	}

	load := machine.NewInstruction(machine.LOAD, bb)
	load.AddOperand(t.operandFromValue(in.Result, bb, true))
	if mf.IsStackSlot(addrReg) {
		load.AddStackAccess(addrReg, 0)
	} else {
		load.AddMemory(addrReg, 0, ptrSize)
	}
	bb.Append(load)
}

func (t *Translator) convertBranch(in *mir.Instruction, bb *machine.BasicBlock) {
	br := machine.NewInstruction(machine.BRANCH, bb)
	br.AddOperand(t.operandFromValue(in.Left, bb, false))
	br.AddLabel(in.Target)
	if in.HasFalseLabel() {
		br.AddLabel(in.FalseTarget)
	} else {
		br.AddAttribute(machine.AttrFallthroughBranch)
	}
	bb.Append(br)
}

func (t *Translator) convertCompare(in *mir.Instruction, bb *machine.BasicBlock) {
	op := machine.CMP
	if in.Kind == mir.ICmpF {
		op = machine.CMPF
	}
	mi := machine.NewInstruction(op, bb)
	mi.Relation = relations[in.Relation]
	mi.AddOperand(t.operandFromValue(in.Result, bb, true))
	mi.AddOperand(t.operandFromValue(in.Left, bb, false))
	mi.AddOperand(t.operandFromValue(in.Right, bb, false))
	bb.Append(mi)
}
