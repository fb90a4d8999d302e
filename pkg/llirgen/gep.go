package llirgen

import (
	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/mir"
)

// convertGEP lowers pointer arithmetic into
//
//	STACK_ADDRESS/GLOBAL_ADDRESS tmp, base   (unless base is a register)
//	MUL idx, index, stride                   (register index)
//	ADD dest, tmp, idx|#offset
//
// folding constant indexes into the stack operand's offset and
// dropping the ADD when nothing is left to add.
func (t *Translator) convertGEP(in *mir.Instruction, bb *machine.BasicBlock, mf *machine.Function) {
	ptrSize := t.tm.PointerSize()

	sourceID := t.idFromValue(in.Addr)
	isGlobal := in.Addr.IsGlobalVar()
	isStack := mf.IsStackSlot(sourceID)
	isReg := !isGlobal && !isStack

	dest := t.operandFromValue(in.Result, bb, true)

	var goal *machine.Instruction
	if isGlobal || isStack {
		op := machine.STACK_ADDRESS
		if isGlobal {
			op = machine.GLOBAL_ADDRESS
		}
		goal = machine.NewInstruction(op, bb)
		goal.AddOperand(dest)
		if isGlobal {
			goal.AddGlobalSymbol(in.Addr.Name)
		} else {
			goal.AddStackAccess(sourceID, 0)
		}
	}

	sourceType := in.Addr.Type
	var constantPart int64
	indexInReg := false
	var scaled machine.Operand

	if in.Left.IsIntConstant() {
		index := in.Left.IntVal
		if !sourceType.IsStruct() {
			constantPart = int64(sourceType.ElemByteSize()) * index
		} else {
			constantPart = int64(sourceType.MemberOffset(index))
		}

		if constantPart == 0 && goal != nil {
			bb.Append(goal)
			return
		}
		// folding the offset into the stack access beats an addition
		if isStack {
			goal.Operand(1).Offset = constantPart
			bb.Append(goal)
			return
		}
	} else {
		indexInReg = true
		if sourceType.IsStruct() && sourceType.PointerLevel <= 2 {
			panic("llirgen: non constant struct index is not supported")
		}
		if goal != nil {
			bb.Append(goal)
		}

		indexOp := t.operandFromValue(in.Left, bb, false)
		stride := int64(sourceType.ElemByteSize())

		if stride == 1 {
			// identity scale: a move, or a sign extension when the
			// index is narrower than a pointer
			mulRes := mf.NextAvailableVReg()
			mov := machine.NewInstruction(machine.MOV, bb)
			mov.AddVirtualRegister(mulRes, ptrSize)
			mov.AddOperand(indexOp)
			if indexOp.Size() < ptrSize {
				mov.SetOpcode(machine.SEXT)
			}
			bb.Append(mov)
			scaled = machine.NewVirtualRegister(mulRes, ptrSize)
		} else {
			strideReg := mf.NextAvailableVReg()
			mov := machine.NewInstruction(machine.MOV, bb)
			mov.AddVirtualRegister(strideReg, ptrSize)
			mov.AddImmediate(stride, ptrSize)
			bb.Append(mov)

			idx := indexOp
			if indexOp.Size() < ptrSize {
				sextReg := mf.NextAvailableVReg()
				sext := machine.NewInstruction(machine.SEXT, bb)
				sext.AddVirtualRegister(sextReg, ptrSize)
				sext.AddOperand(indexOp)
				bb.Append(sext)
				idx = machine.NewVirtualRegister(sextReg, ptrSize)
			}

			mulRes := mf.NextAvailableVReg()
			mul := machine.NewInstruction(machine.MUL, bb)
			mul.AddVirtualRegister(mulRes, ptrSize)
			mul.AddOperand(idx)
			mul.AddVirtualRegister(strideReg, ptrSize)
			bb.Append(mul)
			scaled = machine.NewVirtualRegister(mulRes, ptrSize)
		}
	}

	// the final ADD takes over the GEP's destination, so the address
	// instruction's def must be renamed to keep a single definition
	var base machine.Operand
	if goal != nil {
		renamed := mf.NextAvailableVReg()
		goal.Def().Reg = renamed
		base = *goal.Def()
		if !indexInReg {
			bb.Append(goal)
		}
	} else if isReg {
		base = t.operandFromValue(in.Addr, bb, false)
	}

	add := machine.NewInstruction(machine.ADD, bb)
	add.AddOperand(dest)
	add.AddOperand(base)
	if indexInReg {
		add.AddOperand(scaled)
	} else {
		add.AddImmediate(constantPart, dest.Size())
	}
	bb.Append(add)
}
