package aarch64

import (
	"fmt"

	"github.com/minicc-lang/minicc/pkg/machine"
)

// extendRegSize widens sub 32 bit register operands to 32 bit, the
// narrowest width a GPR can be addressed with.
func extendRegSize(op *machine.Operand) {
	if op != nil && op.IsAnyReg() && op.Size() < 32 {
		op.SetSize(32)
	}
}

// SelectInstruction rewrites one generic instruction into AArch64
// opcodes.
func (t *Target) SelectInstruction(mi *machine.Instruction) bool {
	switch mi.Opcode {
	case machine.AND:
		return t.selectThreeAddress(mi, AND_rrr, AND_rri, 12)
	case machine.OR:
		return t.selectThreeAddress(mi, ORR_rrr, ORR_rri, 12)
	case machine.XOR:
		return t.selectXOR(mi)
	case machine.LSL:
		return t.selectThreeAddress(mi, LSL_rrr, LSL_rri, 12)
	case machine.LSR:
		return t.selectThreeAddress(mi, LSR_rrr, LSR_rri, 12)
	case machine.ADD:
		return t.selectADD(mi)
	case machine.SUB:
		return t.selectThreeAddress(mi, SUB_rrr, SUB_rri, 12)
	case machine.MUL:
		return t.selectThreeAddress(mi, MUL_rrr, MUL_rri, 12)
	case machine.DIV:
		return t.selectDIV(mi, SDIV_rrr)
	case machine.DIVU:
		return t.selectDIV(mi, UDIV_rrr)
	case machine.MOD, machine.MODU:
		// the legalizer rewrites modulo before selection
		return false
	case machine.CMP:
		return t.selectCMP(mi)
	case machine.CMPF:
		return t.selectCMPF(mi)
	case machine.ADDF:
		return t.selectFPThreeAddress(mi, FADD_rrr)
	case machine.SUBF:
		return t.selectFPThreeAddress(mi, FSUB_rrr)
	case machine.MULF:
		return t.selectFPThreeAddress(mi, FMUL_rrr)
	case machine.DIVF:
		return t.selectFPThreeAddress(mi, FDIV_rrr)
	case machine.ITOF:
		extendRegSize(mi.Operand(0))
		mi.SetOpcode(SCVTF_rr)
		return true
	case machine.FTOI:
		extendRegSize(mi.Operand(0))
		mi.SetOpcode(FCVTZS_rr)
		return true
	case machine.SEXT:
		return t.selectSEXT(mi)
	case machine.ZEXT:
		return t.selectZEXT(mi)
	case machine.TRUNC:
		return t.selectTRUNC(mi)
	case machine.SEXT_LOAD:
		return t.selectExtLoad(mi, LDRSB, LDRSH)
	case machine.ZEXT_LOAD:
		return t.selectExtLoad(mi, LDRB, LDRH)
	case machine.LOAD_IMM:
		return t.selectLOAD_IMM(mi)
	case machine.MOV:
		return t.selectMOV(mi)
	case machine.MOVF:
		if mi.Operand(1).IsImmediate() {
			mi.SetOpcode(FMOV_ri)
		} else {
			mi.SetOpcode(FMOV_rr)
		}
		return true
	case machine.LOAD:
		return t.selectLOAD(mi)
	case machine.STORE:
		return t.selectSTORE(mi)
	case machine.STACK_ADDRESS:
		mi.SetOpcode(ADD_rri)
		return true
	case machine.GLOBAL_ADDRESS:
		return t.selectGLOBAL_ADDRESS(mi)
	case machine.BRANCH:
		return t.selectBRANCH(mi)
	case machine.JUMP:
		mi.SetOpcode(B)
		return true
	case machine.CALL:
		mi.SetOpcode(BL)
		return true
	case machine.RET:
		mi.SetOpcode(RET)
		return true
	}
	return false
}

// selectThreeAddress picks the rri form when operand 2 is an
// immediate that fits immBits, materializing it otherwise.
func (t *Target) selectThreeAddress(mi *machine.Instruction, rrr, rri machine.Opcode, immBits uint) bool {
	extendRegSize(mi.Operand(0))
	extendRegSize(mi.Operand(1))

	imm := mi.Operand(2)
	switch {
	case imm.IsIntImmediate() && isIntN(imm.IntVal, immBits):
		mi.SetOpcode(rri)
	case imm.IsIntImmediate():
		var reg machine.Operand
		t.MaterializeConstant(mi, imm.IntVal, &reg, false)
		mi.SetOpcode(rrr)
		mi.RemoveOperand(2)
		mi.AddOperand(reg)
	case imm.IsAnyReg():
		extendRegSize(imm)
		mi.SetOpcode(rrr)
	default:
		return false
	}
	return true
}

func (t *Target) selectXOR(mi *machine.Instruction) bool {
	extendRegSize(mi.Operand(0))
	extendRegSize(mi.Operand(1))

	// bitwise not
	if op2 := mi.Operand(2); op2.IsIntImmediate() && op2.IntVal == -1 {
		mi.RemoveOperand(2)
		mi.SetOpcode(MVN_rr)
		return true
	}
	return t.selectThreeAddress(mi, EOR_rrr, EOR_rri, 12)
}

func (t *Target) selectADD(mi *machine.Instruction) bool {
	extendRegSize(mi.Operand(0))
	extendRegSize(mi.Operand(1))

	// adding the low part of a global address
	if mi.Operand(2).IsGlobalSymbol() {
		mi.SetOpcode(ADD_rri)
		return true
	}
	// negative immediates become subtractions
	if imm := mi.Operand(2); imm.IsIntImmediate() && imm.IntVal < 0 {
		imm.IntVal = -imm.IntVal
		return t.selectThreeAddress(mi, SUB_rrr, SUB_rri, 12)
	}
	return t.selectThreeAddress(mi, ADD_rrr, ADD_rri, 12)
}

func (t *Target) selectDIV(mi *machine.Instruction, rrr machine.Opcode) bool {
	extendRegSize(mi.Operand(0))
	extendRegSize(mi.Operand(1))

	if imm := mi.Operand(2); imm.IsIntImmediate() {
		var reg machine.Operand
		t.MaterializeConstant(mi, imm.IntVal, &reg, false)
		mi.RemoveOperand(2)
		mi.AddOperand(reg)
	}
	mi.SetOpcode(rrr)
	return true
}

// csetFor maps a compare relation to its cset opcode.
func csetFor(rel machine.Relation) machine.Opcode {
	switch rel {
	case machine.EQ:
		return CSET_eq
	case machine.NE:
		return CSET_ne
	case machine.LT:
		return CSET_lt
	case machine.LE:
		return CSET_le
	case machine.GT:
		return CSET_gt
	case machine.GE:
		return CSET_ge
	case machine.LTU:
		return CSET_lo
	case machine.LEU:
		return CSET_ls
	case machine.GTU:
		return CSET_hi
	case machine.GEU:
		return CSET_hs
	}
	panic(fmt.Sprintf("aarch64: cset for relation %v", rel))
}

// branchFor maps a compare relation to its conditional branch.
func branchFor(rel machine.Relation) machine.Opcode {
	switch rel {
	case machine.EQ:
		return BEQ
	case machine.NE:
		return BNE
	case machine.LT:
		return BLT
	case machine.LE:
		return BLE
	case machine.GT:
		return BGT
	case machine.GE:
		return BGE
	case machine.LTU:
		return BLO
	case machine.LEU:
		return BLS
	case machine.GTU:
		return BHI
	case machine.GEU:
		return BHS
	}
	return BEQ
}

// cmpConsumedByBranch reports whether the compare's boolean result
// feeds the immediately following branch, in which case the flags are
// enough and no cset is needed.
func cmpConsumedByBranch(mi *machine.Instruction) bool {
	bb := mi.Parent
	idx := bb.IndexOf(mi)
	if idx < 0 || idx+1 >= len(bb.Instructions) {
		return false
	}
	next := bb.Instructions[idx+1]
	if next.Opcode != machine.BRANCH {
		return false
	}
	cond := next.Operand(0)
	def := mi.Operand(0)
	return cond != nil && def != nil && cond.IsAnyReg() && def.IsAnyReg() && cond.Reg == def.Reg
}

func (t *Target) selectCMP(mi *machine.Instruction) bool {
	extendRegSize(mi.Operand(0))
	extendRegSize(mi.Operand(1))

	needCSET := !cmpConsumedByBranch(mi)
	dest := *mi.Operand(0)

	if imm := mi.Operand(2); imm.IsIntImmediate() {
		if isIntN(imm.IntVal, 12) {
			mi.SetOpcode(CMP_ri)
		} else {
			var reg machine.Operand
			t.MaterializeConstant(mi, imm.IntVal, &reg, false)
			mi.SetOpcode(CMP_rr)
			mi.RemoveOperand(2)
			mi.AddOperand(reg)
		}
	} else {
		mi.SetOpcode(CMP_rr)
	}
	// the flags register is the implicit destination
	mi.RemoveOperand(0)

	if needCSET {
		cset := machine.NewInstruction(csetFor(mi.Relation), mi.Parent)
		cset.AddOperand(dest)
		mi.Parent.InsertAfter(cset, mi)
	}
	return true
}

func (t *Target) selectCMPF(mi *machine.Instruction) bool {
	if mi.Operand(2).IsImmediate() {
		mi.SetOpcode(FCMP_ri)
	} else {
		mi.SetOpcode(FCMP_rr)
	}
	mi.RemoveOperand(0)
	return true
}

func (t *Target) selectFPThreeAddress(mi *machine.Instruction, rrr machine.Opcode) bool {
	if mi.Operand(2).IsImmediate() {
		return false
	}
	mi.SetOpcode(rrr)
	return true
}

func (t *Target) selectSEXT(mi *machine.Instruction) bool {
	extendRegSize(mi.Operand(0))

	src := mi.Operand(1)
	if src.IsIntImmediate() {
		mi.SetOpcode(MOV_rc)
		return true
	}
	switch src.Size() {
	case 8:
		mi.SetOpcode(SXTB)
	case 16:
		mi.SetOpcode(SXTH)
	case 32:
		mi.SetOpcode(SXTW)
	default:
		return false
	}
	return true
}

func (t *Target) selectZEXT(mi *machine.Instruction) bool {
	extendRegSize(mi.Operand(0))

	src := mi.Operand(1)
	if src.IsIntImmediate() {
		mi.SetOpcode(MOV_rc)
		return true
	}
	switch src.Size() {
	case 8:
		mi.SetOpcode(UXTB)
	case 16:
		mi.SetOpcode(UXTH)
	case 32:
		mi.SetOpcode(UXTW)
	case 64:
		mi.SetOpcode(MOV_rr)
	default:
		return false
	}
	return true
}

func (t *Target) selectTRUNC(mi *machine.Instruction) bool {
	destBits := mi.Operand(0).Size()
	src := mi.Operand(1)

	switch destBits {
	case 8, 16:
		mask := int64(0xff)
		if destBits == 16 {
			mask = 0xffff
		}
		if src.IsIntImmediate() {
			src.IntVal &= mask
			mi.SetOpcode(MOV_rc)
		} else {
			mi.SetOpcode(AND_rri)
			mi.AddImmediate(mask, 32)
		}
		extendRegSize(mi.Operand(0))
		return true
	case 32:
		// a plain mov; the sub register rename pass narrows the
		// source to its W register
		if src.Size() == 64 && !src.IsIntImmediate() {
			mi.SetOpcode(MOV_rr)
			return true
		}
	}
	return false
}

func (t *Target) selectExtLoad(mi *machine.Instruction, byteOp, halfOp machine.Opcode) bool {
	srcBits := mi.Operand(1).Size()
	mi.RemoveOperand(1)
	switch srcBits {
	case 8:
		mi.SetOpcode(byteOp)
	case 16:
		mi.SetOpcode(halfOp)
	default:
		mi.SetOpcode(LDR)
	}
	extendRegSize(mi.Operand(0))
	return true
}

func (t *Target) selectLOAD_IMM(mi *machine.Instruction) bool {
	imm := mi.Operand(1)
	if !imm.IsIntImmediate() {
		panic("aarch64: LOAD_IMM source must be an immediate")
	}
	extendRegSize(mi.Operand(0))
	t.MaterializeConstant(mi, imm.IntVal, mi.Operand(0), true)
	return true
}

func (t *Target) selectMOV(mi *machine.Instruction) bool {
	if imm := mi.Operand(1); imm.IsIntImmediate() {
		if isIntN(imm.IntVal, 16) {
			mi.SetOpcode(MOV_rc)
		} else {
			t.MaterializeConstant(mi, imm.IntVal, mi.Operand(0), true)
		}
	} else {
		mi.SetOpcode(MOV_rr)
	}
	return true
}

func (t *Target) selectLOAD(mi *machine.Instruction) bool {
	dest := mi.Operand(0)
	if dest.Size() == 8 && !dest.Type.IsPointer() {
		mi.SetOpcode(LDRB)
		extendRegSize(dest)
		return true
	}

	if addr := mi.Operand(1); addr.IsStackAccess() {
		mf := mi.Parent.Parent
		switch mf.Frame.SlotSize(addr.Slot()) {
		case 1:
			mi.SetOpcode(LDRB)
			extendRegSize(dest)
			return true
		case 2:
			mi.SetOpcode(LDRH)
			extendRegSize(dest)
			return true
		case 4:
			mi.SetOpcode(LDR)
			return true
		}
	}
	mi.SetOpcode(LDR)
	return true
}

func (t *Target) selectSTORE(mi *machine.Instruction) bool {
	addr := mi.Operand(0)
	val := mi.Operand(mi.OperandCount() - 1)

	slotSize := uint(0)
	if addr.IsStackAccess() {
		slotSize = mi.Parent.Parent.Frame.SlotSize(addr.Slot())
	}

	switch {
	case val.Size() == 8 || slotSize == 1:
		mi.SetOpcode(STRB)
	case val.Size() == 16 || slotSize == 2:
		mi.SetOpcode(STRH)
	default:
		mi.SetOpcode(STR)
	}
	extendRegSize(val)
	return true
}

func (t *Target) selectGLOBAL_ADDRESS(mi *machine.Instruction) bool {
	dest := *mi.Operand(0)
	sym := *mi.Operand(1)

	mi.SetOpcode(ADRP)

	// add the page offset: add xN, xN, :lo12:sym
	add := machine.NewInstruction(ADD_rri, mi.Parent)
	add.AddOperand(dest)
	add.AddOperand(dest)
	add.AddOperand(sym)
	mi.Parent.InsertAfter(add, mi)
	return true
}

func (t *Target) selectBRANCH(mi *machine.Instruction) bool {
	bb := mi.Parent
	idx := bb.IndexOf(mi)

	rel := machine.NoRelation
	if idx > 0 {
		prev := bb.Instructions[idx-1]
		if prev.Opcode == CMP_rr || prev.Opcode == CMP_ri ||
			prev.Opcode == FCMP_rr || prev.Opcode == FCMP_ri {
			rel = prev.Relation
		}
	}

	if rel == machine.NoRelation {
		// no preceding compare set the flags for us; compare the
		// condition register against zero and branch on not equal
		cond := *mi.Operand(0)
		extendRegSize(&cond)
		cmp := machine.NewInstruction(CMP_ri, bb)
		cmp.AddOperand(cond)
		cmp.AddImmediate(0, 32)
		bb.InsertBefore(cmp, mi)
		mi.SetOpcode(BNE)
	} else {
		mi.SetOpcode(branchFor(rel))
	}

	trueLabel := *mi.Operand(1)
	explicitFalse := mi.OperandCount() > 2
	var falseLabel machine.Operand
	if explicitFalse {
		falseLabel = mi.Operands[2]
	}

	mi.AddAttribute(machine.AttrIsJump)
	mi.Operands = mi.Operands[:0]
	mi.AddOperand(trueLabel)

	if explicitFalse {
		jump := machine.NewInstruction(B, bb)
		jump.AddOperand(falseLabel)
		bb.InsertAfter(jump, mi)
	}
	return true
}
