package riscv

import (
	"github.com/minicc-lang/minicc/pkg/machine"
)

// SelectInstruction rewrites one generic instruction into RV32
// opcodes. Compares produce a 0/1 value with slt/sltu sequences;
// conditional branches test the value against the zero register.
func (t *Target) SelectInstruction(mi *machine.Instruction) bool {
	switch mi.Opcode {
	case machine.AND:
		return t.selectThreeAddress(mi, AND, ANDI)
	case machine.OR:
		return t.selectThreeAddress(mi, OR, ORI)
	case machine.XOR:
		return t.selectThreeAddress(mi, XOR, XORI)
	case machine.LSL:
		return t.selectThreeAddress(mi, SLL, SLLI)
	case machine.LSR:
		return t.selectThreeAddress(mi, SRL, SRLI)
	case machine.ADD, machine.ADDS:
		return t.selectADD(mi)
	case machine.ADDC:
		return t.selectADDC(mi)
	case machine.SUB:
		return t.selectSUB(mi)
	case machine.MUL:
		return t.selectRRROnly(mi, MUL)
	case machine.MULHU:
		return t.selectRRROnly(mi, MULHU)
	case machine.DIV:
		return t.selectRRROnly(mi, DIV)
	case machine.DIVU:
		return t.selectRRROnly(mi, DIVU)
	case machine.MOD, machine.MODU:
		// the legalizer rewrites modulo before selection
		return false
	case machine.CMP:
		return t.selectCMP(mi)
	case machine.CMPF:
		return t.selectCMPF(mi)
	case machine.ADDF:
		mi.SetOpcode(FADD_S)
		return true
	case machine.SUBF:
		mi.SetOpcode(FSUB_S)
		return true
	case machine.MULF:
		mi.SetOpcode(FMUL_S)
		return true
	case machine.DIVF:
		mi.SetOpcode(FDIV_S)
		return true
	case machine.ITOF:
		mi.SetOpcode(FCVT_S_W)
		return true
	case machine.FTOI:
		mi.SetOpcode(FCVT_W_S)
		return true
	case machine.SEXT:
		return t.selectSEXT(mi)
	case machine.ZEXT:
		return t.selectZEXT(mi)
	case machine.TRUNC:
		return t.selectTRUNC(mi)
	case machine.SEXT_LOAD:
		return t.selectExtLoad(mi, LB, LH)
	case machine.ZEXT_LOAD:
		return t.selectExtLoad(mi, LBU, LHU)
	case machine.LOAD_IMM:
		t.MaterializeConstant(mi, mi.Operand(1).IntVal, mi.Operand(0), true)
		return true
	case machine.MOV:
		return t.selectMOV(mi)
	case machine.MOVF:
		mi.SetOpcode(FMV_S)
		return true
	case machine.LOAD:
		return t.selectLOAD(mi)
	case machine.STORE:
		return t.selectSTORE(mi)
	case machine.STACK_ADDRESS:
		mi.SetOpcode(ADDI)
		return true
	case machine.GLOBAL_ADDRESS:
		return t.selectGLOBAL_ADDRESS(mi)
	case machine.BRANCH:
		return t.selectBRANCH(mi)
	case machine.JUMP:
		mi.SetOpcode(J)
		return true
	case machine.CALL:
		mi.SetOpcode(JCALL)
		return true
	case machine.RET:
		mi.SetOpcode(JRET)
		return true
	case machine.SPLIT, machine.MERGE:
		// eliminated by the 64 bit legalization pass
		return false
	}
	return false
}

func (t *Target) selectThreeAddress(mi *machine.Instruction, rrr, rri machine.Opcode) bool {
	imm := mi.Operand(2)
	switch {
	case imm.IsIntImmediate() && isIntN(imm.IntVal, 12):
		mi.SetOpcode(rri)
	case imm.IsIntImmediate():
		var reg machine.Operand
		t.MaterializeConstant(mi, imm.IntVal, &reg, false)
		mi.SetOpcode(rrr)
		mi.RemoveOperand(2)
		mi.AddOperand(reg)
	default:
		mi.SetOpcode(rrr)
	}
	return true
}

func (t *Target) selectADD(mi *machine.Instruction) bool {
	if mi.Operand(2).IsGlobalSymbol() {
		mi.SetOpcode(ADDI)
		return true
	}
	return t.selectThreeAddress(mi, ADD, ADDI)
}

// selectADDC walks back to the adds producing the low half and
// rebuilds the carry with sltu.
func (t *Target) selectADDC(mi *machine.Instruction) bool {
	bb := mi.Parent
	idx := bb.IndexOf(mi)

	var adds *machine.Instruction
	for i := idx - 1; i >= 0; i-- {
		if bb.Instructions[i].Opcode == ADD {
			adds = bb.Instructions[i]
			break
		}
	}
	if adds == nil {
		return false
	}

	mf := bb.Parent
	carry := machine.NewVirtualRegister(mf.NextAvailableVReg(), 32)
	carry.RegClass = ClassGPR

	sltu := machine.NewInstruction(SLTU, bb)
	sltu.AddOperand(carry)
	sltu.AddOperand(*adds.Operand(0))
	sltu.AddOperand(*adds.Operand(1))
	bb.InsertBefore(sltu, mi)

	// hi = a + b, then hi += carry
	dest := *mi.Operand(0)
	mi.SetOpcode(ADD)

	addc := machine.NewInstruction(ADD, bb)
	addc.AddOperand(dest)
	addc.AddOperand(dest)
	addc.AddOperand(carry)
	bb.InsertAfter(addc, mi)
	return true
}

func (t *Target) selectSUB(mi *machine.Instruction) bool {
	if imm := mi.Operand(2); imm.IsIntImmediate() {
		// no subi: negate and add
		imm.IntVal = -imm.IntVal
		return t.selectThreeAddress(mi, ADD, ADDI)
	}
	mi.SetOpcode(SUB)
	return true
}

func (t *Target) selectRRROnly(mi *machine.Instruction, rrr machine.Opcode) bool {
	if imm := mi.Operand(2); imm.IsIntImmediate() {
		var reg machine.Operand
		t.MaterializeConstant(mi, imm.IntVal, &reg, false)
		mi.RemoveOperand(2)
		mi.AddOperand(reg)
	}
	mi.SetOpcode(rrr)
	return true
}

// selectCMP lowers a compare to a 0/1 value:
//
//	lt  -> slt d, a, b        ltu -> sltu d, a, b
//	gt  -> slt d, b, a        le/ge: the gt/lt form xored with 1
//	eq  -> xor d, a, b; sltiu d, d, 1
//	ne  -> xor d, a, b; sltu d, zero, d
func (t *Target) selectCMP(mi *machine.Instruction) bool {
	bb := bbOf(mi)
	dest := *mi.Operand(0)
	lhs := *mi.Operand(1)
	rhs := t.regOperand(mi, 2)

	emit := func(op machine.Opcode, a, b machine.Operand) *machine.Instruction {
		in := machine.NewInstruction(op, bb)
		in.AddOperand(dest)
		in.AddOperand(a)
		in.AddOperand(b)
		return in
	}

	var seq []*machine.Instruction
	switch mi.Relation {
	case machine.LT:
		seq = []*machine.Instruction{emit(SLT, lhs, rhs)}
	case machine.LTU:
		seq = []*machine.Instruction{emit(SLTU, lhs, rhs)}
	case machine.GT:
		seq = []*machine.Instruction{emit(SLT, rhs, lhs)}
	case machine.GTU:
		seq = []*machine.Instruction{emit(SLTU, rhs, lhs)}
	case machine.LE, machine.LEU:
		op := SLT
		if mi.Relation == machine.LEU {
			op = SLTU
		}
		x := machine.NewInstruction(XORI, bb)
		x.AddOperand(dest)
		x.AddOperand(dest)
		x.AddImmediate(1, 12)
		seq = []*machine.Instruction{emit(op, rhs, lhs), x}
	case machine.GE, machine.GEU:
		op := SLT
		if mi.Relation == machine.GEU {
			op = SLTU
		}
		x := machine.NewInstruction(XORI, bb)
		x.AddOperand(dest)
		x.AddOperand(dest)
		x.AddImmediate(1, 12)
		seq = []*machine.Instruction{emit(op, lhs, rhs), x}
	case machine.EQ:
		s := machine.NewInstruction(SLTIU, bb)
		s.AddOperand(dest)
		s.AddOperand(dest)
		s.AddImmediate(1, 12)
		seq = []*machine.Instruction{emit(XOR, lhs, rhs), s}
	case machine.NE:
		s := machine.NewInstruction(SLTU, bb)
		s.AddOperand(dest)
		s.AddRegister(Zero(), 32)
		s.AddOperand(dest)
		seq = []*machine.Instruction{emit(XOR, lhs, rhs), s}
	default:
		return false
	}

	// the first instruction replaces the compare in place
	first := seq[0]
	mi.SetOpcode(first.Opcode)
	mi.Operands = first.Operands
	last := mi
	for _, in := range seq[1:] {
		last = bb.InsertAfter(in, last)
	}
	return true
}

// selectCMPF lowers float compares to the flag free feq/flt/fle set.
// The unordered relations invert an ordered compare.
func (t *Target) selectCMPF(mi *machine.Instruction) bool {
	bb := bbOf(mi)
	dest := *mi.Operand(0)
	lhs := *mi.Operand(1)
	rhs := *mi.Operand(2)

	set := func(op machine.Opcode, a, b machine.Operand) {
		mi.SetOpcode(op)
		mi.Operands = nil
		mi.AddOperand(dest)
		mi.AddOperand(a)
		mi.AddOperand(b)
	}

	switch mi.Relation {
	case machine.EQ:
		set(FEQ_S, lhs, rhs)
	case machine.LT:
		set(FLT_S, lhs, rhs)
	case machine.LE:
		set(FLE_S, lhs, rhs)
	case machine.GT:
		set(FLT_S, rhs, lhs)
	case machine.GE:
		set(FLE_S, rhs, lhs)
	case machine.NE:
		set(FEQ_S, lhs, rhs)
		x := machine.NewInstruction(XORI, bb)
		x.AddOperand(dest)
		x.AddOperand(dest)
		x.AddImmediate(1, 12)
		bb.InsertAfter(x, mi)
	default:
		return false
	}
	return true
}

func (t *Target) selectSEXT(mi *machine.Instruction) bool {
	src := mi.Operand(1)
	if src.IsIntImmediate() {
		t.MaterializeConstant(mi, src.IntVal, mi.Operand(0), true)
		return true
	}
	var shift int64
	switch src.Size() {
	case 8:
		shift = 24
	case 16:
		shift = 16
	case 32:
		mi.SetOpcode(MV)
		return true
	default:
		return false
	}
	// slli d, s, shift ; srai d, d, shift
	dest := *mi.Operand(0)
	mi.SetOpcode(SLLI)
	mi.AddImmediate(shift, 12)

	srai := machine.NewInstruction(SRAI, bbOf(mi))
	srai.AddOperand(dest)
	srai.AddOperand(dest)
	srai.AddImmediate(shift, 12)
	bbOf(mi).InsertAfter(srai, mi)
	return true
}

func (t *Target) selectZEXT(mi *machine.Instruction) bool {
	src := mi.Operand(1)
	if src.IsIntImmediate() {
		t.MaterializeConstant(mi, src.IntVal, mi.Operand(0), true)
		return true
	}
	switch src.Size() {
	case 8:
		mi.SetOpcode(ANDI)
		mi.AddImmediate(0xff, 12)
		return true
	case 16:
		// slli d, s, 16 ; srli d, d, 16
		dest := *mi.Operand(0)
		mi.SetOpcode(SLLI)
		mi.AddImmediate(16, 12)
		srli := machine.NewInstruction(SRLI, bbOf(mi))
		srli.AddOperand(dest)
		srli.AddOperand(dest)
		srli.AddImmediate(16, 12)
		bbOf(mi).InsertAfter(srli, mi)
		return true
	case 32:
		mi.SetOpcode(MV)
		return true
	}
	return false
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
			t.MaterializeConstant(mi, src.IntVal, mi.Operand(0), true)
			return true
		}
		if destBits == 8 {
			mi.SetOpcode(ANDI)
			mi.AddImmediate(mask, 12)
			mi.Operand(0).SetSize(32)
			return true
		}
		dest := *mi.Operand(0)
		mi.SetOpcode(SLLI)
		mi.AddImmediate(16, 12)
		srli := machine.NewInstruction(SRLI, bbOf(mi))
		srli.AddOperand(dest)
		srli.AddOperand(dest)
		srli.AddImmediate(16, 12)
		bbOf(mi).InsertAfter(srli, mi)
		mi.Operand(0).SetSize(32)
		return true
	case 32:
		mi.SetOpcode(MV)
		return true
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
		mi.SetOpcode(LW)
	}
	return true
}

func (t *Target) selectMOV(mi *machine.Instruction) bool {
	if imm := mi.Operand(1); imm.IsIntImmediate() {
		t.MaterializeConstant(mi, imm.IntVal, mi.Operand(0), true)
	} else {
		mi.SetOpcode(MV)
	}
	return true
}

func (t *Target) selectLOAD(mi *machine.Instruction) bool {
	dest := mi.Operand(0)
	size := dest.Size() / 8
	if addr := mi.Operand(1); addr.IsStackAccess() {
		size = mi.Parent.Parent.Frame.SlotSize(addr.Slot())
	}
	if dest.Type.IsPointer() {
		size = 4
	}
	switch size {
	case 1:
		mi.SetOpcode(LB)
	case 2:
		mi.SetOpcode(LH)
	default:
		if dest.RegClass == ClassFPR {
			mi.SetOpcode(FLW)
		} else {
			mi.SetOpcode(LW)
		}
	}
	if !dest.Type.IsPointer() {
		dest.SetSize(32)
	}
	return true
}

func (t *Target) selectSTORE(mi *machine.Instruction) bool {
	addr := mi.Operand(0)
	val := mi.Operand(mi.OperandCount() - 1)

	size := val.Size() / 8
	if addr.IsStackAccess() {
		size = mi.Parent.Parent.Frame.SlotSize(addr.Slot())
	}
	switch size {
	case 1:
		mi.SetOpcode(SB)
	case 2:
		mi.SetOpcode(SH)
	default:
		if val.RegClass == ClassFPR {
			mi.SetOpcode(FSW)
		} else {
			mi.SetOpcode(SW)
		}
	}
	val.SetSize(32)
	return true
}

func (t *Target) selectGLOBAL_ADDRESS(mi *machine.Instruction) bool {
	dest := *mi.Operand(0)
	sym := *mi.Operand(1)

	// lui d, %hi(sym) ; addi d, d, %lo(sym)
	mi.SetOpcode(LUI)

	addi := machine.NewInstruction(ADDI, bbOf(mi))
	addi.AddOperand(dest)
	addi.AddOperand(dest)
	addi.AddOperand(sym)
	bbOf(mi).InsertAfter(addi, mi)
	return true
}

func (t *Target) selectBRANCH(mi *machine.Instruction) bool {
	bb := bbOf(mi)
	cond := *mi.Operand(0)
	trueLabel := *mi.Operand(1)
	explicitFalse := mi.OperandCount() > 2
	var falseLabel machine.Operand
	if explicitFalse {
		falseLabel = mi.Operands[2]
	}

	mi.SetOpcode(BNE)
	mi.AddAttribute(machine.AttrIsJump)
	mi.Operands = nil
	mi.AddOperand(cond)
	mi.AddRegister(Zero(), 32)
	mi.AddOperand(trueLabel)

	if explicitFalse {
		jump := machine.NewInstruction(J, bb)
		jump.AddOperand(falseLabel)
		bb.InsertAfter(jump, mi)
	}
	return true
}

// regOperand returns operand idx as a register, materializing an
// immediate when needed.
func (t *Target) regOperand(mi *machine.Instruction, idx int) machine.Operand {
	op := mi.Operand(idx)
	if !op.IsIntImmediate() {
		return *op
	}
	var reg machine.Operand
	t.MaterializeConstant(mi, op.IntVal, &reg, false)
	return reg
}

func bbOf(mi *machine.Instruction) *machine.BasicBlock { return mi.Parent }
