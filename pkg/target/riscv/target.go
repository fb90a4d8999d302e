package riscv

import (
	"fmt"

	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/target"
)

// Target is the RV32 machine description.
type Target struct {
	regInfo *registerInfo
	abi     *target.ABI
}

func init() {
	target.RegisterTarget("riscv32", func() target.Machine { return New() })
}

// New builds the riscv32 target.
func New() *Target {
	ri := newRegisterInfo()

	args := make([]*target.Register, 0, 16)
	for n := uint64(10); n <= 17; n++ {
		args = append(args, ri.RegisterByID(XReg(n)))
	}
	firstFP := len(args)
	for n := uint64(10); n <= 17; n++ {
		args = append(args, ri.RegisterByID(FReg(n)))
	}

	rets := []*target.Register{
		ri.RegisterByID(XReg(10)), // a0
		ri.RegisterByID(XReg(11)), // a1
		ri.RegisterByID(FReg(10)), // fa0
		ri.RegisterByID(FReg(11)), // fa1
	}

	return &Target{
		regInfo: ri,
		abi: &target.ABI{
			ArgumentRegisters:   args,
			ReturnRegisters:     rets,
			FirstFPArg:          firstFP,
			FirstFPRet:          2,
			StackAlignment:      16,
			MaxStructSizeInRegs: 64,
		},
	}
}

func (t *Target) Name() string                 { return "riscv32" }
func (t *Target) PointerSize() uint            { return 32 }
func (t *Target) IntSize() uint                { return 32 }
func (t *Target) LongSize() uint               { return 32 }
func (t *Target) RegInfo() target.RegisterInfo { return t.regInfo }
func (t *Target) ABI() *target.ABI             { return t.abi }
func (t *Target) MinRegisterWidth() uint       { return 32 }
func (t *Target) IsMemcpySupported() bool      { return true }

// ImmRuleFor: the I type immediate field is 12 bit signed across the
// board. Multiplies, divides and the flag free compares never take an
// immediate.
func (t *Target) ImmRuleFor(op machine.Opcode) (target.ImmRule, bool) {
	switch op {
	case machine.ADD, machine.SUB, machine.AND, machine.OR, machine.XOR,
		machine.LSL, machine.LSR, machine.MOV:
		// LOAD_IMM is absent on purpose: its immediate is folded by
		// constant materialization at selection
		return target.ImmRule{Bits: 12, Signed: true}, true
	}
	return target.ImmRule{}, false
}

// BranchRangeBytes: B type branches reach +-4 KiB; the legalizer
// inserts trampolines past that.
func (t *Target) BranchRangeBytes() int64 { return 4092 }

func isIntN(v int64, bits uint) bool {
	return v >= -(int64(1)<<(bits-1)) && v < int64(1)<<(bits-1)
}

// MaterializeConstant loads a 32 bit constant with lui/addi. With
// reuse set, mi becomes the first instruction of the sequence and
// keeps its destination.
func (t *Target) MaterializeConstant(mi *machine.Instruction, c int64, out *machine.Operand, reuse bool) *machine.Instruction {
	bb := mi.Parent
	mf := bb.Parent

	var dest machine.Operand
	if reuse {
		dest = *mi.Operand(0)
	} else {
		reg := mf.NextAvailableVReg()
		*out = machine.NewVirtualRegister(reg, 32)
		out.RegClass = ClassGPR
		dest = *out
	}

	if isIntN(c, 12) {
		// addi dest, zero, c
		if reuse {
			mi.SetOpcode(ADDI)
			mi.Operands = mi.Operands[:1]
			mi.AddRegister(Zero(), 32)
			mi.AddImmediate(c, 12)
			return mi
		}
		addi := machine.NewInstruction(ADDI, bb)
		addi.AddOperand(dest)
		addi.AddRegister(Zero(), 32)
		addi.AddImmediate(c, 12)
		return bb.InsertBefore(addi, mi)
	}

	lo := c & 0xfff
	if lo >= 0x800 {
		lo -= 0x1000
	}
	hi := (c - lo) >> 12 & 0xfffff

	var first *machine.Instruction
	if reuse {
		mi.SetOpcode(LUI)
		mi.Operands = mi.Operands[:1]
		mi.AddImmediate(hi, 20)
		first = mi
	} else {
		lui := machine.NewInstruction(LUI, bb)
		lui.AddOperand(dest)
		lui.AddImmediate(hi, 20)
		first = bb.InsertBefore(lui, mi)
	}

	last := first
	if lo != 0 {
		addi := machine.NewInstruction(ADDI, bb)
		addi.AddOperand(dest)
		addi.AddOperand(dest)
		addi.AddImmediate(lo, 12)
		if reuse {
			last = bb.InsertAfter(addi, first)
		} else {
			last = bb.InsertBefore(addi, mi)
		}
	}
	return last
}

// PostRAFixups: nothing to rename, the register file has no sub
// registers.
func (t *Target) PostRAFixups(f *machine.Function) {}

var style = target.Style{
	ImmPrefix: "",
	Mem: func(base string, off int64) string {
		return fmt.Sprintf("%d(%s)", off, base)
	},
}

// FormatOperand handles the %hi/%lo relocation operators on lui/addi
// pairs loading global addresses.
func (t *Target) FormatOperand(mi *machine.Instruction, idx int) string {
	op := mi.Operand(idx)
	if op.IsGlobalSymbol() {
		switch mi.Opcode {
		case LUI:
			return "%hi(" + op.Symbol + ")"
		case ADDI:
			return "%lo(" + op.Symbol + ")"
		}
	}
	return target.FormatOperandDefault(t.regInfo, mi, idx, style)
}
