package aarch64

import (
	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/target"
)

// Target is the AArch64 machine description.
type Target struct {
	regInfo *registerInfo
	abi     *target.ABI
}

func init() {
	target.RegisterTarget("aarch64", func() target.Machine { return New() })
}

// New builds the AArch64 target.
func New() *Target {
	ri := newRegisterInfo()

	args := make([]*target.Register, 0, 16)
	for n := uint64(0); n <= 7; n++ {
		args = append(args, ri.RegisterByID(X(n)))
	}
	firstFP := len(args)
	for n := uint64(0); n <= 7; n++ {
		args = append(args, ri.RegisterByID(D(n)))
	}

	rets := []*target.Register{
		ri.RegisterByID(X(0)),
		ri.RegisterByID(X(1)),
		ri.RegisterByID(D(0)),
		ri.RegisterByID(D(1)),
	}

	return &Target{
		regInfo: ri,
		abi: &target.ABI{
			ArgumentRegisters:   args,
			ReturnRegisters:     rets,
			FirstFPArg:          firstFP,
			FirstFPRet:          2,
			StackAlignment:      16,
			MaxStructSizeInRegs: 128,
		},
	}
}

func (t *Target) Name() string                 { return "aarch64" }
func (t *Target) PointerSize() uint            { return 64 }
func (t *Target) IntSize() uint                { return 32 }
func (t *Target) LongSize() uint               { return 64 }
func (t *Target) RegInfo() target.RegisterInfo { return t.regInfo }
func (t *Target) ABI() *target.ABI             { return t.abi }
func (t *Target) MinRegisterWidth() uint       { return 32 }
func (t *Target) IsMemcpySupported() bool      { return true }

// ImmRuleFor tells the legalizer the immediate field widths of the
// generic opcodes that have an rri form here.
func (t *Target) ImmRuleFor(op machine.Opcode) (target.ImmRule, bool) {
	switch op {
	case machine.ADD, machine.SUB, machine.AND, machine.OR, machine.XOR,
		machine.LSL, machine.LSR, machine.MUL:
		return target.ImmRule{Bits: 12, Signed: false}, true
	case machine.CMP:
		return target.ImmRule{Bits: 12, Signed: true}, true
	case machine.MOV:
		// LOAD_IMM is absent on purpose: its immediate is folded by
		// constant materialization at selection
		return target.ImmRule{Bits: 16, Signed: true}, true
	case machine.DIV, machine.DIVU, machine.MOD, machine.MODU:
		// no immediate divide
		return target.ImmRule{}, false
	}
	return target.ImmRule{}, false
}

func isIntN(v int64, bits uint) bool {
	return v >= -(int64(1)<<(bits-1)) && v < int64(1)<<(bits-1)
}

// MaterializeConstant emits the mov/movk sequence loading c. With
// reuse set, mi itself becomes the first instruction of the sequence
// and keeps its destination; otherwise the sequence goes in front of
// mi with a fresh destination written to out.
func (t *Target) MaterializeConstant(mi *machine.Instruction, c int64, out *machine.Operand, reuse bool) *machine.Instruction {
	bb := mi.Parent
	mf := bb.Parent

	var dest machine.Operand
	if reuse {
		dest = *mi.Operand(0)
	} else {
		width := mi.Operand(0).Size()
		if width == 0 {
			width = 32
		}
		reg := mf.NextAvailableVReg()
		*out = machine.NewVirtualRegister(reg, width)
		out.RegClass = t.regInfo.RegisterClass(width, false)
		dest = *out
	}

	var seq []*machine.Instruction

	low := c & 0xffff
	if isIntN(c, 16) {
		low = c
	}
	if reuse {
		mi.SetOpcode(MOV_rc)
		mi.Operands = mi.Operands[:1]
		mi.AddImmediate(low, 16)
	} else {
		mov := machine.NewInstruction(MOV_rc, bb)
		mov.AddOperand(dest)
		mov.AddImmediate(low, 16)
		seq = append(seq, mov)
	}

	if !isIntN(c, 16) {
		for _, shift := range []uint{16, 32, 48} {
			if shift >= 32 && isIntN(c, 32) {
				break
			}
			piece := (c >> shift) & 0xffff
			if piece == 0 {
				continue
			}
			movk := machine.NewInstruction(MOVK_ri, bb)
			movk.AddOperand(dest)
			movk.AddImmediate(piece, 16)
			movk.AddImmediate(int64(shift), 8)
			seq = append(seq, movk)
		}
	}

	last := mi
	if reuse {
		for _, s := range seq {
			bb.InsertAfter(s, last)
			last = s
		}
	} else {
		for _, s := range seq {
			bb.InsertBefore(s, mi)
			last = s
		}
	}
	return last
}
