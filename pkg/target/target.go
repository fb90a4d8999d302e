// Package target describes the machine the backend compiles for:
// registers with aliasing and calling convention roles, instruction
// definitions with operand class templates, ABI facts, and the hooks
// instruction selection, legalization, prologue insertion and emission
// call into. Concrete targets live in the subpackages and register
// themselves by name.
package target

import (
	"fmt"

	"github.com/minicc-lang/minicc/pkg/machine"
)

// Register describes one physical register.
type Register struct {
	ID          uint64
	Name        string
	BitWidth    uint
	SubRegs     []uint64
	CalleeSaved bool
	IsFP        bool
}

// RegisterInfo exposes the register file of a target.
type RegisterInfo interface {
	// RegisterByID resolves a physical register id.
	RegisterByID(id uint64) *Register
	// RegisterClass picks a register class for a width/kind pair.
	RegisterClass(bits uint, isFP bool) uint
	// ClassRegisters lists the allocatable registers of a class in
	// allocation preference order.
	ClassRegisters(class uint) []uint64
	// SubRegisterForWidth narrows a register to the sub register of
	// the wanted width, or returns the register itself.
	SubRegisterForWidth(id uint64, bits uint) uint64
	// ScratchRegisters lists the registers of a class reserved for
	// spill reloads; they never enter the allocation pool.
	ScratchRegisters(class uint) []uint64
	// FullRegisterFor widens a (sub) register to its widest alias.
	FullRegisterFor(id uint64) uint64
	// FramePointer, StackPointer and LinkRegister name the special
	// registers used by prologue/epilogue insertion.
	FramePointer() uint64
	StackPointer() uint64
	LinkRegister() uint64
	// StructPtrRegister is the implicit struct return pointer.
	StructPtrRegister() uint64
}

// ABI holds the calling convention facts of a target. Argument and
// return register lists hold the GPRs first; FirstFPArg/FirstFPRet
// index the first FP register inside them.
type ABI struct {
	ArgumentRegisters []*Register
	ReturnRegisters   []*Register
	FirstFPArg        int
	FirstFPRet        int
	StackAlignment    uint
	// MaxStructSizeInRegs is the largest struct, in bits, passed by
	// value in registers.
	MaxStructSizeInRegs uint
}

// OperandClass constrains one operand slot of an instruction
// definition.
type OperandClass uint8

const (
	GPR OperandClass = iota
	GPR32
	GPR64
	FPR
	FPR32
	FPR64
	UIMM4
	SIMM12
	UIMM12
	UIMM16
	SIMM13_LSB0
	SIMM21_LSB0
	MEM
	SYM
	LBL
)

// Width returns the bit width an operand of this class must have, or 0
// when the class does not constrain width.
func (c OperandClass) Width() uint {
	switch c {
	case GPR32, FPR32:
		return 32
	case GPR64, FPR64:
		return 64
	}
	return 0
}

// ImmediateFits reports whether the immediate value is encodable in
// this operand class.
func ImmediateFits(c OperandClass, v int64) bool {
	switch c {
	case UIMM4:
		return v >= 0 && v < 1<<4
	case UIMM12:
		return v >= 0 && v < 1<<12
	case SIMM12:
		return v >= -(1<<11) && v < 1<<11
	case UIMM16:
		return v >= 0 && v < 1<<16
	case SIMM13_LSB0:
		return v >= -(1<<12) && v < 1<<12 && v&1 == 0
	case SIMM21_LSB0:
		return v >= -(1<<20) && v < 1<<20 && v&1 == 0
	}
	return false
}

// InstructionDef is one target instruction: printable mnemonic plus
// the operand class template. Trailer, when set, is appended verbatim
// as a final operand (condition codes on cset and the like).
type InstructionDef struct {
	Opcode   machine.Opcode
	Mnemonic string
	Operands []OperandClass
	Trailer  string
}

// ImmRule tells the legalizer how wide an immediate a generic opcode
// can carry on this target before it must be materialized.
type ImmRule struct {
	Bits   uint
	Signed bool
}

// Fits reports whether v is encodable under the rule.
func (r ImmRule) Fits(v int64) bool {
	if r.Signed {
		return v >= -(1<<(r.Bits-1)) && v < 1<<(r.Bits-1)
	}
	return v >= 0 && v < 1<<r.Bits
}

// Machine is the full target description plus the target dependent
// pass hooks.
type Machine interface {
	Name() string
	PointerSize() uint
	IntSize() uint
	LongSize() uint
	RegInfo() RegisterInfo
	ABI() *ABI

	// InstrDef resolves a target opcode. Panics on unknown opcodes:
	// selection must only emit defined opcodes.
	InstrDef(op machine.Opcode) *InstructionDef
	// Mnemonic is InstrDef(op).Mnemonic.
	Mnemonic(op machine.Opcode) string

	// MinRegisterWidth is the narrowest width a register operand may
	// have after legalization.
	MinRegisterWidth() uint
	// ImmRuleFor returns the immediate field rule of a generic
	// opcode, when the target has an immediate form at all.
	ImmRuleFor(op machine.Opcode) (ImmRule, bool)
	// IsMemcpySupported reports whether a memcpy libcall may be
	// emitted.
	IsMemcpySupported() bool

	// MaterializeConstant loads an arbitrary constant. When reuse is
	// true the sequence replaces mi and reuses its destination; the
	// returned instruction is the last inserted one. When reuse is
	// false the sequence is inserted before mi into a fresh vreg
	// written to out, and mi itself is untouched.
	MaterializeConstant(mi *machine.Instruction, c int64, out *machine.Operand, reuse bool) *machine.Instruction

	// SelectInstruction rewrites one generic instruction to target
	// opcodes. Returns false when the opcode is unsupported on this
	// target.
	SelectInstruction(mi *machine.Instruction) bool

	// FrameLayout describes where the save area lives and which
	// register local slots are addressed from, so prologue/epilogue
	// insertion can lay out frames without target switches.
	FrameLayout() FrameLayoutInfo

	// GeneratePrologue and GenerateEpilogue return the target
	// sequences for frame setup/teardown after the frame has been
	// laid out.
	GeneratePrologue(f *machine.Function) []*machine.Instruction
	GenerateEpilogue(f *machine.Function) []*machine.Instruction

	// PostRAFixups runs target specific late rewrites, e.g. the
	// W/X sub register renaming on AArch64.
	PostRAFixups(f *machine.Function)

	// FormatOperand spells one operand in the target's assembly
	// syntax. Targets override it for relocation operators, shifted
	// immediates and addressing mode quirks, falling back to
	// FormatOperandDefault.
	FormatOperand(mi *machine.Instruction, idx int) string
}

// FrameLayoutInfo describes a target's activation record shape. The
// save area (frame pointer / return address pair plus used callee
// saves) either sits at the frame base (AArch64, below the locals) or
// at the frame top (RISC-V). Local slots are addressed from BaseReg,
// which points at the lowest frame address after the prologue ran.
type FrameLayoutInfo struct {
	SaveAreaBytes func(calleeCount int) int64
	SaveAreaAtTop bool
	BaseReg       uint64
}

// Style captures the plain spelling rules of a target's assembly
// syntax for FormatOperandDefault.
type Style struct {
	// ImmPrefix goes in front of immediate literals ("#" on
	// AArch64, empty on RISC-V).
	ImmPrefix string
	// Mem renders a base+offset memory reference.
	Mem func(base string, off int64) string
}

// FormatOperandDefault renders an operand with no target quirks.
func FormatOperandDefault(ri RegisterInfo, mi *machine.Instruction, idx int, style Style) string {
	op := mi.Operand(idx)
	switch op.Kind {
	case machine.OpRegister:
		return ri.RegisterByID(op.Reg).Name
	case machine.OpIntImmediate:
		return fmt.Sprintf("%s%d", style.ImmPrefix, op.IntVal)
	case machine.OpFPImmediate:
		return fmt.Sprintf("%s%g", style.ImmPrefix, op.FloatVal)
	case machine.OpMemory:
		return style.Mem(ri.RegisterByID(op.Reg).Name, op.Offset)
	case machine.OpLabel, machine.OpFunctionName, machine.OpGlobalSymbol:
		return op.Symbol
	case machine.OpVirtualRegister:
		panic("target: virtual register survived to emission")
	case machine.OpStackAccess:
		panic("target: stack access survived to emission")
	default:
		panic(fmt.Sprintf("target: cannot format operand kind %d", op.Kind))
	}
}
