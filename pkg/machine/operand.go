// Package machine defines the low level machine IR used throughout the
// backend: operands, instructions, basic blocks, functions with their
// stack frames, and whole modules with global data. The IR is target
// generic until instruction selection rewrites opcodes to target ones.
package machine

import (
	"fmt"

	"github.com/minicc-lang/minicc/pkg/llt"
)

// OperandKind tags a MachineOperand.
type OperandKind uint8

const (
	OpNone OperandKind = iota
	OpRegister
	OpVirtualRegister
	OpIntImmediate
	OpFPImmediate
	OpMemory
	OpStackAccess
	OpParameter
	OpLabel
	OpFunctionName
	OpGlobalSymbol
)

// NoRegClass marks an operand whose register class has not been
// assigned yet.
const NoRegClass = ^uint(0)

// Operand is a tagged union. Reg doubles as the physical or virtual
// register id, the memory base register, the stack slot id and the
// parameter ordinal depending on the kind.
type Operand struct {
	Kind     OperandKind
	Reg      uint64
	IntVal   int64
	FloatVal float64
	Offset   int64
	Symbol   string
	RegClass uint
	Type     llt.Type
}

func (o *Operand) IsRegister() bool     { return o.Kind == OpRegister }
func (o *Operand) IsVirtualReg() bool   { return o.Kind == OpVirtualRegister }
func (o *Operand) IsAnyReg() bool       { return o.Kind == OpRegister || o.Kind == OpVirtualRegister }
func (o *Operand) IsImmediate() bool    { return o.Kind == OpIntImmediate || o.Kind == OpFPImmediate }
func (o *Operand) IsIntImmediate() bool { return o.Kind == OpIntImmediate }
func (o *Operand) IsFPImmediate() bool  { return o.Kind == OpFPImmediate }
func (o *Operand) IsMemory() bool       { return o.Kind == OpMemory }
func (o *Operand) IsStackAccess() bool  { return o.Kind == OpStackAccess }
func (o *Operand) IsParameter() bool    { return o.Kind == OpParameter }
func (o *Operand) IsLabel() bool        { return o.Kind == OpLabel }
func (o *Operand) IsFunctionName() bool { return o.Kind == OpFunctionName }
func (o *Operand) IsGlobalSymbol() bool { return o.Kind == OpGlobalSymbol }

// Size returns the operand's bit width.
func (o *Operand) Size() uint { return o.Type.BitWidth }

// SetSize overwrites the operand's bit width, keeping the kind tag.
func (o *Operand) SetSize(bits uint) { o.Type.BitWidth = bits }

// Slot returns the stack slot id of a stack access operand.
func (o *Operand) Slot() uint64 { return o.Reg }

// Equal reports structural equality within the same kind.
func (o *Operand) Equal(rhs *Operand) bool {
	if o.Kind != rhs.Kind {
		return false
	}
	switch o.Kind {
	case OpRegister, OpVirtualRegister:
		return o.Reg == rhs.Reg && o.RegClass == rhs.RegClass
	case OpIntImmediate:
		return o.IntVal == rhs.IntVal
	case OpFPImmediate:
		return o.FloatVal == rhs.FloatVal
	case OpMemory, OpStackAccess:
		return o.Reg == rhs.Reg && o.Offset == rhs.Offset
	case OpParameter:
		return o.Reg == rhs.Reg
	case OpLabel, OpFunctionName, OpGlobalSymbol:
		return o.Symbol == rhs.Symbol
	default:
		return false
	}
}

// NewRegister returns a physical register operand.
func NewRegister(reg uint64, bits uint) Operand {
	return Operand{Kind: OpRegister, Reg: reg, RegClass: NoRegClass, Type: llt.MakeScalar(bits)}
}

// NewVirtualRegister returns a virtual register operand.
func NewVirtualRegister(reg uint64, bits uint) Operand {
	return Operand{Kind: OpVirtualRegister, Reg: reg, RegClass: NoRegClass, Type: llt.MakeScalar(bits)}
}

// NewImmediate returns a signed integer immediate.
func NewImmediate(val int64, bits uint) Operand {
	return Operand{Kind: OpIntImmediate, IntVal: val, RegClass: NoRegClass, Type: llt.MakeScalar(bits)}
}

// NewFPImmediate returns a floating point immediate.
func NewFPImmediate(val float64, bits uint) Operand {
	return Operand{Kind: OpFPImmediate, FloatVal: val, RegClass: NoRegClass, Type: llt.MakeScalar(bits)}
}

// NewMemory returns a memory address operand based at the given
// register.
func NewMemory(base uint64, offset int64, ptrBits uint) Operand {
	return Operand{Kind: OpMemory, Reg: base, Offset: offset, RegClass: NoRegClass, Type: llt.MakePointer(ptrBits)}
}

// NewStackAccess returns a stack slot access operand.
func NewStackAccess(slot uint64, offset int64) Operand {
	return Operand{Kind: OpStackAccess, Reg: slot, Offset: offset, RegClass: NoRegClass}
}

// NewParameter returns a parameter slot operand.
func NewParameter(ordinal uint64) Operand {
	return Operand{Kind: OpParameter, Reg: ordinal, RegClass: NoRegClass}
}

// NewLabel returns a basic block label operand.
func NewLabel(name string) Operand {
	return Operand{Kind: OpLabel, Symbol: name, RegClass: NoRegClass}
}

// NewFunctionName returns a callee name operand.
func NewFunctionName(name string) Operand {
	return Operand{Kind: OpFunctionName, Symbol: name, RegClass: NoRegClass}
}

// NewGlobalSymbol returns a global symbol operand.
func NewGlobalSymbol(name string) Operand {
	return Operand{Kind: OpGlobalSymbol, Symbol: name, RegClass: NoRegClass}
}

// String renders the operand for dumps.
func (o *Operand) String() string {
	switch o.Kind {
	case OpRegister:
		return fmt.Sprintf("$%d(%s)", o.Reg, o.Type)
	case OpVirtualRegister:
		return fmt.Sprintf("%%vreg%d(%s)", o.Reg, o.Type)
	case OpIntImmediate:
		return fmt.Sprintf("%d", o.IntVal)
	case OpFPImmediate:
		return fmt.Sprintf("%g", o.FloatVal)
	case OpMemory:
		if o.Offset != 0 {
			return fmt.Sprintf("[$%d+%d]", o.Reg, o.Offset)
		}
		return fmt.Sprintf("[$%d]", o.Reg)
	case OpStackAccess:
		if o.Offset != 0 {
			return fmt.Sprintf("stack%d+%d", o.Reg, o.Offset)
		}
		return fmt.Sprintf("stack%d", o.Reg)
	case OpParameter:
		return fmt.Sprintf("param%d", o.Reg)
	case OpLabel:
		return "<" + o.Symbol + ">"
	case OpFunctionName:
		return "@" + o.Symbol
	case OpGlobalSymbol:
		return "@" + o.Symbol
	default:
		return "none"
	}
}
