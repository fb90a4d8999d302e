// Package llirgen lowers MIR into the backend's machine IR: operand
// materialization, stack allocation handling, struct by value call and
// return conventions, pointer arithmetic expansion and global data
// emission. Control flow shape carries over block for block.
package llirgen

import (
	"fmt"

	"github.com/minicc-lang/minicc/pkg/llt"
	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/mir"
	"github.com/minicc-lang/minicc/pkg/target"
)

// Translator lowers one MIR module. The side tables are per function
// and reset between functions.
type Translator struct {
	tm  target.Machine
	out *machine.Module

	// structToReg maps a struct parameter name to the vregs holding
	// its chunks.
	structToReg map[string][]uint64
	// structByID maps a loaded struct value id to the vregs holding
	// its chunks.
	structByID map[uint64][]uint64
	// paramByID maps a wide parameter id to the vregs holding its
	// halves.
	paramByID map[uint64][]uint64
	// vregMap maps MIR value ids to machine vregs.
	vregMap map[uint64]uint64
	// spilledRetSlots maps a call result id to its spill slot.
	spilledRetSlots map[uint64]uint64
}

// NewTranslator returns a lowering context for the given target.
func NewTranslator(tm target.Machine) *Translator {
	return &Translator{tm: tm, out: &machine.Module{}}
}

func (t *Translator) reset() {
	t.structToReg = make(map[string][]uint64)
	t.structByID = make(map[uint64][]uint64)
	t.paramByID = make(map[uint64][]uint64)
	t.vregMap = make(map[uint64]uint64)
	t.spilledRetSlots = make(map[uint64]uint64)
}

// Translate lowers the whole module.
func Translate(m *mir.Module, tm target.Machine) *machine.Module {
	t := NewTranslator(tm)
	for _, fn := range m.Functions {
		t.reset()
		if fn.DeclarationOnly {
			continue
		}
		t.translateFunction(fn)
	}
	for _, g := range m.Globals {
		t.out.AddGlobal(t.lowerGlobal(g))
	}
	return t.out
}

func (t *Translator) translateFunction(fn *mir.Function) {
	mf := machine.NewFunction(fn.Name)
	t.out.AddFunction(mf)
	t.handleFunctionParams(fn, mf)

	// create all blocks first so branches can refer to them by name
	for _, bb := range fn.Blocks {
		mf.AddBlock(bb.Name)
	}

	for bi, bb := range fn.Blocks {
		mbb := mf.Blocks[bi]
		for _, in := range bb.Instructions {
			if in.Kind == mir.IStackAlloc {
				t.handleStackAlloc(in, mf)
				continue
			}
			t.convertInstruction(in, mbb, mf)

			// everything after a return in a block is dead code
			if last := mbb.Last(); last != nil && last.IsReturn() {
				break
			}
		}
	}
}

// handleStackAlloc inserts a frame slot for a MIR stack allocation.
// Pointers get pointer alignment, structs their largest member, other
// types their own size. The slot takes a fresh id in the shared
// vreg/slot id space and the MIR id maps onto it.
func (t *Translator) handleStackAlloc(in *mir.Instruction, mf *machine.Function) {
	referred := in.Result.Type.Dereference()
	ptrBytes := t.tm.PointerSize() / 8

	var size, align uint
	switch {
	case referred.IsPointer():
		size, align = ptrBytes, ptrBytes
	case referred.IsStruct():
		size, align = referred.ByteSize(), referred.MaxAlignment()
	default:
		size, align = referred.ByteSize(), referred.BaseByteSize()
	}
	if align == 0 {
		align = 1
	}
	slot := mf.NextAvailableVReg()
	t.vregMap[in.Result.ID] = slot
	mf.InsertStackSlot(slot, size, align)
}

// handleFunctionParams fills the parameter descriptors, exploding
// by value structs and wide scalars into register sized pieces.
func (t *Translator) handleFunctionParams(fn *mir.Function, mf *machine.Function) {
	ptrSize := t.tm.PointerSize()
	for _, p := range fn.Params {
		switch {
		case p.Type.IsStruct() && !p.Type.IsPointer():
			maxBits := t.tm.ABI().MaxStructSizeInRegs
			for i := uint(0); i < maxBits/ptrSize; i++ {
				vreg := mf.NextAvailableVReg()
				t.structToReg[p.Name] = append(t.structToReg[p.Name], vreg)
				mf.InsertParameter(vreg, llt.MakeScalar(ptrSize), false, false)
			}
		case p.Type.IsPointer():
			vreg := mf.NextAvailableVReg()
			t.vregMap[p.ID] = vreg
			mf.InsertParameter(vreg, llt.MakePointer(ptrSize), p.IsImplicitStructPtr, false)
		case p.BitWidth() <= ptrSize:
			vreg := mf.NextAvailableVReg()
			t.vregMap[p.ID] = vreg
			mf.InsertParameter(vreg, llt.MakeScalar(p.BitWidth()), p.IsImplicitStructPtr, p.Type.IsFP())
		default:
			// wide scalars travel in multiple registers
			for i := uint(0); i < p.BitWidth()/ptrSize; i++ {
				vreg := mf.NextAvailableVReg()
				t.paramByID[p.ID] = append(t.paramByID[p.ID], vreg)
				mf.InsertParameter(vreg, llt.MakeScalar(ptrSize), p.IsImplicitStructPtr, p.Type.IsFP())
			}
		}
	}
}

// idFromValue returns the machine id of a value, following the vreg
// mapping when one exists.
func (t *Translator) idFromValue(val *mir.Value) uint64 {
	if mapped, ok := t.vregMap[val.ID]; ok {
		return mapped
	}
	return val.ID
}

// operandFromValue turns a MIR value into a machine operand,
// allocating vregs and emitting loads or address materialization as
// needed.
func (t *Translator) operandFromValue(val *mir.Value, bb *machine.BasicBlock, isDef bool) machine.Operand {
	mf := bb.Parent

	switch {
	case val.IsRegister():
		bits := val.BitWidth()
		if val.Type.IsPointer() && !val.IsStackAlloc() {
			bits = t.tm.PointerSize()
		}
		var vreg uint64

		mapped, hasMapping := t.vregMap[val.ID]
		_, isSpilledRet := t.spilledRetSlots[val.ID]

		switch {
		case hasMapping:
			if !isDef && mf.IsStackSlot(mapped) && !isSpilledRet {
				vreg = mf.NextAvailableVReg()
				load := machine.NewInstruction(machine.LOAD, bb)
				load.AddVirtualRegister(vreg, bits)
				load.AddStackAccess(mapped, 0)
				bb.Append(load)
			} else {
				vreg = mapped
			}
		case isSpilledRet:
			vreg = mf.NextAvailableVReg()
			load := machine.NewInstruction(machine.LOAD, bb)
			load.AddVirtualRegister(vreg, bits)
			load.AddStackAccess(t.spilledRetSlots[val.ID], 0)
			bb.Append(load)
		default:
			vreg = mf.NextAvailableVReg()
			t.vregMap[val.ID] = vreg
		}

		op := machine.NewVirtualRegister(vreg, bits)
		if val.Type.IsPointer() {
			op.Type = llt.MakePointer(t.tm.PointerSize())
		}
		return op

	case val.IsParameter():
		op := machine.NewParameter(t.idFromValue(val))
		if val.Type.IsPointer() {
			op.Type = llt.MakePointer(t.tm.PointerSize())
		} else {
			op.Type = llt.MakeScalar(val.BitWidth())
		}
		return op

	case val.IsFPConstant():
		return machine.NewFPImmediate(val.FloatVal, val.BitWidth())

	case val.IsIntConstant():
		return machine.NewImmediate(val.IntVal, val.BitWidth())

	case val.IsGlobalVar():
		vreg := mf.NextAvailableVReg()
		ga := machine.NewInstruction(machine.GLOBAL_ADDRESS, bb)
		ga.AddVirtualRegister(vreg, t.tm.PointerSize())
		ga.AddGlobalSymbol(val.Name)
		bb.Append(ga)

		op := machine.NewVirtualRegister(vreg, t.tm.PointerSize())
		op.Type = llt.MakePointer(t.tm.PointerSize())
		return op

	default:
		panic(fmt.Sprintf("llirgen: unhandled value kind %d", val.Kind))
	}
}

// materializeAddress returns an operand holding the address of val,
// emitting STACK_ADDRESS or GLOBAL_ADDRESS for stack and global
// objects.
func (t *Translator) materializeAddress(val *mir.Value, bb *machine.BasicBlock) machine.Operand {
	mf := bb.Parent
	id := t.idFromValue(val)
	isGlobal := val.IsGlobalVar()
	isStack := mf.IsStackSlot(id)

	if !isGlobal && !isStack {
		return t.operandFromValue(val, bb, false)
	}

	op := machine.GLOBAL_ADDRESS
	if isStack {
		op = machine.STACK_ADDRESS
	}
	addr := machine.NewInstruction(op, bb)
	dest := machine.NewVirtualRegister(mf.NextAvailableVReg(), t.tm.PointerSize())
	dest.Type = llt.MakePointer(t.tm.PointerSize())
	addr.AddOperand(dest)
	if isGlobal {
		addr.AddGlobalSymbol(val.Name)
	} else {
		addr.AddStackAccess(id, 0)
	}
	bb.Append(addr)
	return dest
}
