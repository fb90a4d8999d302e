package machine

import (
	"sort"

	"github.com/minicc-lang/minicc/pkg/llt"
)

// StackSlot is one named region of the activation record. Offset is
// assigned by prologue/epilogue insertion; until then it is -1.
type StackSlot struct {
	ID        uint64
	Size      uint
	Alignment uint
	Offset    int64
}

// StackFrame maps slot ids to slots. Slots returns them ordered by id,
// which is the order prologue insertion lays the frame out in.
type StackFrame struct {
	slots   map[uint64]*StackSlot
	order   []uint64
	ObjSize int64 // total frame size once frozen
}

// NewStackFrame returns an empty frame.
func NewStackFrame() *StackFrame {
	return &StackFrame{slots: make(map[uint64]*StackSlot)}
}

// Insert records a stack slot. Slot ids are unique per function.
func (sf *StackFrame) Insert(id uint64, size, align uint) {
	if _, ok := sf.slots[id]; ok {
		panic("machine: duplicate stack slot id")
	}
	sf.slots[id] = &StackSlot{ID: id, Size: size, Alignment: align, Offset: -1}
	sf.order = append(sf.order, id)
}

// IsStackSlot reports whether the id names a slot in this frame.
func (sf *StackFrame) IsStackSlot(id uint64) bool {
	_, ok := sf.slots[id]
	return ok
}

// Slot returns the slot with the given id, or nil.
func (sf *StackFrame) Slot(id uint64) *StackSlot { return sf.slots[id] }

// SlotSize returns the byte size of the slot.
func (sf *StackFrame) SlotSize(id uint64) uint {
	s, ok := sf.slots[id]
	if !ok {
		panic("machine: unknown stack slot")
	}
	return s.Size
}

// Slots returns the slots ordered by id, the order the frame is laid
// out in.
func (sf *StackFrame) Slots() []*StackSlot {
	out := make([]*StackSlot, 0, len(sf.order))
	for _, id := range sf.order {
		out = append(out, sf.slots[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Parameter describes one incoming parameter of a machine function.
type Parameter struct {
	ID           uint64
	Type         llt.Type
	IsStructPtr  bool
	IsFP         bool
}

// Function is one machine function: blocks, frame, parameters and the
// virtual register counter. Stack slot ids and virtual register ids
// share one id space; inserting a slot bumps the counter past its id.
type Function struct {
	Name       string
	Parameters []Parameter
	Blocks     []*BasicBlock
	Frame      *StackFrame

	NextVReg uint64
	HasCall  bool

	// UsedCalleeSavedRegs collects every callee saved register the
	// allocator hands out, for prologue/epilogue insertion.
	UsedCalleeSavedRegs []uint64
}

// NewFunction creates an empty machine function.
func NewFunction(name string) *Function {
	return &Function{Name: name, Frame: NewStackFrame()}
}

// NextAvailableVReg hands out a fresh virtual register id.
func (f *Function) NextAvailableVReg() uint64 {
	r := f.NextVReg
	f.NextVReg++
	return r
}

// InsertStackSlot adds a slot to the frame and keeps the vreg counter
// above every slot id so later vregs cannot collide with slots.
func (f *Function) InsertStackSlot(id uint64, size, align uint) {
	if f.NextVReg <= id {
		f.NextVReg = id + 1
	}
	f.Frame.Insert(id, size, align)
}

// InsertParameter appends a parameter descriptor.
func (f *Function) InsertParameter(id uint64, ty llt.Type, structPtr, isFP bool) {
	f.Parameters = append(f.Parameters, Parameter{ID: id, Type: ty, IsStructPtr: structPtr, IsFP: isFP})
}

// IsStackSlot reports whether the id names a stack slot of this
// function.
func (f *Function) IsStackSlot(id uint64) bool { return f.Frame.IsStackSlot(id) }

// AddBlock appends a new named block.
func (f *Function) AddBlock(name string) *BasicBlock {
	bb := NewBasicBlock(name, f)
	f.Blocks = append(f.Blocks, bb)
	return bb
}

// BlockByName returns the block with the given name, or nil.
func (f *Function) BlockByName(name string) *BasicBlock {
	for _, bb := range f.Blocks {
		if bb.Name == name {
			return bb
		}
	}
	return nil
}

// MarkCalleeSaved records that a callee saved register was written.
func (f *Function) MarkCalleeSaved(reg uint64) {
	for _, r := range f.UsedCalleeSavedRegs {
		if r == reg {
			return
		}
	}
	f.UsedCalleeSavedRegs = append(f.UsedCalleeSavedRegs, reg)
}
