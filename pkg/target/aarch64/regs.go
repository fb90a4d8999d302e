// Package aarch64 implements the AArch64 target: register file, ABI,
// instruction definitions, instruction selection, constant
// materialization, frame code and the late sub register renaming pass.
package aarch64

import (
	"fmt"

	"github.com/minicc-lang/minicc/pkg/target"
)

// Register ids. W registers alias the low half of their X register;
// S registers alias the low half of their D register.
const (
	wBase uint64 = 1   // W0..W30  -> 1..31
	xBase uint64 = 33  // X0..X30  -> 33..63
	SP    uint64 = 64  // stack pointer, 64 bit
	sBase uint64 = 65  // S0..S31  -> 65..96
	dBase uint64 = 97  // D0..D31  -> 97..128
)

// W returns the id of the n-th 32 bit GPR.
func W(n uint64) uint64 { return wBase + n }

// X returns the id of the n-th 64 bit GPR.
func X(n uint64) uint64 { return xBase + n }

// S returns the id of the n-th 32 bit FPR.
func S(n uint64) uint64 { return sBase + n }

// D returns the id of the n-th 64 bit FPR.
func D(n uint64) uint64 { return dBase + n }

// Register classes.
const (
	ClassGPR32 uint = iota
	ClassGPR64
	ClassFPR32
	ClassFPR64
)

type registerInfo struct {
	byID map[uint64]*target.Register
}

func isCalleeSavedGPR(n uint64) bool { return n >= 19 && n <= 28 }
func isCalleeSavedFPR(n uint64) bool { return n >= 8 && n <= 15 }

func newRegisterInfo() *registerInfo {
	ri := &registerInfo{byID: make(map[uint64]*target.Register)}
	add := func(r *target.Register) { ri.byID[r.ID] = r }

	for n := uint64(0); n <= 30; n++ {
		add(&target.Register{
			ID: W(n), Name: fmt.Sprintf("w%d", n), BitWidth: 32,
			CalleeSaved: isCalleeSavedGPR(n),
		})
		add(&target.Register{
			ID: X(n), Name: fmt.Sprintf("x%d", n), BitWidth: 64,
			SubRegs:     []uint64{W(n)},
			CalleeSaved: isCalleeSavedGPR(n),
		})
	}
	add(&target.Register{ID: SP, Name: "sp", BitWidth: 64, CalleeSaved: true})
	for n := uint64(0); n <= 31; n++ {
		add(&target.Register{
			ID: S(n), Name: fmt.Sprintf("s%d", n), BitWidth: 32, IsFP: true,
			CalleeSaved: isCalleeSavedFPR(n),
		})
		add(&target.Register{
			ID: D(n), Name: fmt.Sprintf("d%d", n), BitWidth: 64, IsFP: true,
			SubRegs:     []uint64{S(n)},
			CalleeSaved: isCalleeSavedFPR(n),
		})
	}
	return ri
}

func (ri *registerInfo) RegisterByID(id uint64) *target.Register {
	r, ok := ri.byID[id]
	if !ok {
		panic(fmt.Sprintf("aarch64: unknown register id %d", id))
	}
	return r
}

func (ri *registerInfo) RegisterClass(bits uint, isFP bool) uint {
	switch {
	case isFP && bits <= 32:
		return ClassFPR32
	case isFP:
		return ClassFPR64
	case bits <= 32:
		return ClassGPR32
	default:
		return ClassGPR64
	}
}

// gprAllocOrder is the allocation preference by register number:
// temporaries first, then the callee saved block. X0..X8 (arguments,
// struct pointer) and X16..X18 (spill scratch, platform register) are
// not in the free list; argument registers are taken through
// allocation hints.
var gprAllocOrder = []uint64{9, 10, 11, 12, 13, 14, 15, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28}

var fprAllocOrder = []uint64{16, 17, 18, 19, 20, 21, 22, 23, 8, 9, 10, 11, 12, 13, 14, 15}

func (ri *registerInfo) ClassRegisters(class uint) []uint64 {
	base := map[uint]func(uint64) uint64{
		ClassGPR32: W, ClassGPR64: X, ClassFPR32: S, ClassFPR64: D,
	}[class]
	order := gprAllocOrder
	if class == ClassFPR32 || class == ClassFPR64 {
		order = fprAllocOrder
	}
	out := make([]uint64, len(order))
	for i, n := range order {
		out[i] = base(n)
	}
	return out
}

// X16/X17 (the intra procedure call registers) and the top two FPRs
// are kept out of the pool and serve as spill scratch.
func (ri *registerInfo) ScratchRegisters(class uint) []uint64 {
	switch class {
	case ClassGPR32:
		return []uint64{W(16), W(17)}
	case ClassGPR64:
		return []uint64{X(16), X(17)}
	case ClassFPR32:
		return []uint64{S(30), S(31)}
	default:
		return []uint64{D(30), D(31)}
	}
}

func (ri *registerInfo) SubRegisterForWidth(id uint64, bits uint) uint64 {
	r := ri.RegisterByID(id)
	if r.BitWidth <= bits {
		return id
	}
	for _, sub := range r.SubRegs {
		if ri.RegisterByID(sub).BitWidth == bits {
			return sub
		}
	}
	return id
}

func (ri *registerInfo) FullRegisterFor(id uint64) uint64 {
	switch {
	case id >= wBase && id < wBase+31:
		return X(id - wBase)
	case id >= sBase && id < sBase+32:
		return D(id - sBase)
	}
	return id
}

func (ri *registerInfo) FramePointer() uint64 { return X(29) }
func (ri *registerInfo) StackPointer() uint64 { return SP }
func (ri *registerInfo) LinkRegister() uint64 { return X(30) }

// X8 is the indirect result location register.
func (ri *registerInfo) StructPtrRegister() uint64 { return X(8) }
