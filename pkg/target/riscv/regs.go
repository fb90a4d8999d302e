// Package riscv implements a RISC-V 32 bit target (RV32IMF). It has
// no condition flags and no sub registers: compares produce values and
// conditional branches test a register against zero.
package riscv

import (
	"fmt"

	"github.com/minicc-lang/minicc/pkg/target"
)

// Register ids: x0..x31 are 1..32, f0..f31 are 33..64.
const (
	xRegBase uint64 = 1
	fRegBase uint64 = 33
)

// XReg returns the id of integer register xN.
func XReg(n uint64) uint64 { return xRegBase + n }

// FReg returns the id of float register fN.
func FReg(n uint64) uint64 { return fRegBase + n }

// Register classes.
const (
	ClassGPR uint = iota
	ClassFPR
)

var xNames = []string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

func isCalleeSavedX(n uint64) bool {
	return n == 2 || n == 8 || n == 9 || (n >= 18 && n <= 27)
}

func isCalleeSavedF(n uint64) bool {
	return n == 8 || n == 9 || (n >= 18 && n <= 27)
}

type registerInfo struct {
	byID map[uint64]*target.Register
}

func newRegisterInfo() *registerInfo {
	ri := &registerInfo{byID: make(map[uint64]*target.Register)}
	for n := uint64(0); n <= 31; n++ {
		ri.byID[XReg(n)] = &target.Register{
			ID: XReg(n), Name: xNames[n], BitWidth: 32,
			CalleeSaved: isCalleeSavedX(n),
		}
		ri.byID[FReg(n)] = &target.Register{
			ID: FReg(n), Name: fmt.Sprintf("f%d", n), BitWidth: 32, IsFP: true,
			CalleeSaved: isCalleeSavedF(n),
		}
	}
	return ri
}

func (ri *registerInfo) RegisterByID(id uint64) *target.Register {
	r, ok := ri.byID[id]
	if !ok {
		panic(fmt.Sprintf("riscv: unknown register id %d", id))
	}
	return r
}

func (ri *registerInfo) RegisterClass(bits uint, isFP bool) uint {
	if isFP {
		return ClassFPR
	}
	return ClassGPR
}

// t0..t4 first, then the callee saved s registers. s0 is the frame
// pointer; t5/t6 and f30/f31 are spill scratch and stay out of the
// pool.
var gprAllocOrder = []uint64{5, 6, 7, 28, 29, 9, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27}

var fprAllocOrder = []uint64{0, 1, 2, 3, 4, 5, 6, 7, 28, 29, 8, 9, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27}

func (ri *registerInfo) ClassRegisters(class uint) []uint64 {
	if class == ClassFPR {
		out := make([]uint64, len(fprAllocOrder))
		for i, n := range fprAllocOrder {
			out[i] = FReg(n)
		}
		return out
	}
	out := make([]uint64, len(gprAllocOrder))
	for i, n := range gprAllocOrder {
		out[i] = XReg(n)
	}
	return out
}

// ScratchRegisters: t5/t6 and f30/f31 are reserved for spill reloads.
func (ri *registerInfo) ScratchRegisters(class uint) []uint64 {
	if class == ClassFPR {
		return []uint64{FReg(30), FReg(31)}
	}
	return []uint64{XReg(30), XReg(31)}
}

// No sub registers on this target.
func (ri *registerInfo) SubRegisterForWidth(id uint64, bits uint) uint64 { return id }
func (ri *registerInfo) FullRegisterFor(id uint64) uint64               { return id }

func (ri *registerInfo) FramePointer() uint64 { return XReg(8) } // s0
func (ri *registerInfo) StackPointer() uint64 { return XReg(2) }
func (ri *registerInfo) LinkRegister() uint64 { return XReg(1) } // ra

// The implicit struct return pointer goes in a0.
func (ri *registerInfo) StructPtrRegister() uint64 { return XReg(10) }

// Zero is the hardwired zero register.
func Zero() uint64 { return XReg(0) }
