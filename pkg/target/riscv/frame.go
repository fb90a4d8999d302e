package riscv

import (
	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/target"
)

// FrameLayout: ra, s0 and the callee saves sit at the top of the
// frame; local slots are addressed from sp, which stays put for the
// whole function body.
func (t *Target) FrameLayout() target.FrameLayoutInfo {
	return target.FrameLayoutInfo{
		SaveAreaBytes: func(n int) int64 { return 8 + int64(n)*4 },
		SaveAreaAtTop: true,
		BaseReg:       XReg(2), // sp
	}
}

// saveOffset is the sp relative offset of the i-th saved callee
// register; ra and s0 occupy the top two words.
func saveOffset(frameSize int64, i int) int64 { return frameSize - 12 - int64(i)*4 }

// GeneratePrologue drops sp, saves ra, s0 and the used callee saves
// into the top of the frame and points s0 at the incoming sp.
func (t *Target) GeneratePrologue(f *machine.Function) []*machine.Instruction {
	size := f.Frame.ObjSize

	addi := machine.NewInstruction(ADDI, nil)
	addi.AddRegister(XReg(2), 32)
	addi.AddRegister(XReg(2), 32)
	addi.AddImmediate(-size, 12)

	swRA := machine.NewInstruction(SW, nil)
	swRA.AddMemory(XReg(2), size-4, 32)
	swRA.AddRegister(XReg(1), 32)

	swFP := machine.NewInstruction(SW, nil)
	swFP.AddMemory(XReg(2), size-8, 32)
	swFP.AddRegister(XReg(8), 32)

	out := []*machine.Instruction{addi, swRA, swFP}
	for i, reg := range f.UsedCalleeSavedRegs {
		sw := machine.NewInstruction(SW, nil)
		sw.AddMemory(XReg(2), saveOffset(size, i), 32)
		sw.AddRegister(reg, 32)
		out = append(out, sw)
	}

	setFP := machine.NewInstruction(ADDI, nil)
	setFP.AddRegister(XReg(8), 32)
	setFP.AddRegister(XReg(2), 32)
	setFP.AddImmediate(size, 12)
	out = append(out, setFP)
	return out
}

// GenerateEpilogue restores in reverse and pops the frame.
func (t *Target) GenerateEpilogue(f *machine.Function) []*machine.Instruction {
	size := f.Frame.ObjSize

	var out []*machine.Instruction
	for i, reg := range f.UsedCalleeSavedRegs {
		lw := machine.NewInstruction(LW, nil)
		lw.AddRegister(reg, 32)
		lw.AddMemory(XReg(2), saveOffset(size, i), 32)
		out = append(out, lw)
	}

	lwFP := machine.NewInstruction(LW, nil)
	lwFP.AddRegister(XReg(8), 32)
	lwFP.AddMemory(XReg(2), size-8, 32)

	lwRA := machine.NewInstruction(LW, nil)
	lwRA.AddRegister(XReg(1), 32)
	lwRA.AddMemory(XReg(2), size-4, 32)

	addi := machine.NewInstruction(ADDI, nil)
	addi.AddRegister(XReg(2), 32)
	addi.AddRegister(XReg(2), 32)
	addi.AddImmediate(size, 12)

	return append(out, lwFP, lwRA, addi)
}
