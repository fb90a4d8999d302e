package aarch64

import (
	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/target"
)

// FrameLayout: the fp/lr pair and callee saves sit at the frame base,
// locals above them, all addressed from the frame pointer.
func (t *Target) FrameLayout() target.FrameLayoutInfo {
	return target.FrameLayoutInfo{
		SaveAreaBytes: func(n int) int64 { return 16 + int64(n)*8 },
		SaveAreaAtTop: false,
		BaseReg:       X(29),
	}
}

// calleeSaveOffset is the frame offset of the i-th saved callee
// register. The first 16 bytes hold the frame pointer / link register
// pair.
func calleeSaveOffset(i int) int64 { return 16 + int64(i)*8 }

// GeneratePrologue emits the frame setup: one pre indexed stp saving
// fp and lr while dropping sp by the whole frame, the new frame
// pointer, then the callee saves. The link register is saved
// unconditionally since the pair store is as cheap as a single one.
func (t *Target) GeneratePrologue(f *machine.Function) []*machine.Instruction {
	size := f.Frame.ObjSize

	var out []*machine.Instruction
	if size <= 504 {
		stp := machine.NewInstruction(STP_pre, nil)
		stp.AddRegister(X(29), 64)
		stp.AddRegister(X(30), 64)
		stp.AddMemory(SP, -size, 64)
		out = append(out, stp)
	} else {
		// pre index writeback only reaches -512, drop sp separately
		sub := machine.NewInstruction(SUB_rri, nil)
		sub.AddRegister(SP, 64)
		sub.AddRegister(SP, 64)
		sub.AddImmediate(size, 64)

		stp := machine.NewInstruction(STP, nil)
		stp.AddRegister(X(29), 64)
		stp.AddRegister(X(30), 64)
		stp.AddMemory(SP, 0, 64)
		out = append(out, sub, stp)
	}

	mov := machine.NewInstruction(MOV_rr, nil)
	mov.AddRegister(X(29), 64)
	mov.AddRegister(SP, 64)
	out = append(out, mov)
	for i, reg := range f.UsedCalleeSavedRegs {
		str := machine.NewInstruction(STR, nil)
		str.AddMemory(SP, calleeSaveOffset(i), 64)
		str.AddRegister(t.regInfo.FullRegisterFor(reg), 64)
		out = append(out, str)
	}
	return out
}

// GenerateEpilogue restores callee saves and pops fp/lr with a post
// indexed ldp undoing the whole frame.
func (t *Target) GenerateEpilogue(f *machine.Function) []*machine.Instruction {
	size := f.Frame.ObjSize

	var out []*machine.Instruction
	for i, reg := range f.UsedCalleeSavedRegs {
		ldr := machine.NewInstruction(LDR, nil)
		ldr.AddRegister(t.regInfo.FullRegisterFor(reg), 64)
		ldr.AddMemory(SP, calleeSaveOffset(i), 64)
		out = append(out, ldr)
	}

	if size <= 504 {
		ldp := machine.NewInstruction(LDP_post, nil)
		ldp.AddRegister(X(29), 64)
		ldp.AddRegister(X(30), 64)
		ldp.AddMemory(SP, size, 64)
		return append(out, ldp)
	}

	ldp := machine.NewInstruction(LDP, nil)
	ldp.AddRegister(X(29), 64)
	ldp.AddRegister(X(30), 64)
	ldp.AddMemory(SP, 0, 64)

	add := machine.NewInstruction(ADD_rri, nil)
	add.AddRegister(SP, 64)
	add.AddRegister(SP, 64)
	add.AddImmediate(size, 64)
	return append(out, ldp, add)
}
