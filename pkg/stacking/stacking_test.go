package stacking

import (
	"testing"

	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/target/aarch64"
)

func frameModule(build func(f *machine.Function, bb *machine.BasicBlock)) *machine.Module {
	m := &machine.Module{}
	f := machine.NewFunction("test")
	m.AddFunction(f)
	bb := f.AddBlock("entry")
	build(f, bb)
	return m
}

func TestFrameAlignment(t *testing.T) {
	tm := aarch64.New()
	m := frameModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.InsertStackSlot(0, 4, 4)
		f.InsertStackSlot(1, 1, 1)
		ret := machine.NewInstruction(aarch64.RET, bb)
		ret.AddAttribute(machine.AttrIsReturn)
		bb.Append(ret)
	})

	Run(m, tm)

	size := m.Functions[0].Frame.ObjSize
	if size%16 != 0 {
		t.Errorf("frame size %d not aligned to 16", size)
	}
	if size == 0 {
		t.Error("frame with slots cannot be empty")
	}
}

func TestSlotOffsetsRespectAlignment(t *testing.T) {
	tm := aarch64.New()
	m := frameModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.InsertStackSlot(0, 1, 1)
		f.InsertStackSlot(1, 8, 8)
		ret := machine.NewInstruction(aarch64.RET, bb)
		ret.AddAttribute(machine.AttrIsReturn)
		bb.Append(ret)
	})

	Run(m, tm)

	slots := m.Functions[0].Frame.Slots()
	if slots[1].Offset%8 != 0 {
		t.Errorf("8 byte slot landed at misaligned offset %d", slots[1].Offset)
	}
	if slots[0].Offset == slots[1].Offset {
		t.Error("slots overlap")
	}
}

func TestNoStackAccessSurvives(t *testing.T) {
	tm := aarch64.New()
	m := frameModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.InsertStackSlot(0, 4, 4)

		str := machine.NewInstruction(aarch64.STR, bb)
		str.AddAttribute(machine.AttrIsStore)
		str.AddStackAccess(0, 0)
		str.AddRegister(aarch64.W(0), 32)
		bb.Append(str)

		// the selected form of a STACK_ADDRESS
		add := machine.NewInstruction(aarch64.ADD_rri, bb)
		add.AddRegister(aarch64.X(1), 64)
		add.AddStackAccess(0, 0)
		bb.Append(add)

		ret := machine.NewInstruction(aarch64.RET, bb)
		ret.AddAttribute(machine.AttrIsReturn)
		bb.Append(ret)
	})

	Run(m, tm)

	f := m.Functions[0]
	for _, bb := range f.Blocks {
		for _, mi := range bb.Instructions {
			for i := range mi.Operands {
				if mi.Operand(i).IsStackAccess() {
					t.Errorf("stack access operand survived prologue insertion")
				}
			}
		}
	}

	// the store now addresses memory relative to the frame base
	var str *machine.Instruction
	for _, mi := range f.Blocks[0].Instructions {
		if mi.IsStore() {
			str = mi
			break
		}
	}
	if str == nil {
		t.Fatal("store lost")
	}
	if !str.Operand(0).IsMemory() || str.Operand(0).Reg != aarch64.X(29) {
		t.Errorf("store should address [x29, #off], got %s", str.Operand(0))
	}

	// the address computation became base register + immediate
	var add *machine.Instruction
	for _, mi := range f.Blocks[0].Instructions {
		if mi.Opcode == aarch64.ADD_rri {
			add = mi
			break
		}
	}
	if add == nil {
		t.Fatal("address computation lost")
	}
	if !add.Operand(1).IsRegister() || add.Operand(1).Reg != aarch64.X(29) {
		t.Errorf("address base should be the frame pointer, got %s", add.Operand(1))
	}
	if !add.Operand(2).IsIntImmediate() {
		t.Errorf("slot offset should become an immediate, got %s", add.Operand(2))
	}
}

func TestPrologueAndEpilogueEmitted(t *testing.T) {
	tm := aarch64.New()
	m := frameModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.HasCall = true
		f.MarkCalleeSaved(aarch64.X(19))
		ret := machine.NewInstruction(aarch64.RET, bb)
		ret.AddAttribute(machine.AttrIsReturn)
		bb.Append(ret)
	})

	Run(m, tm)

	instrs := m.Functions[0].Blocks[0].Instructions
	if instrs[0].Opcode != aarch64.STP_pre {
		t.Errorf("prologue should open with the fp/lr pair store, got %d", instrs[0].Opcode)
	}
	last := instrs[len(instrs)-1]
	if last.Opcode != aarch64.RET {
		t.Errorf("return must stay last, got %d", last.Opcode)
	}
	prev := instrs[len(instrs)-2]
	if prev.Opcode != aarch64.LDP_post {
		t.Errorf("epilogue should restore fp/lr right before ret, got %d", prev.Opcode)
	}

	// the callee save store must appear in the prologue
	found := false
	for _, mi := range instrs {
		if mi.Opcode == aarch64.STR && mi.Operand(1).IsRegister() && mi.Operand(1).Reg == aarch64.X(19) {
			found = true
		}
	}
	if !found {
		t.Error("used callee saved register never saved")
	}
}
