package llopt

import (
	"testing"

	"github.com/minicc-lang/minicc/pkg/machine"
)

func buildModule(build func(f *machine.Function, bb *machine.BasicBlock)) *machine.Module {
	m := &machine.Module{}
	f := machine.NewFunction("test")
	m.AddFunction(f)
	bb := f.AddBlock("entry")
	build(f, bb)
	return m
}

func TestCopyPropagation(t *testing.T) {
	m := buildModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.NextVReg = 3
		mov := machine.NewInstruction(machine.MOV, bb)
		mov.AddVirtualRegister(1, 32)
		mov.AddVirtualRegister(0, 32)
		bb.Append(mov)

		add := machine.NewInstruction(machine.ADD, bb)
		add.AddVirtualRegister(2, 32)
		add.AddVirtualRegister(1, 32)
		add.AddVirtualRegister(1, 32)
		bb.Append(add)

		ret := machine.NewInstruction(machine.RET, bb)
		ret.AddVirtualRegister(2, 32)
		bb.Append(ret)
	})

	Run(m)

	instrs := m.Functions[0].Blocks[0].Instructions
	add := instrs[len(instrs)-2]
	if add.Opcode != machine.ADD {
		t.Fatalf("unexpected shape after optimization")
	}
	if add.Operand(1).Reg != 0 || add.Operand(2).Reg != 0 {
		t.Errorf("uses should read through the copy, got vreg%d and vreg%d",
			add.Operand(1).Reg, add.Operand(2).Reg)
	}
	// the copy became dead and must be gone
	for _, mi := range instrs {
		if mi.Opcode == machine.MOV {
			t.Error("dead copy survived")
		}
	}
}

func TestCopyKilledByRedefinition(t *testing.T) {
	m := buildModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.NextVReg = 4
		mov := machine.NewInstruction(machine.MOV, bb)
		mov.AddVirtualRegister(1, 32)
		mov.AddVirtualRegister(0, 32)
		bb.Append(mov)

		// v0 is redefined, the copy must not forward past this
		redef := machine.NewInstruction(machine.ADD, bb)
		redef.AddVirtualRegister(0, 32)
		redef.AddVirtualRegister(2, 32)
		redef.AddVirtualRegister(2, 32)
		bb.Append(redef)

		use := machine.NewInstruction(machine.ADD, bb)
		use.AddVirtualRegister(3, 32)
		use.AddVirtualRegister(1, 32)
		use.AddVirtualRegister(1, 32)
		bb.Append(use)

		ret := machine.NewInstruction(machine.RET, bb)
		ret.AddVirtualRegister(3, 32)
		bb.Append(ret)
	})

	Run(m)

	var use *machine.Instruction
	for _, mi := range m.Functions[0].Blocks[0].Instructions {
		if mi.Opcode == machine.ADD && mi.Def().Reg == 3 {
			use = mi
		}
	}
	if use == nil {
		t.Fatal("use instruction lost")
	}
	if use.Operand(1).Reg != 1 {
		t.Errorf("copy forwarded past a redefinition of its source")
	}
}

func TestPhysicalCopiesLeftAlone(t *testing.T) {
	m := buildModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.NextVReg = 1
		mov := machine.NewInstruction(machine.MOV, bb)
		mov.AddRegister(33, 64) // argument register
		mov.AddVirtualRegister(0, 64)
		bb.Append(mov)

		call := machine.NewInstruction(machine.CALL, bb)
		call.AddFunctionName("g")
		bb.Append(call)
	})

	Run(m)

	instrs := m.Functions[0].Blocks[0].Instructions
	if len(instrs) != 2 || instrs[0].Opcode != machine.MOV {
		t.Errorf("moves into physical registers must survive")
	}
}
