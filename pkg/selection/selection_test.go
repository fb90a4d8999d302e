package selection

import (
	"testing"

	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/target/aarch64"
)

func buildModule(build func(f *machine.Function, bb *machine.BasicBlock)) *machine.Module {
	m := &machine.Module{}
	f := machine.NewFunction("test")
	m.AddFunction(f)
	bb := f.AddBlock("entry")
	build(f, bb)
	return m
}

func TestRegisterClassFromDefiningOpcode(t *testing.T) {
	m := buildModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.NextVReg = 6
		fadd := machine.NewInstruction(machine.ADDF, bb)
		fadd.AddVirtualRegister(0, 32)
		fadd.AddVirtualRegister(1, 32)
		fadd.AddVirtualRegister(2, 32)
		bb.Append(fadd)

		add := machine.NewInstruction(machine.ADD, bb)
		add.AddVirtualRegister(3, 64)
		add.AddVirtualRegister(4, 64)
		add.AddVirtualRegister(5, 64)
		bb.Append(add)
	})

	SelectRegisterClasses(m, aarch64.New())

	instrs := m.Functions[0].Blocks[0].Instructions
	if got := instrs[0].Operand(0).RegClass; got != aarch64.ClassFPR32 {
		t.Errorf("float add destination should be FPR32, got %d", got)
	}
	if got := instrs[1].Operand(0).RegClass; got != aarch64.ClassGPR64 {
		t.Errorf("64 bit add destination should be GPR64, got %d", got)
	}
}

func TestClassPropagatesToUses(t *testing.T) {
	m := buildModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.NextVReg = 3
		fadd := machine.NewInstruction(machine.ADDF, bb)
		fadd.AddVirtualRegister(0, 32)
		fadd.AddVirtualRegister(1, 32)
		fadd.AddVirtualRegister(2, 32)
		bb.Append(fadd)

		ret := machine.NewInstruction(machine.RET, bb)
		ret.AddVirtualRegister(0, 32)
		bb.Append(ret)
	})

	SelectRegisterClasses(m, aarch64.New())

	ret := m.Functions[0].Blocks[0].Instructions[1]
	if got := ret.Operand(0).RegClass; got != aarch64.ClassFPR32 {
		t.Errorf("use should inherit the def's class, got %d", got)
	}
}

func TestRunSelectsEverything(t *testing.T) {
	m := buildModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.NextVReg = 3
		add := machine.NewInstruction(machine.ADD, bb)
		add.AddVirtualRegister(0, 32)
		add.AddVirtualRegister(1, 32)
		add.AddImmediate(4, 32)
		bb.Append(add)

		mov := machine.NewInstruction(machine.MOV, bb)
		mov.AddVirtualRegister(2, 32)
		mov.AddVirtualRegister(0, 32)
		bb.Append(mov)

		ret := machine.NewInstruction(machine.RET, bb)
		ret.AddVirtualRegister(2, 32)
		bb.Append(ret)
	})

	tm := aarch64.New()
	SelectRegisterClasses(m, tm)
	Run(m, tm)

	for _, mi := range m.Functions[0].Blocks[0].Instructions {
		if mi.Opcode.IsGeneric() {
			t.Errorf("generic opcode %v survived selection", mi.Opcode)
		}
	}
}

func TestRunPanicsOnUnsupported(t *testing.T) {
	m := buildModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.NextVReg = 3
		// SPLIT cannot be selected on aarch64
		split := machine.NewInstruction(machine.SPLIT, bb)
		split.AddVirtualRegister(0, 32)
		split.AddVirtualRegister(1, 32)
		split.AddVirtualRegister(2, 64)
		bb.Append(split)
	})

	defer func() {
		if recover() == nil {
			t.Error("unsupported opcode should abort")
		}
	}()
	Run(m, aarch64.New())
}
