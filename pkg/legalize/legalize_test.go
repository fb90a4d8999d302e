package legalize

import (
	"bytes"
	"testing"

	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/target"
	"github.com/minicc-lang/minicc/pkg/target/aarch64"
)

func singleBlockModule(build func(f *machine.Function, bb *machine.BasicBlock)) *machine.Module {
	m := &machine.Module{}
	f := machine.NewFunction("test")
	m.AddFunction(f)
	bb := f.AddBlock("entry")
	build(f, bb)
	return m
}

func TestWidenNarrowDefinitions(t *testing.T) {
	m := singleBlockModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.NextVReg = 2
		mov := machine.NewInstruction(machine.MOV, bb)
		mov.AddVirtualRegister(0, 8)
		mov.AddVirtualRegister(1, 8)
		bb.Append(mov)
	})

	Run(m, aarch64.New())

	def := m.Functions[0].Blocks[0].Instructions[0].Def()
	if def.Size() != 32 {
		t.Errorf("8 bit definition should widen to 32, got %d", def.Size())
	}
}

func TestWideImmediateMaterialized(t *testing.T) {
	m := singleBlockModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.NextVReg = 3
		add := machine.NewInstruction(machine.ADD, bb)
		add.AddVirtualRegister(0, 32)
		add.AddVirtualRegister(1, 32)
		add.AddImmediate(0x123456, 32)
		bb.Append(add)
	})

	Run(m, aarch64.New())

	instrs := m.Functions[0].Blocks[0].Instructions
	if len(instrs) < 2 {
		t.Fatalf("wide immediate should grow a materialization sequence, got %d instructions", len(instrs))
	}
	add := instrs[len(instrs)-1]
	if add.Opcode != machine.ADD {
		t.Fatalf("ADD should stay last, got %v", add.Opcode)
	}
	if !add.Operand(2).IsVirtualReg() {
		t.Errorf("immediate should be replaced by a register")
	}
}

func TestSmallImmediateLeftAlone(t *testing.T) {
	m := singleBlockModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.NextVReg = 2
		add := machine.NewInstruction(machine.ADD, bb)
		add.AddVirtualRegister(0, 32)
		add.AddVirtualRegister(1, 32)
		add.AddImmediate(100, 32)
		bb.Append(add)
	})

	Run(m, aarch64.New())

	instrs := m.Functions[0].Blocks[0].Instructions
	if len(instrs) != 1 {
		t.Errorf("fitting immediate must not be materialized, got %d instructions", len(instrs))
	}
}

func TestModuloExpansion(t *testing.T) {
	m := singleBlockModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.NextVReg = 3
		mod := machine.NewInstruction(machine.MOD, bb)
		mod.AddVirtualRegister(0, 32)
		mod.AddVirtualRegister(1, 32)
		mod.AddVirtualRegister(2, 32)
		bb.Append(mod)
	})

	Run(m, aarch64.New())

	instrs := m.Functions[0].Blocks[0].Instructions
	want := []machine.Opcode{machine.DIV, machine.MUL, machine.SUB}
	if len(instrs) != len(want) {
		t.Fatalf("mod should expand to div/mul/sub, got %d instructions", len(instrs))
	}
	for i, op := range want {
		if instrs[i].Opcode != op {
			t.Errorf("instruction %d: got %v, want %v", i, instrs[i].Opcode, op)
		}
	}
	// remainder = lhs - (lhs/rhs)*rhs: the final sub writes the
	// original destination
	if instrs[2].Def().Reg != 0 {
		t.Errorf("expansion must keep the original destination")
	}
}

func TestCompareMovedToBranch(t *testing.T) {
	m := singleBlockModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.NextVReg = 5
		cmp := machine.NewInstruction(machine.CMP, bb)
		cmp.Relation = machine.LT
		cmp.AddVirtualRegister(0, 32)
		cmp.AddVirtualRegister(1, 32)
		cmp.AddVirtualRegister(2, 32)
		bb.Append(cmp)

		// unrelated work between compare and branch
		add := machine.NewInstruction(machine.ADD, bb)
		add.AddVirtualRegister(3, 32)
		add.AddVirtualRegister(1, 32)
		add.AddVirtualRegister(2, 32)
		bb.Append(add)

		br := machine.NewInstruction(machine.BRANCH, bb)
		br.AddVirtualRegister(0, 32)
		br.AddLabel("entry")
		bb.Append(br)
	})

	Run(m, aarch64.New())

	instrs := m.Functions[0].Blocks[0].Instructions
	if instrs[len(instrs)-2].Opcode != machine.CMP {
		t.Errorf("compare should sit right before its branch")
	}
}

func dump(m *machine.Module, tm target.Machine) string {
	var buf bytes.Buffer
	machine.NewPrinter(&buf, tm.Mnemonic).PrintModule(m)
	return buf.String()
}

func TestLegalizationIsIdempotent(t *testing.T) {
	m := singleBlockModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.NextVReg = 4
		mod := machine.NewInstruction(machine.MODU, bb)
		mod.AddVirtualRegister(0, 16)
		mod.AddVirtualRegister(1, 32)
		mod.AddImmediate(0xabcdef, 32)
		bb.Append(mod)

		ret := machine.NewInstruction(machine.RET, bb)
		ret.AddVirtualRegister(0, 32)
		bb.Append(ret)
	})

	tm := aarch64.New()
	Run(m, tm)
	first := dump(m, tm)
	Run(m, tm)
	second := dump(m, tm)
	if first != second {
		t.Errorf("second legalizer run changed the module:\n--- first\n%s--- second\n%s", first, second)
	}
}
