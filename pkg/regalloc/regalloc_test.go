package regalloc

import (
	"testing"

	"github.com/minicc-lang/minicc/pkg/llt"
	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/selection"
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

func assertNoVirtualRegisters(t *testing.T, m *machine.Module) {
	t.Helper()
	for _, f := range m.Functions {
		for _, bb := range f.Blocks {
			for _, mi := range bb.Instructions {
				for i := range mi.Operands {
					if op := mi.Operand(i); op.IsVirtualReg() || op.IsParameter() {
						t.Errorf("operand %s survived allocation in %s", op, f.Name)
					}
				}
			}
		}
	}
}

func TestSimpleAllocation(t *testing.T) {
	tm := aarch64.New()
	m := buildModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.NextVReg = 3
		add := machine.NewInstruction(aarch64.ADD_rrr, bb)
		add.AddVirtualRegister(0, 32)
		add.AddVirtualRegister(1, 32)
		add.AddVirtualRegister(2, 32)
		bb.Append(add)

		ret := machine.NewInstruction(aarch64.RET, bb)
		ret.AddAttribute(machine.AttrIsReturn)
		bb.Append(ret)
	})
	selection.SelectRegisterClasses(m, tm)

	Run(m, tm)
	assertNoVirtualRegisters(t, m)

	add := m.Functions[0].Blocks[0].Instructions[0]
	if add.Operand(1).Reg == add.Operand(2).Reg {
		t.Error("simultaneously live vregs must get different registers")
	}
}

func TestParameterGetsArgumentRegisterHint(t *testing.T) {
	tm := aarch64.New()
	m := buildModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.InsertParameter(0, llt.MakeScalar(32), false, false)
		f.InsertParameter(1, llt.MakeScalar(32), false, false)
		f.NextVReg = 3

		add := machine.NewInstruction(aarch64.ADD_rrr, bb)
		add.AddVirtualRegister(2, 32)
		add.AddOperand(machine.NewParameter(0))
		add.AddOperand(machine.NewParameter(1))
		bb.Append(add)

		ret := machine.NewInstruction(aarch64.RET, bb)
		ret.AddAttribute(machine.AttrIsReturn)
		ret.AddVirtualRegister(2, 32)
		bb.Append(ret)
	})
	selection.SelectRegisterClasses(m, tm)

	Run(m, tm)
	assertNoVirtualRegisters(t, m)

	add := m.Functions[0].Blocks[0].Instructions[0]
	// parameters land in w0/w1, the return value in w0
	if add.Operand(1).Reg != aarch64.W(0) {
		t.Errorf("first parameter should stay in w0, got register %d", add.Operand(1).Reg)
	}
	if add.Operand(2).Reg != aarch64.W(1) {
		t.Errorf("second parameter should stay in w1, got register %d", add.Operand(2).Reg)
	}
	if add.Operand(0).Reg != aarch64.W(0) {
		t.Errorf("value feeding the return should take w0, got register %d", add.Operand(0).Reg)
	}
}

func TestCalleeSavedTracking(t *testing.T) {
	tm := aarch64.New()
	m := buildModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.HasCall = true
		f.NextVReg = 2

		mov := machine.NewInstruction(aarch64.MOV_rc, bb)
		mov.AddVirtualRegister(0, 32)
		mov.AddImmediate(1, 32)
		bb.Append(mov)

		call := machine.NewInstruction(aarch64.BL, bb)
		call.AddAttribute(machine.AttrIsCall)
		call.AddFunctionName("g")
		bb.Append(call)

		// vreg 0 lives across the call
		add := machine.NewInstruction(aarch64.ADD_rrr, bb)
		add.AddVirtualRegister(1, 32)
		add.AddVirtualRegister(0, 32)
		add.AddVirtualRegister(0, 32)
		bb.Append(add)

		ret := machine.NewInstruction(aarch64.RET, bb)
		ret.AddAttribute(machine.AttrIsReturn)
		bb.Append(ret)
	})
	selection.SelectRegisterClasses(m, tm)

	Run(m, tm)

	f := m.Functions[0]
	if len(f.UsedCalleeSavedRegs) == 0 {
		t.Fatal("value living across a call must take a callee saved register")
	}
	ri := tm.RegInfo()
	for _, reg := range f.UsedCalleeSavedRegs {
		if !ri.RegisterByID(reg).CalleeSaved {
			t.Errorf("register %d tracked as callee saved but is not", reg)
		}
	}
}

func TestSpillOnPressure(t *testing.T) {
	tm := aarch64.New()
	const vregs = 24 // more than the allocatable GPR pool

	m := buildModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.NextVReg = vregs * 2
		for i := uint64(0); i < vregs; i++ {
			mov := machine.NewInstruction(aarch64.MOV_rc, bb)
			mov.AddVirtualRegister(i, 32)
			mov.AddImmediate(int64(i), 32)
			bb.Append(mov)
		}
		// keep everything alive to the end
		for i := uint64(0); i < vregs; i++ {
			add := machine.NewInstruction(aarch64.ADD_rrr, bb)
			add.AddVirtualRegister(vregs+i, 32)
			add.AddVirtualRegister(i, 32)
			add.AddVirtualRegister(i, 32)
			bb.Append(add)
		}
		ret := machine.NewInstruction(aarch64.RET, bb)
		ret.AddAttribute(machine.AttrIsReturn)
		bb.Append(ret)
	})
	selection.SelectRegisterClasses(m, tm)

	Run(m, tm)
	assertNoVirtualRegisters(t, m)

	if len(m.Functions[0].Frame.Slots()) == 0 {
		t.Error("register pressure beyond the pool must spill to stack slots")
	}
}

func TestAliasingBlocksSubRegister(t *testing.T) {
	tm := aarch64.New()
	m := buildModule(func(f *machine.Function, bb *machine.BasicBlock) {
		f.NextVReg = 3
		// a 64 bit and a 32 bit value live at once
		mov64 := machine.NewInstruction(aarch64.MOV_rc, bb)
		mov64.AddVirtualRegister(0, 64)
		mov64.AddImmediate(1, 32)
		bb.Append(mov64)

		mov32 := machine.NewInstruction(aarch64.MOV_rc, bb)
		mov32.AddVirtualRegister(1, 32)
		mov32.AddImmediate(2, 32)
		bb.Append(mov32)

		add := machine.NewInstruction(aarch64.ADD_rrr, bb)
		add.AddVirtualRegister(2, 64)
		add.AddVirtualRegister(0, 64)
		add.AddVirtualRegister(1, 32)
		bb.Append(add)

		ret := machine.NewInstruction(aarch64.RET, bb)
		ret.AddAttribute(machine.AttrIsReturn)
		bb.Append(ret)
	})
	selection.SelectRegisterClasses(m, tm)

	Run(m, tm)

	ri := tm.RegInfo()
	add := m.Functions[0].Blocks[0].Instructions[2]
	full0 := ri.FullRegisterFor(add.Operand(1).Reg)
	full1 := ri.FullRegisterFor(add.Operand(2).Reg)
	if full0 == full1 {
		t.Errorf("allocating x%d and its w half at once violates aliasing", full0)
	}
}
