package machine

import (
	"bytes"
	"strings"
	"testing"
)

func TestInstructionAttributes(t *testing.T) {
	tests := []struct {
		op   Opcode
		attr Attribute
	}{
		{LOAD, AttrIsLoad},
		{ZEXT_LOAD, AttrIsLoad},
		{SEXT_LOAD, AttrIsLoad},
		{STORE, AttrIsStore},
		{RET, AttrIsReturn},
		{JUMP, AttrIsJump},
		{CALL, AttrIsCall},
	}
	for _, tt := range tests {
		mi := NewInstruction(tt.op, nil)
		if !mi.HasAttribute(tt.attr) {
			t.Errorf("%s should carry attribute %d", tt.op.GenericName(), tt.attr)
		}
	}
}

func TestAttributesSurviveOpcodeRewrite(t *testing.T) {
	mi := NewInstruction(CALL, nil)
	mi.SetOpcode(Opcode(42)) // a target opcode
	if !mi.IsCall() {
		t.Error("call attribute lost through selection rewrite")
	}
}

func TestDefDetection(t *testing.T) {
	add := NewInstruction(ADD, nil)
	add.AddVirtualRegister(0, 32)
	add.AddVirtualRegister(1, 32)
	add.AddVirtualRegister(2, 32)
	if add.Def() == nil || add.Def().Reg != 0 {
		t.Error("ADD should define its first operand")
	}

	store := NewInstruction(STORE, nil)
	store.AddStackAccess(3, 0)
	store.AddVirtualRegister(1, 32)
	if store.Def() != nil {
		t.Error("STORE must not have a def")
	}

	ret := NewInstruction(RET, nil)
	ret.AddVirtualRegister(2, 32)
	if ret.Def() != nil {
		t.Error("RET must not have a def")
	}
}

func TestOperandEquality(t *testing.T) {
	a := NewVirtualRegister(5, 32)
	b := NewVirtualRegister(5, 32)
	if !a.Equal(&b) {
		t.Error("identical vregs should compare equal")
	}
	c := NewRegister(5, 32)
	if a.Equal(&c) {
		t.Error("virtual and physical register must differ")
	}
	m1 := NewMemory(1, 8, 64)
	m2 := NewMemory(1, 12, 64)
	if m1.Equal(&m2) {
		t.Error("memory operands with different offsets must differ")
	}
}

func TestBlockInsertErase(t *testing.T) {
	f := NewFunction("f")
	bb := f.AddBlock("entry")

	first := bb.Append(NewInstruction(MOV, bb))
	third := bb.Append(NewInstruction(RET, bb))
	second := bb.InsertBefore(NewInstruction(ADD, bb), third)

	if bb.IndexOf(first) != 0 || bb.IndexOf(second) != 1 || bb.IndexOf(third) != 2 {
		t.Fatalf("unexpected order after InsertBefore")
	}

	bb.InsertAfter(NewInstruction(SUB, bb), first)
	if bb.Instructions[1].Opcode != SUB {
		t.Errorf("InsertAfter placed instruction at %d", bb.IndexOf(second))
	}

	bb.Erase(first)
	if bb.Instructions[0].Opcode != SUB {
		t.Error("Erase did not remove the head instruction")
	}
}

func TestStackSlotBumpsVRegCounter(t *testing.T) {
	f := NewFunction("f")
	if got := f.NextAvailableVReg(); got != 0 {
		t.Fatalf("expected first vreg 0, got %d", got)
	}
	f.InsertStackSlot(7, 4, 4)
	if got := f.NextAvailableVReg(); got != 8 {
		t.Errorf("vreg counter should jump past slot id 7, got %d", got)
	}
	if !f.IsStackSlot(7) || f.IsStackSlot(3) {
		t.Error("IsStackSlot misreports")
	}
}

func TestPrinterOutput(t *testing.T) {
	f := NewFunction("main")
	bb := f.AddBlock("entry")
	cmp := NewInstruction(CMP, bb)
	cmp.Relation = LT
	cmp.AddVirtualRegister(0, 32)
	cmp.AddVirtualRegister(1, 32)
	cmp.AddImmediate(10, 32)
	bb.Append(cmp)

	var buf bytes.Buffer
	m := &Module{}
	m.AddFunction(f)
	NewPrinter(&buf, nil).PrintModule(m)

	out := buf.String()
	if !strings.Contains(out, "main.entry:") {
		t.Errorf("missing block label in dump:\n%s", out)
	}
	if !strings.Contains(out, "CMP.lt") {
		t.Errorf("compare relation missing from dump:\n%s", out)
	}
	if !strings.Contains(out, "%vreg0(s32)") {
		t.Errorf("vreg formatting wrong:\n%s", out)
	}
}
