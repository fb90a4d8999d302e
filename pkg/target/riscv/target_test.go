package riscv

import (
	"testing"

	"github.com/minicc-lang/minicc/pkg/machine"
)

func newTestBlock() (*machine.Function, *machine.BasicBlock) {
	f := machine.NewFunction("test")
	return f, f.AddBlock("entry")
}

func TestMaterializeConstantSmall(t *testing.T) {
	tgt := New()
	_, bb := newTestBlock()

	mi := machine.NewInstruction(machine.LOAD_IMM, bb)
	mi.AddVirtualRegister(0, 32)
	mi.AddImmediate(-12, 32)
	bb.Append(mi)

	tgt.MaterializeConstant(mi, -12, mi.Operand(0), true)

	if len(bb.Instructions) != 1 || mi.Opcode != ADDI {
		t.Fatalf("small constant should be a single addi, got %d instructions, opcode %d",
			len(bb.Instructions), mi.Opcode)
	}
	if mi.Operand(1).Reg != Zero() {
		t.Error("addi source should be the zero register")
	}
	if mi.Operand(2).IntVal != -12 {
		t.Errorf("expected -12, got %d", mi.Operand(2).IntVal)
	}
}

func TestMaterializeConstantWide(t *testing.T) {
	tgt := New()
	_, bb := newTestBlock()

	const k = 0x12345678
	mi := machine.NewInstruction(machine.LOAD_IMM, bb)
	mi.AddVirtualRegister(0, 32)
	mi.AddImmediate(k, 32)
	bb.Append(mi)

	tgt.MaterializeConstant(mi, k, mi.Operand(0), true)

	if len(bb.Instructions) != 2 {
		t.Fatalf("expected lui+addi, got %d instructions", len(bb.Instructions))
	}
	lui, addi := bb.Instructions[0], bb.Instructions[1]
	if lui.Opcode != LUI || addi.Opcode != ADDI {
		t.Fatalf("expected lui+addi, got %d and %d", lui.Opcode, addi.Opcode)
	}
	// the hardware sign extends the addi immediate, the hi part must
	// compensate
	rebuilt := lui.Operand(1).IntVal<<12 + addi.Operand(2).IntVal
	if rebuilt != k {
		t.Errorf("constant %#x rebuilt as %#x", int64(k), rebuilt)
	}
}

func TestSelectCMPLessThan(t *testing.T) {
	tgt := New()
	_, bb := newTestBlock()

	cmp := machine.NewInstruction(machine.CMP, bb)
	cmp.Relation = machine.LT
	cmp.AddVirtualRegister(0, 32)
	cmp.AddVirtualRegister(1, 32)
	cmp.AddVirtualRegister(2, 32)
	bb.Append(cmp)

	if !tgt.SelectInstruction(cmp) {
		t.Fatal("CMP should select")
	}
	if cmp.Opcode != SLT {
		t.Errorf("lt compare should select slt, got %d", cmp.Opcode)
	}
	if len(bb.Instructions) != 1 {
		t.Errorf("slt alone suffices, block has %d instructions", len(bb.Instructions))
	}
}

func TestSelectCMPEquality(t *testing.T) {
	tgt := New()
	_, bb := newTestBlock()

	cmp := machine.NewInstruction(machine.CMP, bb)
	cmp.Relation = machine.EQ
	cmp.AddVirtualRegister(0, 32)
	cmp.AddVirtualRegister(1, 32)
	cmp.AddVirtualRegister(2, 32)
	bb.Append(cmp)

	tgt.SelectInstruction(cmp)
	if cmp.Opcode != XOR {
		t.Fatalf("eq compare starts with xor, got %d", cmp.Opcode)
	}
	if len(bb.Instructions) != 2 || bb.Instructions[1].Opcode != SLTIU {
		t.Errorf("eq compare should be xor+sltiu")
	}
}

func TestSelectBranchTestsAgainstZero(t *testing.T) {
	tgt := New()
	_, bb := newTestBlock()

	br := machine.NewInstruction(machine.BRANCH, bb)
	br.AddVirtualRegister(0, 32)
	br.AddLabel("loop")
	bb.Append(br)

	tgt.SelectInstruction(br)
	if br.Opcode != BNE {
		t.Errorf("conditional branch should select bne, got %d", br.Opcode)
	}
	if br.Operand(1).Reg != Zero() {
		t.Error("branch should compare against the zero register")
	}
	if !br.Operand(2).IsLabel() {
		t.Error("branch target lost")
	}
}

func TestSelectSEXT8(t *testing.T) {
	tgt := New()
	_, bb := newTestBlock()

	mi := machine.NewInstruction(machine.SEXT, bb)
	mi.AddVirtualRegister(0, 32)
	mi.AddVirtualRegister(1, 8)
	bb.Append(mi)

	tgt.SelectInstruction(mi)
	if mi.Opcode != SLLI {
		t.Fatalf("sext8 starts with slli, got %d", mi.Opcode)
	}
	if len(bb.Instructions) != 2 || bb.Instructions[1].Opcode != SRAI {
		t.Fatal("sext8 should be slli+srai")
	}
	if bb.Instructions[1].Operand(2).IntVal != 24 {
		t.Errorf("shift amount should be 24, got %d", bb.Instructions[1].Operand(2).IntVal)
	}
}

func TestLegalize64BitAdd(t *testing.T) {
	tgt := New()
	f, bb := newTestBlock()

	// v2 = merge(v0, v1); v3 = merge(v4, v5); v6 = add v2, v3;
	// split v7, v8 <- v6
	merge1 := machine.NewInstruction(machine.MERGE, bb)
	merge1.AddVirtualRegister(2, 64)
	merge1.AddVirtualRegister(0, 32)
	merge1.AddVirtualRegister(1, 32)
	bb.Append(merge1)

	merge2 := machine.NewInstruction(machine.MERGE, bb)
	merge2.AddVirtualRegister(3, 64)
	merge2.AddVirtualRegister(4, 32)
	merge2.AddVirtualRegister(5, 32)
	bb.Append(merge2)

	add := machine.NewInstruction(machine.ADD, bb)
	add.AddVirtualRegister(6, 64)
	add.AddVirtualRegister(2, 64)
	add.AddVirtualRegister(3, 64)
	bb.Append(add)

	split := machine.NewInstruction(machine.SPLIT, bb)
	split.AddVirtualRegister(7, 32)
	split.AddVirtualRegister(8, 32)
	split.AddVirtualRegister(6, 64)
	bb.Append(split)

	f.NextVReg = 9
	tgt.LegalizeFunction(f)

	var opcodes []machine.Opcode
	for _, mi := range bb.Instructions {
		opcodes = append(opcodes, mi.Opcode)
	}
	want := []machine.Opcode{machine.ADDS, machine.ADDC, machine.MOV, machine.MOV}
	if len(opcodes) != len(want) {
		t.Fatalf("expected %d instructions, got %v", len(want), opcodes)
	}
	for i := range want {
		if opcodes[i] != want[i] {
			t.Errorf("instruction %d: got %d, want %d", i, opcodes[i], want[i])
		}
	}
	// no 64 bit operand may survive
	for _, mi := range bb.Instructions {
		for i := range mi.Operands {
			if op := mi.Operand(i); op.IsAnyReg() && op.Size() > 32 {
				t.Errorf("64 bit operand survived legalization: %s", op)
			}
		}
	}
}

func TestMemoryOperandSpelling(t *testing.T) {
	tgt := New()
	_, bb := newTestBlock()

	lw := machine.NewInstruction(LW, bb)
	lw.AddRegister(XReg(10), 32)
	lw.AddMemory(XReg(2), 8, 32)
	bb.Append(lw)

	if got := tgt.FormatOperand(lw, 1); got != "8(sp)" {
		t.Errorf("riscv memory operand should print offset(base), got %q", got)
	}
}
