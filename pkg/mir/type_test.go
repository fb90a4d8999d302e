package mir

import "testing"

func TestScalarSizes(t *testing.T) {
	i32 := Type{Kind: SInt, Bits: 32}
	if i32.ByteSize() != 4 {
		t.Errorf("i32 should be 4 bytes, got %d", i32.ByteSize())
	}
	if i32.IsPointer() || i32.IsVoid() {
		t.Error("i32 misclassified")
	}
}

func TestStructLayout(t *testing.T) {
	node := Type{Kind: Struct, Members: []Type{
		{Kind: SInt, Bits: 32},
		{Kind: SInt, Bits: 64, PointerLevel: 1},
	}}
	if got := node.ByteSize(); got != 12 {
		t.Errorf("struct size should be the member sum 12, got %d", got)
	}
	if got := node.MemberOffset(1); got != 4 {
		t.Errorf("second member at offset 4, got %d", got)
	}
	if got := node.MaxAlignment(); got != 8 {
		t.Errorf("max member alignment should be 8, got %d", got)
	}
}

func TestArraySizes(t *testing.T) {
	arr := Type{Kind: Array, ElemCount: 5, Members: []Type{{Kind: SInt, Bits: 16}}}
	if got := arr.ByteSize(); got != 10 {
		t.Errorf("array of five shorts should be 10 bytes, got %d", got)
	}
	if got := arr.ElemByteSize(); got != 2 {
		t.Errorf("element stride should be 2, got %d", got)
	}
}

func TestPointerStride(t *testing.T) {
	p := Type{Kind: SInt, Bits: 32, PointerLevel: 1}
	if got := p.ElemByteSize(); got != 4 {
		t.Errorf("int pointer stride should be 4, got %d", got)
	}
	if p.Dereference().PointerLevel != 0 {
		t.Error("dereference should drop one level")
	}
}
