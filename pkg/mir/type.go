// Package mir defines the mid level IR the backend consumes. It is the
// hand-off shape of the external producer: typed SSA instructions in
// named basic blocks, plus module level global variables. The backend
// treats it as trusted input.
package mir

// TypeKind tags a MIR type descriptor.
type TypeKind uint8

const (
	Void TypeKind = iota
	SInt
	UInt
	FP
	Struct
	Array
)

// Type describes a MIR value's type. PointerLevel > 0 makes any kind a
// pointer to that many levels. Members is set for structs, ElemCount
// for arrays.
type Type struct {
	Kind         TypeKind
	Bits         uint
	PointerLevel uint
	Members      []Type
	ElemCount    uint
}

func (t Type) IsVoid() bool    { return t.Kind == Void && t.PointerLevel == 0 }
func (t Type) IsPointer() bool { return t.PointerLevel > 0 }
func (t Type) IsStruct() bool  { return t.Kind == Struct }
func (t Type) IsArray() bool   { return t.Kind == Array }
func (t Type) IsFP() bool      { return t.Kind == FP && t.PointerLevel == 0 }
func (t Type) IsUnsigned() bool { return t.Kind == UInt }

// Dereference returns the type with one pointer level removed.
func (t Type) Dereference() Type {
	if t.PointerLevel == 0 {
		panic("mir: dereference of non pointer type")
	}
	t.PointerLevel--
	return t
}

// BaseByteSize returns the byte size of the base type, ignoring array
// length and pointer levels.
func (t Type) BaseByteSize() uint {
	if t.Kind == Struct {
		var sum uint
		for _, m := range t.Members {
			sum += m.ByteSize()
		}
		return sum
	}
	return t.Bits / 8
}

// ByteSize returns the full byte size of the type, counting array
// elements. A pointer is always the bit width recorded on it.
func (t Type) ByteSize() uint {
	if t.PointerLevel > 0 {
		return t.Bits / 8
	}
	switch t.Kind {
	case Struct:
		return t.BaseByteSize()
	case Array:
		if len(t.Members) > 0 {
			return t.Members[0].ByteSize() * t.ElemCount
		}
		return t.Bits / 8 * t.ElemCount
	default:
		return t.Bits / 8
	}
}

// ElemByteSize returns the stride of one indexed element: the base
// size for arrays and pointers, the full size otherwise.
func (t Type) ElemByteSize() uint {
	if t.Kind == Array && len(t.Members) > 0 {
		return t.Members[0].ByteSize()
	}
	if t.PointerLevel > 0 {
		u := t
		u.PointerLevel = 0
		if u.Kind == Struct {
			return u.BaseByteSize()
		}
		return u.Bits / 8
	}
	return t.ByteSize()
}

// MemberOffset returns the byte offset of the i-th struct member.
func (t Type) MemberOffset(i int64) uint {
	var off uint
	for k := int64(0); k < i; k++ {
		off += t.Members[k].ByteSize()
	}
	return off
}

// MaxAlignment returns the largest member size of a struct, used as
// the struct's stack alignment.
func (t Type) MaxAlignment() uint {
	var max uint
	for _, m := range t.Members {
		if s := m.ByteSize(); s > max {
			max = s
		}
	}
	if max == 0 {
		max = t.Bits / 8
	}
	return max
}
