package mir

// ValueKind tags a Value.
type ValueKind uint8

const (
	VRegister ValueKind = iota
	VParameter
	VIntConstant
	VFPConstant
	VGlobalVar
	VStackAlloc
	VLabel
)

// Value is an SSA value: instruction results, parameters, constants,
// globals and stack allocations all carry a unique id within their
// function (globals within the module).
type Value struct {
	ID   uint64
	Kind ValueKind
	Type Type

	IntVal   int64   // VIntConstant
	FloatVal float64 // VFPConstant
	Name     string  // VGlobalVar, VParameter (struct params)

	// IsImplicitStructPtr marks the hidden return area pointer
	// parameter of functions returning large structs.
	IsImplicitStructPtr bool
}

func (v *Value) IsRegister() bool    { return v.Kind == VRegister || v.Kind == VStackAlloc }
func (v *Value) IsParameter() bool   { return v.Kind == VParameter }
func (v *Value) IsConstant() bool    { return v.Kind == VIntConstant || v.Kind == VFPConstant }
func (v *Value) IsIntConstant() bool { return v.Kind == VIntConstant }
func (v *Value) IsFPConstant() bool  { return v.Kind == VFPConstant }
func (v *Value) IsGlobalVar() bool   { return v.Kind == VGlobalVar }
func (v *Value) IsStackAlloc() bool  { return v.Kind == VStackAlloc }

// BitWidth returns the declared scalar width of the value.
func (v *Value) BitWidth() uint { return v.Type.Bits }
