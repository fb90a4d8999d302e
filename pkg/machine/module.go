package machine

// InitKind tags a global data initializer entry.
type InitKind uint8

const (
	InitZero   InitKind = iota // zero fill of Size bytes
	InitString                 // string literal, emitted .asciz
	InitScalar                 // integer of Size bytes
	InitSymbol                 // address of another symbol, word or doubleword
)

// Initializer is one entry of a global's initializer sequence.
type Initializer struct {
	Kind   InitKind
	Size   uint // byte size: fill length for InitZero, scalar width otherwise
	Value  int64
	Symbol string
	Str    string
}

// GlobalData is one entry of the module's global data table.
type GlobalData struct {
	Name  string
	Size  uint
	Inits []Initializer
}

// AddZero appends a zero fill entry.
func (g *GlobalData) AddZero(bytes uint) {
	g.Inits = append(g.Inits, Initializer{Kind: InitZero, Size: bytes})
}

// AddString appends a string literal entry.
func (g *GlobalData) AddString(s string) {
	g.Inits = append(g.Inits, Initializer{Kind: InitString, Str: s})
}

// AddScalar appends an integer entry of the given byte size.
func (g *GlobalData) AddScalar(size uint, value int64) {
	g.Inits = append(g.Inits, Initializer{Kind: InitScalar, Size: size, Value: value})
}

// AddSymbol appends a pointer-to-symbol entry. Size selects word or
// doubleword emission and must match the target pointer size.
func (g *GlobalData) AddSymbol(name string, size uint) {
	g.Inits = append(g.Inits, Initializer{Kind: InitSymbol, Size: size, Symbol: name})
}

// Module is a whole translation unit in machine IR form.
type Module struct {
	Functions []*Function
	Globals   []GlobalData
}

// AddFunction appends a function and returns it.
func (m *Module) AddFunction(f *Function) *Function {
	m.Functions = append(m.Functions, f)
	return f
}

// AddGlobal appends a global data entry.
func (m *Module) AddGlobal(g GlobalData) { m.Globals = append(m.Globals, g) }

// FunctionByName returns the named function, or nil.
func (m *Module) FunctionByName(name string) *Function {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}
