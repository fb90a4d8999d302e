// Package mirload reads a MIR translation unit from its YAML hand-off
// form. The producer serializes functions, blocks and typed SSA
// instructions; values are referenced as "v<id>" once defined,
// integer and float constants inline as "i:<val>[:bits]" and
// "f:<val>[:bits]", globals as "g:<name>".
package mirload

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/minicc-lang/minicc/pkg/mir"
)

type typeSpec struct {
	Kind    string     `yaml:"kind"`
	Bits    uint       `yaml:"bits"`
	Ptr     uint       `yaml:"ptr"`
	Members []typeSpec `yaml:"members"`
	Count   uint       `yaml:"count"`
}

type paramSpec struct {
	ID        uint64   `yaml:"id"`
	Name      string   `yaml:"name"`
	Type      typeSpec `yaml:"type"`
	StructPtr bool     `yaml:"struct_ptr"`
}

type instrSpec struct {
	Op    string   `yaml:"op"`
	ID    uint64   `yaml:"id"`
	Type  typeSpec `yaml:"type"`
	Lhs   string   `yaml:"lhs"`
	Rhs   string   `yaml:"rhs"`
	Src   string   `yaml:"src"`
	Addr  string   `yaml:"addr"`
	Index string   `yaml:"index"`
	Cond  string   `yaml:"cond"`
	Rel   string   `yaml:"rel"`
	True  string   `yaml:"true"`
	False string   `yaml:"false"`

	Target string   `yaml:"target"`
	Callee string   `yaml:"callee"`
	Args   []string `yaml:"args"`
	Ret    typeSpec `yaml:"ret"`
	// StructArg is the position of the implicit struct return
	// pointer argument; nil when the call has none.
	StructArg *int   `yaml:"struct_arg"`
	Value     string `yaml:"value"`
	Bytes     uint   `yaml:"bytes"`
}

type blockSpec struct {
	Name   string      `yaml:"name"`
	Instrs []instrSpec `yaml:"instrs"`
}

type funcSpec struct {
	Name        string      `yaml:"name"`
	Ret         typeSpec    `yaml:"ret"`
	Params      []paramSpec `yaml:"params"`
	Blocks      []blockSpec `yaml:"blocks"`
	Returns     int         `yaml:"returns"`
	Declaration bool        `yaml:"declaration"`
}

type globalSpec struct {
	Name       string   `yaml:"name"`
	ID         uint64   `yaml:"id"`
	Type       typeSpec `yaml:"type"`
	Init       []int64  `yaml:"init"`
	InitString string   `yaml:"init_string"`
	InitSymbol string   `yaml:"init_symbol"`
}

type moduleSpec struct {
	Functions []funcSpec   `yaml:"functions"`
	Globals   []globalSpec `yaml:"globals"`
}

// Load reads a module from r.
func Load(r io.Reader) (*mir.Module, error) {
	var spec moduleSpec
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decoding module: %w", err)
	}
	return build(&spec)
}

// LoadFile reads a module from a YAML file.
func LoadFile(path string) (*mir.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

var typeKinds = map[string]mir.TypeKind{
	"": mir.Void, "void": mir.Void, "sint": mir.SInt, "uint": mir.UInt,
	"fp": mir.FP, "struct": mir.Struct, "array": mir.Array,
}

func buildType(ts typeSpec) (mir.Type, error) {
	kind, ok := typeKinds[ts.Kind]
	if !ok {
		return mir.Type{}, fmt.Errorf("unknown type kind %q", ts.Kind)
	}
	t := mir.Type{Kind: kind, Bits: ts.Bits, PointerLevel: ts.Ptr, ElemCount: ts.Count}
	for _, m := range ts.Members {
		mt, err := buildType(m)
		if err != nil {
			return mir.Type{}, err
		}
		t.Members = append(t.Members, mt)
	}
	return t, nil
}

var relations = map[string]mir.Relation{
	"eq": mir.EQ, "ne": mir.NE, "lt": mir.LT, "le": mir.LE,
	"gt": mir.GT, "ge": mir.GE, "ltu": mir.LTU, "leu": mir.LEU,
	"gtu": mir.GTU, "geu": mir.GEU,
}

var binaryOps = map[string]mir.InstrKind{
	"and": mir.IAnd, "or": mir.IOr, "xor": mir.IXor, "lsl": mir.ILsl,
	"lsr": mir.ILsr, "add": mir.IAdd, "sub": mir.ISub, "mul": mir.IMul,
	"div": mir.IDiv, "divu": mir.IDivU, "mod": mir.IMod, "modu": mir.IModU,
	"addf": mir.IAddF, "subf": mir.ISubF, "mulf": mir.IMulF, "divf": mir.IDivF,
}

var unaryOps = map[string]mir.InstrKind{
	"sext": mir.ISExt, "zext": mir.IZExt, "trunc": mir.ITrunc,
	"ftoi": mir.IFToI, "itof": mir.IIToF, "bitcast": mir.IBitCast,
}

// env resolves value references while building one function.
type env struct {
	values  map[uint64]*mir.Value
	globals map[string]*mir.Value
	fn      string
}

func (e *env) define(v *mir.Value) *mir.Value {
	e.values[v.ID] = v
	return v
}

func (e *env) resolve(ref string) (*mir.Value, error) {
	if ref == "" {
		return nil, fmt.Errorf("%s: empty value reference", e.fn)
	}
	switch {
	case strings.HasPrefix(ref, "v"):
		id, err := strconv.ParseUint(ref[1:], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad value reference %q", e.fn, ref)
		}
		v, ok := e.values[id]
		if !ok {
			return nil, fmt.Errorf("%s: use of undefined value %q", e.fn, ref)
		}
		return v, nil
	case strings.HasPrefix(ref, "g:"):
		v, ok := e.globals[ref[2:]]
		if !ok {
			return nil, fmt.Errorf("%s: unknown global %q", e.fn, ref[2:])
		}
		return v, nil
	case strings.HasPrefix(ref, "i:"):
		return parseIntConst(ref[2:])
	case strings.HasPrefix(ref, "f:"):
		return parseFPConst(ref[2:])
	}
	return nil, fmt.Errorf("%s: bad value reference %q", e.fn, ref)
}

func parseIntConst(s string) (*mir.Value, error) {
	bits := uint(32)
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		b, err := strconv.ParseUint(s[i+1:], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("bad constant width %q", s)
		}
		bits = uint(b)
		s = s[:i]
	}
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("bad integer constant %q", s)
	}
	return &mir.Value{Kind: mir.VIntConstant, IntVal: v,
		Type: mir.Type{Kind: mir.SInt, Bits: bits}}, nil
}

func parseFPConst(s string) (*mir.Value, error) {
	bits := uint(32)
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		b, err := strconv.ParseUint(s[i+1:], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("bad constant width %q", s)
		}
		bits = uint(b)
		s = s[:i]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("bad float constant %q", s)
	}
	return &mir.Value{Kind: mir.VFPConstant, FloatVal: v,
		Type: mir.Type{Kind: mir.FP, Bits: bits}}, nil
}

func build(spec *moduleSpec) (*mir.Module, error) {
	m := &mir.Module{}
	globals := map[string]*mir.Value{}

	for _, gs := range spec.Globals {
		ty, err := buildType(gs.Type)
		if err != nil {
			return nil, fmt.Errorf("global %s: %w", gs.Name, err)
		}
		val := &mir.Value{ID: gs.ID, Kind: mir.VGlobalVar, Name: gs.Name, Type: ty}
		globals[gs.Name] = val
		m.Globals = append(m.Globals, &mir.GlobalVar{
			Value:      val,
			InitList:   gs.Init,
			InitString: gs.InitString,
			InitSymbol: gs.InitSymbol,
		})
	}

	for _, fs := range spec.Functions {
		fn, err := buildFunction(&fs, globals)
		if err != nil {
			return nil, err
		}
		m.Functions = append(m.Functions, fn)
	}
	return m, nil
}

func buildFunction(fs *funcSpec, globals map[string]*mir.Value) (*mir.Function, error) {
	ret, err := buildType(fs.Ret)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", fs.Name, err)
	}
	fn := &mir.Function{
		Name:            fs.Name,
		RetType:         ret,
		Returns:         fs.Returns,
		DeclarationOnly: fs.Declaration,
	}

	e := &env{values: map[uint64]*mir.Value{}, globals: globals, fn: fs.Name}

	for _, ps := range fs.Params {
		ty, err := buildType(ps.Type)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", fs.Name, err)
		}
		p := e.define(&mir.Value{
			ID: ps.ID, Kind: mir.VParameter, Name: ps.Name, Type: ty,
			IsImplicitStructPtr: ps.StructPtr,
		})
		fn.Params = append(fn.Params, p)
	}

	for _, bs := range fs.Blocks {
		bb := &mir.BasicBlock{Name: bs.Name}
		for _, is := range bs.Instrs {
			in, err := e.buildInstruction(&is)
			if err != nil {
				return nil, fmt.Errorf("function %s, block %s: %w", fs.Name, bs.Name, err)
			}
			bb.Instructions = append(bb.Instructions, in)
		}
		fn.Blocks = append(fn.Blocks, bb)
	}
	return fn, nil
}

func (e *env) buildInstruction(is *instrSpec) (*mir.Instruction, error) {
	if kind, ok := binaryOps[is.Op]; ok {
		ty, err := buildType(is.Type)
		if err != nil {
			return nil, err
		}
		lhs, err := e.resolve(is.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := e.resolve(is.Rhs)
		if err != nil {
			return nil, err
		}
		res := e.define(&mir.Value{ID: is.ID, Kind: mir.VRegister, Type: ty})
		return &mir.Instruction{Kind: kind, Result: res, Left: lhs, Right: rhs}, nil
	}

	if kind, ok := unaryOps[is.Op]; ok {
		ty, err := buildType(is.Type)
		if err != nil {
			return nil, err
		}
		src, err := e.resolve(is.Src)
		if err != nil {
			return nil, err
		}
		res := e.define(&mir.Value{ID: is.ID, Kind: mir.VRegister, Type: ty})
		return &mir.Instruction{Kind: kind, Result: res, Left: src}, nil
	}

	switch is.Op {
	case "alloca":
		ty, err := buildType(is.Type)
		if err != nil {
			return nil, err
		}
		res := e.define(&mir.Value{ID: is.ID, Kind: mir.VStackAlloc, Type: ty})
		return &mir.Instruction{Kind: mir.IStackAlloc, Result: res}, nil

	case "store":
		src, err := e.resolve(is.Src)
		if err != nil {
			return nil, err
		}
		addr, err := e.resolve(is.Addr)
		if err != nil {
			return nil, err
		}
		return &mir.Instruction{Kind: mir.IStore, Left: src, Addr: addr}, nil

	case "load":
		ty, err := buildType(is.Type)
		if err != nil {
			return nil, err
		}
		addr, err := e.resolve(is.Addr)
		if err != nil {
			return nil, err
		}
		res := e.define(&mir.Value{ID: is.ID, Kind: mir.VRegister, Type: ty})
		return &mir.Instruction{Kind: mir.ILoad, Result: res, Addr: addr}, nil

	case "gep":
		ty, err := buildType(is.Type)
		if err != nil {
			return nil, err
		}
		base, err := e.resolve(is.Addr)
		if err != nil {
			return nil, err
		}
		idx, err := e.resolve(is.Index)
		if err != nil {
			return nil, err
		}
		res := e.define(&mir.Value{ID: is.ID, Kind: mir.VRegister, Type: ty})
		return &mir.Instruction{Kind: mir.IGEP, Result: res, Addr: base, Left: idx}, nil

	case "jump":
		return &mir.Instruction{Kind: mir.IJump, Target: is.Target}, nil

	case "br":
		cond, err := e.resolve(is.Cond)
		if err != nil {
			return nil, err
		}
		return &mir.Instruction{Kind: mir.IBranch, Left: cond,
			Target: is.True, FalseTarget: is.False}, nil

	case "cmp", "cmpf":
		rel, ok := relations[is.Rel]
		if !ok {
			return nil, fmt.Errorf("unknown relation %q", is.Rel)
		}
		lhs, err := e.resolve(is.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := e.resolve(is.Rhs)
		if err != nil {
			return nil, err
		}
		kind := mir.ICmp
		if is.Op == "cmpf" {
			kind = mir.ICmpF
		}
		res := e.define(&mir.Value{ID: is.ID, Kind: mir.VRegister,
			Type: mir.Type{Kind: mir.SInt, Bits: 1}})
		return &mir.Instruction{Kind: kind, Result: res, Relation: rel,
			Left: lhs, Right: rhs}, nil

	case "call":
		ret, err := buildType(is.Ret)
		if err != nil {
			return nil, err
		}
		in := &mir.Instruction{Kind: mir.ICall, Callee: is.Callee,
			RetType: ret, ImplicitStructArgIndex: -1}
		if is.StructArg != nil {
			in.ImplicitStructArgIndex = *is.StructArg
		}
		for _, ref := range is.Args {
			arg, err := e.resolve(ref)
			if err != nil {
				return nil, err
			}
			in.Args = append(in.Args, arg)
		}
		if !ret.IsVoid() {
			in.Result = e.define(&mir.Value{ID: is.ID, Kind: mir.VRegister, Type: ret})
		}
		return in, nil

	case "ret":
		in := &mir.Instruction{Kind: mir.IRet}
		if is.Value != "" {
			val, err := e.resolve(is.Value)
			if err != nil {
				return nil, err
			}
			in.Left = val
		}
		return in, nil

	case "memcpy":
		dst, err := e.resolve(is.Addr)
		if err != nil {
			return nil, err
		}
		src, err := e.resolve(is.Src)
		if err != nil {
			return nil, err
		}
		return &mir.Instruction{Kind: mir.IMemCopy, Addr: dst, Left: src, Bytes: is.Bytes}, nil
	}

	return nil, fmt.Errorf("unknown instruction %q", is.Op)
}
