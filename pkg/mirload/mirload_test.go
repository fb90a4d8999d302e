package mirload

import (
	"strings"
	"testing"

	"github.com/minicc-lang/minicc/pkg/mir"
)

const addYAML = `
functions:
  - name: add
    ret: {kind: sint, bits: 32}
    params:
      - {id: 0, type: {kind: sint, bits: 32}}
      - {id: 1, type: {kind: sint, bits: 32}}
    blocks:
      - name: entry
        instrs:
          - {op: add, id: 2, type: {kind: sint, bits: 32}, lhs: v0, rhs: v1}
          - {op: ret, value: v2}
`

func TestLoadSimpleFunction(t *testing.T) {
	m, err := Load(strings.NewReader(addYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(m.Functions) != 1 {
		t.Fatalf("expected one function, got %d", len(m.Functions))
	}
	fn := m.Functions[0]
	if fn.Name != "add" || len(fn.Params) != 2 || len(fn.Blocks) != 1 {
		t.Fatalf("function shape wrong: %+v", fn)
	}

	instrs := fn.Blocks[0].Instructions
	if len(instrs) != 2 {
		t.Fatalf("expected two instructions, got %d", len(instrs))
	}
	add := instrs[0]
	if add.Kind != mir.IAdd || add.Result.ID != 2 {
		t.Errorf("add decoded wrong: %+v", add)
	}
	if add.Left != fn.Params[0] || add.Right != fn.Params[1] {
		t.Errorf("operand references must resolve to the parameter values")
	}
	ret := instrs[1]
	if ret.Kind != mir.IRet || ret.Left != add.Result {
		t.Errorf("return should reference the sum")
	}
}

func TestLoadConstantsAndGlobals(t *testing.T) {
	const src = `
globals:
  - {name: counter, id: 100, type: {kind: sint, bits: 32}, init: [7]}
functions:
  - name: bump
    ret: {kind: void}
    blocks:
      - name: entry
        instrs:
          - {op: load, id: 0, type: {kind: sint, bits: 32}, addr: "g:counter"}
          - {op: add, id: 1, type: {kind: sint, bits: 32}, lhs: v0, rhs: "i:1"}
          - {op: store, src: v1, addr: "g:counter"}
          - {op: ret}
`
	m, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(m.Globals) != 1 || m.Globals[0].Value.Name != "counter" {
		t.Fatalf("global lost: %+v", m.Globals)
	}
	if m.Globals[0].InitList[0] != 7 {
		t.Errorf("initializer lost")
	}

	instrs := m.Functions[0].Blocks[0].Instructions
	if instrs[0].Addr.Kind != mir.VGlobalVar {
		t.Errorf("load address should be the global")
	}
	rhs := instrs[1].Right
	if rhs.Kind != mir.VIntConstant || rhs.IntVal != 1 || rhs.Type.Bits != 32 {
		t.Errorf("constant decoded wrong: %+v", rhs)
	}
}

func TestLoadBranchAndCompare(t *testing.T) {
	const src = `
functions:
  - name: f
    ret: {kind: void}
    params:
      - {id: 0, type: {kind: sint, bits: 32}}
    blocks:
      - name: entry
        instrs:
          - {op: cmp, id: 1, rel: lt, lhs: v0, rhs: "i:10"}
          - {op: br, cond: v1, true: then, false: done}
      - name: then
        instrs:
          - {op: jump, target: done}
      - name: done
        instrs:
          - {op: ret}
`
	m, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	entry := m.Functions[0].Blocks[0].Instructions
	if entry[0].Relation != mir.LT {
		t.Errorf("relation decoded wrong: %v", entry[0].Relation)
	}
	br := entry[1]
	if br.Target != "then" || br.FalseTarget != "done" || !br.HasFalseLabel() {
		t.Errorf("branch labels wrong: %+v", br)
	}
}

func TestCallDefaultsImplicitStructIndex(t *testing.T) {
	const src = `
functions:
  - name: f
    ret: {kind: void}
    blocks:
      - name: entry
        instrs:
          - {op: call, id: 0, callee: g, ret: {kind: void}}
          - {op: ret}
`
	m, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	call := m.Functions[0].Blocks[0].Instructions[0]
	if call.ImplicitStructArgIndex != -1 {
		t.Errorf("calls without struct return must get index -1, got %d", call.ImplicitStructArgIndex)
	}
	if call.Result != nil {
		t.Errorf("void call must not define a value")
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"undefined value", `
functions:
  - name: f
    ret: {kind: void}
    blocks:
      - name: entry
        instrs:
          - {op: ret, value: v9}
`},
		{"unknown relation", `
functions:
  - name: f
    ret: {kind: void}
    blocks:
      - name: entry
        instrs:
          - {op: cmp, id: 0, rel: sideways, lhs: "i:1", rhs: "i:2"}
`},
		{"unknown instruction", `
functions:
  - name: f
    ret: {kind: void}
    blocks:
      - name: entry
        instrs:
          - {op: frobnicate}
`},
		{"unknown field", `
functions:
  - name: f
    ret: {kind: void}
    wibble: true
`},
	}
	for _, tc := range cases {
		if _, err := Load(strings.NewReader(tc.src)); err == nil {
			t.Errorf("%s: expected an error", tc.name)
		}
	}
}
