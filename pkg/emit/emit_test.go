package emit

import (
	"bytes"
	"strings"
	"testing"

	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/target/aarch64"
)

func TestGlobalDirectives(t *testing.T) {
	m := &machine.Module{}

	var counter machine.GlobalData
	counter.Name = "counter"
	counter.Size = 4
	counter.AddScalar(4, 42)
	m.AddGlobal(counter)

	var msg machine.GlobalData
	msg.Name = "msg"
	msg.Size = 6
	msg.AddString("hello")
	m.AddGlobal(msg)

	var buf machine.GlobalData
	buf.Name = "buf"
	buf.Size = 32
	buf.AddZero(32)
	m.AddGlobal(buf)

	var ptr machine.GlobalData
	ptr.Name = "head"
	ptr.Size = 8
	ptr.AddSymbol("buf", 8)
	m.AddGlobal(ptr)

	var out bytes.Buffer
	NewPrinter(&out, aarch64.New()).PrintModule(m)
	got := out.String()

	for _, want := range []string{
		"\t.data\n",
		"\t.globl\tcounter\n",
		"counter:\n",
		"\t.word\t42\n",
		"\t.asciz\t\"hello\"\n",
		"\t.zero\t32\n",
		"\t.quad\tbuf\n",
		"\t.text\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in output:\n%s", want, got)
		}
	}
}

func TestFunctionEmission(t *testing.T) {
	m := &machine.Module{}
	f := machine.NewFunction("main")
	m.AddFunction(f)

	entry := f.AddBlock("entry")
	loop := f.AddBlock("loop")

	jump := machine.NewInstruction(aarch64.B, entry)
	jump.AddLabel("loop")
	entry.Append(jump)

	back := machine.NewInstruction(aarch64.B, loop)
	back.AddLabel("loop")
	loop.Append(back)

	ret := machine.NewInstruction(aarch64.RET, loop)
	loop.Append(ret)

	var out bytes.Buffer
	NewPrinter(&out, aarch64.New()).PrintModule(m)
	got := out.String()

	for _, want := range []string{
		"\t.globl\tmain\n",
		"\t.type\tmain, %function\n",
		"main:\n",
		"main.loop:\n",
		"\tb\tmain.loop\n",
		"\tret\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in output:\n%s", want, got)
		}
	}
}

func TestInstructionFormatting(t *testing.T) {
	m := &machine.Module{}
	f := machine.NewFunction("f")
	m.AddFunction(f)
	bb := f.AddBlock("entry")

	add := machine.NewInstruction(aarch64.ADD_rri, bb)
	add.AddRegister(aarch64.W(0), 32)
	add.AddRegister(aarch64.W(0), 32)
	add.AddImmediate(16, 32)
	bb.Append(add)

	ldr := machine.NewInstruction(aarch64.LDR, bb)
	ldr.AddRegister(aarch64.W(1), 32)
	ldr.AddMemory(aarch64.X(29), 24, 64)
	bb.Append(ldr)

	cset := machine.NewInstruction(aarch64.CSET_eq, bb)
	cset.AddRegister(aarch64.W(2), 32)
	bb.Append(cset)

	movk := machine.NewInstruction(aarch64.MOVK_ri, bb)
	movk.AddRegister(aarch64.W(0), 32)
	movk.AddImmediate(0x1234, 16)
	movk.AddImmediate(16, 8)
	bb.Append(movk)

	var out bytes.Buffer
	NewPrinter(&out, aarch64.New()).PrintModule(m)
	got := out.String()

	for _, want := range []string{
		"\tadd\tw0, w0, #16\n",
		"\tldr\tw1, [x29, #24]\n",
		"\tcset\tw2, eq\n",
		"\tmovk\tw0, #4660, lsl #16\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in output:\n%s", want, got)
		}
	}
}
