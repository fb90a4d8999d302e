package selection

import (
	"bytes"
	"fmt"

	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/target"
)

// Run replaces every generic opcode with target opcodes. A generic
// opcode the target's selector rejects is an unsupported feature and
// aborts.
func Run(m *machine.Module, tm target.Machine) {
	for _, f := range m.Functions {
		for _, bb := range f.Blocks {
			for i := 0; i < len(bb.Instructions); i++ {
				mi := bb.Instructions[i]
				if !mi.Opcode.IsGeneric() {
					continue
				}
				if !tm.SelectInstruction(mi) {
					panic(fmt.Sprintf("selection: %s is unsupported on this target (%s, function %s)",
						describe(mi), tm.Name(), f.Name))
				}
				// selection may have inserted instructions around mi
				i = bb.IndexOf(mi)
			}
		}
	}
}

func describe(mi *machine.Instruction) string {
	var buf bytes.Buffer
	machine.NewPrinter(&buf, nil).PrintInstruction(mi)
	return string(bytes.TrimSpace(buf.Bytes()))
}
