// Package stacking inserts prologues and epilogues: it lays out the
// final frame (save area, locals and spill slots, padded to the
// target's stack alignment), emits the target's frame setup and
// teardown sequences and rewrites every stack slot operand into a
// concrete base register plus offset access.
package stacking

import (
	"fmt"

	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/target"
)

// Run processes every function of the module.
func Run(m *machine.Module, tm target.Machine) {
	for _, f := range m.Functions {
		layoutFrame(f, tm)
		insertPrologueEpilogue(f, tm)
		rewriteStackAccesses(f, tm)
	}
}

func alignUp(v int64, align int64) int64 {
	return (v + align - 1) &^ (align - 1)
}

// layoutFrame assigns every slot its frame offset and freezes the
// total size. Slots go in id order above (or below, when the save
// area sits at the top) the fp/lr and callee save area.
func layoutFrame(f *machine.Function, tm target.Machine) {
	layout := tm.FrameLayout()
	save := layout.SaveAreaBytes(len(f.UsedCalleeSavedRegs))

	cur := int64(0)
	if !layout.SaveAreaAtTop {
		cur = save
	}
	for _, slot := range f.Frame.Slots() {
		align := int64(slot.Alignment)
		if align == 0 {
			align = 1
		}
		cur = alignUp(cur, align)
		slot.Offset = cur
		cur += int64(slot.Size)
	}
	if layout.SaveAreaAtTop {
		cur += save
	}
	f.Frame.ObjSize = alignUp(cur, int64(tm.ABI().StackAlignment))
}

func insertPrologueEpilogue(f *machine.Function, tm target.Machine) {
	if len(f.Blocks) == 0 {
		return
	}

	prologue := tm.GeneratePrologue(f)
	entry := f.Blocks[0]
	for i, mi := range prologue {
		entry.InsertAt(i, mi)
	}

	for _, bb := range f.Blocks {
		for i := 0; i < len(bb.Instructions); i++ {
			mi := bb.Instructions[i]
			if !mi.IsReturn() {
				continue
			}
			for _, e := range tm.GenerateEpilogue(f) {
				bb.InsertAt(i, e)
				i++
			}
		}
	}
}

// rewriteStackAccesses turns abstract slot accesses into base+offset
// memory operands. Loads and stores address memory directly; address
// producing instructions (the selected stack address additions) take
// the base register and the offset as separate operands.
func rewriteStackAccesses(f *machine.Function, tm target.Machine) {
	layout := tm.FrameLayout()
	ptrSize := tm.PointerSize()

	for _, bb := range f.Blocks {
		for _, mi := range bb.Instructions {
			for i := 0; i < len(mi.Operands); i++ {
				op := &mi.Operands[i]
				if !op.IsStackAccess() {
					continue
				}
				slot := f.Frame.Slot(op.Slot())
				if slot == nil {
					panic(fmt.Sprintf("stacking: unknown stack slot %d in %s", op.Slot(), f.Name))
				}
				off := slot.Offset + op.Offset

				if mi.IsLoad() || mi.IsStore() {
					*op = machine.NewMemory(layout.BaseReg, off, ptrSize)
					continue
				}

				// address computation: base register plus immediate
				*op = machine.NewRegister(layout.BaseReg, ptrSize)
				rest := append([]machine.Operand{machine.NewImmediate(off, ptrSize)}, mi.Operands[i+1:]...)
				mi.Operands = append(mi.Operands[:i+1], rest...)
				i++
			}
		}
	}
}
