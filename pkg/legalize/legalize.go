// Package legalize rewrites operations the target cannot express:
// sub register width definitions are widened, immediates too wide for
// their opcode's field are materialized into registers, modulo is
// expanded to a divide/multiply/subtract sequence, compares are pulled
// next to their consuming branch and out of range conditional branches
// get a trampoline. Running the pass twice is a no-op the second time.
package legalize

import (
	"fmt"

	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/target"
)

// FunctionLegalizer is implemented by targets needing an extra
// function wide legalization sweep (the 64 bit elimination on
// riscv32).
type FunctionLegalizer interface {
	LegalizeFunction(f *machine.Function)
}

// BranchRanger is implemented by targets whose conditional branch
// displacement is short enough to overflow on real functions.
type BranchRanger interface {
	BranchRangeBytes() int64
}

// Run legalizes every function of the module in place.
func Run(m *machine.Module, tm target.Machine) {
	for _, f := range m.Functions {
		if fl, ok := tm.(FunctionLegalizer); ok {
			fl.LegalizeFunction(f)
		}
		legalizeFunction(f, tm)
		if br, ok := tm.(BranchRanger); ok {
			insertTrampolines(f, br.BranchRangeBytes())
		}
	}
}

func legalizeFunction(f *machine.Function, tm target.Machine) {
	minWidth := tm.MinRegisterWidth()

	for _, bb := range f.Blocks {
		for i := 0; i < len(bb.Instructions); i++ {
			mi := bb.Instructions[i]

			if mi.Opcode == machine.MOD || mi.Opcode == machine.MODU {
				expandModulo(bb, i, mi)
				i-- // revisit the expansion for widths and immediates
				continue
			}

			widenDef(mi, minWidth)

			if n := splitWideImmediate(mi, tm); n > 0 {
				i += n
			}
		}
		normalizeCompareBranch(bb)
	}
}

// widenDef raises sub minimum width definitions to the minimum
// register width; the late sub register pass narrows the printed name
// back down where the template requires it.
func widenDef(mi *machine.Instruction, minWidth uint) {
	def := mi.Def()
	if def == nil || !def.IsAnyReg() {
		return
	}
	if def.Type.IsPointer() {
		return
	}
	if def.Size() < minWidth {
		def.SetSize(minWidth)
	}
}

// splitWideImmediate materializes immediates that do not fit the
// opcode's immediate field, returning the number of instructions
// inserted in front of mi.
func splitWideImmediate(mi *machine.Instruction, tm target.Machine) int {
	rule, hasRule := tm.ImmRuleFor(mi.Opcode)
	start := 0
	if mi.HasDef() {
		start = 1
	}
	inserted := 0
	for idx := start; idx < mi.OperandCount(); idx++ {
		op := mi.Operand(idx)
		if !op.IsIntImmediate() {
			continue
		}
		// no target has an immediate multiply
		if hasRule && rule.Fits(op.IntVal) && mi.Opcode != machine.MUL {
			continue
		}
		if !hasRule && !mi.Opcode.IsGeneric() {
			continue
		}
		if !hasRule {
			// opcodes with no immediate form at all keep their
			// immediate only if selection can cope; multiplies,
			// divides, modulo and stored values always go through a
			// register
			switch mi.Opcode {
			case machine.MUL, machine.DIV, machine.DIVU, machine.MOD, machine.MODU, machine.STORE:
			default:
				continue
			}
		}
		before := len(mi.Parent.Instructions)
		var reg machine.Operand
		tm.MaterializeConstant(mi, op.IntVal, &reg, false)
		mi.Operands[idx] = reg
		inserted += len(mi.Parent.Instructions) - before
	}
	return inserted
}

// expandModulo rewrites a MOD into the three instruction
// divide/multiply/subtract form, since neither initial target has a
// hardware remainder for it at this point in the pipeline.
func expandModulo(bb *machine.BasicBlock, idx int, mi *machine.Instruction) {
	mf := bb.Parent

	divOp := machine.DIV
	if mi.Opcode == machine.MODU {
		divOp = machine.DIVU
	}

	dest := *mi.Operand(0)
	lhs := *mi.Operand(1)
	rhs := *mi.Operand(2)
	bits := dest.Size()

	quot := machine.NewVirtualRegister(mf.NextAvailableVReg(), bits)
	prod := machine.NewVirtualRegister(mf.NextAvailableVReg(), bits)

	div := machine.NewInstruction(divOp, bb)
	div.AddOperand(quot)
	div.AddOperand(lhs)
	div.AddOperand(rhs)

	mul := machine.NewInstruction(machine.MUL, bb)
	mul.AddOperand(prod)
	mul.AddOperand(quot)
	mul.AddOperand(rhs)

	sub := machine.NewInstruction(machine.SUB, bb)
	sub.AddOperand(dest)
	sub.AddOperand(lhs)
	sub.AddOperand(prod)

	bb.Erase(mi)
	bb.InsertAt(idx, div)
	bb.InsertAt(idx+1, mul)
	bb.InsertAt(idx+2, sub)
}

// normalizeCompareBranch moves a compare directly in front of the
// branch consuming it, so flag based targets can fuse them. The move
// only happens when the branch is the compare's sole consumer.
func normalizeCompareBranch(bb *machine.BasicBlock) {
	for bi, br := range bb.Instructions {
		if br.Opcode != machine.BRANCH {
			continue
		}
		cond := br.Operand(0)
		if cond == nil || !cond.IsVirtualReg() {
			continue
		}

		cmpIdx := -1
		uses := 0
		for i := 0; i < bi; i++ {
			mi := bb.Instructions[i]
			if (mi.Opcode == machine.CMP || mi.Opcode == machine.CMPF) &&
				mi.HasDef() && mi.Def().IsVirtualReg() && mi.Def().Reg == cond.Reg {
				cmpIdx = i
			}
			start := 0
			if mi.HasDef() {
				start = 1
			}
			for oi := start; oi < mi.OperandCount(); oi++ {
				if op := mi.Operand(oi); op.IsVirtualReg() && op.Reg == cond.Reg {
					uses++
				}
			}
		}
		if cmpIdx < 0 || cmpIdx == bi-1 || uses > 0 {
			continue
		}
		cmp := bb.Instructions[cmpIdx]
		bb.Erase(cmp)
		bb.InsertAt(bi-1, cmp)
	}
}

var inverted = map[machine.Relation]machine.Relation{
	machine.EQ: machine.NE, machine.NE: machine.EQ,
	machine.LT: machine.GE, machine.GE: machine.LT,
	machine.LE: machine.GT, machine.GT: machine.LE,
	machine.LTU: machine.GEU, machine.GEU: machine.LTU,
	machine.LEU: machine.GTU, machine.GTU: machine.LEU,
}

// invertBranchCondition flips the relation of the compare feeding the
// branch; without one, the condition value itself is xored with 1.
func invertBranchCondition(bb *machine.BasicBlock, brIdx int, br *machine.Instruction) {
	if brIdx > 0 {
		prev := bb.Instructions[brIdx-1]
		if prev.Opcode == machine.CMP || prev.Opcode == machine.CMPF {
			prev.Relation = inverted[prev.Relation]
			return
		}
	}
	mf := bb.Parent
	cond := br.Operand(0)
	flipped := machine.NewVirtualRegister(mf.NextAvailableVReg(), cond.Size())
	x := machine.NewInstruction(machine.XOR, bb)
	x.AddOperand(flipped)
	x.AddOperand(*cond)
	x.AddImmediate(1, cond.Size())
	bb.InsertAt(brIdx, x)
	*cond = flipped
}

// insertTrampolines rewrites conditional branches whose estimated
// displacement overflows the target's branch range into a short
// branch over an unconditional jump. The estimate assumes four bytes
// per instruction.
func insertTrampolines(f *machine.Function, rangeBytes int64) {
	// linear positions of every block start
	pos := map[string]int64{}
	var counter int64
	for _, bb := range f.Blocks {
		pos[bb.Name] = counter
		counter += int64(len(bb.Instructions))
	}

	var counter2 int64
	for bi := 0; bi < len(f.Blocks); bi++ {
		bb := f.Blocks[bi]
		for ii := 0; ii < len(bb.Instructions); ii++ {
			mi := bb.Instructions[ii]
			counter2++
			if mi.Opcode != machine.BRANCH {
				continue
			}
			// only the conditional target is range limited; an
			// explicit false label is lowered to a full range jump
			lbl := mi.Operand(1)
			tgt, ok := pos[lbl.Symbol]
			if !ok {
				panic(fmt.Sprintf("legalize: branch to unknown block %q in %s", lbl.Symbol, f.Name))
			}
			dist := (tgt - counter2) * 4
			if dist < 0 {
				dist = -dist
			}
			if dist < rangeBytes {
				continue
			}

			// split the block: the inverted branch hops over an
			// unconditional jump that covers the long distance
			splitName := bb.Name + ".tramp"
			far := lbl.Symbol
			lbl.Symbol = splitName

			// an explicit false label moves into the split block as
			// a plain jump; the code after a two sided branch is
			// unreachable anyway
			var falseJump *machine.Instruction
			if mi.OperandCount() > 2 {
				falseJump = machine.NewInstruction(machine.JUMP, bb)
				falseJump.AddLabel(mi.Operand(2).Symbol)
				mi.Operands = mi.Operands[:2]
				mi.AddAttribute(machine.AttrFallthroughBranch)
			}
			invertBranchCondition(bb, ii, mi)
			ii = bb.IndexOf(mi)

			jump := machine.NewInstruction(machine.JUMP, bb)
			jump.AddLabel(far)
			rest := append([]*machine.Instruction(nil), bb.Instructions[ii+1:]...)
			bb.Instructions = append(bb.Instructions[:ii+1], jump)

			split := machine.NewBasicBlock(splitName, f)
			if falseJump != nil {
				falseJump.Parent = split
				split.Instructions = append(split.Instructions, falseJump)
			}
			split.Instructions = append(split.Instructions, rest...)
			for _, r := range rest {
				r.Parent = split
			}
			f.Blocks = append(f.Blocks[:bi+1], append([]*machine.BasicBlock{split}, f.Blocks[bi+1:]...)...)
			break
		}
	}
}
