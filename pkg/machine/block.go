package machine

// BasicBlock is a named ordered instruction sequence inside a
// function.
type BasicBlock struct {
	Name         string
	Instructions []*Instruction
	Parent       *Function `json:"-"`
}

// NewBasicBlock creates an empty block.
func NewBasicBlock(name string, parent *Function) *BasicBlock {
	return &BasicBlock{Name: name, Parent: parent}
}

// Append adds an instruction to the end of the block.
func (bb *BasicBlock) Append(mi *Instruction) *Instruction {
	mi.Parent = bb
	bb.Instructions = append(bb.Instructions, mi)
	return mi
}

// IndexOf returns the position of mi in the block, or -1.
func (bb *BasicBlock) IndexOf(mi *Instruction) int {
	for i, in := range bb.Instructions {
		if in == mi {
			return i
		}
	}
	return -1
}

// InsertAt places mi at position i, shifting the rest down.
func (bb *BasicBlock) InsertAt(i int, mi *Instruction) *Instruction {
	mi.Parent = bb
	bb.Instructions = append(bb.Instructions, nil)
	copy(bb.Instructions[i+1:], bb.Instructions[i:])
	bb.Instructions[i] = mi
	return mi
}

// InsertBefore places mi immediately before the given instruction,
// which must be in the block.
func (bb *BasicBlock) InsertBefore(mi, before *Instruction) *Instruction {
	i := bb.IndexOf(before)
	if i < 0 {
		panic("machine: InsertBefore target not in block " + bb.Name)
	}
	return bb.InsertAt(i, mi)
}

// InsertAfter places mi immediately after the given instruction,
// which must be in the block.
func (bb *BasicBlock) InsertAfter(mi, after *Instruction) *Instruction {
	i := bb.IndexOf(after)
	if i < 0 {
		panic("machine: InsertAfter target not in block " + bb.Name)
	}
	return bb.InsertAt(i+1, mi)
}

// Erase removes the instruction from the block.
func (bb *BasicBlock) Erase(mi *Instruction) {
	i := bb.IndexOf(mi)
	if i < 0 {
		return
	}
	bb.Instructions = append(bb.Instructions[:i], bb.Instructions[i+1:]...)
}

// Last returns the final instruction of the block, or nil when empty.
func (bb *BasicBlock) Last() *Instruction {
	if len(bb.Instructions) == 0 {
		return nil
	}
	return bb.Instructions[len(bb.Instructions)-1]
}
