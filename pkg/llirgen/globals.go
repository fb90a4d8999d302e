package llirgen

import (
	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/mir"
)

// lowerGlobal turns one MIR global variable into a global data entry:
// zero fill when uninitialized, per member or per element entries for
// aggregates, string literals, and pointer sized symbol references for
// globals initialized with another global's address.
func (t *Translator) lowerGlobal(g *mir.GlobalVar) machine.GlobalData {
	ty := g.Value.Type
	gd := machine.GlobalData{Name: g.Value.Name, Size: ty.ByteSize()}
	ptrBytes := t.tm.PointerSize() / 8

	if ty.IsStruct() || ty.IsArray() {
		if len(g.InitList) == 0 {
			switch {
			case g.InitSymbol != "":
				gd.AddSymbol(g.InitSymbol, ptrBytes)
			case g.InitString != "":
				gd.AddString(g.InitString)
			default:
				gd.AddZero(gd.Size)
			}
			return gd
		}
		if ty.IsStruct() {
			for i, member := range ty.Members {
				if i >= len(g.InitList) {
					panic("llirgen: struct initializer list too short for " + gd.Name)
				}
				gd.AddScalar(member.ByteSize(), g.InitList[i])
			}
			return gd
		}
		elemSize := ty.ElemByteSize()
		for _, v := range g.InitList {
			gd.AddScalar(elemSize, v)
		}
		return gd
	}

	// scalar case
	switch {
	case len(g.InitList) > 0:
		gd.AddScalar(gd.Size, g.InitList[0])
	case g.InitSymbol != "":
		gd.AddSymbol(g.InitSymbol, ptrBytes)
	default:
		gd.AddZero(gd.Size)
	}
	return gd
}
