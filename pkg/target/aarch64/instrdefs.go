package aarch64

import (
	"fmt"

	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/target"
)

// Target opcodes. These stay below machine.TargetOpcodeEnd.
const (
	ADD_rrr machine.Opcode = iota
	ADD_rri
	AND_rrr
	AND_rri
	ORR_rrr
	ORR_rri
	EOR_rrr
	EOR_rri
	LSL_rrr
	LSL_rri
	LSR_rrr
	LSR_rri
	SUB_rrr
	SUB_rri
	MUL_rrr
	MUL_rri
	MSUB
	SDIV_rrr
	UDIV_rrr
	CMP_rr
	CMP_ri
	CSET_eq
	CSET_ne
	CSET_lt
	CSET_le
	CSET_gt
	CSET_ge
	CSET_lo
	CSET_ls
	CSET_hi
	CSET_hs
	SXTB
	SXTH
	SXTW
	UXTB
	UXTH
	UXTW
	MOV_rc
	MOV_rr
	MOVK_ri
	MVN_rr
	FADD_rrr
	FSUB_rrr
	FMUL_rrr
	FDIV_rrr
	FMOV_rr
	FMOV_ri
	FCMP_rr
	FCMP_ri
	SCVTF_rr
	FCVTZS_rr
	ADRP
	LDR
	LDRB
	LDRH
	LDRSB
	LDRSH
	STR
	STRB
	STRH
	STP
	LDP
	STP_pre
	LDP_post
	BEQ
	BNE
	BLT
	BLE
	BGT
	BGE
	BLO
	BLS
	BHI
	BHS
	B
	BL
	RET
)

var instrDefs = map[machine.Opcode]*target.InstructionDef{
	ADD_rrr:   {Opcode: ADD_rrr, Mnemonic: "add", Operands: []target.OperandClass{target.GPR, target.GPR, target.GPR}, Trailer: ""},
	ADD_rri:   {Opcode: ADD_rri, Mnemonic: "add", Operands: []target.OperandClass{target.GPR, target.GPR, target.UIMM12}, Trailer: ""},
	AND_rrr:   {Opcode: AND_rrr, Mnemonic: "and", Operands: []target.OperandClass{target.GPR, target.GPR, target.GPR}, Trailer: ""},
	AND_rri:   {Opcode: AND_rri, Mnemonic: "and", Operands: []target.OperandClass{target.GPR, target.GPR, target.UIMM12}, Trailer: ""},
	ORR_rrr:   {Opcode: ORR_rrr, Mnemonic: "orr", Operands: []target.OperandClass{target.GPR, target.GPR, target.GPR}, Trailer: ""},
	ORR_rri:   {Opcode: ORR_rri, Mnemonic: "orr", Operands: []target.OperandClass{target.GPR, target.GPR, target.UIMM12}, Trailer: ""},
	EOR_rrr:   {Opcode: EOR_rrr, Mnemonic: "eor", Operands: []target.OperandClass{target.GPR, target.GPR, target.GPR}, Trailer: ""},
	EOR_rri:   {Opcode: EOR_rri, Mnemonic: "eor", Operands: []target.OperandClass{target.GPR, target.GPR, target.UIMM12}, Trailer: ""},
	LSL_rrr:   {Opcode: LSL_rrr, Mnemonic: "lsl", Operands: []target.OperandClass{target.GPR, target.GPR, target.GPR}, Trailer: ""},
	LSL_rri:   {Opcode: LSL_rri, Mnemonic: "lsl", Operands: []target.OperandClass{target.GPR, target.GPR, target.UIMM12}, Trailer: ""},
	LSR_rrr:   {Opcode: LSR_rrr, Mnemonic: "lsr", Operands: []target.OperandClass{target.GPR, target.GPR, target.GPR}, Trailer: ""},
	LSR_rri:   {Opcode: LSR_rri, Mnemonic: "lsr", Operands: []target.OperandClass{target.GPR, target.GPR, target.UIMM12}, Trailer: ""},
	SUB_rrr:   {Opcode: SUB_rrr, Mnemonic: "sub", Operands: []target.OperandClass{target.GPR, target.GPR, target.GPR}, Trailer: ""},
	SUB_rri:   {Opcode: SUB_rri, Mnemonic: "sub", Operands: []target.OperandClass{target.GPR, target.GPR, target.UIMM12}, Trailer: ""},
	MUL_rrr:   {Opcode: MUL_rrr, Mnemonic: "mul", Operands: []target.OperandClass{target.GPR, target.GPR, target.GPR}, Trailer: ""},
	MUL_rri:   {Opcode: MUL_rri, Mnemonic: "mul", Operands: []target.OperandClass{target.GPR, target.GPR, target.UIMM12}, Trailer: ""},
	MSUB:      {Opcode: MSUB, Mnemonic: "msub", Operands: []target.OperandClass{target.GPR, target.GPR, target.GPR, target.GPR}, Trailer: ""},
	SDIV_rrr:  {Opcode: SDIV_rrr, Mnemonic: "sdiv", Operands: []target.OperandClass{target.GPR, target.GPR, target.GPR}, Trailer: ""},
	UDIV_rrr:  {Opcode: UDIV_rrr, Mnemonic: "udiv", Operands: []target.OperandClass{target.GPR, target.GPR, target.GPR}, Trailer: ""},
	CMP_rr:    {Opcode: CMP_rr, Mnemonic: "cmp", Operands: []target.OperandClass{target.GPR, target.GPR}, Trailer: ""},
	CMP_ri:    {Opcode: CMP_ri, Mnemonic: "cmp", Operands: []target.OperandClass{target.GPR, target.SIMM12}, Trailer: ""},
	CSET_eq:   {Opcode: CSET_eq, Mnemonic: "cset", Operands: []target.OperandClass{target.GPR32}, Trailer: "eq"},
	CSET_ne:   {Opcode: CSET_ne, Mnemonic: "cset", Operands: []target.OperandClass{target.GPR32}, Trailer: "ne"},
	CSET_lt:   {Opcode: CSET_lt, Mnemonic: "cset", Operands: []target.OperandClass{target.GPR32}, Trailer: "lt"},
	CSET_le:   {Opcode: CSET_le, Mnemonic: "cset", Operands: []target.OperandClass{target.GPR32}, Trailer: "le"},
	CSET_gt:   {Opcode: CSET_gt, Mnemonic: "cset", Operands: []target.OperandClass{target.GPR32}, Trailer: "gt"},
	CSET_ge:   {Opcode: CSET_ge, Mnemonic: "cset", Operands: []target.OperandClass{target.GPR32}, Trailer: "ge"},
	CSET_lo:   {Opcode: CSET_lo, Mnemonic: "cset", Operands: []target.OperandClass{target.GPR32}, Trailer: "lo"},
	CSET_ls:   {Opcode: CSET_ls, Mnemonic: "cset", Operands: []target.OperandClass{target.GPR32}, Trailer: "ls"},
	CSET_hi:   {Opcode: CSET_hi, Mnemonic: "cset", Operands: []target.OperandClass{target.GPR32}, Trailer: "hi"},
	CSET_hs:   {Opcode: CSET_hs, Mnemonic: "cset", Operands: []target.OperandClass{target.GPR32}, Trailer: "hs"},
	SXTB:      {Opcode: SXTB, Mnemonic: "sxtb", Operands: []target.OperandClass{target.GPR, target.GPR32}, Trailer: ""},
	SXTH:      {Opcode: SXTH, Mnemonic: "sxth", Operands: []target.OperandClass{target.GPR, target.GPR32}, Trailer: ""},
	SXTW:      {Opcode: SXTW, Mnemonic: "sxtw", Operands: []target.OperandClass{target.GPR64, target.GPR32}, Trailer: ""},
	UXTB:      {Opcode: UXTB, Mnemonic: "uxtb", Operands: []target.OperandClass{target.GPR32, target.GPR32}, Trailer: ""},
	UXTH:      {Opcode: UXTH, Mnemonic: "uxth", Operands: []target.OperandClass{target.GPR32, target.GPR32}, Trailer: ""},
	UXTW:      {Opcode: UXTW, Mnemonic: "uxtw", Operands: []target.OperandClass{target.GPR32, target.GPR32}, Trailer: ""},
	MOV_rc:    {Opcode: MOV_rc, Mnemonic: "mov", Operands: []target.OperandClass{target.GPR, target.UIMM16}, Trailer: ""},
	MOV_rr:    {Opcode: MOV_rr, Mnemonic: "mov", Operands: []target.OperandClass{target.GPR, target.GPR}, Trailer: ""},
	MOVK_ri:   {Opcode: MOVK_ri, Mnemonic: "movk", Operands: []target.OperandClass{target.GPR, target.UIMM16, target.UIMM4}, Trailer: ""},
	MVN_rr:    {Opcode: MVN_rr, Mnemonic: "mvn", Operands: []target.OperandClass{target.GPR, target.GPR}, Trailer: ""},
	FADD_rrr:  {Opcode: FADD_rrr, Mnemonic: "fadd", Operands: []target.OperandClass{target.FPR, target.FPR, target.FPR}, Trailer: ""},
	FSUB_rrr:  {Opcode: FSUB_rrr, Mnemonic: "fsub", Operands: []target.OperandClass{target.FPR, target.FPR, target.FPR}, Trailer: ""},
	FMUL_rrr:  {Opcode: FMUL_rrr, Mnemonic: "fmul", Operands: []target.OperandClass{target.FPR, target.FPR, target.FPR}, Trailer: ""},
	FDIV_rrr:  {Opcode: FDIV_rrr, Mnemonic: "fdiv", Operands: []target.OperandClass{target.FPR, target.FPR, target.FPR}, Trailer: ""},
	FMOV_rr:   {Opcode: FMOV_rr, Mnemonic: "fmov", Operands: []target.OperandClass{target.FPR, target.FPR}, Trailer: ""},
	FMOV_ri:   {Opcode: FMOV_ri, Mnemonic: "fmov", Operands: []target.OperandClass{target.FPR, target.UIMM16}, Trailer: ""},
	FCMP_rr:   {Opcode: FCMP_rr, Mnemonic: "fcmp", Operands: []target.OperandClass{target.FPR, target.FPR}, Trailer: ""},
	FCMP_ri:   {Opcode: FCMP_ri, Mnemonic: "fcmp", Operands: []target.OperandClass{target.FPR, target.UIMM16}, Trailer: ""},
	SCVTF_rr:  {Opcode: SCVTF_rr, Mnemonic: "scvtf", Operands: []target.OperandClass{target.FPR, target.GPR}, Trailer: ""},
	FCVTZS_rr: {Opcode: FCVTZS_rr, Mnemonic: "fcvtzs", Operands: []target.OperandClass{target.GPR, target.FPR}, Trailer: ""},
	ADRP:      {Opcode: ADRP, Mnemonic: "adrp", Operands: []target.OperandClass{target.GPR64, target.SYM}, Trailer: ""},
	LDR:       {Opcode: LDR, Mnemonic: "ldr", Operands: []target.OperandClass{target.GPR, target.MEM}, Trailer: ""},
	LDRB:      {Opcode: LDRB, Mnemonic: "ldrb", Operands: []target.OperandClass{target.GPR32, target.MEM}, Trailer: ""},
	LDRH:      {Opcode: LDRH, Mnemonic: "ldrh", Operands: []target.OperandClass{target.GPR32, target.MEM}, Trailer: ""},
	LDRSB:     {Opcode: LDRSB, Mnemonic: "ldrsb", Operands: []target.OperandClass{target.GPR, target.MEM}, Trailer: ""},
	LDRSH:     {Opcode: LDRSH, Mnemonic: "ldrsh", Operands: []target.OperandClass{target.GPR, target.MEM}, Trailer: ""},
	STR:       {Opcode: STR, Mnemonic: "str", Operands: []target.OperandClass{target.MEM, target.GPR}, Trailer: ""},
	STRB:      {Opcode: STRB, Mnemonic: "strb", Operands: []target.OperandClass{target.MEM, target.GPR32}, Trailer: ""},
	STRH:      {Opcode: STRH, Mnemonic: "strh", Operands: []target.OperandClass{target.MEM, target.GPR32}, Trailer: ""},
	STP:       {Opcode: STP, Mnemonic: "stp", Operands: []target.OperandClass{target.GPR64, target.GPR64, target.MEM}, Trailer: ""},
	LDP:       {Opcode: LDP, Mnemonic: "ldp", Operands: []target.OperandClass{target.GPR64, target.GPR64, target.MEM}, Trailer: ""},
	STP_pre:   {Opcode: STP_pre, Mnemonic: "stp", Operands: []target.OperandClass{target.GPR64, target.GPR64, target.MEM}, Trailer: ""},
	LDP_post:  {Opcode: LDP_post, Mnemonic: "ldp", Operands: []target.OperandClass{target.GPR64, target.GPR64, target.MEM}, Trailer: ""},
	BEQ:       {Opcode: BEQ, Mnemonic: "b.eq", Operands: []target.OperandClass{target.LBL}, Trailer: ""},
	BNE:       {Opcode: BNE, Mnemonic: "b.ne", Operands: []target.OperandClass{target.LBL}, Trailer: ""},
	BLT:       {Opcode: BLT, Mnemonic: "b.lt", Operands: []target.OperandClass{target.LBL}, Trailer: ""},
	BLE:       {Opcode: BLE, Mnemonic: "b.le", Operands: []target.OperandClass{target.LBL}, Trailer: ""},
	BGT:       {Opcode: BGT, Mnemonic: "b.gt", Operands: []target.OperandClass{target.LBL}, Trailer: ""},
	BGE:       {Opcode: BGE, Mnemonic: "b.ge", Operands: []target.OperandClass{target.LBL}, Trailer: ""},
	BLO:       {Opcode: BLO, Mnemonic: "b.lo", Operands: []target.OperandClass{target.LBL}, Trailer: ""},
	BLS:       {Opcode: BLS, Mnemonic: "b.ls", Operands: []target.OperandClass{target.LBL}, Trailer: ""},
	BHI:       {Opcode: BHI, Mnemonic: "b.hi", Operands: []target.OperandClass{target.LBL}, Trailer: ""},
	BHS:       {Opcode: BHS, Mnemonic: "b.hs", Operands: []target.OperandClass{target.LBL}, Trailer: ""},
	B:         {Opcode: B, Mnemonic: "b", Operands: []target.OperandClass{target.LBL}, Trailer: ""},
	BL:        {Opcode: BL, Mnemonic: "bl", Operands: []target.OperandClass{target.SYM}, Trailer: ""},
	RET:       {Opcode: RET, Mnemonic: "ret", Operands: nil, Trailer: ""},
}

func (t *Target) InstrDef(op machine.Opcode) *target.InstructionDef {
	def, ok := instrDefs[op]
	if !ok {
		panic(fmt.Sprintf("aarch64: no instruction definition for opcode %d", op))
	}
	return def
}

func (t *Target) Mnemonic(op machine.Opcode) string { return t.InstrDef(op).Mnemonic }
