package riscv

import (
	"fmt"

	"github.com/minicc-lang/minicc/pkg/machine"
	"github.com/minicc-lang/minicc/pkg/target"
)

// Target opcodes.
const (
	ADD machine.Opcode = iota
	ADDI
	SUB
	AND
	ANDI
	OR
	ORI
	XOR
	XORI
	SLL
	SLLI
	SRL
	SRLI
	SRA
	SRAI
	MUL
	MULHU
	DIV
	DIVU
	SLT
	SLTI
	SLTU
	SLTIU
	LUI
	MV
	LB
	LBU
	LH
	LHU
	LW
	SB
	SH
	SW
	FADD_S
	FSUB_S
	FMUL_S
	FDIV_S
	FMV_S
	FEQ_S
	FLT_S
	FLE_S
	FCVT_S_W
	FCVT_W_S
	FLW
	FSW
	BEQ
	BNE
	BLT
	BGE
	BLTU
	BGEU
	J
	JCALL
	JRET
)

var gprRRR = []target.OperandClass{target.GPR32, target.GPR32, target.GPR32}
var gprRRI = []target.OperandClass{target.GPR32, target.GPR32, target.SIMM12}
var fprRRR = []target.OperandClass{target.FPR32, target.FPR32, target.FPR32}

var instrDefs = map[machine.Opcode]*target.InstructionDef{
	ADD:      {Opcode: ADD, Mnemonic: "add", Operands: gprRRR, Trailer: ""},
	ADDI:     {Opcode: ADDI, Mnemonic: "addi", Operands: gprRRI, Trailer: ""},
	SUB:      {Opcode: SUB, Mnemonic: "sub", Operands: gprRRR, Trailer: ""},
	AND:      {Opcode: AND, Mnemonic: "and", Operands: gprRRR, Trailer: ""},
	ANDI:     {Opcode: ANDI, Mnemonic: "andi", Operands: gprRRI, Trailer: ""},
	OR:       {Opcode: OR, Mnemonic: "or", Operands: gprRRR, Trailer: ""},
	ORI:      {Opcode: ORI, Mnemonic: "ori", Operands: gprRRI, Trailer: ""},
	XOR:      {Opcode: XOR, Mnemonic: "xor", Operands: gprRRR, Trailer: ""},
	XORI:     {Opcode: XORI, Mnemonic: "xori", Operands: gprRRI, Trailer: ""},
	SLL:      {Opcode: SLL, Mnemonic: "sll", Operands: gprRRR, Trailer: ""},
	SLLI:     {Opcode: SLLI, Mnemonic: "slli", Operands: gprRRI, Trailer: ""},
	SRL:      {Opcode: SRL, Mnemonic: "srl", Operands: gprRRR, Trailer: ""},
	SRLI:     {Opcode: SRLI, Mnemonic: "srli", Operands: gprRRI, Trailer: ""},
	SRA:      {Opcode: SRA, Mnemonic: "sra", Operands: gprRRR, Trailer: ""},
	SRAI:     {Opcode: SRAI, Mnemonic: "srai", Operands: gprRRI, Trailer: ""},
	MUL:      {Opcode: MUL, Mnemonic: "mul", Operands: gprRRR, Trailer: ""},
	MULHU:    {Opcode: MULHU, Mnemonic: "mulhu", Operands: gprRRR, Trailer: ""},
	DIV:      {Opcode: DIV, Mnemonic: "div", Operands: gprRRR, Trailer: ""},
	DIVU:     {Opcode: DIVU, Mnemonic: "divu", Operands: gprRRR, Trailer: ""},
	SLT:      {Opcode: SLT, Mnemonic: "slt", Operands: gprRRR, Trailer: ""},
	SLTI:     {Opcode: SLTI, Mnemonic: "slti", Operands: gprRRI, Trailer: ""},
	SLTU:     {Opcode: SLTU, Mnemonic: "sltu", Operands: gprRRR, Trailer: ""},
	SLTIU:    {Opcode: SLTIU, Mnemonic: "sltiu", Operands: gprRRI, Trailer: ""},
	LUI:      {Opcode: LUI, Mnemonic: "lui", Operands: []target.OperandClass{target.GPR32, target.UIMM16}, Trailer: ""},
	MV:       {Opcode: MV, Mnemonic: "mv", Operands: []target.OperandClass{target.GPR32, target.GPR32}, Trailer: ""},
	LB:       {Opcode: LB, Mnemonic: "lb", Operands: []target.OperandClass{target.GPR32, target.MEM}, Trailer: ""},
	LBU:      {Opcode: LBU, Mnemonic: "lbu", Operands: []target.OperandClass{target.GPR32, target.MEM}, Trailer: ""},
	LH:       {Opcode: LH, Mnemonic: "lh", Operands: []target.OperandClass{target.GPR32, target.MEM}, Trailer: ""},
	LHU:      {Opcode: LHU, Mnemonic: "lhu", Operands: []target.OperandClass{target.GPR32, target.MEM}, Trailer: ""},
	LW:       {Opcode: LW, Mnemonic: "lw", Operands: []target.OperandClass{target.GPR32, target.MEM}, Trailer: ""},
	SB:       {Opcode: SB, Mnemonic: "sb", Operands: []target.OperandClass{target.MEM, target.GPR32}, Trailer: ""},
	SH:       {Opcode: SH, Mnemonic: "sh", Operands: []target.OperandClass{target.MEM, target.GPR32}, Trailer: ""},
	SW:       {Opcode: SW, Mnemonic: "sw", Operands: []target.OperandClass{target.MEM, target.GPR32}, Trailer: ""},
	FADD_S:   {Opcode: FADD_S, Mnemonic: "fadd.s", Operands: fprRRR, Trailer: ""},
	FSUB_S:   {Opcode: FSUB_S, Mnemonic: "fsub.s", Operands: fprRRR, Trailer: ""},
	FMUL_S:   {Opcode: FMUL_S, Mnemonic: "fmul.s", Operands: fprRRR, Trailer: ""},
	FDIV_S:   {Opcode: FDIV_S, Mnemonic: "fdiv.s", Operands: fprRRR, Trailer: ""},
	FMV_S:    {Opcode: FMV_S, Mnemonic: "fmv.s", Operands: []target.OperandClass{target.FPR32, target.FPR32}, Trailer: ""},
	FEQ_S:    {Opcode: FEQ_S, Mnemonic: "feq.s", Operands: []target.OperandClass{target.GPR32, target.FPR32, target.FPR32}, Trailer: ""},
	FLT_S:    {Opcode: FLT_S, Mnemonic: "flt.s", Operands: []target.OperandClass{target.GPR32, target.FPR32, target.FPR32}, Trailer: ""},
	FLE_S:    {Opcode: FLE_S, Mnemonic: "fle.s", Operands: []target.OperandClass{target.GPR32, target.FPR32, target.FPR32}, Trailer: ""},
	FCVT_S_W: {Opcode: FCVT_S_W, Mnemonic: "fcvt.s.w", Operands: []target.OperandClass{target.FPR32, target.GPR32}, Trailer: ""},
	FCVT_W_S: {Opcode: FCVT_W_S, Mnemonic: "fcvt.w.s", Operands: []target.OperandClass{target.GPR32, target.FPR32}, Trailer: "rtz"},
	FLW:      {Opcode: FLW, Mnemonic: "flw", Operands: []target.OperandClass{target.FPR32, target.MEM}, Trailer: ""},
	FSW:      {Opcode: FSW, Mnemonic: "fsw", Operands: []target.OperandClass{target.MEM, target.FPR32}, Trailer: ""},
	BEQ:      {Opcode: BEQ, Mnemonic: "beq", Operands: []target.OperandClass{target.GPR32, target.GPR32, target.SIMM13_LSB0}, Trailer: ""},
	BNE:      {Opcode: BNE, Mnemonic: "bne", Operands: []target.OperandClass{target.GPR32, target.GPR32, target.SIMM13_LSB0}, Trailer: ""},
	BLT:      {Opcode: BLT, Mnemonic: "blt", Operands: []target.OperandClass{target.GPR32, target.GPR32, target.SIMM13_LSB0}, Trailer: ""},
	BGE:      {Opcode: BGE, Mnemonic: "bge", Operands: []target.OperandClass{target.GPR32, target.GPR32, target.SIMM13_LSB0}, Trailer: ""},
	BLTU:     {Opcode: BLTU, Mnemonic: "bltu", Operands: []target.OperandClass{target.GPR32, target.GPR32, target.SIMM13_LSB0}, Trailer: ""},
	BGEU:     {Opcode: BGEU, Mnemonic: "bgeu", Operands: []target.OperandClass{target.GPR32, target.GPR32, target.SIMM13_LSB0}, Trailer: ""},
	J:        {Opcode: J, Mnemonic: "j", Operands: []target.OperandClass{target.SIMM21_LSB0}, Trailer: ""},
	JCALL:    {Opcode: JCALL, Mnemonic: "call", Operands: []target.OperandClass{target.SYM}, Trailer: ""},
	JRET:     {Opcode: JRET, Mnemonic: "ret", Operands: nil, Trailer: ""},
}

func (t *Target) InstrDef(op machine.Opcode) *target.InstructionDef {
	def, ok := instrDefs[op]
	if !ok {
		panic(fmt.Sprintf("riscv: no instruction definition for opcode %d", op))
	}
	return def
}

func (t *Target) Mnemonic(op machine.Opcode) string { return t.InstrDef(op).Mnemonic }
