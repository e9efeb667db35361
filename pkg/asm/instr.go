// Package asm defines the register-machine instruction set and the machine
// that executes it. Instructions are immutable once constructed; passes that
// change code build a new instruction list and install it wholesale.
package asm

// Name identifies a register slot: either one of the fixed physical
// registers below or a virtual name minted by the code generator.
type Name string

// Physical registers.
const (
	Zero Name = "x0" // always reads 0; writes are ignored
	RA   Name = "ra" // return address
	SP   Name = "sp" // stack pointer, seeded with the memory size
	A0   Name = "a0"
	A1   Name = "a1"
	A2   Name = "a2"
	A3   Name = "a3"
)

// GeneralRegs lists the allocatable registers in allocation priority order.
var GeneralRegs = []Name{A1, A2, A3, A0}

// Reserved reports whether n is one of the registers that pass through
// register allocation unchanged.
func Reserved(n Name) bool {
	return n == Zero || n == RA || n == SP
}

// BinOp tags the operation of a binary instruction
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpXor
	OpSlt
)

var binOpNames = [...]string{"add", "sub", "mul", "div", "xor", "slt"}

// String returns the mnemonic of the register form of the operation
func (op BinOp) String() string {
	if int(op) < len(binOpNames) {
		return binOpNames[op]
	}
	return "?"
}

// Instruction is the interface for instruction shapes
type Instruction interface {
	implInstruction()
}

// BinReg is "op rd, rs1, rs2": rd receives op applied to two registers
type BinReg struct {
	Op  BinOp
	Rd  Name
	Rs1 Name
	Rs2 Name
}

// BinImm is "op rd, rs1, imm": rd receives op applied to a register and
// an immediate
type BinImm struct {
	Op  BinOp
	Rd  Name
	Rs1 Name
	Imm int64
}

// Load is "rd <- mem[val(base) + offset]"
type Load struct {
	Base   Name
	Offset int64
	Rd     Name
}

// Store is "mem[val(base) + offset] <- val(rs)"
type Store struct {
	Base   Name
	Offset int64
	Rs     Name
}

// Jal links the return address into rd and jumps to an absolute
// instruction index: rd <- pc+1; pc <- target
type Jal struct {
	Rd     Name
	Target int
}

// Jalr links the return address into rd and jumps to the address held in
// a register: rd <- pc+1; pc <- val(base)
type Jalr struct {
	Rd   Name
	Base Name
}

// Beq is "if val(rs1) == val(rs2) then pc <- target else pc <- pc+1"
type Beq struct {
	Rs1    Name
	Rs2    Name
	Target int
}

func (BinReg) implInstruction() {}
func (BinImm) implInstruction() {}
func (Load) implInstruction()   {}
func (Store) implInstruction()  {}
func (Jal) implInstruction()    {}
func (Jalr) implInstruction()   {}
func (Beq) implInstruction()    {}

// Constructors named after the mnemonics, so emitting code reads like
// the assembly it produces.

// Add builds "add rd, rs1, rs2"
func Add(rd, rs1, rs2 Name) BinReg { return BinReg{Op: OpAdd, Rd: rd, Rs1: rs1, Rs2: rs2} }

// Sub builds "sub rd, rs1, rs2"
func Sub(rd, rs1, rs2 Name) BinReg { return BinReg{Op: OpSub, Rd: rd, Rs1: rs1, Rs2: rs2} }

// Mul builds "mul rd, rs1, rs2"
func Mul(rd, rs1, rs2 Name) BinReg { return BinReg{Op: OpMul, Rd: rd, Rs1: rs1, Rs2: rs2} }

// Div builds "div rd, rs1, rs2"
func Div(rd, rs1, rs2 Name) BinReg { return BinReg{Op: OpDiv, Rd: rd, Rs1: rs1, Rs2: rs2} }

// Xor builds "xor rd, rs1, rs2"
func Xor(rd, rs1, rs2 Name) BinReg { return BinReg{Op: OpXor, Rd: rd, Rs1: rs1, Rs2: rs2} }

// Slt builds "slt rd, rs1, rs2"
func Slt(rd, rs1, rs2 Name) BinReg { return BinReg{Op: OpSlt, Rd: rd, Rs1: rs1, Rs2: rs2} }

// Addi builds "addi rd, rs1, imm"
func Addi(rd, rs1 Name, imm int64) BinImm { return BinImm{Op: OpAdd, Rd: rd, Rs1: rs1, Imm: imm} }

// Xori builds "xori rd, rs1, imm"
func Xori(rd, rs1 Name, imm int64) BinImm { return BinImm{Op: OpXor, Rd: rd, Rs1: rs1, Imm: imm} }

// Slti builds "slti rd, rs1, imm"
func Slti(rd, rs1 Name, imm int64) BinImm { return BinImm{Op: OpSlt, Rd: rd, Rs1: rs1, Imm: imm} }

// HasControlFlow reports whether the instruction list contains any jump
// or branch. The register allocator only guarantees its rewrite for
// straight-line code, so drivers check this before running it.
func HasControlFlow(insts []Instruction) bool {
	for _, inst := range insts {
		switch inst.(type) {
		case Jal, Jalr, Beq:
			return true
		}
	}
	return false
}

// Lw builds "lw rd, offset(base)"
func Lw(base Name, offset int64, rd Name) Load { return Load{Base: base, Offset: offset, Rd: rd} }

// Sw builds "sw rs, offset(base)"
func Sw(base Name, offset int64, rs Name) Store { return Store{Base: base, Offset: offset, Rs: rs} }
