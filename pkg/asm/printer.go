package asm

import (
	"fmt"
	"io"
)

// Printer renders instruction streams in RISC-V-like syntax
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new instruction printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintProgram outputs the program's instructions, one per line,
// prefixed with their index so branch targets can be read back.
func (p *Printer) PrintProgram(prog *Program) {
	for i, inst := range prog.Insts() {
		fmt.Fprintf(p.w, "%3d: %s\n", i, Format(inst))
	}
}

// Format renders a single instruction
func Format(inst Instruction) string {
	switch in := inst.(type) {
	case BinReg:
		return fmt.Sprintf("%s %s, %s, %s", in.Op, in.Rd, in.Rs1, in.Rs2)
	case BinImm:
		return fmt.Sprintf("%si %s, %s, %d", in.Op, in.Rd, in.Rs1, in.Imm)
	case Load:
		return fmt.Sprintf("lw %s, %d(%s)", in.Rd, in.Offset, in.Base)
	case Store:
		return fmt.Sprintf("sw %s, %d(%s)", in.Rs, in.Offset, in.Base)
	case Jal:
		return fmt.Sprintf("jal %s, %d", in.Rd, in.Target)
	case Jalr:
		return fmt.Sprintf("jalr %s, %s", in.Rd, in.Base)
	case Beq:
		return fmt.Sprintf("beq %s, %s, %d", in.Rs1, in.Rs2, in.Target)
	}
	return fmt.Sprintf("?%T", inst)
}
