package asm

import (
	"errors"
	"fmt"
)

// Machine faults. All of them abort evaluation; there is no recovery
// channel inside the machine.
var (
	ErrUnboundName  = errors.New("unbound name")
	ErrMemRange     = errors.New("memory address out of range")
	ErrDivideByZero = errors.New("division by zero")
	ErrPCRange      = errors.New("program counter out of range")
)

// Program couples an instruction sequence with a register environment, a
// flat memory array and a program counter. A Program is built once per
// compilation; only evaluation mutates pc, environment and memory, and
// only SetInsts replaces the code.
type Program struct {
	insts   []Instruction
	env     map[Name]int64
	initEnv map[Name]int64
	mem     []int64
	pc      int
}

// NewProgram creates a program with memSize memory cells and the given
// initial register environment. x0 is seeded with zero and sp with the
// memory size unless the environment overrides it.
func NewProgram(memSize int, env map[Name]int64, insts ...Instruction) *Program {
	initEnv := make(map[Name]int64, len(env)+2)
	for k, v := range env {
		initEnv[k] = v
	}
	initEnv[Zero] = 0
	if _, ok := initEnv[SP]; !ok {
		initEnv[SP] = int64(memSize)
	}
	p := &Program{
		insts:   append([]Instruction(nil), insts...),
		initEnv: initEnv,
		mem:     make([]int64, memSize),
	}
	p.ResetEnv()
	return p
}

// AddInst appends an instruction to the program
func (p *Program) AddInst(inst Instruction) {
	p.insts = append(p.insts, inst)
}

// Insts returns the instruction list
func (p *Program) Insts() []Instruction {
	return p.insts
}

// SetInsts replaces the instruction list wholesale
func (p *Program) SetInsts(insts []Instruction) {
	p.insts = insts
}

// ReplaceInst installs a freshly constructed instruction at index i.
// Used by the code generator to backpatch branch targets.
func (p *Program) ReplaceInst(i int, inst Instruction) {
	p.insts[i] = inst
}

// NextIndex returns the index the next appended instruction will occupy
func (p *Program) NextIndex() int {
	return len(p.insts)
}

// PC returns the current program counter
func (p *Program) PC() int {
	return p.pc
}

// MemSize returns the number of memory cells
func (p *Program) MemSize() int {
	return len(p.mem)
}

// Val returns the value currently bound to a name
func (p *Program) Val(n Name) (int64, error) {
	if v, ok := p.env[n]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnboundName, n)
}

// Mem reads the memory cell at addr
func (p *Program) Mem(addr int64) (int64, error) {
	if addr < 0 || addr >= int64(len(p.mem)) {
		return 0, fmt.Errorf("%w: %d", ErrMemRange, addr)
	}
	return p.mem[addr], nil
}

// setVal writes a register. Writes to x0 are ignored, which is what
// protects the zero register from mutation.
func (p *Program) setVal(n Name, v int64) {
	if n == Zero {
		return
	}
	p.env[n] = v
}

// ResetEnv restores the initial register environment, zeroes memory and
// rewinds the program counter. The driver calls this between running the
// allocator and evaluating the allocated code.
func (p *Program) ResetEnv() {
	p.env = make(map[Name]int64, len(p.initEnv))
	for k, v := range p.initEnv {
		p.env[k] = v
	}
	for i := range p.mem {
		p.mem[i] = 0
	}
	p.pc = 0
}

// Eval runs the program from pc 0, one instruction per step, until the
// program counter passes the end of the instruction list. The first
// fault aborts evaluation.
func (p *Program) Eval() error {
	p.pc = 0
	for p.pc < len(p.insts) {
		if p.pc < 0 {
			return fmt.Errorf("%w: %d", ErrPCRange, p.pc)
		}
		if err := p.step(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Program) step() error {
	switch inst := p.insts[p.pc].(type) {
	case BinReg:
		s1, err := p.Val(inst.Rs1)
		if err != nil {
			return err
		}
		s2, err := p.Val(inst.Rs2)
		if err != nil {
			return err
		}
		v, err := evalBin(inst.Op, s1, s2)
		if err != nil {
			return err
		}
		p.setVal(inst.Rd, v)
		p.pc++
	case BinImm:
		s1, err := p.Val(inst.Rs1)
		if err != nil {
			return err
		}
		v, err := evalBin(inst.Op, s1, inst.Imm)
		if err != nil {
			return err
		}
		p.setVal(inst.Rd, v)
		p.pc++
	case Load:
		base, err := p.Val(inst.Base)
		if err != nil {
			return err
		}
		v, err := p.Mem(base + inst.Offset)
		if err != nil {
			return err
		}
		p.setVal(inst.Rd, v)
		p.pc++
	case Store:
		base, err := p.Val(inst.Base)
		if err != nil {
			return err
		}
		v, err := p.Val(inst.Rs)
		if err != nil {
			return err
		}
		addr := base + inst.Offset
		if addr < 0 || addr >= int64(len(p.mem)) {
			return fmt.Errorf("%w: %d", ErrMemRange, addr)
		}
		p.mem[addr] = v
		p.pc++
	case Jal:
		p.setVal(inst.Rd, int64(p.pc+1))
		p.pc = inst.Target
	case Jalr:
		target, err := p.Val(inst.Base)
		if err != nil {
			return err
		}
		p.setVal(inst.Rd, int64(p.pc+1))
		p.pc = int(target)
	case Beq:
		s1, err := p.Val(inst.Rs1)
		if err != nil {
			return err
		}
		s2, err := p.Val(inst.Rs2)
		if err != nil {
			return err
		}
		if s1 == s2 {
			p.pc = inst.Target
		} else {
			p.pc++
		}
	default:
		return fmt.Errorf("unknown instruction %T", inst)
	}
	return nil
}

// evalBin applies a binary operation. Arithmetic is two's-complement
// int64 with no overflow checking; division truncates toward zero.
func evalBin(op BinOp, a, b int64) (int64, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		if b == 0 {
			return 0, ErrDivideByZero
		}
		return a / b, nil
	case OpXor:
		return a ^ b, nil
	case OpSlt:
		if a < b {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("unknown binary op %d", op)
}
