// Package regalloc rewrites an unbounded-virtual-register instruction
// stream onto the fixed physical register file, inserting spill and reload
// code.
//
// The pass is deliberately simple: every computed value is stored to a
// fresh spill slot immediately after it is produced, and both source
// operands are released after each instruction. No value is assumed to
// stay in a register across instruction boundaries, so at most three
// registers (two operands plus a destination) are ever needed at once and
// the four-register file cannot run dry on straight-line code.
package regalloc

import (
	"errors"
	"fmt"

	"github.com/expc-lang/expc/pkg/asm"
)

// ErrExhausted signals that no free physical register was available.
// The always-spill policy keeps this unreachable from Run on generated
// code; hitting it means an allocator invariant was violated.
var ErrExhausted = errors.New("physical registers exhausted")

// Allocation is the state of one allocation pass: where each logical name
// currently lives. Run returns it so the caller can read the final
// location of a result name back after evaluation. It is never retained
// on the Program.
type Allocation struct {
	regMap     map[asm.Name]asm.Name // logical name -> resident physical register
	memMap     map[asm.Name]int64    // logical name -> spill address
	memCounter int64                 // next spill address minus one; only grows
	prog       *asm.Program
}

// Run rewrites prog's instructions onto the physical register file and
// installs the new list wholesale. The input instructions are never
// mutated, so callers holding the old list can still inspect it.
func Run(prog *asm.Program) (*Allocation, error) {
	a := &Allocation{
		regMap:     make(map[asm.Name]asm.Name),
		memMap:     make(map[asm.Name]int64),
		memCounter: -1,
		prog:       prog,
	}
	var out []asm.Instruction
	for i, inst := range prog.Insts() {
		rewritten, err := a.alloc(inst)
		if err != nil {
			return nil, fmt.Errorf("instruction %d (%s): %w", i, asm.Format(inst), err)
		}
		out = append(out, rewritten...)
	}
	prog.SetInsts(out)
	return a, nil
}

// Value reads the current value of a logical name through the final
// allocation state: resident register first, then spill slot, then the
// name itself (reserved registers and initial-environment names).
func (a *Allocation) Value(n asm.Name) (int64, error) {
	if r, ok := a.regMap[n]; ok {
		return a.prog.Val(r)
	}
	if addr, ok := a.memMap[n]; ok {
		return a.prog.Mem(addr)
	}
	return a.prog.Val(n)
}

// SpillSlots returns how many spill addresses the pass handed out
func (a *Allocation) SpillSlots() int {
	return int(a.memCounter + 1)
}

// nextFreeReg returns the first physical register, in priority order, not
// currently occupied.
func (a *Allocation) nextFreeReg() (asm.Name, error) {
	for _, reg := range asm.GeneralRegs {
		occupied := false
		for _, r := range a.regMap {
			if r == reg {
				occupied = true
				break
			}
		}
		if !occupied {
			return reg, nil
		}
	}
	return "", ErrExhausted
}

// resolve maps a register-valued operand to a physical register.
// Reserved registers pass through; a name resident in regMap reuses its
// register; a spilled name gets a free register and a reload instruction;
// a first reference gets a free register and no reload.
func (a *Allocation) resolve(n asm.Name) (asm.Name, asm.Instruction, error) {
	if asm.Reserved(n) {
		return n, nil, nil
	}
	if r, ok := a.regMap[n]; ok {
		return r, nil, nil
	}
	r, err := a.nextFreeReg()
	if err != nil {
		return "", nil, err
	}
	a.regMap[n] = r
	if addr, ok := a.memMap[n]; ok {
		return r, asm.Lw(asm.Zero, addr, r), nil
	}
	return r, nil, nil
}

func (a *Allocation) alloc(inst asm.Instruction) ([]asm.Instruction, error) {
	switch in := inst.(type) {
	case asm.BinReg:
		return a.allocBinReg(in)
	case asm.BinImm:
		return a.allocBinImm(in)
	case asm.Load:
		return a.allocLoad(in)
	case asm.Store:
		return a.allocStore(in)
	case asm.Jal:
		return a.allocJal(in)
	case asm.Jalr:
		return a.allocJalr(in)
	case asm.Beq:
		return a.allocBeq(in)
	}
	return nil, fmt.Errorf("unknown instruction %T", inst)
}

// selectDest picks the physical register for a binary destination:
// reuse the first source's register when that source is not reserved,
// else the second's, else take a fresh one. A reserved destination passes
// through untouched.
func (a *Allocation) selectDest(rd, rs1, rs2 asm.Name, haveRs2 bool) (asm.Name, error) {
	if asm.Reserved(rd) {
		return rd, nil
	}
	if !asm.Reserved(rs1) {
		return rs1, nil
	}
	if haveRs2 && !asm.Reserved(rs2) {
		return rs2, nil
	}
	return a.nextFreeReg()
}

// spill stores the destination register to the next spill address and
// retires the logical name from the register map. Every computed value
// round-trips through memory before the next instruction.
func (a *Allocation) spill(logical, physical asm.Name, out []asm.Instruction) []asm.Instruction {
	a.memCounter++
	out = append(out, asm.Sw(asm.Zero, a.memCounter, physical))
	a.memMap[logical] = a.memCounter
	delete(a.regMap, logical)
	return out
}

func (a *Allocation) allocBinReg(in asm.BinReg) ([]asm.Instruction, error) {
	var out []asm.Instruction
	rs1, reload1, err := a.resolve(in.Rs1)
	if err != nil {
		return nil, err
	}
	if reload1 != nil {
		out = append(out, reload1)
	}
	rs2, reload2, err := a.resolve(in.Rs2)
	if err != nil {
		return nil, err
	}
	if reload2 != nil {
		out = append(out, reload2)
	}
	rd, err := a.selectDest(in.Rd, rs1, rs2, true)
	if err != nil {
		return nil, err
	}
	out = append(out, asm.BinReg{Op: in.Op, Rd: rd, Rs1: rs1, Rs2: rs2})
	if !asm.Reserved(rd) {
		out = a.spill(in.Rd, rd, out)
	}
	delete(a.regMap, in.Rs1)
	delete(a.regMap, in.Rs2)
	return out, nil
}

func (a *Allocation) allocBinImm(in asm.BinImm) ([]asm.Instruction, error) {
	var out []asm.Instruction
	rs1, reload, err := a.resolve(in.Rs1)
	if err != nil {
		return nil, err
	}
	if reload != nil {
		out = append(out, reload)
	}
	// The immediate bypasses resolution entirely.
	rd, err := a.selectDest(in.Rd, rs1, "", false)
	if err != nil {
		return nil, err
	}
	out = append(out, asm.BinImm{Op: in.Op, Rd: rd, Rs1: rs1, Imm: in.Imm})
	if !asm.Reserved(rd) {
		out = a.spill(in.Rd, rd, out)
	}
	delete(a.regMap, in.Rs1)
	return out, nil
}

// allocLoad rewrites a source-level load. The loaded name stays resident
// in the register map; it is not spilled again.
func (a *Allocation) allocLoad(in asm.Load) ([]asm.Instruction, error) {
	var out []asm.Instruction
	rd, reloadRd, err := a.resolve(in.Rd)
	if err != nil {
		return nil, err
	}
	if reloadRd != nil {
		out = append(out, reloadRd)
	}
	base, reloadBase, err := a.resolve(in.Base)
	if err != nil {
		return nil, err
	}
	if reloadBase != nil {
		out = append(out, reloadBase)
	}
	out = append(out, asm.Lw(base, in.Offset, rd))
	delete(a.regMap, in.Base)
	return out, nil
}

// allocStore rewrites a source-level store and records the stored name's
// absolute address in the memory map. The address is computed from the
// machine's current concrete value of the base register, which ties
// allocation of explicit stores to a concrete machine state.
func (a *Allocation) allocStore(in asm.Store) ([]asm.Instruction, error) {
	var out []asm.Instruction
	rs, reloadRs, err := a.resolve(in.Rs)
	if err != nil {
		return nil, err
	}
	if reloadRs != nil {
		out = append(out, reloadRs)
	}
	base, reloadBase, err := a.resolve(in.Base)
	if err != nil {
		return nil, err
	}
	if reloadBase != nil {
		out = append(out, reloadBase)
	}
	out = append(out, asm.Sw(base, in.Offset, rs))

	baseVal, err := a.prog.Val(base)
	if err != nil {
		return nil, fmt.Errorf("store base has no concrete value: %w", err)
	}
	a.memMap[in.Rs] = baseVal + in.Offset
	delete(a.regMap, in.Rs)
	return out, nil
}

// Control transfers are rewritten so that no virtual name survives, but
// link destinations are not spilled: a store emitted after a jump would
// never execute.
func (a *Allocation) allocJal(in asm.Jal) ([]asm.Instruction, error) {
	rd, err := a.resolveLink(in.Rd)
	if err != nil {
		return nil, err
	}
	return []asm.Instruction{asm.Jal{Rd: rd, Target: in.Target}}, nil
}

func (a *Allocation) allocJalr(in asm.Jalr) ([]asm.Instruction, error) {
	var out []asm.Instruction
	base, reload, err := a.resolve(in.Base)
	if err != nil {
		return nil, err
	}
	if reload != nil {
		out = append(out, reload)
	}
	rd, err := a.resolveLink(in.Rd)
	if err != nil {
		return nil, err
	}
	out = append(out, asm.Jalr{Rd: rd, Base: base})
	delete(a.regMap, in.Base)
	return out, nil
}

func (a *Allocation) allocBeq(in asm.Beq) ([]asm.Instruction, error) {
	var out []asm.Instruction
	rs1, reload1, err := a.resolve(in.Rs1)
	if err != nil {
		return nil, err
	}
	if reload1 != nil {
		out = append(out, reload1)
	}
	rs2, reload2, err := a.resolve(in.Rs2)
	if err != nil {
		return nil, err
	}
	if reload2 != nil {
		out = append(out, reload2)
	}
	out = append(out, asm.Beq{Rs1: rs1, Rs2: rs2, Target: in.Target})
	delete(a.regMap, in.Rs1)
	delete(a.regMap, in.Rs2)
	return out, nil
}

// resolveLink picks a register for a write-only link destination and
// releases the logical name right away.
func (a *Allocation) resolveLink(rd asm.Name) (asm.Name, error) {
	if asm.Reserved(rd) {
		return rd, nil
	}
	r, err := a.nextFreeReg()
	if err != nil {
		return "", err
	}
	delete(a.regMap, rd)
	return r, nil
}
