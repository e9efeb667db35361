// Package codegen lowers an expression tree into an unbounded-virtual-register
// instruction stream. Every intermediate result gets a fresh, never-reused
// virtual name, so each value has exactly one producer; the register
// allocator's simple always-spill policy depends on that property.
package codegen

import (
	"errors"
	"fmt"

	"github.com/expc-lang/expc/pkg/asm"
	"github.com/expc-lang/expc/pkg/ast"
)

// Terminal generation errors.
var (
	ErrUnbound     = errors.New("unbound variable")
	ErrUnsupported = errors.New("unsupported expression")
)

// fnCode records where a compiled function literal lives and which slots
// its calling convention uses: the caller writes param and jumps via jalr
// linking into ret; the callee leaves its value in result.
type fnCode struct {
	entry  int
	param  asm.Name
	result asm.Name
	ret    asm.Name
}

// Generator walks the expression tree and emits instructions into a
// Program, handing back the virtual name that holds each subexpression's
// value. One Generator serves one compilation.
type Generator struct {
	counter int
	scope   map[string][]asm.Name
	fns     map[asm.Name]*fnCode
}

// New creates a Generator
func New() *Generator {
	return &Generator{
		scope: make(map[string][]asm.Name),
		fns:   make(map[asm.Name]*fnCode),
	}
}

// Generate emits code for tree into prog and returns the name of the slot
// holding the tree's overall result.
func (g *Generator) Generate(tree ast.Expr, prog *asm.Program) (asm.Name, error) {
	return g.gen(tree, prog)
}

// fresh mints a virtual name. Names are never reused.
func (g *Generator) fresh() asm.Name {
	g.counter++
	return asm.Name(fmt.Sprintf("v%d", g.counter))
}

// pushBinding opens a scope level for a source name and returns the
// unique virtual name backing it.
func (g *Generator) pushBinding(name string) asm.Name {
	unique := asm.Name(fmt.Sprintf("%s_%d", name, len(g.scope[name])))
	g.scope[name] = append(g.scope[name], unique)
	return unique
}

func (g *Generator) popBinding(name string) {
	stack := g.scope[name]
	if len(stack) > 0 {
		g.scope[name] = stack[:len(stack)-1]
	}
}

// lookup resolves an identifier: innermost active binding first, then a
// name present in the machine's initial environment.
func (g *Generator) lookup(name string, prog *asm.Program) (asm.Name, error) {
	if stack := g.scope[name]; len(stack) > 0 {
		return stack[len(stack)-1], nil
	}
	if _, err := prog.Val(asm.Name(name)); err == nil {
		return asm.Name(name), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnbound, name)
}

func (g *Generator) gen(e ast.Expr, prog *asm.Program) (asm.Name, error) {
	switch exp := e.(type) {
	case ast.Num:
		r := g.fresh()
		prog.AddInst(asm.Addi(r, asm.Zero, exp.Value))
		return r, nil

	case ast.Bln:
		// false is the zero register itself; no instruction needed.
		if !exp.Value {
			return asm.Zero, nil
		}
		r := g.fresh()
		prog.AddInst(asm.Addi(r, asm.Zero, 1))
		return r, nil

	case ast.Var:
		return g.lookup(exp.Name, prog)

	case ast.Add:
		return g.genBinary(exp.Left, exp.Right, asm.Add, prog)
	case ast.Sub:
		return g.genBinary(exp.Left, exp.Right, asm.Sub, prog)
	case ast.Mul:
		return g.genBinary(exp.Left, exp.Right, asm.Mul, prog)
	case ast.Div:
		return g.genBinary(exp.Left, exp.Right, asm.Div, prog)

	case ast.Eql:
		return g.genEql(exp, prog)
	case ast.Lth:
		return g.genBinary(exp.Left, exp.Right, asm.Slt, prog)
	case ast.Leq:
		return g.genLeq(exp, prog)

	case ast.Neg:
		return g.genNeg(exp, prog)
	case ast.Not:
		return g.genNot(exp, prog)

	case ast.And:
		// Inputs are restricted to {0,1}, so multiplication is conjunction.
		return g.genBinary(exp.Left, exp.Right, asm.Mul, prog)
	case ast.Or:
		return g.genOr(exp, prog)

	case ast.Let:
		return g.genLet(exp, prog)
	case ast.If:
		return g.genIf(exp, prog)
	case ast.Fn:
		return g.genFn(exp, prog)
	case ast.App:
		return g.genApp(exp, prog)
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupported, e)
}

func (g *Generator) genBinary(left, right ast.Expr, build func(rd, rs1, rs2 asm.Name) asm.BinReg, prog *asm.Program) (asm.Name, error) {
	l, err := g.gen(left, prog)
	if err != nil {
		return "", err
	}
	r, err := g.gen(right, prog)
	if err != nil {
		return "", err
	}
	d := g.fresh()
	prog.AddInst(build(d, l, r))
	return d, nil
}

// genEql synthesizes equality from slt: a=b iff neither a<b nor b<a.
func (g *Generator) genEql(exp ast.Eql, prog *asm.Program) (asm.Name, error) {
	l, err := g.gen(exp.Left, prog)
	if err != nil {
		return "", err
	}
	r, err := g.gen(exp.Right, prog)
	if err != nil {
		return "", err
	}
	lt := g.fresh()
	prog.AddInst(asm.Slt(lt, l, r))
	gt := g.fresh()
	prog.AddInst(asm.Slt(gt, r, l))
	ne := g.fresh()
	prog.AddInst(asm.Xor(ne, lt, gt))
	eq := g.fresh()
	prog.AddInst(asm.Xori(eq, ne, 1))
	return eq, nil
}

// genLeq is not-greater-than: slt with swapped operands, then xori 1.
func (g *Generator) genLeq(exp ast.Leq, prog *asm.Program) (asm.Name, error) {
	l, err := g.gen(exp.Left, prog)
	if err != nil {
		return "", err
	}
	r, err := g.gen(exp.Right, prog)
	if err != nil {
		return "", err
	}
	gt := g.fresh()
	prog.AddInst(asm.Slt(gt, r, l))
	le := g.fresh()
	prog.AddInst(asm.Xori(le, gt, 1))
	return le, nil
}

// genNeg multiplies by -1; the instruction set has no dedicated negate.
func (g *Generator) genNeg(exp ast.Neg, prog *asm.Program) (asm.Name, error) {
	v, err := g.gen(exp.Exp, prog)
	if err != nil {
		return "", err
	}
	m := g.fresh()
	prog.AddInst(asm.Addi(m, asm.Zero, -1))
	d := g.fresh()
	prog.AddInst(asm.Mul(d, v, m))
	return d, nil
}

// genNot yields 1 only when the operand is exactly 0: any nonzero value,
// positive or negative, counts as true.
func (g *Generator) genNot(exp ast.Not, prog *asm.Program) (asm.Name, error) {
	v, err := g.gen(exp.Exp, prog)
	if err != nil {
		return "", err
	}
	pos := g.fresh()
	prog.AddInst(asm.Slt(pos, asm.Zero, v))
	neg := g.fresh()
	prog.AddInst(asm.Slt(neg, v, asm.Zero))
	nz := g.fresh()
	prog.AddInst(asm.Add(nz, pos, neg))
	d := g.fresh()
	prog.AddInst(asm.Xori(d, nz, 1))
	return d, nil
}

// genOr adds the two {0,1} operands and clamps the sum back to {0,1}.
func (g *Generator) genOr(exp ast.Or, prog *asm.Program) (asm.Name, error) {
	l, err := g.gen(exp.Left, prog)
	if err != nil {
		return "", err
	}
	r, err := g.gen(exp.Right, prog)
	if err != nil {
		return "", err
	}
	sum := g.fresh()
	prog.AddInst(asm.Add(sum, l, r))
	d := g.fresh()
	prog.AddInst(asm.Slt(d, asm.Zero, sum))
	return d, nil
}

// genLet copies the defining slot into a stable binding name so later
// references survive the defining slot's single-producer discipline.
func (g *Generator) genLet(exp ast.Let, prog *asm.Program) (asm.Name, error) {
	slot, err := g.gen(exp.Bind, prog)
	if err != nil {
		return "", err
	}
	binding := g.pushBinding(exp.Name)
	prog.AddInst(asm.Addi(binding, slot, 0))
	if fc, ok := g.fns[slot]; ok {
		g.fns[binding] = fc
	}
	result, err := g.gen(exp.Body, prog)
	g.popBinding(exp.Name)
	if err != nil {
		return "", err
	}
	return result, nil
}

// genIf selects between the two arms with beq and an unconditional
// branch (beq x0, x0). Both arms copy into one result name. Branch
// targets are backpatched once the arm lengths are known; conditional
// code is outside the register allocator's guaranteed contract.
func (g *Generator) genIf(exp ast.If, prog *asm.Program) (asm.Name, error) {
	cond, err := g.gen(exp.Cond, prog)
	if err != nil {
		return "", err
	}
	brIdx := prog.NextIndex()
	prog.AddInst(asm.Beq{Rs1: cond, Rs2: asm.Zero, Target: 0}) // patched below

	result := g.fresh()
	thenReg, err := g.gen(exp.Then, prog)
	if err != nil {
		return "", err
	}
	prog.AddInst(asm.Addi(result, thenReg, 0))
	jmpIdx := prog.NextIndex()
	prog.AddInst(asm.Beq{Rs1: asm.Zero, Rs2: asm.Zero, Target: 0}) // patched below

	prog.ReplaceInst(brIdx, asm.Beq{Rs1: cond, Rs2: asm.Zero, Target: prog.NextIndex()})
	elseReg, err := g.gen(exp.Else, prog)
	if err != nil {
		return "", err
	}
	prog.AddInst(asm.Addi(result, elseReg, 0))
	prog.ReplaceInst(jmpIdx, asm.Beq{Rs1: asm.Zero, Rs2: asm.Zero, Target: prog.NextIndex()})
	return result, nil
}

// genFn compiles the function body inline behind an unconditional branch
// and yields a slot holding the body's entry index. The literal's
// argument, result and return-address slots form its calling convention.
func (g *Generator) genFn(exp ast.Fn, prog *asm.Program) (asm.Name, error) {
	skipIdx := prog.NextIndex()
	prog.AddInst(asm.Beq{Rs1: asm.Zero, Rs2: asm.Zero, Target: 0}) // patched below

	fc := &fnCode{
		entry:  prog.NextIndex(),
		result: g.fresh(),
		ret:    g.fresh(),
	}
	fc.param = g.pushBinding(exp.Param)
	bodyReg, err := g.gen(exp.Body, prog)
	g.popBinding(exp.Param)
	if err != nil {
		return "", err
	}
	prog.AddInst(asm.Addi(fc.result, bodyReg, 0))
	prog.AddInst(asm.Jalr{Rd: g.fresh(), Base: fc.ret})

	prog.ReplaceInst(skipIdx, asm.Beq{Rs1: asm.Zero, Rs2: asm.Zero, Target: prog.NextIndex()})
	slot := g.fresh()
	prog.AddInst(asm.Addi(slot, asm.Zero, int64(fc.entry)))
	g.fns[slot] = fc
	return slot, nil
}

// genApp calls a statically known function: the callee must be a literal
// or a let-bound variable naming one. First-class function values that
// cannot be resolved at generation time are rejected.
func (g *Generator) genApp(exp ast.App, prog *asm.Program) (asm.Name, error) {
	fnSlot, err := g.gen(exp.Fn, prog)
	if err != nil {
		return "", err
	}
	fc, ok := g.fns[fnSlot]
	if !ok {
		return "", fmt.Errorf("%w: applied expression is not a statically known function", ErrUnsupported)
	}
	argReg, err := g.gen(exp.Arg, prog)
	if err != nil {
		return "", err
	}
	prog.AddInst(asm.Addi(fc.param, argReg, 0))
	prog.AddInst(asm.Jalr{Rd: fc.ret, Base: fnSlot})
	// Copy out of the callee's result slot so a second call to the same
	// function cannot clobber this call's value.
	r := g.fresh()
	prog.AddInst(asm.Addi(r, fc.result, 0))
	return r, nil
}
