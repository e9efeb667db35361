// Package rename makes every lexically distinct binding unique, so that
// later passes can treat binding names as collision-free. Free variables
// are left untouched. The code generator's own scope stack already
// handles shadowing; running this pass first is belt-and-braces hygiene.
package rename

import (
	"fmt"

	"github.com/expc-lang/expc/pkg/ast"
)

// Renamer rewrites binding occurrences to unique names
type Renamer struct {
	counters map[string]int
	scope    map[string][]string
}

// New creates a Renamer
func New() *Renamer {
	return &Renamer{
		counters: make(map[string]int),
		scope:    make(map[string][]string),
	}
}

// Rename returns a copy of the tree in which every let and fn binding has
// a unique name. The input tree is not modified.
func (r *Renamer) Rename(e ast.Expr) ast.Expr {
	return r.rewrite(e)
}

func (r *Renamer) push(name string) string {
	unique := fmt.Sprintf("%s_%d", name, r.counters[name])
	r.counters[name]++
	r.scope[name] = append(r.scope[name], unique)
	return unique
}

func (r *Renamer) pop(name string) {
	stack := r.scope[name]
	if len(stack) > 0 {
		r.scope[name] = stack[:len(stack)-1]
	}
}

func (r *Renamer) current(name string) string {
	if stack := r.scope[name]; len(stack) > 0 {
		return stack[len(stack)-1]
	}
	return name
}

func (r *Renamer) rewrite(e ast.Expr) ast.Expr {
	switch exp := e.(type) {
	case ast.Num, ast.Bln:
		return exp
	case ast.Var:
		return ast.Var{Name: r.current(exp.Name)}
	case ast.Add:
		return ast.Add{Left: r.rewrite(exp.Left), Right: r.rewrite(exp.Right)}
	case ast.Sub:
		return ast.Sub{Left: r.rewrite(exp.Left), Right: r.rewrite(exp.Right)}
	case ast.Mul:
		return ast.Mul{Left: r.rewrite(exp.Left), Right: r.rewrite(exp.Right)}
	case ast.Div:
		return ast.Div{Left: r.rewrite(exp.Left), Right: r.rewrite(exp.Right)}
	case ast.Eql:
		return ast.Eql{Left: r.rewrite(exp.Left), Right: r.rewrite(exp.Right)}
	case ast.Lth:
		return ast.Lth{Left: r.rewrite(exp.Left), Right: r.rewrite(exp.Right)}
	case ast.Leq:
		return ast.Leq{Left: r.rewrite(exp.Left), Right: r.rewrite(exp.Right)}
	case ast.And:
		return ast.And{Left: r.rewrite(exp.Left), Right: r.rewrite(exp.Right)}
	case ast.Or:
		return ast.Or{Left: r.rewrite(exp.Left), Right: r.rewrite(exp.Right)}
	case ast.Neg:
		return ast.Neg{Exp: r.rewrite(exp.Exp)}
	case ast.Not:
		return ast.Not{Exp: r.rewrite(exp.Exp)}
	case ast.Let:
		// The definition sees the outer scope; only the body sees the
		// new binding.
		bind := r.rewrite(exp.Bind)
		unique := r.push(exp.Name)
		body := r.rewrite(exp.Body)
		r.pop(exp.Name)
		return ast.Let{Name: unique, Bind: bind, Body: body}
	case ast.If:
		return ast.If{
			Cond: r.rewrite(exp.Cond),
			Then: r.rewrite(exp.Then),
			Else: r.rewrite(exp.Else),
		}
	case ast.Fn:
		unique := r.push(exp.Param)
		body := r.rewrite(exp.Body)
		r.pop(exp.Param)
		return ast.Fn{Param: unique, Body: body}
	case ast.App:
		return ast.App{Fn: r.rewrite(exp.Fn), Arg: r.rewrite(exp.Arg)}
	}
	return e
}
