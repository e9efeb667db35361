// Package interp is a reference evaluator for the expression tree. It
// gives the language its definitional semantics, including first-class
// closures, and serves as the oracle the compiled pipeline is tested
// against.
package interp

import (
	"errors"
	"fmt"

	"github.com/expc-lang/expc/pkg/ast"
)

// Terminal evaluation errors.
var (
	ErrUnbound      = errors.New("unbound variable")
	ErrType         = errors.New("type error")
	ErrDivideByZero = errors.New("division by zero")
)

// Value is the interface for runtime values
type Value interface {
	implValue()
}

// Int is an integer value
type Int int64

// Bool is a boolean value
type Bool bool

// Closure pairs a function literal with its defining environment
type Closure struct {
	Param string
	Body  ast.Expr
	Env   *Env
}

func (Int) implValue()     {}
func (Bool) implValue()    {}
func (Closure) implValue() {}

// Env is an immutable chain of bindings; extending it never disturbs
// captured references.
type Env struct {
	name string
	val  Value
	next *Env
}

// Bind extends the environment with one binding
func (e *Env) Bind(name string, val Value) *Env {
	return &Env{name: name, val: val, next: e}
}

// Lookup finds the innermost binding for name
func (e *Env) Lookup(name string) (Value, bool) {
	for env := e; env != nil; env = env.next {
		if env.name == name {
			return env.val, true
		}
	}
	return nil, false
}

// AsInt converts a value to the machine's integer convention: booleans
// become 0 or 1.
func AsInt(v Value) (int64, error) {
	switch val := v.(type) {
	case Int:
		return int64(val), nil
	case Bool:
		if val {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %T has no integer form", ErrType, v)
}

// Eval evaluates the expression under env
func Eval(e ast.Expr, env *Env) (Value, error) {
	switch exp := e.(type) {
	case ast.Num:
		return Int(exp.Value), nil
	case ast.Bln:
		return Bool(exp.Value), nil
	case ast.Var:
		if v, ok := env.Lookup(exp.Name); ok {
			return v, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnbound, exp.Name)

	case ast.Add:
		return evalArith(exp.Left, exp.Right, env, func(a, b int64) (int64, error) { return a + b, nil })
	case ast.Sub:
		return evalArith(exp.Left, exp.Right, env, func(a, b int64) (int64, error) { return a - b, nil })
	case ast.Mul:
		return evalArith(exp.Left, exp.Right, env, func(a, b int64) (int64, error) { return a * b, nil })
	case ast.Div:
		return evalArith(exp.Left, exp.Right, env, func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, ErrDivideByZero
			}
			return a / b, nil
		})

	case ast.Eql:
		return evalCompare(exp.Left, exp.Right, env, func(a, b int64) bool { return a == b })
	case ast.Lth:
		return evalCompare(exp.Left, exp.Right, env, func(a, b int64) bool { return a < b })
	case ast.Leq:
		return evalCompare(exp.Left, exp.Right, env, func(a, b int64) bool { return a <= b })

	case ast.Neg:
		v, err := evalInt(exp.Exp, env)
		if err != nil {
			return nil, err
		}
		return Int(-v), nil

	case ast.Not:
		v, err := Eval(exp.Exp, env)
		if err != nil {
			return nil, err
		}
		// Mirrors the machine: any nonzero operand counts as true.
		n, err := AsInt(v)
		if err != nil {
			return nil, err
		}
		return Bool(n == 0), nil

	case ast.And:
		return evalLogic(exp.Left, exp.Right, env, func(a, b bool) bool { return a && b })
	case ast.Or:
		return evalLogic(exp.Left, exp.Right, env, func(a, b bool) bool { return a || b })

	case ast.Let:
		bound, err := Eval(exp.Bind, env)
		if err != nil {
			return nil, err
		}
		return Eval(exp.Body, env.Bind(exp.Name, bound))

	case ast.If:
		cond, err := Eval(exp.Cond, env)
		if err != nil {
			return nil, err
		}
		b, ok := cond.(Bool)
		if !ok {
			return nil, fmt.Errorf("%w: condition is %T, not a boolean", ErrType, cond)
		}
		if bool(b) {
			return Eval(exp.Then, env)
		}
		return Eval(exp.Else, env)

	case ast.Fn:
		return Closure{Param: exp.Param, Body: exp.Body, Env: env}, nil

	case ast.App:
		fn, err := Eval(exp.Fn, env)
		if err != nil {
			return nil, err
		}
		cl, ok := fn.(Closure)
		if !ok {
			return nil, fmt.Errorf("%w: applied expression is %T, not a function", ErrType, fn)
		}
		arg, err := Eval(exp.Arg, env)
		if err != nil {
			return nil, err
		}
		return Eval(cl.Body, cl.Env.Bind(cl.Param, arg))
	}
	return nil, fmt.Errorf("%w: unknown expression %T", ErrType, e)
}

func evalInt(e ast.Expr, env *Env) (int64, error) {
	v, err := Eval(e, env)
	if err != nil {
		return 0, err
	}
	n, ok := v.(Int)
	if !ok {
		return 0, fmt.Errorf("%w: %T where a number is required", ErrType, v)
	}
	return int64(n), nil
}

func evalArith(left, right ast.Expr, env *Env, op func(a, b int64) (int64, error)) (Value, error) {
	a, err := evalInt(left, env)
	if err != nil {
		return nil, err
	}
	b, err := evalInt(right, env)
	if err != nil {
		return nil, err
	}
	v, err := op(a, b)
	if err != nil {
		return nil, err
	}
	return Int(v), nil
}

func evalCompare(left, right ast.Expr, env *Env, op func(a, b int64) bool) (Value, error) {
	a, err := evalInt(left, env)
	if err != nil {
		return nil, err
	}
	b, err := evalInt(right, env)
	if err != nil {
		return nil, err
	}
	return Bool(op(a, b)), nil
}

func evalLogic(left, right ast.Expr, env *Env, op func(a, b bool) bool) (Value, error) {
	a, err := Eval(left, env)
	if err != nil {
		return nil, err
	}
	ab, ok := a.(Bool)
	if !ok {
		return nil, fmt.Errorf("%w: %T where a boolean is required", ErrType, a)
	}
	b, err := Eval(right, env)
	if err != nil {
		return nil, err
	}
	bb, ok := b.(Bool)
	if !ok {
		return nil, fmt.Errorf("%w: %T where a boolean is required", ErrType, b)
	}
	return Bool(op(bool(ab), bool(bb))), nil
}
