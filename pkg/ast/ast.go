// Package ast defines the expression tree for the source language.
// The node kinds form a closed set: every pass over the tree is a single
// type switch, so adding a kind here means updating each pass.
package ast

// Expr is the interface for expression nodes
type Expr interface {
	implExpr()
}

// Num is an integer literal
type Num struct {
	Value int64
}

// Bln is a boolean literal
type Bln struct {
	Value bool
}

// Var is an identifier reference
type Var struct {
	Name string
}

// Add is left + right
type Add struct {
	Left, Right Expr
}

// Sub is left - right
type Sub struct {
	Left, Right Expr
}

// Mul is left * right
type Mul struct {
	Left, Right Expr
}

// Div is left / right (signed, truncating toward zero)
type Div struct {
	Left, Right Expr
}

// Eql is left = right
type Eql struct {
	Left, Right Expr
}

// Lth is left < right
type Lth struct {
	Left, Right Expr
}

// Leq is left <= right
type Leq struct {
	Left, Right Expr
}

// And is left and right
type And struct {
	Left, Right Expr
}

// Or is left or right
type Or struct {
	Left, Right Expr
}

// Neg is arithmetic negation, written ~e
type Neg struct {
	Exp Expr
}

// Not is logical negation
type Not struct {
	Exp Expr
}

// Let is "let Name <- Bind in Body end"
type Let struct {
	Name string
	Bind Expr
	Body Expr
}

// If is "if Cond then Then else Else"
type If struct {
	Cond Expr
	Then Expr
	Else Expr
}

// Fn is an anonymous function "fn Param => Body"
type Fn struct {
	Param string
	Body  Expr
}

// App applies Fn to Arg, written by juxtaposition: "f x"
type App struct {
	Fn  Expr
	Arg Expr
}

func (Num) implExpr() {}
func (Bln) implExpr() {}
func (Var) implExpr() {}
func (Add) implExpr() {}
func (Sub) implExpr() {}
func (Mul) implExpr() {}
func (Div) implExpr() {}
func (Eql) implExpr() {}
func (Lth) implExpr() {}
func (Leq) implExpr() {}
func (And) implExpr() {}
func (Or) implExpr() {}
func (Neg) implExpr() {}
func (Not) implExpr() {}
func (Let) implExpr() {}
func (If) implExpr() {}
func (Fn) implExpr() {}
func (App) implExpr() {}
