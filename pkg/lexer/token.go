package lexer

// TokenType represents the type of a token
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenIllegal

	// Literals
	TokenIdent // x, foo
	TokenInt   // 42

	// Keywords
	TokenTrue  // true
	TokenFalse // false
	TokenLet   // let
	TokenIn    // in
	TokenEnd   // end
	TokenIf    // if
	TokenThen  // then
	TokenElse  // else
	TokenFn    // fn
	TokenNot   // not
	TokenAnd   // and
	TokenOr    // or

	// Operators
	TokenPlus   // +
	TokenMinus  // -
	TokenStar   // *
	TokenSlash  // /
	TokenEq     // =
	TokenLt     // <
	TokenLe     // <=
	TokenTilde  // ~
	TokenAssign // <-
	TokenArrow  // =>

	// Delimiters
	TokenLParen // (
	TokenRParen // )
)

// Token represents a lexical token with position information
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

var tokenNames = map[TokenType]string{
	TokenEOF:     "EOF",
	TokenIllegal: "ILLEGAL",
	TokenIdent:   "IDENT",
	TokenInt:     "INT",
	TokenTrue:    "true",
	TokenFalse:   "false",
	TokenLet:     "let",
	TokenIn:      "in",
	TokenEnd:     "end",
	TokenIf:      "if",
	TokenThen:    "then",
	TokenElse:    "else",
	TokenFn:      "fn",
	TokenNot:     "not",
	TokenAnd:     "and",
	TokenOr:      "or",
	TokenPlus:    "+",
	TokenMinus:   "-",
	TokenStar:    "*",
	TokenSlash:   "/",
	TokenEq:      "=",
	TokenLt:      "<",
	TokenLe:      "<=",
	TokenTilde:   "~",
	TokenAssign:  "<-",
	TokenArrow:   "=>",
	TokenLParen:  "(",
	TokenRParen:  ")",
}

// String returns a human-readable name for the token type
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

var keywords = map[string]TokenType{
	"true":  TokenTrue,
	"false": TokenFalse,
	"let":   TokenLet,
	"in":    TokenIn,
	"end":   TokenEnd,
	"if":    TokenIf,
	"then":  TokenThen,
	"else":  TokenElse,
	"fn":    TokenFn,
	"not":   TokenNot,
	"and":   TokenAnd,
	"or":    TokenOr,
}

// LookupIdent returns the keyword token type for an identifier, or TokenIdent
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdent
}
