// Package parser turns a token stream into the template syntax tree.
package parser

import (
	"math/big"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/internal/lexer"
)

// Span is a source range.
type Span = lexer.Span

// Node is any syntax tree node.
type Node interface {
	node()
	Span() Span
}

// Stmt is a node that produces output or changes render state.
type Stmt interface {
	Node
	stmt()
}

// Expr is a node that evaluates to a value.
type Expr interface {
	Node
	expr()
}

// at records where a node came from. Every node embeds one through
// stmtBase or exprBase.
type at struct{ span Span }

func (a at) Span() Span { return a.span }
func (at) node()        {}

type stmtBase struct{ at }

func (stmtBase) stmt() {}

type exprBase struct{ at }

func (exprBase) expr() {}

func stmtAt(s Span) stmtBase { return stmtBase{at{s}} }
func exprAt(s Span) exprBase { return exprBase{at{s}} }

// Statements.
type (
	// Template is the root of a parsed source.
	Template struct {
		stmtBase
		Children []Stmt
	}

	// EmitRaw writes literal template data.
	EmitRaw struct {
		stmtBase
		Raw string
	}

	// EmitExpr writes the value of {{ Expr }}.
	EmitExpr struct {
		stmtBase
		Expr Expr
	}

	ForLoop struct {
		stmtBase
		Target     Expr
		Iter       Expr
		FilterExpr Expr // nil without an inline if
		Recursive  bool
		Body       []Stmt
		ElseBody   []Stmt
	}

	// IfCond is an if statement; elif chains nest in FalseBody.
	IfCond struct {
		stmtBase
		Expr      Expr
		TrueBody  []Stmt
		FalseBody []Stmt
	}

	WithBlock struct {
		stmtBase
		Assignments []Assignment
		Body        []Stmt
	}

	// Set assigns Expr to Target in the current frame.
	Set struct {
		stmtBase
		Target Expr
		Expr   Expr
	}

	// SetBlock captures its rendered body into Target, optionally piped
	// through Filter first.
	SetBlock struct {
		stmtBase
		Target Expr
		Filter Expr
		Body   []Stmt
	}

	AutoEscape struct {
		stmtBase
		Enabled Expr
		Body    []Stmt
	}

	FilterBlock struct {
		stmtBase
		Filter Expr
		Body   []Stmt
	}

	// Block is an overridable named region.
	Block struct {
		stmtBase
		Name string
		Body []Stmt
	}

	Extends struct {
		stmtBase
		Name Expr
	}

	Include struct {
		stmtBase
		Name          Expr
		IgnoreMissing bool
	}

	// Import binds a whole template module to Name.
	Import struct {
		stmtBase
		Expr Expr
		Name Expr
	}

	FromImport struct {
		stmtBase
		Expr  Expr
		Names []ImportName
	}

	// Macro declares a callable. Call blocks produce one named "caller".
	Macro struct {
		stmtBase
		Name     string
		Args     []Expr
		Defaults []Expr // aligned to the tail of Args
		Body     []Stmt
	}

	CallBlock struct {
		stmtBase
		Call      *Call
		MacroDecl *Macro
	}

	Do struct {
		stmtBase
		Call *Call
	}

	Continue struct{ stmtBase }
	Break    struct{ stmtBase }
)

// Assignment is one target = value pair of a with block.
type Assignment struct {
	Target Expr
	Value  Expr
}

// ImportName is an imported name with an optional alias.
type ImportName struct {
	Name  Expr
	Alias Expr
}

// UnaryOpKind selects a prefix operator.
type UnaryOpKind int

const (
	UnaryNot UnaryOpKind = iota
	UnaryNeg
)

// BinOpKind selects an infix operator.
type BinOpKind int

const (
	BinOpEq BinOpKind = iota
	BinOpNe
	BinOpLt
	BinOpLte
	BinOpGt
	BinOpGte
	BinOpScAnd
	BinOpScOr
	BinOpAdd
	BinOpSub
	BinOpMul
	BinOpDiv
	BinOpFloorDiv
	BinOpRem
	BinOpPow
	BinOpConcat
	BinOpIn
)

var binOpSymbols = [...]string{
	BinOpEq: "==", BinOpNe: "!=",
	BinOpLt: "<", BinOpLte: "<=", BinOpGt: ">", BinOpGte: ">=",
	BinOpScAnd: "and", BinOpScOr: "or",
	BinOpAdd: "+", BinOpSub: "-", BinOpMul: "*", BinOpDiv: "/",
	BinOpFloorDiv: "//", BinOpRem: "%", BinOpPow: "**",
	BinOpConcat: "~", BinOpIn: "in",
}

func (k BinOpKind) String() string {
	if int(k) < len(binOpSymbols) {
		return binOpSymbols[k]
	}
	return "?"
}

// CallArgKind tells positional, keyword and splatted arguments apart.
type CallArgKind int

const (
	CallArgPos CallArgKind = iota
	CallArgKwarg
	CallArgPosSplat
	CallArgKwargSplat
)

// CallArg is one argument of a call, filter or test. Name is only set for
// keyword arguments.
type CallArg struct {
	Kind  CallArgKind
	Name  string
	Value Expr
}

// Expressions.
type (
	Var struct {
		exprBase
		ID string
	}

	// Const holds a literal: string, int64, *big.Int, float64, bool or nil.
	Const struct {
		exprBase
		Value any
	}

	UnaryOp struct {
		exprBase
		Op   UnaryOpKind
		Expr Expr
	}

	BinOp struct {
		exprBase
		Op    BinOpKind
		Left  Expr
		Right Expr
	}

	// IfExpr is `TrueExpr if TestExpr else FalseExpr`; FalseExpr may be nil.
	IfExpr struct {
		exprBase
		TestExpr  Expr
		TrueExpr  Expr
		FalseExpr Expr
	}

	// Filter applies Name to Expr. Expr is nil for the head of a chain in
	// set and filter blocks, where the body is the input.
	Filter struct {
		exprBase
		Name string
		Expr Expr
		Args []CallArg
	}

	Test struct {
		exprBase
		Name string
		Expr Expr
		Args []CallArg
	}

	GetAttr struct {
		exprBase
		Expr Expr
		Name string
	}

	GetItem struct {
		exprBase
		Expr          Expr
		SubscriptExpr Expr
	}

	// Slice is x[start:stop:step]; each bound may be nil.
	Slice struct {
		exprBase
		Expr  Expr
		Start Expr
		Stop  Expr
		Step  Expr
	}

	Call struct {
		exprBase
		Expr Expr
		Args []CallArg
	}

	// List is a list literal. Tuples parse to lists too.
	List struct {
		exprBase
		Items []Expr
	}

	Map struct {
		exprBase
		Keys   []Expr
		Values []Expr
	}
)

// BigInt reports the constant as a big integer when it is one.
func (c *Const) BigInt() (*big.Int, bool) {
	b, ok := c.Value.(*big.Int)
	return b, ok
}
