package parser

import (
	"math/big"
	"strconv"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/internal/lexer"
)

// maxArgs caps the argument count of a single call.
const maxArgs = 2000

// Infix levels below `not`, loosest first. Comparisons are handled
// separately because of `in` and `not in`.
var (
	arithLevels = []map[lexer.TokenType]BinOpKind{
		{lexer.TokenPlus: BinOpAdd, lexer.TokenMinus: BinOpSub},
		{lexer.TokenTilde: BinOpConcat},
		{lexer.TokenMul: BinOpMul, lexer.TokenDiv: BinOpDiv, lexer.TokenFloorDiv: BinOpFloorDiv, lexer.TokenMod: BinOpRem},
		{lexer.TokenPow: BinOpPow},
	}
	compareOps = map[lexer.TokenType]BinOpKind{
		lexer.TokenEq: BinOpEq, lexer.TokenNe: BinOpNe,
		lexer.TokenLt: BinOpLt, lexer.TokenLe: BinOpLte,
		lexer.TokenGt: BinOpGt, lexer.TokenGe: BinOpGte,
	}
)

// Tokens that may start the bare argument of a test, as in `x is divisibleby 3`.
var testArgStarts = []lexer.TokenType{
	lexer.TokenIdent, lexer.TokenString, lexer.TokenInteger, lexer.TokenInt128,
	lexer.TokenFloat, lexer.TokenPlus, lexer.TokenMinus,
	lexer.TokenBracketOpen, lexer.TokenBraceOpen,
}

func (p *Parser) parseExpr() (Expr, *Error) {
	leave, err := p.descend()
	if err != nil {
		return nil, err
	}
	defer leave()

	start := p.here()
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("if") {
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		var otherwise Expr
		if p.acceptKeyword("else") {
			if otherwise, err = p.parseExpr(); err != nil {
				return nil, err
			}
		}
		expr = &IfExpr{exprBase: exprAt(p.through(start)), TestExpr: cond, TrueExpr: expr, FalseExpr: otherwise}
	}
	return expr, nil
}

// parseExprNoIf stops before an inline `if`, which loops and keyword
// arguments reserve for themselves.
func (p *Parser) parseExprNoIf() (Expr, *Error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (Expr, *Error) {
	return p.logical("or", BinOpScOr, p.parseAnd)
}

func (p *Parser) parseAnd() (Expr, *Error) {
	return p.logical("and", BinOpScAnd, p.parseNot)
}

func (p *Parser) logical(kw string, op BinOpKind, operand func() (Expr, *Error)) (Expr, *Error) {
	start := p.here()
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword(kw) {
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &BinOp{exprBase: exprAt(p.through(start)), Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Expr, *Error) {
	start := p.here()
	if !p.acceptKeyword("not") {
		return p.parseCompare()
	}
	operand, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	return p.negate(operand, start), nil
}

func (p *Parser) negate(e Expr, start Span) Expr {
	return &UnaryOp{exprBase: exprAt(p.through(start)), Op: UnaryNot, Expr: e}
}

func (p *Parser) parseCompare() (Expr, *Error) {
	start := p.here()
	left, err := p.parseArith(0)
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok == nil {
			return left, nil
		}
		op, ok := compareOps[tok.Type]
		negated := false
		switch {
		case ok:
		case p.isKeyword("in"):
			op = BinOpIn
		case p.isKeyword("not"):
			after := p.peekAt(1)
			if after == nil || after.Type != lexer.TokenIdent || after.Value != "in" {
				return left, nil
			}
			p.next()
			op, negated = BinOpIn, true
		default:
			return left, nil
		}
		p.next()

		right, err := p.parseArith(0)
		if err != nil {
			return nil, err
		}
		left = &BinOp{exprBase: exprAt(p.through(start)), Op: op, Left: left, Right: right}
		if negated {
			left = p.negate(left, start)
		}
	}
}

// parseArith parses arithLevels[level] and everything binding tighter. All
// levels are left associative.
func (p *Parser) parseArith(level int) (Expr, *Error) {
	if level == len(arithLevels) {
		return p.parseUnary()
	}
	start := p.here()
	left, err := p.parseArith(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok == nil {
			return left, nil
		}
		op, ok := arithLevels[level][tok.Type]
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseArith(level + 1)
		if err != nil {
			return nil, err
		}
		left = &BinOp{exprBase: exprAt(p.through(start)), Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() (Expr, *Error) {
	start := p.here()
	expr, err := p.parseNegation()
	if err != nil {
		return nil, err
	}
	if expr, err = p.parsePostfix(expr, start); err != nil {
		return nil, err
	}
	return p.parseFilters(expr, start)
}

func (p *Parser) parseNegation() (Expr, *Error) {
	start := p.here()
	if !p.accept(lexer.TokenMinus) {
		return p.parsePrimary()
	}
	operand, err := p.parseNegation()
	if err != nil {
		return nil, err
	}
	return &UnaryOp{exprBase: exprAt(p.through(start)), Op: UnaryNeg, Expr: operand}, nil
}

// parsePostfix applies attribute access, subscripts, slices and calls.
func (p *Parser) parsePostfix(expr Expr, start Span) (Expr, *Error) {
	for {
		switch {
		case p.accept(lexer.TokenDot):
			tok := p.next()
			switch {
			case tok == nil:
				return nil, p.failUnexpected(nil, "identifier")
			case tok.Type == lexer.TokenIdent:
				expr = &GetAttr{exprBase: exprAt(p.through(start)), Expr: expr, Name: tok.Value}
			case tok.Type == lexer.TokenInteger:
				// x.0 indexes like x[0]
				idx, _ := strconv.ParseInt(tok.Value, 10, 64)
				key := &Const{exprBase: exprAt(tok.Span), Value: idx}
				expr = &GetItem{exprBase: exprAt(p.through(start)), Expr: expr, SubscriptExpr: key}
			default:
				return nil, p.failUnexpected(tok, "identifier")
			}

		case p.accept(lexer.TokenBracketOpen):
			sub, err := p.parseSubscript(expr, start)
			if err != nil {
				return nil, err
			}
			expr = sub

		case p.is(lexer.TokenParenOpen):
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			expr = &Call{exprBase: exprAt(p.through(start)), Expr: expr, Args: args}

		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseSubscript(target Expr, start Span) (Expr, *Error) {
	var bounds [3]Expr
	slice := false
	optional := func(i int, stops ...lexer.TokenType) *Error {
		if p.isAny(stops...) {
			return nil
		}
		e, err := p.parseExpr()
		bounds[i] = e
		return err
	}

	if err := optional(0, lexer.TokenColon); err != nil {
		return nil, err
	}
	if p.accept(lexer.TokenColon) {
		slice = true
		if err := optional(1, lexer.TokenBracketClose, lexer.TokenColon); err != nil {
			return nil, err
		}
		if p.accept(lexer.TokenColon) {
			if err := optional(2, lexer.TokenBracketClose); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.want(lexer.TokenBracketClose, "`]`"); err != nil {
		return nil, err
	}

	base := exprAt(p.through(start))
	if slice {
		return &Slice{exprBase: base, Expr: target, Start: bounds[0], Stop: bounds[1], Step: bounds[2]}, nil
	}
	if bounds[0] == nil {
		return nil, p.fail("empty subscript")
	}
	return &GetItem{exprBase: base, Expr: target, SubscriptExpr: bounds[0]}, nil
}

// parseFilters applies `| filter` and `is test` suffixes.
func (p *Parser) parseFilters(expr Expr, start Span) (Expr, *Error) {
	for {
		switch {
		case p.accept(lexer.TokenPipe):
			name, args, err := p.parseNamedArgs()
			if err != nil {
				return nil, err
			}
			expr = &Filter{exprBase: exprAt(p.through(start)), Name: name, Expr: expr, Args: args}

		case p.acceptKeyword("is"):
			negated := p.acceptKeyword("not")
			name, args, err := p.parseNamedArgs()
			if err != nil {
				return nil, err
			}
			if args == nil && p.isAny(testArgStarts...) && !p.isKeyword("and", "or", "else", "is", "if", "not", "in") {
				argStart := p.here()
				arg, err := p.parseNegation()
				if err != nil {
					return nil, err
				}
				if arg, err = p.parsePostfix(arg, argStart); err != nil {
					return nil, err
				}
				args = []CallArg{{Kind: CallArgPos, Value: arg}}
			}
			expr = &Test{exprBase: exprAt(p.through(start)), Name: name, Expr: expr, Args: args}
			if negated {
				expr = p.negate(expr, start)
			}

		default:
			return expr, nil
		}
	}
}

// parseNamedArgs reads a filter or test name and its parenthesized
// arguments, if any. Args is nil when there are no parentheses.
func (p *Parser) parseNamedArgs() (string, []CallArg, *Error) {
	name, _, err := p.wantIdent()
	if err != nil {
		return "", nil, err
	}
	if !p.is(lexer.TokenParenOpen) {
		return name, nil, nil
	}
	args, err := p.parseArgs()
	if args == nil && err == nil {
		args = []CallArg{}
	}
	return name, args, err
}

func (p *Parser) parseArgs() ([]CallArg, *Error) {
	if _, err := p.want(lexer.TokenParenOpen, "`(`"); err != nil {
		return nil, err
	}
	var args []CallArg
	sawKwarg := false
	err := p.commaList(lexer.TokenParenClose, "`)`", func() *Error {
		kind := CallArgPos
		switch {
		case p.accept(lexer.TokenPow):
			kind = CallArgKwargSplat
		case p.accept(lexer.TokenMul):
			kind = CallArgPosSplat
		}
		value, err := p.parseExpr()
		if err != nil {
			return err
		}

		arg := CallArg{Kind: kind, Value: value}
		if v, isVar := value.(*Var); kind == CallArgPos && isVar && p.accept(lexer.TokenAssign) {
			if arg.Value, err = p.parseExprNoIf(); err != nil {
				return err
			}
			arg.Kind, arg.Name = CallArgKwarg, v.ID
		}
		switch arg.Kind {
		case CallArgKwarg, CallArgKwargSplat:
			sawKwarg = true
		case CallArgPos:
			if sawKwarg {
				return p.fail("non-keyword arg after keyword arg")
			}
		}

		args = append(args, arg)
		if len(args) > maxArgs {
			return p.fail("too many arguments in function call")
		}
		return nil
	})
	return args, err
}

func (p *Parser) parsePrimary() (Expr, *Error) {
	leave, err := p.descend()
	if err != nil {
		return nil, err
	}
	defer leave()

	tok := p.next()
	if tok == nil {
		return nil, p.failUnexpected(nil, "expression")
	}
	here := exprAt(tok.Span)

	switch tok.Type {
	case lexer.TokenIdent:
		switch tok.Value {
		case "true", "True":
			return &Const{exprBase: here, Value: true}, nil
		case "false", "False":
			return &Const{exprBase: here, Value: false}, nil
		case "none", "None":
			return &Const{exprBase: here, Value: nil}, nil
		}
		return &Var{exprBase: here, ID: tok.Value}, nil

	case lexer.TokenString:
		// "a" "b" is "ab"
		s := tok.Value
		for p.is(lexer.TokenString) {
			s += p.next().Value
		}
		return &Const{exprBase: exprAt(p.through(tok.Span)), Value: s}, nil

	case lexer.TokenInteger, lexer.TokenInt128:
		if n, err := strconv.ParseInt(tok.Value, 10, 64); err == nil {
			return &Const{exprBase: here, Value: n}, nil
		}
		n, ok := new(big.Int).SetString(tok.Value, 10)
		if !ok {
			return nil, p.fail("invalid integer")
		}
		return &Const{exprBase: here, Value: n}, nil

	case lexer.TokenFloat:
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, p.fail("invalid float")
		}
		return &Const{exprBase: here, Value: f}, nil

	case lexer.TokenParenOpen:
		return p.parseParenthesized(tok.Span)

	case lexer.TokenBracketOpen:
		var items []Expr
		err := p.commaList(lexer.TokenBracketClose, "`]`", func() *Error {
			item, err := p.parseExpr()
			items = append(items, item)
			return err
		})
		if err != nil {
			return nil, err
		}
		return &List{exprBase: exprAt(p.through(tok.Span)), Items: items}, nil

	case lexer.TokenBraceOpen:
		m := &Map{}
		err := p.commaList(lexer.TokenBraceClose, "`}`", func() *Error {
			k, err := p.parseExpr()
			if err != nil {
				return err
			}
			if _, err := p.want(lexer.TokenColon, "`:`"); err != nil {
				return err
			}
			v, err := p.parseExpr()
			if err != nil {
				return err
			}
			m.Keys = append(m.Keys, k)
			m.Values = append(m.Values, v)
			return nil
		})
		if err != nil {
			return nil, err
		}
		m.exprBase = exprAt(p.through(tok.Span))
		return m, nil
	}
	return nil, p.fail("unexpected %s", describe(tok))
}

// parseParenthesized handles (), (x) and tuples, which become lists.
func (p *Parser) parseParenthesized(start Span) (Expr, *Error) {
	if p.accept(lexer.TokenParenClose) {
		return &List{exprBase: exprAt(p.through(start))}, nil
	}
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.accept(lexer.TokenComma) {
		if _, err := p.want(lexer.TokenParenClose, "`)`"); err != nil {
			return nil, err
		}
		return first, nil
	}

	items := []Expr{first}
	for !p.accept(lexer.TokenParenClose) {
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if !p.accept(lexer.TokenComma) {
			if _, err := p.want(lexer.TokenParenClose, "`)`"); err != nil {
				return nil, err
			}
			break
		}
	}
	return &List{exprBase: exprAt(p.through(start)), Items: items}, nil
}
