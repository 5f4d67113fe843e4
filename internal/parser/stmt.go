package parser

import (
	"slices"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/internal/lexer"
)

// subparse reads statements until a block tag opening with one of ends,
// which is left unconsumed. With no ends it reads to the end of input.
func (p *Parser) subparse(ends ...string) ([]Stmt, *Error) {
	var out []Stmt
	for {
		tok := p.next()
		if tok == nil {
			if len(ends) > 0 {
				return nil, p.fail("unexpected end of input, expected keyword '%s'", ends[0])
			}
			return out, nil
		}

		switch tok.Type {
		case lexer.TokenTemplateData:
			out = append(out, &EmitRaw{stmtBase: stmtAt(tok.Span), Raw: tok.Value})

		case lexer.TokenVariableStart:
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.want(lexer.TokenVariableEnd, "end of variable block"); err != nil {
				return nil, err
			}
			out = append(out, &EmitExpr{stmtBase: stmtAt(p.through(tok.Span)), Expr: expr})

		case lexer.TokenBlockStart:
			kw := p.peek()
			if kw == nil {
				return nil, p.failUnexpected(nil, "keyword")
			}
			if kw.Type == lexer.TokenIdent && slices.Contains(ends, kw.Value) {
				return out, nil
			}
			stmt, err := p.parseStmt()
			if err != nil {
				return nil, err
			}
			out = append(out, stmt)
			if err := p.wantBlockEnd(); err != nil {
				return nil, err
			}

		default:
			return nil, p.fail("unexpected %s", describe(tok))
		}
	}
}

// body finishes the opening tag, parses up to the first of ends and
// consumes that end keyword.
func (p *Parser) body(ends ...string) ([]Stmt, string, *Error) {
	if err := p.wantBlockEnd(); err != nil {
		return nil, "", err
	}
	stmts, err := p.subparse(ends...)
	if err != nil {
		return nil, "", err
	}
	return stmts, p.next().Value, nil
}

type stmtParser func(p *Parser, start Span) (Stmt, *Error)

var stmtParsers map[string]stmtParser

func init() {
	stmtParsers = map[string]stmtParser{
		"for":        (*Parser).parseFor,
		"if":         (*Parser).parseIf,
		"with":       (*Parser).parseWith,
		"set":        (*Parser).parseSet,
		"autoescape": (*Parser).parseAutoEscape,
		"filter":     (*Parser).parseFilterBlock,
		"block":      (*Parser).parseBlock,
		"extends":    (*Parser).parseExtends,
		"include":    (*Parser).parseInclude,
		"import":     (*Parser).parseImport,
		"from":       (*Parser).parseFromImport,
		"macro":      (*Parser).parseMacro,
		"call":       (*Parser).parseCallBlock,
		"do":         (*Parser).parseDo,
		"continue":   (*Parser).parseLoopControl,
		"break":      (*Parser).parseLoopControl,
	}
}

func (p *Parser) parseStmt() (Stmt, *Error) {
	leave, err := p.descend()
	if err != nil {
		return nil, err
	}
	defer leave()

	tok := p.next()
	if tok == nil || tok.Type != lexer.TokenIdent {
		return nil, p.failUnexpected(tok, "statement")
	}
	parse, ok := stmtParsers[tok.Value]
	if !ok {
		return nil, p.fail("unknown statement %s", tok.Value)
	}
	return parse(p, tok.Span)
}

func (p *Parser) parseLoopControl(start Span) (Stmt, *Error) {
	tok := p.tokens[p.pos-1]
	if !p.inLoop {
		return nil, p.fail("'%s' must be placed inside a loop", tok.Value)
	}
	if tok.Value == "break" {
		return &Break{stmtAt(start)}, nil
	}
	return &Continue{stmtAt(start)}, nil
}

func (p *Parser) parseExtends(start Span) (Stmt, *Error) {
	name, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &Extends{stmtBase: stmtAt(p.through(start)), Name: name}, nil
}

func (p *Parser) parseDo(start Span) (Stmt, *Error) {
	call, err := p.parseCallExpr("do block")
	if err != nil {
		return nil, err
	}
	return &Do{stmtBase: stmtAt(p.through(start)), Call: call}, nil
}

func (p *Parser) parseCallExpr(where string) (*Call, *Error) {
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	call, ok := expr.(*Call)
	if !ok {
		return nil, p.fail("expected call expression in %s, got %s", where, exprKind(expr))
	}
	return call, nil
}

func exprKind(e Expr) string {
	switch e.(type) {
	case *Var:
		return "variable"
	case *Const:
		return "constant"
	case *Call:
		return "call"
	case *List:
		return "list literal"
	case *Map:
		return "map literal"
	case *Test:
		return "test expression"
	case *Filter:
		return "filter expression"
	}
	return "expression"
}

// parseName reads an assignable name, with attribute paths when dotted
// (`set ns.count = 1`).
func (p *Parser) parseName(dotted bool) (Expr, *Error) {
	name, start, err := p.wantIdent()
	if err != nil {
		return nil, err
	}
	if reservedNames[name] {
		return nil, p.fail("cannot assign to reserved variable name %s", name)
	}
	var target Expr = &Var{exprBase: exprAt(start), ID: name}
	for dotted && p.accept(lexer.TokenDot) {
		attr, _, err := p.wantIdent()
		if err != nil {
			return nil, err
		}
		target = &GetAttr{exprBase: exprAt(p.through(start)), Expr: target, Name: attr}
	}
	return target, nil
}

// parseTarget reads a name or a possibly nested tuple of names.
func (p *Parser) parseTarget(dotted bool) (Expr, *Error) {
	start := p.here()
	var items []Expr
	tuple := false
	for {
		if len(items) > 0 {
			if _, err := p.want(lexer.TokenComma, "`,`"); err != nil {
				return nil, err
			}
		}
		if p.isAny(lexer.TokenParenClose, lexer.TokenVariableEnd, lexer.TokenBlockEnd) || p.isKeyword("in") {
			break
		}
		item, err := p.parseTargetItem(dotted)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if !p.is(lexer.TokenComma) {
			break
		}
		tuple = true
	}

	switch {
	case len(items) == 0:
		return nil, p.fail("expected assignment target")
	case len(items) == 1 && !tuple:
		return items[0], nil
	}
	return &List{exprBase: exprAt(p.through(start)), Items: items}, nil
}

func (p *Parser) parseTargetItem(dotted bool) (Expr, *Error) {
	if !p.accept(lexer.TokenParenOpen) {
		return p.parseName(dotted)
	}
	inner, err := p.parseTarget(dotted)
	if err != nil {
		return nil, err
	}
	if _, err := p.want(lexer.TokenParenClose, "`)`"); err != nil {
		return nil, err
	}
	return inner, nil
}

// inScope runs fn with the loop and macro flags temporarily replaced.
func (p *Parser) inScope(loop, macro bool, fn func() *Error) *Error {
	savedLoop, savedMacro := p.inLoop, p.inMacro
	p.inLoop, p.inMacro = loop, macro
	defer func() { p.inLoop, p.inMacro = savedLoop, savedMacro }()
	return fn()
}

func (p *Parser) parseFor(start Span) (Stmt, *Error) {
	loop := &ForLoop{}
	err := p.inScope(true, p.inMacro, func() *Error {
		var err *Error
		if loop.Target, err = p.parseTarget(false); err != nil {
			return err
		}
		if err = p.wantKeyword("in"); err != nil {
			return err
		}
		if loop.Iter, err = p.parseExprNoIf(); err != nil {
			return err
		}
		if p.acceptKeyword("if") {
			if loop.FilterExpr, err = p.parseExpr(); err != nil {
				return err
			}
		}
		loop.Recursive = p.acceptKeyword("recursive")

		var end string
		if loop.Body, end, err = p.body("endfor", "else"); err != nil {
			return err
		}
		if end == "else" {
			loop.ElseBody, _, err = p.body("endfor")
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	loop.stmtBase = stmtAt(p.through(start))
	return loop, nil
}

func (p *Parser) parseIf(start Span) (Stmt, *Error) {
	cond, err := p.parseExprNoIf()
	if err != nil {
		return nil, err
	}
	stmt := &IfCond{Expr: cond}
	var end string
	if stmt.TrueBody, end, err = p.body("endif", "else", "elif"); err != nil {
		return nil, err
	}

	switch end {
	case "else":
		if stmt.FalseBody, _, err = p.body("endif"); err != nil {
			return nil, err
		}
	case "elif":
		nested, err := p.parseIf(p.last)
		if err != nil {
			return nil, err
		}
		stmt.FalseBody = []Stmt{nested}
	}
	stmt.stmtBase = stmtAt(p.through(start))
	return stmt, nil
}

func (p *Parser) parseWith(start Span) (Stmt, *Error) {
	with := &WithBlock{}
	for !p.is(lexer.TokenBlockEnd) {
		if len(with.Assignments) > 0 {
			if _, err := p.want(lexer.TokenComma, "comma"); err != nil {
				return nil, err
			}
		}
		target, err := p.parseTargetItem(false)
		if err != nil {
			return nil, err
		}
		if _, err := p.want(lexer.TokenAssign, "assignment operator"); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		with.Assignments = append(with.Assignments, Assignment{Target: target, Value: value})
	}

	var err *Error
	if with.Body, _, err = p.body("endwith"); err != nil {
		return nil, err
	}
	with.stmtBase = stmtAt(p.through(start))
	return with, nil
}

func (p *Parser) parseSet(start Span) (Stmt, *Error) {
	target, err := p.parseTarget(true)
	if err != nil {
		return nil, err
	}

	// {% set x %}...{% endset %} or {% set x | upper %}...{% endset %}
	if p.isAny(lexer.TokenBlockEnd, lexer.TokenPipe) {
		var filter Expr
		if p.accept(lexer.TokenPipe) {
			if filter, err = p.parseFilterChain(); err != nil {
				return nil, err
			}
		}
		body, _, err := p.body("endset")
		if err != nil {
			return nil, err
		}
		return &SetBlock{stmtBase: stmtAt(p.through(start)), Target: target, Filter: filter, Body: body}, nil
	}

	if _, err := p.want(lexer.TokenAssign, "assignment operator"); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	// {% set a, b = 1, 2 %}
	if p.accept(lexer.TokenComma) {
		tuple := &List{Items: []Expr{value}}
		for !p.is(lexer.TokenBlockEnd) {
			item, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			tuple.Items = append(tuple.Items, item)
			if !p.accept(lexer.TokenComma) {
				break
			}
		}
		tuple.exprBase = exprAt(p.through(value.Span()))
		value = tuple
	}
	return &Set{stmtBase: stmtAt(p.through(start)), Target: target, Expr: value}, nil
}

// parseFilterChain reads `a | b(x) | c` up to the end of the tag. The head
// of the chain has a nil input.
func (p *Parser) parseFilterChain() (Expr, *Error) {
	var chain Expr
	for !p.is(lexer.TokenBlockEnd) {
		if chain != nil {
			if _, err := p.want(lexer.TokenPipe, "`|`"); err != nil {
				return nil, err
			}
		}
		start := p.here()
		name, args, err := p.parseNamedArgs()
		if err != nil {
			return nil, err
		}
		chain = &Filter{exprBase: exprAt(p.through(start)), Name: name, Expr: chain, Args: args}
	}
	if chain == nil {
		return nil, p.fail("expected a filter")
	}
	return chain, nil
}

func (p *Parser) parseAutoEscape(start Span) (Stmt, *Error) {
	enabled, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, _, err := p.body("endautoescape")
	if err != nil {
		return nil, err
	}
	return &AutoEscape{stmtBase: stmtAt(p.through(start)), Enabled: enabled, Body: body}, nil
}

func (p *Parser) parseFilterBlock(start Span) (Stmt, *Error) {
	filter, err := p.parseFilterChain()
	if err != nil {
		return nil, err
	}
	body, _, err := p.body("endfilter")
	if err != nil {
		return nil, err
	}
	return &FilterBlock{stmtBase: stmtAt(p.through(start)), Filter: filter, Body: body}, nil
}

func (p *Parser) parseBlock(start Span) (Stmt, *Error) {
	if p.inMacro {
		return nil, p.fail("block tags in macros are not allowed")
	}
	name, _, err := p.wantIdent()
	if err != nil {
		return nil, err
	}
	if _, dup := p.blocks[name]; dup {
		return nil, p.fail("block '%s' defined twice", name)
	}
	p.blocks[name] = struct{}{}

	var body []Stmt
	err = p.inScope(false, false, func() *Error {
		var err *Error
		body, _, err = p.body("endblock")
		return err
	})
	if err != nil {
		return nil, err
	}

	// {% endblock name %}
	if tok := p.peek(); tok != nil && tok.Type == lexer.TokenIdent {
		if tok.Value != name {
			return nil, p.fail("mismatching name on block. Got `%s`, expected `%s`", tok.Value, name)
		}
		p.next()
	}
	return &Block{stmtBase: stmtAt(p.through(start)), Name: name, Body: body}, nil
}

// acceptContext skips an optional `with context` or `without context`.
func (p *Parser) acceptContext() (bool, *Error) {
	if !p.acceptKeyword("with") && !p.acceptKeyword("without") {
		return false, nil
	}
	return true, p.wantKeyword("context")
}

func (p *Parser) parseInclude(start Span) (Stmt, *Error) {
	name, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	sawContext, err := p.acceptContext()
	if err != nil {
		return nil, err
	}

	inc := &Include{Name: name}
	if p.acceptKeyword("ignore") {
		if err := p.wantKeyword("missing"); err != nil {
			return nil, err
		}
		if !sawContext {
			if _, err := p.acceptContext(); err != nil {
				return nil, err
			}
		}
		inc.IgnoreMissing = true
	}
	inc.stmtBase = stmtAt(p.through(start))
	return inc, nil
}

func (p *Parser) parseImport(start Span) (Stmt, *Error) {
	source, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.wantKeyword("as"); err != nil {
		return nil, err
	}
	name, err := p.parseName(false)
	if err != nil {
		return nil, err
	}
	if _, err := p.acceptContext(); err != nil {
		return nil, err
	}
	return &Import{stmtBase: stmtAt(p.through(start)), Expr: source, Name: name}, nil
}

func (p *Parser) parseFromImport(start Span) (Stmt, *Error) {
	source, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.wantKeyword("import"); err != nil {
		return nil, err
	}

	imp := &FromImport{Expr: source}
	for !p.is(lexer.TokenBlockEnd) {
		if len(imp.Names) > 0 {
			if _, err := p.want(lexer.TokenComma, "`,`"); err != nil {
				return nil, err
			}
			if p.is(lexer.TokenBlockEnd) {
				break
			}
		}
		if done, err := p.acceptContext(); err != nil {
			return nil, err
		} else if done {
			break
		}

		var entry ImportName
		if entry.Name, err = p.parseName(false); err != nil {
			return nil, err
		}
		if p.acceptKeyword("as") {
			if entry.Alias, err = p.parseName(false); err != nil {
				return nil, err
			}
		}
		imp.Names = append(imp.Names, entry)
	}
	imp.stmtBase = stmtAt(p.through(start))
	return imp, nil
}

func (p *Parser) parseMacro(start Span) (Stmt, *Error) {
	name, _, err := p.wantIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.want(lexer.TokenParenOpen, "`(`"); err != nil {
		return nil, err
	}
	m := &Macro{Name: name}
	if err := p.parseSignature(m); err != nil {
		return nil, err
	}
	if err := p.parseMacroBody(m, "endmacro"); err != nil {
		return nil, err
	}
	m.stmtBase = stmtAt(p.through(start))
	return m, nil
}

// parseSignature reads `a, b=1)` into m, after the opening parenthesis.
// Once a default is given every later argument needs one.
func (p *Parser) parseSignature(m *Macro) *Error {
	return p.commaList(lexer.TokenParenClose, "`)`", func() *Error {
		arg, err := p.parseName(false)
		if err != nil {
			return err
		}
		m.Args = append(m.Args, arg)
		switch {
		case p.accept(lexer.TokenAssign):
			def, err := p.parseExpr()
			if err != nil {
				return err
			}
			m.Defaults = append(m.Defaults, def)
		case len(m.Defaults) > 0:
			_, err := p.want(lexer.TokenAssign, "`=`")
			return err
		}
		return nil
	})
}

func (p *Parser) parseMacroBody(m *Macro, end string) *Error {
	return p.inScope(false, true, func() *Error {
		var err *Error
		m.Body, _, err = p.body(end)
		return err
	})
}

func (p *Parser) parseCallBlock(start Span) (Stmt, *Error) {
	caller := &Macro{Name: "caller"}
	if p.accept(lexer.TokenParenOpen) {
		if err := p.parseSignature(caller); err != nil {
			return nil, err
		}
	}
	call, err := p.parseCallExpr("call block")
	if err != nil {
		return nil, err
	}
	if err := p.parseMacroBody(caller, "endcall"); err != nil {
		return nil, err
	}
	caller.stmtBase = stmtAt(p.through(start))
	return &CallBlock{stmtBase: stmtAt(p.through(start)), Call: call, MacroDecl: caller}, nil
}
