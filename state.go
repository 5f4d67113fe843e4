package minijinja

import (
	"fmt"
	"io"
	"strings"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/internal/parser"
	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/value"
)

// State holds the evaluation state during template rendering. Filters,
// tests and functions receive it to look up variables and settings.
type State struct {
	env          *Environment
	rt           *runtime
	name         string
	source       string
	autoEscape   AutoEscape
	ctx          value.Value
	scopes       []map[string]value.Value
	blocks       map[string]*blockStack
	out          io.Writer
	currentBlock *blockFrame
	parent       *compiledTemplate // set once the template executed extends
}

// runtime is shared by every State taking part in one render: the root
// template, its includes, imports and macro calls.
type runtime struct {
	depth int
	limit int
	fuel  *fuelTracker
}

func (r *runtime) enter() error {
	if r.depth >= r.limit {
		return NewError(ErrInvalidOperation, "recursion limit exceeded")
	}
	r.depth++
	return nil
}

func (r *runtime) leave() {
	r.depth--
}

func (r *runtime) tick() error {
	if r.fuel == nil {
		return nil
	}
	return r.fuel.consume(1)
}

// blockStack manages the inheritance chain for a single block.
type blockStack struct {
	layers []blockLayer // child first
}

type blockLayer struct {
	body []parser.Stmt
	tmpl *compiledTemplate
}

type blockFrame struct {
	name  string
	index int
	stack *blockStack
}

// sentinel errors for loop control
var (
	errContinue = fmt.Errorf("continue")
	errBreak    = fmt.Errorf("break")
)

func newState(env *Environment, tmpl *compiledTemplate, ctx value.Value) *State {
	var fuel *fuelTracker
	if env.fuel != nil {
		fuel = newFuelTracker(*env.fuel)
	}
	return &State{
		env:        env,
		rt:         &runtime{limit: env.recursionLimit, fuel: fuel},
		name:       tmpl.name,
		source:     tmpl.source,
		autoEscape: env.autoEscapeFunc(tmpl.name),
		ctx:        value.MergeMaps(value.FromMap(env.globals), ctx),
		scopes:     []map[string]value.Value{{}},
		blocks:     make(map[string]*blockStack),
	}
}

// fork creates a state for rendering another template within the same
// render. The new state starts with an empty scope chain.
func (s *State) fork(tmpl *compiledTemplate) *State {
	return &State{
		env:        s.env,
		rt:         s.rt,
		name:       tmpl.name,
		source:     tmpl.source,
		autoEscape: s.env.autoEscapeFunc(tmpl.name),
		ctx:        s.ctx,
		scopes:     []map[string]value.Value{{}},
		blocks:     make(map[string]*blockStack),
	}
}

// Name returns the name of the template being rendered.
func (s *State) Name() string {
	return s.name
}

// Env returns the environment of the render.
func (s *State) Env() *Environment {
	return s.env
}

// AutoEscape returns the auto escape mode in effect.
func (s *State) AutoEscape() AutoEscape {
	return s.autoEscape
}

// UndefinedBehavior returns the undefined behavior of the render.
func (s *State) UndefinedBehavior() UndefinedBehavior {
	return s.env.undefinedBehavior
}

// Lookup looks up a variable in the current scope chain, then in the
// render context and globals, then among the registered functions.
func (s *State) Lookup(name string) value.Value {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if v, ok := s.scopes[i][name]; ok {
			return v
		}
	}
	if v := s.ctx.GetAttr(name); !v.IsUndefined() {
		return v
	}
	if fn, ok := s.env.getFunction(name); ok {
		return value.FromCallable(&boundFunction{name: name, fn: fn})
	}
	return value.Undefined()
}

// Set sets a variable in the current scope.
func (s *State) Set(name string, val value.Value) {
	s.scopes[len(s.scopes)-1][name] = val
}

func (s *State) pushScope() {
	s.scopes = append(s.scopes, make(map[string]value.Value))
}

func (s *State) popScope() {
	if len(s.scopes) > 1 {
		s.scopes = s.scopes[:len(s.scopes)-1]
	}
}

// capture runs f with output redirected into a buffer and returns what was
// written.
func (s *State) capture(f func() error) (string, error) {
	var buf strings.Builder
	old := s.out
	s.out = &buf
	err := f()
	s.out = old
	return buf.String(), err
}

// render evaluates a template, following extends to the root layout.
func (s *State) render(tmpl *compiledTemplate, out io.Writer) error {
	entered := 0
	defer func() {
		for ; entered > 0; entered-- {
			s.rt.leave()
		}
	}()

	current := tmpl
	for {
		s.name, s.source = current.name, current.source
		s.autoEscape = s.env.autoEscapeFunc(current.name)
		s.out = out
		s.parent = nil
		s.collectBlocks(current, current.ast.Children)

		if err := s.evalStmts(current.ast.Children); err != nil {
			return err
		}
		if s.parent == nil {
			return nil
		}
		if err := s.rt.enter(); err != nil {
			return err
		}
		entered++
		current = s.parent
	}
}

func (s *State) collectBlocks(tmpl *compiledTemplate, stmts []parser.Stmt) {
	for _, stmt := range stmts {
		switch st := stmt.(type) {
		case *parser.Block:
			bs := s.blocks[st.Name]
			if bs == nil {
				bs = &blockStack{}
				s.blocks[st.Name] = bs
			}
			bs.layers = append(bs.layers, blockLayer{body: st.Body, tmpl: tmpl})
			s.collectBlocks(tmpl, st.Body)
		case *parser.ForLoop:
			s.collectBlocks(tmpl, st.Body)
			s.collectBlocks(tmpl, st.ElseBody)
		case *parser.IfCond:
			s.collectBlocks(tmpl, st.TrueBody)
			s.collectBlocks(tmpl, st.FalseBody)
		case *parser.WithBlock:
			s.collectBlocks(tmpl, st.Body)
		case *parser.AutoEscape:
			s.collectBlocks(tmpl, st.Body)
		case *parser.FilterBlock:
			s.collectBlocks(tmpl, st.Body)
		}
	}
}

func (s *State) evalStmts(stmts []parser.Stmt) error {
	for _, stmt := range stmts {
		if err := s.evalStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) evalStmt(stmt parser.Stmt) error {
	if err := s.rt.tick(); err != nil {
		return s.annotate(err, stmt)
	}

	var err error
	switch st := stmt.(type) {
	case *parser.EmitRaw:
		_, err = io.WriteString(s.out, st.Raw)
	case *parser.EmitExpr:
		var val value.Value
		if val, err = s.evalExpr(st.Expr); err == nil {
			err = s.writeValue(val)
		}
	case *parser.ForLoop:
		err = s.evalForLoop(st)
	case *parser.IfCond:
		err = s.evalIfCond(st)
	case *parser.WithBlock:
		err = s.evalWithBlock(st)
	case *parser.Set:
		err = s.evalSet(st)
	case *parser.SetBlock:
		err = s.evalSetBlock(st)
	case *parser.Block:
		err = s.evalBlock(st)
	case *parser.Extends:
		err = s.evalExtends(st)
	case *parser.Include:
		err = s.evalInclude(st)
	case *parser.Import:
		err = s.evalImport(st)
	case *parser.FromImport:
		err = s.evalFromImport(st)
	case *parser.Macro:
		s.Set(st.Name, s.makeMacro(st))
	case *parser.CallBlock:
		var val value.Value
		caller := map[string]value.Value{"caller": s.makeMacro(st.MacroDecl)}
		if val, err = s.evalCall(st.Call, caller); err == nil {
			err = s.writeValue(val)
		}
	case *parser.FilterBlock:
		err = s.evalFilterBlock(st)
	case *parser.AutoEscape:
		err = s.evalAutoEscape(st)
	case *parser.Do:
		_, err = s.evalCall(st.Call, nil)
	case *parser.Continue:
		return errContinue
	case *parser.Break:
		return errBreak
	default:
		err = NewError(ErrInvalidOperation, fmt.Sprintf("unsupported statement type: %T", stmt))
	}
	return s.annotate(err, stmt)
}

func (s *State) writeValue(val value.Value) error {
	if val.IsUndefined() {
		if !s.UndefinedBehavior().AllowsPrint() {
			return NewError(ErrUndefinedVar, "")
		}
		return nil
	}

	str := val.String()
	if s.autoEscape == AutoEscapeHTML && !val.IsSafe() {
		str = EscapeHTML(str)
	}
	_, err := io.WriteString(s.out, str)
	return err
}

// truthy evaluates a value in a boolean context.
func (s *State) truthy(val value.Value) (bool, error) {
	if val.IsUndefined() && !s.UndefinedBehavior().AllowsTruthiness() {
		return false, NewError(ErrUndefinedVar, "")
	}
	return val.IsTrue(), nil
}

// iterate returns the items a for loop over val visits.
func (s *State) iterate(val value.Value) ([]value.Value, error) {
	if val.IsUndefined() {
		if !s.UndefinedBehavior().AllowsIteration() {
			return nil, NewError(ErrUndefinedVar, "")
		}
		return nil, nil
	}
	items, ok := val.Iter()
	if !ok {
		return nil, NewError(ErrInvalidOperation, fmt.Sprintf("%s is not iterable", val.Kind()))
	}
	return items, nil
}

func (s *State) evalForLoop(loop *parser.ForLoop) error {
	iterVal, err := s.evalExpr(loop.Iter)
	if err != nil {
		return err
	}
	items, err := s.iterate(iterVal)
	if err != nil {
		return err
	}
	return s.runLoop(loop, items, 1)
}

func (s *State) runLoop(loop *parser.ForLoop, items []value.Value, depth int) error {
	s.pushScope()
	defer s.popScope()

	if loop.FilterExpr != nil {
		filtered := make([]value.Value, 0, len(items))
		for _, item := range items {
			if err := s.unpackTarget(loop.Target, item); err != nil {
				return err
			}
			cond, err := s.evalExpr(loop.FilterExpr)
			if err != nil {
				return err
			}
			keep, err := s.truthy(cond)
			if err != nil {
				return err
			}
			if keep {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	if len(items) == 0 {
		return s.evalStmts(loop.ElseBody)
	}

	lo := &loopObject{items: items, depth: depth}
	if loop.Recursive {
		lo.recurse = func(nested value.Value) (value.Value, error) {
			nestedItems, err := s.iterate(nested)
			if err != nil {
				return value.Undefined(), err
			}
			if err := s.rt.enter(); err != nil {
				return value.Undefined(), err
			}
			defer s.rt.leave()
			out, err := s.capture(func() error {
				return s.runLoop(loop, nestedItems, depth+1)
			})
			if err != nil {
				return value.Undefined(), err
			}
			return value.FromSafeString(out), nil
		}
	}

	loopVal := value.FromObject(lo)
	for i, item := range items {
		if err := s.rt.tick(); err != nil {
			return err
		}
		lo.index = i
		if err := s.unpackTarget(loop.Target, item); err != nil {
			return err
		}
		s.Set("loop", loopVal)

		err := s.evalStmts(loop.Body)
		if err == errContinue {
			continue
		}
		if err == errBreak {
			break
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *State) unpackTarget(target parser.Expr, val value.Value) error {
	switch t := target.(type) {
	case *parser.Var:
		s.Set(t.ID, val)
		return nil
	case *parser.List:
		items, ok := val.Iter()
		if !ok {
			return NewError(ErrCannotUnpack, fmt.Sprintf("cannot unpack %s", val.Kind()))
		}
		if len(items) != len(t.Items) {
			return NewError(ErrCannotUnpack, fmt.Sprintf("sequence of wrong length (expected %d, got %d)", len(t.Items), len(items)))
		}
		for i, item := range t.Items {
			if err := s.unpackTarget(item, items[i]); err != nil {
				return err
			}
		}
		return nil
	case *parser.GetAttr:
		obj, err := s.evalExpr(t.Expr)
		if err != nil {
			return err
		}
		mutable, ok := obj.AsMutableObject()
		if !ok {
			return NewError(ErrInvalidOperation, "can only assign to attributes of namespaces")
		}
		mutable.SetAttr(t.Name, val)
		return nil
	}
	return NewError(ErrInvalidOperation, "invalid assignment target")
}

func (s *State) evalIfCond(cond *parser.IfCond) error {
	val, err := s.evalExpr(cond.Expr)
	if err != nil {
		return err
	}
	ok, err := s.truthy(val)
	if err != nil {
		return err
	}
	if ok {
		return s.evalStmts(cond.TrueBody)
	}
	return s.evalStmts(cond.FalseBody)
}

func (s *State) evalWithBlock(block *parser.WithBlock) error {
	vals := make([]value.Value, len(block.Assignments))
	for i, assign := range block.Assignments {
		val, err := s.evalExpr(assign.Value)
		if err != nil {
			return err
		}
		vals[i] = val
	}

	s.pushScope()
	defer s.popScope()
	for i, assign := range block.Assignments {
		if err := s.unpackTarget(assign.Target, vals[i]); err != nil {
			return err
		}
	}
	return s.evalStmts(block.Body)
}

func (s *State) evalSet(set *parser.Set) error {
	val, err := s.evalExpr(set.Expr)
	if err != nil {
		return err
	}
	return s.unpackTarget(set.Target, val)
}

// captured wraps captured output; it is safe when auto escaping produced it.
func (s *State) captured(out string) value.Value {
	if s.autoEscape != AutoEscapeNone {
		return value.FromSafeString(out)
	}
	return value.FromString(out)
}

func (s *State) evalSetBlock(block *parser.SetBlock) error {
	out, err := s.capture(func() error {
		return s.evalStmts(block.Body)
	})
	if err != nil {
		return err
	}

	result := s.captured(out)
	if block.Filter != nil {
		if result, err = s.applyFilterChain(block.Filter, result); err != nil {
			return err
		}
	}
	return s.unpackTarget(block.Target, result)
}

func (s *State) evalFilterBlock(block *parser.FilterBlock) error {
	out, err := s.capture(func() error {
		return s.evalStmts(block.Body)
	})
	if err != nil {
		return err
	}
	result, err := s.applyFilterChain(block.Filter, s.captured(out))
	if err != nil {
		return err
	}
	return s.writeValue(result)
}

func (s *State) evalAutoEscape(ae *parser.AutoEscape) error {
	val, err := s.evalExpr(ae.Enabled)
	if err != nil {
		return err
	}

	mode := s.autoEscape
	if b, ok := val.AsBool(); ok {
		mode = AutoEscapeNone
		if b {
			mode = AutoEscapeHTML
		}
	} else if str, ok := val.AsString(); ok {
		switch str {
		case "html":
			mode = AutoEscapeHTML
		case "none":
			mode = AutoEscapeNone
		default:
			return NewError(ErrInvalidOperation, fmt.Sprintf("unsupported auto escape mode %q", str))
		}
	} else {
		return NewError(ErrInvalidOperation, "invalid value to autoescape tag")
	}

	old := s.autoEscape
	s.autoEscape = mode
	defer func() { s.autoEscape = old }()
	return s.evalStmts(ae.Body)
}

func (s *State) evalExtends(ext *parser.Extends) error {
	if s.parent != nil {
		return NewError(ErrInvalidOperation, "tried to extend a second time in a template")
	}
	name, err := s.evalTemplateName(ext.Name, "extends")
	if err != nil {
		return err
	}
	parent, err := s.env.GetTemplate(name)
	if err != nil {
		return err
	}
	s.parent = parent.compiled
	s.out = io.Discard
	return nil
}

func (s *State) evalBlock(block *parser.Block) error {
	// Output of an extending template is discarded; its blocks only
	// render as part of the layout.
	if s.parent != nil {
		return nil
	}
	bs := s.blocks[block.Name]
	if bs == nil || len(bs.layers) == 0 {
		return NewError(ErrUnknownBlock, fmt.Sprintf("block '%s' not found", block.Name))
	}
	return s.renderBlockLayer(block.Name, bs, 0)
}

func (s *State) renderBlockLayer(name string, bs *blockStack, index int) error {
	layer := bs.layers[index]

	oldFrame, oldName, oldSource := s.currentBlock, s.name, s.source
	s.currentBlock = &blockFrame{name: name, index: index, stack: bs}
	s.name, s.source = layer.tmpl.name, layer.tmpl.source
	s.pushScope()
	defer func() {
		s.popScope()
		s.currentBlock, s.name, s.source = oldFrame, oldName, oldSource
	}()

	return s.evalStmts(layer.body)
}

func (s *State) evalSuper() (value.Value, error) {
	frame := s.currentBlock
	if frame == nil {
		return value.Undefined(), NewError(ErrInvalidOperation, "super() can only be used inside a block")
	}
	if frame.index+1 >= len(frame.stack.layers) {
		return value.Undefined(), NewError(ErrInvalidOperation, "no parent block exists")
	}

	out, err := s.capture(func() error {
		return s.renderBlockLayer(frame.name, frame.stack, frame.index+1)
	})
	if err != nil {
		return value.Undefined(), err
	}
	return value.FromSafeString(out), nil
}

func (s *State) evalTemplateName(expr parser.Expr, what string) (string, error) {
	val, err := s.evalExpr(expr)
	if err != nil {
		return "", err
	}
	name, ok := val.AsString()
	if !ok {
		return "", NewError(ErrInvalidOperation, fmt.Sprintf("%s name must be a string, got %s", what, val.Kind()))
	}
	return name, nil
}

func (s *State) evalInclude(inc *parser.Include) error {
	nameVal, err := s.evalExpr(inc.Name)
	if err != nil {
		return err
	}

	var candidates []value.Value
	if items, ok := nameVal.AsSlice(); ok {
		candidates = items
	} else {
		candidates = []value.Value{nameVal}
	}

	var tmpl *Template
	var notFound error
	for _, candidate := range candidates {
		name, ok := candidate.AsString()
		if !ok {
			return NewError(ErrInvalidOperation, fmt.Sprintf("include name must be a string, got %s", candidate.Kind()))
		}
		t, err := s.env.GetTemplate(name)
		if err == nil {
			tmpl = t
			break
		}
		if tmplErr, ok := err.(*Error); !ok || tmplErr.Kind != ErrTemplateNotFound {
			return err
		}
		notFound = err
	}
	if tmpl == nil {
		if inc.IgnoreMissing {
			return nil
		}
		if notFound == nil {
			notFound = NewError(ErrTemplateNotFound, "no template to include")
		}
		return notFound
	}

	if err := s.rt.enter(); err != nil {
		return err
	}
	defer s.rt.leave()

	child := s.fork(tmpl.compiled)
	child.scopes = append(append([]map[string]value.Value(nil), s.scopes...), map[string]value.Value{})
	if err := child.render(tmpl.compiled, s.out); err != nil {
		return NewError(ErrBadInclude, fmt.Sprintf("error in %q", tmpl.compiled.name)).WithCause(err)
	}
	return nil
}

// loadModule renders a template for its top-level definitions and returns
// them as a map.
func (s *State) loadModule(nameExpr parser.Expr) (value.Value, string, error) {
	name, err := s.evalTemplateName(nameExpr, "import")
	if err != nil {
		return value.Undefined(), "", err
	}
	tmpl, err := s.env.GetTemplate(name)
	if err != nil {
		return value.Undefined(), name, err
	}

	if err := s.rt.enter(); err != nil {
		return value.Undefined(), name, err
	}
	defer s.rt.leave()

	child := s.fork(tmpl.compiled)
	if err := child.render(tmpl.compiled, io.Discard); err != nil {
		return value.Undefined(), name, err
	}

	exports := make(map[string]value.Value, len(child.scopes[0]))
	for k, v := range child.scopes[0] {
		exports[k] = v
	}
	return value.FromMap(exports), name, nil
}

func assignName(expr parser.Expr) (string, error) {
	if v, ok := expr.(*parser.Var); ok {
		return v.ID, nil
	}
	return "", NewError(ErrInvalidOperation, "import target must be a name")
}

func (s *State) evalImport(imp *parser.Import) error {
	module, _, err := s.loadModule(imp.Expr)
	if err != nil {
		return err
	}
	alias, err := assignName(imp.Name)
	if err != nil {
		return err
	}
	s.Set(alias, module)
	return nil
}

func (s *State) evalFromImport(frm *parser.FromImport) error {
	module, path, err := s.loadModule(frm.Expr)
	if err != nil {
		return err
	}

	for _, imported := range frm.Names {
		name, err := assignName(imported.Name)
		if err != nil {
			return err
		}
		alias := name
		if imported.Alias != nil {
			if alias, err = assignName(imported.Alias); err != nil {
				return err
			}
		}

		item := module.GetAttr(name)
		if item.IsUndefined() {
			return NewError(ErrUndefinedVar, fmt.Sprintf("%s not found in %s", name, path))
		}
		s.Set(alias, item)
	}
	return nil
}
