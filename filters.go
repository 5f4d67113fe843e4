package minijinja

import (
	"encoding/json"
	"fmt"
	"html"
	"math"
	"math/big"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/value"
)

func registerDefaultFilters(env *Environment) {
	for name, fn := range map[string]FilterFunc{
		"upper":      filterUpper,
		"lower":      filterLower,
		"capitalize": filterCapitalize,
		"title":      filterTitle,
		"trim":       filterTrim,
		"replace":    filterReplace,
		"striptags":  filterStriptags,
		"default":    filterDefault,
		"d":          filterDefault,
		"safe":       filterSafe,
		"escape":     filterEscape,
		"e":          filterEscape,
		"string":     filterString,
		"bool":       filterBool,
		"split":      filterSplit,
		"lines":      filterLines,
		"length":     filterLength,
		"count":      filterLength,
		"first":      filterFirst,
		"last":       filterLast,
		"reverse":    filterReverse,
		"sort":       filterSort,
		"join":       filterJoin,
		"list":       filterList,
		"unique":     filterUnique,
		"min":        filterMin,
		"max":        filterMax,
		"sum":        filterSum,
		"batch":      filterBatch,
		"slice":      filterSlice,
		"map":        filterMap,
		"select":     filterSelect,
		"reject":     filterReject,
		"selectattr": filterSelectAttr,
		"rejectattr": filterRejectAttr,
		"groupby":    filterGroupBy,
		"chain":      filterChain,
		"zip":        filterZip,
		"abs":        filterAbs,
		"int":        filterInt,
		"float":      filterFloat,
		"round":      filterRound,
		"items":      filterItems,
		"keys":       filterKeys,
		"values":     filterValues,
		"dictsort":   filterDictSort,
		"attr":       filterAttr,
		"indent":     filterIndent,
		"pprint":     filterPprint,
		"tojson":     filterTojson,
		"urlencode":  filterUrlencode,
	} {
		env.AddFilter(name, fn)
	}
}

// iterArg returns the items of a filter input. Undefined iterates as empty
// when the undefined behavior allows it.
func iterArg(state *State, name string, val value.Value) ([]value.Value, error) {
	if val.IsUndefined() {
		if state != nil && !state.UndefinedBehavior().AllowsIteration() {
			return nil, NewError(ErrUndefinedVar, "")
		}
		return nil, nil
	}
	items, ok := val.Iter()
	if !ok {
		return nil, NewError(ErrInvalidOperation, fmt.Sprintf("%s: %s is not iterable", name, val.Kind()))
	}
	return items, nil
}

func mapString(val value.Value, f func(string) string) value.Value {
	if s, ok := val.AsString(); ok {
		return value.FromString(f(s))
	}
	return val
}

func filterUpper(_ *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if err := newArgs("upper", args, kwargs).finish(0); err != nil {
		return value.Undefined(), err
	}
	return mapString(val, cases.Upper(language.Und).String), nil
}

func filterLower(_ *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if err := newArgs("lower", args, kwargs).finish(0); err != nil {
		return value.Undefined(), err
	}
	return mapString(val, cases.Lower(language.Und).String), nil
}

// filterCapitalize uppercases the first character and lowercases the rest.
func filterCapitalize(_ *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if err := newArgs("capitalize", args, kwargs).finish(0); err != nil {
		return value.Undefined(), err
	}
	return mapString(val, func(s string) string {
		_, size := utf8.DecodeRuneInString(s)
		return cases.Upper(language.Und).String(s[:size]) + cases.Lower(language.Und).String(s[size:])
	}), nil
}

func filterTitle(_ *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if err := newArgs("title", args, kwargs).finish(0); err != nil {
		return value.Undefined(), err
	}
	return mapString(val, cases.Title(language.Und).String), nil
}

func filterTrim(_ *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("trim", args, kwargs)
	chars, err := p.str(0, "chars", "")
	if err != nil {
		return value.Undefined(), err
	}
	if err := p.finish(1); err != nil {
		return value.Undefined(), err
	}
	return mapString(val, func(s string) string {
		if chars == "" {
			return strings.TrimSpace(s)
		}
		return strings.Trim(s, chars)
	}), nil
}

func filterReplace(_ *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("replace", args, kwargs)
	from, err := p.requireStr(0, "old")
	if err != nil {
		return value.Undefined(), err
	}
	to, err := p.requireStr(1, "new")
	if err != nil {
		return value.Undefined(), err
	}
	count, err := p.int(2, "count", -1)
	if err != nil {
		return value.Undefined(), err
	}
	if err := p.finish(3); err != nil {
		return value.Undefined(), err
	}
	return mapString(val, func(s string) string {
		return strings.Replace(s, from, to, int(count))
	}), nil
}

var (
	striptagsOnce   sync.Once
	striptagsPolicy *bluemonday.Policy
)

// filterStriptags removes markup, decodes entities and collapses runs of
// whitespace.
func filterStriptags(_ *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if err := newArgs("striptags", args, kwargs).finish(0); err != nil {
		return value.Undefined(), err
	}
	striptagsOnce.Do(func() {
		striptagsPolicy = bluemonday.StrictPolicy()
	})
	s, ok := val.AsString()
	if !ok {
		s = val.String()
	}
	cleaned := html.UnescapeString(striptagsPolicy.Sanitize(s))
	return value.FromString(strings.Join(strings.Fields(cleaned), " ")), nil
}

func filterDefault(_ *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("default", args, kwargs)
	def, ok := p.get(0, "default_value")
	if !ok {
		def = value.FromString("")
	}
	boolean := p.bool(1, "boolean", false)
	if err := p.finish(2); err != nil {
		return value.Undefined(), err
	}
	if val.IsUndefined() || (boolean && !val.IsTrue()) {
		return def, nil
	}
	return val, nil
}

func filterSafe(_ *State, val value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, error) {
	if s, ok := val.AsString(); ok {
		return value.FromSafeString(s), nil
	}
	return value.FromSafeString(val.String()), nil
}

func filterEscape(_ *State, val value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, error) {
	if val.IsSafe() {
		return val, nil
	}
	return value.FromSafeString(EscapeHTML(val.String())), nil
}

func filterString(_ *State, val value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, error) {
	if val.Kind() == value.KindString {
		return val, nil
	}
	return value.FromString(val.String()), nil
}

func filterBool(_ *State, val value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, error) {
	return value.FromBool(val.IsTrue()), nil
}

// filterSplit splits on a separator, or on runs of whitespace when none is
// given. maxsplit limits the number of splits.
func filterSplit(_ *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("split", args, kwargs)
	sep, hasSep := p.optional(0, "split")
	maxSplits, err := p.int(1, "maxsplits", -1)
	if err != nil {
		return value.Undefined(), err
	}
	if err := p.finish(2); err != nil {
		return value.Undefined(), err
	}
	s, ok := val.AsString()
	if !ok {
		return value.Undefined(), NewError(ErrInvalidOperation, fmt.Sprintf("split: cannot split %s", val.Kind()))
	}

	var parts []string
	if hasSep {
		sepStr, ok := sep.AsString()
		if !ok {
			return value.Undefined(), p.typeError("split", "a string", sep)
		}
		if sepStr == "" {
			return value.Undefined(), NewError(ErrInvalidOperation, "split: empty separator")
		}
		parts = strings.SplitN(s, sepStr, splitCount(maxSplits))
	} else {
		parts = splitWhitespace(s, maxSplits)
	}

	out := make([]value.Value, len(parts))
	for i, part := range parts {
		out[i] = value.FromString(part)
	}
	return value.FromSlice(out), nil
}

func splitCount(maxSplits int64) int {
	if maxSplits < 0 {
		return -1
	}
	return int(maxSplits) + 1
}

func splitWhitespace(s string, maxSplits int64) []string {
	if maxSplits < 0 {
		return strings.Fields(s)
	}
	var out []string
	rest := strings.TrimLeftFunc(s, unicode.IsSpace)
	for rest != "" {
		if int64(len(out)) == maxSplits {
			out = append(out, rest)
			break
		}
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			out = append(out, rest)
			break
		}
		out = append(out, rest[:end])
		rest = strings.TrimLeftFunc(rest[end:], unicode.IsSpace)
	}
	return out
}

func filterLines(_ *State, val value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, error) {
	s, ok := val.AsString()
	if !ok {
		return value.Undefined(), NewError(ErrInvalidOperation, fmt.Sprintf("lines: expected a string, got %s", val.Kind()))
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return value.FromSlice(nil), nil
	}
	lines := strings.Split(s, "\n")
	out := make([]value.Value, len(lines))
	for i, line := range lines {
		out[i] = value.FromString(line)
	}
	return value.FromSlice(out), nil
}

func filterLength(_ *State, val value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, error) {
	n, ok := val.Len()
	if !ok {
		return value.Undefined(), NewError(ErrInvalidOperation, fmt.Sprintf("cannot calculate length of %s", val.Kind()))
	}
	return value.FromInt(int64(n)), nil
}

func filterFirst(state *State, val value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, error) {
	items, err := iterArg(state, "first", val)
	if err != nil || len(items) == 0 {
		return value.Undefined(), err
	}
	return items[0], nil
}

func filterLast(state *State, val value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, error) {
	items, err := iterArg(state, "last", val)
	if err != nil || len(items) == 0 {
		return value.Undefined(), err
	}
	return items[len(items)-1], nil
}

func filterReverse(state *State, val value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, error) {
	if s, ok := val.AsString(); ok {
		runes := []rune(s)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return value.FromString(string(runes)), nil
	}
	items, err := iterArg(state, "reverse", val)
	if err != nil {
		return value.Undefined(), err
	}
	out := make([]value.Value, len(items))
	for i, item := range items {
		out[len(items)-1-i] = item
	}
	return value.FromSlice(out), nil
}

// getDeepAttr resolves a dotted path such as "user.name" or "items.0".
func getDeepAttr(v value.Value, path string) value.Value {
	for _, part := range strings.Split(path, ".") {
		if idx, err := strconv.ParseInt(part, 10, 64); err == nil {
			v = v.GetItem(value.FromInt(idx))
		} else {
			v = v.GetAttr(part)
		}
		if v.IsUndefined() {
			break
		}
	}
	return v
}

// sortKey folds strings to lower case unless sorting is case sensitive.
func sortKey(v value.Value, caseSensitive bool) value.Value {
	if !caseSensitive {
		if s, ok := v.AsString(); ok {
			return value.FromString(strings.ToLower(s))
		}
	}
	return v
}

// sortByKeys stably sorts items by the keys computed for them. It reports
// false if two keys could not be ordered.
func sortByKeys(items, keys []value.Value, reverse bool) bool {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	ordered := true
	sort.SliceStable(idx, func(i, j int) bool {
		c, ok := keys[idx[i]].Compare(keys[idx[j]])
		if !ok {
			ordered = false
		}
		if reverse {
			return c > 0
		}
		return c < 0
	})
	sorted := make([]value.Value, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
	return ordered
}

func filterSort(state *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("sort", args, kwargs)
	reverse := p.bool(0, "reverse", false)
	caseSensitive := p.bool(1, "case_sensitive", false)
	attr, err := p.str(2, "attribute", "")
	if err != nil {
		return value.Undefined(), err
	}
	if err := p.finish(3); err != nil {
		return value.Undefined(), err
	}

	items, err := iterArg(state, "sort", val)
	if err != nil {
		return value.Undefined(), err
	}
	result := append([]value.Value(nil), items...)
	keys := make([]value.Value, len(result))
	for i, item := range result {
		if attr != "" {
			item = getDeepAttr(item, attr)
		}
		keys[i] = sortKey(item, caseSensitive)
	}
	if !sortByKeys(result, keys, reverse) {
		return value.Undefined(), NewError(ErrNonPrimitive, "sort: values cannot be compared")
	}
	return value.FromSlice(result), nil
}

func filterJoin(state *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("join", args, kwargs)
	sep, err := p.str(0, "d", "")
	if err != nil {
		return value.Undefined(), err
	}
	attr, err := p.str(1, "attribute", "")
	if err != nil {
		return value.Undefined(), err
	}
	if err := p.finish(2); err != nil {
		return value.Undefined(), err
	}

	items, err := iterArg(state, "join", val)
	if err != nil {
		return value.Undefined(), err
	}
	parts := make([]string, len(items))
	for i, item := range items {
		if attr != "" {
			item = getDeepAttr(item, attr)
		}
		parts[i] = item.String()
	}
	return value.FromString(strings.Join(parts, sep)), nil
}

func filterList(state *State, val value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, error) {
	items, err := iterArg(state, "list", val)
	if err != nil {
		return value.Undefined(), err
	}
	return value.FromSlice(append([]value.Value(nil), items...)), nil
}

func filterUnique(state *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("unique", args, kwargs)
	caseSensitive := p.bool(0, "case_sensitive", false)
	attr, err := p.str(1, "attribute", "")
	if err != nil {
		return value.Undefined(), err
	}
	if err := p.finish(2); err != nil {
		return value.Undefined(), err
	}

	items, err := iterArg(state, "unique", val)
	if err != nil {
		return value.Undefined(), err
	}
	var seen []value.Value
	var out []value.Value
outer:
	for _, item := range items {
		key := item
		if attr != "" {
			key = getDeepAttr(item, attr)
		}
		key = sortKey(key, caseSensitive)
		for _, s := range seen {
			if s.Equal(key) {
				continue outer
			}
		}
		seen = append(seen, key)
		out = append(out, item)
	}
	return value.FromSlice(out), nil
}

func extremum(state *State, name string, val value.Value, args []value.Value, kwargs map[string]value.Value, want int) (value.Value, error) {
	p := newArgs(name, args, kwargs)
	caseSensitive := p.bool(0, "case_sensitive", false)
	attr, err := p.str(1, "attribute", "")
	if err != nil {
		return value.Undefined(), err
	}
	if err := p.finish(2); err != nil {
		return value.Undefined(), err
	}

	items, err := iterArg(state, name, val)
	if err != nil || len(items) == 0 {
		return value.Undefined(), err
	}
	keyOf := func(v value.Value) value.Value {
		if attr != "" {
			v = getDeepAttr(v, attr)
		}
		return sortKey(v, caseSensitive)
	}
	best, bestKey := items[0], keyOf(items[0])
	for _, item := range items[1:] {
		key := keyOf(item)
		c, ok := key.Compare(bestKey)
		if !ok {
			return value.Undefined(), NewError(ErrNonPrimitive, fmt.Sprintf("%s: values cannot be compared", name))
		}
		if c == want {
			best, bestKey = item, key
		}
	}
	return best, nil
}

func filterMin(state *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	return extremum(state, "min", val, args, kwargs, -1)
}

func filterMax(state *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	return extremum(state, "max", val, args, kwargs, 1)
}

func filterSum(state *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("sum", args, kwargs)
	attr, err := p.str(0, "attribute", "")
	if err != nil {
		return value.Undefined(), err
	}
	result, ok := p.get(1, "start")
	if !ok {
		result = value.FromInt(0)
	}
	if err := p.finish(2); err != nil {
		return value.Undefined(), err
	}

	items, err := iterArg(state, "sum", val)
	if err != nil {
		return value.Undefined(), err
	}
	for _, item := range items {
		if attr != "" {
			item = getDeepAttr(item, attr)
		}
		if result, err = result.Add(item); err != nil {
			return value.Undefined(), err
		}
	}
	return result, nil
}

func filterBatch(state *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("batch", args, kwargs)
	count, err := p.requireInt(0, "count")
	if err != nil {
		return value.Undefined(), err
	}
	fill, hasFill := p.get(1, "fill_with")
	if err := p.finish(2); err != nil {
		return value.Undefined(), err
	}
	if count <= 0 {
		return value.Undefined(), NewError(ErrInvalidOperation, "batch: count must be positive")
	}

	items, err := iterArg(state, "batch", val)
	if err != nil {
		return value.Undefined(), err
	}
	size := int(count)
	var out []value.Value
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		group := append([]value.Value(nil), items[i:end]...)
		for hasFill && len(group) < size {
			group = append(group, fill)
		}
		out = append(out, value.FromSlice(group))
	}
	return value.FromSlice(out), nil
}

func filterSlice(state *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("slice", args, kwargs)
	count, err := p.requireInt(0, "count")
	if err != nil {
		return value.Undefined(), err
	}
	fill, hasFill := p.get(1, "fill_with")
	if err := p.finish(2); err != nil {
		return value.Undefined(), err
	}
	if count <= 0 {
		return value.Undefined(), NewError(ErrInvalidOperation, "slice: count must be positive")
	}

	items, err := iterArg(state, "slice", val)
	if err != nil {
		return value.Undefined(), err
	}
	slices := int(count)
	base, extra := len(items)/slices, len(items)%slices
	out := make([]value.Value, 0, slices)
	offset := 0
	for i := 0; i < slices; i++ {
		size := base
		if i < extra {
			size++
		}
		group := append([]value.Value(nil), items[offset:offset+size]...)
		offset += size
		if hasFill && extra > 0 && i >= extra {
			group = append(group, fill)
		}
		out = append(out, value.FromSlice(group))
	}
	return value.FromSlice(out), nil
}

// filterMap maps items through a filter named by the first argument, or
// picks an attribute with attribute=.
func filterMap(state *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	items, err := iterArg(state, "map", val)
	if err != nil {
		return value.Undefined(), err
	}

	if attr, ok := kwargs["attribute"]; ok {
		p := newArgs("map", args, kwargs)
		p.get(-1, "attribute")
		def, hasDef := p.get(-1, "default")
		if err := p.finish(0); err != nil {
			return value.Undefined(), err
		}
		out := make([]value.Value, len(items))
		for i, item := range items {
			var mapped value.Value
			if path, ok := attr.AsString(); ok {
				mapped = getDeepAttr(item, path)
			} else {
				mapped = item.GetItem(attr)
			}
			if mapped.IsUndefined() && hasDef {
				mapped = def
			}
			out[i] = mapped
		}
		return value.FromSlice(out), nil
	}

	if len(args) == 0 {
		return value.Undefined(), NewError(ErrMissingArgument, "map is missing argument filter name")
	}
	name, ok := args[0].AsString()
	if !ok {
		return value.Undefined(), NewError(ErrInvalidOperation, "map: filter name must be a string")
	}
	fn, ok := state.env.getFilter(name)
	if !ok {
		return value.Undefined(), NewError(ErrUnknownFilter, fmt.Sprintf("filter %s is unknown", name))
	}
	out := make([]value.Value, len(items))
	for i, item := range items {
		if out[i], err = fn(state, item, args[1:], kwargs); err != nil {
			return value.Undefined(), err
		}
	}
	return value.FromSlice(out), nil
}

var testAliases = map[string]string{
	"==": "eq", "!=": "ne", "<": "lt", "<=": "le", ">": "gt", ">=": "ge",
}

// selectItems keeps the items for which the named test (or truthiness of
// the item or attribute) equals keep.
func selectItems(state *State, name string, val value.Value, args []value.Value, byAttr, keep bool) (value.Value, error) {
	items, err := iterArg(state, name, val)
	if err != nil {
		return value.Undefined(), err
	}

	var attr string
	if byAttr {
		if len(args) == 0 {
			return value.Undefined(), NewError(ErrMissingArgument, fmt.Sprintf("%s is missing argument attribute", name))
		}
		if attr, _ = args[0].AsString(); attr == "" {
			return value.Undefined(), NewError(ErrInvalidOperation, fmt.Sprintf("%s: attribute must be a string", name))
		}
		args = args[1:]
	}

	var test TestFunc
	if len(args) > 0 {
		testName, _ := args[0].AsString()
		if alias, ok := testAliases[testName]; ok {
			testName = alias
		}
		fn, ok := state.env.getTest(testName)
		if !ok {
			return value.Undefined(), NewError(ErrUnknownTest, fmt.Sprintf("test %s is unknown", testName))
		}
		test = fn
		args = args[1:]
	}

	var out []value.Value
	for _, item := range items {
		subject := item
		if byAttr {
			subject = getDeepAttr(item, attr)
		}
		passed := subject.IsTrue()
		if test != nil {
			if passed, err = test(state, subject, args); err != nil {
				return value.Undefined(), err
			}
		}
		if passed == keep {
			out = append(out, item)
		}
	}
	return value.FromSlice(out), nil
}

func filterSelect(state *State, val value.Value, args []value.Value, _ map[string]value.Value) (value.Value, error) {
	return selectItems(state, "select", val, args, false, true)
}

func filterReject(state *State, val value.Value, args []value.Value, _ map[string]value.Value) (value.Value, error) {
	return selectItems(state, "reject", val, args, false, false)
}

func filterSelectAttr(state *State, val value.Value, args []value.Value, _ map[string]value.Value) (value.Value, error) {
	return selectItems(state, "selectattr", val, args, true, true)
}

func filterRejectAttr(state *State, val value.Value, args []value.Value, _ map[string]value.Value) (value.Value, error) {
	return selectItems(state, "rejectattr", val, args, true, false)
}

// filterGroupBy sorts items by an attribute and groups equal runs. Each
// group unpacks as (grouper, list) and exposes both as attributes.
func filterGroupBy(state *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("groupby", args, kwargs)
	attr, err := p.requireStr(0, "attribute")
	if err != nil {
		return value.Undefined(), err
	}
	def, hasDef := p.get(1, "default")
	caseSensitive := p.bool(2, "case_sensitive", false)
	if err := p.finish(3); err != nil {
		return value.Undefined(), err
	}

	items, err := iterArg(state, "groupby", val)
	if err != nil {
		return value.Undefined(), err
	}
	sorted := append([]value.Value(nil), items...)
	groupers := make([]value.Value, len(sorted))
	for i, item := range sorted {
		g := getDeepAttr(item, attr)
		if g.IsUndefined() && hasDef {
			g = def
		}
		groupers[i] = g
	}
	keys := make([]value.Value, len(sorted))
	for i, g := range groupers {
		keys[i] = sortKey(g, caseSensitive)
	}
	// sort a copy of the keys alongside the items
	order := make([]value.Value, len(sorted))
	for i := range order {
		order[i] = value.FromSlice([]value.Value{keys[i], groupers[i], sorted[i]})
	}
	sortByKeys(order, keys, false)

	var out []value.Value
	var current *groupObject
	var currentKey value.Value
	for _, entry := range order {
		parts, _ := entry.AsSlice()
		if current == nil || !currentKey.Equal(parts[0]) {
			current = &groupObject{grouper: parts[1]}
			currentKey = parts[0]
			out = append(out, value.FromObject(current))
		}
		current.list = append(current.list, parts[2])
	}
	return value.FromSlice(out), nil
}

type groupObject struct {
	grouper value.Value
	list    []value.Value
}

func (g *groupObject) GetAttr(name string) value.Value {
	switch name {
	case "grouper":
		return g.grouper
	case "list":
		return value.FromSlice(g.list)
	}
	return value.Undefined()
}

func (g *groupObject) Items() []value.Value {
	return []value.Value{g.grouper, value.FromSlice(g.list)}
}

// filterChain concatenates sequences, or merges maps when every input is a
// map (later maps win).
func filterChain(state *State, val value.Value, args []value.Value, _ map[string]value.Value) (value.Value, error) {
	inputs := append([]value.Value{val}, args...)

	allMaps := true
	for _, in := range inputs {
		if in.Kind() != value.KindMap {
			allMaps = false
			break
		}
	}
	if allMaps {
		return value.MergeMaps(inputs...), nil
	}

	var items []value.Value
	for _, in := range inputs {
		more, err := iterArg(state, "chain", in)
		if err != nil {
			return value.Undefined(), err
		}
		items = append(items, more...)
	}
	return value.FromObject(&chainObject{items: items}), nil
}

type chainObject struct {
	items []value.Value
}

func (c *chainObject) GetAttr(string) value.Value {
	return value.Undefined()
}

func (c *chainObject) Items() []value.Value {
	return c.items
}

func filterZip(state *State, val value.Value, args []value.Value, _ map[string]value.Value) (value.Value, error) {
	var seqs [][]value.Value
	shortest := math.MaxInt
	for _, in := range append([]value.Value{val}, args...) {
		items, err := iterArg(state, "zip", in)
		if err != nil {
			return value.Undefined(), err
		}
		seqs = append(seqs, items)
		shortest = min(shortest, len(items))
	}

	out := make([]value.Value, shortest)
	for i := range out {
		tuple := make([]value.Value, len(seqs))
		for j, seq := range seqs {
			tuple[j] = seq[i]
		}
		out[i] = value.FromSlice(tuple)
	}
	return value.FromSlice(out), nil
}

func filterAbs(_ *State, val value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, error) {
	if b, ok := val.AsBigInt(); ok {
		return value.FromBigInt(new(big.Int).Abs(b)), nil
	}
	if f, ok := val.AsFloat(); ok && val.IsFloat() {
		return value.FromFloat(math.Abs(f)), nil
	}
	return value.Undefined(), NewError(ErrInvalidOperation, fmt.Sprintf("abs: cannot take absolute value of %s", val.Kind()))
}

func nonPrimitive(name string, val value.Value) error {
	switch val.Kind() {
	case value.KindSeq, value.KindMap:
		return NewError(ErrNonPrimitive, fmt.Sprintf("%s: cannot convert %s", name, val.Kind()))
	}
	return nil
}

func filterInt(_ *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("int", args, kwargs)
	def, ok := p.get(0, "default")
	if !ok {
		def = value.FromInt(0)
	}
	base, err := p.int(1, "base", 10)
	if err != nil {
		return value.Undefined(), err
	}
	if err := p.finish(2); err != nil {
		return value.Undefined(), err
	}
	if err := nonPrimitive("int", val); err != nil {
		return value.Undefined(), err
	}

	switch {
	case val.IsInteger():
		return val, nil
	case val.IsFloat():
		f, _ := val.AsFloat()
		return value.FromInt(int64(f)), nil
	}
	if b, ok := val.AsBool(); ok {
		if b {
			return value.FromInt(1), nil
		}
		return value.FromInt(0), nil
	}
	if s, ok := val.AsString(); ok {
		s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
		if n, ok := new(big.Int).SetString(s, int(base)); ok {
			return value.FromBigInt(n), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && base == 10 {
			return value.FromInt(int64(f)), nil
		}
	}
	return def, nil
}

func filterFloat(_ *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("float", args, kwargs)
	def, ok := p.get(0, "default")
	if !ok {
		def = value.FromFloat(0)
	}
	if err := p.finish(1); err != nil {
		return value.Undefined(), err
	}
	if err := nonPrimitive("float", val); err != nil {
		return value.Undefined(), err
	}

	if f, ok := val.AsFloat(); ok {
		return value.FromFloat(f), nil
	}
	if b, ok := val.AsBool(); ok {
		if b {
			return value.FromFloat(1), nil
		}
		return value.FromFloat(0), nil
	}
	if s, ok := val.AsString(); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return value.FromFloat(f), nil
		}
	}
	return def, nil
}

func filterRound(_ *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("round", args, kwargs)
	precision, err := p.int(0, "precision", 0)
	if err != nil {
		return value.Undefined(), err
	}
	method, err := p.str(1, "method", "common")
	if err != nil {
		return value.Undefined(), err
	}
	if err := p.finish(2); err != nil {
		return value.Undefined(), err
	}
	if val.IsInteger() {
		return val, nil
	}
	f, ok := val.AsFloat()
	if !ok {
		return value.Undefined(), NewError(ErrInvalidOperation, fmt.Sprintf("round: cannot round %s", val.Kind()))
	}

	scale := math.Pow(10, float64(precision))
	switch method {
	case "common":
		f = math.Round(f*scale) / scale
	case "floor":
		f = math.Floor(f*scale) / scale
	case "ceil":
		f = math.Ceil(f*scale) / scale
	default:
		return value.Undefined(), NewError(ErrInvalidOperation, fmt.Sprintf("round: unknown method %q", method))
	}
	return value.FromFloat(f), nil
}

func mapEntries(name string, val value.Value) ([]string, map[string]value.Value, error) {
	m, ok := val.AsMap()
	if !ok {
		return nil, nil, NewError(ErrInvalidOperation, fmt.Sprintf("%s: expected a map, got %s", name, val.Kind()))
	}
	return val.Keys(), m, nil
}

func filterItems(_ *State, val value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, error) {
	keys, m, err := mapEntries("items", val)
	if err != nil {
		return value.Undefined(), err
	}
	out := make([]value.Value, len(keys))
	for i, k := range keys {
		out[i] = value.FromSlice([]value.Value{value.FromString(k), m[k]})
	}
	return value.FromSlice(out), nil
}

func filterKeys(_ *State, val value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, error) {
	keys, _, err := mapEntries("keys", val)
	if err != nil {
		return value.Undefined(), err
	}
	out := make([]value.Value, len(keys))
	for i, k := range keys {
		out[i] = value.FromString(k)
	}
	return value.FromSlice(out), nil
}

func filterValues(_ *State, val value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, error) {
	keys, m, err := mapEntries("values", val)
	if err != nil {
		return value.Undefined(), err
	}
	out := make([]value.Value, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return value.FromSlice(out), nil
}

func filterDictSort(_ *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("dictsort", args, kwargs)
	caseSensitive := p.bool(0, "case_sensitive", false)
	by, err := p.str(1, "by", "key")
	if err != nil {
		return value.Undefined(), err
	}
	reverse := p.bool(2, "reverse", false)
	if err := p.finish(3); err != nil {
		return value.Undefined(), err
	}
	if by != "key" && by != "value" {
		return value.Undefined(), NewError(ErrInvalidOperation, fmt.Sprintf("dictsort: cannot sort by %q", by))
	}

	names, m, err := mapEntries("dictsort", val)
	if err != nil {
		return value.Undefined(), err
	}
	pairs := make([]value.Value, len(names))
	keys := make([]value.Value, len(names))
	for i, k := range names {
		pairs[i] = value.FromSlice([]value.Value{value.FromString(k), m[k]})
		if by == "value" {
			keys[i] = sortKey(m[k], caseSensitive)
		} else {
			keys[i] = sortKey(value.FromString(k), caseSensitive)
		}
	}
	if !sortByKeys(pairs, keys, reverse) {
		return value.Undefined(), NewError(ErrNonPrimitive, "dictsort: values cannot be compared")
	}
	return value.FromSlice(pairs), nil
}

func filterAttr(_ *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("attr", args, kwargs)
	name, err := p.requireStr(0, "name")
	if err != nil {
		return value.Undefined(), err
	}
	if err := p.finish(1); err != nil {
		return value.Undefined(), err
	}
	return val.GetAttr(name), nil
}

func filterIndent(_ *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("indent", args, kwargs)
	width, err := p.int(0, "width", 4)
	if err != nil {
		return value.Undefined(), err
	}
	first := p.bool(1, "first", false)
	blank := p.bool(2, "blank", false)
	if err := p.finish(3); err != nil {
		return value.Undefined(), err
	}

	s, ok := val.AsString()
	if !ok {
		return value.Undefined(), NewError(ErrInvalidOperation, fmt.Sprintf("indent: expected a string, got %s", val.Kind()))
	}
	pad := strings.Repeat(" ", int(width))
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if (i == 0 && !first) || (strings.TrimSpace(line) == "" && !blank) {
			continue
		}
		lines[i] = pad + line
	}
	return value.FromString(strings.Join(lines, "\n")), nil
}

func filterPprint(_ *State, val value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, error) {
	var b strings.Builder
	pprint(&b, val, 0)
	return value.FromString(b.String()), nil
}

func pprint(b *strings.Builder, val value.Value, depth int) {
	pad := strings.Repeat("  ", depth+1)
	switch val.Kind() {
	case value.KindSeq:
		items, _ := val.AsSlice()
		if len(items) == 0 {
			b.WriteString("[]")
			return
		}
		b.WriteString("[\n")
		for _, item := range items {
			b.WriteString(pad)
			pprint(b, item, depth+1)
			b.WriteString(",\n")
		}
		b.WriteString(pad[2:] + "]")
	case value.KindMap:
		keys := val.Keys()
		if len(keys) == 0 {
			b.WriteString("{}")
			return
		}
		b.WriteString("{\n")
		for _, k := range keys {
			fmt.Fprintf(b, "%s%q: ", pad, k)
			pprint(b, val.GetAttr(k), depth+1)
			b.WriteString(",\n")
		}
		b.WriteString(pad[2:] + "}")
	default:
		b.WriteString(val.Repr())
	}
}

// filterTojson serializes to JSON with sorted keys. The output is safe to
// embed in HTML: markup characters and single quotes are escaped.
func filterTojson(_ *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("tojson", args, kwargs)
	indent := 0
	if v, ok := p.optional(0, "indent"); ok {
		if b, isBool := v.AsBool(); isBool {
			if b {
				indent = 2
			}
		} else if n, isInt := v.AsInt(); isInt {
			indent = int(n)
		} else {
			return value.Undefined(), p.typeError("indent", "an integer or a boolean", v)
		}
	}
	if err := p.finish(1); err != nil {
		return value.Undefined(), err
	}

	native, ok := val.ToNative()
	if !ok {
		return value.Undefined(), NewError(ErrBadSerialization, fmt.Sprintf("cannot serialize %s to JSON", val.Kind()))
	}
	out := oj.JSON(jsonReady(native), &ojg.Options{Sort: true, Indent: indent})
	return value.FromSafeString(strings.ReplaceAll(out, "'", `\u0027`)), nil
}

// jsonReady replaces big integers with JSON numbers so they serialize
// exactly.
func jsonReady(v any) any {
	switch d := v.(type) {
	case *big.Int:
		return json.Number(d.String())
	case []any:
		for i, item := range d {
			d[i] = jsonReady(item)
		}
	case map[string]any:
		for k, item := range d {
			d[k] = jsonReady(item)
		}
	}
	return v
}

func urlencodeString(input string) string {
	escaped := url.QueryEscape(input)
	escaped = strings.ReplaceAll(escaped, "+", "%20")
	return strings.ReplaceAll(escaped, "%2F", "/")
}

// filterUrlencode encodes strings for URL paths and maps as query strings.
func filterUrlencode(_ *State, val value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, error) {
	if val.Kind() == value.KindMap {
		var parts []string
		for _, k := range val.Keys() {
			v := val.GetAttr(k)
			if v.IsNone() || v.IsUndefined() {
				continue
			}
			parts = append(parts, urlencodeString(k)+"="+urlencodeString(v.String()))
		}
		return value.FromString(strings.Join(parts, "&")), nil
	}
	return value.FromString(urlencodeString(val.String())), nil
}
