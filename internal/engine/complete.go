package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/dop251/goja"
)

var keywords = []string{
	"async", "await", "break", "case", "catch", "class", "const", "continue",
	"debugger", "default", "delete", "do", "else", "export", "extends", "false",
	"finally", "for", "function", "if", "import", "in", "instanceof", "let",
	"new", "null", "return", "super", "switch", "this", "throw", "true", "try",
	"typeof", "undefined", "var", "void", "while", "with", "yield",
}

var (
	paramListRe  = regexp.MustCompile(`^(?:async\s+)?(?:function\b)?[^(=]*\(([^)]*)\)`)
	arrowParamRe = regexp.MustCompile(`^(?:async\s+)?([A-Za-z_$][\w$]*)\s*=>`)
)

func isIdentRune(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Complete returns raw completion candidates for the identifier chain that
// ends at cursor, a position in runes. Candidates carry the decorations
// front-ends strip: a leading [#type#] marker and, for functions, one
// <#any name#> placeholder per parameter.
func (e *Engine) Complete(code string, cursor int) []string {
	runes := []rune(code)
	if cursor < 0 || cursor > len(runes) {
		cursor = len(runes)
	}

	start := cursor
	for start > 0 && (isIdentRune(runes[start-1]) || runes[start-1] == '.') {
		start--
	}
	expr := string(runes[start:cursor])

	base, prefix := "", expr
	if i := strings.LastIndex(expr, "."); i >= 0 {
		base, prefix = expr[:i], expr[i+1:]
	}

	var obj *goja.Object
	if base == "" {
		obj = e.vm.GlobalObject()
	} else if obj = e.lookup(base); obj == nil {
		return nil
	}

	seen := make(map[string]bool)
	var names []string
	for o := obj; o != nil; o = o.Prototype() {
		for _, name := range o.GetOwnPropertyNames() {
			if seen[name] || strings.HasPrefix(name, "$") || name == "__proto__" {
				continue
			}
			seen[name] = true
			if strings.HasPrefix(name, prefix) {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)

	candidates := make([]string, 0, len(names))
	for _, name := range names {
		candidates = append(candidates, e.decorate(name, safeGet(obj, name)))
	}

	if base == "" {
		for _, kw := range keywords {
			if strings.HasPrefix(kw, prefix) && !seen[kw] {
				candidates = append(candidates, "[#keyword#]"+kw)
			}
		}
	}
	return candidates
}

// lookup walks a dotted path from the global object without running any
// user code other than property getters.
func (e *Engine) lookup(path string) (obj *goja.Object) {
	defer func() {
		if recover() != nil {
			obj = nil
		}
	}()

	cur := e.vm.GlobalObject()
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil
		}
		v := cur.Get(part)
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			return nil
		}
		cur = v.ToObject(e.vm)
	}
	return cur
}

// safeGet reads a property, treating a throwing getter as undefined.
func safeGet(obj *goja.Object, name string) (v goja.Value) {
	defer func() {
		if recover() != nil {
			v = nil
		}
	}()
	return obj.Get(name)
}

func (e *Engine) decorate(name string, v goja.Value) string {
	kind := "undefined"
	if v != nil {
		if t, err := e.typeOf(goja.Undefined(), v); err == nil {
			kind = t.String()
		}
	}
	if kind != "function" {
		return fmt.Sprintf("[#%s#]%s", kind, name)
	}

	params := functionParams(v.String())
	placeholders := make([]string, len(params))
	for i, p := range params {
		placeholders[i] = fmt.Sprintf("<#any %s#>", p)
	}
	return fmt.Sprintf("[#function#]%s(%s)", name, strings.Join(placeholders, ", "))
}

// functionParams extracts parameter names from a function's source text.
// Native functions have no visible parameters.
func functionParams(src string) []string {
	src = strings.TrimSpace(src)
	if m := arrowParamRe.FindStringSubmatch(src); m != nil {
		return []string{m[1]}
	}
	m := paramListRe.FindStringSubmatch(src)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return nil
	}

	var params []string
	for _, p := range strings.Split(m[1], ",") {
		p = strings.TrimSpace(p)
		p = strings.TrimPrefix(p, "...")
		if i := strings.Index(p, "="); i >= 0 {
			p = strings.TrimSpace(p[:i])
		}
		if p != "" {
			params = append(params, p)
		}
	}
	return params
}
