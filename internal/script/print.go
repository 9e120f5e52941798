package script

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	lua "github.com/yuin/gopher-lua"

	plua "github.com/dshills/avatarscript/internal/script/lua"
)

// DefaultPrintDepth is how many nested tables printTable expands by default.
const DefaultPrintDepth = 1

// installPrint binds the print functions. log* are aliases.
func (rt *Runtime) installPrint() {
	funcs := map[string]lua.LGFunction{
		"print":      rt.luaPrint,
		"printTable": rt.luaPrintTable,
		"printJson":  rt.luaPrintJSON,
	}
	for name, fn := range funcs {
		f := rt.state.L.NewFunction(fn)
		rt.state.SetGlobal(name, f)
		rt.state.SetGlobal("log"+strings.TrimPrefix(name, "print"), f)
	}
}

func (rt *Runtime) output(L *lua.LState, text string) {
	plua.Guard(L, func() int {
		rt.channel.Output(rt.owner, text)
		return 0
	})
}

// luaPrint joins its arguments with tabs, honoring __tostring.
func (rt *Runtime) luaPrint(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	rt.output(L, strings.Join(parts, "\t"))
	return 0
}

// luaPrintTable formats a table up to a nesting depth and returns the text.
// Unless the third argument is true the text is also printed.
func (rt *Runtime) luaPrintTable(L *lua.LState) int {
	v := L.CheckAny(1)
	depth := L.OptInt(2, DefaultPrintDepth)
	silent := L.OptBool(3, false)

	var b strings.Builder
	formatValue(L, &b, v, depth, 0, make(map[*lua.LTable]bool))
	text := b.String()

	if !silent {
		rt.output(L, text)
	}
	L.Push(lua.LString(text))
	return 1
}

// luaPrintJSON pretty-prints a JSON document.
func (rt *Runtime) luaPrintJSON(L *lua.LState) int {
	text := L.CheckString(1)
	if !gjson.Valid(text) {
		L.ArgError(1, "invalid JSON")
		return 0
	}
	rt.output(L, strings.TrimRight(string(pretty.Pretty([]byte(text))), "\n"))
	return 0
}

func formatValue(L *lua.LState, b *strings.Builder, v lua.LValue, depth, indent int, seen map[*lua.LTable]bool) {
	switch lv := v.(type) {
	case lua.LString:
		b.WriteString(strconv.Quote(string(lv)))
	case *lua.LTable:
		if depth <= 0 || seen[lv] {
			b.WriteString(L.ToStringMeta(lv).String())
			return
		}
		seen[lv] = true
		defer delete(seen, lv)

		b.WriteString("{\n")
		pad := strings.Repeat("  ", indent+1)
		lv.ForEach(func(k, item lua.LValue) {
			b.WriteString(pad)
			b.WriteString("[")
			formatValue(L, b, k, 0, 0, seen)
			b.WriteString("] = ")
			formatValue(L, b, item, depth-1, indent+1, seen)
			b.WriteString("\n")
		})
		b.WriteString(strings.Repeat("  ", indent))
		b.WriteString("}")
	default:
		b.WriteString(L.ToStringMeta(v).String())
	}
}
