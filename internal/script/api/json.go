package api

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	lua "github.com/yuin/gopher-lua"
)

// MaxJSONDepth bounds table nesting for json.encode.
const MaxJSONDepth = 64

var (
	errJSONCycle = errors.New("cannot encode a recursive table")
	errJSONDepth = errors.New("table nesting too deep")
)

func jsonFuncs() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"encode": luaJSONEncode,
		"decode": luaJSONDecode,
	}
}

// luaJSONEncode returns the JSON text of a value. Tables whose keys are
// exactly 1..n encode as arrays, other tables as objects.
func luaJSONEncode(L *lua.LState) int {
	raw, err := encodeJSON(L.CheckAny(1), 0, make(map[*lua.LTable]bool))
	if err != nil {
		L.RaiseError("json.encode: %s", err.Error())
		return 0
	}
	L.Push(lua.LString(raw))
	return 1
}

// luaJSONDecode parses JSON text. Malformed input returns nil and a message.
func luaJSONDecode(L *lua.LState) int {
	text := L.CheckString(1)
	if !gjson.Valid(text) {
		L.Push(lua.LNil)
		L.Push(lua.LString("invalid JSON"))
		return 2
	}
	L.Push(decodeJSON(L, gjson.Parse(text)))
	return 1
}

func encodeJSON(v lua.LValue, depth int, seen map[*lua.LTable]bool) (string, error) {
	switch lv := v.(type) {
	case *lua.LNilType:
		return "null", nil
	case lua.LBool:
		return strconv.FormatBool(bool(lv)), nil
	case lua.LNumber:
		f := float64(lv)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", fmt.Errorf("cannot encode number %v", f)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case lua.LString:
		return quoteJSON(string(lv))
	case *lua.LTable:
		return encodeTable(lv, depth, seen)
	default:
		return "", fmt.Errorf("cannot encode a %s", v.Type().String())
	}
}

func encodeTable(t *lua.LTable, depth int, seen map[*lua.LTable]bool) (string, error) {
	if depth >= MaxJSONDepth {
		return "", errJSONDepth
	}
	if seen[t] {
		return "", errJSONCycle
	}
	seen[t] = true
	defer delete(seen, t)

	if n := arrayLen(t); n >= 0 {
		doc := "[]"
		for i := 1; i <= n; i++ {
			raw, err := encodeJSON(t.RawGetInt(i), depth+1, seen)
			if err != nil {
				return "", err
			}
			if doc, err = sjson.SetRaw(doc, "-1", raw); err != nil {
				return "", err
			}
		}
		return doc, nil
	}

	// Keys are written directly; sjson paths cannot address "" or keys
	// containing path syntax.
	var b strings.Builder
	var encErr error
	b.WriteByte('{')
	t.ForEach(func(k, item lua.LValue) {
		if encErr != nil {
			return
		}
		key, err := quoteJSON(k.String())
		if err != nil {
			encErr = err
			return
		}
		raw, err := encodeJSON(item, depth+1, seen)
		if err != nil {
			encErr = err
			return
		}
		if b.Len() > 1 {
			b.WriteByte(',')
		}
		b.WriteString(key)
		b.WriteByte(':')
		b.WriteString(raw)
	})
	if encErr != nil {
		return "", encErr
	}
	b.WriteByte('}')
	return b.String(), nil
}

// quoteJSON returns s as a JSON string literal.
func quoteJSON(s string) (string, error) {
	doc, err := sjson.Set(`{"v":null}`, "v", s)
	if err != nil {
		return "", err
	}
	return gjson.Get(doc, "v").Raw, nil
}

// arrayLen returns n if t's keys are exactly 1..n, 0 for an empty table and
// -1 otherwise.
func arrayLen(t *lua.LTable) int {
	count, maxN := 0, 0
	isArray := true
	t.ForEach(func(k, _ lua.LValue) {
		count++
		kn, ok := k.(lua.LNumber)
		if !ok || float64(kn) != math.Trunc(float64(kn)) || kn < 1 {
			isArray = false
			return
		}
		if int(kn) > maxN {
			maxN = int(kn)
		}
	})
	if !isArray || count != maxN {
		return -1
	}
	return maxN
}

func decodeJSON(L *lua.LState, r gjson.Result) lua.LValue {
	switch r.Type {
	case gjson.Null:
		return lua.LNil
	case gjson.False:
		return lua.LFalse
	case gjson.True:
		return lua.LTrue
	case gjson.Number:
		return lua.LNumber(r.Num)
	case gjson.String:
		return lua.LString(r.Str)
	}

	t := L.NewTable()
	if r.IsArray() {
		i := 1
		r.ForEach(func(_, value gjson.Result) bool {
			t.RawSetInt(i, decodeJSON(L, value))
			i++
			return true
		})
		return t
	}
	r.ForEach(func(key, value gjson.Result) bool {
		t.RawSetString(key.String(), decodeJSON(L, value))
		return true
	})
	return t
}
