package api

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	plua "github.com/dshills/avatarscript/internal/script/lua"
)

// MinVecLen and MaxVecLen bound vector dimensions.
const (
	MinVecLen = 2
	MaxVecLen = 6
)

// vecFields names components by position; vecColors are aliases for the
// first four.
const (
	vecFields = "xyzwth"
	vecColors = "rgba"
)

type vecData struct {
	c [MaxVecLen]float64
}

var vecPool = sync.Pool{
	New: func() any { return new(vecData) },
}

// Vec is a pooled vector of 2 to 6 components.
//
// Free returns the components to the pool. A freed Vec keeps its dimension
// but any further component access from scripts raises an error.
type Vec struct {
	n int
	d *vecData
}

// NewVec returns a vector holding comps. It panics if len(comps) is out of
// range.
func NewVec(comps ...float64) *Vec {
	if len(comps) < MinVecLen || len(comps) > MaxVecLen {
		panic(fmt.Sprintf("api: invalid vector length %d", len(comps)))
	}
	d := vecPool.Get().(*vecData)
	copy(d.c[:], comps)
	return &Vec{n: len(comps), d: d}
}

// zeroVec returns a vector of n zero components.
func zeroVec(n int) *Vec {
	return NewVec(make([]float64, n)...)
}

// Len returns the number of components.
func (v *Vec) Len() int {
	return v.n
}

// At returns component i, 0-based.
func (v *Vec) At(i int) float64 {
	return v.d.c[i]
}

// Components returns a copy of the components.
func (v *Vec) Components() []float64 {
	out := make([]float64, v.n)
	copy(out, v.d.c[:v.n])
	return out
}

// Freed reports whether Free was called.
func (v *Vec) Freed() bool {
	return v.d == nil
}

// Copy returns an independent vector with the same components.
func (v *Vec) Copy() *Vec {
	return NewVec(v.Components()...)
}

// Free returns the vector's storage to the pool. Freeing twice is a no-op.
func (v *Vec) Free() {
	if v.d == nil {
		return
	}
	v.d.c = [MaxVecLen]float64{}
	vecPool.Put(v.d)
	v.d = nil
}

// TypeID implements plua.Object.
func (v *Vec) TypeID() string {
	return "api.Vec" + strconv.Itoa(v.n)
}

// String formats the vector as {x, y, ...}.
func (v *Vec) String() string {
	if v.d == nil {
		return "{freed}"
	}
	parts := make([]string, v.n)
	for i := 0; i < v.n; i++ {
		parts[i] = strconv.FormatFloat(v.d.c[i], 'g', -1, 64)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// index maps a field name or 1-based position to a component index.
func (v *Vec) index(key string) (int, bool) {
	if len(key) == 1 {
		if i := strings.IndexByte(vecFields, key[0]); i >= 0 && i < v.n {
			return i, true
		}
		if i := strings.IndexByte(vecColors, key[0]); i >= 0 && i < v.n {
			return i, true
		}
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= v.n {
		return n - 1, true
	}
	return 0, false
}

// Describe implements plua.Describer.
func (v *Vec) Describe() plua.TypeSpec {
	return plua.TypeSpec{
		Name: "Vector" + strconv.Itoa(v.n),
		Methods: map[string]plua.Method{
			"copy": func(L *lua.LState, self plua.Object) int {
				return pushObject(L, liveVec(L, self).Copy())
			},
			"unpack": func(L *lua.LState, self plua.Object) int {
				vec := liveVec(L, self)
				for i := 0; i < vec.n; i++ {
					L.Push(lua.LNumber(vec.d.c[i]))
				}
				return vec.n
			},
			"free": func(L *lua.LState, self plua.Object) int {
				self.(*Vec).Free()
				return 0
			},
			"length": func(L *lua.LState, self plua.Object) int {
				L.Push(lua.LNumber(liveVec(L, self).n))
				return 1
			},
		},
		Get: func(L *lua.LState, self plua.Object, key string) (lua.LValue, bool) {
			vec := liveVec(L, self)
			i, ok := vec.index(key)
			if !ok {
				return lua.LNil, false
			}
			return lua.LNumber(vec.d.c[i]), true
		},
		Set: func(L *lua.LState, self plua.Object, key string, value lua.LValue) bool {
			vec := liveVec(L, self)
			i, ok := vec.index(key)
			if !ok {
				return false
			}
			vec.d.c[i] = float64(L.CheckNumber(3))
			return true
		},
	}
}

// liveVec returns self as a Vec, raising if it was freed.
func liveVec(L *lua.LState, self plua.Object) *Vec {
	v := self.(*Vec)
	if v.d == nil {
		L.RaiseError("attempt to use a freed %s", "Vector"+strconv.Itoa(v.n))
	}
	return v
}

// pushObject bridges obj using the state's bridge and pushes it.
func pushObject(L *lua.LState, obj plua.Object) int {
	return bridgeOf(L).Push(L, obj)
}

// luaVec builds a vector from 2 to 6 numbers, sized by the last non-nil one.
func luaVec(L *lua.LState) int {
	n := 0
	for i := MaxVecLen; i >= 1; i-- {
		if L.Get(i) != lua.LNil {
			n = i
			break
		}
	}
	if n < MinVecLen {
		L.RaiseError("Invalid arguments to vec(), needs at least 2 numbers!")
		return 0
	}
	return pushObject(L, checkVec(L, 1, n))
}

// vecN returns a constructor for n-component vectors. Missing components are 0.
func vecN(n int) lua.LGFunction {
	return func(L *lua.LState) int {
		return pushObject(L, checkVec(L, 1, n))
	}
}

// checkVec reads n numbers starting at index first, treating nil as 0.
func checkVec(L *lua.LState, first, n int) *Vec {
	comps := make([]float64, n)
	for i := 0; i < n; i++ {
		comps[i] = float64(L.OptNumber(first+i, 0))
	}
	return NewVec(comps...)
}

// optVec3 reads either a Vector3 or three numbers at index first. Missing
// numbers take the given defaults.
func optVec3(L *lua.LState, first int, dx, dy, dz float64) (x, y, z float64) {
	if ud, ok := L.Get(first).(*lua.LUserData); ok {
		v, isVec := ud.Value.(*Vec)
		if !isVec || v.n != 3 {
			L.ArgError(first, "Vector3 expected")
		}
		v = liveVec(L, v)
		return v.d.c[0], v.d.c[1], v.d.c[2]
	}
	return float64(L.OptNumber(first, lua.LNumber(dx))),
		float64(L.OptNumber(first+1, lua.LNumber(dy))),
		float64(L.OptNumber(first+2, lua.LNumber(dz)))
}

func vectorFuncs() map[string]lua.LGFunction {
	funcs := map[string]lua.LGFunction{
		"vec": luaVec,
	}
	for n := MinVecLen; n <= MaxVecLen; n++ {
		funcs["vec"+strconv.Itoa(n)] = vecN(n)
	}
	return funcs
}

// vecTypes returns one value per vector dimension for registration.
func vecTypes() []plua.Describer {
	types := make([]plua.Describer, 0, MaxVecLen-MinVecLen+1)
	for n := MinVecLen; n <= MaxVecLen; n++ {
		types = append(types, &Vec{n: n})
	}
	return types
}
