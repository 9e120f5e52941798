package lua

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
	"golang.org/x/text/unicode/norm"
)

// ScriptExt is the conventional script file suffix stripped by require.
const ScriptExt = ".lua"

// AlreadyLoaded is cached for modules whose top-level chunk returned nothing,
// so that a second require reports the module as loaded.
var AlreadyLoaded lua.LValue = lua.LTrue

// LoadChunkName is the chunk name given to load and loadstring results when
// the caller supplies none.
const LoadChunkName = "loadstring"

// Sources looks up raw script source by normalized name.
type Sources interface {
	Source(name string) (string, bool)
}

// NormalizeName returns the cache key for a script name: NFC normalized with
// the script suffix removed.
func NormalizeName(name string) string {
	return strings.TrimSuffix(norm.NFC.String(name), ScriptExt)
}

// Resolver implements require, load and loadstring for one state.
type Resolver struct {
	L       *lua.LState
	sources Sources

	loaded  map[string]lua.LValue
	loading map[string]bool

	// syntaxErrors holds the messages raised for modules that failed to compile.
	syntaxErrors map[string]bool
}

type noSources struct{}

func (noSources) Source(string) (string, bool) { return "", false }

// NewResolver creates a resolver over the given sources.
func NewResolver(L *lua.LState, sources Sources) *Resolver {
	if sources == nil {
		sources = noSources{}
	}
	return &Resolver{
		L:       L,
		sources: sources,
		loaded:  make(map[string]lua.LValue),
		loading: make(map[string]bool),

		syntaxErrors: make(map[string]bool),
	}
}

// Install binds require, load and loadstring in the globals.
func (r *Resolver) Install() {
	r.L.SetGlobal("require", r.L.NewFunction(r.luaRequire))

	load := r.L.NewFunction(r.luaLoad)
	r.L.SetGlobal("load", load)
	r.L.SetGlobal("loadstring", load)
}

// Loaded returns the cached result for a module.
func (r *Resolver) Loaded(name string) (lua.LValue, bool) {
	v, ok := r.loaded[NormalizeName(name)]
	return v, ok
}

// Len returns the number of cached modules.
func (r *Resolver) Len() int {
	return len(r.loaded)
}

// Require resolves a module on L. It raises a Lua error on failure and must
// run inside a protected call.
//
// Results are cached after the module's chunk returns. A module that is
// required again while its own chunk is still running raises a circular
// require error instead of being compiled a second time.
func (r *Resolver) Require(L *lua.LState, name string) lua.LValue {
	key := NormalizeName(name)
	if v, ok := r.loaded[key]; ok {
		return v
	}

	if r.loading[key] {
		L.RaiseError("circular require of script %q", key)
		return lua.LNil
	}

	src, ok := r.sources.Source(key)
	if !ok {
		L.RaiseError("tried to require nonexistent script %q", name)
		return lua.LNil
	}

	fn, err := L.Load(strings.NewReader(src), key)
	if err != nil {
		msg := errorMessage(err)
		r.syntaxErrors[msg] = true
		L.Error(lua.LString(msg), 0)
		return lua.LNil
	}

	r.loading[key] = true
	defer delete(r.loading, key)

	L.Push(fn)
	L.Push(lua.LString(key))
	L.Call(1, 1)
	v := L.Get(-1)
	L.Pop(1)

	if v == lua.LNil {
		v = AlreadyLoaded
	}
	r.loaded[key] = v
	return v
}

// IsSyntaxError reports whether msg was raised by require for a module that
// failed to compile.
func (r *Resolver) IsSyntaxError(msg string) bool {
	return r.syntaxErrors[msg]
}

func (r *Resolver) luaRequire(L *lua.LState) int {
	L.Push(r.Require(L, L.CheckString(1)))
	return 1
}

// luaLoad compiles a string into a function bound to the globals. A compile
// error is returned to the caller as nil plus the message.
func (r *Resolver) luaLoad(L *lua.LState) int {
	src := L.CheckString(1)
	chunk := L.OptString(2, LoadChunkName)

	fn, err := L.Load(strings.NewReader(src), chunk)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(errorMessage(err)))
		return 2
	}

	L.Push(fn)
	return 1
}
