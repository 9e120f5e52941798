package lua

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

//go:embed bootstrap/*.lua
var builtinScripts embed.FS

// Builtin scripts run by OpenSandbox, in order.
const (
	SandboxScript = "bootstrap/sandbox.lua"
	MathScript    = "bootstrap/math.lua"
)

// BuiltinScripts returns the embedded bootstrap scripts.
func BuiltinScripts() fs.FS {
	return builtinScripts
}

// OpenSandbox prepares a fresh LState as an avatar environment.
//
// L must have been created with SkipOpenLibs. The bootstrap scripts are read
// from scripts; any failure to read or run them is returned wrapped in
// ErrBootstrap and leaves L unusable.
func OpenSandbox(L *lua.LState, scripts fs.FS) error {
	if err := openSafeLibraries(L); err != nil {
		return fmt.Errorf("%w: %v", ErrBootstrap, err)
	}

	if err := runBuiltin(L, scripts, SandboxScript); err != nil {
		return err
	}

	lockStringMetatable(L)

	return runBuiltin(L, scripts, MathScript)
}

// openSafeLibraries opens only the libraries avatar scripts may use.
func openSafeLibraries(L *lua.LState) error {
	libs := []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
		{Bit32LibName, OpenBit32},
	}

	// Note: These are intentionally NOT opened:
	// - io, os (file system and process access)
	// - debug (can bypass the sandbox)
	// - package (loads arbitrary modules from disk)
	// - coroutine, channel (no suspension points in avatar code)
	for _, lib := range libs {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		if err := L.PCall(1, 0, nil); err != nil {
			return fmt.Errorf("opening %s: %w", lib.name, err)
		}
	}
	return nil
}

// runBuiltin executes one embedded script in L.
func runBuiltin(L *lua.LState, scripts fs.FS, name string) error {
	if scripts == nil {
		return fmt.Errorf("%w: no builtin scripts", ErrBootstrap)
	}

	data, err := fs.ReadFile(scripts, name)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrBootstrap, name, err)
	}

	chunk := strings.TrimSuffix(path.Base(name), ScriptExt)
	fn, err := L.Load(bytes.NewReader(data), chunk)
	if err != nil {
		return fmt.Errorf("%w: compiling %s: %s", ErrBootstrap, name, errorMessage(err))
	}

	L.Push(fn)
	if err := L.PCall(0, 0, nil); err != nil {
		return fmt.Errorf("%w: running %s: %s", ErrBootstrap, name, errorMessage(err))
	}
	return nil
}

// lockStringMetatable replaces the metatable shared by all string values.
//
// gopher-lua uses the string library table itself as the string metatable,
// so a script that edits the global string table changes method lookup for
// every string. Method lookup is moved to a private copy of the library and
// the metatable is protected from getmetatable.
func lockStringMetatable(L *lua.LState) {
	lib, ok := L.GetGlobal(lua.StringLibName).(*lua.LTable)
	if !ok {
		return
	}

	methods := L.NewTable()
	lib.ForEach(func(k, v lua.LValue) {
		if k.String() == "__index" {
			return
		}
		methods.RawSet(k, v)
	})

	mt := L.NewTable()
	mt.RawSetString("__index", methods)
	mt.RawSetString("__metatable", lua.LFalse)
	L.SetMetatable(lua.LString(""), mt)

	lib.RawSetString("__index", lua.LNil)
}
