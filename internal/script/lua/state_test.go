package lua

import (
	"errors"
	"testing"
	"testing/fstest"

	glua "github.com/yuin/gopher-lua"
)

// mapSources serves scripts from a map keyed by normalized name.
type mapSources map[string]string

func (m mapSources) Source(name string) (string, bool) {
	src, ok := m[name]
	return src, ok
}

func newTestState(t *testing.T, sources Sources) *State {
	t.Helper()
	state, err := NewState(sources, NewRegistry())
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	state.InstallLibraries()
	t.Cleanup(state.Close)
	return state
}

func TestNewState(t *testing.T) {
	state, err := NewState(nil, nil)
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	if state.IsClosed() {
		t.Error("NewState() returned closed state")
	}
	if state.LuaState() == nil {
		t.Error("NewState() LuaState() is nil")
	}
	if state.Bridge().Registry() == nil {
		t.Error("NewState() with nil registry has no registry")
	}
}

func TestNewStateBootstrapFailure(t *testing.T) {
	scripts := fstest.MapFS{
		SandboxScript: {Data: []byte("error('boom')")},
		MathScript:    {Data: []byte("")},
	}

	_, err := NewState(nil, nil, WithBuiltinScripts(scripts))
	if !errors.Is(err, ErrBootstrap) {
		t.Fatalf("NewState() error = %v, want ErrBootstrap", err)
	}
}

func TestNewStateMissingBootstrap(t *testing.T) {
	_, err := NewState(nil, nil, WithBuiltinScripts(fstest.MapFS{}))
	if !errors.Is(err, ErrBootstrap) {
		t.Fatalf("NewState() error = %v, want ErrBootstrap", err)
	}
}

func TestStateDoString(t *testing.T) {
	state := newTestState(t, nil)

	if err := state.DoString("test", `x = 1 + 1`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	v := state.GetGlobal("x")
	if num, ok := v.(glua.LNumber); !ok || float64(num) != 2 {
		t.Errorf("x = %v, want 2", v)
	}
}

func TestStateDoStringSyntaxError(t *testing.T) {
	state := newTestState(t, nil)

	err := state.DoString("broken", `invalid lua code !!!`)
	if err == nil {
		t.Fatal("DoString() should fail on syntax error")
	}
	if fault := state.Classify(err); fault.Kind != FaultCompile {
		t.Errorf("Classify() kind = %v, want %v", fault.Kind, FaultCompile)
	}
}

func TestStateCompile(t *testing.T) {
	state := newTestState(t, nil)

	if err := state.Compile("ok", `ran = true`); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if v := state.GetGlobal("ran"); v != glua.LNil {
		t.Errorf("Compile() ran the chunk, ran = %v", v)
	}

	err := state.Compile("broken", `local = 1`)
	if err == nil {
		t.Fatal("Compile() should fail on syntax error")
	}
	if fault := state.Classify(err); fault.Kind != FaultCompile {
		t.Errorf("Classify() kind = %v, want %v", fault.Kind, FaultCompile)
	}
}

func TestStateDoStringRuntimeError(t *testing.T) {
	state := newTestState(t, nil)

	err := state.DoString("broken", `error("nope")`)
	if err == nil {
		t.Fatal("DoString() should fail on runtime error")
	}

	fault := state.Classify(err)
	if fault.Kind != FaultRuntime {
		t.Errorf("Classify() kind = %v, want %v", fault.Kind, FaultRuntime)
	}
	if fault.Message == "" {
		t.Error("Classify() message is empty")
	}
}

func TestStateCall(t *testing.T) {
	state := newTestState(t, nil)

	if err := state.DoString("test", `function add(a, b) result = a + b end`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	fn, ok := state.GetGlobal("add").(*glua.LFunction)
	if !ok {
		t.Fatal("add is not a function")
	}
	if err := state.Call(fn, glua.LNumber(2), glua.LNumber(3)); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if v := state.GetGlobal("result"); v != glua.LNumber(5) {
		t.Errorf("result = %v, want 5", v)
	}
}

func TestStateProtect(t *testing.T) {
	state := newTestState(t, nil)

	err := state.Protect(func(L *glua.LState) {
		L.RaiseError("raised from host")
	})
	if err == nil {
		t.Fatal("Protect() should return the raised error")
	}

	err = state.Protect(func(L *glua.LState) {
		L.SetGlobal("ok", glua.LTrue)
	})
	if err != nil {
		t.Fatalf("Protect() error = %v", err)
	}
	if state.GetGlobal("ok") != glua.LTrue {
		t.Error("Protect() did not run fn")
	}
}

func TestStateClose(t *testing.T) {
	state, err := NewState(nil, nil)
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}

	state.Close()
	if !state.IsClosed() {
		t.Error("IsClosed() = false after Close()")
	}

	// Second close is a no-op.
	state.Close()

	if err := state.DoString("test", `x = 1`); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoString() after Close() error = %v, want ErrStateClosed", err)
	}
	if v := state.GetGlobal("x"); v != glua.LNil {
		t.Errorf("GetGlobal() after Close() = %v, want nil", v)
	}
}

func TestStateInstructionLimit(t *testing.T) {
	state := newTestState(t, nil)

	state.SetInstructionLimit(5)
	err := state.DoString("spin", `while true do end`)
	if err == nil {
		t.Fatal("DoString() should fail when the limit is exceeded")
	}

	fault := state.Classify(err)
	if fault.Kind != FaultResourceExceeded {
		t.Errorf("Classify() kind = %v, want %v", fault.Kind, FaultResourceExceeded)
	}
	if got := state.Instructions(); got < 5 {
		t.Errorf("Instructions() = %d, want >= 5", got)
	}
}

func TestStateInstructionLimitNotCaughtByPcall(t *testing.T) {
	state := newTestState(t, nil)

	state.SetInstructionLimit(100)
	err := state.DoString("spin", `
		pcall(function() while true do end end)
		escaped = true
	`)
	if err == nil {
		t.Fatal("DoString() should fail even when the loop runs under pcall")
	}
	if state.GetGlobal("escaped") != glua.LNil {
		t.Error("script continued after the governor fired")
	}
}

func TestStateInstructionLimitReset(t *testing.T) {
	state := newTestState(t, nil)

	state.SetInstructionLimit(5)
	if err := state.DoString("spin", `while true do end`); err == nil {
		t.Fatal("DoString() should fail when the limit is exceeded")
	}

	state.SetInstructionLimit(DefaultInstructionLimit)
	if state.Instructions() != 0 {
		t.Errorf("Instructions() = %d after re-arm, want 0", state.Instructions())
	}
	if err := state.DoString("after", `y = 1`); err != nil {
		t.Fatalf("DoString() after re-arm error = %v", err)
	}
	if state.Instructions() == 0 {
		t.Error("Instructions() did not count the second run")
	}
}

func TestStateRegisterModule(t *testing.T) {
	state := newTestState(t, nil)

	state.RegisterModule("host", map[string]glua.LGFunction{
		"answer": func(L *glua.LState) int {
			L.Push(glua.LNumber(42))
			return 1
		},
	})

	if err := state.DoString("test", `v = host.answer()`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if v := state.GetGlobal("v"); v != glua.LNumber(42) {
		t.Errorf("v = %v, want 42", v)
	}
}
