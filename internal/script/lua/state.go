package lua

import (
	"io/fs"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is a generous budget for callers that have no
// per-phase limit configured.
const DefaultInstructionLimit = 10_000_000

// State owns one sandboxed gopher-lua LState together with its governor,
// bridge and resolver.
//
// IMPORTANT: gopher-lua's LState is not goroutine-safe and neither is State.
// All calls must come from the control goroutine that owns it.
type State struct {
	L *lua.LState

	governor *Governor
	bridge   *Bridge
	resolver *Resolver

	closed bool
}

// StateOption configures a State.
type StateOption func(*stateConfig)

type stateConfig struct {
	builtins fs.FS
}

// WithBuiltinScripts replaces the embedded bootstrap scripts.
func WithBuiltinScripts(scripts fs.FS) StateOption {
	return func(c *stateConfig) {
		c.builtins = scripts
	}
}

// NewState creates a sandboxed state resolving modules from sources and
// bridging host types through registry.
//
// If the sandbox cannot be bootstrapped the LState is closed and an error
// wrapping ErrBootstrap is returned.
func NewState(sources Sources, registry *Registry, opts ...StateOption) (*State, error) {
	cfg := stateConfig{builtins: builtinScripts}
	for _, opt := range opts {
		opt(&cfg)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // We'll open selectively
	})

	if err := OpenSandbox(L, cfg.builtins); err != nil {
		L.Close()
		return nil, err
	}

	governor := NewGovernor()
	L.SetContext(governor)

	return &State{
		L:        L,
		governor: governor,
		bridge:   NewBridge(L, registry),
		resolver: NewResolver(L, sources),
	}, nil
}

// InstallLibraries binds the host-provided globals that replace the ones the
// bootstrap removed: require, load, loadstring and type.
func (s *State) InstallLibraries() {
	s.resolver.Install()
	s.L.SetGlobal("type", s.L.NewFunction(s.bridge.luaType))
}

// DoString compiles src under the given chunk name and runs it.
func (s *State) DoString(name, src string) error {
	if s.closed {
		return ErrStateClosed
	}

	fn, err := s.L.Load(strings.NewReader(src), name)
	if err != nil {
		return err
	}

	s.L.Push(fn)
	return s.L.PCall(0, 0, nil)
}

// Compile checks that src parses without running it.
func (s *State) Compile(name, src string) error {
	if s.closed {
		return ErrStateClosed
	}
	_, err := s.L.Load(strings.NewReader(src), name)
	return err
}

// Call calls fn with args, discarding its results.
func (s *State) Call(fn *lua.LFunction, args ...lua.LValue) error {
	if s.closed {
		return ErrStateClosed
	}

	s.L.Push(fn)
	for _, arg := range args {
		s.L.Push(arg)
	}
	return s.L.PCall(len(args), 0, nil)
}

// Protect runs fn inside a protected call so it may raise Lua errors or call
// into Lua directly.
func (s *State) Protect(fn func(L *lua.LState)) error {
	if s.closed {
		return ErrStateClosed
	}

	s.L.Push(s.L.NewFunction(func(L *lua.LState) int {
		fn(L)
		return 0
	}))
	return s.L.PCall(0, 0, nil)
}

// Classify converts an execution error into a Fault. Errors raised while the
// governor has fired are resource faults regardless of how the script
// reported them.
func (s *State) Classify(err error) *Fault {
	fault := Normalize(err)
	if fault == nil {
		return nil
	}
	switch {
	case s.governor.Fired():
		fault.Kind = FaultResourceExceeded
	case fault.Kind == FaultRuntime && s.resolver.IsSyntaxError(fault.Message):
		fault.Kind = FaultCompile
	}
	return fault
}

// SetInstructionLimit zeroes the instruction counter and arms the governor.
func (s *State) SetInstructionLimit(limit int) {
	s.governor.Arm(limit)
}

// Instructions returns the instructions executed since the last limit was set.
func (s *State) Instructions() int {
	return int(s.governor.Instructions())
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) lua.LValue {
	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// SetGlobal sets a global variable.
func (s *State) SetGlobal(name string, value lua.LValue) {
	if s.closed {
		return
	}
	s.L.SetGlobal(name, value)
}

// RegisterModule registers a global table of functions.
func (s *State) RegisterModule(name string, funcs map[string]lua.LGFunction) *lua.LTable {
	mod := s.L.SetFuncs(s.L.NewTable(), funcs)
	s.L.SetGlobal(name, mod)
	return mod
}

// LuaState returns the underlying gopher-lua state.
//
// WARNING: Direct access bypasses the closed check. The caller must not use
// it after Close.
func (s *State) LuaState() *lua.LState {
	return s.L
}

// Governor returns the instruction governor.
func (s *State) Governor() *Governor {
	return s.governor
}

// Bridge returns the value bridge.
func (s *State) Bridge() *Bridge {
	return s.bridge
}

// Resolver returns the module resolver.
func (s *State) Resolver() *Resolver {
	return s.resolver
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	return s.closed
}

// Close releases the LState. Closing twice is a no-op.
func (s *State) Close() {
	if s.closed {
		return
	}
	s.L.Close()
	s.closed = true
}
