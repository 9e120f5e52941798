// Package lua provides the guest-side machinery for avatar scripts.
//
// This package wraps the gopher-lua library to provide:
//   - A sandboxed global environment with a reduced standard library
//   - A type registry and bridge exposing host objects to scripts
//   - A module resolver implementing require, load and loadstring
//   - An instruction governor that aborts runaway scripts
//
// # State
//
// The State type owns one gopher-lua LState and everything bound to it:
//
//	registry := lua.NewRegistry()
//	state, err := lua.NewState(scripts, registry)
//	if err != nil {
//	    return err // bootstrap failed, nothing usable was created
//	}
//	defer state.Close()
//
//	state.SetInstructionLimit(4096)
//	if err := state.DoString("main", src); err != nil {
//	    fault := state.Classify(err)
//	    ...
//	}
//
// # Sandbox
//
// OpenSandbox loads only the base, bit32, table, string and math libraries
// and then runs the embedded bootstrap scripts. The bootstrap removes file
// and environment primitives, and the shared string metatable is replaced by
// a protected one before any user code runs.
//
// # Bridge
//
// Host values implement Object. Types that can describe their guest-visible
// surface implement Describer and are registered in a Registry, which may be
// shared by many states:
//
//	func (v *Vec) TypeID() string { return "api.Vec3" }
//	func (v *Vec) Describe() lua.TypeSpec {
//	    return lua.TypeSpec{Name: "Vector3", Methods: vecMethods}
//	}
//
//	ud, err := state.Bridge().HostToGuest(vec)
//
// # Governor
//
// The Governor is installed as the LState context. gopher-lua polls the
// context before every VM instruction, which makes Done the instruction
// hook. Once the armed limit is reached every later instruction raises
// "resource limit exceeded" until the governor is armed again.
package lua
