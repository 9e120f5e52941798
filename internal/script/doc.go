// Package script hosts one sandboxed Lua runtime per avatar.
//
// A Runtime owns a single lua.State built from an immutable set of Scripts.
// It exposes the entry points the owning entity drives: Run, Init, BindUser
// and CallEvent. Any fault raised while one of these runs is handed to the
// runtime's Reporter, which emits a Diagnostic on the Channel, flags the
// owner and discards the runtime. A discarded runtime is never reused; the
// owner builds a fresh one from the original scripts.
//
// Runtimes are not safe for concurrent use. All calls for every runtime must
// come from one control goroutine; Executor provides that goroutine for hosts
// that receive work from several sources.
package script
