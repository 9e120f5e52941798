// Package api provides the capability surface avatar scripts see: vectors,
// matrices, events, entity handles and a json table.
//
// Setup is a script.SetupFunc. It registers every host type with the
// runtime's registry before the registry dump is taken, so hostMetatables
// lists them even before a script touches one.
package api

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/avatarscript/internal/script"
	plua "github.com/dshills/avatarscript/internal/script/lua"
)

// Global names installed by Setup.
const (
	VectorsGlobal  = "vectors"
	MatricesGlobal = "matrices"
	EventsGlobal   = "events"
	JSONGlobal     = "json"
	VecGlobal      = "vec"
)

// Setup installs the capability surface on rt.
func Setup(rt *script.Runtime) error {
	state := rt.State()
	bridge := rt.Bridge()

	for _, d := range Types() {
		bridge.RegisterType(d)
	}

	vectors := state.RegisterModule(VectorsGlobal, vectorFuncs())
	state.SetGlobal(VecGlobal, vectors.RawGetString("vec"))
	state.RegisterModule(MatricesGlobal, matrixFuncs())
	state.RegisterModule(JSONGlobal, jsonFuncs())

	events, err := bridge.HostToGuest(NewEventsAPI(rt.Events()))
	if err != nil {
		return err
	}
	state.SetGlobal(EventsGlobal, events)
	return nil
}

// Types returns one value of every host type the surface exposes.
func Types() []plua.Describer {
	types := vecTypes()
	types = append(types, matTypes()...)
	types = append(types,
		&EntityHandle{},
		&EventsAPI{},
		&EventHandle{},
	)
	return types
}

// bridgeOf returns the calling state's bridge. A state without one cannot
// have reached a method of this package.
func bridgeOf(L *lua.LState) *plua.Bridge {
	b := plua.BridgeOf(L)
	if b == nil {
		L.RaiseError("no host bridge attached to this state")
	}
	return b
}
