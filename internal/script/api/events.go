package api

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/avatarscript/internal/script"
	plua "github.com/dshills/avatarscript/internal/script/lua"
)

// EventsAPI is the events global. Indexing it by an event name in any letter
// case yields that event's handle.
type EventsAPI struct {
	events  *script.Events
	handles map[string]*EventHandle
}

// NewEventsAPI wraps a runtime's events.
func NewEventsAPI(events *script.Events) *EventsAPI {
	api := &EventsAPI{
		events:  events,
		handles: make(map[string]*EventHandle),
	}
	for _, name := range events.Names() {
		e, _ := events.Get(name)
		api.handles[name] = &EventHandle{event: e}
	}
	return api
}

// TypeID implements plua.Object.
func (a *EventsAPI) TypeID() string {
	return "api.Events"
}

// String implements fmt.Stringer.
func (a *EventsAPI) String() string {
	return "EventsAPI"
}

// Describe implements plua.Describer.
func (a *EventsAPI) Describe() plua.TypeSpec {
	return plua.TypeSpec{
		Name: "EventsAPI",
		Methods: map[string]plua.Method{
			"getEvents": func(L *lua.LState, self plua.Object) int {
				api := self.(*EventsAPI)
				t := L.NewTable()
				for _, name := range api.events.Names() {
					v, err := bridgeOf(L).HostToGuest(api.handles[name])
					if err != nil {
						L.RaiseError("%s", err.Error())
					}
					t.RawSetString(name, v)
				}
				L.Push(t)
				return 1
			},
		},
		Get: func(L *lua.LState, self plua.Object, key string) (lua.LValue, bool) {
			api := self.(*EventsAPI)
			e, ok := api.events.Get(key)
			if !ok {
				return lua.LNil, false
			}
			v, err := bridgeOf(L).HostToGuest(api.handles[e.Name()])
			if err != nil {
				L.RaiseError("%s", err.Error())
			}
			return v, true
		},
	}
}

// EventHandle exposes one event to scripts.
type EventHandle struct {
	event *script.Event
}

// TypeID implements plua.Object.
func (h *EventHandle) TypeID() string {
	return "api.Event"
}

// String implements fmt.Stringer.
func (h *EventHandle) String() string {
	return "LuaEvent(" + h.event.Name() + ")"
}

// Describe implements plua.Describer.
func (h *EventHandle) Describe() plua.TypeSpec {
	event := func(self plua.Object) *script.Event {
		return self.(*EventHandle).event
	}

	return plua.TypeSpec{
		Name: "LuaEvent",
		Methods: map[string]plua.Method{
			// register(fn [, name])
			"register": func(L *lua.LState, self plua.Object) int {
				fn := L.CheckFunction(2)
				name := L.OptString(3, "")
				event(self).Register(fn, name)
				return 0
			},
			// remove(fn | name) returns the number of removed functions.
			"remove": func(L *lua.LState, self plua.Object) int {
				var n int
				switch v := L.CheckAny(2).(type) {
				case *lua.LFunction:
					n = event(self).Remove(v)
				case lua.LString:
					n = event(self).RemoveNamed(string(v))
				default:
					L.ArgError(2, "function or string expected")
				}
				L.Push(lua.LNumber(n))
				return 1
			},
			"clear": func(L *lua.LState, self plua.Object) int {
				event(self).Clear()
				return 0
			},
			// getRegisteredCount([name])
			"getRegisteredCount": func(L *lua.LState, self plua.Object) int {
				if name, ok := L.Get(2).(lua.LString); ok {
					L.Push(lua.LNumber(event(self).CountNamed(string(name))))
					return 1
				}
				L.Push(lua.LNumber(event(self).Count()))
				return 1
			},
		},
	}
}
