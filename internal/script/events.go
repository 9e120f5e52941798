package script

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Events raised by the host, in the order a frame raises them.
const (
	EventEntityInit      = "ENTITY_INIT"
	EventTick            = "TICK"
	EventWorldTick       = "WORLD_TICK"
	EventRender          = "RENDER"
	EventPostRender      = "POST_RENDER"
	EventWorldRender     = "WORLD_RENDER"
	EventPostWorldRender = "POST_WORLD_RENDER"
)

// DefaultEvents lists every event a runtime is created with.
var DefaultEvents = []string{
	EventEntityInit,
	EventTick,
	EventWorldTick,
	EventRender,
	EventPostRender,
	EventWorldRender,
	EventPostWorldRender,
}

type handler struct {
	name string
	fn   *lua.LFunction
}

// Event is an ordered list of guest functions registered for one hook.
type Event struct {
	name     string
	handlers []handler
}

// Name returns the canonical event name.
func (e *Event) Name() string {
	return e.name
}

// Register appends fn. name may be empty; it only serves RemoveNamed and
// CountNamed.
func (e *Event) Register(fn *lua.LFunction, name string) {
	e.handlers = append(e.handlers, handler{name: name, fn: fn})
}

// Remove drops every registration of fn and returns how many were removed.
func (e *Event) Remove(fn *lua.LFunction) int {
	return e.removeWhere(func(h handler) bool { return h.fn == fn })
}

// RemoveNamed drops every function registered under name.
func (e *Event) RemoveNamed(name string) int {
	return e.removeWhere(func(h handler) bool { return h.name == name })
}

func (e *Event) removeWhere(match func(handler) bool) int {
	kept := e.handlers[:0]
	removed := 0
	for _, h := range e.handlers {
		if match(h) {
			removed++
			continue
		}
		kept = append(kept, h)
	}
	for i := len(kept); i < len(e.handlers); i++ {
		e.handlers[i] = handler{}
	}
	e.handlers = kept
	return removed
}

// Clear drops every registration.
func (e *Event) Clear() {
	e.handlers = nil
}

// Count returns the number of registered functions.
func (e *Event) Count() int {
	return len(e.handlers)
}

// CountNamed returns the number of functions registered under name.
func (e *Event) CountNamed(name string) int {
	n := 0
	for _, h := range e.handlers {
		if h.name == name {
			n++
		}
	}
	return n
}

// Functions returns a snapshot of the registered functions in order.
func (e *Event) Functions() []*lua.LFunction {
	fns := make([]*lua.LFunction, len(e.handlers))
	for i, h := range e.handlers {
		fns[i] = h.fn
	}
	return fns
}

// Events is the set of hooks of one runtime. Lookup is case-insensitive.
type Events struct {
	byName map[string]*Event
	names  []string
}

// NewEvents creates the default event set.
func NewEvents() *Events {
	es := &Events{byName: make(map[string]*Event, len(DefaultEvents))}
	for _, name := range DefaultEvents {
		es.byName[name] = &Event{name: name}
		es.names = append(es.names, name)
	}
	return es
}

// Get returns the event with the given name in any letter case.
func (es *Events) Get(name string) (*Event, bool) {
	e, ok := es.byName[strings.ToUpper(name)]
	return e, ok
}

// Names returns the canonical event names.
func (es *Events) Names() []string {
	names := make([]string, len(es.names))
	copy(names, es.names)
	return names
}
