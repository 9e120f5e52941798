package lua

import (
	"sort"

	lua "github.com/yuin/gopher-lua"
)

// Object is a host value that can be handed to guest code.
type Object interface {
	// TypeID returns a stable identifier shared by every value of the type.
	TypeID() string
}

// Describer is an Object that can describe its guest-visible surface.
// The registry calls Describe at most once per type ID.
type Describer interface {
	Object
	Describe() TypeSpec
}

// Method is a guest-callable method. The receiver is at stack index 1, so
// explicit arguments start at index 2.
type Method func(L *lua.LState, self Object) int

// TypeSpec describes how a host type looks to scripts.
type TypeSpec struct {
	// Name is the friendly name reported by type(). Defaults to the type ID.
	Name string

	// Methods are looked up by name before Get is consulted.
	Methods map[string]Method

	// Get resolves field reads. Returning false yields nil.
	Get func(L *lua.LState, self Object, key string) (lua.LValue, bool)

	// Set handles field writes. Returning false raises an assignment error.
	Set func(L *lua.LState, self Object, key string, value lua.LValue) bool
}

// TypeInfo is the generated metadata for one registered type.
type TypeInfo struct {
	ID      string
	Name    string
	Members []string

	spec TypeSpec
}

// Registry holds the metadata of every host type known to scripts.
//
// A Registry may be shared by many states. Registration is first-wins and
// unlocked: all registration must happen on the control goroutine that
// drives the runtimes.
type Registry struct {
	types map[string]*TypeInfo
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]*TypeInfo),
	}
}

// Register generates metadata for d's type if it is not known yet and
// returns the registered entry. Later registrations of the same type ID
// return the first entry unchanged.
func (r *Registry) Register(d Describer) *TypeInfo {
	id := d.TypeID()
	if info, ok := r.types[id]; ok {
		return info
	}

	spec := d.Describe()
	name := spec.Name
	if name == "" {
		name = id
	}

	members := make([]string, 0, len(spec.Methods))
	for m := range spec.Methods {
		members = append(members, m)
	}
	sort.Strings(members)

	info := &TypeInfo{
		ID:      id,
		Name:    name,
		Members: members,
		spec:    spec,
	}
	r.types[id] = info
	r.order = append(r.order, id)
	return info
}

// Lookup returns the entry for a type ID.
func (r *Registry) Lookup(id string) (*TypeInfo, bool) {
	info, ok := r.types[id]
	return info, ok
}

// Types returns all entries in registration order.
func (r *Registry) Types() []*TypeInfo {
	infos := make([]*TypeInfo, 0, len(r.order))
	for _, id := range r.order {
		infos = append(infos, r.types[id])
	}
	return infos
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	return len(r.types)
}
