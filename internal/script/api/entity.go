package api

import (
	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"

	plua "github.com/dshills/avatarscript/internal/script/lua"
)

// Entity is the host view of the entity an avatar is attached to.
type Entity interface {
	UUID() uuid.UUID
	Name() string
	Type() string
	Position() (x, y, z float64)
}

// EntityHandle exposes an Entity to scripts.
type EntityHandle struct {
	entity Entity
}

// WrapEntity returns a bridgeable handle for e, or nil if e is nil.
func WrapEntity(e Entity) plua.Object {
	if e == nil {
		return nil
	}
	return &EntityHandle{entity: e}
}

// Entity returns the wrapped entity.
func (h *EntityHandle) Entity() Entity {
	return h.entity
}

// TypeID implements plua.Object.
func (h *EntityHandle) TypeID() string {
	return "api.Entity"
}

// String implements fmt.Stringer.
func (h *EntityHandle) String() string {
	return "EntityAPI(" + h.entity.Name() + ")"
}

// Describe implements plua.Describer.
func (h *EntityHandle) Describe() plua.TypeSpec {
	entity := func(self plua.Object) Entity {
		return self.(*EntityHandle).entity
	}

	return plua.TypeSpec{
		Name: "EntityAPI",
		Methods: map[string]plua.Method{
			"getName": func(L *lua.LState, self plua.Object) int {
				L.Push(lua.LString(entity(self).Name()))
				return 1
			},
			"getUUID": func(L *lua.LState, self plua.Object) int {
				L.Push(lua.LString(entity(self).UUID().String()))
				return 1
			},
			"getType": func(L *lua.LState, self plua.Object) int {
				L.Push(lua.LString(entity(self).Type()))
				return 1
			},
			"getPos": func(L *lua.LState, self plua.Object) int {
				x, y, z := entity(self).Position()
				return pushObject(L, NewVec(x, y, z))
			},
		},
	}
}
