package lua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Bridge converts values between Go and one Lua state.
//
// Metadata comes from the shared Registry; the metatables generated from it
// belong to the state and are cached per type ID.
type Bridge struct {
	L        *lua.LState
	registry *Registry

	metatables map[string]*lua.LTable
	dump       *lua.LTable
}

// bridgeKey is the Lua registry slot holding the state's bridge.
const bridgeKey = "avatarscript.bridge"

// NewBridge creates a new Bridge for the given Lua state and attaches it to
// the state so that BridgeOf can find it from inside any LGFunction.
func NewBridge(L *lua.LState, registry *Registry) *Bridge {
	if registry == nil {
		registry = NewRegistry()
	}
	b := &Bridge{
		L:          L,
		registry:   registry,
		metatables: make(map[string]*lua.LTable),
	}

	ud := L.NewUserData()
	ud.Value = b
	L.G.Registry.RawSetString(bridgeKey, ud)
	return b
}

// BridgeOf returns the bridge attached to L's state, or nil if there is none.
//
// Methods are shared by every state using a Registry, so they look up the
// calling state's bridge here instead of capturing one.
func BridgeOf(L *lua.LState) *Bridge {
	ud, ok := L.G.Registry.RawGetString(bridgeKey).(*lua.LUserData)
	if !ok {
		return nil
	}
	b, _ := ud.Value.(*Bridge)
	return b
}

// Registry returns the registry backing this bridge.
func (b *Bridge) Registry() *Registry {
	return b.registry
}

// RegisterType registers d's type and prepares its metatable.
func (b *Bridge) RegisterType(d Describer) *TypeInfo {
	info := b.registry.Register(d)
	b.metatable(info)
	return info
}

// HostToGuest wraps a host object as userdata carrying its type's metatable.
// A nil object maps to nil. Describers are registered on first use; any
// other unknown type is an error.
func (b *Bridge) HostToGuest(obj Object) (lua.LValue, error) {
	if obj == nil {
		return lua.LNil, nil
	}

	info, ok := b.registry.Lookup(obj.TypeID())
	if !ok {
		d, isDescriber := obj.(Describer)
		if !isDescriber {
			return lua.LNil, fmt.Errorf("%w: %s", ErrUnregisteredType, obj.TypeID())
		}
		info = b.registry.Register(d)
	}

	ud := b.L.NewUserData()
	ud.Value = obj
	ud.Metatable = b.metatable(info)
	return ud, nil
}

// Push wraps obj and pushes it onto L, raising a Lua error if it cannot be
// bridged. Returns the number of pushed values for use in LGFunctions.
func (b *Bridge) Push(L *lua.LState, obj Object) int {
	v, err := b.HostToGuest(obj)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(v)
	return 1
}

// TypeName returns the guest-visible type name of v.
func (b *Bridge) TypeName(v lua.LValue) string {
	return b.typeOf(v).String()
}

// typeOf resolves registered names first, then a __type tag on a table's
// metatable, then the primitive type name.
func (b *Bridge) typeOf(v lua.LValue) lua.LValue {
	switch lv := v.(type) {
	case *lua.LUserData:
		if obj, ok := lv.Value.(Object); ok {
			if info, ok := b.registry.Lookup(obj.TypeID()); ok {
				return lua.LString(info.Name)
			}
		}
	case *lua.LTable:
		if mt, ok := lv.Metatable.(*lua.LTable); ok {
			if tag := mt.RawGetString("__type"); tag != lua.LNil {
				return tag
			}
		}
	}
	if v == nil {
		return lua.LString(lua.LTNil.String())
	}
	return lua.LString(v.Type().String())
}

// luaType replaces the global type function.
func (b *Bridge) luaType(L *lua.LState) int {
	L.Push(b.typeOf(L.CheckAny(1)))
	return 1
}

// Dump returns a table mapping every registered friendly name to the
// metatable used for that type in this state. The table is the same on every
// call and gains an entry whenever a type is first bridged afterwards.
func (b *Bridge) Dump() *lua.LTable {
	if b.dump == nil {
		b.dump = b.L.NewTable()
	}
	for _, info := range b.registry.Types() {
		b.dump.RawSetString(info.Name, b.metatable(info))
	}
	return b.dump
}

// metatable returns the cached metatable for info, building it on first use.
func (b *Bridge) metatable(info *TypeInfo) *lua.LTable {
	if mt, ok := b.metatables[info.ID]; ok {
		return mt
	}

	L := b.L
	methods := L.NewTable()
	for _, name := range info.Members {
		methods.RawSetString(name, L.NewFunction(wrapMethod(info, info.spec.Methods[name])))
	}

	mt := L.NewTable()
	if b.dump != nil {
		b.dump.RawSetString(info.Name, mt)
	}
	mt.RawSetString("__type", lua.LString(info.Name))
	mt.RawSetString("__methods", methods)

	mt.RawSetString("__index", L.NewFunction(func(L *lua.LState) int {
		self := checkSelf(L, info)
		key, ok := L.Get(2).(lua.LString)
		if !ok {
			if n, isNum := L.Get(2).(lua.LNumber); isNum && info.spec.Get != nil {
				if v, found := info.spec.Get(L, self, n.String()); found {
					L.Push(v)
					return 1
				}
			}
			L.Push(lua.LNil)
			return 1
		}
		if fn := methods.RawGetString(string(key)); fn != lua.LNil {
			L.Push(fn)
			return 1
		}
		if info.spec.Get != nil {
			if v, found := info.spec.Get(L, self, string(key)); found {
				L.Push(v)
				return 1
			}
		}
		L.Push(lua.LNil)
		return 1
	}))

	mt.RawSetString("__newindex", L.NewFunction(func(L *lua.LState) int {
		self := checkSelf(L, info)
		key := L.CheckAny(2).String()
		if info.spec.Set != nil && info.spec.Set(L, self, key, L.Get(3)) {
			return 0
		}
		L.RaiseError("cannot assign field %q of %s", key, info.Name)
		return 0
	}))

	mt.RawSetString("__tostring", L.NewFunction(func(L *lua.LState) int {
		self := checkSelf(L, info)
		if s, ok := self.(fmt.Stringer); ok {
			L.Push(lua.LString(s.String()))
		} else {
			L.Push(lua.LString(info.Name))
		}
		return 1
	}))

	mt.RawSetString("__eq", L.NewFunction(func(L *lua.LState) int {
		a, aok := L.Get(1).(*lua.LUserData)
		c, cok := L.Get(2).(*lua.LUserData)
		L.Push(lua.LBool(aok && cok && a.Value == c.Value))
		return 1
	}))

	b.metatables[info.ID] = mt
	return mt
}

// checkSelf returns the receiver at index 1, raising if it is not a value of
// info's type.
func checkSelf(L *lua.LState, info *TypeInfo) Object {
	ud, ok := L.Get(1).(*lua.LUserData)
	if ok {
		if obj, isObj := ud.Value.(Object); isObj && obj.TypeID() == info.ID {
			return obj
		}
	}
	L.ArgError(1, info.Name+" expected")
	return nil
}

// wrapMethod adapts a Method to an LGFunction. Go panics raised by the
// method are converted to Lua errors so scripts never observe them.
func wrapMethod(info *TypeInfo, m Method) lua.LGFunction {
	return func(L *lua.LState) int {
		self := checkSelf(L, info)
		return Guard(L, func() int {
			return m(L, self)
		})
	}
}

// Guard runs fn and turns any non-Lua panic into a Lua error.
func Guard(L *lua.LState, fn func() int) (n int) {
	defer func() {
		if r := recover(); r != nil {
			if apiErr, ok := r.(*lua.ApiError); ok {
				panic(apiErr)
			}
			L.RaiseError("%s", Normalize(r).Message)
		}
	}()
	return fn()
}

// CheckObject returns the host object of type T at stack index n.
func CheckObject[T Object](L *lua.LState, n int) T {
	ud := L.CheckUserData(n)
	obj, ok := ud.Value.(T)
	if !ok {
		var zero T
		L.ArgError(n, fmt.Sprintf("expected %T, got %T", zero, ud.Value))
		return zero
	}
	return obj
}

// ToGoValue converts a Lua value to a Go value.
func (b *Bridge) ToGoValue(lv lua.LValue) interface{} {
	return b.toGoValueWithVisited(lv, make(map[*lua.LTable]bool))
}

// toGoValueWithVisited converts a Lua value to a Go value, tracking visited tables.
func (b *Bridge) toGoValueWithVisited(lv lua.LValue, visited map[*lua.LTable]bool) interface{} {
	if lv == nil {
		return nil
	}

	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil // Break circular reference
		}
		visited[v] = true
		return b.tableToGoWithVisited(v, visited)
	case *lua.LUserData:
		return v.Value
	default:
		return nil
	}
}

// tableToGoWithVisited converts a table to a slice when its keys are exactly
// 1..n, otherwise to a map keyed by the string form of each key.
func (b *Bridge) tableToGoWithVisited(t *lua.LTable, visited map[*lua.LTable]bool) interface{} {
	isArray := true
	maxN := 0
	count := 0
	t.ForEach(func(k, _ lua.LValue) {
		count++
		if kn, ok := k.(lua.LNumber); ok {
			n := int(kn)
			if float64(n) == float64(kn) && n > 0 {
				if n > maxN {
					maxN = n
				}
				return
			}
		}
		isArray = false
	})

	if isArray && maxN > 0 && count == maxN {
		arr := make([]interface{}, maxN)
		for i := 1; i <= maxN; i++ {
			arr[i-1] = b.toGoValueWithVisited(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]interface{})
	t.ForEach(func(k, v lua.LValue) {
		m[k.String()] = b.toGoValueWithVisited(v, visited)
	})
	return m
}

// GuestValue converts v like ToLuaValue, but host objects that cannot be
// bridged are an error instead of nil.
func (b *Bridge) GuestValue(v any) (lua.LValue, error) {
	if obj, ok := v.(Object); ok {
		if lv, isLua := v.(lua.LValue); isLua {
			return lv, nil
		}
		return b.HostToGuest(obj)
	}
	return b.ToLuaValue(v), nil
}

// ToLuaValue converts a Go value to a Lua value. Values of unsupported types,
// including unregistered objects, become nil. Use GuestValue to see the error.
func (b *Bridge) ToLuaValue(v interface{}) lua.LValue {
	if v == nil {
		return lua.LNil
	}

	switch val := v.(type) {
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case []interface{}:
		t := b.L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, b.ToLuaValue(item))
		}
		return t
	case []string:
		t := b.L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, lua.LString(item))
		}
		return t
	case map[string]interface{}:
		t := b.L.NewTable()
		for k, item := range val {
			t.RawSetString(k, b.ToLuaValue(item))
		}
		return t
	case map[string]string:
		t := b.L.NewTable()
		for k, item := range val {
			t.RawSetString(k, lua.LString(item))
		}
		return t
	case lua.LValue:
		return val
	case Object:
		lv, err := b.HostToGuest(val)
		if err != nil {
			return lua.LNil
		}
		return lv
	default:
		return lua.LNil
	}
}
