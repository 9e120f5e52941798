package lua

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	glua "github.com/yuin/gopher-lua"
)

type counter struct {
	value int
}

func (c *counter) TypeID() string { return "test.counter" }

func (c *counter) Describe() TypeSpec {
	return TypeSpec{
		Name: "Counter",
		Methods: map[string]Method{
			"inc": func(L *glua.LState, self Object) int {
				c := self.(*counter)
				c.value += L.OptInt(2, 1)
				return 0
			},
			"explode": func(L *glua.LState, self Object) int {
				panic("host exploded")
			},
		},
		Get: func(L *glua.LState, self Object, key string) (glua.LValue, bool) {
			if key == "value" {
				return glua.LNumber(self.(*counter).value), true
			}
			return glua.LNil, false
		},
		Set: func(L *glua.LState, self Object, key string, value glua.LValue) bool {
			if key != "value" {
				return false
			}
			self.(*counter).value = int(L.CheckNumber(3))
			return true
		},
	}
}

func (c *counter) String() string { return "Counter!" }

type opaque struct{}

func (opaque) TypeID() string { return "test.opaque" }

func TestRegistryFirstWins(t *testing.T) {
	r := NewRegistry()

	first := r.Register(&counter{})
	second := r.Register(&counter{value: 3})

	if first != second {
		t.Error("Register() replaced an existing entry")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	if !reflect.DeepEqual(first.Members, []string{"explode", "inc"}) {
		t.Errorf("Members = %v, want sorted method names", first.Members)
	}
}

func TestBridgeHostToGuest(t *testing.T) {
	state := newTestState(t, nil)
	bridge := state.Bridge()

	c := &counter{}
	v, err := bridge.HostToGuest(c)
	if err != nil {
		t.Fatalf("HostToGuest() error = %v", err)
	}
	state.SetGlobal("c", v)

	err = state.DoString("test", `
		c:inc()
		c:inc(4)
		before = c.value
		c.value = 10
		name = type(c)
		text = tostring(c)
		missing = c.nothing
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	if c.value != 10 {
		t.Errorf("c.value = %d, want 10", c.value)
	}
	if v := state.GetGlobal("before"); v != glua.LNumber(5) {
		t.Errorf("before = %v, want 5", v)
	}
	if v := state.GetGlobal("name"); v != glua.LString("Counter") {
		t.Errorf("type(c) = %v, want Counter", v)
	}
	if v := state.GetGlobal("text"); v != glua.LString("Counter!") {
		t.Errorf("tostring(c) = %v, want Counter!", v)
	}
	if v := state.GetGlobal("missing"); v != glua.LNil {
		t.Errorf("c.nothing = %v, want nil", v)
	}
}

func TestBridgeHostToGuestNil(t *testing.T) {
	state := newTestState(t, nil)

	v, err := state.Bridge().HostToGuest(nil)
	if err != nil {
		t.Fatalf("HostToGuest(nil) error = %v", err)
	}
	if v != glua.LNil {
		t.Errorf("HostToGuest(nil) = %v, want nil", v)
	}
}

func TestBridgeHostToGuestUnregistered(t *testing.T) {
	state := newTestState(t, nil)

	_, err := state.Bridge().HostToGuest(opaque{})
	if !errors.Is(err, ErrUnregisteredType) {
		t.Errorf("HostToGuest() error = %v, want ErrUnregisteredType", err)
	}
}

func TestBridgeSharedMetatable(t *testing.T) {
	state := newTestState(t, nil)
	bridge := state.Bridge()

	a, _ := bridge.HostToGuest(&counter{})
	b, _ := bridge.HostToGuest(&counter{})

	if a.(*glua.LUserData).Metatable != b.(*glua.LUserData).Metatable {
		t.Error("values of the same type should share a metatable")
	}
}

func TestBridgeAssignUnknownField(t *testing.T) {
	state := newTestState(t, nil)

	v, _ := state.Bridge().HostToGuest(&counter{})
	state.SetGlobal("c", v)

	err := state.DoString("test", `c.other = 1`)
	if err == nil {
		t.Fatal("assigning an unknown field should fail")
	}
	if !strings.Contains(state.Classify(err).Message, "cannot assign field") {
		t.Errorf("unexpected message %q", state.Classify(err).Message)
	}
}

func TestBridgeMethodPanicBecomesError(t *testing.T) {
	state := newTestState(t, nil)

	v, _ := state.Bridge().HostToGuest(&counter{})
	state.SetGlobal("c", v)

	err := state.DoString("test", `
		ok, msg = pcall(function() c:explode() end)
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if state.GetGlobal("ok") != glua.LFalse {
		t.Error("pcall should report the host panic as an error")
	}
	if msg := state.GetGlobal("msg").String(); !strings.Contains(msg, "host exploded") {
		t.Errorf("msg = %q, want host panic message", msg)
	}
}

func TestBridgeTypeName(t *testing.T) {
	state := newTestState(t, nil)
	bridge := state.Bridge()
	L := state.LuaState()

	tagged := L.NewTable()
	mt := L.NewTable()
	mt.RawSetString("__type", glua.LString("Tagged"))
	L.SetMetatable(tagged, mt)

	userdata, _ := bridge.HostToGuest(&counter{})

	tests := []struct {
		name  string
		value glua.LValue
		want  string
	}{
		{"nil", glua.LNil, "nil"},
		{"number", glua.LNumber(1), "number"},
		{"string", glua.LString("s"), "string"},
		{"boolean", glua.LTrue, "boolean"},
		{"table", L.NewTable(), "table"},
		{"tagged table", tagged, "Tagged"},
		{"host value", userdata, "Counter"},
		{"raw userdata", L.NewUserData(), "userdata"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bridge.TypeName(tt.value); got != tt.want {
				t.Errorf("TypeName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBridgeDump(t *testing.T) {
	state := newTestState(t, nil)
	bridge := state.Bridge()
	bridge.RegisterType(&counter{})

	dump := bridge.Dump()
	mt, ok := dump.RawGetString("Counter").(*glua.LTable)
	if !ok {
		t.Fatal("Dump() has no Counter entry")
	}
	if mt.RawGetString("__type") != glua.LString("Counter") {
		t.Error("dumped metatable has no __type")
	}
	methods, ok := mt.RawGetString("__methods").(*glua.LTable)
	if !ok || methods.RawGetString("inc") == glua.LNil {
		t.Error("dumped metatable does not expose methods")
	}
}

type gauge struct{}

func (gauge) TypeID() string { return "test.gauge" }

func (gauge) Describe() TypeSpec { return TypeSpec{Name: "Gauge"} }

func TestBridgeDumpGainsLaterTypes(t *testing.T) {
	state := newTestState(t, nil)
	bridge := state.Bridge()

	dump := bridge.Dump()
	if dump.RawGetString("Gauge") != glua.LNil {
		t.Fatal("Gauge dumped before it was bridged")
	}

	v, err := bridge.HostToGuest(gauge{})
	if err != nil {
		t.Fatalf("HostToGuest() error = %v", err)
	}
	mt, ok := dump.RawGetString("Gauge").(*glua.LTable)
	if !ok {
		t.Fatal("Dump() table did not gain the Gauge entry")
	}
	if v.(*glua.LUserData).Metatable != mt {
		t.Error("dumped metatable differs from the one on the handle")
	}
	if bridge.Dump() != dump {
		t.Error("Dump() returned a different table on the second call")
	}
}

func TestBridgeGuestValue(t *testing.T) {
	state := newTestState(t, nil)
	bridge := state.Bridge()

	if _, err := bridge.GuestValue(opaque{}); !errors.Is(err, ErrUnregisteredType) {
		t.Errorf("GuestValue(opaque) error = %v, want ErrUnregisteredType", err)
	}
	if got := bridge.ToLuaValue(opaque{}); got != glua.LNil {
		t.Errorf("ToLuaValue(opaque) = %v, want nil", got)
	}

	v, err := bridge.GuestValue(&counter{})
	if err != nil {
		t.Fatalf("GuestValue(counter) error = %v", err)
	}
	if _, ok := v.(*glua.LUserData); !ok {
		t.Errorf("GuestValue(counter) = %T, want userdata", v)
	}

	v, err = bridge.GuestValue(3)
	if err != nil || v != glua.LNumber(3) {
		t.Errorf("GuestValue(3) = %v, %v", v, err)
	}
}

func TestCheckObject(t *testing.T) {
	state := newTestState(t, nil)

	c := &counter{value: 7}
	v, _ := state.Bridge().HostToGuest(c)

	var got *counter
	err := state.Protect(func(L *glua.LState) {
		L.Push(v)
		got = CheckObject[*counter](L, L.GetTop())
	})
	if err != nil {
		t.Fatalf("Protect() error = %v", err)
	}
	if got != c {
		t.Error("CheckObject() returned a different object")
	}
}

func TestBridgeToGoValue(t *testing.T) {
	state := newTestState(t, nil)
	bridge := state.Bridge()

	tests := []struct {
		name     string
		input    glua.LValue
		expected interface{}
	}{
		{"nil", glua.LNil, nil},
		{"true", glua.LTrue, true},
		{"integer", glua.LNumber(42), int64(42)},
		{"float", glua.LNumber(3.14), 3.14},
		{"string", glua.LString("hello"), "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := bridge.ToGoValue(tt.input)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("ToGoValue(%v) = %v (%T), want %v (%T)",
					tt.input, result, result, tt.expected, tt.expected)
			}
		})
	}
}

func TestBridgeToGoValueTable(t *testing.T) {
	state := newTestState(t, nil)
	bridge := state.Bridge()
	L := state.LuaState()

	arr := L.NewTable()
	arr.RawSetInt(1, glua.LString("a"))
	arr.RawSetInt(2, glua.LString("b"))
	if got := bridge.ToGoValue(arr); !reflect.DeepEqual(got, []interface{}{"a", "b"}) {
		t.Errorf("ToGoValue(array) = %v", got)
	}

	m := L.NewTable()
	m.RawSetString("k", glua.LNumber(1))
	if got := bridge.ToGoValue(m); !reflect.DeepEqual(got, map[string]interface{}{"k": int64(1)}) {
		t.Errorf("ToGoValue(map) = %v", got)
	}

	cyclic := L.NewTable()
	cyclic.RawSetString("self", cyclic)
	if got := bridge.ToGoValue(cyclic); !reflect.DeepEqual(got, map[string]interface{}{"self": nil}) {
		t.Errorf("ToGoValue(cyclic) = %v", got)
	}
}

func TestBridgeToLuaValue(t *testing.T) {
	state := newTestState(t, nil)
	bridge := state.Bridge()

	if v := bridge.ToLuaValue(42); v != glua.LNumber(42) {
		t.Errorf("ToLuaValue(42) = %v", v)
	}
	if v := bridge.ToLuaValue("s"); v != glua.LString("s") {
		t.Errorf(`ToLuaValue("s") = %v`, v)
	}
	if v := bridge.ToLuaValue(struct{}{}); v != glua.LNil {
		t.Errorf("ToLuaValue(struct{}) = %v, want nil", v)
	}

	tbl, ok := bridge.ToLuaValue([]string{"x", "y"}).(*glua.LTable)
	if !ok || tbl.Len() != 2 {
		t.Errorf("ToLuaValue([]string) = %v", tbl)
	}

	ud, ok := bridge.ToLuaValue(&counter{}).(*glua.LUserData)
	if !ok || bridge.TypeName(ud) != "Counter" {
		t.Error("ToLuaValue(Object) should bridge host values")
	}
}

func TestBridgeOf(t *testing.T) {
	state := newTestState(t, nil)

	if got := BridgeOf(state.LuaState()); got != state.Bridge() {
		t.Errorf("BridgeOf() = %p, want %p", got, state.Bridge())
	}

	L := glua.NewState(glua.Options{SkipOpenLibs: true})
	defer L.Close()
	if got := BridgeOf(L); got != nil {
		t.Errorf("BridgeOf() on a bare state = %p, want nil", got)
	}
}
