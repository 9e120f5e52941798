package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func TestEventsGetCaseInsensitive(t *testing.T) {
	es := NewEvents()

	for _, name := range []string{"tick", "TICK", "Tick"} {
		e, ok := es.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, EventTick, e.Name())
	}

	_, ok := es.Get("unknown")
	assert.False(t, ok)
	assert.Equal(t, DefaultEvents, es.Names())
}

func TestEventRegisterRemove(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	a := L.NewFunction(func(*lua.LState) int { return 0 })
	b := L.NewFunction(func(*lua.LState) int { return 0 })

	es := NewEvents()
	e, _ := es.Get(EventRender)

	e.Register(a, "")
	e.Register(b, "named")
	e.Register(a, "named")
	assert.Equal(t, 3, e.Count())
	assert.Equal(t, 2, e.CountNamed("named"))
	assert.Equal(t, []*lua.LFunction{a, b, a}, e.Functions())

	assert.Equal(t, 2, e.Remove(a))
	assert.Equal(t, []*lua.LFunction{b}, e.Functions())

	assert.Equal(t, 1, e.RemoveNamed("named"))
	assert.Equal(t, 0, e.Count())

	e.Register(a, "")
	e.Clear()
	assert.Equal(t, 0, e.Count())
}

func TestEventFunctionsIsSnapshot(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	a := L.NewFunction(func(*lua.LState) int { return 0 })
	e, _ := NewEvents().Get(EventTick)
	e.Register(a, "")

	fns := e.Functions()
	e.Clear()
	assert.Len(t, fns, 1)
}
