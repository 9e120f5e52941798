package lua

import (
	"math"

	lua "github.com/yuin/gopher-lua"
)

// Bit32LibName is the global name of the bit operations library.
const Bit32LibName = "bit32"

var bit32Funcs = map[string]lua.LGFunction{
	"arshift": bit32Arshift,
	"band":    bit32Band,
	"bnot":    bit32Bnot,
	"bor":     bit32Bor,
	"btest":   bit32Btest,
	"bxor":    bit32Bxor,
	"extract": bit32Extract,
	"replace": bit32Replace,
	"lrotate": bit32Lrotate,
	"lshift":  bit32Lshift,
	"rrotate": bit32Rrotate,
	"rshift":  bit32Rshift,
}

// OpenBit32 registers the bit32 library. gopher-lua implements Lua 5.1 and
// does not ship one.
func OpenBit32(L *lua.LState) int {
	mod := L.RegisterModule(Bit32LibName, bit32Funcs)
	L.Push(mod)
	return 1
}

// checkUint32 converts argument n modulo 2^32.
func checkUint32(L *lua.LState, n int) uint32 {
	f := math.Floor(float64(L.CheckNumber(n)))
	f = math.Mod(f, 4294967296)
	if f < 0 {
		f += 4294967296
	}
	return uint32(f)
}

func pushUint32(L *lua.LState, v uint32) int {
	L.Push(lua.LNumber(v))
	return 1
}

func fold(L *lua.LState, init uint32, op func(a, b uint32) uint32) uint32 {
	acc := init
	for i := 1; i <= L.GetTop(); i++ {
		acc = op(acc, checkUint32(L, i))
	}
	return acc
}

func bit32Band(L *lua.LState) int {
	return pushUint32(L, fold(L, math.MaxUint32, func(a, b uint32) uint32 { return a & b }))
}

func bit32Bor(L *lua.LState) int {
	return pushUint32(L, fold(L, 0, func(a, b uint32) uint32 { return a | b }))
}

func bit32Bxor(L *lua.LState) int {
	return pushUint32(L, fold(L, 0, func(a, b uint32) uint32 { return a ^ b }))
}

func bit32Btest(L *lua.LState) int {
	v := fold(L, math.MaxUint32, func(a, b uint32) uint32 { return a & b })
	L.Push(lua.LBool(v != 0))
	return 1
}

func bit32Bnot(L *lua.LState) int {
	return pushUint32(L, ^checkUint32(L, 1))
}

// shift moves x left by disp bits, or right for a negative disp.
func shift(x uint32, disp int) uint32 {
	switch {
	case disp <= -32 || disp >= 32:
		return 0
	case disp < 0:
		return x >> uint(-disp)
	default:
		return x << uint(disp)
	}
}

func bit32Lshift(L *lua.LState) int {
	return pushUint32(L, shift(checkUint32(L, 1), L.CheckInt(2)))
}

func bit32Rshift(L *lua.LState) int {
	return pushUint32(L, shift(checkUint32(L, 1), -L.CheckInt(2)))
}

func bit32Arshift(L *lua.LState) int {
	x := checkUint32(L, 1)
	disp := L.CheckInt(2)
	if disp < 0 || x&0x80000000 == 0 {
		return pushUint32(L, shift(x, -disp))
	}
	if disp >= 32 {
		return pushUint32(L, math.MaxUint32)
	}
	return pushUint32(L, uint32(int32(x)>>uint(disp)))
}

func rotate(x uint32, disp int) uint32 {
	disp &= 31
	return x<<uint(disp) | x>>uint(32-disp)
}

func bit32Lrotate(L *lua.LState) int {
	return pushUint32(L, rotate(checkUint32(L, 1), L.CheckInt(2)))
}

func bit32Rrotate(L *lua.LState) int {
	return pushUint32(L, rotate(checkUint32(L, 1), -L.CheckInt(2)))
}

// fieldArgs validates the field and width arguments of extract and replace.
func fieldArgs(L *lua.LState, fi, wi int) (int, int) {
	field := L.CheckInt(fi)
	width := L.OptInt(wi, 1)
	if field < 0 {
		L.ArgError(fi, "field cannot be negative")
	}
	if width <= 0 {
		L.ArgError(wi, "width must be positive")
	}
	if field+width > 32 {
		L.RaiseError("trying to access non-existent bits")
	}
	return field, width
}

func mask(width int) uint32 {
	return ^(uint32(math.MaxUint32) << uint(width-1) << 1)
}

func bit32Extract(L *lua.LState) int {
	x := checkUint32(L, 1)
	field, width := fieldArgs(L, 2, 3)
	return pushUint32(L, (x>>uint(field))&mask(width))
}

func bit32Replace(L *lua.LState) int {
	x := checkUint32(L, 1)
	v := checkUint32(L, 2)
	field, width := fieldArgs(L, 3, 4)
	m := mask(width)
	x = (x &^ (m << uint(field))) | ((v & m) << uint(field))
	return pushUint32(L, x)
}
