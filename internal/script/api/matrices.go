package api

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"

	plua "github.com/dshills/avatarscript/internal/script/lua"
)

// MinMatSize and MaxMatSize bound square matrix sizes.
const (
	MinMatSize = 2
	MaxMatSize = 4
)

// Mat is a square matrix stored column-major.
type Mat struct {
	n int
	m [MaxMatSize * MaxMatSize]float64
}

// Identity returns the n×n identity matrix.
func Identity(n int) *Mat {
	if n < MinMatSize || n > MaxMatSize {
		panic(fmt.Sprintf("api: invalid matrix size %d", n))
	}
	mat := &Mat{n: n}
	for i := 0; i < n; i++ {
		mat.Set(i, i, 1)
	}
	return mat
}

// FromColumns builds a matrix whose columns are cols. Every column must
// have len(cols) components.
func FromColumns(cols ...*Vec) (*Mat, error) {
	n := len(cols)
	if n < MinMatSize || n > MaxMatSize {
		return nil, fmt.Errorf("invalid matrix size %d", n)
	}
	mat := &Mat{n: n}
	for c, col := range cols {
		if col == nil || col.Freed() || col.Len() != n {
			return nil, fmt.Errorf("column %d is not a Vector%d", c+1, n)
		}
		for r := 0; r < n; r++ {
			mat.Set(r, c, col.At(r))
		}
	}
	return mat, nil
}

// Size returns the matrix dimension.
func (m *Mat) Size() int {
	return m.n
}

// At returns the element at row r, column c, both 0-based.
func (m *Mat) At(r, c int) float64 {
	return m.m[c*m.n+r]
}

// Set sets the element at row r, column c.
func (m *Mat) Set(r, c int, v float64) {
	m.m[c*m.n+r] = v
}

// Column returns column c as a new vector.
func (m *Mat) Column(c int) *Vec {
	comps := make([]float64, m.n)
	for r := 0; r < m.n; r++ {
		comps[r] = m.At(r, c)
	}
	return NewVec(comps...)
}

// Row returns row r as a new vector.
func (m *Mat) Row(r int) *Vec {
	comps := make([]float64, m.n)
	for c := 0; c < m.n; c++ {
		comps[c] = m.At(r, c)
	}
	return NewVec(comps...)
}

// Copy returns an independent copy.
func (m *Mat) Copy() *Mat {
	cp := *m
	return &cp
}

// TypeID implements plua.Object.
func (m *Mat) TypeID() string {
	return "api.Mat" + strconv.Itoa(m.n)
}

// String formats the matrix row by row.
func (m *Mat) String() string {
	var b strings.Builder
	b.WriteString("{")
	for r := 0; r < m.n; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteString("{")
		for c := 0; c < m.n; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.FormatFloat(m.At(r, c), 'g', -1, 64))
		}
		b.WriteString("}")
	}
	b.WriteString("}")
	return b.String()
}

// element parses a vRC field name into 0-based row and column.
func (m *Mat) element(key string) (int, int, bool) {
	if len(key) != 3 || key[0] != 'v' {
		return 0, 0, false
	}
	r := int(key[1] - '1')
	c := int(key[2] - '1')
	if r < 0 || r >= m.n || c < 0 || c >= m.n {
		return 0, 0, false
	}
	return r, c, true
}

// checkIndex reads a 1-based row or column index.
func (m *Mat) checkIndex(L *lua.LState, n int) int {
	i := L.CheckInt(n)
	if i < 1 || i > m.n {
		L.ArgError(n, fmt.Sprintf("index must be between 1 and %d", m.n))
	}
	return i - 1
}

// Describe implements plua.Describer.
func (m *Mat) Describe() plua.TypeSpec {
	return plua.TypeSpec{
		Name: "Matrix" + strconv.Itoa(m.n),
		Methods: map[string]plua.Method{
			"copy": func(L *lua.LState, self plua.Object) int {
				return pushObject(L, self.(*Mat).Copy())
			},
			"getColumn": func(L *lua.LState, self plua.Object) int {
				mat := self.(*Mat)
				return pushObject(L, mat.Column(mat.checkIndex(L, 2)))
			},
			"getRow": func(L *lua.LState, self plua.Object) int {
				mat := self.(*Mat)
				return pushObject(L, mat.Row(mat.checkIndex(L, 2)))
			},
		},
		Get: func(L *lua.LState, self plua.Object, key string) (lua.LValue, bool) {
			mat := self.(*Mat)
			if r, c, ok := mat.element(key); ok {
				return lua.LNumber(mat.At(r, c)), true
			}
			if i, err := strconv.Atoi(key); err == nil && i >= 1 && i <= mat.n {
				v, err := bridgeOf(L).HostToGuest(mat.Column(i - 1))
				if err != nil {
					L.RaiseError("%s", err.Error())
				}
				return v, true
			}
			return lua.LNil, false
		},
		Set: func(L *lua.LState, self plua.Object, key string, value lua.LValue) bool {
			mat := self.(*Mat)
			r, c, ok := mat.element(key)
			if !ok {
				return false
			}
			mat.Set(r, c, float64(L.CheckNumber(3)))
			return true
		},
	}
}

// matN returns a constructor for n×n matrices: identity with no arguments,
// otherwise exactly n column vectors.
func matN(n int) lua.LGFunction {
	return func(L *lua.LState) int {
		given := 0
		for i := 1; i <= n; i++ {
			if L.Get(i) != lua.LNil {
				given++
			}
		}
		if given == 0 {
			return pushObject(L, Identity(n))
		}
		if given != n {
			L.RaiseError("Invalid arguments to mat%d(), needs 0 or %d arguments!", n, n)
			return 0
		}

		cols := make([]*Vec, n)
		for i := range cols {
			cols[i] = plua.CheckObject[*Vec](L, i+1)
		}
		mat, err := FromColumns(cols...)
		if err != nil {
			L.RaiseError("mat%d: %s", n, err.Error())
			return 0
		}
		return pushObject(L, mat)
	}
}

// scaleN returns a constructor for scale matrices. Missing factors are 1.
func scaleN(n int) lua.LGFunction {
	return func(L *lua.LState) int {
		mat := Identity(n)
		if n == 2 {
			mat.Set(0, 0, float64(L.OptNumber(1, 1)))
			mat.Set(1, 1, float64(L.OptNumber(2, 1)))
			return pushObject(L, mat)
		}
		x, y, z := optVec3(L, 1, 1, 1, 1)
		mat.Set(0, 0, x)
		mat.Set(1, 1, y)
		mat.Set(2, 2, z)
		return pushObject(L, mat)
	}
}

// luaTranslate4 builds a 4×4 translation matrix.
func luaTranslate4(L *lua.LState) int {
	x, y, z := optVec3(L, 1, 0, 0, 0)
	mat := Identity(4)
	mat.Set(0, 3, x)
	mat.Set(1, 3, y)
	mat.Set(2, 3, z)
	return pushObject(L, mat)
}

// Mul returns m·o. Both matrices must have the same size.
func (m *Mat) Mul(o *Mat) *Mat {
	out := &Mat{n: m.n}
	for r := 0; r < m.n; r++ {
		for c := 0; c < m.n; c++ {
			var sum float64
			for k := 0; k < m.n; k++ {
				sum += m.At(r, k) * o.At(k, c)
			}
			out.Set(r, c, sum)
		}
	}
	return out
}

// Rotation axes.
const (
	axisX = iota
	axisY
	axisZ
)

// AxisRotation returns the n×n matrix rotating by degrees about axis. A 2×2
// rotation is about Z.
func AxisRotation(n, axis int, degrees float64) *Mat {
	sin, cos := math.Sincos(degrees * math.Pi / 180)
	i, j := (axis+1)%3, (axis+2)%3
	mat := Identity(n)
	mat.Set(i, i, cos)
	mat.Set(i, j, -sin)
	mat.Set(j, i, sin)
	mat.Set(j, j, cos)
	return mat
}

// EulerRotation returns Rz·Ry·Rx for angles in degrees, so X is applied first.
func EulerRotation(n int, x, y, z float64) *Mat {
	return AxisRotation(n, axisZ, z).Mul(AxisRotation(n, axisY, y)).Mul(AxisRotation(n, axisX, x))
}

func luaRotation2(L *lua.LState) int {
	return pushObject(L, AxisRotation(2, axisZ, float64(L.CheckNumber(1))))
}

// rotationN accepts a Vector3 or three numbers of angles in degrees.
func rotationN(n int) lua.LGFunction {
	return func(L *lua.LState) int {
		x, y, z := optVec3(L, 1, 0, 0, 0)
		return pushObject(L, EulerRotation(n, x, y, z))
	}
}

func axisRotationN(n, axis int) lua.LGFunction {
	return func(L *lua.LState) int {
		return pushObject(L, AxisRotation(n, axis, float64(L.CheckNumber(1))))
	}
}

func matrixFuncs() map[string]lua.LGFunction {
	funcs := map[string]lua.LGFunction{
		"translate4": luaTranslate4,
		"rotation2":  luaRotation2,
	}
	for _, n := range []int{3, 4} {
		suffix := strconv.Itoa(n)
		funcs["rotation"+suffix] = rotationN(n)
		funcs["xRotation"+suffix] = axisRotationN(n, axisX)
		funcs["yRotation"+suffix] = axisRotationN(n, axisY)
		funcs["zRotation"+suffix] = axisRotationN(n, axisZ)
	}
	for n := MinMatSize; n <= MaxMatSize; n++ {
		suffix := strconv.Itoa(n)
		funcs["mat"+suffix] = matN(n)
		funcs["scale"+suffix] = scaleN(n)
	}
	return funcs
}

func matTypes() []plua.Describer {
	types := make([]plua.Describer, 0, MaxMatSize-MinMatSize+1)
	for n := MinMatSize; n <= MaxMatSize; n++ {
		types = append(types, &Mat{n: n})
	}
	return types
}
