package grid

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x-garden/backend/internal/core/domain/geometry"
)

func newTestGrid(t *testing.T) *SphericalGrid {
	t.Helper()
	g, err := New(30, 12)
	require.NoError(t, err)
	return g
}

func TestNew_InvalidParams(t *testing.T) {
	_, err := New(0, 12)
	assert.Error(t, err)
	_, err = New(30, 0)
	assert.Error(t, err)
	_, err = New(math.NaN(), 4)
	assert.Error(t, err)
}

func TestNew_CellsOnSphere(t *testing.T) {
	g := newTestGrid(t)
	require.Equal(t, 6*12*12, g.Len())

	for _, c := range g.Cells() {
		assert.InDelta(t, 30, c.Center.Len(), 1e-9, "центр клетки %v должен лежать на сфере", c.Ref)
		assert.Equal(t, c, g.Cell(c.Ref), "арена должна индексироваться тройкой")
		assert.True(t, c.Empty())
	}
}

func TestNew_FaceCentersMatchNormals(t *testing.T) {
	g, err := New(10, 2)
	require.NoError(t, err)

	// При четном разрешении центр грани - общий угол четырех клеток
	for f := 0; f < FaceCount; f++ {
		face := g.Face(f)
		sum := mgl64.Vec3{}
		for row := 0; row < 2; row++ {
			for col := 0; col < 2; col++ {
				sum = sum.Add(g.Cell(CellRef{f, row, col}).Center)
			}
		}
		assert.InDelta(t, 1, sum.Normalize().Dot(face.Normal), 1e-9, "грань %d", f)
	}
}

func TestResolve_SelfResolution(t *testing.T) {
	for _, n := range []int{1, 3, 12, 17} {
		g, err := New(30, n)
		require.NoError(t, err)

		for _, c := range g.Cells() {
			ref, ok := g.Resolve(c.Center)
			require.True(t, ok)
			assert.Equal(t, c.Ref, ref, "n=%d: центр клетки должен разрешаться в саму клетку", n)
		}
	}
}

func TestResolve_Locality(t *testing.T) {
	g := newTestGrid(t)
	offsets := []mgl64.Vec3{{0.1, 0, 0}, {0, -0.1, 0}, {0, 0, 0.1}, {0.05, 0.05, -0.05}}

	for _, c := range g.Cells() {
		for _, off := range offsets {
			p, ok := geometry.ProjectOnSphere(c.Center.Add(off), g.Radius())
			require.True(t, ok)
			ref, ok := g.Resolve(p)
			require.True(t, ok)
			assert.Equal(t, c.Ref, ref, "малое смещение от центра %v не должно менять клетку", c.Ref)
		}
	}
}

func TestResolve_ScaleInvariant(t *testing.T) {
	g := newTestGrid(t)
	for _, c := range g.Cells()[:50] {
		near, _ := g.Resolve(c.Center.Mul(0.01))
		far, _ := g.Resolve(c.Center.Mul(1000))
		assert.Equal(t, c.Ref, near)
		assert.Equal(t, c.Ref, far)
	}
}

func TestResolve_FaceUVTable(t *testing.T) {
	const r = 30.0
	g := newTestGrid(t)
	cs := g.CellSize()

	// Точки на поверхности куба и ожидаемые (u, v) по таблице знаков граней
	cases := []struct {
		face  int
		point mgl64.Vec3
		u, v  float64
	}{
		{0, mgl64.Vec3{7, r, -11}, -7 + r, 11 + r},
		{1, mgl64.Vec3{-r, 4, 13}, 13 + r, -4 + r},
		{2, mgl64.Vec3{-9, -r, 2}, 9 + r, 2 + r},
		{3, mgl64.Vec3{r, -14, 4}, -4 + r, 14 + r},
		{4, mgl64.Vec3{21, 3, -r}, -21 + r, -3 + r},
		{5, mgl64.Vec3{-17, 8, r}, -17 + r, -8 + r},
	}

	for _, tc := range cases {
		ref, ok := g.Resolve(tc.point)
		require.True(t, ok)
		want := CellRef{
			Face: tc.face,
			Row:  int(math.Floor(tc.v / cs)),
			Col:  int(math.Floor(tc.u / cs)),
		}
		assert.Equal(t, want, ref, "точка %v", tc.point)
	}
}

func TestResolve_ClampAndSeamPriority(t *testing.T) {
	const r = 30.0
	g := newTestGrid(t)

	ref, ok := g.Resolve(mgl64.Vec3{r, r, r})
	require.True(t, ok)
	assert.Equal(t, CellRef{0, 0, 0}, ref, "угол куба принадлежит грани с меньшим индексом")

	ref, ok = g.Resolve(mgl64.Vec3{-r, r, -r})
	require.True(t, ok)
	assert.Equal(t, CellRef{0, 11, 11}, ref, "индексы на дальнем краю ограничиваются n-1")

	ref, ok = g.Resolve(mgl64.Vec3{r, r, 0})
	require.True(t, ok)
	assert.Equal(t, CellRef{0, 6, 0}, ref, "на шве +Y/+X побеждает грань 0")

	ref, ok = g.Resolve(mgl64.Vec3{0, 0, -1})
	require.True(t, ok)
	assert.Equal(t, 4, ref.Face)
}

func TestResolve_Degenerate(t *testing.T) {
	g := newTestGrid(t)
	_, ok := g.Resolve(mgl64.Vec3{})
	assert.False(t, ok)
	_, ok = g.Resolve(mgl64.Vec3{math.NaN(), 1, 0})
	assert.False(t, ok)
}

func TestRaycast(t *testing.T) {
	g := newTestGrid(t)
	target := g.Cell(CellRef{3, 5, 7})

	origin := target.Center.Mul(3)
	ray, ok := geometry.NewRay(origin, target.Center.Sub(origin))
	require.True(t, ok)

	ref, point, ok := g.Raycast(ray)
	require.True(t, ok)
	assert.Equal(t, target.Ref, ref)
	assert.InDelta(t, 30, point.Len(), 1e-9)

	miss := geometry.Ray{Origin: mgl64.Vec3{0, 100, 0}, Direction: mgl64.Vec3{1, 0, 0}}
	_, _, ok = g.Raycast(miss)
	assert.False(t, ok)
}

func TestCell_MarkCheckedOnce(t *testing.T) {
	g := newTestGrid(t)
	c := g.Cell(CellRef{1, 2, 3})

	assert.True(t, c.MarkChecked(ActionTree, false))
	assert.False(t, c.MarkChecked(ActionTree, true), "повторная проверка не должна менять флаги")
	assert.True(t, c.Checked(ActionTree))
	assert.False(t, c.Valid(ActionTree))
	assert.False(t, c.Checked(ActionFlower))
}

func TestContains(t *testing.T) {
	g := newTestGrid(t)
	assert.True(t, g.Contains(CellRef{5, 11, 11}))
	assert.False(t, g.Contains(CellRef{6, 0, 0}))
	assert.False(t, g.Contains(CellRef{0, 12, 0}))
	assert.False(t, g.Contains(CellRef{0, 0, -1}))
	assert.Nil(t, g.Cell(CellRef{-1, 0, 0}))
}

func TestParseActionKind(t *testing.T) {
	for _, a := range AllActions() {
		parsed, err := ParseActionKind(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}
	_, err := ParseActionKind("rock")
	assert.Error(t, err)
	assert.False(t, ActionKind(7).Valid())
}
