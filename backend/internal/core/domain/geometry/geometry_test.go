package geometry

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func TestBasisFromNormal_Orthonormal(t *testing.T) {
	normals := []mgl64.Vec3{
		{1, 0, 0},
		{-1, 0, 0},
		{0, 0, 1},
		{0.3, 0.8, -0.2},
		{-0.5, -0.7, 0.1},
		{0.001, 0.99, 0.002},
	}

	for _, n := range normals {
		n = n.Normalize()
		right, forward := BasisFromNormal(n)

		assert.InDelta(t, 1.0, right.Len(), eps, "right должен быть единичным для %v", n)
		assert.InDelta(t, 1.0, forward.Len(), eps, "forward должен быть единичным для %v", n)
		assert.InDelta(t, 0.0, right.Dot(n), eps, "right должен лежать в касательной плоскости")
		assert.InDelta(t, 0.0, forward.Dot(n), eps, "forward должен лежать в касательной плоскости")
		assert.InDelta(t, 0.0, right.Dot(forward), eps, "базис должен быть ортогональным")
	}
}

func TestBasisFromNormal_ParallelToUp(t *testing.T) {
	right, forward := BasisFromNormal(mgl64.Vec3{0, 1, 0})
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, right)
	assert.Equal(t, mgl64.Vec3{0, 0, 1}, forward)

	right, forward = BasisFromNormal(mgl64.Vec3{0, -1, 0})
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, right)
	assert.Equal(t, mgl64.Vec3{0, 0, -1}, forward)
}

func TestIntersectSphere_FromOutside(t *testing.T) {
	for _, d := range []float64{31, 45.5, 100} {
		origin := mgl64.Vec3{d, 0, 0}
		ray, ok := NewRay(origin, origin.Mul(-1))
		require.True(t, ok)

		hit, ok := IntersectSphere(ray, Zero, 30)
		require.True(t, ok, "луч в центр должен попасть в сферу")
		assert.InDelta(t, d-30, hit.Near, eps)
		assert.InDelta(t, d+30, hit.Far, eps)
	}
}

func TestIntersectSphere_OffsetCenter(t *testing.T) {
	center := mgl64.Vec3{5, -3, 2}
	ray := Ray{Origin: center.Add(mgl64.Vec3{0, 0, 50}), Direction: mgl64.Vec3{0, 0, -1}}

	hit, ok := IntersectSphere(ray, center, 10)
	require.True(t, ok)
	assert.InDelta(t, 40, hit.Near, eps)
	assert.InDelta(t, 60, hit.Far, eps)
	assert.InDelta(t, 10, ray.At(hit.Near).Sub(center).Len(), eps)
}

func TestIntersectSphere_Miss(t *testing.T) {
	ray := Ray{Origin: mgl64.Vec3{0, 50, 0}, Direction: mgl64.Vec3{1, 0, 0}}
	_, ok := IntersectSphere(ray, Zero, 30)
	assert.False(t, ok)
}

func TestIntersectSphere_Behind(t *testing.T) {
	ray := Ray{Origin: mgl64.Vec3{0, 50, 0}, Direction: mgl64.Vec3{0, 1, 0}}
	_, ok := IntersectSphere(ray, Zero, 30)
	assert.False(t, ok, "сфера позади начала луча")
}

func TestIntersectSphere_Inside(t *testing.T) {
	ray := Ray{Origin: mgl64.Vec3{0, 10, 0}, Direction: mgl64.Vec3{0, 1, 0}}
	hit, ok := IntersectSphere(ray, Zero, 30)
	require.True(t, ok)
	assert.InDelta(t, 20, hit.Near, eps)
	assert.InDelta(t, -40, hit.Far, eps)
	assert.GreaterOrEqual(t, hit.Near, 0.0)
}

func TestNewRay_ZeroDirection(t *testing.T) {
	_, ok := NewRay(Zero, Zero)
	assert.False(t, ok)
}

func TestProjectOnSphere(t *testing.T) {
	p, ok := ProjectOnSphere(mgl64.Vec3{3, 4, 0}, 30)
	require.True(t, ok)
	assert.InDelta(t, 30, p.Len(), eps)
	assert.InDelta(t, 18, p.X(), eps)

	_, ok = ProjectOnSphere(Zero, 30)
	assert.False(t, ok)
}

func TestAngleBetween(t *testing.T) {
	assert.InDelta(t, 90, AngleBetween(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 2, 0}), 1e-9)
	assert.InDelta(t, 0, AngleBetween(mgl64.Vec3{1, 1, 0}, mgl64.Vec3{2, 2, 0}), 1e-6)
	assert.False(t, math.IsNaN(AngleBetween(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 0, 0})))
	assert.InDelta(t, 180, AngleBetween(mgl64.Vec3{0, 3, 3}, mgl64.Vec3{0, -1, -1}), 1e-6)
	assert.InDelta(t, 0, AngleBetween(mgl64.Vec3{30, 1e-9, 0}, mgl64.Vec3{30, 0, 0}), 1e-6)
}
