package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Базовые направления мира
var (
	Zero    = mgl64.Vec3{0, 0, 0}
	Right   = mgl64.Vec3{1, 0, 0}
	Up      = mgl64.Vec3{0, 1, 0}
	Forward = mgl64.Vec3{0, 0, 1}
)

// BasisFromNormal строит ортонормированный базис касательной плоскости
// для нормали поверхности сферы. Нормаль считается "верхом".
//
// Поворот базиса вокруг нормали произволен, но согласован: для соседних
// нормалей минимальность поворота не гарантируется.
func BasisFromNormal(normal mgl64.Vec3) (right, forward mgl64.Vec3) {
	dot := normal.Dot(Up)
	if math.Abs(dot) < 1 {
		right = Up.Cross(normal).Normalize()
		forward = right.Cross(normal).Normalize()
		return right, forward
	}

	// Нормаль параллельна оси Y - только точно в центре грани
	sign := 1.0
	if dot < 0 {
		sign = -1.0
	}
	return Right, mgl64.Vec3{0, 0, sign}
}

// ProjectOnSphere проецирует точку радиально на сферу с центром в начале координат
func ProjectOnSphere(p mgl64.Vec3, radius float64) (mgl64.Vec3, bool) {
	length := p.Len()
	if length == 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return Zero, false
	}
	return p.Mul(radius / length), true
}

// AngleBetween возвращает угол в градусах между двумя направлениями
func AngleBetween(a, b mgl64.Vec3) float64 {
	return mgl64.RadToDeg(math.Atan2(a.Cross(b).Len(), a.Dot(b)))
}
