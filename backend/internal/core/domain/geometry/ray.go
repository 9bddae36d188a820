package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Ray - луч с началом и направлением. Нормализация направления лежит на вызывающей стороне.
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
}

// NewRay создает луч и нормализует направление
func NewRay(origin, direction mgl64.Vec3) (Ray, bool) {
	length := direction.Len()
	if length == 0 || math.IsNaN(length) {
		return Ray{}, false
	}
	return Ray{Origin: origin, Direction: direction.Mul(1 / length)}, true
}

// At возвращает точку луча на расстоянии t от начала
func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// Hit - параметры пересечения луча со сферой
type Hit struct {
	Near float64
	Far  float64
}

// IntersectSphere находит пересечение луча со сферой.
// Если начало луча внутри сферы, Near - первая точка не раньше начала луча,
// а Far - второй корень (он лежит позади начала).
// Возвращает false, если луч промахивается или сфера целиком позади.
func IntersectSphere(ray Ray, center mgl64.Vec3, radius float64) (Hit, bool) {
	oc := ray.Origin.Sub(center)
	b := oc.Dot(ray.Direction)
	c := oc.Dot(oc) - radius*radius
	h := b*b - c
	if h < 0 {
		return Hit{}, false
	}
	h = math.Sqrt(h)
	t1 := -b - h
	t2 := -b + h

	if t1 < 0 {
		if t2 < 0 {
			// Сфера позади луча
			return Hit{}, false
		}
		return Hit{Near: t2, Far: t1}, true
	}
	return Hit{Near: t1, Far: t2}, true
}
