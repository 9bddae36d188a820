package grid

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"x-garden/backend/internal/core/domain/geometry"
)

// seamEpsilon допуск на выход точки пересечения за пределы грани
const seamEpsilon = 1e-4

// Resolve находит клетку, которой принадлежит точка пространства.
// Точка проецируется лучом из центра сферы на описанный куб; на швах
// побеждает грань с меньшим индексом. Возвращает false для нулевой или
// нечисловой точки.
func (g *SphericalGrid) Resolve(p mgl64.Vec3) (CellRef, bool) {
	dir, ok := geometry.ProjectOnSphere(p, 1)
	if !ok {
		return CellRef{}, false
	}
	lineEnd := dir.Mul(g.boxRadius)

	for f := range g.faces {
		face := &g.faces[f]
		if lineEnd[face.axis]*face.sign <= 0 {
			continue
		}

		t := g.radius / (lineEnd[face.axis] * face.sign)
		if t < 0 || t > 1 {
			continue
		}

		hit := lineEnd.Mul(t)
		if !g.insideBox(hit) {
			continue
		}

		rel := hit.Sub(face.Start)
		u := rel.Dot(face.ScanH)
		v := rel.Dot(face.ScanV)

		return CellRef{
			Face: f,
			Row:  g.clampIndex(v / g.cellSize),
			Col:  g.clampIndex(u / g.cellSize),
		}, true
	}

	// Недостижимо для конечной ненулевой точки
	return CellRef{}, false
}

// ResolveCell возвращает саму клетку для точки пространства
func (g *SphericalGrid) ResolveCell(p mgl64.Vec3) (*Cell, bool) {
	ref, ok := g.Resolve(p)
	if !ok {
		return nil, false
	}
	return g.Cell(ref), true
}

// Raycast пересекает луч со сферой сетки и возвращает клетку ближайшей
// точки пересечения вместе с самой точкой
func (g *SphericalGrid) Raycast(ray geometry.Ray) (CellRef, mgl64.Vec3, bool) {
	hit, ok := geometry.IntersectSphere(ray, geometry.Zero, g.radius)
	if !ok {
		return CellRef{}, geometry.Zero, false
	}
	point := ray.At(hit.Near)
	ref, ok := g.Resolve(point)
	if !ok {
		return CellRef{}, geometry.Zero, false
	}
	return ref, point, true
}

func (g *SphericalGrid) insideBox(p mgl64.Vec3) bool {
	limit := g.radius + seamEpsilon
	return math.Abs(p.X()) <= limit && math.Abs(p.Y()) <= limit && math.Abs(p.Z()) <= limit
}

func (g *SphericalGrid) clampIndex(x float64) int {
	i := int(math.Floor(x))
	if i < 0 {
		return 0
	}
	if i > g.resolution-1 {
		return g.resolution - 1
	}
	return i
}
