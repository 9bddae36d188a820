package grid

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// FaceCount количество граней куба
const FaceCount = 6

// CellRef - идентификатор клетки (грань, строка, столбец)
type CellRef struct {
	Face int `json:"face"`
	Row  int `json:"row"`
	Col  int `json:"col"`
}

func (r CellRef) String() string {
	return fmt.Sprintf("(%d,%d,%d)", r.Face, r.Row, r.Col)
}

// Face - грань куба, спроецированная на сферу.
// Start - угол грани, ScanH и ScanV - направления обхода столбцов и строк.
type Face struct {
	Index  int
	Normal mgl64.Vec3
	Start  mgl64.Vec3
	ScanH  mgl64.Vec3
	ScanV  mgl64.Vec3

	axis int
	sign float64
}

// faceTable - канонический порядок граней: +Y, -X, -Y, +X, -Z, +Z.
// Start задан для единичного куба и масштабируется радиусом.
var faceTable = [FaceCount]struct {
	normal, start, scanH, scanV mgl64.Vec3
}{
	{mgl64.Vec3{0, 1, 0}, mgl64.Vec3{1, 1, 1}, mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{0, 0, -1}},
	{mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{-1, 1, -1}, mgl64.Vec3{0, 0, 1}, mgl64.Vec3{0, -1, 0}},
	{mgl64.Vec3{0, -1, 0}, mgl64.Vec3{1, -1, -1}, mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{0, 0, 1}},
	{mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 1, 1}, mgl64.Vec3{0, 0, -1}, mgl64.Vec3{0, -1, 0}},
	{mgl64.Vec3{0, 0, -1}, mgl64.Vec3{1, 1, -1}, mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{0, -1, 0}},
	{mgl64.Vec3{0, 0, 1}, mgl64.Vec3{-1, 1, 1}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, -1, 0}},
}

// Cell - клетка сетки. Центр неизменен после создания.
// Occupant - ID постройки, PitPair - пара прудов, чья зона включает клетку.
type Cell struct {
	Ref    CellRef
	Center mgl64.Vec3

	Occupant string
	PitPair  *PitPair

	checked [actionCount]bool
	valid   [actionCount]bool
}

// PitPair - неупорядоченная пара прудов. Хранится упорядоченно по ID.
type PitPair struct {
	A, B string
}

// NewPitPair нормализует порядок ID
func NewPitPair(a, b string) PitPair {
	if b < a {
		a, b = b, a
	}
	return PitPair{A: a, B: b}
}

// Contains проверяет, входит ли пруд в пару
func (p PitPair) Contains(id string) bool {
	return p.A == id || p.B == id
}

// Other возвращает второй пруд пары
func (p PitPair) Other(id string) string {
	if p.A == id {
		return p.B
	}
	return p.A
}

// Normal возвращает нормаль сферы в центре клетки
func (c *Cell) Normal() mgl64.Vec3 {
	return c.Center.Normalize()
}

// Empty сообщает, свободна ли клетка
func (c *Cell) Empty() bool {
	return c.Occupant == ""
}

// Checked возвращает флаг проверки клетки для действия
func (c *Cell) Checked(a ActionKind) bool {
	return c.checked[a]
}

// Valid возвращает флаг допустимости клетки для действия
func (c *Cell) Valid(a ActionKind) bool {
	return c.valid[a]
}

// MarkChecked выставляет checked и valid. Возвращает false, если клетка
// уже была проверена для этого действия - флаги при этом не меняются.
func (c *Cell) MarkChecked(a ActionKind, valid bool) bool {
	if c.checked[a] {
		return false
	}
	c.checked[a] = true
	c.valid[a] = valid
	return true
}

// SetValid меняет флаг допустимости без учета checked.
// Используется правилами игры и откатом при удалении построек.
func (c *Cell) SetValid(a ActionKind, valid bool) {
	c.valid[a] = valid
}

// SphericalGrid - сетка из шести граней куба, спроецированных на сферу
type SphericalGrid struct {
	radius     float64
	resolution int
	cellSize   float64
	boxRadius  float64

	faces [FaceCount]Face
	cells []Cell
}

// New строит сетку. Радиус и разрешение фиксируются при создании.
func New(radius float64, resolution int) (*SphericalGrid, error) {
	if !(radius > 0) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("некорректный радиус сферы: %v", radius)
	}
	if resolution <= 0 {
		return nil, fmt.Errorf("некорректное разрешение сетки: %d", resolution)
	}

	g := &SphericalGrid{
		radius:     radius,
		resolution: resolution,
		cellSize:   2 * radius / float64(resolution),
		boxRadius:  2 * math.Sqrt(2*radius*radius),
		cells:      make([]Cell, FaceCount*resolution*resolution),
	}

	for i, def := range faceTable {
		axis := 0
		for k := 0; k < 3; k++ {
			if def.normal[k] != 0 {
				axis = k
			}
		}
		g.faces[i] = Face{
			Index:  i,
			Normal: def.normal,
			Start:  def.start.Mul(radius),
			ScanH:  def.scanH,
			ScanV:  def.scanV,
			axis:   axis,
			sign:   def.normal[axis],
		}
	}

	for f := range g.faces {
		face := &g.faces[f]
		for row := 0; row < resolution; row++ {
			for col := 0; col < resolution; col++ {
				p := face.Start.
					Add(face.ScanV.Mul((float64(row) + 0.5) * g.cellSize)).
					Add(face.ScanH.Mul((float64(col) + 0.5) * g.cellSize))

				ref := CellRef{Face: f, Row: row, Col: col}
				cell := &g.cells[g.index(ref)]
				cell.Ref = ref
				cell.Center = p.Normalize().Mul(radius)
			}
		}
	}

	return g, nil
}

// Radius возвращает радиус сферы
func (g *SphericalGrid) Radius() float64 { return g.radius }

// Resolution возвращает количество клеток вдоль стороны грани
func (g *SphericalGrid) Resolution() int { return g.resolution }

// CellSize возвращает сторону клетки на поверхности куба
func (g *SphericalGrid) CellSize() float64 { return g.cellSize }

// Face возвращает описание грани
func (g *SphericalGrid) Face(i int) Face { return g.faces[i] }

// Contains проверяет, что тройка лежит внутри сетки
func (g *SphericalGrid) Contains(ref CellRef) bool {
	return ref.Face >= 0 && ref.Face < FaceCount &&
		ref.Row >= 0 && ref.Row < g.resolution &&
		ref.Col >= 0 && ref.Col < g.resolution
}

// Cell возвращает клетку по тройке или nil, если тройка вне сетки
func (g *SphericalGrid) Cell(ref CellRef) *Cell {
	if !g.Contains(ref) {
		return nil
	}
	return &g.cells[g.index(ref)]
}

// Cells возвращает все клетки в порядке арены
func (g *SphericalGrid) Cells() []*Cell {
	result := make([]*Cell, len(g.cells))
	for i := range g.cells {
		result[i] = &g.cells[i]
	}
	return result
}

// Len возвращает общее количество клеток
func (g *SphericalGrid) Len() int { return len(g.cells) }

func (g *SphericalGrid) index(ref CellRef) int {
	return ref.Face*g.resolution*g.resolution + ref.Row*g.resolution + ref.Col
}
