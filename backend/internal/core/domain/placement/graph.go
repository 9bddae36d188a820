package placement

import (
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"x-garden/backend/internal/core/domain/entity"
	"x-garden/backend/internal/core/domain/geometry"
	"x-garden/backend/internal/core/domain/grid"
	"x-garden/backend/internal/core/port/out/render"
)

// Predicate решает, допустима ли клетка для действия при первой проверке
type Predicate func(cell *grid.Cell) bool

// Empty - клетка допустима, если она свободна
func Empty(cell *grid.Cell) bool {
	return cell.Empty()
}

// Always - клетка допустима независимо от занятости.
// Занятость проверяется отдельно при постройке.
func Always(*grid.Cell) bool {
	return true
}

// Never - клетка всегда недопустима
func Never(*grid.Cell) bool {
	return false
}

// Graph распространяет ограничения размещения по клеткам сетки.
// Не потокобезопасен: вызывающая сторона сериализует обращения.
type Graph struct {
	grid   *grid.SphericalGrid
	world  *entity.World
	sink   render.HintSink
	logger *log.Logger
}

// NewGraph создает граф ограничений над сеткой и миром
func NewGraph(g *grid.SphericalGrid, world *entity.World, sink render.HintSink, logger *log.Logger) *Graph {
	if sink == nil {
		sink = render.NopSink{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Graph{
		grid:   g,
		world:  world,
		sink:   sink,
		logger: logger,
	}
}

// MarkProximity проверяет все клетки в квадрате 2R x 2R касательной плоскости
// вокруг центра клетки. Каждая еще не проверенная для действия клетка получает
// checked=true и valid=pred(cell). Возвращает только впервые проверенные клетки.
func (pg *Graph) MarkProximity(center *grid.Cell, action grid.ActionKind, worldRadius float64, pred Predicate) []grid.CellRef {
	return pg.sweep(center.Center, action, worldRadius, pred)
}

func (pg *Graph) sweep(center mgl64.Vec3, action grid.ActionKind, worldRadius float64, pred Predicate) []grid.CellRef {
	if worldRadius <= 0 {
		return nil
	}

	right, forward := geometry.BasisFromNormal(center.Normalize())
	start := center.Add(right.Mul(worldRadius)).Add(forward.Mul(worldRadius))
	step := pg.grid.CellSize() / 2
	steps := int(math.Round(worldRadius * 2 / step))

	var marked []grid.CellRef
	var hints []render.CellHint

	for i := 0; i <= steps; i++ {
		for j := 0; j <= steps; j++ {
			p := start.
				Sub(right.Mul(step * float64(j))).
				Sub(forward.Mul(step * float64(i)))

			onSphere, ok := geometry.ProjectOnSphere(p, pg.grid.Radius())
			if !ok {
				continue
			}
			cell, ok := pg.grid.ResolveCell(onSphere)
			if !ok {
				continue
			}
			if !cell.MarkChecked(action, pred(cell)) {
				continue
			}

			marked = append(marked, cell.Ref)
			hints = append(hints, render.CellHint{
				Cell:   cell.Ref,
				Action: action,
				Hint:   render.HintFor(cell, action),
			})
		}
	}

	pg.publish(hints)
	return marked
}

// MarkPitAdjacency связывает новый пруд с каждым прудом ближе maxAngleDegrees.
// Вокруг середины дуги между прудами проверяется зона для деревьев; впервые
// проверенные допустимые клетки попадают в списки смежности обоих прудов.
// Возвращает все клетки новых зон.
func (pg *Graph) MarkPitAdjacency(newPit *entity.Structure, maxAngleDegrees, sampleRadius float64) []grid.CellRef {
	var zoned []grid.CellRef

	for _, pit := range pg.world.Pits() {
		if pit.ID == newPit.ID {
			continue
		}

		angle := geometry.AngleBetween(pit.Position, newPit.Position)
		if angle >= maxAngleDegrees {
			continue
		}

		mid := pit.Position.Normalize().Add(newPit.Position.Normalize()).Mul(0.5)
		midpoint, ok := geometry.ProjectOnSphere(mid, pg.grid.Radius())
		if !ok {
			continue
		}

		pair := grid.NewPitPair(pit.ID, newPit.ID)
		for _, ref := range pg.sweep(midpoint, grid.ActionTree, sampleRadius, Always) {
			cell := pg.grid.Cell(ref)
			if !cell.Valid(grid.ActionTree) {
				continue
			}

			p := pair
			cell.PitPair = &p
			pit.Link(newPit.ID, ref)
			newPit.Link(pit.ID, ref)
			zoned = append(zoned, ref)
		}

		pg.logger.Printf("[PlacementGraph] Пруды %s и %s связаны: угол %.1f°, клеток в зоне %d",
			pit.ID, newPit.ID, angle, len(newPit.Adjacency[pit.ID]))
	}

	return zoned
}

// InvalidateSiblings делает недопустимыми для деревьев все клетки зоны,
// в которую попала посаженная клетка
func (pg *Graph) InvalidateSiblings(planted *grid.Cell) []grid.CellRef {
	cells := pg.zoneOf(planted)
	if cells == nil {
		return nil
	}

	hints := make([]render.CellHint, 0, len(cells))
	for _, ref := range cells {
		cell := pg.grid.Cell(ref)
		cell.SetValid(grid.ActionTree, false)
		hints = append(hints, render.CellHint{Cell: ref, Action: grid.ActionTree, Hint: render.HintFor(cell, grid.ActionTree)})
	}
	pg.publish(hints)
	return cells
}

// RestoreZone возвращает допустимость свободным клеткам зоны пары прудов.
// Вызывается после удаления последнего дерева зоны.
func (pg *Graph) RestoreZone(pair grid.PitPair) []grid.CellRef {
	pit := pg.world.GetStructure(pair.A)
	if pit == nil {
		return nil
	}
	cells := pit.Adjacency[pair.B]

	hints := make([]render.CellHint, 0, len(cells))
	for _, ref := range cells {
		cell := pg.grid.Cell(ref)
		cell.SetValid(grid.ActionTree, cell.Empty())
		hints = append(hints, render.CellHint{Cell: ref, Action: grid.ActionTree, Hint: render.HintFor(cell, grid.ActionTree)})
	}
	pg.publish(hints)
	return cells
}

// ZoneHasTree сообщает, стоит ли в зоне пары прудов хотя бы одно дерево
func (pg *Graph) ZoneHasTree(pair grid.PitPair) bool {
	pit := pg.world.GetStructure(pair.A)
	if pit == nil {
		return false
	}
	for _, ref := range pit.Adjacency[pair.B] {
		cell := pg.grid.Cell(ref)
		if cell.Empty() {
			continue
		}
		if s := pg.world.GetStructure(cell.Occupant); s != nil && s.Kind == entity.KindTree {
			return true
		}
	}
	return false
}

// DropPit удаляет все ребра смежности пруда. Клетки его зон теряют
// ссылку на пару и становятся недопустимыми для деревьев.
func (pg *Graph) DropPit(pit *entity.Structure) []grid.CellRef {
	var dropped []grid.CellRef
	var hints []render.CellHint

	for otherID := range pit.Adjacency {
		cells := pit.Unlink(otherID)
		if other := pg.world.GetStructure(otherID); other != nil {
			other.Unlink(pit.ID)
		}

		for _, ref := range cells {
			cell := pg.grid.Cell(ref)
			cell.PitPair = nil
			cell.SetValid(grid.ActionTree, false)
			hints = append(hints, render.CellHint{Cell: ref, Action: grid.ActionTree, Hint: render.HintFor(cell, grid.ActionTree)})
		}
		dropped = append(dropped, cells...)
	}

	pg.publish(hints)
	return dropped
}

func (pg *Graph) zoneOf(cell *grid.Cell) []grid.CellRef {
	if cell.PitPair == nil {
		return nil
	}
	pit := pg.world.GetStructure(cell.PitPair.A)
	if pit == nil {
		return nil
	}
	return pit.Adjacency[cell.PitPair.B]
}

func (pg *Graph) publish(hints []render.CellHint) {
	if len(hints) == 0 {
		return
	}
	pg.sink.PublishHints(hints)
}
