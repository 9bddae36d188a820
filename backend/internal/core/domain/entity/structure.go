package entity

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"x-garden/backend/internal/core/domain/grid"
)

// StructureKind представляет тип постройки
type StructureKind string

// Константы типов построек
const (
	KindPit    StructureKind = "pit"
	KindTree   StructureKind = "tree"
	KindFlower StructureKind = "flower"
	KindBush   StructureKind = "bush"
)

// KindForAction возвращает тип постройки для строительного действия
func KindForAction(action grid.ActionKind) (StructureKind, error) {
	switch action {
	case grid.ActionWater:
		return KindPit, nil
	case grid.ActionTree:
		return KindTree, nil
	case grid.ActionFlower:
		return KindFlower, nil
	case grid.ActionBush:
		return KindBush, nil
	}
	return "", fmt.Errorf("нет постройки для действия %v", action)
}

// Action возвращает строительное действие, которым создается постройка
func (k StructureKind) Action() grid.ActionKind {
	switch k {
	case KindPit:
		return grid.ActionWater
	case KindTree:
		return grid.ActionTree
	case KindBush:
		return grid.ActionBush
	}
	return grid.ActionFlower
}

// Structure представляет постройку на клетке сетки
type Structure struct {
	ID        string
	Kind      StructureKind
	Cell      grid.CellRef
	Position  mgl64.Vec3
	CreatedAt time.Time

	// Adjacency только у прудов: ID соседнего пруда -> клетки зоны между ними
	Adjacency map[string][]grid.CellRef
}

// NewStructure создает новую постройку на клетке
func NewStructure(id string, kind StructureKind, cell *grid.Cell) *Structure {
	s := &Structure{
		ID:        id,
		Kind:      kind,
		Cell:      cell.Ref,
		Position:  cell.Center,
		CreatedAt: time.Now(),
	}
	if kind == KindPit {
		s.Adjacency = make(map[string][]grid.CellRef)
	}
	return s
}

// Link добавляет клетку в зону между этим прудом и соседним
func (s *Structure) Link(otherPitID string, ref grid.CellRef) {
	if s.Adjacency == nil {
		s.Adjacency = make(map[string][]grid.CellRef)
	}
	s.Adjacency[otherPitID] = append(s.Adjacency[otherPitID], ref)
}

// Unlink удаляет зону с соседним прудом и возвращает ее клетки
func (s *Structure) Unlink(otherPitID string) []grid.CellRef {
	cells := s.Adjacency[otherPitID]
	delete(s.Adjacency, otherPitID)
	return cells
}

// Clone возвращает копию постройки, безопасную для передачи наружу
func (s *Structure) Clone() *Structure {
	c := *s
	if s.Adjacency != nil {
		c.Adjacency = make(map[string][]grid.CellRef, len(s.Adjacency))
		for id, cells := range s.Adjacency {
			c.Adjacency[id] = append([]grid.CellRef(nil), cells...)
		}
	}
	return &c
}
