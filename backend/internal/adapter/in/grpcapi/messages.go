package grpcapi

import (
	"x-garden/backend/internal/core/domain/entity"
	"x-garden/backend/internal/core/domain/grid"
	"x-garden/backend/internal/core/port/out/render"
)

// ResolveRequest - точка пространства
type ResolveRequest struct {
	Point [3]float64 `json:"point"`
}

// RaycastRequest - луч и действие для подсказки
type RaycastRequest struct {
	Origin    [3]float64 `json:"origin"`
	Direction [3]float64 `json:"direction"`
	Action    string     `json:"action"`
}

// CellRequest - адрес клетки
type CellRequest struct {
	Cell grid.CellRef `json:"cell"`
}

// BuildRequest - постройка на клетке
type BuildRequest struct {
	Cell   grid.CellRef `json:"cell"`
	Action string       `json:"action"`
}

// CandidatesRequest - действие режима строительства
type CandidatesRequest struct {
	Action string `json:"action"`
}

// Empty - пустой запрос
type Empty struct{}

// CellReply - найденная клетка
type CellReply struct {
	Cell grid.CellRef `json:"cell"`
	Hint string       `json:"hint,omitempty"`
}

// CellViewReply - снимок клетки
type CellViewReply struct {
	View render.CellView `json:"view"`
}

// CandidatesReply - клетки, на которых можно строить
type CandidatesReply struct {
	Action string         `json:"action"`
	Cells  []grid.CellRef `json:"cells"`
}

// Structure - постройка в ответах API
type Structure struct {
	ID        string                    `json:"id"`
	Kind      string                    `json:"kind"`
	Cell      grid.CellRef              `json:"cell"`
	Position  [3]float64                `json:"position"`
	Adjacency map[string][]grid.CellRef `json:"adjacency,omitempty"`
}

// StructureReply - одна постройка
type StructureReply struct {
	Structure Structure `json:"structure"`
}

// StructuresReply - все постройки мира
type StructuresReply struct {
	Structures []Structure `json:"structures"`
}

func newStructure(s *entity.Structure) Structure {
	return Structure{
		ID:        s.ID,
		Kind:      string(s.Kind),
		Cell:      s.Cell,
		Position:  s.Position,
		Adjacency: s.Adjacency,
	}
}
