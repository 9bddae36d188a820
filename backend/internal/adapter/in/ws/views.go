package ws

import (
	"x-garden/backend/internal/core/domain/entity"
	"x-garden/backend/internal/core/domain/grid"
	"x-garden/backend/internal/core/port/out/render"
)

// StructureView - постройка в виде для клиента
type StructureView struct {
	ID        string                    `json:"id"`
	Kind      string                    `json:"kind"`
	Cell      grid.CellRef              `json:"cell"`
	Position  [3]float64                `json:"position"`
	CreatedAt int64                     `json:"createdAt"`
	Adjacency map[string][]grid.CellRef `json:"adjacency,omitempty"`
}

// HintView - подсказка клетки в виде для клиента
type HintView struct {
	Cell   grid.CellRef `json:"cell"`
	Action string       `json:"action"`
	Hint   string       `json:"hint"`
}

// NewStructureView преобразует постройку домена
func NewStructureView(s *entity.Structure) StructureView {
	view := StructureView{
		ID:        s.ID,
		Kind:      string(s.Kind),
		Cell:      s.Cell,
		Position:  s.Position,
		CreatedAt: s.CreatedAt.UnixMilli(),
	}
	if len(s.Adjacency) > 0 {
		view.Adjacency = make(map[string][]grid.CellRef, len(s.Adjacency))
		for id, refs := range s.Adjacency {
			view.Adjacency[id] = append([]grid.CellRef(nil), refs...)
		}
	}
	return view
}

// NewStructureViews преобразует список построек
func NewStructureViews(structures []*entity.Structure) []StructureView {
	views := make([]StructureView, 0, len(structures))
	for _, s := range structures {
		views = append(views, NewStructureView(s))
	}
	return views
}

// NewHintViews преобразует пакет подсказок
func NewHintViews(hints []render.CellHint) []HintView {
	views := make([]HintView, 0, len(hints))
	for _, h := range hints {
		views = append(views, HintView{
			Cell:   h.Cell,
			Action: h.Action.String(),
			Hint:   h.Hint.String(),
		})
	}
	return views
}
