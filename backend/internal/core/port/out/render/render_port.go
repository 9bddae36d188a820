package render

import (
	"fmt"

	"x-garden/backend/internal/core/domain/grid"
)

// Hint - визуальное состояние клетки для рендерера
type Hint int

const (
	HintHidden Hint = iota
	HintValid
	HintInvalid
	HintOccupied
	HintSelected
)

var hintNames = [...]string{"hidden", "valid", "invalid", "occupied", "selected"}

func (h Hint) String() string {
	if h < 0 || int(h) >= len(hintNames) {
		return "unknown"
	}
	return hintNames[h]
}

// MarshalText кодирует подсказку именем
func (h Hint) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText разбирает подсказку по имени
func (h *Hint) UnmarshalText(text []byte) error {
	for i, name := range hintNames {
		if name == string(text) {
			*h = Hint(i)
			return nil
		}
	}
	return fmt.Errorf("неизвестная подсказка %q", text)
}

// CellHint - обновление подсказки одной клетки для одного действия
type CellHint struct {
	Cell   grid.CellRef
	Action grid.ActionKind
	Hint   Hint
}

// HintSink определяет интерфейс рендерера, принимающего подсказки клеток
type HintSink interface {
	// PublishHints отправляет пакет обновлений подсказок
	PublishHints(hints []CellHint)
}

// HintFor вычисляет подсказку клетки для действия по ее флагам и занятости
func HintFor(cell *grid.Cell, action grid.ActionKind) Hint {
	switch {
	case !cell.Empty():
		return HintOccupied
	case cell.Valid(action):
		return HintValid
	case cell.Checked(action):
		return HintInvalid
	}
	return HintHidden
}

// CellView - снимок клетки для внешних потребителей
type CellView struct {
	Ref          grid.CellRef    `json:"ref"`
	Center       [3]float64      `json:"center"`
	Normal       [3]float64      `json:"normal"`
	Occupant     string          `json:"occupant,omitempty"`
	OccupantKind string          `json:"occupantKind,omitempty"`
	PitPair      []string        `json:"pitPair,omitempty"`
	Checked      map[string]bool `json:"checked"`
	Valid        map[string]bool `json:"valid"`
	Hints        map[string]Hint `json:"hints"`
}

// NewCellView строит снимок клетки. Тип постройки передается отдельно,
// так как клетка хранит только ID.
func NewCellView(cell *grid.Cell, occupantKind string) CellView {
	view := CellView{
		Ref:          cell.Ref,
		Center:       cell.Center,
		Normal:       cell.Normal(),
		Occupant:     cell.Occupant,
		OccupantKind: occupantKind,
		Checked:      make(map[string]bool, grid.ActionCount),
		Valid:        make(map[string]bool, grid.ActionCount),
		Hints:        make(map[string]Hint, grid.ActionCount),
	}
	if cell.PitPair != nil {
		view.PitPair = []string{cell.PitPair.A, cell.PitPair.B}
	}
	for _, a := range grid.AllActions() {
		view.Checked[a.String()] = cell.Checked(a)
		view.Valid[a.String()] = cell.Valid(a)
		view.Hints[a.String()] = HintFor(cell, a)
	}
	return view
}

// NopSink отбрасывает все подсказки
type NopSink struct{}

func (NopSink) PublishHints([]CellHint) {}
