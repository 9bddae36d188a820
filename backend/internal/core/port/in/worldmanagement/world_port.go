package worldmanagement

import (
	"context"

	"github.com/go-gl/mathgl/mgl64"

	"x-garden/backend/internal/core/domain/entity"
	"x-garden/backend/internal/core/domain/geometry"
	"x-garden/backend/internal/core/domain/grid"
	"x-garden/backend/internal/core/port/out/render"
)

// WorldManagementPort определяет интерфейс управления миром построек
type WorldManagementPort interface {
	// ResolveCell находит клетку для точки пространства
	ResolveCell(p mgl64.Vec3) (grid.CellRef, error)

	// Raycast находит клетку под лучом и ее подсказку для действия
	Raycast(ray geometry.Ray, action grid.ActionKind) (grid.CellRef, render.Hint, error)

	// CellAt возвращает снимок клетки
	CellAt(ref grid.CellRef) (render.CellView, error)

	// Candidates возвращает клетки, на которых сейчас можно строить
	Candidates(action grid.ActionKind) ([]grid.CellRef, error)

	// Structures возвращает все постройки мира
	Structures() []*entity.Structure

	// BuildAt ставит постройку на клетку
	BuildAt(ctx context.Context, ref grid.CellRef, action grid.ActionKind) (*entity.Structure, error)

	// RemoveAt удаляет постройку с клетки
	RemoveAt(ctx context.Context, ref grid.CellRef) (*entity.Structure, error)
}
