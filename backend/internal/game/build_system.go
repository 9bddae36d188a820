package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"x-garden/backend/internal/core/domain/entity"
	"x-garden/backend/internal/core/domain/geometry"
	"x-garden/backend/internal/core/domain/grid"
	"x-garden/backend/internal/core/port/in/worldmanagement"
	"x-garden/backend/internal/core/port/out/render"
)

// ErrQueueFull - очередь построек переполнена
var ErrQueueFull = errors.New("очередь построек переполнена")

// Виды запросов очереди
const (
	opBuild  = "build"
	opRemove = "remove"
)

// BuildRequest представляет запрос на постройку или удаление
type BuildRequest struct {
	Op       string
	Ref      grid.CellRef
	Action   grid.ActionKind
	Ctx      context.Context
	Response chan *BuildResponse
}

// BuildResponse представляет ответ на запрос очереди
type BuildResponse struct {
	Structure *entity.Structure
	Error     error
}

// BuildSystem выполняет запросы на строительство на горутине игрового цикла.
// Чтения проходят напрямую в мир.
type BuildSystem struct {
	name         string
	priority     int
	world        worldmanagement.WorldManagementPort
	queue        chan *BuildRequest
	maxPerTick   int
	queueTimeout time.Duration
	logger       *log.Logger

	processed atomic.Uint64
	rejected  atomic.Uint64
}

var _ worldmanagement.WorldManagementPort = (*BuildSystem)(nil)

// NewBuildSystem создает систему строительства поверх мира
func NewBuildSystem(world worldmanagement.WorldManagementPort, queueSize, maxPerTick int, logger *log.Logger) *BuildSystem {
	if queueSize <= 0 {
		queueSize = 256
	}
	if maxPerTick <= 0 {
		maxPerTick = 32
	}
	if logger == nil {
		logger = log.Default()
	}
	return &BuildSystem{
		name:         "BuildSystem",
		priority:     5, // Высокий приоритет - меняем мир первым
		world:        world,
		queue:        make(chan *BuildRequest, queueSize),
		maxPerTick:   maxPerTick,
		queueTimeout: 5 * time.Second,
		logger:       logger,
	}
}

// Update выполняет накопленные запросы, не больше maxPerTick за тик
func (bs *BuildSystem) Update(deltaTime time.Duration) error {
	for i := 0; i < bs.maxPerTick; i++ {
		select {
		case req := <-bs.queue:
			bs.execute(req)
		default:
			return nil
		}
	}
	return nil
}

func (bs *BuildSystem) execute(req *BuildRequest) {
	resp := &BuildResponse{}

	if err := req.Ctx.Err(); err != nil {
		// Вызывающая сторона уже не ждет ответа
		resp.Error = err
	} else {
		switch req.Op {
		case opBuild:
			resp.Structure, resp.Error = bs.world.BuildAt(req.Ctx, req.Ref, req.Action)
		case opRemove:
			resp.Structure, resp.Error = bs.world.RemoveAt(req.Ctx, req.Ref)
		default:
			resp.Error = fmt.Errorf("неизвестная операция %q", req.Op)
		}
	}

	bs.processed.Add(1)
	if resp.Error != nil {
		bs.rejected.Add(1)
	}
	req.Response <- resp
}

// GetName возвращает имя системы
func (bs *BuildSystem) GetName() string {
	return bs.name
}

// GetPriority возвращает приоритет системы
func (bs *BuildSystem) GetPriority() int {
	return bs.priority
}

// QueueLength возвращает количество ожидающих запросов
func (bs *BuildSystem) QueueLength() int {
	return len(bs.queue)
}

// QueueCapacity возвращает размер очереди
func (bs *BuildSystem) QueueCapacity() int {
	return cap(bs.queue)
}

// GetStats возвращает счетчики системы
func (bs *BuildSystem) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"queue_length": len(bs.queue),
		"processed":    bs.processed.Load(),
		"rejected":     bs.rejected.Load(),
	}
}

// BuildAt ставит запрос в очередь и ждет его выполнения на тике
func (bs *BuildSystem) BuildAt(ctx context.Context, ref grid.CellRef, action grid.ActionKind) (*entity.Structure, error) {
	return bs.submit(ctx, &BuildRequest{Op: opBuild, Ref: ref, Action: action})
}

// RemoveAt ставит запрос на удаление в очередь и ждет его выполнения
func (bs *BuildSystem) RemoveAt(ctx context.Context, ref grid.CellRef) (*entity.Structure, error) {
	return bs.submit(ctx, &BuildRequest{Op: opRemove, Ref: ref})
}

func (bs *BuildSystem) submit(ctx context.Context, req *BuildRequest) (*entity.Structure, error) {
	req.Ctx = ctx
	req.Response = make(chan *BuildResponse, 1)

	// Отправляем запрос в очередь
	select {
	case bs.queue <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(bs.queueTimeout):
		bs.logger.Printf("[BuildSystem] Очередь построек переполнена (%d)", cap(bs.queue))
		return nil, ErrQueueFull
	}

	// Ждем ответа
	select {
	case resp := <-req.Response:
		return resp.Structure, resp.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ResolveCell находит клетку для точки пространства
func (bs *BuildSystem) ResolveCell(p mgl64.Vec3) (grid.CellRef, error) {
	return bs.world.ResolveCell(p)
}

// Raycast находит клетку под лучом и ее подсказку для действия
func (bs *BuildSystem) Raycast(ray geometry.Ray, action grid.ActionKind) (grid.CellRef, render.Hint, error) {
	return bs.world.Raycast(ray, action)
}

// CellAt возвращает снимок клетки
func (bs *BuildSystem) CellAt(ref grid.CellRef) (render.CellView, error) {
	return bs.world.CellAt(ref)
}

// Candidates возвращает клетки, на которых сейчас можно строить
func (bs *BuildSystem) Candidates(action grid.ActionKind) ([]grid.CellRef, error) {
	return bs.world.Candidates(action)
}

// Structures возвращает все постройки мира
func (bs *BuildSystem) Structures() []*entity.Structure {
	return bs.world.Structures()
}
