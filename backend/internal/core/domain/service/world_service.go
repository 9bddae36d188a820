package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"x-garden/backend/internal/core/domain/entity"
	"x-garden/backend/internal/core/domain/geometry"
	"x-garden/backend/internal/core/domain/grid"
	"x-garden/backend/internal/core/domain/placement"
	"x-garden/backend/internal/core/port/out/render"
	"x-garden/backend/internal/core/port/out/storage"
)

// Rules - радиусы и пороги игровых правил размещения
type Rules struct {
	FlowerRadius     float64 // Цветы вокруг дерева
	BushRadius       float64 // Кусты вокруг пруда
	WaterRadius      float64 // Запрет прудов рядом с прудом
	TreeSampleRadius float64 // Зона деревьев между прудами
	MaxPitAngle      float64 // Максимальный угол между соседними прудами, градусы
}

// DefaultRules возвращает правила оригинальной игры
func DefaultRules() Rules {
	return Rules{
		FlowerRadius:     10,
		BushRadius:       8,
		WaterRadius:      8,
		TreeSampleRadius: 2,
		MaxPitAngle:      30,
	}
}

// BuildReport - итог одной операции строительства или удаления
type BuildReport struct {
	Op       string
	Action   grid.ActionKind
	Cell     grid.CellRef
	Accepted bool
	Reason   error
	Duration time.Duration
	Marked   int
}

// Recorder принимает отчеты об операциях (телеметрия)
type Recorder interface {
	RecordBuild(report BuildReport)
}

// Options - зависимости сервиса мира. Все поля необязательны.
type Options struct {
	Rules       Rules
	Journal     storage.BuildJournal
	Sink        render.HintSink
	Recorder    Recorder
	Logger      *log.Logger
	IDGenerator func() string
}

// WorldService реализует бизнес-логику строительства на сферической сетке.
// Каждая операция строительства выполняется под одной блокировкой, поэтому
// чтения из других горутин никогда не видят половину проверки.
type WorldService struct {
	mu sync.RWMutex

	grid    *grid.SphericalGrid
	world   *entity.World
	graph   *placement.Graph
	rules   Rules
	journal storage.BuildJournal
	sink    render.HintSink
	rec     Recorder
	logger  *log.Logger
	newID   func() string

	replaying bool
}

// NewWorldService создает сервис мира над готовой сеткой
func NewWorldService(g *grid.SphericalGrid, opts Options) *WorldService {
	if opts.Rules == (Rules{}) {
		opts.Rules = DefaultRules()
	}
	if opts.Sink == nil {
		opts.Sink = render.NopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = uuid.NewString
	}

	world := entity.NewWorld()
	s := &WorldService{
		grid:    g,
		world:   world,
		graph:   placement.NewGraph(g, world, opts.Sink, opts.Logger),
		rules:   opts.Rules,
		journal: opts.Journal,
		sink:    opts.Sink,
		rec:     opts.Recorder,
		logger:  opts.Logger,
		newID:   opts.IDGenerator,
	}

	// Пруды допустимы на любой свободной клетке, пока их не запретит проверка
	for _, c := range g.Cells() {
		c.SetValid(grid.ActionWater, true)
	}

	return s
}

// Grid возвращает сетку сервиса
func (s *WorldService) Grid() *grid.SphericalGrid {
	return s.grid
}

// Rules возвращает действующие правила
func (s *WorldService) Rules() Rules {
	return s.rules
}

// ResolveCell находит клетку для точки пространства
func (s *WorldService) ResolveCell(p mgl64.Vec3) (grid.CellRef, error) {
	ref, ok := s.grid.Resolve(p)
	if !ok {
		return grid.CellRef{}, ErrNoIntersection
	}
	return ref, nil
}

// Raycast находит клетку под лучом и ее подсказку для действия:
// HintSelected, если строить можно, иначе HintInvalid
func (s *WorldService) Raycast(ray geometry.Ray, action grid.ActionKind) (grid.CellRef, render.Hint, error) {
	if !action.Valid() {
		return grid.CellRef{}, render.HintHidden, fmt.Errorf("%w: %v", ErrUnknownAction, action)
	}

	ref, _, ok := s.grid.Raycast(ray)
	if !ok {
		return grid.CellRef{}, render.HintHidden, ErrNoIntersection
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cell := s.grid.Cell(ref)
	if cell.Empty() && cell.Valid(action) {
		return ref, render.HintSelected, nil
	}
	return ref, render.HintInvalid, nil
}

// CellAt возвращает снимок клетки
func (s *WorldService) CellAt(ref grid.CellRef) (render.CellView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cell := s.grid.Cell(ref)
	if cell == nil {
		return render.CellView{}, fmt.Errorf("%w: %v", ErrUnknownCell, ref)
	}

	kind := ""
	if st := s.world.GetStructure(cell.Occupant); st != nil {
		kind = string(st.Kind)
	}
	return render.NewCellView(cell, kind), nil
}

// Candidates возвращает свободные клетки, допустимые для действия
func (s *WorldService) Candidates(action grid.ActionKind) ([]grid.CellRef, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnknownAction, action)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []grid.CellRef
	for _, c := range s.grid.Cells() {
		if c.Empty() && c.Valid(action) {
			result = append(result, c.Ref)
		}
	}
	return result, nil
}

// Structures возвращает копии всех построек в порядке создания
func (s *WorldService) Structures() []*entity.Structure {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.world.GetAllStructures()
	result := make([]*entity.Structure, 0, len(all))
	for _, st := range all {
		result = append(result, st.Clone())
	}
	return result
}

// BuildAt ставит постройку на клетку, если клетка свободна и допустима,
// и применяет правила размещения
func (s *WorldService) BuildAt(ctx context.Context, ref grid.CellRef, action grid.ActionKind) (*entity.Structure, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnknownAction, action)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	st, marked, err := s.build(ref, action, true)
	s.record(BuildReport{
		Op:       storage.OpBuild,
		Action:   action,
		Cell:     ref,
		Accepted: err == nil,
		Reason:   err,
		Duration: time.Since(start),
		Marked:   marked,
	})
	if err != nil {
		return nil, err
	}

	s.appendJournal(ctx, storage.Event{
		Op:     storage.OpBuild,
		Action: action.String(),
		Face:   ref.Face,
		Row:    ref.Row,
		Col:    ref.Col,
		At:     st.CreatedAt,
	})

	s.logger.Printf("[WorldService] Построен %s %s на клетке %v (проверено клеток: %d)",
		st.Kind, st.ID, ref, marked)
	return st.Clone(), nil
}

// RemoveAt удаляет постройку с клетки
func (s *WorldService) RemoveAt(ctx context.Context, ref grid.CellRef) (*entity.Structure, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	st, err := s.remove(ref)
	report := BuildReport{Op: storage.OpRemove, Cell: ref, Accepted: err == nil, Reason: err}
	if st != nil {
		report.Action = st.Kind.Action()
	}
	report.Duration = time.Since(start)
	s.record(report)
	if err != nil {
		return nil, err
	}

	s.appendJournal(ctx, storage.Event{
		Op:   storage.OpRemove,
		Face: ref.Face,
		Row:  ref.Row,
		Col:  ref.Col,
		At:   time.Now(),
	})

	s.logger.Printf("[WorldService] Удален %s %s с клетки %v", st.Kind, st.ID, ref)
	return st, nil
}

// Restore загружает журнал и воспроизводит его
func (s *WorldService) Restore(ctx context.Context) (int, error) {
	if s.journal == nil {
		return 0, nil
	}
	events, err := s.journal.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения журнала построек: %w", err)
	}
	return s.Replay(ctx, events)
}

// Replay воспроизводит события журнала без повторной записи.
// Допустимость клеток не проверяется, занятость проверяется.
func (s *WorldService) Replay(ctx context.Context, events []storage.Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.replaying = true
	defer func() { s.replaying = false }()

	applied := 0
	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		ref := grid.CellRef{Face: ev.Face, Row: ev.Row, Col: ev.Col}
		var err error
		switch ev.Op {
		case storage.OpBuild:
			var action grid.ActionKind
			action, err = grid.ParseActionKind(ev.Action)
			if err == nil {
				_, _, err = s.build(ref, action, false)
			}
		case storage.OpRemove:
			_, err = s.remove(ref)
		default:
			err = fmt.Errorf("неизвестная операция %q", ev.Op)
		}

		if err != nil {
			s.logger.Printf("[WorldService] Пропущено событие журнала #%d (%s %v): %v", i, ev.Op, ref, err)
			continue
		}
		applied++
	}

	s.logger.Printf("[WorldService] Воспроизведено событий журнала: %d из %d", applied, len(events))
	return applied, nil
}

// Stats возвращает статистику мира
func (s *WorldService) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := s.world.Count()
	return map[string]interface{}{
		"radius":     s.grid.Radius(),
		"resolution": s.grid.Resolution(),
		"cells":      s.grid.Len(),
		"pits":       counts[entity.KindPit],
		"trees":      counts[entity.KindTree],
		"flowers":    counts[entity.KindFlower],
		"bushes":     counts[entity.KindBush],
	}
}

func (s *WorldService) build(ref grid.CellRef, action grid.ActionKind, validate bool) (*entity.Structure, int, error) {
	cell := s.grid.Cell(ref)
	if cell == nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnknownCell, ref)
	}
	if !cell.Empty() {
		return nil, 0, fmt.Errorf("%w: %v", ErrOccupiedCell, ref)
	}
	if validate && !cell.Valid(action) {
		return nil, 0, fmt.Errorf("%w: %v для %s", ErrInvalidForAction, ref, action)
	}

	kind, err := entity.KindForAction(action)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnknownAction, err)
	}

	st := entity.NewStructure(s.newID(), kind, cell)
	cell.Occupant = st.ID
	s.world.AddStructure(st)

	marked := s.applyRules(st, cell)

	hints := make([]render.CellHint, 0, grid.ActionCount)
	for _, a := range grid.AllActions() {
		hints = append(hints, render.CellHint{Cell: ref, Action: a, Hint: render.HintOccupied})
	}
	s.sink.PublishHints(hints)

	return st, marked, nil
}

func (s *WorldService) applyRules(st *entity.Structure, cell *grid.Cell) int {
	marked := 0
	switch st.Kind {
	case entity.KindPit:
		marked += len(s.graph.MarkProximity(cell, grid.ActionBush, s.rules.BushRadius, placement.Empty))
		marked += len(s.graph.MarkProximity(cell, grid.ActionWater, s.rules.WaterRadius, placement.Never))
		marked += len(s.graph.MarkPitAdjacency(st, s.rules.MaxPitAngle, s.rules.TreeSampleRadius))
	case entity.KindTree:
		marked += len(s.graph.MarkProximity(cell, grid.ActionFlower, s.rules.FlowerRadius, placement.Empty))
		marked += len(s.graph.InvalidateSiblings(cell))
	}
	return marked
}

func (s *WorldService) remove(ref grid.CellRef) (*entity.Structure, error) {
	cell := s.grid.Cell(ref)
	if cell == nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownCell, ref)
	}
	if cell.Empty() {
		return nil, fmt.Errorf("%w: %v", ErrEmptyCell, ref)
	}

	st := s.world.GetStructure(cell.Occupant)
	cell.Occupant = ""
	if st == nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyCell, ref)
	}
	s.world.RemoveStructure(st.ID)

	switch st.Kind {
	case entity.KindTree:
		if cell.PitPair != nil && !s.graph.ZoneHasTree(*cell.PitPair) {
			s.graph.RestoreZone(*cell.PitPair)
		}
	case entity.KindPit:
		s.graph.DropPit(st)
	}

	hints := make([]render.CellHint, 0, grid.ActionCount)
	for _, a := range grid.AllActions() {
		hints = append(hints, render.CellHint{Cell: ref, Action: a, Hint: render.HintFor(cell, a)})
	}
	s.sink.PublishHints(hints)

	return st.Clone(), nil
}

func (s *WorldService) appendJournal(ctx context.Context, ev storage.Event) {
	if s.journal == nil || s.replaying {
		return
	}
	// Сохранение best-effort: ошибка журнала не отменяет постройку
	if err := s.journal.Append(ctx, ev); err != nil {
		s.logger.Printf("[WorldService] Ошибка записи в журнал построек: %v", err)
	}
}

func (s *WorldService) record(report BuildReport) {
	if s.rec != nil && !s.replaying {
		s.rec.RecordBuild(report)
	}
}
