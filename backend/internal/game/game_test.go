package game

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x-garden/backend/internal/core/domain/grid"
	"x-garden/backend/internal/core/domain/service"
	"x-garden/backend/internal/core/port/out/render"
)

// MockBroadcaster для тестирования
type MockBroadcaster struct {
	mu    sync.Mutex
	Hints [][]render.CellHint
}

func (mb *MockBroadcaster) BroadcastHints(hints []render.CellHint) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.Hints = append(mb.Hints, hints)
	return nil
}

func (mb *MockBroadcaster) count() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	n := 0
	for _, batch := range mb.Hints {
		n += len(batch)
	}
	return n
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "[TEST] ", log.LstdFlags)
}

func newTestWorld(t *testing.T, sink render.HintSink) *service.WorldService {
	t.Helper()
	g, err := grid.New(30, 12)
	require.NoError(t, err)
	return service.NewWorldService(g, service.Options{Sink: sink, Logger: testLogger()})
}

func TestBuildSystem_ExecutesOnTick(t *testing.T) {
	world := newTestWorld(t, nil)
	bs := NewBuildSystem(world, 8, 4, testLogger())

	ref := grid.CellRef{Face: 0, Row: 6, Col: 6}
	done := make(chan *BuildResponse, 1)
	go func() {
		st, err := bs.BuildAt(context.Background(), ref, grid.ActionWater)
		done <- &BuildResponse{Structure: st, Error: err}
	}()

	// Без тика запрос не выполняется
	require.Eventually(t, func() bool { return bs.QueueLength() == 1 }, time.Second, time.Millisecond)
	view, err := world.CellAt(ref)
	require.NoError(t, err)
	assert.Empty(t, view.Occupant)

	require.NoError(t, bs.Update(time.Millisecond))

	resp := <-done
	require.NoError(t, resp.Error)
	assert.Equal(t, ref, resp.Structure.Cell)
	assert.EqualValues(t, 1, bs.GetStats()["processed"])
}

func TestBuildSystem_RejectionPropagates(t *testing.T) {
	world := newTestWorld(t, nil)
	bs := NewBuildSystem(world, 8, 4, testLogger())

	ticker := NewGameTicker(200, testLogger())
	ticker.RegisterSystem(bs)
	require.NoError(t, ticker.Start())
	defer ticker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ref := grid.CellRef{Face: 1, Row: 2, Col: 3}
	_, err := bs.BuildAt(ctx, ref, grid.ActionWater)
	require.NoError(t, err)

	_, err = bs.BuildAt(ctx, ref, grid.ActionWater)
	assert.ErrorIs(t, err, service.ErrOccupiedCell)

	removed, err := bs.RemoveAt(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, ref, removed.Cell)

	assert.EqualValues(t, 1, bs.GetStats()["rejected"])
}

func TestBuildSystem_CancelledWhileQueued(t *testing.T) {
	world := newTestWorld(t, nil)
	bs := NewBuildSystem(world, 8, 4, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := bs.BuildAt(ctx, grid.CellRef{Face: 2, Row: 2, Col: 2}, grid.ActionWater)
		errCh <- err
	}()

	require.Eventually(t, func() bool { return bs.QueueLength() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	// Отмененный запрос не меняет мир
	require.NoError(t, bs.Update(time.Millisecond))
	assert.Empty(t, world.Structures())
}

func TestBuildSystem_MaxPerTick(t *testing.T) {
	world := newTestWorld(t, nil)
	bs := NewBuildSystem(world, 16, 2, testLogger())

	var wg sync.WaitGroup
	for face := 0; face < grid.FaceCount; face++ {
		wg.Add(1)
		go func(face int) {
			defer wg.Done()
			_, _ = bs.BuildAt(context.Background(), grid.CellRef{Face: face, Row: 6, Col: 6}, grid.ActionWater)
		}(face)
	}
	require.Eventually(t, func() bool { return bs.QueueLength() == 6 }, time.Second, time.Millisecond)

	require.NoError(t, bs.Update(time.Millisecond))
	assert.Equal(t, 4, bs.QueueLength())

	for bs.QueueLength() > 0 {
		require.NoError(t, bs.Update(time.Millisecond))
	}
	wg.Wait()
	assert.Len(t, world.Structures(), 6)
}

func TestNetworkSyncSystem_FlushesHints(t *testing.T) {
	buffer := NewHintBuffer(0)
	world := newTestWorld(t, buffer)
	bs := NewBuildSystem(world, 8, 4, testLogger())
	nss := NewNetworkSyncSystem(buffer, testLogger())
	broadcaster := &MockBroadcaster{}
	nss.SetBroadcaster(broadcaster)

	ticker := NewGameTicker(200, testLogger())
	ticker.RegisterSystem(nss)
	ticker.RegisterSystem(bs)
	require.NoError(t, ticker.Start())
	defer ticker.Stop()

	_, err := bs.BuildAt(context.Background(), grid.CellRef{Face: 0, Row: 6, Col: 6}, grid.ActionWater)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return broadcaster.count() > 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHintBuffer_Limit(t *testing.T) {
	buffer := NewHintBuffer(3)
	buffer.PublishHints(make([]render.CellHint, 2))
	buffer.PublishHints(make([]render.CellHint, 2))

	assert.Len(t, buffer.Drain(), 3)
	assert.EqualValues(t, 1, buffer.Dropped())
	assert.Empty(t, buffer.Drain())
}

func TestGameTicker_SystemOrderAndStats(t *testing.T) {
	ticker := NewGameTicker(0, nil)
	world := newTestWorld(t, nil)
	bs := NewBuildSystem(world, 0, 0, nil)
	metrics := NewGameMetricsSystem(ticker, world, bs, nil, testLogger())

	ticker.RegisterSystem(metrics)
	ticker.RegisterSystem(bs)

	require.Len(t, ticker.systems, 2)
	assert.Equal(t, "BuildSystem", ticker.systems[0].GetName())
	assert.Equal(t, "GameMetricsSystem", ticker.systems[1].GetName())

	stats := ticker.GetStats()
	assert.Equal(t, 20, stats["target_tps"])
	assert.Equal(t, 2, stats["systems_count"])
	assert.Equal(t, false, stats["is_running"])
}

type panicSystem struct{}

func (panicSystem) Update(time.Duration) error { panic("сломалось") }
func (panicSystem) GetName() string            { return "PanicSystem" }
func (panicSystem) GetPriority() int           { return 1 }

func TestGameTicker_RestartAfterStop(t *testing.T) {
	ticker := NewGameTicker(200, testLogger())

	require.NoError(t, ticker.Start())
	require.Eventually(t, func() bool { return ticker.GetTickCount() > 0 }, 2*time.Second, 5*time.Millisecond)
	ticker.Stop()
	ticker.Stop()

	stopped := ticker.GetTickCount()
	require.NoError(t, ticker.Start())
	defer ticker.Stop()

	assert.Eventually(t, func() bool { return ticker.GetTickCount() > stopped }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, true, ticker.GetStats()["is_running"])
}

func TestGameTicker_PanicCountedAsError(t *testing.T) {
	ticker := NewGameTicker(20, testLogger())
	ticker.RegisterSystem(panicSystem{})

	ticker.runSystem(panicSystem{}, time.Millisecond)
	ticker.runSystem(panicSystem{}, time.Millisecond)

	stats := ticker.GetSystemsStats()["PanicSystem"]
	assert.EqualValues(t, 2, stats.Runs)
	assert.EqualValues(t, 2, stats.Errors)
}
