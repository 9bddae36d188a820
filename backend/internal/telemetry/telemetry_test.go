package telemetry

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x-garden/backend/internal/core/domain/grid"
	"x-garden/backend/internal/core/domain/service"
)

func TestTelemetryManager_Summary(t *testing.T) {
	tm := NewTelemetryManager()
	tm.Configure(true, time.Hour, log.New(io.Discard, "", 0))

	for i := 1; i <= 20; i++ {
		tm.RecordBuild(service.BuildReport{
			Op:       "build",
			Action:   grid.ActionWater,
			Cell:     grid.CellRef{Face: 0, Row: i % 12, Col: 0},
			Accepted: true,
			Duration: time.Duration(i) * time.Millisecond,
			Marked:   10,
		})
	}
	tm.RecordBuild(service.BuildReport{
		Op:     "build",
		Action: grid.ActionTree,
		Reason: errors.New("клетка занята"),
	})

	s := tm.Summary()
	assert.Equal(t, 21, s.Entries)
	assert.Equal(t, 20, s.Accepted)
	assert.Equal(t, 1, s.Rejected)
	assert.Equal(t, 20, s.Counters["build_water"])
	assert.Equal(t, 1, s.Counters["build_tree_rejected"])
	assert.Equal(t, 20*time.Millisecond, s.MaxDuration)
	assert.Greater(t, s.P95Duration, s.MeanDuration)
	assert.InDelta(t, 200.0/21.0, s.MeanMarked, 1e-9)
}

func TestTelemetryManager_RingBuffer(t *testing.T) {
	tm := NewTelemetryManager()
	for i := 0; i < tm.maxEntries+50; i++ {
		tm.RecordBuild(service.BuildReport{Op: "remove", Accepted: true})
	}
	assert.Equal(t, tm.maxEntries, tm.Summary().Entries)
}

func TestTelemetryManager_DisabledAndJSON(t *testing.T) {
	tm := NewTelemetryManager()
	tm.Configure(false, 0, log.New(io.Discard, "", 0))
	tm.RecordBuild(service.BuildReport{Op: "build", Accepted: true})
	assert.Equal(t, 0, tm.Summary().Entries)

	tm.SetEnabled(true)
	tm.RecordBuild(service.BuildReport{Op: "build", Action: grid.ActionBush, Accepted: true})

	raw, err := tm.GetTelemetryJSON()
	require.NoError(t, err)
	var entries []TelemetryData
	require.NoError(t, json.Unmarshal([]byte(raw), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "bush", entries[0].Action)

	tm.Clear()
	assert.Equal(t, 0, tm.Summary().Entries)
}
