package sqlitestore

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x-garden/backend/internal/core/port/out/storage"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "world.db")
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	events := []storage.Event{
		{Op: storage.OpBuild, Action: "water", Face: 0, Row: 6, Col: 4, At: at},
		{Op: storage.OpBuild, Action: "tree", Face: 0, Row: 7, Col: 4, At: at.Add(time.Second)},
		{Op: storage.OpRemove, Face: 0, Row: 7, Col: 4, At: at.Add(2 * time.Second)},
	}

	s := openTestStore(t, path)
	for _, ev := range events {
		require.NoError(t, s.Append(ctx, ev))
	}
	require.NoError(t, s.Close())

	// Повторное открытие не применяет миграции заново и видит данные
	s = openTestStore(t, path)
	defer s.Close()

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(events, loaded); diff != "" {
		t.Errorf("события отличаются:\n%s", diff)
	}

	n, err := s.CountAt(ctx, 0, 7, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_EmptyAndZeroTime(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "sub", "empty.db"))
	defer s.Close()

	events, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)

	require.NoError(t, s.Append(ctx, storage.Event{Op: storage.OpBuild, Action: "bush", Face: 3}))
	events, err = s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].At.IsZero())
}
