package ws

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x-garden/backend/internal/core/domain/grid"
	"x-garden/backend/internal/core/domain/service"
	"x-garden/backend/internal/core/port/out/render"
)

type testEnv struct {
	adapter *WSAdapter
	server  *httptest.Server
	url     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	g, err := grid.New(30, 12)
	require.NoError(t, err)

	quiet := log.New(io.Discard, "", 0)
	svc := service.NewWorldService(g, service.Options{Logger: quiet})

	adapter, err := NewWSAdapter(svc, Options{Radius: 30, Resolution: 12, Logger: quiet})
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(adapter.HandleWS))
	t.Cleanup(server.Close)

	return &testEnv{
		adapter: adapter,
		server:  server,
		url:     "ws" + strings.TrimPrefix(server.URL, "http"),
	}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(e.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	welcome := readMessage(t, conn)
	require.Equal(t, MessageTypeWelcome, welcome.Type)
	return conn
}

// serverMessageIn - входящее в тест сообщение; View разбирается отдельно
type serverMessageIn struct {
	ServerMessage
	View render.CellView `json:"view"`
}

func readMessage(t *testing.T, conn *websocket.Conn) serverMessageIn {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg serverMessageIn
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func send(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func TestWSAdapter_Welcome(t *testing.T) {
	env := newTestEnv(t)

	conn, _, err := websocket.DefaultDialer.Dial(env.url, nil)
	require.NoError(t, err)
	defer conn.Close()

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeWelcome, msg.Type)
	assert.Equal(t, 30.0, msg.Radius)
	assert.Equal(t, 12, msg.Resolution)
	assert.Empty(t, msg.Structures)
}

func TestWSAdapter_ResolveAndPing(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	send(t, conn, map[string]interface{}{"type": "resolve", "id": "r1", "point": []float64{0, 30, 0}})
	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeResolved, msg.Type)
	assert.Equal(t, "r1", msg.ID)
	require.NotNil(t, msg.Cell)
	assert.Equal(t, 0, msg.Cell.Face)

	send(t, conn, map[string]interface{}{"type": "resolve", "id": "r2", "point": []float64{0, 0, 0}})
	msg = readMessage(t, conn)
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Equal(t, ErrorCodeNoIntersection, msg.Code)

	send(t, conn, map[string]interface{}{"type": "ping", "clientTime": 42.5})
	msg = readMessage(t, conn)
	assert.Equal(t, MessageTypePong, msg.Type)
	assert.Equal(t, 42.5, msg.ClientTime)
	assert.NotZero(t, msg.ServerTime)
}

func TestWSAdapter_SchemaRejectsBadMessages(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	bad := []string{
		`not json`,
		`{"id":"x"}`,
		`{"type":"teleport"}`,
		`{"type":"build","cell":{"face":0,"row":1,"col":1}}`,
		`{"type":"build","action":"tree","cell":{"face":9,"row":1,"col":1}}`,
		`{"type":"resolve","point":[1,2]}`,
		`{"type":"candidates","action":"rock"}`,
	}
	for _, raw := range bad {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
		msg := readMessage(t, conn)
		assert.Equal(t, MessageTypeError, msg.Type, raw)
		assert.Equal(t, ErrorCodeBadRequest, msg.Code, raw)
	}
}

func TestWSAdapter_BuildBroadcastsAndRejects(t *testing.T) {
	env := newTestEnv(t)
	builder := env.dial(t)
	watcher := env.dial(t)

	require.Eventually(t, func() bool { return env.adapter.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	cell := grid.CellRef{Face: 0, Row: 6, Col: 4}
	send(t, builder, map[string]interface{}{"type": "build", "id": "b1", "action": "water", "cell": cell})

	msg := readMessage(t, builder)
	require.Equal(t, MessageTypeBuilt, msg.Type, msg.Message)
	require.NotNil(t, msg.Structure)
	assert.Equal(t, "pit", msg.Structure.Kind)
	assert.Equal(t, cell, msg.Structure.Cell)

	// Рассылка приходит и самому строителю
	msg = readMessage(t, builder)
	assert.Equal(t, MessageTypeStructureAdded, msg.Type)

	msg = readMessage(t, watcher)
	require.Equal(t, MessageTypeStructureAdded, msg.Type)
	assert.Equal(t, cell, msg.Structure.Cell)

	send(t, builder, map[string]interface{}{"type": "build", "id": "b2", "action": "bush", "cell": cell})
	msg = readMessage(t, builder)
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Equal(t, "b2", msg.ID)
	assert.Equal(t, ErrorCodeOccupied, msg.Code)

	send(t, builder, map[string]interface{}{"type": "cell", "id": "c1", "cell": cell})
	msg = readMessage(t, builder)
	require.Equal(t, MessageTypeCellView, msg.Type)
	assert.Equal(t, "pit", msg.View.OccupantKind)
	assert.Equal(t, render.HintOccupied, msg.View.Hints["bush"])

	send(t, builder, map[string]interface{}{"type": "remove", "id": "d1", "cell": cell})
	msg = readMessage(t, builder)
	assert.Equal(t, MessageTypeRemoved, msg.Type)
	msg = readMessage(t, builder)
	assert.Equal(t, MessageTypeStructureRemoved, msg.Type)

	send(t, builder, map[string]interface{}{"type": "remove", "id": "d2", "cell": cell})
	msg = readMessage(t, builder)
	assert.Equal(t, ErrorCodeEmptyCell, msg.Code)
}

func TestWSAdapter_CandidatesAndRaycast(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	send(t, conn, map[string]interface{}{"type": "candidates", "id": "c", "action": "water"})
	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeCandidateList, msg.Type)
	assert.Len(t, msg.Cells, grid.FaceCount*12*12)

	send(t, conn, map[string]interface{}{"type": "candidates", "id": "c", "action": "tree"})
	msg = readMessage(t, conn)
	require.Equal(t, MessageTypeCandidateList, msg.Type)
	assert.Empty(t, msg.Cells)

	send(t, conn, map[string]interface{}{
		"type":      "raycast",
		"id":        "h",
		"origin":    []float64{0, 100, 0},
		"direction": []float64{0, -1, 0},
		"action":    "water",
	})
	msg = readMessage(t, conn)
	require.Equal(t, MessageTypeHover, msg.Type)
	assert.Equal(t, "selected", msg.Hint)
	assert.Equal(t, 0, msg.Cell.Face)

	send(t, conn, map[string]interface{}{
		"type":      "raycast",
		"origin":    []float64{0, 100, 0},
		"direction": []float64{0, 1, 0},
		"action":    "water",
	})
	msg = readMessage(t, conn)
	assert.Equal(t, ErrorCodeNoIntersection, msg.Code)
}

func TestWSAdapter_BroadcastHints(t *testing.T) {
	env := newTestEnv(t)
	a := env.dial(t)
	b := env.dial(t)
	require.Eventually(t, func() bool { return env.adapter.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, env.adapter.BroadcastHints(nil))

	hints := []render.CellHint{
		{Cell: grid.CellRef{Face: 2, Row: 3, Col: 4}, Action: grid.ActionTree, Hint: render.HintValid},
	}
	require.NoError(t, env.adapter.BroadcastHints(hints))

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		require.Equal(t, MessageTypeHints, msg.Type)
		require.Len(t, msg.Hints, 1)
		assert.Equal(t, HintView{Cell: grid.CellRef{Face: 2, Row: 3, Col: 4}, Action: "tree", Hint: "valid"}, msg.Hints[0])
	}
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, ErrorCodeOccupied, ErrorCode(service.ErrOccupiedCell))
	assert.Equal(t, ErrorCodeUnknownAction, ErrorCode(fmt.Errorf("обертка: %w", service.ErrUnknownAction)))
	assert.Equal(t, ErrorCodeInternal, ErrorCode(io.EOF))
}
