package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// SafeWriter обеспечивает потокобезопасную запись в WebSocket
type SafeWriter struct {
	conn         *websocket.Conn
	mutex        sync.Mutex
	writeTimeout time.Duration
}

// NewSafeWriter создает новый экземпляр SafeWriter
func NewSafeWriter(conn *websocket.Conn, writeTimeout time.Duration) *SafeWriter {
	return &SafeWriter{
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

// WriteJSON потокобезопасно отправляет JSON данные через WebSocket
func (w *SafeWriter) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.writeTimeout > 0 {
		_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// WritePing отправляет ping кадр
func (w *SafeWriter) WritePing() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	deadline := time.Now().Add(w.writeTimeout)
	if w.writeTimeout <= 0 {
		deadline = time.Now().Add(10 * time.Second)
	}
	return w.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

// Close закрывает соединение WebSocket
func (w *SafeWriter) Close() error {
	return w.conn.Close()
}
