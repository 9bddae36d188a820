package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"

	"x-garden/backend/internal/core/domain/geometry"
	"x-garden/backend/internal/core/domain/grid"
	"x-garden/backend/internal/core/domain/service"
	"x-garden/backend/internal/core/port/in/worldmanagement"
	"x-garden/backend/internal/core/port/out/render"
	"x-garden/backend/internal/game"
)

const (
	maxMessageSize = 4096
	writeTimeout   = 5 * time.Second
	buildTimeout   = 10 * time.Second
)

// HandlerFunc обрабатывает одно входящее сообщение
type HandlerFunc func(conn *SafeWriter, msg *ClientMessage) error

// Options настраивает WSAdapter
type Options struct {
	// Параметры сферы, отправляемые в приветствии
	Radius     float64
	Resolution int

	// Интервал ping кадров, 0 - без пинга
	PingInterval time.Duration

	Logger *log.Logger
}

// WSAdapter адаптер для WebSocket соединений
type WSAdapter struct {
	upgrader     websocket.Upgrader
	handlers     map[string]HandlerFunc
	worldPort    worldmanagement.WorldManagementPort
	validator    *MessageValidator
	options      Options
	logger       *log.Logger
	clients      map[*SafeWriter]bool // Для хранения активных клиентов
	clientsMu    sync.Mutex           // Мьютекс для безопасного доступа к списку клиентов
	handlersOnce sync.Once
}

var _ game.HintBroadcaster = (*WSAdapter)(nil)

// NewWSAdapter создает новый экземпляр WSAdapter
func NewWSAdapter(worldPort worldmanagement.WorldManagementPort, opts Options) (*WSAdapter, error) {
	validator, err := NewMessageValidator()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &WSAdapter{
		worldPort: worldPort,
		validator: validator,
		options:   opts,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		handlers: make(map[string]HandlerFunc),
		clients:  make(map[*SafeWriter]bool),
	}, nil
}

// RegisterHandlers регистрирует обработчики сообщений
func (a *WSAdapter) RegisterHandlers() {
	a.handlers[MessageTypeResolve] = a.handleResolve
	a.handlers[MessageTypeRaycast] = a.handleRaycast
	a.handlers[MessageTypeBuild] = a.handleBuild
	a.handlers[MessageTypeRemove] = a.handleRemove
	a.handlers[MessageTypeCell] = a.handleCell
	a.handlers[MessageTypeCandidates] = a.handleCandidates
	a.handlers[MessageTypeStructures] = a.handleStructures
	a.handlers[MessageTypePing] = func(conn *SafeWriter, msg *ClientMessage) error {
		return conn.WriteJSON(NewPongMessage(msg.ClientTime))
	}
}

// HandleWS обрабатывает WebSocket соединения
func (a *WSAdapter) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Printf("[WSAdapter] Ошибка при установке WebSocket соединения: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	safeWriter := NewSafeWriter(conn, writeTimeout)
	a.handlersOnce.Do(a.RegisterHandlers)

	// Приветствие отправляем до регистрации клиента, чтобы рассылки шли после него
	if err := safeWriter.WriteJSON(a.welcomeMessage()); err != nil {
		a.logger.Printf("[WSAdapter] Ошибка отправки приветствия: %v", err)
		conn.Close()
		return
	}

	a.clientsMu.Lock()
	a.clients[safeWriter] = true
	total := len(a.clients)
	a.clientsMu.Unlock()
	a.logger.Printf("[WSAdapter] Клиент подключен: %s (всего %d)", r.RemoteAddr, total)

	stopPing := a.startPing(conn, safeWriter)

	defer func() {
		stopPing()
		a.clientsMu.Lock()
		delete(a.clients, safeWriter)
		a.clientsMu.Unlock()
		conn.Close()
		a.logger.Printf("[WSAdapter] Клиент отключен: %s", r.RemoteAddr)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				a.logger.Printf("[WSAdapter] Ошибка при чтении сообщения: %v", err)
			}
			return
		}

		msg, err := a.validator.Decode(data)
		if err != nil {
			a.reply(safeWriter, NewErrorMessage("", ErrorCodeBadRequest, err.Error()))
			continue
		}

		handler, ok := a.handlers[msg.Type]
		if !ok {
			a.reply(safeWriter, NewErrorMessage(msg.ID, ErrorCodeUnknownType, msg.Type))
			continue
		}

		if err := handler(safeWriter, msg); err != nil {
			a.logger.Printf("[WSAdapter] Ошибка обработки сообщения типа %s: %v", msg.Type, err)
			a.reply(safeWriter, NewErrorMessage(msg.ID, ErrorCode(err), err.Error()))
		}
	}
}

// startPing запускает периодический ping и продлевает срок чтения по pong
func (a *WSAdapter) startPing(conn *websocket.Conn, w *SafeWriter) func() {
	interval := a.options.PingInterval
	if interval <= 0 {
		return func() {}
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * interval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * interval))
	})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := w.WritePing(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

func (a *WSAdapter) welcomeMessage() ServerMessage {
	return ServerMessage{
		Type:       MessageTypeWelcome,
		Radius:     a.options.Radius,
		Resolution: a.options.Resolution,
		Structures: NewStructureViews(a.worldPort.Structures()),
		ServerTime: GetCurrentServerTime(),
	}
}

func (a *WSAdapter) reply(conn *SafeWriter, msg ServerMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		a.logger.Printf("[WSAdapter] Ошибка отправки ответа %s: %v", msg.Type, err)
	}
}

func (a *WSAdapter) handleResolve(conn *SafeWriter, msg *ClientMessage) error {
	ref, err := a.worldPort.ResolveCell(mgl64.Vec3(*msg.Point))
	if err != nil {
		return err
	}
	return conn.WriteJSON(ServerMessage{Type: MessageTypeResolved, ID: msg.ID, Cell: &ref})
}

func (a *WSAdapter) handleRaycast(conn *SafeWriter, msg *ClientMessage) error {
	action, err := parseAction(msg.Action)
	if err != nil {
		return err
	}
	ray, ok := geometry.NewRay(mgl64.Vec3(*msg.Origin), mgl64.Vec3(*msg.Direction))
	if !ok {
		return service.ErrNoIntersection
	}

	ref, hint, err := a.worldPort.Raycast(ray, action)
	if err != nil {
		return err
	}
	return conn.WriteJSON(ServerMessage{
		Type:   MessageTypeHover,
		ID:     msg.ID,
		Cell:   &ref,
		Action: action.String(),
		Hint:   hint.String(),
	})
}

func (a *WSAdapter) handleBuild(conn *SafeWriter, msg *ClientMessage) error {
	action, err := parseAction(msg.Action)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
	defer cancel()

	st, err := a.worldPort.BuildAt(ctx, *msg.Cell, action)
	if err != nil {
		return err
	}

	view := NewStructureView(st)
	if err := conn.WriteJSON(ServerMessage{Type: MessageTypeBuilt, ID: msg.ID, Structure: &view}); err != nil {
		return err
	}
	a.broadcast(ServerMessage{Type: MessageTypeStructureAdded, Structure: &view})
	return nil
}

func (a *WSAdapter) handleRemove(conn *SafeWriter, msg *ClientMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
	defer cancel()

	st, err := a.worldPort.RemoveAt(ctx, *msg.Cell)
	if err != nil {
		return err
	}

	view := NewStructureView(st)
	if err := conn.WriteJSON(ServerMessage{Type: MessageTypeRemoved, ID: msg.ID, Structure: &view}); err != nil {
		return err
	}
	a.broadcast(ServerMessage{Type: MessageTypeStructureRemoved, Structure: &view})
	return nil
}

func (a *WSAdapter) handleCell(conn *SafeWriter, msg *ClientMessage) error {
	view, err := a.worldPort.CellAt(*msg.Cell)
	if err != nil {
		return err
	}
	return conn.WriteJSON(ServerMessage{Type: MessageTypeCellView, ID: msg.ID, Cell: msg.Cell, View: view})
}

func (a *WSAdapter) handleCandidates(conn *SafeWriter, msg *ClientMessage) error {
	action, err := parseAction(msg.Action)
	if err != nil {
		return err
	}
	cells, err := a.worldPort.Candidates(action)
	if err != nil {
		return err
	}
	if cells == nil {
		cells = []grid.CellRef{}
	}
	return conn.WriteJSON(ServerMessage{
		Type:   MessageTypeCandidateList,
		ID:     msg.ID,
		Action: action.String(),
		Cells:  cells,
	})
}

func (a *WSAdapter) handleStructures(conn *SafeWriter, msg *ClientMessage) error {
	return conn.WriteJSON(ServerMessage{
		Type:       MessageTypeStructureList,
		ID:         msg.ID,
		Structures: NewStructureViews(a.worldPort.Structures()),
	})
}

// BroadcastHints отправляет пакет подсказок всем подключенным клиентам
func (a *WSAdapter) BroadcastHints(hints []render.CellHint) error {
	if len(hints) == 0 {
		return nil
	}
	return a.broadcast(ServerMessage{
		Type:       MessageTypeHints,
		Hints:      NewHintViews(hints),
		ServerTime: GetCurrentServerTime(),
	})
}

// ClientCount возвращает количество подключенных клиентов
func (a *WSAdapter) ClientCount() int {
	a.clientsMu.Lock()
	defer a.clientsMu.Unlock()
	return len(a.clients)
}

// broadcast отправляет сообщение всем клиентам, возвращает первую ошибку
func (a *WSAdapter) broadcast(msg ServerMessage) error {
	a.clientsMu.Lock()
	clients := make([]*SafeWriter, 0, len(a.clients))
	for client := range a.clients {
		clients = append(clients, client)
	}
	a.clientsMu.Unlock()

	var firstErr error
	for _, client := range clients {
		if err := client.WriteJSON(msg); err != nil {
			a.logger.Printf("[WSAdapter] Ошибка при отправке %s клиенту: %v", msg.Type, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func parseAction(name string) (grid.ActionKind, error) {
	action, err := grid.ParseActionKind(name)
	if err != nil {
		return 0, errors.Join(service.ErrUnknownAction, err)
	}
	return action, nil
}

// ErrorCode сопоставляет ошибку домена коду ответа клиенту
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, service.ErrNoIntersection):
		return ErrorCodeNoIntersection
	case errors.Is(err, service.ErrOccupiedCell):
		return ErrorCodeOccupied
	case errors.Is(err, service.ErrInvalidForAction):
		return ErrorCodeInvalidForAction
	case errors.Is(err, service.ErrUnknownCell):
		return ErrorCodeUnknownCell
	case errors.Is(err, service.ErrEmptyCell):
		return ErrorCodeEmptyCell
	case errors.Is(err, service.ErrUnknownAction):
		return ErrorCodeUnknownAction
	case errors.Is(err, game.ErrQueueFull), errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeBusy
	}
	return ErrorCodeInternal
}
