package ws

import (
	"time"

	"x-garden/backend/internal/core/domain/grid"
)

// Типы входящих сообщений
const (
	MessageTypeResolve    = "resolve"    // Точка -> клетка
	MessageTypeRaycast    = "raycast"    // Луч -> клетка и подсказка
	MessageTypeBuild      = "build"      // Постройка на клетке
	MessageTypeRemove     = "remove"     // Снос постройки
	MessageTypeCell       = "cell"       // Снимок клетки
	MessageTypeCandidates = "candidates" // Клетки режима строительства
	MessageTypeStructures = "structures" // Все постройки
	MessageTypePing       = "ping"       // Пинг для измерения задержки
)

// Типы исходящих сообщений
const (
	MessageTypeWelcome          = "welcome"
	MessageTypeResolved         = "resolved"
	MessageTypeHover            = "hover"
	MessageTypeBuilt            = "built"
	MessageTypeRemoved          = "removed"
	MessageTypeCellView         = "cell_view"
	MessageTypeCandidateList    = "candidate_list"
	MessageTypeStructureList    = "structure_list"
	MessageTypeStructureAdded   = "structure_added"
	MessageTypeStructureRemoved = "structure_removed"
	MessageTypeHints            = "hints"
	MessageTypePong             = "pong"
	MessageTypeError            = "error"
)

// Коды ошибок в ответах клиенту
const (
	ErrorCodeBadRequest       = "bad_request"
	ErrorCodeUnknownType      = "unknown_type"
	ErrorCodeNoIntersection   = "no_intersection"
	ErrorCodeOccupied         = "occupied"
	ErrorCodeInvalidForAction = "invalid_for_action"
	ErrorCodeUnknownCell      = "unknown_cell"
	ErrorCodeEmptyCell        = "empty_cell"
	ErrorCodeUnknownAction    = "unknown_action"
	ErrorCodeBusy             = "busy"
	ErrorCodeInternal         = "internal"
)

// ClientMessage - входящее сообщение. Набор заполненных полей зависит от Type
// и проверяется JSON схемой до разбора.
type ClientMessage struct {
	Type       string        `json:"type"`
	ID         string        `json:"id,omitempty"`
	Point      *[3]float64   `json:"point,omitempty"`
	Origin     *[3]float64   `json:"origin,omitempty"`
	Direction  *[3]float64   `json:"direction,omitempty"`
	Action     string        `json:"action,omitempty"`
	Cell       *grid.CellRef `json:"cell,omitempty"`
	ClientTime float64       `json:"clientTime,omitempty"`
}

// ServerMessage - исходящее сообщение
type ServerMessage struct {
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	Cell       *grid.CellRef   `json:"cell,omitempty"`
	Hint       string          `json:"hint,omitempty"`
	Action     string          `json:"action,omitempty"`
	Structure  *StructureView  `json:"structure,omitempty"`
	Structures []StructureView `json:"structures,omitempty"`
	Cells      []grid.CellRef  `json:"cells,omitempty"`
	View       interface{}     `json:"view,omitempty"`
	Hints      []HintView      `json:"hints,omitempty"`
	Radius     float64         `json:"radius,omitempty"`
	Resolution int             `json:"resolution,omitempty"`
	Code       string          `json:"code,omitempty"`
	Message    string          `json:"message,omitempty"`
	ClientTime float64         `json:"clientTime,omitempty"`
	ServerTime int64           `json:"serverTime,omitempty"`
}

// GetCurrentServerTime возвращает текущее серверное время в миллисекундах
func GetCurrentServerTime() int64 {
	return time.Now().UnixMilli()
}

// NewPongMessage создает новое сообщение-ответ на пинг
func NewPongMessage(clientTime float64) ServerMessage {
	return ServerMessage{
		Type:       MessageTypePong,
		ClientTime: clientTime,
		ServerTime: GetCurrentServerTime(),
	}
}

// NewErrorMessage создает сообщение об ошибке
func NewErrorMessage(id, code, message string) ServerMessage {
	return ServerMessage{
		Type:    MessageTypeError,
		ID:      id,
		Code:    code,
		Message: message,
	}
}
