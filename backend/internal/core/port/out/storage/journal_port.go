package storage

import (
	"context"
	"time"
)

// Операции журнала
const (
	OpBuild  = "build"
	OpRemove = "remove"
)

// Event - запись журнала построек
type Event struct {
	Op     string    `json:"op"`
	Action string    `json:"action,omitempty"`
	Face   int       `json:"face"`
	Row    int       `json:"row"`
	Col    int       `json:"col"`
	At     time.Time `json:"at"`
}

// BuildJournal определяет интерфейс хранилища принятых построек и удалений
type BuildJournal interface {
	// Append дописывает событие в конец журнала
	Append(ctx context.Context, ev Event) error

	// Load читает все события в порядке записи
	Load(ctx context.Context) ([]Event, error)

	// Close закрывает хранилище
	Close() error
}
