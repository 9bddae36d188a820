package sqlitestore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"x-garden/backend/internal/core/port/out/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store - журнал построек в SQLite
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

var _ storage.BuildJournal = (*Store)(nil)

// Open открывает базу, настраивает WAL и применяет миграции
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ошибка создания каталога базы: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Один писатель: запись идет с горутины игрового цикла
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrateUp(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Append дописывает событие
func (s *Store) Append(ctx context.Context, ev storage.Event) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO build_events (op, action, face, row_index, col_index, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.Op, ev.Action, ev.Face, ev.Row, ev.Col, at.UnixNano())
	if err != nil {
		return fmt.Errorf("ошибка записи события: %w", err)
	}
	return nil
}

// Load читает все события в порядке записи
func (s *Store) Load(ctx context.Context) ([]storage.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT op, action, face, row_index, col_index, created_at FROM build_events ORDER BY event_id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения событий: %w", err)
	}
	defer rows.Close()

	var events []storage.Event
	for rows.Next() {
		var ev storage.Event
		var at int64
		if err := rows.Scan(&ev.Op, &ev.Action, &ev.Face, &ev.Row, &ev.Col, &at); err != nil {
			return nil, err
		}
		ev.At = time.Unix(0, at).UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountAt возвращает количество событий для клетки
func (s *Store) CountAt(ctx context.Context, face, row, col int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM build_events WHERE face = ? AND row_index = ? AND col_index = ?`,
		face, row, col).Scan(&n)
	return n, err
}

// Close закрывает базу
func (s *Store) Close() error {
	return s.db.Close()
}

// migrateUp применяет все встроенные миграции
func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка чтения миграций: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("ошибка создания драйвера миграций: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("ошибка создания мигратора: %w", err)
	}
	// m не закрываем: это закрыло бы общее соединение с базой
	m.Log = &migrateLogger{logger: s.logger}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	s.logger.Printf("[SQLiteStore] Схема базы: версия %d (dirty=%v)", version, dirty)
	return nil
}

// migrateLogger реализует migrate.Logger
type migrateLogger struct {
	logger *log.Logger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
