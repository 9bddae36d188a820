package journal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"x-garden/backend/internal/core/port/out/storage"
)

// Journal - журнал построек в виде JSONL, сжатого zstd.
// Каждое событие пишется отдельным завершенным zstd-фреймом, поэтому
// аварийное завершение может оборвать только последний фрейм.
type Journal struct {
	path   string
	logger *log.Logger
	enc    *zstd.Encoder

	mu sync.Mutex
	f  *os.File
}

var _ storage.BuildJournal = (*Journal)(nil)

// Open создает журнал. Файл открывается при первой записи.
func Open(path string, logger *log.Logger) (*Journal, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ошибка создания каталога журнала: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &Journal{path: path, logger: logger, enc: enc}, nil
}

// Append дописывает событие одним фреймом
func (j *Journal) Append(ctx context.Context, ev storage.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	frame := j.enc.EncodeAll(append(b, '\n'), nil)

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.f == nil {
		if err := j.openLocked(ctx); err != nil {
			return err
		}
	}
	_, err = j.f.Write(frame)
	return err
}

// Load читает все события. Битые строки и оборванный хвост пропускаются.
func (j *Journal) Load(ctx context.Context) ([]storage.Event, error) {
	events, tail, err := j.read(ctx)
	if err != nil {
		return events, err
	}
	if tail != nil {
		j.logger.Printf("[Journal] Журнал оборван после %d событий: %v", len(events), tail)
	}
	return events, nil
}

// Close закрывает файл журнала
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return nil
	}
	err := j.f.Close()
	j.f = nil
	return err
}

// read возвращает события и ошибку оборванного хвоста отдельно от фатальной ошибки
func (j *Journal) read(ctx context.Context) ([]storage.Event, error, error) {
	f, err := os.Open(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, nil, err
	}
	defer dec.Close()

	var events []storage.Event
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return events, nil, err
		}
		line++
		var ev storage.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			j.logger.Printf("[Journal] Пропущена битая строка %d: %v", line, err)
			continue
		}
		events = append(events, ev)
	}

	if err := scanner.Err(); err != nil {
		if len(events) == 0 {
			return nil, nil, fmt.Errorf("ошибка чтения журнала %s: %w", j.path, err)
		}
		return events, err, nil
	}
	return events, nil, nil
}

// openLocked открывает файл на дозапись, предварительно отрезая оборванный хвост
func (j *Journal) openLocked(ctx context.Context) error {
	events, tail, err := j.read(ctx)
	if err != nil {
		return err
	}
	if tail != nil {
		j.logger.Printf("[Journal] Оборванный хвост после %d событий отброшен: %v", len(events), tail)
		if err := j.rewrite(events); err != nil {
			return fmt.Errorf("ошибка восстановления журнала: %w", err)
		}
	}

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	j.f = f
	return nil
}

// rewrite атомарно заменяет файл целыми фреймами уцелевших событий
func (j *Journal) rewrite(events []storage.Event) error {
	var buf bytes.Buffer
	for _, ev := range events {
		b, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		buf.Write(j.enc.EncodeAll(append(b, '\n'), nil))
	}

	tmp, err := os.CreateTemp(filepath.Dir(j.path), filepath.Base(j.path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, &buf); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), j.path)
}
