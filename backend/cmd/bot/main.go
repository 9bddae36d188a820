package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Сообщения бота (подмножество протокола backend/internal/adapter/in/ws)
type RaycastMessage struct {
	Type      string     `json:"type"`
	ID        string     `json:"id"`
	Origin    [3]float64 `json:"origin"`
	Direction [3]float64 `json:"direction"`
	Action    string     `json:"action"`
}

type CellRef struct {
	Face int `json:"face"`
	Row  int `json:"row"`
	Col  int `json:"col"`
}

type BuildMessage struct {
	Type   string  `json:"type"`
	ID     string  `json:"id"`
	Cell   CellRef `json:"cell"`
	Action string  `json:"action"`
}

type PingMessage struct {
	Type       string  `json:"type"`
	ClientTime float64 `json:"clientTime"`
}

type ServerMessage struct {
	Type       string   `json:"type"`
	ID         string   `json:"id"`
	Cell       *CellRef `json:"cell"`
	Action     string   `json:"action"`
	Hint       string   `json:"hint"`
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Radius     float64  `json:"radius"`
	Resolution int      `json:"resolution"`
}

var actions = []string{"water", "water", "tree", "flower", "bush"}

// Bot представляет собой бота, который подключается к серверу
type Bot struct {
	ID          string
	ServerURL   string
	Conn        *websocket.Conn
	Running     bool
	Stats       BotStats
	Pattern     string
	Duration    time.Duration
	CommandRate time.Duration
	mu          sync.RWMutex
	writeMu     sync.Mutex // Мьютекс для синхронизации записи в WebSocket
	radius      float64    // Радиус сферы из приветствия
	seq         int
}

// BotStats содержит статистику работы бота
type BotStats struct {
	RaysSent  int
	Built     int
	Rejected  int
	Errors    int
	StartTime time.Time
	mu        sync.RWMutex
}

// NewBot создает нового бота
func NewBot(id, serverURL, pattern string, duration, commandRate time.Duration) *Bot {
	return &Bot{
		ID:          id,
		ServerURL:   serverURL,
		Pattern:     pattern,
		Duration:    duration,
		CommandRate: commandRate,
		Stats: BotStats{
			StartTime: time.Now(),
		},
	}
}

// Connect подключается к серверу
func (b *Bot) Connect() error {
	u, err := url.Parse(b.ServerURL)
	if err != nil {
		return fmt.Errorf("неверный URL: %v", err)
	}

	log.Printf("[Bot %s] Подключение к %s", b.ID, u.String())

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  1024,
	}

	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("ошибка подключения: %v", err)
	}

	b.Conn = conn
	b.Running = true

	log.Printf("[Bot %s] Успешно подключен", b.ID)
	return nil
}

// Disconnect отключается от сервера
func (b *Bot) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Conn != nil {
		b.Running = false
		b.Conn.Close()
		log.Printf("[Bot %s] Отключен", b.ID)
	}
}

// aimPoint выбирает точку на единичной сфере, куда бот смотрит
func (b *Bot) aimPoint() [3]float64 {
	var x, y, z float64
	elapsed := time.Since(b.Stats.StartTime).Seconds()

	switch b.Pattern {
	case "circle":
		// Обход по экватору с небольшим разбросом по высоте
		angle := elapsed * 0.5
		x, y, z = math.Cos(angle), rand.Float64()*0.4-0.2, math.Sin(angle)
	case "linear":
		// Меридиан от полюса к полюсу
		angle := elapsed * 0.3
		x, y, z = 0.2, math.Cos(angle), math.Sin(angle)
	default: // "random"
		x, y, z = rand.NormFloat64(), rand.NormFloat64(), rand.NormFloat64()
	}

	length := math.Sqrt(x*x + y*y + z*z)
	if length == 0 {
		return [3]float64{0, 1, 0}
	}
	return [3]float64{x / length, y / length, z / length}
}

func (b *Bot) nextID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	return fmt.Sprintf("%s-%d", b.ID, b.seq)
}

func (b *Bot) write(v interface{}) error {
	b.mu.RLock()
	conn := b.Conn
	b.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("соединение не установлено")
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// sendRaycast отправляет луч из точки над сферой к ее центру
func (b *Bot) sendRaycast() error {
	b.mu.RLock()
	radius := b.radius
	b.mu.RUnlock()

	if radius == 0 {
		// Приветствие еще не получено
		return nil
	}

	aim := b.aimPoint()
	distance := radius * 3
	msg := RaycastMessage{
		Type:      "raycast",
		ID:        b.nextID(),
		Origin:    [3]float64{aim[0] * distance, aim[1] * distance, aim[2] * distance},
		Direction: [3]float64{-aim[0], -aim[1], -aim[2]},
		Action:    actions[rand.IntN(len(actions))],
	}

	if err := b.write(msg); err != nil {
		return fmt.Errorf("ошибка отправки луча: %v", err)
	}

	b.Stats.mu.Lock()
	b.Stats.RaysSent++
	b.Stats.mu.Unlock()
	return nil
}

// sendPing отправляет ping сообщение
func (b *Bot) sendPing() error {
	return b.write(PingMessage{
		Type:       "ping",
		ClientTime: float64(time.Now().UnixMilli()),
	})
}

// handleMessage обрабатывает входящие сообщения
func (b *Bot) handleMessage(messageType int, data []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[Bot %s] Ошибка разбора сообщения: %v", b.ID, err)
		return
	}

	switch msg.Type {
	case "welcome":
		b.mu.Lock()
		b.radius = msg.Radius
		b.mu.Unlock()
		log.Printf("[Bot %s] Сфера: радиус %.1f, разрешение %d", b.ID, msg.Radius, msg.Resolution)

	case "hover":
		// Строим только там, где сервер подсветил бы клетку
		if msg.Hint != "selected" || msg.Cell == nil {
			return
		}
		build := BuildMessage{Type: "build", ID: b.nextID(), Cell: *msg.Cell, Action: msg.Action}
		if err := b.write(build); err != nil {
			log.Printf("[Bot %s] Ошибка отправки постройки: %v", b.ID, err)
		}

	case "built":
		b.Stats.mu.Lock()
		b.Stats.Built++
		b.Stats.mu.Unlock()
		log.Printf("[Bot %s] Постройка принята (%s)", b.ID, msg.ID)

	case "error":
		b.Stats.mu.Lock()
		b.Stats.Rejected++
		b.Stats.mu.Unlock()
		if msg.Code != "no_intersection" {
			log.Printf("[Bot %s] Отказ %s: %s", b.ID, msg.Code, msg.Message)
		}

	case "pong":
		log.Printf("[Bot %s] Получен pong", b.ID)

	case "hints", "structure_added", "structure_removed":
		// Рассылки для рендера - обрабатываем молча
		break

	default:
		log.Printf("[Bot %s] Неизвестный тип сообщения: %s", b.ID, msg.Type)
	}
}

// Run запускает бота
func (b *Bot) Run() error {
	if err := b.Connect(); err != nil {
		return err
	}
	defer b.Disconnect()

	// Запускаем горутину для чтения сообщений
	go func() {
		for b.Running {
			messageType, data, err := b.Conn.ReadMessage()
			if err != nil {
				if b.Running {
					log.Printf("[Bot %s] Ошибка чтения сообщения: %v", b.ID, err)
					b.Stats.mu.Lock()
					b.Stats.Errors++
					b.Stats.mu.Unlock()
				}
				return
			}
			b.handleMessage(messageType, data)
		}
	}()

	// Запускаем горутину для отправки ping
	go func() {
		pingTicker := time.NewTicker(5 * time.Second)
		defer pingTicker.Stop()

		for b.Running {
			<-pingTicker.C
			if err := b.sendPing(); err != nil {
				log.Printf("[Bot %s] Ошибка отправки ping: %v", b.ID, err)
			}
		}
	}()

	// Основной цикл отправки лучей
	commandTicker := time.NewTicker(b.CommandRate)
	defer commandTicker.Stop()

	endTime := time.Now().Add(b.Duration)

	for b.Running && time.Now().Before(endTime) {
		<-commandTicker.C
		if err := b.sendRaycast(); err != nil {
			log.Printf("[Bot %s] %v", b.ID, err)
			b.Stats.mu.Lock()
			b.Stats.Errors++
			b.Stats.mu.Unlock()
		}
	}

	log.Printf("[Bot %s] Завершение работы", b.ID)
	return nil
}

// PrintStats выводит статистику бота
func (b *Bot) PrintStats() {
	b.Stats.mu.RLock()
	defer b.Stats.mu.RUnlock()

	duration := time.Since(b.Stats.StartTime)
	log.Printf("[Bot %s] Статистика:", b.ID)
	log.Printf("  Время работы: %v", duration)
	log.Printf("  Лучей отправлено: %d", b.Stats.RaysSent)
	log.Printf("  Построено: %d", b.Stats.Built)
	log.Printf("  Отказов: %d", b.Stats.Rejected)
	log.Printf("  Ошибок: %d", b.Stats.Errors)
	if b.Stats.RaysSent > 0 {
		log.Printf("  Частота лучей: %.2f в сек", float64(b.Stats.RaysSent)/duration.Seconds())
	}
}

func main() {
	// Флаги командной строки
	var (
		serverURL   = flag.String("url", "ws://localhost:8080/ws", "URL WebSocket сервера")
		botID       = flag.String("id", "bot1", "ID бота")
		pattern     = flag.String("pattern", "random", "Паттерн обзора (random, circle, linear)")
		duration    = flag.Duration("duration", 30*time.Second, "Длительность работы бота")
		commandRate = flag.Duration("rate", 200*time.Millisecond, "Частота отправки лучей")
	)
	flag.Parse()

	bot := NewBot(*botID, *serverURL, *pattern, *duration, *commandRate)

	// Обработка сигналов для корректного завершения
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		<-c
		log.Printf("[Bot %s] Получен сигнал прерывания, завершение работы...", bot.ID)
		bot.Disconnect()
		bot.PrintStats()
		os.Exit(0)
	}()

	if err := bot.Run(); err != nil {
		log.Printf("[Bot %s] Ошибка: %v", bot.ID, err)
		os.Exit(1)
	}

	bot.PrintStats()
}
