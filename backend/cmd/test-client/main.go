package main

import (
	"context"
	"flag"
	"log"
	"time"

	"x-garden/backend/internal/adapter/in/grpcapi"
)

func main() {
	var (
		address = flag.String("addr", "localhost:9090", "адрес gRPC сервера")
		x       = flag.Float64("x", 0, "X точки")
		y       = flag.Float64("y", 30, "Y точки")
		z       = flag.Float64("z", 0, "Z точки")
		action  = flag.String("action", "", "если задано - построить на найденной клетке")
	)
	flag.Parse()

	client, err := grpcapi.Dial(*address)
	if err != nil {
		log.Fatalf("Ошибка подключения: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ref, err := client.Resolve(ctx, [3]float64{*x, *y, *z})
	if err != nil {
		log.Fatalf("Ошибка поиска клетки: %v", err)
	}
	log.Printf("Клетка: %s", ref)

	view, err := client.CellAt(ctx, ref)
	if err != nil {
		log.Fatalf("Ошибка чтения клетки: %v", err)
	}
	log.Printf("Центр: %v, занята: %q", view.View.Center, view.View.Occupant)
	for name, hint := range view.View.Hints {
		log.Printf("  %s: %s", name, hint)
	}

	if *action == "" {
		log.Printf("Тест завершен")
		return
	}

	st, err := client.Build(ctx, ref, *action)
	if err != nil {
		log.Fatalf("Постройка отклонена: %v", err)
	}
	log.Printf("Построено: %s (%s) на %s", st.ID, st.Kind, st.Cell)
	log.Printf("Тест завершен")
}
