package service

import "errors"

var (
	// ErrNoIntersection - точка или луч не попадают ни в одну клетку
	ErrNoIntersection = errors.New("нет пересечения с сеткой")
	// ErrOccupiedCell - клетка уже занята постройкой
	ErrOccupiedCell = errors.New("клетка занята")
	// ErrInvalidForAction - клетка недопустима для действия
	ErrInvalidForAction = errors.New("клетка недопустима для действия")
	// ErrUnknownCell - тройка вне сетки
	ErrUnknownCell = errors.New("клетка не существует")
	// ErrEmptyCell - на клетке нечего удалять
	ErrEmptyCell = errors.New("клетка пуста")
	// ErrUnknownAction - действие вне закрытого набора
	ErrUnknownAction = errors.New("неизвестное действие")
)
