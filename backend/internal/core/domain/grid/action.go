package grid

import "fmt"

// ActionKind - вид строительного действия. Набор закрыт, флаги клеток
// хранятся в массивах фиксированного размера, индексированных этим типом.
type ActionKind int

const (
	ActionFlower ActionKind = iota
	ActionBush
	ActionTree
	ActionWater

	actionCount
)

// ActionCount количество видов действий
const ActionCount = int(actionCount)

var actionNames = [actionCount]string{
	ActionFlower: "flower",
	ActionBush:   "bush",
	ActionTree:   "tree",
	ActionWater:  "water",
}

func (a ActionKind) String() string {
	if !a.Valid() {
		return fmt.Sprintf("ActionKind(%d)", int(a))
	}
	return actionNames[a]
}

// Valid проверяет, что значение входит в закрытый набор
func (a ActionKind) Valid() bool {
	return a >= 0 && a < actionCount
}

// AllActions возвращает все виды действий в каноническом порядке
func AllActions() []ActionKind {
	return []ActionKind{ActionFlower, ActionBush, ActionTree, ActionWater}
}

// ParseActionKind разбирает имя действия
func ParseActionKind(s string) (ActionKind, error) {
	for i, name := range actionNames {
		if name == s {
			return ActionKind(i), nil
		}
	}
	return 0, fmt.Errorf("неизвестное действие %q", s)
}
