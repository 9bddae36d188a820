package entity

import (
	"sync"
)

// World хранит постройки мира в порядке создания
type World struct {
	structures map[string]*Structure
	order      []string
	mutex      sync.RWMutex
}

// NewWorld создает новый экземпляр мира
func NewWorld() *World {
	return &World{
		structures: make(map[string]*Structure),
	}
}

// AddStructure добавляет постройку в мир
func (w *World) AddStructure(s *Structure) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if _, exists := w.structures[s.ID]; !exists {
		w.order = append(w.order, s.ID)
	}
	w.structures[s.ID] = s
}

// GetStructure возвращает постройку по ее ID
func (w *World) GetStructure(id string) *Structure {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.structures[id]
}

// RemoveStructure удаляет постройку из мира
func (w *World) RemoveStructure(id string) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if _, exists := w.structures[id]; !exists {
		return
	}
	delete(w.structures, id)
	for i, sid := range w.order {
		if sid == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

// GetAllStructures возвращает все постройки в порядке создания
func (w *World) GetAllStructures() []*Structure {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	result := make([]*Structure, 0, len(w.order))
	for _, id := range w.order {
		result = append(result, w.structures[id])
	}
	return result
}

// Pits возвращает все пруды в порядке создания
func (w *World) Pits() []*Structure {
	return w.ofKind(KindPit)
}

func (w *World) ofKind(kind StructureKind) []*Structure {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	var result []*Structure
	for _, id := range w.order {
		if s := w.structures[id]; s.Kind == kind {
			result = append(result, s)
		}
	}
	return result
}

// Count возвращает количество построек по типам
func (w *World) Count() map[StructureKind]int {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	counts := make(map[StructureKind]int)
	for _, s := range w.structures {
		counts[s.Kind]++
	}
	return counts
}
