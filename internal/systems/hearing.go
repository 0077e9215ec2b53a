package systems

import (
	"sort"

	"simulacra-server/internal/domain"
)

// Listener - сущность в радиусе слышимости и ее расстояние до говорящего
type Listener struct {
	Entity   *domain.Entity
	Distance float64
}

// ComputeListeners возвращает всех, кто слышит речь speaker с громкостью
// volume. Не меняет состояние мира! Радиус слышимости равен
// volume * HearingRangePerVolume, граница включительна: слушатель ровно на
// границе еще слышит. Говорящий сам себя не слышит.
// Результат отсортирован по ID - порядок производных событий детерминирован.
func ComputeListeners(speaker *domain.Entity, entities []*domain.Entity, volume float64) []Listener {
	hearingRange := volume * domain.HearingRangePerVolume

	var listeners []Listener
	for _, e := range entities {
		if e.ID == speaker.ID {
			continue
		}
		dist := speaker.Position.DistanceTo(e.Position)
		if dist <= hearingRange {
			listeners = append(listeners, Listener{Entity: e, Distance: dist})
		}
	}

	sort.Slice(listeners, func(i, j int) bool {
		return listeners[i].Entity.ID < listeners[j].Entity.ID
	})
	return listeners
}
