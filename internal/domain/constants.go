package domain

import "time"

// Части тела по умолчанию для новой сущности
var DefaultBodyParts = []string{"head", "torso", "left_arm", "right_arm", "left_leg", "right_leg"}

// Физика перемещения.
// Длительность сегмента определяет тайминг анимации на клиенте,
// поэтому константы зафиксированы и менять их без версии протокола нельзя:
//   duration = max(MinSegmentDuration, round(distance * MoveMillisPerUnit))
const (
	MoveMillisPerUnit  = 1250 * time.Millisecond // на одну единицу расстояния
	MinSegmentDuration = 500 * time.Millisecond  // нижняя граница, даже для нулевой дистанции
)

// Слышимость: радиус слышимости равен громкости речи, единицы общие с координатами.
// Граница включительна: слушатель ровно на расстоянии volume еще слышит.
const HearingRangePerVolume = 1.0

// Сколько последних событий мир держит в памяти (старые вытесняются)
const RecentEventLimit = 50

// Сколько воспоминаний попадает в контекст оракула по умолчанию
const DefaultMemoryLimit = 15

// Источники команд (поле source в userCommand)
const (
	CommandSourceUser      = "user"
	CommandSourceScheduler = "scheduler"
	CommandSourceAgent     = "agent"
)
