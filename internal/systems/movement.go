package systems

import (
	"math"
	"time"

	"simulacra-server/internal/domain"
)

// MovePlan - результат прокладки маршрута
type MovePlan struct {
	Segments []domain.Vec3 // промежуточные точки, последняя = цель
	Distance float64
	Duration time.Duration
}

// PlanMove прокладывает маршрут из from в to. Не меняет состояние мира!
// Сейчас маршрут - один прямой сегмент; сюда встанет pathfinding,
// когда в мирах появится рельеф.
func PlanMove(from, to domain.Vec3) (MovePlan, error) {
	if !from.IsFinite() {
		return MovePlan{}, domain.NewValidationError("from", "coordinates must be finite")
	}
	if !to.IsFinite() {
		return MovePlan{}, domain.NewValidationError("to", "coordinates must be finite")
	}

	dist := from.DistanceTo(to)
	return MovePlan{
		Segments: []domain.Vec3{to},
		Distance: dist,
		Duration: SegmentDuration(dist),
	}, nil
}

// SegmentDuration - время прохождения сегмента длиной dist.
// Округляется до миллисекунды; клиент синхронизирует по этому числу анимацию.
func SegmentDuration(dist float64) time.Duration {
	ms := math.Round(dist * float64(domain.MoveMillisPerUnit/time.Millisecond))
	d := time.Duration(ms) * time.Millisecond
	if d < domain.MinSegmentDuration {
		return domain.MinSegmentDuration
	}
	return d
}
