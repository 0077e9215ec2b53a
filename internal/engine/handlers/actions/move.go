package actions

import (
	"simulacra-server/internal/domain"
	"simulacra-server/internal/engine/handlers"
	"simulacra-server/internal/systems"
	"simulacra-server/pkg/api"
)

// HandleMove прокладывает маршрут к цели и порождает событие move.
// Позицию меняет не хендлер, а движок при применении события:
// конечная точка сохраняется в хранилище один раз, не по сегментам.
func HandleMove(ctx handlers.Context, p api.MovePayload) (handlers.Result, error) {
	to := domain.Vec3{X: p.To.X, Y: p.To.Y, Z: p.To.Z}

	plan, err := systems.PlanMove(ctx.Actor.Position, to)
	if err != nil {
		return handlers.EmptyResult(), err
	}

	ev := domain.NewEvent(domain.EventMove, ctx.Actor.ID, ctx.WorldID, domain.MoveParams{
		From:       ctx.Actor.Position,
		To:         to,
		Segments:   plan.Segments,
		DurationMs: plan.Duration.Milliseconds(),
	})
	return handlers.SingleEvent(ev), nil
}
