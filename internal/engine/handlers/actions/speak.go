package actions

import (
	"simulacra-server/internal/domain"
	"simulacra-server/internal/engine/handlers"
	"simulacra-server/pkg/api"
)

// HandleSpeak порождает событие speak. Кто услышал - решает движок при
// применении: он единственный видит актуальные позиции всех сущностей,
// и производные heard входят в общий конвейер каскада.
func HandleSpeak(ctx handlers.Context, p api.SpeakPayload) (handlers.Result, error) {
	ev := domain.NewEvent(domain.EventSpeak, ctx.Actor.ID, ctx.WorldID, domain.SpeakParams{
		Message: p.Message,
		Volume:  p.Volume,
	})
	return handlers.SingleEvent(ev), nil
}
