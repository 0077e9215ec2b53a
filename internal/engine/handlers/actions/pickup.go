package actions

import (
	"simulacra-server/internal/domain"
	"simulacra-server/internal/engine/handlers"
	"simulacra-server/pkg/api"
)

// HandlePickup создает новый экземпляр предмета и порождает событие pickup.
// Предмет не сверяется с реестром объектов мира: свободно стоящих предметов
// в этой модели нет, существует только содержимое инвентарей.
func HandlePickup(ctx handlers.Context, p api.PickupPayload) (handlers.Result, error) {
	item := domain.NewItemInstance(p.AssetID, p.Description)

	ev := domain.NewEvent(domain.EventPickup, ctx.Actor.ID, ctx.WorldID, domain.PickupParams{
		Item: item,
	})
	return handlers.SingleEvent(ev), nil
}
