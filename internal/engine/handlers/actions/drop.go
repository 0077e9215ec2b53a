package actions

import (
	"simulacra-server/internal/domain"
	"simulacra-server/internal/engine/handlers"
	"simulacra-server/pkg/api"
)

// HandleDrop проверяет, что предмет лежит в инвентаре актора, и порождает
// событие drop с текущей позицией. Сам инвентарь меняет движок при
// применении события.
func HandleDrop(ctx handlers.Context, p api.DropPayload) (handlers.Result, error) {
	item, ok := ctx.Actor.FindItem(p.ItemInstanceID)
	if !ok {
		return handlers.EmptyResult(), domain.NewDomainError("item %s is not in %s's inventory", p.ItemInstanceID, ctx.Actor.ID)
	}

	ev := domain.NewEvent(domain.EventDrop, ctx.Actor.ID, ctx.WorldID, domain.DropParams{
		ItemInstanceID: item.ID,
		AssetID:        item.AssetID,
		Position:       ctx.Actor.Position,
	})
	return handlers.SingleEvent(ev), nil
}
