package domain

// ItemInstance - экземпляр предмета в инвентаре сущности.
// Вне владельца не существует: Pickup создает, Drop уничтожает.
// AssetID - тег типа предмета; реестра предметов нет, клиент волен прислать любой.
type ItemInstance struct {
	ID          string `json:"id"`
	AssetID     string `json:"assetId"`
	Description string `json:"description"`

	// Смещение относительно владельца (для отрисовки "в руке" и т.п.)
	RelativePosition Vec3 `json:"relativePosition"`
}

// NewItemInstance создает экземпляр с новым ID и нулевым смещением
func NewItemInstance(assetID, description string) ItemInstance {
	return ItemInstance{
		ID:          NewItemInstanceID(),
		AssetID:     assetID,
		Description: description,
	}
}
