package domain

// Entity - агент в мире: позиция, части тела, инвентарь.
// Живая копия принадлежит движку мира; наружу уходят только клоны.
type Entity struct {
	// Идентификация. ID приходит от клиента при join и дальше не меняется.
	ID      string `json:"id"`
	Name    string `json:"name"`
	WorldID string `json:"worldId"`

	Position Vec3 `json:"position"`

	// Части тела - упорядоченный список тегов
	BodyParts []string `json:"bodyParts"`

	// Предметы существуют только в инвентаре, свободно в мире не лежат
	Items []ItemInstance `json:"items"`
}

// NewEntity создает сущность в нулевой точке с частями тела по умолчанию
// и пустым инвентарем.
func NewEntity(id, name, worldID string) *Entity {
	parts := make([]string, len(DefaultBodyParts))
	copy(parts, DefaultBodyParts)
	return &Entity{
		ID:        id,
		Name:      name,
		WorldID:   worldID,
		Position:  Origin(),
		BodyParts: parts,
		Items:     []ItemInstance{},
	}
}

// Clone возвращает глубокую копию: слайсы не разделяются с оригиналом
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	cp := *e
	cp.BodyParts = make([]string, len(e.BodyParts))
	copy(cp.BodyParts, e.BodyParts)
	cp.Items = make([]ItemInstance, len(e.Items))
	copy(cp.Items, e.Items)
	return &cp
}

// AddItem добавляет предмет в инвентарь
func (e *Entity) AddItem(item ItemInstance) {
	e.Items = append(e.Items, item)
}

// RemoveItem удаляет предмет по ID экземпляра и возвращает его.
// Второй результат false, если предмета в инвентаре нет.
func (e *Entity) RemoveItem(instanceID string) (ItemInstance, bool) {
	for i, item := range e.Items {
		if item.ID == instanceID {
			// Удаляем из слайса
			e.Items = append(e.Items[:i], e.Items[i+1:]...)
			return item, true
		}
	}
	return ItemInstance{}, false
}

// FindItem ищет предмет по ID экземпляра
func (e *Entity) FindItem(instanceID string) (ItemInstance, bool) {
	for _, item := range e.Items {
		if item.ID == instanceID {
			return item, true
		}
	}
	return ItemInstance{}, false
}
