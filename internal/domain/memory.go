package domain

import "time"

// CharacterMemory - оцененное текстовое воспоминание сущности.
// Пишется один раз, никогда не мутирует; выборка идет по важности, затем по свежести.
type CharacterMemory struct {
	ID          string    `json:"id"`
	CharacterID string    `json:"characterId"`
	WorldID     string    `json:"worldId"`
	MemoryText  string    `json:"memoryText"`
	Importance  float64   `json:"importance"`
	CreatedAt   time.Time `json:"createdAt"`

	// События, из которых выросло воспоминание (для трассировки)
	RelatedEventIDs []string `json:"relatedEventIds,omitempty"`
}

// NewCharacterMemory собирает воспоминание с новым ID и текущим временем
func NewCharacterMemory(characterID, worldID, text string, importance float64, relatedEventIDs []string) CharacterMemory {
	return CharacterMemory{
		ID:              NewMemoryID(),
		CharacterID:     characterID,
		WorldID:         worldID,
		MemoryText:      text,
		Importance:      importance,
		CreatedAt:       time.Now().UTC(),
		RelatedEventIDs: relatedEventIDs,
	}
}
