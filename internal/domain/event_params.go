package domain

import "encoding/json"

// EventParams - запечатанное объединение параметров события.
// Каждому EventKind соответствует ровно один конкретный тип.
type EventParams interface {
	isEventParams()
}

// MoveParams - перемещение по прямолинейным сегментам.
// Сейчас сегмент всегда один; точка расширения для будущего pathfinding.
type MoveParams struct {
	From       Vec3   `json:"from"`
	To         Vec3   `json:"to"`
	Segments   []Vec3 `json:"segments"`
	DurationMs int64  `json:"durationMs"`
}

// SpeakParams - произнесенная фраза. Volume задает радиус слышимости.
type SpeakParams struct {
	Message string  `json:"message"`
	Volume  float64 `json:"volume"`
}

// HeardParams - кто-то услышал чужую речь. Лист каскада: дальше не порождает ничего.
type HeardParams struct {
	SpeakerID string  `json:"speakerId"`
	Message   string  `json:"message"`
	Distance  float64 `json:"distance"`
}

// PickupParams - подобранный предмет целиком, чтобы слушатели не ходили за ним в хранилище
type PickupParams struct {
	Item ItemInstance `json:"item"`
}

// DropParams - выброшенный предмет и где он остался лежать
type DropParams struct {
	ItemInstanceID string `json:"itemInstanceId"`
	AssetID        string `json:"assetId"`
	Position       Vec3   `json:"position"`
}

// SpawnParams - появление сущности в мире
type SpawnParams struct {
	Name     string `json:"name"`
	Position Vec3   `json:"position"`
}

// CheckTasksParams - триггер автономной переоценки. Reason для отладки: что разбудило.
type CheckTasksParams struct {
	Reason string `json:"reason,omitempty"`
	TaskID string `json:"taskId,omitempty"`
}

// CharacterErrorParams - ошибка, адресованная конкретной сущности
type CharacterErrorParams struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// UserCommandParams - аудиторская запись входной команды
type UserCommandParams struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// UnknownParams - сырое тело параметров незнакомого вида события
type UnknownParams struct {
	Raw json.RawMessage `json:"raw,omitempty"`
}

func (MoveParams) isEventParams()           {}
func (SpeakParams) isEventParams()          {}
func (HeardParams) isEventParams()          {}
func (PickupParams) isEventParams()         {}
func (DropParams) isEventParams()           {}
func (SpawnParams) isEventParams()          {}
func (CheckTasksParams) isEventParams()     {}
func (CharacterErrorParams) isEventParams() {}
func (UserCommandParams) isEventParams()    {}
func (UnknownParams) isEventParams()        {}

// decodeAs разбирает сырой JSON в конкретный тип параметров.
// Пустое тело допустимо: вернется нулевое значение типа.
func decodeAs[T EventParams](raw json.RawMessage) (EventParams, error) {
	var p T
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// DecodeEventParams разбирает сырой JSON в типизированные параметры по виду события
func DecodeEventParams(kind EventKind, raw json.RawMessage) (EventParams, error) {
	switch kind {
	case EventMove:
		return decodeAs[MoveParams](raw)
	case EventSpeak:
		return decodeAs[SpeakParams](raw)
	case EventHeard:
		return decodeAs[HeardParams](raw)
	case EventPickup:
		return decodeAs[PickupParams](raw)
	case EventDrop:
		return decodeAs[DropParams](raw)
	case EventSpawn:
		return decodeAs[SpawnParams](raw)
	case EventCheckTasks:
		return decodeAs[CheckTasksParams](raw)
	case EventCharacterError:
		return decodeAs[CharacterErrorParams](raw)
	case EventUserCommand:
		return decodeAs[UserCommandParams](raw)
	default:
		return UnknownParams{Raw: raw}, nil
	}
}
