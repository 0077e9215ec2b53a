package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventKind - Внутренний числовой идентификатор вида события.
// Множество закрытое: новый вид требует свой тип параметров и ветку применения в движке.
type EventKind uint8

const (
	EventUnknown EventKind = iota
	EventMove
	EventSpeak
	EventHeard
	EventPickup
	EventDrop
	EventSpawn
	EventCheckTasks
	EventCharacterError
	EventUserCommand
)

// Маппинг для конвертации JSON -> Domain
var eventStringToKind = map[string]EventKind{
	"move":           EventMove,
	"speak":          EventSpeak,
	"heard":          EventHeard,
	"pickup":         EventPickup,
	"drop":           EventDrop,
	"spawn":          EventSpawn,
	"checktasks":     EventCheckTasks,
	"charactererror": EventCharacterError,
	"usercommand":    EventUserCommand,
}

// Маппинг для логов и сериализации Domain -> String
var eventKindToString = map[EventKind]string{
	EventMove:           "move",
	EventSpeak:          "speak",
	EventHeard:          "heard",
	EventPickup:         "pickup",
	EventDrop:           "drop",
	EventSpawn:          "spawn",
	EventCheckTasks:     "checkTasks",
	EventCharacterError: "characterError",
	EventUserCommand:    "userCommand",
}

// ParseEventKind конвертирует строку из JSON в EventKind
func ParseEventKind(s string) EventKind {
	// Делаем нечувствительным к регистру для надежности
	lower := strings.ToLower(s)
	if val, ok := eventStringToKind[lower]; ok {
		return val
	}
	return EventUnknown
}

// String реализует интерфейс Stringer (для fmt.Printf)
func (k EventKind) String() string {
	if val, ok := eventKindToString[k]; ok {
		return val
	}
	return "unknown"
}

// GameEvent - неизменяемая запись о произошедшем в мире.
// После создания не мутирует: в хранилище лежит append-only лог таких записей.
type GameEvent struct {
	ID        string
	Kind      EventKind
	ActorID   string
	WorldID   string
	CreatedAt time.Time
	Params    EventParams
}

// NewEvent собирает событие с новым ID и текущим временем.
func NewEvent(kind EventKind, actorID, worldID string, params EventParams) *GameEvent {
	return &GameEvent{
		ID:        NewEventID(),
		Kind:      kind,
		ActorID:   actorID,
		WorldID:   worldID,
		CreatedAt: time.Now().UTC(),
		Params:    params,
	}
}

// eventEnvelope - транспортная форма события (JSON для хранилища и клиентов)
type eventEnvelope struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	ActorID   string          `json:"actorId"`
	WorldID   string          `json:"worldId"`
	CreatedAt time.Time       `json:"createdAt"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// MarshalJSON сериализует событие вместе с типизированными параметрами
func (e GameEvent) MarshalJSON() ([]byte, error) {
	env := eventEnvelope{
		ID:        e.ID,
		Kind:      e.Kind.String(),
		ActorID:   e.ActorID,
		WorldID:   e.WorldID,
		CreatedAt: e.CreatedAt,
	}
	if e.Params != nil {
		raw, err := json.Marshal(e.Params)
		if err != nil {
			return nil, fmt.Errorf("marshal %s params: %w", e.Kind, err)
		}
		env.Params = raw
	}
	return json.Marshal(env)
}

// UnmarshalJSON восстанавливает событие, выбирая тип параметров по kind.
// Незнакомый kind не ошибка: параметры сохраняются сырыми в UnknownParams.
func (e *GameEvent) UnmarshalJSON(data []byte) error {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	kind := ParseEventKind(env.Kind)
	params, err := DecodeEventParams(kind, env.Params)
	if err != nil {
		return fmt.Errorf("decode %s params: %w", env.Kind, err)
	}
	e.ID = env.ID
	e.Kind = kind
	e.ActorID = env.ActorID
	e.WorldID = env.WorldID
	e.CreatedAt = env.CreatedAt
	e.Params = params
	return nil
}
