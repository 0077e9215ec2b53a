package api

import (
	"encoding/json"
)

// --- КЛИЕНТ -> СЕРВЕР ---

// Типы клиентских сообщений
const (
	ClientTypeJoin    = "join"
	ClientTypeCommand = "command"
)

// ClientMessage это корневой объект для всех сообщений от клиента к серверу.
type ClientMessage struct {
	// Type название сообщения: "join" или "command".
	Type string `json:"type"`

	// Payload JSON-объект с данными. Его структура зависит от Type.
	Payload json.RawMessage `json:"payload"`
}

// JoinPayload - вход в мир. Первое сообщение соединения.
// ActorID придумывает клиент; сервер не проверяет личность (аутентификации нет).
type JoinPayload struct {
	ActorID string `json:"actorId"`
	WorldID string `json:"worldId"`

	// Name отображаемое имя; при пустом значении сервер берет ActorID
	Name string `json:"name,omitempty"`
}

// CommandPayload - инструкция сущности на естественном языке.
type CommandPayload struct {
	ActorID string `json:"actorId"`
	WorldID string `json:"worldId"`
	Text    string `json:"text"`

	// Source - происхождение команды ("user", "scheduler", "agent").
	// Пустое значение сервер трактует как "user".
	Source string `json:"source,omitempty"`
}

// --- СЕРВЕР -> КЛИЕНТ ---

// Типы серверных сообщений
const (
	ServerTypeEvent     = "event"
	ServerTypeFullState = "fullState"
	ServerTypeError     = "error"
)

// Коды ошибок протокола
const (
	ErrCodeBadJSON      = "bad_json"
	ErrCodeUnknownType  = "unknown_type"
	ErrCodeInvalid      = "invalid_payload"
	ErrCodeJoinRequired = "join_required"
	ErrCodeInternal     = "internal"
)

// ServerMessage это корневой объект, который сервер отправляет клиенту.
// Ровно одно из полей Event/State/Error заполнено - в зависимости от Type.
type ServerMessage struct {
	Type    string `json:"type"`
	WorldID string `json:"worldId,omitempty"`

	// Event - одно доменное событие (уже сериализованное движком)
	Event json.RawMessage `json:"event,omitempty"`

	// State - полный снимок мира; отправляется соединению при join
	State *WorldStateView `json:"state,omitempty"`

	// Error - уведомление об ошибке протокола или сервера
	Error *ErrorView `json:"error,omitempty"`
}

// WorldStateView - снимок мира, видимый клиенту.
type WorldStateView struct {
	WorldID string `json:"worldId"`

	// Entities все сущности мира (модели скрытой информации нет)
	Entities []EntityView `json:"entities"`

	// RecentEvents последние события, новые первыми
	RecentEvents []json.RawMessage `json:"recentEvents"`
}

// EntityView это DTO для сущности мира.
type EntityView struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	WorldID   string     `json:"worldId"`
	Position  Vec3View   `json:"position"`
	BodyParts []string   `json:"bodyParts"`
	Items     []ItemView `json:"items"`
}

// Vec3View - координата для клиента
type Vec3View struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ItemView представляет предмет в инвентаре для клиента
type ItemView struct {
	ID               string   `json:"id"`
	AssetID          string   `json:"assetId"`
	Description      string   `json:"description"`
	RelativePosition Vec3View `json:"relativePosition"`
}

// ErrorView представляет ошибку, адресованную конкретному соединению
type ErrorView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEventMessage заворачивает сериализованное событие для рассылки
func NewEventMessage(worldID string, event json.RawMessage) ServerMessage {
	return ServerMessage{Type: ServerTypeEvent, WorldID: worldID, Event: event}
}

// NewFullStateMessage заворачивает снимок мира; уходит соединению при join
func NewFullStateMessage(view WorldStateView) ServerMessage {
	return ServerMessage{Type: ServerTypeFullState, WorldID: view.WorldID, State: &view}
}

// NewErrorMessage собирает уведомление об ошибке
func NewErrorMessage(code, message string) ServerMessage {
	return ServerMessage{Type: ServerTypeError, Error: &ErrorView{Code: code, Message: message}}
}
