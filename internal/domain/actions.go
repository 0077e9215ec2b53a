package domain

import "strings"

// ActionKind - Внутренний числовой идентификатор действия.
// Это закрытое множество решений, которые может вернуть оракул.
type ActionKind uint8

const (
	ActionUnknown ActionKind = iota
	ActionMove
	ActionSpeak
	ActionPickup
	ActionDrop
	ActionCheckTasks
	// В будущем: ActionGive, ActionCraft...
)

// Маппинг для конвертации JSON -> Domain
var actionStringToKind = map[string]ActionKind{
	"move":       ActionMove,
	"speak":      ActionSpeak,
	"pickup":     ActionPickup,
	"drop":       ActionDrop,
	"checktasks": ActionCheckTasks,
}

// Маппинг для логов и сериализации Domain -> String
var actionKindToString = map[ActionKind]string{
	ActionMove:       "move",
	ActionSpeak:      "speak",
	ActionPickup:     "pickup",
	ActionDrop:       "drop",
	ActionCheckTasks: "checkTasks",
}

// ParseActionKind конвертирует строку из JSON в ActionKind
func ParseActionKind(s string) ActionKind {
	// Делаем нечувствительным к регистру для надежности
	lower := strings.ToLower(s)
	if val, ok := actionStringToKind[lower]; ok {
		return val
	}
	return ActionUnknown
}

// String реализует интерфейс Stringer (для fmt.Printf)
func (a ActionKind) String() string {
	if val, ok := actionKindToString[a]; ok {
		return val
	}
	return "unknown"
}
