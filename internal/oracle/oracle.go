package oracle

import (
	"context"

	"simulacra-server/internal/domain"
)

// Request - структурированный запрос решения для одного актора.
// Уходит оракулу как есть (JSON); встроенный скриптовый оракул
// читает из него только инструкцию.
type Request struct {
	ActorID string  `json:"actorId"`
	WorldID string  `json:"worldId"`
	Context Context `json:"context"`
}

// Context - текстовое окружение решения. Поля уже отформатированы:
// оракул получает готовые строки, а не доменные структуры.
type Context struct {
	// Instruction - команда пользователя или сводка задач при checkTasks
	Instruction string `json:"instruction"`

	// Status - положение актора: координаты, инвентарь
	Status string `json:"status,omitempty"`

	// Memories - топ воспоминаний, важные первыми
	Memories string `json:"memories,omitempty"`

	// RecentEvents - недавние события мира (без собственных событий актора)
	RecentEvents string `json:"recentEvents,omitempty"`
}

// Oracle - внешний решатель: из контекста в структурированное решение.
// (nil, nil) означает "решения нет" и ошибкой не является.
// Любой сбой транспорта или непарсибельный ответ - *domain.OracleError.
type Oracle interface {
	Decide(ctx context.Context, req Request) (*domain.Decision, error)
}
