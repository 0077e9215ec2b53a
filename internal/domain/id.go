package domain

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Идентификаторы двух сортов:
//   - события и воспоминания получают ULID: лексикографический порядок совпадает
//     с порядком записи, что удобно для append-only лога и выборок "последние N";
//   - предметы и задачи получают UUID: порядок не нужен, важна только уникальность.
// ID сущностей не генерируются здесь вовсе - их приносит клиент при join.

// NewEventID возвращает сортируемый по времени идентификатор события
func NewEventID() string {
	return ulid.Make().String()
}

// NewMemoryID возвращает идентификатор воспоминания
func NewMemoryID() string {
	return ulid.Make().String()
}

// NewItemInstanceID возвращает идентификатор экземпляра предмета
func NewItemInstanceID() string {
	return uuid.NewString()
}

// NewTaskID возвращает идентификатор запланированной задачи
func NewTaskID() string {
	return uuid.NewString()
}
