package handlers

import (
	"context"
	"encoding/json"
	"time"

	"simulacra-server/internal/domain"
	"simulacra-server/internal/memory"
	"simulacra-server/internal/oracle"
	"simulacra-server/internal/storage"
)

// Context передает хендлеру снимок мира и внешние зависимости.
// Actor и Entities - копии, отвязанные от живого состояния: хендлер
// исполняется вне блокировки мира и ничего не мутирует напрямую.
// Все изменения он выражает событиями в Result.
type Context struct {
	Ctx     context.Context
	WorldID string
	Now     time.Time

	Actor    *domain.Entity   // кто действует (копия из снимка)
	Entities []*domain.Entity // все сущности мира, включая актора (копии)
	Recent   []domain.GameEvent

	// Зависимости переоценки задач (checkTasks); остальным хендлерам не нужны
	Oracle oracle.Oracle
	Memory *memory.Service
	Store  storage.Store

	// Route отдает решение оракула хендлеру соответствующего вида.
	// Подставляется резолвером; хендлеры сами друг друга не знают.
	Route RouteFunc
}

// RouteFunc - маршрутизация решения в хендлер его вида
type RouteFunc func(ctx Context, d *domain.Decision) (Result, error)

// Result - события, которые хендлер просит прогнать через движок.
// Хендлер НЕ применяет их сам: запись, рассылку и мутацию состояния
// делает конвейер AddEvent.
type Result struct {
	Events []*domain.GameEvent
}

// HandlerFunc - контракт любого действия (move, speak, pickup, drop, checkTasks)
type HandlerFunc func(ctx Context, params json.RawMessage) (Result, error)

// EmptyResult - пустой успешный ответ
func EmptyResult() Result {
	return Result{}
}

// SingleEvent - ответ из одного события
func SingleEvent(ev *domain.GameEvent) Result {
	return Result{Events: []*domain.GameEvent{ev}}
}
