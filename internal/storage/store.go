package storage

import (
	"context"
	"time"

	"simulacra-server/internal/domain"
)

// Store - долговременное хранилище мира. Все запросы и записи фильтруются
// по worldID: миры друг о друге не знают даже на уровне SQL.
//
// Контракт ошибок: любой отказ нижележащего хранилища возвращается как
// *domain.PersistenceError; "не найдено" для Get-методов - это (nil, nil),
// не ошибка.
type Store interface {
	// Сущности
	UpsertEntity(ctx context.Context, e *domain.Entity) error
	GetEntity(ctx context.Context, worldID, id string) (*domain.Entity, error)
	ListEntities(ctx context.Context, worldID string) ([]*domain.Entity, error)
	UpdateEntityPosition(ctx context.Context, worldID, id string, pos domain.Vec3) error

	// DeleteEntityCascade атомарно удаляет сущность вместе с ее
	// воспоминаниями, задачами и предметами (одна транзакция).
	DeleteEntityCascade(ctx context.Context, worldID, id string) error

	// ListWorldIDs возвращает миры, в которых есть хоть одна сущность.
	// По этому списку сервер поднимает миры после рестарта.
	ListWorldIDs(ctx context.Context) ([]string, error)

	// События: только добавление, никаких обновлений
	AppendEvent(ctx context.Context, ev domain.GameEvent) error
	ListRecentEvents(ctx context.Context, worldID string, limit int) ([]domain.GameEvent, error)

	// ListAllEvents отдает весь журнал мира от старых к новым
	// (архивация при остановке)
	ListAllEvents(ctx context.Context, worldID string) ([]domain.GameEvent, error)

	// CountActorEventsSince считает события актора новее since, исключая
	// один вид (шедулер отсеивает checkTasks при поиске простаивающих)
	CountActorEventsSince(ctx context.Context, worldID, actorID string, since time.Time, exclude domain.EventKind) (int, error)

	// Воспоминания
	CreateMemory(ctx context.Context, m domain.CharacterMemory) error
	TopMemories(ctx context.Context, worldID, characterID string, limit int) ([]domain.CharacterMemory, error)

	// Задачи
	CreateTask(ctx context.Context, t domain.ScheduledTask) error
	DueTasks(ctx context.Context, worldID string, now time.Time) ([]domain.ScheduledTask, error)
	MarkTaskExecuted(ctx context.Context, worldID, taskID string, at time.Time) error
	SetTaskActive(ctx context.Context, worldID, taskID string, active bool) error
	ListActiveTasks(ctx context.Context, worldID, characterID string) ([]domain.ScheduledTask, error)

	// Предметы
	CreateItemInstance(ctx context.Context, worldID, entityID string, item domain.ItemInstance) error
	DeleteItemInstance(ctx context.Context, worldID, entityID, instanceID string) error

	Close() error
}
