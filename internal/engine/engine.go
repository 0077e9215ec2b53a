package engine

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"simulacra-server/internal/domain"
	"simulacra-server/internal/memory"
	"simulacra-server/internal/storage"
	"simulacra-server/internal/systems"
	"simulacra-server/pkg/api"
	"simulacra-server/pkg/logger"
)

// Broadcaster рассылает сообщение всем зрителям мира.
// network.Hub реализует этот интерфейс.
type Broadcaster interface {
	Broadcast(worldID string, msg api.ServerMessage)
}

// Engine - один изолированный мир. Владеет живым состоянием (сущности и
// кольцо последних событий) и является единственной точкой входа для любых
// событий. Конвейер AddEvent: записать в хранилище, применить к состоянию,
// разослать, затем прогнать производные события тем же путем.
//
// Дисциплина блокировки: mu защищает entities и recent; под mu не бывает
// ни вызовов хранилища, ни оракула, ни рассылки.
type Engine struct {
	worldID string
	store   storage.Store
	memory  *memory.Service
	hub     Broadcaster

	mu       sync.RWMutex
	entities map[string]*domain.Entity
	recent   []domain.GameEvent // новые первыми, не длиннее RecentEventLimit

	// joinMu сериализует JoinEntity: конкурентные входы под одним ID
	// должны дать ровно одну сущность и ровно один spawn
	joinMu sync.Mutex

	log *logrus.Entry
}

// NewEngine поднимает мир из хранилища: сущности и хвост журнала событий
func NewEngine(ctx context.Context, worldID string, store storage.Store, mem *memory.Service, hub Broadcaster) (*Engine, error) {
	e := &Engine{
		worldID:  worldID,
		store:    store,
		memory:   mem,
		hub:      hub,
		entities: make(map[string]*domain.Entity),
		log:      logger.WithWorld("engine", worldID),
	}

	persisted, err := store.ListEntities(ctx, worldID)
	if err != nil {
		return nil, err
	}
	for _, ent := range persisted {
		e.entities[ent.ID] = ent
	}

	recent, err := store.ListRecentEvents(ctx, worldID, domain.RecentEventLimit)
	if err != nil {
		return nil, err
	}
	e.recent = recent

	e.log.WithFields(logrus.Fields{
		"entities":      len(e.entities),
		"recent_events": len(e.recent),
	}).Info("World loaded")
	return e, nil
}

func (e *Engine) WorldID() string {
	return e.worldID
}

// AddEvent проводит событие и весь его каскад через конвейер.
// Производные события не обрабатываются рекурсией: они встают в хвост
// FIFO-очереди, и каждое полностью записывается, применяется и рассылается
// прежде, чем его собственные производные попадут в очередь. Порядок
// братьев детерминирован, глубина стека ограничена.
//
// Запись в хранилище идет ДО применения: отказ хранилища подавляет и
// мутацию состояния, и рассылку, а ошибка уходит вызывающему.
func (e *Engine) AddEvent(ctx context.Context, ev *domain.GameEvent) error {
	queue := []*domain.GameEvent{ev}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		// Чужой мир - ожидаемый шум, не ошибка. Роняем молча, только лог.
		if cur.WorldID != e.worldID {
			e.log.WithFields(logrus.Fields{
				"event_id":    cur.ID,
				"event_world": cur.WorldID,
			}).Warn("Dropping event addressed to another world")
			continue
		}

		if err := e.store.AppendEvent(ctx, *cur); err != nil {
			return err
		}
		if err := e.persistEffects(ctx, cur); err != nil {
			return err
		}

		derived := e.apply(cur)
		e.broadcast(cur)

		// Воспоминание пишется после рассылки; событие уже состоялось,
		// поэтому отказ здесь только логируется
		if err := e.memory.RecordEvent(ctx, *cur); err != nil {
			e.log.WithError(err).WithField("event_id", cur.ID).Error("Failed to record event memory")
		}

		queue = append(queue, derived...)
	}
	return nil
}

// persistEffects сохраняет побочные эффекты события до мутации состояния
func (e *Engine) persistEffects(ctx context.Context, ev *domain.GameEvent) error {
	switch p := ev.Params.(type) {
	case domain.MoveParams:
		// Конечная точка пишется один раз, не по сегментам
		return e.store.UpdateEntityPosition(ctx, e.worldID, ev.ActorID, p.To)
	case domain.PickupParams:
		return e.store.CreateItemInstance(ctx, e.worldID, ev.ActorID, p.Item)
	case domain.DropParams:
		return e.store.DeleteItemInstance(ctx, e.worldID, ev.ActorID, p.ItemInstanceID)
	default:
		return nil
	}
}

// apply под блокировкой вносит событие в кольцо и меняет состояние мира.
// Возвращает производные события (speak порождает heard для каждого
// слушателя; heard - лист, дальше каскад не идет).
func (e *Engine) apply(ev *domain.GameEvent) []*domain.GameEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Кольцо последних событий: новые первыми, старые вытесняются
	e.recent = append(e.recent, domain.GameEvent{})
	copy(e.recent[1:], e.recent)
	e.recent[0] = *ev
	if len(e.recent) > domain.RecentEventLimit {
		e.recent = e.recent[:domain.RecentEventLimit]
	}

	switch p := ev.Params.(type) {
	case domain.MoveParams:
		if ent, ok := e.entities[ev.ActorID]; ok {
			ent.Position = p.To
		}

	case domain.SpeakParams:
		speaker, ok := e.entities[ev.ActorID]
		if !ok {
			return nil
		}
		others := make([]*domain.Entity, 0, len(e.entities))
		for _, ent := range e.entities {
			others = append(others, ent)
		}
		listeners := systems.ComputeListeners(speaker, others, p.Volume)

		derived := make([]*domain.GameEvent, 0, len(listeners))
		for _, l := range listeners {
			derived = append(derived, domain.NewEvent(domain.EventHeard, l.Entity.ID, e.worldID, domain.HeardParams{
				SpeakerID: speaker.ID,
				Message:   p.Message,
				Distance:  l.Distance,
			}))
		}
		return derived

	case domain.PickupParams:
		if ent, ok := e.entities[ev.ActorID]; ok {
			ent.AddItem(p.Item)
		}

	case domain.DropParams:
		if ent, ok := e.entities[ev.ActorID]; ok {
			ent.RemoveItem(p.ItemInstanceID)
		}

	case domain.SpawnParams:
		if _, ok := e.entities[ev.ActorID]; !ok {
			ent := domain.NewEntity(ev.ActorID, p.Name, e.worldID)
			ent.Position = p.Position
			e.entities[ev.ActorID] = ent
		}
	}

	// heard - лист; checkTasks - чистый маркер для резолвера;
	// characterError и userCommand состояние не трогают
	return nil
}

// broadcast рассылает уже записанное и примененное событие зрителям мира
func (e *Engine) broadcast(ev *domain.GameEvent) {
	raw, err := json.Marshal(ev)
	if err != nil {
		e.log.WithError(err).WithField("event_id", ev.ID).Error("Failed to marshal event for broadcast")
		return
	}
	e.hub.Broadcast(e.worldID, api.NewEventMessage(e.worldID, raw))
}

// JoinEntity - идемпотентный вход в мир. Существующая сущность возвращается
// как есть; новая создается в начале координат со стандартным телом и пустым
// инвентарем, сохраняется и объявляется событием spawn. Сколько бы раз ни
// звали с одним ID, результат один: одна сущность, один spawn.
func (e *Engine) JoinEntity(ctx context.Context, id, name string) (*domain.Entity, error) {
	e.joinMu.Lock()
	defer e.joinMu.Unlock()

	e.mu.RLock()
	existing, ok := e.entities[id]
	e.mu.RUnlock()
	if ok {
		return existing.Clone(), nil
	}

	if name == "" {
		name = id
	}
	ent := domain.NewEntity(id, name, e.worldID)
	if err := e.store.UpsertEntity(ctx, ent); err != nil {
		return nil, err
	}

	spawn := domain.NewEvent(domain.EventSpawn, id, e.worldID, domain.SpawnParams{
		Name:     ent.Name,
		Position: ent.Position,
	})
	if err := e.AddEvent(ctx, spawn); err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"entity_id": id,
		"name":      ent.Name,
	}).Info("Entity joined world")
	return ent.Clone(), nil
}

// RemoveEntity выгоняет сущность из живого состояния и каскадно удаляет
// ее строки в хранилище (воспоминания, задачи, предметы)
func (e *Engine) RemoveEntity(ctx context.Context, id string) error {
	if err := e.store.DeleteEntityCascade(ctx, e.worldID, id); err != nil {
		return err
	}

	e.mu.Lock()
	delete(e.entities, id)
	e.mu.Unlock()

	e.log.WithField("entity_id", id).Info("Entity removed from world")
	return nil
}

// SnapshotActor возвращает копию сущности, отвязанную от живого состояния
func (e *Engine) SnapshotActor(id string) (*domain.Entity, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ent, ok := e.entities[id]
	if !ok {
		return nil, false
	}
	return ent.Clone(), true
}

// SnapshotEntities возвращает копии всех сущностей мира, отсортированные по ID
func (e *Engine) SnapshotEntities() []*domain.Entity {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.Entity, 0, len(e.entities))
	for _, ent := range e.entities {
		out = append(out, ent.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RecentEvents возвращает копию кольца последних событий, новые первыми
func (e *Engine) RecentEvents() []domain.GameEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.GameEvent, len(e.recent))
	copy(out, e.recent)
	return out
}

// StateView собирает полный снимок мира для клиента.
// Возвращаемые структуры не делят память с живым состоянием.
func (e *Engine) StateView() api.WorldStateView {
	entities := e.SnapshotEntities()
	recent := e.RecentEvents()

	view := api.WorldStateView{
		WorldID:      e.worldID,
		Entities:     make([]api.EntityView, 0, len(entities)),
		RecentEvents: make([]json.RawMessage, 0, len(recent)),
	}
	for _, ent := range entities {
		view.Entities = append(view.Entities, toEntityView(ent))
	}
	for i := range recent {
		raw, err := json.Marshal(&recent[i])
		if err != nil {
			e.log.WithError(err).WithField("event_id", recent[i].ID).Error("Failed to marshal event for state view")
			continue
		}
		view.RecentEvents = append(view.RecentEvents, raw)
	}
	return view
}

// toEntityView конвертирует доменную сущность в DTO
func toEntityView(ent *domain.Entity) api.EntityView {
	view := api.EntityView{
		ID:        ent.ID,
		Name:      ent.Name,
		WorldID:   ent.WorldID,
		Position:  api.Vec3View{X: ent.Position.X, Y: ent.Position.Y, Z: ent.Position.Z},
		BodyParts: ent.BodyParts,
		Items:     make([]api.ItemView, 0, len(ent.Items)),
	}
	for _, item := range ent.Items {
		view.Items = append(view.Items, api.ItemView{
			ID:          item.ID,
			AssetID:     item.AssetID,
			Description: item.Description,
			RelativePosition: api.Vec3View{
				X: item.RelativePosition.X,
				Y: item.RelativePosition.Y,
				Z: item.RelativePosition.Z,
			},
		})
	}
	return view
}
