package storagetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"simulacra-server/internal/domain"
)

// Fake - Store в памяти для тестов: детерминированный порядок,
// инъекция отказов через Err-поля. Продакшен им не пользуется.
type Fake struct {
	mu sync.Mutex

	entities map[string]map[string]*domain.Entity // worldID -> entityID
	events   []domain.GameEvent
	memories []domain.CharacterMemory
	tasks    map[string]domain.ScheduledTask
	items    map[string][]domain.ItemInstance // worldID+"/"+entityID

	// Ненулевое поле заставляет соответствующий метод вернуть эту ошибку
	AppendEventErr    error
	UpsertEntityErr   error
	UpdatePositionErr error
	CreateMemoryErr   error
	CreateItemErr     error
	DeleteItemErr     error
}

func New() *Fake {
	return &Fake{
		entities: map[string]map[string]*domain.Entity{},
		tasks:    map[string]domain.ScheduledTask{},
		items:    map[string][]domain.ItemInstance{},
	}
}

func itemKey(worldID, entityID string) string {
	return worldID + "/" + entityID
}

// --- СУЩНОСТИ ---

func (f *Fake) UpsertEntity(_ context.Context, e *domain.Entity) error {
	if f.UpsertEntityErr != nil {
		return f.UpsertEntityErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	world, ok := f.entities[e.WorldID]
	if !ok {
		world = map[string]*domain.Entity{}
		f.entities[e.WorldID] = world
	}
	world[e.ID] = e.Clone()
	return nil
}

func (f *Fake) GetEntity(_ context.Context, worldID, id string) (*domain.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.entities[worldID][id]; ok {
		return e.Clone(), nil
	}
	return nil, nil
}

func (f *Fake) ListEntities(_ context.Context, worldID string) ([]*domain.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Entity
	for _, e := range f.entities[worldID] {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) UpdateEntityPosition(_ context.Context, worldID, id string, pos domain.Vec3) error {
	if f.UpdatePositionErr != nil {
		return f.UpdatePositionErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.entities[worldID][id]; ok {
		e.Position = pos
	}
	return nil
}

func (f *Fake) DeleteEntityCascade(_ context.Context, worldID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entities[worldID], id)
	delete(f.items, itemKey(worldID, id))

	kept := f.memories[:0]
	for _, m := range f.memories {
		if !(m.WorldID == worldID && m.CharacterID == id) {
			kept = append(kept, m)
		}
	}
	f.memories = kept

	for tid, t := range f.tasks {
		if t.WorldID == worldID && t.CharacterID == id {
			delete(f.tasks, tid)
		}
	}
	return nil
}

func (f *Fake) ListWorldIDs(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for worldID, ents := range f.entities {
		if len(ents) > 0 {
			out = append(out, worldID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// --- СОБЫТИЯ ---

func (f *Fake) AppendEvent(_ context.Context, ev domain.GameEvent) error {
	if f.AppendEventErr != nil {
		return f.AppendEventErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *Fake) ListRecentEvents(_ context.Context, worldID string, limit int) ([]domain.GameEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.GameEvent
	for i := len(f.events) - 1; i >= 0 && len(out) < limit; i-- {
		if f.events[i].WorldID == worldID {
			out = append(out, f.events[i])
		}
	}
	return out, nil
}

func (f *Fake) ListAllEvents(_ context.Context, worldID string) ([]domain.GameEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.GameEvent
	for _, ev := range f.events {
		if ev.WorldID == worldID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *Fake) CountActorEventsSince(_ context.Context, worldID, actorID string, since time.Time, exclude domain.EventKind) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ev := range f.events {
		if ev.WorldID == worldID && ev.ActorID == actorID && ev.Kind != exclude && !ev.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// --- ВОСПОМИНАНИЯ ---

func (f *Fake) CreateMemory(_ context.Context, m domain.CharacterMemory) error {
	if f.CreateMemoryErr != nil {
		return f.CreateMemoryErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memories = append(f.memories, m)
	return nil
}

func (f *Fake) TopMemories(_ context.Context, worldID, characterID string, limit int) ([]domain.CharacterMemory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []domain.CharacterMemory
	for _, m := range f.memories {
		if m.WorldID == worldID && m.CharacterID == characterID {
			matched = append(matched, m)
		}
	}
	// Важность по убыванию, при равенстве свежие раньше
	sortMemories(matched)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func sortMemories(ms []domain.CharacterMemory) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].Importance != ms[j].Importance {
			return ms[i].Importance > ms[j].Importance
		}
		return ms[i].CreatedAt.After(ms[j].CreatedAt)
	})
}

// --- ЗАДАЧИ ---

func (f *Fake) CreateTask(_ context.Context, t domain.ScheduledTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[t.ID] = t
	return nil
}

func (f *Fake) DueTasks(_ context.Context, worldID string, now time.Time) ([]domain.ScheduledTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ScheduledTask
	for _, t := range f.tasks {
		if t.WorldID == worldID && t.IsDue(now) {
			out = append(out, t)
		}
	}
	sortTasks(out)
	return out, nil
}

func sortTasks(ts []domain.ScheduledTask) {
	sort.SliceStable(ts, func(i, j int) bool {
		return ts[i].LastExecuted.Before(ts[j].LastExecuted)
	})
}

func (f *Fake) MarkTaskExecuted(_ context.Context, worldID, taskID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tasks[taskID]; ok && t.WorldID == worldID {
		t.LastExecuted = at
		f.tasks[taskID] = t
	}
	return nil
}

func (f *Fake) SetTaskActive(_ context.Context, worldID, taskID string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tasks[taskID]; ok && t.WorldID == worldID {
		t.IsActive = active
		f.tasks[taskID] = t
	}
	return nil
}

func (f *Fake) ListActiveTasks(_ context.Context, worldID, characterID string) ([]domain.ScheduledTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ScheduledTask
	for _, t := range f.tasks {
		if t.WorldID == worldID && t.CharacterID == characterID && t.IsActive {
			out = append(out, t)
		}
	}
	sortTasks(out)
	return out, nil
}

// --- ПРЕДМЕТЫ ---

func (f *Fake) CreateItemInstance(_ context.Context, worldID, entityID string, item domain.ItemInstance) error {
	if f.CreateItemErr != nil {
		return f.CreateItemErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := itemKey(worldID, entityID)
	f.items[key] = append(f.items[key], item)
	return nil
}

func (f *Fake) DeleteItemInstance(_ context.Context, worldID, entityID, instanceID string) error {
	if f.DeleteItemErr != nil {
		return f.DeleteItemErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := itemKey(worldID, entityID)
	for i, item := range f.items[key] {
		if item.ID == instanceID {
			f.items[key] = append(f.items[key][:i], f.items[key][i+1:]...)
			break
		}
	}
	return nil
}

func (f *Fake) Close() error {
	return nil
}

// --- ДОСТУП ДЛЯ ПРОВЕРОК ---

// Events возвращает копию журнала в порядке записи
func (f *Fake) Events() []domain.GameEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.GameEvent, len(f.events))
	copy(out, f.events)
	return out
}

// EventsOfKind возвращает записанные события одного вида в порядке записи
func (f *Fake) EventsOfKind(kind domain.EventKind) []domain.GameEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.GameEvent
	for _, ev := range f.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Memories возвращает копию всех записанных воспоминаний в порядке записи
func (f *Fake) Memories() []domain.CharacterMemory {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.CharacterMemory, len(f.memories))
	copy(out, f.memories)
	return out
}

// Task возвращает задачу по ID
func (f *Fake) Task(taskID string) (domain.ScheduledTask, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	return t, ok
}

// ItemsOf возвращает предметы, числящиеся за сущностью
func (f *Fake) ItemsOf(worldID, entityID string) []domain.ItemInstance {
	f.mu.Lock()
	defer f.mu.Unlock()
	src := f.items[itemKey(worldID, entityID)]
	out := make([]domain.ItemInstance, len(src))
	copy(out, src)
	return out
}
