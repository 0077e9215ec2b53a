package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"simulacra-server/internal/domain"
	"simulacra-server/internal/storage/storagetest"
	"simulacra-server/pkg/logger"
)

func init() {
	logger.InitSilent()
}

// recordingSink копит синтезированные события; FailFor имитирует
// отказ конвейера для конкретного актора
type recordingSink struct {
	mu      sync.Mutex
	events  []*domain.GameEvent
	FailFor map[string]error
}

func (r *recordingSink) HandleEvent(_ context.Context, ev *domain.GameEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.FailFor[ev.ActorID]; ok {
		return err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) taken() []*domain.GameEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.GameEvent, len(r.events))
	copy(out, r.events)
	return out
}

func seedEntity(t *testing.T, store *storagetest.Fake, id string) {
	t.Helper()
	if err := store.UpsertEntity(context.Background(), domain.NewEntity(id, id, "w1")); err != nil {
		t.Fatal(err)
	}
}

func seedTask(t *testing.T, store *storagetest.Fake, actorID string, overdueBy time.Duration) domain.ScheduledTask {
	t.Helper()
	task := domain.NewScheduledTask(actorID, "w1", "report in", 10)
	task.LastExecuted = time.Now().UTC().Add(-10*time.Second - overdueBy)
	if err := store.CreateTask(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	return task
}

func appendActivity(t *testing.T, store *storagetest.Fake, actorID string, kind domain.EventKind, age time.Duration) {
	t.Helper()
	ev := domain.NewEvent(kind, actorID, "w1", nil)
	ev.CreatedAt = time.Now().UTC().Add(-age)
	if err := store.AppendEvent(context.Background(), *ev); err != nil {
		t.Fatal(err)
	}
}

func newTickScheduler(store *storagetest.Fake, sink EventSink) *Scheduler {
	return New("w1", store, sink, time.Hour, 30*time.Second)
}

func TestRunTick_DueTaskPrompts(t *testing.T) {
	store := storagetest.New()
	seedEntity(t, store, "alice")
	task := seedTask(t, store, "alice", time.Second) // просрочена на 11с при интервале 10с

	sink := &recordingSink{}
	sched := newTickScheduler(store, sink)
	sched.RunTick(context.Background())

	evs := sink.taken()
	if len(evs) != 1 {
		t.Fatalf("sink got %d events, want exactly 1 (idle phase must skip the task's actor)", len(evs))
	}
	ev := evs[0]
	if ev.Kind != domain.EventCheckTasks || ev.ActorID != "alice" {
		t.Errorf("event = %v for %s", ev.Kind, ev.ActorID)
	}
	p := ev.Params.(domain.CheckTasksParams)
	if p.Reason != ReasonScheduledTask || p.TaskID != task.ID {
		t.Errorf("params = %+v", p)
	}

	stamped, ok := store.Task(task.ID)
	if !ok {
		t.Fatal("task vanished")
	}
	if elapsed := time.Since(stamped.LastExecuted); elapsed > 2*time.Second {
		t.Errorf("lastExecuted not stamped to now: %v ago", elapsed)
	}
}

func TestRunTick_TaskNotYetDue(t *testing.T) {
	store := storagetest.New()
	task := domain.NewScheduledTask("alice", "w1", "report in", 10)
	task.LastExecuted = time.Now().UTC().Add(-5 * time.Second)
	if err := store.CreateTask(context.Background(), task); err != nil {
		t.Fatal(err)
	}

	sink := &recordingSink{}
	newTickScheduler(store, sink).RunTick(context.Background())

	if evs := sink.taken(); len(evs) != 0 {
		t.Errorf("sink got %d events for a task that is not due", len(evs))
	}
}

func TestRunTick_IdleEntityPrompted(t *testing.T) {
	store := storagetest.New()
	seedEntity(t, store, "alice")

	sink := &recordingSink{}
	newTickScheduler(store, sink).RunTick(context.Background())

	evs := sink.taken()
	if len(evs) != 1 {
		t.Fatalf("sink got %d events, want 1 idle prompt", len(evs))
	}
	p := evs[0].Params.(domain.CheckTasksParams)
	if p.Reason != ReasonIdle || p.TaskID != "" {
		t.Errorf("params = %+v", p)
	}
}

func TestRunTick_ActiveEntityLeftAlone(t *testing.T) {
	store := storagetest.New()
	seedEntity(t, store, "alice")
	appendActivity(t, store, "alice", domain.EventSpeak, 5*time.Second)

	sink := &recordingSink{}
	newTickScheduler(store, sink).RunTick(context.Background())

	if evs := sink.taken(); len(evs) != 0 {
		t.Errorf("active entity prompted: %d events", len(evs))
	}
}

func TestRunTick_CheckTasksDoesNotCountAsActivity(t *testing.T) {
	store := storagetest.New()
	seedEntity(t, store, "alice")
	appendActivity(t, store, "alice", domain.EventCheckTasks, 5*time.Second)

	sink := &recordingSink{}
	newTickScheduler(store, sink).RunTick(context.Background())

	evs := sink.taken()
	if len(evs) != 1 {
		t.Fatalf("sink got %d events, want 1: checkTasks alone is not activity", len(evs))
	}
}

func TestRunTick_StaleActivityIgnored(t *testing.T) {
	store := storagetest.New()
	seedEntity(t, store, "alice")
	appendActivity(t, store, "alice", domain.EventSpeak, 2*time.Minute)

	sink := &recordingSink{}
	newTickScheduler(store, sink).RunTick(context.Background())

	if evs := sink.taken(); len(evs) != 1 {
		t.Errorf("entity idle beyond the window not prompted: %d events", len(evs))
	}
}

func TestRunTick_FaultIsolation(t *testing.T) {
	store := storagetest.New()
	bad := seedTask(t, store, "bad", 10*time.Second) // просрочена сильнее, идет первой
	good := seedTask(t, store, "good", time.Second)

	sink := &recordingSink{FailFor: map[string]error{
		"bad": errors.New("pipeline exploded"),
	}}
	newTickScheduler(store, sink).RunTick(context.Background())

	evs := sink.taken()
	if len(evs) != 1 || evs[0].ActorID != "good" {
		t.Fatalf("good actor blocked by bad one: %d events", len(evs))
	}

	// Упавшая задача не штампуется и останется просроченной
	badTask, _ := store.Task(bad.ID)
	if time.Since(badTask.LastExecuted) < 5*time.Second {
		t.Error("failed task was stamped as executed")
	}
	goodTask, _ := store.Task(good.ID)
	if time.Since(goodTask.LastExecuted) > 2*time.Second {
		t.Error("successful task was not stamped")
	}
}

// blockingSink держит первый вызов открытым, пока тест не отпустит
type blockingSink struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSink) HandleEvent(context.Context, *domain.GameEvent) error {
	b.calls.Add(1)
	b.entered <- struct{}{}
	<-b.release
	return nil
}

func TestScheduler_SkipsOverlappingTicks(t *testing.T) {
	store := storagetest.New()
	seedEntity(t, store, "alice")

	sink := &blockingSink{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
	sched := New("w1", store, sink, 10*time.Millisecond, 30*time.Second)
	sched.Start()

	<-sink.entered
	// Таймер успевает выстрелить несколько раз, пока первый тик висит
	time.Sleep(100 * time.Millisecond)
	if got := sink.calls.Load(); got != 1 {
		t.Errorf("concurrent ticks ran: %d sink calls while one was in flight", got)
	}

	close(sink.release)
	sched.Stop()
}

func TestScheduler_StopWithoutTicks(t *testing.T) {
	sched := New("w1", storagetest.New(), &recordingSink{}, time.Hour, 30*time.Second)
	sched.Start()
	sched.Stop() // не должен зависнуть в ожидании первого тика
}

func TestManager_EnsureAndStopAll(t *testing.T) {
	store := storagetest.New()
	mgr := NewManager(store, time.Hour, 30*time.Second)
	sink := &recordingSink{}

	mgr.Ensure("w1", sink)
	mgr.Ensure("w1", sink) // повтор не плодит второй шедулер
	mgr.Ensure("w2", sink)

	mgr.StopAll()
	mgr.StopAll() // повторная остановка безопасна
}
