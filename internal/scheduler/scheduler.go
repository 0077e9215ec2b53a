package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"simulacra-server/internal/domain"
	"simulacra-server/internal/storage"
	"simulacra-server/pkg/logger"
)

// Причины синтетического checkTasks (поле reason в параметрах)
const (
	ReasonScheduledTask = "scheduled task"
	ReasonIdle          = "idle"
)

// EventSink принимает синтезированные события. Резолвер мира реализует
// этот интерфейс; шедулер о движке больше ничего не знает.
type EventSink interface {
	HandleEvent(ctx context.Context, ev *domain.GameEvent) error
}

// Scheduler - сердцебиение автономности одного мира. Каждый тик: сначала
// просроченные задачи, затем простаивающие сущности; и тем и другим
// синтезируется checkTasks, который идет через общий конвейер резолвера.
type Scheduler struct {
	worldID string
	store   storage.Store
	sink    EventSink
	tick    time.Duration
	idle    time.Duration

	// Не больше одного тика в работе: пока предыдущий не закончился,
	// новые срабатывания таймера пропускаются
	inFlight atomic.Bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	log *logrus.Entry
}

func New(worldID string, store storage.Store, sink EventSink, tick, idleWindow time.Duration) *Scheduler {
	return &Scheduler{
		worldID: worldID,
		store:   store,
		sink:    sink,
		tick:    tick,
		idle:    idleWindow,
		stopCh:  make(chan struct{}),
		log:     logger.WithWorld("scheduler", worldID),
	}
}

// Start запускает цикл таймера. Повторный Start не поддерживается.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
	s.log.WithFields(logrus.Fields{
		"tick":        s.tick.String(),
		"idle_window": s.idle.String(),
	}).Info("Scheduler started")
}

// Stop останавливает таймер и дожидается завершения тика в работе.
// Начатый тик не отменяется: раз действие пошло, оно доводится до конца.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.log.Info("Scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !s.inFlight.CompareAndSwap(false, true) {
				s.log.Debug("Previous tick still in flight, skipping")
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.inFlight.Store(false)
				s.RunTick(context.Background())
			}()
		}
	}
}

// RunTick - один проход автономности. Каждая задача и каждая сущность
// обрабатываются независимо: отказ одной не останавливает остальных.
func (s *Scheduler) RunTick(ctx context.Context) {
	now := time.Now().UTC()
	prompted := s.runDueTasks(ctx, now)
	s.runIdleCheck(ctx, now, prompted)
}

// runDueTasks прогоняет просроченные задачи. Возвращает акторов,
// получивших checkTasks на этом тике.
func (s *Scheduler) runDueTasks(ctx context.Context, now time.Time) map[string]bool {
	prompted := make(map[string]bool)

	tasks, err := s.store.DueTasks(ctx, s.worldID, now)
	if err != nil {
		s.log.WithError(err).Error("Failed to fetch due tasks")
		return prompted
	}

	for _, task := range tasks {
		ev := domain.NewEvent(domain.EventCheckTasks, task.CharacterID, s.worldID, domain.CheckTasksParams{
			Reason: ReasonScheduledTask,
			TaskID: task.ID,
		})
		if err := s.sink.HandleEvent(ctx, ev); err != nil {
			// Задача остается просроченной и попробуется на следующем тике
			s.log.WithError(err).WithFields(logrus.Fields{
				"task_id":  task.ID,
				"actor_id": task.CharacterID,
			}).Error("Task prompt failed")
			continue
		}
		if err := s.store.MarkTaskExecuted(ctx, s.worldID, task.ID, now); err != nil {
			s.log.WithError(err).WithField("task_id", task.ID).Error("Failed to stamp task execution")
		}
		prompted[task.CharacterID] = true
	}
	return prompted
}

// runIdleCheck будит сущности без единого содержательного события за окно
// простоя. Акторы, уже разбуженные задачей на этом тике, пропускаются.
func (s *Scheduler) runIdleCheck(ctx context.Context, now time.Time, prompted map[string]bool) {
	entities, err := s.store.ListEntities(ctx, s.worldID)
	if err != nil {
		s.log.WithError(err).Error("Failed to list entities for idle check")
		return
	}

	since := now.Add(-s.idle)
	for _, ent := range entities {
		if prompted[ent.ID] {
			continue
		}
		n, err := s.store.CountActorEventsSince(ctx, s.worldID, ent.ID, since, domain.EventCheckTasks)
		if err != nil {
			s.log.WithError(err).WithField("actor_id", ent.ID).Error("Failed to count recent activity")
			continue
		}
		if n > 0 {
			continue
		}

		ev := domain.NewEvent(domain.EventCheckTasks, ent.ID, s.worldID, domain.CheckTasksParams{
			Reason: ReasonIdle,
		})
		if err := s.sink.HandleEvent(ctx, ev); err != nil {
			s.log.WithError(err).WithField("actor_id", ent.ID).Error("Idle prompt failed")
		}
	}
}
