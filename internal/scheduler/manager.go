package scheduler

import (
	"sync"
	"time"

	"simulacra-server/internal/storage"
	"simulacra-server/pkg/logger"
)

// Manager держит по шедулеру на активный мир. Мир получает свой шедулер
// при первом Ensure и теряет его только при остановке сервера.
type Manager struct {
	store storage.Store
	tick  time.Duration
	idle  time.Duration

	mu         sync.Mutex
	schedulers map[string]*Scheduler
}

func NewManager(store storage.Store, tick, idleWindow time.Duration) *Manager {
	return &Manager{
		store:      store,
		tick:       tick,
		idle:       idleWindow,
		schedulers: make(map[string]*Scheduler),
	}
}

// Ensure запускает шедулер мира, если он еще не запущен
func (m *Manager) Ensure(worldID string, sink EventSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedulers[worldID]; ok {
		return
	}
	s := New(worldID, m.store, sink, m.tick, m.idle)
	m.schedulers[worldID] = s
	s.Start()
}

// StopAll останавливает шедулеры всех миров и дожидается тиков в работе
func (m *Manager) StopAll() {
	m.mu.Lock()
	stopping := make([]*Scheduler, 0, len(m.schedulers))
	for _, s := range m.schedulers {
		stopping = append(stopping, s)
	}
	m.schedulers = make(map[string]*Scheduler)
	m.mu.Unlock()

	for _, s := range stopping {
		s.Stop()
	}
	if len(stopping) > 0 {
		logger.WithComponent("scheduler").Infof("Stopped %d world scheduler(s)", len(stopping))
	}
}
