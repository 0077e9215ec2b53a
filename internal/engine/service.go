package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"simulacra-server/internal/memory"
	"simulacra-server/internal/oracle"
	"simulacra-server/internal/storage"
	"simulacra-server/pkg/logger"
)

// World - движок мира вместе с его резолвером
type World struct {
	Engine   *Engine
	Resolver *Resolver
}

// Service владеет всеми активными мирами процесса. Мир поднимается при
// первом обращении (обычно это join) и живет до остановки сервера.
type Service struct {
	store  storage.Store
	memory *memory.Service
	oracle oracle.Oracle
	hub    Broadcaster

	mu     sync.RWMutex
	worlds map[string]*World

	log *logrus.Entry
}

func NewService(store storage.Store, mem *memory.Service, orc oracle.Oracle, hub Broadcaster) *Service {
	return &Service{
		store:  store,
		memory: mem,
		oracle: orc,
		hub:    hub,
		worlds: make(map[string]*World),
		log:    logger.WithComponent("game_service"),
	}
}

// EnsureWorld возвращает мир, поднимая его из хранилища при первом обращении.
// Конкурентные вызовы для одного ID получают один и тот же экземпляр.
func (s *Service) EnsureWorld(ctx context.Context, worldID string) (*World, error) {
	s.mu.RLock()
	w, ok := s.worlds[worldID]
	s.mu.RUnlock()
	if ok {
		return w, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.worlds[worldID]; ok {
		return w, nil
	}

	eng, err := NewEngine(ctx, worldID, s.store, s.memory, s.hub)
	if err != nil {
		return nil, err
	}
	w = &World{
		Engine:   eng,
		Resolver: NewResolver(eng, s.store, s.memory, s.oracle),
	}
	s.worlds[worldID] = w

	s.log.WithField("world_id", worldID).Info("World started")
	return w, nil
}

// World возвращает уже поднятый мир; false, если такого нет
func (s *Service) World(worldID string) (*World, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.worlds[worldID]
	return w, ok
}

// WorldIDs - отсортированный список активных миров
func (s *Service) WorldIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.worlds))
	for id := range s.worlds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
