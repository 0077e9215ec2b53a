package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof" // Profiling

	"simulacra-server/internal/engine"
	"simulacra-server/internal/network"
	"simulacra-server/internal/scheduler"
	"simulacra-server/internal/storage"
	"simulacra-server/internal/version"
	"simulacra-server/pkg/api"
	"simulacra-server/pkg/logger"
)

// Server - HTTP/WebSocket обвязка ядра. Держит вместе сервис миров,
// хаб рассылки и менеджер шедулеров: join через этот сервер не только
// заводит сущность, но и запускает автономность мира.
type Server struct {
	service *engine.Service
	store   storage.Store
	hub     *network.Hub
	sched   *scheduler.Manager

	httpSrv *http.Server
}

func New(service *engine.Service, store storage.Store, hub *network.Hub, sched *scheduler.Manager, port int) *Server {
	s := &Server{
		service: service,
		store:   store,
		hub:     hub,
		sched:   sched,
	}

	mux := http.DefaultServeMux

	// Регистрируем роуты
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", enableCORS(s.handleHealth))
	mux.HandleFunc("/version", enableCORS(s.handleVersion))

	admin := NewAdminHandler(service, store)
	admin.RegisterRoutes(mux)

	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	return s
}

// Run запускает HTTP сервер и блокируется до его остановки
func (s *Server) Run() error {
	logger.Log.Infof("Simulacra server running on %s", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown мягко гасит HTTP-слушатель и ждет обычные запросы.
// Websocket-соединения перехвачены из-под http.Server и его Shutdown
// не ждут: клиенты отваливаются по закрытию процесса.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Разрешаем запросы с фронтенда
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		next(w, r)
	}
}

// handleWS обрабатывает подключение по WebSocket
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("Upgrade error:", err)
		return
	}

	client := NewClient(s, conn)

	// Запускаем пампы
	go client.writePump()
	go client.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		logger.Log.WithError(err).Debug("health write failed")
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(version.Info()); err != nil {
		logger.Log.WithError(err).Debug("version write failed")
	}
}

// --- ClientCore ---

// JoinWorld поднимает мир (и его шедулер) и идемпотентно заводит сущность
func (s *Server) JoinWorld(ctx context.Context, p api.JoinPayload) (api.WorldStateView, error) {
	world, err := s.service.EnsureWorld(ctx, p.WorldID)
	if err != nil {
		return api.WorldStateView{}, err
	}
	// Автономность мира живет, пока жив сервер, даже когда все зрители ушли
	s.sched.Ensure(p.WorldID, world.Resolver)

	if _, err := world.Engine.JoinEntity(ctx, p.ActorID, p.Name); err != nil {
		return api.WorldStateView{}, err
	}
	return world.Engine.StateView(), nil
}

// Command направляет инструкцию в резолвер ее мира
func (s *Server) Command(ctx context.Context, p api.CommandPayload) error {
	world, ok := s.service.World(p.WorldID)
	if !ok {
		// Соединение прошло join, значит мир был; пропал - это баг
		return fmt.Errorf("world %s is not running", p.WorldID)
	}
	return world.Resolver.ProcessCommand(ctx, p.ActorID, p.Text, p.Source)
}

func (s *Server) Subscribe(connID, worldID string) <-chan api.ServerMessage {
	return s.hub.Register(connID, worldID)
}

func (s *Server) Unsubscribe(connID string) {
	s.hub.Unregister(connID)
}
