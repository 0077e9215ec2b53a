package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"simulacra-server/internal/archive"
	"simulacra-server/internal/config"
	"simulacra-server/internal/engine"
	"simulacra-server/internal/memory"
	"simulacra-server/internal/network"
	"simulacra-server/internal/oracle"
	"simulacra-server/internal/scheduler"
	"simulacra-server/internal/server"
	"simulacra-server/internal/storage"
	"simulacra-server/internal/version"
	"simulacra-server/pkg/logger"
)

func init() {
	logger.Init()
}

func main() {
	// 1. Парсинг конфигурации
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to YAML config (defaults apply if empty)")
	flag.Parse()

	logger.Log.Info("Starting Simulacra...")
	logger.Log.Info(version.String())

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Log.Fatal("Failed to load config: ", err)
	}
	// Порт из окружения перекрывает конфиг (удобно в контейнерах)
	if raw := os.Getenv("SIMULACRA_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			logger.Log.Fatalf("Bad SIMULACRA_PORT %q: %v", raw, err)
		}
		cfg.Server.Port = port
	}

	// 2. Хранилище
	store, err := storage.OpenSQLite(cfg.Storage.Path)
	if err != nil {
		logger.Log.Fatal("Failed to open storage: ", err)
	}

	// 3. Оракул решений: внешний по URL или встроенный скриптовый
	var orc oracle.Oracle
	if cfg.Oracle.URL != "" {
		orc = oracle.NewHTTP(cfg.Oracle.URL, cfg.OracleTimeout())
		logger.Log.Infof("Oracle: external at %s", cfg.Oracle.URL)
	} else {
		orc = oracle.NewScripted()
		logger.Log.Warn("Oracle: built-in scripted (oracle.url is empty)")
	}

	// 4. Ядро
	hub := network.NewHub(cfg.Server.SendBuffer)
	mem := memory.NewService(store, cfg.Memory)
	service := engine.NewService(store, mem, orc, hub)
	sched := scheduler.NewManager(store, cfg.SchedulerTick(), cfg.IdleWindow())

	// Миры, жившие до рестарта, поднимаются сразу: их задачи и автономность
	// не должны ждать первого зрителя
	resumeWorlds(service, sched, store)

	// Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 5. Запуск сервера
	srv := server.New(service, store, hub, sched, cfg.Server.Port)

	go func() {
		if err := srv.Run(); err != nil {
			logger.Log.Fatal("Server start error: ", err)
		}
	}()

	<-stop
	logger.Log.Info("Shutting down...")

	// Порядок важен: сперва глушим генераторы событий, потом снимаем
	// слепок журналов, и только затем закрываем вход и хранилище.
	sched.StopAll()

	if cfg.Archive.Dir != "" {
		archiveWorlds(service, store, cfg.Archive.Dir)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Warn("HTTP shutdown failed")
	}
	if err := store.Close(); err != nil {
		logger.Log.WithError(err).Warn("Storage close failed")
	}

	logger.Log.Info("Done.")
}

// resumeWorlds поднимает все миры, у которых в хранилище есть сущности
func resumeWorlds(service *engine.Service, sched *scheduler.Manager, store storage.Store) {
	ctx := context.Background()
	ids, err := store.ListWorldIDs(ctx)
	if err != nil {
		logger.Log.WithError(err).Warn("Could not list persisted worlds, starting empty")
		return
	}
	for _, id := range ids {
		world, err := service.EnsureWorld(ctx, id)
		if err != nil {
			logger.Log.WithError(err).Errorf("Failed to resume world %s", id)
			continue
		}
		sched.Ensure(id, world.Resolver)
	}
	if len(ids) > 0 {
		logger.Log.Infof("Resumed %d world(s)", len(ids))
	}
}

// archiveWorlds сохраняет полный журнал каждого активного мира в zstd-архив
func archiveWorlds(service *engine.Service, store storage.Store, dir string) {
	arc, err := archive.NewService(dir)
	if err != nil {
		logger.Log.WithError(err).Error("Archive directory unavailable, skipping")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, worldID := range service.WorldIDs() {
		events, err := store.ListAllEvents(ctx, worldID)
		if err != nil {
			logger.Log.WithError(err).Errorf("Failed to read journal of %s", worldID)
			continue
		}
		path, err := arc.Save(worldID, events)
		if err != nil {
			logger.Log.WithError(err).Errorf("Failed to archive %s", worldID)
			continue
		}
		logger.Log.Infof("Archived %d event(s) of %s to %s", len(events), worldID, path)
	}
}
