package server

import (
	"encoding/json"
	"net/http"

	"simulacra-server/internal/domain"
	"simulacra-server/internal/engine"
	"simulacra-server/internal/storage"
	"simulacra-server/pkg/logger"
)

// AdminHandler - служебный REST поверх ядра: обзор миров для отладки
// и операции, которым не нужен websocket (задачи, удаление сущностей)
type AdminHandler struct {
	Service *engine.Service
	Store   storage.Store
}

func NewAdminHandler(s *engine.Service, store storage.Store) *AdminHandler {
	return &AdminHandler{Service: s, Store: store}
}

// RegisterRoutes регистрирует debug- и api-эндпоинты
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/worlds", h.handleListWorlds)
	mux.HandleFunc("/debug/entities", h.handleDumpEntities)
	mux.HandleFunc("/api/tasks", h.handleCreateTask)
	mux.HandleFunc("/api/tasks/deactivate", h.handleDeactivateTask)
	mux.HandleFunc("/api/entities/delete", h.handleDeleteEntity)
}

// /debug/worlds - список активных миров и их наполнение
func (h *AdminHandler) handleListWorlds(w http.ResponseWriter, r *http.Request) {
	type WorldSummary struct {
		WorldID      string `json:"world_id"`
		EntityCount  int    `json:"entity_count"`
		RecentEvents int    `json:"recent_events"`
	}

	summary := []WorldSummary{}
	for _, id := range h.Service.WorldIDs() {
		world, ok := h.Service.World(id)
		if !ok {
			continue
		}
		summary = append(summary, WorldSummary{
			WorldID:      id,
			EntityCount:  len(world.Engine.SnapshotEntities()),
			RecentEvents: len(world.Engine.RecentEvents()),
		})
	}

	writeJSON(w, summary)
}

// /debug/entities?world=w1 - дамп всех сущностей мира
func (h *AdminHandler) handleDumpEntities(w http.ResponseWriter, r *http.Request) {
	worldID := r.URL.Query().Get("world")
	world, ok := h.Service.World(worldID)
	if !ok {
		http.Error(w, "world not found or not active", http.StatusNotFound)
		return
	}

	// Снимки, не живое состояние: дамп можно спокойно сериализовать
	writeJSON(w, world.Engine.SnapshotEntities())
}

// POST /api/tasks - создать периодическую задачу сущности.
// Это тот самый "явный API" для cronjob-промптов: движок и шедулер задач
// не создают, только исполняют.
func (h *AdminHandler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		CharacterID     string `json:"characterId"`
		WorldID         string `json:"worldId"`
		Description     string `json:"description"`
		IntervalSeconds int64  `json:"intervalSeconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	if req.CharacterID == "" || req.WorldID == "" || req.Description == "" || req.IntervalSeconds <= 0 {
		http.Error(w, "characterId, worldId, description and positive intervalSeconds are required", http.StatusBadRequest)
		return
	}

	task := domain.NewScheduledTask(req.CharacterID, req.WorldID, req.Description, req.IntervalSeconds)
	if err := h.Store.CreateTask(r.Context(), task); err != nil {
		logger.Log.WithError(err).Error("Failed to create task")
		http.Error(w, "store failure", http.StatusInternalServerError)
		return
	}
	writeJSON(w, task)
}

// POST /api/tasks/deactivate - мягко выключить задачу (строка остается)
func (h *AdminHandler) handleDeactivateTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		WorldID string `json:"worldId"`
		TaskID  string `json:"taskId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	if req.WorldID == "" || req.TaskID == "" {
		http.Error(w, "worldId and taskId are required", http.StatusBadRequest)
		return
	}

	if err := h.Store.SetTaskActive(r.Context(), req.WorldID, req.TaskID, false); err != nil {
		logger.Log.WithError(err).Error("Failed to deactivate task")
		http.Error(w, "store failure", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "deactivated"})
}

// POST /api/entities/delete - единственный способ убрать сущность из мира.
// Удаление каскадное: воспоминания, задачи и предметы уходят вместе с ней.
func (h *AdminHandler) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		WorldID  string `json:"worldId"`
		EntityID string `json:"entityId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	if req.WorldID == "" || req.EntityID == "" {
		http.Error(w, "worldId and entityId are required", http.StatusBadRequest)
		return
	}

	world, ok := h.Service.World(req.WorldID)
	if !ok {
		// Мир не поднят - чистим только хранилище
		if err := h.Store.DeleteEntityCascade(r.Context(), req.WorldID, req.EntityID); err != nil {
			logger.Log.WithError(err).Error("Failed to delete entity")
			http.Error(w, "store failure", http.StatusInternalServerError)
			return
		}
	} else if err := world.Engine.RemoveEntity(r.Context(), req.EntityID); err != nil {
		logger.Log.WithError(err).Error("Failed to delete entity")
		http.Error(w, "store failure", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "deleted"})
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	// Разрешаем запросы с любого источника (нужно для локального debug_client.html)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	w.Header().Set("Content-Type", "application/json")

	// Если data == nil (например, ни одного мира), возвращаем пустой массив [], а не null
	if data == nil {
		if _, err := w.Write([]byte("[]")); err != nil {
			logger.Log.WithError(err).Debug("debug write failed")
		}
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.WithError(err).Debug("debug encode failed")
	}
}
