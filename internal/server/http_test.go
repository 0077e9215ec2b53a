package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"simulacra-server/internal/config"
	"simulacra-server/internal/domain"
	"simulacra-server/internal/engine"
	"simulacra-server/internal/memory"
	"simulacra-server/internal/network"
	"simulacra-server/internal/oracle"
	"simulacra-server/internal/scheduler"
	"simulacra-server/internal/storage/storagetest"
	"simulacra-server/pkg/api"
	"simulacra-server/pkg/logger"
)

func init() {
	logger.InitSilent()
}

// newTestServer собирает Server на фейковом хранилище и скриптовом оракуле.
// Тик шедулера отодвинут на час, чтобы автономность не мешала проверкам.
func newTestServer(t *testing.T) (*Server, *storagetest.Fake) {
	t.Helper()
	store := storagetest.New()
	hub := network.NewHub(8)
	mem := memory.NewService(store, config.Default().Memory)
	service := engine.NewService(store, mem, oracle.NewScripted(), hub)
	sched := scheduler.NewManager(store, time.Hour, time.Hour)
	t.Cleanup(sched.StopAll)

	return &Server{service: service, store: store, hub: hub, sched: sched}, store
}

func join(t *testing.T, srv *Server, actorID, worldID string) api.WorldStateView {
	t.Helper()
	state, err := srv.JoinWorld(context.Background(), api.JoinPayload{ActorID: actorID, WorldID: worldID})
	if err != nil {
		t.Fatalf("JoinWorld(%s, %s) failed: %v", actorID, worldID, err)
	}
	return state
}

func TestServer_JoinWorld(t *testing.T) {
	srv, store := newTestServer(t)

	state := join(t, srv, "alice", "w1")
	if state.WorldID != "w1" {
		t.Errorf("state world = %q, want w1", state.WorldID)
	}
	if len(state.Entities) != 1 || state.Entities[0].ID != "alice" {
		t.Fatalf("state entities = %+v, want alice", state.Entities)
	}
	if got := len(store.EventsOfKind(domain.EventSpawn)); got != 1 {
		t.Errorf("spawn events = %d, want 1", got)
	}

	// Повторный join той же сущности идемпотентен
	again := join(t, srv, "alice", "w1")
	if len(again.Entities) != 1 {
		t.Errorf("entities after rejoin = %d, want 1", len(again.Entities))
	}
	if got := len(store.EventsOfKind(domain.EventSpawn)); got != 1 {
		t.Errorf("spawn events after rejoin = %d, want 1", got)
	}
}

func TestServer_CommandRoutesToResolver(t *testing.T) {
	srv, store := newTestServer(t)
	join(t, srv, "alice", "w1")

	err := srv.Command(context.Background(), api.CommandPayload{
		ActorID: "alice",
		WorldID: "w1",
		Text:    "say hello",
	})
	if err != nil {
		t.Fatalf("Command failed: %v", err)
	}

	// След команды и само событие речи
	if got := len(store.EventsOfKind(domain.EventUserCommand)); got != 1 {
		t.Errorf("userCommand events = %d, want 1", got)
	}
	speaks := store.EventsOfKind(domain.EventSpeak)
	if len(speaks) != 1 {
		t.Fatalf("speak events = %d, want 1", len(speaks))
	}
	if p := speaks[0].Params.(domain.SpeakParams); p.Message != "hello" {
		t.Errorf("spoken message = %q, want hello", p.Message)
	}
}

func TestServer_CommandUnknownWorld(t *testing.T) {
	srv, _ := newTestServer(t)

	err := srv.Command(context.Background(), api.CommandPayload{
		ActorID: "alice",
		WorldID: "never-joined",
		Text:    "say hi",
	})
	if err == nil {
		t.Fatal("expected error for command into unknown world")
	}
}

// --- Admin REST ---

func newAdminMux(t *testing.T) (*http.ServeMux, *Server, *storagetest.Fake) {
	t.Helper()
	srv, store := newTestServer(t)
	mux := http.NewServeMux()
	NewAdminHandler(srv.service, srv.store).RegisterRoutes(mux)
	return mux, srv, store
}

func doJSON(t *testing.T, mux *http.ServeMux, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAdmin_ListWorlds(t *testing.T) {
	mux, srv, _ := newAdminMux(t)

	// Пусто - это [], не null
	rec := doJSON(t, mux, http.MethodGet, "/debug/worlds", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("empty worlds body = %q, want []", got)
	}

	join(t, srv, "alice", "w1")
	join(t, srv, "bob", "w1")

	rec = doJSON(t, mux, http.MethodGet, "/debug/worlds", nil)
	var summary []struct {
		WorldID     string `json:"world_id"`
		EntityCount int    `json:"entity_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(summary) != 1 || summary[0].WorldID != "w1" || summary[0].EntityCount != 2 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestAdmin_DumpEntities(t *testing.T) {
	mux, srv, _ := newAdminMux(t)
	join(t, srv, "alice", "w1")

	rec := doJSON(t, mux, http.MethodGet, "/debug/entities?world=w1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var entities []domain.Entity
	if err := json.Unmarshal(rec.Body.Bytes(), &entities); err != nil {
		t.Fatalf("decode entities: %v", err)
	}
	if len(entities) != 1 || entities[0].ID != "alice" {
		t.Errorf("entities = %+v", entities)
	}

	rec = doJSON(t, mux, http.MethodGet, "/debug/entities?world=ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown world status = %d, want 404", rec.Code)
	}
}

func TestAdmin_CreateAndDeactivateTask(t *testing.T) {
	mux, srv, store := newAdminMux(t)
	join(t, srv, "alice", "w1")

	rec := doJSON(t, mux, http.MethodPost, "/api/tasks", map[string]any{
		"characterId":     "alice",
		"worldId":         "w1",
		"description":     "проверить склад",
		"intervalSeconds": 60,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.ScheduledTask
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	stored, ok := store.Task(created.ID)
	if !ok || !stored.IsActive || stored.CharacterID != "alice" {
		t.Fatalf("stored task = %+v, ok=%v", stored, ok)
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/tasks/deactivate", map[string]any{
		"worldId": "w1",
		"taskId":  created.ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate status = %d", rec.Code)
	}
	stored, _ = store.Task(created.ID)
	if stored.IsActive {
		t.Error("task still active after deactivate")
	}
}

func TestAdmin_CreateTaskValidation(t *testing.T) {
	mux, _, _ := newAdminMux(t)

	// Не-POST отбрасывается
	rec := doJSON(t, mux, http.MethodGet, "/api/tasks", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}

	// Интервал обязан быть положительным
	rec = doJSON(t, mux, http.MethodPost, "/api/tasks", map[string]any{
		"characterId":     "alice",
		"worldId":         "w1",
		"description":     "x",
		"intervalSeconds": 0,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero interval status = %d, want 400", rec.Code)
	}
}

func TestAdmin_DeleteEntity(t *testing.T) {
	mux, srv, store := newAdminMux(t)
	join(t, srv, "alice", "w1")
	join(t, srv, "bob", "w1")

	rec := doJSON(t, mux, http.MethodPost, "/api/entities/delete", map[string]any{
		"worldId":  "w1",
		"entityId": "alice",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body.String())
	}

	// Из живого мира и из хранилища
	world, _ := srv.service.World("w1")
	for _, e := range world.Engine.SnapshotEntities() {
		if e.ID == "alice" {
			t.Error("alice still in world snapshot")
		}
	}
	got, err := store.GetEntity(context.Background(), "w1", "alice")
	if err != nil || got != nil {
		t.Errorf("stored entity = %+v, err = %v; want gone", got, err)
	}
}
