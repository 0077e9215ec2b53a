package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"simulacra-server/internal/domain"
)

// SQLiteStore - реализация Store поверх одного файла SQLite.
// Записи синхронные: движок применяет событие в память только после
// того, как строка легла на диск (persist-then-apply), поэтому никакой
// фоновой очереди здесь нет.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite открывает (и при необходимости создает) базу по пути.
// Путь ":memory:" дает эфемерную базу для стендов и тестов.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Один коннект: пишущая сторона и так одна, а драйвер без этого
	// ловит SQLITE_BUSY на параллельных читателях
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	// WAL заметно быстрее для append-нагрузки журнала событий
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			id TEXT NOT NULL,
			world_id TEXT NOT NULL,
			name TEXT NOT NULL,
			pos_x REAL NOT NULL,
			pos_y REAL NOT NULL,
			pos_z REAL NOT NULL,
			body_parts TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (world_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			world_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			params TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_world_created ON events(world_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_events_world_actor ON events(world_id, actor_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			character_id TEXT NOT NULL,
			world_id TEXT NOT NULL,
			memory_text TEXT NOT NULL,
			importance REAL NOT NULL,
			created_at INTEGER NOT NULL,
			related_event_ids TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_memories_rank ON memories(world_id, character_id, importance DESC, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS scheduled_tasks (
			id TEXT PRIMARY KEY,
			character_id TEXT NOT NULL,
			world_id TEXT NOT NULL,
			description TEXT NOT NULL,
			interval_seconds INTEGER NOT NULL,
			last_executed INTEGER NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_due ON scheduled_tasks(world_id, is_active, last_executed);`,
		`CREATE TABLE IF NOT EXISTS item_instances (
			id TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			world_id TEXT NOT NULL,
			asset_id TEXT NOT NULL,
			description TEXT NOT NULL,
			rel_x REAL NOT NULL,
			rel_y REAL NOT NULL,
			rel_z REAL NOT NULL,
			PRIMARY KEY (world_id, entity_id, id)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// wrap упаковывает отказ SQLite в доменную ошибку хранилища
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.NewPersistenceError(op, err)
}

// --- СУЩНОСТИ ---

func (s *SQLiteStore) UpsertEntity(ctx context.Context, e *domain.Entity) error {
	parts, err := json.Marshal(e.BodyParts)
	if err != nil {
		return wrap("upsert entity", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (id, world_id, name, pos_x, pos_y, pos_z, body_parts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (world_id, id) DO UPDATE SET
			name = excluded.name,
			pos_x = excluded.pos_x,
			pos_y = excluded.pos_y,
			pos_z = excluded.pos_z,
			body_parts = excluded.body_parts`,
		e.ID, e.WorldID, e.Name, e.Position.X, e.Position.Y, e.Position.Z, string(parts), time.Now().UnixMilli())
	return wrap("upsert entity", err)
}

func (s *SQLiteStore) GetEntity(ctx context.Context, worldID, id string) (*domain.Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, world_id, name, pos_x, pos_y, pos_z, body_parts
		FROM entities WHERE world_id = ? AND id = ?`, worldID, id)

	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get entity", err)
	}

	items, err := s.listItems(ctx, worldID, id)
	if err != nil {
		return nil, err
	}
	e.Items = items
	return e, nil
}

func (s *SQLiteStore) ListEntities(ctx context.Context, worldID string) ([]*domain.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, world_id, name, pos_x, pos_y, pos_z, body_parts
		FROM entities WHERE world_id = ? ORDER BY id`, worldID)
	if err != nil {
		return nil, wrap("list entities", err)
	}
	defer rows.Close()

	var out []*domain.Entity
	byID := map[string]*domain.Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, wrap("list entities", err)
		}
		e.Items = []domain.ItemInstance{}
		out = append(out, e)
		byID[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list entities", err)
	}

	// Инвентари одним запросом на мир, группируем в памяти
	itemRows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, id, asset_id, description, rel_x, rel_y, rel_z
		FROM item_instances WHERE world_id = ?`, worldID)
	if err != nil {
		return nil, wrap("list entities", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var ownerID string
		var item domain.ItemInstance
		if err := itemRows.Scan(&ownerID, &item.ID, &item.AssetID, &item.Description,
			&item.RelativePosition.X, &item.RelativePosition.Y, &item.RelativePosition.Z); err != nil {
			return nil, wrap("list entities", err)
		}
		if owner, ok := byID[ownerID]; ok {
			owner.Items = append(owner.Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, wrap("list entities", err)
	}
	return out, nil
}

func (s *SQLiteStore) UpdateEntityPosition(ctx context.Context, worldID, id string, pos domain.Vec3) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE entities SET pos_x = ?, pos_y = ?, pos_z = ?
		WHERE world_id = ? AND id = ?`, pos.X, pos.Y, pos.Z, worldID, id)
	return wrap("update entity position", err)
}

func (s *SQLiteStore) DeleteEntityCascade(ctx context.Context, worldID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("delete entity", err)
	}
	defer tx.Rollback()

	steps := []struct {
		query string
		args  []any
	}{
		{`DELETE FROM item_instances WHERE world_id = ? AND entity_id = ?`, []any{worldID, id}},
		{`DELETE FROM memories WHERE world_id = ? AND character_id = ?`, []any{worldID, id}},
		{`DELETE FROM scheduled_tasks WHERE world_id = ? AND character_id = ?`, []any{worldID, id}},
		{`DELETE FROM entities WHERE world_id = ? AND id = ?`, []any{worldID, id}},
	}
	for _, st := range steps {
		if _, err := tx.ExecContext(ctx, st.query, st.args...); err != nil {
			return wrap("delete entity", err)
		}
	}
	return wrap("delete entity", tx.Commit())
}

func (s *SQLiteStore) ListWorldIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT world_id FROM entities ORDER BY world_id`)
	if err != nil {
		return nil, wrap("list world ids", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrap("list world ids", err)
		}
		out = append(out, id)
	}
	return out, wrap("list world ids", rows.Err())
}

// scanEntity читает строку entities; rows и QueryRow оба подходят
func scanEntity(row interface{ Scan(...any) error }) (*domain.Entity, error) {
	var e domain.Entity
	var parts string
	if err := row.Scan(&e.ID, &e.WorldID, &e.Name,
		&e.Position.X, &e.Position.Y, &e.Position.Z, &parts); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(parts), &e.BodyParts); err != nil {
		return nil, fmt.Errorf("corrupt body_parts for %s: %w", e.ID, err)
	}
	return &e, nil
}

// --- СОБЫТИЯ ---

func (s *SQLiteStore) AppendEvent(ctx context.Context, ev domain.GameEvent) error {
	params := []byte("{}")
	if ev.Params != nil {
		raw, err := json.Marshal(ev.Params)
		if err != nil {
			return wrap("append event", err)
		}
		params = raw
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, world_id, kind, actor_id, created_at, params)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.WorldID, ev.Kind.String(), ev.ActorID, ev.CreatedAt.UnixMilli(), string(params))
	return wrap("append event", err)
}

func (s *SQLiteStore) ListRecentEvents(ctx context.Context, worldID string, limit int) ([]domain.GameEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, world_id, kind, actor_id, created_at, params
		FROM events WHERE world_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, worldID, limit)
	if err != nil {
		return nil, wrap("list events", err)
	}
	defer rows.Close()

	var out []domain.GameEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, wrap("list events", err)
		}
		out = append(out, ev)
	}
	return out, wrap("list events", rows.Err())
}

func (s *SQLiteStore) ListAllEvents(ctx context.Context, worldID string) ([]domain.GameEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, world_id, kind, actor_id, created_at, params
		FROM events WHERE world_id = ?
		ORDER BY created_at ASC, id ASC`, worldID)
	if err != nil {
		return nil, wrap("list all events", err)
	}
	defer rows.Close()

	var out []domain.GameEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, wrap("list all events", err)
		}
		out = append(out, ev)
	}
	return out, wrap("list all events", rows.Err())
}

func (s *SQLiteStore) CountActorEventsSince(ctx context.Context, worldID, actorID string, since time.Time, exclude domain.EventKind) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events
		WHERE world_id = ? AND actor_id = ? AND created_at >= ? AND kind != ?`,
		worldID, actorID, since.UnixMilli(), exclude.String()).Scan(&n)
	return n, wrap("count actor events", err)
}

func scanEvent(rows *sql.Rows) (domain.GameEvent, error) {
	var ev domain.GameEvent
	var kind, params string
	var createdAt int64
	if err := rows.Scan(&ev.ID, &ev.WorldID, &kind, &ev.ActorID, &createdAt, &params); err != nil {
		return ev, err
	}
	ev.Kind = domain.ParseEventKind(kind)
	ev.CreatedAt = time.UnixMilli(createdAt).UTC()
	decoded, err := domain.DecodeEventParams(ev.Kind, json.RawMessage(params))
	if err != nil {
		return ev, fmt.Errorf("corrupt params for event %s: %w", ev.ID, err)
	}
	ev.Params = decoded
	return ev, nil
}

// --- ВОСПОМИНАНИЯ ---

func (s *SQLiteStore) CreateMemory(ctx context.Context, m domain.CharacterMemory) error {
	related, err := json.Marshal(m.RelatedEventIDs)
	if err != nil {
		return wrap("create memory", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (id, character_id, world_id, memory_text, importance, created_at, related_event_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.CharacterID, m.WorldID, m.MemoryText, m.Importance, m.CreatedAt.UnixMilli(), string(related))
	return wrap("create memory", err)
}

func (s *SQLiteStore) TopMemories(ctx context.Context, worldID, characterID string, limit int) ([]domain.CharacterMemory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, character_id, world_id, memory_text, importance, created_at, related_event_ids
		FROM memories WHERE world_id = ? AND character_id = ?
		ORDER BY importance DESC, created_at DESC LIMIT ?`, worldID, characterID, limit)
	if err != nil {
		return nil, wrap("top memories", err)
	}
	defer rows.Close()

	var out []domain.CharacterMemory
	for rows.Next() {
		var m domain.CharacterMemory
		var createdAt int64
		var related string
		if err := rows.Scan(&m.ID, &m.CharacterID, &m.WorldID, &m.MemoryText,
			&m.Importance, &createdAt, &related); err != nil {
			return nil, wrap("top memories", err)
		}
		m.CreatedAt = time.UnixMilli(createdAt).UTC()
		if err := json.Unmarshal([]byte(related), &m.RelatedEventIDs); err != nil {
			return nil, wrap("top memories", fmt.Errorf("corrupt related_event_ids for %s: %w", m.ID, err))
		}
		out = append(out, m)
	}
	return out, wrap("top memories", rows.Err())
}

// --- ЗАДАЧИ ---

func (s *SQLiteStore) CreateTask(ctx context.Context, t domain.ScheduledTask) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (id, character_id, world_id, description, interval_seconds, last_executed, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.CharacterID, t.WorldID, t.Description, t.IntervalSeconds, t.LastExecuted.UnixMilli(), boolToInt(t.IsActive))
	return wrap("create task", err)
}

func (s *SQLiteStore) DueTasks(ctx context.Context, worldID string, now time.Time) ([]domain.ScheduledTask, error) {
	// Времена в миллисекундах, интервал в секундах - приводим к ms прямо в SQL
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, character_id, world_id, description, interval_seconds, last_executed, is_active
		FROM scheduled_tasks
		WHERE world_id = ? AND is_active = 1 AND (? - last_executed) >= interval_seconds * 1000
		ORDER BY last_executed`, worldID, now.UnixMilli())
	if err != nil {
		return nil, wrap("due tasks", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *SQLiteStore) MarkTaskExecuted(ctx context.Context, worldID, taskID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET last_executed = ?
		WHERE world_id = ? AND id = ?`, at.UnixMilli(), worldID, taskID)
	return wrap("mark task executed", err)
}

func (s *SQLiteStore) SetTaskActive(ctx context.Context, worldID, taskID string, active bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET is_active = ?
		WHERE world_id = ? AND id = ?`, boolToInt(active), worldID, taskID)
	return wrap("set task active", err)
}

func (s *SQLiteStore) ListActiveTasks(ctx context.Context, worldID, characterID string) ([]domain.ScheduledTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, character_id, world_id, description, interval_seconds, last_executed, is_active
		FROM scheduled_tasks
		WHERE world_id = ? AND character_id = ? AND is_active = 1
		ORDER BY last_executed`, worldID, characterID)
	if err != nil {
		return nil, wrap("list active tasks", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func scanTasks(rows *sql.Rows) ([]domain.ScheduledTask, error) {
	var out []domain.ScheduledTask
	for rows.Next() {
		var t domain.ScheduledTask
		var lastExecuted int64
		var active int
		if err := rows.Scan(&t.ID, &t.CharacterID, &t.WorldID, &t.Description,
			&t.IntervalSeconds, &lastExecuted, &active); err != nil {
			return nil, wrap("scan tasks", err)
		}
		t.LastExecuted = time.UnixMilli(lastExecuted).UTC()
		t.IsActive = active != 0
		out = append(out, t)
	}
	return out, wrap("scan tasks", rows.Err())
}

// --- ПРЕДМЕТЫ ---

func (s *SQLiteStore) CreateItemInstance(ctx context.Context, worldID, entityID string, item domain.ItemInstance) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO item_instances (id, entity_id, world_id, asset_id, description, rel_x, rel_y, rel_z)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, entityID, worldID, item.AssetID, item.Description,
		item.RelativePosition.X, item.RelativePosition.Y, item.RelativePosition.Z)
	return wrap("create item", err)
}

func (s *SQLiteStore) DeleteItemInstance(ctx context.Context, worldID, entityID, instanceID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM item_instances
		WHERE world_id = ? AND entity_id = ? AND id = ?`, worldID, entityID, instanceID)
	return wrap("delete item", err)
}

func (s *SQLiteStore) listItems(ctx context.Context, worldID, entityID string) ([]domain.ItemInstance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, asset_id, description, rel_x, rel_y, rel_z
		FROM item_instances WHERE world_id = ? AND entity_id = ?`, worldID, entityID)
	if err != nil {
		return nil, wrap("list items", err)
	}
	defer rows.Close()

	items := []domain.ItemInstance{}
	for rows.Next() {
		var item domain.ItemInstance
		if err := rows.Scan(&item.ID, &item.AssetID, &item.Description,
			&item.RelativePosition.X, &item.RelativePosition.Y, &item.RelativePosition.Z); err != nil {
			return nil, wrap("list items", err)
		}
		items = append(items, item)
	}
	return items, wrap("list items", rows.Err())
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
