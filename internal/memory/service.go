package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"simulacra-server/internal/config"
	"simulacra-server/internal/domain"
	"simulacra-server/internal/storage"
	"simulacra-server/pkg/utils"
)

// Фиксированные важности для воспоминаний, рождающихся не из событий
const (
	// "Осмотрелся, ничего интересного" - шум, почти не должен вытеснять настоящие воспоминания
	ImportanceObservation = 0.5

	// Растерянность после сбоя пайплайна - пусть агент ее помнит наравне с обычным событием
	ImportanceConfusion = 1.0
)

// Service превращает события и решения в оцененные текстовые воспоминания
// и собирает из них контекст для оракула.
type Service struct {
	store             storage.Store
	contextLimit      int
	importance        map[domain.EventKind]float64
	defaultImportance float64
}

// NewService строит сервис по таблице важности из конфига.
// Ключи таблицы - строковые виды событий ("speak", "move"...).
func NewService(store storage.Store, cfg config.Memory) *Service {
	imp := make(map[domain.EventKind]float64, len(cfg.Importance))
	for name, score := range cfg.Importance {
		kind := domain.ParseEventKind(name)
		if kind == domain.EventUnknown {
			continue
		}
		imp[kind] = score
	}
	limit := cfg.ContextLimit
	if limit <= 0 {
		limit = domain.DefaultMemoryLimit
	}
	return &Service{
		store:             store,
		contextLimit:      limit,
		importance:        imp,
		defaultImportance: cfg.DefaultImportance,
	}
}

// ImportanceFor возвращает важность вида события по таблице
func (s *Service) ImportanceFor(kind domain.EventKind) float64 {
	if score, ok := s.importance[kind]; ok {
		return score
	}
	return s.defaultImportance
}

// RecordEvent пишет воспоминание о событии его актору.
// Виды-плумбинг (checkTasks, userCommand, characterError) воспоминаний
// не порождают: их суть описывают решения резолвера.
func (s *Service) RecordEvent(ctx context.Context, ev domain.GameEvent) error {
	text, ok := eventText(ev)
	if !ok {
		return nil
	}
	m := domain.NewCharacterMemory(ev.ActorID, ev.WorldID, text, s.ImportanceFor(ev.Kind), []string{ev.ID})
	return s.store.CreateMemory(ctx, m)
}

// DescribeEvent возвращает текст события для контекста оракула.
// Второй результат false для служебных видов, которым в контексте не место.
func DescribeEvent(ev domain.GameEvent) (string, bool) {
	return eventText(ev)
}

// eventText переводит событие в текст от первого лица; второй результат
// false для видов, которые воспоминаний не порождают
func eventText(ev domain.GameEvent) (string, bool) {
	switch p := ev.Params.(type) {
	case domain.MoveParams:
		return fmt.Sprintf("Moved from %s to %s", fmtVec(p.From), fmtVec(p.To)), true
	case domain.SpeakParams:
		return fmt.Sprintf("Said %q (volume %.1f)", p.Message, p.Volume), true
	case domain.HeardParams:
		return fmt.Sprintf("Heard %s say %q (%.1f units away)", p.SpeakerID, p.Message, p.Distance), true
	case domain.PickupParams:
		return fmt.Sprintf("Picked up %s (%s)", p.Item.AssetID, p.Item.Description), true
	case domain.DropParams:
		return fmt.Sprintf("Dropped %s at %s", p.AssetID, fmtVec(p.Position)), true
	case domain.SpawnParams:
		return fmt.Sprintf("Appeared in the world at %s", fmtVec(p.Position)), true
	default:
		return "", false
	}
}

func fmtVec(v domain.Vec3) string {
	return fmt.Sprintf("(%.1f, %.1f, %.1f)", v.X, v.Y, v.Z)
}

// RecordDecision пишет итоговое воспоминание обработанной команды:
// инструкция + решение + обоснование, со ссылками на порожденные события.
func (s *Service) RecordDecision(ctx context.Context, actorID, worldID, instruction string, d *domain.Decision, eventIDs []string) error {
	var text string
	if d == nil {
		text = fmt.Sprintf("Was told %q but found nothing actionable to do", instruction)
	} else {
		text = fmt.Sprintf("Was told %q and decided to %s", instruction, d.Kind)
		if d.Reasoning != "" {
			text += ". Reasoning: " + d.Reasoning
		}
	}
	importance := s.defaultImportance
	if d != nil {
		importance = s.ImportanceFor(domain.ParseEventKind(d.Kind.String()))
	}
	m := domain.NewCharacterMemory(actorID, worldID, text, importance, eventIDs)
	return s.store.CreateMemory(ctx, m)
}

// RecordObservation пишет служебное воспоминание с заданной важностью
// ("observed nothing", "confused", "decided to wait")
func (s *Service) RecordObservation(ctx context.Context, actorID, worldID, text string, importance float64) error {
	m := domain.NewCharacterMemory(actorID, worldID, text, importance, nil)
	return s.store.CreateMemory(ctx, m)
}

// ContextFor собирает топ воспоминаний в текст для оракула:
// по строке на воспоминание, важные первыми.
func (s *Service) ContextFor(ctx context.Context, worldID, characterID string, now time.Time) (string, error) {
	memories, err := s.store.TopMemories(ctx, worldID, characterID, s.contextLimit)
	if err != nil {
		return "", err
	}
	if len(memories) == 0 {
		return "", nil
	}
	var b strings.Builder
	for i, m := range memories {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- [%s] %s (importance %.1f)", utils.RelativeAge(m.CreatedAt, now), m.MemoryText, m.Importance)
	}
	return b.String(), nil
}
