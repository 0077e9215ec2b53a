package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"simulacra-server/internal/domain"
	"simulacra-server/internal/engine/handlers"
	"simulacra-server/internal/engine/handlers/actions"
	"simulacra-server/internal/memory"
	"simulacra-server/internal/oracle"
	"simulacra-server/internal/storage"
	"simulacra-server/pkg/logger"
)

// Resolver превращает инструкции в события: аудит, вопрос оракулу,
// маршрутизация решения в хендлер, запись воспоминания. Ошибки одного
// актора гасятся на этой границе событием characterError - чужой кривой
// ввод не должен ронять общий движок. Наружу пробиваются только отказы
// хранилища.
type Resolver struct {
	engine *Engine
	store  storage.Store
	memory *memory.Service
	oracle oracle.Oracle

	handlers map[domain.ActionKind]handlers.HandlerFunc
	log      *logrus.Entry
}

func NewResolver(e *Engine, store storage.Store, mem *memory.Service, orc oracle.Oracle) *Resolver {
	r := &Resolver{
		engine:   e,
		store:    store,
		memory:   mem,
		oracle:   orc,
		handlers: make(map[domain.ActionKind]handlers.HandlerFunc),
		log:      logger.WithWorld("resolver", e.WorldID()),
	}
	r.registerHandlers()
	return r
}

func (r *Resolver) registerHandlers() {
	r.handlers[domain.ActionMove] = handlers.WithParams(actions.HandleMove)
	r.handlers[domain.ActionSpeak] = handlers.WithParams(actions.HandleSpeak)
	r.handlers[domain.ActionPickup] = handlers.WithParams(actions.HandlePickup)
	r.handlers[domain.ActionDrop] = handlers.WithParams(actions.HandleDrop)
	r.handlers[domain.ActionCheckTasks] = handlers.WithParams(actions.HandleCheckTasks)
}

// ProcessCommand - вход для инструкции "актор X, сделай Y".
// Первым делом пишется аудиторское событие userCommand: след команды
// остается даже когда дальше ничего не вышло. Потом оракул, маршрутизация
// решения, события в движок и одно воспоминание об итоге.
func (r *Resolver) ProcessCommand(ctx context.Context, actorID, text, source string) error {
	if source == "" {
		source = domain.CommandSourceUser
	}
	log := r.log.WithFields(logrus.Fields{
		"actor_id": actorID,
		"source":   source,
	})

	audit := domain.NewEvent(domain.EventUserCommand, actorID, r.engine.WorldID(), domain.UserCommandParams{
		Text:   text,
		Source: source,
	})
	if err := r.engine.AddEvent(ctx, audit); err != nil {
		return err
	}

	hctx, err := r.handlerContext(ctx, actorID)
	if err != nil {
		return r.failActor(ctx, actorID, text, err)
	}

	decision, err := r.oracle.Decide(ctx, oracle.Request{
		ActorID: actorID,
		WorldID: r.engine.WorldID(),
		Context: r.oracleContext(ctx, hctx, text),
	})
	if err != nil {
		log.WithError(err).Warn("Oracle failed for user command")
		return r.failActor(ctx, actorID, text, err)
	}

	// "Решения нет" - не ошибка, но актор должен узнать, что команда
	// ни к чему не привела
	if decision == nil {
		log.Debug("Oracle returned no decision")
		if err := r.memory.RecordDecision(ctx, actorID, r.engine.WorldID(), text, nil, nil); err != nil {
			return err
		}
		return r.characterError(ctx, actorID, "could not find an actionable way to follow the instruction", domain.SeverityLow)
	}

	res, err := r.routeDecision(hctx, decision)
	if err != nil {
		log.WithError(err).WithField("kind", decision.Kind).Warn("Handler rejected decision")
		return r.failActor(ctx, actorID, text, err)
	}

	ran, err := r.runEvents(ctx, res.Events)
	if err != nil {
		return err
	}

	if err := r.memory.RecordDecision(ctx, actorID, r.engine.WorldID(), text, decision, ran); err != nil {
		return err
	}
	return nil
}

// HandleEvent - вход для синтетических событий-триггеров (шедулер шлет
// сюда checkTasks). Событие сначала проходит обычный конвейер движка,
// затем отправляется своему хендлеру.
func (r *Resolver) HandleEvent(ctx context.Context, ev *domain.GameEvent) error {
	if err := r.engine.AddEvent(ctx, ev); err != nil {
		return err
	}

	kind := domain.ParseActionKind(ev.Kind.String())
	handler, ok := r.handlers[kind]
	if !ok {
		r.log.WithField("event_kind", ev.Kind).Warn("No handler for synthesized event kind")
		return r.characterError(ctx, ev.ActorID,
			fmt.Sprintf("cannot act on event kind %q", ev.Kind), domain.SeverityMedium)
	}

	hctx, err := r.handlerContext(ctx, ev.ActorID)
	if err != nil {
		return r.failActor(ctx, ev.ActorID, ev.Kind.String(), err)
	}

	rawParams, err := json.Marshal(ev.Params)
	if err != nil {
		return r.failActor(ctx, ev.ActorID, ev.Kind.String(), err)
	}

	res, err := handler(hctx, rawParams)
	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"actor_id":   ev.ActorID,
			"event_kind": ev.Kind,
		}).Warn("Handler failed for synthesized event")
		return r.failActor(ctx, ev.ActorID, ev.Kind.String(), err)
	}

	_, err = r.runEvents(ctx, res.Events)
	return err
}

// handlerContext собирает снимок мира для хендлера. Копии сущностей
// отвязаны от живого состояния: хендлер работает вне блокировки.
func (r *Resolver) handlerContext(ctx context.Context, actorID string) (handlers.Context, error) {
	actor, ok := r.engine.SnapshotActor(actorID)
	if !ok {
		return handlers.Context{}, domain.NewDomainError("entity %s is not in world %s", actorID, r.engine.WorldID())
	}
	return handlers.Context{
		Ctx:      ctx,
		WorldID:  r.engine.WorldID(),
		Now:      time.Now().UTC(),
		Actor:    actor,
		Entities: r.engine.SnapshotEntities(),
		Recent:   r.engine.RecentEvents(),
		Oracle:   r.oracle,
		Memory:   r.memory,
		Store:    r.store,
		Route:    r.routeDecision,
	}, nil
}

// oracleContext - текстовое окружение решения для прямой команды
func (r *Resolver) oracleContext(ctx context.Context, hctx handlers.Context, instruction string) oracle.Context {
	memories, err := r.memory.ContextFor(ctx, r.engine.WorldID(), hctx.Actor.ID, hctx.Now)
	if err != nil {
		// Контекст без воспоминаний хуже, чем с ними, но команда важнее
		r.log.WithError(err).WithField("actor_id", hctx.Actor.ID).Error("Failed to load memories for oracle context")
		memories = ""
	}
	return oracle.Context{
		Instruction:  instruction,
		Status:       actions.StatusLine(hctx.Actor),
		Memories:     memories,
		RecentEvents: actions.RecentDigest(hctx),
	}
}

// routeDecision отдает решение хендлеру его вида. Подставляется хендлеру
// checkTasks как Route: решение из переоценки идет тем же путем, что и
// решение из прямой команды (move всегда считает маршрут и длительность).
func (r *Resolver) routeDecision(hctx handlers.Context, d *domain.Decision) (handlers.Result, error) {
	handler, ok := r.handlers[d.Kind]
	if !ok {
		return handlers.EmptyResult(), domain.NewDomainError("no handler for decision kind %q", d.Kind)
	}
	return handler(hctx, d.Params)
}

// runEvents проводит события хендлера через движок по одному, в порядке
// выдачи. Возвращает ID всех корневых событий, дошедших до журнала.
func (r *Resolver) runEvents(ctx context.Context, events []*domain.GameEvent) ([]string, error) {
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		if err := r.engine.AddEvent(ctx, ev); err != nil {
			return ids, err
		}
		ids = append(ids, ev.ID)
	}
	return ids, nil
}

// failActor гасит ошибку актора событием characterError и "растерянным"
// воспоминанием. Отказы хранилища не гасятся - они уходят вызывающему.
func (r *Resolver) failActor(ctx context.Context, actorID, instruction string, cause error) error {
	if domain.IsPersistence(cause) {
		return cause
	}

	severity := domain.ClassifySeverity(cause)
	if err := r.characterError(ctx, actorID, cause.Error(), severity); err != nil {
		return err
	}

	text := fmt.Sprintf("Got confused trying to act on %q", instruction)
	if err := r.memory.RecordObservation(ctx, actorID, r.engine.WorldID(), text, memory.ImportanceConfusion); err != nil {
		return err
	}
	return nil
}

// characterError адресует сущности событие об ошибке ее действия
func (r *Resolver) characterError(ctx context.Context, actorID, message string, severity domain.Severity) error {
	ev := domain.NewEvent(domain.EventCharacterError, actorID, r.engine.WorldID(), domain.CharacterErrorParams{
		Message:  message,
		Severity: severity,
	})
	return r.engine.AddEvent(ctx, ev)
}
