package actions

import (
	"errors"
	"fmt"
	"strings"

	"simulacra-server/internal/domain"
	"simulacra-server/internal/engine/handlers"
	"simulacra-server/internal/memory"
	"simulacra-server/internal/oracle"
	"simulacra-server/pkg/api"
	"simulacra-server/pkg/logger"
	"simulacra-server/pkg/utils"
)

// HandleCheckTasks - переоценка планов актора. Собирает активные задачи,
// воспоминания и недавние чужие события, спрашивает оракула и отдает его
// решение в хендлер соответствующего вида. Решение checkTasks дальше не
// идет: каскад переоценок не порождает сам себя.
func HandleCheckTasks(ctx handlers.Context, p api.CheckTasksPayload) (handlers.Result, error) {
	log := logger.WithWorld("checktasks_handler", ctx.WorldID).WithField("actor_id", ctx.Actor.ID)

	tasks, err := ctx.Store.ListActiveTasks(ctx.Ctx, ctx.WorldID, ctx.Actor.ID)
	if err != nil {
		return handlers.EmptyResult(), err
	}

	recent := RecentDigest(ctx)

	// Ни задач, ни чужих событий вокруг: отмечаем тишину и ждем дальше
	if len(tasks) == 0 && recent == "" {
		log.Debug("Nothing noteworthy, staying idle")
		err := ctx.Memory.RecordObservation(ctx.Ctx, ctx.Actor.ID, ctx.WorldID,
			"Observed nothing noteworthy and kept waiting", memory.ImportanceObservation)
		return handlers.EmptyResult(), err
	}

	instruction := taskDigest(tasks, p.TaskID)
	memories, err := ctx.Memory.ContextFor(ctx.Ctx, ctx.WorldID, ctx.Actor.ID, ctx.Now)
	if err != nil {
		return handlers.EmptyResult(), err
	}

	decision, err := ctx.Oracle.Decide(ctx.Ctx, oracle.Request{
		ActorID: ctx.Actor.ID,
		WorldID: ctx.WorldID,
		Context: oracle.Context{
			Instruction:  instruction,
			Status:       StatusLine(ctx.Actor),
			Memories:     memories,
			RecentEvents: recent,
		},
	})
	if err != nil {
		// Сбой оракула при автономной переоценке не показываем миру:
		// актор просто "решил подождать". Иначе каждый транзиент оракула
		// засыпал бы мир ошибками от всех простаивающих сущностей.
		var oe *domain.OracleError
		if errors.As(err, &oe) {
			log.WithError(err).Warn("Oracle failed during task check, waiting instead")
			recErr := ctx.Memory.RecordObservation(ctx.Ctx, ctx.Actor.ID, ctx.WorldID,
				"Tried to decide what to do next but could not, observing and waiting", memory.ImportanceObservation)
			return handlers.EmptyResult(), recErr
		}
		return handlers.EmptyResult(), err
	}

	if decision == nil {
		err := ctx.Memory.RecordObservation(ctx.Ctx, ctx.Actor.ID, ctx.WorldID,
			"Reviewed the situation and decided to wait", memory.ImportanceObservation)
		return handlers.EmptyResult(), err
	}

	// Решение checkTasks из переоценки не исполняем - только фиксируем.
	// Производное событие уходит в конвейер лишь для остальных видов.
	if decision.Kind == domain.ActionCheckTasks {
		log.Debug("Oracle chose another task check, suppressing self-loop")
		err := ctx.Memory.RecordDecision(ctx.Ctx, ctx.Actor.ID, ctx.WorldID, instruction, decision, nil)
		return handlers.EmptyResult(), err
	}

	res, err := ctx.Route(ctx, decision)
	if err != nil {
		return res, err
	}

	if recErr := ctx.Memory.RecordDecision(ctx.Ctx, ctx.Actor.ID, ctx.WorldID, instruction, decision, eventIDs(res)); recErr != nil {
		return res, recErr
	}
	return res, nil
}

// taskDigest собирает инструкцию для оракула из списка задач.
// Задача due (p.TaskID) идет первой; вариант "подождать" явно назван всегда.
func taskDigest(tasks []domain.ScheduledTask, dueTaskID string) string {
	var b strings.Builder

	if len(tasks) == 0 {
		b.WriteString("No scheduled tasks right now. Review what is happening around you and decide whether to act.\n")
	} else {
		b.WriteString("Scheduled tasks:\n")
		for _, t := range tasks {
			if t.ID == dueTaskID {
				fmt.Fprintf(&b, "- %s (due now)\n", t.Description)
			}
		}
		for _, t := range tasks {
			if t.ID != dueTaskID {
				fmt.Fprintf(&b, "- %s\n", t.Description)
			}
		}
	}

	b.WriteString("Choose one action to perform, or wait and observe.")
	return b.String()
}

// RecentDigest - недавние события мира глазами актора: чужие и осмысленные
func RecentDigest(ctx handlers.Context) string {
	var lines []string
	for _, ev := range ctx.Recent {
		if ev.ActorID == ctx.Actor.ID {
			continue
		}
		text, ok := memory.DescribeEvent(ev)
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s: %s", utils.RelativeAge(ev.CreatedAt, ctx.Now), ev.ActorID, text))
	}
	return strings.Join(lines, "\n")
}

// StatusLine - положение актора одной строкой
func StatusLine(actor *domain.Entity) string {
	return fmt.Sprintf("You are %s at (%.1f, %.1f, %.1f), carrying %d item(s)",
		actor.Name, actor.Position.X, actor.Position.Y, actor.Position.Z, len(actor.Items))
}

func eventIDs(res handlers.Result) []string {
	ids := make([]string, 0, len(res.Events))
	for _, ev := range res.Events {
		ids = append(ids, ev.ID)
	}
	return ids
}
