package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"simulacra-server/internal/domain"
)

// Scripted - детерминированный оракул на правилах. Работает без внешнего
// сервиса: ищет в инструкции известные шаблоны и строит по первому
// совпадению решение. Используется когда URL оракула не задан, и в тестах.
type Scripted struct{}

func NewScripted() *Scripted {
	return &Scripted{}
}

func (s *Scripted) Decide(_ context.Context, req Request) (*domain.Decision, error) {
	instruction := strings.TrimSpace(req.Context.Instruction)
	if instruction == "" {
		return nil, nil
	}

	// Сначала инструкция целиком, затем построчно: сводка задач при
	// checkTasks приходит списком, берем первую распознанную директиву
	if d, err := parseDirective(instruction); d != nil || err != nil {
		return d, err
	}
	for _, line := range strings.Split(instruction, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- "))
		if line == "" {
			continue
		}
		if d, err := parseDirective(line); d != nil || err != nil {
			return d, err
		}
	}

	// Ни одной директивы не поняли - решения нет
	return nil, nil
}

// parseDirective распознает одну директиву. (nil, nil) - не распознано.
func parseDirective(text string) (*domain.Decision, error) {
	lower := strings.ToLower(text)
	switch {
	case strings.HasPrefix(lower, "say "):
		return speakDecision(text[len("say "):])
	case strings.HasPrefix(lower, "go to "):
		return moveDecision(text[len("go to "):])
	case strings.HasPrefix(lower, "pick up "):
		return pickupDecision(text[len("pick up "):])
	case strings.HasPrefix(lower, "drop "):
		return dropDecision(text[len("drop "):])
	case lower == "check tasks" || lower == "check your tasks":
		return checkTasksDecision(text)
	}
	return nil, nil
}

// speakDecision строит решение говорить. Громкость по умолчанию 5,
// суффикс "at volume N" ее переопределяет.
func speakDecision(rest string) (*domain.Decision, error) {
	message := strings.TrimSpace(rest)
	volume := 5.0

	lower := strings.ToLower(message)
	if idx := strings.LastIndex(lower, " at volume "); idx >= 0 {
		if v, err := strconv.ParseFloat(strings.TrimSpace(message[idx+len(" at volume "):]), 64); err == nil && v > 0 {
			volume = v
			message = strings.TrimSpace(message[:idx])
		}
	}
	if message == "" {
		return nil, nil
	}

	params, err := json.Marshal(domain.SpeakParams{Message: message, Volume: volume})
	if err != nil {
		return nil, domain.NewOracleError("encode speak params", err)
	}
	return &domain.Decision{
		Kind:      domain.ActionSpeak,
		Params:    params,
		Reasoning: fmt.Sprintf("Instructed to say %q", message),
	}, nil
}

// moveDecision разбирает "go to X Y Z" (и "go to X Y", Z=0)
func moveDecision(rest string) (*domain.Decision, error) {
	fields := strings.Fields(rest)
	if len(fields) < 2 || len(fields) > 3 {
		return nil, nil
	}

	coords := make([]float64, 3)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, nil
		}
		coords[i] = v
	}
	to := domain.Vec3{X: coords[0], Y: coords[1], Z: coords[2]}

	params, err := json.Marshal(map[string]domain.Vec3{"to": to})
	if err != nil {
		return nil, domain.NewOracleError("encode move params", err)
	}
	return &domain.Decision{
		Kind:      domain.ActionMove,
		Params:    params,
		Reasoning: fmt.Sprintf("Instructed to go to (%g, %g, %g)", to.X, to.Y, to.Z),
	}, nil
}

// pickupDecision разбирает "pick up <assetId>[: описание]"
func pickupDecision(rest string) (*domain.Decision, error) {
	asset := strings.TrimSpace(rest)
	description := ""
	if idx := strings.Index(asset, ":"); idx >= 0 {
		description = strings.TrimSpace(asset[idx+1:])
		asset = strings.TrimSpace(asset[:idx])
	}
	if asset == "" {
		return nil, nil
	}

	params, err := json.Marshal(map[string]string{"assetId": asset, "description": description})
	if err != nil {
		return nil, domain.NewOracleError("encode pickup params", err)
	}
	return &domain.Decision{
		Kind:      domain.ActionPickup,
		Params:    params,
		Reasoning: fmt.Sprintf("Instructed to pick up %s", asset),
	}, nil
}

func dropDecision(rest string) (*domain.Decision, error) {
	id := strings.TrimSpace(rest)
	if id == "" {
		return nil, nil
	}
	params, err := json.Marshal(map[string]string{"itemInstanceId": id})
	if err != nil {
		return nil, domain.NewOracleError("encode drop params", err)
	}
	return &domain.Decision{
		Kind:      domain.ActionDrop,
		Params:    params,
		Reasoning: fmt.Sprintf("Instructed to drop %s", id),
	}, nil
}

func checkTasksDecision(text string) (*domain.Decision, error) {
	params, err := json.Marshal(domain.CheckTasksParams{Reason: "instructed"})
	if err != nil {
		return nil, domain.NewOracleError("encode checkTasks params", err)
	}
	return &domain.Decision{
		Kind:      domain.ActionCheckTasks,
		Params:    params,
		Reasoning: fmt.Sprintf("Instructed %q, reviewing schedule", text),
	}, nil
}
