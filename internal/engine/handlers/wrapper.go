package handlers

import (
	"encoding/json"

	"simulacra-server/internal/domain"
	"simulacra-server/pkg/api"
)

// TypedHandlerFunc - "чистый" хендлер, работающий с готовой структурой T
type TypedHandlerFunc[T any] func(ctx Context, params T) (Result, error)

// WithParams берет "чистый" хендлер и превращает его в стандартный HandlerFunc.
// Она берет на себя Unmarshal и Validate: кривой JSON и непрошедшие проверку
// параметры становятся ValidationError еще до вызова логики.
func WithParams[T any](handler TypedHandlerFunc[T]) HandlerFunc {
	return func(ctx Context, raw json.RawMessage) (Result, error) {
		var params T

		// 1. Распаковка JSON (пустые параметры допустимы: нулевое значение T)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &params); err != nil {
				return Result{}, domain.NewValidationError("parameters", "malformed parameters: "+err.Error())
			}
		}

		// 2. Автоматическая валидация, если T реализует api.Validator
		if v, ok := any(params).(api.Validator); ok {
			if err := v.Validate(); err != nil {
				return Result{}, domain.NewValidationError("parameters", err.Error())
			}
		}

		// 3. Вызов чистой логики
		return handler(ctx, params)
	}
}
