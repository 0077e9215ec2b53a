package api

import (
	"errors"
	"math"
)

// Параметры решений оракула. Хендлер получает их через WithParams,
// которая берет на себя разбор JSON и вызов Validate.

// MovePayload - цель перемещения
type MovePayload struct {
	To Vec3View `json:"to"`
}

func (p MovePayload) Validate() error {
	for _, c := range []float64{p.To.X, p.To.Y, p.To.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return errors.New("move target coordinates must be finite")
		}
	}
	return nil
}

// SpeakPayload - фраза и громкость. Громкость задает радиус слышимости.
type SpeakPayload struct {
	Message string  `json:"message"`
	Volume  float64 `json:"volume"`
}

func (p SpeakPayload) Validate() error {
	if p.Message == "" {
		return errors.New("message is required")
	}
	if math.IsNaN(p.Volume) || math.IsInf(p.Volume, 0) || p.Volume <= 0 {
		return errors.New("volume must be a positive finite number")
	}
	return nil
}

// PickupPayload - что подбираем. Предметы не сверяются с реестром
// объектов мира: какой assetId назван, такой и появится.
type PickupPayload struct {
	AssetID     string `json:"assetId"`
	Description string `json:"description,omitempty"`
}

func (p PickupPayload) Validate() error {
	if p.AssetID == "" {
		return errors.New("assetId is required")
	}
	return nil
}

// DropPayload - какой предмет инвентаря выбрасываем
type DropPayload struct {
	ItemInstanceID string `json:"itemInstanceId"`
}

func (p DropPayload) Validate() error {
	if p.ItemInstanceID == "" {
		return errors.New("itemInstanceId is required")
	}
	return nil
}

// CheckTasksPayload - триггер переоценки задач. Оба поля необязательны.
type CheckTasksPayload struct {
	Reason string `json:"reason,omitempty"`
	TaskID string `json:"taskId,omitempty"`
}

func (p CheckTasksPayload) Validate() error { return nil }
