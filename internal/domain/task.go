package domain

import "time"

// ScheduledTask - периодический промпт сущности (cronjob автономности).
// Деактивация - мягкий флаг, записи не удаляются.
type ScheduledTask struct {
	ID              string    `json:"id"`
	CharacterID     string    `json:"characterId"`
	WorldID         string    `json:"worldId"`
	Description     string    `json:"description"`
	IntervalSeconds int64     `json:"intervalSeconds"`
	LastExecuted    time.Time `json:"lastExecuted"`
	IsActive        bool      `json:"isActive"`
}

// NewScheduledTask создает активную задачу. LastExecuted ставится в now,
// так что первый запуск случится через полный интервал, а не немедленно.
func NewScheduledTask(characterID, worldID, description string, intervalSeconds int64) ScheduledTask {
	return ScheduledTask{
		ID:              NewTaskID(),
		CharacterID:     characterID,
		WorldID:         worldID,
		Description:     description,
		IntervalSeconds: intervalSeconds,
		LastExecuted:    time.Now().UTC(),
		IsActive:        true,
	}
}

// IsDue сообщает, пора ли выполнять задачу
func (t ScheduledTask) IsDue(now time.Time) bool {
	if !t.IsActive {
		return false
	}
	return now.Sub(t.LastExecuted) >= time.Duration(t.IntervalSeconds)*time.Second
}
