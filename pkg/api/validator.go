package api

import "errors"

// Validator - интерфейс, который могут реализовать DTO
type Validator interface {
	Validate() error
}

func (p JoinPayload) Validate() error {
	if p.ActorID == "" {
		return errors.New("actorId is required")
	}
	if p.WorldID == "" {
		return errors.New("worldId is required")
	}
	return nil
}

func (p CommandPayload) Validate() error {
	if p.ActorID == "" {
		return errors.New("actorId is required")
	}
	if p.WorldID == "" {
		return errors.New("worldId is required")
	}
	if p.Text == "" {
		return errors.New("text is required")
	}
	return nil
}
