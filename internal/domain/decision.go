package domain

import "encoding/json"

// Decision - структурированное решение оракула.
// Params остаются сырым JSON: их разбирает типизированный обработчик действия,
// ядро о внутренностях параметров не знает.
type Decision struct {
	Kind      ActionKind      `json:"-"`
	Params    json.RawMessage `json:"parameters,omitempty"`
	Reasoning string          `json:"reasoning,omitempty"`
}

// decisionEnvelope - транспортная форма решения
type decisionEnvelope struct {
	Kind      string          `json:"kind"`
	Params    json.RawMessage `json:"parameters,omitempty"`
	Reasoning string          `json:"reasoning,omitempty"`
}

// MarshalJSON сериализует решение со строковым kind
func (d Decision) MarshalJSON() ([]byte, error) {
	return json.Marshal(decisionEnvelope{
		Kind:      d.Kind.String(),
		Params:    d.Params,
		Reasoning: d.Reasoning,
	})
}

// UnmarshalJSON разбирает решение; незнакомый kind остается ActionUnknown,
// решать, что с ним делать - дело вызывающего.
func (d *Decision) UnmarshalJSON(data []byte) error {
	var env decisionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	d.Kind = ParseActionKind(env.Kind)
	d.Params = env.Params
	d.Reasoning = env.Reasoning
	return nil
}
