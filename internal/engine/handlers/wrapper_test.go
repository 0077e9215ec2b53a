package handlers

import (
	"encoding/json"
	"errors"
	"testing"

	"simulacra-server/internal/domain"
	"simulacra-server/pkg/api"
)

func TestWithParams(t *testing.T) {
	var got api.SpeakPayload
	h := WithParams(func(_ Context, p api.SpeakPayload) (Result, error) {
		got = p
		return EmptyResult(), nil
	})

	if _, err := h(Context{}, json.RawMessage(`{"message":"hi","volume":3}`)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got.Message != "hi" || got.Volume != 3 {
		t.Errorf("payload = %+v, want message=hi volume=3", got)
	}
}

func TestWithParams_MalformedJSON(t *testing.T) {
	h := WithParams(func(_ Context, p api.SpeakPayload) (Result, error) {
		t.Fatal("handler must not run on malformed params")
		return EmptyResult(), nil
	})

	_, err := h(Context{}, json.RawMessage(`{"message":`))
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *domain.ValidationError", err)
	}
}

func TestWithParams_ValidateRejects(t *testing.T) {
	h := WithParams(func(_ Context, p api.SpeakPayload) (Result, error) {
		t.Fatal("handler must not run on invalid params")
		return EmptyResult(), nil
	})

	_, err := h(Context{}, json.RawMessage(`{"message":"","volume":3}`))
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *domain.ValidationError", err)
	}
}

// Пустые параметры - это нулевое значение типа, а не ошибка разбора
func TestWithParams_EmptyRaw(t *testing.T) {
	ran := false
	h := WithParams(func(_ Context, p api.CheckTasksPayload) (Result, error) {
		ran = true
		if p.Reason != "" || p.TaskID != "" {
			t.Errorf("payload = %+v, want zero value", p)
		}
		return EmptyResult(), nil
	})

	if _, err := h(Context{}, nil); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !ran {
		t.Error("handler did not run")
	}
}
