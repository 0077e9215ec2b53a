package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"simulacra-server/internal/domain"
)

// Предел на тело ответа оракула
const maxDecisionBody = 1 << 20

// HTTPOracle - клиент внешнего оракула решений.
// Протокол: POST Request как JSON; 200 с телом-решением, 204 - решения нет.
type HTTPOracle struct {
	url    string
	client *http.Client
}

// NewHTTP создает клиента с таймаутом на весь запрос
func NewHTTP(url string, timeout time.Duration) *HTTPOracle {
	return &HTTPOracle{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (o *HTTPOracle) Decide(ctx context.Context, req Request) (*domain.Decision, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, domain.NewOracleError("encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewOracleError("build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, domain.NewOracleError("oracle unreachable", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
		// разбор ниже
	default:
		return nil, domain.NewOracleError(fmt.Sprintf("oracle returned status %d", resp.StatusCode), nil)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDecisionBody))
	if err != nil {
		return nil, domain.NewOracleError("read response", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		// Пустое 200 трактуем как "решения нет"
		return nil, nil
	}

	if err := ValidateDecision(raw); err != nil {
		return nil, domain.NewOracleError("invalid decision", err)
	}

	var d domain.Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, domain.NewOracleError("decode decision", err)
	}
	if d.Kind == domain.ActionUnknown {
		// Решение без распознанного вида ядру не отдаем
		return nil, domain.NewOracleError("decision kind missing", nil)
	}
	return &d, nil
}
