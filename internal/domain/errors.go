package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Severity - уровень серьезности ошибки, адресованной сущности
type Severity uint8

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

var severityToString = map[Severity]string{
	SeverityLow:    "low",
	SeverityMedium: "medium",
	SeverityHigh:   "high",
}

var severityFromString = map[string]Severity{
	"low":    SeverityLow,
	"medium": SeverityMedium,
	"high":   SeverityHigh,
}

// ParseSeverity конвертирует строку в Severity; незнакомое значение считается high
func ParseSeverity(s string) Severity {
	if val, ok := severityFromString[strings.ToLower(s)]; ok {
		return val
	}
	return SeverityHigh
}

func (s Severity) String() string {
	if val, ok := severityToString[s]; ok {
		return val
	}
	return "high"
}

// MarshalJSON сериализует уровень строкой (в protocol уходит "low"/"medium"/"high")
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON парсит строковый уровень
func (s *Severity) UnmarshalJSON(data []byte) error {
	trimmed := strings.Trim(string(data), `"`)
	*s = ParseSeverity(trimmed)
	return nil
}

// --- ТАКСОНОМИЯ ОШИБОК ---
//
// Четыре класса, различимых через errors.As:
//   ValidationError  - кривой ввод (нечисловые координаты, пустые поля)
//   DomainError      - конфликт с состоянием мира (нет предмета, нет сущности)
//   OracleError      - оракул недоступен или ответил мусором
//   PersistenceError - хранилище отказало; единственный класс, который
//                      пробрасывается вызывающему вместо конвертации в событие

// ValidationError - ошибка валидации входных параметров
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: field %q: %s", e.Field, e.Reason)
}

// NewValidationError создает ошибку валидации поля
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// DomainError - нарушение доменного правила
type DomainError struct {
	Reason string
}

func (e *DomainError) Error() string {
	return "domain: " + e.Reason
}

// NewDomainError создает доменную ошибку
func NewDomainError(format string, args ...any) error {
	return &DomainError{Reason: fmt.Sprintf(format, args...)}
}

// OracleError - сбой на границе с оракулом решений
type OracleError struct {
	Reason string
	Err    error
}

func (e *OracleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oracle: %s: %v", e.Reason, e.Err)
	}
	return "oracle: " + e.Reason
}

func (e *OracleError) Unwrap() error {
	return e.Err
}

// NewOracleError оборачивает причину сбоя оракула
func NewOracleError(reason string, err error) error {
	return &OracleError{Reason: reason, Err: err}
}

// PersistenceError - отказ хранилища
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError оборачивает отказ хранилища с именем операции
func NewPersistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// IsPersistence сообщает, лежит ли в цепочке ошибка хранилища
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// ClassifySeverity сопоставляет ошибке уровень для characterError:
// кривой ввод - забота самого актора (low), конфликт состояния - medium,
// все неожиданное - high.
func ClassifySeverity(err error) Severity {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return SeverityLow
	}
	var de *DomainError
	if errors.As(err, &de) {
		return SeverityMedium
	}
	return SeverityHigh
}
