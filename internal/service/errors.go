package service

import (
	"fmt"
	"strings"
)

// Типизированные ошибки для маппинга на HTTP-коды в delivery-слое.

// ValidationError содержит все найденные нарушения, а не только первое.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

func (e *ValidationError) add(format string, args ...interface{}) {
	e.Violations = append(e.Violations, fmt.Sprintf(format, args...))
}

// orNil возвращает nil, если нарушений нет.
func (e *ValidationError) orNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}

func NewValidationError(violations ...string) *ValidationError {
	return &ValidationError{Violations: violations}
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

type PermissionError struct {
	Action string
}

func (e *PermissionError) Error() string {
	return "permission denied: " + e.Action
}

// StorageMismatchError - клиент сообщил о загрузке, но объекта в хранилище нет.
type StorageMismatchError struct {
	FileKey string
}

func (e *StorageMismatchError) Error() string {
	return fmt.Sprintf("object %s is not present in storage", e.FileKey)
}

// ReconciliationWarning не является ошибкой операции: файл обработан,
// но агрегат кейса не обновился.
type ReconciliationWarning struct {
	CaseID string
	Event  string
	Err    error
}

func (w *ReconciliationWarning) Error() string {
	return fmt.Sprintf("case %s metadata not updated after %s: %v", w.CaseID, w.Event, w.Err)
}

func (w *ReconciliationWarning) Unwrap() error {
	return w.Err
}

func warningText(w *ReconciliationWarning) string {
	if w == nil {
		return ""
	}
	return w.Error()
}
